package juicer

import (
	"context"
	"net"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultListenAddress = "127.0.0.1:6969"

	// larger than any known data-out packet
	maxDatagramSize = 2048
)

// to allow testing
var listenPacket = func(network, address string) (net.PacketConn, error) {
	return net.ListenPacket(network, address)
}

// Listener receives data-out datagrams and passes each payload to a
// PacketHandler. It is run through retry.
type Listener struct {
	Address    string
	ReadBuffer int

	handler PacketHandler
	conn    net.PacketConn
}

func NewListener(address string, handler PacketHandler) *Listener {
	if address == "" {
		address = DefaultListenAddress
	}
	return &Listener{
		Address: address,
		handler: handler,
	}
}

func (l *Listener) Name() string {
	return "listener"
}

func (l *Listener) Open() error {
	conn, err := listenPacket("udp", l.Address)
	if err != nil {
		return errors.Wrapf(err, "unable to listen on %s", l.Address)
	}
	if l.ReadBuffer > 0 {
		if udpConn, ok := conn.(*net.UDPConn); ok {
			if err := udpConn.SetReadBuffer(l.ReadBuffer); err != nil {
				log.WithError(err).Warnf("unable to set OS read buffer to %v", l.ReadBuffer)
			}
		}
	}
	log.WithField("address", conn.LocalAddr().String()).Info("listening for telemetry")
	l.conn = conn
	return nil
}

func (l *Listener) Close() error {
	if l.conn == nil {
		return nil
	}
	err := l.conn.Close()
	l.conn = nil
	return err
}

// LocalAddr is the bound address, or nil before Open.
func (l *Listener) LocalAddr() net.Addr {
	if l.conn == nil {
		return nil
	}
	return l.conn.LocalAddr()
}

func (l *Listener) Start(ctx context.Context) error {
	conn := l.conn
	if conn == nil {
		return errors.New("listener is not open")
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			// unblocks ReadFrom, the socket itself is closed by Close
			_ = conn.SetReadDeadline(time.Now())
		case <-done:
		}
	}()

	buf := make([]byte, maxDatagramSize)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return errors.Wrap(err, "unable to read datagram")
		}
		if err := l.handler(buf[:n]); err != nil {
			log.WithError(err).
				WithField("from", addr).
				WithField("length", n).
				Warn("dropping packet")
		}
	}
}

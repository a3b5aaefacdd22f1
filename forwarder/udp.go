package forwarder

import (
	"context"
	"fmt"
	"net"

	juicer "github.com/jd3nn1s/forzajuicer"
	"github.com/jd3nn1s/forzajuicer/config"
	"github.com/pkg/errors"
)

// UDPForwarder relays telemetry to another host, re-encoded with a packet
// layout so that any data-out consumer can read it.
type UDPForwarder struct {
	Config config.UDP

	layout *juicer.Layout
	conn   net.Conn
	queue  *queue
}

func NewUDPForwarder(cfg config.UDP, layout *juicer.Layout) (*UDPForwarder, error) {
	udp := &UDPForwarder{
		Config: cfg,
		layout: layout,
		queue:  newQueue("udp", config.Interval(cfg.IntervalMS)),
	}
	if err := udp.connect(); err != nil {
		return nil, err
	}
	return udp, nil
}

func (udp *UDPForwarder) Close() error {
	return udp.conn.Close()
}

func (udp *UDPForwarder) Forward(newTelemetry *juicer.Telemetry, prevTelemetry *juicer.Telemetry) error {
	udp.queue.offer(newTelemetry)
	return nil
}

func (udp *UDPForwarder) Start(ctx context.Context) error {
	return udp.queue.run(ctx, udp.forward)
}

func (udp *UDPForwarder) forward(telem *juicer.Telemetry) error {
	if _, err := udp.conn.Write(udp.layout.Encode(telem)); err != nil {
		return errors.Wrap(err, "unable to write telemetry udp packet")
	}
	return nil
}

func (udp *UDPForwarder) connect() error {
	writeBufSize := udp.layout.Size() * 2

	conn, err := net.Dial("udp", fmt.Sprintf("%s:%d",
		udp.Config.Server,
		udp.Config.Port))
	if err != nil {
		return errors.Wrapf(err, "unable to dial %s:%d", udp.Config.Server, udp.Config.Port)
	}
	udpConn := conn.(*net.UDPConn)
	if err = udpConn.SetWriteBuffer(writeBufSize); err != nil {
		conn.Close()
		return errors.Wrapf(err, "unable to set OS write buffer to %v", writeBufSize)
	}

	udp.conn = conn
	return nil
}

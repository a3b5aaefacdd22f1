// Package replay feeds captured data-out traffic back through a packet
// handler, for debugging dashboards without the game running.
package replay

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

type Options struct {
	// Port keeps only UDP packets sent to this port, 0 keeps all.
	Port int
	// Realtime sleeps between packets to match the capture timestamps.
	Realtime bool
}

type Stats struct {
	Packets  int
	Handled  int
	Rejected int
}

// to allow testing
var sleep = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func ReadFile(ctx context.Context, fileName string, opts Options, handle func([]byte) error) (Stats, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return Stats{}, errors.Wrapf(err, "unable to open capture %s", fileName)
	}
	defer f.Close()
	return Read(ctx, f, opts, handle)
}

// Read replays every UDP payload of a pcap stream. Handler errors are
// counted and logged, not returned.
func Read(ctx context.Context, r io.Reader, opts Options, handle func([]byte) error) (Stats, error) {
	stats := Stats{}
	reader, err := pcapgo.NewReader(r)
	if err != nil {
		return stats, errors.Wrap(err, "unable to read pcap header")
	}
	source := gopacket.NewPacketSource(reader, reader.LinkType())

	var prevTimestamp time.Time
	for {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		default:
		}

		packet, err := source.NextPacket()
		if err == io.EOF {
			log.WithField("packets", stats.Packets).
				WithField("handled", stats.Handled).
				WithField("rejected", stats.Rejected).
				Info("replay complete")
			return stats, nil
		}
		if err != nil {
			return stats, errors.Wrapf(err, "unable to read packet %d", stats.Packets+1)
		}

		udpLayer := packet.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp, ok := udpLayer.(*layers.UDP)
		if !ok || len(udp.Payload) == 0 {
			continue
		}
		if opts.Port != 0 && int(udp.DstPort) != opts.Port {
			continue
		}
		stats.Packets++

		ts := packet.Metadata().Timestamp
		if opts.Realtime && !prevTimestamp.IsZero() && ts.After(prevTimestamp) {
			if err := sleep(ctx, ts.Sub(prevTimestamp)); err != nil {
				return stats, err
			}
		}
		prevTimestamp = ts

		if err := handle(udp.Payload); err != nil {
			stats.Rejected++
			log.WithError(err).WithField("packet", stats.Packets).Debug("replayed packet rejected")
			continue
		}
		stats.Handled++
	}
}

// Package forwarder fans decoded telemetry out to other consumers. Each
// forwarder keeps only the newest record and sends at a fixed rate, so a
// slow consumer never holds up the listener.
package forwarder

import (
	"context"
	"time"

	juicer "github.com/jd3nn1s/forzajuicer"
	log "github.com/sirupsen/logrus"
)

const defaultInterval = 100 * time.Millisecond

type queue struct {
	name     string
	interval time.Duration
	fwdChan  chan *juicer.Telemetry
}

func newQueue(name string, interval time.Duration) *queue {
	if interval <= 0 {
		interval = defaultInterval
	}
	return &queue{
		name:     name,
		interval: interval,
		fwdChan:  make(chan *juicer.Telemetry, 1),
	}
}

// offer replaces any unsent record with a copy of newTelemetry, so the next
// send is always the newest record.
func (q *queue) offer(newTelemetry *juicer.Telemetry) {
	// copy telemetry as we're processing it on another go-routine
	telemCopy := *newTelemetry
	for {
		select {
		case q.fwdChan <- &telemCopy:
			return
		default:
		}
		// channel is full, drop the stale record
		select {
		case <-q.fwdChan:
		default:
		}
	}
}

func (q *queue) run(ctx context.Context, send func(*juicer.Telemetry) error) error {
	limiter := time.NewTicker(q.interval)
	defer limiter.Stop()
	for {
		select {
		case <-limiter.C:
		case <-ctx.Done():
			return ctx.Err()
		}
		select {
		case t := <-q.fwdChan:
			if err := send(t); err != nil {
				log.WithError(err).Errorf("%s: unable to forward telemetry", q.name)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

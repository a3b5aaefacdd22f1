package juicer

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// ErrStale is returned for out-of-order packets when stale dropping is on.
var ErrStale = errors.New("stale packet")

type Option func(jc *Juicer)

func WithLayout(l *Layout) Option {
	return func(jc *Juicer) {
		jc.layout = l
	}
}

// WithDropStale rejects packets whose TimestampMS is older than the held
// record instead of letting the last arrival win.
func WithDropStale(drop bool) Option {
	return func(jc *Juicer) {
		jc.dropStale = drop
	}
}

func WithHolder(h *Holder) Option {
	return func(jc *Juicer) {
		jc.holder = h
	}
}

type Stats struct {
	Packets  uint64
	Decoded  uint64
	Rejected uint64
}

type Juicer struct {
	layout    *Layout
	holder    *Holder
	dropStale bool
	testMode  bool

	// serializes writers so forwarders see a consistent prev/new pair
	mu         sync.Mutex
	forwarders []Forwarder

	packets  atomic.Uint64
	decoded  atomic.Uint64
	rejected atomic.Uint64
}

func NewJuicer(opts ...Option) *Juicer {
	jc := &Juicer{
		layout: DashLayout,
	}
	for _, opt := range opts {
		opt(jc)
	}
	if jc.holder == nil {
		jc.holder = &Holder{}
	}
	return jc
}

func (jc *Juicer) Layout() *Layout {
	return jc.layout
}

func (jc *Juicer) Holder() *Holder {
	return jc.holder
}

func (jc *Juicer) SetTestMode(testMode bool) {
	jc.testMode = testMode
}

func (jc *Juicer) AddForwarder(fwd Forwarder) {
	jc.mu.Lock()
	defer jc.mu.Unlock()
	jc.forwarders = append(jc.forwarders, fwd)
}

func (jc *Juicer) Stats() Stats {
	return Stats{
		Packets:  jc.packets.Load(),
		Decoded:  jc.decoded.Load(),
		Rejected: jc.rejected.Load(),
	}
}

// HandlePacket decodes buf and, on success, makes it the latest record.
// On error the held record is left untouched.
func (jc *Juicer) HandlePacket(buf []byte) error {
	jc.packets.Add(1)
	newTelemetry, err := jc.layout.Decode(buf)
	if err != nil {
		jc.rejected.Add(1)
		return err
	}

	jc.mu.Lock()
	defer jc.mu.Unlock()

	var prevTelemetry *Telemetry
	if prev, ok := jc.holder.Get(); ok {
		if jc.dropStale && isStale(prev.TimestampMS, newTelemetry.TimestampMS) {
			jc.rejected.Add(1)
			return errors.Wrapf(ErrStale, "timestamp %d is before %d",
				newTelemetry.TimestampMS, prev.TimestampMS)
		}
		prevTelemetry = &prev
	}
	jc.holder.Set(newTelemetry)
	jc.decoded.Add(1)
	jc.telemetryUpdate(&newTelemetry, prevTelemetry)
	return nil
}

// isStale compares as a signed difference so the millisecond counter can
// wrap.
func isStale(prev, next uint32) bool {
	return int32(next-prev) < 0
}

func (jc *Juicer) telemetryUpdate(newTelemetry, prevTelemetry *Telemetry) {
	for _, fwd := range jc.forwarders {
		if err := fwd.Forward(newTelemetry, prevTelemetry); err != nil {
			log.WithError(err).Warn("unable to forward telemetry")
		}
	}
}

// Start runs the listener until ctx is done, reconnecting on failure.
// In test mode synthetic packets are generated as well.
func (jc *Juicer) Start(ctx context.Context, l *Listener) {
	if jc.testMode {
		jc.runTestMode(ctx)
	}
	if l == nil {
		return
	}
	go func() {
		if err := retry(ctx, l); err != nil && err != context.Canceled {
			log.Errorf("%s done: %v", l.Name(), err)
		}
	}()
}

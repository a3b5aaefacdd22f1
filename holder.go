package juicer

import (
	"sync/atomic"
)

// Holder keeps the most recent Telemetry. The zero value is empty and safe
// for concurrent use.
type Holder struct {
	latest atomic.Pointer[Telemetry]
}

// Set replaces the held record.
func (h *Holder) Set(t Telemetry) {
	h.latest.Store(&t)
}

// Get returns the held record, or false if nothing has been set yet.
func (h *Holder) Get() (Telemetry, bool) {
	t := h.latest.Load()
	if t == nil {
		return Telemetry{}, false
	}
	return *t, true
}

package juicer

import (
	"sync"
)

type forwarded struct {
	newTelemetry  Telemetry
	prevTelemetry *Telemetry
}

type forwarderStub struct {
	mu    sync.Mutex
	calls []forwarded
	err   error
}

func (fwd *forwarderStub) Forward(newTelemetry *Telemetry, prevTelemetry *Telemetry) error {
	fwd.mu.Lock()
	defer fwd.mu.Unlock()
	call := forwarded{newTelemetry: *newTelemetry}
	if prevTelemetry != nil {
		prev := *prevTelemetry
		call.prevTelemetry = &prev
	}
	fwd.calls = append(fwd.calls, call)
	return fwd.err
}

func (fwd *forwarderStub) callCount() int {
	fwd.mu.Lock()
	defer fwd.mu.Unlock()
	return len(fwd.calls)
}

package juicer

// Forwarder receives every accepted record. prevTelemetry is nil for the
// first one. Forward runs on the packet path with writers serialized, so it
// must not block; slow consumers queue the record and send elsewhere.
type Forwarder interface {
	Forward(newTelemetry *Telemetry, prevTelemetry *Telemetry) error
}

// PacketHandler consumes one raw datagram payload.
type PacketHandler func(buf []byte) error

type MetricSender interface {
	SendSpeed(int) error
	SendRPM(int) error
	SendGear(int) error
}

package juicer

import (
	"github.com/pkg/errors"
)

// ErrTooShort is returned when a packet is smaller than its layout.
var ErrTooShort = errors.New("packet too short")

// Decode reads a dash packet.
func Decode(buf []byte) (Telemetry, error) {
	return DashLayout.Decode(buf)
}

// Decode reads every field of the layout from buf. Bytes past Size are
// ignored. A short buffer yields ErrTooShort and a zero Telemetry.
func (l *Layout) Decode(buf []byte) (Telemetry, error) {
	if len(buf) < l.size {
		return Telemetry{}, errors.Wrapf(ErrTooShort, "%s layout needs %d bytes, got %d",
			l.name, l.size, len(buf))
	}
	t := Telemetry{}
	for _, f := range l.fields {
		f.read(buf, &t)
	}
	return t, nil
}

// Encode writes t using the layout. Bytes not covered by a field are zero.
func (l *Layout) Encode(t *Telemetry) []byte {
	buf := make([]byte, l.size)
	for _, f := range l.fields {
		f.write(buf, t)
	}
	return buf
}

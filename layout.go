package juicer

import (
	"encoding/binary"
	"math"
	"sort"

	"github.com/pkg/errors"
)

// Kind is the wire encoding of a single field. All kinds are little-endian.
type Kind uint8

const (
	Int8 Kind = iota + 1
	Uint8
	Uint16
	Int32
	Uint32
	Float32
)

func (k Kind) Size() int {
	switch k {
	case Int8, Uint8:
		return 1
	case Uint16:
		return 2
	case Int32, Uint32, Float32:
		return 4
	}
	return 0
}

func (k Kind) String() string {
	switch k {
	case Int8:
		return "int8"
	case Uint8:
		return "uint8"
	case Uint16:
		return "uint16"
	case Int32:
		return "int32"
	case Uint32:
		return "uint32"
	case Float32:
		return "float32"
	}
	return "unknown"
}

// Field is one entry of a packet layout.
type Field struct {
	Name   string
	Offset int
	Kind   Kind

	// ref returns a pointer into t whose type matches Kind.
	ref func(t *Telemetry) interface{}
}

// End is the offset of the first byte after the field.
func (f Field) End() int {
	return f.Offset + f.Kind.Size()
}

func (f Field) read(buf []byte, t *Telemetry) {
	b := buf[f.Offset:f.End()]
	switch p := f.ref(t).(type) {
	case *int8:
		*p = int8(b[0])
	case *uint8:
		*p = b[0]
	case *uint16:
		*p = binary.LittleEndian.Uint16(b)
	case *int32:
		*p = int32(binary.LittleEndian.Uint32(b))
	case *uint32:
		*p = binary.LittleEndian.Uint32(b)
	case *float32:
		*p = math.Float32frombits(binary.LittleEndian.Uint32(b))
	}
}

func (f Field) write(buf []byte, t *Telemetry) {
	b := buf[f.Offset:f.End()]
	switch p := f.ref(t).(type) {
	case *int8:
		b[0] = uint8(*p)
	case *uint8:
		b[0] = *p
	case *uint16:
		binary.LittleEndian.PutUint16(b, *p)
	case *int32:
		binary.LittleEndian.PutUint32(b, uint32(*p))
	case *uint32:
		binary.LittleEndian.PutUint32(b, *p)
	case *float32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(*p))
	}
}

// Layout is a flat, fixed table of fields for one packet format.
type Layout struct {
	name   string
	fields []Field
	size   int
}

func newLayout(name string, fields []Field) (*Layout, error) {
	names := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f.Kind.Size() == 0 {
			return nil, errors.Errorf("%s: field %s has unknown kind %d", name, f.Name, f.Kind)
		}
		if f.Offset < 0 {
			return nil, errors.Errorf("%s: field %s has negative offset %d", name, f.Name, f.Offset)
		}
		if f.ref == nil {
			return nil, errors.Errorf("%s: field %s has no destination", name, f.Name)
		}
		if _, ok := names[f.Name]; ok {
			return nil, errors.Errorf("%s: duplicate field %s", name, f.Name)
		}
		names[f.Name] = struct{}{}
	}

	sorted := make([]Field, len(fields))
	copy(sorted, fields)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})
	size := 0
	for i, f := range sorted {
		if i > 0 && f.Offset < sorted[i-1].End() {
			return nil, errors.Errorf("%s: field %s at %d overlaps %s",
				name, f.Name, f.Offset, sorted[i-1].Name)
		}
		if f.End() > size {
			size = f.End()
		}
	}

	return &Layout{
		name:   name,
		fields: sorted,
		size:   size,
	}, nil
}

func mustLayout(name string, fields []Field) *Layout {
	l, err := newLayout(name, fields)
	if err != nil {
		panic(err)
	}
	return l
}

func (l *Layout) Name() string {
	return l.name
}

// Size is the minimum packet length the layout can decode.
func (l *Layout) Size() int {
	return l.size
}

// Fields returns a copy of the table ordered by offset.
func (l *Layout) Fields() []Field {
	fields := make([]Field, len(l.fields))
	copy(fields, l.fields)
	return fields
}

func i8(name string, off int, ref func(t *Telemetry) *int8) Field {
	return Field{Name: name, Offset: off, Kind: Int8, ref: func(t *Telemetry) interface{} { return ref(t) }}
}

func u8(name string, off int, ref func(t *Telemetry) *uint8) Field {
	return Field{Name: name, Offset: off, Kind: Uint8, ref: func(t *Telemetry) interface{} { return ref(t) }}
}

func u16(name string, off int, ref func(t *Telemetry) *uint16) Field {
	return Field{Name: name, Offset: off, Kind: Uint16, ref: func(t *Telemetry) interface{} { return ref(t) }}
}

func i32(name string, off int, ref func(t *Telemetry) *int32) Field {
	return Field{Name: name, Offset: off, Kind: Int32, ref: func(t *Telemetry) interface{} { return ref(t) }}
}

func u32(name string, off int, ref func(t *Telemetry) *uint32) Field {
	return Field{Name: name, Offset: off, Kind: Uint32, ref: func(t *Telemetry) interface{} { return ref(t) }}
}

func f32(name string, off int, ref func(t *Telemetry) *float32) Field {
	return Field{Name: name, Offset: off, Kind: Float32, ref: func(t *Telemetry) interface{} { return ref(t) }}
}

func vec3(name string, off int, ref func(t *Telemetry) *Vector3) []Field {
	return []Field{
		f32(name+".X", off, func(t *Telemetry) *float32 { return &ref(t).X }),
		f32(name+".Y", off+4, func(t *Telemetry) *float32 { return &ref(t).Y }),
		f32(name+".Z", off+8, func(t *Telemetry) *float32 { return &ref(t).Z }),
	}
}

func wheels(name string, off int, ref func(t *Telemetry) *Wheels) []Field {
	return []Field{
		f32(name+".FrontLeft", off, func(t *Telemetry) *float32 { return &ref(t).FrontLeft }),
		f32(name+".FrontRight", off+4, func(t *Telemetry) *float32 { return &ref(t).FrontRight }),
		f32(name+".RearLeft", off+8, func(t *Telemetry) *float32 { return &ref(t).RearLeft }),
		f32(name+".RearRight", off+12, func(t *Telemetry) *float32 { return &ref(t).RearRight }),
	}
}

func wheelFlags(name string, off int, ref func(t *Telemetry) *WheelFlags) []Field {
	return []Field{
		i32(name+".FrontLeft", off, func(t *Telemetry) *int32 { return &ref(t).FrontLeft }),
		i32(name+".FrontRight", off+4, func(t *Telemetry) *int32 { return &ref(t).FrontRight }),
		i32(name+".RearLeft", off+8, func(t *Telemetry) *int32 { return &ref(t).RearLeft }),
		i32(name+".RearRight", off+12, func(t *Telemetry) *int32 { return &ref(t).RearRight }),
	}
}

func join(groups ...[]Field) []Field {
	var fields []Field
	for _, g := range groups {
		fields = append(fields, g...)
	}
	return fields
}

// shift moves every field at or after from by delta bytes.
func shift(fields []Field, from, delta int) []Field {
	out := make([]Field, len(fields))
	for i, f := range fields {
		if f.Offset >= from {
			f.Offset += delta
		}
		out[i] = f
	}
	return out
}

// dashFields is the data-out "dash" packet.
var dashFields = join(
	[]Field{
		i32("IsRaceOn", 0, func(t *Telemetry) *int32 { return &t.IsRaceOn }),
		u32("TimestampMS", 4, func(t *Telemetry) *uint32 { return &t.TimestampMS }),
		f32("EngineRPM.Max", 8, func(t *Telemetry) *float32 { return &t.EngineRPM.Max }),
		f32("EngineRPM.Idle", 12, func(t *Telemetry) *float32 { return &t.EngineRPM.Idle }),
		f32("EngineRPM.Current", 16, func(t *Telemetry) *float32 { return &t.EngineRPM.Current }),
	},
	vec3("Acceleration", 20, func(t *Telemetry) *Vector3 { return &t.Acceleration }),
	vec3("Velocity", 32, func(t *Telemetry) *Vector3 { return &t.Velocity }),
	vec3("AngularVelocity", 44, func(t *Telemetry) *Vector3 { return &t.AngularVelocity }),
	[]Field{
		f32("Yaw", 56, func(t *Telemetry) *float32 { return &t.Yaw }),
		f32("Pitch", 60, func(t *Telemetry) *float32 { return &t.Pitch }),
		f32("Roll", 64, func(t *Telemetry) *float32 { return &t.Roll }),
	},
	wheels("NormalizedSuspensionTravel", 68, func(t *Telemetry) *Wheels { return &t.NormalizedSuspensionTravel }),
	wheels("TireSlipRatio", 84, func(t *Telemetry) *Wheels { return &t.TireSlipRatio }),
	wheels("WheelRotationSpeed", 100, func(t *Telemetry) *Wheels { return &t.WheelRotationSpeed }),
	wheelFlags("WheelOnRumbleStrip", 116, func(t *Telemetry) *WheelFlags { return &t.WheelOnRumbleStrip }),
	wheels("WheelInPuddleDepth", 132, func(t *Telemetry) *Wheels { return &t.WheelInPuddleDepth }),
	wheels("SurfaceRumble", 148, func(t *Telemetry) *Wheels { return &t.SurfaceRumble }),
	wheels("TireSlipAngle", 164, func(t *Telemetry) *Wheels { return &t.TireSlipAngle }),
	wheels("TireCombinedSlip", 180, func(t *Telemetry) *Wheels { return &t.TireCombinedSlip }),
	wheels("SuspensionTravel", 196, func(t *Telemetry) *Wheels { return &t.SuspensionTravel }),
	[]Field{
		i32("Car.Ordinal", 212, func(t *Telemetry) *int32 { return &t.Car.Ordinal }),
		i32("Car.Class", 216, func(t *Telemetry) *int32 { return &t.Car.Class }),
		i32("Car.PI", 220, func(t *Telemetry) *int32 { return &t.Car.PI }),
		i32("Car.DrivetrainType", 224, func(t *Telemetry) *int32 { return &t.Car.DrivetrainType }),
		i32("Car.NumCylinders", 228, func(t *Telemetry) *int32 { return &t.Car.NumCylinders }),
		f32("Car.PositionX", 232, func(t *Telemetry) *float32 { return &t.Car.PositionX }),
		f32("Car.PositionY", 236, func(t *Telemetry) *float32 { return &t.Car.PositionY }),
		f32("Car.PositionZ", 240, func(t *Telemetry) *float32 { return &t.Car.PositionZ }),
		f32("Car.Speed", 244, func(t *Telemetry) *float32 { return &t.Car.Speed }),
		f32("Car.Power", 248, func(t *Telemetry) *float32 { return &t.Car.Power }),
		f32("Car.Torque", 252, func(t *Telemetry) *float32 { return &t.Car.Torque }),
	},
	wheels("TireTemperature", 256, func(t *Telemetry) *Wheels { return &t.TireTemperature }),
	[]Field{
		f32("Car.Boost", 272, func(t *Telemetry) *float32 { return &t.Car.Boost }),
		f32("Car.Fuel", 276, func(t *Telemetry) *float32 { return &t.Car.Fuel }),
		f32("Car.DistanceTraveled", 280, func(t *Telemetry) *float32 { return &t.Car.DistanceTraveled }),
		f32("LapStats.BestLap", 284, func(t *Telemetry) *float32 { return &t.LapStats.BestLap }),
		f32("LapStats.LastLap", 288, func(t *Telemetry) *float32 { return &t.LapStats.LastLap }),
		f32("LapStats.CurrentLap", 292, func(t *Telemetry) *float32 { return &t.LapStats.CurrentLap }),
		f32("LapStats.CurrentRaceTime", 296, func(t *Telemetry) *float32 { return &t.LapStats.CurrentRaceTime }),
		u16("LapStats.LapNumber", 300, func(t *Telemetry) *uint16 { return &t.LapStats.LapNumber }),
		u8("RacePosition", 302, func(t *Telemetry) *uint8 { return &t.RacePosition }),
		u8("Accel", 303, func(t *Telemetry) *uint8 { return &t.Accel }),
		u8("Brake", 304, func(t *Telemetry) *uint8 { return &t.Brake }),
		u8("Clutch", 305, func(t *Telemetry) *uint8 { return &t.Clutch }),
		u8("Handbrake", 306, func(t *Telemetry) *uint8 { return &t.Handbrake }),
		u8("Gear", 307, func(t *Telemetry) *uint8 { return &t.Gear }),
		i8("Steer", 308, func(t *Telemetry) *int8 { return &t.Steer }),
	},
)

const (
	// MinPacketSize is the shortest packet DashLayout decodes.
	MinPacketSize = 309

	// horizon packets carry 12 extra bytes after NumCylinders
	horizonGapOffset = 232
	horizonGapSize   = 12
)

var (
	DashLayout    = mustLayout("dash", dashFields)
	HorizonLayout = mustLayout("horizon", shift(dashFields, horizonGapOffset, horizonGapSize))
)

// LayoutByName returns one of the built-in layouts.
func LayoutByName(name string) (*Layout, error) {
	switch name {
	case "", DashLayout.name:
		return DashLayout, nil
	case HorizonLayout.name:
		return HorizonLayout, nil
	}
	return nil, errors.Errorf("unknown packet layout %q", name)
}

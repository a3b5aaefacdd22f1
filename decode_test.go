package juicer

import (
	"encoding/binary"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// bitwise float comparison so random NaN payloads compare equal
var sameBits = cmp.Comparer(func(a, b float32) bool {
	return math.Float32bits(a) == math.Float32bits(b)
})

// manualDecode reads a dash packet field by field at the documented
// offsets, independently of the layout table.
func manualDecode(b []byte) Telemetry {
	le := binary.LittleEndian
	i32 := func(off int) int32 { return int32(le.Uint32(b[off:])) }
	f32 := func(off int) float32 { return math.Float32frombits(le.Uint32(b[off:])) }
	vec := func(off int) Vector3 { return Vector3{f32(off), f32(off + 4), f32(off + 8)} }
	four := func(off int) Wheels { return Wheels{f32(off), f32(off + 4), f32(off + 8), f32(off + 12)} }

	return Telemetry{
		IsRaceOn:    i32(0),
		TimestampMS: le.Uint32(b[4:]),
		EngineRPM: EngineRPM{
			Idle:    f32(12),
			Max:     f32(8),
			Current: f32(16),
		},
		Acceleration:               vec(20),
		Velocity:                   vec(32),
		AngularVelocity:            vec(44),
		Yaw:                        f32(56),
		Pitch:                      f32(60),
		Roll:                       f32(64),
		NormalizedSuspensionTravel: four(68),
		TireSlipRatio:              four(84),
		WheelRotationSpeed:         four(100),
		WheelOnRumbleStrip:         WheelFlags{i32(116), i32(120), i32(124), i32(128)},
		WheelInPuddleDepth:         four(132),
		SurfaceRumble:              four(148),
		TireSlipAngle:              four(164),
		TireCombinedSlip:           four(180),
		SuspensionTravel:           four(196),
		Car: Car{
			Ordinal:          i32(212),
			Class:            i32(216),
			PI:               i32(220),
			DrivetrainType:   i32(224),
			NumCylinders:     i32(228),
			PositionX:        f32(232),
			PositionY:        f32(236),
			PositionZ:        f32(240),
			Speed:            f32(244),
			Power:            f32(248),
			Torque:           f32(252),
			Boost:            f32(272),
			Fuel:             f32(276),
			DistanceTraveled: f32(280),
		},
		TireTemperature: four(256),
		LapStats: LapStats{
			BestLap:         f32(284),
			LastLap:         f32(288),
			CurrentLap:      f32(292),
			CurrentRaceTime: f32(296),
			LapNumber:       le.Uint16(b[300:]),
		},
		RacePosition: b[302],
		Accel:        b[303],
		Brake:        b[304],
		Clutch:       b[305],
		Handbrake:    b[306],
		Gear:         b[307],
		Steer:        int8(b[308]),
	}
}

func randomPacket(r *rand.Rand, n int) []byte {
	buf := make([]byte, n)
	r.Read(buf)
	return buf
}

func TestDecodeMatchesManualInterpretation(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		buf := randomPacket(r, MinPacketSize+r.Intn(64))
		got, err := Decode(buf)
		require.NoError(t, err)
		if diff := cmp.Diff(manualDecode(buf), got, sameBits); diff != "" {
			t.Fatalf("decode mismatch for packet %d (-want +got):\n%s", i, diff)
		}
	}
}

func TestDecodeIdempotent(t *testing.T) {
	buf := randomPacket(rand.New(rand.NewSource(2)), MinPacketSize)
	first, err := Decode(buf)
	require.NoError(t, err)
	second, err := Decode(buf)
	require.NoError(t, err)
	assert.True(t, cmp.Equal(first, second, sameBits))
}

func TestDecodeTooShort(t *testing.T) {
	for n := 0; n < MinPacketSize; n++ {
		got, err := Decode(make([]byte, n))
		require.Error(t, err, "length %d", n)
		assert.True(t, errors.Is(err, ErrTooShort), "length %d: %v", n, err)
		assert.Equal(t, Telemetry{}, got)
	}
}

func TestDecodeOneByteShort(t *testing.T) {
	buf := make([]byte, MinPacketSize-1)
	for i := range buf {
		buf[i] = 0xff
	}
	got, err := Decode(buf)
	assert.Equal(t, ErrTooShort, errors.Cause(err))
	assert.Contains(t, err.Error(), "needs 309 bytes, got 308")
	assert.Equal(t, Telemetry{}, got)
}

func TestDecodeZero(t *testing.T) {
	got, err := Decode(make([]byte, MinPacketSize))
	require.NoError(t, err)
	assert.Equal(t, Telemetry{}, got)
}

func TestDecodeSteerSigned(t *testing.T) {
	buf := make([]byte, MinPacketSize)
	buf[308] = 0xff
	got, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, Telemetry{Steer: -1}, got)
}

func TestDecodeIsRaceOnKeepsWireValue(t *testing.T) {
	buf := make([]byte, MinPacketSize)
	buf[0], buf[1], buf[2], buf[3] = 0xff, 0xff, 0xff, 0xff
	got, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, int32(-1), got.IsRaceOn)
	assert.Equal(t, Telemetry{IsRaceOn: -1}, got)
}

func TestDecodeWidths(t *testing.T) {
	buf := make([]byte, MinPacketSize)
	binary.LittleEndian.PutUint32(buf[4:], 0xfffffffe)
	binary.LittleEndian.PutUint16(buf[300:], 0xfffe)
	buf[302] = 0xfd
	binary.LittleEndian.PutUint32(buf[244:], math.Float32bits(-12.5))
	binary.LittleEndian.PutUint32(buf[120:], 0x80000000)

	got, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xfffffffe), got.TimestampMS)
	assert.Equal(t, uint16(0xfffe), got.LapStats.LapNumber)
	assert.Equal(t, uint8(0xfd), got.RacePosition)
	assert.Equal(t, float32(-12.5), got.Car.Speed)
	assert.Equal(t, int32(math.MinInt32), got.WheelOnRumbleStrip.FrontRight)
}

func TestDecodeIgnoresTrailingBytes(t *testing.T) {
	buf := make([]byte, 324)
	for i := MinPacketSize; i < len(buf); i++ {
		buf[i] = 0xaa
	}
	got, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, Telemetry{}, got)
}

func TestCornerOrder(t *testing.T) {
	buf := make([]byte, MinPacketSize)
	// tire temperatures 4, 3, 2, 1 on the wire
	for i, v := range []float32{4, 3, 2, 1} {
		binary.LittleEndian.PutUint32(buf[256+i*4:], math.Float32bits(v))
	}
	for i, v := range []int32{10, 20, 30, 40} {
		binary.LittleEndian.PutUint32(buf[116+i*4:], uint32(v))
	}

	got, err := Decode(buf)
	require.NoError(t, err)
	assert.Equal(t, [4]float32{4, 3, 2, 1}, got.TireTemperature.Corners())
	assert.Equal(t, float32(4), got.TireTemperature.FrontLeft)
	assert.Equal(t, float32(1), got.TireTemperature.RearRight)
	assert.Equal(t, [4]int32{10, 20, 30, 40}, got.WheelOnRumbleStrip.Corners())
}

func TestEncodeDecode(t *testing.T) {
	telem := Telemetry{
		IsRaceOn:    1,
		TimestampMS: 123456,
		EngineRPM:   EngineRPM{Idle: 850, Max: 7800, Current: 4321.5},
		Velocity:    Vector3{X: 1, Y: -2, Z: 3},
		TireSlipAngle: Wheels{
			FrontLeft:  0.1,
			FrontRight: 0.2,
			RearLeft:   0.3,
			RearRight:  0.4,
		},
		WheelOnRumbleStrip: WheelFlags{RearLeft: 1},
		Car:                Car{Ordinal: 2352, PI: 800, Fuel: 0.75},
		LapStats:           LapStats{LapNumber: 4, BestLap: 88.125},
		Brake:              200,
		Gear:               5,
		Steer:              -127,
	}

	for _, l := range []*Layout{DashLayout, HorizonLayout} {
		buf := l.Encode(&telem)
		assert.Len(t, buf, l.Size(), l.Name())
		got, err := l.Decode(buf)
		require.NoError(t, err, l.Name())
		assert.Equal(t, telem, got, l.Name())
	}
}

func TestHorizonLayout(t *testing.T) {
	dash := randomPacket(rand.New(rand.NewSource(3)), MinPacketSize)

	// horizon packets have 12 extra bytes after NumCylinders
	horizon := make([]byte, 0, HorizonLayout.Size())
	horizon = append(horizon, dash[:232]...)
	horizon = append(horizon, make([]byte, 12)...)
	horizon = append(horizon, dash[232:]...)

	want, err := DashLayout.Decode(dash)
	require.NoError(t, err)
	got, err := HorizonLayout.Decode(horizon)
	require.NoError(t, err)
	assert.True(t, cmp.Equal(want, got, sameBits), cmp.Diff(want, got, sameBits))

	_, err = HorizonLayout.Decode(dash)
	assert.True(t, errors.Is(err, ErrTooShort))
}

package juicer

// Telemetry is one decoded data-out packet. It is a plain value: decoding
// always produces a new one and nothing mutates it afterwards.
type Telemetry struct {
	// IsRaceOn is kept as the wire integer, 1 while racing and 0 in menus.
	IsRaceOn    int32
	TimestampMS uint32

	EngineRPM EngineRPM

	Acceleration    Vector3
	Velocity        Vector3
	AngularVelocity Vector3

	Yaw   float32
	Pitch float32
	Roll  float32

	NormalizedSuspensionTravel Wheels
	TireSlipRatio              Wheels
	WheelRotationSpeed         Wheels
	WheelOnRumbleStrip         WheelFlags
	WheelInPuddleDepth         Wheels
	SurfaceRumble              Wheels
	TireSlipAngle              Wheels
	TireCombinedSlip           Wheels
	SuspensionTravel           Wheels

	Car             Car
	TireTemperature Wheels
	LapStats        LapStats

	RacePosition uint8
	Accel        uint8
	Brake        uint8
	Clutch       uint8
	Handbrake    uint8
	Gear         uint8
	Steer        int8
}

type EngineRPM struct {
	Idle    float32
	Max     float32
	Current float32
}

type Vector3 struct {
	X float32
	Y float32
	Z float32
}

// Wheels holds one float per corner.
type Wheels struct {
	FrontLeft  float32
	FrontRight float32
	RearLeft   float32
	RearRight  float32
}

// Corners returns the values as FrontLeft, FrontRight, RearLeft, RearRight.
func (w Wheels) Corners() [4]float32 {
	return [4]float32{w.FrontLeft, w.FrontRight, w.RearLeft, w.RearRight}
}

// WheelFlags holds one integer flag per corner.
type WheelFlags struct {
	FrontLeft  int32
	FrontRight int32
	RearLeft   int32
	RearRight  int32
}

func (w WheelFlags) Corners() [4]int32 {
	return [4]int32{w.FrontLeft, w.FrontRight, w.RearLeft, w.RearRight}
}

type Car struct {
	Ordinal        int32
	Class          int32
	PI             int32
	DrivetrainType int32
	NumCylinders   int32

	PositionX float32
	PositionY float32
	PositionZ float32

	// Speed is in metres per second.
	Speed            float32
	Power            float32
	Torque           float32
	Boost            float32
	Fuel             float32
	DistanceTraveled float32
}

type LapStats struct {
	BestLap         float32
	LastLap         float32
	CurrentLap      float32
	CurrentRaceTime float32
	LapNumber       uint16
}

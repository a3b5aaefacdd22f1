package juicer

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"
)

// data-out sends at 60Hz
const testModeInterval = time.Second / 60

// nextTestTelemetry advances a synthetic lap: RPM sweeps between idle and
// max, speed follows RPM and the gear shifts every 2000 RPM band.
func nextTestTelemetry(t Telemetry, down bool) (Telemetry, bool) {
	t.IsRaceOn = 1
	t.TimestampMS += uint32(testModeInterval / time.Millisecond)
	t.EngineRPM.Idle = 800
	t.EngineRPM.Max = 8000

	if down {
		t.EngineRPM.Current -= 50
	} else {
		t.EngineRPM.Current += 50
	}
	if t.EngineRPM.Current >= t.EngineRPM.Max {
		t.EngineRPM.Current = t.EngineRPM.Max
		down = true
	} else if t.EngineRPM.Current <= t.EngineRPM.Idle {
		t.EngineRPM.Current = t.EngineRPM.Idle
		down = false
	}

	t.Gear = uint8(t.EngineRPM.Current/2000) + 1
	t.Car.Speed = t.EngineRPM.Current / 100
	t.Car.DistanceTraveled += t.Car.Speed * float32(testModeInterval.Seconds())
	t.Accel = uint8(t.EngineRPM.Current / t.EngineRPM.Max * 255)
	t.LapStats.CurrentLap += float32(testModeInterval.Seconds())
	t.LapStats.CurrentRaceTime += float32(testModeInterval.Seconds())
	t.LapStats.LapNumber = uint16(t.Car.DistanceTraveled / 5000)
	t.TireTemperature = Wheels{
		FrontLeft:  180,
		FrontRight: 181,
		RearLeft:   175,
		RearRight:  176,
	}
	return t, down
}

// runTestMode feeds encoded synthetic packets through HandlePacket so the
// whole decode path is exercised.
func (jc *Juicer) runTestMode(ctx context.Context) {
	log.Info("test mode enabled, generating telemetry")
	go func() {
		ticker := time.NewTicker(testModeInterval)
		defer ticker.Stop()

		t := Telemetry{}
		down := false
		for {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
			t, down = nextTestTelemetry(t, down)
			if err := jc.HandlePacket(jc.layout.Encode(&t)); err != nil {
				log.WithError(err).Warn("unable to handle test packet")
			}
		}
	}()
}

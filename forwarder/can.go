package forwarder

import (
	"context"
	"math"

	juicer "github.com/jd3nn1s/forzajuicer"
	"github.com/jd3nn1s/forzajuicer/config"
	"github.com/pkg/errors"
)

// CANForwarder drives a CAN bus dash with speed, RPM and gear. A frame is
// sent only when the value differs from the last one the dash accepted, so
// a failed send is retried with the next record.
type CANForwarder struct {
	sender juicer.MetricSender
	queue  *queue

	speed dashValue
	rpm   dashValue
	gear  dashValue
}

type dashValue struct {
	value int
	valid bool
}

func (d *dashValue) update(value int, send func(int) error) error {
	if d.valid && d.value == value {
		return nil
	}
	if err := send(value); err != nil {
		d.valid = false
		return err
	}
	d.value = value
	d.valid = true
	return nil
}

func NewCANForwarder(cfg config.CAN, sender juicer.MetricSender) *CANForwarder {
	return &CANForwarder{
		sender: sender,
		queue:  newQueue("can", config.Interval(cfg.IntervalMS)),
	}
}

func speedKPH(t *juicer.Telemetry) int {
	return int(math.Round(float64(t.Car.Speed) * 3.6))
}

func (fwd *CANForwarder) Forward(newTelemetry *juicer.Telemetry, prevTelemetry *juicer.Telemetry) error {
	fwd.queue.offer(newTelemetry)
	return nil
}

func (fwd *CANForwarder) Start(ctx context.Context) error {
	return fwd.queue.run(ctx, fwd.send)
}

func (fwd *CANForwarder) send(t *juicer.Telemetry) error {
	if fwd.sender == nil {
		return errors.New("canbus is not initialized")
	}
	var firstErr error
	keep := func(err error, what string) {
		if err != nil && firstErr == nil {
			firstErr = errors.Wrapf(err, "unable to send %s to CAN bus", what)
		}
	}
	keep(fwd.speed.update(speedKPH(t), fwd.sender.SendSpeed), "speed")
	keep(fwd.rpm.update(int(t.EngineRPM.Current), fwd.sender.SendRPM), "rpm")
	keep(fwd.gear.update(int(t.Gear), fwd.sender.SendGear), "gear")
	return firstErr
}

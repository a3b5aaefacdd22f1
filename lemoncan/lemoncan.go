package lemoncan

import (
	"encoding/binary"

	"github.com/brutella/can"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const (
	frameSpeed uint32 = 0x103
	frameRPM   uint32 = 0x104
	frameGear  uint32 = 0x105
)

type CANBus interface {
	Disconnect() error
	Publish(can.Frame) error
}

// Connection sends dash frames to a socketcan interface.
type Connection struct {
	bus CANBus
}

// to allow testing
var newBus = func(portName string) (CANBus, error) {
	return can.NewBusForInterfaceWithName(portName)
}

func Connect(portName string) (*Connection, error) {
	bus, err := newBus(portName)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open can interface %s", portName)
	}
	log.WithField("interface", portName).Info("CAN bus opened")
	return &Connection{
		bus: bus,
	}, nil
}

func (c *Connection) Close() error {
	if c.bus == nil {
		return errors.New("can bus not connected")
	}
	return c.bus.Disconnect()
}

// SendSpeed publishes speed in km/h, clamped to one byte.
func (c *Connection) SendSpeed(speed int) error {
	log.WithField("speed", speed).Debug("sending speed over canbus")
	return c.publish(frameSpeed, []byte{clampUint8(speed)})
}

func (c *Connection) SendRPM(rpm int) error {
	if rpm < 0 {
		rpm = 0
	} else if rpm > 0xffff {
		rpm = 0xffff
	}
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, uint16(rpm))
	log.WithField("rpm", rpm).Debug("sending rpm over canbus")
	return c.publish(frameRPM, buf)
}

// SendGear publishes the gear as reported by the game, 0 being reverse.
func (c *Connection) SendGear(gear int) error {
	log.WithField("gear", gear).Debug("sending gear over canbus")
	return c.publish(frameGear, []byte{clampUint8(gear)})
}

func (c *Connection) publish(id uint32, data []byte) error {
	if c.bus == nil {
		return errors.New("can bus not connected")
	}
	f := can.Frame{
		ID:     id,
		Length: uint8(len(data)),
	}
	copy(f.Data[:], data)
	return c.bus.Publish(f)
}

func clampUint8(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 0xff {
		return 0xff
	}
	return uint8(v)
}

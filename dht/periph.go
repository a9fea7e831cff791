package dht

import (
	"fmt"

	"github.com/prometheus/common/log"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"
)

// HostInit calls periph.io host.Init(). This needs to be done before a
// PeriphPin can be used.
func HostInit() error {
	state, err := host.Init()
	if err != nil {
		return fmt.Errorf("host init: %w", err)
	}
	for _, driver := range state.Loaded {
		log.Debugf("periph driver loaded: %s", driver)
	}
	for _, failure := range state.Skipped {
		log.Debugf("periph driver skipped: %s: %s", failure.D, failure.Err)
	}
	// having drivers failing to load may not require process termination
	for _, failure := range state.Failed {
		log.Warnf("periph driver failed to load: %s: %v", failure.D, failure.Err)
	}
	return nil
}

// PeriphPin drives the data line through a periph.io GPIO.
type PeriphPin struct {
	pin   gpio.PinIO
	level gpio.Level
}

// NewPeriphPin wraps pin and sets it high so it is ready for the first read.
func NewPeriphPin(pin gpio.PinIO) (*PeriphPin, error) {
	if pin == nil {
		return nil, fmt.Errorf("pin is nil")
	}
	p := &PeriphPin{pin: pin, level: gpio.High}
	if err := pin.Out(gpio.High); err != nil {
		return nil, fmt.Errorf("pin out high error: %w", err)
	}
	return p, nil
}

// PeriphPinByName looks the pin up in the periph.io registry, e.g. "GPIO4" or "P1_7".
func PeriphPinByName(name string) (*PeriphPin, error) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("pin %q not found", name)
	}
	return NewPeriphPin(pin)
}

// SetMode implements Pin.
func (p *PeriphPin) SetMode(mode Mode) {
	var err error
	switch mode {
	case Output:
		err = p.pin.Out(p.level)
	case Input:
		err = p.pin.In(gpio.Float, gpio.NoEdge)
	case InputPullUp:
		err = p.pin.In(gpio.PullUp, gpio.NoEdge)
	}
	if err != nil {
		log.Errorf("pin %s mode %v error: %v", p.pin.Name(), mode, err)
	}
}

// Write implements Pin.
func (p *PeriphPin) Write(level Level) {
	p.level = gpio.Level(level)
	if err := p.pin.Out(p.level); err != nil {
		log.Errorf("pin %s out %v error: %v", p.pin.Name(), level, err)
	}
}

// Read implements Pin.
func (p *PeriphPin) Read() Level {
	return Level(p.pin.Read())
}

// String returns the periph.io pin name.
func (p *PeriphPin) String() string {
	return p.pin.Name()
}

package dht

import (
	"fmt"

	"github.com/kidoman/embd"
	_ "github.com/kidoman/embd/host/all" // register supported boards
	"github.com/prometheus/common/log"
)

// EmbdPin drives the data line through an embd digital pin.
// embd reads go through sysfs, which is slow; expect more Timeout results
// than with PeriphPin on older boards.
type EmbdPin struct {
	pin   embd.DigitalPin
	level Level
}

// NewEmbdPin initialises embd GPIO and opens the pin identified by key
// (a pin number or a name such as "GPIO_4").
func NewEmbdPin(key interface{}) (*EmbdPin, error) {
	if err := embd.InitGPIO(); err != nil {
		return nil, fmt.Errorf("embd init gpio: %w", err)
	}
	pin, err := embd.NewDigitalPin(key)
	if err != nil {
		return nil, fmt.Errorf("embd pin %v: %w", key, err)
	}
	return WrapEmbdPin(pin)
}

// WrapEmbdPin wraps an already opened pin and drives it high.
func WrapEmbdPin(pin embd.DigitalPin) (*EmbdPin, error) {
	p := &EmbdPin{pin: pin, level: High}
	if err := pin.SetDirection(embd.Out); err != nil {
		return nil, fmt.Errorf("pin direction error: %w", err)
	}
	if err := pin.Write(embd.High); err != nil {
		return nil, fmt.Errorf("pin out high error: %w", err)
	}
	return p, nil
}

// SetMode implements Pin.
func (p *EmbdPin) SetMode(mode Mode) {
	var err error
	switch mode {
	case Output:
		if err = p.pin.SetDirection(embd.Out); err == nil {
			err = p.pin.Write(embdLevel(p.level))
		}
	case Input:
		err = p.pin.SetDirection(embd.In)
	case InputPullUp:
		if err = p.pin.SetDirection(embd.In); err == nil {
			err = p.pin.PullUp()
		}
	}
	if err != nil {
		log.Errorf("pin %d mode %v error: %v", p.pin.N(), mode, err)
	}
}

// Write implements Pin.
func (p *EmbdPin) Write(level Level) {
	p.level = level
	if err := p.pin.Write(embdLevel(level)); err != nil {
		log.Errorf("pin %d out %v error: %v", p.pin.N(), level, err)
	}
}

// Read implements Pin. A failed read reports High, the idle level of the bus.
func (p *EmbdPin) Read() Level {
	v, err := p.pin.Read()
	if err != nil {
		log.Errorf("pin %d read error: %v", p.pin.N(), err)
		return High
	}
	return v == embd.High
}

// Close releases the pin and embd GPIO.
func (p *EmbdPin) Close() error {
	if err := p.pin.Close(); err != nil {
		return err
	}
	return embd.CloseGPIO()
}

func embdLevel(level Level) int {
	if level {
		return embd.High
	}
	return embd.Low
}

package dht

import "time"

// Level is the logic level of the data line.
type Level bool

const (
	// Low level
	Low Level = false
	// High level
	High Level = true
)

func (l Level) String() string {
	if l {
		return "High"
	}
	return "Low"
}

// Mode is the direction of the data pin.
type Mode int

const (
	// Output drives the line.
	Output Mode = iota
	// Input floats the line.
	Input
	// InputPullUp releases the line to the pull-up resistor.
	InputPullUp
)

func (m Mode) String() string {
	switch m {
	case Output:
		return "Output"
	case Input:
		return "Input"
	case InputPullUp:
		return "InputPullUp"
	}
	return "Mode(?)"
}

// Pin is the single-wire data line.
// Implementations must be cheap to call: Read is polled in a tight loop.
type Pin interface {
	SetMode(mode Mode)
	Write(level Level)
	Read() Level
}

// Clock supplies the microsecond counter used for edge timing and the
// blocking delays of the protocol.
type Clock interface {
	// NowMicros returns a free running counter that may wrap around.
	NowMicros() uint32
	Sleep(d time.Duration)
}

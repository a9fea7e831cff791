// Package dhtsim simulates a DHT11 on the far end of the data line.
//
// A Sensor implements both dht.Pin and dht.Clock. Its clock is virtual: every
// NowMicros call advances it by one microsecond and Sleep advances it by the
// requested duration, so a read that takes ~23 ms on hardware completes
// instantly and identically every time. The sensor reacts to the host's
// start signal and then replays queued frames bit by bit with the nominal
// data sheet timing.
package dhtsim

import (
	"time"

	"github.com/blesswinsamuel/dht11_exporter/dht"
)

// State of the simulated sensor.
type State int

const (
	Inactive State = iota
	HostHoldsLow
	AwaitingResponse
	SensorHoldsLow
	SensorHoldsHigh
	BetweenBits
	InBit
	Stalled
)

var stateNames = [...]string{
	Inactive:         "Inactive",
	HostHoldsLow:     "HostHoldsLow",
	AwaitingResponse: "AwaitingResponse",
	SensorHoldsLow:   "SensorHoldsLow",
	SensorHoldsHigh:  "SensorHoldsHigh",
	BetweenBits:      "BetweenBits",
	InBit:            "InBit",
	Stalled:          "Stalled",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "State(?)"
	}
	return stateNames[s]
}

// Sensor timing in microseconds.
const (
	MinRequestUs  = 18000
	HoldLowUs     = 80
	HoldHighUs    = 80
	BetweenBitsUs = 50
	ZeroBitUs     = 27
	OneBitUs      = 70

	DefaultResponseLatencyUs = 20
)

const frameBits = dht.FrameSize * 8

// Sensor is a simulated DHT11 and its clock.
type Sensor struct {
	// ResponseLatencyUs is the delay between the host releasing the line and
	// the sensor pulling it low.
	ResponseLatencyUs uint32
	// Silent sensors never answer the start signal.
	Silent bool
	// StallIn freezes the line in one protocol phase. SensorHoldsLow and
	// SensorHoldsHigh hang the handshake; BetweenBits holds the line low and
	// InBit holds it high once StallBit bits of a frame have been sent.
	// Inactive, the zero value, never stalls.
	StallIn  State
	StallBit int
	// ZeroWidthUs and OneWidthUs are the high pulse lengths of the two bit values.
	ZeroWidthUs uint32
	OneWidthUs  uint32
	// Repeat replays the queued frames from the start once they run out.
	// Otherwise the sensor stops answering.
	Repeat bool

	mode       dht.Mode
	level      dht.Level
	micros     uint32
	lastChange uint32
	state      State

	bits       []bool
	bitNo      int
	frameStart int
	frameSent  int
	frames     int
	calls      int
}

// New returns an idle sensor with the line pulled high that will send frames in order.
func New(frames ...dht.Frame) *Sensor {
	s := &Sensor{
		ResponseLatencyUs: DefaultResponseLatencyUs,
		ZeroWidthUs:       ZeroBitUs,
		OneWidthUs:        OneBitUs,
		mode:              dht.Input,
		level:             dht.High,
	}
	s.Queue(frames...)
	return s
}

// Queue appends frames to send, most significant bit of each byte first.
func (s *Sensor) Queue(frames ...dht.Frame) {
	for _, f := range frames {
		for _, b := range f {
			for bit := 7; bit >= 0; bit-- {
				s.bits = append(s.bits, b&(1<<uint(bit)) != 0)
			}
		}
	}
}

// QueueBits appends raw bits. A partial frame makes the sensor go quiet
// after the last bit.
func (s *Sensor) QueueBits(bits ...bool) {
	s.bits = append(s.bits, bits...)
}

// SetClock moves the virtual clock, e.g. close to wraparound.
func (s *Sensor) SetClock(micros uint32) {
	s.micros = micros
	s.lastChange = micros
}

// State returns the current protocol state.
func (s *Sensor) State() State { return s.state }

// Calls returns the number of Pin and Clock calls made so far.
func (s *Sensor) Calls() int { return s.calls }

// Micros returns the virtual clock without advancing it.
func (s *Sensor) Micros() uint32 { return s.micros }

// FramesSent returns the number of complete frames sent.
func (s *Sensor) FramesSent() int { return s.frames }

// SetMode implements dht.Pin.
func (s *Sensor) SetMode(mode dht.Mode) {
	s.calls++
	s.mode = mode
	if mode == dht.InputPullUp {
		s.level = dht.High
	}
	s.update()
}

// Write implements dht.Pin. Writes are ignored unless the pin is an output.
func (s *Sensor) Write(level dht.Level) {
	s.calls++
	if s.mode == dht.Output {
		s.level = level
	}
	s.update()
}

// Read implements dht.Pin.
func (s *Sensor) Read() dht.Level {
	s.calls++
	return s.level
}

// NowMicros implements dht.Clock. Each call advances the clock by 1us so
// polling loops make progress.
func (s *Sensor) NowMicros() uint32 {
	s.calls++
	s.micros++
	s.update()
	return s.micros
}

// Sleep implements dht.Clock by advancing the virtual clock.
func (s *Sensor) Sleep(d time.Duration) {
	s.calls++
	s.micros += uint32(d / time.Microsecond)
	s.update()
}

func (s *Sensor) setState(state State) {
	s.state = state
	s.lastChange = s.micros
}

func (s *Sensor) elapsed() uint32 {
	return s.micros - s.lastChange
}

func (s *Sensor) update() {
	switch s.state {
	case Inactive:
		if s.hostDrivesLow() {
			s.setState(HostHoldsLow)
		}
	case HostHoldsLow:
		if s.level == dht.High {
			if s.elapsed() >= MinRequestUs {
				s.setState(AwaitingResponse)
			} else {
				// released too early, not a request
				s.setState(Inactive)
			}
		}
	case AwaitingResponse:
		if s.hostDrivesLow() {
			s.setState(HostHoldsLow)
			return
		}
		if !s.Silent && s.elapsed() >= s.ResponseLatencyUs {
			s.level = dht.Low
			s.frameStart = s.bitNo
			s.setState(SensorHoldsLow)
		}
	case SensorHoldsLow:
		if s.StallIn == SensorHoldsLow {
			s.setState(Stalled)
			return
		}
		if s.elapsed() >= HoldLowUs {
			s.level = dht.High
			s.setState(SensorHoldsHigh)
		}
	case SensorHoldsHigh:
		if s.StallIn == SensorHoldsHigh {
			s.setState(Stalled)
			return
		}
		if s.elapsed() >= HoldHighUs {
			s.level = dht.Low
			s.setState(BetweenBits)
		}
	case BetweenBits:
		if s.frameSent == frameBits && s.hostDrivesLow() {
			// next request arrived before the trailing low ended
			s.frameSent = 0
			s.setState(HostHoldsLow)
			return
		}
		if s.elapsed() < BetweenBitsUs {
			return
		}
		if s.frameSent < frameBits && s.frameSent == s.StallBit && s.StallIn == BetweenBits {
			s.setState(Stalled)
			return
		}
		s.level = dht.High
		switch {
		case s.frameSent == frameBits:
			s.frameSent = 0
			s.setState(Inactive)
		case s.frameSent == s.StallBit && s.StallIn == InBit:
			s.setState(Stalled)
		case s.bitNo >= len(s.bits) && s.Repeat && len(s.bits) > 0:
			s.bitNo = 0
			s.setState(InBit)
		case s.bitNo >= len(s.bits):
			s.setState(Stalled)
		default:
			s.setState(InBit)
		}
	case InBit:
		width := s.ZeroWidthUs
		if s.bits[s.bitNo] {
			width = s.OneWidthUs
		}
		if s.elapsed() >= width {
			s.level = dht.Low
			s.bitNo++
			s.frameSent++
			if s.frameSent == frameBits {
				s.frames++
			}
			s.setState(BetweenBits)
		}
	case Stalled:
		if s.hostDrivesLow() {
			// abandon the frame and resend it on the next request
			s.bitNo = s.frameStart
			s.frameSent = 0
			s.setState(HostHoldsLow)
		}
	}
}

func (s *Sensor) hostDrivesLow() bool {
	return s.mode == dht.Output && s.level == dht.Low
}

package dht

import (
	"runtime/debug"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/prometheus/common/log"
)

// Protocol timing. Edge timeouts are in microseconds and are the nominal
// duration from the data sheet plus timeoutMargin.
const (
	// StartPulse is how long the host holds the line low to request a reading.
	StartPulse = 18 * time.Millisecond
	// MinSampleInterval is the shortest spacing between two reads the sensor tolerates.
	MinSampleInterval = 1500 * time.Millisecond

	timeoutMargin = 20

	responseLatencyTimeout   = 40 + timeoutMargin
	responseHalfWidthTimeout = 80 + timeoutMargin
	bitSeparationTimeout     = 50 + timeoutMargin
	bitDurationTimeout       = 70 + timeoutMargin

	// a high pulse longer than this is a 1 bit (26-28us is a 0, 70us is a 1)
	bitThreshold = 40
)

// DHT struct to interface with the sensor.
// Call NewDHT to create a new one.
//
// A DHT owns its pin for the duration of a read and is not safe for
// concurrent use.
type DHT struct {
	pin   Pin
	clock Clock
}

// NewDHT to create a new DHT struct reading through pin and timed by clock.
func NewDHT(pin Pin, clock Clock) *DHT {
	return &DHT{pin: pin, clock: clock}
}

// waitLevel polls the pin until it reads wantLevel. It returns false when
// more than timeout microseconds pass first.
func (dht *DHT) waitLevel(wantLevel Level, timeout uint32) bool {
	start := dht.clock.NowMicros()
	for dht.pin.Read() != wantLevel {
		// unsigned subtraction stays correct when the counter wraps
		if dht.clock.NowMicros()-start > timeout {
			return false
		}
	}
	return true
}

// readFrame sends the start signal and decodes the 40 bits that follow.
// The returned status is Success or Timeout.
func (dht *DHT) readFrame() (Frame, Status) {
	var frame Frame

	// disable garbage collection during critical timing part
	gcPercent := debug.SetGCPercent(-1)
	defer debug.SetGCPercent(gcPercent)

	// send start signal
	{
		dht.pin.SetMode(Output)
		dht.pin.Write(Low)
		dht.clock.Sleep(StartPulse)

		// release the bus, the sensor drives it from here on
		dht.pin.SetMode(InputPullUp)
	}

	// response: sensor pulls low, holds low 80us, holds high 80us
	if !dht.waitLevel(Low, responseLatencyTimeout) {
		return Frame{}, Timeout
	}
	if !dht.waitLevel(High, responseHalfWidthTimeout) {
		return Frame{}, Timeout
	}
	if !dht.waitLevel(Low, responseHalfWidthTimeout) {
		return Frame{}, Timeout
	}

	// data: every bit is 50us low followed by a high pulse whose length is the value
	for i := range frame {
		for bit := 7; bit >= 0; bit-- {
			if !dht.waitLevel(High, bitSeparationTimeout) {
				return Frame{}, Timeout
			}
			start := dht.clock.NowMicros()
			ok := dht.waitLevel(Low, bitDurationTimeout)
			end := dht.clock.NowMicros()
			if !ok {
				return Frame{}, Timeout
			}
			if end-start > bitThreshold {
				frame[i] |= 1 << uint(bit)
			}
		}
	}

	return frame, Success
}

// frameDump formats a frame for debug logs only when the logger asks for it.
type frameDump Frame

func (f frameDump) String() string {
	return spew.Sprintf("frame %v, calculated checksum %v", Frame(f), Frame(f).Checksum())
}

// ReadBlocking reads the sensor once. On Success humidity and temperature
// receive the Q8.8 encoded values; on any other status they are left alone.
// Callers must keep at least MinSampleInterval between reads.
func (dht *DHT) ReadBlocking(humidity, temperature *int16) Status {
	frame, status := dht.readFrame()
	if status != Success {
		log.Debugf("read frame: %v", status)
		return status
	}

	log.Debugf("%v", frameDump(frame))

	if status = frame.Status(); status != Success {
		return status
	}

	*humidity = frame.Humidity()
	*temperature = frame.Temperature()
	return Success
}

// ReadRetry will call ReadBlocking until it succeeds or maxRetries attempts
// were made, sleeping MinSampleInterval between attempts. It returns the
// number of extra attempts used and the status of the last one.
// Suggest maxRetries to be set around 11.
func (dht *DHT) ReadRetry(maxRetries int, humidity, temperature *int16) (retries int, status Status) {
	if maxRetries < 1 {
		return 0, BadParameter
	}
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			dht.clock.Sleep(MinSampleInterval)
		}
		retries = i
		status = dht.ReadBlocking(humidity, temperature)
		if status == Success {
			return
		}
		log.Warnf("read attempt %d of %d: %v", i+1, maxRetries, status)
	}
	return
}

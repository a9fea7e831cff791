package dht_test

import (
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blesswinsamuel/dht11_exporter/dht"
	"github.com/blesswinsamuel/dht11_exporter/dht/dhtsim"
)

const sentinel int16 = 1234

var (
	validFrame   = dht.Frame{255, 170, 146, 136, 195}
	flippedFrame = dht.Frame{255, 170, 147, 136, 195}
)

func newReader(frames ...dht.Frame) (*dht.DHT, *dhtsim.Sensor) {
	sensor := dhtsim.New(frames...)
	return dht.NewDHT(sensor, sensor), sensor
}

func TestReadBlocking_ValidChecksum(t *testing.T) {
	d, sensor := newReader(validFrame)

	humidity, temperature := sentinel, sentinel
	status := d.ReadBlocking(&humidity, &temperature)

	require.Equal(t, dht.Success, status)
	wantHumidity := uint16(0b1111111110101010)
	wantTemperature := uint16(0b1001001010001000)
	assert.Equal(t, int16(wantHumidity), humidity)
	assert.Equal(t, int16(wantTemperature), temperature)
	assert.Equal(t, 1, sensor.FramesSent())
}

func TestReadBlocking_WrongChecksum(t *testing.T) {
	d, _ := newReader(flippedFrame)

	humidity, temperature := sentinel, sentinel
	status := d.ReadBlocking(&humidity, &temperature)

	assert.Equal(t, dht.ChecksumError, status)
	assert.Equal(t, sentinel, humidity)
	assert.Equal(t, sentinel, temperature)
}

func TestReadBlocking_AllHigh(t *testing.T) {
	d, _ := newReader(dht.Frame{255, 255, 255, 255, 255})

	humidity, temperature := sentinel, sentinel
	status := d.ReadBlocking(&humidity, &temperature)

	assert.Equal(t, dht.ChecksumError, status)
	assert.Equal(t, sentinel, humidity)
	assert.Equal(t, sentinel, temperature)
}

func TestReadBlocking_AllLow(t *testing.T) {
	d, _ := newReader(dht.Frame{})

	humidity, temperature := sentinel, sentinel
	status := d.ReadBlocking(&humidity, &temperature)

	assert.Equal(t, dht.AllLow, status)
	assert.Equal(t, sentinel, humidity)
	assert.Equal(t, sentinel, temperature)
}

func TestReadBlocking_Frames(t *testing.T) {
	frames := []dht.Frame{
		dht.NewFrame(45, 0, 23, 0),
		dht.NewFrame(0, 1, 0, 0),
		dht.NewFrame(100, 9, 50, 9),
		dht.NewFrame(128, 0, 255, 128),
		dht.NewFrame(1, 2, 3, 4),
	}
	for _, frame := range frames {
		frame := frame
		t.Run(fmt.Sprint(frame), func(t *testing.T) {
			d, _ := newReader(frame)

			humidity, temperature := sentinel, sentinel
			status := d.ReadBlocking(&humidity, &temperature)

			require.Equal(t, dht.Success, status)
			assert.Equal(t, int16(uint16(frame[0])<<8|uint16(frame[1])), humidity)
			assert.Equal(t, int16(uint16(frame[2])<<8|uint16(frame[3])), temperature)
		})
	}
}

func TestReadBlocking_ResponseTimeout(t *testing.T) {
	d, sensor := newReader(validFrame)
	sensor.ResponseLatencyUs = 100

	humidity, temperature := sentinel, sentinel
	status := d.ReadBlocking(&humidity, &temperature)

	assert.Equal(t, dht.Timeout, status)
	assert.Equal(t, sentinel, humidity)
	assert.Equal(t, sentinel, temperature)
}

func TestReadBlocking_ResponseWithinMargin(t *testing.T) {
	d, sensor := newReader(validFrame)
	sensor.ResponseLatencyUs = 55

	var humidity, temperature int16
	assert.Equal(t, dht.Success, d.ReadBlocking(&humidity, &temperature))
}

func TestReadBlocking_SilentSensor(t *testing.T) {
	d, sensor := newReader(validFrame)
	sensor.Silent = true

	humidity, temperature := sentinel, sentinel
	status := d.ReadBlocking(&humidity, &temperature)

	assert.Equal(t, dht.Timeout, status)
	assert.Equal(t, sentinel, humidity)
	assert.Equal(t, sentinel, temperature)
	assert.Equal(t, dhtsim.AwaitingResponse, sensor.State())
}

func TestReadBlocking_HandshakeTimeout(t *testing.T) {
	for _, phase := range []dhtsim.State{dhtsim.SensorHoldsLow, dhtsim.SensorHoldsHigh} {
		phase := phase
		t.Run(phase.String(), func(t *testing.T) {
			d, sensor := newReader(validFrame)
			sensor.StallIn = phase

			humidity, temperature := sentinel, sentinel
			status := d.ReadBlocking(&humidity, &temperature)

			assert.Equal(t, dht.Timeout, status)
			assert.Equal(t, sentinel, humidity)
			assert.Equal(t, sentinel, temperature)
			assert.Equal(t, dhtsim.Stalled, sensor.State())
			assert.Zero(t, sensor.FramesSent())
		})
	}
}

func TestReadBlocking_BitRiseTimeout(t *testing.T) {
	for _, bit := range []int{0, 1, 8, 23, 39} {
		bit := bit
		t.Run(fmt.Sprintf("low before bit %d", bit), func(t *testing.T) {
			d, sensor := newReader(validFrame)
			sensor.StallIn = dhtsim.BetweenBits
			sensor.StallBit = bit

			humidity, temperature := sentinel, sentinel
			status := d.ReadBlocking(&humidity, &temperature)

			assert.Equal(t, dht.Timeout, status)
			assert.Equal(t, sentinel, humidity)
			assert.Equal(t, sentinel, temperature)
			assert.Equal(t, dhtsim.Stalled, sensor.State())
			assert.Equal(t, dht.Low, sensor.Read())
		})
	}
}

func TestReadBlocking_BitThreshold(t *testing.T) {
	frame := dht.NewFrame(45, 0, 23, 0)

	t.Run("40us is a zero", func(t *testing.T) {
		d, sensor := newReader(frame)
		sensor.ZeroWidthUs = 40
		sensor.OneWidthUs = 40

		humidity, temperature := sentinel, sentinel
		status := d.ReadBlocking(&humidity, &temperature)

		assert.Equal(t, dht.AllLow, status)
		assert.Equal(t, sentinel, humidity)
		assert.Equal(t, sentinel, temperature)
	})

	t.Run("41us is a one", func(t *testing.T) {
		d, sensor := newReader(frame)
		sensor.ZeroWidthUs = 40
		sensor.OneWidthUs = 41

		var humidity, temperature int16
		require.Equal(t, dht.Success, d.ReadBlocking(&humidity, &temperature))
		assert.Equal(t, frame.Humidity(), humidity)
		assert.Equal(t, frame.Temperature(), temperature)
	})
}

func TestReadBlocking_BitFallTimeout(t *testing.T) {
	for _, after := range []int{0, 1, 8, 17, 39} {
		after := after
		t.Run(fmt.Sprintf("high in bit %d", after), func(t *testing.T) {
			d, sensor := newReader(validFrame)
			sensor.StallIn = dhtsim.InBit
			sensor.StallBit = after

			humidity, temperature := sentinel, sentinel
			status := d.ReadBlocking(&humidity, &temperature)

			assert.Equal(t, dht.Timeout, status)
			assert.Equal(t, sentinel, humidity)
			assert.Equal(t, sentinel, temperature)
			assert.Equal(t, dhtsim.Stalled, sensor.State())
		})
	}
}

func TestReadBlocking_TruncatedFrame(t *testing.T) {
	sensor := dhtsim.New()
	sensor.QueueBits(true, false, true, true)
	d := dht.NewDHT(sensor, sensor)

	humidity, temperature := sentinel, sentinel
	status := d.ReadBlocking(&humidity, &temperature)

	assert.Equal(t, dht.Timeout, status)
	assert.Equal(t, sentinel, humidity)
}

func TestReadBlocking_StalledPartialFrameRepeated(t *testing.T) {
	sensor := dhtsim.New()
	sensor.QueueBits(true, false, true, true, false, false, true, false, true, true)
	sensor.Repeat = true
	sensor.StallIn = dhtsim.InBit
	sensor.StallBit = 15
	d := dht.NewDHT(sensor, sensor)

	for i := 0; i < 3; i++ {
		humidity, temperature := sentinel, sentinel
		require.NotPanics(t, func() {
			assert.Equal(t, dht.Timeout, d.ReadBlocking(&humidity, &temperature))
		})
		assert.Equal(t, sentinel, humidity)
		sensor.Sleep(dht.MinSampleInterval)
	}
}

func TestReadBlocking_RecoversAfterHandshakeStall(t *testing.T) {
	d, sensor := newReader(validFrame)
	sensor.StallIn = dhtsim.SensorHoldsHigh

	var humidity, temperature int16
	require.Equal(t, dht.Timeout, d.ReadBlocking(&humidity, &temperature))

	sensor.StallIn = dhtsim.Inactive
	sensor.Sleep(dht.MinSampleInterval)
	require.Equal(t, dht.Success, d.ReadBlocking(&humidity, &temperature))
	assert.Equal(t, validFrame.Humidity(), humidity)
	assert.Equal(t, 1, sensor.FramesSent())
}

func TestReadBlocking_ClockWraparound(t *testing.T) {
	// wraps during the start pulse
	d, sensor := newReader(validFrame)
	sensor.SetClock(math.MaxUint32 - 1000)

	var humidity, temperature int16
	require.Equal(t, dht.Success, d.ReadBlocking(&humidity, &temperature))
	assert.Equal(t, validFrame.Humidity(), humidity)

	// wraps in the middle of the data bits
	d, sensor = newReader(validFrame)
	sensor.SetClock(math.MaxUint32 - dhtsim.MinRequestUs - 1500)

	require.Equal(t, dht.Success, d.ReadBlocking(&humidity, &temperature))
	assert.Equal(t, validFrame.Temperature(), temperature)
}

func TestReadBlocking_Deterministic(t *testing.T) {
	frames := []dht.Frame{validFrame, flippedFrame, {}}
	for _, frame := range frames {
		d1, s1 := newReader(frame)
		d2, s2 := newReader(frame)

		h1, t1 := sentinel, sentinel
		h2, t2 := sentinel, sentinel
		st1 := d1.ReadBlocking(&h1, &t1)
		st2 := d2.ReadBlocking(&h2, &t2)

		assert.Equal(t, st1, st2)
		assert.Equal(t, h1, h2)
		assert.Equal(t, t1, t2)
		assert.Equal(t, s1.Calls(), s2.Calls())
	}
}

func TestReadBlocking_ConsecutiveReads(t *testing.T) {
	second := dht.NewFrame(50, 0, 21, 5)
	d, sensor := newReader(validFrame, second)

	var humidity, temperature int16
	require.Equal(t, dht.Success, d.ReadBlocking(&humidity, &temperature))
	sensor.Sleep(dht.MinSampleInterval)
	require.Equal(t, dht.Success, d.ReadBlocking(&humidity, &temperature))

	assert.Equal(t, second.Humidity(), humidity)
	assert.Equal(t, second.Temperature(), temperature)
	assert.Equal(t, 2, sensor.FramesSent())
}

func TestReadRetry(t *testing.T) {
	d, sensor := newReader(flippedFrame, dht.Frame{}, validFrame)

	humidity, temperature := sentinel, sentinel
	retries, status := d.ReadRetry(11, &humidity, &temperature)

	require.Equal(t, dht.Success, status)
	assert.Equal(t, 2, retries)
	assert.Equal(t, validFrame.Humidity(), humidity)
	assert.Equal(t, 3, sensor.FramesSent())
}

func TestReadRetry_GivesUp(t *testing.T) {
	d, _ := newReader(flippedFrame, flippedFrame)

	humidity, temperature := sentinel, sentinel
	retries, status := d.ReadRetry(2, &humidity, &temperature)

	assert.Equal(t, dht.ChecksumError, status)
	assert.Equal(t, 1, retries)
	assert.Equal(t, sentinel, humidity)
	assert.Equal(t, sentinel, temperature)
}

func TestReadRetry_BadParameter(t *testing.T) {
	d, sensor := newReader(validFrame)

	var humidity, temperature int16
	_, status := d.ReadRetry(0, &humidity, &temperature)

	assert.Equal(t, dht.BadParameter, status)
	assert.Zero(t, sensor.Calls())
}

func TestStatus(t *testing.T) {
	assert.NoError(t, dht.Success.Err())
	assert.EqualError(t, dht.Timeout.Err(), "dht: timeout")

	err := fmt.Errorf("read sensor: %w", dht.ChecksumError)
	assert.True(t, errors.Is(err, dht.ChecksumError))
	assert.False(t, errors.Is(err, dht.Timeout))

	statuses := []dht.Status{dht.Success, dht.ChecksumError, dht.MissedEdge, dht.Timeout, dht.BadParameter, dht.AllLow}
	seen := map[dht.Status]bool{}
	for _, s := range statuses {
		assert.False(t, seen[s], "duplicate status %v", s)
		seen[s] = true
		if s != dht.Success {
			assert.Equal(t, s, s&-s, "%v is not a single bit", s)
		}
	}
}

func TestFrame(t *testing.T) {
	assert.True(t, validFrame.Valid())
	assert.False(t, flippedFrame.Valid())
	assert.Equal(t, dht.Success, validFrame.Status())
	assert.Equal(t, dht.ChecksumError, flippedFrame.Status())
	assert.Equal(t, dht.AllLow, dht.Frame{}.Status())
	assert.Equal(t, validFrame, dht.NewFrame(255, 170, 146, 136))

	assert.Equal(t, 23.5, dht.DecodeFixed(dht.NewFrame(0, 0, 23, 128).Temperature()))
	assert.Equal(t, -0.5, dht.DecodeFixed(dht.NewFrame(255, 128, 0, 0).Humidity()))
}

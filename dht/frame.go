package dht

// FrameSize is the number of bytes the sensor sends per read.
const FrameSize = 5

// Frame is a decoded transmission:
// humidity integer, humidity fraction, temperature integer, temperature fraction, checksum.
type Frame [FrameSize]byte

// Checksum is the low byte of the sum of the four data bytes.
func (f Frame) Checksum() byte {
	return f[0] + f[1] + f[2] + f[3]
}

// Valid reports whether the checksum byte matches the data bytes.
func (f Frame) Valid() bool {
	return f[4] == f.Checksum()
}

// AllZero reports whether every byte, checksum included, is zero.
func (f Frame) AllZero() bool {
	return f == Frame{}
}

// Humidity returns the humidity bytes as a Q8.8 value.
func (f Frame) Humidity() int16 {
	return encode(f[0], f[1])
}

// Temperature returns the temperature bytes as a Q8.8 value.
func (f Frame) Temperature() int16 {
	return encode(f[2], f[3])
}

// Status classifies the frame the way ReadBlocking does.
func (f Frame) Status() Status {
	if !f.Valid() {
		return ChecksumError
	}
	if f.AllZero() {
		return AllLow
	}
	return Success
}

func encode(high, low byte) int16 {
	return int16(uint16(high)<<8 | uint16(low))
}

// NewFrame builds a frame from the four data bytes and fills in the checksum.
func NewFrame(humidityInt, humidityFrac, temperatureInt, temperatureFrac byte) Frame {
	f := Frame{humidityInt, humidityFrac, temperatureInt, temperatureFrac, 0}
	f[4] = f.Checksum()
	return f
}

// DecodeFixed converts a Q8.8 value to a float.
func DecodeFixed(v int16) float64 {
	return float64(v) / 256
}

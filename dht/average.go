package dht

// MaxSamplesLog2 bounds ReadAveragedBlocking to 2^14 samples, a little over
// a day at MinSampleInterval.
const MaxSamplesLog2 = 14

// ReadAveragedBlocking averages 2^samplesLog2 reads spaced MinSampleInterval
// apart. The first failing read aborts the average and its status is
// returned; humidity and temperature are only written on Success.
// An exponent outside 0..MaxSamplesLog2 returns BadParameter before the pin
// is touched.
func (dht *DHT) ReadAveragedBlocking(samplesLog2 int, humidity, temperature *int16) Status {
	if samplesLog2 < 0 || samplesLog2 > MaxSamplesLog2 {
		return BadParameter
	}

	samples := 1 << uint(samplesLog2)
	var humidityTotal, temperatureTotal uint32
	for i := 0; i < samples; i++ {
		if i > 0 {
			dht.clock.Sleep(MinSampleInterval)
		}

		var h, t int16
		if status := dht.ReadBlocking(&h, &t); status != Success {
			return status
		}
		// negative samples wrap; the low 16 bits of the shifted total are still the mean
		humidityTotal += uint32(h)
		temperatureTotal += uint32(t)
	}

	*humidity = int16(humidityTotal >> uint(samplesLog2))
	*temperature = int16(temperatureTotal >> uint(samplesLog2))
	return Success
}

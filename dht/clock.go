package dht

import (
	"time"

	"github.com/gavv/monotime"
)

// SystemClock is the Clock backed by the monotonic system clock.
type SystemClock struct{}

// NowMicros implements Clock. The counter wraps about every 71 minutes.
func (SystemClock) NowMicros() uint32 {
	return uint32(monotime.Now() / time.Microsecond)
}

// Sleep implements Clock.
func (SystemClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

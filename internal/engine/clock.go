package engine

import "time"

// Clock is the engine's time source. Now returns the time elapsed since
// an arbitrary fixed origin; only differences matter.
//
// Suspension deadlines and tick due-checks both read the same clock, so a
// manual clock makes scheduling fully deterministic in tests.
type Clock interface {
	Now() time.Duration
}

// MonotonicClock reads the process monotonic clock.
//
// Thread-safety: MonotonicClock is immutable after construction.
type MonotonicClock struct {
	origin time.Time
}

// NewMonotonicClock creates a clock whose origin is now.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{origin: time.Now()}
}

// Now returns the time elapsed since the clock was created.
func (c *MonotonicClock) Now() time.Duration {
	return time.Since(c.origin)
}

// secondsToDuration converts a suspension request to a duration. Negative
// and NaN values mean "as soon as possible".
func secondsToDuration(seconds float64) time.Duration {
	if !(seconds > 0) {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

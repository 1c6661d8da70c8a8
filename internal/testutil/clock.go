package testutil

import (
	"sync"
	"time"
)

// ManualClock is a clock that only moves when told to.
//
// It satisfies engine.Clock, so suspensions and tick due-checks in tests
// depend only on the Advance calls the test makes.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualClock struct {
	mu  sync.Mutex
	now time.Duration
}

// NewManualClock creates a clock reading zero.
func NewManualClock() *ManualClock {
	return &ManualClock{}
}

// Now returns the current reading.
func (c *ManualClock) Now() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d and returns the new reading.
// Negative durations are ignored; the clock never goes backwards.
func (c *ManualClock) Advance(d time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d > 0 {
		c.now += d
	}
	return c.now
}

// AdvanceSeconds is Advance in seconds, the unit Suspend takes.
func (c *ManualClock) AdvanceSeconds(s float64) time.Duration {
	return c.Advance(time.Duration(s * float64(time.Second)))
}

// Reset sets the clock back to zero for test reuse.
func (c *ManualClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = 0
}

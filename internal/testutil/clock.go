package testutil

import (
	"sync"
	"time"
)

// Epoch is the start time of a ManualClock created with the zero time.
var Epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// ManualClock is a wall clock that only moves when told to.
//
// Pass Now to notebook.WithClock so Date.now() and timer deadlines are
// reproducible across runs.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock creates a clock reading start. The zero time means Epoch.
func NewManualClock(start time.Time) *ManualClock {
	if start.IsZero() {
		start = Epoch
	}
	return &ManualClock{now: start}
}

// Now returns the current reading.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d. Negative d is ignored.
func (c *ManualClock) Advance(d time.Duration) {
	if d <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Reset sets the clock back to start. The zero time means Epoch.
func (c *ManualClock) Reset(start time.Time) {
	if start.IsZero() {
		start = Epoch
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = start
}

package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualClock_StartsAtEpoch(t *testing.T) {
	clock := NewManualClock(time.Time{})
	assert.Equal(t, Epoch, clock.Now())
}

func TestManualClock_CustomStart(t *testing.T) {
	start := time.Date(2030, time.June, 1, 12, 0, 0, 0, time.UTC)
	clock := NewManualClock(start)
	assert.Equal(t, start, clock.Now())
}

func TestManualClock_Advance(t *testing.T) {
	clock := NewManualClock(time.Time{})

	clock.Advance(time.Second)
	clock.Advance(500 * time.Millisecond)
	assert.Equal(t, Epoch.Add(1500*time.Millisecond), clock.Now())

	// Negative durations never move the clock back
	clock.Advance(-time.Hour)
	assert.Equal(t, Epoch.Add(1500*time.Millisecond), clock.Now())
}

func TestManualClock_Reset(t *testing.T) {
	clock := NewManualClock(time.Time{})
	clock.Advance(time.Minute)

	clock.Reset(time.Time{})
	assert.Equal(t, Epoch, clock.Now())
}

func TestManualClock_ThreadSafe(t *testing.T) {
	clock := NewManualClock(time.Time{})
	const numGoroutines = 50

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer wg.Done()
			clock.Advance(time.Millisecond)
			_ = clock.Now()
		}()
	}
	wg.Wait()

	assert.Equal(t, Epoch.Add(numGoroutines*time.Millisecond), clock.Now())
}

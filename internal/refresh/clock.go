package refresh

import (
	"sort"
	"sync"
	"time"
)

// Clock provides time-related functionality for dependency injection.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is the part of time.Timer the scheduler needs.
type Timer interface {
	// Stop prevents the timer from firing. It returns false if the timer
	// already fired or was stopped.
	Stop() bool
}

// RealClock implements Clock using real time functions.
type RealClock struct{}

// AfterFunc calls f in its own goroutine once d has elapsed.
func (RealClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// ManualClock is a Clock that only moves when told to. Timers fire
// synchronously inside Advance, in deadline order.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*manualTimer
}

// NewManualClock creates a manual clock starting at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Advance moves the clock forward by d and fires every timer that became due.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)

	var due []*manualTimer

	remaining := c.timers[:0]

	for _, timer := range c.timers {
		if timer.stopped {
			continue
		}

		if !timer.at.After(c.now) {
			timer.fired = true
			due = append(due, timer)

			continue
		}

		remaining = append(remaining, timer)
	}

	c.timers = remaining
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })

	for _, timer := range due {
		timer.f()
	}
}

// AfterFunc registers f to run once the clock has been advanced by d.
func (c *ManualClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	timer := &manualTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, timer)

	return timer
}

// Now returns the clock's current time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

// Waiting returns the number of timers that have neither fired nor been stopped.
func (c *ManualClock) Waiting() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0

	for _, timer := range c.timers {
		if !timer.stopped {
			count++
		}
	}

	return count
}

type manualTimer struct {
	clock   *ManualClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.stopped || t.fired {
		return false
	}

	t.stopped = true

	return true
}

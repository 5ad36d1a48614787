// Package timeutil provides a testable abstraction over time operations.
package timeutil

import (
	"sync"
	"time"
)

// Clock provides an abstraction over time operations for testability.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the duration since t.
	Since(t time.Time) time.Duration
}

// RealClock implements Clock using the standard time package.
type RealClock struct{}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Since returns the time elapsed since t.
func (RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// MockClock is a manually controlled clock for testing.
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockClock creates a new MockClock set to the given time.
func NewMockClock(t time.Time) *MockClock {
	return &MockClock{now: t}
}

// Now returns the mocked current time.
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set sets the mock clock to a specific time.
func (c *MockClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Advance moves the mock clock forward by the given duration.
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Since returns the duration since t.
func (c *MockClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// Throttle gates periodic work, such as progress logging, to at most once
// per interval of clock time. A zero interval never throttles.
type Throttle struct {
	clock    Clock
	interval time.Duration
	last     time.Time
	started  bool
}

// NewThrottle returns a Throttle whose first Ready call succeeds.
func NewThrottle(clock Clock, interval time.Duration) *Throttle {
	if clock == nil {
		clock = RealClock{}
	}
	return &Throttle{clock: clock, interval: interval}
}

// Ready reports whether the interval has elapsed since the last successful
// call, and if so restarts the interval.
func (t *Throttle) Ready() bool {
	now := t.clock.Now()
	if t.started && now.Sub(t.last) < t.interval {
		return false
	}
	t.started = true
	t.last = now
	return true
}

package testfixtures

import (
	"sync"
	"time"
)

// Clock is a settable time source for services under test. The zero start
// is the reference Monday, so "today" for a fresh clock is 2024-03-11 EAT.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NowFunc returns Now for injection into services; a nil clock falls back to
// the wall clock.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// SetAt moves the clock to At(days, hour, minute), the local EAT instant on
// the reference week. Suggestion tests use it to place "now" mid-day.
func (c *Clock) SetAt(days, hour, minute int) time.Time {
	t := At(days, hour, minute)
	c.Set(t)
	return t
}

func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}

// Current is Now under a name that reads better in assertions.
func (c *Clock) Current() time.Time {
	return c.Now()
}

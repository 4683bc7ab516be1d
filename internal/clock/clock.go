package clock

import (
	"sync"
	"time"
)

// Clock is the time source used for record timestamps and campaign windows.
type Clock interface {
	Now() time.Time
	// Stopwatch starts a timer; the returned func reports time elapsed since.
	Stopwatch() func() time.Duration
}

// RealClock returns the real current time in UTC.
type RealClock struct{}

func (RealClock) Now() time.Time {
	return time.Now().UTC()
}

// Stopwatch reads the monotonic clock, so wall clock steps do not affect it.
func (RealClock) Stopwatch() func() time.Duration {
	start := time.Now()
	return func() time.Duration { return time.Since(start) }
}

// FakeClock is a controllable clock for tests.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewFake(t time.Time) *FakeClock {
	return &FakeClock{now: t}
}

func (f *FakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *FakeClock) Stopwatch() func() time.Duration {
	start := f.Now()
	return func() time.Duration { return f.Now().Sub(start) }
}

func (f *FakeClock) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

// Advance moves the clock forward by d.
func (f *FakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

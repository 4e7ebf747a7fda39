// Package clock abstracts time so polling loops can be tested without
// sleeping. Production code injects Real(); tests inject an AutoFake.
package clock

import (
	"context"
	"sync"
	"time"
)

// Clock is the subset of the time package the engine depends on.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Wait blocks for d on c or until ctx is done.
func Wait(ctx context.Context, c Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.After(d):
		return nil
	}
}

// AutoFake is a deterministic Clock whose timers fire immediately and
// advance the clock by their duration. Every wait is recorded.
type AutoFake struct {
	mu      sync.Mutex
	current time.Time
	waits   []time.Duration
}

// NewAutoFake returns an AutoFake starting at initial.
func NewAutoFake(initial time.Time) *AutoFake {
	return &AutoFake{current: initial}
}

func (f *AutoFake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *AutoFake) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = f.current.Add(d)
	f.waits = append(f.waits, d)
	ch := make(chan time.Time, 1)
	ch <- f.current
	return ch
}

// Waits returns the durations waited so far.
func (f *AutoFake) Waits() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.waits...)
}

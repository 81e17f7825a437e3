// Package zonetest provides test doubles for the zone package.
package zonetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/thatsimonsguy/sprinkler-controller/internal/zone"
)

// Clock is a manually advanced zone.Clock. Sleep advances virtual time by the
// requested duration and records it, firing any timers that fall due.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*timer
	sleeps []time.Duration

	// OnSleep, when set, runs at the start of every Sleep call with the
	// caller's context. It may block, e.g. until the context is cancelled.
	OnSleep func(ctx context.Context, d time.Duration)
}

type timer struct {
	clock    *Clock
	deadline time.Time
	f        func()
	done     bool
}

func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) AfterFunc(d time.Duration, f func()) zone.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &timer{clock: c, deadline: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *timer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

func (c *Clock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	hook := c.OnSleep
	c.mu.Unlock()

	if hook != nil {
		hook(ctx, d)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Advance(d)
	return nil
}

// Advance moves virtual time forward and runs every timer that falls due,
// in deadline order, on the calling goroutine.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*timer
	remaining := c.timers[:0]
	for _, t := range c.timers {
		switch {
		case t.done:
		case !t.deadline.After(c.now):
			t.done = true
			due = append(due, t)
		default:
			remaining = append(remaining, t)
		}
	}
	c.timers = remaining
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	for _, t := range due {
		t.f()
	}
}

// Sleeps returns every duration passed to Sleep so far.
func (c *Clock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}

// PendingTimers reports how many timers are armed and not yet fired or stopped.
func (c *Clock) PendingTimers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.done {
			n++
		}
	}
	return n
}

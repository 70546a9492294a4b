package hw

import (
	"sync/atomic"
	"time"
)

// Clock supplies monotonic milliseconds since an arbitrary origin.
type Clock interface {
	NowMs() int64
}

// MonotonicClock counts milliseconds since it was created. time.Since uses the
// monotonic reading, so wall clock jumps do not affect it.
type MonotonicClock struct {
	start time.Time
}

// NewMonotonicClock creates a clock starting at zero.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{start: time.Now()}
}

func (c *MonotonicClock) NowMs() int64 {
	return time.Since(c.start).Milliseconds()
}

// ManualClock is a Clock driven by hand, used by tests and simulations.
type ManualClock struct {
	now atomic.Int64
}

func NewManualClock(startMs int64) *ManualClock {
	c := &ManualClock{}
	c.now.Store(startMs)
	return c
}

func (c *ManualClock) NowMs() int64 { return c.now.Load() }

// Set moves the clock to an absolute value.
func (c *ManualClock) Set(ms int64) { c.now.Store(ms) }

// Advance moves the clock forward and returns the new value.
func (c *ManualClock) Advance(ms int64) int64 { return c.now.Add(ms) }

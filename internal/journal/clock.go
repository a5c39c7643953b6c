package journal

import "sync/atomic"

// Clock stamps records with a strictly increasing seq. Ordering never uses
// wall time, so a replayed session orders identically.
type Clock interface {
	Next() int64
	Current() int64
}

// LogicalClock is the default Clock. It is safe for concurrent use.
type LogicalClock struct {
	seq atomic.Int64
}

// NewClock returns a clock whose first Next is 1.
func NewClock() *LogicalClock {
	return &LogicalClock{}
}

// NewClockAt returns a clock resuming after start.
func NewClockAt(start int64) *LogicalClock {
	c := &LogicalClock{}
	c.seq.Store(start)
	return c
}

// Next increments the clock and returns the new seq.
func (c *LogicalClock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued seq.
func (c *LogicalClock) Current() int64 {
	return c.seq.Load()
}

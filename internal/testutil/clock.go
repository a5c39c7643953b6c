// Package testutil holds deterministic stand-ins for the journal's clock
// and session IDs, so recorded sessions are byte-identical across runs.
package testutil

import (
	"sync"

	"github.com/cyrke/kea/internal/journal"
)

var _ journal.Clock = (*DeterministicClock)(nil)

// DeterministicClock is a journal.Clock that can be reset, so one
// scenario can run several times with identical seq values.
type DeterministicClock struct {
	mu  sync.Mutex
	seq int64
}

// NewDeterministicClock returns a clock whose first Next is 1.
func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Next increments and returns the seq.
func (c *DeterministicClock) Next() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// Current returns the seq without incrementing.
func (c *DeterministicClock) Current() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq
}

// Reset sets the clock back to 0.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq = 0
}

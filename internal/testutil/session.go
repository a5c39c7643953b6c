package testutil

import (
	"sync"

	"github.com/cyrke/kea/internal/journal"
)

var (
	_ journal.SessionIDGenerator = FixedSessionGenerator{}
	_ journal.SessionIDGenerator = (*SequenceGenerator)(nil)
)

// FixedSessionGenerator returns the same session ID every time. An empty
// ID becomes "test-session".
type FixedSessionGenerator struct {
	id string
}

// NewFixedSessionGenerator returns a generator for id.
func NewFixedSessionGenerator(id string) FixedSessionGenerator {
	if id == "" {
		id = "test-session"
	}
	return FixedSessionGenerator{id: id}
}

// Generate returns the fixed ID.
func (g FixedSessionGenerator) Generate() string { return g.id }

// SequenceGenerator returns predetermined IDs in order and panics once
// they run out.
type SequenceGenerator struct {
	mu  sync.Mutex
	ids []string
	idx int
}

// NewSequenceGenerator returns a generator yielding ids in order.
func NewSequenceGenerator(ids ...string) *SequenceGenerator {
	return &SequenceGenerator{ids: ids}
}

// Generate returns the next ID.
func (g *SequenceGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.idx >= len(g.ids) {
		panic("SequenceGenerator: all session IDs exhausted")
	}
	id := g.ids[g.idx]
	g.idx++
	return id
}

package testutil

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyrke/kea/internal/journal"
)

func TestFixedSessionGenerator(t *testing.T) {
	assert.Equal(t, "s-1", NewFixedSessionGenerator("s-1").Generate())
	assert.Equal(t, "test-session", NewFixedSessionGenerator("").Generate())
}

func TestSequenceGenerator(t *testing.T) {
	gen := NewSequenceGenerator("a", "b")
	assert.Equal(t, "a", gen.Generate())
	assert.Equal(t, "b", gen.Generate())
	assert.Panics(t, func() { gen.Generate() })
}

func TestRecorderWithDeterministicInputs(t *testing.T) {
	clock := NewDeterministicClock()
	rec, err := journal.NewRecorder(context.Background(), journal.NewMemory(),
		journal.WithSessionIDs(NewFixedSessionGenerator("fixed")),
		journal.WithClock(clock),
	)
	require.NoError(t, err)
	assert.Equal(t, "fixed", rec.Session())
	assert.Equal(t, int64(0), clock.Current())
}

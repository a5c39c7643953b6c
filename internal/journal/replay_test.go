package journal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyrke/kea/internal/ir"
)

func TestReplayMatches(t *testing.T) {
	for name, sink := range map[string]Sink{"memory": NewMemory(), "sqlite": openTestJournal(t)} {
		t.Run(name, func(t *testing.T) {
			rt, _, w := recordedRuntime(t, sink, WithSession("s1"))
			runSession(t, rt, w)

			target := freshTarget(t)
			res, err := Replay(context.Background(), sink, "s1", target)
			require.NoError(t, err)
			assert.True(t, res.OK(), "%+v", res.Mismatches)
			assert.Equal(t, 2, res.Actions)
			assert.Equal(t, 2, res.Mounts)
			assert.Equal(t, 2, res.Unmounts)
			assert.Empty(t, target.Runtime.Mounted())
		})
	}
}

func TestReplayDetectsDivergence(t *testing.T) {
	sink := NewMemory()
	ctx := context.Background()
	rt, _, w := recordedRuntime(t, sink, WithSession("s1"))
	runSession(t, rt, w)

	s, err := sink.ReadSession(ctx, "s1")
	require.NoError(t, err)
	tampered := NewMemory()
	for _, l := range s.Lifecycle {
		require.NoError(t, tampered.WriteLifecycle(ctx, l))
	}
	for i, a := range s.Actions {
		if i == 1 {
			a.StateHash = ir.MustStateHash(map[string]any{"other": 1})
		}
		require.NoError(t, tampered.WriteAction(ctx, a))
	}

	res, err := Replay(ctx, tampered, "s1", freshTarget(t))
	require.NoError(t, err)
	require.Len(t, res.Mismatches, 1)
	assert.Equal(t, s.Actions[1].Seq, res.Mismatches[0].Seq)
	assert.Equal(t, "add (counters.a)", res.Mismatches[0].Type)
}

func TestReplayUnknownDefinition(t *testing.T) {
	sink := NewMemory()
	ctx := context.Background()
	require.NoError(t, sink.WriteLifecycle(ctx, LifecycleRecord{
		ID: "l1", Session: "s1", Seq: 1, Identity: "ghost", Logic: "ghost", Event: EventMount, MountCount: 1,
	}))

	_, err := Replay(ctx, sink, "s1", freshTarget(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `no definition named "ghost"`)
}

func TestReplayInlineLogicFails(t *testing.T) {
	sink := NewMemory()
	ctx := context.Background()
	require.NoError(t, sink.WriteLifecycle(ctx, LifecycleRecord{
		ID: "l1", Session: "s1", Seq: 1, Identity: "kea.inline.1", Event: EventMount, MountCount: 1,
	}))

	_, err := Replay(ctx, sink, "s1", freshTarget(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no definition ID")
}

func TestReplaySkipsNestedAndUnheld(t *testing.T) {
	sink := NewMemory()
	ctx := context.Background()
	require.NoError(t, sink.WriteLifecycle(ctx, LifecycleRecord{ID: "n", Session: "s1", Seq: 1, Identity: "x", Logic: "counter", Event: EventMount, Nested: true}))
	require.NoError(t, sink.WriteLifecycle(ctx, LifecycleRecord{ID: "u", Session: "s1", Seq: 2, Identity: "y", Event: EventUnmount}))

	res, err := Replay(ctx, sink, "s1", freshTarget(t))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Skipped)
	assert.Zero(t, res.Mounts)
}

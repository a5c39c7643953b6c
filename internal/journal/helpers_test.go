package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cyrke/kea/internal/ir"
	"github.com/cyrke/kea/pkg/kea"
	"github.com/cyrke/kea/pkg/store"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

// defineCounters registers a keyed counter and an audit logic that
// connects to it and notes every addition through a listener.
func defineCounters(t *testing.T, rt *kea.Runtime) map[string]*kea.Wrapper {
	t.Helper()
	byID := func(p kea.Props) any { return p["id"] }

	counter, err := rt.Define(&kea.Input{
		ID:      "counter",
		Path:    ir.Path{"counters"},
		Key:     byID,
		Actions: map[string]kea.PayloadFunc{"add": kea.Payload("amount")},
		Reducers: func(l *kea.Logic) map[string]kea.ReducerDef {
			return map[string]kea.ReducerDef{
				"count": {Default: 0, On: map[string]kea.HandlerFunc{
					l.Type("add"): func(state, payload any) any {
						return state.(int) + payload.(map[string]any)["amount"].(int)
					},
				}},
			}
		},
	})
	require.NoError(t, err)

	audit, err := rt.Define(&kea.Input{
		ID:      "audit",
		Path:    ir.Path{"audit"},
		Key:     byID,
		Connect: []kea.Connection{{Logic: counter, KeyFunc: byID, Actions: []string{"add"}}},
		Actions: map[string]kea.PayloadFunc{"note": kea.Payload("amount")},
		Reducers: func(l *kea.Logic) map[string]kea.ReducerDef {
			return map[string]kea.ReducerDef{
				"notes": {Default: []any{}, On: map[string]kea.HandlerFunc{
					l.Type("note"): func(state, payload any) any {
						list := state.([]any)
						return append(append([]any{}, list...), payload.(map[string]any)["amount"])
					},
				}},
			}
		},
		Listeners: func(*kea.Logic) map[string][]kea.ListenerFunc {
			return map[string][]kea.ListenerFunc{
				"add": {func(l *kea.Logic, payload any) {
					l.Actions["note"](payload.(map[string]any)["amount"])
				}},
			}
		},
	})
	require.NoError(t, err)

	return map[string]*kea.Wrapper{"counter": counter, "audit": audit}
}

// recordedRuntime returns a runtime whose store and lifecycle are recorded
// into sink.
func recordedRuntime(t *testing.T, sink Sink, opts ...RecorderOption) (*kea.Runtime, *Recorder, map[string]*kea.Wrapper) {
	t.Helper()
	rec, err := NewRecorder(context.Background(), sink, opts...)
	require.NoError(t, err)
	rt, err := kea.NewRuntime(
		kea.WithStore(store.New(rec.Middleware)),
		kea.WithPlugins(kea.ListenersPlugin(), rec.Plugin()),
	)
	require.NoError(t, err)
	return rt, rec, defineCounters(t, rt)
}

// freshTarget returns an unrecorded runtime with the same definitions.
func freshTarget(t *testing.T) *RuntimeTarget {
	t.Helper()
	rt, err := kea.NewRuntime(
		kea.WithStore(store.New()),
		kea.WithPlugins(kea.ListenersPlugin()),
	)
	require.NoError(t, err)
	return &RuntimeTarget{Runtime: rt, Wrappers: defineCounters(t, rt)}
}

// runSession mounts audit for id a, adds 2 then 3, and releases.
func runSession(t *testing.T, rt *kea.Runtime, w map[string]*kea.Wrapper) {
	t.Helper()
	props := kea.Props{"id": "a"}
	release, err := w["audit"].Mount(props)
	require.NoError(t, err)
	audit, err := w["audit"].Build(props)
	require.NoError(t, err)
	audit.Actions["add"](2)
	audit.Actions["add"](3)
	release()
}

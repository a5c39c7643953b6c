package kea

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cyrke/kea/internal/ir"
	"github.com/cyrke/kea/pkg/store"
)

func newTestRuntime(t *testing.T, opts ...Option) (*Runtime, *store.Store) {
	t.Helper()
	s := store.New()
	rt, err := NewRuntime(append([]Option{WithStore(s)}, opts...)...)
	require.NoError(t, err)
	return rt, s
}

// nameInput declares a logic with one action and one reducer keyed to it.
func nameInput(path ...string) *Input {
	return &Input{
		Path:    ir.Path(path),
		Actions: map[string]PayloadFunc{"updateName": Payload("name")},
		Reducers: func(l *Logic) map[string]ReducerDef {
			return map[string]ReducerDef{
				"name": {
					Default: "chirpy",
					Type:    "string",
					On:      map[string]HandlerFunc{l.Type("updateName"): FromPayload("name")},
				},
			}
		},
		Options: Options{Lazy: true},
	}
}

// counterInput declares a keyed counter; props["id"] is the key.
func counterInput() *Input {
	return &Input{
		Path: ir.Path{"counters"},
		Key:  func(p Props) any { return p["id"] },
		Actions: map[string]PayloadFunc{
			"increment": nil,
		},
		Reducers: func(l *Logic) map[string]ReducerDef {
			return map[string]ReducerDef{
				"count": {
					Default: 0,
					On: map[string]HandlerFunc{
						l.Type("increment"): func(s, _ any) any { return s.(int) + 1 },
					},
				},
			}
		},
	}
}

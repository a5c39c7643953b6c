package journal

import (
	"context"
	"fmt"

	"github.com/cyrke/kea/internal/ir"
	"github.com/cyrke/kea/pkg/kea"
)

// Target is what a session is replayed into.
type Target interface {
	// Mount mounts the logic defined as logic for key and props and
	// returns its release function.
	Mount(logic string, key any, props kea.Props) (func(), error)
	Dispatch(action ir.Action)
	State() map[string]any
}

// RuntimeTarget replays into a runtime whose definitions were registered
// under their IDs.
type RuntimeTarget struct {
	Runtime  *kea.Runtime
	Wrappers map[string]*kea.Wrapper
}

// Mount implements Target.
func (t *RuntimeTarget) Mount(logic string, key any, props kea.Props) (func(), error) {
	w, ok := t.Wrappers[logic]
	if !ok {
		return nil, fmt.Errorf("no definition named %q", logic)
	}
	if key != nil {
		w = w.WithKey(key)
	}
	return w.Mount(props)
}

// Dispatch implements Target.
func (t *RuntimeTarget) Dispatch(action ir.Action) { t.Runtime.Dispatch(action) }

// State implements Target.
func (t *RuntimeTarget) State() map[string]any { return t.Runtime.State() }

// Mismatch is an action after which the replayed state differs from the
// recorded one.
type Mismatch struct {
	Seq  int64  `json:"seq"`
	Type string `json:"type"`
	Want string `json:"want"`
	Got  string `json:"got"`
}

// ReplayResult summarizes a replay.
type ReplayResult struct {
	Session    string     `json:"session"`
	Actions    int        `json:"actions"`
	Mounts     int        `json:"mounts"`
	Unmounts   int        `json:"unmounts"`
	Skipped    int        `json:"skipped"`
	Mismatches []Mismatch `json:"mismatches"`
}

// OK reports whether every replayed state matched.
func (r *ReplayResult) OK() bool { return len(r.Mismatches) == 0 }

// Replay re-runs session against target in seq order and compares the
// state hash after every action. Nested transitions are skipped, as are
// unmounts of identities the replay does not hold; both are reproduced by
// the replayed actions and mounts themselves. Replay stops with an error
// when a transition cannot be repeated.
func Replay(ctx context.Context, sink Sink, session string, target Target) (*ReplayResult, error) {
	s, err := sink.ReadSession(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	res := &ReplayResult{Session: session, Mismatches: []Mismatch{}}
	held := make(map[string][]func())

	for _, e := range s.Entries() {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		if l := e.Lifecycle; l != nil {
			if l.Nested {
				res.Skipped++
				continue
			}
			switch l.Event {
			case EventMount:
				if l.Logic == "" {
					return res, fmt.Errorf("replay: seq %d: %s has no definition ID", l.Seq, l.Identity)
				}
				release, err := target.Mount(l.Logic, l.Key, kea.Props(l.Props))
				if err != nil {
					return res, fmt.Errorf("replay: seq %d: mount %s: %w", l.Seq, l.Identity, err)
				}
				held[l.Identity] = append(held[l.Identity], release)
				res.Mounts++
			case EventUnmount:
				releases := held[l.Identity]
				if len(releases) == 0 {
					res.Skipped++
					continue
				}
				release := releases[len(releases)-1]
				held[l.Identity] = releases[:len(releases)-1]
				release()
				res.Unmounts++
			}
			continue
		}

		a := e.Action
		target.Dispatch(ir.Action{Type: a.Type, Payload: a.Payload})
		res.Actions++
		got, err := ir.StateHash(target.State())
		if err != nil {
			return res, fmt.Errorf("replay: seq %d: %w", a.Seq, err)
		}
		if got != a.StateHash {
			res.Mismatches = append(res.Mismatches, Mismatch{Seq: a.Seq, Type: a.Type, Want: a.StateHash, Got: got})
		}
	}
	return res, nil
}

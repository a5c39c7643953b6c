// Package store is an in-memory state container for kea logics.
//
// State is a tree of map[string]any. Reducers are attached at paths and
// own the subtree there. Updates are copy-on-write: a dispatch that
// changes nothing leaves the root map identical, and a change only copies
// the maps along the changed path.
//
// A Store is not safe for concurrent use. Dispatch is reentrant: a
// subscriber may dispatch, and the nested action is fully reduced and
// announced before the outer notification loop continues.
package store

import (
	"slices"

	"github.com/cyrke/kea/internal/ir"
)

// DispatchFunc reduces an action and notifies subscribers.
type DispatchFunc func(action ir.Action)

// Middleware wraps dispatch. Middlewares run in the order they were added;
// the first added is outermost.
type Middleware func(s *Store, next DispatchFunc) DispatchFunc

type attached struct {
	path    ir.Path
	reducer ir.Reducer
}

type subscriber struct {
	id     int
	fn     func(ir.Action)
	active *bool
}

// Store holds the state tree.
type Store struct {
	state       map[string]any
	reducers    []attached
	subscribers []subscriber
	nextSub     int
	middlewares []Middleware
	dispatch    DispatchFunc
}

// New returns an empty store.
func New(middlewares ...Middleware) *Store {
	s := &Store{state: map[string]any{}}
	s.Use(middlewares...)
	return s
}

// Use appends middlewares to the dispatch chain.
func (s *Store) Use(middlewares ...Middleware) {
	s.middlewares = append(s.middlewares, middlewares...)
	d := DispatchFunc(s.reduce)
	for _, mw := range slices.Backward(s.middlewares) {
		d = mw(s, d)
	}
	s.dispatch = d
}

// GetState returns the current root. Callers must not mutate it.
func (s *Store) GetState() map[string]any {
	return s.state
}

// Dispatch sends an action through the middleware chain.
func (s *Store) Dispatch(action ir.Action) {
	s.dispatch(action)
}

// AttachReducer installs reducer at path, replacing any reducer already
// there, and initializes its slice with an init action. Existing state at
// path is kept and handed to the reducer.
func (s *Store) AttachReducer(path ir.Path, reducer ir.Reducer) {
	init := ir.Action{Type: ir.InitActionType, Payload: path.String()}
	idx := s.index(path)
	if idx >= 0 {
		s.reducers[idx].reducer = reducer
	} else {
		s.reducers = append(s.reducers, attached{path: slices.Clone(path), reducer: reducer})
	}
	cur := ir.GetIn(s.state, path)
	s.state = ir.SetIn(s.state, path, reducer(cur, init))
	s.notify(init)
}

// DetachReducer removes the reducer at path and its state.
func (s *Store) DetachReducer(path ir.Path) {
	idx := s.index(path)
	if idx < 0 {
		return
	}
	s.reducers = slices.Delete(s.reducers, idx, idx+1)
	s.state = ir.DeleteIn(s.state, path)
	s.notify(ir.Action{Type: ir.DetachActionType, Payload: path.String()})
}

// Paths lists attached paths in attach order.
func (s *Store) Paths() []ir.Path {
	out := make([]ir.Path, len(s.reducers))
	for i, a := range s.reducers {
		out[i] = a.path
	}
	return out
}

// Subscribe registers fn to run after every reduced action, attach and
// detach. The returned function removes the subscription.
func (s *Store) Subscribe(fn func(action ir.Action)) func() {
	s.nextSub++
	id := s.nextSub
	active := true
	s.subscribers = append(s.subscribers, subscriber{id: id, fn: fn, active: &active})
	return func() {
		active = false
		s.subscribers = slices.DeleteFunc(s.subscribers, func(sub subscriber) bool { return sub.id == id })
	}
}

func (s *Store) reduce(action ir.Action) {
	next := s.state
	for _, a := range s.reducers {
		cur := ir.GetIn(next, a.path)
		v := a.reducer(cur, action)
		if !ir.Same(v, cur) {
			next = ir.SetIn(next, a.path, v)
		}
	}
	s.state = next
	s.notify(action)
}

// notify calls a snapshot of the subscribers. A subscriber added during
// notification sees the next action; one removed is skipped immediately.
func (s *Store) notify(action ir.Action) {
	for _, sub := range slices.Clone(s.subscribers) {
		if *sub.active {
			sub.fn(action)
		}
	}
}

func (s *Store) index(path ir.Path) int {
	return slices.IndexFunc(s.reducers, func(a attached) bool { return a.path.Equal(path) })
}

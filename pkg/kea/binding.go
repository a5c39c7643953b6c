package kea

import (
	"maps"

	"github.com/cyrke/kea/internal/ir"
)

// Binding holds one mount of a wrapper on behalf of a consumer whose props
// may change over time, the way a UI component does.
//
// When new props resolve to a different path, the old logic is unmounted
// and the new one mounted. While that swap is in progress, store
// notifications would read a path that is being torn down, so Values
// returns the last snapshot taken for the old path instead.
type Binding struct {
	rt      *Runtime
	w       *Wrapper
	logic   *Logic
	props   Props
	release func()
	unsub   func()
	last    map[string]any
	closed  bool
}

// Bind builds and mounts w for props.
func (w *Wrapper) Bind(props Props) (*Binding, error) {
	l, err := w.Build(props)
	if err != nil {
		return nil, err
	}
	release, err := w.rt.Mount(l)
	if err != nil {
		return nil, err
	}
	return &Binding{rt: w.rt, w: w, logic: l, props: props, release: release}, nil
}

// Logic returns the currently bound logic.
func (b *Binding) Logic() *Logic { return b.logic }

// Update rebinds to new props. Nothing is remounted when the path stays
// the same.
func (b *Binding) Update(props Props) error {
	l, err := b.w.Build(props)
	if err != nil {
		return err
	}
	b.props = props
	if l.PathString == b.logic.PathString {
		return nil
	}

	old := b.logic.PathString
	b.rt.transitions[old] = true
	defer func() {
		delete(b.rt.transitions, old)
		delete(b.rt.snapshots, old)
	}()

	b.release()
	release, err := b.rt.Mount(l)
	if err != nil {
		return err
	}
	b.logic = l
	b.release = release
	return nil
}

// Values evaluates every selector of the bound logic.
func (b *Binding) Values() map[string]any {
	path := b.logic.PathString
	if b.rt.transitions[path] {
		if snap, ok := b.rt.snapshots[path]; ok {
			return snap
		}
		return b.last
	}
	state := b.rt.State()
	vals := make(map[string]any, len(b.logic.Selectors))
	for name, sel := range b.logic.Selectors {
		vals[name] = sel(state, b.props)
	}
	b.rt.snapshots[path] = vals
	b.last = vals
	return vals
}

// Actions returns the bound logic's dispatching actions.
func (b *Binding) Actions() map[string]ActionFunc {
	return maps.Clone(b.logic.Actions)
}

// Subscribe calls render with fresh values after every store notification
// that changes at least one value. Only one subscription is held; a second
// call replaces the first.
func (b *Binding) Subscribe(render func(values map[string]any)) {
	if b.unsub != nil {
		b.unsub()
	}
	store := b.rt.Store()
	if store == nil {
		return
	}
	prev := b.Values()
	b.unsub = store.Subscribe(func(ir.Action) {
		if b.closed {
			return
		}
		next := b.Values()
		if sameValues(prev, next) {
			return
		}
		prev = next
		render(next)
	})
}

// Close releases the mount and any subscription.
func (b *Binding) Close() {
	if b.closed {
		return
	}
	b.closed = true
	if b.unsub != nil {
		b.unsub()
	}
	path := b.logic.PathString
	b.rt.transitions[path] = true
	b.release()
	delete(b.rt.transitions, path)
	delete(b.rt.snapshots, path)
}

func sameValues(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		w, ok := b[k]
		if !ok || !ir.Same(v, w) {
			return false
		}
	}
	return true
}

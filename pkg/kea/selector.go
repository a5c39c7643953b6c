package kea

import "github.com/cyrke/kea/internal/ir"

// Memoize returns a selector that recomputes only when one of its inputs
// returns a value that is not Same as on the previous call.
func Memoize(compute func(args ...any) any, inputs ...Selector) Selector {
	m := &memo{compute: compute}
	return func(state map[string]any, props Props) any {
		return m.eval(inputs, state, props)
	}
}

type memo struct {
	compute func(args ...any) any
	last    []any
	out     any
	ok      bool
}

func (m *memo) eval(inputs []Selector, state map[string]any, props Props) any {
	args := make([]any, len(inputs))
	for i, sel := range inputs {
		args[i] = sel(state, props)
	}
	if m.ok && sameArgs(args, m.last) {
		return m.out
	}
	m.out = m.compute(args...)
	m.last = args
	m.ok = true
	return m.out
}

func sameArgs(a, b []any) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !ir.Same(a[i], b[i]) {
			return false
		}
	}
	return true
}

// lazySelector resolves its inputs by name on first evaluation, so a
// selector may read one declared after it.
func lazySelector(l *Logic, def SelectorDef) Selector {
	m := &memo{compute: def.Compute}
	var inputs []Selector
	return func(state map[string]any, props Props) any {
		if inputs == nil {
			inputs = make([]Selector, len(def.Inputs))
			for i, name := range def.Inputs {
				inputs[i] = l.Selectors[name]
			}
		}
		return m.eval(inputs, state, props)
	}
}

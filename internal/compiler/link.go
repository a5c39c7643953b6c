package compiler

import (
	"fmt"
	"strings"

	"github.com/cyrke/kea/internal/ir"
	"github.com/cyrke/kea/pkg/kea"
)

// Link defines every spec in rt and returns the wrappers by logic name.
// Dependencies are defined before their dependents. Specs must have passed
// ValidateAll; Link still fails on unknown or cyclic connections.
func Link(rt *kea.Runtime, specs []*ir.LogicSpec) (map[string]*kea.Wrapper, error) {
	byName := make(map[string]*ir.LogicSpec, len(specs))
	for _, s := range specs {
		byName[s.Name] = s
	}

	wrappers := make(map[string]*kea.Wrapper, len(specs))
	visiting := make(map[string]bool)

	var define func(name string, trail []string) error
	define = func(name string, trail []string) error {
		if _, done := wrappers[name]; done {
			return nil
		}
		spec, ok := byName[name]
		if !ok {
			return fmt.Errorf("%s: unknown logic %q", strings.Join(trail, " → "), name)
		}
		if visiting[name] {
			return fmt.Errorf("connection cycle: %s → %s", strings.Join(trail, " → "), name)
		}
		visiting[name] = true
		defer delete(visiting, name)

		for _, c := range spec.Connect {
			if err := define(c.Logic, append(trail, name)); err != nil {
				return err
			}
		}

		in, err := Input(spec, wrappers)
		if err != nil {
			return err
		}
		w, err := rt.Define(in)
		if err != nil {
			return fmt.Errorf("defining %s: %w", name, err)
		}
		wrappers[name] = w
		return nil
	}

	for _, s := range specs {
		if err := define(s.Name, nil); err != nil {
			return nil, err
		}
	}
	return wrappers, nil
}

// Input converts a spec into a kea definition. deps must hold a wrapper
// for every logic the definition connects to.
func Input(spec *ir.LogicSpec, deps map[string]*kea.Wrapper) (*kea.Input, error) {
	in := &kea.Input{
		ID:        spec.Name,
		Path:      spec.Path,
		Constants: spec.Constants,
		Defaults:  spec.Defaults,
		Actions:   make(map[string]kea.PayloadFunc, len(spec.Actions)),
		Options:   kea.Options{Lazy: spec.Lazy},
	}
	if len(in.Path) == 0 {
		in.Path = ir.Path{"logic", spec.Name}
	}
	if spec.Key != "" {
		prop := spec.Key
		in.Key = func(p kea.Props) any { return p[prop] }
	}

	for _, a := range spec.Actions {
		in.Actions[a.Name] = kea.Payload(a.Fields...)
	}

	for _, c := range spec.Connect {
		w, ok := deps[c.Logic]
		if !ok {
			return nil, fmt.Errorf("%s: connect: unknown logic %q", spec.Name, c.Logic)
		}
		conn := kea.Connection{Logic: w, Actions: c.Actions, Selectors: c.Selectors}
		switch {
		case c.KeyProp != "":
			prop := c.KeyProp
			conn.KeyFunc = func(p kea.Props) any { return p[prop] }
		case c.Key != "":
			conn.Key = c.Key
		}
		in.Connect = append(in.Connect, conn)
	}

	reducers, err := linkReducers(spec)
	if err != nil {
		return nil, err
	}
	if len(spec.Reducers) > 0 {
		in.Reducers = reducers
	}

	selectors, err := linkSelectors(spec)
	if err != nil {
		return nil, err
	}
	if len(spec.Selectors) > 0 {
		in.Selectors = selectors
	}

	if len(spec.Listeners) > 0 {
		in.Listeners = linkListeners(spec)
	}
	return in, nil
}

func linkReducers(spec *ir.LogicSpec) (func(*kea.Logic) map[string]kea.ReducerDef, error) {
	type handler struct {
		action string
		op     OpFunc
	}
	ops := make(map[string][]handler, len(spec.Reducers))
	for _, r := range spec.Reducers {
		for _, action := range ir.SortedKeys(r.On) {
			o := r.On[action]
			fn, err := Op(o.Op, o.Field)
			if err != nil {
				return nil, fmt.Errorf("%s.reducers.%s.on.%s: %w", spec.Name, r.Name, action, err)
			}
			ops[r.Name] = append(ops[r.Name], handler{action: action, op: fn})
		}
	}

	return func(l *kea.Logic) map[string]kea.ReducerDef {
		defs := make(map[string]kea.ReducerDef, len(spec.Reducers))
		for _, r := range spec.Reducers {
			name := r.Name
			on := make(map[string]kea.HandlerFunc, len(ops[name]))
			for _, h := range ops[name] {
				op := h.op
				on[l.Type(h.action)] = func(state, payload any) any {
					return op(state, payload, l.Defaults[name])
				}
			}
			defs[name] = kea.ReducerDef{Default: r.Default, Type: r.Type, On: on}
		}
		return defs
	}, nil
}

func linkSelectors(spec *ir.LogicSpec) (func(*kea.Logic) map[string]kea.SelectorDef, error) {
	defs := make(map[string]kea.SelectorDef, len(spec.Selectors))
	for _, s := range spec.Selectors {
		if err := selectorArity(s.Fn, len(s.Inputs)); err != nil {
			return nil, fmt.Errorf("%s.selectors.%s: %w", spec.Name, s.Name, err)
		}
		fn, _ := SelectorFunction(s.Fn)
		defs[s.Name] = kea.SelectorDef{Inputs: s.Inputs, Compute: fn, Type: s.Type}
	}
	return func(*kea.Logic) map[string]kea.SelectorDef { return defs }, nil
}

// linkListeners makes each listen entry dispatch a local action with
// arguments taken from the triggering payload.
func linkListeners(spec *ir.LogicSpec) func(*kea.Logic) map[string][]kea.ListenerFunc {
	return func(*kea.Logic) map[string][]kea.ListenerFunc {
		out := make(map[string][]kea.ListenerFunc, len(spec.Listeners))
		for action, entries := range spec.Listeners {
			for _, e := range entries {
				out[action] = append(out[action], func(l *kea.Logic, payload any) {
					dispatch, ok := l.Actions[e.Dispatch]
					if !ok {
						l.Runtime().Logger().Warn("listener dispatches unknown action", "logic", l.ID, "action", e.Dispatch)
						return
					}
					m, _ := payload.(map[string]any)
					args := make([]any, len(e.Args))
					for i, field := range e.Args {
						args[i] = m[field]
					}
					dispatch(args...)
				})
			}
		}
		return out
	}
}

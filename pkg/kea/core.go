package kea

import (
	"fmt"

	"github.com/cyrke/kea/internal/ir"
)

// Core build steps, in order.
const (
	StepConnect          = "connect"
	StepConstants        = "constants"
	StepActionCreators   = "actionCreators"
	StepActions          = "actions"
	StepDefaults         = "defaults"
	StepReducers         = "reducers"
	StepReducer          = "reducer"
	StepReducerSelectors = "reducerSelectors"
	StepSelectors        = "selectors"
	StepValues           = "values"
	StepEvents           = "events"
)

// CorePlugin returns the built-in plugin. Every runtime activates it
// first; its steps form the base of the step order.
func CorePlugin() *Plugin {
	return &Plugin{
		Name: CorePluginName,
		Steps: []Step{
			{Name: StepConnect, Run: connectStep},
			{Name: StepConstants, Run: constantsStep},
			{Name: StepActionCreators, Run: actionCreatorsStep},
			{Name: StepActions, Run: actionsStep},
			{Name: StepDefaults, Run: defaultsStep},
			{Name: StepReducers, Run: reducersStep},
			{Name: StepReducer, Run: reducerStep},
			{Name: StepReducerSelectors, Run: reducerSelectorsStep},
			{Name: StepSelectors, Run: selectorsStep},
			{Name: StepValues, Run: valuesStep},
			{Name: StepEvents, Run: eventsStep},
		},
	}
}

func constantsStep(l *Logic, in *Input, _ *BuildContext) error {
	for _, c := range in.Constants {
		l.Constants[c] = c
	}
	return nil
}

func actionCreatorsStep(l *Logic, in *Input, _ *BuildContext) error {
	for _, name := range ir.SortedKeys(in.Actions) {
		if _, ok := l.ActionCreators[name]; ok {
			return fmt.Errorf("action %q is already imported by a connection", name)
		}
		l.ActionCreators[name] = &ActionCreator{
			Name:    name,
			Type:    actionType(name, l.PathString),
			payload: in.Actions[name],
		}
	}
	return nil
}

// actionsStep binds every creator, local and connected, to the store.
func actionsStep(l *Logic, _ *Input, bc *BuildContext) error {
	rt := bc.Runtime
	for name, ac := range l.ActionCreators {
		l.Actions[name] = func(args ...any) ir.Action {
			a := ac.Create(args...)
			rt.Dispatch(a)
			return a
		}
	}
	return nil
}

func defaultsStep(l *Logic, in *Input, _ *BuildContext) error {
	for k, v := range in.Defaults {
		l.Defaults[k] = v
	}
	return nil
}

// reducersStep builds one reducer per key. A default from the defaults
// step wins over the reducer's own default.
func reducersStep(l *Logic, in *Input, _ *BuildContext) error {
	if in.Reducers == nil {
		return nil
	}
	defs := in.Reducers(l)
	for _, name := range ir.SortedKeys(defs) {
		def := defs[name]
		if _, ok := l.Defaults[name]; !ok {
			l.Defaults[name] = def.Default
		}
		if def.Type != "" {
			l.PropTypes[name] = def.Type
		}
		l.Reducers[name] = keyReducer(def.On)
	}
	return nil
}

func keyReducer(on map[string]HandlerFunc) ir.Reducer {
	return func(state any, a ir.Action) any {
		h, ok := on[a.Type]
		if !ok {
			return state
		}
		return h(state, a.Payload)
	}
}

// reducerStep combines the per-key reducers into the logic's reducer. The
// combined reducer returns its input unchanged when no key changed.
func reducerStep(l *Logic, _ *Input, _ *BuildContext) error {
	if len(l.Reducers) == 0 {
		return nil
	}
	names := ir.SortedKeys(l.Reducers)
	reducers := l.Reducers
	defaults := l.Defaults
	l.Reducer = func(state any, a ir.Action) any {
		prev, _ := state.(map[string]any)
		var next map[string]any
		for _, name := range names {
			cur, ok := prev[name]
			if !ok {
				cur = defaults[name]
			}
			v := reducers[name](cur, a)
			if ok && ir.Same(v, cur) {
				continue
			}
			if next == nil {
				next = make(map[string]any, len(names))
				for k, pv := range prev {
					next[k] = pv
				}
			}
			next[name] = v
		}
		if next == nil {
			return prev
		}
		return next
	}
	return nil
}

func reducerSelectorsStep(l *Logic, _ *Input, _ *BuildContext) error {
	path := l.Path
	l.Selector = func(state map[string]any, _ Props) any {
		return ir.GetIn(state, path)
	}
	root := l.Selector
	for _, name := range ir.SortedKeys(l.Reducers) {
		if _, ok := l.Selectors[name]; ok {
			return fmt.Errorf("reducer %q collides with a connected selector", name)
		}
		def := l.Defaults[name]
		l.Selectors[name] = func(state map[string]any, props Props) any {
			if m, ok := root(state, props).(map[string]any); ok {
				if v, ok := m[name]; ok {
					return v
				}
			}
			return def
		}
	}
	return nil
}

func selectorsStep(l *Logic, in *Input, _ *BuildContext) error {
	if in.Selectors == nil {
		return nil
	}
	defs := in.Selectors(l)
	names := ir.SortedKeys(defs)
	for _, name := range names {
		if _, ok := l.Selectors[name]; ok {
			return fmt.Errorf("selector %q is already defined", name)
		}
		def := defs[name]
		if def.Compute == nil {
			return fmt.Errorf("selector %q has no compute function", name)
		}
		if def.Type != "" {
			l.PropTypes[name] = def.Type
		}
		l.Selectors[name] = lazySelector(l, def)
	}
	for _, name := range names {
		for _, input := range defs[name].Inputs {
			if _, ok := l.Selectors[input]; !ok {
				return fmt.Errorf("selector %q reads unknown input %q", name, input)
			}
		}
	}
	return nil
}

func valuesStep(l *Logic, _ *Input, bc *BuildContext) error {
	rt := bc.Runtime
	for name, sel := range l.Selectors {
		l.Values[name] = func() any {
			return sel(rt.State(), l.Props)
		}
	}
	return nil
}

func eventsStep(l *Logic, in *Input, _ *BuildContext) error {
	for _, phase := range sortedPhases(in.Events) {
		if fn := in.Events[phase]; fn != nil {
			l.Events[phase] = append(l.Events[phase], fn)
		}
	}
	return nil
}

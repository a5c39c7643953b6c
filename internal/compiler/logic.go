package compiler

import (
	"fmt"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/cyrke/kea/internal/ir"
)

// CompileLogic parses a CUE value into a LogicSpec.
// Uses CUE SDK's Go API directly.
//
// The CUE value should be the logic struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`logic: counter: { ... }`)
//	spec, err := CompileLogic(v.LookupPath(cue.ParsePath("logic.counter")))
func CompileLogic(v cue.Value) (*ir.LogicSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.LogicSpec{
		Actions:  []ir.ActionSpec{},
		Reducers: []ir.ReducerSpec{},
	}

	// Logic name is the struct label
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}

	var err error
	if spec.Path, err = stringList(v, "path"); err != nil {
		return nil, err
	}
	if spec.Constants, err = stringList(v, "constants"); err != nil {
		return nil, err
	}
	if spec.Key, err = optionalString(v, "key"); err != nil {
		return nil, err
	}
	if lazyVal := v.LookupPath(cue.ParsePath("lazy")); lazyVal.Exists() {
		if spec.Lazy, err = lazyVal.Bool(); err != nil {
			return nil, formatCUEError(err)
		}
	}

	if spec.Actions, err = parseActions(v); err != nil {
		return nil, err
	}
	if spec.Reducers, err = parseReducers(v); err != nil {
		return nil, err
	}
	if spec.Selectors, err = parseSelectors(v); err != nil {
		return nil, err
	}
	if spec.Connect, err = parseConnect(v); err != nil {
		return nil, err
	}
	if spec.Listeners, err = parseListeners(v); err != nil {
		return nil, err
	}

	if defaultsVal := v.LookupPath(cue.ParsePath("defaults")); defaultsVal.Exists() {
		d, err := toGo(defaultsVal)
		if err != nil {
			return nil, err
		}
		m, ok := d.(map[string]any)
		if !ok {
			return nil, &CompileError{Field: "defaults", Message: "defaults must be a struct", Pos: defaultsVal.Pos()}
		}
		spec.Defaults = m
	}

	return spec, nil
}

// CompileAll compiles every field under the top-level "logic" struct, in
// name order.
func CompileAll(root cue.Value) ([]*ir.LogicSpec, []error) {
	logicsVal := root.LookupPath(cue.ParsePath("logic"))
	if !logicsVal.Exists() {
		return nil, nil
	}
	iter, err := logicsVal.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var specs []*ir.LogicSpec
	var errs []error
	for iter.Next() {
		spec, err := CompileLogic(iter.Value())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs, errs
}

// parseActions reads `actions: { name: ["field", ...] }`.
func parseActions(v cue.Value) ([]ir.ActionSpec, error) {
	actions := []ir.ActionSpec{}
	actionsVal := v.LookupPath(cue.ParsePath("actions"))
	if !actionsVal.Exists() {
		return actions, nil
	}

	iter, err := actionsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		fields, err := listOfStrings(iter.Value(), "actions."+iter.Label())
		if err != nil {
			return nil, err
		}
		actions = append(actions, ir.ActionSpec{Name: iter.Label(), Fields: fields})
	}
	return actions, nil
}

// parseReducers reads `reducers: { name: { default, type, on: { action: {op, field} } } }`.
func parseReducers(v cue.Value) ([]ir.ReducerSpec, error) {
	reducers := []ir.ReducerSpec{}
	reducersVal := v.LookupPath(cue.ParsePath("reducers"))
	if !reducersVal.Exists() {
		return reducers, nil
	}

	iter, err := reducersVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		name := iter.Label()
		rv := iter.Value()
		r := ir.ReducerSpec{Name: name, On: map[string]ir.OpSpec{}}

		if dv := rv.LookupPath(cue.ParsePath("default")); dv.Exists() {
			if r.Default, err = toGo(dv); err != nil {
				return nil, err
			}
		}
		if r.Type, err = optionalString(rv, "type"); err != nil {
			return nil, err
		}

		if onVal := rv.LookupPath(cue.ParsePath("on")); onVal.Exists() {
			onIter, err := onVal.Fields()
			if err != nil {
				return nil, formatCUEError(err)
			}
			for onIter.Next() {
				var op ir.OpSpec
				if op.Op, err = optionalString(onIter.Value(), "op"); err != nil {
					return nil, err
				}
				if op.Field, err = optionalString(onIter.Value(), "field"); err != nil {
					return nil, err
				}
				if op.Op == "" {
					return nil, &CompileError{
						Field:   fmt.Sprintf("reducers.%s.on.%s.op", name, onIter.Label()),
						Message: "op is required",
						Pos:     onIter.Value().Pos(),
					}
				}
				r.On[onIter.Label()] = op
			}
		}
		reducers = append(reducers, r)
	}
	return reducers, nil
}

// parseSelectors reads `selectors: { name: { inputs: [...], fn: "..." } }`.
func parseSelectors(v cue.Value) ([]ir.SelectorSpec, error) {
	selVal := v.LookupPath(cue.ParsePath("selectors"))
	if !selVal.Exists() {
		return nil, nil
	}

	iter, err := selVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var selectors []ir.SelectorSpec
	for iter.Next() {
		sv := iter.Value()
		s := ir.SelectorSpec{Name: iter.Label()}
		if s.Inputs, err = stringList(sv, "inputs"); err != nil {
			return nil, err
		}
		if s.Fn, err = optionalString(sv, "fn"); err != nil {
			return nil, err
		}
		if s.Type, err = optionalString(sv, "type"); err != nil {
			return nil, err
		}
		selectors = append(selectors, s)
	}
	return selectors, nil
}

// parseConnect reads `connect: [{ logic, key, key_prop, actions, selectors }]`.
func parseConnect(v cue.Value) ([]ir.ConnectSpec, error) {
	connVal := v.LookupPath(cue.ParsePath("connect"))
	if !connVal.Exists() {
		return nil, nil
	}

	iter, err := connVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var conns []ir.ConnectSpec
	for iter.Next() {
		cv := iter.Value()
		var c ir.ConnectSpec
		if c.Logic, err = optionalString(cv, "logic"); err != nil {
			return nil, err
		}
		if c.Key, err = optionalString(cv, "key"); err != nil {
			return nil, err
		}
		if c.KeyProp, err = optionalString(cv, "key_prop"); err != nil {
			return nil, err
		}
		if c.Actions, err = stringList(cv, "actions"); err != nil {
			return nil, err
		}
		if c.Selectors, err = stringList(cv, "selectors"); err != nil {
			return nil, err
		}
		conns = append(conns, c)
	}
	return conns, nil
}

// parseListeners reads `listeners: { action: [{ dispatch, args }] }`.
func parseListeners(v cue.Value) (map[string][]ir.ListenSpec, error) {
	lv := v.LookupPath(cue.ParsePath("listeners"))
	if !lv.Exists() {
		return nil, nil
	}

	iter, err := lv.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	out := make(map[string][]ir.ListenSpec)
	for iter.Next() {
		list, err := iter.Value().List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for list.Next() {
			var ls ir.ListenSpec
			if ls.Dispatch, err = optionalString(list.Value(), "dispatch"); err != nil {
				return nil, err
			}
			if ls.Args, err = stringList(list.Value(), "args"); err != nil {
				return nil, err
			}
			out[iter.Label()] = append(out[iter.Label()], ls)
		}
	}
	return out, nil
}

func optionalString(v cue.Value, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func stringList(v cue.Value, field string) ([]string, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return nil, nil
	}
	return listOfStrings(fv, field)
}

func listOfStrings(v cue.Value, field string) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must be a list of strings", Pos: v.Pos()}
	}
	out := []string{}
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{Field: field, Message: "must be a list of strings", Pos: iter.Value().Pos()}
		}
		out = append(out, s)
	}
	return out, nil
}

// toGo converts a concrete CUE value into plain Go values: nil, bool, int,
// string, []any and map[string]any.
// Floats are forbidden; state must hash canonically.
func toGo(v cue.Value) (any, error) {
	switch v.Kind() {
	case cue.NullKind:
		return nil, nil
	case cue.BoolKind:
		b, err := v.Bool()
		return b, formatCUEError(err)
	case cue.IntKind:
		n, err := v.Int64()
		return int(n), formatCUEError(err)
	case cue.StringKind:
		s, err := v.String()
		return s, formatCUEError(err)
	case cue.ListKind:
		iter, err := v.List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := []any{}
		for iter.Next() {
			item, err := toGo(iter.Value())
			if err != nil {
				return nil, err
			}
			out = append(out, item)
		}
		return out, nil
	case cue.StructKind:
		iter, err := v.Fields()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out := map[string]any{}
		for iter.Next() {
			item, err := toGo(iter.Value())
			if err != nil {
				return nil, err
			}
			out[iter.Label()] = item
		}
		return out, nil
	case cue.FloatKind, cue.NumberKind:
		return nil, &CompileError{
			Field:   "type",
			Message: "float values are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return nil, &CompileError{
			Field:   "value",
			Message: fmt.Sprintf("value must be concrete, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}

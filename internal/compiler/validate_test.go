package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cyrke/kea/internal/ir"
)

func validCounter() *ir.LogicSpec {
	return &ir.LogicSpec{
		Name:    "counter",
		Path:    ir.Path{"scenes", "counter"},
		Actions: []ir.ActionSpec{{Name: "increment", Fields: []string{"amount"}}, {Name: "reset"}},
		Reducers: []ir.ReducerSpec{{
			Name:    "count",
			Default: 0,
			Type:    "int",
			On: map[string]ir.OpSpec{
				"increment": {Op: "add", Field: "amount"},
				"reset":     {Op: "reset"},
			},
		}},
		Selectors: []ir.SelectorSpec{{Name: "doubled", Inputs: []string{"count"}, Fn: "double"}},
	}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateValidSpec(t *testing.T) {
	assert.Empty(t, Validate(validCounter()))
	assert.Empty(t, Validate(*validCounter()))
}

func TestValidateUnsupportedType(t *testing.T) {
	errs := Validate("nope")
	assert.Equal(t, []string{ErrUnsupportedIRType}, codes(errs))
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ir.LogicSpec)
		code   string
	}{
		{"invalid logic name", func(s *ir.LogicSpec) { s.Name = "has space" }, ErrInvalidName},
		{"empty path segment", func(s *ir.LogicSpec) { s.Path = ir.Path{"a", ""} }, ErrInvalidPath},
		{"duplicate action", func(s *ir.LogicSpec) { s.Actions = append(s.Actions, ir.ActionSpec{Name: "reset"}) }, ErrDuplicateName},
		{"unknown action in reducer", func(s *ir.LogicSpec) { s.Reducers[0].On["nope"] = ir.OpSpec{Op: "reset"} }, ErrUnknownAction},
		{"invalid op", func(s *ir.LogicSpec) { s.Reducers[0].On["reset"] = ir.OpSpec{Op: "explode"} }, ErrInvalidOp},
		{"set without field", func(s *ir.LogicSpec) { s.Reducers[0].On["reset"] = ir.OpSpec{Op: "set"} }, ErrOpMissingField},
		{"unknown selector input", func(s *ir.LogicSpec) { s.Selectors[0].Inputs = []string{"missing"} }, ErrUnknownInput},
		{"unknown selector fn", func(s *ir.LogicSpec) { s.Selectors[0].Fn = "sqrt" }, ErrInvalidSelectorFn},
		{"selector arity", func(s *ir.LogicSpec) { s.Selectors[0].Inputs = []string{"count", "count"} }, ErrInvalidSelectorFn},
		{"float type", func(s *ir.LogicSpec) { s.Reducers[0].Type = "float64" }, ErrInvalidType},
		{"selector collides with reducer", func(s *ir.LogicSpec) { s.Selectors[0].Name = "count" }, ErrDuplicateName},
		{"connect without logic", func(s *ir.LogicSpec) { s.Connect = []ir.ConnectSpec{{}} }, ErrConnectMissingLogic},
		{"key and key_prop", func(s *ir.LogicSpec) { s.Connect = []ir.ConnectSpec{{Logic: "x", Key: "1", KeyProp: "id"}} }, ErrConnectKeyConflict},
		{"bad import", func(s *ir.LogicSpec) { s.Connect = []ir.ConnectSpec{{Logic: "x", Actions: []string{"a as"}}} }, ErrInvalidImport},
		{"listener on unknown action", func(s *ir.LogicSpec) {
			s.Listeners = map[string][]ir.ListenSpec{"nope": {{Dispatch: "reset"}}}
		}, ErrUnknownAction},
		{"listener dispatches unknown action", func(s *ir.LogicSpec) {
			s.Listeners = map[string][]ir.ListenSpec{"increment": {{Dispatch: "nope"}}}
		}, ErrInvalidListener},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validCounter()
			tt.mutate(spec)
			assert.Contains(t, codes(Validate(spec)), tt.code)
		})
	}
}

func TestValidateConnectedAliases(t *testing.T) {
	spec := &ir.LogicSpec{
		Name:    "view",
		Connect: []ir.ConnectSpec{{Logic: "counter", Actions: []string{"increment as bump"}, Selectors: []string{"count as total"}}},
		Reducers: []ir.ReducerSpec{{
			Name: "bumps",
			On:   map[string]ir.OpSpec{"bump": {Op: "add"}},
		}},
		Selectors: []ir.SelectorSpec{{Name: "label", Inputs: []string{"total"}, Fn: "identity"}},
	}
	assert.Empty(t, Validate(spec))
}

func TestValidateAll(t *testing.T) {
	view := &ir.LogicSpec{Name: "view", Connect: []ir.ConnectSpec{{Logic: "counter"}}}
	orphan := &ir.LogicSpec{Name: "orphan", Connect: []ir.ConnectSpec{{Logic: "ghost"}}}
	assert.Empty(t, ValidateAll([]*ir.LogicSpec{validCounter(), view}))

	errs := ValidateAll([]*ir.LogicSpec{validCounter(), orphan, validCounter()})
	assert.ElementsMatch(t, []string{ErrConnectUnknownLogic, ErrDuplicateName}, codes(errs))
}

func TestValidationErrorFormat(t *testing.T) {
	e := ValidationError{Field: "actions[0]", Message: "bad", Code: "E101"}
	assert.Equal(t, "[E101] actions[0]: bad", e.Error())

	e.Line = 3
	assert.Equal(t, "[E101] line 3: actions[0]: bad", e.Error())
}

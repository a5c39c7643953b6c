package compiler

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SelectorFunc computes a derived value from its inputs.
type SelectorFunc func(args ...any) any

// selectorFn is a named selector function with its accepted arity.
// max < 0 means variadic.
type selectorFn struct {
	fn       SelectorFunc
	min, max int
}

var selectorFns = map[string]selectorFn{
	"identity":   {fn: func(a ...any) any { return a[0] }, min: 1, max: 1},
	"upper":      {fn: func(a ...any) any { return strings.ToUpper(toString(a[0])) }, min: 1, max: 1},
	"lower":      {fn: func(a ...any) any { return strings.ToLower(toString(a[0])) }, min: 1, max: 1},
	"trim":       {fn: func(a ...any) any { return strings.TrimSpace(toString(a[0])) }, min: 1, max: 1},
	"capitalize": {fn: capitalize, min: 1, max: 1},
	"not":        {fn: func(a ...any) any { b, _ := a[0].(bool); return !b }, min: 1, max: 1},
	"double":     {fn: func(a ...any) any { n, _ := ToInt(a[0]); return n * 2 }, min: 1, max: 1},
	"count":      {fn: count, min: 1, max: 1},
	"sum":        {fn: sum, min: 1, max: -1},
	"concat":     {fn: concat, min: 1, max: -1},
}

// SelectorFunction looks up a named selector function.
func SelectorFunction(name string) (SelectorFunc, bool) {
	f, ok := selectorFns[name]
	return f.fn, ok
}

func selectorArity(name string, n int) error {
	f, ok := selectorFns[name]
	if !ok {
		return fmt.Errorf("unknown selector function %q", name)
	}
	if n < f.min || (f.max >= 0 && n > f.max) {
		if f.max < 0 {
			return fmt.Errorf("%s takes at least %d input(s), got %d", name, f.min, n)
		}
		return fmt.Errorf("%s takes %d input(s), got %d", name, f.min, n)
	}
	return nil
}

var titleCaser = cases.Title(language.Und, cases.NoLower)

func capitalize(a ...any) any {
	s := toString(a[0])
	if s == "" {
		return s
	}
	first := []rune(s)[0]
	if !unicode.IsLetter(first) {
		return s
	}
	return titleCaser.String(s[:len(string(first))]) + s[len(string(first)):]
}

func count(a ...any) any {
	switch v := a[0].(type) {
	case []any:
		return len(v)
	case string:
		return len([]rune(v))
	case map[string]any:
		return len(v)
	}
	return 0
}

func sum(a ...any) any {
	total := 0
	for _, v := range a {
		if list, ok := v.([]any); ok {
			for _, item := range list {
				n, _ := ToInt(item)
				total += n
			}
			continue
		}
		n, _ := ToInt(v)
		total += n
	}
	return total
}

func concat(a ...any) any {
	var b strings.Builder
	for _, v := range a {
		b.WriteString(toString(v))
	}
	return b.String()
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	}
	return fmt.Sprint(v)
}

// ToInt converts the integer representations that reach reducers into
// int: native ints from CUE and YAML, json.Number and whole float64 values
// from decoded journal payloads.
func ToInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case int32:
		return int(n), true
	case uint64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	case float64:
		if n == math.Trunc(n) {
			return int(n), true
		}
	}
	return 0, false
}

// OpFunc transforms a reducer value. reset is the reducer's default.
type OpFunc func(state, payload, reset any) any

// Op returns the reducer operation for spec op and payload field.
func Op(op, field string) (OpFunc, error) {
	arg := func(payload any) any {
		m, _ := payload.(map[string]any)
		return m[field]
	}
	switch op {
	case "set":
		return func(_, payload, _ any) any { return arg(payload) }, nil
	case "add", "sub":
		sign := 1
		if op == "sub" {
			sign = -1
		}
		// A nil state counts as zero; any other non-integer operand leaves
		// the state unchanged.
		return func(state, payload, _ any) any {
			cur := 0
			if state != nil {
				n, ok := ToInt(state)
				if !ok {
					return state
				}
				cur = n
			}
			delta := 1
			if field != "" {
				n, ok := ToInt(arg(payload))
				if !ok {
					return state
				}
				delta = n
			}
			return cur + sign*delta
		}, nil
	case "toggle":
		return func(state, _, _ any) any {
			b, _ := state.(bool)
			return !b
		}, nil
	case "reset":
		return func(_, _, reset any) any { return reset }, nil
	case "append":
		return func(state, payload, _ any) any {
			list, _ := state.([]any)
			out := make([]any, len(list), len(list)+1)
			copy(out, list)
			return append(out, arg(payload))
		}, nil
	}
	return nil, fmt.Errorf("unknown op %q", op)
}

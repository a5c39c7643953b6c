package harness

import (
	"fmt"
	"reflect"
	"strings"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", event.Seq, event)
		}
	}
	return buf.String()
}

// EvaluateAssertions evaluates all assertions and returns one message per
// failure.
func EvaluateAssertions(h *Harness, result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertValue:
			err = h.assertValue(a)
		case AssertMounted:
			err = h.assertMounted(a)
		case AssertMountCount:
			err = h.assertMountCount(a)
		case AssertState:
			err = assertState(result.State, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func (h *Harness) assertValue(a Assertion) error {
	l, err := h.build(a.Logic, a.Key, a.Props)
	if err != nil {
		return &AssertionError{
			Type:     AssertValue,
			Expected: fmt.Sprintf("logic %s to build", a.Logic),
			Actual:   err.Error(),
		}
	}
	if _, ok := l.Values[a.Selector]; !ok {
		return &AssertionError{
			Type:     AssertValue,
			Expected: fmt.Sprintf("%s to have selector %q", l.ID, a.Selector),
			Actual:   "no such selector",
		}
	}
	got := l.Value(a.Selector)
	if !valuesEqual(got, a.Expect) {
		return &AssertionError{
			Type:     AssertValue,
			Expected: fmt.Sprintf("%s.%s = %v (type %T)", l.ID, a.Selector, a.Expect, a.Expect),
			Actual:   fmt.Sprintf("%v (type %T)", got, got),
		}
	}
	return nil
}

func (h *Harness) assertMounted(a Assertion) error {
	want := a.Expect.(bool)
	got := false
	if l, ok := h.rt.Cached(a.Identity); ok {
		got = l.Mounted
	}
	if got != want {
		return &AssertionError{
			Type:     AssertMounted,
			Expected: fmt.Sprintf("%s mounted = %t", a.Identity, want),
			Actual:   fmt.Sprintf("mounted = %t", got),
		}
	}
	return nil
}

func (h *Harness) assertMountCount(a Assertion) error {
	got := 0
	if l, ok := h.rt.Cached(a.Identity); ok {
		got = l.MountCount()
	}
	if got != a.Count {
		return &AssertionError{
			Type:     AssertMountCount,
			Expected: fmt.Sprintf("%s mount count = %d", a.Identity, a.Count),
			Actual:   fmt.Sprintf("%d", got),
		}
	}
	return nil
}

func assertState(state map[string]any, a Assertion) error {
	got := stateAt(state, a.Path)
	if !valuesEqual(got, a.Expect) {
		return &AssertionError{
			Type:     AssertState,
			Expected: fmt.Sprintf("state at %s = %v", strings.Join(a.Path, "."), a.Expect),
			Actual:   fmt.Sprintf("%v", got),
		}
	}
	return nil
}

// assertTraceOrder checks that entries appear in the given order. They need
// not be consecutive.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		entry := event.String()
		if _, seen := positions[entry]; !seen {
			positions[entry] = i + 1
		}
	}

	for _, entry := range a.Entries {
		if positions[entry] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all entries present: %v", a.Entries),
				Actual:   fmt.Sprintf("missing entry: %s", entry),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(a.Entries); i++ {
		prev, curr := a.Entries[i-1], a.Entries[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("entries in order: %v", a.Entries),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.String() == a.Entry {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Entry),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// valuesEqual compares a runtime value with a YAML expectation. Integers
// compare by value whatever their Go type.
func valuesEqual(actual, expected any) bool {
	if actual == nil || expected == nil {
		return actual == nil && expected == nil
	}
	if a, ok := toInt64(actual); ok {
		e, ok := toInt64(expected)
		return ok && a == e
	}
	switch e := expected.(type) {
	case []any:
		a, ok := actual.([]any)
		if !ok || len(a) != len(e) {
			return false
		}
		for i := range e {
			if !valuesEqual(a[i], e[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		a, ok := actual.(map[string]any)
		if !ok || len(a) != len(e) {
			return false
		}
		for k, ev := range e {
			av, ok := a[k]
			if !ok || !valuesEqual(av, ev) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(actual, expected)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case uint64:
		return int64(n), true
	}
	return 0, false
}

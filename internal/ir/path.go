package ir

import (
	"reflect"
	"strings"
)

// Path locates a slice of state in the global state tree,
// e.g. ["scenes", "hooky"].
type Path []string

// String joins the path with dots: "scenes.hooky".
func (p Path) String() string {
	return strings.Join(p, ".")
}

// Append returns a new path with the given segments added.
// The receiver is never aliased by the result.
func (p Path) Append(segments ...string) Path {
	out := make(Path, 0, len(p)+len(segments))
	out = append(out, p...)
	return append(out, segments...)
}

// Equal reports whether two paths have identical segments.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i] != other[i] {
			return false
		}
	}
	return true
}

// Action is a dispatched message. Type is globally unique per action creator.
type Action struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// InitActionType is dispatched to a reducer when it is attached to a store.
const InitActionType = "@@kea/init"

// DetachActionType is announced to store subscribers when a reducer is
// removed. Reducers never see it.
const DetachActionType = "@@kea/detach"

// Reducer is a pure state transition. It must return the input state
// unchanged (same identity) when the action does not concern it.
type Reducer func(state any, action Action) any

// GetIn reads the value at path from a tree of map[string]any nodes.
// Returns nil when any segment is missing.
func GetIn(tree any, path Path) any {
	cur := tree
	for _, seg := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[seg]
	}
	return cur
}

// SetIn returns a copy of tree with value stored at path. Only the maps along
// the path are copied; siblings keep their identity. If the current value at
// path is already Same as value, tree itself is returned.
func SetIn(tree map[string]any, path Path, value any) map[string]any {
	if len(path) == 0 {
		if m, ok := value.(map[string]any); ok {
			return m
		}
		return tree
	}
	if Same(GetIn(tree, path), value) {
		if _, exists := lookup(tree, path); exists {
			return tree
		}
	}

	out := copyMap(tree)
	if len(path) == 1 {
		out[path[0]] = value
		return out
	}

	child, _ := out[path[0]].(map[string]any)
	out[path[0]] = SetIn(child, path[1:], value)
	return out
}

// DeleteIn returns a copy of tree without the value at path. Parents left
// empty by the removal are pruned as well.
func DeleteIn(tree map[string]any, path Path) map[string]any {
	if len(path) == 0 {
		return tree
	}
	if _, exists := lookup(tree, path); !exists {
		return tree
	}

	out := copyMap(tree)
	if len(path) == 1 {
		delete(out, path[0])
		return out
	}

	child, _ := out[path[0]].(map[string]any)
	next := DeleteIn(child, path[1:])
	if len(next) == 0 {
		delete(out, path[0])
	} else {
		out[path[0]] = next
	}
	return out
}

func lookup(tree map[string]any, path Path) (any, bool) {
	var cur any = tree
	for _, seg := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[seg]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Same reports whether a and b are the same value by identity.
//
// Maps, slices, pointers, channels and funcs compare by reference (slices
// also by length). Other comparable values compare with ==. Values that are
// neither (structs holding maps, for example) fall back to reflect.DeepEqual.
func Same(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Map, reflect.Pointer, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	}
	if va.Comparable() && vb.Comparable() {
		return va.Equal(vb)
	}
	return reflect.DeepEqual(a, b)
}

package kea

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/cyrke/kea/internal/ir"
)

// identity is where a definition lands for one set of props.
type identity struct {
	id   string
	path ir.Path
	key  any
}

// resolveIdentity computes the path and identity of in for props. The
// path comes from PathFunc, then Path, then a stable inline path assigned
// on first sight of the definition. Keyed definitions append the key.
func (rt *Runtime) resolveIdentity(in *Input, props Props) (identity, error) {
	root := in.root()

	var key any
	keyed := in.keyed()
	switch {
	case in.fixedKey != nil:
		key = in.fixedKey
	case in.keyFunc != nil:
		key = in.keyFunc(props)
	case root.Key != nil:
		key = root.Key(props)
	}
	if keyed && key == nil {
		return identity{}, newError(ErrCodeUnresolvedConnection, "keyed logic %s has no key for props %v", rt.describe(root), props)
	}

	var path ir.Path
	switch {
	case root.PathFunc != nil:
		path = slices.Clone(root.PathFunc(key))
	case len(root.Path) > 0:
		path = slices.Clone(root.Path)
		if keyed {
			path = append(path, keyString(key))
		}
	default:
		path = rt.inlinePath(root)
		if keyed {
			path = append(path, keyString(key))
		}
	}
	if len(path) == 0 {
		return identity{}, newError(ErrCodeIdentityCollision, "logic %s resolved to an empty path", rt.describe(root))
	}
	return identity{id: path.String(), path: path, key: key}, nil
}

// inlinePath assigns definitions without a path a stable slot, in order of
// first use.
func (rt *Runtime) inlinePath(root *Input) ir.Path {
	n, ok := rt.inline[root]
	if !ok {
		rt.nextInline++
		n = rt.nextInline
		rt.inline[root] = n
	}
	return ir.Path{"kea", "inline", strconv.Itoa(n)}
}

func (rt *Runtime) describe(root *Input) string {
	if root.ID != "" {
		return strconv.Quote(root.ID)
	}
	if len(root.Path) > 0 {
		return root.Path.String()
	}
	return "(inline)"
}

func keyString(key any) string {
	if s, ok := key.(string); ok {
		return s
	}
	return fmt.Sprint(key)
}

// fingerprint summarizes the data-only shape of a definition. Two distinct
// definitions resolving to one identity are accepted only when their
// fingerprints match, so a re-created but equivalent definition reuses the
// cached logic while an unrelated one is rejected.
func (rt *Runtime) fingerprint(in *Input) string {
	root := in.root()
	if fp, ok := rt.fingerprints[root]; ok {
		return fp
	}

	conns := make([]any, len(root.Connect))
	for i, c := range root.Connect {
		target := ""
		if c.Logic != nil {
			target = rt.describe(c.Logic.input.root())
		}
		conns[i] = map[string]any{
			"logic":     target,
			"actions":   stringsAny(c.Actions),
			"selectors": stringsAny(c.Selectors),
		}
	}

	shape := map[string]any{
		"id":        root.ID,
		"path":      stringsAny(root.Path),
		"keyed":     root.Key != nil,
		"pathFunc":  root.PathFunc != nil,
		"constants": stringsAny(root.Constants),
		"actions":   stringsAny(ir.SortedKeys(root.Actions)),
		"defaults":  stringsAny(ir.SortedKeys(root.Defaults)),
		"reducers":  root.Reducers != nil,
		"selectors": root.Selectors != nil,
		"listeners": root.Listeners != nil,
		"connect":   conns,
	}
	fp, err := ir.Fingerprint(shape)
	if err != nil {
		// The shape holds only strings, bools and slices of them.
		panic(fmt.Sprintf("kea: fingerprint: %v", err))
	}
	rt.fingerprints[root] = fp
	return fp
}

// sameDeclarations reports whether a and b declare the same reducer,
// selector and listener keys when evaluated against l. Declaration
// functions only run on a cache hit across distinct roots.
func sameDeclarations(a, b *Input, l *Logic) bool {
	ka, errA := declaredKeys(a, l)
	kb, errB := declaredKeys(b, l)
	if errA != nil || errB != nil {
		return false
	}
	return slices.Equal(ka, kb)
}

func declaredKeys(in *Input, l *Logic) (keys []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if in.Reducers != nil {
		for _, k := range ir.SortedKeys(in.Reducers(l)) {
			keys = append(keys, "reducer:"+k)
		}
	}
	if in.Selectors != nil {
		for _, k := range ir.SortedKeys(in.Selectors(l)) {
			keys = append(keys, "selector:"+k)
		}
	}
	if in.Listeners != nil {
		for _, k := range ir.SortedKeys(in.Listeners(l)) {
			keys = append(keys, "listener:"+k)
		}
	}
	return keys, nil
}

func stringsAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

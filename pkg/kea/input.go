package kea

import (
	"github.com/cyrke/kea/internal/ir"
)

// Props are the runtime properties a logic is built with. Keyed logics
// derive their key from props.
type Props map[string]any

// PayloadFunc turns action creator arguments into an action payload.
type PayloadFunc func(args ...any) any

// HandlerFunc computes a reducer key's next value from its current value
// and an action payload. Returning state unchanged keeps its identity.
type HandlerFunc func(state any, payload any) any

// ReducerDef declares one reducer key.
type ReducerDef struct {
	Default any
	// Type is a runtime type declaration, collected into Logic.PropTypes.
	Type string
	// On maps action types (see Logic.Type) to handlers.
	On map[string]HandlerFunc
}

// SelectorDef declares a memoized derived value. Inputs name other
// selectors of the same logic, including reducer keys, other selectors
// (in any declaration order) and connected selectors by alias.
type SelectorDef struct {
	Inputs  []string
	Compute func(args ...any) any
	Type    string
}

// Options configures how a definition is compiled.
type Options struct {
	// Lazy defers the build until first use. Keyed definitions and
	// definitions connecting with a props-derived key are always lazy.
	Lazy bool
	// Plugins are activated for this definition only, on top of the
	// runtime's plugins.
	Plugins []PluginSource
	// DisablePlugins names runtime plugins to skip for this definition.
	// The core plugin cannot be disabled.
	DisablePlugins []string
}

// Connection declares a dependency on another logic. Actions and
// Selectors entries are "name" or "name as alias".
type Connection struct {
	Logic *Wrapper
	// Key builds a keyed dependency with a fixed key.
	Key any
	// KeyFunc derives the dependency key from the dependent's props.
	KeyFunc   func(props Props) any
	Actions   []string
	Selectors []string
}

// Input is the declarative definition of a logic. It is never mutated
// by the runtime.
type Input struct {
	// ID optionally names the definition; it is part of its fingerprint.
	ID string
	// Path locates the logic in the state tree. Keyed logics append the key.
	Path ir.Path
	// PathFunc computes the path from the key and takes precedence over Path.
	PathFunc func(key any) ir.Path
	// Key marks the definition as dynamic: one logic per distinct key.
	Key func(props Props) any

	Constants []string
	Actions   map[string]PayloadFunc
	Defaults  map[string]any
	Reducers  func(l *Logic) map[string]ReducerDef
	Selectors func(l *Logic) map[string]SelectorDef
	// Listeners are run by the listeners plugin for matching action types.
	Listeners func(l *Logic) map[string][]ListenerFunc
	// Events are logic-level lifecycle handlers, run after plugin handlers.
	Events  map[Phase]func(l *Logic)
	Connect []Connection
	Options Options
	// Extra carries plugin-specific definition fields.
	Extra map[string]any

	base     *Input
	fixedKey any
	keyFunc  func(props Props) any
}

// WithKey returns a definition that resolves to this definition's logic
// for a fixed key. It shares identity and fingerprint with the receiver.
func (in *Input) WithKey(key any) *Input {
	return &Input{base: in.root(), fixedKey: key}
}

// WithKeyFunc returns a definition whose key is computed by fn instead of
// the declared Key function.
func (in *Input) WithKeyFunc(fn func(props Props) any) *Input {
	return &Input{base: in.root(), keyFunc: fn}
}

// root returns the original definition a partial was derived from.
func (in *Input) root() *Input {
	if in.base != nil {
		return in.base
	}
	return in
}

func (in *Input) keyed() bool {
	return in.root().Key != nil || in.fixedKey != nil || in.keyFunc != nil
}

func (in *Input) lazy() bool {
	r := in.root()
	if r.Options.Lazy || in.keyed() {
		return true
	}
	for _, c := range r.Connect {
		if c.KeyFunc != nil {
			return true
		}
	}
	return false
}

// Payload returns a PayloadFunc mapping positional arguments onto the
// named payload fields. Missing arguments are left out.
func Payload(fields ...string) PayloadFunc {
	return func(args ...any) any {
		p := make(map[string]any, len(fields))
		for i, f := range fields {
			if i < len(args) {
				p[f] = args[i]
			}
		}
		return p
	}
}

// FromPayload returns a handler that replaces the state with one payload
// field.
func FromPayload(field string) HandlerFunc {
	return func(state any, payload any) any {
		if m, ok := payload.(map[string]any); ok {
			if v, ok := m[field]; ok {
				return v
			}
		}
		return state
	}
}

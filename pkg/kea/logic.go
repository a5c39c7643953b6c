package kea

import (
	"strings"
	"unicode"

	"github.com/cyrke/kea/internal/ir"
)

// Selector reads a value from the full state tree.
type Selector func(state map[string]any, props Props) any

// ActionFunc creates and dispatches an action, returning it.
type ActionFunc func(args ...any) ir.Action

// ActionCreator builds actions of one type without dispatching them.
type ActionCreator struct {
	Name    string
	Type    string
	payload PayloadFunc
}

// Create builds the action for args.
func (ac *ActionCreator) Create(args ...any) ir.Action {
	var payload any
	if ac.payload != nil {
		payload = ac.payload(args...)
	}
	return ir.Action{Type: ac.Type, Payload: payload}
}

// Logic is a built instance. It is populated by build steps and is
// immutable once cached, except for its mount state.
type Logic struct {
	ID         string
	Path       ir.Path
	PathString string
	Key        any
	Props      Props
	Input      *Input

	Constants      map[string]string
	ActionCreators map[string]*ActionCreator
	Actions        map[string]ActionFunc
	Defaults       map[string]any
	Reducers       map[string]ir.Reducer
	Reducer        ir.Reducer
	Selector       Selector
	Selectors      map[string]Selector
	Values         map[string]func() any
	PropTypes      map[string]string
	Events         map[Phase][]func(*Logic)
	Connections    map[string]*Logic
	// Extra holds fields contributed by plugins, seeded from plugin defaults.
	Extra map[string]any
	// Cache is scratch space for plugins.
	Cache map[string]any

	Mounted bool

	rt         *Runtime
	registry   *Registry
	deps       []*Logic
	mountCount int
	lazy       bool
}

func newLogic(rt *Runtime, in *Input, id identity, props Props) *Logic {
	return &Logic{
		ID:             id.id,
		Path:           id.path,
		PathString:     id.id,
		Key:            id.key,
		Props:          props,
		Input:          in.root(),
		Constants:      make(map[string]string),
		ActionCreators: make(map[string]*ActionCreator),
		Actions:        make(map[string]ActionFunc),
		Defaults:       make(map[string]any),
		Reducers:       make(map[string]ir.Reducer),
		Selectors:      make(map[string]Selector),
		Values:         make(map[string]func() any),
		PropTypes:      make(map[string]string),
		Events:         make(map[Phase][]func(*Logic)),
		Connections:    make(map[string]*Logic),
		Extra:          make(map[string]any),
		Cache:          make(map[string]any),
		rt:             rt,
		lazy:           in.lazy(),
	}
}

// MountCount returns how many mounts are currently held.
func (l *Logic) MountCount() int { return l.mountCount }

// Runtime returns the runtime the logic was built in.
func (l *Logic) Runtime() *Runtime { return l.rt }

// Type returns the action type of a local or connected action, or "".
func (l *Logic) Type(action string) string {
	if ac, ok := l.ActionCreators[action]; ok {
		return ac.Type
	}
	return ""
}

// Value reads a selector against the current store state.
func (l *Logic) Value(name string) any {
	if fn, ok := l.Values[name]; ok {
		return fn()
	}
	return nil
}

// Dependencies returns connected logics in declaration order.
func (l *Logic) Dependencies() []*Logic {
	return append([]*Logic(nil), l.deps...)
}

// Field returns a named logic field. Unknown names fall through to Extra,
// where plugin-contributed fields live.
func (l *Logic) Field(name string) (any, bool) {
	switch name {
	case "id":
		return l.ID, true
	case "path":
		return l.Path, true
	case "pathString":
		return l.PathString, true
	case "key":
		return l.Key, true
	case "props":
		return l.Props, true
	case "constants":
		return l.Constants, true
	case "actionCreators":
		return l.ActionCreators, true
	case "actions":
		return l.Actions, true
	case "defaults":
		return l.Defaults, true
	case "reducers":
		return l.Reducers, true
	case "reducer":
		return l.Reducer, l.Reducer != nil
	case "selector":
		return l.Selector, l.Selector != nil
	case "selectors":
		return l.Selectors, true
	case "values":
		return l.Values, true
	case "propTypes":
		return l.PropTypes, true
	case "events":
		return l.Events, true
	case "connections":
		return l.Connections, true
	case "cache":
		return l.Cache, true
	}
	v, ok := l.Extra[name]
	return v, ok
}

// actionType formats the globally unique type for an action:
// "updateName" at scenes.hooky becomes "update name (scenes.hooky)".
func actionType(name, pathString string) string {
	return toSpaces(name) + " (" + pathString + ")"
}

func toSpaces(name string) string {
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

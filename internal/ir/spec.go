package ir

// LogicSpec is the declarative, data-only form of a logic definition as
// compiled from CUE. It carries no functions; the compiler links it into a
// runnable kea.Input.
type LogicSpec struct {
	Name      string                  `json:"name"`
	Path      Path                    `json:"path,omitempty"`
	Key       string                  `json:"key,omitempty"` // props field holding the key
	Lazy      bool                    `json:"lazy,omitempty"`
	Constants []string                `json:"constants,omitempty"`
	Actions   []ActionSpec            `json:"actions"`
	Reducers  []ReducerSpec           `json:"reducers"`
	Selectors []SelectorSpec          `json:"selectors,omitempty"`
	Connect   []ConnectSpec           `json:"connect,omitempty"`
	Defaults  map[string]any          `json:"defaults,omitempty"`
	Listeners map[string][]ListenSpec `json:"listeners,omitempty"`
}

// ActionSpec declares an action and the payload fields its creator accepts,
// in argument order.
type ActionSpec struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
}

// ReducerSpec declares one reducer key: its default and how each action
// transforms it.
type ReducerSpec struct {
	Name    string            `json:"name"`
	Default any               `json:"default"`
	Type    string            `json:"type,omitempty"`
	On      map[string]OpSpec `json:"on"` // action name -> op
}

// OpSpec is a single reducer operation.
type OpSpec struct {
	Op    string `json:"op"`              // "set", "add", "sub", "toggle", "reset", "append"
	Field string `json:"field,omitempty"` // payload field the op reads
}

// SelectorSpec declares a derived value computed from other selectors.
type SelectorSpec struct {
	Name   string   `json:"name"`
	Inputs []string `json:"inputs"`
	Fn     string   `json:"fn"`
	Type   string   `json:"type,omitempty"`
}

// ConnectSpec imports actions and selectors from another logic by name.
// Entries use "name" or "name as alias".
type ConnectSpec struct {
	Logic     string   `json:"logic"`
	Key       string   `json:"key,omitempty"`      // fixed key for keyed dependencies
	KeyProp   string   `json:"key_prop,omitempty"` // props field carrying the dependency key
	Actions   []string `json:"actions,omitempty"`
	Selectors []string `json:"selectors,omitempty"`
}

// ListenSpec is a side effect run when an action is dispatched: it
// dispatches Dispatch (a local action name) with Args taken from the
// triggering payload fields.
type ListenSpec struct {
	Dispatch string   `json:"dispatch"`
	Args     []string `json:"args,omitempty"`
}

// Valid reducer ops.
var ValidOps = map[string]bool{
	"set":    true,
	"add":    true,
	"sub":    true,
	"toggle": true,
	"reset":  true,
	"append": true,
}

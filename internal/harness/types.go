package harness

import "fmt"

// Trace event kinds.
const (
	KindMount   = "mount"
	KindUnmount = "unmount"
	KindAction  = "action"
)

// TraceEvent is one recorded transition or top-level action.
type TraceEvent struct {
	Seq      int64  `json:"seq"`
	Kind     string `json:"kind"`
	Identity string `json:"identity,omitempty"`
	Type     string `json:"type,omitempty"`
	Payload  any    `json:"payload,omitempty"`
}

// String renders the event as a trace entry, e.g. "mount counters.a".
func (e TraceEvent) String() string {
	if e.Kind == KindAction {
		return fmt.Sprintf("%s %s", e.Kind, e.Type)
	}
	return fmt.Sprintf("%s %s", e.Kind, e.Identity)
}

// Result is the outcome of a scenario.
type Result struct {
	// Pass is true when every step succeeded as expected and every
	// assertion held.
	Pass bool `json:"pass"`

	Session string       `json:"session"`
	Trace   []TraceEvent `json:"trace"`
	Errors  []string     `json:"errors,omitempty"`

	// State is the final state tree.
	State map[string]any `json:"state,omitempty"`
}

// NewResult returns a passing, empty result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failure.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Entries returns the trace rendered as entries.
func (r *Result) Entries() []string {
	out := make([]string, len(r.Trace))
	for i, e := range r.Trace {
		out[i] = e.String()
	}
	return out
}

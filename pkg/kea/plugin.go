package kea

import (
	"fmt"
	"maps"
	"slices"
)

// Phase names a lifecycle event. Handlers for a phase run in plugin
// activation order.
type Phase int

const (
	// AfterPlugin fires once, for the plugin being activated only.
	AfterPlugin Phase = iota
	// BeforeKea fires when a wrapper is defined, before any build.
	BeforeKea
	// BeforeBuild fires before the first step of a build.
	BeforeBuild
	// AfterBuild fires right after the last step, before the logic is cached.
	AfterBuild
	// AfterLogic fires once the built logic is cached.
	AfterLogic
	// BeforeMount fires on a 0->1 mount transition, before the reducer is attached.
	BeforeMount
	// AfterMount fires on a 0->1 mount transition, after the reducer is attached.
	AfterMount
	// BeforeUnmount fires on a 1->0 transition, before the reducer is detached.
	BeforeUnmount
	// AfterUnmount fires on a 1->0 transition, after the reducer is detached.
	AfterUnmount
	// BeforeReset fires when the runtime is reset.
	BeforeReset
)

var phaseNames = [...]string{
	AfterPlugin:   "afterPlugin",
	BeforeKea:     "beforeKea",
	BeforeBuild:   "beforeBuild",
	AfterBuild:    "afterBuild",
	AfterLogic:    "afterLogic",
	BeforeMount:   "beforeMount",
	AfterMount:    "afterMount",
	BeforeUnmount: "beforeUnmount",
	AfterUnmount:  "afterUnmount",
	BeforeReset:   "beforeReset",
}

func (p Phase) String() string {
	if int(p) >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Event is passed to lifecycle handlers. Logic and Input are nil for
// phases that are not about a specific logic (AfterPlugin, BeforeReset).
type Event struct {
	Phase   Phase
	Runtime *Runtime
	Logic   *Logic
	Input   *Input
}

// EventFunc handles a lifecycle event.
type EventFunc func(ev *Event)

// StepFunc populates logic during a build. Returning an error aborts the
// build; the logic is discarded.
type StepFunc func(logic *Logic, input *Input, bc *BuildContext) error

// Step contributes a handler to a named build step, optionally placing the
// step relative to others. Run may be nil: the step then only occupies a
// position in the order. A new step with neither After nor Before is
// appended to the end of the base sequence.
type Step struct {
	Name   string
	After  string
	Before string
	Run    StepFunc
}

// Plugin is a named bundle of build steps, lifecycle handlers and logic
// defaults.
type Plugin struct {
	Name     string
	Steps    []Step
	Events   map[Phase]EventFunc
	Defaults func() map[string]any
}

// Resolve implements PluginSource.
func (p *Plugin) Resolve() *Plugin { return p }

// PluginSource is anything ActivatePlugin accepts: a *Plugin, or a
// PluginFunc factory.
type PluginSource interface {
	Resolve() *Plugin
}

// PluginFunc is a zero-argument plugin factory.
type PluginFunc func() *Plugin

// Resolve implements PluginSource by calling the factory.
func (f PluginFunc) Resolve() *Plugin { return f() }

type stepHandler struct {
	plugin string
	run    StepFunc
}

type eventHandler struct {
	plugin string
	fn     EventFunc
}

// Registry holds activated plugins and the merged build steps, events and
// total step order derived from them.
//
// INVARIANTS:
//   - plugin names are unique
//   - order is a valid topological order of all declared steps
//   - handlers for one step are kept in activation order
type Registry struct {
	activated  []*Plugin
	names      map[string]bool
	placements []placement
	handlers   map[string][]stepHandler
	events     map[Phase][]eventHandler
	order      []string
}

func newRegistry() *Registry {
	return &Registry{
		names:    make(map[string]bool),
		handlers: make(map[string][]stepHandler),
		events:   make(map[Phase][]eventHandler),
	}
}

// activate merges p into the registry. The new step order is computed
// before anything is committed, so a failing activation leaves the
// registry unchanged.
func (r *Registry) activate(p *Plugin) error {
	if p == nil || p.Name == "" {
		return newError(ErrCodeInvalidPlugin, "plugin must have a name")
	}
	if r.names[p.Name] {
		return newError(ErrCodeDuplicatePlugin, "plugin %q is already activated", p.Name)
	}

	placements := slices.Clone(r.placements)
	for _, s := range p.Steps {
		if s.Name == "" {
			return &Error{Code: ErrCodeInvalidPlugin, Message: "step must have a name", Plugin: p.Name}
		}
		placements = append(placements, placement{
			step:   s.Name,
			after:  s.After,
			before: s.Before,
			plugin: p.Name,
		})
	}

	order, err := computeOrder(placements)
	if err != nil {
		if ke, ok := err.(*Error); ok {
			ke.Plugin = p.Name
		}
		return err
	}

	r.activated = append(r.activated, p)
	r.names[p.Name] = true
	r.placements = placements
	r.order = order
	for _, s := range p.Steps {
		if s.Run != nil {
			r.handlers[s.Name] = append(r.handlers[s.Name], stepHandler{plugin: p.Name, run: s.Run})
		}
	}
	for _, phase := range sortedPhases(p.Events) {
		r.events[phase] = append(r.events[phase], eventHandler{plugin: p.Name, fn: p.Events[phase]})
	}
	return nil
}

// StepOrder returns the current total order of step names.
func (r *Registry) StepOrder() []string {
	return slices.Clone(r.order)
}

// Plugins returns the names of activated plugins in activation order.
func (r *Registry) Plugins() []string {
	names := make([]string, len(r.activated))
	for i, p := range r.activated {
		names[i] = p.Name
	}
	return names
}

// HandlerPlugins returns, for a step, the names of the plugins that
// contributed handlers, in execution order.
func (r *Registry) HandlerPlugins(step string) []string {
	var names []string
	for _, h := range r.handlers[step] {
		names = append(names, h.plugin)
	}
	return names
}

// EventPhases returns the phases with at least one handler, in phase order.
func (r *Registry) EventPhases() []Phase {
	return sortedPhases(r.events)
}

// Has reports whether a plugin with name is active.
func (r *Registry) Has(name string) bool {
	return r.names[name]
}

// defaults merges every plugin's defaults in activation order; later
// plugins win on key collisions.
func (r *Registry) defaults() map[string]any {
	out := make(map[string]any)
	for _, p := range r.activated {
		if p.Defaults != nil {
			maps.Copy(out, p.Defaults())
		}
	}
	return out
}

func (r *Registry) emit(ev *Event) {
	for _, h := range r.events[ev.Phase] {
		h.fn(ev)
	}
}

// derive builds a fresh registry from the active plugins, minus disabled
// ones, plus extra. The receiver is not modified.
func (r *Registry) derive(extra []PluginSource, disabled []string) (*Registry, error) {
	view := newRegistry()
	for _, p := range r.activated {
		if p.Name != CorePluginName && slices.Contains(disabled, p.Name) {
			continue
		}
		if err := view.activate(p); err != nil {
			return nil, err
		}
	}
	for _, src := range extra {
		if err := view.activate(src.Resolve()); err != nil {
			return nil, err
		}
	}
	return view, nil
}

func sortedPhases[V any](m map[Phase]V) []Phase {
	phases := slices.Collect(maps.Keys(m))
	slices.Sort(phases)
	return phases
}

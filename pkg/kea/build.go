package kea

import (
	"fmt"
	"maps"
)

// BuildContext is passed to every step handler of one build.
type BuildContext struct {
	Runtime  *Runtime
	Registry *Registry
	Props    Props
	Key      any
	Identity string
}

// getOrBuild returns the cached logic for in and props, building it on a
// cache miss. Only fully built logics are cached.
func (rt *Runtime) getOrBuild(in *Input, props Props) (*Logic, error) {
	id, err := rt.resolveIdentity(in, props)
	if err != nil {
		return nil, err
	}

	fp := rt.fingerprint(in)
	if e, ok := rt.cache[id.id]; ok {
		if e.root != in.root() && (e.fingerprint != fp || !sameDeclarations(e.root, in.root(), e.logic)) {
			return nil, &Error{
				Code:     ErrCodeIdentityCollision,
				Message:  fmt.Sprintf("definitions %s and %s both resolve here", rt.describe(e.root), rt.describe(in.root())),
				Identity: id.id,
			}
		}
		return e.logic, nil
	}

	if rt.building[id.id] {
		return nil, &Error{
			Code:     ErrCodeUnresolvedConnection,
			Message:  "logic connects to itself while being built",
			Identity: id.id,
		}
	}

	reg, err := rt.registryFor(in)
	if err != nil {
		return nil, err
	}

	rt.building[id.id] = true
	defer delete(rt.building, id.id)

	l, err := rt.build(in, id, props, reg)
	if err != nil {
		rt.logger.Debug("build failed", "logic", id.id, "error", err)
		return nil, err
	}

	rt.cache[id.id] = &cacheEntry{logic: l, fingerprint: fp, root: in.root()}
	rt.logger.Debug("logic built", "logic", id.id, "steps", len(reg.order))
	reg.emit(&Event{Phase: AfterLogic, Runtime: rt, Logic: l, Input: in.root()})
	return l, nil
}

// build runs every step handler in order against a fresh logic. A failing
// handler discards the logic.
func (rt *Runtime) build(in *Input, id identity, props Props, reg *Registry) (*Logic, error) {
	l := newLogic(rt, in, id, props)
	l.registry = reg
	maps.Copy(l.Extra, reg.defaults())

	bc := &BuildContext{Runtime: rt, Registry: reg, Props: props, Key: id.key, Identity: id.id}
	root := in.root()

	if plugin, err := safeEmit(reg, &Event{Phase: BeforeBuild, Runtime: rt, Logic: l, Input: root}); err != nil {
		return nil, stepFailure(err, id.id, BeforeBuild.String(), plugin)
	}
	for _, step := range reg.order {
		for _, h := range reg.handlers[step] {
			if err := runStep(h.run, l, root, bc); err != nil {
				return nil, stepFailure(err, id.id, step, h.plugin)
			}
		}
	}
	if plugin, err := safeEmit(reg, &Event{Phase: AfterBuild, Runtime: rt, Logic: l, Input: root}); err != nil {
		return nil, stepFailure(err, id.id, AfterBuild.String(), plugin)
	}
	return l, nil
}

func runStep(run StepFunc, l *Logic, in *Input, bc *BuildContext) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return run(l, in, bc)
}

// safeEmit runs the handlers for ev one plugin at a time, stopping at the
// first panic and naming the plugin it came from.
func safeEmit(reg *Registry, ev *Event) (plugin string, err error) {
	for _, h := range reg.events[ev.Phase] {
		if err := runEvent(h.fn, ev); err != nil {
			return h.plugin, err
		}
	}
	return "", nil
}

func runEvent(fn EventFunc, ev *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	fn(ev)
	return nil
}

// stepFailure attributes an error to the failing step. Typed errors keep
// their code; anything else becomes BUILD_STEP_FAILURE.
func stepFailure(err error, identity, step, plugin string) error {
	if ke, ok := err.(*Error); ok {
		if ke.Identity == "" {
			ke.Identity = identity
		}
		if ke.Step == "" {
			ke.Step = step
		}
		if ke.Plugin == "" {
			ke.Plugin = plugin
		}
		return ke
	}
	return &Error{
		Code:     ErrCodeBuildStepFailure,
		Message:  "build step failed",
		Identity: identity,
		Step:     step,
		Plugin:   plugin,
		Cause:    err,
	}
}

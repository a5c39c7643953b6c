package kea

import "slices"

// Mount increments the mount count of l and of every dependency,
// dependencies first. On the 0->1 transition the reducer is attached and
// mount events fire. The returned function releases exactly this mount;
// calling it more than once has no effect.
func (rt *Runtime) Mount(l *Logic) (func(), error) {
	if l == nil {
		return nil, newError(ErrCodeUnresolvedConnection, "cannot mount a nil logic")
	}
	rt.mount(l)
	released := false
	return func() {
		if released {
			return
		}
		released = true
		rt.Unmount(l)
	}, nil
}

func (rt *Runtime) mount(l *Logic) {
	for _, dep := range l.deps {
		rt.mount(dep)
	}

	l.mountCount++
	if l.mountCount > 1 {
		return
	}

	rt.emit(l, BeforeMount)
	if l.Reducer != nil && rt.store != nil {
		rt.store.AttachReducer(l.Path, l.Reducer)
	}
	l.Mounted = true
	rt.logger.Debug("logic mounted", "logic", l.ID)
	rt.emit(l, AfterMount)
}

// Unmount releases one mount of l, then of its dependencies in reverse
// order. On the 1->0 transition unmount events fire and the reducer of a
// lazy logic is detached. Unmounting a logic that is not mounted is a
// no-op.
func (rt *Runtime) Unmount(l *Logic) {
	if l == nil || l.mountCount == 0 {
		return
	}

	l.mountCount--
	if l.mountCount == 0 {
		rt.emit(l, BeforeUnmount)
		if l.lazy {
			if l.Reducer != nil && rt.store != nil {
				rt.store.DetachReducer(l.Path)
			}
			l.Mounted = false
		}
		rt.logger.Debug("logic unmounted", "logic", l.ID)
		rt.emit(l, AfterUnmount)
		if rt.cfg.evict {
			rt.evict(l)
		}
	}

	for _, dep := range slices.Backward(l.deps) {
		rt.Unmount(dep)
	}
}

// evict drops l from the cache unless another cached logic still
// connects to it; such a logic stays until its last dependent is evicted.
func (rt *Runtime) evict(l *Logic) {
	e, ok := rt.cache[l.ID]
	if !ok || e.logic != l {
		return
	}
	for _, other := range rt.cache {
		if slices.Contains(other.logic.deps, l) {
			rt.logger.Debug("eviction deferred", "logic", l.ID, "dependent", other.logic.ID)
			return
		}
	}
	delete(rt.cache, l.ID)
}

// attachEager attaches the reducer of a non-lazy logic at definition time
// without taking a mount.
func (rt *Runtime) attachEager(l *Logic) {
	if l.Mounted {
		return
	}
	if l.Reducer != nil && rt.store != nil {
		rt.store.AttachReducer(l.Path, l.Reducer)
	}
	l.Mounted = true
}

// emit runs plugin handlers for a phase, then the logic's own handlers.
func (rt *Runtime) emit(l *Logic, phase Phase) {
	reg := l.registry
	if reg == nil {
		reg = rt.registry
	}
	reg.emit(&Event{Phase: phase, Runtime: rt, Logic: l, Input: l.Input})
	for _, fn := range l.Events[phase] {
		fn(l)
	}
}

package kea

// Wrapper is the handle returned by Define. It builds and mounts the
// definition's logic on demand.
type Wrapper struct {
	rt    *Runtime
	input *Input
}

// Define registers a definition. Eager definitions (not lazy, not keyed)
// are built immediately and their reducer attached without a mount.
func (rt *Runtime) Define(in *Input) (*Wrapper, error) {
	if in == nil {
		in = &Input{}
	}
	reg, err := rt.registryFor(in)
	if err != nil {
		return nil, err
	}
	reg.emit(&Event{Phase: BeforeKea, Runtime: rt, Input: in.root()})

	w := &Wrapper{rt: rt, input: in}
	if !in.lazy() {
		l, err := w.Build(nil)
		if err != nil {
			return nil, err
		}
		rt.attachEager(l)
	}
	return w, nil
}

// Connect defines an inline logic that only imports from others.
func (rt *Runtime) Connect(conns ...Connection) (*Wrapper, error) {
	return rt.Define(&Input{Connect: conns})
}

// MustDefine is Define for package-level declarations; it panics on error.
func (rt *Runtime) MustDefine(in *Input) *Wrapper {
	w, err := rt.Define(in)
	if err != nil {
		panic(err)
	}
	return w
}

// Input returns the definition.
func (w *Wrapper) Input() *Input { return w.input }

// IsLazy reports whether the logic is built on first use.
func (w *Wrapper) IsLazy() bool { return w.input.lazy() }

// Build returns the logic for props, building it on first use.
func (w *Wrapper) Build(props Props) (*Logic, error) {
	return w.rt.getOrBuild(w.input, props)
}

// NeedsBuild reports whether Build for props would run the build steps.
func (w *Wrapper) NeedsBuild(props Props) bool {
	id, err := w.rt.resolveIdentity(w.input, props)
	if err != nil {
		return true
	}
	_, ok := w.rt.cache[id.id]
	return !ok
}

// Mount builds the logic for props and mounts it.
func (w *Wrapper) Mount(props Props) (func(), error) {
	l, err := w.Build(props)
	if err != nil {
		return nil, err
	}
	return w.rt.Mount(l)
}

// WithKey returns a wrapper bound to a fixed key.
func (w *Wrapper) WithKey(key any) *Wrapper {
	return &Wrapper{rt: w.rt, input: w.input.WithKey(key)}
}

// WithKeyFunc returns a wrapper whose key is computed by fn.
func (w *Wrapper) WithKeyFunc(fn func(props Props) any) *Wrapper {
	return &Wrapper{rt: w.rt, input: w.input.WithKeyFunc(fn)}
}

// BuildWithKey builds the logic for a fixed key.
func (w *Wrapper) BuildWithKey(key any) (*Logic, error) {
	return w.WithKey(key).Build(nil)
}

// MountWithKey builds and mounts the logic for a fixed key.
func (w *Wrapper) MountWithKey(key any) (func(), error) {
	return w.WithKey(key).Mount(nil)
}

// Logic returns the logic built without props.
func (w *Wrapper) Logic() (*Logic, error) {
	return w.Build(nil)
}

// Field builds the logic without props and returns one of its fields.
func (w *Wrapper) Field(name string) (any, error) {
	l, err := w.Build(nil)
	if err != nil {
		return nil, err
	}
	v, _ := l.Field(name)
	return v, nil
}

package kea

import (
	"log/slog"
	"slices"

	"github.com/cyrke/kea/internal/ir"
)

// CorePluginName is the name of the built-in plugin providing the core
// build steps. It is always active and cannot be disabled.
const CorePluginName = "core"

// Store is the external state container a runtime attaches reducers to.
// pkg/store provides the default implementation.
type Store interface {
	AttachReducer(path ir.Path, reducer ir.Reducer)
	DetachReducer(path ir.Path)
	GetState() map[string]any
	Dispatch(action ir.Action)
	Subscribe(listener func(action ir.Action)) (unsubscribe func())
}

// Option configures a Runtime.
type Option func(*config)

type config struct {
	store   Store
	logger  *slog.Logger
	plugins []PluginSource
	evict   bool
}

// WithStore sets the store reducers are attached to. Without a store,
// logics still build and mount but no state is kept.
func WithStore(s Store) Option {
	return func(c *config) { c.store = s }
}

// WithLogger sets the logger for lifecycle and build diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithPlugins activates plugins, in order, after the core plugin.
func WithPlugins(plugins ...PluginSource) Option {
	return func(c *config) { c.plugins = append(c.plugins, plugins...) }
}

// WithEviction drops a logic from the cache when its mount count returns
// to zero, so the next build starts fresh.
func WithEviction(evict bool) Option {
	return func(c *config) { c.evict = evict }
}

type cacheEntry struct {
	logic       *Logic
	fingerprint string
	root        *Input
}

// Runtime is the process-wide context: plugin registry, instance cache and
// store binding. A Runtime is not safe for concurrent use; callers
// serialize access the way a UI event loop does.
type Runtime struct {
	cfg      config
	logger   *slog.Logger
	store    Store
	registry *Registry

	cache        map[string]*cacheEntry
	fingerprints map[*Input]string
	inline       map[*Input]int
	nextInline   int
	building     map[string]bool
	pluginCtx    map[string]any

	transitions map[string]bool
	snapshots   map[string]map[string]any
}

// NewRuntime creates a runtime with the core plugin and any plugins passed
// via WithPlugins activated.
func NewRuntime(opts ...Option) (*Runtime, error) {
	rt := &Runtime{}
	if err := rt.init(opts); err != nil {
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) init(opts []Option) error {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.DiscardHandler)
	}

	rt.cfg = cfg
	rt.logger = cfg.logger
	rt.store = cfg.store
	rt.registry = newRegistry()
	rt.cache = make(map[string]*cacheEntry)
	rt.fingerprints = make(map[*Input]string)
	rt.inline = make(map[*Input]int)
	rt.nextInline = 0
	rt.building = make(map[string]bool)
	rt.pluginCtx = make(map[string]any)
	rt.transitions = make(map[string]bool)
	rt.snapshots = make(map[string]map[string]any)

	if err := rt.ActivatePlugin(CorePlugin()); err != nil {
		return err
	}
	for _, p := range cfg.plugins {
		if err := rt.ActivatePlugin(p); err != nil {
			return err
		}
	}
	return nil
}

// Reset discards every cached logic and plugin, unmounts mounted logics
// with their unmount events, detaches attached reducers, and
// reinitializes the runtime. Options not passed again are
// inherited from the previous configuration, except plugins.
func (rt *Runtime) Reset(opts ...Option) error {
	rt.registry.emit(&Event{Phase: BeforeReset, Runtime: rt})

	for _, id := range ir.SortedKeys(rt.cache) {
		l := rt.cache[id].logic
		held := l.mountCount > 0
		if held {
			rt.emit(l, BeforeUnmount)
		}
		if l.Mounted && l.Reducer != nil && rt.store != nil {
			rt.store.DetachReducer(l.Path)
		}
		l.Mounted = false
		l.mountCount = 0
		if held {
			rt.emit(l, AfterUnmount)
		}
	}

	prev := rt.cfg
	inherited := []Option{WithStore(prev.store), WithLogger(prev.logger), WithEviction(prev.evict)}
	rt.logger.Debug("runtime reset", "cached", len(rt.cache))
	return rt.init(append(inherited, opts...))
}

// ActivatePlugin merges a plugin into the runtime. Only the new plugin's
// AfterPlugin handler fires.
func (rt *Runtime) ActivatePlugin(src PluginSource) error {
	if src == nil {
		return newError(ErrCodeInvalidPlugin, "plugin must not be nil")
	}
	p := src.Resolve()
	if err := rt.registry.activate(p); err != nil {
		return err
	}
	rt.logger.Debug("plugin activated", "plugin", p.Name, "steps", len(p.Steps))
	if fn := p.Events[AfterPlugin]; fn != nil {
		fn(&Event{Phase: AfterPlugin, Runtime: rt})
	}
	return nil
}

// Registry returns the runtime's plugin registry.
func (rt *Runtime) Registry() *Registry { return rt.registry }

// StepOrder returns the current total order of build steps.
func (rt *Runtime) StepOrder() []string { return rt.registry.StepOrder() }

// Store returns the configured store, or nil.
func (rt *Runtime) Store() Store { return rt.store }

// Logger returns the runtime logger.
func (rt *Runtime) Logger() *slog.Logger { return rt.logger }

// SetPluginContext stores per-plugin state that lives as long as the
// runtime (until Reset).
func (rt *Runtime) SetPluginContext(plugin string, v any) {
	rt.pluginCtx[plugin] = v
}

// PluginContext returns state stored by SetPluginContext.
func (rt *Runtime) PluginContext(plugin string) any {
	return rt.pluginCtx[plugin]
}

// State returns the store's state tree, or nil without a store.
func (rt *Runtime) State() map[string]any {
	if rt.store == nil {
		return nil
	}
	return rt.store.GetState()
}

// Dispatch sends an action to the store. It is a no-op without a store.
func (rt *Runtime) Dispatch(a ir.Action) {
	if rt.store == nil {
		rt.logger.Debug("dispatch without store", "type", a.Type)
		return
	}
	rt.store.Dispatch(a)
}

// Cached returns the cached logic for an identity.
func (rt *Runtime) Cached(identity string) (*Logic, bool) {
	e, ok := rt.cache[identity]
	if !ok {
		return nil, false
	}
	return e.logic, true
}

// Identities lists cached identities in sorted order.
func (rt *Runtime) Identities() []string {
	return ir.SortedKeys(rt.cache)
}

// Mounted lists identities with a positive mount count, sorted.
func (rt *Runtime) Mounted() []string {
	var ids []string
	for _, id := range ir.SortedKeys(rt.cache) {
		if rt.cache[id].logic.mountCount > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

// registryFor returns the registry a definition builds with: the runtime
// registry itself unless the definition adds or disables plugins.
func (rt *Runtime) registryFor(in *Input) (*Registry, error) {
	opts := in.root().Options
	if len(opts.Plugins) == 0 && len(opts.DisablePlugins) == 0 {
		return rt.registry, nil
	}
	disabled := slices.DeleteFunc(slices.Clone(opts.DisablePlugins), func(n string) bool { return n == CorePluginName })
	return rt.registry.derive(opts.Plugins, disabled)
}

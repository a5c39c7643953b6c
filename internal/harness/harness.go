package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cyrke/kea/internal/compiler"
	"github.com/cyrke/kea/internal/ir"
	"github.com/cyrke/kea/internal/journal"
	"github.com/cyrke/kea/internal/testutil"
	"github.com/cyrke/kea/pkg/kea"
	"github.com/cyrke/kea/pkg/store"
)

// Harness executes one scenario against a fresh runtime.
type Harness struct {
	rt       *kea.Runtime
	wrappers map[string]*kea.Wrapper
	sink     journal.Sink
	rec      *journal.Recorder
	logger   *slog.Logger

	// held are the scenario's own mounts, released by unmount steps in
	// reverse order per identity.
	held map[string][]func()
}

// Option configures Run.
type Option func(*config)

type config struct {
	sink   journal.Sink
	ids    journal.SessionIDGenerator
	logger *slog.Logger
}

// WithSink records the scenario into sink instead of an in-memory journal.
func WithSink(sink journal.Sink) Option {
	return func(c *config) { c.sink = sink }
}

// WithSessionIDs replaces the fixed scenario session with generated IDs.
func WithSessionIDs(ids journal.SessionIDGenerator) Option {
	return func(c *config) { c.ids = ids }
}

// WithLogger sets the logger for step progress.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// Run executes a scenario and evaluates its assertions.
//
// Execution flow:
//  1. Load, compile, validate and link the scenario's CUE files
//  2. Execute steps in order; the first unexpected outcome stops execution
//  3. Read the recorded trace back from the journal
//  4. Evaluate assertions
//
// An error is returned only when the scenario cannot be set up; failed
// steps and assertions are reported in the result.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	cfg := config{logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.sink == nil {
		cfg.sink = journal.NewMemory()
	}
	if cfg.ids == nil {
		cfg.ids = testutil.NewFixedSessionGenerator(scenario.Session)
	}

	root, err := compiler.LoadFiles(scenario.Specs...)
	if err != nil {
		return nil, fmt.Errorf("failed to load specs: %w", err)
	}
	specs, err := compiler.Specs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to compile specs: %w", err)
	}

	ctx := context.Background()
	rec, err := journal.NewRecorder(ctx, cfg.sink,
		journal.WithSessionIDs(cfg.ids),
		journal.WithClock(testutil.NewDeterministicClock()),
		journal.WithLogger(cfg.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start recorder: %w", err)
	}

	rt, err := kea.NewRuntime(
		kea.WithStore(store.New(rec.Middleware)),
		kea.WithLogger(cfg.logger),
		kea.WithPlugins(kea.ListenersPlugin(), rec.Plugin()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create runtime: %w", err)
	}
	wrappers, err := compiler.Link(rt, specs)
	if err != nil {
		return nil, fmt.Errorf("failed to link specs: %w", err)
	}

	h := &Harness{
		rt:       rt,
		wrappers: wrappers,
		sink:     cfg.sink,
		rec:      rec,
		logger:   cfg.logger,
		held:     make(map[string][]func()),
	}

	result := NewResult()
	result.Session = rec.Session()
	h.executeSteps(scenario.Steps, result)

	if err := rec.Err(); err != nil {
		return nil, fmt.Errorf("failed to record session: %w", err)
	}
	session, err := cfg.sink.ReadSession(ctx, rec.Session())
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	result.Trace = traceOf(session)
	result.State = rt.State()

	for _, msg := range EvaluateAssertions(h, result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// executeSteps runs steps until one has an unexpected outcome.
func (h *Harness) executeSteps(steps []Step, result *Result) {
	for i, step := range steps {
		err := h.execute(step)
		switch {
		case step.Error != "" && err == nil:
			result.AddError(fmt.Sprintf("steps[%d]: expected error %s, step succeeded", i, step.Error))
			return
		case step.Error != "" && !kea.IsCode(err, kea.ErrorCode(step.Error)):
			result.AddError(fmt.Sprintf("steps[%d]: expected error %s, got: %v", i, step.Error, err))
			return
		case step.Error == "" && err != nil:
			result.AddError(fmt.Sprintf("steps[%d]: %v", i, err))
			return
		}
		h.logger.Info("step completed", "step", i, "target", step.Target(), "error", step.Error)
	}
}

func (h *Harness) execute(step Step) error {
	l, err := h.build(step.Target(), step.Key, step.Props)
	if err != nil {
		return err
	}

	switch {
	case step.Mount != "":
		release, err := h.rt.Mount(l)
		if err != nil {
			return err
		}
		h.held[l.ID] = append(h.held[l.ID], release)

	case step.Unmount != "":
		releases := h.held[l.ID]
		if len(releases) == 0 {
			return fmt.Errorf("%s was not mounted by this scenario", l.ID)
		}
		h.held[l.ID] = releases[:len(releases)-1]
		releases[len(releases)-1]()

	default:
		dispatch, ok := l.Actions[step.Dispatch]
		if !ok {
			return fmt.Errorf("%s has no action %q", l.ID, step.Dispatch)
		}
		dispatch(step.Args...)
	}
	return nil
}

// build resolves a definition name, optional key and props to its logic.
func (h *Harness) build(name string, key any, props map[string]any) (*kea.Logic, error) {
	w, ok := h.wrappers[name]
	if !ok {
		return nil, fmt.Errorf("unknown logic %q", name)
	}
	if key != nil {
		w = w.WithKey(key)
	}
	return w.Build(kea.Props(props))
}

func traceOf(s *journal.Session) []TraceEvent {
	trace := []TraceEvent{}
	for _, e := range s.Entries() {
		if l := e.Lifecycle; l != nil {
			trace = append(trace, TraceEvent{Seq: l.Seq, Kind: l.Event, Identity: l.Identity})
			continue
		}
		a := e.Action
		trace = append(trace, TraceEvent{Seq: a.Seq, Kind: KindAction, Type: a.Type, Payload: a.Payload})
	}
	return trace
}

// stateAt reads the final state tree at path.
func stateAt(state map[string]any, path []string) any {
	return ir.GetIn(state, ir.Path(path))
}

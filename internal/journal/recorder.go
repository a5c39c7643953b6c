package journal

import (
	"context"
	"log/slog"

	"github.com/cyrke/kea/internal/ir"
	"github.com/cyrke/kea/pkg/kea"
	"github.com/cyrke/kea/pkg/store"
)

// PluginName names the recorder's kea plugin.
const PluginName = "journal"

// Recorder writes one session to a Sink. It is a store middleware for
// actions and a kea plugin for mount transitions; install both:
//
//	rec, _ := journal.NewRecorder(ctx, sink)
//	s := store.New(rec.Middleware)
//	rt, _ := kea.NewRuntime(kea.WithStore(s), kea.WithPlugins(rec.Plugin()))
//
// Write failures do not interrupt dispatch. The first one is kept and
// returned by Err; every one is logged.
type Recorder struct {
	ctx     context.Context
	sink    Sink
	session string
	ids     SessionIDGenerator
	clock   Clock
	logger  *slog.Logger

	depth int
	err   error
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithSession records into an existing or chosen session ID instead of a
// new UUIDv7. The clock resumes after the session's last seq.
func WithSession(id string) RecorderOption {
	return func(r *Recorder) { r.session = id }
}

// WithSessionIDs names new sessions with gen instead of UUIDv7.
func WithSessionIDs(gen SessionIDGenerator) RecorderOption {
	return func(r *Recorder) { r.ids = gen }
}

// WithClock replaces the logical clock.
func WithClock(c Clock) RecorderOption {
	return func(r *Recorder) { r.clock = c }
}

// WithLogger sets the logger for write failures.
func WithLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) { r.logger = l }
}

// NewRecorder returns a recorder writing to sink. ctx is used for every
// write.
func NewRecorder(ctx context.Context, sink Sink, opts ...RecorderOption) (*Recorder, error) {
	r := &Recorder{
		ctx:    ctx,
		sink:   sink,
		ids:    UUIDv7Generator{},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.session == "" {
		r.session = r.ids.Generate()
	}
	if r.clock == nil {
		existing, err := sink.ReadSession(ctx, r.session)
		if err != nil {
			return nil, err
		}
		r.clock = NewClockAt(existing.LastSeq())
	}
	return r, nil
}

// Session returns the session ID being recorded.
func (r *Recorder) Session() string { return r.session }

// Err returns the first write failure.
func (r *Recorder) Err() error { return r.err }

// Middleware records every top-level action after it has been reduced,
// together with the hash of the resulting state. Actions dispatched while
// another is in flight are not recorded.
func (r *Recorder) Middleware(s *store.Store, next store.DispatchFunc) store.DispatchFunc {
	return func(action ir.Action) {
		r.depth++
		var seq int64
		if r.depth == 1 {
			seq = r.clock.Next()
		}
		func() {
			defer func() { r.depth-- }()
			next(action)
		}()
		if seq == 0 {
			return
		}
		r.recordAction(seq, action, s.GetState())
	}
}

func (r *Recorder) recordAction(seq int64, action ir.Action, state map[string]any) {
	hash, err := ir.StateHash(state)
	if err != nil {
		r.fail(err, "type", action.Type)
		return
	}
	id, err := ir.ActionRecordID(r.session, seq, action)
	if err != nil {
		r.fail(err, "type", action.Type)
		return
	}
	rec := ActionRecord{
		ID:        id,
		Session:   r.session,
		Seq:       seq,
		Type:      action.Type,
		Payload:   action.Payload,
		StateHash: hash,
	}
	if err := r.sink.WriteAction(r.ctx, rec); err != nil {
		r.fail(err, "type", action.Type)
	}
}

// Plugin returns the kea plugin recording mount and unmount transitions.
func (r *Recorder) Plugin() *kea.Plugin {
	return &kea.Plugin{
		Name: PluginName,
		Events: map[kea.Phase]kea.EventFunc{
			kea.AfterMount:   func(ev *kea.Event) { r.recordLifecycle(ev.Logic, EventMount) },
			kea.AfterUnmount: func(ev *kea.Event) { r.recordLifecycle(ev.Logic, EventUnmount) },
		},
	}
}

func (r *Recorder) recordLifecycle(l *kea.Logic, event string) {
	seq := r.clock.Next()
	rec := LifecycleRecord{
		ID:         ir.LifecycleRecordID(r.session, seq, l.ID, event),
		Session:    r.session,
		Seq:        seq,
		Identity:   l.ID,
		Logic:      l.Input.ID,
		Key:        l.Key,
		Event:      event,
		MountCount: l.MountCount(),
		Nested:     r.depth > 0,
	}
	if len(l.Props) > 0 {
		if _, err := ir.MarshalCanonical(l.Props); err == nil {
			rec.Props = l.Props
		} else {
			r.logger.Warn("journal: props not recordable", "identity", l.ID, "error", err)
		}
	}
	if err := r.sink.WriteLifecycle(r.ctx, rec); err != nil {
		r.fail(err, "identity", l.ID)
	}
}

func (r *Recorder) fail(err error, args ...any) {
	if r.err == nil {
		r.err = err
	}
	r.logger.Error("journal write failed", append(args, "session", r.session, "error", err)...)
}

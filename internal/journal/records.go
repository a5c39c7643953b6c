package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sync"

	"github.com/cyrke/kea/internal/ir"
)

// Lifecycle event names.
const (
	EventMount   = "mount"
	EventUnmount = "unmount"
)

// ActionRecord is one top-level dispatched action.
type ActionRecord struct {
	ID        string `json:"id"`
	Session   string `json:"session"`
	Seq       int64  `json:"seq"`
	Type      string `json:"type"`
	Payload   any    `json:"payload"`
	StateHash string `json:"state_hash"`
}

// LifecycleRecord is one mount (0->1) or unmount (1->0) transition.
type LifecycleRecord struct {
	ID       string `json:"id"`
	Session  string `json:"session"`
	Seq      int64  `json:"seq"`
	Identity string `json:"identity"`
	// Logic is the definition ID the identity was built from; empty for
	// inline definitions, which cannot be replayed.
	Logic      string         `json:"logic,omitempty"`
	Key        any            `json:"key,omitempty"`
	Props      map[string]any `json:"props,omitempty"`
	Event      string         `json:"event"`
	MountCount int            `json:"mount_count"`
	// Nested transitions happened while an action was being dispatched.
	Nested bool `json:"nested,omitempty"`
}

// Entry is one record of a session, either an action or a transition.
type Entry struct {
	Seq       int64
	Action    *ActionRecord
	Lifecycle *LifecycleRecord
}

// Session holds every record of one session, each slice ordered by seq.
type Session struct {
	ID        string
	Actions   []ActionRecord
	Lifecycle []LifecycleRecord
}

// Entries merges actions and transitions into one seq-ordered stream.
func (s *Session) Entries() []Entry {
	out := make([]Entry, 0, len(s.Actions)+len(s.Lifecycle))
	for i := range s.Actions {
		out = append(out, Entry{Seq: s.Actions[i].Seq, Action: &s.Actions[i]})
	}
	for i := range s.Lifecycle {
		out = append(out, Entry{Seq: s.Lifecycle[i].Seq, Lifecycle: &s.Lifecycle[i]})
	}
	slices.SortStableFunc(out, func(a, b Entry) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
	return out
}

// LastSeq returns the highest seq in the session, or 0.
func (s *Session) LastSeq() int64 {
	var last int64
	for _, a := range s.Actions {
		last = max(last, a.Seq)
	}
	for _, l := range s.Lifecycle {
		last = max(last, l.Seq)
	}
	return last
}

// SessionSummary describes a stored session.
type SessionSummary struct {
	ID        string `json:"id"`
	Actions   int    `json:"actions"`
	Lifecycle int    `json:"lifecycle"`
	FirstSeq  int64  `json:"first_seq"`
	LastSeq   int64  `json:"last_seq"`
}

// Sink receives records. Writes are idempotent by record ID.
type Sink interface {
	WriteAction(ctx context.Context, rec ActionRecord) error
	WriteLifecycle(ctx context.Context, rec LifecycleRecord) error
	ReadSession(ctx context.Context, session string) (*Session, error)
}

// Memory is an in-process Sink.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]*Session
	seen     map[string]bool
}

var _ Sink = (*Memory)(nil)

// NewMemory returns an empty in-memory sink.
func NewMemory() *Memory {
	return &Memory{sessions: make(map[string]*Session), seen: make(map[string]bool)}
}

// WriteAction implements Sink.
func (m *Memory) WriteAction(_ context.Context, rec ActionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[rec.ID] {
		return nil
	}
	m.seen[rec.ID] = true
	s := m.session(rec.Session)
	s.Actions = append(s.Actions, rec)
	return nil
}

// WriteLifecycle implements Sink.
func (m *Memory) WriteLifecycle(_ context.Context, rec LifecycleRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.seen[rec.ID] {
		return nil
	}
	m.seen[rec.ID] = true
	s := m.session(rec.Session)
	s.Lifecycle = append(s.Lifecycle, rec)
	return nil
}

// ReadSession implements Sink. Unknown sessions read as empty.
func (m *Memory) ReadSession(_ context.Context, session string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := &Session{ID: session, Actions: []ActionRecord{}, Lifecycle: []LifecycleRecord{}}
	if s, ok := m.sessions[session]; ok {
		out.Actions = append(out.Actions, s.Actions...)
		out.Lifecycle = append(out.Lifecycle, s.Lifecycle...)
	}
	return out, nil
}

func (m *Memory) session(id string) *Session {
	s, ok := m.sessions[id]
	if !ok {
		s = &Session{ID: id}
		m.sessions[id] = s
	}
	return s
}

// encode serializes v as canonical JSON for storage.
func encode(v any) (string, error) {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// decode parses stored JSON. Numbers come back as int so that decoded
// values hash the same as the values that were recorded.
func decode(data string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(data)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return normalize(v)
}

func normalize(v any) (any, error) {
	switch x := v.(type) {
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return nil, fmt.Errorf("non-integer number %s", x)
		}
		return int(n), nil
	case []any:
		for i := range x {
			item, err := normalize(x[i])
			if err != nil {
				return nil, err
			}
			x[i] = item
		}
		return x, nil
	case map[string]any:
		for k, item := range x {
			n, err := normalize(item)
			if err != nil {
				return nil, err
			}
			x[k] = n
		}
		return x, nil
	}
	return v, nil
}

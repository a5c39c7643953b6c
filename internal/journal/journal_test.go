package journal

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAppliesPragmas(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	assert.NoError(t, j.verifyPragma(ctx, "journal_mode", "wal"))
	assert.NoError(t, j.verifyPragma(ctx, "synchronous", "1"))
	assert.NoError(t, j.verifyPragma(ctx, "busy_timeout", "5000"))
	assert.NoError(t, j.verifyPragma(ctx, "user_version", "1"))
}

func TestOpenIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	for range 3 {
		j, err := Open(path)
		require.NoError(t, err)
		require.NoError(t, j.Close())
	}

	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()
	for _, table := range []string{"actions", "lifecycle"} {
		var name string
		err := j.DB().QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, table)
	}
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestWriteActionIdempotent(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	rec := ActionRecord{ID: "a1", Session: "s", Seq: 1, Type: "add (counters.a)", Payload: map[string]any{"amount": 2}, StateHash: "h"}

	require.NoError(t, j.WriteAction(ctx, rec))
	require.NoError(t, j.WriteAction(ctx, rec))

	s, err := j.ReadSession(ctx, "s")
	require.NoError(t, err)
	require.Len(t, s.Actions, 1)
	assert.Equal(t, rec, s.Actions[0])
}

func TestWriteActionRejectsFloats(t *testing.T) {
	j := openTestJournal(t)
	err := j.WriteAction(context.Background(), ActionRecord{ID: "x", Session: "s", Seq: 1, Payload: 1.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "floats")
}

func TestLifecycleRoundTrip(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	mount := LifecycleRecord{
		ID: "l1", Session: "s", Seq: 1, Identity: "counters.7", Logic: "counter",
		Key: 7, Props: map[string]any{"id": 7}, Event: EventMount, MountCount: 1,
	}
	unmount := LifecycleRecord{
		ID: "l2", Session: "s", Seq: 2, Identity: "logic.inline.1",
		Event: EventUnmount, Nested: true,
	}
	require.NoError(t, j.WriteLifecycle(ctx, unmount))
	require.NoError(t, j.WriteLifecycle(ctx, mount))

	s, err := j.ReadSession(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, []LifecycleRecord{mount, unmount}, s.Lifecycle)
}

func TestReadSessionOrdersBySeq(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	require.NoError(t, j.WriteAction(ctx, ActionRecord{ID: "a3", Session: "s", Seq: 3, Type: "t", StateHash: "h"}))
	require.NoError(t, j.WriteLifecycle(ctx, LifecycleRecord{ID: "l1", Session: "s", Seq: 1, Identity: "x", Event: EventMount, MountCount: 1}))
	require.NoError(t, j.WriteAction(ctx, ActionRecord{ID: "a2", Session: "s", Seq: 2, Type: "t", StateHash: "h"}))
	require.NoError(t, j.WriteAction(ctx, ActionRecord{ID: "other", Session: "t", Seq: 1, Type: "t", StateHash: "h"}))

	s, err := j.ReadSession(ctx, "s")
	require.NoError(t, err)
	var seqs []int64
	for _, e := range s.Entries() {
		seqs = append(seqs, e.Seq)
	}
	assert.Equal(t, []int64{1, 2, 3}, seqs)
	assert.Equal(t, int64(3), s.LastSeq())

	last, err := j.LastSeq(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, int64(3), last)
}

func TestReadUnknownSession(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	s, err := j.ReadSession(ctx, "missing")
	require.NoError(t, err)
	assert.NotNil(t, s.Actions)
	assert.Empty(t, s.Actions)
	assert.NotNil(t, s.Lifecycle)

	last, err := j.LastSeq(ctx, "missing")
	require.NoError(t, err)
	assert.Zero(t, last)
}

func TestSessions(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()
	require.NoError(t, j.WriteLifecycle(ctx, LifecycleRecord{ID: "l", Session: "b", Seq: 1, Identity: "x", Event: EventMount, MountCount: 1}))
	require.NoError(t, j.WriteAction(ctx, ActionRecord{ID: "a", Session: "b", Seq: 2, Type: "t", StateHash: "h"}))
	require.NoError(t, j.WriteAction(ctx, ActionRecord{ID: "c", Session: "a", Seq: 5, Type: "t", StateHash: "h"}))

	sessions, err := j.Sessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []SessionSummary{
		{ID: "a", Actions: 1, Lifecycle: 0, FirstSeq: 5, LastSeq: 5},
		{ID: "b", Actions: 1, Lifecycle: 1, FirstSeq: 1, LastSeq: 2},
	}, sessions)
}

func TestDecodeNormalizesNumbers(t *testing.T) {
	v, err := decode(`{"a":[1,{"b":2}],"c":"3"}`)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": []any{1, map[string]any{"b": 2}}, "c": "3"}, v)

	_, err = decode(`1.5`)
	assert.Error(t, err)
}

func TestMemorySink(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	rec := ActionRecord{ID: "a", Session: "s", Seq: 1}
	require.NoError(t, m.WriteAction(ctx, rec))
	require.NoError(t, m.WriteAction(ctx, rec))

	s, err := m.ReadSession(ctx, "s")
	require.NoError(t, err)
	assert.Len(t, s.Actions, 1)

	empty, err := m.ReadSession(ctx, "nope")
	require.NoError(t, err)
	assert.Empty(t, empty.Actions)
	assert.Empty(t, empty.Lifecycle)
}

package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceListsSessions(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "kea.db")
	recordScenario(t, dbPath, "counter_view", "s1")
	recordScenario(t, dbPath, "settings", "s2")

	output, err := execute(t, NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, output, "Sessions: 2")
	assert.Contains(t, output, "s1: 2 action(s), 4 lifecycle event(s), seq 1-6")
	assert.Contains(t, output, "s2: 1 action(s)")
}

func TestTraceEmptyJournal(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "kea.db")

	output, err := execute(t, NewTraceCommand(&RootOptions{Format: "text"}), "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, output, "No sessions found in journal.")
}

func TestTraceSession(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "kea.db")
	recordScenario(t, dbPath, "counter_view", "s1")

	output, err := execute(t, NewTraceCommand(&RootOptions{Format: "text"}),
		"--db", dbPath, "--session", "s1")
	require.NoError(t, err)
	assert.Contains(t, output, "Trace for Session: s1")
	assert.Contains(t, output, "[1] MOUNT counters.a")
	assert.Contains(t, output, "[2] MOUNT logic.view.a")
	assert.Contains(t, output, "[3] ACTION increment (counters.a)")
	assert.Contains(t, output, "[6] UNMOUNT counters.a")
	assert.Contains(t, output, "Total Events:  6")
	assert.Contains(t, output, "Mounts:        2")
	assert.Contains(t, output, "Unmounts:      2")
	assert.Contains(t, output, "Still Mounted: 0")
}

func TestTraceSessionVerbose(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "kea.db")
	recordScenario(t, dbPath, "counter_view", "s1")

	output, err := execute(t, NewTraceCommand(&RootOptions{Format: "text", Verbose: true}),
		"--db", dbPath, "--session", "s1")
	require.NoError(t, err)
	assert.Contains(t, output, "Props: {id=a}")
	assert.Contains(t, output, "Payload: {amount=2}")
}

func TestTraceIdentityFilter(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "kea.db")
	recordScenario(t, dbPath, "counter_view", "s1")

	output, err := execute(t, NewTraceCommand(&RootOptions{Format: "json"}),
		"--db", dbPath, "--session", "s1", "--identity", "logic.view.a")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Timeline, 2)
	assert.Equal(t, "mount", resp.Data.Timeline[0].Kind)
	assert.Equal(t, "unmount", resp.Data.Timeline[1].Kind)

	output, err = execute(t, NewTraceCommand(&RootOptions{Format: "json"}),
		"--db", dbPath, "--session", "s1", "--identity", "counters.a")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, 4, resp.Data.Stats.TotalEvents)
	assert.Equal(t, 2, resp.Data.Stats.Actions)
}

func TestTraceJSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "kea.db")
	recordScenario(t, dbPath, "counter_view", "s1")

	output, err := execute(t, NewTraceCommand(&RootOptions{Format: "json"}),
		"--db", dbPath, "--session", "s1")
	require.NoError(t, err)

	var resp struct {
		Status  string      `json:"status"`
		Session string      `json:"session"`
		Data    TraceResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "s1", resp.Session)
	require.Len(t, resp.Data.Timeline, 6)
	assert.Equal(t, "increment (counters.a)", resp.Data.Timeline[2].Type)
	assert.NotEmpty(t, resp.Data.Timeline[2].StateHash)
	assert.Equal(t, map[string]any{"amount": float64(2)}, resp.Data.Timeline[2].Payload)
}

func TestTraceUnknownSession(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "kea.db")
	recordScenario(t, dbPath, "counter_view", "s1")

	output, err := execute(t, NewTraceCommand(&RootOptions{Format: "text"}),
		"--db", dbPath, "--session", "missing")
	require.NoError(t, err)
	assert.Contains(t, output, "No events found for session: missing")
}

func TestTraceMissingDatabaseFlag(t *testing.T) {
	_, err := execute(t, NewTraceCommand(&RootOptions{Format: "text"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"string", "a", "a"},
		{"int", int64(3), "3"},
		{"nil", nil, "<nil>"},
		{"list", []any{int64(1), "x"}, "[1, x]"},
		{"map sorted", map[string]any{"b": int64(2), "a": []any{}}, "{a=[], b=2}"},
		{"empty map", map[string]any{}, "{}"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatValue(tt.in))
		})
	}
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "short", truncateID("short"))
	assert.Equal(t, "01234567...89abcdef", truncateID("0123456789abcdef0123456789abcdef"))
}

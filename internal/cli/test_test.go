package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenarioDir writes one scenario using the shared testdata specs.
func writeScenarioDir(t *testing.T, name, steps, assertions string) string {
	t.Helper()
	counter, err := filepath.Abs(filepath.Join(specsDir, "counter.cue"))
	require.NoError(t, err)
	view, err := filepath.Abs(filepath.Join(specsDir, "view.cue"))
	require.NoError(t, err)

	content := "name: " + name + "\n" +
		"description: \"generated\"\n" +
		"specs:\n  - " + counter + "\n  - " + view + "\n" +
		"steps:\n" + steps +
		"assertions:\n" + assertions

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(content), 0644))
	return dir
}

const mountViewSteps = `  - mount: view
    props: { id: a }
  - dispatch: increment
    logic: view
    props: { id: a }
    args: [4]
`

func TestTestCommandTestdata(t *testing.T) {
	output, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), scenariosDir)
	require.NoError(t, err)

	assert.Contains(t, output, "✓ counter_view")
	assert.Contains(t, output, "✓ settings")
	assert.Contains(t, output, "Test Summary: 2 passed, 0 failed, 2 total")
	assert.Contains(t, output, "✓ All scenarios passed")
}

func TestTestCommandJSON(t *testing.T) {
	output, err := execute(t, NewTestCommand(&RootOptions{Format: "json"}), scenariosDir)
	require.NoError(t, err)

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 2, resp.Data.Passed)
}

func TestTestCommandFilter(t *testing.T) {
	output, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), scenariosDir, "--filter", "counter*")
	require.NoError(t, err)
	assert.Contains(t, output, "✓ counter_view")
	assert.NotContains(t, output, "settings")
	assert.Contains(t, output, "1 total")
}

func TestTestCommandNoScenarios(t *testing.T) {
	output, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, output, "No scenarios found.")
}

func TestTestCommandMissingDirectory(t *testing.T) {
	_, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTestCommandFailingAssertion(t *testing.T) {
	dir := writeScenarioDir(t, "wrong_total", mountViewSteps, `  - type: value
    logic: view
    props: { id: a }
    selector: total
    expect: 5
`)

	output, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, output, "✗ wrong_total")
	assert.Contains(t, output, "logic.view.a.total = 5")
	assert.Contains(t, output, "1 failed")
}

func TestTestCommandUpdateAndCompareGolden(t *testing.T) {
	dir := writeScenarioDir(t, "golden_run", mountViewSteps, `  - type: trace_count
    entry: action increment (counters.a)
    count: 1
`)

	output, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), dir, "--update")
	require.NoError(t, err)
	assert.Contains(t, output, "✓ golden_run (golden updated)")

	data, err := os.ReadFile(filepath.Join(dir, "golden", "golden_run.golden"))
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario_name":"golden_run","session":"test-session","trace":[{"identity":"counters.a","kind":"mount","seq":1},{"identity":"logic.view.a","kind":"mount","seq":2},{"kind":"action","payload":{"amount":4},"seq":3,"type":"increment (counters.a)"}]}`,
		string(data))

	_, err = execute(t, NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "golden_run.golden"), []byte(`{}`), 0644))
	output, err = execute(t, NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Contains(t, output, "trace does not match golden file")
}

func TestTestCommandLoadError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("name: bad\n"), 0644))

	output, err := execute(t, NewTestCommand(&RootOptions{Format: "text"}), dir)
	require.Error(t, err)
	assert.Contains(t, output, "✗ bad.yaml")
	assert.Contains(t, output, "failed to load scenario")
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("s", "golden", "a.golden"), goldenFilePath(filepath.Join("s", "a.yaml")))
}

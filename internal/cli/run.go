package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cyrke/kea/internal/harness"
	"github.com/cyrke/kea/internal/journal"
	"github.com/cyrke/kea/internal/testutil"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	Session  string

	// SessionIDs overrides session generation (for testing). When nil and
	// neither --session nor the scenario fixes one, UUIDv7 IDs are used.
	SessionIDs journal.SessionIDGenerator
}

// RunResult is the outcome of a recorded scenario.
type RunResult struct {
	Scenario string   `json:"scenario"`
	Session  string   `json:"session"`
	Pass     bool     `json:"pass"`
	Events   int      `json:"events"`
	Errors   []string `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario-file>",
		Short: "Run a scenario and record it into a journal",
		Long: `Run one scenario against a fresh runtime and record every mount,
unmount and top-level action into a SQLite journal (created if it does
not exist). The recorded session can be inspected with "kea trace" and
checked with "kea replay".

Example:
  kea run --db ./kea.db ./scenarios/counter_view.yaml
  kea run --db ./kea.db --session demo-1 ./scenarios/counter_view.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioToJournal(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session ID (default: scenario session or a new UUIDv7)")

	return cmd
}

func runScenarioToJournal(opts *RunOptions, scenarioFile string, cmd *cobra.Command) error {
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	scenario, err := harness.LoadScenario(scenarioFile)
	if err != nil {
		_ = formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	logger.Info("opening journal", "path", opts.Database)
	j, err := journal.Open(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeLoadFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer func() {
		if closeErr := j.Close(); closeErr != nil {
			logger.Error("error closing journal", "error", closeErr)
		}
	}()

	ids := opts.SessionIDs
	switch {
	case opts.Session != "":
		ids = testutil.NewFixedSessionGenerator(opts.Session)
	case scenario.Session != "":
		ids = testutil.NewFixedSessionGenerator(scenario.Session)
	case ids == nil:
		ids = journal.UUIDv7Generator{}
	}

	result, err := harness.Run(scenario,
		harness.WithSink(j),
		harness.WithSessionIDs(ids),
		harness.WithLogger(logger),
	)
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to run scenario", err)
	}
	logger.Info("scenario recorded", "session", result.Session, "events", len(result.Trace))

	out := RunResult{
		Scenario: scenario.Name,
		Session:  result.Session,
		Pass:     result.Pass,
		Events:   len(result.Trace),
		Errors:   result.Errors,
	}

	if opts.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: out, Session: out.Session}
		if !out.Pass {
			resp.Status = "error"
			resp.Error = &CLIError{Code: "E_TEST_FAILED", Message: fmt.Sprintf("scenario %s failed", out.Scenario)}
		}
		if err := formatter.JSON(resp); err != nil {
			return err
		}
	} else {
		w := cmd.OutOrStdout()
		mark := "✓"
		if !out.Pass {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s\n", mark, out.Scenario)
		for _, e := range out.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		fmt.Fprintf(w, "Recorded %d event(s) in session %s\n", out.Events, out.Session)
	}

	if !out.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", out.Scenario))
	}
	return nil
}

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cyrke/kea/internal/ir"
	"github.com/cyrke/kea/internal/journal"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	Session  string // optional - specific session only
}

// ReplaySummary holds the overall replay result.
type ReplaySummary struct {
	Sessions      []*journal.ReplayResult `json:"sessions"`
	TotalSessions int                     `json:"total_sessions"`
	AllMatched    bool                    `json:"all_matched"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <specs-dir>",
		Short: "Replay recorded sessions and verify state",
		Long: `Replay recorded sessions against freshly linked logic definitions.

Each session is replayed into its own runtime: mounts and unmounts are
re-applied and every top-level action is dispatched again. After each
action the state hash is compared with the recorded one.

Exit codes:
  0 - Every replayed state matched
  1 - At least one state diverged
  2 - Command error (journal not found, specs do not compile, etc.)

Examples:
  kea replay --db ./kea.db ./specs
  kea replay --db ./kea.db --session demo-1 ./specs
  kea replay --db ./kea.db ./specs --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "replay specific session only")

	return cmd
}

func runReplay(opts *ReplayOptions, specsDir string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	specs, err := compileSpecs(specsDir)
	if err != nil {
		_ = formatter.Fail(err)
		return WrapExitError(ExitCommandError, "failed to compile specs", err)
	}

	j, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	var sessions []string
	if opts.Session != "" {
		sessions = []string{opts.Session}
	} else {
		summaries, err := j.Sessions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list sessions", err)
		}
		for _, s := range summaries {
			sessions = append(sessions, s.ID)
		}
	}

	summary := ReplaySummary{
		Sessions:      make([]*journal.ReplayResult, 0, len(sessions)),
		TotalSessions: len(sessions),
		AllMatched:    true,
	}
	if len(sessions) == 0 {
		if opts.Format == "json" {
			return outputReplayJSON(formatter, summary)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions found in journal.")
		return nil
	}

	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	for _, session := range sessions {
		result, err := replaySession(ctx, j, session, specs)
		if err != nil {
			_ = formatter.Fail(err)
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay session %s", session), err)
		}
		logger.Debug("session replayed", "session", session, "actions", result.Actions, "mismatches", len(result.Mismatches))
		summary.Sessions = append(summary.Sessions, result)
		if !result.OK() {
			summary.AllMatched = false
		}
	}

	if opts.Format == "json" {
		return outputReplayJSON(formatter, summary)
	}
	return outputReplayText(cmd.OutOrStdout(), summary, opts.Verbose)
}

// replaySession replays one session into a runtime of its own.
func replaySession(ctx context.Context, sink journal.Sink, session string, specs []*ir.LogicSpec) (*journal.ReplayResult, error) {
	rt, wrappers, err := linkSpecs(specs)
	if err != nil {
		return nil, err
	}
	return journal.Replay(ctx, sink, session, &journal.RuntimeTarget{Runtime: rt, Wrappers: wrappers})
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(formatter *OutputFormatter, summary ReplaySummary) error {
	response := CLIResponse{Status: "ok", Data: summary}
	if !summary.AllMatched {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DIVERGED",
			Message: "replayed state diverged from the journal",
		}
	}

	if err := formatter.JSON(response); err != nil {
		return err
	}
	if !summary.AllMatched {
		return NewExitError(ExitFailure, "replayed state diverged from the journal")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(w io.Writer, summary ReplaySummary, verbose bool) error {
	fmt.Fprintf(w, "Replay Summary: %d session(s)\n\n", summary.TotalSessions)

	for _, s := range summary.Sessions {
		status := "✓"
		if !s.OK() {
			status = "✗"
		}
		fmt.Fprintf(w, "%s Session: %s\n", status, s.Session)
		fmt.Fprintf(w, "  Events: %d action(s), %d mount(s), %d unmount(s)\n", s.Actions, s.Mounts, s.Unmounts)
		if verbose {
			fmt.Fprintf(w, "  Skipped: %d\n", s.Skipped)
		}
		for _, m := range s.Mismatches {
			fmt.Fprintf(w, "  [%d] %s: state %s, recorded %s\n", m.Seq, m.Type, truncateID(m.Got), truncateID(m.Want))
		}
		fmt.Fprintln(w)
	}

	if summary.AllMatched {
		fmt.Fprintln(w, "✓ All sessions replayed to the recorded state")
		return nil
	}

	fmt.Fprintln(w, "✗ Replay diverged")
	return NewExitError(ExitFailure, "replayed state diverged from the journal")
}

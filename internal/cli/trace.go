package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cyrke/kea/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	Session  string
	Identity string // optional - filter to one logic identity
}

// TraceEvent is one journal entry in the timeline.
type TraceEvent struct {
	Seq        int64          `json:"seq"`
	Kind       string         `json:"kind"` // "mount", "unmount" or "action"
	ID         string         `json:"id"`
	Identity   string         `json:"identity,omitempty"`
	Type       string         `json:"type,omitempty"`
	Payload    any            `json:"payload,omitempty"`
	Props      map[string]any `json:"props,omitempty"`
	MountCount int            `json:"mount_count,omitempty"`
	Nested     bool           `json:"nested,omitempty"`
	StateHash  string         `json:"state_hash,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Session  string       `json:"session"`
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int `json:"total_events"`
	Actions     int `json:"actions"`
	Mounts      int `json:"mounts"`
	Unmounts    int `json:"unmounts"`

	// StillMounted counts identities mounted more often than unmounted.
	StillMounted int `json:"still_mounted"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show a recorded session",
		Long: `Show the journal of a recorded session in seq order.

Without --session, lists the sessions stored in the journal.

The output includes:
- Timeline: mounts, unmounts and top-level actions in seq order
- Stats: summary counts for the session

Examples:
  kea trace --db ./kea.db
  kea trace --db ./kea.db --session demo-1
  kea trace --db ./kea.db --session demo-1 --identity counters.a
  kea trace --db ./kea.db --session demo-1 --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Session, "session", "", "session to show")
	cmd.Flags().StringVar(&opts.Identity, "identity", "", "only show lifecycle events of this identity and actions on its path")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}

	j, err := journal.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	if opts.Session == "" {
		return listSessions(ctx, j, formatter)
	}

	session, err := j.ReadSession(ctx, opts.Session)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read session", err)
	}

	if len(session.Actions) == 0 && len(session.Lifecycle) == 0 {
		if opts.Format == "json" {
			return formatter.JSON(CLIResponse{Status: "ok", Data: TraceResult{
				Session:  opts.Session,
				Timeline: []TraceEvent{},
			}})
		}
		fmt.Fprintf(cmd.OutOrStdout(), "No events found for session: %s\n", opts.Session)
		return nil
	}

	timeline := buildTimeline(session, opts.Identity)
	result := TraceResult{
		Session:  opts.Session,
		Timeline: timeline,
		Stats:    traceStats(timeline),
	}

	if opts.Format == "json" {
		return formatter.JSON(CLIResponse{Status: "ok", Data: result, Session: result.Session})
	}
	return outputTraceText(cmd.OutOrStdout(), result, opts.Verbose)
}

func listSessions(ctx context.Context, j *journal.Journal, formatter *OutputFormatter) error {
	summaries, err := j.Sessions(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list sessions", err)
	}
	if formatter.Format == "json" {
		if summaries == nil {
			summaries = []journal.SessionSummary{}
		}
		return formatter.Success(summaries)
	}

	w := formatter.Writer
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No sessions found in journal.")
		return nil
	}
	fmt.Fprintf(w, "Sessions: %d\n\n", len(summaries))
	for _, s := range summaries {
		fmt.Fprintf(w, "  %s: %d action(s), %d lifecycle event(s), seq %d-%d\n",
			s.ID, s.Actions, s.Lifecycle, s.FirstSeq, s.LastSeq)
	}
	return nil
}

// buildTimeline converts journal entries to timeline events. With an
// identity filter, only that identity's lifecycle events and the actions
// whose type names its path are kept.
func buildTimeline(session *journal.Session, identity string) []TraceEvent {
	timeline := []TraceEvent{}
	for _, entry := range session.Entries() {
		if l := entry.Lifecycle; l != nil {
			if identity != "" && l.Identity != identity {
				continue
			}
			timeline = append(timeline, TraceEvent{
				Seq:        l.Seq,
				Kind:       l.Event,
				ID:         l.ID,
				Identity:   l.Identity,
				Props:      l.Props,
				MountCount: l.MountCount,
				Nested:     l.Nested,
			})
			continue
		}
		a := entry.Action
		if identity != "" && !strings.HasSuffix(a.Type, "("+identity+")") {
			continue
		}
		timeline = append(timeline, TraceEvent{
			Seq:       a.Seq,
			Kind:      "action",
			ID:        a.ID,
			Type:      a.Type,
			Payload:   a.Payload,
			StateHash: a.StateHash,
		})
	}
	return timeline
}

func traceStats(timeline []TraceEvent) TraceStats {
	stats := TraceStats{TotalEvents: len(timeline)}
	balance := make(map[string]int)
	for _, e := range timeline {
		switch e.Kind {
		case journal.EventMount:
			stats.Mounts++
			balance[e.Identity]++
		case journal.EventUnmount:
			stats.Unmounts++
			balance[e.Identity]--
		default:
			stats.Actions++
		}
	}
	for _, n := range balance {
		if n > 0 {
			stats.StillMounted++
		}
	}
	return stats
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, verbose bool) error {
	fmt.Fprintf(w, "Trace for Session: %s\n\n", result.Session)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, event := range result.Timeline {
		formatTimelineEvent(w, event, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events:  %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Actions:       %d\n", result.Stats.Actions)
	fmt.Fprintf(w, "  Mounts:        %d\n", result.Stats.Mounts)
	fmt.Fprintf(w, "  Unmounts:      %d\n", result.Stats.Unmounts)
	fmt.Fprintf(w, "  Still Mounted: %d\n", result.Stats.StillMounted)
	return nil
}

// formatTimelineEvent formats a single timeline event for text output.
func formatTimelineEvent(w io.Writer, event TraceEvent, verbose bool) {
	switch event.Kind {
	case journal.EventMount, journal.EventUnmount:
		nested := ""
		if event.Nested {
			nested = " (nested)"
		}
		fmt.Fprintf(w, "  [%d] %s %s%s\n", event.Seq, strings.ToUpper(event.Kind), event.Identity, nested)
		if verbose && len(event.Props) > 0 {
			fmt.Fprintf(w, "       Props: %s\n", formatArgs(event.Props))
		}
	default:
		fmt.Fprintf(w, "  [%d] ACTION %s\n", event.Seq, event.Type)
		if verbose {
			if payload, ok := event.Payload.(map[string]any); ok && len(payload) > 0 {
				fmt.Fprintf(w, "       Payload: %s\n", formatArgs(payload))
			}
			fmt.Fprintf(w, "       State: %s\n", truncateID(event.StateHash))
		}
	}
	if verbose {
		fmt.Fprintf(w, "       ID: %s\n", truncateID(event.ID))
	}
}

// formatArgs formats a map for display with sorted keys.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(args[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue formats a single value for display, handling nested structures deterministically.
func formatValue(v any) string {
	switch val := v.(type) {
	case map[string]any:
		return formatArgs(val)
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}

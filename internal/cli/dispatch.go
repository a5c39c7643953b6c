package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cyrke/kea/internal/ir"
	"github.com/cyrke/kea/internal/journal"
	"github.com/cyrke/kea/pkg/kea"
	"github.com/cyrke/kea/pkg/store"
)

// DispatchOptions holds flags for the dispatch command.
type DispatchOptions struct {
	*RootOptions
	Props    string
	Key      string
	Args     string
	Database string
}

// DispatchResult is the state of a logic after one action.
type DispatchResult struct {
	Identity string         `json:"identity"`
	Action   string         `json:"action"`
	Values   map[string]any `json:"values"`
	State    any            `json:"state"`
	Session  string         `json:"session,omitempty"`
}

// NewDispatchCommand creates the dispatch command.
func NewDispatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DispatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dispatch <specs-dir> <logic> <action>",
		Short: "Mount a logic, dispatch one action and show its values",
		Long: `Mount a logic, dispatch one of its actions and print the logic's
values and state afterwards. Props, key and args are YAML (or JSON).

With --db the mount, the action and the unmount are recorded into the
journal under a new session.

Example:
  kea dispatch ./specs view increment --props 'id: a' --args '[2]'
  kea dispatch ./specs counter reset --key a --db ./kea.db`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return dispatchAction(opts, args[0], args[1], args[2], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Props, "props", "{}", "props the logic is built with")
	cmd.Flags().StringVar(&opts.Key, "key", "", "fixed key for a keyed logic")
	cmd.Flags().StringVar(&opts.Args, "args", "[]", "action arguments as a list")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record into this SQLite journal")

	return cmd
}

func dispatchAction(opts *DispatchOptions, specsDir, logicName, action string, cmd *cobra.Command) error {
	ctx := context.Background()
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	var props map[string]any
	if err := yaml.Unmarshal([]byte(opts.Props), &props); err != nil {
		return WrapExitError(ExitCommandError, "invalid --props", err)
	}
	var args []any
	if err := yaml.Unmarshal([]byte(opts.Args), &args); err != nil {
		return WrapExitError(ExitCommandError, "invalid --args", err)
	}
	var key any
	if opts.Key != "" {
		if err := yaml.Unmarshal([]byte(opts.Key), &key); err != nil {
			return WrapExitError(ExitCommandError, "invalid --key", err)
		}
	}

	specs, err := compileSpecs(specsDir)
	if err != nil {
		_ = formatter.Fail(err)
		return WrapExitError(ExitCommandError, "failed to compile specs", err)
	}

	runtimeOpts := []kea.Option{kea.WithLogger(logger)}
	var rec *journal.Recorder
	if opts.Database != "" {
		j, err := journal.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer j.Close()
		rec, err = journal.NewRecorder(ctx, j, journal.WithLogger(logger))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to start recorder", err)
		}
		runtimeOpts = append(runtimeOpts,
			kea.WithStore(store.New(rec.Middleware)),
			kea.WithPlugins(rec.Plugin()),
		)
	}

	rt, wrappers, err := linkSpecs(specs, runtimeOpts...)
	if err != nil {
		_ = formatter.Fail(err)
		return WrapExitError(ExitCommandError, "failed to link specs", err)
	}

	w, ok := wrappers[logicName]
	if !ok {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("unknown logic %q", logicName), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown logic %q", logicName))
	}
	if key != nil {
		w = w.WithKey(key)
	}

	l, err := w.Build(kea.Props(props))
	if err != nil {
		_ = formatter.Fail(err)
		return WrapExitError(ExitFailure, "failed to build logic", err)
	}
	release, err := rt.Mount(l)
	if err != nil {
		_ = formatter.Fail(err)
		return WrapExitError(ExitFailure, "failed to mount logic", err)
	}
	defer release()

	dispatch, ok := l.Actions[action]
	if !ok {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("%s has no action %q", l.ID, action), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s has no action %q", l.ID, action))
	}
	dispatch(args...)
	logger.Debug("action dispatched", "logic", l.ID, "type", l.Type(action))

	result := DispatchResult{
		Identity: l.ID,
		Action:   l.Type(action),
		Values:   make(map[string]any, len(l.Values)),
		State:    ir.GetIn(rt.State(), l.Path),
	}
	for name := range l.Values {
		result.Values[name] = l.Value(name)
	}
	if rec != nil {
		if err := rec.Err(); err != nil {
			return WrapExitError(ExitCommandError, "failed to record", err)
		}
		result.Session = rec.Session()
	}

	return outputDispatch(formatter, result)
}

func outputDispatch(formatter *OutputFormatter, result DispatchResult) error {
	if formatter.Format == "json" {
		return formatter.JSON(CLIResponse{Status: "ok", Data: result, Session: result.Session})
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ %s\n\n", result.Action)
	fmt.Fprintf(w, "Values of %s:\n", result.Identity)
	names := make([]string, 0, len(result.Values))
	for name := range result.Values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "  %s = %s\n", name, formatValue(result.Values[name]))
	}
	if result.Session != "" {
		fmt.Fprintf(w, "\nRecorded in session %s\n", result.Session)
	}
	return nil
}

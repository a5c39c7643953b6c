package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cyrke/kea/internal/compiler"
	"github.com/cyrke/kea/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult holds the compiled logics and the build pipeline they
// run through.
type CompilationResult struct {
	Logics  []*ir.LogicSpec `json:"logics"`
	Steps   []string        `json:"steps"`
	Plugins []string        `json:"plugins"`
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	LogicCount     int
	TotalActions   int
	TotalReducers  int
	TotalSelectors int
	Connections    int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <specs-dir>",
		Short: "Compile CUE logic definitions",
		Long: `Compile CUE logic definitions to their data-only form.

Every logic is compiled, validated and defined in a scratch runtime, so
connection and step-order problems surface here too. The output lists
each logic's shape and the build step order.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, specsDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputCompileError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputCompileError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)
	for _, spec := range loadResult.Logics {
		formatter.VerboseLog("Compiling logic: %s", spec.Name)
	}

	for _, verr := range compiler.ValidateAll(loadResult.Logics) {
		loadErrors = append(loadErrors, verr)
	}
	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	rt, _, err := linkSpecs(loadResult.Logics)
	if err != nil {
		return outputCompileError(formatter, ErrCodeLinkFailed, err.Error(), nil)
	}

	result := &CompilationResult{
		Logics:  loadResult.Logics,
		Steps:   rt.StepOrder(),
		Plugins: rt.Registry().Plugins(),
	}
	stats := calculateStats(result)

	if opts.Output != "" {
		if err := writeIRToFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, stats, opts.Output)
}

// calculateStats computes summary statistics from compilation result.
func calculateStats(result *CompilationResult) CompilationStats {
	stats := CompilationStats{LogicCount: len(result.Logics)}
	for _, spec := range result.Logics {
		stats.TotalActions += len(spec.Actions)
		stats.TotalReducers += len(spec.Reducers)
		stats.TotalSelectors += len(spec.Selectors)
		stats.Connections += len(spec.Connect)
	}
	return stats
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, stats CompilationStats, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ Compiled %d logic(s), %d connection(s)\n\n", stats.LogicCount, stats.Connections)

	fmt.Fprintln(w, "Logics:")
	for _, spec := range result.Logics {
		fmt.Fprintf(w, "  %s: %d action(s), %d reducer(s), %d selector(s)%s\n",
			spec.Name, len(spec.Actions), len(spec.Reducers), len(spec.Selectors), logicFlags(spec))
		for _, c := range spec.Connect {
			fmt.Fprintf(w, "    → %s\n", c.Logic)
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Plugins: %s\n", strings.Join(result.Plugins, ", "))
	fmt.Fprintf(w, "Build steps: %s\n", strings.Join(result.Steps, " → "))

	if outputFile != "" {
		fmt.Fprintf(w, "\nWrote compiled logics to %s\n", outputFile)
	}
	return nil
}

// logicFlags summarizes how a logic is built, e.g. " [keyed by id, lazy]".
func logicFlags(spec *ir.LogicSpec) string {
	var flags []string
	if spec.Key != "" {
		flags = append(flags, "keyed by "+spec.Key)
	}
	lazy := spec.Lazy || spec.Key != ""
	for _, c := range spec.Connect {
		lazy = lazy || c.KeyProp != ""
	}
	if lazy {
		flags = append(flags, "lazy")
	} else {
		flags = append(flags, "eager")
	}
	return " [" + strings.Join(flags, ", ") + "]"
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details any) error {
	_ = formatter.Error(code, message, details)
	// Compilation errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}

		if err := formatter.JSON(CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors,
		}); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var verr compiler.ValidationError
	if errors.As(err, &verr) {
		return verr.Code, fmt.Sprintf("%s: %s", verr.Field, verr.Message)
	}
	return ErrCodeGeneric, err.Error()
}

// writeIRToFile writes the compilation result as indented JSON.
func writeIRToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling logics: %w", err)
	}
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}
	return nil
}

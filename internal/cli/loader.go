package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/cyrke/kea/internal/compiler"
	"github.com/cyrke/kea/internal/ir"
	"github.com/cyrke/kea/pkg/kea"
	"github.com/cyrke/kea/pkg/store"
)

// LoadMode controls how errors are handled during spec loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the results of loading specs from a directory.
type LoadResult struct {
	Logics    []*ir.LogicSpec
	CUEValue  cue.Value // unified value of every file
	FileCount int
}

// LoadError represents an error that occurred during spec loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSpecs loads every CUE file under dir and compiles the logics under
// its top-level "logic" struct. Validation is left to the caller.
//
// A nil result means nothing could be compiled at all (missing directory,
// no files, CUE conflicts). Otherwise errs holds per-logic compile errors,
// only the first one in LoadModeFailFast.
func LoadSpecs(dir string, mode LoadMode) (*LoadResult, []error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}}
	}
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}}
	}
	if !info.IsDir() {
		return nil, []error{&LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}}
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, []error{&LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}}
	}
	if len(cueFiles) == 0 {
		return nil, []error{&LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}}
	}

	value, err := compiler.LoadFiles(cueFiles...)
	if err != nil {
		return nil, []error{convertCompileError(err, ErrCodeBuildFailed)}
	}

	result := &LoadResult{CUEValue: value, FileCount: len(cueFiles)}

	logics, compileErrs := compiler.CompileAll(value)
	result.Logics = logics
	var errs []error
	for _, err := range compileErrs {
		errs = append(errs, convertCompileError(err, ErrCodeCompileFailed))
		if mode == LoadModeFailFast {
			return result, errs
		}
	}

	if len(result.Logics) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no logics found in specs"})
	}
	return result, errs
}

// FindCUEFiles walks the directory and returns all .cue file paths in
// lexical order.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, code string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    code,
			Message: fmt.Sprintf("%s: %s", compileErr.Field, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{Code: code, Message: err.Error()}
}

// Error code constants - unified across all CLI commands. Validation codes
// (E100-E199) come from the compiler; runtime failures carry their kea
// error code.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeScanError     = "E002" // Directory scan error
	ErrCodeNoFiles       = "E003" // No CUE files found
	ErrCodeLoadFailed    = "E004" // Scenario or journal could not be loaded
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeBuildFailed   = "E006" // CUE files do not unify
	ErrCodeWriteFailed   = "E007" // File write error
	ErrCodeCompileFailed = "E008" // A logic does not compile
	ErrCodeLinkFailed    = "E009" // Compiled logics could not be defined
)

// ErrorCode returns the code for err: the kea error code when err carries
// one, the LoadError or validation code otherwise.
func ErrorCode(err error) string {
	var keaErr *kea.Error
	if errors.As(err, &keaErr) {
		return string(keaErr.Code)
	}
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code
	}
	var verr compiler.ValidationError
	if errors.As(err, &verr) {
		return verr.Code
	}
	return ErrCodeGeneric
}

// compileSpecs loads, compiles and validates every logic in dir, failing
// on the first problem.
func compileSpecs(dir string) ([]*ir.LogicSpec, error) {
	loadResult, loadErrors := LoadSpecs(dir, LoadModeFailFast)
	if len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}
	if verrs := compiler.ValidateAll(loadResult.Logics); len(verrs) > 0 {
		return nil, verrs[0]
	}
	return loadResult.Logics, nil
}

// linkSpecs defines specs in a fresh runtime built with opts. The runtime
// defaults to an unobserved store and always carries the listeners plugin.
func linkSpecs(specs []*ir.LogicSpec, opts ...kea.Option) (*kea.Runtime, map[string]*kea.Wrapper, error) {
	opts = append([]kea.Option{
		kea.WithStore(store.New()),
		kea.WithPlugins(kea.ListenersPlugin()),
	}, opts...)
	rt, err := kea.NewRuntime(opts...)
	if err != nil {
		return nil, nil, err
	}
	wrappers, err := compiler.Link(rt, specs)
	if err != nil {
		return nil, nil, err
	}
	return rt, wrappers, nil
}

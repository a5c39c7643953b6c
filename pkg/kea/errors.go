package kea

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes kea errors.
type ErrorCode string

const (
	// ErrCodeDuplicatePlugin indicates a plugin with the same name is already active.
	ErrCodeDuplicatePlugin ErrorCode = "DUPLICATE_PLUGIN"

	// ErrCodeInvalidPlugin indicates a plugin without a name or with a malformed step.
	ErrCodeInvalidPlugin ErrorCode = "INVALID_PLUGIN"

	// ErrCodeCyclicStepOrder indicates the merged before/after constraints are unsatisfiable.
	ErrCodeCyclicStepOrder ErrorCode = "CYCLIC_STEP_ORDER"

	// ErrCodeUnknownStep indicates a placement constraint names a step nobody declared.
	ErrCodeUnknownStep ErrorCode = "UNKNOWN_STEP"

	// ErrCodeBuildStepFailure indicates a step handler failed; the logic was discarded.
	ErrCodeBuildStepFailure ErrorCode = "BUILD_STEP_FAILURE"

	// ErrCodeUnresolvedConnection indicates a declared dependency could not be built or imported.
	ErrCodeUnresolvedConnection ErrorCode = "UNRESOLVED_CONNECTION"

	// ErrCodeIdentityCollision indicates two different definitions resolved to one identity.
	ErrCodeIdentityCollision ErrorCode = "IDENTITY_COLLISION"
)

// Error is returned synchronously by ActivatePlugin, Define, Build and Mount.
//
// Step and Plugin are set for build step failures so the failing handler can
// be located without a stack trace.
type Error struct {
	Code     ErrorCode
	Message  string
	Identity string
	Step     string
	Plugin   string
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Code, e.Message)

	var ctx []string
	if e.Identity != "" {
		ctx = append(ctx, "logic="+e.Identity)
	}
	if e.Step != "" {
		ctx = append(ctx, "step="+e.Step)
	}
	if e.Plugin != "" {
		ctx = append(ctx, "plugin="+e.Plugin)
	}
	if len(ctx) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(ctx, ", "))
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode reports whether err, or any kea Error in its chain, carries code.
// A failed dependency build surfaces as the dependent's error with the
// dependency's error as cause, so the whole chain is searched.
func IsCode(err error, code ErrorCode) bool {
	for err != nil {
		var ke *Error
		if !errors.As(err, &ke) {
			return false
		}
		if ke.Code == code {
			return true
		}
		err = ke.Cause
	}
	return false
}

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

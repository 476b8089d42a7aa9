package flow

import (
	"errors"
	"fmt"
)

// RuntimeError represents a misuse of the engine detected at runtime.
//
// Runtime errors are programming errors, not recoverable conditions:
//   - Starting a node that is already running
//   - Rendering a node that was never started
//   - Remounting an id with a different flow definition
//   - Mounting the same id twice in one render pass
//   - Using a render context after its render function returned
//
// Inside render functions they are raised with panic (there is no error
// path to return through); host-facing Tree methods return them.
type RuntimeError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Path identifies the affected node, if any.
	Path string

	// Details contains additional context.
	Details map[string]string
}

// ErrorCode categorizes runtime errors.
type ErrorCode string

const (
	// ErrCodeAlreadyStarted indicates start was called on a running node.
	ErrCodeAlreadyStarted ErrorCode = "ALREADY_STARTED"

	// ErrCodeNotStarted indicates a node was rendered before being started.
	ErrCodeNotStarted ErrorCode = "NOT_STARTED"

	// ErrCodeDisposed indicates an operation on a disposed tree.
	ErrCodeDisposed ErrorCode = "DISPOSED"

	// ErrCodeFlowMismatch indicates an id was remounted with another flow.
	ErrCodeFlowMismatch ErrorCode = "FLOW_MISMATCH"

	// ErrCodeDuplicateID indicates an id was mounted twice in one pass.
	ErrCodeDuplicateID ErrorCode = "DUPLICATE_ID"

	// ErrCodeContextClosed indicates a render context outlived its pass.
	ErrCodeContextClosed ErrorCode = "CONTEXT_CLOSED"

	// ErrCodeInvalidFlow indicates an incomplete flow definition.
	ErrCodeInvalidFlow ErrorCode = "INVALID_FLOW"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (node=%s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsCode reports whether err is a RuntimeError with the given code.
// Uses errors.As to handle wrapped errors.
func IsCode(err error, code ErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

func newRuntimeError(code ErrorCode, path, format string, args ...any) *RuntimeError {
	return &RuntimeError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Path:    path,
	}
}

// EffectError describes an effect subscription that ended abnormally,
// either through Sink.Fail or by panicking.
//
// The failure is local to the subscription: the node keeps its state and
// its other feedbacks keep running.
type EffectError struct {
	Path     string // node that owns the feedback
	Feedback string // feedback name
	Query    string // printable query (or key) of the subscription
	Err      error
}

// Error implements the error interface.
func (e *EffectError) Error() string {
	return fmt.Sprintf("effect %s(%s) at %s failed: %v", e.Feedback, e.Query, e.Path, e.Err)
}

// Unwrap returns the underlying failure.
func (e *EffectError) Unwrap() error {
	return e.Err
}

// IsEffectError returns true if err is an EffectError.
func IsEffectError(err error) bool {
	var ee *EffectError
	return errors.As(err, &ee)
}

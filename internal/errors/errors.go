// Package errors provides explicit, human-readable error types for opsintel.
// All errors include a Reason and Suggestion for actionable feedback.
//
// These types cover usage and configuration bugs only. Environmental
// failures (store unreachable, bad SQL at runtime, failed refresh) are
// surfaced as data on QueryResult/FreshnessInfo, never as errors.
package errors

import (
	stderrors "errors"
	"fmt"
)

// FrameworkError is the base error type for all opsintel errors.
type FrameworkError struct {
	Code       ErrorCode
	Message    string
	Reason     string
	Suggestion string
	Cause      error
}

// ErrorCode represents the category of error for exit code mapping.
type ErrorCode int

const (
	CodeValidation ErrorCode = 1
	CodeConfig     ErrorCode = 2
	CodeSource     ErrorCode = 3
	CodeInternal   ErrorCode = 4
)

func (e *FrameworkError) Error() string {
	msg := e.Message
	if e.Reason != "" {
		msg = fmt.Sprintf("%s\nReason: %s", msg, e.Reason)
	}
	if e.Suggestion != "" {
		msg = fmt.Sprintf("%s\nSuggestion: %s", msg, e.Suggestion)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s\nCaused by: %v", msg, e.Cause)
	}
	return msg
}

func (e *FrameworkError) Unwrap() error {
	return e.Cause
}

// ErrSourceNotFound is returned when a named source has no registered adapter.
type ErrSourceNotFound struct {
	FrameworkError
	Source string
}

// NewSourceNotFound creates a new ErrSourceNotFound.
func NewSourceNotFound(source string) *ErrSourceNotFound {
	return &ErrSourceNotFound{
		FrameworkError: FrameworkError{
			Code:       CodeSource,
			Message:    fmt.Sprintf("unknown source: %s", source),
			Reason:     "no adapter registered with this name",
			Suggestion: "list configured sources with 'opsintel freshness'",
		},
		Source: source,
	}
}

// ErrInvalidTemplate is returned when a template registration is invalid.
type ErrInvalidTemplate struct {
	FrameworkError
	Template string
}

// NewInvalidTemplate creates a new ErrInvalidTemplate.
func NewInvalidTemplate(template, reason string) *ErrInvalidTemplate {
	return &ErrInvalidTemplate{
		FrameworkError: FrameworkError{
			Code:       CodeValidation,
			Message:    fmt.Sprintf("invalid template: %s", template),
			Reason:     reason,
			Suggestion: "templates must carry a name, a description, and a read-only SELECT",
		},
		Template: template,
	}
}

// ErrQueryRejected is returned when a query is rejected before execution.
type ErrQueryRejected struct {
	FrameworkError
	Query string
}

// NewQueryRejected creates a new ErrQueryRejected.
func NewQueryRejected(query, reason, suggestion string) *ErrQueryRejected {
	return &ErrQueryRejected{
		FrameworkError: FrameworkError{
			Code:       CodeValidation,
			Message:    "query rejected",
			Reason:     reason,
			Suggestion: suggestion,
		},
		Query: query,
	}
}

// ErrInvalidSchedule is returned when the schedule file cannot be parsed.
// Individual missing entries are not errors; they default to disabled.
type ErrInvalidSchedule struct {
	FrameworkError
	Path string
}

// NewInvalidSchedule creates a new ErrInvalidSchedule.
func NewInvalidSchedule(path, reason string) *ErrInvalidSchedule {
	return &ErrInvalidSchedule{
		FrameworkError: FrameworkError{
			Code:       CodeConfig,
			Message:    fmt.Sprintf("invalid schedule file: %s", path),
			Reason:     reason,
			Suggestion: "each entry needs refresh_time (HH:MM), enabled, and refresh_command",
		},
		Path: path,
	}
}

// ErrBootstrapFailed is returned when local dev schema setup fails.
type ErrBootstrapFailed struct {
	FrameworkError
}

// NewBootstrapFailed creates a new ErrBootstrapFailed.
func NewBootstrapFailed(reason string, cause error) *ErrBootstrapFailed {
	return &ErrBootstrapFailed{
		FrameworkError: FrameworkError{
			Code:       CodeSource,
			Message:    "bootstrap failed",
			Reason:     reason,
			Suggestion: "check database connectivity with 'opsintel doctor'",
			Cause:      cause,
		},
	}
}

// ExitCode maps an error to a process exit code. Framework errors carry
// their category, even when wrapped; anything else is internal.
func ExitCode(err error) int {
	for err != nil {
		if coded, ok := err.(interface{ exitCode() int }); ok {
			return coded.exitCode()
		}
		err = stderrors.Unwrap(err)
	}
	return int(CodeInternal)
}

func (e *FrameworkError) exitCode() int {
	return int(e.Code)
}

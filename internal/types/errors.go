package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for waggle-dance errors.
type ErrorCode string

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_PARSE_FAILED      ErrorCode = "CONFIG_PARSE_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
)

// Graph error codes
const (
	GRAPH_DUPLICATE_NODE ErrorCode = "GRAPH_DUPLICATE_NODE"
	GRAPH_DANGLING_EDGE  ErrorCode = "GRAPH_DANGLING_EDGE"
	GRAPH_CYCLE_DETECTED ErrorCode = "GRAPH_CYCLE_DETECTED"
	GRAPH_NODE_NOT_FOUND ErrorCode = "GRAPH_NODE_NOT_FOUND"
	GRAPH_EMPTY          ErrorCode = "GRAPH_EMPTY"
)

// Planner error codes
const (
	PLAN_FAILED       ErrorCode = "PLAN_FAILED"
	PLAN_PARSE_FAILED ErrorCode = "PLAN_PARSE_FAILED"
	PLAN_EMPTY        ErrorCode = "PLAN_EMPTY"
)

// Task execution error codes
const (
	TASK_FAILED      ErrorCode = "TASK_FAILED"
	TASK_ABORTED     ErrorCode = "TASK_ABORTED"
	TASK_NEEDS_HUMAN ErrorCode = "TASK_NEEDS_HUMAN"
)

// Scheduler error codes
const (
	SCHED_DEADLOCK ErrorCode = "SCHED_DEADLOCK"
	RUN_ABORTED    ErrorCode = "RUN_ABORTED"
)

// LLM client error codes
const (
	LLM_PROVIDER_NOT_FOUND ErrorCode = "LLM_PROVIDER_NOT_FOUND"
	LLM_AUTH_FAILED        ErrorCode = "LLM_AUTH_FAILED"
	LLM_REQUEST_FAILED     ErrorCode = "LLM_REQUEST_FAILED"
	LLM_STREAM_FAILED      ErrorCode = "LLM_STREAM_FAILED"
	LLM_RESPONSE_INVALID   ErrorCode = "LLM_RESPONSE_INVALID"
)

// Observability error codes
const (
	TRACE_INIT_FAILED     ErrorCode = "TRACE_INIT_FAILED"
	TRACE_SHUTDOWN_FAILED ErrorCode = "TRACE_SHUTDOWN_FAILED"
)

// Severity classifies how a failure affects the surrounding run.
// A warn failure is recorded and the run continues; a human failure parks the
// task until external input arrives; a fatal failure ends the run.
type Severity string

const (
	SeverityWarn  Severity = "warn"
	SeverityHuman Severity = "human"
	SeverityFatal Severity = "fatal"
)

// Valid reports whether s is one of the three known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityWarn, SeverityHuman, SeverityFatal:
		return true
	}
	return false
}

// WaggleError is a structured error with a code, a severity, and an optional
// cause. It supports error wrapping and retryability hints.
type WaggleError struct {
	Code      ErrorCode
	Message   string
	Severity  Severity
	Retryable bool
	Cause     error
}

// Error implements the error interface.
// Format: "[CODE] message" or "[CODE] message: cause" if a cause exists.
func (e *WaggleError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/errors.As chains.
func (e *WaggleError) Unwrap() error {
	return e.Cause
}

// Is matches target by error code, so sentinel comparisons work across
// independently constructed instances.
func (e *WaggleError) Is(target error) bool {
	var we *WaggleError
	if errors.As(target, &we) {
		return e.Code == we.Code
	}
	return false
}

// NewError creates a fatal, non-retryable error with the given code.
func NewError(code ErrorCode, message string) *WaggleError {
	return &WaggleError{
		Code:     code,
		Message:  message,
		Severity: SeverityFatal,
	}
}

// NewSeverityError creates an error with an explicit severity.
func NewSeverityError(code ErrorCode, severity Severity, message string) *WaggleError {
	return &WaggleError{
		Code:     code,
		Message:  message,
		Severity: severity,
	}
}

// NewRetryableError creates a fatal-severity error marked retryable, for
// transient conditions such as network timeouts.
func NewRetryableError(code ErrorCode, message string) *WaggleError {
	return &WaggleError{
		Code:      code,
		Message:   message,
		Severity:  SeverityFatal,
		Retryable: true,
	}
}

// WrapError wraps cause in a fatal, non-retryable error.
func WrapError(code ErrorCode, message string, cause error) *WaggleError {
	return &WaggleError{
		Code:     code,
		Message:  message,
		Severity: SeverityFatal,
		Cause:    cause,
	}
}

// WrapSeverityError wraps cause with an explicit severity.
func WrapSeverityError(code ErrorCode, severity Severity, message string, cause error) *WaggleError {
	return &WaggleError{
		Code:     code,
		Message:  message,
		Severity: severity,
		Cause:    cause,
	}
}

// CodeOf extracts the error code from err, or empty when err carries none.
func CodeOf(err error) ErrorCode {
	var we *WaggleError
	if errors.As(err, &we) {
		return we.Code
	}
	return ""
}

// SeverityOf extracts the severity from err. Errors without one, including
// plain errors from outside the module, are treated as fatal.
func SeverityOf(err error) Severity {
	var we *WaggleError
	if errors.As(err, &we) && we.Severity.Valid() {
		return we.Severity
	}
	return SeverityFatal
}

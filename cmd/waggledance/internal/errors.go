package internal

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/j-94/waggle-dance/internal/types"
)

// Exit code constants for the CLI
const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitError indicates a general error
	ExitError = 1
	// ExitSuspended indicates the run parked waiting for human input
	ExitSuspended = 2
	// ExitTimeout indicates the operation timed out
	ExitTimeout = 3
	// ExitCancelled indicates the operation was cancelled
	ExitCancelled = 4
	// ExitConfigError indicates a configuration error
	ExitConfigError = 10
	// ExitPlanError indicates planning or graph validation failed
	ExitPlanError = 11
)

// CLIError represents a CLI-specific error with an exit code
type CLIError struct {
	Code    int
	Message string
	Cause   error
}

// Error implements the error interface
func (e *CLIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause error
func (e *CLIError) Unwrap() error {
	return e.Cause
}

// WrapError creates a new CLIError wrapping an existing error
func WrapError(code int, message string, err error) *CLIError {
	return &CLIError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// NewCLIError creates a new CLIError with the given code and message
func NewCLIError(code int, message string) *CLIError {
	return &CLIError{
		Code:    code,
		Message: message,
	}
}

// HandleError handles an error and returns the appropriate exit code.
// It also prints the error message to the command's error output.
func HandleError(cmd *cobra.Command, err error) int {
	if err == nil {
		return ExitSuccess
	}

	// Check for context cancellation
	if errors.Is(err, context.Canceled) {
		cmd.PrintErrln("Operation cancelled")
		return ExitCancelled
	}

	// Check for context deadline exceeded
	if errors.Is(err, context.DeadlineExceeded) {
		cmd.PrintErrln("Operation timed out")
		return ExitTimeout
	}

	// Check for CLIError
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		// A suspended run is a resumable state, not a failure.
		if cliErr.Code == ExitSuspended {
			cmd.PrintErrln(cliErr.Message)
			return cliErr.Code
		}
		cmd.PrintErrln("Error:", cliErr.Message)
		if cliErr.Cause != nil {
			verboseFlag := cmd.Flag("verbose")
			if verboseFlag != nil && verboseFlag.Changed {
				cmd.PrintErrln("Cause:", cliErr.Cause)
			}
		}
		return cliErr.Code
	}

	// Check for WaggleError
	var werr *types.WaggleError
	if errors.As(err, &werr) {
		cmd.PrintErrln("Error:", werr.Error())
		return mapWaggleErrorToExitCode(werr)
	}

	// Generic error
	cmd.PrintErrln("Error:", err)
	return ExitError
}

// mapWaggleErrorToExitCode maps WaggleError codes to CLI exit codes
func mapWaggleErrorToExitCode(err *types.WaggleError) int {
	switch err.Code {
	case types.CONFIG_LOAD_FAILED,
		types.CONFIG_PARSE_FAILED,
		types.CONFIG_VALIDATION_FAILED:
		return ExitConfigError
	case types.PLAN_FAILED,
		types.PLAN_PARSE_FAILED,
		types.PLAN_EMPTY,
		types.GRAPH_DUPLICATE_NODE,
		types.GRAPH_DANGLING_EDGE,
		types.GRAPH_CYCLE_DETECTED,
		types.GRAPH_NODE_NOT_FOUND,
		types.GRAPH_EMPTY:
		return ExitPlanError
	case types.RUN_ABORTED:
		return ExitCancelled
	default:
		return ExitError
	}
}

// IsVerbose checks if verbose mode is enabled via environment variable or flag.
// This is used for panic recovery to determine if stack traces should be shown.
func IsVerbose() bool {
	if os.Getenv("WAGGLEDANCE_VERBOSE") != "" {
		return true
	}

	for _, arg := range os.Args {
		if arg == "-v" || arg == "--verbose" {
			return true
		}
	}

	return false
}

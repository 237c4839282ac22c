package types_test

import (
	"errors"
	"fmt"

	"github.com/j-94/waggle-dance/internal/types"
)

// Example demonstrates basic error creation and handling
func Example_basicError() {
	err := types.NewError(types.CONFIG_LOAD_FAILED, "failed to load configuration file")
	fmt.Println(err.Error())
	// Output: [CONFIG_LOAD_FAILED] failed to load configuration file
}

// Example demonstrates wrapping errors to preserve context
func Example_wrappedError() {
	originalErr := errors.New("file not found")
	err := types.WrapError(types.CONFIG_LOAD_FAILED, "configuration missing", originalErr)
	fmt.Println(err.Error())
	// Output: [CONFIG_LOAD_FAILED] configuration missing: file not found
}

// Example demonstrates creating retryable errors for transient failures
func Example_retryableError() {
	err := types.NewRetryableError(types.LLM_REQUEST_FAILED, "model request timeout")
	fmt.Printf("Error: %s\nRetryable: %v\n", err.Error(), err.Retryable)
	// Output:
	// Error: [LLM_REQUEST_FAILED] model request timeout
	// Retryable: true
}

// Example demonstrates error matching with errors.Is()
func Example_errorMatching() {
	err1 := types.NewError(types.PLAN_PARSE_FAILED, "model response was not JSON")
	err2 := types.NewError(types.PLAN_PARSE_FAILED, "different message")
	err3 := types.NewError(types.PLAN_EMPTY, "no tasks produced")

	// Same error code matches
	fmt.Printf("err1 matches err2: %v\n", errors.Is(err1, err2))
	// Different error code doesn't match
	fmt.Printf("err1 matches err3: %v\n", errors.Is(err1, err3))
	// Output:
	// err1 matches err2: true
	// err1 matches err3: false
}

// Example demonstrates error unwrapping to access the original cause
func Example_errorUnwrapping() {
	originalErr := errors.New("connection refused")
	wrappedErr := types.WrapError(types.LLM_REQUEST_FAILED, "cannot reach provider", originalErr)

	// Access the wrapped error using errors.Is()
	if errors.Is(wrappedErr, originalErr) {
		fmt.Println("Found original error in chain")
	}

	// Access the cause directly
	if unwrapped := errors.Unwrap(wrappedErr); unwrapped != nil {
		fmt.Printf("Cause: %v\n", unwrapped)
	}
	// Output:
	// Found original error in chain
	// Cause: connection refused
}

// Example demonstrates using errors.As() to extract WaggleError
func Example_errorExtraction() {
	err := types.WrapError(types.GRAPH_CYCLE_DETECTED, "plan is not a DAG", errors.New("cycle through 2-1"))

	var waggleErr *types.WaggleError
	if errors.As(err, &waggleErr) {
		fmt.Printf("Code: %s\n", waggleErr.Code)
		fmt.Printf("Message: %s\n", waggleErr.Message)
		fmt.Printf("Retryable: %v\n", waggleErr.Retryable)
	}
	// Output:
	// Code: GRAPH_CYCLE_DETECTED
	// Message: plan is not a DAG
	// Retryable: false
}

// Example demonstrates how severity drives what happens to the run
func Example_severityHandling() {
	handleTaskError := func(err error) {
		switch types.SeverityOf(err) {
		case types.SeverityWarn:
			fmt.Println("Recording failure, run continues...")
		case types.SeverityHuman:
			fmt.Println("Parking task for human input...")
		case types.SeverityFatal:
			fmt.Println("Aborting run...")
		}
	}

	handleTaskError(types.NewSeverityError(types.TASK_FAILED, types.SeverityWarn, "tool call failed"))
	handleTaskError(types.NewSeverityError(types.TASK_NEEDS_HUMAN, types.SeverityHuman, "needs approval"))
	handleTaskError(errors.New("plain errors are fatal"))
	// Output:
	// Recording failure, run continues...
	// Parking task for human input...
	// Aborting run...
}

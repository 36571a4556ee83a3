package runner

import (
	"errors"
	"fmt"
)

// Common external tool invocation errors
var (
	// ErrToolNotFound is returned when the executable cannot be resolved or started.
	ErrToolNotFound = errors.New("external tool not found")

	// ErrToolFailed is returned when the tool exits with a non-zero status.
	ErrToolFailed = errors.New("external tool exited with an error")

	// ErrTimeout is returned when the tool is killed after exceeding its deadline.
	ErrTimeout = errors.New("external tool timed out")
)

// RunnerError wraps errors with the tool that failed and its stderr output.
type RunnerError struct {
	// Op is the operation that failed.
	Op string

	// Err is the underlying error.
	Err error

	// Tool is the executable that was invoked.
	Tool string

	// Stderr holds the tool's diagnostic output, if any.
	Stderr string
}

// Error implements the error interface.
func (e *RunnerError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("runner: %s failed: %s: %v: %s", e.Op, e.Tool, e.Err, e.Stderr)
	}
	return fmt.Sprintf("runner: %s failed: %s: %v", e.Op, e.Tool, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *RunnerError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *RunnerError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewRunnerError creates a new RunnerError.
func NewRunnerError(op string, err error, tool, stderr string) *RunnerError {
	return &RunnerError{
		Op:     op,
		Err:    err,
		Tool:   tool,
		Stderr: stderr,
	}
}

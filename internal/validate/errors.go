package validate

import (
	"errors"
	"fmt"
)

// Common validation gateway errors. These describe failures to run the
// validator at all; a non-conformant file is not an error but a report.
var (
	// ErrValidatorFailed is returned when the validator could not be executed
	// or exited abnormally.
	ErrValidatorFailed = errors.New("PDF/A validator failed to run")

	// ErrValidatorTimeout is returned when the validator exceeded its deadline.
	ErrValidatorTimeout = errors.New("PDF/A validator timed out")
)

// ValidationError wraps errors with context about the failed validator run.
type ValidationError struct {
	// Op is the operation that failed.
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("validate: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("validate: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *ValidationError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapValidationError wraps an error as a ValidationError if it isn't already one.
func WrapValidationError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return err // Already wrapped
	}

	return &ValidationError{Op: op, Err: err, Details: details}
}

package pdfa

import (
	"errors"
	"fmt"
)

// Common finalization errors
var (
	// ErrNoPages is returned when there are no composited pages to assemble.
	ErrNoPages = errors.New("no pages to assemble")

	// ErrMissingProfile is returned when the sRGB ICC profile for the output
	// intent cannot be found.
	ErrMissingProfile = errors.New("sRGB ICC profile not found")

	// ErrEmptyOutput is returned when Ghostscript reported success but wrote
	// no usable output file.
	ErrEmptyOutput = errors.New("assembly produced no output")
)

// FinalizationError wraps errors with context about the failed assembly.
type FinalizationError struct {
	// Op is the operation that failed.
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *FinalizationError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("pdfa: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("pdfa: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *FinalizationError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *FinalizationError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapFinalizationError wraps an error as a FinalizationError if it isn't already one.
func WrapFinalizationError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var finErr *FinalizationError
	if errors.As(err, &finErr) {
		return err // Already wrapped
	}

	return &FinalizationError{Op: op, Err: err, Details: details}
}

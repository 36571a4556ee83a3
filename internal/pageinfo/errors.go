package pageinfo

import (
	"errors"
	"fmt"
)

// Common inspection errors
var (
	// ErrNoPages is returned when the input PDF contains no pages.
	ErrNoPages = errors.New("input PDF contains no pages")

	// ErrNoRasterImage is returned when a page carries no embedded raster
	// image, so there is nothing to OCR.
	ErrNoRasterImage = errors.New("page contains no raster image")

	// ErrMalformedOutput is returned when the poppler tool output cannot be parsed.
	ErrMalformedOutput = errors.New("unexpected poppler output")
)

// InspectError wraps errors with context about the failed inspection.
type InspectError struct {
	// Op is the operation that failed (e.g., "Inspect").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *InspectError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("pageinfo: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("pageinfo: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *InspectError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *InspectError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapInspectError wraps an error as an InspectError if it isn't already one.
func WrapInspectError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var inspErr *InspectError
	if errors.As(err, &inspErr) {
		return err // Already wrapped
	}

	return &InspectError{Op: op, Err: err, Details: details}
}

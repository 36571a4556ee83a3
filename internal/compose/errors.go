package compose

import (
	"errors"
	"fmt"
)

// Common composition errors
var (
	// ErrNoGeometry is returned when the page has missing or zero-sized geometry.
	ErrNoGeometry = errors.New("page geometry is missing or zero-sized")

	// ErrNoResolution is returned when the raster carries no DPI, making the
	// pixel-to-point mapping impossible.
	ErrNoResolution = errors.New("raster has no resolution")

	// ErrImageEmbed is returned when the page raster cannot be embedded.
	ErrImageEmbed = errors.New("failed to embed page raster")

	// ErrImportFailed is returned when the original page cannot be imported
	// from the source PDF (encrypted or otherwise unparseable).
	ErrImportFailed = errors.New("failed to import original page")
)

// CompositionError wraps errors with context about the failed composition.
type CompositionError struct {
	// Op is the operation that failed.
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *CompositionError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("compose: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("compose: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *CompositionError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *CompositionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapCompositionError wraps an error as a CompositionError if it isn't already one.
func WrapCompositionError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var compErr *CompositionError
	if errors.As(err, &compErr) {
		return err // Already wrapped
	}

	return &CompositionError{Op: op, Err: err, Details: details}
}

package rasterize

import (
	"errors"
	"fmt"
)

// Common extraction errors
var (
	// ErrNoResolution is returned when a page has no embedded image DPI to render at.
	ErrNoResolution = errors.New("page has no embedded raster resolution")

	// ErrBadRaster is returned when Ghostscript produced an unreadable image.
	ErrBadRaster = errors.New("rasterized page image is unreadable")
)

// ExtractionError wraps errors with context about the failed rasterization.
type ExtractionError struct {
	// Op is the operation that failed.
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("rasterize: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("rasterize: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *ExtractionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapExtractionError wraps an error as an ExtractionError if it isn't already one.
func WrapExtractionError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var extErr *ExtractionError
	if errors.As(err, &extErr) {
		return err // Already wrapped
	}

	return &ExtractionError{Op: op, Err: err, Details: details}
}

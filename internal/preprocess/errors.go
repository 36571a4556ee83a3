package preprocess

import (
	"errors"
	"fmt"
)

// Common filter errors
var (
	// ErrCorruptImage is returned when the input raster cannot be decoded.
	ErrCorruptImage = errors.New("corrupt page raster")
)

// FilterError wraps errors with the filter that failed.
type FilterError struct {
	// Op is the operation that failed.
	Op string

	// Err is the underlying error.
	Err error

	// Filter names the filter being applied ("deskew" or "clean").
	Filter string
}

// Error implements the error interface.
func (e *FilterError) Error() string {
	return fmt.Sprintf("preprocess: %s failed: %s: %v", e.Op, e.Filter, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *FilterError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *FilterError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// WrapFilterError wraps an error as a FilterError if it isn't already one.
func WrapFilterError(op string, err error, filter string) error {
	if err == nil {
		return nil
	}

	var fltErr *FilterError
	if errors.As(err, &fltErr) {
		return err // Already wrapped
	}

	return &FilterError{Op: op, Err: err, Filter: filter}
}

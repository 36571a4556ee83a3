package pipeline

import (
	"errors"
	"fmt"
)

// Common pipeline errors
var (
	// ErrWorkspace is returned when the per-run temporary workspace cannot
	// be created.
	ErrWorkspace = errors.New("failed to create run workspace")

	// ErrValidationFailed is returned in strict mode when the produced file
	// did not validate as PDF/A. The output file is kept.
	ErrValidationFailed = errors.New("output is not a conformant PDF/A")
)

// PipelineError wraps a stage error with the stage and, for page-level
// stages, the page it happened on.
type PipelineError struct {
	// Stage is the pipeline stage that failed.
	Stage Stage

	// Page is the 1-based page number, or 0 for document-level stages.
	Page int

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("pipeline: %s failed on page %d: %v", e.Stage, e.Page, e.Err)
	}
	return fmt.Sprintf("pipeline: %s failed: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *PipelineError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

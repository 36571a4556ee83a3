package ocr

import (
	"errors"
	"fmt"
)

// Common OCR processing errors
var (
	// ErrEngineFailed is returned when the OCR engine crashes or reports an error.
	ErrEngineFailed = errors.New("OCR engine failed")

	// ErrTimeout is returned when a single OCR invocation exceeds its deadline.
	ErrTimeout = errors.New("OCR engine timed out")

	// ErrUnsupportedLanguage is returned when the engine has no trained data
	// for a requested language.
	ErrUnsupportedLanguage = errors.New("unsupported OCR language")

	// ErrMissingCredentials is returned when neither GOOGLE_APPLICATION_CREDENTIALS
	// nor GOOGLE_CREDENTIALS environment variables are configured for a cloud backend.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")

	// ErrInvalidConfiguration is returned when a cloud backend is missing
	// required project or processor settings.
	ErrInvalidConfiguration = errors.New("invalid OCR backend configuration")

	// ErrEmptyResult is returned when the engine produced no parseable output
	// at all. A page with zero recognized words is NOT an error.
	ErrEmptyResult = errors.New("OCR engine produced no output")

	// ErrContextCanceled is returned when the context is canceled during processing.
	ErrContextCanceled = errors.New("OCR processing was canceled")
)

// OCRError wraps errors with additional context about the OCR processing failure.
type OCRError struct {
	// Op is the operation that failed (e.g., "Recognize", "LoadCredentials").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *OCRError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *OCRError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *OCRError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewOCRError creates a new OCRError with the specified operation and underlying error.
func NewOCRError(op string, err error, details string) *OCRError {
	return &OCRError{
		Op:      op,
		Err:     err,
		Details: details,
	}
}

// WrapOCRError wraps an error as an OCRError if it isn't already one.
func WrapOCRError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var ocrErr *OCRError
	if errors.As(err, &ocrErr) {
		return err // Already wrapped
	}

	return NewOCRError(op, err, details)
}

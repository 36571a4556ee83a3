// Package ocr provides OCR (Optical Character Recognition) for page rasters
// behind a single Engine interface with three backends:
//
//   - Tesseract (default): local CLI invocation, hOCR output
//   - Google Cloud Vision: document text detection
//   - Google Document AI: OCR processor
//
// All backends return the same normalized result: recognized words in the
// engine's reading order with bounding boxes in image pixel coordinates and
// confidences in [0,1]. The pipeline treats engines as interchangeable.
//
// Required Environment Variables (cloud backends only):
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//   - GOOGLE_CLOUD_PROJECT: Google Cloud project ID (Document AI)
//   - DOCUMENT_AI_PROCESSOR_ID: OCR processor ID (Document AI)
package ocr

import (
	"context"
	"time"

	"ocrpdf/pkg/models"
)

// Engine recognizes text in a single page raster.
type Engine interface {
	// Recognize runs OCR over the raster and returns the normalized result.
	// The call blocks until the engine finishes, times out, or ctx is done.
	Recognize(ctx context.Context, raster *models.RasterImage, opts Options) (*Result, error)
}

// Options carries per-invocation OCR settings.
type Options struct {
	// Languages are ISO 639-2 hints in priority order (e.g. "eng", "deu").
	Languages []string

	// Timeout bounds a single engine invocation. Zero means the engine's
	// default (Tesseract: 180s).
	Timeout time.Duration
}

// Result is the normalized output of one OCR invocation.
type Result struct {
	// Words in reading order as reported by the engine, boxes in pixel
	// coordinates of the input raster. The order is never re-sorted.
	Words []models.RecognizedWord

	// PlainText is the linearized text, for debug output.
	PlainText string

	// WidthPx and HeightPx echo the dimensions the engine saw. A mismatch
	// with the input raster means the engine rescaled the image.
	WidthPx  int
	HeightPx int

	// Confidence is the mean word confidence (0.0 to 1.0); 0 when no words.
	Confidence float64

	// ProcessingDuration is how long the OCR invocation took.
	ProcessingDuration time.Duration
}

// meanConfidence computes the average word confidence of a result.
func meanConfidence(words []models.RecognizedWord) float64 {
	if len(words) == 0 {
		return 0
	}
	var sum float64
	for _, w := range words {
		sum += w.Confidence
	}
	return sum / float64(len(words))
}

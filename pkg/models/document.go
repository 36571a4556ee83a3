package models

import "time"

// Document describes one OCR run from an input PDF to a searchable PDF/A.
type Document struct {
	// Paths
	SourcePath string // Input PDF path
	TargetPath string // Output PDF/A path

	// Global options
	Languages        []string // OCR language hints (ISO 639-2, e.g. "eng", "deu")
	Deskew           bool     // Correct page rotation before OCR
	Clean            bool     // Despeckle/denoise pages before OCR
	CleanFinal       bool     // Embed the cleaned image in the final PDF instead of the original
	DedupOverlaps    bool     // Geometrically deduplicate overlapping recognized words
	Debug            bool     // Persist intermediate artifacts
	StrictValidation bool     // Treat a non-conformant validation result as a run failure

	// Pages in input order. Index in this slice is pageIndex-1.
	Pages []*Page

	CreatedAt time.Time // Run start timestamp
}

// Page carries the geometry of a single input page. Ordering is significant
// and 1-based throughout the pipeline.
type Page struct {
	Index int // 1-based page number in the input document

	// Page geometry in PDF points (1/72 in)
	WidthPt  float64
	HeightPt float64

	// Embedded raster geometry. The pipeline preserves this resolution
	// end to end; the output image content stream keeps the same DPI.
	WidthPx  int
	HeightPx int
	DPI      int

	// Image inventory summary, used to pick the rasterization device
	Components    int  // Color components of the embedded images (1 or 3)
	BitsPerComp   int  // Bits per component (1 for bitonal scans)
	HasColorImage bool // Any embedded image with a color colorspace
}

// RasterImage is an encoded page raster plus the metadata needed to map OCR
// pixel coordinates back into page points. Instances are never mutated;
// transforms produce new ones.
type RasterImage struct {
	Path     string // Encoded image file (PNG) in the run workspace
	Format   string // "png"
	WidthPx  int
	HeightPx int
	DPI      int
	Mode     ColorMode
}

// ColorMode is the color interpretation of a RasterImage.
type ColorMode string

const (
	ColorModeMono ColorMode = "mono" // 1-bit bitonal
	ColorModeGray ColorMode = "gray" // 8-bit grayscale
	ColorModeRGB  ColorMode = "rgb"  // 24-bit color
)

// RecognizedWord is a single OCR token with its bounding box in image pixel
// coordinates (origin top-left) and a confidence in [0,1]. Word order is the
// reading order reported by the engine and is never re-sorted.
type RecognizedWord struct {
	Text       string
	X0, Y0     float64 // Top-left corner, pixels
	X1, Y1     float64 // Bottom-right corner, pixels
	Confidence float64
}

// TextLayer is the per-page sequence of invisible glyph-run instructions in
// page point coordinates (origin bottom-left, PDF convention).
type TextLayer struct {
	PageIndex int
	Runs      []GlyphRun
	// Clipped counts words whose mapped boxes exceeded the page bounds and
	// were clamped rather than dropped.
	Clipped int
}

// GlyphRun is one positioned, horizontally scaled, invisible text run.
type GlyphRun struct {
	Text     string
	X, Y     float64 // Baseline anchor, points, origin bottom-left
	Width    float64 // Target box width, points
	FontSize float64 // Equal to the mapped box height, points
}

// ValidationReport is the classified output of the external PDF/A validator.
// It is immutable once produced.
type ValidationReport struct {
	Conformant  bool         // File is a valid PDF/A
	WellFormed  bool         // File is structurally valid PDF at all
	Profile     string       // Profile the validator reported (e.g. "PDF/A-2b")
	Diagnostics []Diagnostic // Validator messages, in output order
}

// Diagnostic is a single validator finding.
type Diagnostic struct {
	Code    string // Validator-specific code or category
	Message string
}

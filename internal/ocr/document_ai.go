package ocr

import (
	"context"
	"fmt"
	"os"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"google.golang.org/api/option"

	"ocrpdf/internal/logger"
	"ocrpdf/pkg/models"
)

// DocumentAIEngine implements Engine using a Google Document AI OCR
// processor. Token boxes arrive as normalized vertices and are scaled back
// into the raster's pixel space.
type DocumentAIEngine struct {
	client *documentai.DocumentProcessorClient
	config DocumentAIConfig
}

// DocumentAIConfig holds the processor coordinates for Document AI.
type DocumentAIConfig struct {
	// ProjectID is the Google Cloud project ID where Document AI is enabled.
	ProjectID string

	// Location is the processing region, e.g. "us" or "eu".
	Location string

	// ProcessorID identifies the OCR processor.
	ProcessorID string
}

// NewDocumentAIEngine creates a Document AI engine with credentials from environment.
// Expects: GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS
// Requires: GOOGLE_CLOUD_PROJECT (or GOOGLE_PROJECT_ID), DOCUMENT_AI_PROCESSOR_ID
func NewDocumentAIEngine(ctx context.Context) (*DocumentAIEngine, error) {
	const op = "NewDocumentAIEngine"

	config := DocumentAIConfig{
		ProjectID:   getEnvVar("GOOGLE_PROJECT_ID", "GOOGLE_CLOUD_PROJECT"),
		Location:    getEnvVar("GOOGLE_LOCATION", "GOOGLE_CLOUD_LOCATION"),
		ProcessorID: getEnvVar("GOOGLE_PROCESSOR_ID", "DOCUMENT_AI_PROCESSOR_ID"),
	}

	if config.ProjectID == "" {
		return nil, WrapOCRError(op, ErrInvalidConfiguration, "GOOGLE_PROJECT_ID or GOOGLE_CLOUD_PROJECT is required")
	}
	if config.ProcessorID == "" {
		return nil, WrapOCRError(op, ErrInvalidConfiguration, "GOOGLE_PROCESSOR_ID or DOCUMENT_AI_PROCESSOR_ID is required")
	}
	if config.Location == "" {
		config.Location = "us" // Default location
	}

	var clientOptions []option.ClientOption

	// Regional endpoint outside the default multi-region
	if config.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)
		clientOptions = append(clientOptions, option.WithEndpoint(endpoint))
	}

	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		clientOptions = append(clientOptions, option.WithCredentialsJSON([]byte(credJSON)))
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		clientOptions = append(clientOptions, option.WithCredentialsFile(credFile))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		if len(clientOptions) == 0 || os.Getenv("GOOGLE_CREDENTIALS") == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, "failed to create Document AI client")
	}

	return &DocumentAIEngine{client: client, config: config}, nil
}

// NewDocumentAIEngineWithClient creates a Document AI engine with an explicit client (for testing).
func NewDocumentAIEngineWithClient(client *documentai.DocumentProcessorClient, config DocumentAIConfig) *DocumentAIEngine {
	return &DocumentAIEngine{client: client, config: config}
}

// Recognize submits the raster to the OCR processor.
func (d *DocumentAIEngine) Recognize(ctx context.Context, raster *models.RasterImage, opts Options) (*Result, error) {
	const op = "Recognize"
	log := logger.WithComponent("documentai")
	startTime := time.Now()

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	imgBytes, err := os.ReadFile(raster.Path)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to read raster")
	}

	name := fmt.Sprintf("projects/%s/locations/%s/processors/%s",
		d.config.ProjectID, d.config.Location, d.config.ProcessorID)

	resp, err := d.client.ProcessDocument(ctx, &documentaipb.ProcessRequest{
		Name: name,
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  imgBytes,
				MimeType: "image/png",
			},
		},
	})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, WrapOCRError(op, ErrTimeout, "Document AI call exceeded deadline")
		}
		return nil, WrapOCRError(op, ErrEngineFailed, fmt.Sprintf("Document AI call failed: %v", err))
	}

	doc := resp.GetDocument()
	if doc == nil || len(doc.Pages) == 0 {
		return nil, WrapOCRError(op, ErrEmptyResult, "response contains no pages")
	}

	result := documentAIResult(doc, raster)
	result.ProcessingDuration = time.Since(startTime)

	log.Debug().
		Int("words", len(result.Words)).
		Float64("confidence", result.Confidence).
		Dur("duration", result.ProcessingDuration).
		Msg("Document AI recognition completed")

	return result, nil
}

// documentAIResult converts the first page's tokens into reading-order words.
func documentAIResult(doc *documentaipb.Document, raster *models.RasterImage) *Result {
	page := doc.Pages[0]
	result := &Result{
		PlainText: doc.Text,
		WidthPx:   raster.WidthPx,
		HeightPx:  raster.HeightPx,
	}
	if dim := page.GetDimension(); dim != nil && dim.Width > 0 && dim.Height > 0 {
		result.WidthPx = int(dim.Width)
		result.HeightPx = int(dim.Height)
	}

	for _, token := range page.Tokens {
		layout := token.GetLayout()
		if layout == nil {
			continue
		}
		text := anchorText(doc.Text, layout.GetTextAnchor())
		if text == "" {
			continue
		}
		x0, y0, x1, y1, ok := tokenBounds(layout.GetBoundingPoly(), result.WidthPx, result.HeightPx)
		if !ok {
			continue
		}
		result.Words = append(result.Words, models.RecognizedWord{
			Text:       text,
			X0:         x0,
			Y0:         y0,
			X1:         x1,
			Y1:         y1,
			Confidence: float64(layout.GetConfidence()),
		})
	}

	result.Confidence = meanConfidence(result.Words)
	return result
}

// anchorText resolves a text anchor's segments against the document text.
func anchorText(text string, anchor *documentaipb.Document_TextAnchor) string {
	if anchor == nil {
		return ""
	}
	var out string
	for _, segment := range anchor.GetTextSegments() {
		start, end := segment.GetStartIndex(), segment.GetEndIndex()
		if start < 0 || end > int64(len(text)) || start >= end {
			continue
		}
		out += text[start:end]
	}
	return trimToken(out)
}

// trimToken removes the trailing whitespace Document AI includes in token segments.
func trimToken(s string) string {
	end := len(s)
	for end > 0 {
		c := s[end-1]
		if c != ' ' && c != '\n' && c != '\t' && c != '\r' {
			break
		}
		end--
	}
	return s[:end]
}

// tokenBounds prefers normalized vertices and scales them to pixel space.
func tokenBounds(poly *documentaipb.BoundingPoly, widthPx, heightPx int) (x0, y0, x1, y1 float64, ok bool) {
	if poly == nil {
		return 0, 0, 0, 0, false
	}
	if nv := poly.GetNormalizedVertices(); len(nv) > 0 {
		x0, y0 = float64(nv[0].X), float64(nv[0].Y)
		x1, y1 = x0, y0
		for _, v := range nv[1:] {
			x0, y0 = min(x0, float64(v.X)), min(y0, float64(v.Y))
			x1, y1 = max(x1, float64(v.X)), max(y1, float64(v.Y))
		}
		x0, x1 = x0*float64(widthPx), x1*float64(widthPx)
		y0, y1 = y0*float64(heightPx), y1*float64(heightPx)
		return x0, y0, x1, y1, x1 > x0 && y1 > y0
	}
	if vs := poly.GetVertices(); len(vs) > 0 {
		x0, y0 = float64(vs[0].X), float64(vs[0].Y)
		x1, y1 = x0, y0
		for _, v := range vs[1:] {
			x0, y0 = min(x0, float64(v.X)), min(y0, float64(v.Y))
			x1, y1 = max(x1, float64(v.X)), max(y1, float64(v.Y))
		}
		return x0, y0, x1, y1, x1 > x0 && y1 > y0
	}
	return 0, 0, 0, 0, false
}

// getEnvVar returns the first non-empty value among the given variables.
func getEnvVar(keys ...string) string {
	for _, key := range keys {
		if value := os.Getenv(key); value != "" {
			return value
		}
	}
	return ""
}

// Close closes the underlying Document AI client.
func (d *DocumentAIEngine) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}

package ocr

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"ocrpdf/internal/logger"
	"ocrpdf/pkg/models"
)

// VisionEngine implements Engine using Google Cloud Vision document text
// detection. The raster is submitted inline; word boxes come back in the
// image's own pixel coordinates, so no coordinate conversion is needed.
type VisionEngine struct {
	client *vision.ImageAnnotatorClient
}

// ISO 639-2 codes used by the CLI mapped to the BCP-47 hints Vision expects.
// Unlisted codes are passed through unchanged.
var visionLanguageHints = map[string]string{
	"eng": "en",
	"deu": "de",
	"fra": "fr",
	"spa": "es",
	"ita": "it",
	"nld": "nl",
	"por": "pt",
}

// NewVisionEngine creates a Vision-backed engine with credentials from environment.
// It expects either GOOGLE_APPLICATION_CREDENTIALS path or GOOGLE_CREDENTIALS JSON in env.
func NewVisionEngine(ctx context.Context) (*VisionEngine, error) {
	const op = "NewVisionEngine"

	var client *vision.ImageAnnotatorClient
	var err error

	// Check for inline credentials first
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_CREDENTIALS")
		}
	} else if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		client, err = vision.NewImageAnnotatorClient(ctx, option.WithCredentialsFile(credFile))
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to create client with GOOGLE_APPLICATION_CREDENTIALS")
		}
	} else {
		// Try default credentials as fallback
		client, err = vision.NewImageAnnotatorClient(ctx)
		if err != nil {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
	}

	return &VisionEngine{client: client}, nil
}

// NewVisionEngineWithClient creates a Vision engine with an explicit client (for testing).
func NewVisionEngineWithClient(client *vision.ImageAnnotatorClient) *VisionEngine {
	return &VisionEngine{client: client}
}

// Recognize submits the raster for document text detection.
func (v *VisionEngine) Recognize(ctx context.Context, raster *models.RasterImage, opts Options) (*Result, error) {
	const op = "Recognize"
	log := logger.WithComponent("vision")
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

	var hints []string
	for _, lang := range opts.Languages {
		if mapped, ok := visionLanguageHints[lang]; ok {
			hints = append(hints, mapped)
		} else {
			hints = append(hints, lang)
		}
	}

	resp, err := v.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: imgBytes},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
				ImageContext: &visionpb.ImageContext{LanguageHints: hints},
			},
		},
	})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, WrapOCRError(op, ErrTimeout, "Vision API call exceeded deadline")
		}
		return nil, WrapOCRError(op, ErrEngineFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}

	if len(resp.Responses) == 0 {
		return nil, WrapOCRError(op, ErrEmptyResult, "no response from Vision API")
	}
	annotation := resp.Responses[0]
	if annotation.Error != nil {
		return nil, WrapOCRError(op, ErrEngineFailed, fmt.Sprintf("Vision API error: %s", annotation.Error.Message))
	}

	result := visionResult(annotation, raster)
	result.ProcessingDuration = time.Since(startTime)

	log.Debug().
		Int("words", len(result.Words)).
		Float64("confidence", result.Confidence).
		Dur("duration", result.ProcessingDuration).
		Msg("Vision recognition completed")

	return result, nil
}

// visionResult flattens the block/paragraph/word hierarchy into reading-order
// words with axis-aligned bounding boxes.
func visionResult(annotation *visionpb.AnnotateImageResponse, raster *models.RasterImage) *Result {
	result := &Result{WidthPx: raster.WidthPx, HeightPx: raster.HeightPx}

	fullText := annotation.FullTextAnnotation
	if fullText == nil {
		return result
	}
	result.PlainText = fullText.Text

	for _, page := range fullText.Pages {
		if page.Width > 0 {
			result.WidthPx = int(page.Width)
		}
		if page.Height > 0 {
			result.HeightPx = int(page.Height)
		}
		for _, block := range page.Blocks {
			for _, paragraph := range block.Paragraphs {
				for _, word := range paragraph.Words {
					text := symbolsText(word)
					if text == "" {
						continue
					}
					x0, y0, x1, y1, ok := boundsOf(word.BoundingBox)
					if !ok {
						continue
					}
					result.Words = append(result.Words, models.RecognizedWord{
						Text:       text,
						X0:         x0,
						Y0:         y0,
						X1:         x1,
						Y1:         y1,
						Confidence: float64(word.Confidence),
					})
				}
			}
		}
	}

	result.Confidence = meanConfidence(result.Words)
	return result
}

func symbolsText(word *visionpb.Word) string {
	var b strings.Builder
	for _, symbol := range word.Symbols {
		b.WriteString(symbol.Text)
	}
	return b.String()
}

// boundsOf converts a (possibly rotated) bounding polygon into the enclosing
// axis-aligned box.
func boundsOf(poly *visionpb.BoundingPoly) (x0, y0, x1, y1 float64, ok bool) {
	if poly == nil || len(poly.Vertices) == 0 {
		return 0, 0, 0, 0, false
	}
	x0, y0 = float64(poly.Vertices[0].X), float64(poly.Vertices[0].Y)
	x1, y1 = x0, y0
	for _, v := range poly.Vertices[1:] {
		x, y := float64(v.X), float64(v.Y)
		if x < x0 {
			x0 = x
		}
		if y < y0 {
			y0 = y
		}
		if x > x1 {
			x1 = x
		}
		if y > y1 {
			y1 = y
		}
	}
	return x0, y0, x1, y1, x1 > x0 && y1 > y0
}

// Close closes the underlying Vision client.
func (v *VisionEngine) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}

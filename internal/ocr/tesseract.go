package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"ocrpdf/internal/hocr"
	"ocrpdf/internal/logger"
	"ocrpdf/internal/runner"
	"ocrpdf/pkg/models"
)

const (
	// DefaultTesseractTimeout bounds one page recognition.
	DefaultTesseractTimeout = 180 * time.Second
)

// Tesseract 3.03 inserts the source filename into the hOCR title attribute
// without escaping it, which can break the XML. Replace it with a space.
var hocrFilenameRe = regexp.MustCompile(`title='image "([^"]*)";`)

// TesseractEngine implements Engine by invoking the tesseract CLI with hOCR
// output. Each invocation works in its own temp directory which is removed
// on every exit path.
type TesseractEngine struct {
	path string
	run  runner.Runner
}

// NewTesseractEngine creates a Tesseract-backed engine. path may be a bare
// executable name resolved through PATH.
func NewTesseractEngine(path string, run runner.Runner) *TesseractEngine {
	return &TesseractEngine{path: path, run: run}
}

// Recognize rasters one page with tesseract and parses the hOCR output.
func (t *TesseractEngine) Recognize(ctx context.Context, raster *models.RasterImage, opts Options) (*Result, error) {
	const op = "Recognize"
	log := logger.WithComponent("tesseract")
	startTime := time.Now()

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTesseractTimeout
	}
	langs := opts.Languages
	if len(langs) == 0 {
		langs = []string{"eng"}
	}

	workDir, err := os.MkdirTemp("", "ocrpdf-tess-")
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to create temp directory")
	}
	defer os.RemoveAll(workDir)

	outBase := filepath.Join(workDir, "out")
	args := []string{
		"-l", strings.Join(langs, "+"),
		raster.Path,
		outBase,
		"hocr",
	}

	if _, err := t.run.Run(ctx, runner.Command{
		Path:    t.path,
		Args:    args,
		Timeout: timeout,
	}); err != nil {
		if errors.Is(err, runner.ErrTimeout) {
			return nil, WrapOCRError(op, ErrTimeout, fmt.Sprintf("after %v", timeout))
		}
		if errors.Is(err, context.Canceled) {
			return nil, WrapOCRError(op, ErrContextCanceled, "")
		}
		return nil, WrapOCRError(op, ErrEngineFailed, err.Error())
	}

	hocrData, err := readHOCROutput(outBase)
	if err != nil {
		return nil, WrapOCRError(op, err, outBase)
	}
	hocrData = hocrFilenameRe.ReplaceAll(hocrData, []byte(`title='image " ";`))

	pages, err := hocr.Parse(hocrData)
	if err != nil {
		return nil, WrapOCRError(op, ErrEmptyResult, err.Error())
	}
	page := pages[0]

	result := &Result{
		Words:              page.Words,
		PlainText:          joinWords(page.Words),
		WidthPx:            page.WidthPx,
		HeightPx:           page.HeightPx,
		Confidence:         meanConfidence(page.Words),
		ProcessingDuration: time.Since(startTime),
	}

	log.Debug().
		Int("words", len(result.Words)).
		Float64("confidence", result.Confidence).
		Dur("duration", result.ProcessingDuration).
		Msg("Tesseract recognition completed")

	return result, nil
}

// ListLanguages returns the language codes the installed tesseract carries
// trained data for. Used to reject unsupported language hints up front.
func (t *TesseractEngine) ListLanguages(ctx context.Context) ([]string, error) {
	const op = "ListLanguages"

	out, err := t.run.Run(ctx, runner.Command{
		Path:    t.path,
		Args:    []string{"--list-langs"},
		Timeout: 10 * time.Second,
	})
	if err != nil {
		return nil, WrapOCRError(op, ErrEngineFailed, err.Error())
	}

	var langs []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		// First line is a "List of available languages" banner.
		if line == "" || strings.Contains(line, " ") {
			continue
		}
		langs = append(langs, line)
	}
	return langs, nil
}

// CheckLanguages verifies every requested language is installed.
func (t *TesseractEngine) CheckLanguages(ctx context.Context, requested []string) error {
	const op = "CheckLanguages"

	available, err := t.ListLanguages(ctx)
	if err != nil {
		return err
	}
	installed := make(map[string]bool, len(available))
	for _, lang := range available {
		installed[lang] = true
	}
	for _, lang := range requested {
		if !installed[lang] {
			return WrapOCRError(op, ErrUnsupportedLanguage, lang)
		}
	}
	return nil
}

// readHOCROutput finds the hOCR file tesseract wrote. Depending on the
// version the suffix is .hocr (3.03+) or .html (3.02).
func readHOCROutput(outBase string) ([]byte, error) {
	for _, suffix := range []string{".hocr", ".html"} {
		data, err := os.ReadFile(outBase + suffix)
		if err == nil {
			return data, nil
		}
		if !os.IsNotExist(err) {
			return nil, err
		}
	}
	return nil, ErrEmptyResult
}

func joinWords(words []models.RecognizedWord) string {
	parts := make([]string, len(words))
	for i, w := range words {
		parts[i] = w.Text
	}
	return strings.Join(parts, " ")
}

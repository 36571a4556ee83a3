// Package pipeline sequences the OCR stages per page and across the
// document, and owns the run workspace.
//
// Page-level stages (extract, preprocess, recognize, composite) fan out over
// a bounded worker pool; each worker owns its page's raster and text layer
// exclusively and deposits its composited page into an indexed slot, so the
// assembled document always keeps the input page order no matter how the
// workers interleave. Finalizing and validating are document-level and run
// after all page workers have joined.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"ocrpdf/internal/compose"
	"ocrpdf/internal/logger"
	"ocrpdf/internal/ocr"
	"ocrpdf/internal/pageinfo"
	"ocrpdf/internal/pdfa"
	"ocrpdf/internal/preprocess"
	"ocrpdf/internal/rasterize"
	"ocrpdf/internal/validate"
	"ocrpdf/pkg/models"
)

// Stage identifies a position in the per-document state machine.
type Stage string

const (
	StageExtracting    Stage = "extracting"
	StagePreprocessing Stage = "preprocessing"
	StageRecognizing   Stage = "recognizing"
	StageCompositing   Stage = "compositing"
	StageFinalizing    Stage = "finalizing"
	StageValidating    Stage = "validating"
	StageDone          Stage = "done"
	StageFailed        Stage = "failed"
)

// FailurePolicy decides what a page-level failure does to the document.
type FailurePolicy int

const (
	// AbortDocument stops the whole run on the first page failure. Default,
	// since it guarantees every output page carries its OCR layer.
	AbortDocument FailurePolicy = iota

	// SkipPage keeps the failed page in the output without a text layer and
	// reports it. Page ordering is preserved.
	SkipPage
)

// Options configures one pipeline run.
type Options struct {
	InputPath  string
	OutputPath string

	Languages     []string
	Deskew        bool
	Clean         bool
	CleanFinal    bool
	DedupOverlaps bool

	Jobs       int
	Policy     FailurePolicy
	OCRTimeout time.Duration

	SkipValidation   bool
	StrictValidation bool

	Title        string
	PageLanguage string // RFC 3066 tag written to the output catalog
	Producer     string

	DebugDir string // Non-empty persists per-page intermediate artifacts
	KeepTemp bool
}

// PageComposer renders one page's image and text layer into a PDF.
// Satisfied by compose.Compositor.
type PageComposer interface {
	ComposePage(sourcePDF string, page *models.Page, raster *models.RasterImage,
		words []models.RecognizedWord, opts compose.Options) ([]byte, *models.TextLayer, error)
}

// Dependencies are the stage implementations. Each field accepts a test
// double; production wiring lives in the CLI.
type Dependencies struct {
	Inspector    pageinfo.Inspector
	Extractor    rasterize.Extractor
	Preprocessor preprocess.Preprocessor
	Engine       ocr.Engine
	Compositor   PageComposer
	Finalizer    pdfa.Finalizer
	Validator    validate.Gateway
}

// PageFailure records a page skipped under the SkipPage policy.
type PageFailure struct {
	Page  int
	Stage Stage
	Err   error
}

// Result summarizes a completed run.
type Result struct {
	OutputPath string
	PageCount  int
	WordCount  int
	Skipped    []PageFailure
	Report     *models.ValidationReport // nil when validation was skipped
	Duration   time.Duration
}

// Pipeline drives a document through all stages.
type Pipeline struct {
	deps Dependencies
	opts Options
}

// New creates a Pipeline.
func New(deps Dependencies, opts Options) *Pipeline {
	return &Pipeline{deps: deps, opts: opts}
}

// pageOutcome is the per-page slot filled by a worker.
type pageOutcome struct {
	pdfPath string
	words   int
	failure *PageFailure
}

// Run executes the pipeline. The returned Result is non-nil whenever an
// output artifact was produced, including the strict-validation failure case.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	log := logger.WithComponent("pipeline")
	startTime := time.Now()

	setState := func(s Stage) {
		log.Info().Str("state", string(s)).Msg("Pipeline state changed")
	}
	setState(StageExtracting)
	fail := func(err error) (*Result, error) {
		setState(StageFailed)
		return nil, err
	}

	pages, err := p.deps.Inspector.Inspect(ctx, p.opts.InputPath)
	if err != nil {
		return fail(&PipelineError{Stage: StageExtracting, Err: err})
	}

	doc := &models.Document{
		SourcePath:       p.opts.InputPath,
		TargetPath:       p.opts.OutputPath,
		Languages:        p.opts.Languages,
		Deskew:           p.opts.Deskew,
		Clean:            p.opts.Clean,
		CleanFinal:       p.opts.CleanFinal,
		DedupOverlaps:    p.opts.DedupOverlaps,
		Debug:            p.opts.DebugDir != "",
		StrictValidation: p.opts.StrictValidation,
		Pages:            pages,
		CreatedAt:        startTime,
	}
	log.Info().Int("pages", len(doc.Pages)).Str("input", doc.SourcePath).Msg("Starting OCR run")

	workDir, err := os.MkdirTemp("", "ocrpdf-run-")
	if err != nil {
		return fail(&PipelineError{Stage: StageExtracting, Err: ErrWorkspace})
	}
	if !p.opts.KeepTemp {
		defer os.RemoveAll(workDir)
	} else {
		defer log.Info().Str("dir", workDir).Msg("Keeping temporary files")
	}

	if p.opts.DebugDir != "" {
		if err := os.MkdirAll(p.opts.DebugDir, 0755); err != nil {
			return fail(&PipelineError{Stage: StageExtracting, Err: err})
		}
	}

	// Page-level fan-out. Results land in indexed slots; the join below is
	// the barrier before the document-level stages.
	slots := make([]pageOutcome, len(doc.Pages))
	jobs := p.opts.Jobs
	if jobs < 1 {
		jobs = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(jobs)
	for i, page := range doc.Pages {
		i, page := i, page
		g.Go(func() error {
			outcome, err := p.processPage(gctx, doc, page, workDir)
			if err != nil {
				if p.opts.Policy == SkipPage && !isDocumentFatal(err) {
					pf := toPageFailure(page.Index, err)
					pageLog := logger.WithPage("pipeline", page.Index)
					pageLog.Warn().
						Err(pf.Err).
						Str("stage", string(pf.Stage)).
						Msg("Page failed; continuing without its text layer")
					fallback, ferr := p.composeFallbackPage(gctx, doc, page, workDir)
					if ferr != nil {
						return ferr
					}
					fallback.failure = &pf
					slots[i] = *fallback
					return nil
				}
				return err
			}
			slots[i] = *outcome
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fail(err)
	}

	// Document-level stages, input order restored from the slots.
	setState(StageFinalizing)
	pagePaths := make([]string, len(slots))
	var skipped []PageFailure
	var wordCount int
	for i, slot := range slots {
		pagePaths[i] = slot.pdfPath
		wordCount += slot.words
		if slot.failure != nil {
			skipped = append(skipped, *slot.failure)
		}
	}

	meta := pdfa.Metadata{
		Title:    p.opts.Title,
		Language: p.opts.PageLanguage,
		Producer: p.opts.Producer,
	}
	if err := p.deps.Finalizer.Assemble(ctx, pagePaths, doc.TargetPath, meta); err != nil {
		return fail(&PipelineError{Stage: StageFinalizing, Err: err})
	}

	result := &Result{
		OutputPath: doc.TargetPath,
		PageCount:  len(doc.Pages),
		WordCount:  wordCount,
		Skipped:    skipped,
	}

	if !p.opts.SkipValidation {
		setState(StageValidating)
		report, err := p.deps.Validator.Validate(ctx, doc.TargetPath)
		if err != nil {
			return fail(&PipelineError{Stage: StageValidating, Err: err})
		}
		result.Report = report
		if p.opts.StrictValidation && !report.Conformant {
			setState(StageFailed)
			result.Duration = time.Since(startTime)
			return result, &PipelineError{Stage: StageValidating, Err: ErrValidationFailed}
		}
	}

	setState(StageDone)
	result.Duration = time.Since(startTime)
	log.Info().
		Int("pages", result.PageCount).
		Int("words", result.WordCount).
		Int("skipped", len(result.Skipped)).
		Dur("duration", result.Duration).
		Msg("OCR run completed")

	return result, nil
}

// processPage runs the four page-level stages for one page. Cancellation is
// observed between stages so an aborted run releases its workers promptly.
func (p *Pipeline) processPage(ctx context.Context, doc *models.Document, page *models.Page, workDir string) (*pageOutcome, error) {
	log := logger.WithPage("pipeline", page.Index)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raster, err := p.deps.Extractor.Extract(ctx, doc.SourcePath, page, workDir)
	if err != nil {
		return nil, &PipelineError{Stage: StageExtracting, Page: page.Index, Err: err}
	}
	p.debugCopy(page.Index, "raster", raster.Path)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	processed, err := p.deps.Preprocessor.Process(ctx, raster, preprocess.Options{
		Deskew: doc.Deskew,
		Clean:  doc.Clean,
	}, workDir)
	if err != nil {
		return nil, &PipelineError{Stage: StagePreprocessing, Page: page.Index, Err: err}
	}
	if processed != raster {
		p.debugCopy(page.Index, "preprocessed", processed.Path)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	recognized, err := p.deps.Engine.Recognize(ctx, processed, ocr.Options{
		Languages: doc.Languages,
		Timeout:   p.opts.OCRTimeout,
	})
	if err != nil {
		return nil, &PipelineError{Stage: StageRecognizing, Page: page.Index, Err: err}
	}
	log.Debug().Int("words", len(recognized.Words)).Msg("Recognized page")

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pageBytes, layer, err := p.deps.Compositor.ComposePage(
		doc.SourcePath, page, processed, recognized.Words, compose.Options{
			ImportOriginal: !rebuildFromRaster(doc),
			DedupOverlaps:  doc.DedupOverlaps,
			Font:           compose.DefaultFont,
		})
	if err != nil {
		return nil, &PipelineError{Stage: StageCompositing, Page: page.Index, Err: err}
	}

	pagePath := filepath.Join(workDir, fmt.Sprintf("%06d.composited.pdf", page.Index))
	if err := os.WriteFile(pagePath, pageBytes, 0644); err != nil {
		return nil, &PipelineError{Stage: StageCompositing, Page: page.Index, Err: err}
	}
	p.debugWords(page.Index, layer)

	return &pageOutcome{pdfPath: pagePath, words: len(layer.Runs)}, nil
}

// rebuildFromRaster decides whether the output page embeds the processed
// raster instead of the untouched original page. Deskew must rebuild
// (coordinates are valid for the rotated image only); clean rebuilds only
// when the caller asked to keep the cleaned image.
func rebuildFromRaster(doc *models.Document) bool {
	return doc.Deskew || (doc.Clean && doc.CleanFinal)
}

// composeFallbackPage emits a page with no text layer under the SkipPage
// policy, preserving page order and appearance.
func (p *Pipeline) composeFallbackPage(ctx context.Context, doc *models.Document, page *models.Page, workDir string) (*pageOutcome, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// Synthetic raster: only the DPI is consulted when there are no words.
	stub := &models.RasterImage{DPI: page.DPI, WidthPx: page.WidthPx, HeightPx: page.HeightPx, Format: "png"}
	pageBytes, _, err := p.deps.Compositor.ComposePage(
		doc.SourcePath, page, stub, nil, compose.Options{
			ImportOriginal: true,
			Font:           compose.DefaultFont,
		})
	if err != nil {
		return nil, &PipelineError{Stage: StageCompositing, Page: page.Index, Err: err}
	}
	pagePath := filepath.Join(workDir, fmt.Sprintf("%06d.composited.pdf", page.Index))
	if err := os.WriteFile(pagePath, pageBytes, 0644); err != nil {
		return nil, &PipelineError{Stage: StageCompositing, Page: page.Index, Err: err}
	}
	return &pageOutcome{pdfPath: pagePath}, nil
}

// debugCopy persists a stage artifact into the debug directory.
func (p *Pipeline) debugCopy(page int, stage, srcPath string) {
	if p.opts.DebugDir == "" {
		return
	}
	dst := filepath.Join(p.opts.DebugDir, fmt.Sprintf("%06d.%s%s", page, stage, filepath.Ext(srcPath)))
	if err := copyFile(srcPath, dst); err != nil {
		pageLog := logger.WithPage("pipeline", page)
		pageLog.Warn().Err(err).Str("stage", stage).Msg("Failed to persist debug artifact")
	}
}

// debugWords persists the mapped text layer as JSON.
func (p *Pipeline) debugWords(page int, layer *models.TextLayer) {
	if p.opts.DebugDir == "" {
		return
	}
	data, err := json.MarshalIndent(layer, "", "  ")
	if err != nil {
		return
	}
	dst := filepath.Join(p.opts.DebugDir, fmt.Sprintf("%06d.textlayer.json", page))
	if err := os.WriteFile(dst, data, 0644); err != nil {
		pageLog := logger.WithPage("pipeline", page)
		pageLog.Warn().Err(err).Msg("Failed to persist text layer")
	}
}

// isDocumentFatal reports whether an error must abort the run even under the
// SkipPage policy. Cancellation is never a page problem.
func isDocumentFatal(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func toPageFailure(page int, err error) PageFailure {
	var perr *PipelineError
	if errors.As(err, &perr) {
		return PageFailure{Page: page, Stage: perr.Stage, Err: perr.Err}
	}
	return PageFailure{Page: page, Stage: StageFailed, Err: err}
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

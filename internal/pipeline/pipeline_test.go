package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocrpdf/internal/compose"
	"ocrpdf/internal/ocr"
	"ocrpdf/internal/pdfa"
	"ocrpdf/internal/preprocess"
	"ocrpdf/pkg/models"
)

// Fakes for every stage. The engine fake can delay or fail individual pages
// to exercise ordering and failure policy.

type fakeInspector struct {
	pages int
}

func (f *fakeInspector) Inspect(_ context.Context, _ string) ([]*models.Page, error) {
	pages := make([]*models.Page, f.pages)
	for i := range pages {
		pages[i] = &models.Page{
			Index: i + 1, WidthPt: 612, HeightPt: 792,
			WidthPx: 1275, HeightPx: 1650, DPI: 150,
		}
	}
	return pages, nil
}

type fakeExtractor struct{}

func (fakeExtractor) Extract(_ context.Context, _ string, page *models.Page, destDir string) (*models.RasterImage, error) {
	return &models.RasterImage{
		Path:    filepath.Join(destDir, fmt.Sprintf("%06d.page.png", page.Index)),
		Format:  "png",
		WidthPx: page.WidthPx, HeightPx: page.HeightPx,
		DPI: page.DPI, Mode: models.ColorModeGray,
	}, nil
}

type fakePreprocessor struct{}

func (fakePreprocessor) Process(_ context.Context, raster *models.RasterImage, _ preprocess.Options, _ string) (*models.RasterImage, error) {
	return raster, nil
}

type fakeEngine struct {
	delays map[int]time.Duration // page index -> artificial latency
	fail   map[int]error         // page index -> error to return
}

func (f *fakeEngine) Recognize(ctx context.Context, raster *models.RasterImage, _ ocr.Options) (*ocr.Result, error) {
	page := pageFromPath(raster.Path)
	if d, ok := f.delays[page]; ok {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err, ok := f.fail[page]; ok {
		return nil, err
	}
	return &ocr.Result{
		Words: []models.RecognizedWord{
			{Text: fmt.Sprintf("page-%d", page), X0: 100, Y0: 100, X1: 400, Y1: 150, Confidence: 0.9},
		},
	}, nil
}

func pageFromPath(path string) int {
	var page int
	fmt.Sscanf(filepath.Base(path), "%06d.page.png", &page)
	return page
}

// fakeComposer emits a recognizable marker per page instead of real PDF bytes.
type fakeComposer struct{}

func (fakeComposer) ComposePage(_ string, page *models.Page, _ *models.RasterImage,
	words []models.RecognizedWord, _ compose.Options) ([]byte, *models.TextLayer, error) {
	layer := &models.TextLayer{PageIndex: page.Index}
	for _, w := range words {
		layer.Runs = append(layer.Runs, models.GlyphRun{Text: w.Text})
	}
	return []byte(fmt.Sprintf("page %d: %d words", page.Index, len(words))), layer, nil
}

// fakeFinalizer records the page files it was handed, in order, along with
// their contents (the workspace is gone by the time Run returns).
type fakeFinalizer struct {
	mu           sync.Mutex
	pagePaths    []string
	pageContents []string
}

func (f *fakeFinalizer) Assemble(_ context.Context, pagePaths []string, _ string, _ pdfa.Metadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pagePaths = append([]string(nil), pagePaths...)
	f.pageContents = nil
	for _, path := range pagePaths {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		f.pageContents = append(f.pageContents, string(data))
	}
	return nil
}

type fakeValidator struct {
	report *models.ValidationReport
}

func (f *fakeValidator) Validate(_ context.Context, _ string) (*models.ValidationReport, error) {
	if f.report != nil {
		return f.report, nil
	}
	return &models.ValidationReport{Conformant: true, WellFormed: true, Profile: "ISO PDF/A-1, Level B"}, nil
}

func testDeps(pages int, engine *fakeEngine, fin *fakeFinalizer, val *fakeValidator) Dependencies {
	if engine == nil {
		engine = &fakeEngine{}
	}
	if val == nil {
		val = &fakeValidator{}
	}
	return Dependencies{
		Inspector:    &fakeInspector{pages: pages},
		Extractor:    fakeExtractor{},
		Preprocessor: fakePreprocessor{},
		Engine:       engine,
		Compositor:   fakeComposer{},
		Finalizer:    fin,
		Validator:    val,
	}
}

func testOptions(t *testing.T) Options {
	return Options{
		InputPath:  "input.pdf",
		OutputPath: filepath.Join(t.TempDir(), "output.pdf"),
		Languages:  []string{"eng"},
		Jobs:       4,
		OCRTimeout: time.Minute,
	}
}

func TestRunPreservesPageOrder(t *testing.T) {
	// Later pages finish first; the assembled order must still be 1..N.
	engine := &fakeEngine{delays: map[int]time.Duration{
		1: 60 * time.Millisecond,
		2: 40 * time.Millisecond,
		3: 20 * time.Millisecond,
		4: 0,
	}}
	fin := &fakeFinalizer{}

	p := New(testDeps(4, engine, fin, nil), testOptions(t))
	result, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, result.PageCount)
	assert.Equal(t, 4, result.WordCount)
	assert.Empty(t, result.Skipped)

	require.Len(t, fin.pagePaths, 4)
	for i, path := range fin.pagePaths {
		assert.Equal(t, fmt.Sprintf("%06d.composited.pdf", i+1), filepath.Base(path))
	}
}

func TestRunSequentialMatchesParallel(t *testing.T) {
	fin := &fakeFinalizer{}
	opts := testOptions(t)
	opts.Jobs = 1

	result, err := New(testDeps(3, nil, fin, nil), opts).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.PageCount)
	require.Len(t, fin.pagePaths, 3)
}

func TestRunTwiceProducesEqualDocuments(t *testing.T) {
	opts := testOptions(t)

	run := func() (*Result, []string) {
		fin := &fakeFinalizer{}
		result, err := New(testDeps(3, nil, fin, nil), opts).Run(context.Background())
		require.NoError(t, err)
		return result, fin.pageContents
	}

	first, firstPages := run()
	second, secondPages := run()

	assert.Equal(t, first.PageCount, second.PageCount)
	assert.Equal(t, first.WordCount, second.WordCount)
	assert.Equal(t, firstPages, secondPages)
}

func TestRunAbortsOnPageFailure(t *testing.T) {
	engine := &fakeEngine{fail: map[int]error{2: ocr.WrapOCRError("Recognize", ocr.ErrTimeout, "after 1m")}}

	p := New(testDeps(5, engine, &fakeFinalizer{}, nil), testOptions(t))
	_, err := p.Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ocr.ErrTimeout)

	var perr *PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, StageRecognizing, perr.Stage)
	assert.Equal(t, 2, perr.Page)
}

func TestRunSkipPolicyKeepsFailedPages(t *testing.T) {
	engine := &fakeEngine{fail: map[int]error{2: ocr.WrapOCRError("Recognize", ocr.ErrTimeout, "")}}
	fin := &fakeFinalizer{}
	opts := testOptions(t)
	opts.Policy = SkipPage

	result, err := New(testDeps(3, engine, fin, nil), opts).Run(context.Background())
	require.NoError(t, err)

	// The failed page stays in the document, without words.
	assert.Equal(t, 3, result.PageCount)
	assert.Equal(t, 2, result.WordCount)
	require.Len(t, fin.pagePaths, 3)

	require.Len(t, result.Skipped, 1)
	failure := result.Skipped[0]
	assert.Equal(t, 2, failure.Page)
	assert.Equal(t, StageRecognizing, failure.Stage)
	assert.ErrorIs(t, failure.Err, ocr.ErrTimeout)
}

func TestRunStrictValidation(t *testing.T) {
	val := &fakeValidator{report: &models.ValidationReport{
		Conformant: false,
		WellFormed: true,
		Diagnostics: []models.Diagnostic{
			{Code: "ErrorMessage", Message: "Improperly formed date"},
		},
	}}

	opts := testOptions(t)
	opts.StrictValidation = true

	result, err := New(testDeps(1, nil, &fakeFinalizer{}, val), opts).Run(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidationFailed)

	// The output exists and the report is returned even though the run failed.
	require.NotNil(t, result)
	require.NotNil(t, result.Report)
	assert.False(t, result.Report.Conformant)
}

func TestRunNonStrictReportsAndSucceeds(t *testing.T) {
	val := &fakeValidator{report: &models.ValidationReport{Conformant: false, WellFormed: true}}

	result, err := New(testDeps(1, nil, &fakeFinalizer{}, val), testOptions(t)).Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, result.Report)
	assert.False(t, result.Report.Conformant)
}

func TestRunSkipValidation(t *testing.T) {
	opts := testOptions(t)
	opts.SkipValidation = true

	result, err := New(testDeps(1, nil, &fakeFinalizer{}, nil), opts).Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, result.Report)
}

func TestRunCancellation(t *testing.T) {
	engine := &fakeEngine{delays: map[int]time.Duration{
		1: 5 * time.Second, 2: 5 * time.Second, 3: 5 * time.Second,
	}}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := New(testDeps(3, engine, &fakeFinalizer{}, nil), testOptions(t)).Run(ctx)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRunCancellationAbortsEvenWithSkipPolicy(t *testing.T) {
	engine := &fakeEngine{delays: map[int]time.Duration{1: 5 * time.Second}}
	opts := testOptions(t)
	opts.Policy = SkipPage

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := New(testDeps(1, engine, &fakeFinalizer{}, nil), opts).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

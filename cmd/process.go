package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ocrpdf/internal/compose"
	"ocrpdf/internal/config"
	"ocrpdf/internal/logger"
	"ocrpdf/internal/ocr"
	"ocrpdf/internal/pageinfo"
	"ocrpdf/internal/pdfa"
	"ocrpdf/internal/pipeline"
	"ocrpdf/internal/preprocess"
	"ocrpdf/internal/rasterize"
	"ocrpdf/internal/runner"
	"ocrpdf/internal/validate"
	"ocrpdf/pkg/models"
)

var processCmd = &cobra.Command{
	Use:   "process [input-pdf] [output-pdf]",
	Short: "OCR a scanned PDF into a searchable PDF/A",
	Long: `Process a scanned PDF page by page: rasterize, optionally deskew and
clean, recognize text, and assemble a PDF/A-2b output whose pages look like
the input but carry an invisible text layer aligned with the page image.

The output is validated with JHOVE when available; the validation report is
printed either way. With --strict-validation a non-conformant output makes
the command fail (the file is still written).

Pages without a raster image cannot be processed; a page that fails OCR
aborts the run unless --skip-failures keeps it in the output without a text
layer.`,
	Example: `  # OCR an English scan
  ocrpdf process scan.pdf searchable.pdf

  # German and English, straighten pages, 4 pages in parallel
  ocrpdf process scan.pdf out.pdf -l deu -l eng --deskew --jobs 4

  # Clean scanner artifacts for OCR only (output keeps the original image)
  ocrpdf process scan.pdf out.pdf --clean

  # Use Google Cloud Vision instead of local Tesseract
  ocrpdf process scan.pdf out.pdf --engine vision`,
	Args: cobra.ExactArgs(2),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringSliceP("language", "l", nil, "OCR language(s), ISO 639-2 (default: eng, or OCR_LANGUAGE)")
	processCmd.Flags().Bool("deskew", false, "Straighten skewed pages before OCR (requires unpaper)")
	processCmd.Flags().Bool("clean", false, "Despeckle pages before OCR (requires unpaper)")
	processCmd.Flags().Bool("clean-final", false, "Keep the cleaned image in the output (with --clean)")
	processCmd.Flags().Int("jobs", 0, "Pages processed in parallel (default: number of CPUs)")
	processCmd.Flags().String("engine", "", "OCR engine: tesseract, vision or documentai")
	processCmd.Flags().Bool("skip-failures", false, "Keep pages that fail OCR, without a text layer")
	processCmd.Flags().Bool("strict-validation", false, "Fail when the output does not validate as PDF/A")
	processCmd.Flags().Bool("no-validation", false, "Skip PDF/A validation")
	processCmd.Flags().Bool("dedup-overlaps", false, "Drop words whose boxes almost fully overlap earlier words")
	processCmd.Flags().Duration("ocr-timeout", 0, "Per-page OCR timeout (default: 180s)")
	processCmd.Flags().String("debug-dir", "", "Persist per-page rasters and text layers into this directory")
	processCmd.Flags().Bool("keep-temp", false, "Keep the temporary working directory")
	processCmd.Flags().String("title", "", "Document title written to the output metadata")
	processCmd.Flags().String("page-language", "", "RFC 3066 language tag for the output catalog (e.g. en-US)")
}

func runProcess(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("process")

	inputPath, outputPath := args[0], args[1]

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := mergeProcessFlags(cmd, cfg); err != nil {
		return err
	}

	deskew, _ := cmd.Flags().GetBool("deskew")
	clean, _ := cmd.Flags().GetBool("clean")
	cleanFinal, _ := cmd.Flags().GetBool("clean-final")
	skipFailures, _ := cmd.Flags().GetBool("skip-failures")
	strictValidation, _ := cmd.Flags().GetBool("strict-validation")
	noValidation, _ := cmd.Flags().GetBool("no-validation")
	dedupOverlaps, _ := cmd.Flags().GetBool("dedup-overlaps")
	debugDir, _ := cmd.Flags().GetString("debug-dir")
	keepTemp, _ := cmd.Flags().GetBool("keep-temp")
	title, _ := cmd.Flags().GetString("title")
	pageLanguage, _ := cmd.Flags().GetString("page-language")

	if cleanFinal && !clean {
		return fmt.Errorf("--clean-final requires --clean")
	}

	if err := checkInputFile(inputPath, log); err != nil {
		return &runError{err}
	}

	log.Info().
		Str("input", inputPath).
		Str("output", outputPath).
		Str("engine", cfg.Engine).
		Strs("languages", cfg.Languages).
		Int("jobs", cfg.Jobs).
		Bool("deskew", deskew).
		Bool("clean", clean).
		Msg("Starting processing")

	ctx, cancel := signalContext(log)
	defer cancel()

	run := runner.New()

	engine, closeEngine, err := buildEngine(ctx, cfg, run, log)
	if err != nil {
		return &runError{err}
	}
	defer closeEngine()

	deps := pipeline.Dependencies{
		Inspector: pageinfo.New(pageinfo.Config{
			PdfInfoPath:   cfg.PdfInfoPath,
			PdfImagesPath: cfg.PdfImagesPath,
		}, run),
		Extractor: rasterize.New(rasterize.Config{
			GhostscriptPath: cfg.GhostscriptPath,
			Timeout:         cfg.ToolTimeout,
		}, run),
		Preprocessor: preprocess.New(preprocess.Config{
			UnpaperPath: cfg.UnpaperPath,
			Timeout:     cfg.ToolTimeout,
		}, run),
		Engine:     engine,
		Compositor: compose.New(),
		Finalizer: pdfa.New(pdfa.Config{
			GhostscriptPath: cfg.GhostscriptPath,
			SRGBProfilePath: cfg.SRGBProfilePath,
			Timeout:         cfg.ToolTimeout,
		}, run),
		Validator: validate.New(validate.Config{
			JhovePath:  cfg.JhovePath,
			ConfigPath: cfg.JhoveConfigPath,
			Timeout:    cfg.ToolTimeout,
		}, run),
	}

	policy := pipeline.AbortDocument
	if skipFailures {
		policy = pipeline.SkipPage
	}

	p := pipeline.New(deps, pipeline.Options{
		InputPath:        inputPath,
		OutputPath:       outputPath,
		Languages:        cfg.Languages,
		Deskew:           deskew,
		Clean:            clean,
		CleanFinal:       cleanFinal,
		DedupOverlaps:    dedupOverlaps,
		Jobs:             cfg.Jobs,
		Policy:           policy,
		OCRTimeout:       cfg.OCRTimeout,
		SkipValidation:   noValidation,
		StrictValidation: strictValidation,
		Title:            title,
		PageLanguage:     pageLanguage,
		Producer:         "ocrpdf " + version,
		DebugDir:         debugDir,
		KeepTemp:         keepTemp,
	})

	result, err := p.Run(ctx)
	if result != nil {
		printRunSummary(result)
	}
	if err != nil {
		return &runError{err}
	}
	return nil
}

// mergeProcessFlags folds CLI flags into the environment-derived config and
// re-validates the combination.
func mergeProcessFlags(cmd *cobra.Command, cfg *config.Config) error {
	if langs, _ := cmd.Flags().GetStringSlice("language"); len(langs) > 0 {
		cfg.Languages = splitLanguages(langs)
	}
	if engine, _ := cmd.Flags().GetString("engine"); engine != "" {
		cfg.Engine = engine
	}
	if jobs, _ := cmd.Flags().GetInt("jobs"); jobs > 0 {
		cfg.Jobs = jobs
	}
	if timeout, _ := cmd.Flags().GetDuration("ocr-timeout"); timeout > 0 {
		cfg.OCRTimeout = timeout
	}
	return cfg.Validate()
}

// splitLanguages accepts both repeated flags and the "eng+deu" form.
func splitLanguages(langs []string) []string {
	var out []string
	for _, lang := range langs {
		for _, part := range strings.Split(lang, "+") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// checkInputFile verifies the input exists, is a regular file and is not empty.
func checkInputFile(path string, log zerolog.Logger) error {
	info, err := os.Stat(path)
	if err != nil {
		log.Error().Err(err).Str("file", path).Msg("Cannot access input file")
		return fmt.Errorf("cannot access input file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("input is not a regular file: %s", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: input file is empty: %s", pageinfo.ErrNoPages, path)
	}
	if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
		log.Warn().Str("file", path).Msg("Input does not have a .pdf extension")
	}
	return nil
}

// signalContext cancels on SIGINT/SIGTERM so workers and external tools stop.
func signalContext(log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// buildEngine constructs the configured OCR engine. The returned closer
// releases cloud clients; for Tesseract it is a no-op.
func buildEngine(ctx context.Context, cfg *config.Config, run runner.Runner, log zerolog.Logger) (ocr.Engine, func(), error) {
	switch cfg.Engine {
	case config.EngineVision:
		engine, err := ocr.NewVisionEngine(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Vision engine: %w", err)
		}
		return engine, func() {
			if err := engine.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close Vision client")
			}
		}, nil
	case config.EngineDocumentAI:
		engine, err := ocr.NewDocumentAIEngine(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create Document AI engine: %w", err)
		}
		return engine, func() {
			if err := engine.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close Document AI client")
			}
		}, nil
	default:
		if err := runner.LookPath(cfg.TesseractPath); err != nil {
			return nil, nil, err
		}
		return ocr.NewTesseractEngine(cfg.TesseractPath, run), func() {}, nil
	}
}

// printRunSummary reports the run and the validation result on stdout. The
// report is printed on success too.
func printRunSummary(result *pipeline.Result) {
	fmt.Printf("Output: %s (%d pages, %d words, %s)\n",
		result.OutputPath, result.PageCount, result.WordCount,
		result.Duration.Round(time.Millisecond))

	for _, failure := range result.Skipped {
		fmt.Printf("Skipped page %d (%s): %v\n", failure.Page, failure.Stage, failure.Err)
	}

	if result.Report != nil {
		printValidationReport(result.Report)
	}
}

func printValidationReport(report *models.ValidationReport) {
	status := "NOT conformant"
	if report.Conformant {
		status = "conformant"
	}
	fmt.Printf("PDF/A validation: %s", status)
	if report.Profile != "" {
		fmt.Printf(" (%s)", report.Profile)
	}
	fmt.Println()
	for _, diag := range report.Diagnostics {
		fmt.Printf("  %s: %s\n", diag.Code, diag.Message)
	}
}

package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ocrpdf/internal/compose"
	"ocrpdf/internal/logger"
	"ocrpdf/internal/pageinfo"
	"ocrpdf/internal/pipeline"
	"ocrpdf/internal/runner"
)

var version = "1.0.0"

// Exit codes reported to the shell.
const (
	ExitOK                = 0
	ExitBadArgs           = 1
	ExitBadInput          = 2
	ExitMissingDependency = 3
	ExitInvalidPDFA       = 4
	ExitFileAccess        = 5
	ExitOther             = 15
)

var rootCmd = &cobra.Command{
	Use:   "ocrpdf",
	Short: "Add a searchable OCR text layer to scanned PDFs",
	Long: `ocrpdf rasterizes each page of a scanned PDF, runs OCR over it, and
produces a PDF/A-2b document that looks identical to the input but carries an
invisible, searchable text layer.

External tools used: Ghostscript (rasterization and PDF/A assembly),
Tesseract (default OCR engine), poppler's pdfinfo/pdfimages (page
inspection), and optionally unpaper (deskew/clean) and JHOVE (validation).
Google Cloud Vision and Document AI are available as alternative OCR
engines.`,
	Version: version,
}

// runError marks an error produced after argument parsing succeeded, so the
// exit code reflects the failure rather than a usage mistake.
type runError struct{ err error }

func (e *runError) Error() string { return e.err.Error() }
func (e *runError) Unwrap() error { return e.err }

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor classifies an error into a shell exit code. Errors that never
// reached a command's run function are usage mistakes.
func exitCodeFor(err error) int {
	var rerr *runError
	if !errors.As(err, &rerr) {
		return ExitBadArgs
	}
	err = rerr.err

	switch {
	case errors.Is(err, runner.ErrToolNotFound):
		return ExitMissingDependency
	case errors.Is(err, pipeline.ErrValidationFailed):
		return ExitInvalidPDFA
	case errors.Is(err, pageinfo.ErrNoPages),
		errors.Is(err, pageinfo.ErrNoRasterImage),
		errors.Is(err, pageinfo.ErrMalformedOutput),
		errors.Is(err, compose.ErrNoGeometry):
		return ExitBadInput
	case errors.Is(err, os.ErrNotExist), errors.Is(err, os.ErrPermission):
		return ExitFileAccess
	default:
		return ExitOther
	}
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version information")
}

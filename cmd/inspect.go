package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ocrpdf/internal/config"
	"ocrpdf/internal/logger"
	"ocrpdf/internal/pageinfo"
	"ocrpdf/internal/runner"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [pdf-file]",
	Short: "Print the page inventory of a PDF",
	Long: `Inspect a PDF with poppler's pdfinfo and pdfimages and print the
per-page inventory as JSON: page size in points, embedded image dimensions,
the native render DPI, and color characteristics.

This is the same inventory the process command uses to pick rasterization
devices and resolutions.`,
	Example: `  ocrpdf inspect scan.pdf`,
	Args:    cobra.ExactArgs(1),
	RunE:    runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("inspect")
	pdfPath := args[0]

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if _, err := os.Stat(pdfPath); err != nil {
		log.Error().Err(err).Str("file", pdfPath).Msg("Cannot access file")
		return &runError{fmt.Errorf("cannot access file: %w", err)}
	}

	inspector := pageinfo.New(pageinfo.Config{
		PdfInfoPath:   cfg.PdfInfoPath,
		PdfImagesPath: cfg.PdfImagesPath,
	}, runner.New())

	pages, err := inspector.Inspect(context.Background(), pdfPath)
	if err != nil {
		return &runError{err}
	}

	data, err := json.MarshalIndent(pages, "", "  ")
	if err != nil {
		return &runError{fmt.Errorf("failed to marshal page inventory: %w", err)}
	}
	fmt.Println(string(data))
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ocrpdf/internal/config"
	"ocrpdf/internal/logger"
	"ocrpdf/internal/pipeline"
	"ocrpdf/internal/runner"
	"ocrpdf/internal/validate"
)

var validateCmd = &cobra.Command{
	Use:   "validate [pdf-file]",
	Short: "Validate a PDF against the PDF/A profile",
	Long: `Run the external PDF/A validator (JHOVE with the PDF module) over a
file and print the classified report: well-formedness, validity, the
detected profile and any diagnostics.

The command exits non-zero when the file is not a conformant PDF/A.`,
	Example: `  ocrpdf validate searchable.pdf`,
	Args:    cobra.ExactArgs(1),
	RunE:    runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("validate")
	pdfPath := args[0]

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	if _, err := os.Stat(pdfPath); err != nil {
		log.Error().Err(err).Str("file", pdfPath).Msg("Cannot access file")
		return &runError{fmt.Errorf("cannot access file: %w", err)}
	}

	gateway := validate.New(validate.Config{
		JhovePath:  cfg.JhovePath,
		ConfigPath: cfg.JhoveConfigPath,
		Timeout:    cfg.ToolTimeout,
	}, runner.New())

	report, err := gateway.Validate(context.Background(), pdfPath)
	if err != nil {
		return &runError{err}
	}

	printValidationReport(report)
	if !report.Conformant {
		return &runError{pipeline.ErrValidationFailed}
	}
	return nil
}

// Package validate checks the finalized document against an external PDF/A
// validator (JHOVE with the PDF module) and classifies its textual report.
// Validation is advisory: the pipeline reports the result and only strict
// mode turns a non-conformant file into a run failure.
package validate

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"ocrpdf/internal/logger"
	"ocrpdf/internal/runner"
	"ocrpdf/pkg/models"
)

// Gateway validates a finalized PDF file.
type Gateway interface {
	Validate(ctx context.Context, pdfPath string) (*models.ValidationReport, error)
}

// Config holds the JHOVE invocation settings.
type Config struct {
	JhovePath  string
	ConfigPath string // Optional jhove.conf; empty uses the installed default
	Timeout    time.Duration
}

type jhoveGateway struct {
	config Config
	run    runner.Runner
}

// New creates a JHOVE-backed Gateway.
func New(config Config, run runner.Runner) Gateway {
	return &jhoveGateway{config: config, run: run}
}

var (
	errorMessageRe  = regexp.MustCompile(`(?im)^\s*ErrorMessage:\s*(.+)$`)
	invalidRe       = regexp.MustCompile(`(?im)^\s+Status.*not valid`)
	notWellFormedRe = regexp.MustCompile(`(?im)^\s+Status.*Not well-formed`)
	profileRe       = regexp.MustCompile(`(?im)^\s+Profile:\s*(.+)$`)
	pdfaProfileRe   = regexp.MustCompile(`(?i)PDF/A`)
)

func (j *jhoveGateway) Validate(ctx context.Context, pdfPath string) (*models.ValidationReport, error) {
	const op = "Validate"
	log := logger.WithComponent("validate")

	args := []string{"-m", "PDF-hul"}
	if j.config.ConfigPath != "" {
		args = append(args, "-c", j.config.ConfigPath)
	}
	args = append(args, pdfPath)

	out, err := j.run.Run(ctx, runner.Command{
		Path:    j.config.JhovePath,
		Args:    args,
		Timeout: j.config.Timeout,
	})
	if err != nil {
		if errors.Is(err, runner.ErrTimeout) {
			return nil, WrapValidationError(op, ErrValidatorTimeout, pdfPath)
		}
		return nil, WrapValidationError(op, ErrValidatorFailed, err.Error())
	}

	report := Classify(string(out))
	log.Info().
		Bool("conformant", report.Conformant).
		Bool("well_formed", report.WellFormed).
		Str("profile", report.Profile).
		Int("diagnostics", len(report.Diagnostics)).
		Msg("Validation completed")

	return report, nil
}

// Classify turns the validator's textual output into a report. The rules
// mirror the validator's own summary lines: any ErrorMessage or a
// "not valid" status marks the file invalid, and conformance additionally
// requires a reported PDF/A profile.
func Classify(output string) *models.ValidationReport {
	report := &models.ValidationReport{WellFormed: true}

	valid := true
	if errorMessageRe.MatchString(output) {
		valid = false
	}
	if invalidRe.MatchString(output) {
		valid = false
	}
	if notWellFormedRe.MatchString(output) {
		valid = false
		report.WellFormed = false
	}

	if m := profileRe.FindStringSubmatch(output); m != nil {
		report.Profile = strings.TrimSpace(m[1])
	}

	report.Conformant = valid && pdfaProfileRe.MatchString(report.Profile)

	for _, m := range errorMessageRe.FindAllStringSubmatch(output, -1) {
		report.Diagnostics = append(report.Diagnostics, models.Diagnostic{
			Code:    "ErrorMessage",
			Message: strings.TrimSpace(m[1]),
		})
	}
	if !report.WellFormed {
		report.Diagnostics = append(report.Diagnostics, models.Diagnostic{
			Code:    "Status",
			Message: "Not well-formed",
		})
	} else if !valid {
		report.Diagnostics = append(report.Diagnostics, models.Diagnostic{
			Code:    "Status",
			Message: "Well-Formed, but not valid",
		})
	}

	return report
}

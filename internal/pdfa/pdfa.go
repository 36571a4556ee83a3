// Package pdfa assembles composited pages into a single PDF/A-2b document
// with Ghostscript's pdfwrite device. A generated PostScript definition file
// supplies the document info, the output intent and the sRGB ICC profile;
// Ghostscript converts colors to RGB, embeds fonts and writes the XMP
// metadata packet required for conformance.
package pdfa

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ocrpdf/internal/logger"
	"ocrpdf/internal/runner"
)

// Metadata is the document-level metadata written into the output.
type Metadata struct {
	Title    string
	Language string // RFC 3066 tag for the document catalog, e.g. "en-US"
	Producer string
}

// Finalizer assembles page PDFs into the final PDF/A.
type Finalizer interface {
	Assemble(ctx context.Context, pagePaths []string, outputPath string, meta Metadata) error
}

// Config holds the Ghostscript assembly settings.
type Config struct {
	GhostscriptPath string
	SRGBProfilePath string
	Timeout         time.Duration
}

type gsFinalizer struct {
	config Config
	run    runner.Runner
}

// New creates a Ghostscript-backed Finalizer.
func New(config Config, run runner.Runner) Finalizer {
	return &gsFinalizer{config: config, run: run}
}

func (g *gsFinalizer) Assemble(ctx context.Context, pagePaths []string, outputPath string, meta Metadata) error {
	const op = "Assemble"
	log := logger.WithComponent("pdfa")

	if len(pagePaths) == 0 {
		return WrapFinalizationError(op, ErrNoPages, "")
	}
	if _, err := os.Stat(g.config.SRGBProfilePath); err != nil {
		return WrapFinalizationError(op, ErrMissingProfile, g.config.SRGBProfilePath)
	}

	defPath := filepath.Join(filepath.Dir(pagePaths[0]), "pdfa_def.ps")
	if err := writeDefinition(defPath, g.config.SRGBProfilePath, meta); err != nil {
		return WrapFinalizationError(op, err, "failed to write PDF/A definition")
	}
	defer os.Remove(defPath)

	args := []string{
		"-dQUIET", "-dBATCH", "-dNOPAUSE", "-dSAFER",
		"-sDEVICE=pdfwrite",
		"-sColorConversionStrategy=/RGB",
		"-sProcessColorModel=DeviceRGB",
		"-dPDFA=2",
		"-sPDFACompatibilityPolicy=2",
		fmt.Sprintf("-sOutputICCProfile=%s", g.config.SRGBProfilePath),
		fmt.Sprintf("-sOutputFile=%s", outputPath),
		defPath,
	}
	args = append(args, pagePaths...)

	if _, err := g.run.Run(ctx, runner.Command{
		Path:    g.config.GhostscriptPath,
		Args:    args,
		Timeout: g.config.Timeout,
	}); err != nil {
		return WrapFinalizationError(op, err, "Ghostscript assembly failed")
	}

	info, err := os.Stat(outputPath)
	if err != nil || info.Size() == 0 {
		return WrapFinalizationError(op, ErrEmptyOutput, outputPath)
	}

	log.Info().
		Int("pages", len(pagePaths)).
		Str("output", outputPath).
		Int64("bytes", info.Size()).
		Msg("Assembled PDF/A document")

	return nil
}

// writeDefinition emits the pdfmark prolog: document info, the sRGB output
// intent and the catalog language entry.
func writeDefinition(path, iccPath string, meta Metadata) error {
	var b strings.Builder
	b.WriteString("%!\n")
	b.WriteString("% PDF/A definition prolog\n")
	fmt.Fprintf(&b, "/ICCProfile (%s) def\n", psEscape(iccPath))
	b.WriteString("[")
	if meta.Title != "" {
		fmt.Fprintf(&b, " /Title (%s)", psEscape(meta.Title))
	}
	if meta.Producer != "" {
		fmt.Fprintf(&b, " /Producer (%s)", psEscape(meta.Producer))
	}
	b.WriteString(" /DOCINFO pdfmark\n")
	if meta.Language != "" {
		fmt.Fprintf(&b, "[{Catalog} <</Lang (%s)>> /PUT pdfmark\n", psEscape(meta.Language))
	}
	b.WriteString(`[/_objdef {icc_PDFA} /type /stream /OBJ pdfmark
[{icc_PDFA} <</N 3>> /PUT pdfmark
[{icc_PDFA} ICCProfile (r) file /PUT pdfmark
[/_objdef {OutputIntent_PDFA} /type /dict /OBJ pdfmark
[{OutputIntent_PDFA} <<
  /Type /OutputIntent
  /S /GTS_PDFA1
  /DestOutputProfile {icc_PDFA}
  /OutputConditionIdentifier (sRGB)
>> /PUT pdfmark
[{Catalog} <</OutputIntents [ {OutputIntent_PDFA} ]>> /PUT pdfmark
`)
	return os.WriteFile(path, []byte(b.String()), 0644)
}

// psEscape escapes PostScript string delimiters.
func psEscape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}

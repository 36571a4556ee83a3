// Package pageinfo inspects an input PDF with poppler's pdfinfo and
// pdfimages tools and builds the per-page geometry the pipeline needs:
// page size in points, embedded image inventory, and the native render DPI.
package pageinfo

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"ocrpdf/internal/logger"
	"ocrpdf/internal/runner"
	"ocrpdf/pkg/models"
)

// Inspector reads page geometry from an input PDF.
type Inspector interface {
	// Inspect returns one Page per input page, in input order.
	Inspect(ctx context.Context, pdfPath string) ([]*models.Page, error)
}

// Config holds the tool paths used for inspection.
type Config struct {
	PdfInfoPath   string
	PdfImagesPath string
}

type popplerInspector struct {
	config Config
	run    runner.Runner
}

// New creates an Inspector backed by the poppler CLI tools.
func New(config Config, run runner.Runner) Inspector {
	return &popplerInspector{config: config, run: run}
}

// Page    1 size: 612 x 792 pts (letter)
var pageSizeRe = regexp.MustCompile(`(?m)^Page\s+(\d+)\s+size:\s+([\d.]+)\s+x\s+([\d.]+)\s+pts`)

func (p *popplerInspector) Inspect(ctx context.Context, pdfPath string) ([]*models.Page, error) {
	const op = "Inspect"
	log := logger.WithComponent("pageinfo")

	infoOut, err := p.run.Run(ctx, runner.Command{
		Path: p.config.PdfInfoPath,
		Args: []string{"-f", "1", "-l", "-1", pdfPath},
	})
	if err != nil {
		return nil, WrapInspectError(op, err, "pdfinfo invocation failed")
	}

	pages, err := parsePageSizes(string(infoOut))
	if err != nil {
		return nil, WrapInspectError(op, err, pdfPath)
	}
	if len(pages) == 0 {
		return nil, WrapInspectError(op, ErrNoPages, pdfPath)
	}

	imagesOut, err := p.run.Run(ctx, runner.Command{
		Path: p.config.PdfImagesPath,
		Args: []string{"-list", pdfPath},
	})
	if err != nil {
		return nil, WrapInspectError(op, err, "pdfimages invocation failed")
	}

	if err := applyImageList(pages, string(imagesOut)); err != nil {
		return nil, WrapInspectError(op, err, pdfPath)
	}

	for _, page := range pages {
		if page.DPI == 0 {
			return nil, WrapInspectError(op, ErrNoRasterImage, fmt.Sprintf("page %d", page.Index))
		}
		log.Debug().
			Int("page", page.Index).
			Float64("width_pt", page.WidthPt).
			Float64("height_pt", page.HeightPt).
			Int("dpi", page.DPI).
			Msg("Inspected page")
	}

	return pages, nil
}

// parsePageSizes builds the page list from pdfinfo output.
func parsePageSizes(out string) ([]*models.Page, error) {
	var pages []*models.Page
	for _, m := range pageSizeRe.FindAllStringSubmatch(out, -1) {
		idx, err := strconv.Atoi(m[1])
		if err != nil {
			return nil, fmt.Errorf("%w: bad page number %q", ErrMalformedOutput, m[1])
		}
		w, err1 := strconv.ParseFloat(m[2], 64)
		h, err2 := strconv.ParseFloat(m[3], 64)
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("%w: bad page size for page %d", ErrMalformedOutput, idx)
		}
		if idx != len(pages)+1 {
			return nil, fmt.Errorf("%w: page %d out of order", ErrMalformedOutput, idx)
		}
		pages = append(pages, &models.Page{Index: idx, WidthPt: w, HeightPt: h})
	}
	return pages, nil
}

// applyImageList folds `pdfimages -list` rows into the page inventory. The
// render DPI of a page is the largest x/y ppi over its images, matching the
// resolution the scan was embedded at.
func applyImageList(pages []*models.Page, out string) error {
	lines := strings.Split(out, "\n")
	for _, line := range lines {
		fields := strings.Fields(line)
		// page num type width height color comp bpc enc interp object ID x-ppi y-ppi size ratio
		if len(fields) < 14 {
			continue
		}
		idx, err := strconv.Atoi(fields[0])
		if err != nil || idx < 1 || idx > len(pages) {
			continue
		}
		if fields[2] != "image" {
			continue
		}
		page := pages[idx-1]

		width, err1 := strconv.Atoi(fields[3])
		height, err2 := strconv.Atoi(fields[4])
		comp, err3 := strconv.Atoi(fields[6])
		bpc, err4 := strconv.Atoi(fields[7])
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			return fmt.Errorf("%w: bad image row for page %d", ErrMalformedOutput, idx)
		}
		xppi, err1 := strconv.Atoi(fields[12])
		yppi, err2 := strconv.Atoi(fields[13])
		if err1 != nil || err2 != nil {
			// poppler prints "inf" for degenerate placements; skip the row
			continue
		}

		if width > page.WidthPx {
			page.WidthPx = width
		}
		if height > page.HeightPx {
			page.HeightPx = height
		}
		if dpi := max(xppi, yppi); dpi > page.DPI {
			page.DPI = dpi
		}
		if comp > page.Components {
			page.Components = comp
		}
		if bpc > page.BitsPerComp {
			page.BitsPerComp = bpc
		}
		if fields[5] != "gray" && fields[5] != "mono" {
			page.HasColorImage = true
		}
	}
	return nil
}

// Package rasterize renders single PDF pages to PNG images with Ghostscript
// at the page's native embedded resolution. The resolution is never changed
// implicitly; the DPI recorded on the returned RasterImage is the DPI the
// page was rendered at and the DPI the text layer mapping will use later.
package rasterize

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"ocrpdf/internal/logger"
	"ocrpdf/internal/runner"
	"ocrpdf/pkg/models"
)

// Extractor renders one input page to a raster image.
type Extractor interface {
	Extract(ctx context.Context, pdfPath string, page *models.Page, destDir string) (*models.RasterImage, error)
}

// Config holds the Ghostscript invocation settings.
type Config struct {
	GhostscriptPath string
	Timeout         time.Duration
}

type gsExtractor struct {
	config Config
	run    runner.Runner
}

// New creates a Ghostscript-backed Extractor.
func New(config Config, run runner.Runner) Extractor {
	return &gsExtractor{config: config, run: run}
}

func (g *gsExtractor) Extract(ctx context.Context, pdfPath string, page *models.Page, destDir string) (*models.RasterImage, error) {
	const op = "Extract"
	log := logger.WithPage("rasterize", page.Index)

	if page.DPI <= 0 {
		return nil, WrapExtractionError(op, ErrNoResolution, fmt.Sprintf("page %d", page.Index))
	}

	device, mode := deviceForPage(page)
	outPath := filepath.Join(destDir, fmt.Sprintf("%06d.page.png", page.Index))

	args := []string{
		"-dQUIET", "-dBATCH", "-dNOPAUSE", "-dSAFER",
		fmt.Sprintf("-sDEVICE=%s", device),
		fmt.Sprintf("-dFirstPage=%d", page.Index),
		fmt.Sprintf("-dLastPage=%d", page.Index),
		fmt.Sprintf("-r%dx%d", page.DPI, page.DPI),
		"-o", outPath,
		pdfPath,
	}

	if _, err := g.run.Run(ctx, runner.Command{
		Path:    g.config.GhostscriptPath,
		Args:    args,
		Timeout: g.config.Timeout,
	}); err != nil {
		return nil, WrapExtractionError(op, err, fmt.Sprintf("page %d", page.Index))
	}

	width, height, err := pngDimensions(outPath)
	if err != nil {
		return nil, WrapExtractionError(op, err, outPath)
	}

	log.Debug().
		Str("device", device).
		Int("dpi", page.DPI).
		Int("width_px", width).
		Int("height_px", height).
		Msg("Rasterized page")

	return &models.RasterImage{
		Path:     outPath,
		Format:   "png",
		WidthPx:  width,
		HeightPx: height,
		DPI:      page.DPI,
		Mode:     mode,
	}, nil
}

// deviceForPage picks the Ghostscript raster device from the page's image
// inventory: bitonal scans render with pngmono, grayscale with pnggray,
// anything with color with png16m.
func deviceForPage(page *models.Page) (string, models.ColorMode) {
	if !page.HasColorImage && page.Components <= 1 {
		if page.BitsPerComp == 1 {
			return "pngmono", models.ColorModeMono
		}
		return "pnggray", models.ColorModeGray
	}
	return "png16m", models.ColorModeRGB
}

// pngDimensions decodes only the image header.
func pngDimensions(path string) (int, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer f.Close()

	cfg, err := png.DecodeConfig(f)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrBadRaster, err)
	}
	return cfg.Width, cfg.Height, nil
}

// Decode loads a produced raster for in-process filtering.
func Decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRaster, err)
	}
	return img, nil
}

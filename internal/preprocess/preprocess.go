// Package preprocess applies the optional deskew and clean filters to page
// rasters before OCR. Filtering is delegated to unpaper, which consumes and
// produces PNM; the raster is converted to the closest PNM flavor for its
// color mode and re-encoded as PNG afterwards. The DPI of the result is
// always identical to the input.
//
// The filters are conservative on purpose: every unpaper heuristic that can
// blank out or move glyphs is disabled, leaving only the requested
// transformation (rotation correction for deskew, despeckling for clean).
package preprocess

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strconv"
	"time"

	xdraw "golang.org/x/image/draw"

	"ocrpdf/internal/logger"
	"ocrpdf/internal/rasterize"
	"ocrpdf/internal/runner"
	"ocrpdf/pkg/models"
)

// Options enables individual filters. Both default to off.
type Options struct {
	Deskew bool
	Clean  bool
}

// Preprocessor transforms a page raster into a new raster with the same DPI.
type Preprocessor interface {
	Process(ctx context.Context, raster *models.RasterImage, opts Options, destDir string) (*models.RasterImage, error)
}

// Config holds the unpaper invocation settings.
type Config struct {
	UnpaperPath string
	Timeout     time.Duration
}

type unpaperPreprocessor struct {
	config Config
	run    runner.Runner
}

// New creates an unpaper-backed Preprocessor.
func New(config Config, run runner.Runner) Preprocessor {
	return &unpaperPreprocessor{config: config, run: run}
}

// deskewArgs leaves rotation correction enabled and disables every content
// filter that could drop glyph-shaped marks.
var deskewArgs = []string{
	"--mask-scan-size", "100",
	"--no-border-align",
	"--no-mask-center",
	"--no-grayfilter",
	"--no-blackfilter",
	"--no-noisefilter",
	"--no-blurfilter",
}

// cleanArgs keeps the despeckle filters and explicitly disables deskew so
// that rotation never changes unless asked for.
var cleanArgs = []string{
	"--mask-scan-size", "100",
	"--no-border-align",
	"--no-mask-center",
	"--no-grayfilter",
	"--no-blackfilter",
	"--no-deskew",
}

func (u *unpaperPreprocessor) Process(ctx context.Context, raster *models.RasterImage, opts Options, destDir string) (*models.RasterImage, error) {
	const op = "Process"
	log := logger.WithComponent("preprocess")

	if !opts.Deskew && !opts.Clean {
		return raster, nil
	}

	current := raster
	var err error
	if opts.Deskew {
		current, err = u.applyFilter(ctx, current, deskewArgs, destDir, "deskew")
		if err != nil {
			return nil, WrapFilterError(op, err, "deskew")
		}
		log.Debug().Str("image", current.Path).Msg("Deskewed page raster")
	}
	if opts.Clean {
		current, err = u.applyFilter(ctx, current, cleanArgs, destDir, "clean")
		if err != nil {
			return nil, WrapFilterError(op, err, "clean")
		}
		log.Debug().Str("image", current.Path).Msg("Cleaned page raster")
	}
	return current, nil
}

// applyFilter runs one unpaper pass over the raster and produces a new
// RasterImage; the input raster file is left untouched.
func (u *unpaperPreprocessor) applyFilter(ctx context.Context, raster *models.RasterImage, filterArgs []string, destDir, suffix string) (*models.RasterImage, error) {
	img, err := rasterize.Decode(raster.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}

	inPNM := filepath.Join(destDir, pnmName(raster.Path, suffix+".in"))
	outPNM := filepath.Join(destDir, pnmName(raster.Path, suffix+".out"))
	defer os.Remove(inPNM)
	defer os.Remove(outPNM)

	if err := encodePNM(inPNM, normalize(img, raster.Mode), raster.Mode); err != nil {
		return nil, err
	}

	args := append([]string{"--dpi", strconv.Itoa(raster.DPI)}, filterArgs...)
	args = append(args, inPNM, outPNM)
	if _, err := u.run.Run(ctx, runner.Command{
		Path:    u.config.UnpaperPath,
		Args:    args,
		Timeout: u.config.Timeout,
	}); err != nil {
		return nil, err
	}

	filtered, err := decodePNM(outPNM)
	if err != nil {
		return nil, err
	}

	outPath := pngName(destDir, raster.Path, suffix)
	if err := writePNG(outPath, filtered); err != nil {
		return nil, err
	}

	bounds := filtered.Bounds()
	return &models.RasterImage{
		Path:     outPath,
		Format:   "png",
		WidthPx:  bounds.Dx(),
		HeightPx: bounds.Dy(),
		DPI:      raster.DPI,
		Mode:     raster.Mode,
	}, nil
}

// normalize converts the decoded image into the pixel layout the PNM encoder
// expects for the raster's color mode.
func normalize(img image.Image, mode models.ColorMode) image.Image {
	bounds := img.Bounds()
	switch mode {
	case models.ColorModeMono, models.ColorModeGray:
		if _, ok := img.(*image.Gray); ok {
			return img
		}
		dst := image.NewGray(bounds)
		xdraw.Draw(dst, bounds, img, bounds.Min, xdraw.Src)
		return dst
	default:
		if _, ok := img.(*image.RGBA); ok {
			return img
		}
		dst := image.NewRGBA(bounds)
		xdraw.Draw(dst, bounds, img, bounds.Min, xdraw.Src)
		return dst
	}
}

func pnmName(srcPath, suffix string) string {
	base := filepath.Base(srcPath)
	return base + "." + suffix + ".pnm"
}

func pngName(destDir, srcPath, suffix string) string {
	base := filepath.Base(srcPath)
	ext := filepath.Ext(base)
	return filepath.Join(destDir, base[:len(base)-len(ext)]+"."+suffix+".png")
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

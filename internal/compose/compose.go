// Package compose builds per-page PDFs that pair the page's image content
// with an invisible, positioned OCR text layer.
//
// Coordinate mapping: recognized word boxes arrive in image pixel
// coordinates (origin top-left) at a known DPI; a box maps into page points
// with scale = 72 / dpi. The text for a box is rendered invisibly with a
// font size equal to the mapped box height, anchored at the box's baseline,
// and horizontally scaled so the string exactly fills the box width. The
// visual appearance of the page is the image alone; the text is only
// reachable by search, selection and extraction.
//
// Two page modes exist:
//
//   - Import: the original page is imported as an unmodified template
//     (keeping its image stream, sampling rate and compression) and the text
//     layer is drawn over it.
//   - Rebuild: the page is rebuilt from a raster (used when the cleaned
//     image should appear in the output); the raster is placed over the full
//     page box so its effective DPI equals its native DPI.
package compose

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"codeberg.org/go-pdf/fpdf"
	"codeberg.org/go-pdf/fpdf/contrib/gofpdi"

	"ocrpdf/internal/logger"
	"ocrpdf/pkg/models"
)

// FontConfig controls the text layer font.
type FontConfig struct {
	Name        string  // Core font name (e.g., "Helvetica")
	Style       string  // Font style ("", "B", "I", "BI")
	AscentRatio float64 // Baseline position within the box, from the top
}

// DefaultFont is Helvetica with a standard ascent.
var DefaultFont = FontConfig{
	Name:        "Helvetica",
	Style:       "",
	AscentRatio: 0.718,
}

// Options configures one page composition.
type Options struct {
	// ImportOriginal keeps the original page content stream untouched and
	// overlays the text layer. When false the page is rebuilt from Raster.
	ImportOriginal bool

	// DedupOverlaps drops a word whose box almost entirely overlaps an
	// earlier word's box. Off by default: engines emit overlapping
	// candidates in a deliberate order and both are normally kept.
	DedupOverlaps bool

	// ShowBoundingBoxes renders visible dashed boxes instead of invisible
	// text. Debug aid only.
	ShowBoundingBoxes bool

	Font FontConfig
}

// Compositor renders per-page searchable PDFs.
type Compositor struct{}

// New creates a Compositor.
func New() *Compositor {
	return &Compositor{}
}

// invisible text rendering mode (PDF Tr operand 3)
const textRenderingInvisible = 3

// ComposePage produces a single-page PDF and the text layer that was drawn.
//
// page supplies geometry and the source PDF position; raster supplies the
// image (and its DPI, which drives the coordinate mapping); words are the
// recognized words in engine order. sourcePDF is only read in import mode.
func (c *Compositor) ComposePage(
	sourcePDF string,
	page *models.Page,
	raster *models.RasterImage,
	words []models.RecognizedWord,
	opts Options,
) ([]byte, *models.TextLayer, error) {
	const op = "ComposePage"
	log := logger.WithPage("compose", page.Index)

	if page.WidthPt <= 0 || page.HeightPt <= 0 {
		return nil, nil, WrapCompositionError(op, ErrNoGeometry,
			fmt.Sprintf("page %d has size %.2fx%.2f pt", page.Index, page.WidthPt, page.HeightPt))
	}
	if raster == nil || raster.DPI <= 0 {
		return nil, nil, WrapCompositionError(op, ErrNoResolution, fmt.Sprintf("page %d", page.Index))
	}

	font := opts.Font
	if font.Name == "" {
		font = DefaultFont
	}

	pdf := fpdf.New("P", "pt", "", "")
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(0, 0, 0)
	pdf.AddPageFormat("P", fpdf.SizeType{Wd: page.WidthPt, Ht: page.HeightPt})
	pdf.SetFont(font.Name, font.Style, 12)

	layer := buildTextLayer(page, raster, words, opts)
	if layer.Clipped > 0 {
		log.Warn().Int("clipped", layer.Clipped).Msg("Clipped out-of-bounds word boxes to page bounds")
	}

	drawTextLayer(pdf, layer, font, page.HeightPt, opts.ShowBoundingBoxes)

	if opts.ImportOriginal {
		if err := importOriginalPage(pdf, sourcePDF, page); err != nil {
			return nil, nil, WrapCompositionError(op, err, sourcePDF)
		}
	} else {
		if err := placeRaster(pdf, raster, page); err != nil {
			return nil, nil, WrapCompositionError(op, err, raster.Path)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, nil, WrapCompositionError(op, err, "PDF serialization failed")
	}

	log.Debug().
		Int("runs", len(layer.Runs)).
		Bool("import_original", opts.ImportOriginal).
		Msg("Composed page")

	return buf.Bytes(), layer, nil
}

// buildTextLayer maps word boxes from pixels to points, clipping to page
// bounds. Engine word order is preserved; overlapping words pass through
// unless deduplication was requested.
func buildTextLayer(page *models.Page, raster *models.RasterImage, words []models.RecognizedWord, opts Options) *models.TextLayer {
	scale := 72.0 / float64(raster.DPI)
	layer := &models.TextLayer{PageIndex: page.Index}

	var kept []rect
	for _, word := range words {
		if word.Text == "" || word.X1 <= word.X0 || word.Y1 <= word.Y0 {
			continue
		}

		// Pixel box to points (top-left origin preserved for clipping).
		x0, y0 := word.X0*scale, word.Y0*scale
		x1, y1 := word.X1*scale, word.Y1*scale

		clipped := false
		if x0 < 0 {
			x0, clipped = 0, true
		}
		if y0 < 0 {
			y0, clipped = 0, true
		}
		if x1 > page.WidthPt {
			x1, clipped = page.WidthPt, true
		}
		if y1 > page.HeightPt {
			y1, clipped = page.HeightPt, true
		}
		if clipped {
			layer.Clipped++
		}
		if x1 <= x0 || y1 <= y0 {
			// Entirely outside the page; the clip counter already recorded it.
			continue
		}

		if opts.DedupOverlaps {
			box := rect{x0, y0, x1, y1}
			if overlapsKept(kept, box) {
				continue
			}
			kept = append(kept, box)
		}

		layer.Runs = append(layer.Runs, models.GlyphRun{
			Text:     word.Text,
			X:        x0,
			Y:        page.HeightPt - y1, // bottom-left origin
			Width:    x1 - x0,
			FontSize: y1 - y0,
		})
	}
	return layer
}

// drawTextLayer emits one invisible text run per glyph run, horizontally
// scaled so the rendered string covers the mapped box width.
func drawTextLayer(pdf *fpdf.Fpdf, layer *models.TextLayer, font FontConfig, pageHeightPt float64, showBoxes bool) {
	// Core fonts are cp1252; engine text arrives as UTF-8 and must be
	// translated before measuring or drawing.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	if showBoxes {
		pdf.SetDrawColor(255, 0, 0)
		pdf.SetLineWidth(0.5)
	} else {
		pdf.SetTextRenderingMode(textRenderingInvisible)
	}

	for _, run := range layer.Runs {
		// Back to fpdf's top-left origin.
		boxTop := pageHeightPt - run.Y - run.FontSize
		baseline := boxTop + run.FontSize*font.AscentRatio

		text := tr(run.Text)
		pdf.SetFontSize(run.FontSize)
		strWidth := pdf.GetStringWidth(text)

		if showBoxes {
			pdf.Rect(run.X, boxTop, run.Width, run.FontSize, "D")
		}

		if strWidth > 0 && run.Width > 0 {
			pdf.TransformBegin()
			pdf.TransformScaleX(100*run.Width/strWidth, run.X, baseline)
			pdf.Text(run.X, baseline, text)
			pdf.TransformEnd()
		} else {
			pdf.Text(run.X, baseline, text)
		}
	}

	if !showBoxes {
		pdf.SetTextRenderingMode(0)
	}
}

// importOriginalPage lays the untouched original page over the text.
func importOriginalPage(pdf *fpdf.Fpdf, sourcePDF string, page *models.Page) (err error) {
	data, err := os.ReadFile(sourcePDF)
	if err != nil {
		return err
	}
	// gofpdi panics on source PDFs it cannot parse. Convert that into an
	// error so a bad page stays a page failure instead of killing the run.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrImportFailed, r)
		}
	}()
	importer := gofpdi.NewImporter()
	rs := io.ReadSeeker(bytes.NewReader(data))
	tpl := importer.ImportPageFromStream(pdf, &rs, page.Index, "/MediaBox")
	importer.UseImportedTemplate(pdf, tpl, 0, 0, page.WidthPt, 0)
	return nil
}

// placeRaster draws the raster across the full page box. The pixel size and
// the page size are locked to the same DPI, so the image keeps its native
// sampling rate.
func placeRaster(pdf *fpdf.Fpdf, raster *models.RasterImage, page *models.Page) error {
	f, err := os.Open(raster.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	imgOpts := fpdf.ImageOptions{ImageType: "PNG"}
	name := fmt.Sprintf("page-%06d", page.Index)
	pdf.RegisterImageOptionsReader(name, imgOpts, f)
	pdf.ImageOptions(name, 0, 0, page.WidthPt, page.HeightPt, false, imgOpts, 0, "")
	if pdf.Err() {
		return fmt.Errorf("%w: %v", ErrImageEmbed, pdf.Error())
	}
	return nil
}

type rect struct{ x0, y0, x1, y1 float64 }

// overlapsKept reports whether box is almost fully covered by a kept box.
func overlapsKept(kept []rect, box rect) bool {
	area := (box.x1 - box.x0) * (box.y1 - box.y0)
	for _, k := range kept {
		ix0, iy0 := max(box.x0, k.x0), max(box.y0, k.y0)
		ix1, iy1 := min(box.x1, k.x1), min(box.y1, k.y1)
		if ix1 <= ix0 || iy1 <= iy0 {
			continue
		}
		if (ix1-ix0)*(iy1-iy0) >= 0.9*area {
			return true
		}
	}
	return false
}

package compose

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocrpdf/pkg/models"
)

// letterPage is 8.5x11in at 150 DPI.
func letterPage() *models.Page {
	return &models.Page{
		Index:    1,
		WidthPt:  612,
		HeightPt: 792,
		WidthPx:  1275,
		HeightPx: 1650,
		DPI:      150,
	}
}

func letterRaster(t *testing.T) *models.RasterImage {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page.png")
	img := image.NewGray(image.Rect(0, 0, 1275, 1650))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	img.SetGray(100, 100, color.Gray{Y: 0})

	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	return &models.RasterImage{
		Path:     path,
		Format:   "png",
		WidthPx:  1275,
		HeightPx: 1650,
		DPI:      150,
		Mode:     models.ColorModeGray,
	}
}

func TestBuildTextLayerMapping(t *testing.T) {
	page := letterPage()
	raster := &models.RasterImage{DPI: 150}

	words := []models.RecognizedWord{
		{Text: "hello", X0: 150, Y0: 300, X1: 450, Y1: 375},
	}

	layer := buildTextLayer(page, raster, words, Options{})
	require.Len(t, layer.Runs, 1)

	run := layer.Runs[0]
	// 150 px at 150 DPI is one inch, 72 pt.
	assert.InDelta(t, 72.0, run.X, 1e-9)
	assert.InDelta(t, 144.0, run.Width, 1e-9)
	// Box height 75 px -> 36 pt font.
	assert.InDelta(t, 36.0, run.FontSize, 1e-9)
	// Bottom-left origin: pageHeight - y1*scale = 792 - 180.
	assert.InDelta(t, 612.0, run.Y, 1e-9)
	assert.Zero(t, layer.Clipped)
}

func TestBuildTextLayerClipsToPage(t *testing.T) {
	page := letterPage()
	raster := &models.RasterImage{DPI: 150}

	words := []models.RecognizedWord{
		// Extends past the right page edge.
		{Text: "edge", X0: 1200, Y0: 100, X1: 1400, Y1: 150},
		// Entirely off the page.
		{Text: "gone", X0: 1300, Y0: 1700, X1: 1400, Y1: 1750},
		{Text: "fine", X0: 10, Y0: 10, X1: 100, Y1: 40},
	}

	layer := buildTextLayer(page, raster, words, Options{})
	require.Len(t, layer.Runs, 2)
	assert.Equal(t, 2, layer.Clipped)

	edge := layer.Runs[0]
	assert.InDelta(t, page.WidthPt, edge.X+edge.Width, 1e-9)
}

func TestBuildTextLayerOverlapPassThrough(t *testing.T) {
	page := letterPage()
	raster := &models.RasterImage{DPI: 150}

	words := []models.RecognizedWord{
		{Text: "first", X0: 100, Y0: 100, X1: 300, Y1: 150},
		{Text: "second", X0: 100, Y0: 100, X1: 300, Y1: 150},
	}

	// Default keeps both overlapping words in engine order.
	layer := buildTextLayer(page, raster, words, Options{})
	require.Len(t, layer.Runs, 2)
	assert.Equal(t, "first", layer.Runs[0].Text)
	assert.Equal(t, "second", layer.Runs[1].Text)

	// Opt-in dedup drops the covered duplicate.
	layer = buildTextLayer(page, raster, words, Options{DedupOverlaps: true})
	require.Len(t, layer.Runs, 1)
	assert.Equal(t, "first", layer.Runs[0].Text)
}

func TestComposePageRebuild(t *testing.T) {
	page := letterPage()
	raster := letterRaster(t)

	words := []models.RecognizedWord{
		{Text: "invoice", X0: 150, Y0: 300, X1: 450, Y1: 375, Confidence: 0.97},
		{Text: "total", X0: 500, Y0: 300, X1: 700, Y1: 375, Confidence: 0.93},
	}

	data, layer, err := New().ComposePage("", page, raster, words, Options{})
	require.NoError(t, err)
	require.Len(t, layer.Runs, 2)

	assert.True(t, len(data) > 0)
	assert.Equal(t, "%PDF", string(data[:4]))
}

func TestComposePageNoWords(t *testing.T) {
	page := letterPage()
	raster := letterRaster(t)

	data, layer, err := New().ComposePage("", page, raster, nil, Options{})
	require.NoError(t, err)
	assert.Empty(t, layer.Runs)
	assert.True(t, len(data) > 0)
}

func TestDrawTextLayerEncodesNonASCII(t *testing.T) {
	// Core fonts use cp1252; the content stream must carry the translated
	// byte, not the word's raw UTF-8 encoding.
	pdf := fpdf.New("P", "pt", "", "")
	pdf.SetCompression(false)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPageFormat("P", fpdf.SizeType{Wd: 612, Ht: 792})
	pdf.SetFont("Helvetica", "", 12)

	layer := &models.TextLayer{
		PageIndex: 1,
		Runs: []models.GlyphRun{
			{Text: "Müller", X: 72, Y: 612, Width: 144, FontSize: 36},
		},
	}
	drawTextLayer(pdf, layer, DefaultFont, 792, false)

	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))

	assert.True(t, bytes.Contains(buf.Bytes(), []byte("M\xfcller")))
	assert.False(t, bytes.Contains(buf.Bytes(), []byte("M\xc3\xbcller")))
}

func TestComposePageUnreadableSource(t *testing.T) {
	// gofpdi cannot parse this file; the failure must come back as an
	// error, not a panic out of the worker.
	source := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(source, []byte("%PDF-1.4 not actually a pdf"), 0644))

	_, _, err := New().ComposePage(source, letterPage(), &models.RasterImage{DPI: 150}, nil,
		Options{ImportOriginal: true})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrImportFailed)
}

func TestComposePageBadGeometry(t *testing.T) {
	page := letterPage()
	page.WidthPt = 0

	_, _, err := New().ComposePage("", page, &models.RasterImage{DPI: 150}, nil, Options{})
	assert.ErrorIs(t, err, ErrNoGeometry)
}

func TestComposePageNoResolution(t *testing.T) {
	_, _, err := New().ComposePage("", letterPage(), &models.RasterImage{}, nil, Options{})
	assert.ErrorIs(t, err, ErrNoResolution)
}

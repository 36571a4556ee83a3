package pageinfo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ocrpdf/internal/runner"
)

const pdfinfoOutput = `Title:          scan
Producer:       Some Scanner
Pages:          2
Page    1 size: 612 x 792 pts (letter)
Page    1 rot:  0
Page    2 size: 595.28 x 841.89 pts (A4)
Page    2 rot:  0
File size:      123456 bytes
PDF version:    1.5
`

const pdfimagesOutput = `page   num  type   width height color comp bpc  enc interp  object ID x-ppi y-ppi size ratio
--------------------------------------------------------------------------------------------
   1     0 image    2550  3300  gray    1   8  jpeg   no        12  0   300   300  512K  6.2%
   2     1 image    1700  2200  rgb     3   8  image  no        15  0   200   200  1.1M 10.0%
   2     2 smask     100   100  gray    1   8  image  no        15  0   inf   inf  1.2K  1.0%
`

type fakeRunner struct {
	outputs map[string][]byte
	err     error
}

func (f *fakeRunner) Run(_ context.Context, spec runner.Command) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.outputs[spec.Path], nil
}

func TestInspect(t *testing.T) {
	inspector := New(Config{PdfInfoPath: "pdfinfo", PdfImagesPath: "pdfimages"}, &fakeRunner{
		outputs: map[string][]byte{
			"pdfinfo":   []byte(pdfinfoOutput),
			"pdfimages": []byte(pdfimagesOutput),
		},
	})

	pages, err := inspector.Inspect(context.Background(), "scan.pdf")
	require.NoError(t, err)
	require.Len(t, pages, 2)

	first := pages[0]
	assert.Equal(t, 1, first.Index)
	assert.Equal(t, 612.0, first.WidthPt)
	assert.Equal(t, 792.0, first.HeightPt)
	assert.Equal(t, 2550, first.WidthPx)
	assert.Equal(t, 3300, first.HeightPx)
	assert.Equal(t, 300, first.DPI)
	assert.Equal(t, 1, first.Components)
	assert.Equal(t, 8, first.BitsPerComp)
	assert.False(t, first.HasColorImage)

	second := pages[1]
	assert.Equal(t, 2, second.Index)
	assert.InDelta(t, 595.28, second.WidthPt, 1e-9)
	assert.Equal(t, 200, second.DPI)
	assert.True(t, second.HasColorImage)
}

func TestInspectPageWithoutImage(t *testing.T) {
	// Page 2 has no usable image row, so its render DPI is unknown.
	inspector := New(Config{PdfInfoPath: "pdfinfo", PdfImagesPath: "pdfimages"}, &fakeRunner{
		outputs: map[string][]byte{
			"pdfinfo": []byte(pdfinfoOutput),
			"pdfimages": []byte(`page   num  type   width height color comp bpc  enc interp  object ID x-ppi y-ppi size ratio
   1     0 image    2550  3300  gray    1   8  jpeg   no        12  0   300   300  512K  6.2%
`),
		},
	})

	_, err := inspector.Inspect(context.Background(), "scan.pdf")
	assert.ErrorIs(t, err, ErrNoRasterImage)
}

func TestInspectNoPages(t *testing.T) {
	inspector := New(Config{PdfInfoPath: "pdfinfo", PdfImagesPath: "pdfimages"}, &fakeRunner{
		outputs: map[string][]byte{
			"pdfinfo": []byte("Pages: 0\nFile size: 12 bytes\n"),
		},
	})

	_, err := inspector.Inspect(context.Background(), "empty.pdf")
	assert.ErrorIs(t, err, ErrNoPages)
}

func TestParsePageSizesOutOfOrder(t *testing.T) {
	_, err := parsePageSizes("Page    2 size: 612 x 792 pts (letter)\n")
	assert.ErrorIs(t, err, ErrMalformedOutput)
}

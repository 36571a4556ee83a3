package hocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleHOCR = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml">
 <head><title></title></head>
 <body>
  <div class='ocr_page' id='page_1' title='image " "; bbox 0 0 1700 2200; ppageno 0'>
   <div class='ocr_carea' id='block_1_1' title="bbox 150 200 1550 400">
    <p class='ocr_par' title="bbox 150 200 1550 400">
     <span class='ocr_line' id='line_1_1' title="bbox 150 200 1550 280">
      <span class='ocrx_word' id='word_1_1' title='bbox 150 200 400 280; x_wconf 96'>Hello</span>
      <span class='ocrx_word' id='word_1_2' title='bbox 420 200 700 280; x_wconf 91'>world</span>
     </span>
     <span class='ocr_line' id='line_1_2' title="bbox 150 320 900 400">
      <span class='ocrx_word' id='word_1_3' title='bbox 150 320 300 400'>again</span>
      <span class='ocrx_word' id='word_1_4' title='bbox 320 320 320 400; x_wconf 10'></span>
     </span>
    </p>
   </div>
  </div>
 </body>
</html>`

func TestParseWords(t *testing.T) {
	pages, err := Parse([]byte(sampleHOCR))
	require.NoError(t, err)
	require.Len(t, pages, 1)

	page := pages[0]
	assert.Equal(t, 1700, page.WidthPx)
	assert.Equal(t, 2200, page.HeightPx)

	require.Len(t, page.Words, 3)

	first := page.Words[0]
	assert.Equal(t, "Hello", first.Text)
	assert.Equal(t, 150.0, first.X0)
	assert.Equal(t, 200.0, first.Y0)
	assert.Equal(t, 400.0, first.X1)
	assert.Equal(t, 280.0, first.Y1)
	assert.InDelta(t, 0.96, first.Confidence, 1e-9)

	// Document order is preserved.
	assert.Equal(t, "world", page.Words[1].Text)
	assert.Equal(t, "again", page.Words[2].Text)

	// No x_wconf means full confidence.
	assert.Equal(t, 1.0, page.Words[2].Confidence)
}

func TestParseLineFallback(t *testing.T) {
	doc := `<html><body>
	 <div class='ocr_page' title='bbox 0 0 800 600'>
	  <span class='ocr_line' title='bbox 10 20 410 60; x_wconf 80'>whole line of text</span>
	 </div>
	</body></html>`

	pages, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, pages[0].Words, 1)

	line := pages[0].Words[0]
	assert.Equal(t, "whole line of text", line.Text)
	assert.Equal(t, 10.0, line.X0)
	assert.Equal(t, 60.0, line.Y1)
	assert.InDelta(t, 0.80, line.Confidence, 1e-9)
}

func TestParseNoPage(t *testing.T) {
	_, err := Parse([]byte(`<html><body><p>plain html</p></body></html>`))
	assert.ErrorIs(t, err, ErrNoPage)
}

func TestParsePageWithoutBox(t *testing.T) {
	_, err := Parse([]byte(`<html><body><div class='ocr_page'></div></body></html>`))
	assert.ErrorIs(t, err, ErrNoPageBox)
}

func TestParseEmptyPage(t *testing.T) {
	pages, err := Parse([]byte(`<html><body><div class='ocr_page' title='bbox 0 0 100 100'></div></body></html>`))
	require.NoError(t, err)
	assert.Empty(t, pages[0].Words)
}

func TestParseDegenerateBoxSkipped(t *testing.T) {
	doc := `<html><body><div class='ocr_page' title='bbox 0 0 800 600'>
	 <span class='ocrx_word' title='bbox 50 50 50 80'>zero-width</span>
	 <span class='ocrx_word' title='bbox 60 60 120 90'>kept</span>
	</div></body></html>`

	pages, err := Parse([]byte(doc))
	require.NoError(t, err)
	require.Len(t, pages[0].Words, 1)
	assert.Equal(t, "kept", pages[0].Words[0].Text)
}

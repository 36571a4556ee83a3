// Package hocr parses the hOCR documents produced by OCR engines (Tesseract
// writes this format natively) into recognized words with pixel bounding
// boxes. Only the subset of the format the pipeline needs is handled: page
// dimensions, word spans and their confidence, with a fallback to line spans
// for engines that do not emit word-level output.
package hocr

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"ocrpdf/pkg/models"
)

// Page is one ocr_page element with its recognized words in document order.
type Page struct {
	WidthPx  int
	HeightPx int
	Words    []models.RecognizedWord
}

var (
	bboxRe  = regexp.MustCompile(`bbox\s+(\d+)\s+(\d+)\s+(\d+)\s+(\d+)`)
	wconfRe = regexp.MustCompile(`x_wconf\s+(\d+(?:\.\d+)?)`)
)

// Parse reads an hOCR document. Word order is the document order of the
// word spans, which is the engine's reading order.
func Parse(data []byte) ([]Page, error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("hocr: parse: %w", err)
	}

	var pages []Page
	var walkPages func(n *html.Node)
	walkPages = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, "ocr_page") {
			page, err2 := parsePage(n)
			if err2 != nil {
				err = err2
				return
			}
			pages = append(pages, page)
			return // pages do not nest
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walkPages(c)
		}
	}
	walkPages(doc)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("hocr: %w", ErrNoPage)
	}
	return pages, nil
}

func parsePage(pageNode *html.Node) (Page, error) {
	x0, y0, x1, y1, ok := elementBBox(pageNode)
	if !ok {
		return Page{}, fmt.Errorf("hocr: %w", ErrNoPageBox)
	}
	page := Page{WidthPx: int(x1 - x0), HeightPx: int(y1 - y0)}

	// Prefer word spans; fall back to whole lines when the engine emitted
	// no word-level segmentation.
	wordClass := "ocrx_word"
	if !containsClass(pageNode, wordClass) {
		wordClass = "ocr_line"
	}

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && hasClass(n, wordClass) {
			if word, ok := parseWord(n); ok {
				page.Words = append(page.Words, word)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(pageNode)
	return page, nil
}

func parseWord(n *html.Node) (models.RecognizedWord, bool) {
	text := strings.TrimSpace(nodeText(n))
	if text == "" {
		return models.RecognizedWord{}, false
	}
	x0, y0, x1, y1, ok := elementBBox(n)
	if !ok || x1 <= x0 || y1 <= y0 {
		return models.RecognizedWord{}, false
	}

	conf := 1.0
	if m := wconfRe.FindStringSubmatch(attr(n, "title")); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			conf = v / 100.0
		}
	}

	return models.RecognizedWord{
		Text:       text,
		X0:         x0,
		Y0:         y0,
		X1:         x1,
		Y1:         y1,
		Confidence: conf,
	}, true
}

// elementBBox extracts "bbox x0 y0 x1 y1" from the title attribute.
func elementBBox(n *html.Node) (x0, y0, x1, y1 float64, ok bool) {
	m := bboxRe.FindStringSubmatch(attr(n, "title"))
	if m == nil {
		return 0, 0, 0, 0, false
	}
	vals := make([]float64, 4)
	for i := 0; i < 4; i++ {
		v, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return 0, 0, 0, 0, false
		}
		vals[i] = v
	}
	return vals[0], vals[1], vals[2], vals[3], true
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func containsClass(n *html.Node, class string) bool {
	if n.Type == html.ElementNode && hasClass(n, class) {
		return true
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if containsClass(c, class) {
			return true
		}
	}
	return false
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(nodeText(c))
	}
	return b.String()
}

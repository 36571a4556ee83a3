package hocr

import "errors"

var (
	// ErrNoPage is returned when the document contains no ocr_page element.
	ErrNoPage = errors.New("document contains no ocr_page element")

	// ErrNoPageBox is returned when an ocr_page element carries no bbox,
	// leaving the page dimensions unknown.
	ErrNoPageBox = errors.New("ocr_page element has no bounding box")
)

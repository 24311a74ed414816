package domain

// ExtractionMethod records how the text of a page was obtained.
type ExtractionMethod string

const (
	// ExtractionNative means the text came from the PDF text layer.
	ExtractionNative ExtractionMethod = "native"
	// ExtractionOCR means the page was rendered and recognised by an OCR engine.
	ExtractionOCR ExtractionMethod = "ocr"
	// ExtractionNone means no usable text was obtained for the page.
	ExtractionNone ExtractionMethod = "none"
)

// RawPage is the extracted text of a single PDF page.
type RawPage struct {
	Index     int              `json:"index"` // 0-based
	Text      string           `json:"text"`
	Method    ExtractionMethod `json:"method"`
	CharCount int              `json:"char_count"` // after the per-page cap
}

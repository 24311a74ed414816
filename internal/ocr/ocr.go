// Package ocr recognises text on rendered PDF pages.
package ocr

import (
	"context"
	"strings"
)

// Engine recognises the text of one page of a PDF.
// pageIndex is 0-based.
type Engine interface {
	Name() string
	RecognizePage(ctx context.Context, pdf []byte, pageIndex, dpi int) (string, error)
}

// stripFences removes Markdown code fences a model may wrap its answer in.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return strings.Trim(s, "`")
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

package extract

import (
	"bytes"
	"errors"
	"fmt"
	"sync"

	"github.com/dslipak/pdf"
)

// PageSource yields the native text layer of each page. Index is 0-based.
type PageSource interface {
	NumPages() int
	PageText(index int) (string, error)
}

// Opener parses PDF bytes into a PageSource.
type Opener func(data []byte) (PageSource, error)

// OpenPDF is the default Opener, backed by github.com/dslipak/pdf.
// The reader is not safe for concurrent use, so page reads are serialised.
func OpenPDF(data []byte) (src PageSource, err error) {
	defer func() {
		if r := recover(); r != nil {
			src, err = nil, fmt.Errorf("OpenPDF: malformed pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("OpenPDF: %w", err)
	}
	return &pdfSource{r: r}, nil
}

type pdfSource struct {
	mu sync.Mutex
	r  *pdf.Reader
}

func (s *pdfSource) NumPages() (n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if recover() != nil {
			n = 0
		}
	}()
	return s.r.NumPage()
}

func (s *pdfSource) PageText(index int) (text string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("PageText: page %d: malformed content: %v", index+1, r)
		}
	}()

	p := s.r.Page(index + 1)
	if p.V.IsNull() {
		return "", errors.New("PageText: page object missing")
	}
	text, err = p.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("PageText: page %d: %w", index+1, err)
	}
	return text, nil
}

// Package artifacts persists processed documents keyed by document id. Each
// document gets raw.pdf, extracted.json and result.json, optionally gzipped.
// result.json is written last so its presence marks a complete artifact set.
package artifacts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/dvloznov/statement-pipeline/internal/domain"
)

const (
	rawName       = "raw.pdf"
	extractedName = "extracted.json"
	resultName    = "result.json"
	gzSuffix      = ".gz"
)

// ErrNotFound is returned by Load when no result exists for the id.
var ErrNotFound = fmt.Errorf("artifact %w", domain.ErrNotFound)

// Artifact is everything stored for one document.
type Artifact struct {
	Document *domain.CleanedStatementDocument
	PDF      []byte
	Pages    []domain.RawPage
}

// Store persists artifacts.
type Store interface {
	// Has reports whether a complete result exists for the document id.
	Has(ctx context.Context, documentID string) (bool, error)
	// Save writes the artifact and returns a reference to its location.
	Save(ctx context.Context, a Artifact) (string, error)
	// Load reads the stored result, or returns ErrNotFound.
	Load(ctx context.Context, documentID string) (*domain.CleanedStatementDocument, error)
}

// Options control what is written.
type Options struct {
	Gzip bool
	// IncludeTexts keeps page text in extracted.json. When false only page
	// metadata is stored.
	IncludeTexts bool
}

type extractedFile struct {
	DocumentID string           `json:"document_id"`
	Pages      []domain.RawPage `json:"pages"`
}

type encodedFile struct {
	name string
	data []byte
}

// encode renders the three artifact files in write order.
func encode(a Artifact, opts Options) ([]encodedFile, error) {
	if a.Document == nil {
		return nil, errors.New("artifact has no document")
	}

	pages := make([]domain.RawPage, len(a.Pages))
	copy(pages, a.Pages)
	if !opts.IncludeTexts {
		for i := range pages {
			pages[i].Text = ""
		}
	}

	extracted, err := marshal(extractedFile{DocumentID: a.Document.DocumentID, Pages: pages}, opts.Gzip)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", extractedName, err)
	}
	result, err := marshal(a.Document, opts.Gzip)
	if err != nil {
		return nil, fmt.Errorf("encoding %s: %w", resultName, err)
	}

	return []encodedFile{
		{name: rawName, data: a.PDF},
		{name: fileName(extractedName, opts.Gzip), data: extracted},
		{name: fileName(resultName, opts.Gzip), data: result},
	}, nil
}

func fileName(name string, gz bool) string {
	if gz {
		return name + gzSuffix
	}
	return name
}

func marshal(v any, gz bool) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	if !gz {
		return data, nil
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeDocument(data []byte, gz bool) (*domain.CleanedStatementDocument, error) {
	if gz {
		zr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("opening gzip: %w", err)
		}
		defer zr.Close()
		if data, err = io.ReadAll(zr); err != nil {
			return nil, fmt.Errorf("reading gzip: %w", err)
		}
	}

	var doc domain.CleanedStatementDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", resultName, err)
	}
	return &doc, nil
}

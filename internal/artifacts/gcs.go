package artifacts

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/dvloznov/statement-pipeline/internal/domain"
	"github.com/dvloznov/statement-pipeline/internal/gcs"
	"github.com/dvloznov/statement-pipeline/internal/logger"
)

// GCSStore keeps artifacts under gs://<bucket>/<prefix>/<document_id>/.
type GCSStore struct {
	storage gcs.StorageService
	bucket  string
	prefix  string
	opts    Options
}

// NewGCSStore creates a store in bucket under prefix.
func NewGCSStore(storage gcs.StorageService, bucket, prefix string, opts Options) *GCSStore {
	return &GCSStore{storage: storage, bucket: bucket, prefix: prefix, opts: opts}
}

func (s *GCSStore) object(documentID, name string) string {
	return path.Join(s.prefix, documentID, name)
}

// Has implements Store.
func (s *GCSStore) Has(ctx context.Context, documentID string) (bool, error) {
	for _, gz := range []bool{false, true} {
		ok, err := s.storage.Exists(ctx, s.bucket, s.object(documentID, fileName(resultName, gz)))
		if err != nil {
			return false, fmt.Errorf("Has: %w", err)
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// Save implements Store and returns the gs:// URI of the document folder.
func (s *GCSStore) Save(ctx context.Context, a Artifact) (string, error) {
	files, err := encode(a, s.opts)
	if err != nil {
		return "", fmt.Errorf("Save: %w", err)
	}

	for _, f := range files {
		contentType := "application/json"
		switch {
		case f.name == rawName:
			contentType = "application/pdf"
		case s.opts.Gzip:
			contentType = "application/gzip"
		}
		if err := s.storage.Write(ctx, s.bucket, s.object(a.Document.DocumentID, f.name), f.data, contentType); err != nil {
			return "", fmt.Errorf("Save: %w", err)
		}
	}

	ref := gcs.URI(s.bucket, s.object(a.Document.DocumentID, ""))
	log := logger.FromContext(ctx)
	log.Debug().
		Str("document_id", a.Document.DocumentID).
		Str("ref", ref).
		Msg("Saved artifacts")
	return ref, nil
}

// Load implements Store.
func (s *GCSStore) Load(ctx context.Context, documentID string) (*domain.CleanedStatementDocument, error) {
	for _, gz := range []bool{false, true} {
		data, err := s.storage.Read(ctx, s.bucket, s.object(documentID, fileName(resultName, gz)))
		if errors.Is(err, gcs.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("Load: %w", err)
		}
		doc, err := decodeDocument(data, gz)
		if err != nil {
			return nil, fmt.Errorf("Load: %w", err)
		}
		return doc, nil
	}
	return nil, fmt.Errorf("Load: %s: %w", documentID, ErrNotFound)
}

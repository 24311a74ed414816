package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/dvloznov/statement-pipeline/internal/domain"
	"github.com/dvloznov/statement-pipeline/internal/logger"
)

// LocalStore keeps artifacts under <dir>/<document_id>/.
type LocalStore struct {
	dir  string
	opts Options
}

// NewLocalStore creates a store rooted at dir. The directory is created on
// first save.
func NewLocalStore(dir string, opts Options) *LocalStore {
	return &LocalStore{dir: dir, opts: opts}
}

// Has implements Store.
func (s *LocalStore) Has(ctx context.Context, documentID string) (bool, error) {
	for _, gz := range []bool{false, true} {
		_, err := os.Stat(filepath.Join(s.dir, documentID, fileName(resultName, gz)))
		switch {
		case err == nil:
			return true, nil
		case !errors.Is(err, fs.ErrNotExist):
			return false, fmt.Errorf("Has: %w", err)
		}
	}
	return false, nil
}

// Save implements Store. Every file is written atomically.
func (s *LocalStore) Save(ctx context.Context, a Artifact) (string, error) {
	files, err := encode(a, s.opts)
	if err != nil {
		return "", fmt.Errorf("Save: %w", err)
	}

	dir := filepath.Join(s.dir, a.Document.DocumentID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("Save: creating %s: %w", dir, err)
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("Save: %w", err)
		}
		if err := writeAtomic(filepath.Join(dir, f.name), f.data); err != nil {
			return "", fmt.Errorf("Save: %w", err)
		}
	}

	log := logger.FromContext(ctx)
	log.Debug().
		Str("document_id", a.Document.DocumentID).
		Str("dir", dir).
		Msg("Saved artifacts")

	return dir, nil
}

// Load implements Store.
func (s *LocalStore) Load(ctx context.Context, documentID string) (*domain.CleanedStatementDocument, error) {
	for _, gz := range []bool{false, true} {
		data, err := os.ReadFile(filepath.Join(s.dir, documentID, fileName(resultName, gz)))
		if errors.Is(err, fs.ErrNotExist) {
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

// writeAtomic writes to a temp file in the target directory and renames it
// into place.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("creating temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}

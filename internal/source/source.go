// Package source resolves statement inputs given as local paths, directories
// or gs:// URIs into PDF bytes.
package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dvloznov/statement-pipeline/internal/domain"
	"github.com/dvloznov/statement-pipeline/internal/gcs"
)

// Input is one fetched statement file.
type Input struct {
	Ref      string // path or URI as given
	Filename string
	Data     []byte
}

// Reader fetches inputs. storage may be nil, in which case gs:// URIs fail.
type Reader struct {
	storage gcs.StorageService
}

// NewReader creates a Reader.
func NewReader(storage gcs.StorageService) *Reader {
	return &Reader{storage: storage}
}

// Read fetches a single input. Missing files and objects wrap domain.ErrNotFound.
func (r *Reader) Read(ctx context.Context, ref string) (*Input, error) {
	if gcs.IsURI(ref) {
		if r.storage == nil {
			return nil, fmt.Errorf("Read: %s: no storage client configured", ref)
		}
		data, err := gcs.Fetch(ctx, r.storage, ref)
		if errors.Is(err, gcs.ErrNotFound) {
			return nil, fmt.Errorf("Read: %s: %w", ref, domain.ErrNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("Read: %w", err)
		}
		return &Input{Ref: ref, Filename: gcs.FilenameFromURI(ref), Data: data}, nil
	}

	data, err := os.ReadFile(ref)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("Read: %s: %w", ref, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("Read: %w", err)
	}
	return &Input{Ref: ref, Filename: filepath.Base(ref), Data: data}, nil
}

// Expand replaces every local directory in refs with the PDF files directly
// inside it, sorted by name. Other refs, including missing paths, are kept
// as given so that Read can report them.
func Expand(refs []string) ([]string, error) {
	var out []string
	for _, ref := range refs {
		if gcs.IsURI(ref) {
			out = append(out, ref)
			continue
		}
		info, err := os.Stat(ref)
		if err != nil || !info.IsDir() {
			out = append(out, ref)
			continue
		}
		files, err := PDFsIn(ref)
		if err != nil {
			return nil, err
		}
		out = append(out, files...)
	}
	return out, nil
}

// PDFsIn lists the .pdf files in dir, sorted by name.
func PDFsIn(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("PDFsIn: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

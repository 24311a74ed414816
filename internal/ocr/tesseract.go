package ocr

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// runFunc executes a command and returns its stdout.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Tesseract renders a page with poppler's pdftoppm and recognises it with the
// tesseract CLI. Both binaries must be on PATH or configured explicitly.
type Tesseract struct {
	PdftoppmPath  string
	TesseractPath string
	Langs         string
	OEM           int
	PSM           int

	run runFunc
}

// NewTesseract returns an engine using the given binaries and settings.
func NewTesseract(pdftoppmPath, tesseractPath, langs string, oem, psm int) *Tesseract {
	return &Tesseract{
		PdftoppmPath:  pdftoppmPath,
		TesseractPath: tesseractPath,
		Langs:         langs,
		OEM:           oem,
		PSM:           psm,
		run:           runCommand,
	}
}

// Name implements Engine.
func (t *Tesseract) Name() string { return "tesseract" }

// RecognizePage implements Engine.
func (t *Tesseract) RecognizePage(ctx context.Context, pdf []byte, pageIndex, dpi int) (string, error) {
	dir, err := os.MkdirTemp("", "stmt-ocr-*")
	if err != nil {
		return "", fmt.Errorf("RecognizePage: creating temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	pdfPath := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(pdfPath, pdf, 0o600); err != nil {
		return "", fmt.Errorf("RecognizePage: writing pdf: %w", err)
	}

	page := strconv.Itoa(pageIndex + 1)
	root := filepath.Join(dir, "page")
	if _, err := t.run(ctx, t.PdftoppmPath,
		"-f", page, "-l", page,
		"-r", strconv.Itoa(dpi),
		"-gray", "-png", "-singlefile",
		pdfPath, root,
	); err != nil {
		return "", fmt.Errorf("RecognizePage: rendering page %s: %w", page, err)
	}

	out, err := t.run(ctx, t.TesseractPath,
		root+".png", "stdout",
		"-l", t.Langs,
		"--oem", strconv.Itoa(t.OEM),
		"--psm", strconv.Itoa(t.PSM),
	)
	if err != nil {
		return "", fmt.Errorf("RecognizePage: recognising page %s: %w", page, err)
	}

	return strings.TrimRight(string(out), "\f\n "), nil
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 500 {
			msg = msg[:500]
		}
		return nil, fmt.Errorf("%s: %w: %s", filepath.Base(name), err, msg)
	}
	return stdout.Bytes(), nil
}

var _ Engine = (*Tesseract)(nil)

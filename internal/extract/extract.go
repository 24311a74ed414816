// Package extract turns PDF bytes into ordered per-page text, reading the
// native text layer first and falling back to OCR for pages that yield too
// little. All resource caps are applied here.
package extract

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dvloznov/statement-pipeline/internal/domain"
	"github.com/dvloznov/statement-pipeline/internal/logger"
	"github.com/dvloznov/statement-pipeline/internal/ocr"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Options are the extraction caps and OCR settings. They are expected to be
// validated already.
type Options struct {
	MaxPages        int
	MaxCharsPerPage int
	// MinNativeChars is the shortest trimmed native text accepted without
	// trying OCR.
	MinNativeChars int

	OCREnabled       bool
	OCRMaxPages      int
	OCRDPI           int
	OCRMaxConcurrent int

	// Workers bounds concurrent page extraction.
	Workers int
}

// Result is the ordered page set plus the warnings raised while producing it.
type Result struct {
	Pages      []domain.RawPage
	TotalPages int // pages in the file, before the cap
	Warnings   []domain.Warning
}

// Extractor extracts page text. It is safe for concurrent use.
type Extractor struct {
	open   Opener
	engine ocr.Engine
	opts   Options
}

// New creates an Extractor. engine may be nil, which disables OCR.
func New(open Opener, engine ocr.Engine, opts Options) *Extractor {
	if open == nil {
		open = OpenPDF
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.OCRMaxConcurrent <= 0 {
		opts.OCRMaxConcurrent = 1
	}
	return &Extractor{open: open, engine: engine, opts: opts}
}

type pageOutcome struct {
	page     domain.RawPage
	warnings []domain.Warning
}

// Extract returns at most MaxPages pages in page order. A container that
// cannot be opened, or has no pages, fails with domain.ErrCorruptDocument.
// Individual page failures only produce warnings.
func (e *Extractor) Extract(ctx context.Context, data []byte) (*Result, error) {
	log := logger.FromContext(ctx)

	src, err := e.open(data)
	if err != nil {
		return nil, fmt.Errorf("Extract: %w: %w", domain.ErrCorruptDocument, err)
	}

	total := src.NumPages()
	if total <= 0 {
		return nil, fmt.Errorf("Extract: %w: no pages", domain.ErrCorruptDocument)
	}

	n := total
	var warnings []domain.Warning
	if total > e.opts.MaxPages {
		n = e.opts.MaxPages
		warnings = append(warnings, domain.NewWarning(domain.WarnPageCapExceeded,
			"document has %d pages, only the first %d were extracted", total, n))
	}

	outcomes := make([]pageOutcome, n)
	ocrSlots := semaphore.NewWeighted(int64(e.opts.OCRMaxConcurrent))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := e.extractPage(gctx, src, data, i, ocrSlots)
			if err != nil {
				return err
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("Extract: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("Extract: %w", err)
	}

	res := &Result{Pages: make([]domain.RawPage, n), TotalPages: total}
	counts := map[domain.ExtractionMethod]int{}
	for i, out := range outcomes {
		res.Pages[i] = out.page
		counts[out.page.Method]++
		warnings = append(warnings, out.warnings...)
	}
	res.Warnings = warnings

	log.Debug().
		Int("pages", n).
		Int("total_pages", total).
		Int("native", counts[domain.ExtractionNative]).
		Int("ocr", counts[domain.ExtractionOCR]).
		Int("none", counts[domain.ExtractionNone]).
		Msg("Extracted pages")

	return res, nil
}

// extractPage only returns an error when the context is done.
func (e *Extractor) extractPage(ctx context.Context, src PageSource, data []byte, i int, ocrSlots *semaphore.Weighted) (pageOutcome, error) {
	log := logger.FromContext(ctx)
	out := pageOutcome{page: domain.RawPage{Index: i, Method: domain.ExtractionNone}}

	native, nativeErr := src.PageText(i)
	if nativeErr != nil {
		log.Warn().Err(nativeErr).Int("page", i+1).Msg("Native text extraction failed")
	}
	trimmed := strings.TrimSpace(native)

	if nativeErr == nil && trimmed != "" && utf8.RuneCountInString(trimmed) >= e.opts.MinNativeChars {
		out.page.Method = domain.ExtractionNative
		e.setText(&out, native)
		return out, nil
	}

	if e.opts.OCREnabled && e.engine != nil && i < e.opts.OCRMaxPages {
		if err := ocrSlots.Acquire(ctx, 1); err != nil {
			return out, err
		}
		start := time.Now()
		text, err := e.engine.RecognizePage(ctx, data, i, e.opts.OCRDPI)
		ocrSlots.Release(1)

		if ctxErr := ctx.Err(); ctxErr != nil {
			return out, ctxErr
		}

		switch {
		case err != nil:
			log.Warn().Err(err).Int("page", i+1).Str("engine", e.engine.Name()).Msg("OCR failed")
			out.warnings = append(out.warnings, domain.PageWarning(domain.WarnExtractionFailed, i, "ocr failed: %v", err))
		case utf8.RuneCountInString(strings.TrimSpace(text)) > utf8.RuneCountInString(trimmed):
			log.Debug().Int("page", i+1).Dur("duration", time.Since(start)).Msg("OCR fallback used")
			out.page.Method = domain.ExtractionOCR
			out.warnings = append(out.warnings, domain.PageWarning(domain.WarnOCRFallback, i,
				"native text had %d characters, used %s", utf8.RuneCountInString(trimmed), e.engine.Name()))
			e.setText(&out, text)
			return out, nil
		case trimmed == "":
			out.warnings = append(out.warnings, domain.PageWarning(domain.WarnExtractionFailed, i, "ocr returned no text"))
		}
	} else if trimmed == "" && nativeErr == nil {
		out.warnings = append(out.warnings, domain.PageWarning(domain.WarnOCRSkipped, i,
			"no native text and OCR not available for this page"))
	}

	if nativeErr != nil {
		out.warnings = append(out.warnings, domain.PageWarning(domain.WarnExtractionFailed, i, "%v", nativeErr))
		return out, nil
	}
	if trimmed != "" {
		out.page.Method = domain.ExtractionNative
		e.setText(&out, native)
	}
	return out, nil
}

// setText stores text on the page, applying the per-page character cap.
func (e *Extractor) setText(out *pageOutcome, text string) {
	count := utf8.RuneCountInString(text)
	if count > e.opts.MaxCharsPerPage {
		text = truncateRunes(text, e.opts.MaxCharsPerPage)
		out.warnings = append(out.warnings, domain.PageWarning(domain.WarnTruncated, out.page.Index,
			"text truncated from %d to %d characters", count, e.opts.MaxCharsPerPage))
		count = e.opts.MaxCharsPerPage
	}
	out.page.Text = text
	out.page.CharCount = count
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

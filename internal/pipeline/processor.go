package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/statement-pipeline/internal/artifacts"
	"github.com/dvloznov/statement-pipeline/internal/document"
	"github.com/dvloznov/statement-pipeline/internal/domain"
	"github.com/dvloznov/statement-pipeline/internal/extract"
	"github.com/dvloznov/statement-pipeline/internal/logger"
	"github.com/dvloznov/statement-pipeline/internal/metrics"
	"github.com/dvloznov/statement-pipeline/internal/redact"
	"github.com/dvloznov/statement-pipeline/internal/statement"
)

// Extractor turns PDF bytes into pages.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (*extract.Result, error)
}

// Classifier detects bank and currency from pages.
type Classifier interface {
	Classify(pages []domain.RawPage) (domain.Classification, []domain.Warning)
}

// Dispatcher picks and runs a statement parser for a bank id.
type Dispatcher interface {
	Parse(ctx context.Context, bank string, pages []domain.RawPage, currency string) (*statement.Parsed, error)
}

// Repository receives finished documents.
type Repository interface {
	SaveStatement(ctx context.Context, ownerID string, doc *domain.CleanedStatementDocument) error
}

// RunTracker records one parsing run per processed document.
type RunTracker interface {
	StartParsingRun(ctx context.Context, documentID string) (string, error)
	MarkParsingRunSucceeded(ctx context.Context, parsingRunID string) error
	MarkParsingRunFailed(ctx context.Context, parsingRunID string, parseErr error)
}

// Options control a Processor.
type Options struct {
	// DocumentTimeout bounds the whole pipeline for one document. Zero means no limit.
	DocumentTimeout time.Duration
	MaskPII         bool
	// Reprocess ignores results already in the artifact store.
	Reprocess bool
	OwnerID   string
}

// Processor runs the statement pipeline for single documents. It is safe for
// concurrent use when its collaborators are.
type Processor struct {
	extractor  Extractor
	classifier Classifier
	parsers    Dispatcher

	store   artifacts.Store
	repo    Repository
	runs    RunTracker
	metrics *metrics.Metrics

	opts Options
}

// Option configures optional Processor collaborators.
type Option func(*Processor)

// WithArtifactStore enables artifact persistence and the result cache.
func WithArtifactStore(s artifacts.Store) Option {
	return func(p *Processor) { p.store = s }
}

// WithRepository publishes every document to repo.
func WithRepository(repo Repository) Option {
	return func(p *Processor) { p.repo = repo }
}

// WithRunTracker records parsing runs.
func WithRunTracker(runs RunTracker) Option {
	return func(p *Processor) { p.runs = runs }
}

// WithMetrics records Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Processor) { p.metrics = m }
}

// NewProcessor creates a Processor.
func NewProcessor(extractor Extractor, classifier Classifier, parsers Dispatcher, opts Options, options ...Option) *Processor {
	p := &Processor{
		extractor:  extractor,
		classifier: classifier,
		parsers:    parsers,
		opts:       opts,
	}
	for _, o := range options {
		o(p)
	}
	return p
}

// pipeline builds the step chain for the configured collaborators.
func (p *Processor) pipeline() *Pipeline {
	steps := []PipelineStep{
		&ExtractStep{Extractor: p.extractor},
		&ClassifyStep{Classifier: p.classifier},
		&ParseStep{Parsers: p.parsers},
	}
	if p.opts.MaskPII {
		steps = append(steps, &RedactStep{Masker: redact.Masker{}})
	}
	steps = append(steps,
		&DetectDuplicatesStep{},
		&ReconcileStep{},
		&AssembleStep{},
	)
	if p.repo != nil {
		steps = append(steps, &PublishStep{Repository: p.repo, OwnerID: p.opts.OwnerID})
	}
	// Persist must stay last: a stored result is a cache hit on the next run.
	if p.store != nil {
		steps = append(steps, &PersistStep{Store: p.store})
	}
	return NewPipeline(steps...).WithMetrics(p.metrics)
}

// Process runs the pipeline on one PDF. When the document deadline passes the
// error wraps domain.ErrTimeout and no document is returned.
func (p *Processor) Process(ctx context.Context, filename string, pdf []byte) (*domain.CleanedStatementDocument, error) {
	documentID := document.ID(pdf)
	log := logger.FromContext(ctx).With().
		Str("document_id", documentID).
		Str("file", filename).
		Logger()
	ctx = logger.WithContext(ctx, log)

	if p.store != nil && !p.opts.Reprocess {
		doc, err := p.cached(ctx, documentID)
		if err != nil {
			return nil, err
		}
		if doc != nil {
			log.Info().Msg("Cache hit")
			p.metrics.DocumentProcessed("cached")
			return doc, nil
		}
	}

	if p.opts.DocumentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.DocumentTimeout)
		defer cancel()
	}

	var runID string
	if p.runs != nil {
		id, err := p.runs.StartParsingRun(ctx, documentID)
		if err != nil {
			return nil, fmt.Errorf("Process: starting parsing run: %w", err)
		}
		runID = id
	}

	state := &PipelineState{Filename: filename, PDFBytes: pdf, DocumentID: documentID}
	err := p.pipeline().Execute(ctx, state)
	if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)) {
		err = fmt.Errorf("Process: %w after %s: %w", domain.ErrTimeout, p.opts.DocumentTimeout, err)
	}
	if err != nil {
		if p.runs != nil {
			p.runs.MarkParsingRunFailed(context.WithoutCancel(ctx), runID, err)
		}
		log.Error().Err(err).Msg("Statement processing failed")
		p.metrics.DocumentProcessed(outcomeLabel(err))
		return nil, err
	}

	if p.runs != nil {
		if err := p.runs.MarkParsingRunSucceeded(ctx, runID); err != nil {
			log.Warn().Err(err).Str("parsing_run_id", runID).Msg("Failed to mark parsing run succeeded")
		}
	}

	p.record(state)
	doc := state.Document
	for _, w := range doc.Warnings {
		log.Warn().Str("warning", w).Msg("Document warning")
	}
	log.Info().
		Str("bank", doc.Bank).
		Str("parser", doc.Parser).
		Int("pages", doc.PageCount).
		Int("transactions", doc.TransactionCount()).
		Bool("balance_check_passed", doc.BalanceCheckPassed).
		Msg("Processed statement")

	return doc, nil
}

// cached returns the stored document for id, or nil when none exists.
func (p *Processor) cached(ctx context.Context, documentID string) (*domain.CleanedStatementDocument, error) {
	ok, err := p.store.Has(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("Process: checking artifact store: %w", err)
	}
	if !ok {
		return nil, nil
	}
	doc, err := p.store.Load(ctx, documentID)
	if errors.Is(err, artifacts.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("Process: loading cached result: %w", err)
	}
	return doc, nil
}

func (p *Processor) record(state *PipelineState) {
	if p.metrics == nil {
		return
	}
	p.metrics.DocumentProcessed("ok")
	for _, page := range state.Extraction.Pages {
		p.metrics.PageExtracted(string(page.Method))
	}
	p.metrics.Reconciled(state.Reconciliation.Passed)
	for _, w := range state.Warnings {
		p.metrics.Warning(string(w.Code))
	}
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrCorruptDocument):
		return "corrupt_document"
	case errors.Is(err, domain.ErrHeaderNotFound):
		return "header_not_found"
	case errors.Is(err, domain.ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}

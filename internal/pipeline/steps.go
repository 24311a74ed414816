package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/statement-pipeline/internal/artifacts"
	"github.com/dvloznov/statement-pipeline/internal/document"
	"github.com/dvloznov/statement-pipeline/internal/domain"
	"github.com/dvloznov/statement-pipeline/internal/extract"
	"github.com/dvloznov/statement-pipeline/internal/logger"
	"github.com/dvloznov/statement-pipeline/internal/metrics"
	"github.com/dvloznov/statement-pipeline/internal/money"
	"github.com/dvloznov/statement-pipeline/internal/reconcile"
	"github.com/dvloznov/statement-pipeline/internal/redact"
)

// PipelineStep represents a single step in the statement pipeline.
type PipelineStep interface {
	Name() string
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Filename   string
	PDFBytes   []byte
	DocumentID string

	Extraction     *extract.Result
	Classification domain.Classification
	ParserName     string
	Header         domain.AccountHeader
	Transactions   []domain.TransactionRecord
	Reconciliation domain.Reconciliation
	Warnings       []domain.Warning

	Document    *domain.CleanedStatementDocument
	ArtifactRef string
}

// Step 1: ExtractStep reads page text from the PDF.
type ExtractStep struct {
	Extractor Extractor
}

func (s *ExtractStep) Name() string { return "extract" }

func (s *ExtractStep) Execute(ctx context.Context, state *PipelineState) error {
	res, err := s.Extractor.Extract(ctx, state.PDFBytes)
	if err != nil {
		return err
	}
	state.Extraction = res
	state.Warnings = append(state.Warnings, res.Warnings...)
	return nil
}

// Step 2: ClassifyStep detects the bank and currency.
type ClassifyStep struct {
	Classifier Classifier
}

func (s *ClassifyStep) Name() string { return "classify" }

func (s *ClassifyStep) Execute(ctx context.Context, state *PipelineState) error {
	c, warnings := s.Classifier.Classify(state.Extraction.Pages)
	state.Classification = c
	state.Warnings = append(state.Warnings, warnings...)

	log := logger.FromContext(ctx)
	log.Debug().
		Str("bank", c.Bank).
		Str("currency", c.Currency).
		Strs("anchors", c.Anchors).
		Msg("Classified statement")
	return nil
}

// Step 3: ParseStep runs the parser registered for the detected bank.
type ParseStep struct {
	Parsers Dispatcher
}

func (s *ParseStep) Name() string { return "parse" }

func (s *ParseStep) Execute(ctx context.Context, state *PipelineState) error {
	parsed, err := s.Parsers.Parse(ctx, state.Classification.Bank, state.Extraction.Pages, state.Classification.Currency)
	if err != nil {
		return err
	}
	state.ParserName = parsed.Parser
	state.Header = parsed.Header
	state.Transactions = parsed.Transactions
	state.Warnings = append(state.Warnings, parsed.Warnings...)
	return nil
}

// Step 4: RedactStep masks account identifiers in the header and descriptions.
type RedactStep struct {
	Masker redact.Masker
}

func (s *RedactStep) Name() string { return "redact" }

func (s *RedactStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Header, state.Transactions = s.Masker.Statement(state.Header, state.Transactions)
	return nil
}

// Step 5: DetectDuplicatesStep flags rows that repeat an earlier row.
type DetectDuplicatesStep struct{}

func (s *DetectDuplicatesStep) Name() string { return "detect_duplicates" }

func (s *DetectDuplicatesStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Warnings = append(state.Warnings, detectDuplicates(state.Transactions, state.Header.Currency)...)
	return nil
}

// detectDuplicates keys rows on date, lowercased description, absolute
// amount and currency. Every repeat after the first is reported.
func detectDuplicates(txs []domain.TransactionRecord, currency string) []domain.Warning {
	var warnings []domain.Warning
	seen := make(map[string]int, len(txs))
	for i, tx := range txs {
		amount := tx.AmountMinor
		if amount < 0 {
			amount = -amount
		}
		key := fmt.Sprintf("%s|%s|%d|%s", tx.ValueDate, strings.ToLower(strings.TrimSpace(tx.Description)), amount, currency)
		first, ok := seen[key]
		if !ok {
			seen[key] = i
			continue
		}
		warnings = append(warnings, domain.RowWarning(domain.WarnPossibleDuplicate, tx.PageIndex, tx.RowIndex,
			"transaction %d repeats transaction %d (%s %s)", i, first, tx.ValueDate, money.Format(amount, currency)))
	}
	return warnings
}

// Step 6: ReconcileStep replays the transactions against the declared balances.
type ReconcileStep struct{}

func (s *ReconcileStep) Name() string { return "reconcile" }

func (s *ReconcileStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Reconciliation = reconcile.Reconcile(state.Header.OpeningBalance, state.Transactions, state.Header.ClosingBalance)
	if !state.Reconciliation.Passed {
		log := logger.FromContext(ctx)
		log.Info().
			Int("first_mismatch_index", *state.Reconciliation.FirstMismatchIndex).
			Int64("difference_minor", state.Reconciliation.Difference).
			Msg("Balance check failed")
	}
	return nil
}

// Step 7: AssembleStep builds the final document.
type AssembleStep struct{}

func (s *AssembleStep) Name() string { return "assemble" }

func (s *AssembleStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Document = document.Assemble(document.Input{
		DocumentID:     state.DocumentID,
		SourceFilename: state.Filename,
		PageCount:      len(state.Extraction.Pages),
		Classification: state.Classification,
		Parser:         state.ParserName,
		Header:         state.Header,
		Transactions:   state.Transactions,
		Reconciliation: state.Reconciliation,
		Warnings:       state.Warnings,
	})
	return nil
}

// Step 8: PublishStep hands the document to the downstream repository.
type PublishStep struct {
	Repository Repository
	OwnerID    string
}

func (s *PublishStep) Name() string { return "publish" }

func (s *PublishStep) Execute(ctx context.Context, state *PipelineState) error {
	if err := s.Repository.SaveStatement(ctx, s.OwnerID, state.Document); err != nil {
		return fmt.Errorf("publishing statement: %w", err)
	}
	return nil
}

// Step 9: PersistStep writes the artifact set. It runs last.
type PersistStep struct {
	Store artifacts.Store
}

func (s *PersistStep) Name() string { return "persist" }

func (s *PersistStep) Execute(ctx context.Context, state *PipelineState) error {
	ref, err := s.Store.Save(ctx, artifacts.Artifact{
		Document: state.Document,
		PDF:      state.PDFBytes,
		Pages:    state.Extraction.Pages,
	})
	if err != nil {
		return fmt.Errorf("saving artifacts: %w", err)
	}
	state.ArtifactRef = ref
	log := logger.FromContext(ctx)
	log.Debug().Str("ref", ref).Msg("Saved artifacts")
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps   []PipelineStep
	metrics *metrics.Metrics
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// WithMetrics records a duration observation per step.
func (p *Pipeline) WithMetrics(m *metrics.Metrics) *Pipeline {
	p.metrics = m
	return p
}

// Steps returns the step names in execution order.
func (p *Pipeline) Steps() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name()
	}
	return names
}

// Execute runs all steps in the pipeline sequentially. No step starts once
// ctx is done.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
		start := time.Now()
		err := step.Execute(ctx, state)
		p.metrics.ObserveStage(step.Name(), time.Since(start))
		if err != nil {
			return fmt.Errorf("pipeline step %d (%s) failed: %w", i+1, step.Name(), err)
		}
	}
	return nil
}

// Package statement turns extracted page text into an account header and an
// ordered list of transactions. Each supported bank family has a Parser; the
// Registry picks one by classified bank and falls back to the generic parser.
package statement

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/statement-pipeline/internal/domain"
	"github.com/dvloznov/statement-pipeline/internal/logger"
)

// Parser is one bank-family parsing strategy.
type Parser interface {
	// Name identifies the strategy, e.g. "generic" or "opay".
	Name() string
	// Parse reads the pages in order. currency is the classified currency and
	// may be empty. It fails with domain.ErrHeaderNotFound when neither the
	// opening nor the closing balance can be located or derived.
	Parse(ctx context.Context, pages []domain.RawPage, currency string) (*Parsed, error)
}

// Parsed is the output of a Parser.
type Parsed struct {
	Parser       string
	Header       domain.AccountHeader
	Transactions []domain.TransactionRecord
	Warnings     []domain.Warning
}

// Registry maps bank identifiers to parsers.
type Registry struct {
	parsers  map[string]Parser
	fallback Parser
}

// NewRegistry creates a Registry that uses fallback for unknown banks.
func NewRegistry(fallback Parser) *Registry {
	return &Registry{
		parsers:  make(map[string]Parser),
		fallback: fallback,
	}
}

// Register associates p with each bank id. It panics if a bank is already
// registered.
func (r *Registry) Register(p Parser, banks ...string) {
	for _, bank := range banks {
		key := strings.ToUpper(bank)
		if _, exists := r.parsers[key]; exists {
			panic(fmt.Sprintf("statement: parser for bank %q already registered", bank))
		}
		r.parsers[key] = p
	}
}

// Get returns the parser registered for bank. ok is false when the fallback
// parser was returned instead.
func (r *Registry) Get(bank string) (Parser, bool) {
	if p, found := r.parsers[strings.ToUpper(bank)]; found {
		return p, true
	}
	return r.fallback, false
}

// Banks lists the registered bank ids in sorted order.
func (r *Registry) Banks() []string {
	banks := make([]string, 0, len(r.parsers))
	for bank := range r.parsers {
		banks = append(banks, bank)
	}
	sort.Strings(banks)
	return banks
}

// Parse dispatches to the parser for bank. When the bank has no parser, or
// its parser finds no transactions, the generic fallback is used and a
// parser_fallback warning is added.
func (r *Registry) Parse(ctx context.Context, bank string, pages []domain.RawPage, currency string) (*Parsed, error) {
	log := logger.FromContext(ctx)

	p, found := r.Get(bank)
	if !found {
		res, err := r.fallback.Parse(ctx, pages, currency)
		if err != nil {
			return nil, err
		}
		if bank != "" && !strings.EqualFold(bank, domain.BankGeneric) {
			res.Warnings = append([]domain.Warning{domain.NewWarning(domain.WarnParserFallback,
				"no parser registered for bank %s, used %s", bank, r.fallback.Name())}, res.Warnings...)
		}
		return res, nil
	}

	res, err := p.Parse(ctx, pages, currency)
	if err == nil && len(res.Transactions) > 0 {
		return res, nil
	}
	if err != nil {
		log.Warn().Err(err).Str("parser", p.Name()).Msg("Bank parser failed, trying fallback")
	}

	alt, altErr := r.fallback.Parse(ctx, pages, currency)
	switch {
	case altErr != nil && err != nil:
		return nil, err
	case altErr != nil:
		return res, nil
	case err == nil && len(alt.Transactions) == 0:
		return res, nil
	}
	alt.Warnings = append([]domain.Warning{domain.NewWarning(domain.WarnParserFallback,
		"%s parser found no transactions, used %s", p.Name(), r.fallback.Name())}, alt.Warnings...)
	return alt, nil
}

// DefaultRegistry returns a registry with every built-in strategy.
func DefaultRegistry() *Registry {
	r := NewRegistry(NewGeneric())
	r.Register(NewNigeria(),
		"ACCESS_BANK", "GTBANK", "ZENITH", "FIRST_BANK", "UBA", "POLARIS",
		"UNION_BANK", "STERLING", "FIDELITY", "ECOBANK", "KEYSTONE", "FCMB",
		"STANBIC_IBTC")
	r.Register(NewOPay(), "OPAY")
	return r
}

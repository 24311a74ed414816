// Package report renders processed statements for people and downstream tools:
// one JSON line per input file for batch runs, and CSV or XLSX transaction
// exports for a single document.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/dvloznov/statement-pipeline/internal/domain"
)

// Summary is the per-file line written for a successfully processed document.
type Summary struct {
	File               string `json:"file"`
	DocumentID         string `json:"document_id"`
	Pages              int    `json:"pages"`
	Bank               string `json:"bank"`
	Currency           string `json:"currency"`
	Transactions       int    `json:"transactions"`
	BalanceCheckPassed bool   `json:"balance_check_passed"`
	Warnings           int    `json:"warnings,omitempty"`
}

// Failure is the per-file line written when a document could not be processed.
type Failure struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

// NewSummary builds the summary line for doc.
func NewSummary(file string, doc *domain.CleanedStatementDocument) Summary {
	return Summary{
		File:               file,
		DocumentID:         doc.DocumentID,
		Pages:              doc.PageCount,
		Bank:               doc.Bank,
		Currency:           doc.Currency,
		Transactions:       doc.TransactionCount(),
		BalanceCheckPassed: doc.BalanceCheckPassed,
		Warnings:           len(doc.Warnings),
	}
}

// NewFailure builds the failure line for err, using the short error label.
func NewFailure(file string, err error) Failure {
	return Failure{File: file, Error: domain.ErrorLabel(err)}
}

// WriteJSONLines writes each item as one compact JSON object per line.
func WriteJSONLines(w io.Writer, items ...any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for i, item := range items {
		if err := enc.Encode(item); err != nil {
			return fmt.Errorf("WriteJSONLines: encoding item %d: %w", i, err)
		}
	}
	return nil
}

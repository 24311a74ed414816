// Package document composes the final CleanedStatementDocument.
package document

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/dvloznov/statement-pipeline/internal/domain"
)

// ID derives the document id from the PDF bytes, so identical uploads get
// identical ids.
func ID(pdf []byte) string {
	sum := sha256.Sum256(pdf)
	return hex.EncodeToString(sum[:])
}

// TransactionID derives a stable id for a transaction from its content and
// provenance.
func TransactionID(documentID, accountNumber string, tx domain.TransactionRecord) string {
	key := fmt.Sprintf("%s|%s|%s|%s|%d|%d|%d",
		documentID,
		accountNumber,
		tx.ValueDate.String(),
		strings.ToLower(strings.TrimSpace(tx.Description)),
		tx.AmountMinor,
		tx.PageIndex,
		tx.RowIndex,
	)
	sum := sha1.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

// Input is everything the assembler needs. Warnings are kept in the order given.
type Input struct {
	DocumentID     string
	SourceFilename string
	PageCount      int
	Classification domain.Classification
	Parser         string
	Header         domain.AccountHeader
	Transactions   []domain.TransactionRecord
	Reconciliation domain.Reconciliation
	Warnings       []domain.Warning
}

// Assemble builds the document. It performs no validation and shares no
// slices or pointers with in.
func Assemble(in Input) *domain.CleanedStatementDocument {
	txs := make([]domain.TransactionRecord, len(in.Transactions))
	for i, tx := range in.Transactions {
		if tx.BalanceMinor != nil {
			b := *tx.BalanceMinor
			tx.BalanceMinor = &b
		}
		if tx.Time != nil {
			ct := *tx.Time
			tx.Time = &ct
		}
		tx.ID = TransactionID(in.DocumentID, in.Header.AccountNumber, tx)
		txs[i] = tx
	}

	warnings := make([]string, len(in.Warnings))
	for i, w := range in.Warnings {
		warnings[i] = w.String()
	}

	var mismatch *int
	if in.Reconciliation.FirstMismatchIndex != nil {
		idx := *in.Reconciliation.FirstMismatchIndex
		mismatch = &idx
	}

	currency := in.Header.Currency
	if currency == "" {
		currency = in.Classification.Currency
	}

	return &domain.CleanedStatementDocument{
		DocumentID:         in.DocumentID,
		SourceFilename:     in.SourceFilename,
		PageCount:          in.PageCount,
		Bank:               in.Classification.Bank,
		Currency:           currency,
		Parser:             in.Parser,
		Header:             in.Header,
		Transactions:       txs,
		BalanceCheckPassed: in.Reconciliation.Passed,
		FirstMismatchIndex: mismatch,
		Warnings:           warnings,
	}
}

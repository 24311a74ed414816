package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/statement-pipeline/internal/domain"
)

// ErrNotFound is returned by LoadStatement for unknown documents.
var ErrNotFound = fmt.Errorf("statement %w", domain.ErrNotFound)

// QueryTransactionsByDocument returns a document's transactions in statement order.
func (r *Repository) QueryTransactionsByDocument(ctx context.Context, documentID string) ([]*TransactionRow, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT
			transaction_id,
			user_id,
			account_id,
			document_id,
			transaction_date,
			transaction_time,
			amount_minor,
			balance_minor,
			currency,
			direction,
			raw_description,
			statement_page_no,
			statement_line_no,
			created_ts
		FROM %s
		WHERE document_id = @document_id
		ORDER BY statement_page_no, statement_line_no
	`, r.table(transactionsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "document_id", Value: documentID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("QueryTransactionsByDocument: query read: %w", err)
	}

	var rows []*TransactionRow
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("QueryTransactionsByDocument: iter next: %w", err)
		}
		rows = append(rows, &row)
	}
	return rows, nil
}

// FindDocument retrieves a document row. Returns nil if it does not exist.
func (r *Repository) FindDocument(ctx context.Context, documentID string) (*DocumentRow, error) {
	q := r.client.Query(fmt.Sprintf(`
		SELECT
			document_id,
			user_id,
			account_id,
			source_filename,
			bank,
			currency,
			parser,
			page_count,
			opening_balance_minor,
			closing_balance_minor,
			balance_check_passed,
			first_mismatch_index,
			statement_start_date,
			statement_end_date,
			warnings,
			processed_ts
		FROM %s
		WHERE document_id = @document_id
		LIMIT 1
	`, r.table(documentsTable)))
	q.Parameters = []bigquery.QueryParameter{
		{Name: "document_id", Value: documentID},
	}

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("FindDocument: reading query: %w", err)
	}

	var row DocumentRow
	err = it.Next(&row)
	if err == iterator.Done {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindDocument: reading row: %w", err)
	}
	return &row, nil
}

// LoadStatement rebuilds a stored document. Account name and number are not
// part of the document row and come back empty.
func (r *Repository) LoadStatement(ctx context.Context, documentID string) (*domain.CleanedStatementDocument, error) {
	row, err := r.FindDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("LoadStatement: %w", err)
	}
	if row == nil {
		return nil, fmt.Errorf("LoadStatement: %w: %s", ErrNotFound, documentID)
	}
	txs, err := r.QueryTransactionsByDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("LoadStatement: %w", err)
	}
	return row.Document(txs), nil
}

// Document converts the row and its transactions into a domain document.
func (row *DocumentRow) Document(txs []*TransactionRow) *domain.CleanedStatementDocument {
	doc := &domain.CleanedStatementDocument{
		DocumentID:     row.DocumentID,
		SourceFilename: row.SourceFilename,
		PageCount:      int(row.PageCount),
		Bank:           row.Bank,
		Currency:       row.Currency,
		Parser:         row.Parser,
		Header: domain.AccountHeader{
			OpeningBalance: row.OpeningBalanceMinor,
			ClosingBalance: row.ClosingBalanceMinor,
			Currency:       row.Currency,
		},
		Transactions:       make([]domain.TransactionRecord, len(txs)),
		BalanceCheckPassed: row.BalanceCheckPassed,
		Warnings:           append([]string{}, row.Warnings...),
	}
	if row.FirstMismatchIndex.Valid {
		idx := int(row.FirstMismatchIndex.Int64)
		doc.FirstMismatchIndex = &idx
	}
	for i, tx := range txs {
		doc.Transactions[i] = tx.Record()
	}
	return doc
}

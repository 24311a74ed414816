package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"

	"github.com/dvloznov/statement-pipeline/internal/domain"
)

type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED

	UserID     string `bigquery:"user_id"`     // NULLABLE
	AccountID  string `bigquery:"account_id"`  // NULLABLE
	DocumentID string `bigquery:"document_id"` // REQUIRED

	TransactionDate civil.Date        `bigquery:"transaction_date"` // REQUIRED
	TransactionTime bigquery.NullTime `bigquery:"transaction_time"` // NULLABLE

	AmountMinor  int64              `bigquery:"amount_minor"`  // REQUIRED INT64
	BalanceMinor bigquery.NullInt64 `bigquery:"balance_minor"` // NULLABLE INT64
	Currency     string             `bigquery:"currency"`      // REQUIRED
	Direction    string             `bigquery:"direction"`     // REQUIRED (CREDIT|DEBIT)

	RawDescription string `bigquery:"raw_description"` // REQUIRED

	StatementPageNo int64 `bigquery:"statement_page_no"` // REQUIRED, 0-based
	StatementLineNo int64 `bigquery:"statement_line_no"` // REQUIRED, 0-based within the page

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED
}

// transactionParam is the element type of the @transactions array parameter.
type transactionParam struct {
	TransactionID   string             `bigquery:"transaction_id"`
	TransactionDate civil.Date         `bigquery:"transaction_date"`
	TransactionTime bigquery.NullTime  `bigquery:"transaction_time"`
	AmountMinor     int64              `bigquery:"amount_minor"`
	BalanceMinor    bigquery.NullInt64 `bigquery:"balance_minor"`
	Direction       string             `bigquery:"direction"`
	RawDescription  string             `bigquery:"raw_description"`
	StatementPageNo int64              `bigquery:"statement_page_no"`
	StatementLineNo int64              `bigquery:"statement_line_no"`
}

func direction(amount int64) string {
	if amount > 0 {
		return "CREDIT"
	}
	return "DEBIT"
}

func transactionParams(txs []domain.TransactionRecord) []transactionParam {
	out := make([]transactionParam, len(txs))
	for i, tx := range txs {
		p := transactionParam{
			TransactionID:   tx.ID,
			TransactionDate: tx.ValueDate,
			AmountMinor:     tx.AmountMinor,
			Direction:       direction(tx.AmountMinor),
			RawDescription:  tx.Description,
			StatementPageNo: int64(tx.PageIndex),
			StatementLineNo: int64(tx.RowIndex),
		}
		if tx.Time != nil {
			p.TransactionTime = bigquery.NullTime{Time: *tx.Time, Valid: true}
		}
		if tx.BalanceMinor != nil {
			p.BalanceMinor = bigquery.NullInt64{Int64: *tx.BalanceMinor, Valid: true}
		}
		out[i] = p
	}
	return out
}

// Record converts a stored row back into a domain transaction.
func (r *TransactionRow) Record() domain.TransactionRecord {
	tx := domain.TransactionRecord{
		ID:          r.TransactionID,
		ValueDate:   r.TransactionDate,
		Description: r.RawDescription,
		AmountMinor: r.AmountMinor,
		PageIndex:   int(r.StatementPageNo),
		RowIndex:    int(r.StatementLineNo),
	}
	if r.TransactionTime.Valid {
		t := r.TransactionTime.Time
		tx.Time = &t
	}
	if r.BalanceMinor.Valid {
		b := r.BalanceMinor.Int64
		tx.BalanceMinor = &b
	}
	return tx
}

package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// DocumentRow is one processed statement in finance.statement_documents.
type DocumentRow struct {
	DocumentID     string `bigquery:"document_id"`     // REQUIRED
	UserID         string `bigquery:"user_id"`         // NULLABLE
	AccountID      string `bigquery:"account_id"`      // NULLABLE
	SourceFilename string `bigquery:"source_filename"` // NULLABLE

	Bank     string `bigquery:"bank"`     // REQUIRED
	Currency string `bigquery:"currency"` // REQUIRED
	Parser   string `bigquery:"parser"`   // REQUIRED

	PageCount int64 `bigquery:"page_count"` // REQUIRED

	OpeningBalanceMinor int64 `bigquery:"opening_balance_minor"` // REQUIRED
	ClosingBalanceMinor int64 `bigquery:"closing_balance_minor"` // REQUIRED

	BalanceCheckPassed bool               `bigquery:"balance_check_passed"` // REQUIRED
	FirstMismatchIndex bigquery.NullInt64 `bigquery:"first_mismatch_index"` // NULLABLE

	StatementStartDate bigquery.NullDate `bigquery:"statement_start_date"` // NULLABLE
	StatementEndDate   bigquery.NullDate `bigquery:"statement_end_date"`   // NULLABLE

	Warnings []string `bigquery:"warnings"` // REPEATED

	ProcessedTS time.Time `bigquery:"processed_ts"` // REQUIRED
}

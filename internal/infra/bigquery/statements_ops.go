package bigquery

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/statement-pipeline/internal/domain"
	"github.com/dvloznov/statement-pipeline/internal/logger"
)

// saveStatementScript replaces everything stored for one document in a
// single transaction. Accounts are matched on account_id, which AccountID
// derives from (owner, account number, currency).
func saveStatementScript(projectID, datasetID string) string {
	documents := tableName(projectID, datasetID, documentsTable)
	accounts := tableName(projectID, datasetID, accountsTable)
	transactions := tableName(projectID, datasetID, transactionsTable)

	return fmt.Sprintf(`
BEGIN TRANSACTION;

MERGE %[2]s a
USING (
	SELECT
		@account_id AS account_id,
		@user_id AS user_id,
		@bank AS institution_id,
		@account_name AS account_name,
		@account_number AS account_number,
		@currency AS currency
) s
ON a.account_id = s.account_id
WHEN MATCHED THEN UPDATE SET
	account_name = IF(s.account_name = '', a.account_name, s.account_name),
	updated_ts = CURRENT_TIMESTAMP()
WHEN NOT MATCHED THEN INSERT (
	account_id, user_id, institution_id, account_name, account_number, currency, created_ts
) VALUES (
	s.account_id, s.user_id, s.institution_id, s.account_name, s.account_number, s.currency, CURRENT_TIMESTAMP()
);

MERGE %[1]s d
USING (SELECT @document_id AS document_id) s
ON d.document_id = s.document_id
WHEN MATCHED THEN UPDATE SET
	user_id = @user_id,
	account_id = @account_id,
	source_filename = @source_filename,
	bank = @bank,
	currency = @currency,
	parser = @parser,
	page_count = @page_count,
	opening_balance_minor = @opening_balance_minor,
	closing_balance_minor = @closing_balance_minor,
	balance_check_passed = @balance_check_passed,
	first_mismatch_index = @first_mismatch_index,
	statement_start_date = @statement_start_date,
	statement_end_date = @statement_end_date,
	warnings = @warnings,
	processed_ts = CURRENT_TIMESTAMP()
WHEN NOT MATCHED THEN INSERT (
	document_id, user_id, account_id, source_filename, bank, currency, parser,
	page_count, opening_balance_minor, closing_balance_minor,
	balance_check_passed, first_mismatch_index,
	statement_start_date, statement_end_date, warnings, processed_ts
) VALUES (
	@document_id, @user_id, @account_id, @source_filename, @bank, @currency, @parser,
	@page_count, @opening_balance_minor, @closing_balance_minor,
	@balance_check_passed, @first_mismatch_index,
	@statement_start_date, @statement_end_date, @warnings, CURRENT_TIMESTAMP()
);

DELETE FROM %[3]s WHERE document_id = @document_id;

INSERT INTO %[3]s (
	transaction_id, user_id, account_id, document_id,
	transaction_date, transaction_time, amount_minor, balance_minor,
	currency, direction, raw_description,
	statement_page_no, statement_line_no, created_ts
)
SELECT
	t.transaction_id, @user_id, @account_id, @document_id,
	t.transaction_date, t.transaction_time, t.amount_minor, t.balance_minor,
	@currency, t.direction, t.raw_description,
	t.statement_page_no, t.statement_line_no, CURRENT_TIMESTAMP()
FROM UNNEST(@transactions) AS t;

COMMIT TRANSACTION;
`, documents, accounts, transactions)
}

// accountRow builds the account a document belongs to.
func accountRow(ownerID string, doc *domain.CleanedStatementDocument) AccountRow {
	return AccountRow{
		AccountID:     AccountID(ownerID, doc.Header.AccountNumber, doc.Currency, doc.DocumentID),
		UserID:        ownerID,
		InstitutionID: doc.Bank,
		AccountName:   doc.Header.AccountName,
		AccountNumber: doc.Header.AccountNumber,
		Currency:      doc.Currency,
	}
}

// statementDateRange returns the first and last transaction dates.
func statementDateRange(txs []domain.TransactionRecord) (start, end bigquery.NullDate) {
	for _, tx := range txs {
		if !start.Valid || tx.ValueDate.Before(start.Date) {
			start = bigquery.NullDate{Date: tx.ValueDate, Valid: true}
		}
		if !end.Valid || tx.ValueDate.After(end.Date) {
			end = bigquery.NullDate{Date: tx.ValueDate, Valid: true}
		}
	}
	return start, end
}

// statementParameters binds every parameter saveStatementScript uses.
func statementParameters(ownerID string, doc *domain.CleanedStatementDocument) []bigquery.QueryParameter {
	account := accountRow(ownerID, doc)
	start, end := statementDateRange(doc.Transactions)

	mismatch := bigquery.NullInt64{}
	if doc.FirstMismatchIndex != nil {
		mismatch = bigquery.NullInt64{Int64: int64(*doc.FirstMismatchIndex), Valid: true}
	}
	warnings := doc.Warnings
	if warnings == nil {
		warnings = []string{}
	}

	return []bigquery.QueryParameter{
		{Name: "document_id", Value: doc.DocumentID},
		{Name: "user_id", Value: ownerID},
		{Name: "account_id", Value: account.AccountID},
		{Name: "account_name", Value: account.AccountName},
		{Name: "account_number", Value: account.AccountNumber},
		{Name: "source_filename", Value: doc.SourceFilename},
		{Name: "bank", Value: doc.Bank},
		{Name: "currency", Value: doc.Currency},
		{Name: "parser", Value: doc.Parser},
		{Name: "page_count", Value: int64(doc.PageCount)},
		{Name: "opening_balance_minor", Value: doc.Header.OpeningBalance},
		{Name: "closing_balance_minor", Value: doc.Header.ClosingBalance},
		{Name: "balance_check_passed", Value: doc.BalanceCheckPassed},
		{Name: "first_mismatch_index", Value: mismatch},
		{Name: "statement_start_date", Value: start},
		{Name: "statement_end_date", Value: end},
		{Name: "warnings", Value: warnings},
		{Name: "transactions", Value: transactionParams(doc.Transactions)},
	}
}

// SaveStatement upserts the document and its account and replaces the
// document's transactions, all inside one BigQuery transaction.
func (r *Repository) SaveStatement(ctx context.Context, ownerID string, doc *domain.CleanedStatementDocument) error {
	if doc == nil {
		return errors.New("SaveStatement: nil document")
	}

	q := r.client.Query(saveStatementScript(r.projectID, r.datasetID))
	q.Parameters = statementParameters(ownerID, doc)

	if err := exec(ctx, q); err != nil {
		return fmt.Errorf("SaveStatement: %w", err)
	}

	log := logger.FromContext(ctx)
	log.Info().
		Str("document_id", doc.DocumentID).
		Int("transactions", len(doc.Transactions)).
		Msg("Saved statement to BigQuery")
	return nil
}

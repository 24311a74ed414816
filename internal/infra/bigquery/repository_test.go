package bigquery

import (
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-pipeline/internal/domain"
)

func testDocument() *domain.CleanedStatementDocument {
	balance := int64(1_000_000)
	clock := civil.Time{Hour: 13, Minute: 4, Second: 5}
	mismatch := 1
	return &domain.CleanedStatementDocument{
		DocumentID:     "doc-1",
		SourceFilename: "gtbank.pdf",
		PageCount:      2,
		Bank:           "GTBANK",
		Currency:       "NGN",
		Parser:         "ng",
		Header: domain.AccountHeader{
			AccountName:    "ADEBAYO OKAFOR",
			AccountNumber:  "0123456789",
			OpeningBalance: 1_500_000,
			ClosingBalance: 1_000_000,
			Currency:       "NGN",
		},
		Transactions: []domain.TransactionRecord{
			{ID: "t1", ValueDate: civil.Date{Year: 2024, Month: 1, Day: 5}, Description: "POS", AmountMinor: -500_000, BalanceMinor: &balance, PageIndex: 0, RowIndex: 3},
			{ID: "t2", ValueDate: civil.Date{Year: 2024, Month: 1, Day: 2}, Time: &clock, Description: "Salary", AmountMinor: 20_000, PageIndex: 1, RowIndex: 0},
		},
		BalanceCheckPassed: false,
		FirstMismatchIndex: &mismatch,
		Warnings:           []string{"sign_inferred: page 1 row 3: amount had no sign"},
	}
}

func params(ps []bigquery.QueryParameter) map[string]interface{} {
	out := make(map[string]interface{}, len(ps))
	for _, p := range ps {
		out[p.Name] = p.Value
	}
	return out
}

func TestSaveStatementScript(t *testing.T) {
	script := saveStatementScript("proj", "finance")

	assert.True(t, strings.HasPrefix(strings.TrimSpace(script), "BEGIN TRANSACTION;"))
	assert.True(t, strings.HasSuffix(strings.TrimSpace(script), "COMMIT TRANSACTION;"))
	assert.Contains(t, script, "MERGE `proj.finance.statement_documents` d")
	assert.Contains(t, script, "MERGE `proj.finance.accounts` a")
	assert.Contains(t, script, "DELETE FROM `proj.finance.transactions` WHERE document_id = @document_id;")
	assert.Contains(t, script, "FROM UNNEST(@transactions) AS t;")

	// Every parameter the script references must be bound.
	bound := params(statementParameters("owner", testDocument()))
	for _, name := range scriptParams(script) {
		_, ok := bound[name]
		assert.True(t, ok, "parameter @%s is not bound", name)
	}
}

func scriptParams(script string) []string {
	var names []string
	for _, field := range strings.FieldsFunc(script, func(r rune) bool {
		return !(r == '@' || r == '_' || (r >= 'a' && r <= 'z'))
	}) {
		if strings.HasPrefix(field, "@") {
			names = append(names, strings.TrimPrefix(field, "@"))
		}
	}
	return names
}

func TestStatementParameters(t *testing.T) {
	doc := testDocument()
	p := params(statementParameters("owner-1", doc))

	assert.Equal(t, "doc-1", p["document_id"])
	assert.Equal(t, "owner-1", p["user_id"])
	assert.Equal(t, AccountID("owner-1", "0123456789", "NGN", "doc-1"), p["account_id"])
	assert.Equal(t, int64(2), p["page_count"])
	assert.Equal(t, int64(1_500_000), p["opening_balance_minor"])
	assert.Equal(t, bigquery.NullInt64{Int64: 1, Valid: true}, p["first_mismatch_index"])
	assert.Equal(t, bigquery.NullDate{Date: civil.Date{Year: 2024, Month: 1, Day: 2}, Valid: true}, p["statement_start_date"])
	assert.Equal(t, bigquery.NullDate{Date: civil.Date{Year: 2024, Month: 1, Day: 5}, Valid: true}, p["statement_end_date"])

	txs, ok := p["transactions"].([]transactionParam)
	require.True(t, ok)
	require.Len(t, txs, 2)
	assert.Equal(t, "DEBIT", txs[0].Direction)
	assert.Equal(t, bigquery.NullInt64{Int64: 1_000_000, Valid: true}, txs[0].BalanceMinor)
	assert.False(t, txs[0].TransactionTime.Valid)
	assert.Equal(t, "CREDIT", txs[1].Direction)
	assert.True(t, txs[1].TransactionTime.Valid)
	assert.Equal(t, int64(1), txs[1].StatementPageNo)
}

func TestStatementParameters_EmptyDocument(t *testing.T) {
	doc := &domain.CleanedStatementDocument{DocumentID: "d", Currency: "USD", BalanceCheckPassed: true}
	p := params(statementParameters("owner", doc))

	assert.Equal(t, bigquery.NullInt64{}, p["first_mismatch_index"])
	assert.Equal(t, bigquery.NullDate{}, p["statement_start_date"])
	assert.Equal(t, []string{}, p["warnings"])
	assert.Equal(t, []transactionParam{}, p["transactions"])
}

func TestAccountID(t *testing.T) {
	a := AccountID("owner", " 0123456789 ", "ngn", "doc-1")
	assert.Equal(t, a, AccountID("owner", "0123456789", "NGN", "doc-2"))
	assert.NotEqual(t, a, AccountID("owner", "0123456789", "USD", "doc-1"))
	assert.NotEqual(t, a, AccountID("other", "0123456789", "NGN", "doc-1"))

	// Without an account number the account is scoped to the document.
	assert.NotEqual(t, AccountID("owner", "", "NGN", "doc-1"), AccountID("owner", "", "NGN", "doc-2"))
}

func TestDocumentRow_Document(t *testing.T) {
	doc := testDocument()
	row := &DocumentRow{
		DocumentID:          doc.DocumentID,
		SourceFilename:      doc.SourceFilename,
		Bank:                doc.Bank,
		Currency:            doc.Currency,
		Parser:              doc.Parser,
		PageCount:           2,
		OpeningBalanceMinor: doc.Header.OpeningBalance,
		ClosingBalanceMinor: doc.Header.ClosingBalance,
		FirstMismatchIndex:  bigquery.NullInt64{Int64: 1, Valid: true},
		Warnings:            doc.Warnings,
	}

	var rows []*TransactionRow
	for _, p := range transactionParams(doc.Transactions) {
		rows = append(rows, &TransactionRow{
			TransactionID:   p.TransactionID,
			TransactionDate: p.TransactionDate,
			TransactionTime: p.TransactionTime,
			AmountMinor:     p.AmountMinor,
			BalanceMinor:    p.BalanceMinor,
			RawDescription:  p.RawDescription,
			StatementPageNo: p.StatementPageNo,
			StatementLineNo: p.StatementLineNo,
		})
	}

	got := row.Document(rows)
	assert.Equal(t, doc.Transactions, got.Transactions)
	assert.Equal(t, doc.FirstMismatchIndex, got.FirstMismatchIndex)
	assert.Equal(t, doc.Header.OpeningBalance, got.Header.OpeningBalance)
	assert.Equal(t, "NGN", got.Header.Currency)
	assert.Empty(t, got.Header.AccountNumber)
}

func TestTruncateError(t *testing.T) {
	assert.Equal(t, "", truncateError(nil))
	assert.Equal(t, "boom", truncateError(errors.New("boom")))
	assert.Len(t, truncateError(errors.New(strings.Repeat("x", 5000))), maxErrorLen)
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_second.sql":   {Data: []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.b` (id INT64);")},
		"0001_first.sql":    {Data: []byte("CREATE TABLE `{{PROJECT_ID}}.{{DATASET_ID}}.a` (id INT64);")},
		"001_invalid.sql":   {Data: []byte("ignored")},
		"README.md":         {Data: []byte("ignored")},
		"0003_no_suffix":    {Data: []byte("ignored")},
		"nested/0004_x.sql": {Data: []byte("ignored")},
	}

	migrations, err := LoadMigrations(fsys, "proj", "finance")
	require.NoError(t, err)
	require.Len(t, migrations, 2)

	assert.Equal(t, 1, migrations[0].Version)
	assert.Equal(t, "first", migrations[0].Name)
	assert.Equal(t, "CREATE TABLE `proj.finance.a` (id INT64);", migrations[0].SQL)
	assert.Equal(t, 2, migrations[1].Version)
	assert.Len(t, migrations[0].Checksum, 64)

	// Checksums ignore the placeholder values.
	again, err := LoadMigrations(fsys, "other", "dataset")
	require.NoError(t, err)
	assert.Equal(t, migrations[0].Checksum, again[0].Checksum)
}

func TestLoadMigrations_DuplicateVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"0001_a.sql": {Data: []byte("SELECT 1")},
		"0001_b.sql": {Data: []byte("SELECT 2")},
	}
	_, err := LoadMigrations(fsys, "p", "d")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version 0001")
}

func TestEmbeddedMigrations(t *testing.T) {
	migrations, err := EmbeddedMigrations("proj", "finance")
	require.NoError(t, err)
	require.Len(t, migrations, 4)

	tables := []string{documentsTable, accountsTable, transactionsTable, parsingRunsTable}
	for i, m := range migrations {
		assert.Equal(t, i+1, m.Version)
		assert.NotContains(t, m.SQL, "{{")
		assert.Contains(t, m.SQL, "`proj.finance."+tables[i]+"`")
	}
}

func TestPendingMigrations(t *testing.T) {
	all := []Migration{{Version: 1}, {Version: 2}, {Version: 3}}
	pending := pendingMigrations(all, []AppliedMigration{{Version: 1}, {Version: 3}})
	require.Len(t, pending, 1)
	assert.Equal(t, 2, pending[0].Version)

	assert.Len(t, pendingMigrations(all, nil), 3)
}

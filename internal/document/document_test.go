package document

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-pipeline/internal/domain"
)

func TestID(t *testing.T) {
	a := ID([]byte("%PDF-1.4 statement"))
	b := ID([]byte("%PDF-1.4 statement"))
	c := ID([]byte("%PDF-1.4 other"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func sampleInput() Input {
	bal := int64(9000)
	mismatch := 1
	return Input{
		DocumentID:     ID([]byte("pdf")),
		SourceFilename: "jan.pdf",
		PageCount:      2,
		Classification: domain.Classification{Bank: "GTBANK", Currency: "NGN"},
		Parser:         "ng",
		Header: domain.AccountHeader{
			AccountNumber:  "0123456789",
			OpeningBalance: 10000,
			ClosingBalance: 8000,
			Currency:       "NGN",
		},
		Transactions: []domain.TransactionRecord{
			{ValueDate: civil.Date{Year: 2024, Month: 1, Day: 2}, Description: "POS", AmountMinor: -1000, BalanceMinor: &bal, PageIndex: 0, RowIndex: 4},
			{ValueDate: civil.Date{Year: 2024, Month: 1, Day: 3}, Description: "FEE", AmountMinor: -500, PageIndex: 0, RowIndex: 5},
		},
		Reconciliation: domain.Reconciliation{Passed: false, FirstMismatchIndex: &mismatch},
		Warnings: []domain.Warning{
			domain.PageWarning(domain.WarnOCRFallback, 1, "used tesseract"),
			domain.NewWarning(domain.WarnParserFallback, "used generic"),
		},
	}
}

func TestAssemble(t *testing.T) {
	in := sampleInput()
	doc := Assemble(in)

	assert.Equal(t, in.DocumentID, doc.DocumentID)
	assert.Equal(t, "jan.pdf", doc.SourceFilename)
	assert.Equal(t, 2, doc.PageCount)
	assert.Equal(t, "GTBANK", doc.Bank)
	assert.Equal(t, "NGN", doc.Currency)
	assert.Equal(t, "ng", doc.Parser)
	assert.False(t, doc.BalanceCheckPassed)
	require.NotNil(t, doc.FirstMismatchIndex)
	assert.Equal(t, 1, *doc.FirstMismatchIndex)
	assert.Equal(t, []string{
		"ocr_fallback: page 2: used tesseract",
		"parser_fallback: used generic",
	}, doc.Warnings)

	require.Len(t, doc.Transactions, 2)
	assert.NotEmpty(t, doc.Transactions[0].ID)
	assert.NotEqual(t, doc.Transactions[0].ID, doc.Transactions[1].ID)
	assert.Empty(t, in.Transactions[0].ID, "input must not be modified")
}

func TestAssemble_SharesNothingWithInput(t *testing.T) {
	in := sampleInput()
	doc := Assemble(in)

	*in.Transactions[0].BalanceMinor = 1
	*in.Reconciliation.FirstMismatchIndex = 7
	in.Transactions[1].Description = "changed"

	assert.Equal(t, int64(9000), *doc.Transactions[0].BalanceMinor)
	assert.Equal(t, 1, *doc.FirstMismatchIndex)
	assert.Equal(t, "FEE", doc.Transactions[1].Description)
}

func TestAssemble_Deterministic(t *testing.T) {
	a := Assemble(sampleInput())
	b := Assemble(sampleInput())
	assert.Equal(t, a, b)
}

func TestAssemble_EmptyWarningsIsNotNil(t *testing.T) {
	in := sampleInput()
	in.Warnings = nil
	doc := Assemble(in)
	assert.NotNil(t, doc.Warnings)
	assert.Empty(t, doc.Warnings)
}

package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/statement-pipeline/internal/domain"
	"github.com/dvloznov/statement-pipeline/internal/money"
)

// Sheet names used by WriteXLSX.
const (
	SheetTransactions = "Transactions"
	SheetSummary      = "Summary"
)

// TransactionRow is the flat export form of a transaction.
type TransactionRow struct {
	ID          string `csv:"id"`
	Date        string `csv:"date"`
	Time        string `csv:"time"`
	Description string `csv:"description"`
	Amount      string `csv:"amount"`
	Balance     string `csv:"balance"`
	Currency    string `csv:"currency"`
	Page        int    `csv:"page"`
	Row         int    `csv:"row"`
}

// Rows flattens the document's transactions. Amounts are rendered as fixed
// point decimals in major units.
func Rows(doc *domain.CleanedStatementDocument) []TransactionRow {
	rows := make([]TransactionRow, 0, len(doc.Transactions))
	for _, tx := range doc.Transactions {
		row := TransactionRow{
			ID:          tx.ID,
			Date:        tx.ValueDate.String(),
			Description: tx.Description,
			Amount:      majorUnits(tx.AmountMinor, doc.Currency),
			Currency:    doc.Currency,
			Page:        tx.PageIndex,
			Row:         tx.RowIndex,
		}
		if tx.Time != nil {
			row.Time = tx.Time.String()
		}
		if tx.BalanceMinor != nil {
			row.Balance = majorUnits(*tx.BalanceMinor, doc.Currency)
		}
		rows = append(rows, row)
	}
	return rows
}

func majorUnits(minor int64, currency string) string {
	exp := int32(money.Exponent(currency))
	return decimal.New(minor, -exp).StringFixed(exp)
}

// WriteCSV writes the document's transactions as CSV with a header row.
func WriteCSV(w io.Writer, doc *domain.CleanedStatementDocument) error {
	rows := Rows(doc)
	if err := gocsv.Marshal(&rows, w); err != nil {
		return fmt.Errorf("WriteCSV: marshalling transactions: %w", err)
	}
	return nil
}

var transactionHeader = []any{"ID", "Date", "Time", "Description", "Amount", "Balance", "Currency", "Page", "Row"}

// WriteXLSX writes a workbook with a Transactions sheet and a Summary sheet.
func WriteXLSX(w io.Writer, doc *domain.CleanedStatementDocument) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetTransactions); err != nil {
		return fmt.Errorf("WriteXLSX: renaming sheet: %w", err)
	}
	if err := setRow(f, SheetTransactions, 1, transactionHeader); err != nil {
		return err
	}

	exp := int32(money.Exponent(doc.Currency))
	for i, tx := range doc.Transactions {
		var timeCell, balanceCell any
		if tx.Time != nil {
			timeCell = tx.Time.String()
		}
		if tx.BalanceMinor != nil {
			balanceCell = decimal.New(*tx.BalanceMinor, -exp).InexactFloat64()
		}
		row := []any{
			tx.ID,
			tx.ValueDate.String(),
			timeCell,
			tx.Description,
			decimal.New(tx.AmountMinor, -exp).InexactFloat64(),
			balanceCell,
			doc.Currency,
			tx.PageIndex,
			tx.RowIndex,
		}
		if err := setRow(f, SheetTransactions, i+2, row); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(SheetSummary); err != nil {
		return fmt.Errorf("WriteXLSX: creating summary sheet: %w", err)
	}
	mismatch := ""
	if doc.FirstMismatchIndex != nil {
		mismatch = strconv.Itoa(*doc.FirstMismatchIndex)
	}
	summary := [][]any{
		{"Document ID", doc.DocumentID},
		{"File", doc.SourceFilename},
		{"Bank", doc.Bank},
		{"Parser", doc.Parser},
		{"Currency", doc.Currency},
		{"Account Name", doc.Header.AccountName},
		{"Account Number", doc.Header.AccountNumber},
		{"Opening Balance", money.Format(doc.Header.OpeningBalance, doc.Currency)},
		{"Closing Balance", money.Format(doc.Header.ClosingBalance, doc.Currency)},
		{"Pages", doc.PageCount},
		{"Transactions", doc.TransactionCount()},
		{"Balance Check Passed", doc.BalanceCheckPassed},
		{"First Mismatch Index", mismatch},
		{"Warnings", len(doc.Warnings)},
	}
	for i, row := range summary {
		if err := setRow(f, SheetSummary, i+1, row); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("WriteXLSX: writing workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("WriteXLSX: cell name for row %d: %w", row, err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("WriteXLSX: writing %s row %d: %w", sheet, row, err)
	}
	return nil
}

package domain

// AccountHeader holds the account identity and declared balances of a statement.
type AccountHeader struct {
	AccountName    string `json:"account_name,omitempty"`
	AccountNumber  string `json:"account_number,omitempty"`
	OpeningBalance int64  `json:"opening_balance_minor"`
	ClosingBalance int64  `json:"closing_balance_minor"`
	Currency       string `json:"currency"`
}

// Classification is the bank and currency detected for a document.
type Classification struct {
	Bank       string   `json:"bank"`
	Currency   string   `json:"currency,omitempty"`
	Country    string   `json:"country,omitempty"`
	Anchors    []string `json:"anchors,omitempty"`
	Currencies []string `json:"currencies,omitempty"`
}

// BankGeneric is the sentinel bank id used when no signature matches.
const BankGeneric = "GENERIC"

// Reconciliation is the outcome of replaying transactions against the declared balances.
type Reconciliation struct {
	Passed bool `json:"balance_check_passed"`

	// FirstMismatchIndex is nil when Passed is true. It equals the number of
	// transactions when only the final balance diverges.
	FirstMismatchIndex *int `json:"first_mismatch_index"`

	ComputedClosing int64 `json:"computed_closing_minor"`
	Difference      int64 `json:"difference_minor"`
}

// CleanedStatementDocument is the final, read-only result for one PDF.
// Only the document assembler constructs it.
type CleanedStatementDocument struct {
	DocumentID         string              `json:"document_id"`
	SourceFilename     string              `json:"source_filename"`
	PageCount          int                 `json:"page_count"`
	Bank               string              `json:"bank"`
	Currency           string              `json:"currency"`
	Parser             string              `json:"parser"`
	Header             AccountHeader       `json:"header"`
	Transactions       []TransactionRecord `json:"transactions"`
	BalanceCheckPassed bool                `json:"balance_check_passed"`
	FirstMismatchIndex *int                `json:"first_mismatch_index"`
	Warnings           []string            `json:"warnings"`
}

// TransactionCount returns the number of transactions on the document.
func (d *CleanedStatementDocument) TransactionCount() int {
	return len(d.Transactions)
}

package domain

import (
	"cloud.google.com/go/civil"
)

// TransactionRecord is one parsed statement row.
// Amounts are signed minor units: credits are positive, debits negative.
type TransactionRecord struct {
	ID          string      `json:"id,omitempty"`
	ValueDate   civil.Date  `json:"value_date"`
	Time        *civil.Time `json:"time,omitempty"`
	Description string      `json:"description"`
	AmountMinor int64       `json:"amount_minor"`

	// BalanceMinor is the running balance printed on the statement, if any.
	BalanceMinor *int64 `json:"balance_minor,omitempty"`

	PageIndex int `json:"page_index"`
	RowIndex  int `json:"row_index"`
}

// IsCredit reports whether the transaction increases the balance.
func (t TransactionRecord) IsCredit() bool {
	return t.AmountMinor > 0
}

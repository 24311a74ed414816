package bigquery

import (
	"strings"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
)

// accountNamespace scopes deterministic account ids.
var accountNamespace = uuid.MustParse("0f4c1d2e-8b7a-4c55-9a53-6f1e2d3c4b5a")

type AccountRow struct {
	AccountID string `bigquery:"account_id"` // REQUIRED

	UserID        string `bigquery:"user_id"`        // NULLABLE
	InstitutionID string `bigquery:"institution_id"` // NULLABLE (bank id)
	AccountName   string `bigquery:"account_name"`   // NULLABLE
	AccountNumber string `bigquery:"account_number"` // NULLABLE
	Currency      string `bigquery:"currency"`       // REQUIRED

	CreatedTS bigquery.NullTimestamp `bigquery:"created_ts"` // NULLABLE (default CURRENT_TIMESTAMP())
	UpdatedTS bigquery.NullTimestamp `bigquery:"updated_ts"` // NULLABLE
}

// AccountID derives the account id from (owner, account number, currency).
// Normalization: trims whitespace and converts to uppercase. Statements
// without an account number get an account scoped to the document.
func AccountID(ownerID, accountNumber, currency, documentID string) string {
	number := strings.ToUpper(strings.TrimSpace(accountNumber))
	if number == "" {
		number = "DOC:" + documentID
	}
	key := strings.Join([]string{ownerID, number, strings.ToUpper(strings.TrimSpace(currency))}, "|")
	return uuid.NewSHA1(accountNamespace, []byte(key)).String()
}

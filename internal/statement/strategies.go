package statement

import "regexp"

// NewGeneric returns the fallback strategy used for unrecognised banks. It
// infers the date order from the document.
func NewGeneric() *TableParser {
	return NewTableParser(Layout{
		Name:      "generic",
		DateOrder: DateOrderAuto,
	})
}

// NewNigeria returns the strategy shared by Nigerian commercial banks:
// day-first dates such as 02-Jan-2024 or 02/01/2024, split debit and credit
// columns, and naira as the default currency.
func NewNigeria() *TableParser {
	return NewTableParser(Layout{
		Name:            "ng",
		DateOrder:       DateOrderDayFirst,
		DefaultCurrency: "NGN",
		Synonyms: map[string]column{
			"withdrawals dr":    colDebit,
			"lodgements cr":     colCredit,
			"debits dr":         colDebit,
			"credits cr":        colCredit,
			"narration/remarks": colDescription,
		},
	})
}

// NewOPay returns the OPay wallet statement strategy. OPay prints a
// timestamped row with a signed Debit/Credit column, followed by channel and
// reference columns.
func NewOPay() *TableParser {
	return NewTableParser(Layout{
		Name:            "opay",
		DateOrder:       DateOrderDayFirst,
		DefaultCurrency: "NGN",
		Synonyms: map[string]column{
			"trans time":            colDate,
			"transaction time":      colDate,
			"debit/credit":          colAmount,
			"balance after":         colBalance,
			"transaction reference": colIgnore,
			"transaction id":        colIgnore,
		},
		TrailingNoise: regexp.MustCompile(`(?i)^(?:mobile|web|app|ussd|pos|card|bank|wallet|[0-9a-z]{12,})$`),
	})
}

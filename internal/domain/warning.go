package domain

import "fmt"

// WarningCode identifies a non-fatal condition recorded on a document.
type WarningCode string

const (
	WarnPageCapExceeded      WarningCode = "page_cap_exceeded"
	WarnOCRFallback          WarningCode = "ocr_fallback"
	WarnOCRSkipped           WarningCode = "ocr_skipped"
	WarnExtractionFailed     WarningCode = "extraction_failed"
	WarnTruncated            WarningCode = "truncated"
	WarnMultiCurrency        WarningCode = "multi_currency"
	WarnCurrencyUnknown      WarningCode = "currency_unknown"
	WarnParserFallback       WarningCode = "parser_fallback"
	WarnRowSkipped           WarningCode = "row_skipped"
	WarnSignInferred         WarningCode = "sign_inferred"
	WarnHeaderBalanceDerived WarningCode = "header_balance_derived"
	WarnPossibleDuplicate    WarningCode = "possible_duplicate"
)

// Warning is a non-fatal condition with optional page/row provenance.
// Page and Row are -1 when not applicable.
type Warning struct {
	Code    WarningCode
	Page    int
	Row     int
	Message string
}

// NewWarning creates a document-level warning.
func NewWarning(code WarningCode, format string, args ...any) Warning {
	return Warning{Code: code, Page: -1, Row: -1, Message: fmt.Sprintf(format, args...)}
}

// PageWarning creates a warning attached to a page.
func PageWarning(code WarningCode, page int, format string, args ...any) Warning {
	return Warning{Code: code, Page: page, Row: -1, Message: fmt.Sprintf(format, args...)}
}

// RowWarning creates a warning attached to a row of a page.
func RowWarning(code WarningCode, page, row int, format string, args ...any) Warning {
	return Warning{Code: code, Page: page, Row: row, Message: fmt.Sprintf(format, args...)}
}

// String renders the warning as stored on the document, e.g.
// "ocr_fallback: page 3: native text too short".
func (w Warning) String() string {
	switch {
	case w.Page >= 0 && w.Row >= 0:
		return fmt.Sprintf("%s: page %d row %d: %s", w.Code, w.Page+1, w.Row, w.Message)
	case w.Page >= 0:
		return fmt.Sprintf("%s: page %d: %s", w.Code, w.Page+1, w.Message)
	default:
		return fmt.Sprintf("%s: %s", w.Code, w.Message)
	}
}

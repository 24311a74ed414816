package review

import (
	"strings"
	"time"

	"github.com/jomei/notionapi"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/statement-pipeline/internal/domain"
	"github.com/dvloznov/statement-pipeline/internal/money"
	"github.com/dvloznov/statement-pipeline/internal/reconcile"
)

// Property names of the review database.
const (
	PropDocumentID    = "Document ID"
	PropFile          = "File"
	PropBank          = "Bank"
	PropCurrency      = "Currency"
	PropParser        = "Parser"
	PropTransactions  = "Transactions"
	PropFirstMismatch = "First Mismatch"
	PropDifference    = "Difference"
	PropStatementFrom = "Statement Start"
	PropWarnings      = "Warnings"
	PropStatus        = "Status"
)

// StatusNeedsReview is the Status option set on every published page.
const StatusNeedsReview = "Needs Review"

// Notion rejects rich text content longer than this.
const maxRichText = 2000

// DocumentToProperties maps a document that failed its balance check to
// review page properties.
func DocumentToProperties(doc *domain.CleanedStatementDocument) notionapi.Properties {
	rec := reconcile.Reconcile(doc.Header.OpeningBalance, doc.Transactions, doc.Header.ClosingBalance)
	exp := int32(money.Exponent(doc.Currency))

	props := notionapi.Properties{
		PropDocumentID: notionapi.TitleProperty{
			Title: richText(doc.DocumentID),
		},
		PropFile: notionapi.RichTextProperty{
			RichText: richText(doc.SourceFilename),
		},
		PropBank: notionapi.SelectProperty{
			Select: notionapi.Option{Name: doc.Bank},
		},
		PropCurrency: notionapi.SelectProperty{
			Select: notionapi.Option{Name: doc.Currency},
		},
		PropTransactions: notionapi.NumberProperty{
			Number: float64(doc.TransactionCount()),
		},
		PropDifference: notionapi.NumberProperty{
			Number: decimal.New(rec.Difference, -exp).InexactFloat64(),
		},
		PropStatus: notionapi.SelectProperty{
			Select: notionapi.Option{Name: StatusNeedsReview},
		},
	}

	if doc.Parser != "" {
		props[PropParser] = notionapi.SelectProperty{
			Select: notionapi.Option{Name: doc.Parser},
		}
	}

	if doc.FirstMismatchIndex != nil {
		props[PropFirstMismatch] = notionapi.NumberProperty{
			Number: float64(*doc.FirstMismatchIndex),
		}
	}

	if len(doc.Transactions) > 0 {
		first := doc.Transactions[0].ValueDate
		d := notionapi.Date(time.Date(first.Year, first.Month, first.Day, 0, 0, 0, 0, time.UTC))
		props[PropStatementFrom] = notionapi.DateProperty{
			Date: &notionapi.DateObject{Start: &d},
		}
	}

	if len(doc.Warnings) > 0 {
		props[PropWarnings] = notionapi.RichTextProperty{
			RichText: richText(truncate(strings.Join(doc.Warnings, "\n"), maxRichText)),
		}
	}

	return props
}

func richText(content string) []notionapi.RichText {
	return []notionapi.RichText{
		{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: content},
		},
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// extractDocumentID extracts the document ID from a page's title property.
// Returns empty string if not found.
func extractDocumentID(page notionapi.Page) string {
	prop, ok := page.Properties[PropDocumentID]
	if !ok {
		return ""
	}
	title, ok := prop.(*notionapi.TitleProperty)
	if !ok || len(title.Title) == 0 {
		return ""
	}
	return title.Title[0].PlainText
}

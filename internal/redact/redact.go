// Package redact replaces account numbers, card numbers and similar
// identifiers in statement text with deterministic tokens such as
// <ACCT:3f2a9c01bd:6789>. The same input always yields the same token so
// masked data can still be joined and deduplicated.
package redact

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/dvloznov/statement-pipeline/internal/domain"
)

var (
	ibanRe    = regexp.MustCompile(`\b[A-Z]{2}\d{2}[0-9A-Z]{11,30}\b`)
	cardRe    = regexp.MustCompile(`\b\d(?:[ -]?\d){12,18}\b`)
	bvnRe     = regexp.MustCompile(`\b\d{11}\b`)
	sortRe    = regexp.MustCompile(`\b\d{2}-\d{2}-\d{2}\b`)
	accountRe = regexp.MustCompile(`\b\d{3,}(?:[ -]\d{3,})*\b`)
	routingRe = regexp.MustCompile(`(?i)(routing\s*(?:no\.?|number)[:\s-]*)(\d{9})\b`)
	emailRe   = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
	nonDigit  = regexp.MustCompile(`\D`)
)

// Masker masks identifiers in free text.
type Masker struct {
	// AccountOnly limits masking to account numbers.
	AccountOnly bool
}

// Text masks every supported identifier in s.
func (m Masker) Text(s string) string {
	if !m.AccountOnly {
		s = ibanRe.ReplaceAllStringFunc(s, func(v string) string {
			return Token("IBAN", v, 4)
		})
		s = cardRe.ReplaceAllStringFunc(s, func(v string) string {
			digits := nonDigit.ReplaceAllString(v, "")
			if luhn(digits) {
				return Token("CARD", digits, 4)
			}
			return v
		})
		s = bvnRe.ReplaceAllStringFunc(s, func(v string) string {
			return Token("BVN", v, 2)
		})
		s = sortRe.ReplaceAllStringFunc(s, func(v string) string {
			return Token("SORT", strings.ReplaceAll(v, "-", ""), 2)
		})
		s = routingRe.ReplaceAllStringFunc(s, func(v string) string {
			sm := routingRe.FindStringSubmatch(v)
			return sm[1] + Token("ROUTING", sm[2], 2)
		})
	}

	s = accountRe.ReplaceAllStringFunc(s, func(v string) string {
		digits := nonDigit.ReplaceAllString(v, "")
		if len(digits) < 8 || len(digits) > 12 {
			return v
		}
		return Token("ACCT", digits, 4)
	})

	if !m.AccountOnly {
		s = emailRe.ReplaceAllStringFunc(s, func(v string) string {
			return Token("EMAIL", v, 0)
		})
	}
	return s
}

// AccountNumber masks a bare account number. Empty input stays empty.
func (m Masker) AccountNumber(number string) string {
	if number == "" {
		return ""
	}
	return Token("ACCT", number, 4)
}

// Statement returns masked copies of the header and transactions.
func (m Masker) Statement(header domain.AccountHeader, txs []domain.TransactionRecord) (domain.AccountHeader, []domain.TransactionRecord) {
	header.AccountNumber = m.AccountNumber(header.AccountNumber)
	out := make([]domain.TransactionRecord, len(txs))
	for i, tx := range txs {
		tx.Description = m.Text(tx.Description)
		out[i] = tx
	}
	return header, out
}

// Token renders <TAG:hash> or <TAG:hash:tail>, where hash is the first ten
// hex digits of the SHA-1 of value without whitespace and tail is its last
// keep digits.
func Token(tag, value string, keep int) string {
	clean := strings.Join(strings.Fields(value), "")
	sum := sha1.Sum([]byte(clean))
	h := hex.EncodeToString(sum[:])[:10]

	digits := nonDigit.ReplaceAllString(clean, "")
	if keep > 0 && len(digits) > 0 {
		if len(digits) > keep {
			digits = digits[len(digits)-keep:]
		}
		return "<" + tag + ":" + h + ":" + digits + ">"
	}
	return "<" + tag + ":" + h + ">"
}

func luhn(digits string) bool {
	if len(digits) < 13 || len(digits) > 19 {
		return false
	}
	sum := 0
	for i := 0; i < len(digits); i++ {
		n := int(digits[len(digits)-1-i] - '0')
		if i%2 == 1 {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
	}
	return sum%10 == 0
}

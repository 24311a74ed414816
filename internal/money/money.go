// Package money converts statement amount text into signed minor-unit integers.
// Decimal text is converted exactly once, here, using shopspring/decimal and the
// ISO-4217 exponents known to go-money. Nothing downstream sees a float.
package money

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Marker is an explicit debit/credit indicator printed next to an amount.
type Marker int

const (
	NoMarker Marker = iota
	DebitMarker
	CreditMarker
)

// ErrInvalidAmount is returned when text does not contain a parseable number.
var ErrInvalidAmount = errors.New("invalid amount")

// Amount is a parsed amount in minor units.
type Amount struct {
	Minor int64
	// Signed is true when the text itself fixed the sign (minus, parentheses or a DR/CR marker).
	Signed bool
	Marker Marker
}

// Abs returns the magnitude in minor units.
func (a Amount) Abs() int64 {
	if a.Minor < 0 {
		return -a.Minor
	}
	return a.Minor
}

var currencySymbols = []string{"R$", "₦", "$", "€", "£", "₹", "¥"}

var currencyCodes = []string{"NGN", "USD", "EUR", "GBP", "INR", "CAD", "JPY"}

// Exponent returns the number of minor-unit digits for the currency, defaulting to 2.
// XXX ("no currency") also uses 2 since statements print two decimals.
func Exponent(currency string) int {
	code := strings.ToUpper(currency)
	if code == "XXX" {
		return 2
	}
	if c := gomoney.GetCurrency(code); c != nil {
		return c.Fraction
	}
	return 2
}

// Parse converts amount text such as "1,234.56", "(250.00)", "100.50 DR",
// "75.25-" or "1.234,56" into minor units of the given currency.
// Rounding is half away from zero.
func Parse(text, currency string) (Amount, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return Amount{}, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	var out Amount
	negative := false

	s, out.Marker = stripMarker(s)
	if out.Marker == DebitMarker {
		negative = true
	}

	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		out.Signed = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	s = stripCurrency(s)

	switch {
	case strings.HasPrefix(s, "-"):
		negative = true
		out.Signed = true
		s = strings.TrimSpace(s[1:])
	case strings.HasSuffix(s, "-"):
		negative = true
		out.Signed = true
		s = strings.TrimSpace(s[:len(s)-1])
	case strings.HasPrefix(s, "+"):
		out.Signed = true
		s = strings.TrimSpace(s[1:])
	}
	// Symbols may also follow the sign, e.g. "-₦500".
	s = stripCurrency(s)

	if out.Marker != NoMarker {
		out.Signed = true
	}

	digits, err := normalizeNumber(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", err, text)
	}

	d, err := decimal.NewFromString(digits)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, text)
	}

	minor := d.Shift(int32(Exponent(currency))).Round(0).IntPart()
	if negative {
		minor = -minor
	}
	out.Minor = minor
	return out, nil
}

// ParseMinor is Parse returning only the signed minor-unit value.
func ParseMinor(text, currency string) (int64, error) {
	a, err := Parse(text, currency)
	if err != nil {
		return 0, err
	}
	return a.Minor, nil
}

// Format renders minor units with the currency symbol, e.g. "₦1,234.50".
func Format(minor int64, currency string) string {
	code := strings.ToUpper(currency)
	if gomoney.GetCurrency(code) == nil {
		return fmt.Sprintf("%s %s", decimal.New(minor, -int32(Exponent(code))).StringFixed(int32(Exponent(code))), code)
	}
	return gomoney.New(minor, code).Display()
}

func stripMarker(s string) (string, Marker) {
	upper := strings.ToUpper(s)
	for _, m := range []struct {
		token  string
		marker Marker
	}{
		{"DR", DebitMarker},
		{"CR", CreditMarker},
	} {
		if strings.HasSuffix(upper, m.token) {
			rest := strings.TrimSpace(s[:len(s)-len(m.token)])
			if rest != "" && !unicode.IsLetter(rune(rest[len(rest)-1])) {
				return strings.TrimSpace(rest), m.marker
			}
		}
		if strings.HasPrefix(upper, m.token+" ") {
			return strings.TrimSpace(s[len(m.token):]), m.marker
		}
	}
	return s, NoMarker
}

func stripCurrency(s string) string {
	for _, sym := range currencySymbols {
		s = strings.ReplaceAll(s, sym, "")
	}
	upper := strings.ToUpper(s)
	for _, code := range currencyCodes {
		if strings.HasPrefix(upper, code) {
			s = s[len(code):]
			upper = upper[len(code):]
		}
		if strings.HasSuffix(upper, code) {
			s = s[:len(s)-len(code)]
			upper = upper[:len(upper)-len(code)]
		}
	}
	return strings.TrimSpace(s)
}

// normalizeNumber removes grouping separators and returns a plain decimal
// string with '.' as the decimal point.
func normalizeNumber(s string) (string, error) {
	s = strings.NewReplacer(" ", "", "\u00a0", "", "'", "", "_", "").Replace(s)
	if s == "" {
		return "", ErrInvalidAmount
	}
	for _, r := range s {
		if !unicode.IsDigit(r) && r != '.' && r != ',' {
			return "", ErrInvalidAmount
		}
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			// 1.234,56
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			// 1,234.56
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		if strings.Count(s, ",") == 1 && len(s)-lastComma-1 != 3 {
			// 12,50
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 {
			// 1.234.567
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	if strings.Trim(s, ".") == "" || strings.Count(s, ".") > 1 {
		return "", ErrInvalidAmount
	}
	return s, nil
}

package statement

import (
	"regexp"
	"strings"

	"github.com/dvloznov/statement-pipeline/internal/domain"
	"github.com/dvloznov/statement-pipeline/internal/money"
)

// Balances are searched for on the first and last headerPages pages.
const headerPages = 2

var (
	openingAnchor = regexp.MustCompile(`(?i)opening\s*balance|balance\s*brought\s*forward|brought\s*forward|balance\s*b/f|b/fwd|\bstart(?:ing)?\s*balance|\bbeginning\s*balance|previous\s*balance`)
	closingAnchor = regexp.MustCompile(`(?i)closing\s*balance|balance\s*carried\s*forward|carried\s*forward|balance\s*c/f|c/fwd|\bend(?:ing)?\s*balance|\bfinal\s*balance`)

	accountNumberRe = regexp.MustCompile(`(?i)account\s*(?:no\.?|number|num|#)\s*[:.\-]?\s*([0-9][0-9 \-]{4,22}[0-9])`)
	accountNameRe   = regexp.MustCompile(`(?i)account\s*name\s*[:.\-]?\s*(.+)`)

	// dates must be blanked before searching for amounts so that 01.02.2024
	// is not read as 1.02
	anyDate = regexp.MustCompile(`(?i)\b(?:\d{4}[-/]\d{1,2}[-/]\d{1,2}|\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4}|\d{1,2}[- ](?:` + monthNames + `)\.?[- ,]+\d{2,4}|(?:` + monthNames + `)\.? \d{1,2},? \d{4})\b`)

	headerDecimalAmount = regexp.MustCompile(`(?i)\(?-?(?:[₦$€£¥₹]\s?)?(?:\d{1,3}(?:[.,' ]\d{3})+|\d+)[.,]\d{1,2}\)?-?(?:\s?(?:dr|cr)\b)?`)
	headerIntegerAmount = regexp.MustCompile(`(?i)\(?-?(?:[₦$€£¥₹]\s?)?(?:\d{1,3}(?:[,' ]\d{3})+|\d+)\)?-?(?:\s?(?:dr|cr)\b)?`)
)

// headerInfo is what could be read from the statement header and footer.
type headerInfo struct {
	accountName   string
	accountNumber string
	opening       *int64
	closing       *int64
}

// locateHeader finds the account identity and balance anchors. The opening
// balance is taken from the first occurrence on the leading pages, the closing
// balance from the last occurrence on the trailing pages.
func locateHeader(pages []domain.RawPage, currency string) headerInfo {
	var info headerInfo
	integers := money.Exponent(currency) == 0

	lead := pages
	if len(lead) > headerPages {
		lead = lead[:headerPages]
	}
	for _, p := range lead {
		for _, line := range lines(p.Text) {
			if info.accountNumber == "" {
				if m := accountNumberRe.FindStringSubmatch(line); m != nil {
					info.accountNumber = strings.NewReplacer(" ", "", "-", "").Replace(m[1])
				}
			}
			if info.accountName == "" {
				if m := accountNameRe.FindStringSubmatch(line); m != nil {
					if name := firstCell(m[1]); name != "" {
						info.accountName = name
					}
				}
			}
			if info.opening == nil {
				if v, ok := anchoredAmount(line, openingAnchor, currency, integers); ok {
					info.opening = &v
				}
			}
		}
	}

	tail := pages
	if len(tail) > headerPages {
		tail = tail[len(tail)-headerPages:]
	}
	for _, p := range tail {
		for _, line := range lines(p.Text) {
			if v, ok := anchoredAmount(line, closingAnchor, currency, integers); ok {
				info.closing = &v
			}
		}
	}
	return info
}

// anchoredAmount returns the first amount following anchor on the line and
// before any other balance anchor.
func anchoredAmount(line string, anchor *regexp.Regexp, currency string, integers bool) (int64, bool) {
	loc := anchor.FindStringIndex(line)
	if loc == nil {
		return 0, false
	}
	rest := line[loc[1]:]
	for _, other := range []*regexp.Regexp{openingAnchor, closingAnchor} {
		if l := other.FindStringIndex(rest); l != nil {
			rest = rest[:l[0]]
		}
	}
	rest = anyDate.ReplaceAllString(rest, " ")

	tok := ""
	if !integers {
		tok = completeMatch(headerDecimalAmount, rest)
	}
	if tok == "" {
		tok = completeMatch(headerIntegerAmount, rest)
	}
	if tok == "" {
		return 0, false
	}
	amt, err := money.Parse(tok, currency)
	if err != nil {
		return 0, false
	}
	return amt.Minor, true
}

// completeMatch returns the first match of re that does not stop in the
// middle of a digit run. "150,000" must not be read as the decimal "150,00".
func completeMatch(re *regexp.Regexp, s string) string {
	for _, loc := range re.FindAllStringIndex(s, -1) {
		if loc[1] < len(s) && s[loc[1]] >= '0' && s[loc[1]] <= '9' {
			continue
		}
		return s[loc[0]:loc[1]]
	}
	return ""
}

func firstCell(s string) string {
	cells := splitCells(s)
	if len(cells) == 0 {
		return ""
	}
	return cells[0]
}

func lines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

// isBalanceLine reports whether text names an opening or closing balance.
func isBalanceLine(text string) bool {
	return openingAnchor.MatchString(text) || closingAnchor.MatchString(text)
}

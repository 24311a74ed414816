package statement

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

type column int

const (
	colUnknown column = iota
	colIgnore
	colDate
	colDescription
	colDebit
	colCredit
	colAmount
	colBalance
	colType
	colCurrency
)

// headerSynonyms maps normalised column titles to their role. Strategies may
// extend it.
var headerSynonyms = map[string]column{
	"date":                colDate,
	"trans date":          colDate,
	"tran date":           colDate,
	"txn date":            colDate,
	"transaction date":    colDate,
	"posting date":        colDate,
	"post date":           colDate,
	"value date":          colDate,
	"date posted":         colDate,
	"description":         colDescription,
	"details":             colDescription,
	"transaction details": colDescription,
	"narration":           colDescription,
	"narrative":           colDescription,
	"particulars":         colDescription,
	"remarks":             colDescription,
	"remark":              colDescription,
	"memo":                colDescription,
	"debit":               colDebit,
	"debits":              colDebit,
	"debit amount":        colDebit,
	"withdrawal":          colDebit,
	"withdrawals":         colDebit,
	"money out":           colDebit,
	"paid out":            colDebit,
	"dr":                  colDebit,
	"credit":              colCredit,
	"credits":             colCredit,
	"credit amount":       colCredit,
	"deposit":             colCredit,
	"deposits":            colCredit,
	"lodgement":           colCredit,
	"lodgements":          colCredit,
	"money in":            colCredit,
	"paid in":             colCredit,
	"cr":                  colCredit,
	"amount":              colAmount,
	"amt":                 colAmount,
	"transaction amount":  colAmount,
	"balance":             colBalance,
	"bal":                 colBalance,
	"running balance":     colBalance,
	"balance after":       colBalance,
	"available balance":   colBalance,
	"ledger balance":      colBalance,
	"type":                colType,
	"dr/cr":               colType,
	"d/c":                 colType,
	"transaction type":    colType,
	"currency":            colCurrency,
	"ccy":                 colCurrency,
	"reference":           colIgnore,
	"ref":                 colIgnore,
	"ref no":              colIgnore,
	"reference no":        colIgnore,
	"cheque no":           colIgnore,
	"chq no":              colIgnore,
	"channel":             colIgnore,
}

var cellSplit = regexp.MustCompile(`\t+|\s{2,}`)

var titleNoise = regexp.MustCompile(`[().:#₦$€£]`)

// span is a half-open range of rune offsets within a line.
type span struct {
	start, end int
}

// twice the midpoint, to keep distances integral
func (s span) mid2() int {
	return s.start + s.end
}

// splitCells splits a text line into cells separated by tabs or runs of two
// or more spaces.
func splitCells(line string) []string {
	cells, _ := cellSpans(line)
	return cells
}

// cellSpans is splitCells that also reports where each cell sits on the line.
func cellSpans(line string) ([]string, []span) {
	var (
		cells []string
		spans []span
	)
	add := func(from, to int) {
		raw := line[from:to]
		text := strings.TrimSpace(raw)
		if text == "" {
			return
		}
		lead := len(raw) - len(strings.TrimLeftFunc(raw, unicode.IsSpace))
		start := utf8.RuneCountInString(line[:from+lead])
		cells = append(cells, text)
		spans = append(spans, span{start: start, end: start + utf8.RuneCountInString(text)})
	}
	prev := 0
	for _, loc := range cellSplit.FindAllStringIndex(line, -1) {
		add(prev, loc[0])
		prev = loc[1]
	}
	add(prev, len(line))
	return cells, spans
}

// locate finds the last occurrence of tok on line before the text stop, which
// may be empty.
func locate(line, tok, stop string) (span, bool) {
	end := len(line)
	if stop != "" {
		if i := strings.LastIndex(line, stop); i >= 0 {
			end = i
		}
	}
	i := strings.LastIndex(line[:end], tok)
	if i < 0 {
		return span{}, false
	}
	start := utf8.RuneCountInString(line[:i])
	return span{start: start, end: start + utf8.RuneCountInString(tok)}, true
}

func normaliseTitle(s string) string {
	s = strings.ToLower(titleNoise.ReplaceAllString(s, " "))
	return strings.Join(strings.Fields(s), " ")
}

// tableHeader is the column layout of a detected transaction table. spans
// holds the position of each title when the header was split on wide gaps.
type tableHeader struct {
	cols  []column
	spans []span
}

func (h *tableHeader) has(c column) bool {
	return h.index(c) >= 0
}

func (h *tableHeader) index(c column) int {
	if h == nil {
		return -1
	}
	for i, col := range h.cols {
		if col == c {
			return i
		}
	}
	return -1
}

// nearest returns whichever of a and b has its title centred closest to s.
func (h *tableHeader) nearest(s span, a, b column) (column, bool) {
	ia, ib := h.index(a), h.index(b)
	if h == nil || len(h.spans) != len(h.cols) || ia < 0 || ib < 0 {
		return colUnknown, false
	}
	if distance(h.spans[ia].mid2(), s.mid2()) <= distance(h.spans[ib].mid2(), s.mid2()) {
		return a, true
	}
	return b, true
}

func distance(x, y int) int {
	if x > y {
		return x - y
	}
	return y - x
}

// detectHeader reports whether line is a transaction table header. A header
// needs a date column, at least one of amount, debit, credit or description,
// and no unrecognised cells.
func detectHeader(line string, synonyms map[string]column) (*tableHeader, bool) {
	cells := splitCells(line)
	if len(cells) < 2 {
		return nil, false
	}
	h := &tableHeader{cols: make([]column, len(cells))}
	seenDate := false
	for i, cell := range cells {
		c, ok := synonyms[normaliseTitle(cell)]
		if !ok {
			return nil, false
		}
		if c == colDate {
			// only the first date column is kept, later ones are value dates
			if seenDate {
				c = colIgnore
			}
			seenDate = true
		}
		h.cols[i] = c
	}
	if !seenDate {
		return nil, false
	}
	if !h.has(colAmount) && !h.has(colDebit) && !h.has(colCredit) && !h.has(colDescription) {
		return nil, false
	}
	return h, true
}

// amountToken matches a monetary token that carries a decimal part, with an
// optional sign, parentheses, currency symbol and DR/CR marker.
var amountToken = regexp.MustCompile(`(?i)^(?:(?:dr|cr)\s?)?\(?[-+]?(?:[a-z]{3}\s?|[₦$€£¥₹])?\d{1,3}(?:[,' ]?\d{3})*[.,]\d{1,2}\)?-?(?:\s?(?:dr|cr))?$`)

// integerAmountToken is used for currencies without minor units.
var integerAmountToken = regexp.MustCompile(`(?i)^(?:(?:dr|cr)\s?)?\(?[-+]?(?:[a-z]{3}\s?|[₦$€£¥₹])?\d{1,3}(?:[,' ]?\d{3})*\)?-?(?:\s?(?:dr|cr))?$`)

var typeToken = regexp.MustCompile(`(?i)^(dr|cr|d|c|debit|credit)$`)

// trailingAmounts peels up to max monetary tokens off the end of text and
// returns them in reading order along with the leading text and a standalone
// type token, if one preceded the amounts.
func trailingAmounts(text string, max int, integers bool) (lead string, amounts []string, kind string) {
	match := amountToken
	if integers {
		match = integerAmountToken
	}
	fields := strings.Fields(text)
	end := len(fields)
	for end > 0 && len(amounts) < max {
		tok := fields[end-1]
		// "100.50 DR" arrives as two fields
		if end >= 2 && typeToken.MatchString(tok) && len(tok) == 2 {
			joined := fields[end-2] + " " + tok
			if match.MatchString(joined) && !typeToken.MatchString(fields[end-2]) {
				amounts = append(amounts, joined)
				end -= 2
				continue
			}
		}
		if !match.MatchString(tok) {
			break
		}
		amounts = append(amounts, tok)
		end--
	}
	for i, j := 0, len(amounts)-1; i < j; i, j = i+1, j-1 {
		amounts[i], amounts[j] = amounts[j], amounts[i]
	}
	if len(amounts) > 0 && end > 0 && typeToken.MatchString(fields[end-1]) {
		kind = fields[end-1]
		end--
	}
	return strings.Join(fields[:end], " "), amounts, kind
}

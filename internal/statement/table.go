package statement

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/dvloznov/statement-pipeline/internal/domain"
	"github.com/dvloznov/statement-pipeline/internal/logger"
	"github.com/dvloznov/statement-pipeline/internal/money"
)

// UnknownCurrency is the ISO 4217 code for "no currency", used when neither
// classification nor the strategy supplies one.
const UnknownCurrency = "XXX"

// minColumnGap is the smallest offset difference, in characters, that
// separates two columns of lone amounts.
const minColumnGap = 3

var errMissingAmount = errors.New("no amount")

var (
	noiseLine = regexp.MustCompile(`(?i)^(?:page\s*\d+(?:\s*(?:of|/)\s*\d+)?|total\b|totals\b|sub\s*-?total|statement\s+(?:period|date)|printed\s+on|generated\s+on)`)

	defaultDebitHints  = regexp.MustCompile(`(?i)\b(?:pos|atm|withdrawal|purchase|transfer\s+to|trf\s+to|debit|charge|charges|fee|vat|stamp\s+duty|sms\s+alert|airtime|bill\s+payment|web\s+payment)\b`)
	defaultCreditHints = regexp.MustCompile(`(?i)\b(?:transfer\s+from|trf\s+from|deposit|credit|salary|reversal|refund|interest\s+paid|inward|received)\b`)
)

// Layout configures a TableParser for one bank family.
type Layout struct {
	Name      string
	DateOrder DateOrder
	// DefaultCurrency is used when classification found no currency.
	DefaultCurrency string
	// Synonyms extend the shared column title table.
	Synonyms map[string]column
	// DebitHints and CreditHints break ties for unsigned amounts when no
	// marker, column or running balance decides the sign.
	DebitHints  *regexp.Regexp
	CreditHints *regexp.Regexp
	// TrailingNoise matches tokens printed after the amounts, such as
	// channel names or references, which are dropped before amounts are read.
	TrailingNoise *regexp.Regexp
}

// TableParser reads row-per-line transaction tables. The exported
// constructors configure it per bank family.
type TableParser struct {
	layout   Layout
	synonyms map[string]column
	words    int
}

// NewTableParser creates a parser for the given layout.
func NewTableParser(l Layout) *TableParser {
	if l.DebitHints == nil {
		l.DebitHints = defaultDebitHints
	}
	if l.CreditHints == nil {
		l.CreditHints = defaultCreditHints
	}
	syn := make(map[string]column, len(headerSynonyms)+len(l.Synonyms))
	for k, v := range headerSynonyms {
		syn[k] = v
	}
	for k, v := range l.Synonyms {
		syn[k] = v
	}
	words := 1
	for k := range syn {
		if n := len(strings.Fields(k)); n > words {
			words = n
		}
	}
	return &TableParser{layout: l, synonyms: syn, words: words}
}

// Name returns the layout name.
func (p *TableParser) Name() string {
	return p.layout.Name
}

// rawRow is a transaction row before amounts and dates are interpreted.
type rawRow struct {
	page, line  int
	date, clock string
	description []string

	debit, credit, amount, balance, kind string

	header *tableHeader
	// loose is a single amount in a debit/credit table whose column is
	// decided by placeLoose.
	loose   string
	looseAt *span
}

func (r *rawRow) hasAmount() bool {
	return r.debit != "" || r.credit != "" || r.amount != "" || r.loose != ""
}

// Parse implements Parser.
func (p *TableParser) Parse(ctx context.Context, pages []domain.RawPage, currency string) (*Parsed, error) {
	log := logger.FromContext(ctx).With().Str("parser", p.Name()).Logger()

	res := &Parsed{Parser: p.Name()}

	if currency == "" {
		currency = p.layout.DefaultCurrency
	}
	if currency == "" {
		currency = UnknownCurrency
		res.Warnings = append(res.Warnings, domain.NewWarning(domain.WarnCurrencyUnknown,
			"no currency marker found, using %s", UnknownCurrency))
	}
	integers := money.Exponent(currency) == 0

	info := locateHeader(pages, currency)

	rows, err := p.scan(ctx, pages, integers)
	if err != nil {
		return nil, fmt.Errorf("Parse: scanning rows: %w", err)
	}
	placeLoose(rows)

	order := p.layout.DateOrder
	if order == DateOrderAuto {
		tokens := make([]string, 0, len(rows))
		for _, r := range rows {
			tokens = append(tokens, r.date)
		}
		order = inferDateOrder(tokens)
	}

	txs, warnings := p.resolve(rows, order, info.opening, currency)
	res.Transactions = txs
	res.Warnings = append(res.Warnings, warnings...)

	opening, closing, derived, err := completeBalances(info, txs)
	if err != nil {
		return nil, fmt.Errorf("Parse: %w", err)
	}
	res.Warnings = append(res.Warnings, derived...)

	res.Header = domain.AccountHeader{
		AccountName:    info.accountName,
		AccountNumber:  info.accountNumber,
		OpeningBalance: opening,
		ClosingBalance: closing,
		Currency:       currency,
	}

	log.Debug().
		Int("rows", len(rows)).
		Int("transactions", len(txs)).
		Int("warnings", len(res.Warnings)).
		Msg("Parsed statement")

	return res, nil
}

// completeBalances fills in a missing opening or closing balance from the
// stated running balances. A derived opening is the first running balance
// less every amount up to and including its row.
func completeBalances(info headerInfo, txs []domain.TransactionRecord) (opening, closing int64, warnings []domain.Warning, err error) {
	if info.opening == nil && info.closing == nil {
		return 0, 0, nil, domain.ErrHeaderNotFound
	}

	if info.opening != nil {
		opening = *info.opening
	} else {
		first := -1
		for i, tx := range txs {
			if tx.BalanceMinor != nil {
				first = i
				break
			}
		}
		if first < 0 {
			return 0, 0, nil, fmt.Errorf("%w: no opening balance", domain.ErrHeaderNotFound)
		}
		opening = *txs[first].BalanceMinor
		for _, tx := range txs[:first+1] {
			opening -= tx.AmountMinor
		}
		warnings = append(warnings, domain.NewWarning(domain.WarnHeaderBalanceDerived,
			"opening balance derived from the first running balance"))
	}

	if info.closing != nil {
		closing = *info.closing
	} else {
		last := -1
		for i := len(txs) - 1; i >= 0; i-- {
			if txs[i].BalanceMinor != nil {
				last = i
				break
			}
		}
		if last < 0 {
			return 0, 0, nil, fmt.Errorf("%w: no closing balance", domain.ErrHeaderNotFound)
		}
		closing = *txs[last].BalanceMinor
		for _, tx := range txs[last+1:] {
			closing += tx.AmountMinor
		}
		warnings = append(warnings, domain.NewWarning(domain.WarnHeaderBalanceDerived,
			"closing balance derived from the last running balance"))
	}
	return opening, closing, warnings, nil
}

// scan walks every line in page order and groups them into raw rows. The
// detected table header carries over page breaks.
func (p *TableParser) scan(ctx context.Context, pages []domain.RawPage, integers bool) ([]*rawRow, error) {
	var (
		header *tableHeader
		rows   []*rawRow
	)
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var cur *rawRow
		for li, line := range lines(page.Text) {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" {
				continue
			}
			if h, ok := p.detectHeader(trimmed); ok {
				if cells, spans := cellSpans(line); len(cells) == len(h.cols) {
					h.spans = spans
				}
				header, cur = h, nil
				continue
			}
			if noiseLine.MatchString(trimmed) {
				cur = nil
				continue
			}
			if date, clock, rest, ok := splitLeadingDate(trimmed); ok {
				row := p.buildRow(header, line, rest, integers)
				row.page, row.line = page.Index, li
				row.date, row.clock = date, clock
				if isBalanceLine(strings.Join(row.description, " ")) {
					cur = nil
					continue
				}
				rows = append(rows, row)
				cur = row
				continue
			}
			if isBalanceLine(trimmed) {
				cur = nil
				continue
			}
			if cur == nil {
				continue
			}
			if !cur.hasAmount() {
				lead, amounts, kind := trailingAmounts(trimmed, 3, integers)
				if len(amounts) > 0 {
					assignPositional(cur, header, amounts, kind, line)
					trimmed = lead
				}
			}
			if trimmed != "" {
				cur.description = append(cur.description, trimmed)
			}
		}
	}
	return rows, nil
}

func (p *TableParser) detectHeader(line string) (*tableHeader, bool) {
	if h, ok := detectHeader(line, p.synonyms); ok {
		return h, true
	}
	return detectHeaderWords(line, p.synonyms, p.words)
}

// detectHeaderWords handles headers whose titles are separated by single
// spaces by greedily matching the longest known title at each position.
func detectHeaderWords(line string, synonyms map[string]column, maxWords int) (*tableHeader, bool) {
	fields := strings.Fields(normaliseTitle(line))
	if len(fields) < 2 {
		return nil, false
	}
	var titles []string
	for i := 0; i < len(fields); {
		matched := 0
		for n := min(maxWords, len(fields)-i); n > 0; n-- {
			if _, ok := synonyms[strings.Join(fields[i:i+n], " ")]; ok {
				matched = n
				break
			}
		}
		if matched == 0 {
			return nil, false
		}
		titles = append(titles, strings.Join(fields[i:i+matched], " "))
		i += matched
	}
	return detectHeader(strings.Join(titles, "\t"), synonyms)
}

// buildRow maps cells onto the header columns when the counts line up and
// otherwise falls back to reading amounts off the end of the line. line is
// the untrimmed text so offsets match the header's.
func (p *TableParser) buildRow(header *tableHeader, line, rest string, integers bool) *rawRow {
	row := &rawRow{header: header}
	if header != nil {
		cells := splitCells(line)
		if len(cells) == len(header.cols) {
			for i, c := range header.cols {
				cell := cells[i]
				if isBlankCell(cell) {
					continue
				}
				switch c {
				case colDescription:
					row.description = append(row.description, cell)
				case colDebit:
					row.debit = cell
				case colCredit:
					row.credit = cell
				case colAmount:
					row.amount = cell
				case colBalance:
					row.balance = cell
				case colType:
					row.kind = cell
				}
			}
			return row
		}
	}

	// a second leading date is the value date column
	if _, _, after, ok := splitLeadingDate(rest); ok {
		rest = after
	}
	rest = p.dropTrailingNoise(rest)

	lead, amounts, kind := trailingAmounts(rest, 3, integers)
	if lead != "" {
		row.description = append(row.description, lead)
	}
	if len(amounts) > 0 {
		assignPositional(row, header, amounts, kind, line)
	}
	return row
}

func (p *TableParser) dropTrailingNoise(text string) string {
	if p.layout.TrailingNoise == nil {
		return text
	}
	fields := strings.Fields(text)
	end := len(fields)
	for end > 0 && p.layout.TrailingNoise.MatchString(fields[end-1]) {
		end--
	}
	return strings.Join(fields[:end], " ")
}

// assignPositional interprets amounts read from the end of a line.
func assignPositional(row *rawRow, header *tableHeader, amounts []string, kind, line string) {
	row.kind = kind
	if header.has(colDebit) && header.has(colCredit) {
		assignSplit(row, header, amounts, line)
		return
	}
	switch len(amounts) {
	case 1:
		row.amount = amounts[0]
	case 2:
		row.amount, row.balance = amounts[0], amounts[1]
	default:
		if header != nil {
			row.description = append(row.description, amounts[0])
			row.amount, row.balance = amounts[1], amounts[2]
			return
		}
		row.debit, row.credit, row.balance = amounts[0], amounts[1], amounts[2]
	}
}

// assignSplit handles tables with separate debit and credit columns whose
// empty cell was printed as blank space.
func assignSplit(row *rawRow, header *tableHeader, amounts []string, line string) {
	if header.has(colBalance) && len(amounts) > 1 {
		row.balance = amounts[len(amounts)-1]
		amounts = amounts[:len(amounts)-1]
	}
	switch len(amounts) {
	case 1:
		row.loose = amounts[0]
		if at, ok := locate(line, row.loose, row.balance); ok {
			row.looseAt = &at
		}
	case 2:
		if header.index(colCredit) < header.index(colDebit) {
			row.credit, row.debit = amounts[0], amounts[1]
			return
		}
		row.debit, row.credit = amounts[0], amounts[1]
	default:
		row.debit, row.credit, row.balance = amounts[0], amounts[1], amounts[2]
	}
}

// placeLoose moves every lone amount into the debit or credit column. Within
// one table, lone amounts that sit in two clearly separated groups go to the
// header's columns in reading order. Otherwise each goes to the column whose
// title is nearest. An amount with no usable position stays unsigned.
func placeLoose(rows []*rawRow) {
	tables := make(map[*tableHeader][]*rawRow)
	for _, r := range rows {
		if r.loose != "" {
			tables[r.header] = append(tables[r.header], r)
		}
	}
	for h, group := range tables {
		placeTable(h, group)
	}
}

func placeTable(h *tableHeader, rows []*rawRow) {
	left, right := colDebit, colCredit
	if h.index(colCredit) < h.index(colDebit) {
		left, right = colCredit, colDebit
	}

	var starts, ends []int
	for _, r := range rows {
		if r.looseAt != nil {
			starts = append(starts, r.looseAt.start)
			ends = append(ends, r.looseAt.end)
		}
	}
	// right-aligned amounts share an end offset, left-aligned ones a start
	startGap, startCut := widestGap(starts)
	endGap, endCut := widestGap(ends)
	grouped := min(startGap, endGap) >= minColumnGap

	for _, r := range rows {
		if r.looseAt == nil {
			r.amount = r.loose
			continue
		}
		if grouped {
			pos, cut := r.looseAt.start, startCut
			if endGap >= startGap {
				pos, cut = r.looseAt.end, endCut
			}
			if pos <= cut {
				r.place(left)
			} else {
				r.place(right)
			}
			continue
		}
		c, ok := h.nearest(*r.looseAt, colDebit, colCredit)
		if !ok {
			r.amount = r.loose
			continue
		}
		r.place(c)
	}
}

func (r *rawRow) place(c column) {
	if c == colDebit {
		r.debit = r.loose
	} else {
		r.credit = r.loose
	}
}

// widestGap returns the largest difference between neighbouring sorted values
// and the point halfway across it.
func widestGap(values []int) (gap, cut int) {
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	for i := 1; i < len(sorted); i++ {
		if d := sorted[i] - sorted[i-1]; d > gap {
			gap, cut = d, sorted[i-1]+d/2
		}
	}
	return gap, cut
}

func isBlankCell(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "-", "--", "—", "n/a", "nil":
		return true
	}
	return false
}

// resolve converts raw rows into transactions, tracking the running balance
// so unsigned amounts can take their sign from the balance movement.
func (p *TableParser) resolve(rows []*rawRow, order DateOrder, opening *int64, currency string) ([]domain.TransactionRecord, []domain.Warning) {
	var (
		txs      []domain.TransactionRecord
		warnings []domain.Warning
		prev     *int64
	)
	if opening != nil {
		v := *opening
		prev = &v
	}

	for _, r := range rows {
		date, err := parseDate(r.date, order)
		if err != nil {
			warnings = append(warnings, domain.RowWarning(domain.WarnRowSkipped, r.page, r.line, "%v", err))
			continue
		}
		clock, _ := parseClock(r.clock)

		var balance *int64
		if r.balance != "" {
			if b, err := money.Parse(r.balance, currency); err == nil {
				v := b.Minor
				balance = &v
			}
		}

		description := strings.Join(strings.Fields(strings.Join(r.description, " ")), " ")

		amount, inferred, err := p.signedAmount(r, description, prev, balance, currency)
		if err != nil {
			warnings = append(warnings, domain.RowWarning(domain.WarnRowSkipped, r.page, r.line, "%v", err))
			continue
		}
		if amount == 0 {
			continue
		}
		if inferred {
			warnings = append(warnings, domain.RowWarning(domain.WarnSignInferred, r.page, r.line,
				"no debit/credit indicator, treated %s as %s", r.amount, direction(amount)))
		}

		switch {
		case balance != nil:
			v := *balance
			prev = &v
		case prev != nil:
			v := *prev + amount
			prev = &v
		}

		txs = append(txs, domain.TransactionRecord{
			ValueDate:    date,
			Time:         clock,
			Description:  description,
			AmountMinor:  amount,
			BalanceMinor: balance,
			PageIndex:    r.page,
			RowIndex:     r.line,
		})
	}
	return txs, warnings
}

// signedAmount applies the sign resolution order: type marker, debit/credit
// columns, signed amount text, running balance delta, description hints.
func (p *TableParser) signedAmount(r *rawRow, description string, prev, balance *int64, currency string) (int64, bool, error) {
	var (
		net    int64
		signed bool
	)
	switch {
	case r.debit != "" || r.credit != "":
		var debit, credit int64
		if r.debit != "" {
			a, err := money.Parse(r.debit, currency)
			if err != nil {
				return 0, false, fmt.Errorf("debit: %w", err)
			}
			debit = a.Abs()
		}
		if r.credit != "" {
			a, err := money.Parse(r.credit, currency)
			if err != nil {
				return 0, false, fmt.Errorf("credit: %w", err)
			}
			credit = a.Abs()
		}
		net, signed = credit-debit, true
	case r.amount != "":
		a, err := money.Parse(r.amount, currency)
		if err != nil {
			return 0, false, err
		}
		net, signed = a.Minor, a.Signed
	default:
		return 0, false, errMissingAmount
	}
	abs := net
	if abs < 0 {
		abs = -abs
	}

	switch strings.ToLower(r.kind) {
	case "dr", "d", "debit":
		return -abs, false, nil
	case "cr", "c", "credit":
		return abs, false, nil
	}
	if signed {
		return net, false, nil
	}
	if prev != nil && balance != nil {
		switch *balance {
		case *prev + abs:
			return abs, false, nil
		case *prev - abs:
			return -abs, false, nil
		}
	}
	switch {
	case p.layout.DebitHints.MatchString(description):
		return -abs, true, nil
	case p.layout.CreditHints.MatchString(description):
		return abs, true, nil
	}
	return abs, true, nil
}

func direction(amount int64) string {
	if amount < 0 {
		return "debit"
	}
	return "credit"
}

package statement

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// DateOrder says how to read ambiguous numeric dates such as 03/04/2024.
type DateOrder int

const (
	// DateOrderAuto infers the order from the document, defaulting to day first.
	DateOrderAuto DateOrder = iota
	DateOrderDayFirst
	DateOrderMonthFirst
)

const monthNames = `jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec|january|february|march|april|june|july|august|september|october|november|december`

// leadingDate matches a date token at the start of a line, optionally followed by a time.
var leadingDate = regexp.MustCompile(`(?i)^\s*(` +
	`\d{4}[-/]\d{1,2}[-/]\d{1,2}` +
	`|\d{1,2}[-/.]\d{1,2}[-/.]\d{2,4}` +
	`|\d{1,2}[- ](?:` + monthNames + `)\.?[- ,]+\d{2,4}` +
	`|(?:` + monthNames + `)\.? \d{1,2},? \d{4}` +
	`)(?:[ T]+(\d{1,2}:\d{2}(?::\d{2})?(?:\s?[ap]m)?))?(?:\s+|$)`)

var numericDate = regexp.MustCompile(`^(\d{1,2})[-/.](\d{1,2})[-/.]\d{2,4}$`)

var isoLayouts = []string{"2006-1-2", "2006/1/2"}

var dayFirstLayouts = []string{
	"2/1/2006", "2-1-2006", "2.1.2006", "2/1/06", "2-1-06", "2.1.06",
}

var monthFirstLayouts = []string{
	"1/2/2006", "1-2-2006", "1.2.2006", "1/2/06", "1-2-06",
}

var namedLayouts = []string{
	"2-Jan-2006", "2-Jan-06", "2 Jan 2006", "2 Jan 06", "2 January 2006", "2-January-2006",
	"Jan 2 2006", "Jan 2, 2006", "January 2 2006", "January 2, 2006",
}

var sept = regexp.MustCompile(`(?i)sept\b`)

var timeLayouts = []string{"15:04:05", "15:04", "3:04:05 PM", "3:04 PM", "3:04:05PM", "3:04PM"}

// splitLeadingDate returns the date and time tokens at the start of line and
// the remainder. ok is false when the line does not start with a date.
func splitLeadingDate(line string) (date, clock, rest string, ok bool) {
	m := leadingDate.FindStringSubmatchIndex(line)
	if m == nil {
		return "", "", line, false
	}
	date = line[m[2]:m[3]]
	if m[4] >= 0 {
		clock = line[m[4]:m[5]]
	}
	return date, clock, strings.TrimSpace(line[m[1]:]), true
}

// parseDate reads a date token. Two-digit years are resolved by the time
// package (69-99 are 19xx, 00-68 are 20xx).
func parseDate(token string, order DateOrder) (civil.Date, error) {
	s := strings.Join(strings.Fields(strings.TrimSpace(token)), " ")
	if strings.ContainsAny(s, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ") {
		s = strings.ReplaceAll(s, ".", "")
		s = sept.ReplaceAllString(s, "Sep")
	}

	layouts := append([]string{}, isoLayouts...)
	switch order {
	case DateOrderMonthFirst:
		layouts = append(layouts, monthFirstLayouts...)
		layouts = append(layouts, dayFirstLayouts...)
	default:
		layouts = append(layouts, dayFirstLayouts...)
		layouts = append(layouts, monthFirstLayouts...)
	}
	layouts = append(layouts, namedLayouts...)

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return civil.DateOf(t), nil
		}
	}
	return civil.Date{}, fmt.Errorf("unrecognised date %q", token)
}

func parseClock(token string) (*civil.Time, error) {
	if token == "" {
		return nil, nil
	}
	s := strings.ToUpper(strings.TrimSpace(token))
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			ct := civil.TimeOf(t)
			return &ct, nil
		}
	}
	return nil, fmt.Errorf("unrecognised time %q", token)
}

// inferDateOrder looks for numeric dates whose first or second component
// exceeds 12. It returns DateOrderDayFirst when the evidence is absent or mixed.
func inferDateOrder(tokens []string) DateOrder {
	dayFirst, monthFirst := 0, 0
	for _, tok := range tokens {
		m := numericDate.FindStringSubmatch(tok)
		if m == nil {
			continue
		}
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		switch {
		case a > 12 && b <= 12:
			dayFirst++
		case b > 12 && a <= 12:
			monthFirst++
		}
	}
	if monthFirst > dayFirst {
		return DateOrderMonthFirst
	}
	return DateOrderDayFirst
}

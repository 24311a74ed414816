package statement

import (
	"testing"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		token   string
		order   DateOrder
		want    civil.Date
		wantErr bool
	}{
		{"02/01/2024", DateOrderDayFirst, civil.Date{Year: 2024, Month: 1, Day: 2}, false},
		{"02/01/2024", DateOrderMonthFirst, civil.Date{Year: 2024, Month: 2, Day: 1}, false},
		{"13/01/2024", DateOrderMonthFirst, civil.Date{Year: 2024, Month: 1, Day: 13}, false},
		{"01/13/2024", DateOrderDayFirst, civil.Date{Year: 2024, Month: 1, Day: 13}, false},
		{"2/1/24", DateOrderDayFirst, civil.Date{Year: 2024, Month: 1, Day: 2}, false},
		{"02.01.2024", DateOrderDayFirst, civil.Date{Year: 2024, Month: 1, Day: 2}, false},
		{"2024-01-02", DateOrderDayFirst, civil.Date{Year: 2024, Month: 1, Day: 2}, false},
		{"02-Jan-2024", DateOrderDayFirst, civil.Date{Year: 2024, Month: 1, Day: 2}, false},
		{"02-JAN-24", DateOrderDayFirst, civil.Date{Year: 2024, Month: 1, Day: 2}, false},
		{"2 January 2024", DateOrderDayFirst, civil.Date{Year: 2024, Month: 1, Day: 2}, false},
		{"15 Sept 2024", DateOrderDayFirst, civil.Date{Year: 2024, Month: 9, Day: 15}, false},
		{"Jan 2, 2024", DateOrderDayFirst, civil.Date{Year: 2024, Month: 1, Day: 2}, false},
		{"31/02/2024", DateOrderDayFirst, civil.Date{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got, err := parseDate(tt.token, tt.order)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitLeadingDate(t *testing.T) {
	tests := []struct {
		line              string
		date, clock, rest string
		ok                bool
	}{
		{"02/01/2024  POS PURCHASE  5.00", "02/01/2024", "", "POS PURCHASE  5.00", true},
		{"2024-01-02 13:04:05   Transfer", "2024-01-02", "13:04:05", "Transfer", true},
		{"02-Jan-2024 02-Jan-2024 ATM", "02-Jan-2024", "", "02-Jan-2024 ATM", true},
		{"Jan 5, 2024 Coffee", "Jan 5, 2024", "", "Coffee", true},
		{"AMAKA STORES LTD", "", "", "AMAKA STORES LTD", false},
		{"1234 Main Street", "", "", "1234 Main Street", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			date, clock, rest, ok := splitLeadingDate(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.date, date)
			assert.Equal(t, tt.clock, clock)
			assert.Equal(t, tt.rest, rest)
		})
	}
}

func TestInferDateOrder(t *testing.T) {
	assert.Equal(t, DateOrderMonthFirst, inferDateOrder([]string{"01/03/2024", "01/13/2024"}))
	assert.Equal(t, DateOrderDayFirst, inferDateOrder([]string{"13/01/2024", "01/03/2024"}))
	assert.Equal(t, DateOrderDayFirst, inferDateOrder([]string{"01/03/2024", "02-Jan-2024"}))
}

func TestTrailingAmounts(t *testing.T) {
	tests := []struct {
		text    string
		lead    string
		amounts []string
		kind    string
	}{
		{"POS PURCHASE 12,500.00 137,500.00", "POS PURCHASE", []string{"12,500.00", "137,500.00"}, ""},
		{"ATM 100.50 DR 899.50", "ATM", []string{"100.50 DR", "899.50"}, ""},
		{"TOPUP CR 15.00", "TOPUP", []string{"15.00"}, "CR"},
		{"REF 123456 (40.00)", "REF 123456", []string{"(40.00)"}, ""},
		{"NO AMOUNT HERE", "NO AMOUNT HERE", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			lead, amounts, kind := trailingAmounts(tt.text, 3, false)
			assert.Equal(t, tt.lead, lead)
			assert.Equal(t, tt.amounts, amounts)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

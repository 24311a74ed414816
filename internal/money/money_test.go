package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		currency   string
		wantMinor  int64
		wantSigned bool
		wantMarker Marker
	}{
		{name: "plain", text: "1234.56", currency: "USD", wantMinor: 123456},
		{name: "us grouping", text: "1,234.56", currency: "USD", wantMinor: 123456},
		{name: "eu grouping", text: "1.234,56", currency: "EUR", wantMinor: 123456},
		{name: "debit marker", text: "100.50 DR", currency: "NGN", wantMinor: -10050, wantSigned: true, wantMarker: DebitMarker},
		{name: "credit marker", text: "100.50CR", currency: "NGN", wantMinor: 10050, wantSigned: true, wantMarker: CreditMarker},
		{name: "parentheses", text: "(250.00)", currency: "USD", wantMinor: -25000, wantSigned: true},
		{name: "leading minus", text: "-75.25", currency: "USD", wantMinor: -7525, wantSigned: true},
		{name: "trailing minus", text: "75.25-", currency: "USD", wantMinor: -7525, wantSigned: true},
		{name: "naira symbol", text: "₦1,000,000.00", currency: "NGN", wantMinor: 100000000},
		{name: "minus before symbol", text: "-₦500", currency: "NGN", wantMinor: -50000, wantSigned: true},
		{name: "currency code prefix", text: "NGN 2,500.10", currency: "NGN", wantMinor: 250010},
		{name: "decimal comma", text: "12,5", currency: "EUR", wantMinor: 1250},
		{name: "thousands comma only", text: "1,000", currency: "USD", wantMinor: 100000},
		{name: "zero decimal currency", text: "1,000", currency: "JPY", wantMinor: 1000},
		{name: "space grouping", text: "1 234 567,89", currency: "EUR", wantMinor: 123456789},
		{name: "rounds half away from zero", text: "0.005", currency: "USD", wantMinor: 1},
		{name: "negative rounding", text: "-0.005", currency: "USD", wantMinor: -1, wantSigned: true},
		{name: "unknown currency defaults to two digits", text: "10.01", currency: "XYZ", wantMinor: 1001},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.text, tt.currency)
			require.NoError(t, err)
			assert.Equal(t, tt.wantMinor, got.Minor)
			assert.Equal(t, tt.wantSigned, got.Signed)
			assert.Equal(t, tt.wantMarker, got.Marker)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, text := range []string{"", "abc", "12.34.56,7,8x", "--", "()", "."} {
		t.Run(text, func(t *testing.T) {
			_, err := Parse(text, "USD")
			assert.ErrorIs(t, err, ErrInvalidAmount)
		})
	}
}

func TestExponent(t *testing.T) {
	assert.Equal(t, 2, Exponent("ngn"))
	assert.Equal(t, 0, Exponent("JPY"))
	assert.Equal(t, 2, Exponent(""))
}

func TestAmountAbs(t *testing.T) {
	assert.Equal(t, int64(500), Amount{Minor: -500}.Abs())
	assert.Equal(t, int64(500), Amount{Minor: 500}.Abs())
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "$12.34", Format(1234, "USD"))
	assert.Equal(t, "12.34 XYZ", Format(1234, "xyz"))
}

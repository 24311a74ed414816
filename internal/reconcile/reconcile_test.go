package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/statement-pipeline/internal/domain"
)

func tx(amount int64, balance ...int64) domain.TransactionRecord {
	t := domain.TransactionRecord{AmountMinor: amount}
	if len(balance) > 0 {
		b := balance[0]
		t.BalanceMinor = &b
	}
	return t
}

func TestReconcile(t *testing.T) {
	tests := []struct {
		name         string
		opening      int64
		txs          []domain.TransactionRecord
		closing      int64
		wantPassed   bool
		wantMismatch *int
		wantComputed int64
	}{
		{
			name:         "balanced without running balances",
			opening:      10000,
			txs:          []domain.TransactionRecord{tx(-2500), tx(1000)},
			closing:      8500,
			wantPassed:   true,
			wantComputed: 8500,
		},
		{
			name:         "balanced with running balances",
			opening:      10000,
			txs:          []domain.TransactionRecord{tx(-2500, 7500), tx(1000, 8500)},
			closing:      8500,
			wantPassed:   true,
			wantComputed: 8500,
		},
		{
			name:         "no transactions",
			opening:      500,
			closing:      500,
			wantPassed:   true,
			wantComputed: 500,
		},
		{
			name:         "end of statement divergence",
			opening:      10000,
			txs:          []domain.TransactionRecord{tx(-2500), tx(1000)},
			closing:      9000,
			wantMismatch: intPtr(2),
			wantComputed: 8500,
		},
		{
			name:         "empty statement with differing balances",
			opening:      100,
			closing:      200,
			wantMismatch: intPtr(0),
			wantComputed: 100,
		},
		{
			name:    "first running balance mismatch is reported",
			opening: 0,
			txs: []domain.TransactionRecord{
				tx(100, 100), tx(100, 200), tx(100, 999), tx(100, 1),
			},
			closing:      400,
			wantMismatch: intPtr(2),
			wantComputed: 400,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Reconcile(tt.opening, tt.txs, tt.closing)
			assert.Equal(t, tt.wantPassed, got.Passed)
			assert.Equal(t, tt.wantMismatch, got.FirstMismatchIndex)
			assert.Equal(t, tt.wantComputed, got.ComputedClosing)
			assert.Equal(t, tt.closing-tt.wantComputed, got.Difference)
		})
	}
}

func TestReconcile_MismatchAtRowFive(t *testing.T) {
	var txs []domain.TransactionRecord
	running := int64(100000)
	for i := 0; i < 8; i++ {
		running -= 1000
		stated := running
		if i == 5 {
			stated += 1
		}
		txs = append(txs, tx(-1000, stated))
	}

	got := Reconcile(100000, txs, running)
	assert.False(t, got.Passed)
	require.NotNil(t, got.FirstMismatchIndex)
	assert.Equal(t, 5, *got.FirstMismatchIndex)
	assert.Equal(t, running, got.ComputedClosing)
}

func TestReconcile_PassedImpliesSumInvariant(t *testing.T) {
	txs := []domain.TransactionRecord{tx(12345), tx(-678, 111667), tx(-90000)}
	got := Reconcile(100000, txs, 21667)
	require.True(t, got.Passed)

	sum := int64(100000)
	for _, tx := range txs {
		sum += tx.AmountMinor
	}
	assert.Equal(t, int64(21667), sum)
}

func intPtr(i int) *int { return &i }

// Package reconcile replays parsed transactions against the declared
// opening and closing balances.
package reconcile

import "github.com/dvloznov/statement-pipeline/internal/domain"

// Reconcile accumulates amounts from opening in document order. The first
// transaction whose stated running balance differs from the computed one is
// reported, and accumulation continues. When only the final balance diverges
// the mismatch index is len(txs). Comparison is exact.
func Reconcile(opening int64, txs []domain.TransactionRecord, closing int64) domain.Reconciliation {
	running := opening
	var first *int

	for i, tx := range txs {
		running += tx.AmountMinor
		if first == nil && tx.BalanceMinor != nil && *tx.BalanceMinor != running {
			idx := i
			first = &idx
		}
	}

	out := domain.Reconciliation{
		ComputedClosing: running,
		Difference:      closing - running,
	}
	if first == nil && running != closing {
		idx := len(txs)
		first = &idx
	}
	out.FirstMismatchIndex = first
	out.Passed = first == nil
	return out
}

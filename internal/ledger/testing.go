package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// SeedBalance is a test helper that sets a wallet's balance directly when
// using the in-memory ledger, bypassing the transaction log.
func SeedBalance(l Ledger, walletID string, amount decimal.Decimal) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		if w, exists := mem.wallets[walletID]; exists {
			w.Balance = amount
		}
	}
}

// Backdate is a test helper that rewrites a transaction's creation time when
// using the in-memory ledger, so date-matching paths can be exercised.
func Backdate(l Ledger, transactionID string, at time.Time) {
	if mem, ok := l.(*inMemoryLedger); ok {
		mem.mu.Lock()
		defer mem.mu.Unlock()
		if tx, exists := mem.transactions[transactionID]; exists {
			tx.CreatedAt = at.UTC()
		}
	}
}

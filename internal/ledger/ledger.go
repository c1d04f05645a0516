package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidAmount occurs when an amount is not positive or carries more
	// than two fractional digits. Rejected before any mutation.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientBalance occurs when a balance-checked debit would drive
	// its wallet negative.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrAlreadyLinked indicates one side of a link attempt already points at
	// a different counterpart. Surfaced, never silently repaired.
	ErrAlreadyLinked = errors.New("transaction already linked")

	// ErrWalletNotFound indicates the referenced wallet does not resolve.
	ErrWalletNotFound = errors.New("wallet not found")

	// ErrTransactionNotFound indicates the referenced transaction does not exist.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrWalletBusy indicates the wallet lock could not be acquired within the
	// bounded wait; callers should retry with backoff.
	ErrWalletBusy = errors.New("wallet busy")

	// ErrUnknownType indicates a transaction type outside the direction table.
	ErrUnknownType = errors.New("unknown transaction type")
)

// Entry names one side of a money movement: which wallet and which
// transaction type. Direction and balance checking follow from the type.
type Entry struct {
	WalletID string
	Type     TransactionType
}

// ScanCursor marks a position in the unlinked-transaction scan so callers
// can page forward past rows they could not repair. The zero value starts
// from the beginning. Ordering is (CreatedAt, ID), matching the scan order.
type ScanCursor struct {
	CreatedAt time.Time
	ID        string
}

func (c ScanCursor) before(tx Transaction) bool {
	if c.CreatedAt.Equal(tx.CreatedAt) {
		return c.ID < tx.ID
	}
	return c.CreatedAt.Before(tx.CreatedAt)
}

// Ledger defines the contract implemented by ledger backends (in-memory for
// tests, Postgres in production). Every method that writes is one atomic
// unit: a reader never observes a transaction without its balance effect,
// or one leg of a pair without the other.
type Ledger interface {
	// EnsureGroup lazily provisions the employee's main, reimbursement and
	// advance wallets on first reference and returns them.
	EnsureGroup(ctx context.Context, ownerID string) (WalletGroup, error)

	// Central resolves the singleton company wallet, creating it once.
	Central(ctx context.Context) (Wallet, error)

	// WalletByID fetches a wallet by identifier.
	WalletByID(ctx context.Context, id string) (Wallet, error)

	// WalletByOwner resolves one of an employee's wallets, provisioning the
	// group if this is the first reference.
	WalletByOwner(ctx context.Context, ownerID string, kind Kind) (Wallet, error)

	// Transactions lists a wallet's history, newest first.
	Transactions(ctx context.Context, walletID string, limit int) ([]Transaction, error)

	// Record appends one transaction and applies its balance delta.
	Record(ctx context.Context, entry Entry, amount decimal.Decimal, description, actor string) (Transaction, error)

	// Pair records both legs of a movement and links them, all in one unit.
	Pair(ctx context.Context, first, second Entry, amount decimal.Decimal, description, actor string) (Transaction, Transaction, error)

	// Link sets the symmetric back-links between two existing transactions.
	Link(ctx context.Context, firstID, secondID string) error

	// UnlinkedByTypes lists transactions of the given types whose counterpart
	// link is still null, oldest first, strictly after cursor, capped at
	// limit. Passing the zero cursor starts from the oldest row.
	UnlinkedByTypes(ctx context.Context, types []TransactionType, cursor ScanCursor, limit int) ([]Transaction, error)

	// UnlinkedMatches lists unlinked transactions on a wallet with the given
	// type and amount created on the same UTC calendar day.
	UnlinkedMatches(ctx context.Context, walletID string, typ TransactionType, amount decimal.Decimal, day time.Time) ([]Transaction, error)

	// RepairCounterpart synthesizes the missing counterpart for originalID,
	// applies its balance effect and sets both links, atomically.
	RepairCounterpart(ctx context.Context, originalID string, entry Entry) (Transaction, error)
}

// ValidateAmount enforces the positive, two-decimal fixed-point contract.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.Cmp(decimal.Zero) <= 0 {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(2)) {
		return ErrInvalidAmount
	}
	return nil
}

// sameDay reports whether two instants fall on the same UTC calendar day.
// Reconciliation matches counterparts by day, not by exact timestamp.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

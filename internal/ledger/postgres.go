package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// lockNotAvailable is the SQLSTATE raised by FOR UPDATE NOWAIT under contention.
const lockNotAvailable = "55P03"

// PostgresLedger persists wallets and transactions in PostgreSQL. Every
// write runs inside one SQL transaction with row locks on the wallets it
// touches, so the balance and the transaction log always move together.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func mapLockErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == lockNotAvailable {
		return ErrWalletBusy
	}
	return err
}

const walletColumns = `id, COALESCE(owner_id, ''), kind, balance::text, created_at`

func scanWallet(row pgx.Row) (Wallet, error) {
	var w Wallet
	var balance string
	if err := row.Scan(&w.ID, &w.OwnerID, &w.Kind, &balance, &w.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Wallet{}, ErrWalletNotFound
		}
		return Wallet{}, mapLockErr(err)
	}
	b, err := decimal.NewFromString(balance)
	if err != nil {
		return Wallet{}, fmt.Errorf("parse balance: %w", err)
	}
	w.Balance = b
	return w, nil
}

const transactionColumns = `id, wallet_id, type, amount::text, description, COALESCE(created_by, ''), created_at, COALESCE(related_transaction_id::text, '')`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var tx Transaction
	var amount string
	if err := row.Scan(&tx.ID, &tx.WalletID, &tx.Type, &amount, &tx.Description, &tx.CreatedBy, &tx.CreatedAt, &tx.RelatedID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Transaction{}, ErrTransactionNotFound
		}
		return Transaction{}, mapLockErr(err)
	}
	a, err := decimal.NewFromString(amount)
	if err != nil {
		return Transaction{}, fmt.Errorf("parse amount: %w", err)
	}
	tx.Amount = a
	return tx, nil
}

func (l *PostgresLedger) EnsureGroup(ctx context.Context, ownerID string) (WalletGroup, error) {
	if ownerID == "" {
		return WalletGroup{}, ErrWalletNotFound
	}
	for _, kind := range EmployeeKinds {
		if _, err := l.db.Exec(ctx, `INSERT INTO wallets (id, owner_id, kind, balance)
            VALUES ($1, $2, $3, 0) ON CONFLICT (owner_id, kind) DO NOTHING`, uuid.NewString(), ownerID, kind); err != nil {
			return WalletGroup{}, err
		}
	}

	group := WalletGroup{}
	for _, kind := range EmployeeKinds {
		w, err := scanWallet(l.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE owner_id = $1 AND kind = $2`, ownerID, kind))
		if err != nil {
			return WalletGroup{}, err
		}
		switch kind {
		case KindMain:
			group.Main = w
		case KindReimbursement:
			group.Reimbursement = w
		case KindAdvance:
			group.Advance = w
		}
	}
	return group, nil
}

// Central resolves the company wallet. The partial unique index on
// kind='central' keeps it a singleton under concurrent creation.
func (l *PostgresLedger) Central(ctx context.Context) (Wallet, error) {
	if _, err := l.db.Exec(ctx, `INSERT INTO wallets (id, owner_id, kind, balance)
        VALUES ($1, NULL, $2, 0) ON CONFLICT (kind) WHERE kind = 'central' DO NOTHING`, uuid.NewString(), KindCentral); err != nil {
		return Wallet{}, err
	}
	return scanWallet(l.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE kind = $1`, KindCentral))
}

func (l *PostgresLedger) WalletByID(ctx context.Context, id string) (Wallet, error) {
	return scanWallet(l.db.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id))
}

func (l *PostgresLedger) WalletByOwner(ctx context.Context, ownerID string, kind Kind) (Wallet, error) {
	if kind == KindCentral {
		return l.Central(ctx)
	}
	group, err := l.EnsureGroup(ctx, ownerID)
	if err != nil {
		return Wallet{}, err
	}
	w, ok := group.ByKind(kind)
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return w, nil
}

func (l *PostgresLedger) Transactions(ctx context.Context, walletID string, limit int) ([]Transaction, error) {
	if _, err := l.WalletByID(ctx, walletID); err != nil {
		return nil, err
	}
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE wallet_id = $1 ORDER BY created_at DESC`
	args := []any{walletID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]Transaction, error) {
	out := make([]Transaction, 0)
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}

// lockWallet takes the wallet's row lock without waiting; contention maps to
// ErrWalletBusy so the caller can retry instead of queueing.
func lockWallet(ctx context.Context, tx pgx.Tx, id string) (Wallet, error) {
	return scanWallet(tx.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE NOWAIT`, id))
}

func insertTransaction(ctx context.Context, tx pgx.Tx, t *Transaction) error {
	related := any(nil)
	if t.RelatedID != "" {
		related = t.RelatedID
	}
	createdBy := any(nil)
	if t.CreatedBy != "" {
		createdBy = t.CreatedBy
	}
	_, err := tx.Exec(ctx, `INSERT INTO transactions (id, wallet_id, type, amount, description, created_by, created_at, related_transaction_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		t.ID, t.WalletID, t.Type, t.Amount.StringFixed(2), t.Description, createdBy, t.CreatedAt, related)
	return err
}

func applyDelta(ctx context.Context, tx pgx.Tx, walletID string, delta decimal.Decimal) error {
	_, err := tx.Exec(ctx, `UPDATE wallets SET balance = balance + $1 WHERE id = $2`, delta.StringFixed(2), walletID)
	return err
}

func (l *PostgresLedger) Record(ctx context.Context, entry Entry, amount decimal.Decimal, description, actor string) (Transaction, error) {
	if err := ValidateAmount(amount); err != nil {
		return Transaction{}, err
	}
	if !entry.Type.Known() {
		return Transaction{}, ErrUnknownType
	}

	dbtx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer dbtx.Rollback(ctx) // nolint:errcheck

	w, err := lockWallet(ctx, dbtx, entry.WalletID)
	if err != nil {
		return Transaction{}, err
	}
	if entry.Type.BalanceChecked() && w.Balance.Cmp(amount) < 0 {
		return Transaction{}, ErrInsufficientBalance
	}

	t := Transaction{
		ID:          uuid.NewString(),
		WalletID:    w.ID,
		Type:        entry.Type,
		Amount:      amount,
		Description: description,
		CreatedBy:   actor,
		CreatedAt:   time.Now().UTC(),
	}
	if err := insertTransaction(ctx, dbtx, &t); err != nil {
		return Transaction{}, err
	}
	if err := applyDelta(ctx, dbtx, w.ID, entry.Type.Delta(amount)); err != nil {
		return Transaction{}, err
	}
	if err := dbtx.Commit(ctx); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

func (l *PostgresLedger) Pair(ctx context.Context, first, second Entry, amount decimal.Decimal, description, actor string) (Transaction, Transaction, error) {
	if err := ValidateAmount(amount); err != nil {
		return Transaction{}, Transaction{}, err
	}
	if !first.Type.Known() || !second.Type.Known() {
		return Transaction{}, Transaction{}, ErrUnknownType
	}

	dbtx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, Transaction{}, err
	}
	defer dbtx.Rollback(ctx) // nolint:errcheck

	// Lock rows in sorted id order so concurrent pairs over the same wallets
	// cannot deadlock.
	lockOrder := []string{first.WalletID, second.WalletID}
	if lockOrder[1] < lockOrder[0] {
		lockOrder[0], lockOrder[1] = lockOrder[1], lockOrder[0]
	}
	wallets := make(map[string]Wallet, 2)
	for _, id := range lockOrder {
		if _, done := wallets[id]; done {
			continue
		}
		w, err := lockWallet(ctx, dbtx, id)
		if err != nil {
			return Transaction{}, Transaction{}, err
		}
		wallets[id] = w
	}

	for _, leg := range []Entry{first, second} {
		w := wallets[leg.WalletID]
		if leg.Type.BalanceChecked() && w.Balance.Cmp(amount) < 0 {
			return Transaction{}, Transaction{}, ErrInsufficientBalance
		}
	}

	now := time.Now().UTC()
	a := Transaction{
		ID: uuid.NewString(), WalletID: first.WalletID, Type: first.Type,
		Amount: amount, Description: description, CreatedBy: actor, CreatedAt: now,
	}
	b := Transaction{
		ID: uuid.NewString(), WalletID: second.WalletID, Type: second.Type,
		Amount: amount, Description: description, CreatedBy: actor, CreatedAt: now,
		RelatedID: a.ID,
	}

	if err := insertTransaction(ctx, dbtx, &a); err != nil {
		return Transaction{}, Transaction{}, err
	}
	if err := insertTransaction(ctx, dbtx, &b); err != nil {
		return Transaction{}, Transaction{}, err
	}
	if _, err := dbtx.Exec(ctx, `UPDATE transactions SET related_transaction_id = $1 WHERE id = $2`, b.ID, a.ID); err != nil {
		return Transaction{}, Transaction{}, err
	}
	a.RelatedID = b.ID

	if err := applyDelta(ctx, dbtx, first.WalletID, first.Type.Delta(amount)); err != nil {
		return Transaction{}, Transaction{}, err
	}
	if err := applyDelta(ctx, dbtx, second.WalletID, second.Type.Delta(amount)); err != nil {
		return Transaction{}, Transaction{}, err
	}

	if err := dbtx.Commit(ctx); err != nil {
		return Transaction{}, Transaction{}, err
	}
	return a, b, nil
}

func (l *PostgresLedger) Link(ctx context.Context, firstID, secondID string) error {
	dbtx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer dbtx.Rollback(ctx) // nolint:errcheck

	lockOrder := []string{firstID, secondID}
	if lockOrder[1] < lockOrder[0] {
		lockOrder[0], lockOrder[1] = lockOrder[1], lockOrder[0]
	}
	held := make(map[string]Transaction, 2)
	for _, id := range lockOrder {
		t, err := scanTransaction(dbtx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE NOWAIT`, id))
		if err != nil {
			return err
		}
		held[id] = t
	}

	a, b := held[firstID], held[secondID]
	if a.RelatedID != "" && a.RelatedID != b.ID {
		return ErrAlreadyLinked
	}
	if b.RelatedID != "" && b.RelatedID != a.ID {
		return ErrAlreadyLinked
	}

	if _, err := dbtx.Exec(ctx, `UPDATE transactions SET related_transaction_id = $1 WHERE id = $2`, b.ID, a.ID); err != nil {
		return err
	}
	if _, err := dbtx.Exec(ctx, `UPDATE transactions SET related_transaction_id = $1 WHERE id = $2`, a.ID, b.ID); err != nil {
		return err
	}
	return dbtx.Commit(ctx)
}

func (l *PostgresLedger) UnlinkedByTypes(ctx context.Context, types []TransactionType, cursor ScanCursor, limit int) ([]Transaction, error) {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	// id compares as text so the paging order here matches the cursor
	// comparison the in-memory backend uses.
	query := `SELECT ` + transactionColumns + ` FROM transactions
        WHERE type = ANY($1) AND related_transaction_id IS NULL
          AND (created_at, id::text) > ($2, $3)
        ORDER BY created_at ASC, id::text ASC`
	args := []any{names, cursor.CreatedAt, cursor.ID}
	if limit > 0 {
		query += ` LIMIT $4`
		args = append(args, limit)
	}
	rows, err := l.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (l *PostgresLedger) UnlinkedMatches(ctx context.Context, walletID string, typ TransactionType, amount decimal.Decimal, day time.Time) ([]Transaction, error) {
	dayStart := time.Date(day.UTC().Year(), day.UTC().Month(), day.UTC().Day(), 0, 0, 0, 0, time.UTC)
	rows, err := l.db.Query(ctx, `SELECT `+transactionColumns+` FROM transactions
        WHERE wallet_id = $1 AND type = $2 AND amount = $3
          AND related_transaction_id IS NULL
          AND created_at >= $4 AND created_at < $5
        ORDER BY created_at ASC`,
		walletID, typ, amount.StringFixed(2), dayStart, dayStart.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTransactions(rows)
}

func (l *PostgresLedger) RepairCounterpart(ctx context.Context, originalID string, entry Entry) (Transaction, error) {
	if !entry.Type.Known() {
		return Transaction{}, ErrUnknownType
	}

	dbtx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Transaction{}, err
	}
	defer dbtx.Rollback(ctx) // nolint:errcheck

	orig, err := scanTransaction(dbtx.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE NOWAIT`, originalID))
	if err != nil {
		return Transaction{}, err
	}
	if orig.RelatedID != "" {
		return Transaction{}, ErrAlreadyLinked
	}
	w, err := lockWallet(ctx, dbtx, entry.WalletID)
	if err != nil {
		return Transaction{}, err
	}

	// The synthesized leg restores history the original movement already
	// implied, so it skips the balance floor even for checked types.
	t := Transaction{
		ID:          uuid.NewString(),
		WalletID:    w.ID,
		Type:        entry.Type,
		Amount:      orig.Amount,
		Description: orig.Description,
		CreatedAt:   time.Now().UTC(),
		RelatedID:   orig.ID,
	}
	if err := insertTransaction(ctx, dbtx, &t); err != nil {
		return Transaction{}, err
	}
	if _, err := dbtx.Exec(ctx, `UPDATE transactions SET related_transaction_id = $1 WHERE id = $2`, t.ID, orig.ID); err != nil {
		return Transaction{}, err
	}
	if err := applyDelta(ctx, dbtx, w.ID, entry.Type.Delta(orig.Amount)); err != nil {
		return Transaction{}, err
	}
	if err := dbtx.Commit(ctx); err != nil {
		return Transaction{}, err
	}
	return t, nil
}

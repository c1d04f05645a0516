package ledger

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const defaultLockWait = 2 * time.Second

type inMemoryLedger struct {
	mu           sync.RWMutex
	wallets      map[string]*Wallet
	byOwner      map[ownerKey]string
	transactions map[string]*Transaction
	byWallet     map[string][]string

	lockMu   sync.Mutex
	locks    map[string]chan struct{}
	lockWait time.Duration
}

type ownerKey struct {
	owner string
	kind  Kind
}

// centralKey addresses the singleton central wallet in the owner index.
var centralKey = ownerKey{owner: "", kind: KindCentral}

// NewInMemory creates a concurrency-safe in-memory ledger useful for unit
// tests. Operations on the same wallet serialize on a per-wallet lock with a
// bounded wait, mirroring the row locking of the Postgres backend.
func NewInMemory() Ledger {
	return NewInMemoryWithWait(defaultLockWait)
}

// NewInMemoryWithWait builds an in-memory ledger with a custom lock wait,
// letting contention tests trigger ErrWalletBusy quickly.
func NewInMemoryWithWait(lockWait time.Duration) Ledger {
	return &inMemoryLedger{
		wallets:      make(map[string]*Wallet),
		byOwner:      make(map[ownerKey]string),
		transactions: make(map[string]*Transaction),
		byWallet:     make(map[string][]string),
		locks:        make(map[string]chan struct{}),
		lockWait:     lockWait,
	}
}

func (l *inMemoryLedger) lockFor(walletID string) chan struct{} {
	l.lockMu.Lock()
	defer l.lockMu.Unlock()
	ch, ok := l.locks[walletID]
	if !ok {
		ch = make(chan struct{}, 1)
		ch <- struct{}{}
		l.locks[walletID] = ch
	}
	return ch
}

// acquire takes the per-wallet locks in sorted order so two pairs touching
// the same wallets cannot deadlock. Returns ErrWalletBusy on bounded-wait
// expiry.
func (l *inMemoryLedger) acquire(ctx context.Context, walletIDs ...string) (func(), error) {
	ids := append([]string(nil), walletIDs...)
	sort.Strings(ids)

	held := make([]chan struct{}, 0, len(ids))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i] <- struct{}{}
		}
	}

	deadline := time.NewTimer(l.lockWait)
	defer deadline.Stop()

	for i, id := range ids {
		if i > 0 && id == ids[i-1] {
			continue
		}
		ch := l.lockFor(id)
		select {
		case <-ch:
			held = append(held, ch)
		case <-deadline.C:
			release()
			return nil, ErrWalletBusy
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		}
	}
	return release, nil
}

func (l *inMemoryLedger) createWallet(ownerID string, kind Kind) *Wallet {
	w := &Wallet{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Kind:      kind,
		Balance:   decimal.Zero,
		CreatedAt: time.Now().UTC(),
	}
	l.wallets[w.ID] = w
	l.byOwner[ownerKey{owner: ownerID, kind: kind}] = w.ID
	return w
}

func (l *inMemoryLedger) EnsureGroup(_ context.Context, ownerID string) (WalletGroup, error) {
	if ownerID == "" {
		return WalletGroup{}, ErrWalletNotFound
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	group := WalletGroup{}
	for _, kind := range EmployeeKinds {
		id, ok := l.byOwner[ownerKey{owner: ownerID, kind: kind}]
		var w *Wallet
		if ok {
			w = l.wallets[id]
		} else {
			w = l.createWallet(ownerID, kind)
		}
		switch kind {
		case KindMain:
			group.Main = *w
		case KindReimbursement:
			group.Reimbursement = *w
		case KindAdvance:
			group.Advance = *w
		}
	}
	return group, nil
}

func (l *inMemoryLedger) Central(_ context.Context) (Wallet, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if id, ok := l.byOwner[centralKey]; ok {
		return *l.wallets[id], nil
	}
	return *l.createWallet("", KindCentral), nil
}

func (l *inMemoryLedger) WalletByID(_ context.Context, id string) (Wallet, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	w, ok := l.wallets[id]
	if !ok {
		return Wallet{}, ErrWalletNotFound
	}
	return *w, nil
}

func (l *inMemoryLedger) WalletByOwner(ctx context.Context, ownerID string, kind Kind) (Wallet, error) {
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

func (l *inMemoryLedger) Transactions(_ context.Context, walletID string, limit int) ([]Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if _, ok := l.wallets[walletID]; !ok {
		return nil, ErrWalletNotFound
	}
	ids := l.byWallet[walletID]
	out := make([]Transaction, 0, len(ids))
	for _, id := range ids {
		out = append(out, *l.transactions[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// appendLocked writes one transaction and its balance effect. Caller holds
// l.mu and the wallet's keyed lock.
func (l *inMemoryLedger) appendLocked(w *Wallet, typ TransactionType, amount decimal.Decimal, description, actor, relatedID string) *Transaction {
	tx := &Transaction{
		ID:          uuid.NewString(),
		WalletID:    w.ID,
		Type:        typ,
		Amount:      amount,
		Description: description,
		CreatedBy:   actor,
		CreatedAt:   time.Now().UTC(),
		RelatedID:   relatedID,
	}
	l.transactions[tx.ID] = tx
	l.byWallet[w.ID] = append(l.byWallet[w.ID], tx.ID)
	w.Balance = w.Balance.Add(typ.Delta(amount))
	return tx
}

// checkEntry validates one leg against the direction table and, for
// balance-checked debits, the wallet's current balance.
func checkEntry(w *Wallet, typ TransactionType, amount decimal.Decimal) error {
	if !typ.Known() {
		return ErrUnknownType
	}
	if typ.BalanceChecked() && w.Balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	return nil
}

func (l *inMemoryLedger) Record(ctx context.Context, entry Entry, amount decimal.Decimal, description, actor string) (Transaction, error) {
	if err := ValidateAmount(amount); err != nil {
		return Transaction{}, err
	}
	release, err := l.acquire(ctx, entry.WalletID)
	if err != nil {
		return Transaction{}, err
	}
	defer release()

	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.wallets[entry.WalletID]
	if !ok {
		return Transaction{}, ErrWalletNotFound
	}
	if err := checkEntry(w, entry.Type, amount); err != nil {
		return Transaction{}, err
	}
	return *l.appendLocked(w, entry.Type, amount, description, actor, ""), nil
}

func (l *inMemoryLedger) Pair(ctx context.Context, first, second Entry, amount decimal.Decimal, description, actor string) (Transaction, Transaction, error) {
	if err := ValidateAmount(amount); err != nil {
		return Transaction{}, Transaction{}, err
	}
	release, err := l.acquire(ctx, first.WalletID, second.WalletID)
	if err != nil {
		return Transaction{}, Transaction{}, err
	}
	defer release()

	l.mu.Lock()
	defer l.mu.Unlock()
	fw, ok := l.wallets[first.WalletID]
	if !ok {
		return Transaction{}, Transaction{}, ErrWalletNotFound
	}
	sw, ok := l.wallets[second.WalletID]
	if !ok {
		return Transaction{}, Transaction{}, ErrWalletNotFound
	}
	if err := checkEntry(fw, first.Type, amount); err != nil {
		return Transaction{}, Transaction{}, err
	}
	if err := checkEntry(sw, second.Type, amount); err != nil {
		return Transaction{}, Transaction{}, err
	}

	a := l.appendLocked(fw, first.Type, amount, description, actor, "")
	b := l.appendLocked(sw, second.Type, amount, description, actor, a.ID)
	a.RelatedID = b.ID
	return *a, *b, nil
}

func (l *inMemoryLedger) Link(_ context.Context, firstID, secondID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	a, ok := l.transactions[firstID]
	if !ok {
		return ErrTransactionNotFound
	}
	b, ok := l.transactions[secondID]
	if !ok {
		return ErrTransactionNotFound
	}
	if a.RelatedID != "" && a.RelatedID != b.ID {
		return ErrAlreadyLinked
	}
	if b.RelatedID != "" && b.RelatedID != a.ID {
		return ErrAlreadyLinked
	}
	a.RelatedID = b.ID
	b.RelatedID = a.ID
	return nil
}

func (l *inMemoryLedger) UnlinkedByTypes(_ context.Context, types []TransactionType, cursor ScanCursor, limit int) ([]Transaction, error) {
	wanted := make(map[TransactionType]bool, len(types))
	for _, t := range types {
		wanted[t] = true
	}

	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Transaction, 0)
	for _, tx := range l.transactions {
		if wanted[tx.Type] && tx.RelatedID == "" && cursor.before(*tx) {
			out = append(out, *tx)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *inMemoryLedger) UnlinkedMatches(_ context.Context, walletID string, typ TransactionType, amount decimal.Decimal, day time.Time) ([]Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Transaction, 0)
	for _, id := range l.byWallet[walletID] {
		tx := l.transactions[id]
		if tx.Type == typ && tx.RelatedID == "" && tx.Amount.Equal(amount) && sameDay(tx.CreatedAt, day) {
			out = append(out, *tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (l *inMemoryLedger) RepairCounterpart(ctx context.Context, originalID string, entry Entry) (Transaction, error) {
	release, err := l.acquire(ctx, entry.WalletID)
	if err != nil {
		return Transaction{}, err
	}
	defer release()

	l.mu.Lock()
	defer l.mu.Unlock()
	orig, ok := l.transactions[originalID]
	if !ok {
		return Transaction{}, ErrTransactionNotFound
	}
	if orig.RelatedID != "" {
		return Transaction{}, ErrAlreadyLinked
	}
	w, ok := l.wallets[entry.WalletID]
	if !ok {
		return Transaction{}, ErrWalletNotFound
	}
	if !entry.Type.Known() {
		return Transaction{}, ErrUnknownType
	}

	// Repairs restore history the original movement already implied, so the
	// synthesized leg skips the balance floor even for checked types.
	tx := l.appendLocked(w, entry.Type, orig.Amount, orig.Description, "", originalID)
	orig.RelatedID = tx.ID
	return *tx, nil
}

package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/potato707/MicroSystem-sub001/internal/ledger"
	"github.com/potato707/MicroSystem-sub001/internal/logging"
)

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func setup(t *testing.T) (ledger.Ledger, *Service, ledger.WalletGroup) {
	t.Helper()
	led := ledger.NewInMemory()
	group, err := led.EnsureGroup(context.Background(), "emp-1")
	if err != nil {
		t.Fatalf("ensure group: %v", err)
	}
	return led, NewService(led, logging.Discard(), 0), group
}

func TestRunSynthesizesMissingCounterpart(t *testing.T) {
	led, svc, group := setup(t)
	ctx := context.Background()
	ledger.SeedBalance(led, group.Reimbursement.ID, amt("25.00"))

	orphan, err := led.Record(ctx, ledger.Entry{WalletID: group.Reimbursement.ID, Type: ledger.TypeReimbursementPaid}, amt("25.00"), "claim #9", "finance-1")
	if err != nil {
		t.Fatalf("record orphan: %v", err)
	}

	summary, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Created != 1 || summary.Linked != 0 || summary.Ambiguous != 0 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	main, _ := led.WalletByID(ctx, group.Main.ID)
	if !main.Balance.Equal(amt("25.00")) {
		t.Fatalf("repair must credit main exactly once, got %s", main.Balance)
	}

	history, _ := led.Transactions(ctx, group.Main.ID, 0)
	if len(history) != 1 {
		t.Fatalf("expected one synthesized transaction, got %d", len(history))
	}
	repaired := history[0]
	if repaired.Type != ledger.TypeReimbursementPayment || repaired.RelatedID != orphan.ID {
		t.Fatalf("synthesized counterpart wrong: %+v", repaired)
	}
	if repaired.CreatedBy != "" {
		t.Fatalf("system repair must carry no actor")
	}
}

func TestRunLinksExistingCounterpart(t *testing.T) {
	led, svc, group := setup(t)
	ctx := context.Background()
	ledger.SeedBalance(led, group.Main.ID, amt("500.00"))

	debit, err := led.Record(ctx, ledger.Entry{WalletID: group.Main.ID, Type: ledger.TypeAdvanceWithdrawal}, amt("120.00"), "advance", "hr-1")
	if err != nil {
		t.Fatalf("record debit: %v", err)
	}
	credit, err := led.Record(ctx, ledger.Entry{WalletID: group.Advance.ID, Type: ledger.TypeAdvanceTaken}, amt("120.00"), "advance", "hr-1")
	if err != nil {
		t.Fatalf("record credit: %v", err)
	}

	summary, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Linked != 1 || summary.Created != 0 {
		t.Fatalf("expected one heal by linking, got %+v", summary)
	}

	advanceHistory, _ := led.Transactions(ctx, group.Advance.ID, 0)
	if len(advanceHistory) != 1 {
		t.Fatalf("linking must not create new transactions, got %d", len(advanceHistory))
	}
	healedDebit := findTx(t, led, group.Main.ID, debit.ID)
	if healedDebit.RelatedID != credit.ID {
		t.Fatalf("debit not linked to existing credit")
	}

	advance, _ := led.WalletByID(ctx, group.Advance.ID)
	if !advance.Balance.Equal(amt("120.00")) {
		t.Fatalf("linking must not change balances, got %s", advance.Balance)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	led, svc, group := setup(t)
	ctx := context.Background()
	ledger.SeedBalance(led, group.Main.ID, amt("500.00"))

	if _, err := led.Record(ctx, ledger.Entry{WalletID: group.Main.ID, Type: ledger.TypeAdvanceDeduction}, amt("50.00"), "deduction", "hr-1"); err != nil {
		t.Fatalf("record: %v", err)
	}

	first, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Created != 1 {
		t.Fatalf("expected one repair, got %+v", first)
	}

	advanceAfterFirst, _ := led.WalletByID(ctx, group.Advance.ID)

	second, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Scanned != 0 || second.Created != 0 || second.Linked != 0 {
		t.Fatalf("second run must be a no-op, got %+v", second)
	}

	advanceAfterSecond, _ := led.WalletByID(ctx, group.Advance.ID)
	if !advanceAfterFirst.Balance.Equal(advanceAfterSecond.Balance) {
		t.Fatalf("second run changed balances: %s vs %s", advanceAfterFirst.Balance, advanceAfterSecond.Balance)
	}
}

func TestRunSurfacesAmbiguousCandidates(t *testing.T) {
	led, svc, group := setup(t)
	ctx := context.Background()
	ledger.SeedBalance(led, group.Main.ID, amt("500.00"))

	if _, err := led.Record(ctx, ledger.Entry{WalletID: group.Main.ID, Type: ledger.TypeAdvanceWithdrawal}, amt("80.00"), "advance", "hr-1"); err != nil {
		t.Fatalf("record: %v", err)
	}
	// Two identical unlinked candidates on the advance wallet.
	for i := 0; i < 2; i++ {
		if _, err := led.Record(ctx, ledger.Entry{WalletID: group.Advance.ID, Type: ledger.TypeAdvanceTaken}, amt("80.00"), "advance", "hr-1"); err != nil {
			t.Fatalf("record candidate: %v", err)
		}
	}

	summary, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Ambiguous != 1 || summary.Linked != 0 || summary.Created != 0 {
		t.Fatalf("ambiguous case must not be auto-resolved: %+v", summary)
	}

	// Nothing was linked or created.
	unlinked, _ := led.UnlinkedByTypes(ctx, []ledger.TransactionType{ledger.TypeAdvanceWithdrawal}, ledger.ScanCursor{}, 0)
	if len(unlinked) != 1 {
		t.Fatalf("original must remain unlinked, got %d", len(unlinked))
	}
}

func TestRunSkipsCrossDayCandidates(t *testing.T) {
	led, svc, group := setup(t)
	ctx := context.Background()
	ledger.SeedBalance(led, group.Main.ID, amt("500.00"))

	if _, err := led.Record(ctx, ledger.Entry{WalletID: group.Main.ID, Type: ledger.TypeAdvanceWithdrawal}, amt("60.00"), "advance", "hr-1"); err != nil {
		t.Fatalf("record: %v", err)
	}
	stale, err := led.Record(ctx, ledger.Entry{WalletID: group.Advance.ID, Type: ledger.TypeAdvanceTaken}, amt("60.00"), "advance", "hr-1")
	if err != nil {
		t.Fatalf("record stale candidate: %v", err)
	}
	ledger.Backdate(led, stale.ID, timeYesterday())

	summary, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	// The stale candidate is on another day, so a fresh counterpart is
	// synthesized instead of linking it.
	if summary.Created != 1 || summary.Linked != 0 {
		t.Fatalf("expected synthesis, got %+v", summary)
	}
}

func TestRunAdvancesPastUnrepairableRows(t *testing.T) {
	led, _, group := setup(t)
	ctx := context.Background()
	svc := NewService(led, logging.Discard(), 1)
	ledger.SeedBalance(led, group.Main.ID, amt("500.00"))

	// An ambiguous row (two identical candidates) older than everything else.
	stuck, err := led.Record(ctx, ledger.Entry{WalletID: group.Main.ID, Type: ledger.TypeAdvanceWithdrawal}, amt("80.00"), "advance", "hr-1")
	if err != nil {
		t.Fatalf("record stuck row: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := led.Record(ctx, ledger.Entry{WalletID: group.Advance.ID, Type: ledger.TypeAdvanceTaken}, amt("80.00"), "advance", "hr-1"); err != nil {
			t.Fatalf("record candidate: %v", err)
		}
	}
	ledger.Backdate(led, stuck.ID, time.Now().UTC().Add(-time.Minute))

	// A healable row for a second employee, newer than the stuck one.
	other, err := led.EnsureGroup(ctx, "emp-2")
	if err != nil {
		t.Fatalf("ensure second group: %v", err)
	}
	ledger.SeedBalance(led, other.Main.ID, amt("500.00"))
	healable, err := led.Record(ctx, ledger.Entry{WalletID: other.Main.ID, Type: ledger.TypeAdvanceDeduction}, amt("50.00"), "deduction", "hr-1")
	if err != nil {
		t.Fatalf("record healable row: %v", err)
	}

	// With a batch size of 1 the stuck row fills every first page; the scan
	// must still reach and repair the row behind it.
	summary, err := svc.Run(ctx)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Scanned != 2 || summary.Ambiguous != 1 || summary.Created != 1 {
		t.Fatalf("scan stopped before the healable row: %+v", summary)
	}

	healed := findTx(t, led, other.Main.ID, healable.ID)
	if healed.RelatedID == "" {
		t.Fatalf("healable row behind the ambiguous one was not repaired")
	}
}

func timeYesterday() time.Time {
	return time.Now().UTC().AddDate(0, 0, -1)
}

func findTx(t *testing.T, led ledger.Ledger, walletID, txID string) ledger.Transaction {
	t.Helper()
	history, err := led.Transactions(context.Background(), walletID, 0)
	if err != nil {
		t.Fatalf("transactions: %v", err)
	}
	for _, tx := range history {
		if tx.ID == txID {
			return tx
		}
	}
	t.Fatalf("transaction %s not found on wallet %s", txID, walletID)
	return ledger.Transaction{}
}

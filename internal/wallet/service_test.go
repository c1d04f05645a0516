package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/potato707/MicroSystem-sub001/internal/ledger"
)

func TestBalancesProvisionsGroupLazily(t *testing.T) {
	led := ledger.NewInMemory()
	svc := NewService(led)
	ctx := context.Background()

	summary, err := svc.Balances(ctx, "emp-1")
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if !summary.Main.IsZero() || !summary.Reimbursement.IsZero() || !summary.AdvanceDebt.IsZero() {
		t.Fatalf("fresh group must start at zero: %+v", summary)
	}

	group, err := svc.Group(ctx, "emp-1")
	if err != nil {
		t.Fatalf("group: %v", err)
	}
	ledger.SeedBalance(led, group.Main.ID, decimal.RequireFromString("150.75"))

	summary, err = svc.Balances(ctx, "emp-1")
	if err != nil {
		t.Fatalf("balances: %v", err)
	}
	if !summary.Main.Equal(decimal.RequireFromString("150.75")) {
		t.Fatalf("expected 150.75, got %s", summary.Main)
	}
}

func TestBalancesRejectsEmptyEmployee(t *testing.T) {
	svc := NewService(ledger.NewInMemory())
	if _, err := svc.Balances(context.Background(), ""); !errors.Is(err, ledger.ErrWalletNotFound) {
		t.Fatalf("expected ErrWalletNotFound, got %v", err)
	}
}

func TestStatementReturnsNewestFirst(t *testing.T) {
	led := ledger.NewInMemory()
	svc := NewService(led)
	ctx := context.Background()

	group, err := svc.Group(ctx, "emp-1")
	if err != nil {
		t.Fatalf("group: %v", err)
	}
	entry := ledger.Entry{WalletID: group.Main.ID, Type: ledger.TypeDeposit}
	if _, err := led.Record(ctx, entry, decimal.RequireFromString("10.00"), "first", "admin"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := led.Record(ctx, entry, decimal.RequireFromString("20.00"), "second", "admin"); err != nil {
		t.Fatalf("record: %v", err)
	}

	history, err := svc.Statement(ctx, "emp-1", ledger.KindMain, 1)
	if err != nil {
		t.Fatalf("statement: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("limit ignored, got %d entries", len(history))
	}
}

func TestCentralBalance(t *testing.T) {
	led := ledger.NewInMemory()
	svc := NewService(led)
	ctx := context.Background()

	balance, _, err := svc.CentralBalance(ctx)
	if err != nil {
		t.Fatalf("central balance: %v", err)
	}
	if !balance.IsZero() {
		t.Fatalf("expected zero central balance, got %s", balance)
	}
}

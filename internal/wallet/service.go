package wallet

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/potato707/MicroSystem-sub001/internal/ledger"
)

// Service exposes read-side wallet operations backed by the ledger. Balance
// mutation stays with the transfer orchestrator; this service only resolves
// wallet groups and reports state.
type Service struct {
	ledger ledger.Ledger
}

// NewService builds a wallet service instance.
func NewService(l ledger.Ledger) *Service {
	return &Service{ledger: l}
}

// Group resolves (lazily creating) the employee's wallet bundle.
func (s *Service) Group(ctx context.Context, employeeID string) (ledger.WalletGroup, error) {
	return s.ledger.EnsureGroup(ctx, employeeID)
}

// Summary reports one employee's balances across the wallet group.
type Summary struct {
	EmployeeID    string
	Main          decimal.Decimal
	Reimbursement decimal.Decimal
	AdvanceDebt   decimal.Decimal
	AsOf          time.Time
}

// Balances returns the employee's current balances. The advance balance is
// reported as outstanding debt.
func (s *Service) Balances(ctx context.Context, employeeID string) (Summary, error) {
	group, err := s.ledger.EnsureGroup(ctx, employeeID)
	if err != nil {
		return Summary{}, err
	}
	return Summary{
		EmployeeID:    employeeID,
		Main:          group.Main.Balance,
		Reimbursement: group.Reimbursement.Balance,
		AdvanceDebt:   group.Advance.Balance,
		AsOf:          time.Now().UTC(),
	}, nil
}

// CentralBalance reports the company wallet's balance.
func (s *Service) CentralBalance(ctx context.Context) (decimal.Decimal, time.Time, error) {
	central, err := s.ledger.Central(ctx)
	if err != nil {
		return decimal.Zero, time.Time{}, err
	}
	return central.Balance, time.Now().UTC(), nil
}

// Statement lists an employee wallet's transaction history, newest first.
func (s *Service) Statement(ctx context.Context, employeeID string, kind ledger.Kind, limit int) ([]ledger.Transaction, error) {
	var w ledger.Wallet
	var err error
	if kind == ledger.KindCentral {
		w, err = s.ledger.Central(ctx)
	} else {
		w, err = s.ledger.WalletByOwner(ctx, employeeID, kind)
	}
	if err != nil {
		return nil, err
	}
	return s.ledger.Transactions(ctx, w.ID, limit)
}

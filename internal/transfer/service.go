package transfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/potato707/MicroSystem-sub001/internal/ledger"
	"github.com/potato707/MicroSystem-sub001/internal/notification"
)

// Service implements the named money-movement flows as linked transaction
// pairs on the ledger. Each flow is one atomic ledger call: either both legs
// exist and are linked, or nothing changed.
type Service struct {
	ledger   ledger.Ledger
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService prepares the orchestrator, ensuring the central wallet exists.
func NewService(ctx context.Context, l ledger.Ledger, notifier notification.Notifier, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := l.Central(ctx); err != nil {
		return nil, fmt.Errorf("ensure central wallet: %w", err)
	}
	return &Service{ledger: l, notifier: notifier, logger: logger}, nil
}

// Result describes the committed outcome of a flow.
type Result struct {
	Debit       ledger.Transaction
	Credit      ledger.Transaction
	FromBalance decimal.Decimal
	ToBalance   decimal.Decimal
	CompletedAt time.Time
}

// ErrUnsupportedKinds rejects generic transfers between wallet kinds that
// have no transaction type pair in the direction table.
var ErrUnsupportedKinds = errors.New("unsupported wallet kind pair")

// pairTypes derives the transaction type pair for a generic movement from
// the wallet kinds involved. Advance wallet movements go through the named
// flows only; they never map to a generic pair.
func pairTypes(from, to ledger.Kind) (debit, credit ledger.TransactionType, err error) {
	switch {
	case from == ledger.KindReimbursement && to == ledger.KindMain:
		return ledger.TypeReimbursementPaid, ledger.TypeReimbursementPayment, nil
	case from == ledger.KindCentral && to == ledger.KindReimbursement:
		return ledger.TypeWithdrawal, ledger.TypeReimbursementApproved, nil
	case from == ledger.KindCentral && to == ledger.KindMain,
		from == ledger.KindMain && to == ledger.KindCentral:
		return ledger.TypeWithdrawal, ledger.TypeDeposit, nil
	default:
		return "", "", ErrUnsupportedKinds
	}
}

func (s *Service) resolve(ctx context.Context, employeeID string, kind ledger.Kind) (ledger.Wallet, error) {
	if kind == ledger.KindCentral {
		return s.ledger.Central(ctx)
	}
	return s.ledger.WalletByOwner(ctx, employeeID, kind)
}

// execute runs one linked pair and re-reads both balances after commit.
func (s *Service) execute(ctx context.Context, from, to ledger.Wallet, debitType, creditType ledger.TransactionType, amount decimal.Decimal, description, actor string) (Result, error) {
	debit, credit, err := s.ledger.Pair(ctx,
		ledger.Entry{WalletID: from.ID, Type: debitType},
		ledger.Entry{WalletID: to.ID, Type: creditType},
		amount, description, actor)
	if err != nil {
		return Result{}, err
	}

	fromAfter, err := s.ledger.WalletByID(ctx, from.ID)
	if err != nil {
		return Result{}, err
	}
	toAfter, err := s.ledger.WalletByID(ctx, to.ID)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Debit:       debit,
		Credit:      credit,
		FromBalance: fromAfter.Balance,
		ToBalance:   toAfter.Balance,
		CompletedAt: time.Now().UTC(),
	}, nil
}

// notify fires the post-commit notification. Delivery failures are logged
// and never unwind the committed ledger mutation.
func (s *Service) notify(ctx context.Context, kind, destination, body string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Send(ctx, notification.Message{Kind: kind, Destination: destination, Body: body}); err != nil {
		s.logger.Warn("notification delivery failed", "kind", kind, "error", err)
	}
}

// Transfer moves amount between two of one employee's wallets as a linked
// debit/credit pair, with the type pair derived from the kinds.
func (s *Service) Transfer(ctx context.Context, employeeID string, fromKind, toKind ledger.Kind, amount decimal.Decimal, description, actor string) (Result, error) {
	debitType, creditType, err := pairTypes(fromKind, toKind)
	if err != nil {
		return Result{}, err
	}
	from, err := s.resolve(ctx, employeeID, fromKind)
	if err != nil {
		return Result{}, err
	}
	to, err := s.resolve(ctx, employeeID, toKind)
	if err != nil {
		return Result{}, err
	}
	return s.execute(ctx, from, to, debitType, creditType, amount, description, actor)
}

// IssueAdvance debits the employee's spendable balance and records the same
// amount as outstanding debt on the advance wallet.
func (s *Service) IssueAdvance(ctx context.Context, employeeID string, amount decimal.Decimal, description, actor string) (Result, error) {
	group, err := s.ledger.EnsureGroup(ctx, employeeID)
	if err != nil {
		return Result{}, err
	}
	res, err := s.execute(ctx, group.Main, group.Advance, ledger.TypeAdvanceWithdrawal, ledger.TypeAdvanceTaken, amount, description, actor)
	if err != nil {
		return Result{}, err
	}
	s.notify(ctx, notification.KindAdvanceIssued, employeeID,
		fmt.Sprintf("Advance of %s issued; outstanding debt %s", amount.StringFixed(2), res.ToBalance.StringFixed(2)))
	return res, nil
}

// RepayAdvance deducts a repayment from the main wallet and reduces the debt
// recorded on the advance wallet. Both legs are debits. Repaying more than
// the outstanding debt is permitted and logged, matching the historical
// behavior of these flows.
func (s *Service) RepayAdvance(ctx context.Context, employeeID string, amount decimal.Decimal, description, actor string) (Result, error) {
	group, err := s.ledger.EnsureGroup(ctx, employeeID)
	if err != nil {
		return Result{}, err
	}
	if group.Advance.Balance.Cmp(amount) < 0 {
		s.logger.Warn("advance repayment exceeds outstanding debt",
			"employee_id", employeeID,
			"outstanding", group.Advance.Balance.StringFixed(2),
			"repayment", amount.StringFixed(2))
	}
	res, err := s.execute(ctx, group.Main, group.Advance, ledger.TypeAdvanceDeduction, ledger.TypeAdvanceRepaid, amount, description, actor)
	if err != nil {
		return Result{}, err
	}
	s.notify(ctx, notification.KindAdvanceRepaid, employeeID,
		fmt.Sprintf("Repayment of %s deducted; remaining debt %s", amount.StringFixed(2), res.ToBalance.StringFixed(2)))
	return res, nil
}

// PayoutReimbursement funds an approved expense claim from the central wallet
// into the employee's reimbursement wallet.
func (s *Service) PayoutReimbursement(ctx context.Context, employeeID string, amount decimal.Decimal, description, actor string) (Result, error) {
	central, err := s.ledger.Central(ctx)
	if err != nil {
		return Result{}, err
	}
	reimbursement, err := s.ledger.WalletByOwner(ctx, employeeID, ledger.KindReimbursement)
	if err != nil {
		return Result{}, err
	}
	res, err := s.execute(ctx, central, reimbursement, ledger.TypeWithdrawal, ledger.TypeReimbursementApproved, amount, description, actor)
	if err != nil {
		return Result{}, err
	}
	s.notify(ctx, notification.KindReimbursementApproved, employeeID,
		fmt.Sprintf("Reimbursement of %s approved", amount.StringFixed(2)))
	return res, nil
}

// PayReimbursement moves an approved amount from the reimbursement wallet to
// the employee's spendable balance.
func (s *Service) PayReimbursement(ctx context.Context, employeeID string, amount decimal.Decimal, description, actor string) (Result, error) {
	res, err := s.Transfer(ctx, employeeID, ledger.KindReimbursement, ledger.KindMain, amount, description, actor)
	if err != nil {
		return Result{}, err
	}
	s.notify(ctx, notification.KindReimbursementPaid, employeeID,
		fmt.Sprintf("Reimbursement of %s paid to your wallet", amount.StringFixed(2)))
	return res, nil
}

// DepositToWallet moves money from the central wallet into an employee's
// main wallet. Admin policy is enforced by the caller.
func (s *Service) DepositToWallet(ctx context.Context, employeeID string, amount decimal.Decimal, description, actor string) (Result, error) {
	central, err := s.ledger.Central(ctx)
	if err != nil {
		return Result{}, err
	}
	main, err := s.ledger.WalletByOwner(ctx, employeeID, ledger.KindMain)
	if err != nil {
		return Result{}, err
	}
	res, err := s.execute(ctx, central, main, ledger.TypeWithdrawal, ledger.TypeDeposit, amount, description, actor)
	if err != nil {
		return Result{}, err
	}
	s.notify(ctx, notification.KindDeposit, employeeID,
		fmt.Sprintf("Deposit of %s received", amount.StringFixed(2)))
	return res, nil
}

// WithdrawFromWallet moves money from an employee's main wallet back to the
// central wallet. Admin policy is enforced by the caller.
func (s *Service) WithdrawFromWallet(ctx context.Context, employeeID string, amount decimal.Decimal, description, actor string) (Result, error) {
	main, err := s.ledger.WalletByOwner(ctx, employeeID, ledger.KindMain)
	if err != nil {
		return Result{}, err
	}
	central, err := s.ledger.Central(ctx)
	if err != nil {
		return Result{}, err
	}
	res, err := s.execute(ctx, main, central, ledger.TypeWithdrawal, ledger.TypeDeposit, amount, description, actor)
	if err != nil {
		return Result{}, err
	}
	s.notify(ctx, notification.KindWithdrawal, employeeID,
		fmt.Sprintf("Withdrawal of %s processed", amount.StringFixed(2)))
	return res, nil
}

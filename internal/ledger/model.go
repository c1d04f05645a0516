package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies which of the four wallet roles a wallet plays.
type Kind string

const (
	// KindMain is the employee's spendable balance.
	KindMain Kind = "main"
	// KindReimbursement holds approved expense claims awaiting payment.
	KindReimbursement Kind = "reimbursement"
	// KindAdvance tracks outstanding salary-advance debt owed back to the company.
	KindAdvance Kind = "advance"
	// KindCentral is the company-wide wallet funding deposits and payouts.
	KindCentral Kind = "central"
)

// EmployeeKinds lists the wallet roles provisioned per employee.
var EmployeeKinds = []Kind{KindMain, KindReimbursement, KindAdvance}

// TransactionType enumerates every recognized balance-affecting event.
// Extending this set requires updating the direction table below.
type TransactionType string

const (
	TypeDeposit               TransactionType = "deposit"
	TypeWithdrawal            TransactionType = "withdrawal"
	TypeAdvanceWithdrawal     TransactionType = "advance_withdrawal"
	TypeAdvanceTaken          TransactionType = "advance_taken"
	TypeAdvanceDeduction      TransactionType = "advance_deduction"
	TypeAdvanceRepaid         TransactionType = "advance_repaid"
	TypeReimbursementApproved TransactionType = "reimbursement_approved"
	TypeReimbursementPaid     TransactionType = "reimbursement_paid"
	TypeReimbursementPayment  TransactionType = "reimbursement_payment"
)

// directions maps each transaction type to its balance effect. Amounts are
// always stored positive; the sign lives here, never in the row.
var directions = map[TransactionType]int{
	TypeDeposit:               +1,
	TypeWithdrawal:            -1,
	TypeAdvanceWithdrawal:     -1,
	TypeAdvanceTaken:          +1,
	TypeAdvanceDeduction:      -1,
	TypeAdvanceRepaid:         -1,
	TypeReimbursementApproved: +1,
	TypeReimbursementPaid:     -1,
	TypeReimbursementPayment:  +1,
}

// checkedDebits are the debit types that must not drive their wallet
// negative. Advance repayments debit the debt wallet without a floor.
var checkedDebits = map[TransactionType]bool{
	TypeWithdrawal:        true,
	TypeAdvanceWithdrawal: true,
	TypeAdvanceDeduction:  true,
	TypeReimbursementPaid: true,
}

// IsCredit reports whether the type increases its wallet's balance.
func (t TransactionType) IsCredit() bool { return directions[t] > 0 }

// Known reports whether the type appears in the direction table.
func (t TransactionType) Known() bool {
	_, ok := directions[t]
	return ok
}

// BalanceChecked reports whether a transaction of this type requires the
// wallet to cover the amount.
func (t TransactionType) BalanceChecked() bool { return checkedDebits[t] }

// Delta returns the signed balance change the type implies for amount.
func (t TransactionType) Delta(amount decimal.Decimal) decimal.Decimal {
	if directions[t] < 0 {
		return amount.Neg()
	}
	return amount
}

// Wallet is a named balance holder. Balances are mutated only through the
// Ledger; external code treats them as read-only.
type Wallet struct {
	ID        string
	OwnerID   string // empty for the central singleton
	Kind      Kind
	Balance   decimal.Decimal
	CreatedAt time.Time
}

// Transaction is an immutable record of one balance-affecting event.
// RelatedID is the only field ever written after creation, set at most once
// when the counterpart on the other wallet is linked.
type Transaction struct {
	ID          string
	WalletID    string
	Type        TransactionType
	Amount      decimal.Decimal // always positive; direction implied by Type
	Description string
	CreatedBy   string // empty for system-initiated repairs
	CreatedAt   time.Time
	RelatedID   string // empty until paired
}

// Linked reports whether the transaction already has its counterpart.
func (t Transaction) Linked() bool { return t.RelatedID != "" }

// WalletGroup bundles one employee's wallets. Logical grouping only; each
// member is its own stored row.
type WalletGroup struct {
	Main          Wallet
	Reimbursement Wallet
	Advance       Wallet
}

// ByKind returns the group member for an employee wallet kind.
func (g WalletGroup) ByKind(kind Kind) (Wallet, bool) {
	switch kind {
	case KindMain:
		return g.Main, true
	case KindReimbursement:
		return g.Reimbursement, true
	case KindAdvance:
		return g.Advance, true
	default:
		return Wallet{}, false
	}
}

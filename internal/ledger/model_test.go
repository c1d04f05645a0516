package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestDirectionTableCoversAllTypes(t *testing.T) {
	all := []TransactionType{
		TypeDeposit, TypeWithdrawal,
		TypeAdvanceWithdrawal, TypeAdvanceTaken, TypeAdvanceDeduction, TypeAdvanceRepaid,
		TypeReimbursementApproved, TypeReimbursementPaid, TypeReimbursementPayment,
	}
	for _, typ := range all {
		if !typ.Known() {
			t.Fatalf("type %s missing from direction table", typ)
		}
	}
	if TransactionType("refund").Known() {
		t.Fatalf("unexpected type accepted")
	}
}

func TestDeltaFollowsDirection(t *testing.T) {
	ten := decimal.NewFromInt(10)
	if !TypeDeposit.Delta(ten).Equal(ten) {
		t.Fatalf("deposit must credit")
	}
	if !TypeAdvanceRepaid.Delta(ten).Equal(ten.Neg()) {
		t.Fatalf("advance_repaid must debit")
	}
}

func TestValidateAmount(t *testing.T) {
	cases := []struct {
		amount string
		ok     bool
	}{
		{"0.01", true},
		{"300.00", true},
		{"1500", true},
		{"0", false},
		{"-5.00", false},
		{"0.001", false},
	}
	for _, c := range cases {
		d, err := decimal.NewFromString(c.amount)
		if err != nil {
			t.Fatalf("parse %s: %v", c.amount, err)
		}
		if got := ValidateAmount(d); (got == nil) != c.ok {
			t.Fatalf("amount %s: expected ok=%v, got %v", c.amount, c.ok, got)
		}
	}
}

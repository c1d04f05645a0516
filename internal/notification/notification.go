package notification

import (
	"context"
	"log/slog"
)

const (
	// KindAdvanceIssued indicates a salary advance was paid out.
	KindAdvanceIssued = "advance_issued"
	// KindAdvanceRepaid indicates an advance repayment was deducted.
	KindAdvanceRepaid = "advance_repaid"
	// KindReimbursementApproved indicates an expense claim was funded.
	KindReimbursementApproved = "reimbursement_approved"
	// KindReimbursementPaid indicates approved funds reached the main wallet.
	KindReimbursementPaid = "reimbursement_paid"
	// KindDeposit indicates an admin deposit into a main wallet.
	KindDeposit = "wallet_deposit"
	// KindWithdrawal indicates an admin withdrawal from a main wallet.
	KindWithdrawal = "wallet_withdrawal"
)

// Message describes a notification payload.
type Message struct {
	Kind        string
	Destination string
	Body        string
}

// Notifier delivers notifications to downstream systems. Implementations run
// strictly after the ledger mutation commits and must never affect it.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification", "kind", message.Kind, "destination", message.Destination, "body", message.Body)
	return nil
}

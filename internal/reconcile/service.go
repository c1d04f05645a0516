package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/potato707/MicroSystem-sub001/internal/ledger"
)

const defaultBatchSize = 100

// counterpart describes where the missing side of a broken pair lives.
type counterpart struct {
	kind ledger.Kind
	typ  ledger.TransactionType
}

// counterparts maps each scanned debit type to its expected counterpart
// wallet kind and transaction type.
var counterparts = map[ledger.TransactionType]counterpart{
	ledger.TypeAdvanceWithdrawal: {kind: ledger.KindAdvance, typ: ledger.TypeAdvanceTaken},
	ledger.TypeAdvanceDeduction:  {kind: ledger.KindAdvance, typ: ledger.TypeAdvanceRepaid},
	ledger.TypeReimbursementPaid: {kind: ledger.KindMain, typ: ledger.TypeReimbursementPayment},
}

// scannedTypes lists the debit types whose pairs the reconciler repairs.
func scannedTypes() []ledger.TransactionType {
	types := make([]ledger.TransactionType, 0, len(counterparts))
	for t := range counterparts {
		types = append(types, t)
	}
	return types
}

// Service scans the transaction log for transactions missing their expected
// counterpart and repairs both the link and the affected balance. It runs
// outside the request path and is safe to re-run: a second pass over healed
// data changes nothing.
type Service struct {
	ledger    ledger.Ledger
	logger    *slog.Logger
	batchSize int
}

// NewService builds a reconciler. batchSize bounds how many broken pairs one
// scan iteration pulls, keeping lock hold times short; zero means the default.
func NewService(l ledger.Ledger, logger *slog.Logger, batchSize int) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Service{ledger: l, logger: logger, batchSize: batchSize}
}

// Summary reports what one run changed.
type Summary struct {
	Scanned   int
	Linked    int
	Created   int
	Ambiguous int
	Skipped   int
}

// Run processes every unlinked transaction of the scanned types in batches.
// Each repair is one atomic ledger call, so interrupting between batches
// never leaves a half-applied repair.
func (s *Service) Run(ctx context.Context) (Summary, error) {
	summary := Summary{}
	cursor := ledger.ScanCursor{}

	for {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		batch, err := s.ledger.UnlinkedByTypes(ctx, scannedTypes(), cursor, s.batchSize)
		if err != nil {
			return summary, fmt.Errorf("scan unlinked transactions: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		for _, tx := range batch {
			summary.Scanned++
			s.heal(ctx, tx, &summary)
			// Advance past this row whether or not it was repaired, so
			// ambiguous or failed rows never starve the ones behind them.
			cursor = ledger.ScanCursor{CreatedAt: tx.CreatedAt, ID: tx.ID}
		}

		if len(batch) < s.batchSize {
			break
		}
	}

	s.logger.Info("reconciliation run complete",
		"scanned", summary.Scanned,
		"linked", summary.Linked,
		"created", summary.Created,
		"ambiguous", summary.Ambiguous,
		"skipped", summary.Skipped)
	return summary, nil
}

func (s *Service) heal(ctx context.Context, tx ledger.Transaction, summary *Summary) {
	expected, ok := counterparts[tx.Type]
	if !ok {
		summary.Skipped++
		return
	}

	owner, err := s.ledger.WalletByID(ctx, tx.WalletID)
	if err != nil {
		s.logger.Error("resolve wallet for broken pair", "transaction_id", tx.ID, "error", err)
		summary.Skipped++
		return
	}
	target, err := s.ledger.WalletByOwner(ctx, owner.OwnerID, expected.kind)
	if err != nil {
		s.logger.Error("resolve counterpart wallet", "transaction_id", tx.ID, "error", err)
		summary.Skipped++
		return
	}

	candidates, err := s.ledger.UnlinkedMatches(ctx, target.ID, expected.typ, tx.Amount, tx.CreatedAt)
	if err != nil {
		s.logger.Error("search counterpart candidates", "transaction_id", tx.ID, "error", err)
		summary.Skipped++
		return
	}

	switch len(candidates) {
	case 1:
		// A counterpart written before linking existed; heal the pair.
		if err := s.ledger.Link(ctx, tx.ID, candidates[0].ID); err != nil {
			s.logger.Error("link broken pair", "transaction_id", tx.ID, "candidate_id", candidates[0].ID, "error", err)
			summary.Skipped++
			return
		}
		summary.Linked++
		s.logger.Info("linked existing counterpart",
			"transaction_id", tx.ID, "counterpart_id", candidates[0].ID, "type", tx.Type, "amount", tx.Amount.StringFixed(2))
	case 0:
		repaired, err := s.ledger.RepairCounterpart(ctx, tx.ID, ledger.Entry{WalletID: target.ID, Type: expected.typ})
		if err != nil {
			s.logger.Error("synthesize counterpart", "transaction_id", tx.ID, "error", err)
			summary.Skipped++
			return
		}
		summary.Created++
		s.logger.Info("created missing counterpart",
			"transaction_id", tx.ID, "counterpart_id", repaired.ID, "type", expected.typ, "amount", tx.Amount.StringFixed(2))
	default:
		// Conflicting candidates are an operator problem, never auto-resolved.
		summary.Ambiguous++
		s.logger.Error("ambiguous counterpart candidates",
			"transaction_id", tx.ID, "type", tx.Type, "amount", tx.Amount.StringFixed(2), "candidates", len(candidates))
	}
}

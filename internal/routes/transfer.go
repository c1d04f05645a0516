package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/potato707/MicroSystem-sub001/internal/transfer"
)

// RegisterTransferRoutes adds the money-movement endpoints. Each POST is a
// complete paired movement; clients retry with the same Idempotency-Key.
func RegisterTransferRoutes(r fiber.Router, h *transfer.Handler) {
	group := r.Group("/transfers")
	group.Post("/", h.Generic)
	group.Post("/advances", h.IssueAdvance)
	group.Post("/advances/repayments", h.RepayAdvance)
	group.Post("/reimbursements/payouts", h.PayoutReimbursement)
	group.Post("/reimbursements/payments", h.PayReimbursement)
	group.Post("/deposits", h.Deposit)
	group.Post("/withdrawals", h.Withdraw)
}

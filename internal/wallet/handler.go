package wallet

import (
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/potato707/MicroSystem-sub001/internal/ledger"
)

// Handler exposes wallet HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a wallet HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type balancesResponse struct {
	EmployeeID    string `json:"employee_id"`
	Main          string `json:"main"`
	Reimbursement string `json:"reimbursement"`
	AdvanceDebt   string `json:"advance_debt"`
	AsOf          string `json:"as_of"`
}

// Balances returns all balances for one employee's wallet group.
func (h *Handler) Balances(c *fiber.Ctx) error {
	employeeID := c.Params("employeeId")
	summary, err := h.service.Balances(c.UserContext(), employeeID)
	if err != nil {
		if errors.Is(err, ledger.ErrWalletNotFound) {
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(balancesResponse{
		EmployeeID:    summary.EmployeeID,
		Main:          summary.Main.StringFixed(2),
		Reimbursement: summary.Reimbursement.StringFixed(2),
		AdvanceDebt:   summary.AdvanceDebt.StringFixed(2),
		AsOf:          summary.AsOf.Format(time.RFC3339Nano),
	})
}

type transactionResponse struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	CreatedBy   string `json:"created_by,omitempty"`
	CreatedAt   string `json:"created_at"`
	RelatedID   string `json:"related_transaction_id,omitempty"`
}

// Statement lists one wallet's transaction history.
func (h *Handler) Statement(c *fiber.Ctx) error {
	employeeID := c.Params("employeeId")
	kind := ledger.Kind(c.Query("kind", string(ledger.KindMain)))
	limit := c.QueryInt("limit", 50)

	history, err := h.service.Statement(c.UserContext(), employeeID, kind, limit)
	if err != nil {
		if errors.Is(err, ledger.ErrWalletNotFound) {
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}

	out := make([]transactionResponse, 0, len(history))
	for _, tx := range history {
		out = append(out, transactionResponse{
			ID:          tx.ID,
			Type:        string(tx.Type),
			Amount:      tx.Amount.StringFixed(2),
			Description: tx.Description,
			CreatedBy:   tx.CreatedBy,
			CreatedAt:   tx.CreatedAt.Format(time.RFC3339Nano),
			RelatedID:   tx.RelatedID,
		})
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"employee_id":  employeeID,
		"kind":         kind,
		"transactions": out,
	})
}

// Central reports the company wallet balance.
func (h *Handler) Central(c *fiber.Ctx) error {
	balance, asOf, err := h.service.CentralBalance(c.UserContext())
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"balance": balance.StringFixed(2),
		"as_of":   asOf.Format(time.RFC3339Nano),
	})
}

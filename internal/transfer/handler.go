package transfer

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/potato707/MicroSystem-sub001/internal/ledger"
)

// Handler exposes the named transfer flows over HTTP.
type Handler struct {
	service *Service
}

// NewHandler constructs a transfer handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type flowRequest struct {
	EmployeeID  string `json:"employee_id"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Actor       string `json:"actor"`
	FromKind    string `json:"from_kind,omitempty"`
	ToKind      string `json:"to_kind,omitempty"`
}

type flowResponse struct {
	DebitTransactionID  string `json:"debit_transaction_id"`
	CreditTransactionID string `json:"credit_transaction_id"`
	FromBalance         string `json:"from_balance"`
	ToBalance           string `json:"to_balance"`
	CompletedAt         string `json:"completed_at"`
}

func parseFlow(c *fiber.Ctx) (flowRequest, decimal.Decimal, error) {
	var req flowRequest
	if err := c.BodyParser(&req); err != nil {
		return flowRequest{}, decimal.Zero, fiber.NewError(http.StatusBadRequest, err.Error())
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return flowRequest{}, decimal.Zero, fiber.NewError(http.StatusBadRequest, "invalid amount")
	}
	return req, amount, nil
}

func respond(c *fiber.Ctx, res Result, err error) error {
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidAmount):
			return fiber.NewError(http.StatusBadRequest, "amount must be positive with at most two decimal places")
		case errors.Is(err, ErrUnsupportedKinds):
			return fiber.NewError(http.StatusBadRequest, "no transfer is defined between these wallet kinds")
		case errors.Is(err, ledger.ErrInsufficientBalance):
			return fiber.NewError(http.StatusBadRequest, "insufficient balance")
		case errors.Is(err, ledger.ErrWalletNotFound):
			return fiber.NewError(http.StatusNotFound, "wallet not found")
		case errors.Is(err, ledger.ErrWalletBusy):
			return fiber.NewError(http.StatusConflict, "wallet busy, retry")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.Status(http.StatusCreated).JSON(flowResponse{
		DebitTransactionID:  res.Debit.ID,
		CreditTransactionID: res.Credit.ID,
		FromBalance:         res.FromBalance.StringFixed(2),
		ToBalance:           res.ToBalance.StringFixed(2),
		CompletedAt:         res.CompletedAt.Format(time.RFC3339Nano),
	})
}

type flowFunc func(ctx context.Context, employeeID string, amount decimal.Decimal, description, actor string) (Result, error)

func (h *Handler) run(c *fiber.Ctx, flow flowFunc) error {
	req, amount, err := parseFlow(c)
	if err != nil {
		return err
	}
	res, flowErr := flow(c.UserContext(), req.EmployeeID, amount, req.Description, req.Actor)
	return respond(c, res, flowErr)
}

// Generic processes a movement between two wallet kinds of one employee.
func (h *Handler) Generic(c *fiber.Ctx) error {
	req, amount, err := parseFlow(c)
	if err != nil {
		return err
	}
	res, flowErr := h.service.Transfer(c.UserContext(), req.EmployeeID,
		ledger.Kind(req.FromKind), ledger.Kind(req.ToKind), amount, req.Description, req.Actor)
	return respond(c, res, flowErr)
}

// IssueAdvance processes a salary advance.
func (h *Handler) IssueAdvance(c *fiber.Ctx) error {
	return h.run(c, h.service.IssueAdvance)
}

// RepayAdvance processes an advance repayment.
func (h *Handler) RepayAdvance(c *fiber.Ctx) error {
	return h.run(c, h.service.RepayAdvance)
}

// PayoutReimbursement funds an approved claim from the central wallet.
func (h *Handler) PayoutReimbursement(c *fiber.Ctx) error {
	return h.run(c, h.service.PayoutReimbursement)
}

// PayReimbursement pays approved funds out to the main wallet.
func (h *Handler) PayReimbursement(c *fiber.Ctx) error {
	return h.run(c, h.service.PayReimbursement)
}

// Deposit moves money from the central wallet to an employee's main wallet.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	return h.run(c, h.service.DepositToWallet)
}

// Withdraw moves money from an employee's main wallet to the central wallet.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	return h.run(c, h.service.WithdrawFromWallet)
}

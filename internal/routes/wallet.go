package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/potato707/MicroSystem-sub001/internal/wallet"
)

// RegisterWalletRoutes adds read endpoints for wallet groups.
func RegisterWalletRoutes(r fiber.Router, h *wallet.Handler) {
	group := r.Group("/wallets")
	group.Get("/central", h.Central)
	group.Get("/:employeeId", h.Balances)
	group.Get("/:employeeId/transactions", h.Statement)
}

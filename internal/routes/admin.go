package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/potato707/MicroSystem-sub001/internal/reconcile"
)

// RegisterAdminRoutes adds operator-only endpoints such as triggering a
// reconciliation pass on demand.
func RegisterAdminRoutes(r fiber.Router, reconciler *reconcile.Service) {
	group := r.Group("/admin")
	group.Post("/reconcile", func(c *fiber.Ctx) error {
		summary, err := reconciler.Run(c.UserContext())
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"scanned":   summary.Scanned,
			"linked":    summary.Linked,
			"created":   summary.Created,
			"ambiguous": summary.Ambiguous,
			"skipped":   summary.Skipped,
		})
	})
}

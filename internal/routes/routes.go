package routes

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/potato707/MicroSystem-sub001/internal/config"
	"github.com/potato707/MicroSystem-sub001/internal/ledger"
	"github.com/potato707/MicroSystem-sub001/internal/logging"
	"github.com/potato707/MicroSystem-sub001/internal/middleware"
	"github.com/potato707/MicroSystem-sub001/internal/notification"
	"github.com/potato707/MicroSystem-sub001/internal/reconcile"
	"github.com/potato707/MicroSystem-sub001/internal/transfer"
	"github.com/potato707/MicroSystem-sub001/internal/wallet"
)

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg    config.Config
	DB     *pgxpool.Pool
	Cache  *redis.Client
	Logger *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	// Enforce DB/Redis presence outside of dev, even though main also checks.
	if !isDev(d.Cfg.Env) {
		if d.DB == nil {
			return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.Env)
		}
		if d.Cache == nil {
			return fmt.Errorf("redis is required when APP_ENV=%s", d.Cfg.Env)
		}
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(logger.New(logger.Config{
		Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
		TimeFormat: "15:04:05",
		TimeZone:   "Local",
	}))
	app.Use(middleware.Audit(logging.ForComponent(d.Logger, "http")))
	if d.Cache != nil {
		app.Use(middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger))
	}

	RegisterHealthRoutes(app, d)

	var ledgerBackend ledger.Ledger
	if d.DB != nil {
		ledgerBackend = ledger.NewPostgresLedger(d.DB)
	} else {
		ledgerBackend = ledger.NewInMemory()
	}

	walletSvc := wallet.NewService(ledgerBackend)
	notifier := notification.NewLoggerNotifier(logging.ForComponent(d.Logger, "notification"))
	transferSvc, err := transfer.NewService(context.Background(), ledgerBackend, notifier, logging.ForComponent(d.Logger, "transfer"))
	if err != nil {
		return err
	}
	reconcileSvc := reconcile.NewService(ledgerBackend, logging.ForComponent(d.Logger, "reconcile"), d.Cfg.ReconcileBatchSize)

	walletHandler := wallet.NewHandler(walletSvc)
	transferHandler := transfer.NewHandler(transferSvc)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		reqID, _ := c.Locals(middleware.RequestIDKey).(string)
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": reqID,
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	RegisterWalletRoutes(api, walletHandler)
	RegisterTransferRoutes(api, transferHandler)
	RegisterAdminRoutes(api, reconcileSvc)

	return nil
}

func isDev(env string) bool {
	switch strings.ToLower(env) {
	case "dev", "development", "local":
		return true
	default:
		return false
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/potato707/MicroSystem-sub001/internal/config"
	"github.com/potato707/MicroSystem-sub001/internal/infra"
	"github.com/potato707/MicroSystem-sub001/internal/ledger"
	"github.com/potato707/MicroSystem-sub001/internal/logging"
	"github.com/potato707/MicroSystem-sub001/internal/reconcile"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := infra.Migrate(ctx, db); err != nil {
		logger.Error("apply schema", "error", err)
		os.Exit(1)
	}

	svc := reconcile.NewService(ledger.NewPostgresLedger(db), logging.ForComponent(logger, "reconcile"), cfg.ReconcileBatchSize)

	summary, err := svc.Run(ctx)
	if err != nil {
		logger.Error("reconcile run failed", "error", err,
			"scanned", summary.Scanned, "linked", summary.Linked,
			"created", summary.Created, "ambiguous", summary.Ambiguous,
			"skipped", summary.Skipped)
		os.Exit(1)
	}

	logger.Info("reconcile run complete",
		"scanned", summary.Scanned, "linked", summary.Linked,
		"created", summary.Created, "ambiguous", summary.Ambiguous,
		"skipped", summary.Skipped)
}

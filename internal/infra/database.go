package infra

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPostgresPool configures and returns a PostgreSQL connection pool.
func NewPostgresPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	if url == "" {
		return nil, fmt.Errorf("database url is required")
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return pool, nil
}

// schema defines the ledger's durable state: wallet rows and the append-only
// transaction log with its nullable self-referential pair link.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS wallets (
        id UUID PRIMARY KEY,
        owner_id TEXT,
        kind TEXT NOT NULL,
        balance NUMERIC(14,2) NOT NULL DEFAULT 0,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        UNIQUE (owner_id, kind)
    )`,
	`CREATE UNIQUE INDEX IF NOT EXISTS wallets_central_singleton
        ON wallets (kind) WHERE kind = 'central'`,
	`CREATE TABLE IF NOT EXISTS transactions (
        id UUID PRIMARY KEY,
        wallet_id UUID NOT NULL REFERENCES wallets (id),
        type TEXT NOT NULL,
        amount NUMERIC(14,2) NOT NULL CHECK (amount > 0),
        description TEXT NOT NULL DEFAULT '',
        created_by TEXT,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
        related_transaction_id UUID UNIQUE REFERENCES transactions (id)
    )`,
	`CREATE INDEX IF NOT EXISTS transactions_wallet_idx
        ON transactions (wallet_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS transactions_unlinked_idx
        ON transactions (type, created_at) WHERE related_transaction_id IS NULL`,
}

// Migrate creates the ledger tables and indexes when they do not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewDB creates a new PostgreSQL connection pool.
func NewDB(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// RunMigrations executes the initial schema migration.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS accounts (
			id                TEXT PRIMARY KEY,
			email             TEXT NOT NULL UNIQUE,
			display_name      TEXT NOT NULL,
			password          TEXT NOT NULL,
			role              TEXT NOT NULL DEFAULT 'USER',
			plan_id           TEXT NOT NULL DEFAULT 'free',
			credits_remaining BIGINT NOT NULL DEFAULT 0,
			credits_total     BIGINT NOT NULL DEFAULT 0,
			is_active         BOOLEAN NOT NULL DEFAULT TRUE,
			created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_accounts_email ON accounts(email);

		CREATE TABLE IF NOT EXISTS credit_transactions (
			id              TEXT PRIMARY KEY,
			account_id      TEXT NOT NULL REFERENCES accounts(id),
			type            TEXT NOT NULL,
			amount          BIGINT NOT NULL CHECK (amount > 0),
			reason          TEXT NOT NULL DEFAULT '',
			actor_id        TEXT NOT NULL DEFAULT 'system',
			endpoint_id     TEXT,
			balance_after   BIGINT NOT NULL,
			idempotency_key TEXT,
			created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_credit_tx_account_created
			ON credit_transactions(account_id, created_at DESC);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_credit_tx_idempotency
			ON credit_transactions(account_id, idempotency_key)
			WHERE idempotency_key IS NOT NULL;

		CREATE TABLE IF NOT EXISTS plans (
			id               TEXT PRIMARY KEY,
			name             TEXT NOT NULL,
			price_cents      BIGINT NOT NULL DEFAULT 0,
			interval         TEXT NOT NULL DEFAULT 'month',
			credits_included BIGINT NOT NULL DEFAULT 0,
			features         TEXT[] NOT NULL DEFAULT '{}',
			is_active        BOOLEAN NOT NULL DEFAULT TRUE,
			is_popular       BOOLEAN NOT NULL DEFAULT FALSE,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS endpoints (
			id               TEXT PRIMARY KEY,
			name             TEXT NOT NULL,
			path             TEXT NOT NULL,
			method           TEXT NOT NULL,
			is_active        BOOLEAN NOT NULL DEFAULT TRUE,
			credit_cost      DOUBLE PRECISION NOT NULL DEFAULT 1,
			rate_limit       INT NOT NULL DEFAULT 0,
			rate_window_secs INT NOT NULL DEFAULT 60,
			allowed_plans    TEXT[] NOT NULL DEFAULT '{}',
			total_calls      BIGINT NOT NULL DEFAULT 0,
			error_count      BIGINT NOT NULL DEFAULT 0,
			total_latency_ms BIGINT NOT NULL DEFAULT 0,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS subscriptions (
			id                   TEXT PRIMARY KEY,
			account_id           TEXT NOT NULL REFERENCES accounts(id),
			plan_id              TEXT NOT NULL,
			status               TEXT NOT NULL,
			current_period_start TIMESTAMPTZ NOT NULL,
			current_period_end   TIMESTAMPTZ NOT NULL,
			auto_renew           BOOLEAN NOT NULL DEFAULT TRUE,
			payment_provider_id  TEXT NOT NULL DEFAULT '',
			created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_subscriptions_account ON subscriptions(account_id);

		CREATE TABLE IF NOT EXISTS api_keys (
			id               TEXT PRIMARY KEY,
			account_id       TEXT NOT NULL REFERENCES accounts(id),
			name             TEXT NOT NULL,
			prefix           TEXT NOT NULL,
			last4            TEXT NOT NULL,
			encrypted_secret TEXT NOT NULL,
			is_active        BOOLEAN NOT NULL DEFAULT TRUE,
			created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_used_at     TIMESTAMPTZ
		);
		CREATE INDEX IF NOT EXISTS idx_api_keys_account ON api_keys(account_id);

		CREATE TABLE IF NOT EXISTS system_settings (
			key        TEXT PRIMARY KEY,
			data       JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`
	_, err := pool.Exec(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

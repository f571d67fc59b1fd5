package db

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

const createTablesSQL = `
CREATE SCHEMA IF NOT EXISTS ledger;

CREATE TABLE IF NOT EXISTS ledger.accounts (
    id BIGSERIAL PRIMARY KEY,
    email TEXT UNIQUE NOT NULL,
    wallet_address TEXT,
    referral_code TEXT UNIQUE NOT NULL,
    referred_by BIGINT REFERENCES ledger.accounts(id),
    referral_depth INT NOT NULL DEFAULT 0,
    profit_balance_micros BIGINT NOT NULL DEFAULT 0 CHECK (profit_balance_micros >= 0),
    bonus_balance_micros BIGINT NOT NULL DEFAULT 0 CHECK (bonus_balance_micros >= 0),
    status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'blocked')),
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS ledger.investments (
    id BIGSERIAL PRIMARY KEY,
    account_id BIGINT NOT NULL REFERENCES ledger.accounts(id),
    package_id INT NOT NULL,
    amount_micros BIGINT NOT NULL CHECK (amount_micros > 0),
    daily_rate_bps INT NOT NULL,
    accrued_profit_micros BIGINT NOT NULL DEFAULT 0 CHECK (accrued_profit_micros >= 0),
    start_date TIMESTAMPTZ NOT NULL DEFAULT now(),
    end_date TIMESTAMPTZ NOT NULL,
    last_accrual_at TIMESTAMPTZ,
    status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('pending', 'active', 'completed', 'terminated')),
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS ledger.transactions (
    id BIGSERIAL PRIMARY KEY,
    account_id BIGINT NOT NULL REFERENCES ledger.accounts(id),
    type TEXT NOT NULL CHECK (type IN ('deposit', 'profit', 'referral_bonus', 'withdrawal')),
    amount_micros BIGINT NOT NULL CHECK (amount_micros > 0),
    balance_source TEXT CHECK (balance_source IN ('profit', 'bonus')),
    wallet_address TEXT,
    external_ref TEXT,
    investment_id BIGINT REFERENCES ledger.investments(id),
    referral_level INT,
    status TEXT NOT NULL DEFAULT 'completed' CHECK (status IN ('pending', 'completed', 'failed')),
    settle_key UUID UNIQUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

const createIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_accounts_referred_by ON ledger.accounts(referred_by);
CREATE INDEX IF NOT EXISTS idx_investments_account ON ledger.investments(account_id);
CREATE INDEX IF NOT EXISTS idx_investments_status_end ON ledger.investments(status, end_date);
CREATE INDEX IF NOT EXISTS idx_transactions_account_type ON ledger.transactions(account_id, type, status);
CREATE INDEX IF NOT EXISTS idx_transactions_status_type ON ledger.transactions(status, type);
CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON ledger.transactions(created_at);
`

// InitSchema creates the ledger tables and indexes if they do not exist.
// Safe to run on every startup.
func InitSchema(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, createTablesSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}

	// Index creation is idempotent; run statements one by one so a single
	// failure does not mask the rest.
	for _, stmt := range strings.Split(strings.TrimSpace(createIndexesSQL), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			logger.Warn("create index failed", "stmt", stmt, "err", err)
		}
	}
	return nil
}

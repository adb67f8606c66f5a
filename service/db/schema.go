package db

import (
	"context"
	"fmt"
)

// schema is applied by Migrate. Statements are idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS transactions (
    hash          TEXT        NOT NULL,
    chain_id      BIGINT      NOT NULL,
    id            TEXT        NOT NULL,
    kind          TEXT        NOT NULL,
    status        TEXT        NOT NULL,
    amount        TEXT        NOT NULL DEFAULT '',
    currency      TEXT        NOT NULL,
    from_address  TEXT        NOT NULL,
    counterparty  TEXT,
    memo          TEXT,
    block_number  BIGINT,
    submitted_at  TIMESTAMPTZ NOT NULL,
    confirmed_at  TIMESTAMPTZ,
    explorer_url  TEXT        NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (hash, chain_id)
);

CREATE INDEX IF NOT EXISTS idx_transactions_from_submitted
    ON transactions (from_address, submitted_at DESC);

CREATE INDEX IF NOT EXISTS idx_transactions_counterparty
    ON transactions (counterparty);
`

// Migrate creates the journal schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

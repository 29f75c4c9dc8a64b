package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
CREATE TABLE IF NOT EXISTS collections (
    domain       TEXT PRIMARY KEY,
    items        JSONB NOT NULL DEFAULT '[]',
    total        INTEGER NOT NULL DEFAULT 0,
    collected_at TIMESTAMPTZ NOT NULL,
    metadata     JSONB NOT NULL DEFAULT '{}',
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS usage_counters (
    identity   TEXT NOT NULL,
    period     TEXT NOT NULL,
    kind       TEXT NOT NULL,
    count      INTEGER NOT NULL DEFAULT 0,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (identity, period, kind)
);
`

// EnsureSchema creates the tables the repositories depend on.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

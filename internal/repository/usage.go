package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UsageRepository tracks per-identity counters against a plan limit. The
// increment is atomic: a call that would push the counter past the limit
// leaves it untouched and reports accepted=false with the current count.
type UsageRepository interface {
	Increment(ctx context.Context, identity, period, kind string, amount, limit int) (count int, accepted bool, err error)
}

// PGXUsageRepository implements UsageRepository with pgx. The limit guard
// runs inside a single statement so concurrent requests from the same
// identity cannot race past the ceiling.
type PGXUsageRepository struct {
	pool pgxPool
}

// NewPGXUsageRepository wires a pgx backed usage ledger.
func NewPGXUsageRepository(pool *pgxpool.Pool) *PGXUsageRepository {
	return &PGXUsageRepository{pool: pool}
}

// Increment applies the increment unless it would exceed limit.
func (r *PGXUsageRepository) Increment(ctx context.Context, identity, period, kind string, amount, limit int) (int, bool, error) {
	if amount <= 0 {
		amount = 1
	}
	if amount > limit {
		count, err := r.current(ctx, identity, period, kind)
		return count, false, err
	}

	query := `
        INSERT INTO usage_counters (identity, period, kind, count, updated_at)
        VALUES ($1, $2, $3, $4, NOW())
        ON CONFLICT (identity, period, kind) DO UPDATE
            SET count = usage_counters.count + $4, updated_at = NOW()
            WHERE usage_counters.count + $4 <= $5
        RETURNING count`

	var count int
	err := r.pool.QueryRow(ctx, query, identity, period, kind, amount, limit).Scan(&count)
	if err == nil {
		return count, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, fmt.Errorf("increment usage counter: %w", err)
	}

	// Guard rejected the update; report the unchanged count.
	count, err = r.current(ctx, identity, period, kind)
	return count, false, err
}

func (r *PGXUsageRepository) current(ctx context.Context, identity, period, kind string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT count FROM usage_counters WHERE identity = $1 AND period = $2 AND kind = $3`,
		identity, period, kind).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read usage counter: %w", err)
	}
	return count, nil
}

var _ UsageRepository = (*PGXUsageRepository)(nil)

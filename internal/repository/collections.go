package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/octobees/contact-collector/internal/entity"
	"github.com/octobees/contact-collector/internal/logger"
)

// CollectionsRepository is durable keyed storage for collection results.
// Save and Delete report success as a boolean so the worker stays resilient
// to storage hiccups; Load treats corrupt rows as absent.
type CollectionsRepository interface {
	Save(ctx context.Context, res *entity.CollectionResult) bool
	Load(ctx context.Context, domain string) *entity.CollectionResult
	Exists(ctx context.Context, domain string) bool
	List(ctx context.Context) []string
	Delete(ctx context.Context, domain string) bool
}

// pgxPool is the subset of pgxpool.Pool the repositories depend on.
type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ pgxPool = (*pgxpool.Pool)(nil)

// StorageKey lowercases the domain and replaces characters outside
// [a-z0-9.-] with underscores. Distinct inputs that normalize to the same
// key will collide; acceptable for registrable domain names.
func StorageKey(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	var b strings.Builder
	b.Grow(len(domain))
	for _, r := range domain {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

// PGXCollectionsRepository implements CollectionsRepository with pgx.
type PGXCollectionsRepository struct {
	pool pgxPool
	log  *logger.Logger
}

// NewPGXCollectionsRepository wires a pgx backed collection store.
func NewPGXCollectionsRepository(pool *pgxpool.Pool, log *logger.Logger) *PGXCollectionsRepository {
	return &PGXCollectionsRepository{pool: pool, log: log}
}

// Save upserts the whole result row, last write wins.
func (r *PGXCollectionsRepository) Save(ctx context.Context, res *entity.CollectionResult) bool {
	if res == nil || res.Domain == "" {
		return false
	}

	items, err := json.Marshal(res.Items)
	if err != nil {
		r.log.With("domain", res.Domain).WithError(err).Error("marshal collection items")
		return false
	}
	metadata, err := json.Marshal(res.Metadata)
	if err != nil {
		r.log.With("domain", res.Domain).WithError(err).Error("marshal collection metadata")
		return false
	}

	query := `
        INSERT INTO collections (domain, items, total, collected_at, metadata, updated_at)
        VALUES ($1, $2, $3, $4, $5, NOW())
        ON CONFLICT (domain) DO UPDATE SET
            items = EXCLUDED.items,
            total = EXCLUDED.total,
            collected_at = EXCLUDED.collected_at,
            metadata = EXCLUDED.metadata,
            updated_at = NOW()`

	if _, err := r.pool.Exec(ctx, query, StorageKey(res.Domain), items, res.Total, res.CollectedAt, metadata); err != nil {
		r.log.With("domain", res.Domain).WithError(err).Error("save collection result")
		return false
	}
	return true
}

// Load returns the stored result for domain, or nil when absent or unreadable.
func (r *PGXCollectionsRepository) Load(ctx context.Context, domain string) *entity.CollectionResult {
	row := r.pool.QueryRow(ctx,
		`SELECT domain, items, total, collected_at, metadata FROM collections WHERE domain = $1`,
		StorageKey(domain))

	var (
		res      entity.CollectionResult
		items    []byte
		metadata []byte
	)
	if err := row.Scan(&res.Domain, &items, &res.Total, &res.CollectedAt, &metadata); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			r.log.With("domain", domain).WithError(err).Warn("load collection result")
		}
		return nil
	}

	if err := json.Unmarshal(items, &res.Items); err != nil {
		r.log.With("domain", domain).WithError(err).Warn("stored collection items are corrupt")
		return nil
	}
	if len(metadata) > 0 {
		// Metadata is free-form; a corrupt blob should not hide the items.
		_ = json.Unmarshal(metadata, &res.Metadata)
	}
	return &res
}

// Exists reports whether a result is stored for domain.
func (r *PGXCollectionsRepository) Exists(ctx context.Context, domain string) bool {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM collections WHERE domain = $1)`,
		StorageKey(domain)).Scan(&exists)
	if err != nil {
		r.log.With("domain", domain).WithError(err).Warn("check collection existence")
		return false
	}
	return exists
}

// List enumerates all stored domains.
func (r *PGXCollectionsRepository) List(ctx context.Context) []string {
	rows, err := r.pool.Query(ctx, `SELECT domain FROM collections ORDER BY domain`)
	if err != nil {
		r.log.WithError(err).Warn("list collections")
		return nil
	}
	defer rows.Close()

	domains, err := scanDomains(rows)
	if err != nil {
		r.log.WithError(err).Warn("scan collection domains")
		return nil
	}
	return domains
}

// Delete removes the stored result for domain.
func (r *PGXCollectionsRepository) Delete(ctx context.Context, domain string) bool {
	tag, err := r.pool.Exec(ctx, `DELETE FROM collections WHERE domain = $1`, StorageKey(domain))
	if err != nil {
		r.log.With("domain", domain).WithError(err).Warn("delete collection result")
		return false
	}
	return tag.RowsAffected() > 0
}

func scanDomains(rows pgx.Rows) ([]string, error) {
	var domains []string
	for rows.Next() {
		var domain string
		if err := rows.Scan(&domain); err != nil {
			return nil, fmt.Errorf("scan domain row: %w", err)
		}
		domains = append(domains, domain)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate domain rows: %w", err)
	}
	return domains, nil
}

var _ CollectionsRepository = (*PGXCollectionsRepository)(nil)

package factoring

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/factoring/internal/platform/db"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS factoring_entries (
    key        TEXT PRIMARY KEY,
    value      JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const upsertEntrySQL = `
INSERT INTO factoring_entries (key, value, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`

// PostgresRepository stores slots as rows of factoring_entries.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository constructs a repository on pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// EnsureSchema creates the entries table when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("factoring/postgres: ensure schema: %w", err)
	}
	return nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func selectEntry(q queryRower, forUpdate bool) slotGetter {
	query := `SELECT value FROM factoring_entries WHERE key = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	return func(ctx context.Context, key string) ([]byte, bool, error) {
		var raw []byte
		err := q.QueryRow(ctx, query, key).Scan(&raw)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, fmt.Errorf("factoring/postgres: select %s: %w", key, err)
		}
		return raw, true, nil
	}
}

// InvoiceCount implements Reader.
func (r *PostgresRepository) InvoiceCount(ctx context.Context) (uint64, error) {
	return selectEntry(r.pool, false).InvoiceCount(ctx)
}

// Invoice implements Reader.
func (r *PostgresRepository) Invoice(ctx context.Context, id uint64) (Invoice, bool, error) {
	return selectEntry(r.pool, false).Invoice(ctx, id)
}

// Stats implements Reader.
func (r *PostgresRepository) Stats(ctx context.Context) (PlatformStats, error) {
	return selectEntry(r.pool, false).Stats(ctx)
}

// WithTx runs fn in a repeatable-read transaction. Reads lock their rows;
// serialization failures surface as ErrConflict.
func (r *PostgresRepository) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &postgresTx{slotGetter: selectEntry(tx, true), tx: tx})
	})
	if isSerializationFailure(err) {
		return ErrConflict
	}
	return err
}

// ExtendRetention is a no-op; rows do not expire.
func (r *PostgresRepository) ExtendRetention(context.Context, Retention) error {
	return nil
}

type postgresTx struct {
	slotGetter
	tx pgx.Tx
}

func (t *postgresTx) Commit(ctx context.Context, c Commit) error {
	if c.Empty() {
		return nil
	}
	entries, err := c.entries()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	// stable lock order
	sort.Strings(keys)

	batch := &pgx.Batch{}
	for _, k := range keys {
		batch.Queue(upsertEntrySQL, k, string(entries[k]))
	}
	if err := t.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("factoring/postgres: commit: %w", err)
	}
	return nil
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 23505: two transactions inserted the same missing slot
		return pgErr.Code == "40001" || pgErr.Code == "40P01" || pgErr.Code == "23505"
	}
	return false
}

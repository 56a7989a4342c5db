package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"termtrust/pkg/platform/tx"
)

// Querier is the subset of pgx satisfied by *pgxpool.Pool, pgx.Tx, and the
// pgxmock pool, so stores run identically inside and outside transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QuerierFrom returns the transaction bound to ctx when one is in flight,
// otherwise the fallback (normally the pool).
func QuerierFrom(ctx context.Context, fallback Querier) Querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return fallback
}

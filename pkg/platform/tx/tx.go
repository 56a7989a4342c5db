// Package tx threads a pgx transaction through context so stores can join an
// in-flight transaction without changing their signatures.
package tx

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a pgx transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a pgx transaction from context if present.
func From(ctx context.Context) (pgx.Tx, bool) {
	tx, ok := ctx.Value(txKey).(pgx.Tx)
	return tx, ok
}

// Runner executes a function inside one atomic unit of work. The postgres
// implementation opens a database transaction; the memory implementation
// serializes callers behind the store's own lock so isolation semantics match.
type Runner interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error
}

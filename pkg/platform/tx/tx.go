package tx

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context so every store touched by a
// state transition joins the same all-or-nothing commit.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

type markKey struct{}

// Mark flags the context as running inside a state transition. Runners
// without a SQL transaction (the in-memory one) use it so stores can still
// tell a transition read from a plain read.
func Mark(ctx context.Context) context.Context {
	return context.WithValue(ctx, markKey{}, true)
}

// InTx reports whether a state transition is in flight, either as a SQL
// transaction or as a marked in-memory transition.
func InTx(ctx context.Context) bool {
	if _, ok := From(ctx); ok {
		return true
	}
	marked, _ := ctx.Value(markKey{}).(bool)
	return marked
}

package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// DefaultQueryTimeout bounds every store call that does not already carry a
// shorter deadline.
const DefaultQueryTimeout = 5 * time.Second

// querier runs statements against a *sqlx.DB or a *sqlx.Tx with a per-call
// deadline. Inside a transaction the timeout is zero and the caller's context
// governs.
type querier struct {
	db      sqlx.ExtContext
	timeout time.Duration
}

func (q querier) ctx(ctx context.Context) (context.Context, context.CancelFunc) {
	if q.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, q.timeout)
}

func (q querier) get(ctx context.Context, dest any, query string, args ...any) error {
	ctx, cancel := q.ctx(ctx)
	defer cancel()
	return sqlx.GetContext(ctx, q.db, dest, query, args...)
}

func (q querier) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	ctx, cancel := q.ctx(ctx)
	defer cancel()
	return sqlx.SelectContext(ctx, q.db, dest, query, args...)
}

// exec runs a statement and returns the number of affected rows.
func (q querier) exec(ctx context.Context, query string, args ...any) (int64, error) {
	ctx, cancel := q.ctx(ctx)
	defer cancel()

	result, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/kindauth/model"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// dbPool is satisfied by *pgxpool.Pool and by pgxmock pools in tests.
type dbPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var _ dbPool = (*pgxpool.Pool)(nil)

// Connect opens a pool and pings it.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
	}
	return pool, nil
}

// inTx commits when fn succeeds and rolls back otherwise.
func inTx(ctx context.Context, pool dbPool, fn func(pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// wrapErr passes domain errors through and marks everything else as a
// backend failure.
func wrapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, model.ErrNotFound),
		errors.Is(err, model.ErrDuplicate),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return model.ErrDuplicate
	}
	return fmt.Errorf("%w: %v", model.ErrStoreUnavailable, err)
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

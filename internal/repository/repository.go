// Package repository is the PostgreSQL record store for label uploads. All
// queries are plain SQL through pgx.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dharsanguruparan/LabelDrop/internal/model"
)

// DBTX is implemented by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// acquirer hands out dedicated connections for LISTEN.
type acquirer interface {
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
}

var errNoPool = errors.New("repository has no connection pool")

// mapError classifies a pgx error into a model kind.
func mapError(operation string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return model.WrapError(model.ErrNotFound, operation, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.InsufficientPrivilege {
		return model.WrapError(model.ErrPermissionDenied, operation, err)
	}
	return model.WrapError(model.ErrPersistence, operation, err)
}

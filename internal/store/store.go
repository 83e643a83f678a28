// Package store persists accounts, affiliates, coupons, sales, configuration
// blobs and inventory. Postgres is the production backend; Memory backs tests
// and local tooling.
package store

import (
	"context"
	"errors"

	"estoquefacil/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

// querier is the part of pgxpool.Pool and pgx.Tx the Postgres store uses.
type querier interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type txKey struct{}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// noRow reports a lookup that matched nothing. A malformed id in a uuid
// column counts as no match.
func noRow(err error) bool {
	if errors.Is(err, pgx.ErrNoRows) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "22P02"
}

func roleRank(role string) int {
	switch role {
	case models.RoleAdmin:
		return 3
	case models.RoleAffiliate:
		return 2
	case models.RoleUser:
		return 1
	}
	return 0
}

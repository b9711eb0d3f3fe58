package database

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNoRows is returned when a query expected to return a row returns none.
var ErrNoRows = errors.New("no rows in result set")

// Postgres error codes the repositories care about.
const (
	pgUniqueViolation    = "23505"
	pgExclusionViolation = "23P01"
)

// IsNoRows handles pgx, database/sql and package sentinels.
func IsNoRows(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, pgx.ErrNoRows) ||
		errors.Is(err, sql.ErrNoRows) ||
		errors.Is(err, ErrNoRows)
}

// IsConstraintViolation reports whether err was raised by the named guard:
// a Postgres unique or exclusion constraint, or a SQLite trigger that aborts
// with the guard name as its message.
func IsConstraintViolation(err error, name string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgExclusionViolation && pgErr.Code != pgUniqueViolation {
			return false
		}
		return pgErr.ConstraintName == name
	}
	return strings.Contains(err.Error(), name)
}

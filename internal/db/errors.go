package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrSchemaMissing indicates the database is reachable but the Cura tables
// have not been provisioned. Callers surface setup guidance ("run cura
// migrate") instead of a generic failure, and the task reconciler suspends
// polling until restart.
var ErrSchemaMissing = errors.New("database schema not provisioned")

// pgUndefinedTable is the SQLSTATE for "relation does not exist".
const pgUndefinedTable = "42P01"

// IsSchemaMissing reports whether err stems from the Cura tables not being
// provisioned yet.
func IsSchemaMissing(err error) bool {
	return errors.Is(err, ErrSchemaMissing)
}

// mapError wraps a query error, translating an undefined-table failure into
// ErrSchemaMissing so callers can distinguish the degraded setup state.
func mapError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUndefinedTable {
		return fmt.Errorf("failed to %s: %w: %s", op, ErrSchemaMissing, pgErr.TableName)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

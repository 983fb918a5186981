package store

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

// isNoRows centralizes the pgx.ErrNoRows check so every Get-style query
// below can turn "no row" into a plain (zero, false, nil) return instead
// of repeating errors.Is at each call site.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

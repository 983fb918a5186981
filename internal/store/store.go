// Package store is the Postgres persistence layer every service reads
// and writes through: one method per query against pgx/v5, built on
// the schema in pkg/dbx/migrations/0001_init.sql.
package store

import (
	"github.com/macd3/futures-engine/pkg/dbx"
)

// Store wraps the pooled connection for easier swapping/testing.
type Store struct {
	db *dbx.DB
}

// New builds a Store over an already-migrated dbx.DB.
func New(db *dbx.DB) *Store {
	return &Store{db: db}
}

// Package dbx wraps the shared Postgres pool and the startup migration
// runner, built on jackc/pgx/v5's pgxpool so the migration guard can use
// pg_advisory_lock to serialize concurrent startups across a fleet.
package dbx

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a pgxpool.Pool for easier mocking/testing in callers that only
// need the Pool's query surface.
type DB struct {
	Pool *pgxpool.Pool
}

// Open connects to Postgres, retrying up to maxAttempts times. A DB that
// stays unreachable after all attempts is a fatal startup condition for
// the caller.
func Open(ctx context.Context, dsn string, maxAttempts int) (*DB, error) {
	if maxAttempts <= 0 {
		maxAttempts = 30
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("dbx: parse dsn: %w", err)
	}
	cfg.MaxConns = 20

	var pool *pgxpool.Pool
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		pool, lastErr = pgxpool.NewWithConfig(ctx, cfg)
		if lastErr == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			lastErr = pool.Ping(pingCtx)
			cancel()
			if lastErr == nil {
				return &DB{Pool: pool}, nil
			}
			pool.Close()
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return nil, fmt.Errorf("dbx: unreachable after %d attempts: %w", maxAttempts, lastErr)
}

// Close releases the pool.
func (d *DB) Close() {
	if d == nil || d.Pool == nil {
		return
	}
	d.Pool.Close()
}

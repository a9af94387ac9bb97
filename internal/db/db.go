package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a session or settlement does not exist.
var ErrNotFound = errors.New("not found")

type DB struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

func (db *DB) Close() {
	db.pool.Close()
}

// RunMigrations runs database migrations
func (db *DB) RunMigrations(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			creator_id TEXT NOT NULL,
			group_id TEXT,
			processing BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_creator_id ON sessions(creator_id);

		CREATE TABLE IF NOT EXISTS settlements (
			session_id TEXT PRIMARY KEY REFERENCES sessions(id),
			participants JSONB NOT NULL,
			allocations JSONB NOT NULL,
			totals JSONB NOT NULL,
			participant_ids TEXT[] NOT NULL,
			finalized_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_settlements_participant_ids ON settlements USING GIN(participant_ids);
		CREATE INDEX IF NOT EXISTS idx_settlements_finalized_at ON settlements(finalized_at DESC);
	`)
	return err
}

// Package db provides PostgreSQL access for the jobs and runs tables.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

const jobsDDL = `
CREATE TABLE IF NOT EXISTS jobs (
    id                  UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    company             TEXT NOT NULL,
    role                TEXT NOT NULL,
    location            TEXT NOT NULL DEFAULT '',
    experience_required TEXT NOT NULL DEFAULT '',
    skills              JSONB NOT NULL DEFAULT '[]',
    description         TEXT NOT NULL DEFAULT '',
    jd_hash             TEXT NOT NULL UNIQUE,
    fit_score           INTEGER,
    resume_used         TEXT,
    artifact_path       TEXT,
    drive_link          TEXT,
    status              TEXT NOT NULL DEFAULT 'applied',
    follow_up_count     INTEGER NOT NULL DEFAULT 0,
    last_follow_up_at   TIMESTAMPTZ,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

const runsDDL = `
CREATE TABLE IF NOT EXISTS runs (
    id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    run_id        TEXT NOT NULL UNIQUE,
    agent         TEXT NOT NULL,
    job_id        UUID REFERENCES jobs(id),
    status        TEXT NOT NULL DEFAULT 'started',
    eval_results  JSONB,
    tokens_used   INTEGER,
    cost_estimate DOUBLE PRECISION,
    latency_ms    INTEGER,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    completed_at  TIMESTAMPTZ
)`

// InitSchema creates the jobs and runs tables if they do not exist.
// The UNIQUE constraint on jd_hash is what makes job submission idempotent
// across processes.
func (db *DB) InitSchema(ctx context.Context) error {
	for _, ddl := range []string{jobsDDL, runsDDL} {
		if _, err := db.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

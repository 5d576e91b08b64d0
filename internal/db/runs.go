package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// InsertRun starts a new run record in 'started' status
func (db *DB) InsertRun(ctx context.Context, runID, agent string, jobID *uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`INSERT INTO runs (run_id, agent, job_id, status) VALUES ($1, $2, $3, $4)`,
		runID, agent, jobID, RunStatusStarted,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// CompleteRun finalizes a run with its eval results and telemetry. Failures
// are completed too: a failed invocation is a recorded outcome, never an
// absent row.
func (db *DB) CompleteRun(ctx context.Context, runID string, c RunCompletion) error {
	var evalJSON []byte
	if c.EvalResults != nil {
		var err error
		evalJSON, err = json.Marshal(c.EvalResults)
		if err != nil {
			return fmt.Errorf("failed to marshal eval results: %w", err)
		}
	}

	_, err := db.pool.Exec(ctx,
		`UPDATE runs
		 SET status = $1, job_id = COALESCE($2, job_id), eval_results = $3,
		     tokens_used = $4, cost_estimate = $5, latency_ms = $6,
		     completed_at = NOW()
		 WHERE run_id = $7`,
		c.Status, c.JobID, evalJSON, c.TokensUsed, c.CostEstimate, c.LatencyMs, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

func scanRun(row pgx.Row) (*Run, error) {
	var r Run
	var evalJSON []byte
	err := row.Scan(&r.ID, &r.RunID, &r.Agent, &r.JobID, &r.Status, &evalJSON,
		&r.TokensUsed, &r.CostEstimate, &r.LatencyMs, &r.CreatedAt, &r.CompletedAt)
	if err != nil {
		return nil, err
	}
	if evalJSON != nil {
		_ = json.Unmarshal(evalJSON, &r.EvalResults)
	}
	return &r, nil
}

const runColumns = `id, run_id, agent, job_id, status, eval_results,
	tokens_used, cost_estimate, latency_ms, created_at, completed_at`

// GetRun retrieves a run by its run_id
func (db *DB) GetRun(ctx context.Context, runID string) (*Run, error) {
	run, err := scanRun(db.pool.QueryRow(ctx,
		`SELECT `+runColumns+` FROM runs WHERE run_id = $1`, runID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns retrieves recent runs, newest first
func (db *DB) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.pool.Query(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// ListEvalResults returns the eval payloads of completed runs, newest first.
// This is the read path for the CI gate; it never mutates anything.
func (db *DB) ListEvalResults(ctx context.Context, limit int) ([]map[string]any, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := db.pool.Query(ctx,
		`SELECT eval_results FROM runs
		 WHERE eval_results IS NOT NULL
		 ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list eval results: %w", err)
	}
	defer rows.Close()

	var results []map[string]any
	for rows.Next() {
		var evalJSON []byte
		if err := rows.Scan(&evalJSON); err != nil {
			return nil, fmt.Errorf("failed to scan eval results: %w", err)
		}
		var m map[string]any
		if err := json.Unmarshal(evalJSON, &m); err != nil {
			continue // skip malformed rows rather than failing the gate read
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

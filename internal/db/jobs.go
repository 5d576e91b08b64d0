package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const jobColumns = `id, company, role, location, experience_required, skills, description,
	jd_hash, fit_score, resume_used, artifact_path, drive_link, status,
	follow_up_count, last_follow_up_at, created_at, updated_at`

func scanJob(row pgx.Row) (*Job, error) {
	var j Job
	var skillsJSON []byte
	err := row.Scan(&j.ID, &j.Company, &j.Role, &j.Location, &j.ExperienceRequired,
		&skillsJSON, &j.Description, &j.JDHash, &j.FitScore, &j.ResumeUsed,
		&j.ArtifactPath, &j.DriveLink, &j.Status, &j.FollowUpCount,
		&j.LastFollowUpAt, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if skillsJSON != nil {
		_ = json.Unmarshal(skillsJSON, &j.Skills)
	}
	return &j, nil
}

// UpsertJob inserts a job, or returns the existing row when the jd_hash has
// been seen before. The UNIQUE constraint on jd_hash is the cross-process
// dedup point; the no-op DO UPDATE lets RETURNING yield the surviving row.
func (db *DB) UpsertJob(ctx context.Context, input *JobInput) (*Job, error) {
	skillsJSON, err := json.Marshal(input.Skills)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal skills: %w", err)
	}

	row := db.pool.QueryRow(ctx,
		`INSERT INTO jobs (company, role, location, experience_required, skills,
		                   description, jd_hash, fit_score, resume_used)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (jd_hash) DO UPDATE SET updated_at = NOW()
		 RETURNING `+jobColumns,
		input.Company, input.Role, input.Location, input.ExperienceRequired,
		skillsJSON, input.Description, input.JDHash, input.FitScore, input.ResumeUsed,
	)
	job, err := scanJob(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert job: %w", err)
	}
	return job, nil
}

// GetJob retrieves a job by id
func (db *DB) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	job, err := scanJob(db.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// GetJobByHash retrieves a job by its jd_hash fingerprint
func (db *DB) GetJobByHash(ctx context.Context, jdHash string) (*Job, error) {
	job, err := scanJob(db.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE jd_hash = $1`, jdHash))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job by hash: %w", err)
	}
	return job, nil
}

// UpdateJob applies the non-nil fields of update to a job row
func (db *DB) UpdateJob(ctx context.Context, id uuid.UUID, update JobUpdate) error {
	query := `UPDATE jobs SET updated_at = NOW()`
	args := []any{}
	argNum := 1

	appendSet := func(col string, val any) {
		query += fmt.Sprintf(", %s = $%d", col, argNum)
		args = append(args, val)
		argNum++
	}

	if update.FitScore != nil {
		appendSet("fit_score", *update.FitScore)
	}
	if update.ResumeUsed != nil {
		appendSet("resume_used", *update.ResumeUsed)
	}
	if update.ArtifactPath != nil {
		appendSet("artifact_path", *update.ArtifactPath)
	}
	if update.DriveLink != nil {
		appendSet("drive_link", *update.DriveLink)
	}
	if update.Status != nil {
		appendSet("status", *update.Status)
	}

	query += fmt.Sprintf(" WHERE id = $%d", argNum)
	args = append(args, id)

	result, err := db.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("job not found: %s", id)
	}
	return nil
}

// JobsNeedingFollowUp returns applied jobs whose last follow-up (or creation,
// for jobs never followed up) is at least interval in the past. Eligibility
// is always recomputed from persisted state so a restarted scheduler neither
// double-advances nor skips a job.
func (db *DB) JobsNeedingFollowUp(ctx context.Context, now time.Time, interval time.Duration) ([]Job, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+jobColumns+`
		 FROM jobs
		 WHERE status = $1
		   AND COALESCE(last_follow_up_at, created_at) <= $2
		 ORDER BY created_at ASC`,
		JobStatusApplied, now.Add(-interval),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list follow-up jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, rows.Err()
}

// AdvanceFollowUp bumps follow_up_count and stamps last_follow_up_at in a
// single write, so a crash can never leave a job half-advanced. Returns the
// new count.
func (db *DB) AdvanceFollowUp(ctx context.Context, id uuid.UUID, now time.Time) (int, error) {
	var count int
	err := db.pool.QueryRow(ctx,
		`UPDATE jobs
		 SET follow_up_count = follow_up_count + 1,
		     last_follow_up_at = $1,
		     updated_at = NOW()
		 WHERE id = $2
		 RETURNING follow_up_count`,
		now, id,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to advance follow-up: %w", err)
	}
	return count, nil
}

// CloseJob marks a job's follow-up sequence as terminally closed
func (db *DB) CloseJob(ctx context.Context, id uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, updated_at = NOW() WHERE id = $2`,
		JobStatusClosed, id,
	)
	if err != nil {
		return fmt.Errorf("failed to close job: %w", err)
	}
	return nil
}

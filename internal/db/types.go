package db

import (
	"time"

	"github.com/google/uuid"
)

// Job status constants
const (
	JobStatusApplied    = "applied"
	JobStatusResponded  = "responded"
	JobStatusInterview  = "interview"
	JobStatusRejected   = "rejected"
	JobStatusClosed     = "closed"
)

// Run status constants
const (
	RunStatusStarted   = "started"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusSkipped   = "skipped"
)

// Agent tags recorded on runs
const (
	AgentInboxPipeline  = "inbox_pipeline"
	AgentFollowUpRunner = "followup_runner"
)

// Job is one tracked application attempt. Rows are append-only: a job is
// never deleted, only updated as later stages and follow-ups touch it.
type Job struct {
	ID                 uuid.UUID  `json:"id"`
	Company            string     `json:"company"`
	Role               string     `json:"role"`
	Location           string     `json:"location"`
	ExperienceRequired string     `json:"experience_required"`
	Skills             []string   `json:"skills"`
	Description        string     `json:"description"`
	JDHash             string     `json:"jd_hash"`
	FitScore           *int       `json:"fit_score,omitempty"`
	ResumeUsed         *string    `json:"resume_used,omitempty"`
	ArtifactPath       *string    `json:"artifact_path,omitempty"`
	DriveLink          *string    `json:"drive_link,omitempty"`
	Status             string     `json:"status"`
	FollowUpCount      int        `json:"follow_up_count"`
	LastFollowUpAt     *time.Time `json:"last_follow_up_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// JobInput holds the fields set when a job is first recorded.
type JobInput struct {
	Company            string
	Role               string
	Location           string
	ExperienceRequired string
	Skills             []string
	Description        string
	JDHash             string
	FitScore           *int
	ResumeUsed         *string
}

// JobUpdate holds the mutable post-creation fields. Nil means "leave as is".
type JobUpdate struct {
	FitScore     *int
	ResumeUsed   *string
	ArtifactPath *string
	DriveLink    *string
	Status       *string
}

// Run is one telemetry record for one pipeline or scheduler invocation.
type Run struct {
	ID           uuid.UUID      `json:"id"`
	RunID        string         `json:"run_id"`
	Agent        string         `json:"agent"`
	JobID        *uuid.UUID     `json:"job_id,omitempty"`
	Status       string         `json:"status"`
	EvalResults  map[string]any `json:"eval_results,omitempty"`
	TokensUsed   *int           `json:"tokens_used,omitempty"`
	CostEstimate *float64       `json:"cost_estimate,omitempty"`
	LatencyMs    *int           `json:"latency_ms,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	CompletedAt  *time.Time     `json:"completed_at,omitempty"`
}

// RunCompletion carries everything written when a run finishes.
type RunCompletion struct {
	Status       string
	JobID        *uuid.UUID
	EvalResults  map[string]any
	TokensUsed   int
	CostEstimate float64
	LatencyMs    int
}

package followup

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/karan/inbox-agent/internal/db"
	"github.com/karan/inbox-agent/internal/llm"
)

// Store is the persistence surface the scheduler needs. *db.DB satisfies it.
type Store interface {
	JobsNeedingFollowUp(ctx context.Context, now time.Time, interval time.Duration) ([]db.Job, error)
	AdvanceFollowUp(ctx context.Context, id uuid.UUID, now time.Time) (int, error)
	CloseJob(ctx context.Context, id uuid.UUID) error
	InsertRun(ctx context.Context, runID, agent string, jobID *uuid.UUID) error
	CompleteRun(ctx context.Context, runID string, c db.RunCompletion) error
}

// Scheduler detects jobs due for a follow-up and generates escalating
// drafts. All eligibility is recomputed from persisted state on every cycle.
type Scheduler struct {
	store        Store
	drafter      Drafter
	interval     time.Duration
	maxFollowUps int

	// now is swapped in tests.
	now func() time.Time
}

// NewScheduler wires a scheduler. interval is the minimum gap between
// follow-ups on one job; maxFollowUps is the tier exhaustion point.
func NewScheduler(store Store, drafter Drafter, interval time.Duration, maxFollowUps int) *Scheduler {
	return &Scheduler{
		store:        store,
		drafter:      drafter,
		interval:     interval,
		maxFollowUps: maxFollowUps,
		now:          time.Now,
	}
}

// Item is one generated follow-up.
type Item struct {
	JobID      uuid.UUID `json:"job_id"`
	Company    string    `json:"company"`
	Role       string    `json:"role"`
	Tier       int       `json:"tier"` // 1-based, for humans
	TierLabel  string    `json:"tier_label"`
	Draft      string    `json:"draft,omitempty"`
	CountAfter int       `json:"follow_up_count_after"`
}

// CycleResult summarizes one scheduler cycle.
type CycleResult struct {
	RunID  string      `json:"run_id"`
	DryRun bool        `json:"dry_run"`
	Items  []Item      `json:"items"`
	Closed []uuid.UUID `json:"closed_jobs,omitempty"`
}

// RunOnce executes a single detect/draft/advance cycle. dryRun detects and
// reports but performs no job writes and generates no drafts; persist=false
// generates drafts without advancing counters (useful for manual review).
// Exactly one Run row is written either way.
func (s *Scheduler) RunOnce(ctx context.Context, dryRun, persist bool) (*CycleResult, error) {
	runID := fmt.Sprintf("followup-%s", uuid.NewString()[:12])
	if err := s.store.InsertRun(ctx, runID, db.AgentFollowUpRunner, nil); err != nil {
		return nil, fmt.Errorf("failed to record run start: %w", err)
	}

	started := s.now()
	result, usage, err := s.cycle(ctx, runID, dryRun, persist)

	latency := int(s.now().Sub(started).Milliseconds())
	completion := db.RunCompletion{
		Status:       db.RunStatusCompleted,
		TokensUsed:   usage.TotalTokens,
		CostEstimate: usage.CostEstimate,
		LatencyMs:    latency,
	}
	if err != nil {
		completion.Status = db.RunStatusFailed
		completion.EvalResults = map[string]any{"error": err.Error(), "latency_ms": latency}
	} else {
		completion.EvalResults = map[string]any{
			"followup_jobs_detected": len(result.Items),
			"jobs_closed":            len(result.Closed),
			"dry_run":                dryRun,
			"latency_ms":             latency,
		}
	}
	if cerr := s.store.CompleteRun(ctx, runID, completion); cerr != nil {
		log.Printf("followup: failed to complete run %s: %v", runID, cerr)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Scheduler) cycle(ctx context.Context, runID string, dryRun, persist bool) (*CycleResult, llm.Usage, error) {
	var usage llm.Usage
	result := &CycleResult{RunID: runID, DryRun: dryRun}

	jobs, err := s.store.JobsNeedingFollowUp(ctx, s.now(), s.interval)
	if err != nil {
		return nil, usage, fmt.Errorf("failed to detect follow-ups: %w", err)
	}

	for _, job := range jobs {
		tier, ok := TierForCount(job.FollowUpCount, s.maxFollowUps)
		if !ok {
			// Sequence exhausted. Close the job so it drops out of future
			// scans. Dry runs report without writing.
			if !dryRun {
				if err := s.store.CloseJob(ctx, job.ID); err != nil {
					return nil, usage, fmt.Errorf("failed to close exhausted job %s: %w", job.ID, err)
				}
			}
			result.Closed = append(result.Closed, job.ID)
			continue
		}

		item := Item{
			JobID:      job.ID,
			Company:    job.Company,
			Role:       job.Role,
			Tier:       int(tier) + 1,
			TierLabel:  tier.Label(),
			CountAfter: job.FollowUpCount,
		}

		if !dryRun {
			draft, u, err := s.drafter.FollowUp(ctx, job, tier)
			usage.Add(u)
			if err != nil {
				return nil, usage, fmt.Errorf("failed to draft follow-up for job %s: %w", job.ID, err)
			}
			item.Draft = draft

			if persist {
				count, err := s.store.AdvanceFollowUp(ctx, job.ID, s.now())
				if err != nil {
					return nil, usage, fmt.Errorf("failed to advance follow-up for job %s: %w", job.ID, err)
				}
				item.CountAfter = count
			}
		}
		result.Items = append(result.Items, item)
	}
	return result, usage, nil
}

// RunLoop runs cycles at a fixed tick until ctx is cancelled or maxCycles
// completes (maxCycles <= 0 means run forever). Cycle errors are logged, not
// fatal: one bad cycle must not kill the scheduler.
func (s *Scheduler) RunLoop(ctx context.Context, tick time.Duration, maxCycles int, dryRun, persist bool) error {
	if tick <= 0 {
		return fmt.Errorf("tick must be positive, got %s", tick)
	}

	cycles := 0
	for {
		if _, err := s.RunOnce(ctx, dryRun, persist); err != nil {
			log.Printf("followup: cycle failed: %v", err)
		}
		cycles++
		if maxCycles > 0 && cycles >= maxCycles {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(tick):
		}
	}
}

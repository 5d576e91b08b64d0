// Package pipeline orchestrates the inbox flow: ingest a job posting,
// extract a JD, tailor a resume within the bounded-edit policy, compile it,
// generate outreach drafts, and log telemetry. Every invocation writes
// exactly one Run row, success or not.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/karan/inbox-agent/internal/compile"
	"github.com/karan/inbox-agent/internal/config"
	"github.com/karan/inbox-agent/internal/db"
	"github.com/karan/inbox-agent/internal/drafts"
	"github.com/karan/inbox-agent/internal/evals"
	"github.com/karan/inbox-agent/internal/gcal"
	"github.com/karan/inbox-agent/internal/ingestion"
	"github.com/karan/inbox-agent/internal/jd"
	"github.com/karan/inbox-agent/internal/llm"
	"github.com/karan/inbox-agent/internal/ocr"
	"github.com/karan/inbox-agent/internal/resume"
)

// Stage is how far a pipeline invocation got. Failure at any non-terminal
// stage short-circuits to a recorded failure Run.
type Stage string

const (
	StageReceived       Stage = "received"
	StageExtracted      Stage = "extracted"
	StageResumeSelected Stage = "resume_selected"
	StageMutated        Stage = "mutated"
	StageCompiled       Stage = "compiled"
	StageDrafted        Stage = "drafted"
	StageLogged         Stage = "logged"
)

// Store is the persistence surface the orchestrator needs. *db.DB satisfies
// it.
type Store interface {
	UpsertJob(ctx context.Context, input *db.JobInput) (*db.Job, error)
	GetJobByHash(ctx context.Context, jdHash string) (*db.Job, error)
	UpdateJob(ctx context.Context, id uuid.UUID, update db.JobUpdate) error
	InsertRun(ctx context.Context, runID, agent string, jobID *uuid.UUID) error
	CompleteRun(ctx context.Context, runID string, c db.RunCompletion) error
	AcquireJobLease(ctx context.Context, jdHash string) (release func(), ok bool, err error)
}

// Extractor turns raw posting text into a validated JD.
type Extractor interface {
	Extract(ctx context.Context, rawText string) (*jd.JD, llm.Usage, error)
}

// DraftMaker produces the outreach pack. *drafts.Generator satisfies it.
type DraftMaker interface {
	Email(ctx context.Context, company, role string) (drafts.Draft, llm.Usage, error)
	LinkedInDM(ctx context.Context, company, role string) (drafts.Draft, llm.Usage, error)
	Referral(ctx context.Context, company, role string) (drafts.Draft, llm.Usage, error)
}

// Options selects the input for one pipeline invocation. Exactly one of
// RawText, URL, or ImagePath should carry the posting; Force bypasses the
// jd_hash cache.
type Options struct {
	RawText   string
	URL       string
	ImagePath string
	Force     bool
}

// Result is what one invocation produced.
type Result struct {
	RunID        string         `json:"run_id"`
	JobID        uuid.UUID      `json:"job_id"`
	JDHash       string         `json:"jd_hash"`
	Stage        Stage          `json:"stage"`
	Company      string         `json:"company"`
	Role         string         `json:"role"`
	FitScore     int            `json:"fit_score"`
	ResumeUsed   string         `json:"resume_used,omitempty"`
	ArtifactPath string         `json:"artifact_path,omitempty"`
	DriveLink    string         `json:"drive_link,omitempty"`
	Drafts       []drafts.Draft `json:"drafts,omitempty"`
	Evals        evals.Results  `json:"evals"`
	RollbackUsed bool           `json:"rollback_used,omitempty"`
	Cached       bool           `json:"cached,omitempty"`
}

// Deps are the orchestrator's collaborators. Optional integrations may be
// nil; the corresponding stage is then reported as skipped.
type Deps struct {
	Store      Store
	Extractor  Extractor
	Proposer   MutationProposer
	Compiler   compile.Compiler
	Drafter    DraftMaker
	OCR        ocr.Engine
	Fetcher    ingestion.Fetcher
	Uploader   gcal.Uploader
	Calendar   gcal.Calendar
	LLM        llm.Client
	BulletBank []string
}

// Orchestrator runs the inbox pipeline.
type Orchestrator struct {
	cfg  config.Config
	deps Deps

	// now is swapped in tests.
	now func() time.Time
}

// New wires an orchestrator.
func New(cfg config.Config, deps Deps) *Orchestrator {
	return &Orchestrator{cfg: cfg, deps: deps, now: time.Now}
}

func newRunID() string {
	return fmt.Sprintf("inbox-%s", uuid.NewString()[:12])
}

// Run executes the pipeline synchronously. The returned error is the abort
// cause; the Result always reflects how far execution got. One Run row is
// written no matter what.
func (o *Orchestrator) Run(ctx context.Context, opts Options) (*Result, error) {
	return o.run(ctx, opts, newRunID())
}

// Submit hands the job off to a worker goroutine and returns the run id
// immediately, so a request loop never blocks on compilation or model
// calls. The callback fires exactly once when the run finishes.
func (o *Orchestrator) Submit(opts Options, callback func(*Result, error)) string {
	runID := newRunID()
	go func() {
		result, err := o.run(context.Background(), opts, runID)
		if callback != nil {
			callback(result, err)
		}
	}()
	return runID
}

func (o *Orchestrator) run(ctx context.Context, opts Options, runID string) (*Result, error) {
	started := o.now()
	res := &Result{RunID: runID, Stage: StageReceived, Evals: evals.Results{}}
	var usage llm.Usage

	if err := o.deps.Store.InsertRun(ctx, runID, db.AgentInboxPipeline, nil); err != nil {
		return nil, fmt.Errorf("failed to record run start: %w", err)
	}

	runErr := o.execute(ctx, opts, res, &usage, started)

	latency := int(o.now().Sub(started).Milliseconds())
	res.Evals["stage"] = string(res.Stage)
	res.Evals[evals.KeyLatencyMs] = latency
	res.Evals[evals.KeyTokensUsed] = usage.TotalTokens
	res.Evals[evals.KeyCostEstimate] = usage.CostEstimate

	completion := db.RunCompletion{
		Status:       db.RunStatusCompleted,
		EvalResults:  res.Evals,
		TokensUsed:   usage.TotalTokens,
		CostEstimate: usage.CostEstimate,
		LatencyMs:    latency,
	}
	if res.JobID != uuid.Nil {
		id := res.JobID
		completion.JobID = &id
	}
	switch {
	case errors.Is(runErr, ErrInFlight):
		completion.Status = db.RunStatusSkipped
		res.Evals["in_flight"] = true
	case runErr != nil:
		completion.Status = db.RunStatusFailed
		res.Evals["error"] = runErr.Error()
	case res.Cached:
		completion.Status = db.RunStatusSkipped
		res.Evals["cache_hit"] = true
	}

	if cerr := o.deps.Store.CompleteRun(ctx, runID, completion); cerr != nil && runErr == nil {
		runErr = fmt.Errorf("failed to complete run: %w", cerr)
	}
	return res, runErr
}

// checkBudget aborts before entering a stage the invocation can no longer
// afford: wall clock first, then the cost ceiling. An in-flight stage is
// never interrupted; it finishes under its own timeout.
func (o *Orchestrator) checkBudget(started time.Time, usage llm.Usage) error {
	if t := o.cfg.PipelineTimeout.Std(); t > 0 && o.now().Sub(started) >= t {
		return ErrDeadlineExceeded
	}
	if c := o.cfg.MaxCostPerJob; c > 0 && usage.CostEstimate > c {
		return ErrBudgetExceeded
	}
	return nil
}

func (o *Orchestrator) execute(ctx context.Context, opts Options, res *Result, usage *llm.Usage, started time.Time) error {
	text, err := o.resolveInput(ctx, opts, usage)
	if err != nil {
		return err
	}

	// extracted
	if err := o.checkBudget(started, *usage); err != nil {
		return err
	}
	posting, u, err := o.deps.Extractor.Extract(ctx, text)
	usage.Add(u)
	if err != nil {
		var ve *jd.SchemaValidationError
		if errors.As(err, &ve) {
			res.Evals["jd_schema_valid"] = false
		}
		return err
	}
	res.Evals["jd_schema_valid"] = true
	res.Stage = StageExtracted
	res.JDHash = posting.Hash()
	res.Company = posting.Company
	res.Role = posting.Role

	// Idempotence: a jd_hash we have fully processed before short-circuits
	// to the stored result unless force-reprocess is set.
	if !opts.Force {
		existing, err := o.deps.Store.GetJobByHash(ctx, res.JDHash)
		if err != nil {
			return err
		}
		if existing != nil && existing.ArtifactPath != nil {
			res.Cached = true
			res.JobID = existing.ID
			res.Stage = StageLogged
			if existing.FitScore != nil {
				res.FitScore = *existing.FitScore
			}
			if existing.ResumeUsed != nil {
				res.ResumeUsed = *existing.ResumeUsed
			}
			res.ArtifactPath = *existing.ArtifactPath
			if existing.DriveLink != nil {
				res.DriveLink = *existing.DriveLink
			}
			return nil
		}
	}

	// Cross-process exclusivity per jd_hash. A second caller observes the
	// in-flight result instead of racing a duplicate mutation/compile.
	release, ok, err := o.deps.Store.AcquireJobLease(ctx, res.JDHash)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInFlight
	}
	defer release()

	job, err := o.deps.Store.UpsertJob(ctx, &db.JobInput{
		Company:            posting.Company,
		Role:               posting.Role,
		Location:           posting.Location,
		ExperienceRequired: posting.ExperienceRequired,
		Skills:             posting.Skills,
		Description:        posting.Description,
		JDHash:             res.JDHash,
	})
	if err != nil {
		return err
	}
	res.JobID = job.ID
	priorArtifact := job.ArtifactPath

	// resume_selected
	if err := o.checkBudget(started, *usage); err != nil {
		return err
	}
	sel, err := resume.SelectBaseResume(o.cfg.ResumesDir, posting.Skills)
	if err != nil {
		return err
	}
	res.FitScore = sel.FitScore
	res.ResumeUsed = sel.Name
	if err := o.deps.Store.UpdateJob(ctx, job.ID, db.JobUpdate{
		FitScore:   &sel.FitScore,
		ResumeUsed: &sel.Name,
	}); err != nil {
		return err
	}
	res.Stage = StageResumeSelected

	// mutated
	if err := o.checkBudget(started, *usage); err != nil {
		return err
	}
	muts, u, err := o.deps.Proposer.Propose(ctx, posting, sel.Content, o.cfg.MaxMutations)
	usage.Add(u)
	if err != nil {
		return err
	}
	mutated, err := resume.ApplyMutations(sel.Content, muts, resume.Policy{
		MaxRewrites:   o.cfg.MaxMutations,
		AllowedCorpus: o.deps.BulletBank,
	})
	if err != nil {
		var esv *resume.EditScopeViolation
		if errors.As(err, &esv) {
			// Rejected mutation aborts the attempt before any compile.
			res.Evals[evals.KeyEditScopeViolation] = len(esv.Reasons)
		}
		return err
	}
	res.Evals[evals.KeyEditScopeViolation] = 0
	res.Evals[evals.KeyForbiddenClaims] = evals.CountForbiddenClaims(
		mutated, sel.Content, strings.Join(o.deps.BulletBank, "\n"))
	res.Stage = StageMutated

	// compiled
	if err := o.checkBudget(started, *usage); err != nil {
		return err
	}
	pdfPath, _, compileErr := o.deps.Compiler.Compile(ctx, mutated, sel.Name)
	if compileErr == nil {
		artifact, err := compile.PersistArtifact(pdfPath, o.cfg.ArtifactsDir, res.JDHash, sel.Name)
		if err != nil {
			return err
		}
		res.ArtifactPath = artifact
		res.Evals[evals.KeyCompileSuccess] = true
		if err := o.deps.Store.UpdateJob(ctx, job.ID, db.JobUpdate{ArtifactPath: &artifact}); err != nil {
			return err
		}
	} else {
		// Roll back to the last known-good artifact for this job. No
		// document believed final may be the product of a failed compile.
		res.Evals[evals.KeyCompileSuccess] = false
		if priorArtifact != nil {
			res.ArtifactPath = *priorArtifact
			res.RollbackUsed = true
			res.Evals["compile_rollback_used"] = true
		}
	}
	res.Stage = StageCompiled

	// drafted
	if err := o.checkBudget(started, *usage); err != nil {
		return err
	}
	if err := o.generateDrafts(ctx, res, usage, posting); err != nil {
		return err
	}
	res.Evals[evals.KeyKeywordCoverage] = evals.KeywordCoverage(posting.Skills, mutated)
	res.Stage = StageDrafted

	// Optional integrations. Disabled or failing optional stages are
	// reported as skipped/errored, never as pipeline failures.
	o.uploadAndSchedule(ctx, res, job.ID)

	res.Stage = StageLogged
	return nil
}

// resolveInput turns the submitted message into raw posting text.
func (o *Orchestrator) resolveInput(ctx context.Context, opts Options, usage *llm.Usage) (string, error) {
	if opts.ImagePath != "" {
		if o.deps.OCR == nil {
			return "", &ExtractionError{Source: "ocr", Message: "no OCR engine configured"}
		}
		raw, confidence, err := o.deps.OCR.ExtractText(ctx, opts.ImagePath)
		if err != nil {
			return "", &ExtractionError{Source: "ocr", Message: "text extraction failed", Cause: err}
		}
		if confidence < o.cfg.OCRMinConfidence {
			return "", &ExtractionError{
				Source:  "ocr",
				Message: fmt.Sprintf("confidence %.2f below threshold %.2f", confidence, o.cfg.OCRMinConfidence),
			}
		}
		cleaned, u, err := ocr.CleanText(ctx, o.deps.LLM, raw)
		usage.Add(u)
		if err != nil {
			return "", &ExtractionError{Source: "ocr", Message: "cleanup failed", Cause: err}
		}
		return cleaned, nil
	}

	url := opts.URL
	if url == "" {
		url = ingestion.FirstURL(opts.RawText)
	}
	if url != "" {
		if o.deps.Fetcher == nil {
			return "", &ExtractionError{Source: "url", Message: "no fetcher configured"}
		}
		text, err := o.deps.Fetcher.FetchText(ctx, url)
		if err != nil {
			return "", &ExtractionError{Source: "url", Message: "fetch failed", Cause: err}
		}
		return text, nil
	}

	if strings.TrimSpace(opts.RawText) == "" {
		return "", &ExtractionError{Source: "text", Message: "empty message"}
	}
	return opts.RawText, nil
}

// generateDrafts fans the three outreach drafts out concurrently.
func (o *Orchestrator) generateDrafts(ctx context.Context, res *Result, usage *llm.Usage, posting *jd.JD) error {
	var mu sync.Mutex
	out := make([]drafts.Draft, 0, 3)

	g, gctx := errgroup.WithContext(ctx)
	for _, gen := range []func(context.Context, string, string) (drafts.Draft, llm.Usage, error){
		o.deps.Drafter.Email,
		o.deps.Drafter.LinkedInDM,
		o.deps.Drafter.Referral,
	} {
		gen := gen
		g.Go(func() error {
			draft, u, err := gen(gctx, posting.Company, posting.Role)
			mu.Lock()
			defer mu.Unlock()
			usage.Add(u)
			if err != nil {
				return err
			}
			out = append(out, draft)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("draft generation failed: %w", err)
	}

	res.Drafts = out
	withinLimit := true
	for _, d := range out {
		if d.Type == "linkedin_dm" {
			withinLimit = d.WithinLimit && evals.CheckDraftLength(d.Text, o.cfg.DraftCharLimit)
		}
	}
	res.Evals[evals.KeyDraftWithinLimit] = withinLimit
	return nil
}

// uploadAndSchedule runs the optional Drive and Calendar stages.
func (o *Orchestrator) uploadAndSchedule(ctx context.Context, res *Result, jobID uuid.UUID) {
	if !o.cfg.EnableDriveUpload || o.deps.Uploader == nil || res.ArtifactPath == "" {
		res.Evals["upload_skipped"] = true
	} else if link, err := o.deps.Uploader.Upload(ctx, res.ArtifactPath, res.Company, res.Role); err != nil {
		res.Evals["upload_error"] = (&ExternalServiceError{Service: "drive upload", Cause: err}).Error()
	} else {
		res.DriveLink = link
		if err := o.deps.Store.UpdateJob(ctx, jobID, db.JobUpdate{DriveLink: &link}); err != nil {
			res.Evals["upload_error"] = err.Error()
		}
	}

	if !o.cfg.EnableCalendarEvents || o.deps.Calendar == nil {
		res.Evals["calendar_skipped"] = true
	} else if _, _, err := o.deps.Calendar.CreateApplicationEvents(ctx, res.Company, res.Role, o.now(), o.cfg.FollowUpInterval.Std()); err != nil {
		res.Evals["calendar_error"] = (&ExternalServiceError{Service: "calendar", Cause: err}).Error()
	}
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karan/inbox-agent/internal/config"
	"github.com/karan/inbox-agent/internal/db"
	"github.com/karan/inbox-agent/internal/drafts"
	"github.com/karan/inbox-agent/internal/evals"
	"github.com/karan/inbox-agent/internal/jd"
	"github.com/karan/inbox-agent/internal/llm"
	"github.com/karan/inbox-agent/internal/resume"
)

// --- fakes -----------------------------------------------------------------

type fakeStore struct {
	mu         sync.Mutex
	jobsByHash map[string]*db.Job
	runs       map[string]db.RunCompletion
	runsOpened []string
	leaseBusy  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobsByHash: map[string]*db.Job{},
		runs:       map[string]db.RunCompletion{},
	}
}

func (f *fakeStore) UpsertJob(ctx context.Context, input *db.JobInput) (*db.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.jobsByHash[input.JDHash]; ok {
		cp := *existing
		return &cp, nil
	}
	job := &db.Job{
		ID:      uuid.New(),
		Company: input.Company,
		Role:    input.Role,
		Skills:  input.Skills,
		JDHash:  input.JDHash,
		Status:  db.JobStatusApplied,
	}
	f.jobsByHash[input.JDHash] = job
	cp := *job
	return &cp, nil
}

func (f *fakeStore) GetJobByHash(ctx context.Context, jdHash string) (*db.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if job, ok := f.jobsByHash[jdHash]; ok {
		cp := *job
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeStore) UpdateJob(ctx context.Context, id uuid.UUID, update db.JobUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, job := range f.jobsByHash {
		if job.ID != id {
			continue
		}
		if update.FitScore != nil {
			job.FitScore = update.FitScore
		}
		if update.ResumeUsed != nil {
			job.ResumeUsed = update.ResumeUsed
		}
		if update.ArtifactPath != nil {
			job.ArtifactPath = update.ArtifactPath
		}
		if update.DriveLink != nil {
			job.DriveLink = update.DriveLink
		}
		if update.Status != nil {
			job.Status = *update.Status
		}
		return nil
	}
	return fmt.Errorf("job not found: %s", id)
}

func (f *fakeStore) InsertRun(ctx context.Context, runID, agent string, jobID *uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runsOpened = append(f.runsOpened, runID)
	return nil
}

func (f *fakeStore) CompleteRun(ctx context.Context, runID string, c db.RunCompletion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[runID] = c
	return nil
}

func (f *fakeStore) AcquireJobLease(ctx context.Context, jdHash string) (func(), bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.leaseBusy {
		return nil, false, nil
	}
	return func() {}, true, nil
}

type fakeExtractor struct {
	posting *jd.JD
	usage   llm.Usage
	err     error
}

func (f *fakeExtractor) Extract(ctx context.Context, rawText string) (*jd.JD, llm.Usage, error) {
	return f.posting, f.usage, f.err
}

type fakeProposer struct {
	muts []resume.Mutation
}

func (f *fakeProposer) Propose(ctx context.Context, posting *jd.JD, doc string, max int) ([]resume.Mutation, llm.Usage, error) {
	return f.muts, llm.Usage{TotalTokens: 200, CostEstimate: 0.002}, nil
}

type fakeCompiler struct {
	mu    sync.Mutex
	fail  bool
	calls int
	dir   string
}

func (f *fakeCompiler) Compile(ctx context.Context, texContent, name string) (string, string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.fail {
		return "", "! LaTeX Error", errors.New("pdflatex exited 1")
	}
	pdf := filepath.Join(f.dir, "out.pdf")
	if err := os.WriteFile(pdf, []byte("%PDF"), 0o644); err != nil {
		return "", "", err
	}
	return pdf, "", nil
}

type fakeDrafter struct{ dmOverLimit bool }

func (f *fakeDrafter) Email(ctx context.Context, company, role string) (drafts.Draft, llm.Usage, error) {
	return drafts.Draft{Type: "email", Text: "email draft", WithinLimit: true}, llm.Usage{TotalTokens: 50, CostEstimate: 0.0005}, nil
}

func (f *fakeDrafter) LinkedInDM(ctx context.Context, company, role string) (drafts.Draft, llm.Usage, error) {
	return drafts.Draft{Type: "linkedin_dm", Text: "dm draft", WithinLimit: !f.dmOverLimit}, llm.Usage{TotalTokens: 40, CostEstimate: 0.0004}, nil
}

func (f *fakeDrafter) Referral(ctx context.Context, company, role string) (drafts.Draft, llm.Usage, error) {
	return drafts.Draft{Type: "referral", Text: "referral draft", WithinLimit: true}, llm.Usage{TotalTokens: 45, CostEstimate: 0.00045}, nil
}

type fakeOCR struct {
	text       string
	confidence float64
}

func (f *fakeOCR) ExtractText(ctx context.Context, imagePath string) (string, float64, error) {
	return f.text, f.confidence, nil
}

type stubLLM struct{}

func (stubLLM) GenerateText(ctx context.Context, prompt string, tier llm.ModelTier) (string, llm.Usage, error) {
	return "cleaned ocr text", llm.Usage{TotalTokens: 10, CostEstimate: 0.0001}, nil
}

func (stubLLM) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, llm.Usage, error) {
	return "{}", llm.Usage{}, nil
}

func (stubLLM) Close() error { return nil }

// --- harness ---------------------------------------------------------------

const baseResume = `\section{Experience}
%%BEGIN_EDITABLE
\item Built data pipelines in Python processing 2TB daily.
\item Wrote SQL models for reporting.
%%END_EDITABLE
\end{document}`

type harness struct {
	cfg      config.Config
	store    *fakeStore
	compiler *fakeCompiler
	deps     Deps
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	resumesDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(resumesDir, "master_data.tex"), []byte(baseResume), 0o644))

	cfg := config.Defaults()
	cfg.ResumesDir = resumesDir
	cfg.ArtifactsDir = t.TempDir()
	cfg.PipelineTimeout = config.Duration(time.Minute)

	store := newFakeStore()
	compiler := &fakeCompiler{dir: t.TempDir()}

	posting := &jd.JD{
		Company:     "Acme",
		Role:        "Data Engineer",
		Skills:      []string{"Python", "SQL"},
		Description: "Build pipelines.",
	}

	return &harness{
		cfg:      cfg,
		store:    store,
		compiler: compiler,
		deps: Deps{
			Store:     store,
			Extractor: &fakeExtractor{posting: posting, usage: llm.Usage{TotalTokens: 300, CostEstimate: 0.003}},
			Proposer: &fakeProposer{muts: []resume.Mutation{
				{Original: "Built data pipelines in Python processing 2TB daily.",
					Replacement: "Built batch and streaming pipelines in Python processing 2TB daily."},
				{Original: "Wrote SQL models for reporting.",
					Replacement: "Wrote SQL models powering reporting."},
			}},
			Compiler: compiler,
			Drafter:  &fakeDrafter{},
			LLM:      stubLLM{},
		},
	}
}

func (h *harness) orchestrator() *Orchestrator {
	return New(h.cfg, h.deps)
}

func (h *harness) completion(t *testing.T, runID string) db.RunCompletion {
	t.Helper()
	c, ok := h.store.runs[runID]
	require.True(t, ok, "run %s was never completed", runID)
	return c
}

// --- tests -----------------------------------------------------------------

func TestPipelineHappyPath(t *testing.T) {
	h := newHarness(t)
	o := h.orchestrator()

	res, err := o.Run(context.Background(), Options{RawText: "We are hiring a Data Engineer at Acme..."})
	require.NoError(t, err)

	assert.Equal(t, StageLogged, res.Stage)
	assert.Equal(t, 100, res.FitScore)
	assert.Equal(t, "master_data.tex", res.ResumeUsed)
	assert.NotEmpty(t, res.ArtifactPath)
	assert.FileExists(t, res.ArtifactPath)
	assert.Len(t, res.Drafts, 3)

	assert.Equal(t, true, res.Evals[evals.KeyCompileSuccess])
	assert.Equal(t, 0, res.Evals[evals.KeyEditScopeViolation])
	assert.Equal(t, 0, res.Evals[evals.KeyForbiddenClaims])
	assert.Equal(t, 1.0, res.Evals[evals.KeyKeywordCoverage])
	assert.Equal(t, true, res.Evals[evals.KeyDraftWithinLimit])
	assert.Equal(t, true, res.Evals["upload_skipped"])

	require.Len(t, h.store.runsOpened, 1)
	c := h.completion(t, res.RunID)
	assert.Equal(t, db.RunStatusCompleted, c.Status)
	require.NotNil(t, c.JobID)
	assert.Equal(t, res.JobID, *c.JobID)
	assert.Greater(t, c.TokensUsed, 0)
}

func TestPipelineIdempotence(t *testing.T) {
	h := newHarness(t)
	o := h.orchestrator()
	ctx := context.Background()

	first, err := o.Run(ctx, Options{RawText: "posting"})
	require.NoError(t, err)
	require.Equal(t, 1, h.compiler.calls)

	second, err := o.Run(ctx, Options{RawText: "posting"})
	require.NoError(t, err)

	assert.True(t, second.Cached)
	assert.Equal(t, first.JobID, second.JobID)
	assert.Equal(t, first.ArtifactPath, second.ArtifactPath)
	assert.Equal(t, 1, h.compiler.calls, "cache hit must not trigger a second compile")

	// The cache hit still writes its own Run row.
	require.Len(t, h.store.runsOpened, 2)
	c := h.completion(t, second.RunID)
	assert.Equal(t, db.RunStatusSkipped, c.Status)
	assert.Equal(t, true, c.EvalResults["cache_hit"])
}

func TestPipelineForceReprocess(t *testing.T) {
	h := newHarness(t)
	o := h.orchestrator()
	ctx := context.Background()

	_, err := o.Run(ctx, Options{RawText: "posting"})
	require.NoError(t, err)

	res, err := o.Run(ctx, Options{RawText: "posting", Force: true})
	require.NoError(t, err)
	assert.False(t, res.Cached)
	assert.Equal(t, 2, h.compiler.calls)
}

func TestPipelineCompileRollback(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// First run succeeds and leaves a known-good artifact.
	o := h.orchestrator()
	first, err := o.Run(ctx, Options{RawText: "posting"})
	require.NoError(t, err)
	prior := first.ArtifactPath

	// Second run (forced) fails to compile.
	h.compiler.fail = true
	second, err := o.Run(ctx, Options{RawText: "posting", Force: true})
	require.NoError(t, err, "compile failure rolls back, it is not pipeline-fatal")

	assert.Equal(t, prior, second.ArtifactPath)
	assert.True(t, second.RollbackUsed)
	assert.Equal(t, false, second.Evals[evals.KeyCompileSuccess])
	assert.Equal(t, true, second.Evals["compile_rollback_used"])
	assert.Equal(t, StageLogged, second.Stage)

	c := h.completion(t, second.RunID)
	assert.Equal(t, db.RunStatusCompleted, c.Status)
}

func TestPipelineCapViolationSkipsCompile(t *testing.T) {
	h := newHarness(t)
	h.deps.Proposer = &fakeProposer{muts: []resume.Mutation{
		{Original: "a", Replacement: "b"},
		{Original: "c", Replacement: "d"},
		{Original: "e", Replacement: "f"},
		{Original: "g", Replacement: "h"},
	}}
	o := h.orchestrator()

	res, err := o.Run(context.Background(), Options{RawText: "posting"})
	var esv *resume.EditScopeViolation
	require.ErrorAs(t, err, &esv)

	assert.Equal(t, 0, h.compiler.calls, "no compile may be attempted after a rejected mutation")
	assert.Equal(t, StageResumeSelected, res.Stage)
	_, compileRecorded := res.Evals[evals.KeyCompileSuccess]
	assert.False(t, compileRecorded)
	assert.Equal(t, 1, res.Evals[evals.KeyEditScopeViolation])

	c := h.completion(t, res.RunID)
	assert.Equal(t, db.RunStatusFailed, c.Status)
}

func TestPipelineDeadline(t *testing.T) {
	h := newHarness(t)
	h.cfg.PipelineTimeout = config.Duration(time.Nanosecond)
	o := h.orchestrator()

	res, err := o.Run(context.Background(), Options{RawText: "posting"})
	require.ErrorIs(t, err, ErrDeadlineExceeded)
	assert.NotEqual(t, StageLogged, res.Stage)

	// The aborted invocation still records exactly one failed Run.
	require.Len(t, h.store.runsOpened, 1)
	c := h.completion(t, res.RunID)
	assert.Equal(t, db.RunStatusFailed, c.Status)
	assert.NotNil(t, c.EvalResults["stage"])
}

func TestPipelineCostCeiling(t *testing.T) {
	h := newHarness(t)
	h.deps.Extractor = &fakeExtractor{
		posting: &jd.JD{Company: "Acme", Role: "Data Engineer", Skills: []string{"Python"}, Description: "d"},
		usage:   llm.Usage{TotalTokens: 50000, CostEstimate: 0.5},
	}
	o := h.orchestrator()

	res, err := o.Run(context.Background(), Options{RawText: "posting"})
	require.ErrorIs(t, err, ErrBudgetExceeded)
	assert.Equal(t, 0, h.compiler.calls)

	c := h.completion(t, res.RunID)
	assert.Equal(t, db.RunStatusFailed, c.Status)
	assert.InDelta(t, 0.5, c.CostEstimate, 1e-9)
}

func TestPipelineLeaseContention(t *testing.T) {
	h := newHarness(t)
	h.store.leaseBusy = true
	o := h.orchestrator()

	res, err := o.Run(context.Background(), Options{RawText: "posting"})
	require.ErrorIs(t, err, ErrInFlight)

	c := h.completion(t, res.RunID)
	assert.Equal(t, db.RunStatusSkipped, c.Status)
	assert.Equal(t, true, c.EvalResults["in_flight"])
	assert.Equal(t, 0, h.compiler.calls)
}

func TestPipelineEmptyInput(t *testing.T) {
	h := newHarness(t)
	o := h.orchestrator()

	res, err := o.Run(context.Background(), Options{RawText: "   "})
	var ee *ExtractionError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "text", ee.Source)

	c := h.completion(t, res.RunID)
	assert.Equal(t, db.RunStatusFailed, c.Status)
}

func TestPipelineOCRConfidenceGate(t *testing.T) {
	h := newHarness(t)

	t.Run("low confidence is terminal", func(t *testing.T) {
		h.deps.OCR = &fakeOCR{text: "garbled", confidence: 0.2}
		o := h.orchestrator()

		_, err := o.Run(context.Background(), Options{ImagePath: "/tmp/screenshot.png"})
		var ee *ExtractionError
		require.ErrorAs(t, err, &ee)
		assert.Equal(t, "ocr", ee.Source)
		assert.Contains(t, ee.Message, "below threshold")
	})

	t.Run("confident OCR flows through cleanup", func(t *testing.T) {
		h.deps.OCR = &fakeOCR{text: "Data Engineer at Acme", confidence: 0.92}
		o := h.orchestrator()

		res, err := o.Run(context.Background(), Options{ImagePath: "/tmp/screenshot.png"})
		require.NoError(t, err)
		assert.Equal(t, StageLogged, res.Stage)
	})
}

func TestPipelineDraftLimitEval(t *testing.T) {
	h := newHarness(t)
	h.deps.Drafter = &fakeDrafter{dmOverLimit: true}
	o := h.orchestrator()

	res, err := o.Run(context.Background(), Options{RawText: "posting"})
	require.NoError(t, err)
	assert.Equal(t, false, res.Evals[evals.KeyDraftWithinLimit])
}

func TestPipelineSubmitAsync(t *testing.T) {
	h := newHarness(t)
	o := h.orchestrator()

	done := make(chan struct{})
	var got *Result
	var gotErr error
	runID := o.Submit(Options{RawText: "posting"}, func(res *Result, err error) {
		got, gotErr = res, err
		close(done)
	})
	require.NotEmpty(t, runID)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("callback never fired")
	}
	require.NoError(t, gotErr)
	assert.Equal(t, runID, got.RunID)
	assert.Equal(t, StageLogged, got.Stage)
}

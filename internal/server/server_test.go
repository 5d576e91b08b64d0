package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karan/inbox-agent/internal/db"
	"github.com/karan/inbox-agent/internal/followup"
	"github.com/karan/inbox-agent/internal/llm"
	"github.com/karan/inbox-agent/internal/pipeline"
	"github.com/karan/inbox-agent/internal/profile"
)

type fakeSubmitter struct {
	lastOpts pipeline.Options
	calls    int
}

func (f *fakeSubmitter) Submit(opts pipeline.Options, _ func(*pipeline.Result, error)) string {
	f.calls++
	f.lastOpts = opts
	return fmt.Sprintf("inbox-test%06d", f.calls)
}

type fakeRunner struct {
	gotDryRun  bool
	gotPersist bool
	result     *followup.CycleResult
	err        error
}

func (f *fakeRunner) RunOnce(_ context.Context, dryRun, persist bool) (*followup.CycleResult, error) {
	f.gotDryRun = dryRun
	f.gotPersist = persist
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeRunStore struct {
	runs map[string]*db.Run
	list []db.Run
}

func (f *fakeRunStore) GetRun(_ context.Context, runID string) (*db.Run, error) {
	return f.runs[runID], nil
}

func (f *fakeRunStore) ListRuns(_ context.Context, limit int) ([]db.Run, error) {
	if limit < len(f.list) {
		return f.list[:limit], nil
	}
	return f.list, nil
}

type fakeProfile struct {
	gotQuery string
	answer   profile.Answer
}

func (f *fakeProfile) Answer(_ context.Context, query string) (profile.Answer, llm.Usage, error) {
	f.gotQuery = query
	return f.answer, llm.Usage{}, nil
}

func newTestServer(secret string) (*Server, *fakeSubmitter, *fakeRunner, *fakeRunStore) {
	sub := &fakeSubmitter{}
	runner := &fakeRunner{result: &followup.CycleResult{RunID: "followup-abc", DryRun: true}}
	store := &fakeRunStore{runs: map[string]*db.Run{}}
	profiles := &fakeProfile{answer: profile.Answer{Text: "Grounded answer.", Narrative: "ai"}}
	s := New(Config{Port: 0, WebhookSecret: secret}, sub, runner, store, profiles)
	return s, sub, runner, store
}

func postWebhook(t *testing.T, s *Server, secret string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader(raw))
	if secret != "" {
		req.Header.Set("X-Webhook-Secret", secret)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	s, _, _, _ := newTestServer("")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])
}

func TestWebhookRejectsBadSecret(t *testing.T) {
	s, sub, _, _ := newTestServer("topsecret")

	rec := postWebhook(t, s, "wrong", InboundMessage{Kind: "text", Payload: "hello"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, 0, sub.calls)

	rec = postWebhook(t, s, "", InboundMessage{Kind: "url", Payload: "https://example.com/job"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestWebhookAcceptsCorrectSecret(t *testing.T) {
	s, sub, _, _ := newTestServer("topsecret")

	rec := postWebhook(t, s, "topsecret", InboundMessage{Kind: "url", Payload: "https://example.com/job"})
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, sub.calls)
}

func TestWebhookValidation(t *testing.T) {
	s, sub, _, _ := newTestServer("")

	tests := []struct {
		name string
		body any
	}{
		{"unknown kind", InboundMessage{Kind: "carrier_pigeon", Payload: "x"}},
		{"missing payload", InboundMessage{Kind: "text"}},
		{"missing kind", InboundMessage{Payload: "x"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postWebhook(t, s, "", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Equal(t, 0, sub.calls)

	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebhookSubmitsJDText(t *testing.T) {
	s, sub, _, _ := newTestServer("")

	jd := "Role: Backend Engineer\nCompany: Initech\nRequirements: Go, Postgres"
	rec := postWebhook(t, s, "", InboundMessage{Kind: "text", Payload: jd, Force: true})

	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "accepted", body["status"])
	assert.NotEmpty(t, body["run_id"])
	assert.Equal(t, "inbox", body["target"])

	require.Equal(t, 1, sub.calls)
	assert.Equal(t, jd, sub.lastOpts.RawText)
	assert.True(t, sub.lastOpts.Force)
	assert.Empty(t, sub.lastOpts.URL)
	assert.Empty(t, sub.lastOpts.ImagePath)
}

func TestWebhookSubmitsURLAndImage(t *testing.T) {
	s, sub, _, _ := newTestServer("")

	rec := postWebhook(t, s, "", InboundMessage{Kind: "url", Payload: "https://jobs.example.com/123"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "https://jobs.example.com/123", sub.lastOpts.URL)

	rec = postWebhook(t, s, "", InboundMessage{Kind: "image", Payload: "/tmp/jd.png"})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, "/tmp/jd.png", sub.lastOpts.ImagePath)
	assert.Equal(t, 2, sub.calls)
}

func TestWebhookAmbiguousTextGetsClarify(t *testing.T) {
	s, sub, _, _ := newTestServer("")

	rec := postWebhook(t, s, "", InboundMessage{Kind: "text", Payload: "hey what's up"})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "clarify", body["target"])
	assert.NotEmpty(t, body["reason"])
	assert.Equal(t, 0, sub.calls)
}

func TestWebhookAnswersProfileQuestions(t *testing.T) {
	sub := &fakeSubmitter{}
	runner := &fakeRunner{result: &followup.CycleResult{RunID: "followup-abc", DryRun: true}}
	store := &fakeRunStore{runs: map[string]*db.Run{}}
	profiles := &fakeProfile{answer: profile.Answer{
		Text:       "Jordan led platform work at Initech Labs.",
		Narrative:  "ai",
		Ungrounded: []string{"Globex Dynamics"},
	}}
	s := New(Config{Port: 0}, sub, runner, store, profiles)

	question := "tell me about your background"
	rec := postWebhook(t, s, "", InboundMessage{Kind: "text", Payload: question})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "profile", body["target"])
	assert.Equal(t, question, profiles.gotQuery)

	answer, ok := body["answer"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Jordan led platform work at Initech Labs.", answer["text"])
	assert.Equal(t, "ai", answer["narrative"])
	assert.Contains(t, answer["ungrounded_claims"], "Globex Dynamics")

	assert.Equal(t, 0, sub.calls, "profile questions never start pipeline runs")
}

func TestWebhookFollowUpIntentTriggersScan(t *testing.T) {
	s, sub, runner, _ := newTestServer("")

	rec := postWebhook(t, s, "", InboundMessage{Kind: "text", Payload: "please follow up on my pending applications"})

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "followup", body["target"])

	followups, ok := body["followups"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "followup-abc", followups["run_id"])

	assert.True(t, runner.gotDryRun, "routed follow-up text must not draft or advance")
	assert.False(t, runner.gotPersist)
	assert.Equal(t, 0, sub.calls)
}

func TestGetRun(t *testing.T) {
	s, _, _, store := newTestServer("")

	tokens := 420
	store.runs["inbox-known"] = &db.Run{
		ID:         uuid.New(),
		RunID:      "inbox-known",
		Agent:      db.AgentInboxPipeline,
		Status:     db.RunStatusCompleted,
		TokensUsed: &tokens,
	}

	req := httptest.NewRequest(http.MethodGet, "/runs/inbox-known", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "inbox-known", body["run_id"])
	assert.Equal(t, "completed", body["status"])

	req = httptest.NewRequest(http.MethodGet, "/runs/inbox-missing", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListRuns(t *testing.T) {
	s, _, _, store := newTestServer("")
	store.list = []db.Run{
		{RunID: "inbox-1", Agent: db.AgentInboxPipeline, Status: db.RunStatusCompleted},
		{RunID: "followup-2", Agent: db.AgentFollowUpRunner, Status: db.RunStatusCompleted},
	}

	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.EqualValues(t, 2, body["count"])

	req = httptest.NewRequest(http.MethodGet, "/runs?limit=1", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decodeBody(t, rec)["count"])

	req = httptest.NewRequest(http.MethodGet, "/runs?limit=banana", nil)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFollowUpsEndpointIsReadOnly(t *testing.T) {
	s, _, runner, _ := newTestServer("")

	req := httptest.NewRequest(http.MethodGet, "/followups", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, runner.gotDryRun, "endpoint must not draft or advance follow-ups")
	assert.False(t, runner.gotPersist)

	body := decodeBody(t, rec)
	assert.Equal(t, "followup-abc", body["run_id"])
}

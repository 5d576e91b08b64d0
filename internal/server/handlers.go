package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/karan/inbox-agent/internal/pipeline"
	"github.com/karan/inbox-agent/internal/router"
)

var validate = validator.New()

// InboundMessage is the normalized payload the chat transport delivers.
type InboundMessage struct {
	Kind    string `json:"kind" validate:"required,oneof=text url image"`
	Payload string `json:"payload" validate:"required"`
	Force   bool   `json:"force,omitempty"`
}

// webhookAccepted is the 202 response for a submitted pipeline run.
type webhookAccepted struct {
	RunID  string `json:"run_id"`
	Status string `json:"status"`
	Target string `json:"target"`
}

// webhookRouted is the response when no pipeline run was started.
type webhookRouted struct {
	Target string `json:"target"`
	Reason string `json:"reason"`
}

// handleWebhook accepts a normalized inbound message and routes it.
// JD-bearing messages hand the work to the pipeline asynchronously; the
// caller gets 202 with a run id to poll and never waits on compilation or
// model calls. Profile questions are answered inline, follow-up requests
// trigger a read-only scan, and everything else gets a clarify response.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		s.errorResponse(w, http.StatusUnauthorized, "invalid webhook secret")
		return
	}

	var msg InboundMessage
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	if err := validate.Struct(msg); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "kind must be one of text|url|image and payload must be set")
		return
	}

	var opts pipeline.Options
	opts.Force = msg.Force

	switch msg.Kind {
	case "image":
		opts.ImagePath = msg.Payload
	case "url":
		opts.URL = msg.Payload
	default: // text
		decision := router.Route(msg.Payload, false)
		switch decision.Target {
		case router.TargetInbox:
			opts.RawText = msg.Payload
		case router.TargetProfile:
			s.answerProfile(w, r, msg.Payload, decision)
			return
		case router.TargetFollowUp:
			s.scanFollowUps(w, r, decision)
			return
		default:
			s.jsonResponse(w, http.StatusOK, webhookRouted{
				Target: string(decision.Target),
				Reason: decision.Reason,
			})
			return
		}
	}

	runID := s.submitter.Submit(opts, nil)
	s.jsonResponse(w, http.StatusAccepted, webhookAccepted{
		RunID:  runID,
		Status: "accepted",
		Target: string(router.TargetInbox),
	})
}

// answerProfile serves a profile-routed question with a grounded answer.
// Ungrounded claims detected in the response ride along so the caller can
// warn the reader.
func (s *Server) answerProfile(w http.ResponseWriter, r *http.Request, query string, decision router.Result) {
	if s.profiles == nil {
		s.errorResponse(w, http.StatusServiceUnavailable, "profile answers are not configured")
		return
	}
	ans, _, err := s.profiles.Answer(r.Context(), query)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "profile answer failed")
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"target": string(decision.Target),
		"reason": decision.Reason,
		"answer": ans,
	})
}

// scanFollowUps serves a followup-routed message with a dry-run scheduler
// cycle: it reports which applications are due without drafting or advancing
// anything.
func (s *Server) scanFollowUps(w http.ResponseWriter, r *http.Request, decision router.Result) {
	result, err := s.followups.RunOnce(r.Context(), true, false)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "follow-up scan failed")
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"target":    string(decision.Target),
		"reason":    decision.Reason,
		"followups": result,
	})
}

// authorized compares the webhook secret in constant time. A server with no
// configured secret accepts everything (local development).
func (s *Server) authorized(r *http.Request) bool {
	if s.secret == "" {
		return true
	}
	provided := r.Header.Get("X-Webhook-Secret")
	return subtle.ConstantTimeCompare([]byte(provided), []byte(s.secret)) == 1
}

// handleGetRun returns one run's telemetry by run id.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	run, err := s.runs.GetRun(r.Context(), runID)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	if run == nil {
		s.errorResponse(w, http.StatusNotFound, "run not found")
		return
	}
	s.jsonResponse(w, http.StatusOK, run)
}

// handleListRuns returns recent run telemetry, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.errorResponse(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

// handleFollowUps reports which jobs are due for a follow-up without
// advancing any of them.
func (s *Server) handleFollowUps(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		s.errorResponse(w, http.StatusUnauthorized, "invalid webhook secret")
		return
	}

	result, err := s.followups.RunOnce(r.Context(), true, false)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "follow-up scan failed")
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

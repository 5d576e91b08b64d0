// Package server exposes the webhook HTTP API for the inbox agent.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/karan/inbox-agent/internal/db"
	"github.com/karan/inbox-agent/internal/followup"
	"github.com/karan/inbox-agent/internal/llm"
	"github.com/karan/inbox-agent/internal/pipeline"
	"github.com/karan/inbox-agent/internal/profile"
)

// Submitter hands jobs to the pipeline without blocking the request loop.
// *pipeline.Orchestrator satisfies it.
type Submitter interface {
	Submit(opts pipeline.Options, callback func(*pipeline.Result, error)) string
}

// FollowUpRunner runs one follow-up detection cycle. *followup.Scheduler
// satisfies it.
type FollowUpRunner interface {
	RunOnce(ctx context.Context, dryRun, persist bool) (*followup.CycleResult, error)
}

// RunStore is the telemetry read surface. *db.DB satisfies it.
type RunStore interface {
	GetRun(ctx context.Context, runID string) (*db.Run, error)
	ListRuns(ctx context.Context, limit int) ([]db.Run, error)
}

// ProfileAnswerer serves grounded questions about the applicant.
// *profile.Responder satisfies it.
type ProfileAnswerer interface {
	Answer(ctx context.Context, query string) (profile.Answer, llm.Usage, error)
}

// Config holds server configuration.
type Config struct {
	Port          int
	WebhookSecret string
}

// Server is the webhook HTTP server.
type Server struct {
	httpServer *http.Server
	submitter  Submitter
	followups  FollowUpRunner
	runs       RunStore
	profiles   ProfileAnswerer
	secret     string
}

// New creates a server around an already-wired pipeline and scheduler.
func New(cfg Config, submitter Submitter, followups FollowUpRunner, runs RunStore, profiles ProfileAnswerer) *Server {
	s := &Server{
		submitter: submitter,
		followups: followups,
		runs:      runs,
		profiles:  profiles,
		secret:    cfg.WebhookSecret,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /webhook", s.handleWebhook)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /runs", s.handleListRuns)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /followups", s.handleFollowUps)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withLogging(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler exposes the routing stack for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens until SIGINT/SIGTERM, then drains in-flight requests.
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Println("Server stopped")
	return nil
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

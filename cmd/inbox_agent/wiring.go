package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/karan/inbox-agent/internal/compile"
	"github.com/karan/inbox-agent/internal/config"
	"github.com/karan/inbox-agent/internal/db"
	"github.com/karan/inbox-agent/internal/drafts"
	"github.com/karan/inbox-agent/internal/followup"
	"github.com/karan/inbox-agent/internal/gcal"
	"github.com/karan/inbox-agent/internal/ingestion"
	"github.com/karan/inbox-agent/internal/jd"
	"github.com/karan/inbox-agent/internal/llm"
	"github.com/karan/inbox-agent/internal/ocr"
	"github.com/karan/inbox-agent/internal/pipeline"
	"github.com/karan/inbox-agent/internal/profile"
)

// loadAgentConfig resolves configuration: file (if given), then environment,
// then defaults. Validation runs on the merged result.
func loadAgentConfig() (config.Config, error) {
	cfg := &config.Config{}
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	cfg.FromEnv()
	merged := cfg.MergeWithDefaults(config.Defaults())
	if err := merged.Validate(); err != nil {
		return config.Config{}, err
	}
	return merged, nil
}

// agent bundles the fully wired components the commands share.
type agent struct {
	cfg          config.Config
	store        *db.DB
	llmClient    llm.Client
	orchestrator *pipeline.Orchestrator
	scheduler    *followup.Scheduler
	profiles     *profile.Responder
}

// buildAgent connects the database, creates the LLM client, and wires the
// orchestrator and follow-up scheduler. Optional Google integrations are
// attached only when enabled and credentialed; everything else degrades to a
// skipped stage, not a startup failure.
func buildAgent(ctx context.Context, cfg config.Config) (*agent, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	store, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	client, err := llm.NewClient(ctx, llm.DefaultConfig(), cfg.APIKey)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	applicant, rawProfile, err := loadProfile(cfg.ProfilePath)
	if err != nil {
		store.Close()
		return nil, err
	}
	bulletBank, err := loadBulletBank(cfg.BulletBank)
	if err != nil {
		store.Close()
		return nil, err
	}

	drafter := drafts.NewGenerator(client, applicant, cfg.DraftCharLimit)

	var fetcher ingestion.Fetcher = ingestion.NewHTTPFetcher()
	if cfg.UseBrowser {
		fetcher = ingestion.NewBrowserFetcher()
	}

	deps := pipeline.Deps{
		Store:      store,
		Extractor:  jd.NewExtractor(client),
		Proposer:   pipeline.NewLLMProposer(client),
		Compiler:   compile.NewPDFLaTeX(),
		Drafter:    drafter,
		OCR:        ocr.NewTesseract(),
		Fetcher:    fetcher,
		LLM:        client,
		BulletBank: bulletBank,
	}

	if cfg.EnableDriveUpload {
		uploader, err := gcal.NewDriveUploader(ctx, cfg.GoogleCredentialsPath)
		if err != nil {
			log.Printf("drive upload disabled: %v", err)
		} else {
			deps.Uploader = uploader
		}
	}
	if cfg.EnableCalendarEvents {
		calendar, err := gcal.NewGoogleCalendar(ctx, cfg.GoogleCredentialsPath)
		if err != nil {
			log.Printf("calendar events disabled: %v", err)
		} else {
			deps.Calendar = calendar
		}
	}

	return &agent{
		cfg:          cfg,
		store:        store,
		llmClient:    client,
		orchestrator: pipeline.New(cfg, deps),
		scheduler:    followup.NewScheduler(store, drafter, cfg.FollowUpInterval.Std(), cfg.MaxFollowUps),
		profiles:     profile.NewResponder(client, rawProfile, bulletBank),
	}, nil
}

func (a *agent) Close() {
	if a.llmClient != nil {
		if err := a.llmClient.Close(); err != nil {
			log.Printf("failed to close LLM client: %v", err)
		}
	}
	if a.store != nil {
		a.store.Close()
	}
}

// loadProfile reads the applicant profile JSON, returning both the parsed
// draft fields and the raw document for the profile responder. A missing
// profile is not fatal: drafts and answers just lose their personalization.
func loadProfile(path string) (drafts.Profile, []byte, error) {
	var applicant drafts.Profile
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Printf("profile not found at %s, drafts will be generic", path)
		return applicant, nil, nil
	}
	if err != nil {
		return applicant, nil, fmt.Errorf("failed to read profile: %w", err)
	}
	if err := json.Unmarshal(data, &applicant); err != nil {
		return applicant, nil, fmt.Errorf("failed to parse profile JSON: %w", err)
	}
	return applicant, data, nil
}

// loadBulletBank reads the allowed-claims corpus. Accepts either a bare JSON
// array of strings or an object with a "bullets" array.
func loadBulletBank(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		log.Printf("bullet bank not found at %s, mutation corpus is empty", path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read bullet bank: %w", err)
	}

	var bullets []string
	if err := json.Unmarshal(data, &bullets); err == nil {
		return bullets, nil
	}
	var wrapped struct {
		Bullets []string `json:"bullets"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse bullet bank JSON: %w", err)
	}
	return wrapped.Bullets, nil
}

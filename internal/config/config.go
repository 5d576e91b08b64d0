// Package config provides configuration loading and validation for the agent.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// Config holds every tunable the agent reads. It is loaded once at startup
// and passed explicitly into each component; nothing reads the environment
// after that.
type Config struct {
	// Storage
	DatabaseURL  string `json:"database_url,omitempty"`  // PostgreSQL connection URL
	ResumesDir   string `json:"resumes_dir,omitempty"`   // Directory holding master_*.tex base resumes
	ArtifactsDir string `json:"artifacts_dir,omitempty"` // Directory for compiled PDFs
	BulletBank   string `json:"bullet_bank,omitempty"`   // Path to bullet_bank.json (allowed-claims corpus)
	ProfilePath  string `json:"profile,omitempty"`       // Path to applicant profile.json

	// LLM
	APIKey string `json:"api_key,omitempty"` // Gemini API key

	// Pipeline limits
	MaxMutations    int     `json:"max_mutations,omitempty"`     // Cap on rewritten bullets per mutation
	DraftCharLimit  int     `json:"draft_char_limit,omitempty"`  // LinkedIn DM budget
	MaxCostPerJob   float64 `json:"max_cost_per_job,omitempty"`  // USD ceiling per pipeline run
	OCRMinConfidence float64 `json:"ocr_min_confidence,omitempty"` // Below this, extraction is a terminal failure

	// Timeouts / cadence (parsed from Go duration strings in JSON)
	PipelineTimeout  Duration `json:"pipeline_timeout,omitempty"`  // Wall-clock budget for one pipeline run
	FollowUpInterval Duration `json:"followup_interval,omitempty"` // Gap before the next follow-up tier fires
	MaxFollowUps     int      `json:"max_followups,omitempty"`     // Tier exhaustion point

	// Toggles
	EnableDriveUpload    bool `json:"enable_drive_upload,omitempty"`
	EnableCalendarEvents bool `json:"enable_calendar_events,omitempty"`
	UseBrowser           bool `json:"use_browser,omitempty"` // Headless browser for SPA job boards
	Verbose              bool `json:"verbose,omitempty"`

	// Transport
	Port          int    `json:"port,omitempty"`
	WebhookSecret string `json:"webhook_secret,omitempty"`

	// Google Cloud
	GoogleCredentialsPath string `json:"google_credentials,omitempty"`
}

// Duration wraps time.Duration so JSON configs can say "10s" or "168h".
type Duration time.Duration

// UnmarshalJSON accepts either a duration string or a number of seconds.
func (d *Duration) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) >= 2 && s[0] == '"' {
		parsed, err := time.ParseDuration(s[1 : len(s)-1])
		if err != nil {
			return fmt.Errorf("invalid duration %s: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid duration %s: %w", s, err)
	}
	*d = Duration(time.Duration(secs * float64(time.Second)))
	return nil
}

// MarshalJSON renders the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// LoadConfig loads configuration from a JSON file.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

// FromEnv fills unset fields from environment variables. Called once in main,
// before MergeWithDefaults.
func (c *Config) FromEnv() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.APIKey == "" {
		c.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.WebhookSecret == "" {
		c.WebhookSecret = os.Getenv("WEBHOOK_SECRET")
	}
	if c.GoogleCredentialsPath == "" {
		c.GoogleCredentialsPath = os.Getenv("GOOGLE_CREDENTIALS_PATH")
	}
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if c.MaxMutations < 0 {
		return fmt.Errorf("config error: 'max_mutations' must be non-negative")
	}
	if c.DraftCharLimit < 0 {
		return fmt.Errorf("config error: 'draft_char_limit' must be non-negative")
	}
	if c.MaxCostPerJob < 0 {
		return fmt.Errorf("config error: 'max_cost_per_job' must be non-negative")
	}
	if c.OCRMinConfidence < 0 || c.OCRMinConfidence > 1 {
		return fmt.Errorf("config error: 'ocr_min_confidence' must be in [0,1]")
	}
	if c.MaxFollowUps < 0 {
		return fmt.Errorf("config error: 'max_followups' must be non-negative")
	}
	if c.ResumesDir != "" {
		if _, err := os.Stat(c.ResumesDir); os.IsNotExist(err) {
			return fmt.Errorf("config error: resumes directory not found: %s", c.ResumesDir)
		}
	}
	return nil
}

// MergeWithDefaults returns a new Config with zero-valued fields filled from defaults.
func (c *Config) MergeWithDefaults(defaults Config) Config {
	result := *c

	if result.DatabaseURL == "" {
		result.DatabaseURL = defaults.DatabaseURL
	}
	if result.ResumesDir == "" {
		result.ResumesDir = defaults.ResumesDir
	}
	if result.ArtifactsDir == "" {
		result.ArtifactsDir = defaults.ArtifactsDir
	}
	if result.BulletBank == "" {
		result.BulletBank = defaults.BulletBank
	}
	if result.ProfilePath == "" {
		result.ProfilePath = defaults.ProfilePath
	}
	if result.APIKey == "" {
		result.APIKey = defaults.APIKey
	}
	if result.GoogleCredentialsPath == "" {
		result.GoogleCredentialsPath = defaults.GoogleCredentialsPath
	}
	if result.WebhookSecret == "" {
		result.WebhookSecret = defaults.WebhookSecret
	}

	if result.MaxMutations == 0 {
		result.MaxMutations = defaults.MaxMutations
	}
	if result.DraftCharLimit == 0 {
		result.DraftCharLimit = defaults.DraftCharLimit
	}
	if result.MaxCostPerJob == 0 {
		result.MaxCostPerJob = defaults.MaxCostPerJob
	}
	if result.OCRMinConfidence == 0 {
		result.OCRMinConfidence = defaults.OCRMinConfidence
	}
	if result.MaxFollowUps == 0 {
		result.MaxFollowUps = defaults.MaxFollowUps
	}
	if result.Port == 0 {
		result.Port = defaults.Port
	}
	if result.PipelineTimeout == 0 {
		result.PipelineTimeout = defaults.PipelineTimeout
	}
	if result.FollowUpInterval == 0 {
		result.FollowUpInterval = defaults.FollowUpInterval
	}

	// Bool fields: cannot distinguish unset from false, so CLI flags win.

	return result
}

// Defaults mirrors the original deployment's settings.
func Defaults() Config {
	return Config{
		ResumesDir:       "resumes",
		ArtifactsDir:     "runs/artifacts",
		BulletBank:       "profile/bullet_bank.json",
		ProfilePath:      "profile/profile.json",
		MaxMutations:     3,
		DraftCharLimit:   300,
		MaxCostPerJob:    0.15,
		OCRMinConfidence: 0.5,
		MaxFollowUps:     3,
		Port:             8000,
		PipelineTimeout:  Duration(10 * time.Second),
		FollowUpInterval: Duration(7 * 24 * time.Hour),
	}
}

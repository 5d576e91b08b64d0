// Package llm provides an abstraction over LLM providers with usage tracking.
package llm

// ModelTier represents the capability/cost tier of a model
type ModelTier string

const (
	// TierDefault is used for extraction, mutation, and draft generation
	TierDefault ModelTier = "default"
	// TierLite is used for cheap judging/cleanup calls
	TierLite ModelTier = "lite"
)

// Provider identifies an LLM backend
type Provider string

const (
	ProviderGemini Provider = "gemini"
)

// Config holds LLM client configuration
type Config struct {
	Provider     Provider
	DefaultModel string
	LiteModel    string
	Temperature  float32
}

// DefaultConfig returns the standard model configuration
func DefaultConfig() *Config {
	return &Config{
		Provider:     ProviderGemini,
		DefaultModel: "gemini-2.0-flash",
		LiteModel:    "gemini-2.0-flash-lite",
		Temperature:  0.2,
	}
}

// GetModel returns the model name for a tier
func (c *Config) GetModel(tier ModelTier) string {
	switch tier {
	case TierLite:
		return c.LiteModel
	default:
		return c.DefaultModel
	}
}

package jd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/karan/inbox-agent/internal/llm"
)

const extractPrompt = `You are an expert job posting parser. Extract structured fields from the raw job posting below. COPY TEXT VERBATIM where possible - do not paraphrase or invent.

Return ONLY valid JSON matching this exact structure:
{
  "company": string,              // Company name (required)
  "role": string,                 // Job title (required)
  "location": string,             // Location or "Remote", empty string if absent
  "experience_required": string,  // e.g. "3-5 years", empty string if absent
  "skills": [string],             // Technical skills named in the posting
  "description": string           // The core responsibilities and requirements text
}

IMPORTANT:
- Extract directly from the text; never invent a company or role that is not present.
- Return ONLY the JSON object, no markdown, no explanation, no code blocks.

Job posting:
"""
%s
"""`

// Extractor turns raw inbound text into a validated JD.
type Extractor struct {
	client llm.Client
}

// NewExtractor creates a JD extractor backed by the given LLM client.
func NewExtractor(client llm.Client) *Extractor {
	return &Extractor{client: client}
}

// Extract parses the raw text into a JD. The LLM output is schema-validated
// before it is decoded; a violating payload comes back as
// *SchemaValidationError with usage still reported for cost accounting.
func (e *Extractor) Extract(ctx context.Context, rawText string) (*JD, llm.Usage, error) {
	if strings.TrimSpace(rawText) == "" {
		return nil, llm.Usage{}, fmt.Errorf("cannot extract from empty text")
	}

	prompt := fmt.Sprintf(extractPrompt, rawText)
	raw, usage, err := e.client.GenerateJSON(ctx, prompt, llm.TierDefault)
	if err != nil {
		return nil, usage, fmt.Errorf("jd extraction failed: %w", err)
	}

	if err := ValidateSchema(raw); err != nil {
		return nil, usage, err
	}

	var result JD
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, usage, fmt.Errorf("failed to decode jd JSON: %w", err)
	}
	return &result, usage, nil
}

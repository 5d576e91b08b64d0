package evals

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/karan/inbox-agent/internal/llm"
)

// Judge scores content against a rubric, returning a value in [0,1] plus a
// short rationale. Soft evals never gate the pipeline; they are recorded for
// trend analysis.
type Judge interface {
	Score(ctx context.Context, rubric, content string) (float64, string, error)
}

// LLMJudge scores with the lite model tier. Scores outside [0,1] are
// clamped, models occasionally return 10-point scales regardless of
// instruction.
type LLMJudge struct {
	client llm.Client
}

// NewLLMJudge creates a judge backed by the given client.
func NewLLMJudge(client llm.Client) *LLMJudge {
	return &LLMJudge{client: client}
}

const judgePrompt = `You are a strict evaluator.

Rubric:
%s

Content to evaluate:
"""
%s
"""

Return ONLY valid JSON: {"score": number between 0.0 and 1.0, "rationale": "one sentence"}`

func (j *LLMJudge) Score(ctx context.Context, rubric, content string) (float64, string, error) {
	raw, _, err := j.client.GenerateJSON(ctx, fmt.Sprintf(judgePrompt, rubric, content), llm.TierLite)
	if err != nil {
		return 0, "", fmt.Errorf("judge call failed: %w", err)
	}

	var verdict struct {
		Score     float64 `json:"score"`
		Rationale string  `json:"rationale"`
	}
	if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
		return 0, "", fmt.Errorf("judge returned malformed JSON: %w", err)
	}
	return clamp01(verdict.Score), verdict.Rationale, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ScoreResumeRelevance judges how well the mutated resume targets the JD.
func ScoreResumeRelevance(ctx context.Context, judge Judge, jdText, resumeText string) (float64, string, error) {
	rubric := fmt.Sprintf("Rate how well the resume below targets this job description. 1.0 = every requirement addressed, 0.0 = unrelated.\n\nJob description:\n%s", jdText)
	return judge.Score(ctx, rubric, resumeText)
}

// ScoreExtractionAccuracy judges whether the extracted JD faithfully
// reflects the raw posting text.
func ScoreExtractionAccuracy(ctx context.Context, judge Judge, rawText, extractedJSON string) (float64, string, error) {
	rubric := fmt.Sprintf("Rate whether the JSON below faithfully extracts the job posting: no invented fields, no dropped requirements. 1.0 = perfect, 0.0 = fabricated.\n\nOriginal posting:\n%s", rawText)
	return judge.Score(ctx, rubric, extractedJSON)
}

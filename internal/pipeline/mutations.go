package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/karan/inbox-agent/internal/jd"
	"github.com/karan/inbox-agent/internal/llm"
	"github.com/karan/inbox-agent/internal/resume"
)

// MutationProposer asks for bounded bullet rewrites targeting a JD.
type MutationProposer interface {
	Propose(ctx context.Context, posting *jd.JD, doc string, max int) ([]resume.Mutation, llm.Usage, error)
}

// LLMProposer generates rewrite proposals with the default model tier.
// Proposals are suggestions only; the mutation engine enforces the policy.
type LLMProposer struct {
	client llm.Client
}

// NewLLMProposer wires a proposer on the given client.
func NewLLMProposer(client llm.Client) *LLMProposer {
	return &LLMProposer{client: client}
}

const proposePrompt = `You are tailoring a resume to a job description. Below is a LaTeX resume; only text between %%BEGIN_EDITABLE and %%END_EDITABLE markers may change.

Propose AT MOST %d bullet rewrites that better target the job. Each rewrite must:
- Copy "original" EXACTLY as it appears inside an editable region (one full bullet line).
- Keep "replacement" truthful: rephrase and reorder only, never invent employers, products, or metrics.
- Never touch lines outside the editable regions.

Job: %s at %s
Required skills: %s

Resume:
"""
%s
"""

Return ONLY valid JSON: {"mutations": [{"original": "...", "replacement": "..."}]}`

func (p *LLMProposer) Propose(ctx context.Context, posting *jd.JD, doc string, max int) ([]resume.Mutation, llm.Usage, error) {
	skills, _ := json.Marshal(posting.Skills)
	prompt := fmt.Sprintf(proposePrompt, max, posting.Role, posting.Company, skills, doc)

	raw, usage, err := p.client.GenerateJSON(ctx, prompt, llm.TierDefault)
	if err != nil {
		return nil, usage, fmt.Errorf("mutation proposal failed: %w", err)
	}

	var payload struct {
		Mutations []resume.Mutation `json:"mutations"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, usage, fmt.Errorf("mutation proposal returned malformed JSON: %w", err)
	}
	return payload.Mutations, usage, nil
}

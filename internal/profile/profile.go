// Package profile answers questions about the applicant, grounded strictly
// in the canonical profile JSON and the bullet bank. It is read-only: it
// returns text and never touches the store.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/karan/inbox-agent/internal/llm"
)

// Answer is one grounded response to a profile question.
type Answer struct {
	Text       string   `json:"text"`
	Narrative  string   `json:"narrative"`
	Ungrounded []string `json:"ungrounded_claims,omitempty"`
}

// Responder serves profile questions for a fixed applicant.
type Responder struct {
	client      llm.Client
	profileJSON string
	bulletBank  []string
	name        string
}

// NewResponder wires a responder around the raw profile JSON and the
// allowed-claims bullet bank. The applicant name is read from the profile
// ("identity.name" or top-level "name") when present.
func NewResponder(client llm.Client, profileJSON []byte, bulletBank []string) *Responder {
	name := "the candidate"
	var partial struct {
		Name     string `json:"name"`
		Identity struct {
			Name string `json:"name"`
		} `json:"identity"`
	}
	if err := json.Unmarshal(profileJSON, &partial); err == nil {
		switch {
		case partial.Identity.Name != "":
			name = partial.Identity.Name
		case partial.Name != "":
			name = partial.Name
		}
	}
	return &Responder{
		client:      client,
		profileJSON: string(profileJSON),
		bulletBank:  bulletBank,
		name:        name,
	}
}

// narrativeAngles are checked in order; the first keyword hit wins.
var narrativeAngles = []struct {
	angle    string
	keywords []string
}{
	{"ai", []string{"ai", "ml", "machine learning", "llm", "data science"}},
	{"growth", []string{"growth", "acquisition", "retention", "conversion", "funnel"}},
	{"martech", []string{"martech", "marketing", "automation", "crm", "campaign"}},
}

func selectNarrative(query string) string {
	lower := strings.ToLower(query)
	for _, n := range narrativeAngles {
		for _, kw := range n.keywords {
			if strings.Contains(lower, kw) {
				return n.angle
			}
		}
	}
	return "ai"
}

// multiWordClaim matches capitalized multi-word runs: company names, product
// names, degree titles. Single capitalized words are too noisy to flag.
var multiWordClaim = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s[A-Z][a-z]+)+\b`)

// commonPhrases are capitalized English phrases that are not claims.
var commonPhrases = map[string]bool{
	"Product Manager":         true,
	"Senior Product":          true,
	"Business Administration": true,
	"Product Management":      true,
	"Data Science":            true,
	"Machine Learning":        true,
	"Cross Functional":        true,
	"Master Of":               true,
}

// ungroundedClaims returns multi-word claims in response that appear nowhere
// in the allowed text. Matching is case-insensitive on word boundaries, so a
// longer word embedding the claim does not ground it.
func ungroundedClaims(response, allowedText string) []string {
	var out []string
	seen := map[string]bool{}
	for _, claim := range multiWordClaim.FindAllString(response, -1) {
		if seen[claim] || commonPhrases[claim] {
			continue
		}
		seen[claim] = true
		pattern := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(claim) + `\b`)
		if !pattern.MatchString(allowedText) {
			out = append(out, claim)
		}
	}
	return out
}

const answerPrompt = `You are a professional representative for %s. You answer questions about their background, skills, and experience.

RULES:
1. Only use facts from the provided profile and bullet bank.
2. Never invent companies, metrics, roles, or achievements.
3. Be professional, concise, and helpful.
4. When asked for a bio or positioning, use the narrative angle given.

PROFILE:
%s

BULLET BANK:
%s

[Narrative angle: %s]

Question: %s`

// Answer responds to a question about the applicant. The response is checked
// against the profile and bullet bank; claims found nowhere in either are
// surfaced on the Answer so the caller can warn the reader.
func (r *Responder) Answer(ctx context.Context, query string) (Answer, llm.Usage, error) {
	if strings.TrimSpace(query) == "" {
		return Answer{}, llm.Usage{}, fmt.Errorf("empty question")
	}

	narrative := selectNarrative(query)
	prompt := fmt.Sprintf(answerPrompt, r.name, r.profileJSON,
		strings.Join(r.bulletBank, "\n"), narrative, query)

	text, usage, err := r.client.GenerateText(ctx, prompt, llm.TierDefault)
	if err != nil {
		return Answer{}, usage, fmt.Errorf("profile answer failed: %w", err)
	}
	text = strings.TrimSpace(text)

	allowed := r.profileJSON + "\n" + strings.Join(r.bulletBank, "\n")
	return Answer{
		Text:       text,
		Narrative:  narrative,
		Ungrounded: ungroundedClaims(text, allowed),
	}, usage, nil
}

// Package drafts generates outreach messages: emails, LinkedIn DMs, referral
// requests, and tier-escalating follow-ups.
package drafts

import (
	"context"
	"fmt"
	"strings"

	"github.com/karan/inbox-agent/internal/db"
	"github.com/karan/inbox-agent/internal/followup"
	"github.com/karan/inbox-agent/internal/llm"
)

// Draft is one generated outreach message.
type Draft struct {
	Type        string `json:"type"` // "email", "linkedin_dm", "referral", "followup"
	Text        string `json:"text"`
	CharCount   int    `json:"char_count"`
	WithinLimit bool   `json:"within_limit"`
}

// Profile is the applicant context fed into every draft prompt.
type Profile struct {
	Name        string `json:"name"`
	Summary     string `json:"summary"`
	Positioning string `json:"positioning"`
}

// Generator produces drafts for a fixed applicant profile.
type Generator struct {
	client  llm.Client
	profile Profile
	dmLimit int
}

// NewGenerator wires a draft generator. dmLimit is the LinkedIn character
// budget; zero falls back to the platform limit of 300.
func NewGenerator(client llm.Client, profile Profile, dmLimit int) *Generator {
	if dmLimit <= 0 {
		dmLimit = 300
	}
	return &Generator{client: client, profile: profile, dmLimit: dmLimit}
}

const emailPrompt = `Write a professional first-outreach email for a job application. Warm, specific, under 180 words. Reference the role directly. No subject line, no placeholders like [Name]. Return only the message text.

Applicant: %s
Background: %s
Company: %s
Role: %s`

// Email generates the first-outreach email. Emails carry no character limit.
func (g *Generator) Email(ctx context.Context, company, role string) (Draft, llm.Usage, error) {
	prompt := fmt.Sprintf(emailPrompt, g.profile.Name, g.profile.Summary, company, role)
	text, usage, err := g.client.GenerateText(ctx, prompt, llm.TierDefault)
	if err != nil {
		return Draft{}, usage, fmt.Errorf("email draft failed: %w", err)
	}
	text = strings.TrimSpace(text)
	return Draft{Type: "email", Text: text, CharCount: len([]rune(text)), WithinLimit: true}, usage, nil
}

const linkedinPrompt = `Write a LinkedIn DM to a recruiter or hiring manager about an open role. STRICTLY under %d characters. Direct, friendly, one concrete hook from the applicant's positioning. No hashtags, no placeholders. Return only the message text.

Applicant: %s
Positioning: %s
Company: %s
Role: %s`

// LinkedInDM generates a DM and enforces the character budget. An over-limit
// model response is hard-truncated with an ellipsis and reported as
// WithinLimit=false so the eval records the miss.
func (g *Generator) LinkedInDM(ctx context.Context, company, role string) (Draft, llm.Usage, error) {
	prompt := fmt.Sprintf(linkedinPrompt, g.dmLimit, g.profile.Name, g.profile.Positioning, company, role)
	text, usage, err := g.client.GenerateText(ctx, prompt, llm.TierDefault)
	if err != nil {
		return Draft{}, usage, fmt.Errorf("linkedin draft failed: %w", err)
	}
	text = strings.TrimSpace(text)

	runes := []rune(text)
	within := len(runes) <= g.dmLimit
	if !within {
		// Limits too small to fit the ellipsis get a plain cut.
		if g.dmLimit > 3 {
			text = strings.TrimRight(string(runes[:g.dmLimit-3]), " \t\n") + "..."
		} else {
			text = string(runes[:g.dmLimit])
		}
	}
	return Draft{Type: "linkedin_dm", Text: text, CharCount: len([]rune(text)), WithinLimit: within}, usage, nil
}

const referralPrompt = `Write a referral request message to a potential referrer at the target company. Respectful of their time, easy to say yes to, offers to send resume and a blurb. Return only the message text.

Applicant: %s
Background: %s
Company: %s
Role: %s
Referrer context: %s`

// Referral generates a referral request template.
func (g *Generator) Referral(ctx context.Context, company, role string) (Draft, llm.Usage, error) {
	prompt := fmt.Sprintf(referralPrompt, g.profile.Name, g.profile.Summary, company, role, "No prior relationship")
	text, usage, err := g.client.GenerateText(ctx, prompt, llm.TierDefault)
	if err != nil {
		return Draft{}, usage, fmt.Errorf("referral draft failed: %w", err)
	}
	text = strings.TrimSpace(text)
	return Draft{Type: "referral", Text: text, CharCount: len([]rune(text)), WithinLimit: true}, usage, nil
}

const followUpPrompt = `You are writing a follow-up message for a job application.

Context:
- Company: %s
- Role: %s
- This is the %s (tier %d)
- Tone: %s
- Style: %s

Rules:
1. Keep it under 150 words
2. Be professional and respectful of their time
3. Reference the specific role
4. Include a soft call to action
5. Do not be desperate or pushy

Return only the message text.`

// FollowUp generates the escalation message for a job at the given tier.
// Satisfies followup.Drafter.
func (g *Generator) FollowUp(ctx context.Context, job db.Job, tier followup.Tier) (string, llm.Usage, error) {
	prompt := fmt.Sprintf(followUpPrompt, job.Company, job.Role, tier.Label(), int(tier)+1, tier.Tone(), tier.Template())
	text, usage, err := g.client.GenerateText(ctx, prompt, llm.TierDefault)
	if err != nil {
		return "", usage, fmt.Errorf("follow-up draft failed: %w", err)
	}
	return strings.TrimSpace(text), usage, nil
}

package drafts

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karan/inbox-agent/internal/db"
	"github.com/karan/inbox-agent/internal/followup"
	"github.com/karan/inbox-agent/internal/llm"
)

type stubClient struct {
	response   string
	lastPrompt string
}

func (s *stubClient) GenerateText(ctx context.Context, prompt string, tier llm.ModelTier) (string, llm.Usage, error) {
	s.lastPrompt = prompt
	return s.response, llm.Usage{TotalTokens: 80, CostEstimate: 0.0008}, nil
}

func (s *stubClient) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, llm.Usage, error) {
	return s.GenerateText(ctx, prompt, tier)
}

func (s *stubClient) Close() error { return nil }

var testProfile = Profile{
	Name:        "Jordan Smith",
	Summary:     "Backend engineer, 6 years, Go and Postgres.",
	Positioning: "Shipped payment infra at scale.",
}

func TestEmail(t *testing.T) {
	client := &stubClient{response: "  Hello, I recently applied...  "}
	g := NewGenerator(client, testProfile, 300)

	draft, usage, err := g.Email(context.Background(), "Acme", "Backend Engineer")
	require.NoError(t, err)
	assert.Equal(t, "email", draft.Type)
	assert.Equal(t, "Hello, I recently applied...", draft.Text)
	assert.True(t, draft.WithinLimit)
	assert.Equal(t, 80, usage.TotalTokens)
	assert.Contains(t, client.lastPrompt, "Acme")
	assert.Contains(t, client.lastPrompt, "Jordan Smith")
}

func TestLinkedInDM(t *testing.T) {
	t.Run("within limit untouched", func(t *testing.T) {
		client := &stubClient{response: "Short and sweet DM."}
		g := NewGenerator(client, testProfile, 300)

		draft, _, err := g.LinkedInDM(context.Background(), "Acme", "Backend Engineer")
		require.NoError(t, err)
		assert.True(t, draft.WithinLimit)
		assert.Equal(t, "Short and sweet DM.", draft.Text)
	})

	t.Run("over limit truncated with ellipsis", func(t *testing.T) {
		client := &stubClient{response: strings.Repeat("x", 400)}
		g := NewGenerator(client, testProfile, 300)

		draft, _, err := g.LinkedInDM(context.Background(), "Acme", "Backend Engineer")
		require.NoError(t, err)
		assert.False(t, draft.WithinLimit)
		assert.Equal(t, 300, draft.CharCount)
		assert.True(t, strings.HasSuffix(draft.Text, "..."))
	})

	t.Run("exactly at limit is within", func(t *testing.T) {
		client := &stubClient{response: strings.Repeat("y", 300)}
		g := NewGenerator(client, testProfile, 300)

		draft, _, err := g.LinkedInDM(context.Background(), "Acme", "Backend Engineer")
		require.NoError(t, err)
		assert.True(t, draft.WithinLimit)
		assert.Equal(t, 300, draft.CharCount)
	})

	t.Run("tiny limits truncate without ellipsis", func(t *testing.T) {
		for _, limit := range []int{1, 2, 3} {
			client := &stubClient{response: "Hello there"}
			g := NewGenerator(client, testProfile, limit)

			draft, _, err := g.LinkedInDM(context.Background(), "Acme", "Backend Engineer")
			require.NoError(t, err)
			assert.False(t, draft.WithinLimit)
			assert.Equal(t, limit, draft.CharCount)
			assert.False(t, strings.HasSuffix(draft.Text, "..."))
		}
	})

	t.Run("zero limit falls back to 300", func(t *testing.T) {
		client := &stubClient{response: strings.Repeat("z", 301)}
		g := NewGenerator(client, testProfile, 0)

		draft, _, err := g.LinkedInDM(context.Background(), "Acme", "Backend Engineer")
		require.NoError(t, err)
		assert.False(t, draft.WithinLimit)
		assert.Equal(t, 300, draft.CharCount)
	})
}

func TestFollowUpDraft(t *testing.T) {
	client := &stubClient{response: "Just checking in on my application."}
	g := NewGenerator(client, testProfile, 300)

	job := db.Job{Company: "Acme", Role: "Backend Engineer"}
	text, usage, err := g.FollowUp(context.Background(), job, followup.TierSecond)
	require.NoError(t, err)
	assert.Equal(t, "Just checking in on my application.", text)
	assert.Equal(t, 80, usage.TotalTokens)
	assert.Contains(t, client.lastPrompt, "2nd follow-up")
	assert.Contains(t, client.lastPrompt, "slightly more direct")
	assert.Contains(t, client.lastPrompt, "tier 2")
}

// Generator must satisfy the scheduler's Drafter contract.
var _ followup.Drafter = (*Generator)(nil)

package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoute(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		hasImage bool
		want     Target
	}{
		{"image routes to inbox", "", true, TargetInbox},
		{"image wins over followup text", "follow up please", true, TargetInbox},
		{"empty message clarifies", "   ", false, TargetClarify},
		{"url routes to inbox", "check this out https://jobs.acme.com/123", false, TargetInbox},
		{"followup keyword", "can you follow up on my pending applications?", false, TargetFollowUp},
		{"followup hyphenated", "time for a follow-up nudge", false, TargetFollowUp},
		{"profile question", "tell me about your background", false, TargetProfile},
		{"two jd indicators route to inbox", "Responsibilities: build services. Requirements: Go.", false, TargetInbox},
		{"jd with role and company lines", "Role: Backend Engineer\nCompany: Acme\nLocation: Berlin", false, TargetInbox},
		{"one indicator is not enough", "What are your responsibilities at work?", false, TargetClarify},
		{"small talk clarifies", "hey, how is it going?", false, TargetClarify},
		{"curly quotes normalized", "what we’re looking for: a builder. you will ship.", false, TargetInbox},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Route(tt.text, tt.hasImage)
			assert.Equal(t, tt.want, got.Target)
			assert.NotEmpty(t, got.Reason)
		})
	}
}

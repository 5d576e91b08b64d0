// Package followup schedules escalating check-ins on applied jobs.
package followup

import (
	"context"

	"github.com/karan/inbox-agent/internal/db"
	"github.com/karan/inbox-agent/internal/llm"
)

// Tier is the escalation level of the next follow-up, derived from how many
// follow-ups a job has already received.
type Tier int

const (
	TierFirst Tier = iota
	TierSecond
	TierThird
)

// tierInfo drives the draft prompt for each escalation level.
type tierInfo struct {
	label    string
	tone     string
	template string
}

var tiers = map[Tier]tierInfo{
	TierFirst: {
		label:    "1st follow-up",
		tone:     "polite and professional",
		template: "gentle check-in referencing the application",
	},
	TierSecond: {
		label:    "2nd follow-up",
		tone:     "slightly more direct, adding value",
		template: "follow-up with a relevant insight or article",
	},
	TierThird: {
		label:    "3rd follow-up",
		tone:     "final, graceful close",
		template: "brief closing note leaving the door open",
	},
}

// TierForCount maps a job's follow_up_count to the next tier.
// ok is false once the sequence is exhausted.
func TierForCount(count, maxFollowUps int) (Tier, bool) {
	if count >= maxFollowUps {
		return 0, false
	}
	t := Tier(count)
	if t > TierThird {
		t = TierThird
	}
	return t, true
}

// Label returns the human-readable tier name.
func (t Tier) Label() string { return tiers[clampTier(t)].label }

// Tone returns the writing tone for this tier.
func (t Tier) Tone() string { return tiers[clampTier(t)].tone }

// Template returns the message shape for this tier.
func (t Tier) Template() string { return tiers[clampTier(t)].template }

func clampTier(t Tier) Tier {
	if t < TierFirst {
		return TierFirst
	}
	if t > TierThird {
		return TierThird
	}
	return t
}

// Drafter produces the follow-up message for a job at a given tier.
// Implemented by the drafts package; faked in tests.
type Drafter interface {
	FollowUp(ctx context.Context, job db.Job, tier Tier) (string, llm.Usage, error)
}

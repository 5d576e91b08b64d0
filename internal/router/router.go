// Package router classifies inbound messages without an LLM: pure pattern
// matching, so routing is deterministic and free.
package router

import (
	"fmt"
	"regexp"
	"strings"
)

// Target is the subsystem a message is routed to.
type Target string

const (
	TargetInbox    Target = "inbox"
	TargetProfile  Target = "profile"
	TargetFollowUp Target = "followup"
	TargetClarify  Target = "clarify"
)

// Result is a routing decision plus the rule that produced it.
type Result struct {
	Target Target
	Reason string
}

var urlPattern = regexp.MustCompile(`(?i)https?://\S+`)

var followUpKeywords = []string{
	"follow up",
	"follow-up",
	"followup",
	"pending applications",
	"nudge",
	"check status",
}

var profileKeywords = []string{
	"tell me about",
	"bio",
	"profile",
	"positioning",
	"introduce yourself",
	"your background",
	"your experience",
	"your skills",
}

var jdIndicators = []string{
	"responsibilities",
	"requirements",
	"qualifications",
	"job description",
	"we are looking for",
	"what we are looking for",
	"what we're looking for",
	"about the job",
	"you will",
	"about the role",
	"what you'll do",
	"what youll do",
	"must have",
	"nice to have",
	"experience required",
	"years of experience",
	"apply now",
	"job title",
	"role:",
	"company:",
	"location:",
}

// normalize lowercases and maps curly-quote variants that chat apps insert
// into pasted text.
func normalize(text string) string {
	text = strings.ToLower(text)
	replacer := strings.NewReplacer("’", "'", "‘", "'", "`", "'")
	return strings.TrimSpace(replacer.Replace(text))
}

// Route decides which subsystem handles a message. Rules fire in priority
// order: image, URL, follow-up keywords, profile keywords, JD indicators,
// then clarify.
func Route(text string, hasImage bool) Result {
	if hasImage {
		return Result{TargetInbox, "message contains an image (likely JD screenshot)"}
	}
	if strings.TrimSpace(text) == "" {
		return Result{TargetClarify, "no text or image provided"}
	}

	lower := normalize(text)

	if urlPattern.MatchString(text) {
		return Result{TargetInbox, "message contains a URL (likely job listing)"}
	}

	for _, kw := range followUpKeywords {
		if strings.Contains(lower, kw) {
			return Result{TargetFollowUp, "message asks about follow-ups"}
		}
	}

	for _, kw := range profileKeywords {
		if strings.Contains(lower, kw) {
			return Result{TargetProfile, "message asks about the applicant profile"}
		}
	}

	score := 0
	for _, ind := range jdIndicators {
		if strings.Contains(lower, ind) {
			score++
		}
	}
	if score >= 2 {
		return Result{TargetInbox, fmt.Sprintf("message looks like a JD (%d indicators)", score)}
	}

	return Result{TargetClarify, "message is ambiguous, need clarification"}
}

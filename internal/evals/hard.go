// Package evals scores pipeline output. Hard checks are binary pass/fail
// gates; soft checks are LLM-judged scores in [0,1]. Results are persisted
// on the Run record and later aggregated by the CI gate.
package evals

import (
	"regexp"
	"strings"

	"github.com/karan/inbox-agent/internal/jd"
	"github.com/karan/inbox-agent/internal/resume"
)

// Keys under which eval outcomes are recorded on a Run.
const (
	KeyCompileSuccess     = "compile_success"
	KeyEditScopeViolation = "edit_scope_violation"
	KeyForbiddenClaims    = "forbidden_claims_count"
	KeyKeywordCoverage    = "keyword_coverage"
	KeyDraftWithinLimit   = "draft_within_limit"
	KeyCostEstimate       = "cost_estimate"
	KeyLatencyMs          = "latency_ms"
	KeyTokensUsed         = "tokens_used"
	KeyResumeRelevance    = "resume_relevance"
	KeyExtractionAccuracy = "extraction_accuracy"
)

// Results is the eval payload persisted with each Run.
type Results map[string]any

// CheckJDSchema reports whether raw extraction JSON satisfies the JD schema.
func CheckJDSchema(rawJSON string) bool {
	return jd.ValidateSchema(rawJSON) == nil
}

// CheckEditScope verifies the edit-scope invariant after mutation: the
// protected regions of before and after must mask identically. Parse
// failures count as violations, an unparseable document proves nothing.
func CheckEditScope(before, after string) bool {
	maskBefore, err := resume.MaskEditableRegions(before)
	if err != nil {
		return false
	}
	maskAfter, err := resume.MaskEditableRegions(after)
	if err != nil {
		return false
	}
	return maskBefore == maskAfter
}

// properNoun mirrors the mutation engine's fabrication heuristic.
var properNoun = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s[A-Z][a-z]+)*\b`)

// CountForbiddenClaims counts distinct proper-noun entities in candidate
// that appear in none of the allowed sources. Zero is the only passing
// value. Entities match whole against the sources' own entity runs and
// their contiguous word sub-spans, never against fragments of longer words.
func CountForbiddenClaims(candidate string, allowedSources ...string) int {
	allowed := map[string]bool{}
	for _, source := range allowedSources {
		for _, run := range properNoun.FindAllString(source, -1) {
			words := strings.Fields(run)
			for i := range words {
				for j := i; j < len(words); j++ {
					allowed[strings.Join(words[i:j+1], " ")] = true
				}
			}
		}
	}

	count := 0
	seen := map[string]bool{}
	for _, entity := range properNoun.FindAllString(candidate, -1) {
		if seen[entity] {
			continue
		}
		seen[entity] = true
		if !allowed[entity] {
			count++
		}
	}
	return count
}

// CheckDraftLength reports whether a draft fits its character budget.
// A non-positive limit disables the check.
func CheckDraftLength(draft string, limit int) bool {
	if limit <= 0 {
		return true
	}
	return len([]rune(draft)) <= limit
}

// CheckCost reports whether an accumulated cost estimate is under the
// per-job ceiling. A non-positive ceiling disables the check.
func CheckCost(costUSD, ceilingUSD float64) bool {
	if ceilingUSD <= 0 {
		return true
	}
	return costUSD <= ceilingUSD
}

// KeywordCoverage is the fraction of JD skills present in the final resume
// text, in [0,1].
func KeywordCoverage(skills []string, resumeText string) float64 {
	if len(skills) == 0 {
		return 0
	}
	body := strings.ToLower(resumeText)
	matched := 0
	for _, skill := range skills {
		skill = strings.ToLower(strings.TrimSpace(skill))
		if skill != "" && strings.Contains(body, skill) {
			matched++
		}
	}
	return float64(matched) / float64(len(skills))
}

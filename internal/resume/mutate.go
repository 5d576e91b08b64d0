package resume

import (
	"fmt"
	"regexp"
	"strings"
)

// Mutation is one proposed bullet rewrite: replace Original (which must sit
// inside an editable region) with Replacement.
type Mutation struct {
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
}

// Policy bounds what a mutation set may do. AllowedCorpus is the set of
// claims the applicant has pre-approved (bullet bank + profile); entities
// appearing there may be introduced even if absent from the source region.
type Policy struct {
	MaxRewrites   int
	AllowedCorpus []string
}

// properNoun matches capitalized word runs: the fabrication heuristic for
// company names, product names, and named metrics.
var properNoun = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s[A-Z][a-z]+)*\b`)

// ApplyMutations applies a mutation set to a document, all or nothing.
// On any violation it returns ("", *EditScopeViolation) and the caller's
// document is untouched. On success the returned text has byte-identical
// protected regions, which the caller can re-verify with
// MaskEditableRegions.
func ApplyMutations(raw string, muts []Mutation, policy Policy) (string, error) {
	doc, err := ParseEditableRegions(raw)
	if err != nil {
		return "", err
	}

	var reasons []string
	var diff string

	if policy.MaxRewrites > 0 && len(muts) > policy.MaxRewrites {
		reasons = append(reasons, fmt.Sprintf("mutation cap exceeded: %d rewrites proposed, cap is %d", len(muts), policy.MaxRewrites))
		return "", &EditScopeViolation{Reasons: reasons}
	}

	// Work on a copy of the region contents; splice back only if every
	// mutation passes every check.
	contents := make([]string, len(doc.Regions))
	for i, r := range doc.Regions {
		contents[i] = r.Content
	}

	for _, m := range muts {
		if strings.TrimSpace(m.Original) == "" {
			reasons = append(reasons, "mutation with empty original text")
			continue
		}
		if strings.Contains(m.Replacement, BeginMarker) || strings.Contains(m.Replacement, EndMarker) {
			reasons = append(reasons, fmt.Sprintf("replacement for %q introduces a region marker", snippet(m.Original)))
			continue
		}

		idx := -1
		for i, content := range contents {
			if strings.Contains(content, m.Original) {
				idx = i
				break
			}
		}
		if idx < 0 {
			reasons = append(reasons, fmt.Sprintf("original text %q not found in any editable region", snippet(m.Original)))
			continue
		}

		if newEntities := forbiddenEntities(m.Replacement, contents[idx], policy.AllowedCorpus); len(newEntities) > 0 {
			reasons = append(reasons, fmt.Sprintf("replacement introduces entities not present in the source region or allowed corpus: %s", strings.Join(newEntities, ", ")))
			if diff == "" {
				diff = regionDiff(contents[idx], strings.Replace(contents[idx], m.Original, m.Replacement, 1))
			}
			continue
		}

		contents[idx] = strings.Replace(contents[idx], m.Original, m.Replacement, 1)
	}

	if len(reasons) > 0 {
		return "", &EditScopeViolation{Reasons: reasons, Diff: diff}
	}

	var sb strings.Builder
	pos := 0
	for i, r := range doc.Regions {
		sb.WriteString(raw[pos:r.Start])
		sb.WriteString(contents[i])
		pos = r.End
	}
	sb.WriteString(raw[pos:])
	return sb.String(), nil
}

// allowedEntitySet collects the proper-noun entities of the given texts,
// plus every contiguous word sub-span of a multi-word run, so "Acme Corp" is
// honored when the corpus says "Acme Corp Ltd". Membership is whole-entity:
// a corpus word that merely embeds the candidate ("Rubyist" for "Ruby")
// does not allow it.
func allowedEntitySet(texts ...string) map[string]bool {
	set := map[string]bool{}
	for _, text := range texts {
		for _, run := range properNoun.FindAllString(text, -1) {
			words := strings.Fields(run)
			for i := range words {
				for j := i; j < len(words); j++ {
					set[strings.Join(words[i:j+1], " ")] = true
				}
			}
		}
	}
	return set
}

// forbiddenEntities returns proper-noun entities in replacement that appear
// neither in the source region nor the allowed corpus.
func forbiddenEntities(replacement, sourceRegion string, allowedCorpus []string) []string {
	allowed := allowedEntitySet(append([]string{sourceRegion}, allowedCorpus...)...)

	var out []string
	seen := map[string]bool{}
	for _, entity := range properNoun.FindAllString(replacement, -1) {
		if seen[entity] {
			continue
		}
		seen[entity] = true
		if !allowed[entity] {
			out = append(out, entity)
		}
	}
	return out
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > 40 {
		return s[:40] + "..."
	}
	return s
}

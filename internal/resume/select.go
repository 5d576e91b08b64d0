package resume

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FitScore is the keyword overlap between a skill list and a resume body,
// as an integer percentage. No skills means nothing to match: score 0.
func FitScore(skills []string, resumeText string) int {
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
	return matched * 100 / len(skills)
}

// Selection is the outcome of base resume selection.
type Selection struct {
	Path     string
	Name     string // file base name, recorded as resume_used
	Content  string
	FitScore int
}

// SelectBaseResume scores every master_*.tex in dir against the JD skills
// and returns the best fit. Ties go to the lexically first file so selection
// is deterministic run to run.
func SelectBaseResume(dir string, skills []string) (*Selection, error) {
	pattern := filepath.Join(dir, "master_*.tex")
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to glob base resumes: %w", err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no base resumes found matching %s", pattern)
	}

	var best *Selection
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read base resume %s: %w", path, err)
		}
		score := FitScore(skills, string(data))
		if best == nil || score > best.FitScore {
			best = &Selection{
				Path:     path,
				Name:     filepath.Base(path),
				Content:  string(data),
				FitScore: score,
			}
		}
	}
	return best, nil
}

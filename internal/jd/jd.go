// Package jd extracts structured job descriptions from raw text and gives
// each one a stable content fingerprint for deduplication.
package jd

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// JD is a structured job description extracted from an inbound message.
type JD struct {
	Company            string   `json:"company"`
	Role               string   `json:"role"`
	Location           string   `json:"location"`
	ExperienceRequired string   `json:"experience_required"`
	Skills             []string `json:"skills"`
	Description        string   `json:"description"`
}

// Hash returns the content fingerprint of the JD: the first 16 hex chars of
// the SHA-256 of a canonical JSON document over company, role, and
// description. Location and skills are deliberately excluded so the same
// posting seen through different channels dedups to one job.
func (j *JD) Hash() string {
	canonical, _ := json.Marshal(map[string]string{
		"company":     strings.TrimSpace(j.Company),
		"role":        strings.TrimSpace(j.Role),
		"description": strings.TrimSpace(j.Description),
	})
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])[:16]
}

package resume

import (
	"fmt"
	"strings"
)

// EditScopeViolation reports a rejected mutation. The document is always
// returned to the caller unchanged; Reasons lists every rule broken and Diff
// shows the offending region edit for operator review.
type EditScopeViolation struct {
	Reasons []string
	Diff    string
}

func (e *EditScopeViolation) Error() string {
	msg := "edit scope violation: " + strings.Join(e.Reasons, "; ")
	if e.Diff != "" {
		msg += "\n" + e.Diff
	}
	return msg
}

// regionDiff formats a before/after view of one editable region.
func regionDiff(original, replacement string) string {
	return fmt.Sprintf("--- region before\n%s\n+++ region after\n%s", strings.TrimSpace(original), strings.TrimSpace(replacement))
}

// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/karan/inbox-agent/internal/db"
	"github.com/karan/inbox-agent/internal/gate"
	"github.com/karan/inbox-agent/internal/pipeline"
)

const boxWidth = 60

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintPipelineResult outputs a human-readable summary of one pipeline run.
func (p *Printer) PrintPipelineResult(res *pipeline.Result) {
	if res == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Run:      %s\n", res.RunID))
	sb.WriteString(fmt.Sprintf("Company:  %s\n", res.Company))
	sb.WriteString(fmt.Sprintf("Role:     %s\n", res.Role))
	sb.WriteString(fmt.Sprintf("Stage:    %s\n", res.Stage))
	sb.WriteString(fmt.Sprintf("Fit:      %d%%\n", res.FitScore))
	if res.Cached {
		sb.WriteString("Cached:   yes\n")
	}
	if res.ResumeUsed != "" {
		sb.WriteString(fmt.Sprintf("Resume:   %s\n", res.ResumeUsed))
	}
	if res.ArtifactPath != "" {
		sb.WriteString(fmt.Sprintf("Artifact: %s\n", res.ArtifactPath))
	}
	if res.RollbackUsed {
		sb.WriteString("Rollback: used prior artifact\n")
	}
	if res.DriveLink != "" {
		sb.WriteString(fmt.Sprintf("Drive:    %s\n", res.DriveLink))
	}
	if len(res.Drafts) > 0 {
		sb.WriteString(fmt.Sprintf("Drafts:   %d generated\n", len(res.Drafts)))
	}
	p.printBox("PIPELINE RESULT", strings.TrimSuffix(sb.String(), "\n"))

	if len(res.Evals) > 0 {
		p.printBox("EVALS", formatEvals(res.Evals))
	}
}

// formatEvals renders an eval map with stable key order.
func formatEvals(results map[string]any) string {
	keys := make([]string, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for _, k := range keys {
		v := results[k]
		switch n := v.(type) {
		case float64:
			sb.WriteString(fmt.Sprintf("%-26s %.4f\n", k, n))
		default:
			sb.WriteString(fmt.Sprintf("%-26s %v\n", k, v))
		}
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// PrintGateVerdict outputs the CI gate verdict.
func (p *Printer) PrintGateVerdict(v gate.Verdict) {
	var sb strings.Builder
	if v.Pass {
		sb.WriteString("Verdict:  PASS\n")
	} else {
		sb.WriteString("Verdict:  FAIL\n")
	}
	sb.WriteString(fmt.Sprintf("Runs:     %d\n", v.RunsConsidered))
	if v.CompileAttempts > 0 {
		sb.WriteString(fmt.Sprintf("Compile:  %.1f%% (%d attempts)\n", v.CompileRate*100, v.CompileAttempts))
	}
	sb.WriteString(fmt.Sprintf("Claims:   %d forbidden\n", v.ForbiddenClaims))
	sb.WriteString(fmt.Sprintf("EditViol: %d\n", v.EditViolations))
	sb.WriteString(fmt.Sprintf("AvgCost:  $%.4f\n", v.AvgCostUSD))
	sb.WriteString(fmt.Sprintf("AvgLat:   %.0fms\n", v.AvgLatencyMs))
	for _, breach := range v.Failed {
		sb.WriteString(fmt.Sprintf("Breach:   %s\n", breach))
	}
	p.printBox("CI GATE", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintRuns outputs recent run telemetry as a table.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintRuns(runs []db.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(p.out, "no runs recorded")
		return
	}

	fmt.Fprintf(p.out, "%-26s %-16s %-10s %8s %10s %9s\n",
		"RUN", "AGENT", "STATUS", "TOKENS", "COST", "LATENCY")
	for _, r := range runs {
		tokens, cost, latency := "-", "-", "-"
		if r.TokensUsed != nil {
			tokens = fmt.Sprintf("%d", *r.TokensUsed)
		}
		if r.CostEstimate != nil {
			cost = fmt.Sprintf("$%.4f", *r.CostEstimate)
		}
		if r.LatencyMs != nil {
			latency = fmt.Sprintf("%dms", *r.LatencyMs)
		}
		fmt.Fprintf(p.out, "%-26s %-16s %-10s %8s %10s %9s\n",
			r.RunID, r.Agent, r.Status, tokens, cost, latency)
	}
}

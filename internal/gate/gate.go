// Package gate aggregates recent run telemetry into a CI pass/fail verdict.
// It is strictly read-only over history.
package gate

import (
	"fmt"

	"github.com/karan/inbox-agent/internal/evals"
)

// Thresholds are the release criteria. Zero-tolerance metrics stay at 0.
type Thresholds struct {
	MinCompileRate     float64
	MaxForbiddenClaims int
	MaxEditViolations  int
}

// DefaultThresholds mirrors the deployed gate configuration.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinCompileRate:     0.95,
		MaxForbiddenClaims: 0,
		MaxEditViolations:  0,
	}
}

// MetricBreach names one threshold the history violated.
type MetricBreach struct {
	Metric    string
	Actual    float64
	Threshold float64
}

func (b MetricBreach) String() string {
	return fmt.Sprintf("%s: actual %.4g, threshold %.4g", b.Metric, b.Actual, b.Threshold)
}

// Verdict is the gate outcome plus the aggregates it was computed from.
type Verdict struct {
	Pass            bool
	Failed          []MetricBreach
	RunsConsidered  int
	CompileAttempts int
	CompileRate     float64
	ForbiddenClaims int
	EditViolations  int
	AvgCostUSD      float64
	AvgLatencyMs    float64
}

// Run aggregates eval payloads and compares them against thresholds.
// An empty history passes vacuously: there is nothing to object to.
func Run(history []map[string]any, t Thresholds) Verdict {
	v := Verdict{Pass: true, RunsConsidered: len(history)}

	compiled := 0
	var costSum, latencySum float64
	costN, latencyN := 0, 0

	for _, results := range history {
		if success, ok := asBool(results[evals.KeyCompileSuccess]); ok {
			v.CompileAttempts++
			if success {
				compiled++
			}
		}
		if n, ok := asFloat(results[evals.KeyForbiddenClaims]); ok {
			v.ForbiddenClaims += int(n)
		}
		if n, ok := asFloat(results[evals.KeyEditScopeViolation]); ok {
			v.EditViolations += int(n)
		}
		if c, ok := asFloat(results[evals.KeyCostEstimate]); ok {
			costSum += c
			costN++
		}
		if l, ok := asFloat(results[evals.KeyLatencyMs]); ok {
			latencySum += l
			latencyN++
		}
	}

	if v.CompileAttempts > 0 {
		v.CompileRate = float64(compiled) / float64(v.CompileAttempts)
		if v.CompileRate < t.MinCompileRate {
			v.fail("compile_success_rate", v.CompileRate, t.MinCompileRate)
		}
	}
	if v.ForbiddenClaims > t.MaxForbiddenClaims {
		v.fail("forbidden_claims_count", float64(v.ForbiddenClaims), float64(t.MaxForbiddenClaims))
	}
	if v.EditViolations > t.MaxEditViolations {
		v.fail("edit_scope_violations", float64(v.EditViolations), float64(t.MaxEditViolations))
	}
	if costN > 0 {
		v.AvgCostUSD = costSum / float64(costN)
	}
	if latencyN > 0 {
		v.AvgLatencyMs = latencySum / float64(latencyN)
	}
	return v
}

func (v *Verdict) fail(metric string, actual, threshold float64) {
	v.Pass = false
	v.Failed = append(v.Failed, MetricBreach{Metric: metric, Actual: actual, Threshold: threshold})
}

// Eval payloads round-trip through JSONB, so numbers come back as float64
// and occasionally as int when built in-process.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

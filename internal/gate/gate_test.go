package gate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runResult(compiled bool, forbidden, violations int, cost float64, latencyMs float64) map[string]any {
	// Values arrive as float64 after the JSONB round trip.
	return map[string]any{
		"compile_success":        compiled,
		"forbidden_claims_count": float64(forbidden),
		"edit_scope_violation":   float64(violations),
		"cost_estimate":          cost,
		"latency_ms":             latencyMs,
	}
}

func TestGateRun(t *testing.T) {
	thresholds := DefaultThresholds()

	t.Run("clean history passes", func(t *testing.T) {
		history := []map[string]any{
			runResult(true, 0, 0, 0.05, 4200),
			runResult(true, 0, 0, 0.07, 5100),
			runResult(true, 0, 0, 0.06, 4800),
		}
		v := Run(history, thresholds)
		assert.True(t, v.Pass)
		assert.Empty(t, v.Failed)
		assert.Equal(t, 3, v.RunsConsidered)
		assert.InDelta(t, 1.0, v.CompileRate, 1e-9)
		assert.InDelta(t, 0.06, v.AvgCostUSD, 1e-9)
		assert.InDelta(t, 4700, v.AvgLatencyMs, 1e-9)
	})

	t.Run("80 percent compile rate fails with the offending metric", func(t *testing.T) {
		history := []map[string]any{
			runResult(true, 0, 0, 0.05, 4000),
			runResult(true, 0, 0, 0.05, 4000),
			runResult(true, 0, 0, 0.05, 4000),
			runResult(true, 0, 0, 0.05, 4000),
			runResult(false, 0, 0, 0.05, 4000),
		}
		v := Run(history, thresholds)
		assert.False(t, v.Pass)
		require.Len(t, v.Failed, 1)
		assert.Equal(t, "compile_success_rate", v.Failed[0].Metric)
		assert.InDelta(t, 0.8, v.Failed[0].Actual, 1e-9)
		assert.InDelta(t, 0.95, v.Failed[0].Threshold, 1e-9)
	})

	t.Run("single forbidden claim fails", func(t *testing.T) {
		history := []map[string]any{
			runResult(true, 0, 0, 0.05, 4000),
			runResult(true, 1, 0, 0.05, 4000),
		}
		v := Run(history, thresholds)
		assert.False(t, v.Pass)
		require.Len(t, v.Failed, 1)
		assert.Equal(t, "forbidden_claims_count", v.Failed[0].Metric)
	})

	t.Run("multiple breaches all reported", func(t *testing.T) {
		history := []map[string]any{
			runResult(false, 2, 1, 0.05, 4000),
		}
		v := Run(history, thresholds)
		assert.False(t, v.Pass)
		metrics := []string{}
		for _, b := range v.Failed {
			metrics = append(metrics, b.Metric)
		}
		assert.ElementsMatch(t, []string{"compile_success_rate", "forbidden_claims_count", "edit_scope_violations"}, metrics)
	})

	t.Run("empty history passes vacuously", func(t *testing.T) {
		v := Run(nil, thresholds)
		assert.True(t, v.Pass)
		assert.Zero(t, v.RunsConsidered)
	})

	t.Run("runs without compile data do not dilute the rate", func(t *testing.T) {
		history := []map[string]any{
			runResult(true, 0, 0, 0.05, 4000),
			{"latency_ms": float64(900)}, // followup run, never compiled
		}
		v := Run(history, thresholds)
		assert.True(t, v.Pass)
		assert.Equal(t, 1, v.CompileAttempts)
		assert.InDelta(t, 1.0, v.CompileRate, 1e-9)
	})
}

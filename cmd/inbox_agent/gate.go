package main

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/karan/inbox-agent/internal/db"
	"github.com/karan/inbox-agent/internal/gate"
	"github.com/karan/inbox-agent/internal/observability"
)

var (
	gateWindow         int
	gateMinCompileRate float64
)

var gateCmd = &cobra.Command{
	Use:   "gate",
	Short: "Run the CI quality gate over recent run telemetry",
	Long:  "Aggregate eval results from recent runs and fail (exit 1) if compile rate, forbidden claims, or edit-scope violations breach their thresholds.",
	RunE:  runGate,
}

func init() {
	gateCmd.Flags().IntVar(&gateWindow, "runs", 50, "Number of recent runs to aggregate")
	gateCmd.Flags().Float64Var(&gateMinCompileRate, "min-compile-rate", gate.DefaultThresholds().MinCompileRate, "Minimum acceptable compile success rate")

	rootCmd.AddCommand(gateCmd)
}

func runGate(cmd *cobra.Command, args []string) error {
	cfg, err := loadAgentConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	store, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	history, err := store.ListEvalResults(ctx, gateWindow)
	if err != nil {
		return err
	}

	thresholds := gate.DefaultThresholds()
	thresholds.MinCompileRate = gateMinCompileRate

	verdict := gate.Run(history, thresholds)
	observability.NewPrinter(os.Stdout).PrintGateVerdict(verdict)

	if !verdict.Pass {
		os.Exit(1)
	}
	return nil
}

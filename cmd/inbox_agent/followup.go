package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	followupOnce      bool
	followupDryRun    bool
	followupNoPersist bool
	followupTick      time.Duration
	followupMaxCycles int
)

var followupCmd = &cobra.Command{
	Use:   "followup",
	Short: "Detect and draft follow-ups for stale applications",
	Long:  "Scan tracked applications for ones overdue a follow-up, generate the next escalation-tier draft, and advance their counters. Runs one cycle with --once or loops on a tick.",
	RunE:  runFollowUp,
}

func init() {
	followupCmd.Flags().BoolVar(&followupOnce, "once", false, "Run a single cycle and exit")
	followupCmd.Flags().BoolVar(&followupDryRun, "dry-run", false, "Detect and report without drafting or writing")
	followupCmd.Flags().BoolVar(&followupNoPersist, "no-persist", false, "Draft but do not advance follow-up counters")
	followupCmd.Flags().DurationVar(&followupTick, "interval", time.Hour, "Sleep between cycles in loop mode")
	followupCmd.Flags().IntVar(&followupMaxCycles, "max-cycles", 0, "Stop after N cycles in loop mode (0 = forever)")

	rootCmd.AddCommand(followupCmd)
}

func runFollowUp(cmd *cobra.Command, args []string) error {
	cfg, err := loadAgentConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	agent, err := buildAgent(ctx, cfg)
	if err != nil {
		return err
	}
	defer agent.Close()

	if err := agent.store.InitSchema(ctx); err != nil {
		return err
	}

	persist := !followupNoPersist

	if followupOnce {
		result, err := agent.scheduler.RunOnce(ctx, followupDryRun, persist)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Detected %d follow-ups, closed %d jobs\n", len(result.Items), len(result.Closed))
		return nil
	}

	return agent.scheduler.RunLoop(ctx, followupTick, followupMaxCycles, followupDryRun, persist)
}

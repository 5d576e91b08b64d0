package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/karan/inbox-agent/internal/observability"
	"github.com/karan/inbox-agent/internal/pipeline"
)

var (
	ingestTextFile string
	ingestURL      string
	ingestImage    string
	ingestForce    bool
	ingestVerbose  bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run the pipeline once on a job posting",
	Long:  "Run the full inbox pipeline synchronously on a posting from a text file, URL, or screenshot, and print the result.",
	RunE:  runIngest,
}

func init() {
	ingestCmd.Flags().StringVarP(&ingestTextFile, "text-file", "t", "", "Path to text file containing the job posting")
	ingestCmd.Flags().StringVarP(&ingestURL, "url", "u", "", "URL of the job listing")
	ingestCmd.Flags().StringVarP(&ingestImage, "image", "i", "", "Path to a JD screenshot")
	ingestCmd.Flags().BoolVar(&ingestForce, "force", false, "Reprocess even if this posting was handled before")
	ingestCmd.Flags().BoolVarP(&ingestVerbose, "verbose", "v", false, "Print a formatted run summary instead of JSON")

	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	provided := 0
	for _, f := range []string{ingestTextFile, ingestURL, ingestImage} {
		if f != "" {
			provided++
		}
	}
	if provided != 1 {
		return fmt.Errorf("exactly one of --text-file, --url, or --image must be provided")
	}

	opts := pipeline.Options{URL: ingestURL, ImagePath: ingestImage, Force: ingestForce}
	if ingestTextFile != "" {
		data, err := os.ReadFile(ingestTextFile)
		if err != nil {
			return fmt.Errorf("failed to read text file: %w", err)
		}
		opts.RawText = string(data)
	}

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

	result, runErr := agent.orchestrator.Run(ctx, opts)

	if result != nil {
		if ingestVerbose || cfg.Verbose {
			observability.NewPrinter(os.Stdout).PrintPipelineResult(result)
		} else {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}
		}
	}
	return runErr
}

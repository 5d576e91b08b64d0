package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/karan/inbox-agent/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook HTTP server",
	Long:  `Start an HTTP server that accepts inbound messages, routes them, and runs the inbox pipeline asynchronously.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadAgentConfig()
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}

	ctx := context.Background()
	agent, err := buildAgent(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to start agent: %w", err)
	}
	defer agent.Close()

	if err := agent.store.InitSchema(ctx); err != nil {
		return err
	}

	srv := server.New(server.Config{
		Port:          cfg.Port,
		WebhookSecret: cfg.WebhookSecret,
	}, agent.orchestrator, agent.scheduler, agent.store, agent.profiles)

	return srv.Start()
}

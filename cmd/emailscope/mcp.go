package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sriram-PR/emailscope/pkg/mcp"
)

// NewMcpServerCmd creates the mcp-server command
func NewMcpServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Start an MCP server exposing discovery jobs as tools",
		Long: `Start an MCP (Model Context Protocol) server for AI tool integration.
Logs are written to stderr; stdout carries the protocol.

Examples:
  # Start with stdio transport
  emailscope mcp-server --config config.yaml

  # Start with SSE transport on port 8080
  emailscope mcp-server --transport sse --port 8080

Available MCP Tools:
  discover_emails  Start a background discovery job for a domain
  get_job_status   Current step and progress of a job
  get_job_results  Records of a finished job
  stop_job         Stop a running job, keeping partial results
  list_jobs        All jobs of this server`,
		Args: cobra.NoArgs,
		RunE: runMcpServer,
	}
	cmd.Flags().String("transport", "stdio", "Transport type (stdio, sse)")
	cmd.Flags().Int("port", 8080, "HTTP port (for sse transport)")
	cmd.Flags().String("state-dir", "", "Directory of the result store (enables persistence)")
	return cmd
}

func runMcpServer(cmd *cobra.Command, args []string) error {
	// MCP protocol uses stdout, logs go to stderr
	log, cfg, err := prepare(cmd, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("state-dir") {
		cfg.StateDir, _ = cmd.Flags().GetString("state-dir")
	}
	transport, _ := cmd.Flags().GetString("transport")
	port, _ := cmd.Flags().GetInt("port")

	a, err := newApp(cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	server, err := mcp.NewServer(&mcp.ServerConfig{
		Runner:    a.orchestrator(),
		Transport: transport,
		Port:      port,
		Logger:    log,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	log.Infof("Starting MCP server (transport: %s)", transport)
	runErr := server.Run()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)

	if runErr != nil {
		return fmt.Errorf("MCP server error: %w", runErr)
	}
	return nil
}

package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/emailscope/pkg/orchestrate"
	"github.com/Sriram-PR/emailscope/pkg/pipeline"
)

const (
	serverName    = "emailscope"
	serverVersion = "0.4.0"
)

// DomainRunner runs one discovery session; *orchestrate.Orchestrator implements it
type DomainRunner interface {
	RunDomain(ctx context.Context, sessionID, domain string, stop *pipeline.StopToken, observer pipeline.Observer) orchestrate.DomainResult
}

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	Runner    DomainRunner
	Transport string // "stdio" or "sse"
	Port      int
	Logger    *logrus.Logger
}

// Server wraps the MCP server with the discovery job tools
type Server struct {
	mcpServer  *server.MCPServer
	cfg        *ServerConfig
	log        *logrus.Entry
	jobManager *JobManager
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.Runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithLogging(),
	)

	s := &Server{
		mcpServer:  mcpServer,
		cfg:        cfg,
		log:        cfg.Logger.WithField("component", "mcp"),
		jobManager: NewJobManager(),
	}
	s.registerTools()
	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	discoverTool := mcp.NewTool("discover_emails",
		mcp.WithDescription("Start a background email discovery for a domain: crawl, extract and verify contact addresses. Returns immediately with a job ID."),
		mcp.WithString("domain",
			mcp.Required(),
			mcp.Description("Domain or URL to discover (e.g., 'acme.com', 'https://acme.com')"),
		),
	)
	s.mcpServer.AddTool(discoverTool, s.handleDiscoverEmails)

	statusTool := mcp.NewTool("get_job_status",
		mcp.WithDescription("Get the progress of a discovery job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by discover_emails"),
		),
	)
	s.mcpServer.AddTool(statusTool, s.handleGetJobStatus)

	resultsTool := mcp.NewTool("get_job_results",
		mcp.WithDescription("Get the verified addresses of a finished discovery job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by discover_emails"),
		),
		mcp.WithNumber("min_confidence",
			mcp.Description("Only return addresses with at least this confidence (0-100)"),
		),
		mcp.WithBoolean("valid_only",
			mcp.Description("Only return addresses marked valid"),
		),
	)
	s.mcpServer.AddTool(resultsTool, s.handleGetJobResults)

	stopTool := mcp.NewTool("stop_job",
		mcp.WithDescription("Stop a running discovery job. Work in flight completes and its results are kept."),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID to stop"),
		),
	)
	s.mcpServer.AddTool(stopTool, s.handleStopJob)

	listTool := mcp.NewTool("list_jobs",
		mcp.WithDescription("List all discovery jobs of this server"),
	)
	s.mcpServer.AddTool(listTool, s.handleListJobs)

	s.log.Infof("Registered %d MCP tools", 5)
}

// Run starts the MCP server with the configured transport
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		sseServer := server.NewSSEServer(s.mcpServer)
		return sseServer.Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown stops all running jobs
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	s.jobManager.CancelAll()
	return nil
}

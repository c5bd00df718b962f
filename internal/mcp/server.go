package mcp

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/qaforge/internal/filetree"
	"github.com/dshills/qaforge/internal/scheduler"
	"github.com/dshills/qaforge/internal/storage"
	"github.com/dshills/qaforge/pkg/types"
)

const (
	// ServerName is the MCP server name
	ServerName = "qaforge"
	// ServerVersion is reported when the caller does not set one
	ServerVersion = "1.0.0"
)

// Runner drives pipeline runs; *scheduler.Scheduler satisfies it
type Runner interface {
	Run(ctx context.Context, units []types.FileUnit) (*scheduler.Summary, error)
	RetryFailed(ctx context.Context, loader scheduler.FileLoader) (*scheduler.Summary, error)
	Progress() (scheduler.Snapshot, bool)
}

// Dependencies are the components the tools operate on
type Dependencies struct {
	Store   storage.Storage
	Runner  Runner
	Walk    filetree.Options
	Logger  *zap.SugaredLogger
	Version string
}

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp    *server.MCPServer
	store  storage.Storage
	runner Runner
	walk   filetree.Options
	logger *zap.SugaredLogger
}

// NewServer creates a new MCP server instance. The caller owns the store.
func NewServer(deps Dependencies) (*Server, error) {
	if deps.Store == nil || deps.Runner == nil {
		return nil, fmt.Errorf("store and runner are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	version := deps.Version
	if version == "" {
		version = ServerVersion
	}

	s := &Server{
		mcp:    server.NewMCPServer(ServerName, version, server.WithToolCapabilities(false)),
		store:  deps.Store,
		runner: deps.Runner,
		walk:   deps.Walk,
		logger: logger,
	}
	s.registerTools()
	return s, nil
}

// Serve speaks MCP over stdio until ctx is cancelled or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Infow("mcp server listening on stdio")
	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(generateSamplesTool(), s.handleGenerateSamples)
	s.mcp.AddTool(retryFailedTool(), s.handleRetryFailed)
	s.mcp.AddTool(pipelineStatusTool(), s.handlePipelineStatus)
	s.mcp.AddTool(listFailuresTool(), s.handleListFailures)
}

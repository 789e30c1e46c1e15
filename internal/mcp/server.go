package mcp

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dshills/ticketsearch/internal/api"
)

const (
	// ServerName is the MCP server name
	ServerName = "ticketsearch"
	// DefaultK is the number of tickets returned when k is omitted
	DefaultK = 3
)

// ServerVersion is reported to MCP clients; the CLI overrides it at link time
var ServerVersion = "1.0.0"

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp    *server.MCPServer
	engine api.Engine
	lock   api.IngestLock
	logger *slog.Logger
}

// NewServer creates a new MCP server instance around engine
func NewServer(engine api.Engine, logger *slog.Logger) (*Server, error) {
	if engine == nil {
		return nil, errors.New("mcp: engine is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		mcp:    server.NewMCPServer(ServerName, ServerVersion),
		engine: engine,
		logger: logger,
	}

	if err := s.registerTools(); err != nil {
		return nil, err
	}
	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("mcp server listening on stdio", "name", ServerName, "version", ServerVersion)
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() error {
	s.mcp.AddTool(searchTicketsTool(), s.handleSearchTickets)
	s.mcp.AddTool(ingestTicketsTool(), s.handleIngestTickets)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	return nil
}

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/ticketsearch/internal/api"
	"github.com/dshills/ticketsearch/internal/loader"
	"github.com/dshills/ticketsearch/internal/vectorindex"
)

// MCP error codes
const (
	ErrorCodeInvalidParams       = -32602 // Invalid method parameters
	ErrorCodeInternalError       = -32603 // Internal JSON-RPC error
	ErrorCodeIngestionInProgress = -32002 // Another ingestion is already running
	ErrorCodeEmptyQuery          = -32004 // Query parameter is empty
)

// handleSearchTickets handles the search_tickets tool invocation
func (s *Server) handleSearchTickets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, _ := args["query"].(string)
	if strings.TrimSpace(query) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	k := getIntDefault(args, "k", DefaultK)
	if k < 1 || k > api.MaxK {
		return nil, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("k must be between 1 and %d", api.MaxK), map[string]interface{}{
			"param": "k",
			"value": k,
		})
	}

	results := s.engine.Search(ctx, query, k)

	response := map[string]interface{}{
		"query":   query,
		"count":   len(results),
		"results": results,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIngestTickets handles the ingest_tickets tool invocation
func (s *Server) handleIngestTickets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path := getStringDefault(args, "path", "")
	if err := validatePath(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	tickets, err := loader.LoadFile(path)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "failed to read tickets", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if !s.lock.TryAcquire() {
		return nil, newMCPError(ErrorCodeIngestionInProgress, api.ErrIngestInProgress.Error(), nil)
	}
	defer s.lock.Release()

	stats, err := s.engine.Ingest(ctx, tickets)
	if err != nil {
		data := map[string]interface{}{"error": err.Error()}
		if errors.Is(err, vectorindex.ErrDimensionMismatch) {
			data["reason"] = "embedding dimension does not match the index; rebuild the index or change the model"
		}
		return nil, newMCPError(ErrorCodeInternalError, "ingestion failed", data)
	}

	response := map[string]interface{}{
		"path":           path,
		"total":          stats.Total,
		"ingested":       stats.Ingested,
		"invalid":        stats.Invalid,
		"failed":         stats.Failed,
		"batches":        stats.Batches,
		"failed_batches": stats.FailedBatches,
		"duration_ms":    stats.Duration.Milliseconds(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.engine.Status(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"index": map[string]interface{}{
			"backend":   status.Backend,
			"metric":    status.Metric,
			"dimension": status.Dimension,
			"count":     status.Count,
		},
		"embedder": map[string]interface{}{
			"provider": status.Provider,
			"model":    status.Model,
		},
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks that path names a readable JSON file
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}

	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}

	if info.IsDir() {
		return ErrIsDirectory
	}
	if !strings.EqualFold(filepath.Ext(path), ".json") {
		return ErrNotJSON
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()

	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok {
		return val
	}
	return defaultValue
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrIsDirectory     = errors.New("path is a directory")
	ErrNotJSON         = errors.New("path must be a .json file")
)

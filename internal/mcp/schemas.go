package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/ticketsearch/internal/api"
)

// searchTicketsTool returns the tool definition for search_tickets
func searchTicketsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_tickets",
		Description: "Find past support tickets semantically similar to a question or problem description",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language description of the problem",
				},
				"k": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of tickets to return (1-100)",
					"default":     DefaultK,
					"minimum":     1,
					"maximum":     api.MaxK,
				},
			},
			Required: []string{"query"},
		},
	}
}

// ingestTicketsTool returns the tool definition for ingest_tickets
func ingestTicketsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "ingest_tickets",
		Description: "Embed and index tickets from a JSON file containing an array of tickets",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to a .json file with [{id, title, content, status, priority, tags}]",
				},
			},
			Required: []string{"path"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report the vector store backend, embedding model and number of indexed tickets",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

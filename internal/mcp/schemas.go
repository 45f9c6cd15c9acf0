package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// retrieveContextTool returns the tool definition for retrieve_context
func retrieveContextTool() mcp.Tool {
	return mcp.Tool{
		Name:        "retrieve_context",
		Description: "Retrieve a bounded, citation-ready context for a natural-language question about an indexed collection",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Question in natural language",
				},
				"collection": map[string]interface{}{
					"type":        "string",
					"description": "Collection to search (defaults to the server's default collection)",
				},
				"max_chunks": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of passages in the context (1-50)",
					"minimum":     1,
					"maximum":     50,
				},
				"mmr": map[string]interface{}{
					"type":        "boolean",
					"description": "Re-rank candidates for diversity before selection",
				},
				"mmr_lambda": map[string]interface{}{
					"type":        "number",
					"description": "Relevance weight for diversity re-ranking (0.0-1.0)",
					"minimum":     0.0,
					"maximum":     1.0,
				},
			},
			Required: []string{"query"},
		},
	}
}

// indexCollectionTool returns the tool definition for index_collection
func indexCollectionTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_collection",
		Description: "Index a directory tree into a collection so it can be retrieved from",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the directory to index",
				},
				"collection": map[string]interface{}{
					"type":        "string",
					"description": "Collection name (defaults to the server's default collection)",
				},
				"include": map[string]interface{}{
					"type":        "array",
					"description": "Glob patterns of files to index, relative to path (e.g. 'docs/**/*.md')",
					"items":       map[string]interface{}{"type": "string"},
				},
				"exclude": map[string]interface{}{
					"type":        "array",
					"description": "Glob patterns of files to skip, relative to path",
					"items":       map[string]interface{}{"type": "string"},
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
		Description: "Report chunk and source counts for one collection, or for all collections",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"collection": map[string]interface{}{
					"type":        "string",
					"description": "Collection name; omit to list every collection",
				},
			},
		},
	}
}

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/ragctx/internal/indexer"
	"github.com/dshills/ragctx/internal/searcher"
	"github.com/dshills/ragctx/internal/storage"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeCollectionRequired = -32001 // No collection given and no default configured
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
)

const maxChunksLimit = 50

// handleRetrieveContext handles the retrieve_context tool invocation
func (s *Server) handleRetrieveContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query := getStringDefault(args, "query", "")
	if query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	collection, err := s.collection(args)
	if err != nil {
		return nil, err
	}

	opts := s.searcher.Options()
	if v, ok := args["max_chunks"]; ok {
		n := getIntDefault(args, "max_chunks", 0)
		if n < 1 || n > maxChunksLimit {
			return nil, newMCPError(ErrorCodeInvalidParams, "max_chunks must be between 1 and 50", map[string]interface{}{
				"param": "max_chunks",
				"value": v,
			})
		}
		opts.Selection.MaxChunks = n
	}
	opts.MMR = getBoolDefault(args, "mmr", opts.MMR)
	if _, ok := args["mmr_lambda"]; ok {
		lambda := getFloatDefault(args, "mmr_lambda", -1)
		if lambda < 0 || lambda > 1 {
			return nil, newMCPError(ErrorCodeInvalidParams, "mmr_lambda must be between 0 and 1", map[string]interface{}{
				"param": "mmr_lambda",
				"value": args["mmr_lambda"],
			})
		}
		opts.MMRLambda = lambda
	}

	resp, err := s.searcher.Search(ctx, searcher.Request{Query: query, Collection: collection, Options: &opts})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "retrieval failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(retrieveResponse(collection, resp))), nil
}

func retrieveResponse(collection string, resp *searcher.Response) map[string]interface{} {
	items := make([]map[string]interface{}, len(resp.Items))
	for i, item := range resp.Items {
		items[i] = map[string]interface{}{
			"rank":        i + 1,
			"source":      item.Chunk.Metadata.SourcePath,
			"section":     item.Chunk.Metadata.SectionPath,
			"source_type": string(item.Chunk.Metadata.SourceType),
			"similarity":  item.Similarity,
		}
	}

	prefixes := resp.Plan.Prefixes
	if prefixes == nil {
		prefixes = []string{}
	}

	return map[string]interface{}{
		"collection":  collection,
		"intent":      string(resp.Plan.Intent),
		"prefixes":    prefixes,
		"stage":       string(resp.Stage),
		"candidates":  resp.Candidates,
		"items":       items,
		"context":     resp.Context,
		"duration_ms": resp.Duration.Milliseconds(),
	}
}

// handleIndexCollection handles the index_collection tool invocation
func (s *Server) handleIndexCollection(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path := getStringDefault(args, "path", "")
	if path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if err := validatePath(path); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	collection, err := s.collection(args)
	if err != nil {
		return nil, err
	}

	cfg := s.indexConfig(collection)
	cfg.Collection = collection
	if include := getStringSlice(args, "include"); include != nil {
		cfg.Include = include
	}
	if exclude := getStringSlice(args, "exclude"); exclude != nil {
		cfg.Exclude = exclude
	}
	if err := indexer.ValidatePatterns(cfg.Include, cfg.Exclude); err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid glob pattern", map[string]interface{}{
			"reason": err.Error(),
		})
	}

	stats, err := s.indexer.Index(ctx, path, cfg)
	if errors.Is(err, indexer.ErrIndexInProgress) {
		return nil, newMCPError(ErrorCodeIndexingInProgress, "indexing already in progress", nil)
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"indexed":         true,
		"collection":      collection,
		"files_indexed":   stats.FilesIndexed,
		"files_skipped":   stats.FilesSkipped,
		"files_failed":    stats.FilesFailed,
		"chunks_upserted": stats.ChunksUpserted,
		"chunks_pruned":   stats.ChunksPruned,
		"sources_removed": stats.SourcesRemoved,
		"duration_ms":     stats.Duration.Milliseconds(),
	}

	if len(stats.ErrorMessages) > 0 {
		// Include first few errors
		errorCount := len(stats.ErrorMessages)
		if errorCount > 5 {
			response["errors"] = stats.ErrorMessages[:5]
			response["error_count"] = errorCount
		} else {
			response["errors"] = stats.ErrorMessages
		}
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})

	if collection := getStringDefault(args, "collection", ""); collection != "" {
		status, err := s.storage.Status(ctx, collection)
		if errors.Is(err, storage.ErrNotFound) {
			response := map[string]interface{}{
				"indexed":    false,
				"collection": collection,
				"message":    "Collection not indexed. Use index_collection tool to index it.",
			}
			return mcp.NewToolResultText(formatJSON(response)), nil
		}
		if err != nil {
			return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
				"error": err.Error(),
			})
		}
		response := statusMap(status)
		response["indexed"] = true
		if running, ok := s.indexer.Running(); ok && running == collection {
			response["indexing"] = true
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}

	names, err := s.storage.ListCollections(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list collections", map[string]interface{}{
			"error": err.Error(),
		})
	}

	collections := make([]map[string]interface{}, 0, len(names))
	for _, name := range names {
		status, err := s.storage.Status(ctx, name)
		if err != nil {
			continue
		}
		collections = append(collections, statusMap(status))
	}

	response := map[string]interface{}{
		"collections": collections,
	}
	if running, ok := s.indexer.Running(); ok {
		response["indexing"] = running
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

func statusMap(status *storage.CollectionStatus) map[string]interface{} {
	return map[string]interface{}{
		"collection": status.Collection,
		"chunks":     status.Chunks,
		"sources":    status.Sources,
		"dimension":  status.Dimension,
	}
}

// collection resolves the collection argument against the server default
func (s *Server) collection(args map[string]interface{}) (string, error) {
	collection := getStringDefault(args, "collection", s.defaultCollection)
	if collection == "" {
		return "", newMCPError(ErrorCodeCollectionRequired, "collection parameter is required", map[string]interface{}{
			"param":  "collection",
			"reason": "missing and no default collection configured",
		})
	}
	return collection, nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
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

// validatePath checks that a path is an absolute, readable directory
func validatePath(path string) error {
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
	if !info.IsDir() {
		return ErrNotDirectory
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

// getBoolDefault extracts a boolean parameter with a default value
func getBoolDefault(args map[string]interface{}, key string, defaultValue bool) bool {
	if val, ok := args[key].(bool); ok {
		return val
	}
	return defaultValue
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

// getFloatDefault extracts a number parameter with a default value
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	switch val := args[key].(type) {
	case float64:
		return val
	case int:
		return float64(val)
	}
	return defaultValue
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}

// getStringSlice extracts a string array parameter; nil when absent
func getStringSlice(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Validation helpers

var (
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)

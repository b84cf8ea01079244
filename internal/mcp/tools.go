package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/curriculum-search/internal/ingest"
	"github.com/dshills/curriculum-search/internal/searcher"
	"github.com/dshills/curriculum-search/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams        = -32602 // Invalid method parameters
	ErrorCodeInternalError        = -32603 // Internal JSON-RPC error
	ErrorCodeIngestInProgress     = -32002 // Another ingestion is already running
	ErrorCodeIndexMismatch        = -32003 // Stored vectors don't match the query model
	ErrorCodeEmptyQuery           = -32004 // Query parameter is empty
	ErrorCodeEmbeddingUnavailable = -32005 // Embedding provider failed
)

// handleSearch handles the search tool invocation
func (s *Server) handleSearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, err := requireQuery(args)
	if err != nil {
		return nil, err
	}
	limit, err := parseLimit(args)
	if err != nil {
		return nil, err
	}

	req := searcher.SearchRequest{
		Query:     query,
		Limit:     limit,
		Threshold: getFloatDefault(args, "threshold", DefaultThreshold),
		Rerank:    getBoolDefault(args, "rerank", false),
	}
	if w, ok := getFloat(args, "weight"); ok {
		req.Weight = &w
	}
	if lw, ok := getFloat(args, "lexical_weight"); ok {
		req.LexicalWeight = &lw
	}

	resp, err := s.service.Search(ctx, req)
	if err != nil {
		return nil, s.searchError(err)
	}

	return mcp.NewToolResultText(formatJSON(searchPayload(resp))), nil
}

// handleSearchGoals handles the search_goals tool invocation
func (s *Server) handleSearchGoals(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.handleKindSearch(ctx, request, s.service.SearchGoals)
}

// handleSearchElaborations handles the search_elaborations tool invocation
func (s *Server) handleSearchElaborations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return s.handleKindSearch(ctx, request, s.service.SearchElaborations)
}

type kindSearch func(ctx context.Context, query string, limit int, threshold float64) (*searcher.SearchResponse, error)

func (s *Server) handleKindSearch(ctx context.Context, request mcp.CallToolRequest, search kindSearch) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, err := requireQuery(args)
	if err != nil {
		return nil, err
	}
	limit, err := parseLimit(args)
	if err != nil {
		return nil, err
	}

	resp, err := search(ctx, query, limit, getFloatDefault(args, "threshold", 0))
	if err != nil {
		return nil, s.searchError(err)
	}

	return mcp.NewToolResultText(formatJSON(searchPayload(resp))), nil
}

// handleGetGoal handles the get_goal tool invocation
func (s *Server) handleGetGoal(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	var (
		detail *types.GoalDetail
		err    error
		key    interface{}
	)
	if ext := getStringDefault(args, "external_id", ""); ext != "" {
		key = ext
		detail, err = s.service.GetGoalByExternalID(ctx, ext)
	} else if id, ok := getInt(args, "id"); ok {
		key = id
		detail, err = s.service.GetGoal(ctx, int64(id))
	} else {
		return nil, newMCPError(ErrorCodeInvalidParams, "id or external_id is required", map[string]interface{}{
			"param":  "id",
			"reason": "missing",
		})
	}
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get goal", map[string]interface{}{
			"error": err.Error(),
		})
	}

	if detail == nil {
		response := map[string]interface{}{
			"found":   false,
			"id":      key,
			"message": "Goal not found. Use search to find goal ids.",
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}

	response := map[string]interface{}{
		"found": true,
		"goal":  detail,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleStats handles the stats tool invocation
func (s *Server) handleStats(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.service.Stats(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get stats", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"total_goals":                  stats.Goals,
		"total_elaborations":           stats.Elaborations,
		"total_links":                  stats.Links,
		"goals_with_embeddings":        stats.GoalEmbeddings,
		"elaborations_with_embeddings": stats.ElaborationEmbeddings,
		"models":                       stats.Models,
		"schema_version":               stats.SchemaVersion,
		"build_mode":                   stats.BuildMode,
		"size_mb":                      fmt.Sprintf("%.2f", stats.SizeMB),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleIngest handles the ingest tool invocation
func (s *Server) handleIngest(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	dir := getStringDefault(args, "data_dir", s.dataDir)
	if dir == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "data_dir parameter is required", map[string]interface{}{
			"param":  "data_dir",
			"reason": "missing or empty",
		})
	}

	stats, err := s.ingester.IngestDir(ctx, dir)
	if errors.Is(err, ingest.ErrInProgress) {
		return nil, newMCPError(ErrorCodeIngestInProgress, "ingestion already in progress", nil)
	}
	if stats == nil {
		return nil, newMCPError(ErrorCodeInternalError, "ingestion failed", map[string]interface{}{
			"error": errString(err),
		})
	}
	s.service.InvalidateCache()

	response := map[string]interface{}{
		"ingested":               true,
		"data_dir":               dir,
		"goals":                  stats.Goals,
		"elaborations":           stats.Elaborations,
		"goal_embeddings":        stats.GoalEmbeddings,
		"elaboration_embeddings": stats.ElaborationEmbeddings,
		"skipped":                stats.Skipped,
		"duration_ms":            stats.Duration.Milliseconds(),
	}
	// partial failures come back next to the statistics
	if err != nil {
		response["errors"] = err.Error()
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// searchError maps searcher errors onto MCP error codes
func (s *Server) searchError(err error) error {
	data := map[string]interface{}{"error": err.Error()}
	switch {
	case errors.Is(err, searcher.ErrEmptyQuery):
		return newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", data)
	case errors.Is(err, searcher.ErrInvalidThreshold),
		errors.Is(err, searcher.ErrInvalidWeight),
		errors.Is(err, searcher.ErrInvalidLexicalWeight):
		return newMCPError(ErrorCodeInvalidParams, "invalid search parameters", data)
	case errors.Is(err, types.ErrEmbeddingProvider):
		s.logger.Error("embedding provider failed", "err", err)
		return newMCPError(ErrorCodeEmbeddingUnavailable, "embedding provider unavailable", data)
	case errors.Is(err, types.ErrDimensionMismatch):
		return newMCPError(ErrorCodeIndexMismatch, "stored embeddings were made with a different model; re-run ingest", data)
	default:
		s.logger.Error("search failed", "err", err)
		return newMCPError(ErrorCodeInternalError, "search failed", data)
	}
}

// searchPayload is the JSON shape returned by the search tools
func searchPayload(resp *searcher.SearchResponse) map[string]interface{} {
	results := resp.Results
	if results == nil {
		results = []types.SearchResult{}
	}
	return map[string]interface{}{
		"query":       resp.Query,
		"count":       resp.Count,
		"results":     results,
		"reranked":    resp.Reranked,
		"cache_hit":   resp.CacheHit,
		"duration_ms": resp.Duration.Milliseconds(),
		"request_id":  resp.RequestID,
	}
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

func requireQuery(args map[string]interface{}) (string, error) {
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return "", newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}
	return query, nil
}

func parseLimit(args map[string]interface{}) (int, error) {
	limit := getIntDefault(args, "limit", searcher.DefaultLimit)
	if limit < 1 || limit > searcher.MaxLimit {
		return 0, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}
	return limit, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
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

// getInt extracts an integer parameter; JSON numbers arrive as float64
func getInt(args map[string]interface{}, key string) (int, bool) {
	switch val := args[key].(type) {
	case float64:
		return int(val), true
	case int:
		return val, true
	case int64:
		return int(val), true
	}
	return 0, false
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := getInt(args, key); ok {
		return val
	}
	return defaultValue
}

func getFloat(args map[string]interface{}, key string) (float64, bool) {
	switch val := args[key].(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	}
	return 0, false
}

func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := getFloat(args, key); ok {
		return val
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

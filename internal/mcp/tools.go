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

	"github.com/dshills/qaforge/internal/filetree"
	"github.com/dshills/qaforge/internal/scheduler"
	"github.com/dshills/qaforge/internal/storage"
)

// MCP error codes
const (
	ErrorCodeInvalidParams  = -32602 // Invalid method parameters
	ErrorCodeInternalError  = -32603 // Internal JSON-RPC error
	ErrorCodeSourceNotFound = -32001 // Path is not a readable directory
	ErrorCodeRunInProgress  = -32002 // Another pipeline run is already active
	ErrorCodeNoFiles        = -32003 // Source tree has no eligible files
)

const (
	defaultFailureLimit = 50
	maxFailureLimit     = 500
)

// handleGenerateSamples handles the generate_samples tool invocation
func (s *Server) handleGenerateSamples(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	root, err := requirePath(args)
	if err != nil {
		return nil, err
	}

	opts := s.walk
	if exts, ok := args["extensions"].([]interface{}); ok && len(exts) > 0 {
		opts.Extensions = make([]string, 0, len(exts))
		for _, e := range exts {
			ext, ok := e.(string)
			if !ok || strings.TrimSpace(ext) == "" {
				return nil, newMCPError(ErrorCodeInvalidParams, "extensions must be non-empty strings", map[string]interface{}{
					"param": "extensions",
					"value": e,
				})
			}
			ext = strings.ToLower(strings.TrimSpace(ext))
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			opts.Extensions = append(opts.Extensions, ext)
		}
	}
	opts.IncludeHidden = getBoolDefault(args, "include_hidden", opts.IncludeHidden)

	units, stats, err := filetree.New(root, opts).Walk(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to enumerate source tree", map[string]interface{}{
			"error": err.Error(),
		})
	}
	if len(units) == 0 {
		return nil, newMCPError(ErrorCodeNoFiles, "no eligible files under path", map[string]interface{}{
			"path":           root,
			"files_visited":  stats.Visited,
			"skipped_size":   stats.SkippedSize,
			"skipped_binary": stats.SkippedBinary,
		})
	}

	s.logger.Infow("generate_samples requested", "path", root, "files", len(units))
	summary, err := s.runner.Run(ctx, units)
	if err != nil {
		return nil, runError("generation run failed", err)
	}

	response := summaryResponse(summary)
	response["files_visited"] = stats.Visited
	response["files_skipped_size"] = stats.SkippedSize
	response["files_skipped_binary"] = stats.SkippedBinary
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleRetryFailed handles the retry_failed tool invocation
func (s *Server) handleRetryFailed(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	root, err := requirePath(args)
	if err != nil {
		return nil, err
	}

	s.logger.Infow("retry_failed requested", "path", root)
	summary, err := s.runner.RetryFailed(ctx, filetree.New(root, s.walk))
	if err != nil {
		return nil, runError("retry run failed", err)
	}
	return mcp.NewToolResultText(formatJSON(summaryResponse(summary))), nil
}

// handlePipelineStatus handles the pipeline_status tool invocation
func (s *Server) handlePipelineStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status, err := s.store.GetStatus(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to get status", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"store": status,
	}
	if snap, ok := s.runner.Progress(); ok {
		response["run"] = snap
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleListFailures handles the list_failures tool invocation
func (s *Server) handleListFailures(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		args = map[string]interface{}{}
	}

	limit := getIntDefault(args, "limit", defaultFailureLimit)
	if limit < 1 || limit > maxFailureLimit {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 500", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	records, err := s.store.ListFailures(ctx, storage.FailureFilter{
		Path:              getStringDefault(args, "file", ""),
		RetryEligibleOnly: getBoolDefault(args, "retry_eligible_only", false),
		Limit:             limit,
	})
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list failures", map[string]interface{}{
			"error": err.Error(),
		})
	}

	failures := make([]map[string]interface{}, 0, len(records))
	for _, r := range records {
		failures = append(failures, map[string]interface{}{
			"path":           r.Path,
			"reason":         string(r.Reason),
			"detail":         r.Detail,
			"attempt_count":  r.AttemptCount,
			"retry_eligible": r.RetryEligible,
			"run_id":         r.RunID,
			"failed_at":      r.FailedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	response := map[string]interface{}{
		"count":    len(failures),
		"failures": failures,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

func summaryResponse(s *scheduler.Summary) map[string]interface{} {
	return map[string]interface{}{
		"run_id":      s.RunID,
		"mode":        s.Mode,
		"resumed":     s.Resumed,
		"stopped":     s.Stopped,
		"total":       s.Total,
		"skipped":     s.Skipped,
		"processed":   s.Processed,
		"failed":      s.Failed,
		"deferred":    s.Deferred,
		"abandoned":   s.Abandoned,
		"turns":       s.Turns,
		"duration_ms": s.Duration.Milliseconds(),
	}
}

func runError(message string, err error) error {
	if errors.Is(err, scheduler.ErrRunInProgress) {
		return newMCPError(ErrorCodeRunInProgress, "a pipeline run is already in progress", nil)
	}
	return newMCPError(ErrorCodeInternalError, message, map[string]interface{}{
		"error": err.Error(),
	})
}

func requirePath(args map[string]interface{}) (string, error) {
	path, ok := args["path"].(string)
	if !ok || path == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	if err := validatePath(path); err != nil {
		code := ErrorCodeInvalidParams
		if errors.Is(err, ErrPathNotFound) || errors.Is(err, ErrNotDirectory) || errors.Is(err, ErrPathNotReadable) {
			code = ErrorCodeSourceNotFound
		}
		return "", newMCPError(code, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}
	return filepath.Clean(path), nil
}

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

// validatePath checks that path is an absolute, readable directory
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
	ErrNotDirectory    = errors.New("path is not a directory")
)

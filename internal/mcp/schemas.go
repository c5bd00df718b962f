package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// generateSamplesTool returns the tool definition for generate_samples
func generateSamplesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "generate_samples",
		Description: "Generate question/answer training samples for new and changed files under a source tree",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the source tree root",
				},
				"extensions": map[string]interface{}{
					"type":        "array",
					"description": "File extensions to include (e.g. [\".go\", \".md\"]); defaults to the configured set",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
				"include_hidden": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, descend into dot-directories",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}

// retryFailedTool returns the tool definition for retry_failed
func retryFailedTool() mcp.Tool {
	return mcp.Tool{
		Name:        "retry_failed",
		Description: "Reprocess files whose last attempt failed with a retry-eligible reason",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the source tree root the failures belong to",
				},
			},
			Required: []string{"path"},
		},
	}
}

// pipelineStatusTool returns the tool definition for pipeline_status
func pipelineStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "pipeline_status",
		Description: "Report stored sample and failure counts plus progress of the current or last run",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// listFailuresTool returns the tool definition for list_failures
func listFailuresTool() mcp.Tool {
	return mcp.Tool{
		Name:        "list_failures",
		Description: "List recorded file failures, newest first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"file": map[string]interface{}{
					"type":        "string",
					"description": "Only failures for this root-relative file path",
				},
				"retry_eligible_only": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, only failures a retry run would pick up",
					"default":     false,
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of records to return (1-500)",
					"default":     50,
					"minimum":     1,
					"maximum":     500,
				},
			},
		},
	}
}

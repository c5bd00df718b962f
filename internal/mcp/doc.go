// Package mcp implements the Model Context Protocol (MCP) server for qaforge.
//
// The server exposes four tools to MCP clients:
//   - generate_samples: Generate Q&A samples for new and changed files under a tree
//   - retry_failed: Reprocess files whose last attempt failed with a retryable reason
//   - pipeline_status: Report store counts and the current or last run's progress
//   - list_failures: List recorded failures, newest first
//
// # Protocol Overview
//
// MCP is JSON-RPC 2.0 over stdio. The server reads requests from stdin and
// writes responses to stdout; logs go to stderr.
//
//	qaforge serve
//
// # Tool: generate_samples
//
//	Request:
//	{
//	  "name": "generate_samples",
//	  "arguments": {
//	    "path": "/path/to/project",
//	    "extensions": [".go", ".md"]
//	  }
//	}
//
//	Response:
//	{
//	  "run_id": "01J9Z6V3Q7K8M2N4P5R6S7T8V9",
//	  "mode": "run",
//	  "total": 120,
//	  "skipped": 88,
//	  "processed": 30,
//	  "failed": 2,
//	  "deferred": 0,
//	  "turns": 412,
//	  "stopped": false,
//	  "duration_ms": 734120
//	}
//
// A run blocks the tool call until it finishes. Cancelling the request stops
// admission and returns a summary with "stopped": true; the next call resumes.
//
// # Error Handling
//
// Errors are returned as *MCPError with one of these codes:
//   - -32602: Invalid params (missing/invalid arguments)
//   - -32603: Internal error (store, filesystem)
//   - -32001: Source path not found or not a directory
//   - -32002: Another run is in progress
//   - -32003: Source tree has no eligible files
package mcp

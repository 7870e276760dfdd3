// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/socinabox/modwatch/internal/contract"
)

// NewMCPServer initializes and configures the modwatch MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, mgr contract.CacheManager, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"Metasploit Module Watch Server",
		version,
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		mgr:     mgr,
		scan:    defaultScan,
	}

	s.AddTool(mcp.NewTool("get_recent_changes",
		mcp.WithDescription("List Metasploit modules added, modified or removed in the monitored repository within a trailing time window."),
		mcp.WithString("window", mcp.Description("Trailing window to inspect (e.g., '24 hours', '7 days', '90m'). Defaults to the configured window.")),
		mcp.WithString("track", mcp.Description("Comma-separated repository directories to watch (e.g., 'modules/exploits,modules/post').")),
		mcp.WithString("kinds", mcp.Description("Comma-separated change kinds to keep (added, modified, removed). Defaults to all.")),
	), h.handleGetRecentChanges)

	s.AddTool(mcp.NewTool("get_history_status",
		mcp.WithDescription("Summarize the recorded scan history and the filed-issue ledger."),
	), h.handleGetHistoryStatus)

	s.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List the most recent recorded scans, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs to return. Defaults to 10.")),
	), h.handleListRuns)

	return s
}

// StartMCPServer starts the modwatch MCP server on stdio.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, mgr contract.CacheManager, version string) error {
	s := NewMCPServer(baseCfg, mgr, version)
	return server.ServeStdio(s)
}

package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/socinabox/modwatch/core"
	"github.com/socinabox/modwatch/internal/contract"
	"github.com/socinabox/modwatch/schema"
)

// scanFunc runs one scan. It is swapped out in tests.
type scanFunc func(ctx context.Context, cfg *contract.Config, mgr contract.CacheManager) (*schema.Report, time.Duration, error)

var defaultScan scanFunc = core.GetScanResults

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	mgr     contract.CacheManager
	scan    scanFunc
}

// recentChanges is the payload of get_recent_changes.
type recentChanges struct {
	*schema.Report
	Counts   map[schema.ChangeKind]int `json:"counts"`
	Duration string                    `json:"duration"`
}

func (h *toolHandler) handleGetRecentChanges(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg := h.baseCfg.Clone()

	if w := request.GetString("window", ""); w != "" {
		window, err := contract.ParseLookbackDuration(w)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid window: %v", err)), nil
		}
		cfg.Window = window
	}
	if t := request.GetString("track", ""); t != "" {
		tracked, err := contract.ParseTrackedDirectories(t)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid track: %v", err)), nil
		}
		cfg.Tracked = tracked
	}
	kinds, err := parseKinds(request.GetString("kinds", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	report, duration, err := h.scan(ctx, cfg, h.mgr)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("scan failed (%s): %v", contract.ErrorKindOf(err), err)), nil
	}

	if len(kinds) > 0 {
		filtered := *report
		filtered.Records = slices.DeleteFunc(slices.Clone(report.Records), func(rec schema.ChangeRecord) bool {
			return !slices.Contains(kinds, rec.Kind)
		})
		report = &filtered
	}

	payload := recentChanges{
		Report:   report,
		Counts:   report.CountByKind(),
		Duration: duration.Round(time.Millisecond).String(),
	}
	jsonData, _ := json.MarshalIndent(payload, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleGetHistoryStatus(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	store := h.historyStore()
	if store == nil {
		return mcp.NewToolResultError("run history is disabled; start the server with --history-backend"), nil
	}
	status, err := store.GetStatus()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read history status: %v", err)), nil
	}
	jsonData, _ := json.MarshalIndent(status, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleListRuns(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	store := h.historyStore()
	if store == nil {
		return mcp.NewToolResultError("run history is disabled; start the server with --history-backend"), nil
	}
	limit := request.GetInt("limit", 10)
	if limit <= 0 {
		return mcp.NewToolResultError("limit must be positive"), nil
	}

	runs, err := store.GetAllRuns()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read runs: %v", err)), nil
	}
	slices.Reverse(runs)
	if len(runs) > limit {
		runs = runs[:limit]
	}
	if runs == nil {
		runs = []schema.RunRecord{}
	}
	jsonData, _ := json.MarshalIndent(runs, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) historyStore() contract.HistoryStore {
	if h.mgr == nil {
		return nil
	}
	return h.mgr.GetHistoryStore()
}

// parseKinds parses a comma-separated list of change kinds.
func parseKinds(s string) ([]schema.ChangeKind, error) {
	var kinds []schema.ChangeKind
	for _, part := range contract.SplitList(s) {
		kind := schema.ChangeKind(strings.ToLower(part))
		if _, ok := schema.ValidChangeKinds[kind]; !ok {
			return nil, fmt.Errorf("invalid change kind %q: must be added, modified or removed", part)
		}
		kinds = append(kinds, kind)
	}
	return kinds, nil
}

package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/socinabox/modwatch/internal/contract"
	"github.com/socinabox/modwatch/internal/iocache"
	"github.com/socinabox/modwatch/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)

func baseConfig() *contract.Config {
	return &contract.Config{
		Repo:    schema.DefaultRepo,
		Window:  24 * time.Hour,
		Tracked: schema.DefaultTrackedDirectories(),
	}
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestNewMCPServerRegistersTools(t *testing.T) {
	s := NewMCPServer(baseConfig(), nil, "test")
	for _, name := range []string{"get_recent_changes", "get_history_status", "list_runs"} {
		assert.NotNil(t, s.GetTool(name), "tool %s should exist", name)
	}
}

func TestHandleGetRecentChanges(t *testing.T) {
	var gotCfg *contract.Config
	h := &toolHandler{
		baseCfg: baseConfig(),
		scan: func(_ context.Context, cfg *contract.Config, _ contract.CacheManager) (*schema.Report, time.Duration, error) {
			gotCfg = cfg
			return &schema.Report{
				Repo:    cfg.Repo,
				Window:  schema.NewPollWindow(testNow, cfg.Window),
				Tracked: cfg.Tracked,
				Records: []schema.ChangeRecord{
					{Name: "a.rb", Category: "exploits", Path: "modules/exploits/a.rb", Kind: schema.AddedChange},
					{Name: "b.rb", Category: "exploits", Path: "modules/exploits/b.rb", Kind: schema.RemovedChange},
				},
			}, 250 * time.Millisecond, nil
		},
	}

	res, err := h.handleGetRecentChanges(context.Background(), callRequest("get_recent_changes", map[string]any{
		"window": "7 days",
		"track":  "modules/exploits",
		"kinds":  "added",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	require.NotNil(t, gotCfg)
	assert.Equal(t, 7*24*time.Hour, gotCfg.Window)
	require.Len(t, gotCfg.Tracked, 1)
	assert.Equal(t, "exploits", gotCfg.Tracked[0].Category)
	assert.Len(t, h.baseCfg.Tracked, 3, "base config is not mutated")

	var payload struct {
		Repo    string                    `json:"repo"`
		Records []schema.ChangeRecord     `json:"records"`
		Counts  map[schema.ChangeKind]int `json:"counts"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &payload))
	assert.Equal(t, schema.DefaultRepo, payload.Repo)
	require.Len(t, payload.Records, 1)
	assert.Equal(t, "a.rb", payload.Records[0].Name)
	assert.Equal(t, 1, payload.Counts[schema.AddedChange])
}

func TestHandleGetRecentChangesErrors(t *testing.T) {
	h := &toolHandler{
		baseCfg: baseConfig(),
		scan: func(context.Context, *contract.Config, contract.CacheManager) (*schema.Report, time.Duration, error) {
			return nil, 0, contract.NewAuthenticationError("list commits", nil)
		},
	}

	tests := []struct {
		name     string
		args     map[string]any
		contains string
	}{
		{"bad window", map[string]any{"window": "soon"}, "invalid window"},
		{"bad track", map[string]any{"track": "modules/post,modules/post"}, "invalid track"},
		{"bad kind", map[string]any{"kinds": "renamed"}, "invalid change kind"},
		{"scan failure", map[string]any{}, "authentication"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := h.handleGetRecentChanges(context.Background(), callRequest("get_recent_changes", tt.args))
			require.NoError(t, err, "tool failures are reported in the result")
			assert.True(t, res.IsError)
			assert.Contains(t, resultText(t, res), tt.contains)
		})
	}
}

func TestHandleHistoryDisabled(t *testing.T) {
	mgr := &iocache.MockCacheManager{}
	mgr.On("GetHistoryStore").Return(nil)
	h := &toolHandler{baseCfg: baseConfig(), mgr: mgr}

	res, err := h.handleGetHistoryStatus(context.Background(), callRequest("get_history_status", nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "disabled")

	res, err = h.handleListRuns(context.Background(), callRequest("list_runs", nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleHistory(t *testing.T) {
	store := &iocache.MockHistoryStore{}
	store.On("GetStatus").Return(schema.HistoryStatus{Backend: "sqlite", Connected: true, TotalRuns: 3}, nil)
	store.On("GetAllRuns").Return([]schema.RunRecord{
		{RunID: 1, Status: schema.RunSucceeded},
		{RunID: 2, Status: schema.RunFailed},
		{RunID: 3, Status: schema.RunSucceeded},
	}, nil)
	mgr := &iocache.MockCacheManager{}
	mgr.On("GetHistoryStore").Return(store)
	h := &toolHandler{baseCfg: baseConfig(), mgr: mgr}

	res, err := h.handleGetHistoryStatus(context.Background(), callRequest("get_history_status", nil))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), `"total_runs": 3`)

	res, err = h.handleListRuns(context.Background(), callRequest("list_runs", map[string]any{"limit": 2.0}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	var runs []schema.RunRecord
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &runs))
	require.Len(t, runs, 2)
	assert.Equal(t, int64(3), runs[0].RunID, "newest first")
	assert.Equal(t, int64(2), runs[1].RunID)

	res, err = h.handleListRuns(context.Background(), callRequest("list_runs", map[string]any{"limit": -1.0}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	store.AssertExpectations(t)
	mgr.AssertCalled(t, "GetHistoryStore")
}

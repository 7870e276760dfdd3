//go:build basic

package integration

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scanOutput struct {
	Repo    string `json:"repo"`
	Records []struct {
		Name        string `json:"name"`
		Category    string `json:"category"`
		Path        string `json:"path"`
		Kind        string `json:"kind"`
		ContentURL  string `json:"content_url"`
		Fingerprint string `json:"fingerprint"`
	} `json:"records"`
}

// TestScanJSONAgainstFakeGitHub runs a full scan twice with SQLite cache and history.
func TestScanJSONAgainstFakeGitHub(t *testing.T) {
	gh := newFakeGitHub(t)
	home := t.TempDir()
	env := map[string]string{
		"HOME":                     home,
		"GITHUB_TOKEN":             "integration-token",
		"MODWATCH_API_URL":         gh.URL(),
		"MODWATCH_HISTORY_BACKEND": "sqlite",
	}

	stdout, err := runModwatch(t, env, "scan", "--output", "json", "--window", "1 day")
	require.NoError(t, err)

	var report scanOutput
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, "rapid7/metasploit-framework", report.Repo)
	require.Len(t, report.Records, 2)
	assert.Equal(t, "exploits", report.Records[0].Category)
	assert.Equal(t, "added", report.Records[0].Kind)
	assert.Equal(t, "demo_rce.rb", report.Records[0].Name)
	assert.Equal(t, "post", report.Records[1].Category)
	assert.Equal(t, "modified", report.Records[1].Kind)

	_, err = os.Stat(filepath.Join(home, ".modwatch_cache.db"))
	assert.NoError(t, err, "commit cache database should exist")
	_, err = os.Stat(filepath.Join(home, ".modwatch_history.db"))
	assert.NoError(t, err, "history database should exist")

	// Second run reuses the cached commit detail
	first := gh.Requests()
	stdout2, err := runModwatch(t, env, "scan", "--output", "json", "--window", "1 day")
	require.NoError(t, err)
	var again scanOutput
	require.NoError(t, json.Unmarshal([]byte(stdout2), &again))
	assert.Equal(t, report.Records, again.Records)
	assert.Less(t, gh.Requests()-first, first, "cached commit detail is not refetched")

	status, err := runModwatch(t, env, "history", "status")
	require.NoError(t, err)
	assert.Contains(t, status, "sqlite")
}

// TestScanWithoutTokenFails checks the missing credential exits non-zero before any request.
func TestScanWithoutTokenFails(t *testing.T) {
	gh := newFakeGitHub(t)
	env := map[string]string{
		"HOME":                   t.TempDir(),
		"MODWATCH_API_URL":       gh.URL(),
		"MODWATCH_CACHE_BACKEND": "none",
	}

	_, err := runModwatch(t, env, "scan")
	require.Error(t, err)
	assert.Equal(t, 0, gh.Requests())
}

// TestScanCSVToFile writes the CSV report to the requested file.
func TestScanCSVToFile(t *testing.T) {
	gh := newFakeGitHub(t)
	out := filepath.Join(t.TempDir(), "changes.csv")
	env := map[string]string{
		"HOME":         t.TempDir(),
		"GITHUB_TOKEN": "integration-token",
	}

	_, err := runModwatch(t, env, "scan", "--api-url", gh.URL(), "--output", "csv", "--output-file", out, "--track", "modules/exploits")
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "module,type,path,url,status,last_modified,commit,fingerprint")
	assert.Contains(t, string(data), "modules/exploits/linux/http/demo_rce.rb")
	assert.NotContains(t, string(data), "modules/post/")
}

// TestVersionCommand prints build information.
func TestVersionCommand(t *testing.T) {
	stdout, err := runModwatch(t, nil, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "modwatch CLI")
}

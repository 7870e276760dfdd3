package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/socinabox/modwatch/internal/contract"
	"github.com/socinabox/modwatch/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	testNow    = time.Date(2026, time.October, 19, 12, 0, 0, 0, time.UTC)
	testWindow = schema.NewPollWindow(testNow, 24*time.Hour)
)

func testMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Repo:       schema.DefaultRepo,
		Token:      "ghp_test",
		Tracked:    schema.DefaultTrackedDirectories(),
		Window:     24 * time.Hour,
		Extensions: schema.DefaultExtensions,
	}
}

func newTestMonitor(client contract.SourceClient) *Monitor {
	m := NewMonitor(testMonitorConfig(), client)
	m.Now = func() time.Time { return testNow }
	return m
}

func file(name, status string) schema.CommitFile {
	return schema.CommitFile{Filename: name, Status: status, BlobURL: "https://github.com/rapid7/metasploit-framework/blob/x/" + name}
}

// history wires a mock client with per-directory listings and commit details.
func history(listings map[string][]string, commits ...*schema.Commit) *contract.MockSourceClient {
	client := &contract.MockSourceClient{}
	bySHA := make(map[string]*schema.Commit, len(commits))
	for _, c := range commits {
		bySHA[c.SHA] = c
	}
	for _, dir := range schema.DefaultTrackedPrefixes {
		var refs []schema.CommitRef
		for _, sha := range listings[dir] {
			refs = append(refs, schema.CommitRef{SHA: sha, Date: bySHA[sha].Date})
		}
		client.On("ListCommits", mock.Anything, schema.DefaultRepo, dir, mock.Anything).Return(refs, nil)
	}
	for _, c := range commits {
		client.On("GetCommit", mock.Anything, schema.DefaultRepo, c.SHA).Return(c, nil)
	}
	return client
}

func TestRunThreeDirectoryScenario(t *testing.T) {
	c1 := &schema.Commit{SHA: "c1", Date: testNow.Add(-2 * time.Hour), Files: []schema.CommitFile{
		file("modules/exploits/linux/http/new_rce.rb", "added"),
		file("modules/exploits/linux/http/new_rce.md", "added"),
		file("lib/msf/core.rb", "modified"),
	}}
	c2 := &schema.Commit{SHA: "c2", Date: testNow.Add(-5 * time.Hour), Files: []schema.CommitFile{
		file("modules/auxiliary/scanner/smb/smb_version.rb", "modified"),
	}}
	c3 := &schema.Commit{SHA: "c3", Date: testNow.Add(-3 * time.Hour), Files: []schema.CommitFile{
		{Filename: "modules/post/windows/gather/old.rb", Status: "removed"},
		file("modules/post/windows/gather/helper.py", "added"),
	}}
	client := history(map[string][]string{
		"modules/auxiliary": {"c2"},
		"modules/exploits":  {"c1"},
		"modules/post":      {"c3"},
	}, c1, c2, c3)

	report, err := newTestMonitor(client).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Records, 4)
	paths := make([]string, 0, len(report.Records))
	for _, r := range report.Records {
		paths = append(paths, r.Path)
	}
	assert.Equal(t, []string{
		"modules/auxiliary/scanner/smb/smb_version.rb",
		"modules/exploits/linux/http/new_rce.md",
		"modules/exploits/linux/http/new_rce.rb",
		"modules/post/windows/gather/old.rb",
	}, paths, "ordered by tracked directory then path")

	aux := report.Records[0]
	assert.Equal(t, "smb_version.rb", aux.Name)
	assert.Equal(t, "auxiliary", aux.Category)
	assert.Equal(t, schema.ModifiedChange, aux.Kind)
	assert.Equal(t, c2.Date, aux.LastModified)
	assert.NotEmpty(t, aux.ContentURL)

	removed := report.Records[3]
	assert.Equal(t, schema.RemovedChange, removed.Kind)
	assert.Empty(t, removed.ContentURL)
	assert.Equal(t, "post", removed.Category)

	assert.Equal(t, testWindow, report.Window)
	client.AssertExpectations(t)
}

func TestRunEveryRecordUnderTrackedPrefix(t *testing.T) {
	c1 := &schema.Commit{SHA: "c1", Date: testNow.Add(-time.Hour), Files: []schema.CommitFile{
		file("modules/postgres/scanner.rb", "added"),
		file("modules/payloads/singles/cmd.rb", "added"),
		file("documentation/modules/exploits/x.md", "added"),
		file("modules/post/multi/recon.rb", "added"),
	}}
	client := history(map[string][]string{"modules/post": {"c1"}}, c1)

	report, err := newTestMonitor(client).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Records, 1)
	for _, r := range report.Records {
		matched := false
		for _, d := range report.Tracked {
			matched = matched || strings.HasPrefix(r.Path, d.Prefix+"/")
		}
		assert.True(t, matched, r.Path)
	}
}

func TestRunLatestRevisionWins(t *testing.T) {
	const p = "modules/exploits/windows/smb/x.rb"
	older := &schema.Commit{SHA: "aaa", Date: testNow.Add(-10 * time.Hour), Files: []schema.CommitFile{file(p, "added")}}
	newer := &schema.Commit{SHA: "bbb", Date: testNow.Add(-1 * time.Hour), Files: []schema.CommitFile{file(p, "modified")}}
	client := history(map[string][]string{"modules/exploits": {"bbb", "aaa"}}, older, newer)

	report, err := newTestMonitor(client).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Records, 1)
	assert.Equal(t, "bbb", report.Records[0].CommitSHA)
	assert.Equal(t, schema.ModifiedChange, report.Records[0].Kind)
	assert.Equal(t, newer.Date, report.Records[0].LastModified)
}

func TestRunRenameOutOfTrackedDirectoryIsRemoval(t *testing.T) {
	c1 := &schema.Commit{SHA: "r1", Date: testNow.Add(-time.Hour), Files: []schema.CommitFile{{
		Filename:         "modules/exploits_deprecated/x.rb",
		Status:           "renamed",
		PreviousFilename: "modules/exploits/x.rb",
	}}}
	client := history(map[string][]string{"modules/exploits": {"r1"}}, c1)

	report, err := newTestMonitor(client).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Records, 1)
	rec := report.Records[0]
	assert.Equal(t, "modules/exploits/x.rb", rec.Path)
	assert.Equal(t, "exploits", rec.Category)
	assert.Equal(t, schema.RemovedChange, rec.Kind)
	assert.Empty(t, rec.ContentURL)
	assert.Equal(t, "r1", rec.CommitSHA)
}

func TestRunRenameInsideTrackedDirectories(t *testing.T) {
	renamed := file("modules/post/linux/new.rb", "renamed")
	renamed.PreviousFilename = "modules/exploits/linux/old.rb"
	c1 := &schema.Commit{SHA: "r2", Date: testNow.Add(-time.Hour), Files: []schema.CommitFile{renamed}}
	client := history(map[string][]string{"modules/exploits": {"r2"}, "modules/post": {"r2"}}, c1)

	report, err := newTestMonitor(client).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Records, 2)
	assert.Equal(t, "modules/exploits/linux/old.rb", report.Records[0].Path)
	assert.Equal(t, schema.RemovedChange, report.Records[0].Kind)
	assert.Equal(t, "modules/post/linux/new.rb", report.Records[1].Path)
	assert.Equal(t, schema.ModifiedChange, report.Records[1].Kind)
	assert.NotEmpty(t, report.Records[1].ContentURL)
}

func TestRunLaterAddWinsOverEarlierRenameRemoval(t *testing.T) {
	const p = "modules/exploits/x.rb"
	moved := &schema.Commit{SHA: "m1", Date: testNow.Add(-5 * time.Hour), Files: []schema.CommitFile{{
		Filename: "modules/exploits_deprecated/x.rb", Status: "renamed", PreviousFilename: p,
	}}}
	readded := &schema.Commit{SHA: "m2", Date: testNow.Add(-time.Hour), Files: []schema.CommitFile{file(p, "added")}}
	client := history(map[string][]string{"modules/exploits": {"m2", "m1"}}, moved, readded)

	report, err := newTestMonitor(client).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Records, 1)
	assert.Equal(t, schema.AddedChange, report.Records[0].Kind)
	assert.Equal(t, "m2", report.Records[0].CommitSHA)
}

func TestRunTieBrokenBySHA(t *testing.T) {
	const p = "modules/post/a.rb"
	date := testNow.Add(-time.Hour)
	a := &schema.Commit{SHA: "111", Date: date, Files: []schema.CommitFile{file(p, "added")}}
	b := &schema.Commit{SHA: "999", Date: date, Files: []schema.CommitFile{{Filename: p, Status: "removed"}}}

	for _, order := range [][]string{{"111", "999"}, {"999", "111"}} {
		client := history(map[string][]string{"modules/post": order}, a, b)
		report, err := newTestMonitor(client).Run(context.Background())
		require.NoError(t, err)
		require.Len(t, report.Records, 1)
		assert.Equal(t, "999", report.Records[0].CommitSHA)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	c1 := &schema.Commit{SHA: "c1", Date: testNow.Add(-time.Hour), Files: []schema.CommitFile{
		file("modules/exploits/b.rb", "added"),
		file("modules/exploits/a.rb", "modified"),
	}}
	client := history(map[string][]string{"modules/exploits": {"c1"}}, c1)
	m := newTestMonitor(client)

	first, err := m.Run(context.Background())
	require.NoError(t, err)
	second, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRunWindowBoundaryIsInclusive(t *testing.T) {
	atStart := &schema.Commit{SHA: "s", Date: testWindow.Start, Files: []schema.CommitFile{file("modules/post/start.rb", "added")}}
	atEnd := &schema.Commit{SHA: "e", Date: testWindow.End, Files: []schema.CommitFile{file("modules/post/end.rb", "added")}}
	outside := &schema.Commit{SHA: "o", Date: testWindow.Start.Add(-time.Second), Files: []schema.CommitFile{file("modules/post/old.rb", "added")}}
	client := history(map[string][]string{"modules/post": {"e", "s", "o"}}, atStart, atEnd, outside)

	report, err := newTestMonitor(client).Run(context.Background())
	require.NoError(t, err)

	var paths []string
	for _, r := range report.Records {
		paths = append(paths, r.Path)
	}
	assert.Equal(t, []string{"modules/post/end.rb", "modules/post/start.rb"}, paths)
}

func TestRunMissingCredential(t *testing.T) {
	client := &contract.MockSourceClient{}
	cfg := testMonitorConfig()
	cfg.Token = ""
	m := NewMonitor(cfg, client)

	report, err := m.Run(context.Background())

	assert.Nil(t, report)
	assert.ErrorIs(t, err, contract.ErrAuthentication)
	client.AssertNotCalled(t, "ListCommits", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	client.AssertNotCalled(t, "GetCommit", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunClientErrorAbortsWithoutPartialReport(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"rate limit", contract.NewRateLimitError("list commits", testNow.Add(time.Hour), nil)},
		{"network", contract.NewNetworkError("list commits", errors.New("reset by peer"))},
		{"malformed", contract.NewMalformedResponseError("get commit", errors.New("bad json"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c1 := &schema.Commit{SHA: "c1", Date: testNow.Add(-time.Hour), Files: []schema.CommitFile{file("modules/auxiliary/a.rb", "added")}}
			client := &contract.MockSourceClient{}
			client.On("ListCommits", mock.Anything, mock.Anything, "modules/auxiliary", mock.Anything).
				Return([]schema.CommitRef{{SHA: "c1", Date: c1.Date}}, nil)
			client.On("ListCommits", mock.Anything, mock.Anything, "modules/exploits", mock.Anything).
				Return(nil, tt.err)

			report, err := newTestMonitor(client).Run(context.Background())
			assert.Nil(t, report)
			assert.ErrorIs(t, err, tt.err)
			client.AssertNotCalled(t, "GetCommit", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRunFetchesEachCommitOnce(t *testing.T) {
	shared := &schema.Commit{SHA: "shared", Date: testNow.Add(-time.Hour), Files: []schema.CommitFile{
		file("modules/auxiliary/a.rb", "modified"),
		file("modules/exploits/b.rb", "modified"),
		file("modules/post/c.rb", "modified"),
	}}
	client := history(map[string][]string{
		"modules/auxiliary": {"shared"},
		"modules/exploits":  {"shared"},
		"modules/post":      {"shared"},
	}, shared)

	report, err := newTestMonitor(client).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Records, 3)
	client.AssertNumberOfCalls(t, "GetCommit", 1)
}

func TestRunEmptyExtensionsAcceptsAll(t *testing.T) {
	c1 := &schema.Commit{SHA: "c1", Date: testNow.Add(-time.Hour), Files: []schema.CommitFile{
		file("modules/exploits/x.py", "added"),
	}}
	client := history(map[string][]string{"modules/exploits": {"c1"}}, c1)
	cfg := testMonitorConfig()
	cfg.Extensions = nil
	m := NewMonitor(cfg, client)
	m.Now = func() time.Time { return testNow }

	report, err := m.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Records, 1)
}

func TestClassifyStatus(t *testing.T) {
	tests := map[string]schema.ChangeKind{
		"added":     schema.AddedChange,
		"copied":    schema.AddedChange,
		"removed":   schema.RemovedChange,
		"modified":  schema.ModifiedChange,
		"renamed":   schema.ModifiedChange,
		"changed":   schema.ModifiedChange,
		"unchanged": schema.ModifiedChange,
	}
	for status, want := range tests {
		t.Run(status, func(t *testing.T) {
			assert.Equal(t, want, ClassifyStatus(status))
		})
	}
}

func TestContentURLFallback(t *testing.T) {
	commit := &schema.Commit{SHA: "abc", HTMLURL: "https://ghe.example.com/o/r/commit/abc"}
	f := schema.CommitFile{Filename: "modules/post/a.rb"}
	assert.Equal(t, "https://ghe.example.com/o/r/blob/abc/modules/post/a.rb", contentURL("o/r", commit, f))

	commit.HTMLURL = ""
	assert.Equal(t, "https://github.com/o/r/blob/abc/modules/post/a.rb", contentURL("o/r", commit, f))

	f.BlobURL = "https://example.com/blob"
	assert.Equal(t, "https://example.com/blob", contentURL("o/r", commit, f))
}

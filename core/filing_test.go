package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/socinabox/modwatch/internal/contract"
	"github.com/socinabox/modwatch/internal/iocache"
	"github.com/socinabox/modwatch/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testJira() contract.JiraConfig {
	return contract.JiraConfig{
		Project:   "SOC",
		IssueType: "Task",
		Priority:  "High",
		Labels:    []string{"metasploit", "security"},
	}
}

func testRecord(kind schema.ChangeKind, name string) schema.ChangeRecord {
	p := "modules/exploits/linux/" + name
	return schema.ChangeRecord{
		Name:         name,
		Category:     "exploits",
		Path:         p,
		Kind:         kind,
		LastModified: testNow,
		CommitSHA:    "abc",
		ContentURL:   "https://github.com/rapid7/metasploit-framework/blob/abc/" + p,
		Fingerprint:  schema.Fingerprint(schema.DefaultRepo, p, "abc"),
	}
}

func TestBuildIssue(t *testing.T) {
	f := NewFiler(nil, nil, testJira(), nil)

	rec := testRecord(schema.AddedChange, "new_rce.rb")
	issue := f.BuildIssue(rec)

	assert.Equal(t, "SOC", issue.Project)
	assert.Equal(t, "New Metasploit Module: new_rce.rb", issue.Summary)
	assert.Equal(t, "Task", issue.IssueType)
	assert.Equal(t, "High", issue.Priority)
	assert.Equal(t, []string{"metasploit", "security", "exploits", "modwatch-" + rec.Fingerprint}, issue.Labels)
	assert.Contains(t, issue.Description, "Path: "+rec.Path)
	assert.Contains(t, issue.Description, "URL: "+rec.ContentURL)
	assert.Contains(t, issue.Description, "Change: added")

	assert.Equal(t, "Updated Metasploit Module: x.rb", f.BuildIssue(testRecord(schema.ModifiedChange, "x.rb")).Summary)
	removed := testRecord(schema.RemovedChange, "x.rb")
	removed.ContentURL = ""
	issue = f.BuildIssue(removed)
	assert.Equal(t, "Removed Metasploit Module: x.rb", issue.Summary)
	assert.NotContains(t, issue.Description, "URL:")
}

func TestFileSelectsKindsAndCreates(t *testing.T) {
	added := testRecord(schema.AddedChange, "a.rb")
	removed := testRecord(schema.RemovedChange, "b.rb")

	tracker := &contract.MockIssueTracker{}
	tracker.On("FindIssue", mock.Anything, "modwatch-"+added.Fingerprint).Return("", nil)
	tracker.On("CreateIssue", mock.Anything, mock.MatchedBy(func(req schema.IssueRequest) bool {
		return req.Summary == "New Metasploit Module: a.rb"
	})).Return("SOC-1", nil)

	f := NewFiler(tracker, nil, testJira(), []schema.ChangeKind{schema.AddedChange, schema.ModifiedChange})
	results, err := f.File(context.Background(), []schema.ChangeRecord{added, removed})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.True(t, results[0].Created)
	assert.Equal(t, "SOC-1", results[0].IssueKey)
	tracker.AssertExpectations(t)
}

func TestFileSkipsRecordsInLedger(t *testing.T) {
	rec := testRecord(schema.AddedChange, "a.rb")

	tracker := &contract.MockIssueTracker{}
	ledger := &iocache.MockHistoryStore{}
	ledger.On("LookupFiled", rec.Fingerprint).Return(&schema.FiledIssue{Fingerprint: rec.Fingerprint, IssueKey: "SOC-9"}, nil)

	f := NewFiler(tracker, ledger, testJira(), []schema.ChangeKind{schema.AddedChange})
	results, err := f.File(context.Background(), []schema.ChangeRecord{rec})

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.False(t, results[0].Created)
	assert.Equal(t, "SOC-9", results[0].IssueKey)
	tracker.AssertNotCalled(t, "FindIssue", mock.Anything, mock.Anything)
	tracker.AssertNotCalled(t, "CreateIssue", mock.Anything, mock.Anything)
}

func TestFileAdoptsExistingTrackerIssue(t *testing.T) {
	rec := testRecord(schema.AddedChange, "a.rb")

	tracker := &contract.MockIssueTracker{}
	tracker.On("FindIssue", mock.Anything, "modwatch-"+rec.Fingerprint).Return("SOC-3", nil)
	ledger := &iocache.MockHistoryStore{}
	ledger.On("LookupFiled", rec.Fingerprint).Return(nil, nil)
	ledger.On("RecordFiled", mock.MatchedBy(func(fi schema.FiledIssue) bool {
		return fi.IssueKey == "SOC-3" && fi.Fingerprint == rec.Fingerprint
	})).Return(nil)

	f := NewFiler(tracker, ledger, testJira(), []schema.ChangeKind{schema.AddedChange})
	f.now = func() time.Time { return testNow }
	results, err := f.File(context.Background(), []schema.ChangeRecord{rec})

	require.NoError(t, err)
	assert.False(t, results[0].Created)
	tracker.AssertNotCalled(t, "CreateIssue", mock.Anything, mock.Anything)
	ledger.AssertExpectations(t)
}

func TestFileContinuesAfterFailure(t *testing.T) {
	bad := testRecord(schema.AddedChange, "bad.rb")
	good := testRecord(schema.AddedChange, "good.rb")

	tracker := &contract.MockIssueTracker{}
	tracker.On("FindIssue", mock.Anything, mock.Anything).Return("", nil)
	tracker.On("CreateIssue", mock.Anything, mock.MatchedBy(func(req schema.IssueRequest) bool {
		return req.Summary == "New Metasploit Module: bad.rb"
	})).Return("", contract.NewTrackerError("create issue", errors.New("status 400")))
	tracker.On("CreateIssue", mock.Anything, mock.Anything).Return("SOC-2", nil)

	f := NewFiler(tracker, nil, testJira(), []schema.ChangeKind{schema.AddedChange})
	results, err := f.File(context.Background(), []schema.ChangeRecord{bad, good})

	assert.ErrorIs(t, err, contract.ErrTracker)
	require.Len(t, results, 1)
	assert.Equal(t, "SOC-2", results[0].IssueKey)
}

// Package contract provides interfaces and shared utilities for the internal architecture of modwatch.
package contract

import (
	"context"
	"time"

	"github.com/socinabox/modwatch/schema"
)

// SourceClient defines the read-only queries made against the source hosting service.
// This allows the monitor to be tested without network access.
type SourceClient interface {
	// ListCommits returns the commits touching path within the window, newest first.
	ListCommits(ctx context.Context, repo string, path string, window schema.PollWindow) ([]schema.CommitRef, error)

	// GetCommit returns the detail of a single commit including its changed files.
	GetCommit(ctx context.Context, repo string, sha string) (*schema.Commit, error)
}

// IssueTracker defines the operations needed to file change records as issues.
type IssueTracker interface {
	// FindIssue returns the key of an issue carrying the given label, or "" if none exists.
	FindIssue(ctx context.Context, label string) (string, error)

	// CreateIssue creates a new issue and returns its key.
	CreateIssue(ctx context.Context, issue schema.IssueRequest) (string, error)
}

// CacheManager defines the interface for managing the persistence stores.
// This allows the store layer to be mocked for testing.
type CacheManager interface {
	GetCommitStore() CacheStore
	GetHistoryStore() HistoryStore
}

// CacheStore defines the interface for key/value cache storage.
type CacheStore interface {
	Get(key string) ([]byte, int, int64, error)
	Set(key string, value []byte, version int, timestamp int64) error
	GetStatus() (schema.CacheStatus, error)
	Close() error
}

// HistoryStore defines the interface for recording scans and the filed-issue ledger.
type HistoryStore interface {
	// BeginRun records the start of a scan and returns its unique ID.
	BeginRun(repo string, window schema.PollWindow, startTime time.Time) (int64, error)

	// RecordChanges stores the report records of a scan.
	RecordChanges(runID int64, records []schema.ChangeRecord) error

	// EndRun marks a scan as finished.
	EndRun(runID int64, endTime time.Time, totalChanges int, status schema.RunStatus, errKind string) error

	// LookupFiled returns the ledger entry for a fingerprint, or nil if none exists.
	LookupFiled(fingerprint string) (*schema.FiledIssue, error)

	// RecordFiled adds an entry to the filed-issue ledger.
	RecordFiled(issue schema.FiledIssue) error

	// GetStatus returns status information about the history store.
	GetStatus() (schema.HistoryStatus, error)

	// GetAllRuns returns every recorded scan ordered by ID.
	GetAllRuns() ([]schema.RunRecord, error)

	// GetAllChanges returns every recorded change ordered by run and path.
	GetAllChanges() ([]schema.ChangeRow, error)

	// Close closes the underlying connection.
	Close() error
}

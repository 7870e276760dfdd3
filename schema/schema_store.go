package schema

import "time"

// CacheStatus represents the status of the commit cache store.
type CacheStatus struct {
	Backend         string    `json:"backend"`
	Connected       bool      `json:"connected"`
	TotalEntries    int       `json:"total_entries"`
	LastEntryTime   time.Time `json:"last_entry_time"`
	OldestEntryTime time.Time `json:"oldest_entry_time"`
	TableSizeBytes  int64     `json:"table_size_bytes"`
}

// HistoryStatus represents the status of the run history store.
type HistoryStatus struct {
	Backend       string           `json:"backend"`
	Connected     bool             `json:"connected"`
	TotalRuns     int              `json:"total_runs"`
	FailedRuns    int              `json:"failed_runs"`
	LastRunID     int64            `json:"last_run_id"`
	LastRunTime   time.Time        `json:"last_run_time"`
	OldestRunTime time.Time        `json:"oldest_run_time"`
	TotalChanges  int              `json:"total_changes"`
	FiledIssues   int              `json:"filed_issues"`
	TableSizes    map[string]int64 `json:"table_sizes"`
}

// RunRecord represents a row from the modwatch_runs table.
type RunRecord struct {
	RunID         int64      `json:"run_id"`
	Repo          string     `json:"repo"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	WindowStart   time.Time  `json:"window_start"`
	WindowEnd     time.Time  `json:"window_end"`
	RunDurationMs *int64     `json:"run_duration_ms,omitempty"`
	TotalChanges  int32      `json:"total_changes"`
	Status        RunStatus  `json:"status"`
	ErrorKind     *string    `json:"error_kind,omitempty"`
}

// ChangeRow represents a row from the modwatch_changes table.
type ChangeRow struct {
	RunID        int64      `json:"run_id"`
	Path         string     `json:"path"`
	Category     string     `json:"category"`
	Kind         ChangeKind `json:"kind"`
	LastModified time.Time  `json:"last_modified"`
	CommitSHA    string     `json:"commit_sha"`
	ContentURL   *string    `json:"content_url,omitempty"`
	Fingerprint  string     `json:"fingerprint"`
}

// FiledIssue represents a row from the modwatch_filed_issues ledger.
type FiledIssue struct {
	Fingerprint string    `json:"fingerprint"`
	IssueKey    string    `json:"issue_key"`
	Path        string    `json:"path"`
	CommitSHA   string    `json:"commit_sha"`
	FiledAt     time.Time `json:"filed_at"`
}

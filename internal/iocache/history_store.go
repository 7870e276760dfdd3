package iocache

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/socinabox/modwatch/internal/contract"
	"github.com/socinabox/modwatch/schema"
)

// Table names for run history.
const (
	runsTable        = "modwatch_runs"
	changesTable     = "modwatch_changes"
	filedIssuesTable = "modwatch_filed_issues"
)

// historyTables lists the history tables in creation order.
var historyTables = []string{runsTable, changesTable, filedIssuesTable}

// HistoryStoreImpl implements the HistoryStore interface.
type HistoryStoreImpl struct {
	db      *sql.DB
	backend schema.DatabaseBackend
}

var _ contract.HistoryStore = &HistoryStoreImpl{} // Compile-time check

// NewHistoryStore creates a new HistoryStore with the specified backend.
func NewHistoryStore(backend schema.DatabaseBackend, connStr string) (contract.HistoryStore, error) {
	if backend == schema.NoneBackend {
		// No-op store for disabled tracking
		return &HistoryStoreImpl{backend: backend}, nil
	}

	db, err := openDB(backend, connStr, contract.GetHistoryDBFilePath())
	if err != nil {
		return nil, err
	}

	if err := createHistoryTables(db, backend); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create history tables: %w", err)
	}

	return &HistoryStoreImpl{db: db, backend: backend}, nil
}

// createHistoryTables creates the history tables.
func createHistoryTables(db *sql.DB, backend schema.DatabaseBackend) error {
	for _, table := range historyTables {
		if _, err := db.Exec(getCreateHistoryQuery(table, backend)); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table, err)
		}
	}
	return nil
}

// getCreateHistoryQuery returns the CREATE TABLE query for one history table.
func getCreateHistoryQuery(table string, backend schema.DatabaseBackend) string {
	quoted := quoteTableName(table, backend)

	// Column types per backend: id, text key, long text, timestamp
	idCol, keyType, textType, tsType := "run_id INTEGER PRIMARY KEY AUTOINCREMENT", "TEXT", "TEXT", "TEXT"
	switch backend {
	case schema.MySQLBackend:
		idCol, keyType, textType, tsType = "run_id BIGINT AUTO_INCREMENT PRIMARY KEY", "VARCHAR(512)", "TEXT", "DATETIME(6)"
	case schema.PostgreSQLBackend:
		idCol, keyType, textType, tsType = "run_id BIGSERIAL PRIMARY KEY", "TEXT", "TEXT", "TIMESTAMPTZ"
	}

	switch table {
	case runsTable:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				%s,
				repo %s NOT NULL,
				start_time %s NOT NULL,
				end_time %s,
				window_start %s NOT NULL,
				window_end %s NOT NULL,
				run_duration_ms BIGINT,
				total_changes INTEGER NOT NULL DEFAULT 0,
				status %s NOT NULL,
				error_kind %s
			);
		`, quoted, idCol, keyType, tsType, tsType, tsType, tsType, keyType, keyType)

	case changesTable:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id BIGINT NOT NULL,
				path %s NOT NULL,
				category %s NOT NULL,
				kind %s NOT NULL,
				last_modified %s NOT NULL,
				commit_sha %s NOT NULL,
				content_url %s,
				fingerprint %s NOT NULL,
				PRIMARY KEY (run_id, path)
			);
		`, quoted, keyType, keyType, keyType, tsType, keyType, textType, keyType)

	default: // filed issues
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				fingerprint %s PRIMARY KEY,
				issue_key %s NOT NULL,
				path %s NOT NULL,
				commit_sha %s NOT NULL,
				filed_at %s NOT NULL
			);
		`, quoted, keyType, keyType, keyType, keyType, tsType)
	}
}

// BeginRun creates a new run row and returns its unique ID.
func (hs *HistoryStoreImpl) BeginRun(repo string, window schema.PollWindow, startTime time.Time) (int64, error) {
	if hs.db == nil {
		return 0, nil
	}

	quoted := quoteTableName(runsTable, hs.backend)
	args := []any{
		repo,
		formatTime(startTime, hs.backend),
		formatTime(window.Start, hs.backend),
		formatTime(window.End, hs.backend),
		string(schema.RunRunning),
	}
	columns := "repo, start_time, window_start, window_end, status"

	var runID int64
	switch hs.backend {
	case schema.PostgreSQLBackend:
		query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES ($1, $2, $3, $4, $5) RETURNING run_id`, quoted, columns)
		if err := hs.db.QueryRow(query, args...).Scan(&runID); err != nil {
			return 0, fmt.Errorf("failed to insert run: %w", err)
		}
	default: // SQLite and MySQL
		query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?)`, quoted, columns)
		result, err := hs.db.Exec(query, args...)
		if err != nil {
			return 0, fmt.Errorf("failed to insert run: %w", err)
		}
		if runID, err = result.LastInsertId(); err != nil {
			return 0, fmt.Errorf("failed to read run id: %w", err)
		}
	}

	return runID, nil
}

// RecordChanges stores the report records of a run in one transaction.
func (hs *HistoryStoreImpl) RecordChanges(runID int64, records []schema.ChangeRecord) error {
	if hs.db == nil || len(records) == 0 {
		return nil
	}

	query := fmt.Sprintf(`INSERT INTO %s (run_id, path, category, kind, last_modified, commit_sha, content_url, fingerprint)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s)`, append([]any{quoteTableName(changesTable, hs.backend)}, placeholders(hs.backend, 8)...)...)

	tx, err := hs.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare change insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, rec := range records {
		var contentURL *string
		if rec.ContentURL != "" {
			contentURL = &rec.ContentURL
		}
		if _, err := stmt.Exec(runID, rec.Path, rec.Category, string(rec.Kind),
			formatTime(rec.LastModified, hs.backend), rec.CommitSHA, contentURL, rec.Fingerprint); err != nil {
			return fmt.Errorf("failed to insert change for %s: %w", rec.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit changes: %w", err)
	}
	return nil
}

// EndRun updates the run row with completion data.
func (hs *HistoryStoreImpl) EndRun(runID int64, endTime time.Time, totalChanges int, status schema.RunStatus, errKind string) error {
	if hs.db == nil {
		return nil
	}

	quoted := quoteTableName(runsTable, hs.backend)

	start := timeScanner{backend: hs.backend}
	query := fmt.Sprintf(`SELECT start_time FROM %s WHERE run_id = %s`, append([]any{quoted}, placeholders(hs.backend, 1)...)...)
	if err := hs.db.QueryRow(query, runID).Scan(start.dest()); err != nil {
		return fmt.Errorf("failed to get start_time for run %d: %w", runID, err)
	}
	startTime, err := start.required()
	if err != nil {
		return err
	}

	var errKindArg *string
	if errKind != "" {
		errKindArg = &errKind
	}

	update := fmt.Sprintf(`UPDATE %s SET end_time = %s, run_duration_ms = %s, total_changes = %s, status = %s, error_kind = %s WHERE run_id = %s`,
		append([]any{quoted}, placeholders(hs.backend, 6)...)...)
	durationMs := endTime.Sub(startTime).Milliseconds()
	if _, err := hs.db.Exec(update, formatTime(endTime, hs.backend), durationMs, totalChanges, string(status), errKindArg, runID); err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

// LookupFiled returns the ledger entry for a fingerprint, or nil if none exists.
func (hs *HistoryStoreImpl) LookupFiled(fingerprint string) (*schema.FiledIssue, error) {
	if hs.db == nil {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT fingerprint, issue_key, path, commit_sha, filed_at FROM %s WHERE fingerprint = %s`,
		append([]any{quoteTableName(filedIssuesTable, hs.backend)}, placeholders(hs.backend, 1)...)...)

	var filed schema.FiledIssue
	filedAt := timeScanner{backend: hs.backend}
	err := hs.db.QueryRow(query, fingerprint).Scan(&filed.Fingerprint, &filed.IssueKey, &filed.Path, &filed.CommitSHA, filedAt.dest())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up filed issue: %w", err)
	}
	if filed.FiledAt, err = filedAt.required(); err != nil {
		return nil, err
	}
	return &filed, nil
}

// RecordFiled adds an entry to the filed-issue ledger. Recording a fingerprint
// twice keeps the first entry.
func (hs *HistoryStoreImpl) RecordFiled(issue schema.FiledIssue) error {
	if hs.db == nil {
		return nil
	}

	quoted := quoteTableName(filedIssuesTable, hs.backend)
	var query string
	switch hs.backend {
	case schema.MySQLBackend:
		query = fmt.Sprintf(`INSERT IGNORE INTO %s (fingerprint, issue_key, path, commit_sha, filed_at) VALUES (?, ?, ?, ?, ?)`, quoted)
	case schema.PostgreSQLBackend:
		query = fmt.Sprintf(`INSERT INTO %s (fingerprint, issue_key, path, commit_sha, filed_at) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (fingerprint) DO NOTHING`, quoted)
	default: // SQLite
		query = fmt.Sprintf(`INSERT OR IGNORE INTO %s (fingerprint, issue_key, path, commit_sha, filed_at) VALUES (?, ?, ?, ?, ?)`, quoted)
	}

	if _, err := hs.db.Exec(query, issue.Fingerprint, issue.IssueKey, issue.Path, issue.CommitSHA, formatTime(issue.FiledAt, hs.backend)); err != nil {
		return fmt.Errorf("failed to record filed issue: %w", err)
	}
	return nil
}

// Close closes the underlying connection.
func (hs *HistoryStoreImpl) Close() error {
	if hs.db != nil {
		return hs.db.Close()
	}
	return nil
}

// GetStatus returns status information about the history store.
func (hs *HistoryStoreImpl) GetStatus() (schema.HistoryStatus, error) {
	status := schema.HistoryStatus{
		Backend:    string(hs.backend),
		Connected:  hs.db != nil,
		TableSizes: make(map[string]int64),
	}
	if hs.db == nil {
		return status, nil
	}

	quotedRuns := quoteTableName(runsTable, hs.backend)

	row := hs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*), COALESCE(SUM(total_changes), 0) FROM %s", quotedRuns))
	if err := row.Scan(&status.TotalRuns, &status.TotalChanges); err != nil {
		return status, fmt.Errorf("failed to get total runs: %w", err)
	}

	if status.TotalRuns > 0 {
		failedQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE status = %s", append([]any{quotedRuns}, placeholders(hs.backend, 1)...)...)
		if err := hs.db.QueryRow(failedQuery, string(schema.RunFailed)).Scan(&status.FailedRuns); err != nil {
			return status, fmt.Errorf("failed to get failed runs: %w", err)
		}

		last := timeScanner{backend: hs.backend}
		row = hs.db.QueryRow(fmt.Sprintf("SELECT run_id, start_time FROM %s ORDER BY run_id DESC LIMIT 1", quotedRuns))
		if err := row.Scan(&status.LastRunID, last.dest()); err != nil {
			return status, fmt.Errorf("failed to get last run info: %w", err)
		}
		lastTime, err := last.required()
		if err != nil {
			return status, err
		}
		status.LastRunTime = lastTime

		oldest := timeScanner{backend: hs.backend}
		row = hs.db.QueryRow(fmt.Sprintf("SELECT start_time FROM %s ORDER BY run_id ASC LIMIT 1", quotedRuns))
		if err := row.Scan(oldest.dest()); err != nil {
			return status, fmt.Errorf("failed to get oldest run time: %w", err)
		}
		oldestTime, err := oldest.required()
		if err != nil {
			return status, err
		}
		status.OldestRunTime = oldestTime
	}

	for _, table := range historyTables {
		var count int64
		row = hs.db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteTableName(table, hs.backend)))
		if err := row.Scan(&count); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}
	status.FiledIssues = int(status.TableSizes[filedIssuesTable])

	return status, nil
}

// GetAllRuns retrieves all runs from the store.
func (hs *HistoryStoreImpl) GetAllRuns() ([]schema.RunRecord, error) {
	if hs.db == nil {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, repo, start_time, end_time, window_start, window_end,
		run_duration_ms, total_changes, status, error_kind FROM %s ORDER BY run_id`, quoteTableName(runsTable, hs.backend))
	rows, err := hs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.RunRecord
	for rows.Next() {
		var record schema.RunRecord
		var status string
		start := timeScanner{backend: hs.backend}
		end := timeScanner{backend: hs.backend}
		windowStart := timeScanner{backend: hs.backend}
		windowEnd := timeScanner{backend: hs.backend}

		if err := rows.Scan(&record.RunID, &record.Repo, start.dest(), end.dest(), windowStart.dest(), windowEnd.dest(),
			&record.RunDurationMs, &record.TotalChanges, &status, &record.ErrorKind); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		record.Status = schema.RunStatus(status)

		if record.StartTime, err = start.required(); err != nil {
			return nil, err
		}
		if record.EndTime, err = end.value(); err != nil {
			return nil, err
		}
		if record.WindowStart, err = windowStart.required(); err != nil {
			return nil, err
		}
		if record.WindowEnd, err = windowEnd.required(); err != nil {
			return nil, err
		}
		results = append(results, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return results, nil
}

// GetAllChanges retrieves all recorded changes from the store.
func (hs *HistoryStoreImpl) GetAllChanges() ([]schema.ChangeRow, error) {
	if hs.db == nil {
		return nil, nil
	}

	query := fmt.Sprintf(`SELECT run_id, path, category, kind, last_modified, commit_sha, content_url, fingerprint
		FROM %s ORDER BY run_id, path`, quoteTableName(changesTable, hs.backend))
	rows, err := hs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query changes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.ChangeRow
	for rows.Next() {
		var record schema.ChangeRow
		var kind string
		lastModified := timeScanner{backend: hs.backend}

		if err := rows.Scan(&record.RunID, &record.Path, &record.Category, &kind, lastModified.dest(),
			&record.CommitSHA, &record.ContentURL, &record.Fingerprint); err != nil {
			return nil, fmt.Errorf("failed to scan change: %w", err)
		}
		record.Kind = schema.ChangeKind(kind)
		if record.LastModified, err = lastModified.required(); err != nil {
			return nil, err
		}
		results = append(results, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating changes: %w", err)
	}
	return results, nil
}

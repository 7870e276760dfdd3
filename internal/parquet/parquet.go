// Package parquet provides data structures and functions for exporting modwatch
// reports and run history to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/socinabox/modwatch/schema"
)

// ChangeRecord is one row of a report export.
type ChangeRecord struct {
	Repo         string    `parquet:"repo,snappy,dict"`
	WindowStart  time.Time `parquet:"window_start,snappy"`
	WindowEnd    time.Time `parquet:"window_end,snappy"`
	Name         string    `parquet:"name,snappy"`
	Category     string    `parquet:"category,snappy,dict"`
	Path         string    `parquet:"path,snappy"`
	Kind         string    `parquet:"kind,snappy,dict"`
	LastModified time.Time `parquet:"last_modified,snappy"`
	CommitSHA    string    `parquet:"commit_sha,snappy"`
	ContentURL   *string   `parquet:"content_url,optional,snappy"` // Null for removed modules
	Fingerprint  string    `parquet:"fingerprint,snappy"`
}

// RunRecord represents a single recorded scan.
// This struct maps to the modwatch_runs database table.
type RunRecord struct {
	RunID         int64      `parquet:"run_id,snappy"`
	Repo          string     `parquet:"repo,snappy,dict"`
	StartTime     time.Time  `parquet:"start_time,snappy"`
	EndTime       *time.Time `parquet:"end_time,optional,snappy"`
	WindowStart   time.Time  `parquet:"window_start,snappy"`
	WindowEnd     time.Time  `parquet:"window_end,snappy"`
	RunDurationMs *int64     `parquet:"run_duration_ms,optional,snappy"`
	TotalChanges  int32      `parquet:"total_changes,snappy"`
	Status        string     `parquet:"status,snappy,dict"`
	ErrorKind     *string    `parquet:"error_kind,optional,snappy"`
}

// ChangeRow represents a change recorded for a scan.
// This struct maps to the modwatch_changes database table.
type ChangeRow struct {
	RunID        int64     `parquet:"run_id,snappy"`
	Path         string    `parquet:"path,snappy"`
	Category     string    `parquet:"category,snappy,dict"`
	Kind         string    `parquet:"kind,snappy,dict"`
	LastModified time.Time `parquet:"last_modified,snappy"`
	CommitSHA    string    `parquet:"commit_sha,snappy"`
	ContentURL   *string   `parquet:"content_url,optional,snappy"`
	Fingerprint  string    `parquet:"fingerprint,snappy"`
}

// FromReport flattens a report into export rows.
func FromReport(report *schema.Report) []ChangeRecord {
	rows := make([]ChangeRecord, 0, len(report.Records))
	for _, rec := range report.Records {
		rows = append(rows, ChangeRecord{
			Repo:         report.Repo,
			WindowStart:  report.Window.Start,
			WindowEnd:    report.Window.End,
			Name:         rec.Name,
			Category:     rec.Category,
			Path:         rec.Path,
			Kind:         string(rec.Kind),
			LastModified: rec.LastModified,
			CommitSHA:    rec.CommitSHA,
			ContentURL:   optionalString(rec.ContentURL),
			Fingerprint:  rec.Fingerprint,
		})
	}
	return rows
}

// FromRunRecords converts stored runs into export rows.
func FromRunRecords(runs []schema.RunRecord) []RunRecord {
	rows := make([]RunRecord, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, RunRecord{
			RunID:         r.RunID,
			Repo:          r.Repo,
			StartTime:     r.StartTime,
			EndTime:       r.EndTime,
			WindowStart:   r.WindowStart,
			WindowEnd:     r.WindowEnd,
			RunDurationMs: r.RunDurationMs,
			TotalChanges:  r.TotalChanges,
			Status:        string(r.Status),
			ErrorKind:     r.ErrorKind,
		})
	}
	return rows
}

// FromChangeRows converts stored changes into export rows.
func FromChangeRows(changes []schema.ChangeRow) []ChangeRow {
	rows := make([]ChangeRow, 0, len(changes))
	for _, c := range changes {
		rows = append(rows, ChangeRow{
			RunID:        c.RunID,
			Path:         c.Path,
			Category:     c.Category,
			Kind:         string(c.Kind),
			LastModified: c.LastModified,
			CommitSHA:    c.CommitSHA,
			ContentURL:   c.ContentURL,
			Fingerprint:  c.Fingerprint,
		})
	}
	return rows
}

// WriteReport writes the report rows to w.
func WriteReport(w io.Writer, report *schema.Report) error {
	return write(w, FromReport(report))
}

// WriteRunRecordsParquet writes the run rows to a Parquet file.
func WriteRunRecordsParquet(data []RunRecord, outputPath string) error {
	return writeFile(outputPath, data)
}

// WriteChangeRowsParquet writes the change rows to a Parquet file.
func WriteChangeRowsParquet(data []ChangeRow, outputPath string) error {
	return writeFile(outputPath, data)
}

func writeFile[T any](outputPath string, data []T) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(file, data); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// write encodes rows with a schema inferred from the struct tags of T.
func write[T any](w io.Writer, data []T) error {
	writer := parquet.NewGenericWriter[T](w)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

package iocache

import (
	"fmt"
	"io"
	"sort"
)

// timeLayout is used for human-readable status timestamps.
const timeLayout = "2006-01-02 15:04:05"

// PrintCacheStatus prints commit cache status information.
func PrintCacheStatus(w io.Writer) error {
	store := Manager.GetCommitStore()
	if store == nil {
		_, err := fmt.Fprintln(w, "Commit cache is disabled")
		return err
	}
	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get cache status: %w", err)
	}

	_, _ = fmt.Fprintf(w, "Cache Backend: %s\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Connected: %t\n", status.Connected)
	if !status.Connected {
		return nil
	}
	_, _ = fmt.Fprintf(w, "Total Entries: %d\n", status.TotalEntries)
	if status.TotalEntries > 0 {
		_, _ = fmt.Fprintf(w, "Last Entry: %s\n", status.LastEntryTime.Format(timeLayout))
		_, _ = fmt.Fprintf(w, "Oldest Entry: %s\n", status.OldestEntryTime.Format(timeLayout))
	}
	_, err = fmt.Fprintf(w, "Table Size: %d bytes\n", status.TableSizeBytes)
	return err
}

// PrintHistoryStatus prints run history status information.
func PrintHistoryStatus(w io.Writer) error {
	store := Manager.GetHistoryStore()
	if store == nil {
		_, err := fmt.Fprintln(w, "Run history is disabled. Set --history-backend to enable it")
		return err
	}
	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get history status: %w", err)
	}

	_, _ = fmt.Fprintf(w, "History Backend: %s\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Connected: %t\n", status.Connected)
	if !status.Connected {
		return nil
	}
	_, _ = fmt.Fprintf(w, "Total Runs: %d (failed: %d)\n", status.TotalRuns, status.FailedRuns)
	if status.TotalRuns > 0 {
		_, _ = fmt.Fprintf(w, "Last Run ID: %d\n", status.LastRunID)
		_, _ = fmt.Fprintf(w, "Last Run: %s\n", status.LastRunTime.Format(timeLayout))
		_, _ = fmt.Fprintf(w, "Oldest Run: %s\n", status.OldestRunTime.Format(timeLayout))
		_, _ = fmt.Fprintf(w, "Total Changes Recorded: %d\n", status.TotalChanges)
	}
	_, _ = fmt.Fprintf(w, "Filed Issues: %d\n", status.FiledIssues)

	tables := make([]string, 0, len(status.TableSizes))
	for table := range status.TableSizes {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	_, err = fmt.Fprintln(w, "Table Sizes:")
	for _, table := range tables {
		_, err = fmt.Fprintf(w, "  %s: %d rows\n", table, status.TableSizes[table])
	}
	return err
}

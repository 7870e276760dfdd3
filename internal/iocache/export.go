package iocache

import (
	"errors"
	"fmt"
	"io"

	"github.com/socinabox/modwatch/internal/parquet"
)

// ExecuteHistoryExport writes the recorded runs and changes to two Parquet files
// named after outputFile.
func ExecuteHistoryExport(w io.Writer, outputFile string) error {
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}

	store := Manager.GetHistoryStore()
	if store == nil {
		return errors.New("run history is disabled. Set --history-backend to enable it")
	}

	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get history status: %w", err)
	}
	if status.TotalRuns == 0 {
		return errors.New("no run history found to export")
	}

	_, _ = fmt.Fprintf(w, "Exporting data from %s backend...\n", status.Backend)

	runs, err := store.GetAllRuns()
	if err != nil {
		return fmt.Errorf("failed to retrieve runs: %w", err)
	}
	changes, err := store.GetAllChanges()
	if err != nil {
		return fmt.Errorf("failed to retrieve changes: %w", err)
	}

	runsFile := outputFile + ".runs.parquet"
	if err := parquet.WriteRunRecordsParquet(parquet.FromRunRecords(runs), runsFile); err != nil {
		return fmt.Errorf("failed to write runs: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d runs to: %s\n", len(runs), runsFile)

	changesFile := outputFile + ".changes.parquet"
	if err := parquet.WriteChangeRowsParquet(parquet.FromChangeRows(changes), changesFile); err != nil {
		return fmt.Errorf("failed to write changes: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d changes to: %s\n", len(changes), changesFile)

	return nil
}

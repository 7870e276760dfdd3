package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/socinabox/modwatch/internal/contract"
	"github.com/socinabox/modwatch/internal/iocache"
	"github.com/socinabox/modwatch/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// historyConfig reads and validates the history backend settings.
func historyConfig() (schema.DatabaseBackend, string, error) {
	if err := loadConfigFile(); err != nil {
		return "", "", err
	}
	backend := schema.DatabaseBackend(viper.GetString("history-backend"))
	connStr := viper.GetString("history-db-connect")
	if backend == "" || backend == schema.NoneBackend {
		return "", "", errors.New("run history is disabled; set --history-backend (or MODWATCH_HISTORY_BACKEND)")
	}
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return "", "", err
	}
	return backend, connStr, nil
}

// historySetup opens only the run history store.
func historySetup(_ *cobra.Command, _ []string) error {
	backend, connStr, err := historyConfig()
	if err != nil {
		return err
	}
	if err := iocache.InitStores("", "", backend, connStr); err != nil {
		return fmt.Errorf("failed to initialize run history: %w", err)
	}
	cfg.HistoryBackend = backend
	cfg.HistoryDBConnect = connStr
	return nil
}

// historyMigrateSetup validates the backend without opening the store,
// so migrations run against an untouched schema.
func historyMigrateSetup(_ *cobra.Command, _ []string) error {
	backend, connStr, err := historyConfig()
	if err != nil {
		return err
	}
	cfg.HistoryBackend = backend
	cfg.HistoryDBConnect = connStr
	return nil
}

// historyCmd focused on run history management.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage recorded scans and the filed-issue ledger",
	Long: `Manage the run history database.

When --history-backend is set, every scan records a run row, one row per
detected change, and the Jira issues it filed. The filed-issue ledger keeps
repeated scans from filing the same change twice.

Examples:
  modwatch history status --history-backend sqlite
  modwatch history export --history-backend sqlite --output-file history
  modwatch history migrate --history-backend postgresql --history-db-connect "..."`,
}

// historyClearCmd clears the run history.
var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all recorded runs, changes and filed issues",
	Long: `Delete all run history data from the configured backend.

Clearing the ledger means previously filed changes can be filed again unless
Jira still carries their fingerprint label.

For SQLite: Deletes the database file
For MySQL/PostgreSQL: Drops the history tables`,
	PreRunE: historyMigrateSetup,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ClearHistory(cfg.HistoryBackend, contract.GetHistoryDBFilePath(), cfg.HistoryDBConnect); err != nil {
			contract.LogFatal("Failed to clear run history", err)
		}
		fmt.Println("Run history cleared successfully.")
	},
}

// historyStatusCmd shows run history status.
var historyStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display run history statistics",
	Long: `Show run counts, failed runs, the newest and oldest run, change rows,
filed issues and table sizes of the run history database.`,
	PreRunE: historySetup,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.PrintHistoryStatus(os.Stdout); err != nil {
			contract.LogFatal("Failed to get run history status", err)
		}
	},
}

// historyExportCmd exports the run history to parquet.
var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export recorded runs and changes to Parquet files",
	Long: `Write the run history to two Parquet files:
<output-file>.runs.parquet and <output-file>.changes.parquet.

Examples:
  modwatch history export --history-backend sqlite --output-file modwatch`,
	PreRunE: historySetup,
	Run: func(_ *cobra.Command, _ []string) {
		outputFile := viper.GetString("output-file")
		if outputFile == "" {
			contract.LogFatal("Export requires an output file", errors.New("--output-file is empty"))
		}
		if err := iocache.ExecuteHistoryExport(os.Stdout, outputFile); err != nil {
			contract.LogFatal("Failed to export run history", err)
		}
	},
}

// historyMigrateCmd runs schema migrations on the run history database.
var historyMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate the run history schema",
	Long: `Apply the embedded schema migrations to the run history database.

Examples:
  # Migrate to the latest version
  modwatch history migrate --history-backend mysql --history-db-connect "..."

  # Roll back everything
  modwatch history migrate --history-backend sqlite --target-version 0`,
	PreRunE: historyMigrateSetup,
	Run: func(_ *cobra.Command, _ []string) {
		target := viper.GetInt("target-version")
		if err := iocache.MigrateHistory(os.Stdout, cfg.HistoryBackend, cfg.HistoryDBConnect, target); err != nil {
			contract.LogFatal("Failed to migrate run history", err)
		}
	},
}

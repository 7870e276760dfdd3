package cmd

import (
	"fmt"
	"os"

	"github.com/socinabox/modwatch/internal/contract"
	"github.com/socinabox/modwatch/internal/iocache"
	"github.com/socinabox/modwatch/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cacheSetup loads minimal configuration needed for cache operations.
// This is used by commands that need cache access without full shared setup.
func cacheSetup(_ *cobra.Command, _ []string) error {
	if err := loadConfigFile(); err != nil {
		return err
	}

	backend := schema.DatabaseBackend(viper.GetString("cache-backend"))
	connStr := viper.GetString("cache-db-connect")
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return err
	}

	// No run history for cache commands
	if err := iocache.InitStores(backend, connStr, "", ""); err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}

	cfg.CacheBackend = backend
	cfg.CacheDBConnect = connStr
	return nil
}

// cacheCmd focused on cache management.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the commit detail cache",
	Long: `Manage the cache of GitHub commit details.

Commits are immutable, so their file lists are cached by SHA to save API
requests on repeated scans over overlapping windows.

Supported backends: SQLite (default), MySQL, PostgreSQL, or None

Examples:
  modwatch cache status
  modwatch cache clear`,
}

// cacheClearCmd clears the cache.
var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached commit details",
	Long: `Delete all cached commit details from the configured backend.

For SQLite: Deletes the database file
For MySQL/PostgreSQL: Drops the cache table

Examples:
  modwatch cache clear
  MODWATCH_CACHE_BACKEND=mysql MODWATCH_CACHE_DB_CONNECT="..." modwatch cache clear`,
	PreRunE: cacheSetup,
	Run: func(_ *cobra.Command, _ []string) {
		iocache.CloseStores()
		if err := iocache.ClearCache(cfg.CacheBackend, contract.GetCacheDBFilePath(), cfg.CacheDBConnect); err != nil {
			contract.LogFatal("Failed to clear cache", err)
		}
		fmt.Println("Cache cleared successfully.")
	},
}

// cacheStatusCmd shows cache status.
var cacheStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Display cache statistics and connection details",
	Long: `Show the backend, entry count, newest and oldest entries and table size
of the commit detail cache.

Examples:
  modwatch cache status`,
	PreRunE: cacheSetup,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.PrintCacheStatus(os.Stdout); err != nil {
			contract.LogFatal("Failed to get cache status", err)
		}
	},
}

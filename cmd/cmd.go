// Package cmd defines the command-line interface for modwatch.
package cmd

import (
	"github.com/socinabox/modwatch/internal/contract"
	"github.com/socinabox/modwatch/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)

	// Add the cache subcommands to the parent cache command
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheStatusCmd)

	// Add the history subcommands to the parent history command
	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyStatusCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	flags := rootCmd.PersistentFlags()
	flags.String("repo", schema.DefaultRepo, "Repository to monitor as owner/name")
	flags.String("api-url", schema.DefaultAPIURL, "Base URL of the GitHub REST API")
	flags.String("github-token", "", "GitHub token (prefer the GITHUB_TOKEN env var)")
	flags.StringP("window", "w", contract.DefaultWindow, "Trailing poll window (e.g. '24 hours', '7 days', '90m')")
	flags.StringP("track", "t", "", "Comma-separated directories to watch (default modules/auxiliary,modules/exploits,modules/post)")
	flags.String("extensions", "", "Comma-separated module file extensions to report (default .rb,.md; '*' for all)")
	flags.String("timeout", contract.DefaultTimeout.String(), "HTTP timeout for API calls")
	flags.String("output", string(schema.TextOut), "Output format: text or csv or json or parquet")
	flags.String("output-file", "", "Optional path to write output to")
	flags.Int("width", 0, "Terminal width override (0 = auto-detect)")
	flags.String("color", "yes", "Enable colored change kinds in output (yes/no/true/false/1/0)")
	flags.String("log-level", "info", "Diagnostic log level: trace, debug, info, warn, error")
	flags.String("cache-backend", string(schema.SQLiteBackend), "Commit cache backend: sqlite or mysql or postgresql or none")
	flags.String("cache-db-connect", "", "Database connection string for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	flags.String("history-backend", "", "Run history backend: sqlite or mysql or postgresql or none (default disabled)")
	flags.String("history-db-connect", "", "Database connection string for run history (must differ from cache-db-connect)")
	flags.Bool("file-issues", false, "File Jira issues for detected changes")
	flags.String("file-kinds", "added,modified", "Comma-separated change kinds to file as issues")
	flags.String("jira-url", "", "Jira base URL (or JIRA_BASE_URL)")
	flags.String("jira-email", "", "Jira account email (or JIRA_EMAIL)")
	flags.String("jira-token", "", "Jira API token (prefer the JIRA_API_KEY env var)")
	flags.String("jira-project", contract.DefaultJiraProject, "Jira project key")
	flags.String("jira-issue-type", contract.DefaultJiraType, "Jira issue type")
	flags.String("jira-priority", contract.DefaultJiraPriority, "Jira priority name ('none' to omit the field)")
	flags.String("jira-labels", "", "Comma-separated extra Jira labels (default metasploit,security)")
	flags.String("config", "", "Path to config file")
	if err := viper.BindPFlags(flags); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of watchCmd to Viper
	watchCmd.Flags().String("schedule", contract.DefaultSchedule, "Cron schedule for scans (standard 5-field spec or @every/@hourly)")
	watchCmd.Flags().String("metrics-addr", "", "Listen address for Prometheus metrics (e.g. :9090), empty to disable")
	if err := viper.BindPFlags(watchCmd.Flags()); err != nil {
		contract.LogFatal("Error binding watch flags", err)
	}

	// Bind all flags of historyMigrateCmd to Viper
	historyMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(historyMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding history migrate flags", err)
	}
}

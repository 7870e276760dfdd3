package cmd

import (
	"github.com/socinabox/modwatch/core"
	"github.com/spf13/cobra"
)

// scanCmd runs one monitor pass and prints the report.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Report modules added, modified or removed in the poll window",
	Long: `Poll the GitHub commit history of the monitored repository and report every
module file that changed inside the trailing window.

Only files under the tracked directories with an accepted extension are
reported. When a file changed several times, the most recent commit wins.

Set --file-issues to open a Jira issue for each new or updated module. Each
change is filed at most once, keyed by a fingerprint of its path and commit.

Examples:
  # Changes in the last 24 hours (default)
  modwatch scan

  # Exploits only, last 7 days, as JSON
  modwatch scan --window "7 days" --track modules/exploits --output json

  # File Jira issues for new modules only
  modwatch scan --file-issues --file-kinds added

  # Write the report to a parquet file
  modwatch scan --output parquet --output-file changes.parquet`,
	PreRunE: sharedSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		return core.ExecuteScan(rootCtx, cfg, cacheManager)
	},
}

package cmd

import (
	"github.com/socinabox/modwatch/core"
	"github.com/spf13/cobra"
)

// watchCmd runs scans on a schedule until interrupted.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Scan on a cron schedule until interrupted",
	Long: `Run a scan immediately and then on every tick of the cron schedule.

A tick is skipped while the previous scan is still running. Failed scans are
logged and counted but do not stop the loop. With --metrics-addr, Prometheus
metrics are served on /metrics.

Examples:
  # Hourly scans over the last hour, filing Jira issues
  modwatch watch --window 1h --file-issues

  # Every 15 minutes with metrics on :9090
  modwatch watch --schedule "@every 15m" --window 15m --metrics-addr :9090`,
	PreRunE: sharedSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		return core.ExecuteWatch(rootCtx, cfg, cacheManager)
	},
}

package cmd

import (
	"github.com/socinabox/modwatch/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the modwatch MCP server",
	Long: `Launch an MCP server on stdio that lets AI agents query recent module
changes and the recorded run history through standard tools.

Logs go to stderr so they never mix with the protocol on stdout.`,
	PreRunE: sharedSetup,
	RunE: func(_ *cobra.Command, _ []string) error {
		return mcp.StartMCPServer(rootCtx, cfg, cacheManager, version)
	},
}

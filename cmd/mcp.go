package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/joescharf/crit/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP server over stdio",
	Long: `Run an MCP server exposing the review pipeline as tools: static
analysis, AI review, pending-approval listing, decision submission,
expiry sweeps, and queue statistics. Intended to be launched by an MCP
client over stdio.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		srv := mcp.NewServer(getAnalyzer(), getReviewer(), getEngine())
		return srv.ServeStdio(ctx)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

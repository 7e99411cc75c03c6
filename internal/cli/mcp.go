package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/transferguard/internal/guard"
	guardmcp "github.com/ppiankov/transferguard/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long: "Runs transferguard as an MCP (Model Context Protocol) server over stdio.\n" +
		"Exposes tools: validate, verify_address, compare_addresses, convert,\n" +
		"check_magnitude, approve, pending.",
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	svc, err := guard.Open(guard.Options{PolicyPath: policyPath, Logger: logger})
	if err != nil {
		return fmt.Errorf("failed to open guard: %w", err)
	}
	defer svc.Close()

	ctx, cancel := signalContext()
	defer cancel()

	return guardmcp.New(svc, version).Run(ctx)
}

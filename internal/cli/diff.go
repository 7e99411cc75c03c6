package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/transferguard/internal/policy"
	"github.com/ppiankov/transferguard/internal/policydiff"
)

var (
	diffFormat     string
	diffFailLooser bool
)

func init() {
	rootCmd.AddCommand(diffCmd)
	diffCmd.Flags().StringVarP(&diffFormat, "format", "f", "text", "Output format (text|json)")
	diffCmd.Flags().BoolVar(&diffFailLooser, "fail-looser", false, "Exit 2 when any change lets more transfers through")
}

var diffCmd = &cobra.Command{
	Use:   "diff <old.yaml> <new.yaml>",
	Short: "Show how a policy change affects transfer checks",
	Long: "Compares two policy files field by field: strict mode, the large-transfer\n" +
		"USD threshold and token price, symbol and decimals, denylist path, RPC\n" +
		"endpoint, per-sender velocity limits, per-sender spend budgets and alert\n" +
		"webhooks. A change is marked stricter when more transfers need confirmation\n" +
		"or get blocked, looser when fewer do.\n\n" +
		"With --fail-looser the exit code is 2 if any change is looser.",
	Args: cobra.ExactArgs(2),
	RunE: runDiff,
}

func runDiff(cmd *cobra.Command, args []string) error {
	oldCfg, err := policy.LoadConfig(args[0])
	if err != nil {
		return fmt.Errorf("load old policy: %w", err)
	}

	newCfg, err := policy.LoadConfig(args[1])
	if err != nil {
		return fmt.Errorf("load new policy: %w", err)
	}

	result := policydiff.Diff(oldCfg, newCfg)
	result.OldPath = args[0]
	result.NewPath = args[1]

	switch diffFormat {
	case "json":
		out, err := policydiff.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
	default:
		fmt.Fprint(cmd.OutOrStdout(), policydiff.FormatText(result))
	}

	if diffFailLooser && result.Loosens() {
		return &exitError{code: exitBlocked}
	}
	return nil
}

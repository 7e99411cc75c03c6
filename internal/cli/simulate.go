package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/transferguard/internal/sim"
)

var (
	simTrace    string
	simDenylist string
	simFormat   string
)

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVar(&simTrace, "trace", "", "Path to audit log (default from policy)")
	simulateCmd.Flags().StringVar(&simDenylist, "denylist", "", "Path to denylist YAML (default from the simulated policy)")
	simulateCmd.Flags().StringVarP(&simFormat, "format", "f", "text", "Output format (text|json)")
}

var simulateCmd = &cobra.Command{
	Use:   "simulate <policy.yaml>",
	Short: "Replay the audit log against another policy and show decision diffs",
	Long: "Reads the recorded audit log, re-evaluates each transfer against the\n" +
		"balance it was checked with under an alternate policy file, and shows\n" +
		"which decisions changed.\n\n" +
		"Use this to preview policy changes before deploying them.",
	Args: cobra.ExactArgs(1),
	RunE: runSimulate,
}

func runSimulate(cmd *cobra.Command, args []string) error {
	trace := simTrace
	if trace == "" {
		var err error
		if trace, err = auditPath(nil); err != nil {
			return err
		}
	}

	result, err := sim.Simulate(trace, args[0], simDenylist)
	if err != nil {
		return err
	}

	switch simFormat {
	case "json":
		out, err := sim.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
	default:
		fmt.Fprint(cmd.OutOrStdout(), sim.FormatText(result))
	}

	return nil
}

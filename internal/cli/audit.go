package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/transferguard/internal/audit"
	"github.com/ppiankov/transferguard/internal/policy"
)

var (
	tailLines      int
	replayReport   string
	replayAddress  string
	replayDecision string
	replayFrom     string
	replayTo       string
	replayFormat   string
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditTailCmd)
	auditCmd.AddCommand(auditReplayCmd)
	auditTailCmd.Flags().IntVarP(&tailLines, "lines", "n", 10, "Number of recent entries to show")
	auditTailCmd.Flags().StringVarP(&replayFormat, "format", "f", "text", "Output format (text|json)")

	f := auditReplayCmd.Flags()
	f.StringVar(&replayReport, "report", "", "Only the entry with this report ID")
	f.StringVar(&replayAddress, "address", "", "Only transfers from or to this address")
	f.StringVar(&replayDecision, "decision", "", "Only this decision (approve|confirm|block)")
	f.StringVar(&replayFrom, "from", "", "Start time filter (RFC3339)")
	f.StringVar(&replayTo, "to", "", "End time filter (RFC3339)")
	f.StringVarP(&replayFormat, "format", "f", "text", "Output format (text|json)")
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit log operations",
	Long:  "Commands for verifying and inspecting the hash-chained audit log.\nThe log path defaults to the one named by the policy.",
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify [path]",
	Short: "Verify hash chain integrity of an audit log",
	Long:  "Walks the JSONL audit log and validates that every entry's prev_hash\nmatches the SHA-256 of the previous entry. Exits 0 if valid, 1 if tampered.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuditVerify,
}

var auditTailCmd = &cobra.Command{
	Use:   "tail [path]",
	Short: "Show recent audit log entries",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuditTail,
}

var auditReplayCmd = &cobra.Command{
	Use:   "replay [path]",
	Short: "Replay checked transfers from the audit log",
	Long:  "Reads the audit log, filters by report, address, decision and time range,\nand renders a decision timeline with a summary.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuditReplay,
}

func auditPath(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	cfg, err := policy.LoadConfig(policyPath)
	if err != nil {
		return "", err
	}
	return policy.ResolvePath(cfg.AuditLog, "audit.jsonl"), nil
}

func runAuditVerify(cmd *cobra.Command, args []string) error {
	path, err := auditPath(args)
	if err != nil {
		return err
	}
	result := audit.Verify(path)
	if result.Valid {
		fmt.Fprintf(cmd.OutOrStdout(), "OK: %d entries verified\n", result.Lines)
		return nil
	}
	fmt.Fprintf(os.Stderr, "FAILED at line %d: %s\n", result.ErrorLine, result.Error)
	return &exitError{code: 1}
}

func runAuditTail(cmd *cobra.Command, args []string) error {
	path, err := auditPath(args)
	if err != nil {
		return err
	}
	return replay(cmd, path, audit.ReplayFilter{Limit: tailLines})
}

func runAuditReplay(cmd *cobra.Command, args []string) error {
	path, err := auditPath(args)
	if err != nil {
		return err
	}

	filter := audit.ReplayFilter{
		ReportID: replayReport,
		Address:  replayAddress,
		Decision: replayDecision,
	}
	if replayFrom != "" {
		from, err := time.Parse(time.RFC3339, replayFrom)
		if err != nil {
			return fmt.Errorf("invalid --from time %q: %w", replayFrom, err)
		}
		filter.From = from
	}
	if replayTo != "" {
		to, err := time.Parse(time.RFC3339, replayTo)
		if err != nil {
			return fmt.Errorf("invalid --to time %q: %w", replayTo, err)
		}
		filter.To = to
	}
	return replay(cmd, path, filter)
}

func replay(cmd *cobra.Command, path string, filter audit.ReplayFilter) error {
	result, err := audit.Replay(path, filter)
	if err != nil {
		return err
	}

	switch replayFormat {
	case "json":
		out, err := audit.FormatJSON(result)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
	default:
		fmt.Fprint(cmd.OutOrStdout(), audit.FormatTimeline(result))
	}
	return nil
}

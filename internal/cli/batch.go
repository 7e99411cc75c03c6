package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/transferguard/internal/batch"
	"github.com/ppiankov/transferguard/internal/guard"
	"github.com/ppiankov/transferguard/internal/safety"
)

var (
	batchConcurrency int
	batchJSON        bool
)

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", batch.DefaultConcurrency, "Balance lookups in flight")
	batchCmd.Flags().BoolVar(&batchJSON, "json", false, "Print results as JSON")
}

var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Validate every transfer in a YAML or JSON file",
	Long: "Reads a file with a top-level \"transfers\" list (from, to, amount or\n" +
		"human, optional balance and confirm_to) and checks all of them.\n" +
		"Either every transfer carries a balance or none does.\n\n" +
		"Exit code 2 if any transfer is blocked.",
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

type batchFile struct {
	Transfers []guard.Request `yaml:"transfers" json:"transfers"`
}

// loadBatchFile parses YAML, which also accepts JSON documents.
func loadBatchFile(path string) ([]guard.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read batch file: %w", err)
	}
	var f batchFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse batch file: %w", err)
	}
	if len(f.Transfers) == 0 {
		return nil, fmt.Errorf("%s: no transfers", path)
	}
	return f.Transfers, nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	reqs, err := loadBatchFile(args[0])
	if err != nil {
		return err
	}

	svc, err := guard.Open(guard.Options{PolicyPath: policyPath, Logger: logger})
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := signalContext()
	defer cancel()

	results, err := svc.HandleBatch(ctx, reqs, batchConcurrency)
	if err != nil {
		return err
	}

	reports := make([]*safety.Report, len(results))
	for i, res := range results {
		reports[i] = res.Report
	}
	summary := batch.Summarize(reports)

	if batchJSON {
		data, err := json.MarshalIndent(map[string]any{"results": results, "summary": summary}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else {
		printBatch(cmd.OutOrStdout(), results, summary)
	}

	if summary.Block > 0 {
		return &exitError{code: exitBlocked}
	}
	return nil
}

func printBatch(w io.Writer, results []*guard.Result, s batch.Summary) {
	fmt.Fprintf(w, "%-4s %-9s %-9s %-12s %-12s %s\n", "#", "DECISION", "RISK", "FROM", "TO", "AMOUNT")
	for i, res := range results {
		r := res.Report
		fmt.Fprintf(w, "%-4d %-9s %-9s %-12s %-12s %s\n",
			i, res.Decision, r.RiskLevel, r.FromDisplay, r.ToDisplay, r.AmountDisplay)
		for _, b := range r.Blockers {
			fmt.Fprintf(w, "     %s %s\n", styleRed.Render("x"), b)
		}
	}
	fmt.Fprintf(w, "\n%d transfers: %d approve, %d confirm, %d block (max risk %s)\n",
		s.Total, s.Approve, s.Confirm, s.Block, riskStyle(s.MaxRisk).Render(s.MaxRisk.String()))
}

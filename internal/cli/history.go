package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/transferguard/internal/client"
	"github.com/ppiankov/transferguard/internal/history"
	"github.com/ppiankov/transferguard/internal/policy"
)

var (
	historyAddress  string
	historyDecision string
	historySince    time.Duration
	historyLimit    int
	historyStats    bool
	historyJSON     bool
	historyRemote   string
)

func init() {
	rootCmd.AddCommand(historyCmd)
	f := historyCmd.Flags()
	f.StringVar(&historyAddress, "address", "", "Only transfers from or to this address")
	f.StringVar(&historyDecision, "decision", "", "Only this decision (approve|confirm|block)")
	f.DurationVar(&historySince, "since", 0, "Only checks newer than this (e.g. 24h)")
	f.IntVarP(&historyLimit, "limit", "n", 20, "Maximum records to show")
	f.BoolVar(&historyStats, "stats", false, "Print decision counts instead of records")
	f.BoolVar(&historyJSON, "json", false, "Print as JSON")
	f.StringVar(&historyRemote, "remote", "", "Query a transferguard server at host:port")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently checked transfers",
	Long:  "Reads the history database named by the policy, newest first.",
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	q := history.Query{
		Address:  historyAddress,
		Decision: historyDecision,
		Limit:    historyLimit,
	}
	if historySince > 0 {
		q.Since = time.Now().Add(-historySince)
	}

	var (
		records []history.Record
		stats   history.Stats
	)
	if historyRemote != "" {
		if historyStats {
			return fmt.Errorf("--stats is only available for the local database")
		}
		c, err := client.New(historyRemote)
		if err != nil {
			return err
		}
		defer c.Close()
		if records, err = c.History(cmd.Context(), q); err != nil {
			return err
		}
	} else {
		cfg, err := policy.LoadConfig(policyPath)
		if err != nil {
			return err
		}
		store, err := history.Open(policy.ResolvePath(cfg.HistoryDB, "history.db"))
		if err != nil {
			return err
		}
		defer store.Close()

		if historyStats {
			if stats, err = store.Stats(cmd.Context()); err != nil {
				return err
			}
		} else if records, err = store.List(cmd.Context(), q); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if historyStats {
		if historyJSON {
			data, _ := json.MarshalIndent(stats, "", "  ")
			fmt.Fprintln(out, string(data))
			return nil
		}
		fmt.Fprintln(out, header("decision counts"))
		fmt.Fprintf(out, "%d checks: %s approve, %s confirm, %s block\n", stats.Total,
			styleGreen.Render(fmt.Sprint(stats.Approve)),
			styleOrange.Render(fmt.Sprint(stats.Confirm)),
			styleRed.Render(fmt.Sprint(stats.Block)))
		return nil
	}

	if historyJSON {
		data, err := json.MarshalIndent(records, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "No checks recorded.")
		return nil
	}
	fmt.Fprintf(out, "%-20s %-8s %-9s %-12s %-12s %s\n", "TIME", "DECISION", "RISK", "FROM", "TO", "AMOUNT")
	for _, r := range records {
		fmt.Fprintf(out, "%-20s %-8s %-9s %-12s %-12s %s\n",
			r.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			r.Decision,
			r.Report.RiskLevel,
			r.Report.FromDisplay,
			r.Report.ToDisplay,
			r.Report.AmountDisplay)
	}
	return nil
}

package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ppiankov/transferguard/internal/approval"
	"github.com/ppiankov/transferguard/internal/client"
)

var (
	pendingJSON    bool
	pendingCleanup bool
)

func init() {
	rootCmd.AddCommand(pendingCmd)
	pendingCmd.Flags().StringVar(&approvalRemote, "remote", "", "List confirmations on a transferguard server at host:port")
	pendingCmd.Flags().BoolVar(&pendingJSON, "json", false, "Print as JSON")
	pendingCmd.Flags().BoolVar(&pendingCleanup, "cleanup", false, "Remove expired and resolved entries first (local store only)")
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List transfer confirmations",
	Long:  "Shows all confirmation requests in the store with their status, transfer, and timestamps.",
	RunE:  runPending,
}

func runPending(cmd *cobra.Command, args []string) error {
	var list []approval.Approval
	if approvalRemote != "" {
		c, err := client.New(approvalRemote)
		if err != nil {
			return err
		}
		defer c.Close()
		list, err = c.ListPending(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list confirmations: %w", err)
		}
	} else {
		store, err := openApprovals()
		if err != nil {
			return err
		}
		if pendingCleanup {
			n, err := store.Prune()
			if err != nil {
				logger.WithError(err).Warn("cleanup failed")
			}
			logger.WithField("removed", n).Info("pruned resolved confirmations")
		}
		list, err = store.List()
		if err != nil {
			return fmt.Errorf("failed to list confirmations: %w", err)
		}
	}

	if pendingJSON {
		if list == nil {
			list = []approval.Approval{}
		}
		data, err := json.MarshalIndent(list, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	if len(list) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No pending confirmations.")
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%-20s %-10s %-9s %-30s %s\n", "KEY", "STATUS", "RISK", "TRANSFER", "CREATED")
	for _, a := range list {
		transfer := fmt.Sprintf("%s -> %s %s", a.From, a.To, a.Amount)
		fmt.Fprintf(cmd.OutOrStdout(), "%-20s %-10s %-9s %-30s %s\n",
			a.Key,
			a.Status,
			a.Risk,
			truncate(transfer, 30),
			a.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		)
	}
	return nil
}

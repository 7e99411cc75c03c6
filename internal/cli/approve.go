package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/transferguard/internal/approval"
	"github.com/ppiankov/transferguard/internal/client"
	"github.com/ppiankov/transferguard/internal/policy"
)

var (
	approveDuration time.Duration
	approvalRemote  string
)

func init() {
	rootCmd.AddCommand(approveCmd)
	rootCmd.AddCommand(denyCmd)
	approveCmd.Flags().DurationVar(&approveDuration, "duration", 0, "Validity period (e.g., 5m, 1h). Default: one-time use")
	for _, c := range []*cobra.Command{approveCmd, denyCmd} {
		c.Flags().StringVar(&approvalRemote, "remote", "", "Act on a transferguard server at host:port")
	}
}

var approveCmd = &cobra.Command{
	Use:   "approve <key>",
	Short: "Confirm a transfer that requires confirmation",
	Long:  "Approves a pending confirmation. Without --duration, approval is one-time (consumed on first use).\nWith --duration, the same transfer may be repeated until the approval expires.",
	Args:  cobra.ExactArgs(1),
	RunE:  runApprove,
}

var denyCmd = &cobra.Command{
	Use:   "deny <key>",
	Short: "Refuse a transfer that requires confirmation",
	Long:  "Denies a pending confirmation. The transfer keeps asking for confirmation.",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeny,
}

// openApprovals opens the store named by the policy.
func openApprovals() (*approval.Store, error) {
	cfg, err := policy.LoadConfig(policyPath)
	if err != nil {
		return nil, err
	}
	store, err := approval.NewStore(policy.ResolvePath(cfg.ApprovalDir, "pending"))
	if err != nil {
		return nil, fmt.Errorf("failed to open approval store: %w", err)
	}
	return store, nil
}

func runApprove(cmd *cobra.Command, args []string) error {
	key := args[0]

	if approvalRemote != "" {
		c, err := client.New(approvalRemote)
		if err != nil {
			return err
		}
		defer c.Close()
		if err := c.Approve(cmd.Context(), key, approveDuration); err != nil {
			return err
		}
	} else {
		store, err := openApprovals()
		if err != nil {
			return err
		}
		if err := store.Approve(key, approveDuration); err != nil {
			return err
		}
	}

	if approveDuration > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Approved %q for %s\n", key, approveDuration)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Approved %q (one-time use)\n", key)
	}
	return nil
}

func runDeny(cmd *cobra.Command, args []string) error {
	key := args[0]

	if approvalRemote != "" {
		c, err := client.New(approvalRemote)
		if err != nil {
			return err
		}
		defer c.Close()
		if err := c.Deny(cmd.Context(), key); err != nil {
			return err
		}
	} else {
		store, err := openApprovals()
		if err != nil {
			return err
		}
		if err := store.Deny(key); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Denied %q\n", key)
	return nil
}

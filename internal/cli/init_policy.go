package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/transferguard/internal/policy"
)

var initPolicyForce bool

func init() {
	rootCmd.AddCommand(initPolicyCmd)
	initPolicyCmd.Flags().BoolVar(&initPolicyForce, "force", false, "Overwrite an existing policy file")
}

var initPolicyCmd = &cobra.Command{
	Use:   "init-policy",
	Short: "Generate default policy.yaml with comments",
	Long:  "Creates ~/.transferguard/policy.yaml (or the --policy path) with default\nthresholds and store locations. Edit this file to customize the checks.",
	RunE:  runInitPolicy,
}

func runInitPolicy(cmd *cobra.Command, args []string) error {
	path := policyPath
	if path == "" {
		path = policy.DefaultPath()
	}
	if path == "" {
		return fmt.Errorf("cannot determine home directory; pass --policy")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("cannot create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil && !initPolicyForce {
		return fmt.Errorf("policy.yaml already exists at %s (use --force to overwrite)", path)
	}

	if err := os.WriteFile(path, []byte(policy.DefaultConfigYAML()), 0644); err != nil {
		return fmt.Errorf("failed to write policy.yaml: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", path)
	return nil
}

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/transferguard/internal/systemd"
)

var (
	serviceOutput string
	serviceOpts   systemd.UnitOptions
)

func init() {
	rootCmd.AddCommand(initServiceCmd)
	f := initServiceCmd.Flags()
	f.StringVarP(&serviceOutput, "output", "o", "", "Write the unit to this file instead of stdout")
	f.StringVar(&serviceOpts.Binary, "binary", "", "Path of the installed binary (default /usr/local/bin/transferguard)")
	f.StringVar(&serviceOpts.User, "user", "", "User the service runs as (default transferguard)")
	f.IntVar(&serviceOpts.Port, "port", 50051, "gRPC listen port")
	f.StringVar(&serviceOpts.HTTPAddr, "http", "", "Also serve the JSON API on this address")
}

var initServiceCmd = &cobra.Command{
	Use:   "init-service",
	Short: "Generate a systemd unit for transferguard serve",
	Long: "Prints a hardened systemd unit that runs the server. The --policy flag\n" +
		"names the policy the unit loads (default /etc/transferguard/policy.yaml).",
	RunE: runInitService,
}

func runInitService(cmd *cobra.Command, args []string) error {
	opts := serviceOpts
	opts.PolicyPath = policyPath
	unit := systemd.ServerUnit(opts)

	if serviceOutput == "" {
		fmt.Fprint(cmd.OutOrStdout(), unit)
		return nil
	}
	if err := os.WriteFile(serviceOutput, []byte(unit), 0644); err != nil {
		return fmt.Errorf("failed to write unit: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n", serviceOutput)
	return nil
}

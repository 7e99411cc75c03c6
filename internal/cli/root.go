package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/transferguard/internal/logging"
)

var (
	policyPath string
	logLevel   string
	logFormat  string

	logger = logging.Discard()
)

func init() {
	rootCmd.PersistentFlags().StringVar(&policyPath, "policy", "", "Path to policy YAML (default ~/.transferguard/policy.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default warn)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: text or json")
}

var rootCmd = &cobra.Command{
	Use:   "transferguard",
	Short: "Pre-flight safety checks for token transfers",
	Long: "Verifies addresses, validates amounts against the sender balance and\n" +
		"aggregates the findings into one approve, confirm or block decision\n" +
		"before a transfer is signed.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(logging.Options{Level: logLevel, Format: logFormat})
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
}

// exitError ends the process with a specific code after printing nothing more.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// Exit codes for commands that report a decision.
const (
	exitBlocked         = 2
	exitNeedsConfirm    = 3
	exitScenarioFailure = 1
)

// Execute runs the root command.
func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	var ee *exitError
	if errors.As(err, &ee) {
		os.Exit(ee.code)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

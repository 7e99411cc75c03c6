package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ppiankov/transferguard/internal/amount"
	"github.com/ppiankov/transferguard/internal/policy"
)

var (
	convertDecimals int
	convertToHuman  bool
)

func init() {
	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(magnitudeCmd)
	convertCmd.Flags().IntVar(&convertDecimals, "decimals", -1, "Token decimals (default from policy)")
	convertCmd.Flags().BoolVar(&convertToHuman, "to-human", false, "Treat the argument as base units and print whole tokens")
	magnitudeCmd.Flags().IntVar(&convertDecimals, "decimals", -1, "Token decimals (default from policy)")
}

var convertCmd = &cobra.Command{
	Use:   "convert <amount>",
	Short: "Convert between whole tokens and base units",
	Long:  "Converts a whole-token amount (1.5) to base units, or base units to\nwhole tokens with --to-human. Decimals default to the policy's.",
	Args:  cobra.ExactArgs(1),
	RunE:  runConvert,
}

var magnitudeCmd = &cobra.Command{
	Use:   "magnitude <typed> <actual>",
	Short: "Check a typed amount for an order-of-magnitude mistake",
	Long:  "Compares what the user typed with the amount the transfer will send and\nflags European decimal notation or extra zeros. Advisory only.",
	Args:  cobra.ExactArgs(2),
	RunE:  runMagnitude,
}

// resolveDecimals returns the flag value or the policy default.
func resolveDecimals(flag int) (uint8, string, error) {
	cfg, err := policy.LoadConfig(policyPath)
	if err != nil {
		return 0, "", err
	}
	if flag < 0 {
		return cfg.Decimals, cfg.Symbol, nil
	}
	if flag > 255 {
		return 0, "", fmt.Errorf("decimals must be between 0 and 255, got %d", flag)
	}
	return uint8(flag), cfg.Symbol, nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	decimals, symbol, err := resolveDecimals(convertDecimals)
	if err != nil {
		return err
	}

	if convertToHuman {
		base, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("%q is not a base-unit integer", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), amount.FormatWithSymbol(base, decimals, symbol))
		return nil
	}

	human, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("%q is not a number", args[0])
	}
	base, err := amount.HumanToToken(human, decimals)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), base)
	return nil
}

func runMagnitude(cmd *cobra.Command, args []string) error {
	decimals, _, err := resolveDecimals(convertDecimals)
	if err != nil {
		return err
	}
	actual, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("%q is not a number", args[1])
	}

	check := amount.DetectMagnitudeError(args[0], actual, decimals)
	if !check.LikelyError {
		if check.Explanation != "" {
			fmt.Fprintln(cmd.OutOrStdout(), styleDim.Render(check.Explanation))
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), styleGreen.Render("no magnitude issue detected"))
		}
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", styleYellow.Render("possible magnitude error:"), check.Explanation)
	return nil
}

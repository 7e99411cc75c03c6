package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/transferguard/internal/address"
)

var verifyJSON bool

func init() {
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(compareCmd)
	verifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "Print the result as JSON")
	compareCmd.Flags().BoolVar(&verifyJSON, "json", false, "Print the result as JSON")
}

var verifyCmd = &cobra.Command{
	Use:   "verify <address>",
	Short: "Check that an address is well-formed",
	Long:  "Validates length, base58 alphabet and decoding of an account address.\nExits 1 when the address is invalid.",
	Args:  cobra.ExactArgs(1),
	RunE:  runVerify,
}

var compareCmd = &cobra.Command{
	Use:   "compare <address> <address>",
	Short: "Compare two addresses character by character",
	Long:  "Reports whether two addresses match and, if not, where they differ.\nOne or two differences are flagged as a likely typo. Exits 1 on mismatch.",
	Args:  cobra.ExactArgs(2),
	RunE:  runCompare,
}

func runVerify(cmd *cobra.Command, args []string) error {
	v, err := address.VerifyFull(args[0])

	if verifyJSON {
		out := map[string]any{"valid": err == nil}
		if err == nil {
			out["address"] = v.Address.String()
			out["short_display"] = v.ShortDisplay
		} else {
			out["error"] = err.Error()
			var aerr *address.Error
			if errors.As(err, &aerr) {
				out["kind"] = aerr.Kind.String()
			}
		}
		data, _ := json.MarshalIndent(out, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else if err == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", styleGreen.Render("valid"), v.Address, v.ShortDisplay)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", styleRed.Render("invalid"), err)
	}

	if err != nil {
		return &exitError{code: 1}
	}
	return nil
}

func runCompare(cmd *cobra.Command, args []string) error {
	cmp := address.Compare(args[0], args[1])

	if verifyJSON {
		data, _ := json.MarshalIndent(cmp, "", "  ")
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
	} else if cmp.Matches {
		fmt.Fprintln(cmd.OutOrStdout(), styleGreen.Render("addresses match"))
	} else {
		positions := make([]string, len(cmp.DifferencePositions))
		for i, p := range cmp.DifferencePositions {
			positions[i] = fmt.Sprintf("%d", p+1)
		}
		label := "addresses differ"
		if cmp.LikelyTypo {
			label = "likely typo"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d difference(s) at position %s\n",
			styleRed.Render(label), cmp.DifferenceCount, strings.Join(positions, ", "))
	}

	if !cmp.Matches {
		return &exitError{code: 1}
	}
	return nil
}

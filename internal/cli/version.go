package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ppiankov/transferguard/internal/amount"
)

// version is overridden at build time with -ldflags "-X".
var version = "0.1.0"

var versionShort bool

func init() {
	rootCmd.AddCommand(versionCmd)
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print only the version number")
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the transferguard build and rule limits",
	Long: "Prints the release, the Go toolchain it was built with and the fixed\n" +
		"limits the transfer rules apply, such as the largest token scale.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return writeVersion(cmd.OutOrStdout(), versionShort)
	},
}

type versionInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Go          string `json:"go"`
	MaxDecimals uint8  `json:"max_decimals"`
}

func writeVersion(w io.Writer, short bool) error {
	if short {
		_, err := fmt.Fprintln(w, version)
		return err
	}
	out, err := json.MarshalIndent(versionInfo{
		Name:        "transferguard",
		Version:     version,
		Go:          runtime.Version(),
		MaxDecimals: amount.MaxDecimals,
	}, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

package cli

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ppiankov/transferguard/internal/scenario"
)

var (
	checkScenarios []string
	checkDenylist  string
	checkFormat    string
	checkFailures  bool
)

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().StringArrayVar(&checkScenarios, "scenario", nil, "Glob pattern for scenario YAML files (repeatable)")
	checkCmd.Flags().StringVar(&checkDenylist, "denylist", "", "Path to denylist YAML (default from policy)")
	checkCmd.Flags().StringVarP(&checkFormat, "format", "f", "text", "Output format (text|json)")
	checkCmd.Flags().BoolVar(&checkFailures, "failures-only", false, "Report only scenario files with failing cases")
}

var checkCmd = &cobra.Command{
	Use:   "check [pattern...]",
	Short: "Assert expected decisions for scenario transfers",
	Long: "Each scenario file lists transfers with the sender balance in whole\n" +
		"tokens and the expected decision (approve, confirm or block), risk level\n" +
		"and reason substrings. Patterns come from arguments or --scenario.\n\n" +
		"Exit code 0 if every case passes, 1 if any fails.\n" +
		"Run in CI before rolling out a policy change.",
	RunE: runCheck,
}

// scenarioFiles expands every pattern and returns the matches sorted,
// each file once.
func scenarioFiles(patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("no scenario pattern given; pass a glob or --scenario")
	}
	seen := make(map[string]bool)
	var files []string
	for _, pattern := range patterns {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid glob pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no scenario files match pattern: %s", pattern)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	files, err := scenarioFiles(append(append([]string(nil), args...), checkScenarios...))
	if err != nil {
		return err
	}

	var results []*scenario.RunResult
	failed := false
	for _, path := range files {
		r, err := scenario.LoadAndRun(path, policyPath, checkDenylist)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if r.Failed > 0 {
			failed = true
		} else if checkFailures {
			continue
		}
		results = append(results, r)
	}

	switch checkFormat {
	case "json":
		out, err := scenario.FormatJSON(results)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
	default:
		if len(results) == 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%d scenario files, all cases passed\n", len(files))
		} else {
			fmt.Fprint(cmd.OutOrStdout(), scenario.FormatText(results))
		}
	}

	if failed {
		return &exitError{code: exitScenarioFailure}
	}
	return nil
}

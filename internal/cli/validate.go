package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/ppiankov/transferguard/internal/client"
	"github.com/ppiankov/transferguard/internal/guard"
	"github.com/ppiankov/transferguard/internal/safety"
)

var (
	validateFrom        string
	validateTo          string
	validateAmount      string
	validateHuman       string
	validateDecimals    int
	validateBalance     string
	validateConfirmTo   string
	validateRemote      string
	validateInteractive bool
	validateJSON        bool
)

func init() {
	rootCmd.AddCommand(validateCmd)
	f := validateCmd.Flags()
	f.StringVar(&validateFrom, "from", "", "Sender address (required)")
	f.StringVar(&validateTo, "to", "", "Recipient address (required)")
	f.StringVar(&validateAmount, "amount", "", "Amount in base units")
	f.StringVar(&validateHuman, "human", "", "Amount in whole tokens, as typed (e.g. 1.5)")
	f.IntVar(&validateDecimals, "decimals", -1, "Token decimals (default from policy)")
	f.StringVar(&validateBalance, "balance", "", "Sender balance in base units; skips the RPC lookup")
	f.StringVar(&validateConfirmTo, "confirm-to", "", "Recipient typed a second time")
	f.StringVar(&validateRemote, "remote", "", "Check through a transferguard server at host:port")
	f.BoolVarP(&validateInteractive, "interactive", "i", false, "Prompt for confirmation when the transfer needs it")
	f.BoolVar(&validateJSON, "json", false, "Print the result as JSON")
	validateCmd.MarkFlagRequired("from")
	validateCmd.MarkFlagRequired("to")
	validateCmd.MarkFlagsMutuallyExclusive("amount", "human")
	validateCmd.MarkFlagsOneRequired("amount", "human")
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Run the safety checks on a proposed transfer",
	Long: "Verifies both addresses, validates the amount against the sender balance\n" +
		"and prints the aggregated decision. The balance comes from --balance or\n" +
		"from the RPC endpoint in the policy.\n\n" +
		"Exit code 0 approve, 2 block, 3 confirmation required, 1 error.",
	RunE: runValidate,
}

// checker is what validate needs from a local service or a remote server.
type checker interface {
	check(ctx context.Context, req guard.Request) (*guard.Result, error)
	approve(ctx context.Context, key string) error
	deny(ctx context.Context, key string) error
	close() error
}

type localChecker struct{ svc *guard.Service }

func (l localChecker) check(ctx context.Context, req guard.Request) (*guard.Result, error) {
	return l.svc.Handle(ctx, req)
}

func (l localChecker) approve(ctx context.Context, key string) error {
	if l.svc.Approvals() == nil {
		return errors.New("confirmations are not enabled")
	}
	return l.svc.Approvals().Approve(key, 0)
}

func (l localChecker) deny(ctx context.Context, key string) error {
	if l.svc.Approvals() == nil {
		return nil
	}
	return l.svc.Approvals().Deny(key)
}

func (l localChecker) close() error { return l.svc.Close() }

type remoteChecker struct{ c *client.Client }

func (r remoteChecker) check(ctx context.Context, req guard.Request) (*guard.Result, error) {
	return r.c.Validate(ctx, req)
}

func (r remoteChecker) approve(ctx context.Context, key string) error {
	return r.c.Approve(ctx, key, 0)
}

func (r remoteChecker) deny(ctx context.Context, key string) error {
	return r.c.Deny(ctx, key)
}

func (r remoteChecker) close() error { return r.c.Close() }

func openChecker(remote string) (checker, error) {
	if remote != "" {
		c, err := client.New(remote)
		if err != nil {
			return nil, err
		}
		return remoteChecker{c: c}, nil
	}
	svc, err := guard.Open(guard.Options{PolicyPath: policyPath, Logger: logger})
	if err != nil {
		return nil, err
	}
	return localChecker{svc: svc}, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runValidate(cmd *cobra.Command, args []string) error {
	req := guard.Request{
		From:      validateFrom,
		To:        validateTo,
		Amount:    validateAmount,
		Human:     validateHuman,
		Balance:   validateBalance,
		ConfirmTo: validateConfirmTo,
	}
	if validateDecimals >= 0 {
		if validateDecimals > 255 {
			return fmt.Errorf("decimals must be between 0 and 255, got %d", validateDecimals)
		}
		d := uint8(validateDecimals)
		req.Decimals = &d
	}
	if validateInteractive && !stdinInteractive() {
		return errors.New("--interactive needs a terminal on stdin")
	}

	ctx, cancel := signalContext()
	defer cancel()

	chk, err := openChecker(validateRemote)
	if err != nil {
		return err
	}
	defer chk.close()

	res, err := chk.check(ctx, req)
	if err != nil {
		return err
	}

	if res.Decision == safety.Confirm && validateInteractive {
		res, err = promptConfirmation(ctx, chk, req, res)
		if err != nil {
			return err
		}
	}

	return reportResult(cmd.OutOrStdout(), res, validateJSON)
}

// promptConfirmation asks a human to confirm and re-runs the check when
// they do. A refusal denies the confirmation key.
func promptConfirmation(ctx context.Context, chk checker, req guard.Request, res *guard.Result) (*guard.Result, error) {
	printReport(os.Stderr, res.Report, res.Decision)

	var ok bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Send " + res.Report.AmountDisplay + " to " + res.Report.ToDisplay + "?").
				Description("This transfer needs explicit confirmation.").
				Affirmative("Send").
				Negative("Cancel").
				Value(&ok),
		),
	).WithShowHelp(false)
	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("confirmation prompt: %w", err)
	}

	if !ok || res.ConfirmKey == "" {
		if res.ConfirmKey != "" {
			if err := chk.deny(ctx, res.ConfirmKey); err != nil {
				logger.WithError(err).Warn("failed to deny confirmation")
			}
		}
		return res, nil
	}

	if err := chk.approve(ctx, res.ConfirmKey); err != nil {
		return nil, fmt.Errorf("approve %s: %w", res.ConfirmKey, err)
	}
	return chk.check(ctx, req)
}

// reportResult prints res and maps the decision to an exit code.
func reportResult(w io.Writer, res *guard.Result, asJSON bool) error {
	if asJSON {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(data))
	} else {
		printReport(w, res.Report, res.Decision)
		if res.Confirmed {
			fmt.Fprintln(w, styleDim.Render("confirmed by "+res.ConfirmKey))
		}
		if res.Decision == safety.Confirm && res.ConfirmKey != "" {
			fmt.Fprintf(w, "\nConfirmation required. To proceed run:\n  transferguard approve %s\n", res.ConfirmKey)
		}
	}

	switch res.Decision {
	case safety.Block:
		return &exitError{code: exitBlocked}
	case safety.Confirm:
		return &exitError{code: exitNeedsConfirm}
	}
	return nil
}

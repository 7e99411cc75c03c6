package scenario

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/transferguard/internal/address"
	"github.com/ppiankov/transferguard/internal/amount"
	"github.com/ppiankov/transferguard/internal/denylist"
	"github.com/ppiankov/transferguard/internal/policy"
	"github.com/ppiankov/transferguard/internal/safety"
)

// Run evaluates all cases in a scenario against the given policy and
// denylist. Cases are independent: each one carries its own balance.
func Run(s *Scenario, cfg *policy.PolicyConfig, dl *denylist.Denylist) *RunResult {
	result := &RunResult{
		Name:  s.Name,
		Total: len(s.Cases),
		Cases: []CaseResult{},
	}

	evalCfg := *cfg
	if s.StrictMode != nil {
		evalCfg.StrictMode = *s.StrictMode
	}
	if s.TokenPriceUSD != nil {
		evalCfg.TokenPriceUSD = s.TokenPriceUSD
	}
	if s.Decimals != nil {
		evalCfg.Decimals = *s.Decimals
	}

	var opts []safety.Option
	if dl != nil {
		opts = append(opts, safety.WithAddressScreen(dl))
	}
	p, protoErr := evalCfg.Protocol(opts...)

	for i, c := range s.Cases {
		cr := CaseResult{
			Index:        i + 1,
			From:         address.Shorten(strings.TrimSpace(c.Transfer.From)),
			To:           address.Shorten(strings.TrimSpace(c.Transfer.To)),
			Expected:     strings.ToLower(strings.TrimSpace(c.Expect)),
			ExpectedRisk: strings.ToUpper(strings.TrimSpace(c.Risk)),
		}

		r, err := evaluate(p, protoErr, c, evalCfg.Decimals)
		if err != nil {
			cr.Actual = "error"
			cr.Reason = err.Error()
		} else {
			cr.Amount = r.AmountDisplay
			cr.Actual = string(r.Decision())
			cr.ActualRisk = r.RiskLevel.String()
			cr.Missing = missing(r.Reasons(), c.Contains)
			if reasons := r.Reasons(); len(reasons) > 0 {
				cr.Reason = reasons[0]
			}
		}

		cr.Passed = err == nil &&
			cr.Actual == cr.Expected &&
			(cr.ExpectedRisk == "" || cr.ExpectedRisk == cr.ActualRisk) &&
			len(cr.Missing) == 0
		if cr.Passed {
			result.Passed++
		} else {
			result.Failed++
		}

		result.Cases = append(result.Cases, cr)
	}

	return result
}

func evaluate(p *safety.Protocol, protoErr error, c Case, decimals uint8) (*safety.Report, error) {
	if protoErr != nil {
		return nil, protoErr
	}
	amt, err := amount.HumanToToken(c.Transfer.Amount, decimals)
	if err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	bal, err := amount.HumanToToken(c.Balance, decimals)
	if err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}
	return p.Evaluate(safety.Transfer{
		From:      c.Transfer.From,
		To:        c.Transfer.To,
		Amount:    amt,
		Decimals:  decimals,
		Input:     c.Transfer.Input,
		ConfirmTo: c.Transfer.ConfirmTo,
	}, bal), nil
}

// missing returns the wanted substrings that no reason contains.
func missing(reasons, want []string) []string {
	var out []string
	for _, w := range want {
		found := false
		for _, r := range reasons {
			if strings.Contains(r, w) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, w)
		}
	}
	return out
}

// Load parses a scenario YAML file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario %s: %w", path, err)
	}

	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse scenario %s: %w", path, err)
	}
	if s.Name == "" {
		s.Name = path
	}
	return &s, nil
}

// LoadAndRun loads a scenario YAML file, loads policy and denylist, and runs.
// A non-empty denylistPath replaces the one the policy names.
func LoadAndRun(path, policyPath, denylistPath string) (*RunResult, error) {
	s, err := Load(path)
	if err != nil {
		return nil, err
	}

	cfg, err := policy.LoadConfig(policyPath)
	if err != nil {
		return nil, fmt.Errorf("load policy: %w", err)
	}
	if denylistPath != "" {
		cfg.DenylistPath = denylistPath
	}

	dl, err := cfg.LoadDenylist()
	if err != nil {
		return nil, fmt.Errorf("load denylist: %w", err)
	}

	result := Run(s, cfg, dl)
	result.File = path

	return result, nil
}

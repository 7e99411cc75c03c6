package mcp

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/transferguard/internal/address"
	"github.com/ppiankov/transferguard/internal/amount"
	"github.com/ppiankov/transferguard/internal/guard"
)

// --- Input/Output types ---

// ValidateInput defines parameters for the transferguard_validate tool.
type ValidateInput struct {
	From      string `json:"from" jsonschema:"sender address"`
	To        string `json:"to" jsonschema:"recipient address"`
	Amount    string `json:"amount,omitempty" jsonschema:"amount in base units; set this or human"`
	Human     string `json:"human,omitempty" jsonschema:"amount in whole tokens as the user typed it, e.g. 1.5"`
	Decimals  *uint8 `json:"decimals,omitempty" jsonschema:"token decimals, defaults to the policy's"`
	Balance   string `json:"balance,omitempty" jsonschema:"sender balance in base units; omit to query the chain"`
	ConfirmTo string `json:"confirm_to,omitempty" jsonschema:"recipient typed a second time by the user"`
}

// ValidateOutput is the verdict on a transfer.
type ValidateOutput struct {
	ReportID   string   `json:"report_id"`
	Decision   string   `json:"decision"`
	RiskLevel  string   `json:"risk_level"`
	Approved   bool     `json:"approved"`
	Warnings   []string `json:"warnings"`
	Blockers   []string `json:"blockers"`
	Summary    string   `json:"summary"`
	ConfirmKey string   `json:"confirm_key,omitempty"`
	Confirmed  bool     `json:"confirmed,omitempty"`
}

// AddressInput defines parameters for the transferguard_verify_address tool.
type AddressInput struct {
	Address string `json:"address" jsonschema:"address to verify"`
}

// AddressOutput reports whether an address is well-formed.
type AddressOutput struct {
	Valid        bool   `json:"valid"`
	ShortDisplay string `json:"short_display,omitempty"`
	Kind         string `json:"kind,omitempty"`
	Error        string `json:"error,omitempty"`
}

// CompareInput defines parameters for the transferguard_compare_addresses tool.
type CompareInput struct {
	A string `json:"a" jsonschema:"first address"`
	B string `json:"b" jsonschema:"second address"`
}

// ConvertInput defines parameters for the transferguard_convert tool.
type ConvertInput struct {
	Human    string `json:"human,omitempty" jsonschema:"whole-token amount to convert to base units"`
	Amount   string `json:"amount,omitempty" jsonschema:"base-unit amount to convert to whole tokens"`
	Decimals *uint8 `json:"decimals,omitempty" jsonschema:"token decimals, defaults to the policy's"`
}

// ConvertOutput carries both forms of the amount.
type ConvertOutput struct {
	Amount    string `json:"amount"`
	Human     string `json:"human"`
	Formatted string `json:"formatted"`
}

// MagnitudeInput defines parameters for the transferguard_check_magnitude tool.
type MagnitudeInput struct {
	Input    string  `json:"input" jsonschema:"amount exactly as the user typed it"`
	Actual   float64 `json:"actual" jsonschema:"human amount the transfer will send"`
	Decimals *uint8  `json:"decimals,omitempty" jsonschema:"token decimals, defaults to the policy's"`
}

// ApproveInput defines parameters for the transferguard_approve tool.
type ApproveInput struct {
	Key      string `json:"key" jsonschema:"confirm_key from a validate result"`
	Duration string `json:"duration,omitempty" jsonschema:"approval duration (e.g. 5m), omit for one-time approval"`
}

// ApproveOutput confirms the approval.
type ApproveOutput struct {
	Key      string `json:"key"`
	Status   string `json:"status"`
	Duration string `json:"duration,omitempty"`
}

// PendingInput takes no parameters.
type PendingInput struct{}

// PendingOutput lists all confirmations.
type PendingOutput struct {
	Approvals []PendingItem `json:"approvals"`
}

// PendingItem describes a single confirmation request.
type PendingItem struct {
	Key       string   `json:"key"`
	Status    string   `json:"status"`
	From      string   `json:"from"`
	To        string   `json:"to"`
	Amount    string   `json:"amount"`
	Risk      string   `json:"risk"`
	Reasons   []string `json:"reasons"`
	CreatedAt string   `json:"created_at"`
}

// --- Handlers ---

func (s *Server) handleValidate(ctx context.Context, req *mcpsdk.CallToolRequest, input ValidateInput) (*mcpsdk.CallToolResult, ValidateOutput, error) {
	res, err := s.svc.Handle(ctx, guard.Request{
		From:      input.From,
		To:        input.To,
		Amount:    input.Amount,
		Human:     input.Human,
		Decimals:  input.Decimals,
		Balance:   input.Balance,
		ConfirmTo: input.ConfirmTo,
	})
	if err != nil {
		return nil, ValidateOutput{}, err
	}

	r := res.Report
	out := ValidateOutput{
		ReportID:   res.ID,
		Decision:   string(res.Decision),
		RiskLevel:  r.RiskLevel.String(),
		Approved:   r.Approved,
		Warnings:   r.Warnings,
		Blockers:   r.Blockers,
		Summary:    r.Summary(),
		ConfirmKey: res.ConfirmKey,
		Confirmed:  res.Confirmed,
	}
	if !r.Approved {
		return &mcpsdk.CallToolResult{IsError: true}, out, nil
	}
	return nil, out, nil
}

func (s *Server) handleVerifyAddress(ctx context.Context, req *mcpsdk.CallToolRequest, input AddressInput) (*mcpsdk.CallToolResult, AddressOutput, error) {
	v, err := address.VerifyFull(input.Address)
	if err != nil {
		out := AddressOutput{Error: err.Error()}
		var aerr *address.Error
		if errors.As(err, &aerr) {
			out.Kind = aerr.Kind.String()
		}
		return nil, out, nil
	}
	return nil, AddressOutput{Valid: true, ShortDisplay: v.ShortDisplay}, nil
}

func (s *Server) handleCompare(ctx context.Context, req *mcpsdk.CallToolRequest, input CompareInput) (*mcpsdk.CallToolResult, address.Comparison, error) {
	return nil, address.Compare(input.A, input.B), nil
}

func (s *Server) decimals(d *uint8) uint8 {
	if d != nil {
		return *d
	}
	return s.svc.Policy().Decimals
}

func (s *Server) handleConvert(ctx context.Context, req *mcpsdk.CallToolRequest, input ConvertInput) (*mcpsdk.CallToolResult, ConvertOutput, error) {
	decimals := s.decimals(input.Decimals)
	human := strings.TrimSpace(input.Human)
	base := strings.TrimSpace(input.Amount)

	var amt uint64
	switch {
	case human != "" && base != "":
		return nil, ConvertOutput{}, errors.New("set only one of human and amount")
	case human != "":
		f, err := strconv.ParseFloat(human, 64)
		if err != nil {
			return nil, ConvertOutput{}, fmt.Errorf("human amount %q is not a number", input.Human)
		}
		if amt, err = amount.HumanToToken(f, decimals); err != nil {
			return nil, ConvertOutput{}, err
		}
	case base != "":
		v, err := strconv.ParseUint(base, 10, 64)
		if err != nil {
			return nil, ConvertOutput{}, fmt.Errorf("amount %q is not a base-unit integer", input.Amount)
		}
		amt = v
	default:
		return nil, ConvertOutput{}, errors.New("human or amount is required")
	}

	return nil, ConvertOutput{
		Amount:    strconv.FormatUint(amt, 10),
		Human:     amount.Format(amt, decimals),
		Formatted: amount.FormatWithSymbol(amt, decimals, s.svc.Protocol().Symbol()),
	}, nil
}

func (s *Server) handleMagnitude(ctx context.Context, req *mcpsdk.CallToolRequest, input MagnitudeInput) (*mcpsdk.CallToolResult, amount.MagnitudeCheck, error) {
	return nil, amount.DetectMagnitudeError(input.Input, input.Actual, s.decimals(input.Decimals)), nil
}

func (s *Server) handleApprove(ctx context.Context, req *mcpsdk.CallToolRequest, input ApproveInput) (*mcpsdk.CallToolResult, ApproveOutput, error) {
	store := s.svc.Approvals()
	if store == nil {
		return nil, ApproveOutput{}, errors.New("confirmations are not enabled")
	}

	var duration time.Duration
	if input.Duration != "" {
		var err error
		duration, err = time.ParseDuration(input.Duration)
		if err != nil {
			return nil, ApproveOutput{}, fmt.Errorf("invalid duration %q: %w", input.Duration, err)
		}
	}

	if err := store.Approve(input.Key, duration); err != nil {
		return nil, ApproveOutput{}, err
	}

	out := ApproveOutput{
		Key:    input.Key,
		Status: "approved",
	}
	if duration > 0 {
		out.Duration = duration.String()
	}
	return nil, out, nil
}

func (s *Server) handlePending(ctx context.Context, req *mcpsdk.CallToolRequest, input PendingInput) (*mcpsdk.CallToolResult, PendingOutput, error) {
	store := s.svc.Approvals()
	if store == nil {
		return nil, PendingOutput{Approvals: []PendingItem{}}, nil
	}
	list, err := store.List()
	if err != nil {
		return nil, PendingOutput{}, err
	}

	items := make([]PendingItem, 0, len(list))
	for _, a := range list {
		items = append(items, PendingItem{
			Key:       a.Key,
			Status:    string(a.Status),
			From:      a.From,
			To:        a.To,
			Amount:    a.Amount,
			Risk:      a.Risk,
			Reasons:   a.Reasons,
			CreatedAt: a.CreatedAt.Format(time.RFC3339),
		})
	}
	return nil, PendingOutput{Approvals: items}, nil
}

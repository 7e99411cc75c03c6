package mcp

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/transferguard/internal/balance"
	"github.com/ppiankov/transferguard/internal/guard"
)

const (
	alice = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	bob   = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	policyPath := filepath.Join(dir, "policy.yaml")
	body := "audit_log: " + filepath.Join(dir, "audit.jsonl") + "\n" +
		"history_db: " + filepath.Join(dir, "history.db") + "\n" +
		"approval_dir: " + filepath.Join(dir, "pending") + "\n" +
		"denylist_path: " + filepath.Join(dir, "denylist.yaml") + "\n"
	if err := os.WriteFile(policyPath, []byte(body), 0644); err != nil {
		t.Fatalf("write policy: %v", err)
	}

	oracle := balance.NewStaticOracle(map[solana.PublicKey]uint64{
		solana.MustPublicKeyFromBase58(alice): 10_000_000_000,
	})
	svc, err := guard.Open(guard.Options{PolicyPath: policyPath, Oracle: oracle})
	if err != nil {
		t.Fatalf("guard.Open: %v", err)
	}
	t.Cleanup(func() { svc.Close() })

	return New(svc, "test")
}

func TestValidateApproved(t *testing.T) {
	s := newTestServer(t)

	result, out, err := s.handleValidate(context.Background(), &mcpsdk.CallToolRequest{}, ValidateInput{
		From: alice, To: bob, Human: "1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != nil && result.IsError {
		t.Fatal("expected success, got error result")
	}
	if out.Decision != "approve" || out.RiskLevel != "LOW" {
		t.Errorf("expected approve/LOW, got %s/%s", out.Decision, out.RiskLevel)
	}
	if out.ReportID == "" {
		t.Error("expected report id")
	}
	if !strings.HasPrefix(out.Summary, "Safety Report: APPROVED") {
		t.Errorf("unexpected summary %q", out.Summary)
	}
}

func TestValidateBlocked(t *testing.T) {
	s := newTestServer(t)

	result, out, err := s.handleValidate(context.Background(), &mcpsdk.CallToolRequest{}, ValidateInput{
		From: alice, To: bob, Human: "20",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result == nil || !result.IsError {
		t.Fatal("expected IsError result for blocked transfer")
	}
	if out.Decision != "block" || out.RiskLevel != "CRITICAL" {
		t.Errorf("expected block/CRITICAL, got %s/%s", out.Decision, out.RiskLevel)
	}
	if len(out.Blockers) == 0 {
		t.Error("expected blockers")
	}
}

func TestValidateInvalidInput(t *testing.T) {
	s := newTestServer(t)

	_, _, err := s.handleValidate(context.Background(), &mcpsdk.CallToolRequest{}, ValidateInput{
		From: alice, To: bob, Amount: "1", Human: "1",
	})
	if err == nil {
		t.Fatal("expected error when both amount and human are set")
	}
}

func TestApproveAndValidate(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	input := ValidateInput{From: alice, To: bob, Human: "10"}

	_, out, err := s.handleValidate(ctx, &mcpsdk.CallToolRequest{}, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Decision != "confirm" || out.ConfirmKey == "" {
		t.Fatalf("expected confirm with key, got %+v", out)
	}

	_, approved, err := s.handleApprove(ctx, &mcpsdk.CallToolRequest{}, ApproveInput{Key: out.ConfirmKey})
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if approved.Status != "approved" || approved.Duration != "" {
		t.Errorf("unexpected approve output %+v", approved)
	}

	_, out, err = s.handleValidate(ctx, &mcpsdk.CallToolRequest{}, input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Decision != "approve" || !out.Confirmed {
		t.Errorf("expected confirmed approve, got %+v", out)
	}
}

func TestApproveWithDuration(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, out, _ := s.handleValidate(ctx, &mcpsdk.CallToolRequest{}, ValidateInput{From: alice, To: bob, Human: "10"})

	_, approved, err := s.handleApprove(ctx, &mcpsdk.CallToolRequest{}, ApproveInput{Key: out.ConfirmKey, Duration: "5m"})
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if approved.Duration != "5m0s" {
		t.Errorf("expected duration 5m0s, got %q", approved.Duration)
	}

	if _, _, err := s.handleApprove(ctx, &mcpsdk.CallToolRequest{}, ApproveInput{Key: out.ConfirmKey, Duration: "later"}); err == nil {
		t.Error("expected error for invalid duration")
	}
	if _, _, err := s.handleApprove(ctx, &mcpsdk.CallToolRequest{}, ApproveInput{Key: "tx-unknown"}); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestPendingList(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, out, err := s.handlePending(ctx, &mcpsdk.CallToolRequest{}, PendingInput{})
	if err != nil {
		t.Fatalf("pending failed: %v", err)
	}
	if len(out.Approvals) != 0 {
		t.Fatalf("expected empty list, got %d", len(out.Approvals))
	}

	s.handleValidate(ctx, &mcpsdk.CallToolRequest{}, ValidateInput{From: alice, To: bob, Human: "10"})

	_, out, err = s.handlePending(ctx, &mcpsdk.CallToolRequest{}, PendingInput{})
	if err != nil {
		t.Fatalf("pending failed: %v", err)
	}
	if len(out.Approvals) != 1 {
		t.Fatalf("expected 1 pending, got %d", len(out.Approvals))
	}
	item := out.Approvals[0]
	if item.Status != "pending" || item.Risk != "HIGH" || item.Amount != "10 SOL" {
		t.Errorf("unexpected pending item %+v", item)
	}
}

func TestVerifyAddressTool(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, out, err := s.handleVerifyAddress(ctx, &mcpsdk.CallToolRequest{}, AddressInput{Address: "  " + alice + "\n"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Valid || out.ShortDisplay != "7xKX...gAsU" {
		t.Errorf("unexpected output %+v", out)
	}

	_, out, _ = s.handleVerifyAddress(ctx, &mcpsdk.CallToolRequest{}, AddressInput{Address: ""})
	if out.Valid || out.Kind != "empty_address" {
		t.Errorf("expected empty_address, got %+v", out)
	}
}

func TestCompareTool(t *testing.T) {
	s := newTestServer(t)

	_, out, err := s.handleCompare(context.Background(), &mcpsdk.CallToolRequest{}, CompareInput{A: alice, B: alice})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Matches || out.DifferenceCount != 0 {
		t.Errorf("expected match, got %+v", out)
	}
}

func TestConvertTool(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	_, out, err := s.handleConvert(ctx, &mcpsdk.CallToolRequest{}, ConvertInput{Human: "1.5"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Amount != "1500000000" || out.Human != "1.500000000" || out.Formatted != "1.5 SOL" {
		t.Errorf("unexpected conversion %+v", out)
	}

	six := uint8(6)
	_, out, err = s.handleConvert(ctx, &mcpsdk.CallToolRequest{}, ConvertInput{Amount: "2500000", Decimals: &six})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Human != "2.500000" {
		t.Errorf("expected 2.500000, got %q", out.Human)
	}

	for _, in := range []ConvertInput{{}, {Human: "-1"}, {Human: "x"}, {Amount: "1.5"}, {Human: "1", Amount: "1"}} {
		if _, _, err := s.handleConvert(ctx, &mcpsdk.CallToolRequest{}, in); err == nil {
			t.Errorf("expected error for %+v", in)
		}
	}
}

func TestMagnitudeTool(t *testing.T) {
	s := newTestServer(t)

	_, out, err := s.handleMagnitude(context.Background(), &mcpsdk.CallToolRequest{}, MagnitudeInput{Input: "1000", Actual: 1000})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.LikelyError || out.IntendedAmount != 1 {
		t.Errorf("expected European notation hint, got %+v", out)
	}
}

func TestToolRegistration(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()

	serverTransport, clientTransport := mcpsdk.NewInMemoryTransports()
	if _, err := s.mcpServer.Connect(ctx, serverTransport, nil); err != nil {
		t.Fatalf("server connect: %v", err)
	}
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test", Version: "0"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	defer session.Close()

	res, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	var names []string
	for _, tool := range res.Tools {
		names = append(names, tool.Name)
	}
	sort.Strings(names)

	want := []string{
		"transferguard_approve",
		"transferguard_check_magnitude",
		"transferguard_compare_addresses",
		"transferguard_convert",
		"transferguard_pending",
		"transferguard_validate",
		"transferguard_verify_address",
	}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("expected tools %v, got %v", want, names)
	}
}

package safety

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/ppiankov/transferguard/internal/amount"
)

const (
	addrA = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	addrB = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	sol   = amount.LamportsPerSOL
)

func containsAny(list []string, sub string) bool {
	for _, s := range list {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// checkInvariants asserts the report invariants that hold for every input.
func checkInvariants(t *testing.T, r *Report) {
	t.Helper()
	if r.Approved != (len(r.Blockers) == 0) {
		t.Errorf("approved=%v with %d blockers", r.Approved, len(r.Blockers))
	}
	if r.RequiresConfirmation != (r.RiskLevel >= High) {
		t.Errorf("requires_confirmation=%v at risk %s", r.RequiresConfirmation, r.RiskLevel)
	}
	if len(r.Blockers) > 0 && r.RiskLevel != Critical {
		t.Errorf("blockers present but risk is %s", r.RiskLevel)
	}
}

func TestNewDefaults(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatal(err)
	}
	if p.StrictMode() {
		t.Error("strict mode should be off by default")
	}
	if p.LargeAmountThresholdUSD() != 1000 {
		t.Errorf("expected default threshold 1000, got %v", p.LargeAmountThresholdUSD())
	}
	if _, ok := p.TokenPriceUSD(); ok {
		t.Error("expected no token price")
	}
}

func TestNewOptions(t *testing.T) {
	p, err := New(WithStrictMode(), WithLargeAmountThreshold(500), WithTokenPrice(100))
	if err != nil {
		t.Fatal(err)
	}
	if !p.StrictMode() {
		t.Error("expected strict mode")
	}
	if p.LargeAmountThresholdUSD() != 500 {
		t.Errorf("expected 500, got %v", p.LargeAmountThresholdUSD())
	}
	if price, ok := p.TokenPriceUSD(); !ok || price != 100 {
		t.Errorf("expected price 100, got %v %v", price, ok)
	}
}

func TestNewRejectsInvalidFields(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"zero threshold", []Option{WithLargeAmountThreshold(0)}},
		{"negative threshold", []Option{WithLargeAmountThreshold(-5)}},
		{"negative price", []Option{WithTokenPrice(-1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.opts...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRiskLevelOrdering(t *testing.T) {
	if !(Low < Medium && Medium < High && High < Critical) {
		t.Error("risk levels out of order")
	}
	for _, lvl := range []RiskLevel{Low, Medium, High} {
		if lvl.IsBlocking() {
			t.Errorf("%s should not block", lvl)
		}
	}
	if !Critical.IsBlocking() {
		t.Error("critical must block")
	}
	if Low.RequiresConfirmation() || Medium.RequiresConfirmation() {
		t.Error("low/medium should not need confirmation")
	}
	if !High.RequiresConfirmation() || !Critical.RequiresConfirmation() {
		t.Error("high/critical need confirmation")
	}
}

func TestRiskLevelText(t *testing.T) {
	for _, lvl := range []RiskLevel{Low, Medium, High, Critical} {
		b, _ := lvl.MarshalText()
		var back RiskLevel
		if err := back.UnmarshalText(b); err != nil || back != lvl {
			t.Errorf("round trip of %s failed: %v", lvl, err)
		}
	}
	if _, err := ParseRiskLevel("severe"); err == nil {
		t.Error("expected error for unknown level")
	}
	if lvl, _ := ParseRiskLevel(" high "); lvl != High {
		t.Errorf("expected HIGH, got %s", lvl)
	}
}

func TestValidTransferApproved(t *testing.T) {
	r := MustNew().ValidateOffline(addrA, addrB, 1*sol, 9, 10*sol)
	checkInvariants(t, r)

	if !r.Approved {
		t.Errorf("expected approved, blockers: %v", r.Blockers)
	}
	if r.RiskLevel != Low {
		t.Errorf("expected LOW, got %s", r.RiskLevel)
	}
	if len(r.Warnings) != 0 || len(r.Blockers) != 0 {
		t.Errorf("expected clean report, got %v / %v", r.Warnings, r.Blockers)
	}
	if r.Decision() != Approve {
		t.Errorf("expected approve, got %s", r.Decision())
	}
	if r.FromDisplay != "7xKX...gAsU" || r.ToDisplay != "9WzD...AWWM" {
		t.Errorf("unexpected displays %s %s", r.FromDisplay, r.ToDisplay)
	}
}

func TestInsufficientBalanceBlocked(t *testing.T) {
	r := MustNew().ValidateOffline(addrA, addrB, 20*sol, 9, 10*sol)
	checkInvariants(t, r)

	if r.Approved {
		t.Error("expected blocked")
	}
	if r.RiskLevel != Critical {
		t.Errorf("expected CRITICAL, got %s", r.RiskLevel)
	}
	if !containsAny(r.Blockers, "exceeds balance") {
		t.Errorf("expected exceeds-balance blocker, got %v", r.Blockers)
	}
	if r.Decision() != Block {
		t.Errorf("expected block, got %s", r.Decision())
	}
}

func TestZeroAmountBlocked(t *testing.T) {
	r := MustNew().ValidateOffline(addrA, addrB, 0, 9, 10*sol)
	checkInvariants(t, r)

	if r.Approved {
		t.Error("expected blocked")
	}
	if !containsAny(r.Blockers, "zero") {
		t.Errorf("expected zero blocker, got %v", r.Blockers)
	}
}

func TestFullBalanceWarning(t *testing.T) {
	r := MustNew().ValidateOffline(addrA, addrB, 10*sol, 9, 10*sol)
	checkInvariants(t, r)

	if !r.Approved {
		t.Error("expected approved")
	}
	if r.RiskLevel < High {
		t.Errorf("expected at least HIGH, got %s", r.RiskLevel)
	}
	if !containsAny(r.Warnings, "entire balance") {
		t.Errorf("expected entire balance warning, got %v", r.Warnings)
	}
	if !r.RequiresConfirmation {
		t.Error("expected confirmation")
	}
	if r.Decision() != Confirm {
		t.Errorf("expected confirm, got %s", r.Decision())
	}
}

func TestMostOfBalanceIsMedium(t *testing.T) {
	r := MustNew().ValidateOffline(addrA, addrB, 95*sol/10, 9, 10*sol)
	checkInvariants(t, r)

	if r.RiskLevel != Medium {
		t.Errorf("expected MEDIUM, got %s", r.RiskLevel)
	}
	if r.RequiresConfirmation {
		t.Error("medium risk does not require confirmation at the report level")
	}
}

func TestLargeAmountWarning(t *testing.T) {
	p := MustNew(WithTokenPrice(100), WithLargeAmountThreshold(1000))
	r := p.ValidateOffline(addrA, addrB, 15*sol, 9, 100*sol)
	checkInvariants(t, r)

	if !r.Approved {
		t.Error("expected approved")
	}
	if r.RiskLevel < High {
		t.Errorf("expected at least HIGH, got %s", r.RiskLevel)
	}
	if !containsAny(r.Warnings, "Large transfer") {
		t.Errorf("expected large transfer warning, got %v", r.Warnings)
	}
	if !containsAny(r.Warnings, "~$1500.00 USD exceeds $1000 threshold") {
		t.Errorf("unexpected large transfer text: %v", r.Warnings)
	}
	if !r.RequiresConfirmation {
		t.Error("expected confirmation")
	}
}

func TestLargeAmountThresholdInclusive(t *testing.T) {
	p := MustNew(WithTokenPrice(100), WithLargeAmountThreshold(1000))
	r := p.ValidateOffline(addrA, addrB, 10*sol, 9, 100*sol)
	if !containsAny(r.Warnings, "Large transfer") {
		t.Errorf("exactly at threshold must warn, got %v", r.Warnings)
	}
	r = p.ValidateOffline(addrA, addrB, 9*sol, 9, 100*sol)
	if containsAny(r.Warnings, "Large transfer") {
		t.Errorf("below threshold must not warn, got %v", r.Warnings)
	}
}

func TestNoPriceNoLargeAmountCheck(t *testing.T) {
	r := MustNew(WithLargeAmountThreshold(1)).ValidateOffline(addrA, addrB, 50*sol, 9, 100*sol)
	if len(r.Warnings) != 0 {
		t.Errorf("expected no warnings without a price, got %v", r.Warnings)
	}
}

func TestSelfTransferWarning(t *testing.T) {
	r := MustNew().ValidateOffline(addrA, addrA, 1*sol, 9, 10*sol)
	checkInvariants(t, r)

	if !r.Approved {
		t.Error("expected approved")
	}
	if r.RiskLevel < Medium {
		t.Errorf("expected at least MEDIUM, got %s", r.RiskLevel)
	}
	if !containsAny(r.Warnings, "yourself") {
		t.Errorf("expected self-transfer warning, got %v", r.Warnings)
	}
}

func TestSelfTransferIgnoresWhitespace(t *testing.T) {
	r := MustNew().ValidateOffline(" "+addrA, addrA+" ", 1*sol, 9, 10*sol)
	if !containsAny(r.Warnings, "yourself") {
		t.Errorf("expected self-transfer warning, got %v", r.Warnings)
	}
}

func TestStrictModeBlocksWarnings(t *testing.T) {
	r := MustNew(WithStrictMode()).ValidateOffline(addrA, addrA, 1*sol, 9, 10*sol)
	checkInvariants(t, r)

	if r.Approved {
		t.Error("expected blocked")
	}
	if r.RiskLevel != Critical {
		t.Errorf("expected CRITICAL, got %s", r.RiskLevel)
	}
	if !containsAny(r.Blockers, "STRICT: Sending to yourself") {
		t.Errorf("expected STRICT blocker, got %v", r.Blockers)
	}
	if len(r.Warnings) != 0 {
		t.Errorf("expected warnings moved to blockers, got %v", r.Warnings)
	}
}

func TestStrictModeCleanTransferApproved(t *testing.T) {
	r := MustNew(WithStrictMode()).ValidateOffline(addrA, addrB, 1*sol, 9, 10*sol)
	checkInvariants(t, r)
	if !r.Approved || r.RiskLevel != Low {
		t.Errorf("strict mode must not affect clean transfers: %+v", r)
	}
}

func TestStrictModeKeepsOrder(t *testing.T) {
	p := MustNew(WithStrictMode(), WithTokenPrice(100), WithLargeAmountThreshold(500))
	r := p.ValidateOffline(addrA, addrA, 10*sol, 9, 10*sol)
	checkInvariants(t, r)

	want := []string{
		"STRICT: Sending to yourself",
		"STRICT: Sending entire balance. No funds will remain for fees.",
		"STRICT: Large transfer: ~$1000.00 USD exceeds $500 threshold",
	}
	if len(r.Blockers) != len(want) {
		t.Fatalf("expected %d blockers, got %v", len(want), r.Blockers)
	}
	for i := range want {
		if r.Blockers[i] != want[i] {
			t.Errorf("blocker %d = %q, want %q", i, r.Blockers[i], want[i])
		}
	}
}

func TestMultipleWarningsHighestRisk(t *testing.T) {
	p := MustNew(WithTokenPrice(100), WithLargeAmountThreshold(500))
	r := p.ValidateOffline(addrA, addrA, 10*sol, 9, 10*sol)
	checkInvariants(t, r)

	if len(r.Warnings) < 2 {
		t.Errorf("expected multiple warnings, got %v", r.Warnings)
	}
	if r.RiskLevel != High {
		t.Errorf("expected HIGH, got %s", r.RiskLevel)
	}
}

func TestInvalidAddressesBlocked(t *testing.T) {
	r := MustNew().ValidateOffline("0xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU", "short", 1*sol, 9, 10*sol)
	checkInvariants(t, r)

	if r.Approved {
		t.Error("expected blocked")
	}
	if len(r.Blockers) != 2 {
		t.Fatalf("expected 2 blockers, got %v", r.Blockers)
	}
	if !strings.HasPrefix(r.Blockers[0], "Invalid sender address: Invalid base58") {
		t.Errorf("unexpected sender blocker %q", r.Blockers[0])
	}
	if !strings.HasPrefix(r.Blockers[1], "Invalid recipient address: Invalid length") {
		t.Errorf("unexpected recipient blocker %q", r.Blockers[1])
	}
}

func TestChecksDoNotShortCircuit(t *testing.T) {
	r := MustNew().ValidateOffline("", addrB, 20*sol, 9, 10*sol)
	checkInvariants(t, r)

	if !containsAny(r.Blockers, "Invalid sender address") {
		t.Errorf("missing sender blocker: %v", r.Blockers)
	}
	if !containsAny(r.Blockers, "exceeds balance") {
		t.Errorf("missing balance blocker: %v", r.Blockers)
	}
	// The 200% send also produced the entire-balance warning.
	if !containsAny(r.Warnings, "entire balance") {
		t.Errorf("missing entire-balance warning: %v", r.Warnings)
	}
}

type staticScreen map[string]string

func (s staticScreen) Lookup(addr string) (string, bool) {
	label, ok := s[addr]
	return label, ok
}

func TestAddressScreenBlocks(t *testing.T) {
	p := MustNew(WithAddressScreen(staticScreen{addrB: "drainer"}))
	r := p.ValidateOffline(addrA, addrB, 1*sol, 9, 10*sol)
	checkInvariants(t, r)

	if r.Approved {
		t.Error("expected blocked")
	}
	if !containsAny(r.Blockers, "Recipient address is denylisted: drainer") {
		t.Errorf("unexpected blockers %v", r.Blockers)
	}
}

type exhaustedSenders map[string]bool

func (e exhaustedSenders) Exceeded(sender string) (string, bool) {
	if e[sender] {
		return "3/3 transfers in 1h0m0s window", true
	}
	return "", false
}

func TestVelocityScreenRequiresConfirmation(t *testing.T) {
	p := MustNew(WithVelocityScreen(exhaustedSenders{addrA: true}))

	r := p.ValidateOffline(addrA, addrB, 1*sol, 9, 10*sol)
	checkInvariants(t, r)
	if !r.Approved || r.Decision() != Confirm {
		t.Errorf("expected confirm, got %s", r.Decision())
	}
	if !containsAny(r.Warnings, "Sender velocity limit reached: 3/3") {
		t.Errorf("unexpected warnings %v", r.Warnings)
	}

	r = p.ValidateOffline(addrB, addrA, 1*sol, 9, 10*sol)
	if r.Decision() != Approve {
		t.Errorf("expected other sender approved, got %s", r.Decision())
	}

	strict := MustNew(WithStrictMode(), WithVelocityScreen(exhaustedSenders{addrA: true}))
	if d := strict.ValidateOffline(addrA, addrB, 1*sol, 9, 10*sol).Decision(); d != Block {
		t.Errorf("expected strict mode to block, got %s", d)
	}
}

type spendCap uint64

func (c spendCap) Exceeds(sender string, amt uint64, decimals uint8) (string, bool) {
	if amt > uint64(c) {
		return "over cap", true
	}
	return "", false
}

func TestSpendScreenBlocks(t *testing.T) {
	p := MustNew(WithSpendScreen(spendCap(2 * sol)))

	r := p.ValidateOffline(addrA, addrB, 3*sol, 9, 10*sol)
	checkInvariants(t, r)
	if r.Approved {
		t.Error("expected blocked")
	}
	if !containsAny(r.Blockers, "Spend budget exceeded: over cap") {
		t.Errorf("unexpected blockers %v", r.Blockers)
	}

	if r := p.ValidateOffline(addrA, addrB, 1*sol, 9, 10*sol); !r.Approved {
		t.Errorf("expected approved under the cap, got %v", r.Blockers)
	}
}

func TestConfirmRecipientTypo(t *testing.T) {
	typo := addrB[:43] + "N"
	r := MustNew().Evaluate(Transfer{From: addrA, To: addrB, Amount: sol, Decimals: 9, ConfirmTo: typo}, 10*sol)
	checkInvariants(t, r)

	if r.Approved {
		t.Error("expected blocked")
	}
	if !containsAny(r.Blockers, "position 44 (likely typo)") {
		t.Errorf("unexpected blockers %v", r.Blockers)
	}

	r = MustNew().Evaluate(Transfer{From: addrA, To: addrB, Amount: sol, Decimals: 9, ConfirmTo: " " + addrB}, 10*sol)
	if !r.Approved {
		t.Errorf("matching confirmation must pass: %v", r.Blockers)
	}
}

func TestMagnitudeInputWarns(t *testing.T) {
	r := MustNew().Evaluate(Transfer{From: addrA, To: addrB, Amount: 1000 * sol, Decimals: 9, Input: "1000"}, 100_000*sol)
	checkInvariants(t, r)

	if !containsAny(r.Warnings, "Possible magnitude error") {
		t.Errorf("expected magnitude warning, got %v", r.Warnings)
	}
	if !r.Approved {
		t.Error("magnitude warnings are advisory")
	}
	if r.RiskLevel != Medium {
		t.Errorf("expected MEDIUM, got %s", r.RiskLevel)
	}
}

func TestSymbolDisplay(t *testing.T) {
	r := MustNew(WithSymbol("SOL")).ValidateOffline(addrA, addrB, 1_500_000_000, 9, 10*sol)
	if r.AmountDisplay != "1.5 SOL" {
		t.Errorf("expected 1.5 SOL, got %s", r.AmountDisplay)
	}
	r = MustNew().ValidateOffline(addrA, addrB, 1_500_000_000, 9, 10*sol)
	if !strings.Contains(r.AmountDisplay, "1.5") {
		t.Errorf("expected 1.5 in display, got %s", r.AmountDisplay)
	}
}

func TestReportSummary(t *testing.T) {
	r := MustNew().ValidateOffline(addrA, addrB, 1*sol, 9, 10*sol)
	s := r.Summary()
	for _, want := range []string{"APPROVED", "LOW", r.FromDisplay, r.ToDisplay} {
		if !strings.Contains(s, want) {
			t.Errorf("summary missing %q:\n%s", want, s)
		}
	}

	r = MustNew(WithStrictMode()).ValidateOffline(addrA, addrA, 1*sol, 9, 10*sol)
	want := "Safety Report: BLOCKED (Risk: CRITICAL)\n" +
		"Transfer: 7xKX...gAsU -> 7xKX...gAsU\n" +
		"Amount: 1.000000000\n" +
		"Blockers (1):\n" +
		"  - STRICT: Sending to yourself"
	if got := r.Summary(); got != want {
		t.Errorf("summary mismatch:\n%s\nwant:\n%s", got, want)
	}
}

func TestFingerprintStable(t *testing.T) {
	a := Transfer{From: addrA, To: addrB, Amount: 5, Decimals: 9}
	b := Transfer{From: " " + addrA, To: addrB + " ", Amount: 5, Decimals: 9, Input: "x"}
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("fingerprint should ignore whitespace and advisory fields")
	}
	c := Transfer{From: addrA, To: addrB, Amount: 6, Decimals: 9}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("fingerprint must depend on amount")
	}
}

type fakeOracle struct {
	balance uint64
	err     error
	calls   int
	mu      sync.Mutex
}

func (f *fakeOracle) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.balance, f.err
}

func TestValidateFetchesBalance(t *testing.T) {
	oracle := &fakeOracle{balance: 10 * sol}
	r, err := MustNew().Validate(context.Background(), oracle, addrA, addrB, 1*sol, 9)
	if err != nil {
		t.Fatal(err)
	}
	if !r.Approved {
		t.Errorf("expected approved: %v", r.Blockers)
	}
	if oracle.calls != 1 {
		t.Errorf("expected one oracle call, got %d", oracle.calls)
	}
}

func TestValidatePropagatesOracleError(t *testing.T) {
	boom := errors.New("rpc unavailable")
	r, err := MustNew().Validate(context.Background(), &fakeOracle{err: boom}, addrA, addrB, 1*sol, 9)
	if !errors.Is(err, boom) {
		t.Fatalf("expected oracle error, got %v", err)
	}
	if r != nil {
		t.Error("expected no report on oracle failure")
	}
}

func TestValidateInvalidSenderSkipsOracle(t *testing.T) {
	oracle := &fakeOracle{err: errors.New("must not be called")}
	r, err := MustNew().Validate(context.Background(), oracle, "bad", addrB, 1*sol, 9)
	if err != nil {
		t.Fatal(err)
	}
	if oracle.calls != 0 {
		t.Error("oracle should not be called for an undecodable sender")
	}
	want := []string{"Invalid sender address: Invalid length: expected 32-44 characters, got 3"}
	if len(r.Blockers) != len(want) || r.Blockers[0] != want[0] {
		t.Errorf("expected only the sender blocker, got %q", r.Blockers)
	}
	checkInvariants(t, r)
}

func TestEvaluateLookupWithoutBalance(t *testing.T) {
	p := MustNew()

	r := p.EvaluateLookup(Transfer{From: "bad", To: addrB, Amount: 0, Decimals: 9}, nil)
	if !containsAny(r.Blockers, "Amount is zero") {
		t.Errorf("zero amount needs no balance, got %q", r.Blockers)
	}
	if containsAny(r.Blockers, "exceeds balance") {
		t.Errorf("balance rules must be skipped, got %q", r.Blockers)
	}

	bal := 10 * sol
	r = p.EvaluateLookup(Transfer{From: addrA, To: addrB, Amount: 10 * sol, Decimals: 9}, &bal)
	if !containsAny(r.Warnings, "entire balance") {
		t.Errorf("known balance keeps the balance rules, got %q", r.Warnings)
	}
}

func TestSenderBalance(t *testing.T) {
	oracle := &fakeOracle{balance: 7}
	bal, err := SenderBalance(context.Background(), oracle, addrA)
	if err != nil || bal == nil || *bal != 7 {
		t.Fatalf("expected balance 7, got %v %v", bal, err)
	}

	bal, err = SenderBalance(context.Background(), oracle, "0xbad")
	if err != nil || bal != nil {
		t.Errorf("undecodable sender must yield no balance, got %v %v", bal, err)
	}
	if oracle.calls != 1 {
		t.Errorf("expected one oracle call, got %d", oracle.calls)
	}
}

func TestProtocolConcurrentUse(t *testing.T) {
	p := MustNew(WithTokenPrice(100))
	want := p.ValidateOffline(addrA, addrB, 15*sol, 9, 100*sol).Summary()

	var wg sync.WaitGroup
	errs := make(chan string, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := p.ValidateOffline(addrA, addrB, 15*sol, 9, 100*sol).Summary(); got != want {
				errs <- got
			}
		}()
	}
	wg.Wait()
	close(errs)
	for got := range errs {
		t.Errorf("concurrent result differs:\n%s", got)
	}
}

package approval

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/transferguard/internal/safety"
)

const (
	from = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	to   = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return s
}

// request files a confirmation for sending the whole 10 SOL balance.
func request(t *testing.T, s *Store, lamports uint64) string {
	t.Helper()
	tr := safety.Transfer{From: from, To: to, Amount: lamports, Decimals: 9}
	r := safety.MustNew().Evaluate(tr, 10_000_000_000)
	key, err := s.Request(tr, r)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	return key
}

func TestKeyForIsStable(t *testing.T) {
	a := KeyFor(safety.Transfer{From: from, To: to, Amount: 1, Decimals: 9})
	b := KeyFor(safety.Transfer{From: from + " ", To: to, Amount: 1, Decimals: 9})
	c := KeyFor(safety.Transfer{From: from, To: to, Amount: 2, Decimals: 9})
	if a != b {
		t.Error("whitespace should not change the key")
	}
	if a == c {
		t.Error("different amounts must produce different keys")
	}
	if !strings.HasPrefix(a, "tx-") || len(a) != 3+16 {
		t.Errorf("unexpected key format %q", a)
	}
	if err := validateKey(a); err != nil {
		t.Errorf("derived key must be valid: %v", err)
	}
}

func TestRequestCreatesFile(t *testing.T) {
	s := newTestStore(t)
	key := request(t, s, 10_000_000_000)

	a, err := s.read(key)
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}
	if a.Key != key {
		t.Errorf("expected key=%s, got %s", key, a.Key)
	}
	if a.Status != StatusPending {
		t.Errorf("expected status=pending, got %s", a.Status)
	}
	if a.Risk != "HIGH" {
		t.Errorf("expected risk HIGH, got %s", a.Risk)
	}
	if len(a.Reasons) != 1 || !strings.Contains(a.Reasons[0], "entire balance") {
		t.Errorf("unexpected reasons %v", a.Reasons)
	}
	if a.From != "7xKX...gAsU" || a.To != "9WzD...AWWM" {
		t.Errorf("unexpected displays %s %s", a.From, a.To)
	}
}

func TestRequestIdempotent(t *testing.T) {
	s := newTestStore(t)
	key := request(t, s, 10_000_000_000)
	s.Approve(key, 0)

	again := request(t, s, 10_000_000_000)
	if again != key {
		t.Fatalf("expected same key, got %s and %s", key, again)
	}
	status, _ := s.Check(key)
	if status != StatusApproved {
		t.Errorf("second request must not reset status, got %s", status)
	}
}

func TestApproveOneTime(t *testing.T) {
	s := newTestStore(t)
	key := request(t, s, 10_000_000_000)

	if err := s.Approve(key, 0); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	status, _ := s.Check(key)
	if status != StatusApproved {
		t.Errorf("expected approved, got %s", status)
	}

	a, _ := s.read(key)
	if a.ExpiresAt != nil {
		t.Error("expected no expiration for one-time approval")
	}
	if a.ResolvedAt == nil {
		t.Error("expected resolved_at to be set")
	}
}

func TestApproveTimeLimited(t *testing.T) {
	s := newTestStore(t)
	key := request(t, s, 10_000_000_000)

	if err := s.Approve(key, 5*time.Minute); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	a, _ := s.read(key)
	if a.ExpiresAt == nil {
		t.Fatal("expected expires_at for time-limited approval")
	}
	if time.Until(*a.ExpiresAt) < 4*time.Minute {
		t.Error("expected expiration ~5 minutes from now")
	}
}

func TestDeny(t *testing.T) {
	s := newTestStore(t)
	key := request(t, s, 10_000_000_000)

	if err := s.Deny(key); err != nil {
		t.Fatalf("Deny failed: %v", err)
	}

	status, _ := s.Check(key)
	if status != StatusDenied {
		t.Errorf("expected denied, got %s", status)
	}
}

func TestCheckExpired(t *testing.T) {
	s := newTestStore(t)
	key := request(t, s, 10_000_000_000)

	s.Approve(key, 1*time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	status, _ := s.Check(key)
	if status != StatusExpired {
		t.Errorf("expected expired, got %s", status)
	}
}

func TestCheckNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Check("nonexistent")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCheckRejectsTraversal(t *testing.T) {
	s := newTestStore(t)
	for _, key := range []string{"../etc/passwd", "a/b", "", "x..y"} {
		if _, err := s.Check(key); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("expected ErrInvalidKey for key %q, got %v", key, err)
		}
	}
}

func TestUseOneTimeConsumes(t *testing.T) {
	s := newTestStore(t)
	key := request(t, s, 10_000_000_000)
	s.Approve(key, 0)

	ok, err := s.Use(key)
	if err != nil || !ok {
		t.Fatalf("expected first use to pass, got %v %v", ok, err)
	}
	ok, err = s.Use(key)
	if err != nil || ok {
		t.Fatalf("expected second use to fail, got %v %v", ok, err)
	}
	status, _ := s.Check(key)
	if status != StatusConsumed {
		t.Errorf("expected consumed, got %s", status)
	}
}

func TestUseTimeLimitedRepeats(t *testing.T) {
	s := newTestStore(t)
	key := request(t, s, 10_000_000_000)
	s.Approve(key, time.Hour)

	for i := 0; i < 3; i++ {
		ok, err := s.Use(key)
		if err != nil || !ok {
			t.Fatalf("use %d: expected pass, got %v %v", i, ok, err)
		}
	}
}

func TestUsePendingOrDenied(t *testing.T) {
	s := newTestStore(t)
	key := request(t, s, 10_000_000_000)

	if ok, _ := s.Use(key); ok {
		t.Error("pending confirmation must not authorize")
	}
	s.Deny(key)
	if ok, _ := s.Use(key); ok {
		t.Error("denied confirmation must not authorize")
	}
}

func TestList(t *testing.T) {
	s := newTestStore(t)
	request(t, s, 10_000_000_000)
	request(t, s, 9_950_000_000)
	request(t, s, 9_999_000_000)

	list, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 3 {
		t.Errorf("expected 3 approvals, got %d", len(list))
	}
	for i := 1; i < len(list); i++ {
		if list[i].CreatedAt.Before(list[i-1].CreatedAt) {
			t.Error("expected oldest first")
		}
	}
}

func TestPrune(t *testing.T) {
	s := newTestStore(t)
	pending := request(t, s, 10_000_000_000)
	denied := request(t, s, 9_950_000_000)
	consumed := request(t, s, 9_900_000_000)
	live := request(t, s, 9_800_000_000)

	s.Deny(denied)
	s.Approve(consumed, 0)
	s.Use(consumed)
	s.Approve(live, time.Hour)

	n, err := s.Prune()
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 removed, got %d", n)
	}

	list, _ := s.List()
	keys := map[string]bool{}
	for _, a := range list {
		keys[a.Key] = true
	}
	if len(list) != 2 || !keys[pending] || !keys[live] {
		t.Errorf("expected pending and live to remain, got %v", keys)
	}
}

func TestConcurrentAccess(t *testing.T) {
	s := newTestStore(t)
	tr := safety.Transfer{From: from, To: to, Amount: 10_000_000_000, Decimals: 9}
	r := safety.MustNew().Evaluate(tr, 10_000_000_000)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			key, _ := s.Request(tr, r)
			s.Check(key)
		}()
	}
	wg.Wait()

	status, err := s.Check(KeyFor(tr))
	if err != nil {
		t.Fatalf("Check failed after concurrent access: %v", err)
	}
	if status != StatusPending {
		t.Errorf("expected pending, got %s", status)
	}
}

func TestApproveNonexistent(t *testing.T) {
	s := newTestStore(t)
	if err := s.Approve("nonexistent", 0); err == nil {
		t.Error("expected error for approving nonexistent key")
	}
}

func TestDenyNonexistent(t *testing.T) {
	s := newTestStore(t)
	if err := s.Deny("nonexistent"); err == nil {
		t.Error("expected error for denying nonexistent key")
	}
}

package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/ppiankov/transferguard/internal/balance"
	"github.com/ppiankov/transferguard/internal/guard"
	"github.com/ppiankov/transferguard/internal/logging"
)

const (
	alice = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	bob   = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
)

func newTestRouter(t *testing.T) http.Handler {
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

	return NewRouter(svc, logging.Discard())
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("%s %s: expected application/json, got %q", method, path, ct)
	}
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, out
}

func TestHealth(t *testing.T) {
	h := newTestRouter(t)

	code, out := do(t, h, http.MethodGet, "/healthz", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if out["status"] != "ok" {
		t.Errorf("expected ok, got %v", out["status"])
	}
	if !strings.HasPrefix(out["policy_hash"].(string), "sha256:") {
		t.Errorf("expected policy hash, got %v", out["policy_hash"])
	}
}

func TestValidate(t *testing.T) {
	h := newTestRouter(t)

	tests := []struct {
		name     string
		body     string
		code     int
		decision string
	}{
		{"approve", `{"from":"` + alice + `","to":"` + bob + `","human":"1"}`, http.StatusOK, "approve"},
		{"confirm", `{"from":"` + alice + `","to":"` + bob + `","human":"10"}`, http.StatusOK, "confirm"},
		{"block over balance", `{"from":"` + alice + `","to":"` + bob + `","amount":"5","balance":"1"}`, http.StatusOK, "block"},
		{"block bad recipient", `{"from":"` + alice + `","to":"0OIl","amount":"5"}`, http.StatusOK, "block"},
		{"missing amount", `{"from":"` + alice + `","to":"` + bob + `"}`, http.StatusBadRequest, ""},
		{"unknown field", `{"from":"` + alice + `","to":"` + bob + `","lamports":5}`, http.StatusBadRequest, ""},
		{"not json", `amount=5`, http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out := do(t, h, http.MethodPost, "/api/v1/validate", tt.body)
			if code != tt.code {
				t.Fatalf("expected %d, got %d: %v", tt.code, code, out)
			}
			if tt.decision == "" {
				if out["error"] == nil {
					t.Error("expected error message")
				}
				return
			}
			if out["decision"] != tt.decision {
				t.Errorf("expected %s, got %v", tt.decision, out["decision"])
			}
		})
	}
}

func TestConfirmationFlow(t *testing.T) {
	h := newTestRouter(t)
	body := `{"from":"` + alice + `","to":"` + bob + `","human":"10"}`

	_, out := do(t, h, http.MethodPost, "/api/v1/validate", body)
	key, _ := out["confirm_key"].(string)
	if key == "" {
		t.Fatalf("expected confirm key, got %v", out)
	}

	code, out := do(t, h, http.MethodGet, "/api/v1/pending", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if list := out["approvals"].([]any); len(list) != 1 {
		t.Fatalf("expected 1 pending, got %v", list)
	}

	code, _ = do(t, h, http.MethodPost, "/api/v1/approvals/"+key+"/approve?duration=soon", "")
	if code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad duration, got %d", code)
	}

	code, out = do(t, h, http.MethodPost, "/api/v1/approvals/"+key+"/approve", "")
	if code != http.StatusOK || out["status"] != "approved" {
		t.Fatalf("approve: %d %v", code, out)
	}

	_, out = do(t, h, http.MethodPost, "/api/v1/validate", body)
	if out["decision"] != "approve" || out["confirmed"] != true {
		t.Errorf("expected confirmed approve, got %v", out)
	}

	// One-time approval is consumed.
	_, out = do(t, h, http.MethodPost, "/api/v1/validate", body)
	if out["decision"] != "confirm" {
		t.Errorf("expected confirm after consumption, got %v", out["decision"])
	}
}

func TestApprovalErrors(t *testing.T) {
	h := newTestRouter(t)

	code, _ := do(t, h, http.MethodPost, "/api/v1/approvals/tx-unknown/approve", "")
	if code != http.StatusNotFound {
		t.Errorf("approve unknown: expected 404, got %d", code)
	}
	code, _ = do(t, h, http.MethodPost, "/api/v1/approvals/tx-unknown/deny", "")
	if code != http.StatusNotFound {
		t.Errorf("deny unknown: expected 404, got %d", code)
	}
	code, _ = do(t, h, http.MethodPost, "/api/v1/approvals/bad%20key/deny", "")
	if code != http.StatusBadRequest {
		t.Errorf("deny invalid key: expected 400, got %d", code)
	}
}

func TestBatch(t *testing.T) {
	h := newTestRouter(t)

	body := `{"transfers":[
		{"from":"` + alice + `","to":"` + bob + `","human":"1"},
		{"from":"` + alice + `","to":"` + bob + `","human":"20"},
		{"from":"` + alice + `","to":"` + bob + `","human":"10"}
	],"concurrency":2}`

	code, out := do(t, h, http.MethodPost, "/api/v1/batch", body)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", code, out)
	}
	results := out["results"].([]any)
	want := []string{"approve", "block", "confirm"}
	for i, r := range results {
		if got := r.(map[string]any)["decision"]; got != want[i] {
			t.Errorf("result %d: expected %s, got %v", i, want[i], got)
		}
	}
	summary := out["summary"].(map[string]any)
	if summary["total"] != float64(3) || summary["block"] != float64(1) || summary["max_risk"] != "CRITICAL" {
		t.Errorf("unexpected summary %v", summary)
	}
}

func TestBatchOfflineAndMixed(t *testing.T) {
	h := newTestRouter(t)

	offline := `{"transfers":[
		{"from":"` + bob + `","to":"` + alice + `","amount":"5","balance":"100"},
		{"from":"` + bob + `","to":"` + alice + `","amount":"500","balance":"100"}
	]}`
	code, out := do(t, h, http.MethodPost, "/api/v1/batch", offline)
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %v", code, out)
	}
	if blocking := out["summary"].(map[string]any)["blocking"].([]any); len(blocking) != 1 || blocking[0] != float64(1) {
		t.Errorf("expected index 1 blocking, got %v", blocking)
	}

	mixed := `{"transfers":[
		{"from":"` + bob + `","to":"` + alice + `","amount":"5","balance":"100"},
		{"from":"` + bob + `","to":"` + alice + `","amount":"5"}
	]}`
	if code, _ := do(t, h, http.MethodPost, "/api/v1/batch", mixed); code != http.StatusBadRequest {
		t.Errorf("mixed balances: expected 400, got %d", code)
	}

	if code, _ := do(t, h, http.MethodPost, "/api/v1/batch", `{"transfers":[]}`); code != http.StatusBadRequest {
		t.Errorf("empty batch: expected 400, got %d", code)
	}
}

func TestAddressTools(t *testing.T) {
	h := newTestRouter(t)

	code, out := do(t, h, http.MethodGet, "/api/v1/address/"+alice, "")
	if code != http.StatusOK || out["is_valid"] != true || out["short_display"] != "7xKX...gAsU" {
		t.Errorf("verify valid: %d %v", code, out)
	}

	code, out = do(t, h, http.MethodGet, "/api/v1/address/short", "")
	if code != http.StatusUnprocessableEntity || out["kind"] != "invalid_length" {
		t.Errorf("verify short: %d %v", code, out)
	}

	typo := alice[:10] + "Y" + alice[11:]
	code, out = do(t, h, http.MethodGet, "/api/v1/compare?a="+alice+"&b="+typo, "")
	if code != http.StatusOK || out["matches"] != false || out["likely_typo"] != true {
		t.Errorf("compare: %d %v", code, out)
	}

	code, _ = do(t, h, http.MethodGet, "/api/v1/compare?a="+alice, "")
	if code != http.StatusBadRequest {
		t.Errorf("compare missing b: expected 400, got %d", code)
	}
}

func TestHistoryEndpoints(t *testing.T) {
	h := newTestRouter(t)

	_, first := do(t, h, http.MethodPost, "/api/v1/validate", `{"from":"`+alice+`","to":"`+bob+`","human":"1"}`)
	do(t, h, http.MethodPost, "/api/v1/validate", `{"from":"`+alice+`","to":"`+bob+`","human":"20"}`)

	code, out := do(t, h, http.MethodGet, "/api/v1/history?decision=block", "")
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if records := out["records"].([]any); len(records) != 1 {
		t.Errorf("expected 1 blocked record, got %d", len(records))
	}

	id := first["id"].(string)
	code, out = do(t, h, http.MethodGet, "/api/v1/history/"+id, "")
	if code != http.StatusOK || out["id"] != id || out["amount"] != "1000000000" {
		t.Errorf("get: %d %v", code, out)
	}

	code, _ = do(t, h, http.MethodGet, "/api/v1/history/does-not-exist", "")
	if code != http.StatusNotFound {
		t.Errorf("get unknown: expected 404, got %d", code)
	}

	code, out = do(t, h, http.MethodGet, "/api/v1/stats", "")
	if code != http.StatusOK || out["total"] != float64(2) || out["approve"] != float64(1) || out["block"] != float64(1) {
		t.Errorf("stats: %d %v", code, out)
	}
}

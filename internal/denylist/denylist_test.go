package denylist

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ppiankov/transferguard/internal/safety"
)

const (
	wallet = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	other  = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
)

func TestDefaultsListIncinerator(t *testing.T) {
	dl := NewDefault()

	label, listed := dl.Lookup("1nc1nerator11111111111111111111111111111111")
	if !listed {
		t.Fatal("expected incinerator to be listed")
	}
	if label == "" {
		t.Error("expected a label")
	}
}

func TestDefaultsAllowOrdinaryWallet(t *testing.T) {
	if _, listed := NewDefault().Lookup(wallet); listed {
		t.Error("expected ordinary wallet to be allowed")
	}
}

func TestLookupTrimsWhitespace(t *testing.T) {
	dl := New(Patterns{Addresses: []Entry{{Address: wallet, Label: "drainer"}}})
	if label, listed := dl.Lookup("  " + wallet + "\n"); !listed || label != "drainer" {
		t.Errorf("expected drainer, got %q %v", label, listed)
	}
	if _, listed := dl.Lookup(""); listed {
		t.Error("empty address must not match")
	}
}

func TestPatternMatchesLookalike(t *testing.T) {
	dl := New(Patterns{Patterns: []Entry{{Address: "7xKX*gAsU", Label: "poisoning lookalike"}}})

	lookalike := "7xKXaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaagAsU"
	if label, listed := dl.Lookup(lookalike); !listed || label != "poisoning lookalike" {
		t.Errorf("expected lookalike to match, got %q %v", label, listed)
	}
	if _, listed := dl.Lookup(other); listed {
		t.Error("unrelated address must not match")
	}
}

func TestPatternCaseSensitive(t *testing.T) {
	dl := New(Patterns{Patterns: []Entry{{Address: "abc*", Label: "x"}}})
	if _, listed := dl.Lookup("ABCdef"); listed {
		t.Error("base58 matching must be case-sensitive")
	}
}

func TestAddPatternRejectsBareWildcard(t *testing.T) {
	dl := New(Patterns{})
	if err := dl.AddPattern("*", "everything"); err == nil {
		t.Error("expected error for bare wildcard")
	}
	if dl.Len() != 0 {
		t.Errorf("expected empty list, got %d", dl.Len())
	}
}

func TestAddAtRuntime(t *testing.T) {
	dl := NewDefault()
	before := dl.Len()
	dl.Add(wallet, "reported scam")
	if dl.Len() != before+1 {
		t.Errorf("expected %d entries, got %d", before+1, dl.Len())
	}
	if label, _ := dl.Lookup(wallet); label != "reported scam" {
		t.Errorf("expected label, got %q", label)
	}
}

func TestLoadMissingFile(t *testing.T) {
	dl, err := Load("/nonexistent/path/denylist.yaml")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if dl.Len() != NewDefault().Len() {
		t.Error("expected defaults for missing file")
	}
}

func TestLoadExtendsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "denylist.yaml")
	content := `
addresses:
  - address: ` + wallet + `
    label: known drainer
patterns:
  - address: "9WzD*"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	dl, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, listed := dl.Lookup("11111111111111111111111111111111"); !listed {
		t.Error("defaults should remain listed")
	}
	if label, _ := dl.Lookup(wallet); label != "known drainer" {
		t.Errorf("expected known drainer, got %q", label)
	}
	if label, listed := dl.Lookup(other); !listed || label != "matches 9WzD*" {
		t.Errorf("expected generated label, got %q %v", label, listed)
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "denylist.yaml")
	if err := os.WriteFile(path, []byte("{{nope"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "denylist.yaml")
	dl := New(Patterns{})
	dl.Add(wallet, "drainer")
	if err := dl.AddPattern("9WzD*", "lookalike"); err != nil {
		t.Fatal(err)
	}
	if err := dl.Save(path); err != nil {
		t.Fatal(err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, listed := loaded.Lookup(wallet); !listed {
		t.Error("saved address missing after reload")
	}
	if _, listed := loaded.Lookup(other); !listed {
		t.Error("saved pattern missing after reload")
	}
}

func TestDenylistScreensTransfers(t *testing.T) {
	p := safety.MustNew(safety.WithAddressScreen(NewDefault()))
	r := p.ValidateOffline(wallet, "1nc1nerator11111111111111111111111111111111", 1_000_000_000, 9, 10_000_000_000)
	if r.Approved {
		t.Error("transfer to incinerator must be blocked")
	}
}

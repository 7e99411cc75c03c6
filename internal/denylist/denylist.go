package denylist

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Entry is one listed address or pattern with a human label.
type Entry struct {
	Address string `yaml:"address"`
	Label   string `yaml:"label"`
}

// Patterns holds the raw entries organized by category.
// Addresses match exactly. Patterns are globs where * matches any run of
// base58 characters, e.g. "7xKX*gAsU" for lookalikes of a known address.
type Patterns struct {
	Addresses []Entry `yaml:"addresses"`
	Patterns  []Entry `yaml:"patterns"`
}

type compiled struct {
	re    *regexp.Regexp
	entry Entry
}

// Denylist answers whether an address is known-bad. Safe for concurrent use.
type Denylist struct {
	mu        sync.RWMutex
	addresses map[string]string
	patterns  []compiled
	raw       Patterns
}

// New creates a Denylist from raw entries. Invalid globs are skipped.
func New(p Patterns) *Denylist {
	d := &Denylist{addresses: make(map[string]string)}
	for _, e := range p.Addresses {
		d.addAddress(e)
	}
	for _, e := range p.Patterns {
		d.addPattern(e)
	}
	return d
}

// NewDefault creates a Denylist with the hardcoded default entries.
func NewDefault() *Denylist {
	return New(DefaultPatterns)
}

// DefaultPath is ~/.transferguard/denylist.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".transferguard", "denylist.yaml")
}

// Load reads a denylist from a YAML file. Falls back to defaults if the
// file doesn't exist. Loaded entries extend the defaults.
func Load(path string) (*Denylist, error) {
	if path == "" {
		path = DefaultPath()
		if path == "" {
			return NewDefault(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDefault(), nil
		}
		return nil, fmt.Errorf("denylist: read %s: %w", path, err)
	}

	var p Patterns
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("denylist: parse %s: %w", path, err)
	}

	d := NewDefault()
	for _, e := range p.Addresses {
		d.addAddress(e)
	}
	for _, e := range p.Patterns {
		d.addPattern(e)
	}
	return d, nil
}

// Lookup reports whether address is listed and under which label.
func (d *Denylist) Lookup(address string) (string, bool) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", false
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	if label, ok := d.addresses[address]; ok {
		return label, true
	}
	for _, c := range d.patterns {
		if c.re.MatchString(address) {
			return c.entry.Label, true
		}
	}
	return "", false
}

// Add lists an address at runtime.
func (d *Denylist) Add(address, label string) {
	d.addAddress(Entry{Address: address, Label: label})
}

// AddPattern lists a glob at runtime. It returns an error for empty globs.
func (d *Denylist) AddPattern(pattern, label string) error {
	if !d.addPattern(Entry{Address: pattern, Label: label}) {
		return fmt.Errorf("denylist: invalid pattern %q", pattern)
	}
	return nil
}

// Len returns the number of entries.
func (d *Denylist) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.addresses) + len(d.patterns)
}

// Snapshot returns the raw entries, addresses sorted.
func (d *Denylist) Snapshot() Patterns {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := Patterns{
		Addresses: make([]Entry, 0, len(d.addresses)),
		Patterns:  make([]Entry, 0, len(d.patterns)),
	}
	for addr, label := range d.addresses {
		out.Addresses = append(out.Addresses, Entry{Address: addr, Label: label})
	}
	sort.Slice(out.Addresses, func(i, j int) bool { return out.Addresses[i].Address < out.Addresses[j].Address })
	for _, c := range d.patterns {
		out.Patterns = append(out.Patterns, c.entry)
	}
	return out
}

// Save writes the entries as YAML.
func (d *Denylist) Save(path string) error {
	data, err := yaml.Marshal(d.Snapshot())
	if err != nil {
		return fmt.Errorf("denylist: encode: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("denylist: create dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("denylist: write %s: %w", path, err)
	}
	return nil
}

func (d *Denylist) addAddress(e Entry) {
	e.Address = strings.TrimSpace(e.Address)
	if e.Address == "" {
		return
	}
	if e.Label == "" {
		e.Label = "listed address"
	}
	d.mu.Lock()
	d.addresses[e.Address] = e.Label
	d.mu.Unlock()
}

func (d *Denylist) addPattern(e Entry) bool {
	e.Address = strings.TrimSpace(e.Address)
	if strings.Trim(e.Address, "*") == "" {
		return false
	}
	re, err := regexp.Compile("^" + patternToRegex(e.Address) + "$")
	if err != nil {
		return false
	}
	if e.Label == "" {
		e.Label = "matches " + e.Address
	}
	d.mu.Lock()
	d.patterns = append(d.patterns, compiled{re: re, entry: e})
	d.mu.Unlock()
	return true
}

// patternToRegex converts a glob to a regex. Base58 is case-sensitive,
// so matching is too.
func patternToRegex(pattern string) string {
	escaped := regexp.QuoteMeta(pattern)
	return strings.ReplaceAll(escaped, `\*`, "[1-9A-HJ-NP-Za-km-z]*")
}

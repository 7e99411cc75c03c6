// Package approval keeps human confirmations for transfers that the safety
// protocol approved but flagged as needing explicit consent.
package approval

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/transferguard/internal/safety"
)

// validKey matches alphanumeric, dash, underscore, and dot characters only.
var validKey = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

var (
	// ErrNotFound is returned for keys with no confirmation file.
	ErrNotFound = errors.New("confirmation not found")
	// ErrInvalidKey is returned for keys that are not safe file names.
	ErrInvalidKey = errors.New("invalid approval key")
)

// validateKey rejects keys that could cause path traversal.
func validateKey(key string) error {
	if key == "" {
		return fmt.Errorf("key must not be empty")
	}
	if strings.Contains(key, "..") {
		return fmt.Errorf("key must not contain '..'")
	}
	if !validKey.MatchString(key) {
		return fmt.Errorf("key contains invalid characters: only alphanumeric, dash, underscore, and dot are allowed")
	}
	return nil
}

// KeyFor derives the confirmation key of a transfer. Identical transfers
// share a key, so confirming once covers a retry of the same transfer.
func KeyFor(t safety.Transfer) string {
	return "tx-" + t.Fingerprint()[:16]
}

// Status represents the state of a confirmation.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
	StatusConsumed Status = "consumed"
	StatusExpired  Status = "expired"
)

// Approval is a single confirmation request and its state.
type Approval struct {
	Key        string     `json:"key"`
	Status     Status     `json:"status"`
	From       string     `json:"from"`
	To         string     `json:"to"`
	Amount     string     `json:"amount"`
	Risk       string     `json:"risk"`
	Reasons    []string   `json:"reasons"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

// Store manages confirmation files on disk.
type Store struct {
	dir string
	mu  sync.Mutex
}

// NewStore creates a Store backed by the given directory.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create approval directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Request records a pending confirmation for a report and returns its key.
// No-op if the key already exists.
func (s *Store) Request(t safety.Transfer, r *safety.Report) (string, error) {
	key := KeyFor(t)

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.path(key)
	if _, err := os.Stat(path); err == nil {
		return key, nil
	}

	a := Approval{
		Key:       key,
		Status:    StatusPending,
		From:      r.FromDisplay,
		To:        r.ToDisplay,
		Amount:    r.AmountDisplay,
		Risk:      r.RiskLevel.String(),
		Reasons:   r.Reasons(),
		CreatedAt: time.Now().UTC(),
	}

	return key, s.writeAtomic(path, a)
}

// Approve marks a confirmation as approved. If duration > 0, sets expiration.
// If duration == 0, the confirmation is one-time (consumed on first use).
func (s *Store) Approve(key string, duration time.Duration) error {
	if err := validateKey(key); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.read(key)
	if err != nil {
		return fmt.Errorf("approval %q: %w", key, err)
	}

	a.Status = StatusApproved
	now := time.Now().UTC()
	a.ResolvedAt = &now
	a.ExpiresAt = nil
	if duration > 0 {
		exp := now.Add(duration)
		a.ExpiresAt = &exp
	}

	return s.writeAtomic(s.path(key), *a)
}

// Deny marks a confirmation as denied.
func (s *Store) Deny(key string) error {
	if err := validateKey(key); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.read(key)
	if err != nil {
		return fmt.Errorf("approval %q: %w", key, err)
	}

	a.Status = StatusDenied
	now := time.Now().UTC()
	a.ResolvedAt = &now

	return s.writeAtomic(s.path(key), *a)
}

// Check returns the current status of a confirmation.
// Returns StatusExpired if the approval has passed its deadline.
func (s *Store) Check(key string) (Status, error) {
	if err := validateKey(key); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.read(key)
	if err != nil {
		return "", fmt.Errorf("approval %q: %w", key, err)
	}
	return s.expire(a), nil
}

// Use authorizes one execution of the transfer behind key. One-time
// approvals are consumed; time-limited approvals stay valid until expiry.
// It returns false with no error for pending, denied or expired keys.
func (s *Store) Use(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.read(key)
	if err != nil {
		return false, fmt.Errorf("approval %q: %w", key, err)
	}
	if s.expire(a) != StatusApproved {
		return false, nil
	}
	if a.ExpiresAt != nil {
		return true, nil
	}

	a.Status = StatusConsumed
	now := time.Now().UTC()
	a.ResolvedAt = &now
	if err := s.writeAtomic(s.path(key), *a); err != nil {
		return false, err
	}
	return true, nil
}

// List returns all confirmations in the store, oldest first.
func (s *Store) List() ([]Approval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var approvals []Approval
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		a, err := s.read(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			continue
		}
		s.expire(a)
		approvals = append(approvals, *a)
	}

	sort.Slice(approvals, func(i, j int) bool {
		return approvals[i].CreatedAt.Before(approvals[j].CreatedAt)
	})
	return approvals, nil
}

// Prune removes consumed, denied and expired confirmations and returns how
// many were removed. Pending and live approvals are kept.
func (s *Store) Prune() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	removed := 0
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		a, err := s.read(strings.TrimSuffix(e.Name(), ".json"))
		if err != nil {
			continue
		}
		switch s.expire(a) {
		case StatusConsumed, StatusDenied, StatusExpired:
			if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil {
				errs = append(errs, err)
				continue
			}
			removed++
		}
	}
	return removed, errors.Join(errs...)
}

// expire flips an approved entry past its deadline to expired, on disk too.
// Caller holds s.mu.
func (s *Store) expire(a *Approval) Status {
	if a.Status == StatusApproved && a.ExpiresAt != nil && time.Now().UTC().After(*a.ExpiresAt) {
		a.Status = StatusExpired
		_ = s.writeAtomic(s.path(a.Key), *a)
	}
	return a.Status
}

func (s *Store) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

func (s *Store) read(key string) (*Approval, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var a Approval
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, err
	}

	return &a, nil
}

func (s *Store) writeAtomic(path string, a Approval) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/transferguard/internal/alert"
	"github.com/ppiankov/transferguard/internal/amount"
	"github.com/ppiankov/transferguard/internal/budget"
	"github.com/ppiankov/transferguard/internal/denylist"
	"github.com/ppiankov/transferguard/internal/ratelimit"
	"github.com/ppiankov/transferguard/internal/retry"
	"github.com/ppiankov/transferguard/internal/safety"
)

// Environment overrides applied after the YAML file.
const (
	EnvRPCURL     = "TRANSFERGUARD_RPC_URL"
	EnvTokenPrice = "TRANSFERGUARD_TOKEN_PRICE_USD"
)

// RPCConfig controls the balance oracle.
type RPCConfig struct {
	Endpoint    string        `yaml:"endpoint"`
	MaxAttempts int           `yaml:"max_attempts"`
	BaseDelay   time.Duration `yaml:"base_delay"`
	Timeout     time.Duration `yaml:"timeout"`
	// Commitment is finalized, confirmed or processed. Empty means finalized.
	Commitment string `yaml:"commitment"`
}

// KafkaConfig enables the report stream when Brokers is non-empty.
type KafkaConfig struct {
	Brokers  []string `yaml:"brokers"`
	Topic    string   `yaml:"topic"`
	ClientID string   `yaml:"client_id"`
}

// Enabled reports whether reports should be published.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// PolicyConfig holds all configurable policy parameters.
type PolicyConfig struct {
	StrictMode              bool     `yaml:"strict_mode"`
	LargeAmountThresholdUSD float64  `yaml:"large_amount_threshold_usd"`
	TokenPriceUSD           *float64 `yaml:"token_price_usd"`
	Symbol                  string   `yaml:"symbol"`
	Decimals                uint8    `yaml:"decimals"`

	DenylistPath string `yaml:"denylist_path"`
	AuditLog     string `yaml:"audit_log"`
	HistoryDB    string `yaml:"history_db"`
	ApprovalDir  string `yaml:"approval_dir"`

	// Velocity caps approved transfers per sender. Key "*" applies to
	// every sender without its own entry.
	Velocity ratelimit.Config `yaml:"velocity"`

	// Budgets cap whole tokens sent per sender. Same key rules as Velocity.
	Budgets budget.Config `yaml:"budgets"`

	RPC    RPCConfig           `yaml:"rpc"`
	Kafka  KafkaConfig         `yaml:"kafka"`
	Alerts []alert.AlertConfig `yaml:"alerts"`
}

// DefaultConfig returns the built-in policy for native SOL transfers.
func DefaultConfig() *PolicyConfig {
	return &PolicyConfig{
		StrictMode:              false,
		LargeAmountThresholdUSD: safety.DefaultLargeAmountThresholdUSD,
		Symbol:                  "SOL",
		Decimals:                9,
		RPC: RPCConfig{
			MaxAttempts: 3,
			BaseDelay:   200 * time.Millisecond,
			Timeout:     10 * time.Second,
		},
		Kafka: KafkaConfig{
			Topic:    "transferguard.reports",
			ClientID: "transferguard",
		},
	}
}

// Dir is ~/.transferguard, or empty when the home directory is unknown.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".transferguard")
}

// DefaultPath is the policy file used when no path is given.
func DefaultPath() string {
	dir := Dir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "policy.yaml")
}

// LoadConfig loads policy configuration from a YAML file.
// Empty path falls back to ~/.transferguard/policy.yaml.
// Missing file returns defaults. Invalid YAML returns an error.
func LoadConfig(path string) (*PolicyConfig, error) {
	cfg, _, err := LoadConfigWithHash(path)
	return cfg, err
}

// LoadConfigWithHash loads policy configuration and returns its SHA-256 hash.
// The hash is computed over the raw YAML bytes on disk.
// When no file exists (defaults used), the hash is the SHA-256 of empty input.
func LoadConfigWithHash(path string) (*PolicyConfig, string, error) {
	if path == "" {
		path = DefaultPath()
	}

	var data []byte
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, "", fmt.Errorf("failed to read policy config: %w", err)
		}
		data = raw
	}

	h := sha256.Sum256(data)
	hash := "sha256:" + hex.EncodeToString(h[:])

	// Start with defaults, YAML overwrites only specified fields
	cfg := DefaultConfig()
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, "", fmt.Errorf("failed to parse policy config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}

	return cfg, hash, nil
}

func (c *PolicyConfig) applyEnv() error {
	if v := strings.TrimSpace(os.Getenv(EnvRPCURL)); v != "" {
		c.RPC.Endpoint = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvTokenPrice)); v != "" {
		price, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", EnvTokenPrice, err)
		}
		c.TokenPriceUSD = &price
	}
	return nil
}

// Validate reports every invalid field at once.
func (c *PolicyConfig) Validate() error {
	var errs []error
	if c.LargeAmountThresholdUSD <= 0 {
		errs = append(errs, fmt.Errorf("large_amount_threshold_usd must be positive, got %v", c.LargeAmountThresholdUSD))
	}
	if c.TokenPriceUSD != nil && *c.TokenPriceUSD < 0 {
		errs = append(errs, fmt.Errorf("token_price_usd must not be negative, got %v", *c.TokenPriceUSD))
	}
	if c.Decimals > amount.MaxDecimals {
		errs = append(errs, fmt.Errorf("decimals must be at most %d, got %d", amount.MaxDecimals, c.Decimals))
	}
	if c.RPC.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("rpc.max_attempts must not be negative, got %d", c.RPC.MaxAttempts))
	}
	switch c.RPC.Commitment {
	case "", "finalized", "confirmed", "processed":
	default:
		errs = append(errs, fmt.Errorf("rpc.commitment %q is not one of finalized, confirmed, processed", c.RPC.Commitment))
	}
	if err := c.Velocity.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Budgets.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Kafka.Enabled() && strings.TrimSpace(c.Kafka.Topic) == "" {
		errs = append(errs, errors.New("kafka.topic is required when kafka.brokers is set"))
	}
	for i, a := range c.Alerts {
		if a.URL == "" {
			errs = append(errs, fmt.Errorf("alerts[%d].url is required", i))
		}
		switch a.Format {
		case "", "generic", "slack", "pagerduty":
		default:
			errs = append(errs, fmt.Errorf("alerts[%d].format %q is not one of generic, slack, pagerduty", i, a.Format))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid policy config: %w", err)
	}
	return nil
}

// Protocol builds the immutable safety protocol. Extra options are
// applied after the configured ones.
func (c *PolicyConfig) Protocol(extra ...safety.Option) (*safety.Protocol, error) {
	opts := []safety.Option{
		safety.WithLargeAmountThreshold(c.LargeAmountThresholdUSD),
		safety.WithSymbol(c.Symbol),
	}
	if c.StrictMode {
		opts = append(opts, safety.WithStrictMode())
	}
	if c.TokenPriceUSD != nil {
		opts = append(opts, safety.WithTokenPrice(*c.TokenPriceUSD))
	}
	return safety.New(append(opts, extra...)...)
}

// LoadDenylist loads the configured denylist, or the default location.
func (c *PolicyConfig) LoadDenylist() (*denylist.Denylist, error) {
	return denylist.Load(c.DenylistPath)
}

// RetryPolicy maps the rpc section onto a retry policy.
func (c *PolicyConfig) RetryPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	if c.RPC.MaxAttempts > 0 {
		p.MaxAttempts = c.RPC.MaxAttempts
	}
	if c.RPC.BaseDelay > 0 {
		p.BaseDelay = c.RPC.BaseDelay
	}
	return p
}

// ResolvePath returns the configured path, or name under ~/.transferguard.
func ResolvePath(configured, name string) string {
	if configured != "" {
		return configured
	}
	dir := Dir()
	if dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

// DefaultConfigYAML returns a commented YAML string for init-policy.
func DefaultConfigYAML() string {
	return `# transferguard policy configuration
# Generated by: transferguard init-policy
#
# Check order (cannot be changed):
#   1. Sender and recipient address verification -> block
#   2. Denylist -> block
#   3. Self-transfer -> warn (medium)
#   4. Sender velocity limit -> warn (high)
#   5. Recipient confirmation mismatch -> block
#   6. Amount vs balance (zero/exceeds -> block, >99% high, >90% medium)
#   7. Magnitude heuristic on typed input -> warn (medium)
#   8. Sender spend budget -> block
#   9. USD value vs threshold -> warn (high)
#  10. strict_mode turns every warning into a blocker

# Treat every warning as a blocker.
strict_mode: false

# Transfers worth at least this many USD need explicit confirmation.
# Only applied when token_price_usd is set.
large_amount_threshold_usd: 1000

# USD price of one token. Overridden by TRANSFERGUARD_TOKEN_PRICE_USD.
# token_price_usd: 150

# Display symbol and decimals of the asset.
symbol: SOL
decimals: 9

# Known-bad addresses (YAML with addresses: and patterns:).
# denylist_path: ~/.transferguard/denylist.yaml

# Approved transfers allowed per sender before confirmation is required.
# "*" applies to every sender without its own entry.
# velocity:
#   "*":
#     max_transfers: 20
#     window: 1h

# Whole tokens each sender may send per window. Over budget -> block.
# budgets:
#   "*":
#     max_tokens: 500
#     window: 24h

# Balance lookups for online validation.
# endpoint is overridden by TRANSFERGUARD_RPC_URL.
rpc:
  endpoint: https://api.mainnet-beta.solana.com
  max_attempts: 3
  base_delay: 200ms
  timeout: 10s
  # commitment: finalized

# Stream every report to Kafka.
# kafka:
#   brokers: ["localhost:9092"]
#   topic: transferguard.reports

# Webhooks for block and confirm decisions.
# alerts:
#   - url: https://hooks.slack.com/services/T000/B000/XXX
#     format: slack
#     events: [block, confirm]
`
}

// Package balance fetches sender balances for online validation.
package balance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/sirupsen/logrus"

	"github.com/ppiankov/transferguard/internal/logging"
	"github.com/ppiankov/transferguard/internal/retry"
)

// DefaultEndpoint is the public mainnet JSON-RPC endpoint.
const DefaultEndpoint = rpc.MainNetBeta_RPC

// DefaultTimeout bounds a single RPC call.
const DefaultTimeout = 10 * time.Second

// Client is the subset of the solana-go RPC client the oracle needs.
type Client interface {
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)
}

// RPCOracle reads finalized balances over JSON-RPC.
type RPCOracle struct {
	client     Client
	commitment rpc.CommitmentType
	timeout    time.Duration
	policy     retry.Policy
	log        *logrus.Entry
}

// Option configures an RPCOracle.
type Option func(*RPCOracle)

// WithTimeout bounds each attempt.
func WithTimeout(d time.Duration) Option {
	return func(o *RPCOracle) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithRetry replaces the retry policy.
func WithRetry(p retry.Policy) Option {
	return func(o *RPCOracle) { o.policy = p }
}

// WithCommitment selects the commitment level (finalized by default).
func WithCommitment(c rpc.CommitmentType) Option {
	return func(o *RPCOracle) { o.commitment = c }
}

// WithLogger attaches a logger for retry diagnostics.
func WithLogger(l *logrus.Logger) Option {
	return func(o *RPCOracle) { o.log = logging.Component(l, "balance") }
}

// NewRPCOracle dials nothing; the first call opens the connection.
func NewRPCOracle(endpoint string, opts ...Option) *RPCOracle {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return NewOracle(rpc.New(endpoint), opts...)
}

// NewOracle wraps an existing client.
func NewOracle(client Client, opts ...Option) *RPCOracle {
	o := &RPCOracle{
		client:     client,
		commitment: rpc.CommitmentFinalized,
		timeout:    DefaultTimeout,
		policy:     retry.DefaultPolicy(),
		log:        logging.Component(logging.Discard(), "balance"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Balance returns the account balance in lamports.
func (o *RPCOracle) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	policy := o.policy
	if policy.OnRetry == nil {
		policy.OnRetry = func(attempt int, wait time.Duration, err error) {
			o.log.WithFields(logrus.Fields{
				"account": account.String(),
				"attempt": attempt,
				"wait":    wait.String(),
			}).WithError(err).Warn("balance fetch failed, retrying")
		}
	}

	var lamports uint64
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, o.timeout)
		defer cancel()

		res, err := o.client.GetBalance(callCtx, account, o.commitment)
		if err != nil {
			return err
		}
		if res == nil {
			return errors.New("empty response")
		}
		lamports = res.Value
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("balance: fetch %s: %w", account, err)
	}
	return lamports, nil
}

// StaticOracle serves balances from memory. Unknown accounts have zero balance.
type StaticOracle struct {
	mu       sync.RWMutex
	balances map[solana.PublicKey]uint64
}

// NewStaticOracle copies the given balances.
func NewStaticOracle(balances map[solana.PublicKey]uint64) *StaticOracle {
	s := &StaticOracle{balances: make(map[solana.PublicKey]uint64, len(balances))}
	for k, v := range balances {
		s.balances[k] = v
	}
	return s
}

// Set updates one balance.
func (s *StaticOracle) Set(account solana.PublicKey, lamports uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balances[account] = lamports
}

func (s *StaticOracle) Balance(ctx context.Context, account solana.PublicKey) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[account], nil
}

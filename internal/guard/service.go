// Package guard runs transfers through the safety protocol and records the
// outcome: audit log, confirmation store, history and alerts.
package guard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go/rpc"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ppiankov/transferguard/internal/alert"
	"github.com/ppiankov/transferguard/internal/approval"
	"github.com/ppiankov/transferguard/internal/audit"
	"github.com/ppiankov/transferguard/internal/balance"
	"github.com/ppiankov/transferguard/internal/batch"
	"github.com/ppiankov/transferguard/internal/budget"
	"github.com/ppiankov/transferguard/internal/history"
	"github.com/ppiankov/transferguard/internal/logging"
	"github.com/ppiankov/transferguard/internal/policy"
	"github.com/ppiankov/transferguard/internal/ratelimit"
	"github.com/ppiankov/transferguard/internal/safety"
)

// EventConfirmationUsed marks audit entries and alerts for a transfer that
// went ahead on a prior human confirmation.
const EventConfirmationUsed = "confirmation_used"

// Result is one checked transfer.
type Result struct {
	ID         string          `json:"id"`
	Decision   safety.Decision `json:"decision"`
	Report     *safety.Report  `json:"report"`
	ConfirmKey string          `json:"confirm_key,omitempty"`
	Confirmed  bool            `json:"confirmed"`
	PolicyHash string          `json:"policy_hash"`
}

// Deps are the stores a Service records into. Nil fields are skipped.
type Deps struct {
	Oracle    safety.BalanceOracle
	AuditLog  *audit.Log
	Approvals *approval.Store
	History   *history.Store
	Sinks     []alert.Sink
	Logger    *logrus.Logger
}

type snapshot struct {
	cfg        *policy.PolicyConfig
	hash       string
	protocol   *safety.Protocol
	dispatcher *alert.Dispatcher
	limiter    *ratelimit.Limiter
	budgets    *budget.Enforcer
}

// Service is safe for concurrent use. The policy can be swapped at
// runtime; a check in flight keeps the policy it started with.
type Service struct {
	mu   sync.RWMutex
	snap *snapshot

	policyPath string
	deps       Deps
	velocity   *ratelimit.Tracker
	spending   *budget.Tracker
	senders    senderLocks
	logger     *logrus.Logger
	log        *logrus.Entry
	owned      bool
}

// New builds a Service from an already loaded policy.
func New(cfg *policy.PolicyConfig, policyHash string, deps Deps) (*Service, error) {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Service{
		deps:     deps,
		velocity: ratelimit.NewTracker(),
		spending: budget.NewTracker(),
		logger:   logger,
		log:      logging.Component(logger, "guard"),
	}
	if err := s.Apply(cfg, policyHash); err != nil {
		return nil, err
	}
	return s, nil
}

// Options control Open.
type Options struct {
	PolicyPath string
	Logger     *logrus.Logger
	// Oracle replaces the RPC oracle built from the policy.
	Oracle safety.BalanceOracle
}

// Open loads the policy file and opens every store it names. Close
// releases them.
func Open(opts Options) (*Service, error) {
	cfg, hash, err := policy.LoadConfigWithHash(opts.PolicyPath)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	deps := Deps{Oracle: opts.Oracle, Logger: logger}
	if deps.Oracle == nil {
		oracleOpts := []balance.Option{
			balance.WithTimeout(cfg.RPC.Timeout),
			balance.WithRetry(cfg.RetryPolicy()),
			balance.WithLogger(logger),
		}
		if cfg.RPC.Commitment != "" {
			oracleOpts = append(oracleOpts, balance.WithCommitment(rpc.CommitmentType(cfg.RPC.Commitment)))
		}
		deps.Oracle = balance.NewRPCOracle(cfg.RPC.Endpoint, oracleOpts...)
	}

	cleanup := func() {
		if deps.AuditLog != nil {
			deps.AuditLog.Close()
		}
		if deps.History != nil {
			deps.History.Close()
		}
		for _, sink := range deps.Sinks {
			sink.Close()
		}
	}

	deps.AuditLog, err = audit.Open(policy.ResolvePath(cfg.AuditLog, "audit.jsonl"))
	if err != nil {
		return nil, err
	}

	deps.Approvals, err = approval.NewStore(policy.ResolvePath(cfg.ApprovalDir, "pending"))
	if err != nil {
		cleanup()
		return nil, err
	}

	deps.History, err = history.Open(policy.ResolvePath(cfg.HistoryDB, "history.db"))
	if err != nil {
		cleanup()
		return nil, fmt.Errorf("history: %w", err)
	}

	if cfg.Kafka.Enabled() {
		sink, err := alert.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.ClientID)
		if err != nil {
			cleanup()
			return nil, err
		}
		deps.Sinks = append(deps.Sinks, sink)
	}

	s, err := New(cfg, hash, deps)
	if err != nil {
		cleanup()
		return nil, err
	}
	s.policyPath = opts.PolicyPath
	s.owned = true
	return s, nil
}

// Apply swaps in a new policy. The denylist is reloaded from the path the
// policy names.
func (s *Service) Apply(cfg *policy.PolicyConfig, policyHash string) error {
	dl, err := cfg.LoadDenylist()
	if err != nil {
		return fmt.Errorf("failed to load denylist: %w", err)
	}
	opts := []safety.Option{safety.WithAddressScreen(dl)}
	limiter := ratelimit.NewLimiter(cfg.Velocity, s.velocity)
	if limiter != nil {
		opts = append(opts, safety.WithVelocityScreen(limiter))
	}
	budgets := budget.NewEnforcer(cfg.Budgets, s.spending)
	if budgets != nil {
		opts = append(opts, safety.WithSpendScreen(budgets))
	}
	p, err := cfg.Protocol(opts...)
	if err != nil {
		return fmt.Errorf("invalid policy: %w", err)
	}

	d := alert.NewDispatcher(cfg.Alerts, s.deps.Sinks...)
	if d != nil {
		d.SetLogger(s.logger)
	}

	s.mu.Lock()
	s.snap = &snapshot{cfg: cfg, hash: policyHash, protocol: p, dispatcher: d, limiter: limiter, budgets: budgets}
	s.mu.Unlock()
	return nil
}

// ReloadPolicy re-reads the policy file Open was given.
func (s *Service) ReloadPolicy() error {
	cfg, hash, err := policy.LoadConfigWithHash(s.policyPath)
	if err != nil {
		return fmt.Errorf("failed to reload policy config: %w", err)
	}
	if err := s.Apply(cfg, hash); err != nil {
		return err
	}
	s.log.WithField("policy_hash", hash).Info("policy reloaded")
	return nil
}

// WatchPaths lists the files whose change should trigger ReloadPolicy.
func (s *Service) WatchPaths() []string {
	cfg := s.current().cfg
	paths := []string{s.policyPath}
	if s.policyPath == "" {
		paths[0] = policy.DefaultPath()
	}
	dl := cfg.DenylistPath
	if dl == "" {
		dl = policy.ResolvePath("", "denylist.yaml")
	}
	return append(paths, dl)
}

func (s *Service) current() *snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Protocol returns the protocol of the current policy.
func (s *Service) Protocol() *safety.Protocol { return s.current().protocol }

// Policy returns the current policy. Callers must not modify it.
func (s *Service) Policy() *policy.PolicyConfig { return s.current().cfg }

// PolicyHash identifies the current policy in audit entries.
func (s *Service) PolicyHash() string { return s.current().hash }

// Approvals returns the confirmation store, or nil.
func (s *Service) Approvals() *approval.Store { return s.deps.Approvals }

// History returns the history store, or nil.
func (s *Service) History() *history.Store { return s.deps.History }

// AuditPath returns the audit log file, or "" without one.
func (s *Service) AuditPath() string {
	if s.deps.AuditLog == nil {
		return ""
	}
	return s.deps.AuditLog.Path()
}

// Transfer builds a transfer in the policy's token decimals.
func (s *Service) Transfer(from, to string, amt uint64) safety.Transfer {
	return safety.Transfer{From: from, To: to, Amount: amt, Decimals: s.Policy().Decimals}
}

// Check fetches the sender balance and evaluates t. An undecodable sender
// is evaluated without a balance.
func (s *Service) Check(ctx context.Context, t safety.Transfer) (*Result, error) {
	if s.deps.Oracle == nil {
		return nil, errors.New("guard: no balance oracle configured")
	}
	bal, err := safety.SenderBalance(ctx, s.deps.Oracle, t.From)
	if err != nil {
		return nil, err
	}
	return s.check(ctx, s.current(), t, bal)
}

// CheckWithBalance evaluates t against a balance the caller already knows.
func (s *Service) CheckWithBalance(ctx context.Context, t safety.Transfer, bal uint64) (*Result, error) {
	return s.check(ctx, s.current(), t, &bal)
}

// CheckBatch checks transfers in input order after fetching balances
// concurrently. An oracle error fails the whole batch before anything is
// recorded. Velocity and spend limits see earlier approvals in the batch.
func (s *Service) CheckBatch(ctx context.Context, transfers []safety.Transfer, concurrency int) ([]*Result, error) {
	if s.deps.Oracle == nil {
		return nil, errors.New("guard: no balance oracle configured")
	}
	snap := s.current()
	balances, err := batch.Balances(ctx, s.deps.Oracle, transfers, concurrency)
	if err != nil {
		return nil, err
	}

	results := make([]*Result, len(transfers))
	for i, t := range transfers {
		res, err := s.check(ctx, snap, t, balances[i])
		if err != nil {
			return nil, err
		}
		results[i] = res
	}
	return results, nil
}

func (s *Service) check(ctx context.Context, snap *snapshot, t safety.Transfer, bal *uint64) (*Result, error) {
	res, err := s.decide(snap, t, bal)
	if err != nil {
		return nil, err
	}
	return s.record(ctx, snap, t, bal, res)
}

// decide evaluates t and settles its decision. While sender limits are
// configured the sender stays locked from the limit checks until an
// approval is counted, so concurrent transfers cannot share one allowance.
func (s *Service) decide(snap *snapshot, t safety.Transfer, bal *uint64) (*Result, error) {
	if snap.limiter != nil || snap.budgets != nil {
		unlock := s.senders.lock(t.From)
		defer unlock()
	}

	r := snap.protocol.EvaluateLookup(t, bal)
	res := &Result{
		ID:         uuid.New().String(),
		Decision:   r.Decision(),
		Report:     r,
		PolicyHash: snap.hash,
	}

	if res.Decision == safety.Confirm && s.deps.Approvals != nil {
		if err := s.confirm(t, res); err != nil {
			return nil, err
		}
	}

	if res.Decision == safety.Approve {
		snap.limiter.Record(t.From)
		snap.budgets.Record(t.From, t.Amount, t.Decimals)
	}
	return res, nil
}

func (s *Service) record(ctx context.Context, snap *snapshot, t safety.Transfer, bal *uint64, res *Result) (*Result, error) {
	r := res.Report
	entry := audit.NewEntry(res.ID, t, r, snap.hash)
	entry.Transfer.Balance = bal
	if s.deps.AuditLog != nil {
		if err := s.deps.AuditLog.Record(entry); err != nil {
			return nil, err
		}
		if res.Confirmed {
			used := entry
			used.Type = EventConfirmationUsed
			used.ConfirmKey = res.ConfirmKey
			if err := s.deps.AuditLog.Record(used); err != nil {
				return nil, err
			}
		}
	}

	if s.deps.History != nil {
		err := s.deps.History.Insert(ctx, &history.Record{
			ID:          res.ID,
			From:        entry.Transfer.From,
			To:          entry.Transfer.To,
			Amount:      t.Amount,
			Decimals:    t.Decimals,
			Fingerprint: t.Fingerprint(),
			Decision:    string(res.Decision),
			PolicyHash:  snap.hash,
			Report:      *r,
		})
		if err != nil {
			s.log.WithError(err).WithField("report_id", res.ID).Warn("history insert failed")
		}
	}

	if snap.dispatcher != nil {
		event := alert.NewEvent(res.ID, r, snap.hash)
		if res.Confirmed {
			event.Type = EventConfirmationUsed
		}
		snap.dispatcher.Dispatch(event)
	}

	s.log.WithFields(logrus.Fields{
		"report_id": res.ID,
		"decision":  res.Decision,
		"risk":      r.RiskLevel.String(),
		"confirmed": res.Confirmed,
	}).Info("transfer checked")

	return res, nil
}

// confirm consumes an approved confirmation or files a pending one.
func (s *Service) confirm(t safety.Transfer, res *Result) error {
	key := approval.KeyFor(t)
	res.ConfirmKey = key

	ok, err := s.deps.Approvals.Use(key)
	switch {
	case errors.Is(err, approval.ErrNotFound):
		if _, err := s.deps.Approvals.Request(t, res.Report); err != nil {
			return fmt.Errorf("guard: request confirmation: %w", err)
		}
	case err != nil:
		return fmt.Errorf("guard: check confirmation: %w", err)
	case ok:
		res.Confirmed = true
		res.Decision = safety.Approve
	}
	return nil
}

// Wait blocks until queued alerts are delivered.
func (s *Service) Wait() {
	if d := s.current().dispatcher; d != nil {
		d.Wait()
	}
}

// Close flushes alerts and, for a Service built by Open, closes its stores.
func (s *Service) Close() error {
	s.Wait()
	if !s.owned {
		return nil
	}

	var errs []error
	if s.deps.AuditLog != nil {
		errs = append(errs, s.deps.AuditLog.Close())
	}
	if s.deps.History != nil {
		errs = append(errs, s.deps.History.Close())
	}
	for _, sink := range s.deps.Sinks {
		errs = append(errs, sink.Close())
	}
	return errors.Join(errs...)
}

package alert

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ppiankov/transferguard/internal/logging"
)

// Sink receives every event regardless of webhook event filters.
type Sink interface {
	Emit(ctx context.Context, event AlertEvent) error
	Close() error
}

// Dispatcher fans out alert events to matching webhooks and to sinks.
type Dispatcher struct {
	configs []AlertConfig
	sinks   []Sink
	log     *logrus.Entry
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher from webhook configurations and sinks.
// Returns nil if there is nothing to deliver to (callers should nil-check).
func NewDispatcher(configs []AlertConfig, sinks ...Sink) *Dispatcher {
	if len(configs) == 0 && len(sinks) == 0 {
		return nil
	}
	return &Dispatcher{
		configs: configs,
		sinks:   sinks,
		log:     logging.Component(logging.Discard(), "alert"),
	}
}

// SetLogger routes delivery failures to l.
func (d *Dispatcher) SetLogger(l *logrus.Logger) {
	d.log = logging.Component(l, "alert")
}

// Dispatch sends the event to all webhooks whose Events list matches and
// to every sink. Delivery runs in goroutines and does not block the
// caller; Wait blocks until it finishes.
func (d *Dispatcher) Dispatch(event AlertEvent) {
	for _, cfg := range d.configs {
		if !matches(cfg.Events, event) {
			continue
		}
		d.wg.Add(1)
		go func(cfg AlertConfig) {
			defer d.wg.Done()
			if err := Send(context.Background(), cfg, event); err != nil {
				d.log.WithError(err).WithField("report_id", event.ReportID).Warn("webhook delivery failed")
			}
		}(cfg)
	}

	for _, s := range d.sinks {
		d.wg.Add(1)
		go func(s Sink) {
			defer d.wg.Done()
			if err := s.Emit(context.Background(), event); err != nil {
				d.log.WithError(err).WithField("report_id", event.ReportID).Warn("sink delivery failed")
			}
		}(s)
	}
}

// Wait blocks until in-flight deliveries finish.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close waits for deliveries and closes the sinks.
func (d *Dispatcher) Close() error {
	d.wg.Wait()
	var first error
	for _, s := range d.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func matches(events []string, event AlertEvent) bool {
	for _, e := range events {
		if e == event.Decision {
			return true
		}
		if event.Type != "" && e == event.Type {
			return true
		}
	}
	return false
}

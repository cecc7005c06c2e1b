package services

import (
	"context"
	stderrors "errors"
	"sync"

	"github.com/SudarshanaRao/dream60/internal/clock"
	"github.com/SudarshanaRao/dream60/internal/errors"
	"github.com/SudarshanaRao/dream60/internal/events"
	"github.com/SudarshanaRao/dream60/internal/logger"
	"github.com/SudarshanaRao/dream60/internal/metrics"
	"github.com/SudarshanaRao/dream60/internal/repository"
)

// Runtime bundles the collaborators every engine service shares
type Runtime struct {
	Log     logger.Logger
	Clock   clock.Clock
	Events  events.Publisher
	Metrics *metrics.Metrics
	Faults  *Faults
}

// NewRuntime creates a runtime. A nil publisher discards events and nil
// metrics get a private registry.
func NewRuntime(log logger.Logger, clk clock.Clock, pub events.Publisher, m *metrics.Metrics) *Runtime {
	if pub == nil {
		pub = events.Nop{}
	}
	if m == nil {
		m = metrics.New()
	}
	return &Runtime{
		Log:     log,
		Clock:   clk,
		Events:  pub,
		Metrics: m,
		Faults:  NewFaults(log, m),
	}
}

// publish delivers an event and only logs delivery failures
func (rt *Runtime) publish(ctx context.Context, e events.Event) {
	if err := rt.Events.Publish(ctx, e); err != nil {
		rt.Log.Warn("Event delivery failed", "type", e.Type, "auction_id", e.AuctionID, "error", err)
	}
}

// Faults tracks auctions halted by a fatal engine condition. A halted
// auction refuses admissions until the orchestrator completes a tick.
type Faults struct {
	log     logger.Logger
	metrics *metrics.Metrics

	mu     sync.RWMutex
	halted map[string]error
}

// NewFaults creates an empty fault tracker
func NewFaults(log logger.Logger, m *metrics.Metrics) *Faults {
	return &Faults{log: log, metrics: m, halted: make(map[string]error)}
}

// Clock records a clock failure
func (f *Faults) Clock(err error) error {
	f.log.Error("Clock unavailable, refusing time-dependent work", "error", err)
	f.metrics.EngineFaults.WithLabelValues("clock").Inc()
	return errors.Unavailable("clock unavailable", err)
}

// Persistence records a store failure and halts the auction
func (f *Faults) Persistence(auctionID string, err error) error {
	f.log.Error("Persistence failure, halting auction", "auction_id", auctionID, "error", err)
	f.metrics.EngineFaults.WithLabelValues("persistence").Inc()
	if auctionID != "" {
		f.mu.Lock()
		f.halted[auctionID] = err
		f.mu.Unlock()
	}
	return errors.Unavailable("persistence unavailable", err)
}

// Check returns an Unavailable error while the auction is halted
func (f *Faults) Check(auctionID string) error {
	f.mu.RLock()
	cause, ok := f.halted[auctionID]
	f.mu.RUnlock()
	if ok {
		return errors.Unavailable("auction halted after an engine fault", cause)
	}
	return nil
}

// Halted reports whether the auction is halted
func (f *Faults) Halted(auctionID string) bool {
	return f.Check(auctionID) != nil
}

// Clear lifts a halt
func (f *Faults) Clear(auctionID string) {
	f.mu.Lock()
	if _, ok := f.halted[auctionID]; ok {
		delete(f.halted, auctionID)
		f.log.Info("Auction resumed after engine fault", "auction_id", auctionID)
	}
	f.mu.Unlock()
}

// storeErr maps a repository error: missing rows become NotFound, anything
// else is a persistence fault for the auction
func (f *Faults) storeErr(auctionID string, err error, format string, args ...interface{}) error {
	if stderrors.Is(err, repository.ErrNotFound) {
		return errors.NotFoundf(format, args...)
	}
	return f.Persistence(auctionID, err)
}

// resultLabel turns an admission outcome into a metrics label
func resultLabel(err error) string {
	if err == nil {
		return metrics.ResultAccepted
	}
	if reason, ok := errors.ReasonOf(err); ok {
		return string(reason)
	}
	if errors.IsUnavailable(err) {
		return metrics.ResultFault
	}
	return errors.KindOf(err).String()
}

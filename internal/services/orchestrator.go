package services

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/SudarshanaRao/dream60/internal/events"
	"github.com/SudarshanaRao/dream60/internal/models"
	"github.com/SudarshanaRao/dream60/internal/ranking"
	"github.com/SudarshanaRao/dream60/internal/repository"
)

// OrchestratorRepository defines the repository methods needed by Orchestrator
type OrchestratorRepository interface {
	GetAuction(ctx context.Context, id string) (*models.Auction, error)
	ListUnsettledAuctions(ctx context.Context) ([]models.Auction, error)
	UpdateAuctionStatus(ctx context.Context, id string, from, to models.AuctionStatus, completedAt *time.Time) error
	ListRounds(ctx context.Context, auctionID string) ([]models.Round, error)
	CountParticipants(ctx context.Context, auctionID string) (int, error)
	ListBids(ctx context.Context, auctionID string) ([]models.Bid, error)
}

// Scheduler creates the daily auctions for a day
type Scheduler interface {
	Schedule(ctx context.Context, day time.Time) ([]models.Auction, error)
}

// OrchestratorConfig holds the loop intervals
type OrchestratorConfig struct {
	TickInterval      time.Duration
	SuperviseInterval time.Duration
	AutoSchedule      bool
}

// Orchestrator drives every unsettled auction through its lifecycle. Each
// auction gets its own runner goroutine; a supervisor loop starts runners
// for auctions found in the store, which also recovers them after a
// restart.
type Orchestrator struct {
	*Runtime
	repo      OrchestratorRepository
	rounds    *RoundManager
	claims    *ClaimCascade
	scheduler Scheduler
	cfg       OrchestratorConfig

	mu      sync.Mutex
	runners map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewOrchestrator creates a new Orchestrator. scheduler may be nil when
// auctions are only created by operators.
func NewOrchestrator(rt *Runtime, repo OrchestratorRepository, rounds *RoundManager, claims *ClaimCascade, scheduler Scheduler, cfg OrchestratorConfig) *Orchestrator {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 250 * time.Millisecond
	}
	if cfg.SuperviseInterval <= 0 {
		cfg.SuperviseInterval = 5 * time.Second
	}
	return &Orchestrator{
		Runtime:   rt,
		repo:      repo,
		rounds:    rounds,
		claims:    claims,
		scheduler: scheduler,
		cfg:       cfg,
		runners:   make(map[string]context.CancelFunc),
	}
}

// Run supervises auctions until ctx is cancelled, then waits for every
// runner to stop
func (o *Orchestrator) Run(ctx context.Context) error {
	o.Log.Info("Orchestrator started", "tick", o.cfg.TickInterval, "supervise", o.cfg.SuperviseInterval)
	ticker := time.NewTicker(o.cfg.SuperviseInterval)
	defer ticker.Stop()

	for {
		if err := o.Supervise(ctx); err != nil {
			o.Log.Debug("Supervise pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			o.wg.Wait()
			o.Log.Info("Orchestrator stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Supervise schedules the daily slots when enabled and starts a runner for
// every unsettled auction that is about to start or already running
func (o *Orchestrator) Supervise(ctx context.Context) error {
	now, err := o.Clock.Now()
	if err != nil {
		return o.Faults.Clock(err)
	}

	if o.cfg.AutoSchedule && o.scheduler != nil {
		for _, day := range []time.Time{now, now.AddDate(0, 0, 1)} {
			if _, err := o.scheduler.Schedule(ctx, day); err != nil {
				o.Log.Warn("Daily scheduling failed", "day", day.Format(time.DateOnly), "error", err)
			}
		}
	}

	auctions, err := o.repo.ListUnsettledAuctions(ctx)
	if err != nil {
		return o.Faults.Persistence("", err)
	}
	lead := 2 * o.cfg.SuperviseInterval
	for _, a := range auctions {
		if a.Status == models.AuctionUpcoming && a.SlotStart.Sub(now) > lead {
			continue
		}
		o.watch(ctx, a.ID)
	}
	return nil
}

// Running reports whether a runner is active for the auction
func (o *Orchestrator) Running(auctionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.runners[auctionID]
	return ok
}

func (o *Orchestrator) watch(ctx context.Context, auctionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.runners[auctionID]; ok {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	o.runners[auctionID] = cancel
	o.wg.Add(1)
	o.Metrics.ActiveAuctions.Inc()
	go o.run(runCtx, auctionID)
}

func (o *Orchestrator) run(ctx context.Context, auctionID string) {
	defer o.wg.Done()
	defer func() {
		o.mu.Lock()
		if cancel, ok := o.runners[auctionID]; ok {
			cancel()
			delete(o.runners, auctionID)
		}
		o.mu.Unlock()
		o.Metrics.ActiveAuctions.Dec()
	}()

	log := o.Log.With("auction_id", auctionID)
	log.Info("Auction runner started")

	ticker := time.NewTicker(o.cfg.TickInterval)
	defer ticker.Stop()
	for {
		done, err := o.Step(ctx, auctionID)
		if err != nil {
			log.Debug("Tick failed", "error", err)
		}
		if done {
			o.rounds.Forget(auctionID)
			o.claims.Forget(auctionID)
			log.Info("Auction settled, runner stopped")
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Step performs every transition due for the auction at the current clock
// reading. It reports true once the auction needs no further work. A
// successful step lifts any halt on the auction.
func (o *Orchestrator) Step(ctx context.Context, auctionID string) (bool, error) {
	now, err := o.Clock.Now()
	if err != nil {
		return false, o.Faults.Clock(err)
	}

	a, err := o.repo.GetAuction(ctx, auctionID)
	if stderrors.Is(err, repository.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, o.Faults.Persistence(auctionID, err)
	}
	if a.Terminal() {
		return true, nil
	}

	if err := o.advance(ctx, a, now); err != nil {
		if stderrors.Is(err, repository.ErrConflict) {
			// cancelled mid-step, the next step sees the terminal status
			o.Log.Info("Auction changed during step", "auction_id", auctionID, "error", err)
			return false, nil
		}
		return false, o.Faults.Persistence(auctionID, err)
	}
	o.Faults.Clear(auctionID)
	return a.Terminal(), nil
}

func (o *Orchestrator) advance(ctx context.Context, a *models.Auction, now time.Time) error {
	if a.Status == models.AuctionUpcoming && !now.Before(a.SlotStart) {
		if err := o.repo.UpdateAuctionStatus(ctx, a.ID, models.AuctionUpcoming, models.AuctionLive, nil); err != nil {
			return err
		}
		a.Status = models.AuctionLive
		o.Log.Info("Auction live", "auction_id", a.ID, "ends_at", a.EndsAt())
		o.publish(ctx, events.Event{Type: events.AuctionLive, AuctionID: a.ID, At: a.SlotStart})
	}

	if a.Status == models.AuctionLive {
		if err := o.advanceRounds(ctx, a, now); err != nil {
			return err
		}
	}

	if a.Status == models.AuctionCompleted && a.ClaimState.OfferedRank() > 0 {
		updated, err := o.claims.Expire(ctx, a.ID, now)
		if err != nil {
			return err
		}
		a.ClaimState = updated.ClaimState
	}
	return nil
}

// advanceRounds opens and closes rounds in order, catching up on every
// boundary passed since the last tick, and ranks the winners when the
// auction's last round closes
func (o *Orchestrator) advanceRounds(ctx context.Context, a *models.Auction, now time.Time) error {
	rounds, err := o.repo.ListRounds(ctx, a.ID)
	if err != nil {
		return err
	}

	for i := range rounds {
		r := &rounds[i]
		if now.Before(r.OpensAt) {
			return nil
		}
		if r.Status == models.RoundPending && r.ActiveAt(now) {
			if err := o.rounds.OpenRound(ctx, a, r); err != nil {
				return err
			}
		}
		if r.Status == models.RoundCompleted || now.Before(r.ClosesAt) {
			continue
		}

		if err := o.rounds.CloseRound(ctx, a, r); err != nil {
			return err
		}
		done, err := o.afterClose(ctx, a, r.Number, now)
		if err != nil || done {
			return err
		}
	}
	return nil
}

// afterClose ranks the winners when round n ends the auction: either the
// final round, or round 1 with too few participants to continue
func (o *Orchestrator) afterClose(ctx context.Context, a *models.Auction, n int, now time.Time) (bool, error) {
	if n == a.RoundCount {
		return true, o.announce(ctx, a, n, false, nil, now)
	}
	if n != 1 {
		return false, nil
	}

	count, err := o.repo.CountParticipants(ctx, a.ID)
	if err != nil {
		return false, err
	}
	if !ranking.ShouldCompleteEarly(n, count) {
		return false, nil
	}

	skipped := make([]int, 0, a.RoundCount-1)
	for r := 2; r <= a.RoundCount; r++ {
		skipped = append(skipped, r)
	}
	o.Log.Info("Completing auction early", "auction_id", a.ID, "participants", count)
	return true, o.announce(ctx, a, n, true, skipped, now)
}

func (o *Orchestrator) announce(ctx context.Context, a *models.Auction, n int, early bool, skipped []int, now time.Time) error {
	bids, err := o.repo.ListBids(ctx, a.ID)
	if err != nil {
		return err
	}
	placements := ranking.Rank(ranking.EntriesFromBids(bids, n), models.MaxClaimRank)
	return o.claims.Announce(ctx, a, placements, early, skipped, now)
}

package services

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/SudarshanaRao/dream60/internal/bidding"
	"github.com/SudarshanaRao/dream60/internal/errors"
	"github.com/SudarshanaRao/dream60/internal/events"
	"github.com/SudarshanaRao/dream60/internal/models"
	"github.com/SudarshanaRao/dream60/internal/ranking"
	"github.com/SudarshanaRao/dream60/internal/repository"
)

// RoundManagerRepository defines the repository methods needed by RoundManager
type RoundManagerRepository interface {
	repository.AuctionRepository
	repository.ParticipantRepository
	repository.BidRepository
}

type roundKey struct {
	auctionID string
	round     int
}

type slotKey struct {
	roundKey
	participantID string
}

// RoundManager admits bids and opens and closes rounds.
//
// Admissions for a round share that round's gate; closing a round takes it
// exclusively, so every bid admitted before the close is visible to the
// ranking and none lands after it. Within a round, a participant's
// admissions are serialized by a slot mutex, and the store enforces
// one bid per (auction, participant, round) on top of that.
type RoundManager struct {
	*Runtime
	repo RoundManagerRepository

	mu    sync.Mutex
	gates map[roundKey]*sync.RWMutex
	slots map[slotKey]*sync.Mutex
}

// NewRoundManager creates a new RoundManager
func NewRoundManager(rt *Runtime, repo RoundManagerRepository) *RoundManager {
	return &RoundManager{
		Runtime: rt,
		repo:    repo,
		gates:   make(map[roundKey]*sync.RWMutex),
		slots:   make(map[slotKey]*sync.Mutex),
	}
}

func (m *RoundManager) gate(auctionID string, round int) *sync.RWMutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := roundKey{auctionID, round}
	g, ok := m.gates[k]
	if !ok {
		g = &sync.RWMutex{}
		m.gates[k] = g
	}
	return g
}

func (m *RoundManager) slot(auctionID string, round int, participantID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := slotKey{roundKey{auctionID, round}, participantID}
	s, ok := m.slots[k]
	if !ok {
		s = &sync.Mutex{}
		m.slots[k] = s
	}
	return s
}

// releaseSlots drops the participant mutexes of a closed round
func (m *RoundManager) releaseSlots(auctionID string, round int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.slots {
		if k.auctionID == auctionID && k.round == round {
			delete(m.slots, k)
		}
	}
}

// Forget drops all locks held for a settled auction
func (m *RoundManager) Forget(auctionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k := range m.gates {
		if k.auctionID == auctionID {
			delete(m.gates, k)
		}
	}
	for k := range m.slots {
		if k.auctionID == auctionID {
			delete(m.slots, k)
		}
	}
}

// SubmitBid validates and records a participant's bid for a round
func (m *RoundManager) SubmitBid(ctx context.Context, auctionID string, round int, participantID string, amount int64) (*models.Bid, error) {
	start := time.Now()
	bid, err := m.submitBid(ctx, auctionID, round, participantID, amount)
	m.Metrics.BidLatency.Observe(time.Since(start).Seconds())
	m.Metrics.Bids.WithLabelValues(resultLabel(err)).Inc()
	return bid, err
}

func (m *RoundManager) submitBid(ctx context.Context, auctionID string, round int, participantID string, amount int64) (*models.Bid, error) {
	if participantID == "" {
		return nil, errors.InvalidInput("participantId is required")
	}
	if amount <= 0 {
		return nil, errors.InvalidInput("amount must be a positive integer")
	}
	if err := m.Faults.Check(auctionID); err != nil {
		return nil, err
	}

	// locks are only allocated for rounds that exist and can still close
	a, r, err := m.load(ctx, auctionID, round)
	if err != nil {
		return nil, err
	}
	if r.Status != models.RoundCompleted && a.Status != models.AuctionCancelled && !a.WinnersAnnounced {
		gate := m.gate(auctionID, round)
		gate.RLock()
		defer gate.RUnlock()

		// bidders without an entry are rejected as unpaid and get no slot
		switch _, err := m.repo.GetParticipant(ctx, auctionID, participantID); {
		case err == nil:
			slot := m.slot(auctionID, round, participantID)
			slot.Lock()
			defer slot.Unlock()
		case !stderrors.Is(err, repository.ErrNotFound):
			return nil, m.Faults.Persistence(auctionID, err)
		}

		if a, r, err = m.load(ctx, auctionID, round); err != nil {
			return nil, err
		}
	}

	now, err := m.Clock.Now()
	if err != nil {
		return nil, m.Faults.Clock(err)
	}

	req := bidding.Request{Auction: a, Round: r, Amount: amount, Now: now}
	req.Participant, req.History, err = m.history(ctx, a, round, participantID)
	if err != nil {
		return nil, err
	}

	if _, err := bidding.Validate(req); err != nil {
		m.Log.Debug("Bid rejected", "auction_id", auctionID, "round", round, "participant_id", participantID, "amount", amount, "error", err)
		return nil, err
	}

	bid := &models.Bid{
		ID:            uuid.NewString(),
		AuctionID:     auctionID,
		ParticipantID: participantID,
		Round:         round,
		Amount:        amount,
		PlacedAt:      now,
		Valid:         true,
	}
	created, err := m.repo.InsertBid(ctx, bid)
	if err != nil {
		return nil, m.Faults.Persistence(auctionID, err)
	}
	if !created {
		return nil, errors.Rejectf(errors.ReasonDuplicateBid, "a bid for round %d was already placed", round)
	}

	m.Log.Info("Bid accepted", "auction_id", auctionID, "round", round, "participant_id", participantID, "amount", amount)
	m.publish(ctx, events.Event{
		Type:      events.BidAccepted,
		AuctionID: auctionID,
		Round:     round,
		Payload:   map[string]any{"participantId": participantID, "placedAt": now},
		At:        now,
	})
	return bid, nil
}

// load reads the auction and one of its rounds
func (m *RoundManager) load(ctx context.Context, auctionID string, round int) (*models.Auction, *models.Round, error) {
	a, err := m.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, nil, m.Faults.storeErr(auctionID, err, "auction %s not found", auctionID)
	}
	if round < 1 || round > a.RoundCount {
		return nil, nil, errors.NotFoundf("round %d not found", round)
	}
	r, err := m.repo.GetRound(ctx, auctionID, round)
	if err != nil {
		return nil, nil, m.Faults.storeErr(auctionID, err, "round %d not found", round)
	}
	return a, r, nil
}

// history loads everything a bid for round is judged against. The
// participant is nil when no entry fee was paid.
func (m *RoundManager) history(ctx context.Context, a *models.Auction, round int, participantID string) (*models.Participant, bidding.History, error) {
	var h bidding.History

	p, err := m.repo.GetParticipant(ctx, a.ID, participantID)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, h, nil
	}
	if err != nil {
		return nil, h, m.Faults.Persistence(a.ID, err)
	}

	bids, err := m.repo.ListParticipantBids(ctx, a.ID, participantID)
	if err != nil {
		return nil, h, m.Faults.Persistence(a.ID, err)
	}
	for _, b := range bids {
		switch {
		case b.Round == round:
			h.HasBidThisRound = true
		case b.Round < round:
			h.PriorBids = append(h.PriorBids, b)
		}
	}

	if round > 1 {
		h.PreviousRoundHighest, err = m.repo.HighestBid(ctx, a.ID, round-1)
		if err != nil {
			return nil, h, m.Faults.Persistence(a.ID, err)
		}
	}
	return p, h, nil
}

// Limits returns the bid range for participantID in round, and whether they
// already bid there
func (m *RoundManager) Limits(ctx context.Context, a *models.Auction, round int, participantID string) (bidding.Limits, bool, error) {
	p, h, err := m.history(ctx, a, round, participantID)
	if err != nil || p == nil {
		return bidding.Limits{MaxBid: bidding.MaxBid(a.PrizeValue)}, false, err
	}
	return bidding.LimitsFor(a, round, h), h.HasBidThisRound, nil
}

// OpenRound marks a round ACTIVE
func (m *RoundManager) OpenRound(ctx context.Context, a *models.Auction, r *models.Round) error {
	if err := m.repo.UpdateRoundStatus(ctx, a.ID, r.Number, models.RoundActive); err != nil {
		return err
	}
	r.Status = models.RoundActive
	m.Metrics.RoundTransitions.WithLabelValues(string(models.RoundActive)).Inc()
	m.Log.Info("Round opened", "auction_id", a.ID, "round", r.Number, "closes_at", r.ClosesAt)

	payload := map[string]any{"opensAt": r.OpensAt, "closesAt": r.ClosesAt, "maxBid": bidding.MaxBid(a.PrizeValue)}
	// later rounds have a per-participant minimum
	if r.Number == 1 {
		payload["minBid"] = a.FirstRoundMinimum()
	}
	m.publish(ctx, events.Event{Type: events.RoundOpened, AuctionID: a.ID, Round: r.Number, Payload: payload, At: r.OpensAt})
	return nil
}

// CloseRound marks a round COMPLETED and records its highest bid, bid
// count and top bidders. It waits for in-flight admissions of the round.
// Closing an already completed round is a no-op.
func (m *RoundManager) CloseRound(ctx context.Context, a *models.Auction, r *models.Round) error {
	gate := m.gate(a.ID, r.Number)
	gate.Lock()
	defer gate.Unlock()

	current, err := m.repo.GetRound(ctx, a.ID, r.Number)
	if err != nil {
		return err
	}
	if current.Status == models.RoundCompleted {
		*r = *current
		return nil
	}

	bids, err := m.repo.ListBids(ctx, a.ID)
	if err != nil {
		return err
	}

	var highest int64
	count := 0
	for _, b := range bids {
		if b.Round == r.Number && b.Valid {
			count++
			highest = max(highest, b.Amount)
		}
	}
	placements := ranking.Rank(ranking.EntriesFromBids(bids, r.Number), models.MaxClaimRank)
	qualified := make([]string, 0, len(placements))
	for _, p := range placements {
		qualified = append(qualified, p.ParticipantID)
	}

	if err := m.repo.CompleteRound(ctx, a.ID, r.Number, highest, count, qualified); err != nil {
		return err
	}
	r.Status = models.RoundCompleted
	r.HighestBid = highest
	r.BidCount = count
	r.Qualified = qualified

	m.releaseSlots(a.ID, r.Number)
	m.Metrics.RoundTransitions.WithLabelValues(string(models.RoundCompleted)).Inc()
	m.Log.Info("Round closed", "auction_id", a.ID, "round", r.Number, "bids", count, "highest", highest)

	m.publish(ctx, events.Event{
		Type:      events.RoundClosed,
		AuctionID: a.ID,
		Round:     r.Number,
		Payload: map[string]any{
			"highestBid":  highest,
			"bidCount":    count,
			"leaderboard": ranking.Leaderboard(placements),
		},
		At: r.ClosesAt,
	})
	return nil
}

// Leaderboard ranks every bid of a completed round
func (m *RoundManager) Leaderboard(ctx context.Context, auctionID string, round int) ([]models.LeaderboardEntry, error) {
	r, err := m.repo.GetRound(ctx, auctionID, round)
	if err != nil {
		return nil, m.Faults.storeErr(auctionID, err, "round %d not found", round)
	}
	if r.Status != models.RoundCompleted {
		return nil, errors.Conflictf("round %d has not completed", round)
	}
	bids, err := m.repo.ListBids(ctx, auctionID)
	if err != nil {
		return nil, m.Faults.Persistence(auctionID, err)
	}
	return ranking.Leaderboard(ranking.Rank(ranking.EntriesFromBids(bids, round), 0)), nil
}

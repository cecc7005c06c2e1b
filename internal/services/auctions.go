package services

import (
	"context"
	"encoding/binary"
	stderrors "errors"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/SudarshanaRao/dream60/internal/bidding"
	"github.com/SudarshanaRao/dream60/internal/errors"
	"github.com/SudarshanaRao/dream60/internal/events"
	"github.com/SudarshanaRao/dream60/internal/models"
	"github.com/SudarshanaRao/dream60/internal/ranking"
	"github.com/SudarshanaRao/dream60/internal/repository"
	"github.com/SudarshanaRao/dream60/pkg/payments"
)

// AuctionServiceRepository defines the repository methods needed by AuctionService
type AuctionServiceRepository interface {
	repository.AuctionRepository
	repository.ParticipantRepository
	repository.BidRepository
	repository.ClaimRepository
}

// AuctionDefaults are applied to auctions created without explicit values
type AuctionDefaults struct {
	Location          *time.Location
	DailySlots        []string // "HH:MM" in Location
	RoundCount        int
	RoundDuration     time.Duration
	ClaimWindow       time.Duration
	CutoffPercentages []decimal.Decimal
	PrizeValue        int64
	EntryFeeMin       int64
	EntryFeeMax       int64
	BaseMinBid        int64
}

// DefaultAuctionDefaults is four 15-minute rounds with a 60% cutoff
func DefaultAuctionDefaults() AuctionDefaults {
	cutoffs := make([]decimal.Decimal, 4)
	for i := range cutoffs {
		cutoffs[i] = decimal.NewFromInt(60)
	}
	return AuctionDefaults{
		Location:          time.UTC,
		RoundCount:        4,
		RoundDuration:     15 * time.Minute,
		ClaimWindow:       15 * time.Minute,
		CutoffPercentages: cutoffs,
		PrizeValue:        10000,
		EntryFeeMin:       40,
		EntryFeeMax:       40,
	}
}

// CreateAuction is an operator request for a new auction. Zero values
// fall back to the configured defaults.
type CreateAuction struct {
	SlotStart         time.Time         `json:"slotStart"`
	PrizeValue        int64             `json:"prizeValue"`
	EntryFeeBoxA      int64             `json:"entryFeeBoxA"`
	EntryFeeBoxB      int64             `json:"entryFeeBoxB"`
	BaseMinBid        int64             `json:"baseMinBid"`
	RoundCount        int               `json:"roundCount"`
	RoundDuration     time.Duration     `json:"-"`
	ClaimWindow       time.Duration     `json:"-"`
	CutoffPercentages []decimal.Decimal `json:"cutoffPercentages"`
}

// AuctionState is the public snapshot of an auction
type AuctionState struct {
	models.Auction
	Participants int            `json:"participants"`
	Claims       []models.Claim `json:"claims,omitempty"`
	ServerTime   time.Time      `json:"serverTime"`
}

// ParticipantView is an auction from one participant's point of view
type ParticipantView struct {
	AuctionID       string               `json:"auctionId"`
	AuctionStatus   models.AuctionStatus `json:"auctionStatus"`
	Joined          bool                 `json:"joined"`
	Participant     *models.Participant  `json:"participant,omitempty"`
	Bids            []models.Bid         `json:"bids"`
	CumulativeTotal int64                `json:"cumulativeTotal"`
	Stage           models.Stage         `json:"stage"`
	Claim           *models.Claim        `json:"claim,omitempty"`
	ServerTime      time.Time            `json:"serverTime"`
}

// AuctionReport summarizes an auction for analytics
type AuctionReport struct {
	Auction            models.Auction  `json:"auction"`
	Participants       int             `json:"participants"`
	EntryFeesCollected int64           `json:"entryFeesCollected"`
	TotalBids          int             `json:"totalBids"`
	Claims             []models.Claim  `json:"claims"`
	Refunds            []models.Refund `json:"refunds"`
	RefundedTotal      int64           `json:"refundedTotal"`
}

// AuctionService creates auctions and handles entry, cancellation and the
// read models around them
type AuctionService struct {
	*Runtime
	repo     AuctionServiceRepository
	payments payments.Client
	rounds   *RoundManager
	claims   *ClaimCascade
	refunds  *refunder
	defaults AuctionDefaults
	src      rand.Source
}

// NewAuctionService creates a new AuctionService
func NewAuctionService(rt *Runtime, repo AuctionServiceRepository, client payments.Client, rounds *RoundManager, claims *ClaimCascade, defaults AuctionDefaults) *AuctionService {
	if defaults.Location == nil {
		defaults.Location = time.UTC
	}
	return &AuctionService{
		Runtime:  rt,
		repo:     repo,
		payments: client,
		rounds:   rounds,
		claims:   claims,
		refunds:  &refunder{Runtime: rt, repo: repo, payments: client},
		defaults: defaults,
	}
}

// SetRandSource replaces the source used to draw entry fees. By default the
// draw is seeded from the auction id so a slot always gets the same fees.
func (s *AuctionService) SetRandSource(src rand.Source) {
	s.src = src
}

// SlotID is the auction id for a slot start
func SlotID(slotStart time.Time) string {
	name := "dream60/" + slotStart.UTC().Format(time.RFC3339)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

func (s *AuctionService) rng(id string) *rand.Rand {
	if s.src != nil {
		return rand.New(s.src)
	}
	u := uuid.MustParse(id)
	return rand.New(rand.NewPCG(binary.BigEndian.Uint64(u[:8]), binary.BigEndian.Uint64(u[8:])))
}

// drawFees picks an entry fee in [EntryFeeMin, EntryFeeMax] and splits it
// into two non-empty boxes
func (s *AuctionService) drawFees(r *rand.Rand) (int64, int64) {
	lo, hi := s.defaults.EntryFeeMin, max(s.defaults.EntryFeeMax, s.defaults.EntryFeeMin)
	fee := lo
	if hi > lo {
		fee += r.Int64N(hi - lo + 1)
	}
	if fee < 2 {
		return fee, 0
	}
	boxA := fee/4 + r.Int64N(fee/2+1)
	boxA = min(max(boxA, 1), fee-1)
	return boxA, fee - boxA
}

// Create stores a new auction for a slot. Creating the same slot twice
// returns the existing auction.
func (s *AuctionService) Create(ctx context.Context, req CreateAuction) (*models.Auction, error) {
	now, err := s.Clock.Now()
	if err != nil {
		return nil, s.Faults.Clock(err)
	}
	a, err := s.build(req)
	if err != nil {
		return nil, err
	}
	if !now.Before(a.EndsAt()) {
		return nil, errors.Validationf("slot starting %s has already ended", a.SlotStart.Format(time.RFC3339))
	}
	a.CreatedAt = now

	rounds := make([]models.Round, 0, a.RoundCount)
	for n := 1; n <= a.RoundCount; n++ {
		opens, closes := a.RoundWindow(n)
		rounds = append(rounds, models.Round{AuctionID: a.ID, Number: n, OpensAt: opens, ClosesAt: closes, Status: models.RoundPending})
	}

	created, err := s.repo.CreateAuction(ctx, a, rounds)
	if err != nil {
		return nil, s.Faults.Persistence("", err)
	}
	if !created {
		existing, err := s.repo.GetAuction(ctx, a.ID)
		if err != nil {
			return nil, s.Faults.Persistence("", err)
		}
		return existing, nil
	}
	a.Rounds = rounds

	s.Log.Info("Auction created", "auction_id", a.ID, "slot_start", a.SlotStart, "prize", a.PrizeValue, "entry_fee", a.EntryFee())
	s.publish(ctx, events.Event{Type: events.AuctionCreated, AuctionID: a.ID, Payload: a, At: now})
	return a, nil
}

func (s *AuctionService) build(req CreateAuction) (*models.Auction, error) {
	if req.SlotStart.IsZero() {
		return nil, errors.Validation("slotStart is required")
	}
	d := s.defaults
	a := &models.Auction{
		ID:                SlotID(req.SlotStart),
		SlotStart:         req.SlotStart.UTC(),
		PrizeValue:        orDefault(req.PrizeValue, d.PrizeValue),
		EntryFeeBoxA:      req.EntryFeeBoxA,
		EntryFeeBoxB:      req.EntryFeeBoxB,
		BaseMinBid:        orDefault(req.BaseMinBid, d.BaseMinBid),
		RoundCount:        orDefault(req.RoundCount, d.RoundCount),
		RoundDuration:     orDefault(req.RoundDuration, d.RoundDuration),
		ClaimWindow:       orDefault(req.ClaimWindow, d.ClaimWindow),
		CutoffPercentages: req.CutoffPercentages,
		Status:            models.AuctionUpcoming,
		ClaimState:        models.ClaimNotStarted,
	}
	if len(a.CutoffPercentages) == 0 {
		a.CutoffPercentages = d.CutoffPercentages
	}

	switch {
	case a.PrizeValue <= 0:
		return nil, errors.Validation("prizeValue must be positive")
	case a.RoundCount < 1:
		return nil, errors.Validation("roundCount must be at least 1")
	case a.RoundDuration <= 0 || a.ClaimWindow <= 0:
		return nil, errors.Validation("round duration and claim window must be positive")
	case len(a.CutoffPercentages) != a.RoundCount:
		return nil, errors.Validationf("cutoffPercentages must have %d entries", a.RoundCount)
	case a.EntryFeeBoxA < 0 || a.EntryFeeBoxB < 0 || a.BaseMinBid < 0:
		return nil, errors.Validation("fees and minimum bid must not be negative")
	}

	if a.EntryFee() == 0 {
		a.EntryFeeBoxA, a.EntryFeeBoxB = s.drawFees(s.rng(a.ID))
	}
	if a.EntryFee() <= 0 {
		return nil, errors.Validation("entry fee must be positive")
	}
	if a.FirstRoundMinimum() > bidding.MaxBid(a.PrizeValue) {
		return nil, errors.Validationf("round 1 minimum %d exceeds the maximum bid %d", a.FirstRoundMinimum(), bidding.MaxBid(a.PrizeValue))
	}
	return a, nil
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}

// Schedule creates one auction per configured daily slot on day. Slots that
// have already ended are skipped; slots already scheduled are returned as
// stored.
func (s *AuctionService) Schedule(ctx context.Context, day time.Time) ([]models.Auction, error) {
	now, err := s.Clock.Now()
	if err != nil {
		return nil, s.Faults.Clock(err)
	}
	local := day.In(s.defaults.Location)

	auctions := make([]models.Auction, 0, len(s.defaults.DailySlots))
	for _, slot := range s.defaults.DailySlots {
		hm, err := time.Parse("15:04", slot)
		if err != nil {
			return nil, errors.Validationf("invalid daily slot %q", slot)
		}
		start := time.Date(local.Year(), local.Month(), local.Day(), hm.Hour(), hm.Minute(), 0, 0, s.defaults.Location)
		end := start.Add(time.Duration(orDefault(s.defaults.RoundCount, 4)) * s.defaults.RoundDuration)
		if !now.Before(end) {
			continue
		}
		a, err := s.Create(ctx, CreateAuction{SlotStart: start})
		if err != nil {
			return nil, err
		}
		auctions = append(auctions, *a)
	}
	return auctions, nil
}

// Get returns the snapshot of an auction with rounds and claims
func (s *AuctionService) Get(ctx context.Context, id string) (*AuctionState, error) {
	now, err := s.Clock.Now()
	if err != nil {
		return nil, s.Faults.Clock(err)
	}
	a, err := s.repo.GetAuction(ctx, id)
	if err != nil {
		return nil, s.Faults.storeErr(id, err, "auction %s not found", id)
	}
	if a.Rounds, err = s.repo.ListRounds(ctx, id); err != nil {
		return nil, s.Faults.Persistence(id, err)
	}
	count, err := s.repo.CountParticipants(ctx, id)
	if err != nil {
		return nil, s.Faults.Persistence(id, err)
	}
	claims, err := s.claims.Claims(ctx, id)
	if err != nil {
		return nil, err
	}
	return &AuctionState{Auction: *a, Participants: count, Claims: claims, ServerTime: now}, nil
}

// Live returns the snapshot of the earliest LIVE auction
func (s *AuctionService) Live(ctx context.Context) (*AuctionState, error) {
	live, err := s.repo.ListAuctionsByStatus(ctx, models.AuctionLive)
	if err != nil {
		return nil, s.Faults.Persistence("", err)
	}
	if len(live) == 0 {
		return nil, errors.NotFound("no auction is live")
	}
	return s.Get(ctx, live[0].ID)
}

// List returns the auctions whose slot starts on day
func (s *AuctionService) List(ctx context.Context, day time.Time) ([]models.Auction, error) {
	local := day.In(s.defaults.Location)
	from := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.defaults.Location)
	auctions, err := s.repo.ListAuctionsBetween(ctx, from, from.AddDate(0, 0, 1))
	if err != nil {
		return nil, s.Faults.Persistence("", err)
	}
	return auctions, nil
}

// entryClosesAt is when round 1 closes
func entryClosesAt(a *models.Auction) time.Time {
	_, closes := a.RoundWindow(1)
	return closes
}

func entryOpen(a *models.Auction, now time.Time) bool {
	open := a.Status == models.AuctionUpcoming || a.Status == models.AuctionLive
	return open && !a.WinnersAnnounced && now.Before(entryClosesAt(a))
}

// Join records a paid entry. The payment must settle the auction's entry
// fee and each participant may enter an auction once.
func (s *AuctionService) Join(ctx context.Context, auctionID, participantID, paymentRef string) (*models.Participant, error) {
	p, err := s.join(ctx, auctionID, participantID, paymentRef)
	s.Metrics.Entries.WithLabelValues(resultLabel(err)).Inc()
	return p, err
}

func (s *AuctionService) join(ctx context.Context, auctionID, participantID, paymentRef string) (*models.Participant, error) {
	if participantID == "" || paymentRef == "" {
		return nil, errors.InvalidInput("participantId and paymentRef are required")
	}
	if err := s.Faults.Check(auctionID); err != nil {
		return nil, err
	}
	now, err := s.Clock.Now()
	if err != nil {
		return nil, s.Faults.Clock(err)
	}
	a, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, s.Faults.storeErr(auctionID, err, "auction %s not found", auctionID)
	}
	if !entryOpen(a, now) {
		return nil, errors.Reject(errors.ReasonEntryClosed, "entry for this auction is closed").
			With("closesAt", entryClosesAt(a))
	}

	existing, err := s.repo.GetParticipant(ctx, auctionID, participantID)
	if err == nil {
		return nil, s.duplicateEntry(ctx, a, existing, paymentRef, nil, now)
	}
	if !stderrors.Is(err, repository.ErrNotFound) {
		return nil, s.Faults.Persistence(auctionID, err)
	}

	payment, err := s.payments.Confirm(ctx, paymentRef, participantID, a.EntryFee())
	if err != nil {
		if payments.IsRejection(err) {
			return nil, errors.Rejectf(errors.ReasonEntryNotPaid, "entry payment was not confirmed: %v", err).
				With("entryFee", a.EntryFee())
		}
		return nil, errors.Unavailable("payment provider unavailable", err)
	}

	p, created, err := s.admit(ctx, auctionID, participantID, paymentRef, payment)
	if err != nil {
		return nil, err
	}
	if !created {
		existing, err := s.repo.GetParticipant(ctx, auctionID, participantID)
		if err != nil {
			return nil, s.Faults.Persistence(auctionID, err)
		}
		return nil, s.duplicateEntry(ctx, a, existing, paymentRef, payment, p.JoinedAt)
	}
	now = p.JoinedAt

	count, err := s.repo.CountParticipants(ctx, auctionID)
	if err != nil {
		s.Log.Warn("Failed to count participants", "auction_id", auctionID, "error", err)
	}
	s.Log.Info("Participant joined", "auction_id", auctionID, "participant_id", participantID, "entry_fee", p.EntryFee)
	s.publish(ctx, events.Event{
		Type:      events.ParticipantJoined,
		AuctionID: auctionID,
		Payload:   map[string]any{"participants": count},
		At:        now,
	})
	return p, nil
}

// admit stores a confirmed entry. It holds round 1's gate so the insert is
// ordered against the round closing: an entry either lands before the close
// and is counted, or finds entry closed and has its payment refunded. The
// clock and the auction are read again because the provider call may have
// outlasted the entry window.
func (s *AuctionService) admit(ctx context.Context, auctionID, participantID, paymentRef string, payment *payments.Payment) (*models.Participant, bool, error) {
	gate := s.rounds.gate(auctionID, 1)
	gate.RLock()
	defer gate.RUnlock()

	now, err := s.Clock.Now()
	if err != nil {
		return nil, false, s.Faults.Clock(err)
	}
	a, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, false, s.Faults.Persistence(auctionID, err)
	}
	if !entryOpen(a, now) {
		rejection := errors.Reject(errors.ReasonEntryClosed, "entry for this auction closed before the payment settled").
			With("closesAt", entryClosesAt(a))
		amount := a.EntryFee()
		if payment != nil && payment.Amount > 0 {
			amount = payment.Amount
		}
		if err := s.refunds.refund(ctx, auctionID, participantID, paymentRef, amount, models.RefundEntryClosed, now); err != nil {
			return nil, false, s.Faults.Persistence(auctionID, err)
		}
		s.Log.Warn("Entry payment settled after entry closed", "auction_id", auctionID, "participant_id", participantID, "refunded", amount)
		return nil, false, rejection.With("refunded", amount)
	}

	p := &models.Participant{
		AuctionID:     auctionID,
		ParticipantID: participantID,
		EntryFee:      a.EntryFee(),
		PaymentRef:    paymentRef,
		PaidAt:        now,
		JoinedAt:      now,
	}
	created, err := s.repo.AddParticipant(ctx, p)
	if err != nil {
		return nil, false, s.Faults.Persistence(auctionID, err)
	}
	return p, created, nil
}

// duplicateEntry rejects a second entry. A second, different payment that
// the provider settled is refunded.
func (s *AuctionService) duplicateEntry(ctx context.Context, a *models.Auction, existing *models.Participant, paymentRef string, payment *payments.Payment, now time.Time) error {
	rejection := errors.Reject(errors.ReasonDuplicateEntryPayment, "entry fee was already paid for this auction")
	if existing.PaymentRef == paymentRef {
		return rejection
	}

	if payment == nil {
		p, err := s.payments.Confirm(ctx, paymentRef, existing.ParticipantID, a.EntryFee())
		if err != nil && !payments.IsRejection(err) {
			return errors.Unavailable("payment provider unavailable", err)
		}
		payment = p
	}
	if payment == nil || payment.Status != payments.StatusSucceeded || payment.Amount <= 0 {
		return rejection
	}
	if err := s.refunds.refund(ctx, a.ID, existing.ParticipantID, paymentRef, payment.Amount, models.RefundDuplicateEntry, now); err != nil {
		return s.Faults.Persistence(a.ID, err)
	}
	return rejection.With("refunded", payment.Amount)
}

const cancelAttempts = 3

// Cancel stops an auction that has not completed and refunds every entry fee
func (s *AuctionService) Cancel(ctx context.Context, auctionID string) (*models.Auction, error) {
	now, err := s.Clock.Now()
	if err != nil {
		return nil, s.Faults.Clock(err)
	}
	var a *models.Auction
	for attempt := 0; ; attempt++ {
		a, err = s.repo.GetAuction(ctx, auctionID)
		if err != nil {
			return nil, s.Faults.storeErr(auctionID, err, "auction %s not found", auctionID)
		}
		if a.Status == models.AuctionCompleted || a.Status == models.AuctionCancelled {
			return nil, errors.Conflictf("auction is already %s", a.Status)
		}
		err = s.repo.UpdateAuctionStatus(ctx, auctionID, a.Status, models.AuctionCancelled, &now)
		if err == nil {
			break
		}
		// the orchestrator moved the auction on, decide again on the fresh status
		if !stderrors.Is(err, repository.ErrConflict) || attempt == cancelAttempts-1 {
			return nil, s.Faults.Persistence(auctionID, err)
		}
	}
	a.Status = models.AuctionCancelled
	a.CompletedAt = &now

	participants, err := s.repo.ListParticipants(ctx, auctionID)
	if err != nil {
		return nil, s.Faults.Persistence(auctionID, err)
	}
	for _, p := range participants {
		if err := s.refunds.refund(ctx, auctionID, p.ParticipantID, p.PaymentRef, p.EntryFee, models.RefundAuctionCancelled, now); err != nil {
			return nil, s.Faults.Persistence(auctionID, err)
		}
	}

	s.Log.Warn("Auction cancelled", "auction_id", auctionID, "refunds", len(participants))
	s.publish(ctx, events.Event{Type: events.AuctionCancelled, AuctionID: auctionID, At: now})
	return a, nil
}

// ParticipantView returns the participant's bids, totals, claim and what
// they can do next
func (s *AuctionService) ParticipantView(ctx context.Context, auctionID, participantID string) (*ParticipantView, error) {
	now, err := s.Clock.Now()
	if err != nil {
		return nil, s.Faults.Clock(err)
	}
	a, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, s.Faults.storeErr(auctionID, err, "auction %s not found", auctionID)
	}
	rounds, err := s.repo.ListRounds(ctx, auctionID)
	if err != nil {
		return nil, s.Faults.Persistence(auctionID, err)
	}

	view := &ParticipantView{AuctionID: auctionID, AuctionStatus: a.Status, Bids: []models.Bid{}, ServerTime: now}

	p, err := s.repo.GetParticipant(ctx, auctionID, participantID)
	switch {
	case err == nil:
		view.Joined = true
		view.Participant = p
		view.CumulativeTotal = p.CumulativeTotal
		if view.Bids, err = s.repo.ListParticipantBids(ctx, auctionID, participantID); err != nil {
			return nil, s.Faults.Persistence(auctionID, err)
		}
	case !stderrors.Is(err, repository.ErrNotFound):
		return nil, s.Faults.Persistence(auctionID, err)
	}

	if a.WinnersAnnounced {
		claims, err := s.repo.ListClaims(ctx, auctionID)
		if err != nil {
			return nil, s.Faults.Persistence(auctionID, err)
		}
		if c := claimOf(claims, participantID); c != nil {
			view.Claim = c
		}
	}

	if !view.Joined && entryOpen(a, now) {
		view.Stage = models.EntryStage{
			EntryFee:     a.EntryFee(),
			EntryFeeBoxA: a.EntryFeeBoxA,
			EntryFeeBoxB: a.EntryFeeBoxB,
			ClosesAt:     entryClosesAt(a),
		}
		return view, nil
	}

	stage, err := s.roundStage(ctx, a, rounds, participantID, view.Joined, now)
	if err != nil {
		return nil, err
	}
	view.Stage = stage
	return view, nil
}

// stageRound picks the round a participant should be looking at: the one
// accepting bids, the next one to open, or the one winners were ranked on
func stageRound(a *models.Auction, rounds []models.Round, now time.Time) *models.Round {
	if len(rounds) == 0 {
		return nil
	}
	if a.WinnersAnnounced {
		final := a.RoundCount
		if a.EarlyCompletion {
			final = 1
		}
		for i := range rounds {
			if rounds[i].Number == final {
				return &rounds[i]
			}
		}
	}
	var last *models.Round
	for i := range rounds {
		r := &rounds[i]
		if r.Status != models.RoundCompleted && !now.Before(r.OpensAt) && now.Before(r.ClosesAt) {
			return r
		}
		if now.Before(r.OpensAt) {
			return r
		}
		last = r
	}
	return last
}

func (s *AuctionService) roundStage(ctx context.Context, a *models.Auction, rounds []models.Round, participantID string, joined bool, now time.Time) (models.Stage, error) {
	r := stageRound(a, rounds, now)
	if r == nil {
		return nil, nil
	}
	stage := models.RoundStage{
		RoundNumber:      r.Number,
		Status:           r.Status,
		OpensAt:          r.OpensAt,
		ClosesAt:         r.ClosesAt,
		MaxBid:           bidding.MaxBid(a.PrizeValue),
		WinnersAnnounced: a.WinnersAnnounced,
	}

	if r.Status == models.RoundCompleted {
		bids, err := s.repo.ListBids(ctx, a.ID)
		if err != nil {
			return nil, s.Faults.Persistence(a.ID, err)
		}
		stage.Leaderboard = ranking.Leaderboard(ranking.Rank(ranking.EntriesFromBids(bids, r.Number), models.MaxClaimRank))
		return stage, nil
	}

	if joined {
		limits, hasBid, err := s.rounds.Limits(ctx, a, r.Number, participantID)
		if err != nil {
			return nil, err
		}
		stage.MinBid = limits.MinBid
		stage.MaxBid = limits.MaxBid
		stage.HasBid = hasBid
	}
	return stage, nil
}

// Report summarizes participation, bidding, claims and refunds
func (s *AuctionService) Report(ctx context.Context, auctionID string) (*AuctionReport, error) {
	a, err := s.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, s.Faults.storeErr(auctionID, err, "auction %s not found", auctionID)
	}
	if a.Rounds, err = s.repo.ListRounds(ctx, auctionID); err != nil {
		return nil, s.Faults.Persistence(auctionID, err)
	}
	participants, err := s.repo.ListParticipants(ctx, auctionID)
	if err != nil {
		return nil, s.Faults.Persistence(auctionID, err)
	}
	bids, err := s.repo.ListBids(ctx, auctionID)
	if err != nil {
		return nil, s.Faults.Persistence(auctionID, err)
	}
	claims, err := s.claims.Claims(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	refunds, err := s.repo.ListRefunds(ctx, auctionID)
	if err != nil {
		return nil, s.Faults.Persistence(auctionID, err)
	}

	report := &AuctionReport{
		Auction:      *a,
		Participants: len(participants),
		TotalBids:    len(bids),
		Claims:       claims,
		Refunds:      refunds,
	}
	for _, p := range participants {
		report.EntryFeesCollected += p.EntryFee
	}
	for _, r := range refunds {
		report.RefundedTotal += r.Amount
	}
	if report.Claims == nil {
		report.Claims = []models.Claim{}
	}
	return report, nil
}

package services

import (
	"context"
	"sync"
	"time"

	"github.com/skip2/go-qrcode"

	"github.com/SudarshanaRao/dream60/internal/errors"
	"github.com/SudarshanaRao/dream60/internal/events"
	"github.com/SudarshanaRao/dream60/internal/models"
	"github.com/SudarshanaRao/dream60/internal/ranking"
	"github.com/SudarshanaRao/dream60/internal/repository"
	"github.com/SudarshanaRao/dream60/pkg/payments"
)

// ClaimCascadeRepository defines the repository methods needed by ClaimCascade
type ClaimCascadeRepository interface {
	repository.ClaimRepository
	GetAuction(ctx context.Context, id string) (*models.Auction, error)
}

// ClaimCascade offers the prize to the ranked winners one at a time. Each
// offer stays open for the auction's claim window; an unpaid offer expires
// and passes to the next rank.
type ClaimCascade struct {
	*Runtime
	repo     ClaimCascadeRepository
	payments payments.Client
	refunds  *refunder

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewClaimCascade creates a new ClaimCascade
func NewClaimCascade(rt *Runtime, repo ClaimCascadeRepository, client payments.Client) *ClaimCascade {
	return &ClaimCascade{
		Runtime:  rt,
		repo:     repo,
		payments: client,
		refunds:  &refunder{Runtime: rt, repo: repo, payments: client},
		locks:    make(map[string]*sync.Mutex),
	}
}

func (c *ClaimCascade) lock(auctionID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[auctionID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[auctionID] = l
	}
	return l
}

// Forget drops the lock held for a settled auction
func (c *ClaimCascade) Forget(auctionID string) {
	c.mu.Lock()
	delete(c.locks, auctionID)
	c.mu.Unlock()
}

// Announce records the final placements, completes the auction and opens
// the first offer. skipped lists rounds closed without bids by an early
// completion. It updates a in place.
func (c *ClaimCascade) Announce(ctx context.Context, a *models.Auction, placements []ranking.Placement, early bool, skipped []int, now time.Time) error {
	l := c.lock(a.ID)
	l.Lock()
	defer l.Unlock()

	claims := make([]models.Claim, 0, len(placements))
	state := models.ClaimClosedUnclaimed
	for _, p := range placements {
		claim := models.Claim{
			AuctionID:       a.ID,
			Rank:            p.Rank,
			ParticipantID:   p.ParticipantID,
			FinalBid:        p.Amount,
			CumulativeTotal: p.CumulativeTotal,
			Status:          models.ClaimPending,
		}
		if p.Rank == 1 {
			openOffer(&claim, now, a.ClaimWindow)
			state = models.ClaimRank1Offered
		}
		claims = append(claims, claim)
	}

	err := c.repo.RecordRanking(ctx, repository.RankingRecord{
		AuctionID:       a.ID,
		EarlyCompletion: early,
		SkippedRounds:   skipped,
		Claims:          claims,
		ClaimState:      state,
		CompletedAt:     now,
	})
	if err != nil {
		return err
	}

	a.Status = models.AuctionCompleted
	a.WinnersAnnounced = true
	a.EarlyCompletion = early
	a.ClaimState = state
	a.CompletedAt = &now

	c.Log.Info("Winners announced", "auction_id", a.ID, "early", early, "ranked", len(claims), "claim_state", state)
	c.publish(ctx, events.Event{
		Type:      events.WinnersAnnounced,
		AuctionID: a.ID,
		Payload:   map[string]any{"earlyCompletion": early, "winners": fillRanks(a.ID, claims)},
		At:        now,
	})
	if state == models.ClaimRank1Offered {
		c.Metrics.Claims.WithLabelValues("offered").Inc()
		c.publish(ctx, events.Event{Type: events.ClaimOffered, AuctionID: a.ID, Payload: claims[0], At: now})
	} else {
		c.publish(ctx, events.Event{Type: events.CascadeClosed, AuctionID: a.ID, Payload: map[string]any{"claimState": state}, At: now})
	}
	return nil
}

func openOffer(claim *models.Claim, now time.Time, window time.Duration) {
	start, end := now, now.Add(window)
	claim.Status = models.ClaimOffered
	claim.WindowStart = &start
	claim.WindowEnd = &end
}

// fillRanks pads claims to MaxClaimRank entries; ranks nobody reached are
// NOT_OFFERED
func fillRanks(auctionID string, claims []models.Claim) []models.Claim {
	out := make([]models.Claim, 0, models.MaxClaimRank)
	for rank := 1; rank <= models.MaxClaimRank; rank++ {
		if c := claimAt(claims, rank); c != nil {
			out = append(out, *c)
			continue
		}
		out = append(out, models.Claim{AuctionID: auctionID, Rank: rank, Status: models.ClaimNotOffered})
	}
	return out
}

func claimAt(claims []models.Claim, rank int) *models.Claim {
	for i := range claims {
		if claims[i].Rank == rank {
			return &claims[i]
		}
	}
	return nil
}

func claimOf(claims []models.Claim, participantID string) *models.Claim {
	for i := range claims {
		if claims[i].ParticipantID == participantID {
			return &claims[i]
		}
	}
	return nil
}

// Claims returns the three claim slots of an auction once its winners are
// announced
func (c *ClaimCascade) Claims(ctx context.Context, auctionID string) ([]models.Claim, error) {
	a, err := c.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, c.Faults.storeErr(auctionID, err, "auction %s not found", auctionID)
	}
	if !a.WinnersAnnounced {
		return nil, nil
	}
	claims, err := c.repo.ListClaims(ctx, auctionID)
	if err != nil {
		return nil, c.Faults.Persistence(auctionID, err)
	}
	return fillRanks(auctionID, claims), nil
}

// Expire closes the open offer once its window has passed and offers the
// prize to the next rank. It returns the auction with its new claim state.
func (c *ClaimCascade) Expire(ctx context.Context, auctionID string, now time.Time) (*models.Auction, error) {
	l := c.lock(auctionID)
	l.Lock()
	defer l.Unlock()

	a, err := c.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if a.ClaimState.OfferedRank() == 0 {
		return a, nil
	}
	claims, err := c.repo.ListClaims(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if _, err := c.expireIfDue(ctx, a, claims, now); err != nil {
		return nil, err
	}
	return a, nil
}

// expireIfDue advances the cascade when the open offer's window has ended.
// Callers hold the auction lock. a and claims are updated in place.
func (c *ClaimCascade) expireIfDue(ctx context.Context, a *models.Auction, claims []models.Claim, now time.Time) (bool, error) {
	rank := a.ClaimState.OfferedRank()
	current := claimAt(claims, rank)
	if current == nil || current.WindowEnd == nil || now.Before(*current.WindowEnd) {
		return false, nil
	}

	current.Status = models.ClaimExpired
	changed := []models.Claim{*current}
	state := models.ClaimClosedUnclaimed

	next := claimAt(claims, rank+1)
	if next != nil && next.Status == models.ClaimPending {
		openOffer(next, now, a.ClaimWindow)
		state = models.OfferedRankState(rank + 1)
		changed = append(changed, *next)
	}

	if err := c.repo.UpdateClaims(ctx, a.ID, state, changed...); err != nil {
		return false, err
	}
	a.ClaimState = state

	c.Metrics.Claims.WithLabelValues("expired").Inc()
	c.Log.Info("Claim offer expired", "auction_id", a.ID, "rank", rank, "participant_id", current.ParticipantID, "claim_state", state)
	c.publish(ctx, events.Event{Type: events.ClaimExpired, AuctionID: a.ID, Payload: *current, At: now})
	if state == models.ClaimClosedUnclaimed {
		c.publish(ctx, events.Event{Type: events.CascadeClosed, AuctionID: a.ID, Payload: map[string]any{"claimState": state}, At: now})
	} else {
		c.Metrics.Claims.WithLabelValues("offered").Inc()
		c.publish(ctx, events.Event{Type: events.ClaimOffered, AuctionID: a.ID, Payload: *next, At: now})
	}
	return true, nil
}

// Claim pays the prize for the participant holding the open offer. The
// payment must settle the participant's final bid exactly.
func (c *ClaimCascade) Claim(ctx context.Context, auctionID, participantID, paymentRef string) (*models.Claim, error) {
	claim, err := c.claim(ctx, auctionID, participantID, paymentRef)
	c.Metrics.Claims.WithLabelValues(resultLabel(err)).Inc()
	return claim, err
}

func (c *ClaimCascade) claim(ctx context.Context, auctionID, participantID, paymentRef string) (*models.Claim, error) {
	if participantID == "" || paymentRef == "" {
		return nil, errors.InvalidInput("participantId and paymentRef are required")
	}

	l := c.lock(auctionID)
	l.Lock()
	defer l.Unlock()

	now, err := c.Clock.Now()
	if err != nil {
		return nil, c.Faults.Clock(err)
	}
	a, err := c.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, c.Faults.storeErr(auctionID, err, "auction %s not found", auctionID)
	}
	if !a.WinnersAnnounced {
		return nil, errors.Reject(errors.ReasonClaimWrongRank, "winners have not been announced")
	}

	claims, err := c.repo.ListClaims(ctx, auctionID)
	if err != nil {
		return nil, c.Faults.Persistence(auctionID, err)
	}
	mine := claimOf(claims, participantID)
	if mine == nil {
		return nil, errors.Reject(errors.ReasonClaimWrongRank, "participant is not among the ranked winners")
	}

	// the tick may not have expired a window the clock has already passed
	if _, err := c.expireIfDue(ctx, a, claims, now); err != nil {
		return nil, c.Faults.Persistence(auctionID, err)
	}

	switch mine.Status {
	case models.ClaimOffered:
	case models.ClaimPaid:
		if mine.PaymentRef == paymentRef {
			return mine, nil
		}
		return nil, errors.Conflict("prize has already been claimed")
	case models.ClaimExpired:
		return nil, c.lateClaim(ctx, a, mine, paymentRef, now)
	default:
		return nil, errors.Rejectf(errors.ReasonClaimWrongRank, "the prize is not offered to rank %d", mine.Rank).
			With("offeredRank", a.ClaimState.OfferedRank())
	}

	payment, err := c.payments.Confirm(ctx, paymentRef, participantID, mine.FinalBid)
	if err != nil {
		if payments.IsRejection(err) {
			return nil, errors.Rejectf(errors.ReasonPaymentMismatch, "payment does not settle the final bid of %d: %v", mine.FinalBid, err).
				With("amount", mine.FinalBid)
		}
		return nil, errors.Unavailable("payment provider unavailable", err)
	}

	// the window is judged when the payment settled, not when the request arrived
	if now, err = c.Clock.Now(); err != nil {
		return nil, c.Faults.Clock(err)
	}
	if mine.WindowEnd != nil && !now.Before(*mine.WindowEnd) {
		if _, err := c.expireIfDue(ctx, a, claims, now); err != nil {
			return nil, c.Faults.Persistence(auctionID, err)
		}
		return nil, c.refundLate(ctx, a, mine, paymentRef, payment, now)
	}

	mine.Status = models.ClaimPaid
	mine.PaymentRef = paymentRef
	mine.PaidAt = &now
	changed := []models.Claim{*mine}
	for i := range claims {
		if claims[i].Rank > mine.Rank && claims[i].Status == models.ClaimPending {
			claims[i].Status = models.ClaimNotOffered
			changed = append(changed, claims[i])
		}
	}
	if err := c.repo.UpdateClaims(ctx, auctionID, models.ClaimClaimed, changed...); err != nil {
		return nil, c.Faults.Persistence(auctionID, err)
	}
	a.ClaimState = models.ClaimClaimed

	c.Log.Info("Prize claimed", "auction_id", auctionID, "rank", mine.Rank, "participant_id", participantID, "amount", mine.FinalBid)
	c.publish(ctx, events.Event{Type: events.ClaimPaid, AuctionID: auctionID, Payload: *mine, At: now})
	return mine, nil
}

// lateClaim refuses a payment for an expired offer. Money the provider
// already took is recorded and sent back.
func (c *ClaimCascade) lateClaim(ctx context.Context, a *models.Auction, mine *models.Claim, paymentRef string, now time.Time) error {
	p, err := c.payments.Confirm(ctx, paymentRef, mine.ParticipantID, mine.FinalBid)
	if err != nil && !payments.IsRejection(err) {
		return errors.Unavailable("payment provider unavailable", err)
	}
	return c.refundLate(ctx, a, mine, paymentRef, p, now)
}

// refundLate rejects a claim whose window has ended and refunds the
// payment when the provider settled it
func (c *ClaimCascade) refundLate(ctx context.Context, a *models.Auction, mine *models.Claim, paymentRef string, p *payments.Payment, now time.Time) error {
	rejection := errors.Rejectf(errors.ReasonClaimWindowExpired, "the claim window for rank %d has expired", mine.Rank)
	if mine.WindowEnd != nil {
		rejection.With("windowEnd", *mine.WindowEnd)
	}
	if p == nil || p.Status != payments.StatusSucceeded || p.Amount <= 0 {
		return rejection
	}

	if err := c.refunds.refund(ctx, a.ID, mine.ParticipantID, paymentRef, p.Amount, models.RefundLateClaim, now); err != nil {
		return c.Faults.Persistence(a.ID, err)
	}
	return rejection.With("refunded", p.Amount)
}

// CheckoutQR renders the checkout link for the participant's open offer as
// a PNG QR code
func (c *ClaimCascade) CheckoutQR(ctx context.Context, auctionID, participantID string) ([]byte, error) {
	a, err := c.repo.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, c.Faults.storeErr(auctionID, err, "auction %s not found", auctionID)
	}
	rank := a.ClaimState.OfferedRank()
	if rank == 0 {
		return nil, errors.Reject(errors.ReasonClaimWrongRank, "no prize offer is open")
	}
	offer, err := c.repo.GetClaim(ctx, auctionID, rank)
	if err != nil {
		return nil, c.Faults.storeErr(auctionID, err, "claim for rank %d not found", rank)
	}
	if offer.ParticipantID != participantID {
		return nil, errors.Rejectf(errors.ReasonClaimWrongRank, "the prize is offered to rank %d", rank)
	}

	url := c.payments.CheckoutURL(auctionID, participantID, offer.FinalBid)
	png, err := qrcode.Encode(url, qrcode.Medium, 256)
	if err != nil {
		return nil, errors.Internal(err)
	}
	return png, nil
}

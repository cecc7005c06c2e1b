// Package bidding computes the minimum and maximum acceptable bid for a
// participant in a round and validates a proposed bid against them.
// Everything here is pure: callers load the history and supply the time.
package bidding

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/SudarshanaRao/dream60/internal/errors"
	"github.com/SudarshanaRao/dream60/internal/models"
)

var (
	hundred     = decimal.NewFromInt(100)
	maxBidRatio = decimal.RequireFromString("0.9")
)

// Limits is the acceptable bid range for one participant in one round
type Limits struct {
	CutoffMin     int64 `json:"cutoffMin"`
	ContinuityMin int64 `json:"continuityMin"`
	MinBid        int64 `json:"minBid"`
	MaxBid        int64 `json:"maxBid"`
}

// History is the persisted state a bid is judged against
type History struct {
	// PreviousRoundHighest is the highest bid placed in round R-1 by anyone
	PreviousRoundHighest int64
	// PriorBids are the participant's own accepted bids in rounds before R
	PriorBids []models.Bid
	// HasBidThisRound is true if the participant already holds a bid in R
	HasBidThisRound bool
}

// Request is a single bid to validate
type Request struct {
	Auction     *models.Auction
	Round       *models.Round
	Participant *models.Participant // nil when no entry fee was paid
	History     History
	Amount      int64
	Now         time.Time
}

// MaxBid is floor(0.9 × prize value)
func MaxBid(prizeValue int64) int64 {
	return decimal.NewFromInt(prizeValue).Mul(maxBidRatio).Floor().IntPart()
}

// CutoffMin is ceil(percentage/100 × highest bid of the previous round)
func CutoffMin(percentage decimal.Decimal, previousHighest int64) int64 {
	return percentage.Div(hundred).Mul(decimal.NewFromInt(previousHighest)).Ceil().IntPart()
}

// ComputeLimits returns the bid range for round n. previousOwnBid is the
// participant's bid in round n-1, or 0 if they did not bid there.
func ComputeLimits(a *models.Auction, n int, previousHighest, previousOwnBid int64) Limits {
	limits := Limits{MaxBid: MaxBid(a.PrizeValue)}

	if n <= 1 {
		limits.MinBid = a.FirstRoundMinimum()
		return limits
	}

	limits.CutoffMin = CutoffMin(a.CutoffPercentage(n), previousHighest)
	if previousOwnBid > 0 {
		limits.ContinuityMin = previousOwnBid + a.EntryFee()
	}
	limits.MinBid = max(limits.CutoffMin, limits.ContinuityMin)
	return limits
}

// LimitsFor derives the range for a participant from their own history
func LimitsFor(a *models.Auction, n int, h History) Limits {
	var previousOwnBid int64
	for _, b := range h.PriorBids {
		if b.Round == n-1 && b.Valid {
			previousOwnBid = b.Amount
		}
	}
	return ComputeLimits(a, n, h.PreviousRoundHighest, previousOwnBid)
}

// latestPriorBid returns the participant's most recent bid before the round
func latestPriorBid(bids []models.Bid, n int) (models.Bid, bool) {
	var latest models.Bid
	found := false
	for _, b := range bids {
		if !b.Valid || b.Round >= n {
			continue
		}
		if !found || b.Round > latest.Round {
			latest = b
			found = true
		}
	}
	return latest, found
}

// Validate applies the bid rules in order and returns the first failure.
// On success it returns the limits the bid was accepted under.
func Validate(req Request) (Limits, error) {
	if req.Amount <= 0 {
		return Limits{}, errors.InvalidInput("amount must be a positive integer")
	}

	a, r := req.Auction, req.Round

	// 1: round must be open by the clock and not closed by the engine
	if a.Status == models.AuctionCancelled || a.WinnersAnnounced ||
		r.Status == models.RoundCompleted || !r.ActiveAt(req.Now) {
		return Limits{}, errors.Rejectf(errors.ReasonRoundNotActive, "round %d is not accepting bids", r.Number).
			With("opensAt", r.OpensAt).
			With("closesAt", r.ClosesAt)
	}

	// 2
	if req.Participant == nil {
		return Limits{}, errors.Reject(errors.ReasonEntryNotPaid, "entry fee has not been paid for this auction")
	}

	// 3
	if req.History.HasBidThisRound {
		return Limits{}, errors.Rejectf(errors.ReasonDuplicateBid, "a bid for round %d was already placed", r.Number)
	}

	// 4
	if prev, ok := latestPriorBid(req.History.PriorBids, r.Number); ok && req.Amount <= prev.Amount {
		return Limits{}, errors.Rejectf(errors.ReasonBidNotIncreasing,
			"bid must be greater than your round %d bid of %d", prev.Round, prev.Amount).
			With("previousBid", prev.Amount)
	}

	// 5
	limits := LimitsFor(a, r.Number, req.History)
	if req.Amount < limits.MinBid {
		return limits, errors.Rejectf(errors.ReasonBelowMinimum, "minimum bid for round %d is %d", r.Number, limits.MinBid).
			With("minBid", limits.MinBid).
			With("maxBid", limits.MaxBid)
	}
	if req.Amount > limits.MaxBid {
		return limits, errors.Rejectf(errors.ReasonAboveMaximum, "maximum bid is %d", limits.MaxBid).
			With("minBid", limits.MinBid).
			With("maxBid", limits.MaxBid)
	}

	return limits, nil
}

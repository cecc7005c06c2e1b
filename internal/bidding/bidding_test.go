package bidding

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/SudarshanaRao/dream60/internal/errors"
	"github.com/SudarshanaRao/dream60/internal/models"
)

var slotStart = time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)

func newAuction() *models.Auction {
	return &models.Auction{
		ID:            "a-1",
		SlotStart:     slotStart,
		PrizeValue:    10000,
		EntryFeeBoxA:  15,
		EntryFeeBoxB:  25,
		RoundCount:    4,
		RoundDuration: 15 * time.Minute,
		CutoffPercentages: []decimal.Decimal{
			decimal.Zero, decimal.NewFromInt(60), decimal.NewFromInt(60), decimal.NewFromInt(60),
		},
		Status: models.AuctionLive,
	}
}

func newRound(a *models.Auction, n int) *models.Round {
	opens, closes := a.RoundWindow(n)
	return &models.Round{AuctionID: a.ID, Number: n, OpensAt: opens, ClosesAt: closes, Status: models.RoundActive}
}

func bid(round int, amount int64) models.Bid {
	return models.Bid{ParticipantID: "p-1", Round: round, Amount: amount, Valid: true}
}

func reasonOf(t *testing.T, err error) errors.Reason {
	t.Helper()
	reason, ok := errors.ReasonOf(err)
	if !ok {
		t.Fatalf("expected a rejection, got %v", err)
	}
	return reason
}

func TestMaxBid(t *testing.T) {
	check.Equal(t, int64(9000), MaxBid(10000))
	check.Equal(t, int64(8999), MaxBid(9999)) // 8999.1 floors
	check.Equal(t, int64(0), MaxBid(1))
}

func TestCutoffMin(t *testing.T) {
	tests := []struct {
		name    string
		pct     decimal.Decimal
		highest int64
		want    int64
	}{
		{"worked example", decimal.NewFromInt(60), 1000, 600},
		{"fraction rounds up", decimal.NewFromInt(60), 1001, 601},
		{"fractional percentage", decimal.RequireFromString("62.5"), 1000, 625},
		{"no previous bids", decimal.NewFromInt(60), 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check.Equal(t, tt.want, CutoffMin(tt.pct, tt.highest))
		})
	}
}

// TestComputeLimits_WorkedExample tests the published minimum-bid example
func TestComputeLimits_WorkedExample(t *testing.T) {
	a := newAuction()

	limits := ComputeLimits(a, 2, 1000, 500)

	check.Equal(t, int64(600), limits.CutoffMin)
	check.Equal(t, int64(540), limits.ContinuityMin)
	check.Equal(t, int64(600), limits.MinBid)
	check.Equal(t, int64(9000), limits.MaxBid)
}

func TestComputeLimits_FirstRound(t *testing.T) {
	a := newAuction()
	check.Equal(t, int64(40), ComputeLimits(a, 1, 0, 0).MinBid)

	a.BaseMinBid = 250
	check.Equal(t, int64(250), ComputeLimits(a, 1, 0, 0).MinBid)
}

func TestComputeLimits_ContinuityDominates(t *testing.T) {
	a := newAuction()
	limits := ComputeLimits(a, 3, 1000, 900)
	check.Equal(t, int64(940), limits.MinBid)
}

func TestComputeLimits_SkippedPreviousRound(t *testing.T) {
	a := newAuction()
	limits := LimitsFor(a, 3, History{PreviousRoundHighest: 1000, PriorBids: []models.Bid{bid(1, 500)}})
	check.Equal(t, int64(0), limits.ContinuityMin)
	check.Equal(t, int64(600), limits.MinBid)
}

func TestValidate_WorkedExample(t *testing.T) {
	a := newAuction()
	r := newRound(a, 2)
	h := History{PreviousRoundHighest: 1000, PriorBids: []models.Bid{bid(1, 500)}}
	p := &models.Participant{AuctionID: a.ID, ParticipantID: "p-1"}
	now := r.OpensAt.Add(time.Minute)

	_, err := Validate(Request{Auction: a, Round: r, Participant: p, History: h, Amount: 599, Now: now})
	check.Equal(t, errors.ReasonBelowMinimum, reasonOf(t, err))

	limits, err := Validate(Request{Auction: a, Round: r, Participant: p, History: h, Amount: 600, Now: now})
	check.NoError(t, err)
	check.Equal(t, int64(600), limits.MinBid)
}

func TestValidate_RuleOrder(t *testing.T) {
	a := newAuction()
	r := newRound(a, 2)
	p := &models.Participant{AuctionID: a.ID, ParticipantID: "p-1"}
	inWindow := r.OpensAt.Add(time.Minute)
	history := History{PreviousRoundHighest: 1000, PriorBids: []models.Bid{bid(1, 700)}}

	tests := []struct {
		name string
		req  Request
		want errors.Reason
	}{
		{
			name: "round not open yet beats everything",
			req:  Request{Auction: a, Round: r, Participant: nil, History: History{HasBidThisRound: true}, Amount: 1, Now: r.OpensAt.Add(-time.Second)},
			want: errors.ReasonRoundNotActive,
		},
		{
			name: "closesAt is exclusive",
			req:  Request{Auction: a, Round: r, Participant: p, History: history, Amount: 800, Now: r.ClosesAt},
			want: errors.ReasonRoundNotActive,
		},
		{
			name: "entry not paid before duplicate",
			req:  Request{Auction: a, Round: r, Participant: nil, History: History{HasBidThisRound: true}, Amount: 800, Now: inWindow},
			want: errors.ReasonEntryNotPaid,
		},
		{
			name: "duplicate before increasing",
			req:  Request{Auction: a, Round: r, Participant: p, History: History{HasBidThisRound: true, PriorBids: history.PriorBids}, Amount: 100, Now: inWindow},
			want: errors.ReasonDuplicateBid,
		},
		{
			name: "equal to previous bid is not increasing",
			req:  Request{Auction: a, Round: r, Participant: p, History: history, Amount: 700, Now: inWindow},
			want: errors.ReasonBidNotIncreasing,
		},
		{
			name: "increasing but below continuity minimum",
			req:  Request{Auction: a, Round: r, Participant: p, History: history, Amount: 720, Now: inWindow},
			want: errors.ReasonBelowMinimum,
		},
		{
			name: "above ninety percent of prize",
			req:  Request{Auction: a, Round: r, Participant: p, History: history, Amount: 9001, Now: inWindow},
			want: errors.ReasonAboveMaximum,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Validate(tt.req)
			check.Equal(t, tt.want, reasonOf(t, err))
		})
	}
}

func TestValidate_RoundClosedByEngine(t *testing.T) {
	a := newAuction()
	r := newRound(a, 3)
	r.Status = models.RoundCompleted
	p := &models.Participant{ParticipantID: "p-1"}

	_, err := Validate(Request{Auction: a, Round: r, Participant: p, Amount: 5000, Now: r.OpensAt.Add(time.Minute)})
	check.Equal(t, errors.ReasonRoundNotActive, reasonOf(t, err))

	r.Status = models.RoundActive
	a.WinnersAnnounced = true
	_, err = Validate(Request{Auction: a, Round: r, Participant: p, Amount: 5000, Now: r.OpensAt.Add(time.Minute)})
	check.Equal(t, errors.ReasonRoundNotActive, reasonOf(t, err))
}

// TestValidate_MonotonicAcrossSkippedRound tests rule 4 against the latest earlier bid
func TestValidate_MonotonicAcrossSkippedRound(t *testing.T) {
	a := newAuction()
	r := newRound(a, 3)
	p := &models.Participant{ParticipantID: "p-1"}
	h := History{PreviousRoundHighest: 100, PriorBids: []models.Bid{bid(1, 800)}}

	_, err := Validate(Request{Auction: a, Round: r, Participant: p, History: h, Amount: 800, Now: r.OpensAt})
	check.Equal(t, errors.ReasonBidNotIncreasing, reasonOf(t, err))

	_, err = Validate(Request{Auction: a, Round: r, Participant: p, History: h, Amount: 801, Now: r.OpensAt})
	check.NoError(t, err)
}

func TestValidate_NonPositiveAmount(t *testing.T) {
	a := newAuction()
	r := newRound(a, 1)

	_, err := Validate(Request{Auction: a, Round: r, Amount: 0, Now: r.OpensAt})
	check.Equal(t, errors.ErrInvalidInput, errors.KindOf(err))
}

func TestValidate_RejectionCarriesLimits(t *testing.T) {
	a := newAuction()
	r := newRound(a, 1)
	p := &models.Participant{ParticipantID: "p-1"}

	_, err := Validate(Request{Auction: a, Round: r, Participant: p, Amount: 39, Now: r.OpensAt})

	var rej *errors.Rejection
	check.True(t, asRejection(err, &rej))
	check.Equal[any](t, int64(40), rej.Details["minBid"])
	check.Equal[any](t, int64(9000), rej.Details["maxBid"])
}

func asRejection(err error, target **errors.Rejection) bool {
	rej, ok := err.(*errors.Rejection)
	if ok {
		*target = rej
	}
	return ok
}

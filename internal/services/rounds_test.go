package services_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"

	"github.com/SudarshanaRao/dream60/internal/errors"
	"github.com/SudarshanaRao/dream60/internal/events"
	"github.com/SudarshanaRao/dream60/internal/models"
	"github.com/SudarshanaRao/dream60/internal/repository/mock"
	"github.com/SudarshanaRao/dream60/internal/testutil"
)

// TestSubmitBid_MinimumBidWorkedExample checks the round 2 minimum for a
// 40 entry fee, a 60% cutoff and a round 1 high of 1000
func TestSubmitBid_MinimumBidWorkedExample(t *testing.T) {
	e := newEngine(t)
	e.seed(t, "p1", "p2", "p3", "p4")
	ctx := context.Background()

	e.at(t, minutes(1))
	e.bid(t, 1, "p1", 500)
	e.bid(t, 1, "p2", 1000)

	e.at(t, minutes(16))

	_, err := e.rounds.SubmitBid(ctx, auctionID, 2, "p1", 599)
	expectReason(t, err, errors.ReasonBelowMinimum)

	var rej *errors.Rejection
	if !stderrors.As(err, &rej) {
		t.Fatal("expected a *Rejection")
	}
	if rej.Details["minBid"] != int64(600) || rej.Details["maxBid"] != int64(9000) {
		t.Errorf("unexpected details: %v", rej.Details)
	}

	bid, err := e.rounds.SubmitBid(ctx, auctionID, 2, "p1", 600)
	if err != nil {
		t.Fatalf("expected 600 to be accepted, got %v", err)
	}
	if bid.Round != 2 || bid.Amount != 600 || !bid.Valid {
		t.Errorf("unexpected bid: %+v", bid)
	}
	if len(e.events.OfType(events.BidAccepted)) != 3 {
		t.Errorf("expected 3 bid events, got %d", len(e.events.OfType(events.BidAccepted)))
	}
}

func TestSubmitBid_Rejections(t *testing.T) {
	e := newEngine(t)
	e.seed(t, "p1", "p2", "p3", "p4")
	ctx := context.Background()

	// before the slot starts
	e.clock.Set(testutil.SlotStart.Add(-minutes(1)))
	_, err := e.rounds.SubmitBid(ctx, auctionID, 1, "p1", 100)
	expectReason(t, err, errors.ReasonRoundNotActive)

	e.at(t, minutes(1))
	e.bid(t, 1, "p1", 100)

	tests := []struct {
		name        string
		round       int
		participant string
		amount      int64
		want        errors.Reason
	}{
		{"future round", 2, "p2", 500, errors.ReasonRoundNotActive},
		{"no entry fee", 1, "stranger", 500, errors.ReasonEntryNotPaid},
		{"second bid in round", 1, "p1", 200, errors.ReasonDuplicateBid},
		{"below round 1 minimum", 1, "p2", 39, errors.ReasonBelowMinimum},
		{"above maximum", 1, "p3", 9001, errors.ReasonAboveMaximum},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.rounds.SubmitBid(ctx, auctionID, tt.round, tt.participant, tt.amount)
			expectReason(t, err, tt.want)
		})
	}

	if _, err := e.rounds.SubmitBid(ctx, auctionID, 1, "p2", 0); errors.KindOf(err) != errors.ErrInvalidInput {
		t.Errorf("expected invalid input for zero amount, got %v", err)
	}
	if _, err := e.rounds.SubmitBid(ctx, auctionID, 9, "p2", 100); errors.KindOf(err) != errors.ErrNotFound {
		t.Errorf("expected not found for unknown round, got %v", err)
	}
}

func TestSubmitBid_MustIncrease(t *testing.T) {
	e := newEngine(t)
	e.seed(t, "p1", "p2", "p3", "p4")
	ctx := context.Background()

	e.at(t, minutes(1))
	e.bid(t, 1, "p1", 100)
	e.bid(t, 1, "p2", 100)

	e.at(t, minutes(15))
	_, err := e.rounds.SubmitBid(ctx, auctionID, 2, "p1", 100)
	expectReason(t, err, errors.ReasonBidNotIncreasing)

	// continuity minimum is the previous bid plus the entry fee
	_, err = e.rounds.SubmitBid(ctx, auctionID, 2, "p1", 139)
	expectReason(t, err, errors.ReasonBelowMinimum)
	e.bid(t, 2, "p1", 140)

	// skipping a round compares against the latest earlier bid
	e.at(t, minutes(30))
	_, err = e.rounds.SubmitBid(ctx, auctionID, 3, "p2", 90)
	expectReason(t, err, errors.ReasonBidNotIncreasing)
}

func TestSubmitBid_ConcurrentDuplicatesAdmitOne(t *testing.T) {
	e := newEngine(t)
	e.seed(t, "p1", "p2", "p3", "p4")
	ctx := context.Background()
	e.at(t, minutes(1))

	const attempts = 50
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		dupes    int
		other    []error
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.rounds.SubmitBid(ctx, auctionID, 1, "p1", int64(100+i))
			mu.Lock()
			defer mu.Unlock()
			reason, _ := errors.ReasonOf(err)
			switch {
			case err == nil:
				accepted++
			case reason == errors.ReasonDuplicateBid:
				dupes++
			default:
				other = append(other, err)
			}
		}(i)
	}
	wg.Wait()

	if accepted != 1 || dupes != attempts-1 {
		t.Errorf("expected 1 accepted and %d duplicates, got %d and %d", attempts-1, accepted, dupes)
	}
	for _, err := range other {
		t.Errorf("unexpected error: %v", err)
	}

	bids, err := e.repo.ListRoundBids(ctx, auctionID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(bids) != 1 {
		t.Errorf("expected exactly one stored bid, got %d", len(bids))
	}
}

func TestSubmitBid_ConcurrentParticipants(t *testing.T) {
	e := newEngine(t)
	ids := make([]string, 20)
	for i := range ids {
		ids[i] = fmt.Sprintf("p%02d", i)
	}
	e.seed(t, ids...)
	ctx := context.Background()
	e.at(t, minutes(1))

	var wg sync.WaitGroup
	errs := make(chan error, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(id string, amount int64) {
			defer wg.Done()
			if _, err := e.rounds.SubmitBid(ctx, auctionID, 1, id, amount); err != nil {
				errs <- fmt.Errorf("%s: %w", id, err)
			}
		}(id, int64(100+i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent bid error: %v", err)
	}

	e.at(t, minutes(15))
	r := e.round(t, 1)
	if r.BidCount != len(ids) || r.HighestBid != int64(100+len(ids)-1) {
		t.Errorf("unexpected round summary: count=%d highest=%d", r.BidCount, r.HighestBid)
	}
}

func TestCloseRound_ZeroBids(t *testing.T) {
	e := newEngine(t)
	e.seed(t, "p1", "p2", "p3", "p4")

	e.at(t, minutes(1))
	if r := e.round(t, 1); r.Status != models.RoundActive {
		t.Fatalf("expected round 1 active, got %s", r.Status)
	}

	e.at(t, minutes(15))
	r1 := e.round(t, 1)
	if r1.Status != models.RoundCompleted || r1.BidCount != 0 || r1.HighestBid != 0 {
		t.Errorf("expected round 1 completed with no bids, got %+v", r1)
	}
	if r2 := e.round(t, 2); r2.Status != models.RoundActive {
		t.Errorf("expected round 2 active, got %s", r2.Status)
	}

	// a late bid for the closed round is refused
	_, err := e.rounds.SubmitBid(context.Background(), auctionID, 1, "p1", 100)
	expectReason(t, err, errors.ReasonRoundNotActive)
}

func TestCloseRound_RecordsTopBidders(t *testing.T) {
	e := newEngine(t)
	e.seed(t, "p1", "p2", "p3", "p4")

	e.at(t, minutes(1))
	e.bid(t, 1, "p1", 300)
	e.bid(t, 1, "p2", 500)
	e.bid(t, 1, "p3", 400)
	e.bid(t, 1, "p4", 200)
	e.at(t, minutes(15))

	r := e.round(t, 1)
	if r.HighestBid != 500 || r.BidCount != 4 {
		t.Errorf("unexpected summary: %+v", r)
	}
	want := []string{"p2", "p3", "p1"}
	if fmt.Sprint(r.Qualified) != fmt.Sprint(want) {
		t.Errorf("expected qualified %v, got %v", want, r.Qualified)
	}

	closed := e.events.OfType(events.RoundClosed)
	if len(closed) != 1 || closed[0].Round != 1 {
		t.Errorf("expected one round.closed event for round 1, got %v", closed)
	}
	// everyone keeps bidding regardless of placement
	e.bid(t, 2, "p4", 400)
}

func TestLeaderboard(t *testing.T) {
	e := newEngine(t)
	e.seed(t, "p1", "p2", "p3", "p4")
	ctx := context.Background()

	e.at(t, minutes(1))
	e.bid(t, 1, "p1", 300)
	e.bid(t, 1, "p2", 300)

	if _, err := e.rounds.Leaderboard(ctx, auctionID, 1); errors.KindOf(err) != errors.ErrConflict {
		t.Errorf("expected conflict for an open round, got %v", err)
	}

	e.at(t, minutes(15))
	board, err := e.rounds.Leaderboard(ctx, auctionID, 1)
	if err != nil {
		t.Fatalf("Leaderboard failed: %v", err)
	}
	if len(board) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(board))
	}
	// equal amounts, totals and times fall back to participant id
	if board[0].ParticipantID != "p1" || board[0].Rank != 1 || board[1].Rank != 2 {
		t.Errorf("unexpected order: %+v", board)
	}
}

func TestSubmitBid_PersistenceFaultHaltsAuction(t *testing.T) {
	repo := mock.NewRepository(testutil.NewTestRepository(t))
	e := newEngineWithRepo(t, repo)
	e.seed(t, "p1", "p2", "p3", "p4")
	ctx := context.Background()
	e.at(t, minutes(1))

	repo.InsertBidError = stderrors.New("disk I/O error")
	_, err := e.rounds.SubmitBid(ctx, auctionID, 1, "p1", 100)
	if !errors.IsUnavailable(err) {
		t.Fatalf("expected unavailable, got %v", err)
	}

	repo.InsertBidError = nil
	if _, err := e.rounds.SubmitBid(ctx, auctionID, 1, "p2", 100); !errors.IsUnavailable(err) {
		t.Fatalf("expected auction to stay halted, got %v", err)
	}
	if !e.rt.Faults.Halted(auctionID) {
		t.Error("expected auction to be halted")
	}

	e.at(t, minutes(2))
	if e.rt.Faults.Halted(auctionID) {
		t.Error("expected a successful tick to lift the halt")
	}
	e.bid(t, 1, "p2", 100)
}

func TestSubmitBid_ClockUnavailable(t *testing.T) {
	e := newEngine(t)
	e.seed(t, "p1", "p2", "p3", "p4")
	e.at(t, minutes(1))

	e.clock.SetUnavailable(true)
	_, err := e.rounds.SubmitBid(context.Background(), auctionID, 1, "p1", 100)
	if !errors.IsUnavailable(err) {
		t.Fatalf("expected unavailable, got %v", err)
	}
	if _, ok := errors.ReasonOf(err); ok {
		t.Error("a clock failure must not be reported as a rejection")
	}

	e.clock.SetUnavailable(false)
	e.bid(t, 1, "p1", 100)
}

func TestSubmitBid_UnknownTargetsHoldNoLocks(t *testing.T) {
	e := newEngine(t)
	e.seed(t, "p1", "p2", "p3", "p4")
	ctx := context.Background()
	e.at(t, minutes(1))

	for i := 0; i < 500; i++ {
		_, err := e.rounds.SubmitBid(ctx, fmt.Sprintf("bogus-%d", i), 1, "p1", 100)
		if errors.KindOf(err) != errors.ErrNotFound {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	for _, round := range []int{-1, 0, 5, 99} {
		_, err := e.rounds.SubmitBid(ctx, auctionID, round, "p1", 100)
		if errors.KindOf(err) != errors.ErrNotFound {
			t.Errorf("round %d: expected not found, got %v", round, err)
		}
	}
	if gates, slots := e.rounds.LockCounts(); gates != 0 || slots != 0 {
		t.Fatalf("expected no locks for unknown targets, got gates=%d slots=%d", gates, slots)
	}

	for i := 0; i < 100; i++ {
		_, err := e.rounds.SubmitBid(ctx, auctionID, 1, fmt.Sprintf("stranger-%d", i), 100)
		expectReason(t, err, errors.ReasonEntryNotPaid)
	}
	if _, slots := e.rounds.LockCounts(); slots != 0 {
		t.Errorf("expected no slots for bidders without an entry, got %d", slots)
	}

	e.bid(t, 1, "p1", 100)
	if gates, slots := e.rounds.LockCounts(); gates != 1 || slots != 1 {
		t.Errorf("expected one gate and one slot, got gates=%d slots=%d", gates, slots)
	}

	// a closed round releases its slots and takes no new ones
	e.at(t, minutes(15))
	_, err := e.rounds.SubmitBid(ctx, auctionID, 1, "p2", 200)
	expectReason(t, err, errors.ReasonRoundNotActive)
	if _, slots := e.rounds.LockCounts(); slots != 0 {
		t.Errorf("expected slots released after close, got %d", slots)
	}
}

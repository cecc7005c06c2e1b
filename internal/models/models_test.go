package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func testAuction() *Auction {
	return &Auction{
		SlotStart:     time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC),
		EntryFeeBoxA:  15,
		EntryFeeBoxB:  25,
		RoundCount:    4,
		RoundDuration: 15 * time.Minute,
		CutoffPercentages: []decimal.Decimal{
			decimal.Zero, decimal.NewFromInt(60), decimal.NewFromInt(60), decimal.NewFromInt(70),
		},
	}
}

func TestAuction_EntryFeeAndFirstRoundMinimum(t *testing.T) {
	a := testAuction()

	if a.EntryFee() != 40 {
		t.Errorf("expected entry fee 40, got %d", a.EntryFee())
	}
	if a.FirstRoundMinimum() != 40 {
		t.Errorf("expected first round minimum to default to entry fee, got %d", a.FirstRoundMinimum())
	}

	a.BaseMinBid = 100
	if a.FirstRoundMinimum() != 100 {
		t.Errorf("expected configured base minimum 100, got %d", a.FirstRoundMinimum())
	}
}

func TestAuction_RoundWindow(t *testing.T) {
	a := testAuction()

	opens, closes := a.RoundWindow(3)
	if !opens.Equal(a.SlotStart.Add(30 * time.Minute)) {
		t.Errorf("unexpected opensAt %v", opens)
	}
	if !closes.Equal(a.SlotStart.Add(45 * time.Minute)) {
		t.Errorf("unexpected closesAt %v", closes)
	}
	if !a.EndsAt().Equal(a.SlotStart.Add(time.Hour)) {
		t.Errorf("expected auction to end after one hour, got %v", a.EndsAt())
	}
}

func TestAuction_CutoffPercentage(t *testing.T) {
	a := testAuction()

	if !a.CutoffPercentage(4).Equal(decimal.NewFromInt(70)) {
		t.Errorf("expected 70, got %s", a.CutoffPercentage(4))
	}
	if !a.CutoffPercentage(9).IsZero() {
		t.Error("expected zero for out-of-range round")
	}
}

func TestAuction_Terminal(t *testing.T) {
	tests := []struct {
		status AuctionStatus
		claim  ClaimState
		want   bool
	}{
		{AuctionUpcoming, ClaimNotStarted, false},
		{AuctionLive, ClaimNotStarted, false},
		{AuctionCompleted, ClaimRank2Offered, false},
		{AuctionCompleted, ClaimClaimed, true},
		{AuctionCompleted, ClaimClosedUnclaimed, true},
		{AuctionCancelled, ClaimNotStarted, true},
	}
	for _, tt := range tests {
		a := &Auction{Status: tt.status, ClaimState: tt.claim}
		if got := a.Terminal(); got != tt.want {
			t.Errorf("Terminal(%s,%s) = %v, want %v", tt.status, tt.claim, got, tt.want)
		}
	}
}

func TestRound_ActiveAt(t *testing.T) {
	opens := time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)
	r := Round{OpensAt: opens, ClosesAt: opens.Add(15 * time.Minute)}

	if r.ActiveAt(opens.Add(-time.Nanosecond)) {
		t.Error("expected inactive before opensAt")
	}
	if !r.ActiveAt(opens) {
		t.Error("expected active at opensAt")
	}
	if r.ActiveAt(r.ClosesAt) {
		t.Error("expected inactive at closesAt")
	}
}

func TestClaimState_Ranks(t *testing.T) {
	for rank := 1; rank <= MaxClaimRank; rank++ {
		state := OfferedRankState(rank)
		if state.OfferedRank() != rank {
			t.Errorf("rank %d round-trips to %d", rank, state.OfferedRank())
		}
		if state.Terminal() {
			t.Errorf("offer state %s must not be terminal", state)
		}
	}
	if OfferedRankState(4) != ClaimClosedUnclaimed {
		t.Error("expected cascade to close after rank 3")
	}
}

// TestStage_JSONDiscriminator tests that both stage variants carry a type tag
func TestStage_JSONDiscriminator(t *testing.T) {
	stages := []Stage{
		EntryStage{EntryFee: 40},
		RoundStage{RoundNumber: 2, MinBid: 600, MaxBid: 9000},
	}
	want := []string{"entry", "round"}

	for i, s := range stages {
		data, err := json.Marshal(s)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var decoded map[string]any
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if decoded["type"] != want[i] {
			t.Errorf("expected type %q, got %v", want[i], decoded["type"])
		}
	}

	data, _ := json.Marshal(RoundStage{RoundNumber: 2, MinBid: 600})
	var decoded map[string]any
	_ = json.Unmarshal(data, &decoded)
	if decoded["minBid"] != float64(600) || decoded["roundNumber"] != float64(2) {
		t.Errorf("expected round fields alongside type, got %v", decoded)
	}
}

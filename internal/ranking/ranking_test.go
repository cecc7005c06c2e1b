package ranking

import (
	"testing"
	"time"

	"github.com/peterldowns/testy/check"

	"github.com/SudarshanaRao/dream60/internal/models"
)

var t0 = time.Date(2024, 5, 1, 13, 45, 0, 0, time.UTC)

func TestShouldCompleteEarly(t *testing.T) {
	tests := []struct {
		round, participants int
		want                bool
	}{
		{1, 0, true},
		{1, 3, true},
		{1, 4, false},
		{2, 2, false},
		{4, 3, false},
	}
	for _, tt := range tests {
		check.Equal(t, tt.want, ShouldCompleteEarly(tt.round, tt.participants))
	}
}

// TestRank_TieBreakDeterminism tests amount, then cumulative, then placedAt
func TestRank_TieBreakDeterminism(t *testing.T) {
	entries := []Entry{
		{ParticipantID: "low-cumulative", Amount: 5000, CumulativeTotal: 9000, PlacedAt: t0},
		{ParticipantID: "high-cumulative", Amount: 5000, CumulativeTotal: 12000, PlacedAt: t0.Add(time.Minute)},
		{ParticipantID: "late", Amount: 4000, CumulativeTotal: 8000, PlacedAt: t0.Add(2 * time.Minute)},
		{ParticipantID: "early", Amount: 4000, CumulativeTotal: 8000, PlacedAt: t0.Add(time.Minute)},
		{ParticipantID: "fifth", Amount: 100, CumulativeTotal: 100, PlacedAt: t0},
	}

	got := Rank(entries, 3)

	check.Equal(t, 3, len(got))
	check.Equal(t, "high-cumulative", got[0].ParticipantID)
	check.Equal(t, "low-cumulative", got[1].ParticipantID)
	check.Equal(t, "early", got[2].ParticipantID)
	check.Equal(t, 1, got[0].Rank)
	check.Equal(t, 3, got[2].Rank)
}

func TestRank_InputOrderDoesNotMatter(t *testing.T) {
	a := Entry{ParticipantID: "a", Amount: 100, CumulativeTotal: 100, PlacedAt: t0}
	b := Entry{ParticipantID: "b", Amount: 100, CumulativeTotal: 100, PlacedAt: t0}

	first := Rank([]Entry{a, b}, 0)
	second := Rank([]Entry{b, a}, 0)

	check.Equal(t, first[0].ParticipantID, second[0].ParticipantID)
	check.Equal(t, "a", first[0].ParticipantID)
}

func TestRank_FewerThanPlaces(t *testing.T) {
	got := Rank([]Entry{{ParticipantID: "solo", Amount: 10}}, 3)
	check.Equal(t, 1, len(got))

	check.Equal(t, 0, len(Rank(nil, 3)))
}

func TestEntriesFromBids(t *testing.T) {
	bids := []models.Bid{
		{ParticipantID: "p1", Round: 1, Amount: 100, Valid: true, PlacedAt: t0},
		{ParticipantID: "p1", Round: 2, Amount: 300, Valid: true, PlacedAt: t0},
		{ParticipantID: "p2", Round: 1, Amount: 200, Valid: true, PlacedAt: t0},
		{ParticipantID: "p2", Round: 2, Amount: 300, Valid: true, PlacedAt: t0.Add(time.Second)},
		{ParticipantID: "p3", Round: 2, Amount: 900, Valid: false, PlacedAt: t0},
	}

	entries := EntriesFromBids(bids, 2)
	check.Equal(t, 2, len(entries))

	got := Rank(entries, 3)
	check.Equal(t, "p2", got[0].ParticipantID)
	check.Equal(t, int64(500), got[0].CumulativeTotal)
	check.Equal(t, int64(400), got[1].CumulativeTotal)

	board := Leaderboard(got)
	check.Equal(t, 2, board[1].Rank)
	check.Equal(t, "p1", board[1].ParticipantID)
}

// Package ranking orders the bids of a closed round into winner ranks.
// The order is a total order over persisted data, so re-running it on the
// same bids always produces the same ranks.
package ranking

import (
	"sort"
	"time"

	"github.com/SudarshanaRao/dream60/internal/models"
)

// EarlyCompletionThreshold is the participant count at or below which
// winners are decided after round 1.
const EarlyCompletionThreshold = 3

// Entry is one participant's standing in the ranked round
type Entry struct {
	ParticipantID   string
	Amount          int64 // bid in the ranked round
	CumulativeTotal int64 // sum of valid bids across all rounds
	PlacedAt        time.Time
}

// Placement is a ranked entry
type Placement struct {
	Rank int
	Entry
}

// ShouldCompleteEarly reports whether ranking fires as soon as round closes
func ShouldCompleteEarly(round, participants int) bool {
	return round == 1 && participants <= EarlyCompletionThreshold
}

// Less orders a before b: higher amount, then higher cumulative total,
// then earlier placedAt, then participant id.
func Less(a, b Entry) bool {
	if a.Amount != b.Amount {
		return a.Amount > b.Amount
	}
	if a.CumulativeTotal != b.CumulativeTotal {
		return a.CumulativeTotal > b.CumulativeTotal
	}
	if !a.PlacedAt.Equal(b.PlacedAt) {
		return a.PlacedAt.Before(b.PlacedAt)
	}
	return a.ParticipantID < b.ParticipantID
}

// Rank sorts entries and returns at most places placements. A non-positive
// places returns every entry.
func Rank(entries []Entry, places int) []Placement {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return Less(sorted[i], sorted[j])
	})

	if places <= 0 || places > len(sorted) {
		places = len(sorted)
	}

	result := make([]Placement, 0, places)
	for i := 0; i < places; i++ {
		result = append(result, Placement{Rank: i + 1, Entry: sorted[i]})
	}
	return result
}

// EntriesFromBids builds entries for round from every bid of the auction.
// Bids from other rounds only contribute to cumulative totals.
func EntriesFromBids(bids []models.Bid, round int) []Entry {
	totals := make(map[string]int64)
	for _, b := range bids {
		if b.Valid {
			totals[b.ParticipantID] += b.Amount
		}
	}

	entries := make([]Entry, 0)
	for _, b := range bids {
		if !b.Valid || b.Round != round {
			continue
		}
		entries = append(entries, Entry{
			ParticipantID:   b.ParticipantID,
			Amount:          b.Amount,
			CumulativeTotal: totals[b.ParticipantID],
			PlacedAt:        b.PlacedAt,
		})
	}
	return entries
}

// Leaderboard converts placements to the public read model
func Leaderboard(placements []Placement) []models.LeaderboardEntry {
	board := make([]models.LeaderboardEntry, 0, len(placements))
	for _, p := range placements {
		board = append(board, models.LeaderboardEntry{
			Rank:            p.Rank,
			ParticipantID:   p.ParticipantID,
			Amount:          p.Amount,
			CumulativeTotal: p.CumulativeTotal,
			PlacedAt:        p.PlacedAt,
		})
	}
	return board
}

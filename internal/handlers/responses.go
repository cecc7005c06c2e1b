package handlers

import (
	"time"

	"github.com/SudarshanaRao/dream60/internal/models"
)

// TimeResponse is the server time clients synchronize countdowns with
type TimeResponse struct {
	Now    string `json:"now"`
	UnixMs int64  `json:"unixMs"`
}

func newTimeResponse(now time.Time) TimeResponse {
	return TimeResponse{Now: now.UTC().Format(time.RFC3339Nano), UnixMs: now.UnixMilli()}
}

// AuctionListResponse is the response for a day's auctions
type AuctionListResponse struct {
	Date     string           `json:"date"`
	Auctions []models.Auction `json:"auctions"`
}

// LeaderboardResponse is the response for a completed round's leaderboard
type LeaderboardResponse struct {
	AuctionID string                    `json:"auctionId"`
	Round     int                       `json:"round"`
	Entries   []models.LeaderboardEntry `json:"entries"`
}

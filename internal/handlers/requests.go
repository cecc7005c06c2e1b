package handlers

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/SudarshanaRao/dream60/internal/services"
)

// LoginRequest represents an operator login
type LoginRequest struct {
	Password string `json:"password"`
}

// EntryRequest represents a paid entry into an auction
type EntryRequest struct {
	ParticipantID string `json:"participantId"`
	PaymentRef    string `json:"paymentRef"`
}

// BidRequest represents a bid for a round
type BidRequest struct {
	ParticipantID string `json:"participantId"`
	Amount        int64  `json:"amount"`
}

// ClaimRequest represents a prize claim payment
type ClaimRequest struct {
	ParticipantID string `json:"participantId"`
	PaymentRef    string `json:"paymentRef"`
}

// CreateAuctionRequest represents an operator request for a new auction.
// Zero values fall back to the configured defaults.
type CreateAuctionRequest struct {
	SlotStart            time.Time         `json:"slotStart"`
	PrizeValue           int64             `json:"prizeValue"`
	EntryFeeBoxA         int64             `json:"entryFeeBoxA"`
	EntryFeeBoxB         int64             `json:"entryFeeBoxB"`
	BaseMinBid           int64             `json:"baseMinBid"`
	RoundCount           int               `json:"roundCount"`
	RoundDurationMinutes int               `json:"roundDurationMinutes"`
	ClaimWindowMinutes   int               `json:"claimWindowMinutes"`
	CutoffPercentages    []decimal.Decimal `json:"cutoffPercentages"`
}

// toService converts the request to a service request
func (r CreateAuctionRequest) toService() services.CreateAuction {
	return services.CreateAuction{
		SlotStart:         r.SlotStart,
		PrizeValue:        r.PrizeValue,
		EntryFeeBoxA:      r.EntryFeeBoxA,
		EntryFeeBoxB:      r.EntryFeeBoxB,
		BaseMinBid:        r.BaseMinBid,
		RoundCount:        r.RoundCount,
		RoundDuration:     time.Duration(r.RoundDurationMinutes) * time.Minute,
		ClaimWindow:       time.Duration(r.ClaimWindowMinutes) * time.Minute,
		CutoffPercentages: r.CutoffPercentages,
	}
}

// ScheduleRequest represents a request to create a day's auctions
type ScheduleRequest struct {
	Date string `json:"date"` // YYYY-MM-DD, empty for today
}

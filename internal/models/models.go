package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionStatus is the lifecycle state of an auction
type AuctionStatus string

const (
	AuctionUpcoming  AuctionStatus = "UPCOMING"
	AuctionLive      AuctionStatus = "LIVE"
	AuctionCompleted AuctionStatus = "COMPLETED"
	AuctionCancelled AuctionStatus = "CANCELLED"
)

// RoundStatus is the lifecycle state of a single round
type RoundStatus string

const (
	RoundPending   RoundStatus = "PENDING"
	RoundActive    RoundStatus = "ACTIVE"
	RoundCompleted RoundStatus = "COMPLETED"
)

// ClaimState is the position of the prize claim cascade for an auction
type ClaimState string

const (
	ClaimNotStarted      ClaimState = "NOT_STARTED"
	ClaimRank1Offered    ClaimState = "RANK1_OFFERED"
	ClaimRank2Offered    ClaimState = "RANK2_OFFERED"
	ClaimRank3Offered    ClaimState = "RANK3_OFFERED"
	ClaimClaimed         ClaimState = "CLAIMED"
	ClaimClosedUnclaimed ClaimState = "CLOSED_UNCLAIMED"
)

// MaxClaimRank is the deepest rank the cascade offers the prize to
const MaxClaimRank = 3

// OfferedRankState returns the cascade state for an open offer to rank
func OfferedRankState(rank int) ClaimState {
	switch rank {
	case 1:
		return ClaimRank1Offered
	case 2:
		return ClaimRank2Offered
	case 3:
		return ClaimRank3Offered
	default:
		return ClaimClosedUnclaimed
	}
}

// OfferedRank returns the rank currently holding the offer, or 0
func (s ClaimState) OfferedRank() int {
	switch s {
	case ClaimRank1Offered:
		return 1
	case ClaimRank2Offered:
		return 2
	case ClaimRank3Offered:
		return 3
	default:
		return 0
	}
}

// Terminal reports whether the cascade has finished
func (s ClaimState) Terminal() bool {
	return s == ClaimClaimed || s == ClaimClosedUnclaimed
}

// ClaimStatus is the state of one rank's offer
type ClaimStatus string

const (
	ClaimPending    ClaimStatus = "PENDING" // ranked, offer not yet reached this rank
	ClaimOffered    ClaimStatus = "OFFERED"
	ClaimPaid       ClaimStatus = "PAID"
	ClaimExpired    ClaimStatus = "EXPIRED"
	ClaimNotOffered ClaimStatus = "NOT_OFFERED"
)

// Refund reasons
const (
	RefundLateClaim        = "LATE_CLAIM"
	RefundAuctionCancelled = "AUCTION_CANCELLED"
	RefundDuplicateEntry   = "DUPLICATE_ENTRY"
	RefundEntryClosed      = "ENTRY_CLOSED"
)

// Auction is one 60-minute bidding instance. Amounts are integers in the
// smallest currency unit.
type Auction struct {
	ID                string            `json:"id"`
	SlotStart         time.Time         `json:"slotStart"`
	PrizeValue        int64             `json:"prizeValue"`
	EntryFeeBoxA      int64             `json:"entryFeeBoxA"`
	EntryFeeBoxB      int64             `json:"entryFeeBoxB"`
	BaseMinBid        int64             `json:"baseMinBid"`
	RoundCount        int               `json:"roundCount"`
	RoundDuration     time.Duration     `json:"-"`
	CutoffPercentages []decimal.Decimal `json:"cutoffPercentages"` // index r-1 holds round r; round 1 unused
	ClaimWindow       time.Duration     `json:"-"`
	Status            AuctionStatus     `json:"status"`
	WinnersAnnounced  bool              `json:"winnersAnnounced"`
	EarlyCompletion   bool              `json:"earlyCompletion"`
	ClaimState        ClaimState        `json:"claimState"`
	CreatedAt         time.Time         `json:"createdAt"`
	CompletedAt       *time.Time        `json:"completedAt,omitempty"`
	Rounds            []Round           `json:"rounds,omitempty"`
}

// EntryFee is the total fee paid to join
func (a *Auction) EntryFee() int64 {
	return a.EntryFeeBoxA + a.EntryFeeBoxB
}

// FirstRoundMinimum is the minimum bid for round 1
func (a *Auction) FirstRoundMinimum() int64 {
	if a.BaseMinBid > 0 {
		return a.BaseMinBid
	}
	return a.EntryFee()
}

// CutoffPercentage returns the configured percentage for round n
func (a *Auction) CutoffPercentage(n int) decimal.Decimal {
	if n < 1 || n > len(a.CutoffPercentages) {
		return decimal.Zero
	}
	return a.CutoffPercentages[n-1]
}

// RoundWindow returns the [opensAt, closesAt) window for round n
func (a *Auction) RoundWindow(n int) (time.Time, time.Time) {
	opens := a.SlotStart.Add(time.Duration(n-1) * a.RoundDuration)
	return opens, opens.Add(a.RoundDuration)
}

// EndsAt is when the final round closes
func (a *Auction) EndsAt() time.Time {
	return a.SlotStart.Add(time.Duration(a.RoundCount) * a.RoundDuration)
}

// Terminal reports whether no further engine work remains
func (a *Auction) Terminal() bool {
	if a.Status == AuctionCancelled {
		return true
	}
	return a.Status == AuctionCompleted && a.ClaimState.Terminal()
}

// Round is one bidding window of an auction
type Round struct {
	AuctionID  string      `json:"auctionId"`
	Number     int         `json:"number"`
	OpensAt    time.Time   `json:"opensAt"`
	ClosesAt   time.Time   `json:"closesAt"`
	Status     RoundStatus `json:"status"`
	HighestBid int64       `json:"highestBid"`
	BidCount   int         `json:"bidCount"`
	Qualified  []string    `json:"qualified"` // top bidders of the round, display only
}

// ActiveAt reports whether t falls inside the round window
func (r *Round) ActiveAt(t time.Time) bool {
	return !t.Before(r.OpensAt) && t.Before(r.ClosesAt)
}

// Participant is a paid entry into an auction
type Participant struct {
	AuctionID       string    `json:"auctionId"`
	ParticipantID   string    `json:"participantId"`
	EntryFee        int64     `json:"entryFee"`
	PaymentRef      string    `json:"paymentRef"`
	PaidAt          time.Time `json:"paidAt"`
	JoinedAt        time.Time `json:"joinedAt"`
	Eliminated      bool      `json:"eliminated"`
	CumulativeTotal int64     `json:"cumulativeTotal"` // derived from bids
}

// Bid is an accepted, immutable bid
type Bid struct {
	ID            string    `json:"id"`
	AuctionID     string    `json:"auctionId"`
	ParticipantID string    `json:"participantId"`
	Round         int       `json:"round"`
	Amount        int64     `json:"amount"`
	PlacedAt      time.Time `json:"placedAt"`
	Valid         bool      `json:"valid"`
}

// Claim is the offer record for one winning rank
type Claim struct {
	AuctionID       string      `json:"auctionId"`
	Rank            int         `json:"rank"`
	ParticipantID   string      `json:"participantId,omitempty"`
	FinalBid        int64       `json:"finalBid"`
	CumulativeTotal int64       `json:"cumulativeTotal"`
	Status          ClaimStatus `json:"status"`
	WindowStart     *time.Time  `json:"windowStart,omitempty"`
	WindowEnd       *time.Time  `json:"windowEnd,omitempty"`
	PaymentRef      string      `json:"paymentRef,omitempty"`
	PaidAt          *time.Time  `json:"paidAt,omitempty"`
}

// Refund records money that must be returned to a participant
type Refund struct {
	ID            string    `json:"id"`
	AuctionID     string    `json:"auctionId"`
	ParticipantID string    `json:"participantId"`
	PaymentRef    string    `json:"paymentRef"`
	Amount        int64     `json:"amount"`
	Reason        string    `json:"reason"`
	CreatedAt     time.Time `json:"createdAt"`
}

// LeaderboardEntry is one row of a round leaderboard
type LeaderboardEntry struct {
	Rank            int       `json:"rank"`
	ParticipantID   string    `json:"participantId"`
	Amount          int64     `json:"amount"`
	CumulativeTotal int64     `json:"cumulativeTotal"`
	PlacedAt        time.Time `json:"placedAt"`
}

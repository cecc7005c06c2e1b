package services

import (
	"context"
	"time"

	"github.com/SudarshanaRao/dream60/internal/models"
)

// AuctionServicer defines the interface for auction operations
type AuctionServicer interface {
	Create(ctx context.Context, req CreateAuction) (*models.Auction, error)
	Schedule(ctx context.Context, day time.Time) ([]models.Auction, error)
	Get(ctx context.Context, id string) (*AuctionState, error)
	Live(ctx context.Context) (*AuctionState, error)
	List(ctx context.Context, day time.Time) ([]models.Auction, error)
	Join(ctx context.Context, auctionID, participantID, paymentRef string) (*models.Participant, error)
	Cancel(ctx context.Context, auctionID string) (*models.Auction, error)
	ParticipantView(ctx context.Context, auctionID, participantID string) (*ParticipantView, error)
	Report(ctx context.Context, auctionID string) (*AuctionReport, error)
}

// BidServicer defines the interface for bid operations
type BidServicer interface {
	SubmitBid(ctx context.Context, auctionID string, round int, participantID string, amount int64) (*models.Bid, error)
	Leaderboard(ctx context.Context, auctionID string, round int) ([]models.LeaderboardEntry, error)
}

// ClaimServicer defines the interface for prize claim operations
type ClaimServicer interface {
	Claim(ctx context.Context, auctionID, participantID, paymentRef string) (*models.Claim, error)
	Claims(ctx context.Context, auctionID string) ([]models.Claim, error)
	CheckoutQR(ctx context.Context, auctionID, participantID string) ([]byte, error)
}

// Ensure concrete types implement interfaces
var (
	_ AuctionServicer = (*AuctionService)(nil)
	_ Scheduler       = (*AuctionService)(nil)
	_ BidServicer     = (*RoundManager)(nil)
	_ ClaimServicer   = (*ClaimCascade)(nil)
)

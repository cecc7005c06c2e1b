package repository

import (
	"context"
	"time"

	"github.com/SudarshanaRao/dream60/internal/models"
)

// AuctionRepository defines auction and round data operations
type AuctionRepository interface {
	CreateAuction(ctx context.Context, a *models.Auction, rounds []models.Round) (bool, error)
	GetAuction(ctx context.Context, id string) (*models.Auction, error)
	ListAuctionsByStatus(ctx context.Context, statuses ...models.AuctionStatus) ([]models.Auction, error)
	ListAuctionsBetween(ctx context.Context, from, to time.Time) ([]models.Auction, error)
	ListUnsettledAuctions(ctx context.Context) ([]models.Auction, error)
	UpdateAuctionStatus(ctx context.Context, id string, from, to models.AuctionStatus, completedAt *time.Time) error
	SetClaimState(ctx context.Context, id string, state models.ClaimState) error
	ListRounds(ctx context.Context, auctionID string) ([]models.Round, error)
	GetRound(ctx context.Context, auctionID string, number int) (*models.Round, error)
	UpdateRoundStatus(ctx context.Context, auctionID string, number int, status models.RoundStatus) error
	CompleteRound(ctx context.Context, auctionID string, number int, highest int64, count int, qualified []string) error
}

// ParticipantRepository defines entry data operations
type ParticipantRepository interface {
	AddParticipant(ctx context.Context, p *models.Participant) (bool, error)
	GetParticipant(ctx context.Context, auctionID, participantID string) (*models.Participant, error)
	ListParticipants(ctx context.Context, auctionID string) ([]models.Participant, error)
	CountParticipants(ctx context.Context, auctionID string) (int, error)
}

// BidRepository defines bid data operations
type BidRepository interface {
	InsertBid(ctx context.Context, b *models.Bid) (bool, error)
	ListBids(ctx context.Context, auctionID string) ([]models.Bid, error)
	ListRoundBids(ctx context.Context, auctionID string, round int) ([]models.Bid, error)
	ListParticipantBids(ctx context.Context, auctionID, participantID string) ([]models.Bid, error)
	HighestBid(ctx context.Context, auctionID string, round int) (int64, error)
}

// ClaimRepository defines ranking, claim and refund data operations
type ClaimRepository interface {
	RecordRanking(ctx context.Context, rec RankingRecord) error
	UpdateClaims(ctx context.Context, auctionID string, state models.ClaimState, claims ...models.Claim) error
	ListClaims(ctx context.Context, auctionID string) ([]models.Claim, error)
	GetClaim(ctx context.Context, auctionID string, rank int) (*models.Claim, error)
	CreateRefund(ctx context.Context, ref *models.Refund) error
	ListRefunds(ctx context.Context, auctionID string) ([]models.Refund, error)
}

// HealthChecker is implemented by stores that can report liveness
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// FullRepository combines all repository interfaces
// Use this when a service needs access to multiple domains
type FullRepository interface {
	AuctionRepository
	ParticipantRepository
	BidRepository
	ClaimRepository
	HealthChecker
}

// Ensure Repository implements all interfaces
var _ FullRepository = (*Repository)(nil)

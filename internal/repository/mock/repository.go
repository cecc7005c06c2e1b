package mock

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/SudarshanaRao/dream60/internal/models"
	"github.com/SudarshanaRao/dream60/internal/repository"
)

// Repository wraps a real repository and allows injecting errors for testing.
// This provides a flexible way to test error paths without complex database manipulation.
//
// Usage:
//
//	realRepo := testutil.NewTestRepository(t)
//	mockRepo := mock.NewRepository(realRepo)
//	mockRepo.InsertBidError = errors.New("database error")
//	svc := services.NewRoundManager(rt, mockRepo)
//	_, err := svc.SubmitBid(ctx, auctionID, 1, "p-1", 100)
//	// err is now an Unavailable engine fault
type Repository struct {
	repository.FullRepository

	// ===== Auction Errors =====
	CreateAuctionError         error
	GetAuctionError            error
	ListAuctionsByStatusError  error
	ListUnsettledAuctionsError error
	UpdateAuctionStatusError   error
	ListRoundsError            error
	GetRoundError              error
	UpdateRoundStatusError     error
	CompleteRoundError         error

	// ===== Participant Errors =====
	AddParticipantError    error
	GetParticipantError    error
	ListParticipantsError  error
	CountParticipantsError error

	// ===== Bid Errors =====
	InsertBidError           error
	ListBidsError            error
	ListRoundBidsError       error
	ListParticipantBidsError error
	HighestBidError          error

	// ===== Claim Errors =====
	RecordRankingError error
	UpdateClaimsError  error
	ListClaimsError    error
	CreateRefundError  error

	PingError error

	// InsertBidCalls counts InsertBid invocations, including failed ones
	InsertBidCalls atomic.Int64
}

// NewRepository creates a mock repository wrapping a real one
func NewRepository(real repository.FullRepository) *Repository {
	return &Repository{
		FullRepository: real,
	}
}

// ===== Auction Methods =====

func (m *Repository) CreateAuction(ctx context.Context, a *models.Auction, rounds []models.Round) (bool, error) {
	if m.CreateAuctionError != nil {
		return false, m.CreateAuctionError
	}
	return m.FullRepository.CreateAuction(ctx, a, rounds)
}

func (m *Repository) GetAuction(ctx context.Context, id string) (*models.Auction, error) {
	if m.GetAuctionError != nil {
		return nil, m.GetAuctionError
	}
	return m.FullRepository.GetAuction(ctx, id)
}

func (m *Repository) ListAuctionsByStatus(ctx context.Context, statuses ...models.AuctionStatus) ([]models.Auction, error) {
	if m.ListAuctionsByStatusError != nil {
		return nil, m.ListAuctionsByStatusError
	}
	return m.FullRepository.ListAuctionsByStatus(ctx, statuses...)
}

func (m *Repository) ListUnsettledAuctions(ctx context.Context) ([]models.Auction, error) {
	if m.ListUnsettledAuctionsError != nil {
		return nil, m.ListUnsettledAuctionsError
	}
	return m.FullRepository.ListUnsettledAuctions(ctx)
}

func (m *Repository) UpdateAuctionStatus(ctx context.Context, id string, from, to models.AuctionStatus, completedAt *time.Time) error {
	if m.UpdateAuctionStatusError != nil {
		return m.UpdateAuctionStatusError
	}
	return m.FullRepository.UpdateAuctionStatus(ctx, id, from, to, completedAt)
}

func (m *Repository) ListRounds(ctx context.Context, auctionID string) ([]models.Round, error) {
	if m.ListRoundsError != nil {
		return nil, m.ListRoundsError
	}
	return m.FullRepository.ListRounds(ctx, auctionID)
}

func (m *Repository) GetRound(ctx context.Context, auctionID string, number int) (*models.Round, error) {
	if m.GetRoundError != nil {
		return nil, m.GetRoundError
	}
	return m.FullRepository.GetRound(ctx, auctionID, number)
}

func (m *Repository) UpdateRoundStatus(ctx context.Context, auctionID string, number int, status models.RoundStatus) error {
	if m.UpdateRoundStatusError != nil {
		return m.UpdateRoundStatusError
	}
	return m.FullRepository.UpdateRoundStatus(ctx, auctionID, number, status)
}

func (m *Repository) CompleteRound(ctx context.Context, auctionID string, number int, highest int64, count int, qualified []string) error {
	if m.CompleteRoundError != nil {
		return m.CompleteRoundError
	}
	return m.FullRepository.CompleteRound(ctx, auctionID, number, highest, count, qualified)
}

// ===== Participant Methods =====

func (m *Repository) AddParticipant(ctx context.Context, p *models.Participant) (bool, error) {
	if m.AddParticipantError != nil {
		return false, m.AddParticipantError
	}
	return m.FullRepository.AddParticipant(ctx, p)
}

func (m *Repository) GetParticipant(ctx context.Context, auctionID, participantID string) (*models.Participant, error) {
	if m.GetParticipantError != nil {
		return nil, m.GetParticipantError
	}
	return m.FullRepository.GetParticipant(ctx, auctionID, participantID)
}

func (m *Repository) ListParticipants(ctx context.Context, auctionID string) ([]models.Participant, error) {
	if m.ListParticipantsError != nil {
		return nil, m.ListParticipantsError
	}
	return m.FullRepository.ListParticipants(ctx, auctionID)
}

func (m *Repository) CountParticipants(ctx context.Context, auctionID string) (int, error) {
	if m.CountParticipantsError != nil {
		return 0, m.CountParticipantsError
	}
	return m.FullRepository.CountParticipants(ctx, auctionID)
}

// ===== Bid Methods =====

func (m *Repository) InsertBid(ctx context.Context, b *models.Bid) (bool, error) {
	m.InsertBidCalls.Add(1)
	if m.InsertBidError != nil {
		return false, m.InsertBidError
	}
	return m.FullRepository.InsertBid(ctx, b)
}

func (m *Repository) ListBids(ctx context.Context, auctionID string) ([]models.Bid, error) {
	if m.ListBidsError != nil {
		return nil, m.ListBidsError
	}
	return m.FullRepository.ListBids(ctx, auctionID)
}

func (m *Repository) ListRoundBids(ctx context.Context, auctionID string, round int) ([]models.Bid, error) {
	if m.ListRoundBidsError != nil {
		return nil, m.ListRoundBidsError
	}
	return m.FullRepository.ListRoundBids(ctx, auctionID, round)
}

func (m *Repository) ListParticipantBids(ctx context.Context, auctionID, participantID string) ([]models.Bid, error) {
	if m.ListParticipantBidsError != nil {
		return nil, m.ListParticipantBidsError
	}
	return m.FullRepository.ListParticipantBids(ctx, auctionID, participantID)
}

func (m *Repository) HighestBid(ctx context.Context, auctionID string, round int) (int64, error) {
	if m.HighestBidError != nil {
		return 0, m.HighestBidError
	}
	return m.FullRepository.HighestBid(ctx, auctionID, round)
}

// ===== Claim Methods =====

func (m *Repository) RecordRanking(ctx context.Context, rec repository.RankingRecord) error {
	if m.RecordRankingError != nil {
		return m.RecordRankingError
	}
	return m.FullRepository.RecordRanking(ctx, rec)
}

func (m *Repository) UpdateClaims(ctx context.Context, auctionID string, state models.ClaimState, claims ...models.Claim) error {
	if m.UpdateClaimsError != nil {
		return m.UpdateClaimsError
	}
	return m.FullRepository.UpdateClaims(ctx, auctionID, state, claims...)
}

func (m *Repository) ListClaims(ctx context.Context, auctionID string) ([]models.Claim, error) {
	if m.ListClaimsError != nil {
		return nil, m.ListClaimsError
	}
	return m.FullRepository.ListClaims(ctx, auctionID)
}

func (m *Repository) CreateRefund(ctx context.Context, ref *models.Refund) error {
	if m.CreateRefundError != nil {
		return m.CreateRefundError
	}
	return m.FullRepository.CreateRefund(ctx, ref)
}

func (m *Repository) Ping(ctx context.Context) error {
	if m.PingError != nil {
		return m.PingError
	}
	return m.FullRepository.Ping(ctx)
}

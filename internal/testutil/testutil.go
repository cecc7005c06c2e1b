package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SudarshanaRao/dream60/internal/clock"
	"github.com/SudarshanaRao/dream60/internal/logger"
	"github.com/SudarshanaRao/dream60/internal/models"
	"github.com/SudarshanaRao/dream60/internal/repository"
)

// SlotStart is the default slot used by fixtures
var SlotStart = time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC)

// NewTestRepository creates a new in-memory repository for testing.
// Each call creates a fresh database with all migrations applied.
func NewTestRepository(t *testing.T) *repository.Repository {
	t.Helper()

	repo, err := repository.New(":memory:")
	if err != nil {
		t.Fatalf("failed to create test repository: %v", err)
	}

	t.Cleanup(func() {
		repo.Close()
	})

	return repo
}

// NewTestLogger returns a logger that only reports errors
func NewTestLogger() logger.Logger {
	return logger.NewWithLevel(logger.ParseLevel("error"))
}

// NewClock returns a manual clock parked at SlotStart
func NewClock() *clock.Manual {
	return clock.NewManual(SlotStart)
}

// AuctionOption customizes a fixture auction
type AuctionOption func(*models.Auction)

// WithPrize sets the prize value
func WithPrize(v int64) AuctionOption {
	return func(a *models.Auction) { a.PrizeValue = v }
}

// WithFees sets the two entry fee boxes
func WithFees(boxA, boxB int64) AuctionOption {
	return func(a *models.Auction) {
		a.EntryFeeBoxA = boxA
		a.EntryFeeBoxB = boxB
	}
}

// WithSlot sets the slot start
func WithSlot(t time.Time) AuctionOption {
	return func(a *models.Auction) { a.SlotStart = t.UTC() }
}

// SeedAuction stores an UPCOMING 4×15m auction with a 60% cutoff per round
func SeedAuction(t *testing.T, repo repository.AuctionRepository, id string, opts ...AuctionOption) *models.Auction {
	t.Helper()

	a := &models.Auction{
		ID:            id,
		SlotStart:     SlotStart,
		PrizeValue:    10000,
		EntryFeeBoxA:  15,
		EntryFeeBoxB:  25,
		RoundCount:    4,
		RoundDuration: 15 * time.Minute,
		ClaimWindow:   15 * time.Minute,
		Status:        models.AuctionUpcoming,
		ClaimState:    models.ClaimNotStarted,
		CreatedAt:     SlotStart.Add(-time.Hour),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.CutoffPercentages = make([]decimal.Decimal, a.RoundCount)
	for i := 1; i < a.RoundCount; i++ {
		a.CutoffPercentages[i] = decimal.NewFromInt(60)
	}

	rounds := make([]models.Round, 0, a.RoundCount)
	for n := 1; n <= a.RoundCount; n++ {
		opens, closes := a.RoundWindow(n)
		rounds = append(rounds, models.Round{
			AuctionID: id, Number: n, OpensAt: opens, ClosesAt: closes, Status: models.RoundPending,
		})
	}

	if _, err := repo.CreateAuction(context.Background(), a, rounds); err != nil {
		t.Fatalf("failed to seed auction: %v", err)
	}
	return a
}

// SeedParticipants records paid entries for the given participant ids
func SeedParticipants(t *testing.T, repo repository.ParticipantRepository, a *models.Auction, ids ...string) {
	t.Helper()
	for i, id := range ids {
		joined := a.SlotStart.Add(-time.Duration(len(ids)-i) * time.Minute)
		p := &models.Participant{
			AuctionID:     a.ID,
			ParticipantID: id,
			EntryFee:      a.EntryFee(),
			PaymentRef:    "entry-" + id,
			PaidAt:        joined,
			JoinedAt:      joined,
		}
		if _, err := repo.AddParticipant(context.Background(), p); err != nil {
			t.Fatalf("failed to seed participant %s: %v", id, err)
		}
	}
}

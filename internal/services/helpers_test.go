package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/SudarshanaRao/dream60/internal/clock"
	"github.com/SudarshanaRao/dream60/internal/errors"
	"github.com/SudarshanaRao/dream60/internal/events"
	"github.com/SudarshanaRao/dream60/internal/metrics"
	"github.com/SudarshanaRao/dream60/internal/models"
	"github.com/SudarshanaRao/dream60/internal/repository"
	"github.com/SudarshanaRao/dream60/internal/services"
	"github.com/SudarshanaRao/dream60/internal/testutil"
	"github.com/SudarshanaRao/dream60/pkg/payments"
)

const auctionID = "a-1"

// engine wires every service against one repository and a manual clock
type engine struct {
	repo     repository.FullRepository
	clock    *clock.Manual
	events   *events.Recorder
	pay      *payments.MockClient
	rt       *services.Runtime
	rounds   *services.RoundManager
	claims   *services.ClaimCascade
	auctions *services.AuctionService
	orch     *services.Orchestrator
}

func newEngine(t *testing.T, opts ...payments.MockOption) *engine {
	t.Helper()
	return newEngineWithRepo(t, testutil.NewTestRepository(t), opts...)
}

func newEngineWithRepo(t *testing.T, repo repository.FullRepository, opts ...payments.MockOption) *engine {
	t.Helper()
	e := &engine{
		repo:   repo,
		clock:  testutil.NewClock(),
		events: &events.Recorder{},
		pay:    payments.NewMockClient(opts...),
	}
	e.rt = services.NewRuntime(testutil.NewTestLogger(), e.clock, e.events, nil)
	e.rounds = services.NewRoundManager(e.rt, repo)
	e.claims = services.NewClaimCascade(e.rt, repo, e.pay)
	defaults := services.DefaultAuctionDefaults()
	defaults.DailySlots = []string{"13:00", "20:00"}
	e.auctions = services.NewAuctionService(e.rt, repo, e.pay, e.rounds, e.claims, defaults)
	e.orch = services.NewOrchestrator(e.rt, repo, e.rounds, e.claims, e.auctions, services.OrchestratorConfig{
		TickInterval:      5 * time.Millisecond,
		SuperviseInterval: 20 * time.Millisecond,
	})
	return e
}

// seed stores the default fixture auction with paid participants
func (e *engine) seed(t *testing.T, participants ...string) *models.Auction {
	t.Helper()
	a := testutil.SeedAuction(t, e.repo, auctionID)
	testutil.SeedParticipants(t, e.repo, a, participants...)
	return a
}

// at moves the clock to offset after the slot start and runs one tick
func (e *engine) at(t *testing.T, offset time.Duration) bool {
	t.Helper()
	e.clock.Set(testutil.SlotStart.Add(offset))
	done, err := e.orch.Step(context.Background(), auctionID)
	if err != nil {
		t.Fatalf("Step at +%v failed: %v", offset, err)
	}
	return done
}

func (e *engine) bid(t *testing.T, round int, participantID string, amount int64) {
	t.Helper()
	if _, err := e.rounds.SubmitBid(context.Background(), auctionID, round, participantID, amount); err != nil {
		t.Fatalf("bid of %d by %s in round %d failed: %v", amount, participantID, round, err)
	}
}

func (e *engine) auction(t *testing.T) *models.Auction {
	t.Helper()
	a, err := e.repo.GetAuction(context.Background(), auctionID)
	if err != nil {
		t.Fatalf("GetAuction failed: %v", err)
	}
	return a
}

func (e *engine) round(t *testing.T, n int) *models.Round {
	t.Helper()
	r, err := e.repo.GetRound(context.Background(), auctionID, n)
	if err != nil {
		t.Fatalf("GetRound %d failed: %v", n, err)
	}
	return r
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

func expectReason(t *testing.T, err error, want errors.Reason) {
	t.Helper()
	got, ok := errors.ReasonOf(err)
	if !ok {
		t.Fatalf("expected rejection %s, got %v", want, err)
	}
	if got != want {
		t.Fatalf("expected rejection %s, got %s (%v)", want, got, err)
	}
}

// scrape sums every sample of a counter family
func scrape(t *testing.T, m *metrics.Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, s := range mf.GetMetric() {
			total += s.GetCounter().GetValue()
		}
	}
	return total
}

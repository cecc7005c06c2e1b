package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/SudarshanaRao/dream60/internal/auth"
	"github.com/SudarshanaRao/dream60/internal/clock"
	"github.com/SudarshanaRao/dream60/internal/config"
	"github.com/SudarshanaRao/dream60/internal/events"
	"github.com/SudarshanaRao/dream60/internal/handlers"
	"github.com/SudarshanaRao/dream60/internal/logger"
	"github.com/SudarshanaRao/dream60/internal/metrics"
	"github.com/SudarshanaRao/dream60/internal/repository"
	"github.com/SudarshanaRao/dream60/internal/services"
	"github.com/SudarshanaRao/dream60/internal/websocket"
	"github.com/SudarshanaRao/dream60/pkg/payments"
)

const shutdownTimeout = 10 * time.Second

// App holds all application dependencies
type App struct {
	cfg          *config.Config
	log          logger.Logger
	repo         *repository.Repository
	clock        clock.Clock
	metrics      *metrics.Metrics
	hub          *websocket.Hub
	orchestrator *services.Orchestrator
	handlers     *handlers.Handlers
	closers      []io.Closer
}

// New creates and initializes a new application instance from cfg
func New(cfg *config.Config, log logger.Logger, adminAuth *auth.Auth) (*App, error) {
	repo, err := repository.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	a, err := NewWithDeps(cfg, log, repo, clock.NewSystem(cfg.Engine.ClockMaxRegression), newPaymentsClient(cfg, log), adminAuth)
	if err != nil {
		repo.Close()
		return nil, err
	}
	return a, nil
}

// NewWithDeps wires the engine around an already opened repository, clock
// and payments client
func NewWithDeps(cfg *config.Config, log logger.Logger, repo *repository.Repository, clk clock.Clock, client payments.Client, adminAuth *auth.Auth) (*App, error) {
	defaults, err := auctionDefaults(cfg.Auction)
	if err != nil {
		return nil, fmt.Errorf("invalid auction config: %w", err)
	}

	m := metrics.New()
	hub := websocket.New(log, clk, m)

	a := &App{
		cfg:     cfg,
		log:     log,
		repo:    repo,
		clock:   clk,
		metrics: m,
		hub:     hub,
	}
	publisher := a.publishers()

	rt := services.NewRuntime(log, clk, publisher, m)
	rounds := services.NewRoundManager(rt, repo)
	claims := services.NewClaimCascade(rt, repo, client)
	auctions := services.NewAuctionService(rt, repo, client, rounds, claims, defaults)
	a.orchestrator = services.NewOrchestrator(rt, repo, rounds, claims, auctions, services.OrchestratorConfig{
		TickInterval:      cfg.Engine.TickInterval,
		SuperviseInterval: cfg.Engine.SuperviseInterval,
		AutoSchedule:      cfg.Engine.AutoSchedule,
	})

	a.handlers = handlers.New(auctions, rounds, claims, clk, adminAuth, hub, log)
	a.handlers.Location = defaults.Location

	return a, nil
}

// publishers fans events out to the websocket hub and, when configured, to
// Redis and Kafka
func (a *App) publishers() events.Multi {
	pubs := events.Multi{a.hub}

	if a.cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     a.cfg.Redis.Addr,
			Password: a.cfg.Redis.Password,
			DB:       a.cfg.Redis.DB,
		})
		a.closers = append(a.closers, client)
		pubs = append(pubs, events.NewRedisPublisher(client, a.cfg.Redis.Channel))
		a.log.Info("Publishing events to Redis", "addr", a.cfg.Redis.Addr, "channel", a.cfg.Redis.Channel)
	}

	if len(a.cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(events.NewKafkaWriter(a.cfg.Kafka.Brokers, a.cfg.Kafka.Topic))
		a.closers = append(a.closers, kp)
		pubs = append(pubs, kp)
		a.log.Info("Publishing events to Kafka", "brokers", a.cfg.Kafka.Brokers, "topic", a.cfg.Kafka.Topic)
	}

	return pubs
}

func newPaymentsClient(cfg *config.Config, log logger.Logger) payments.Client {
	if cfg.Payments.BaseURL == "" {
		log.Warn("No payments gateway configured, accepting every payment reference")
		return payments.NewAcceptAllClient(cfg.Payments.CheckoutURL, log)
	}
	return payments.NewHTTPClient(cfg.Payments.BaseURL, cfg.Payments.CheckoutURL, cfg.Payments.Timeout, log)
}

func auctionDefaults(c config.AuctionConfig) (services.AuctionDefaults, error) {
	cutoffs, err := c.Cutoffs()
	if err != nil {
		return services.AuctionDefaults{}, err
	}
	return services.AuctionDefaults{
		Location:          c.Location(),
		DailySlots:        c.DailySlots,
		RoundCount:        c.RoundCount,
		RoundDuration:     c.RoundDuration,
		ClaimWindow:       c.ClaimWindow,
		CutoffPercentages: cutoffs,
		PrizeValue:        c.PrizeValue,
		EntryFeeMin:       c.EntryFeeMin,
		EntryFeeMax:       c.EntryFeeMax,
		BaseMinBid:        c.BaseMinBid,
	}, nil
}

// Router returns the configured HTTP router
func (a *App) Router() chi.Router {
	return a.handlers.Router()
}

// MetricsHandler serves Prometheus metrics and the health check
func (a *App) MetricsHandler() http.Handler {
	return a.metrics.Handler(a.cfg.Metrics.Path, a.repo)
}

// Close releases the repository and the event sinks
func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.repo.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Run serves the API and drives the engine until ctx is cancelled or one
// of the components fails
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.hub.Run(ctx)
		return nil
	})
	g.Go(func() error {
		a.hub.StartTimeSync(ctx, a.cfg.Engine.TimeSyncInterval)
		return nil
	})
	g.Go(func() error {
		return a.orchestrator.Run(ctx)
	})

	api := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		a.log.Info("Server starting", "addr", api.Addr)
		return serve(ctx, api)
	})

	if a.cfg.Metrics.Port > 0 {
		ms := &http.Server{
			Addr:              fmt.Sprintf(":%d", a.cfg.Metrics.Port),
			Handler:           a.MetricsHandler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			a.log.Info("Metrics server starting", "addr", ms.Addr, "path", a.cfg.Metrics.Path)
			return serve(ctx, ms)
		})
	}

	err := g.Wait()
	a.log.Info("Server stopped")
	return err
}

// serve runs srv until it fails or ctx is done, then shuts it down
func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

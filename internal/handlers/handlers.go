package handlers

import (
	"time"

	"github.com/SudarshanaRao/dream60/internal/auth"
	"github.com/SudarshanaRao/dream60/internal/clock"
	"github.com/SudarshanaRao/dream60/internal/services"
	"github.com/SudarshanaRao/dream60/internal/websocket"
)

// Handlers holds all HTTP handler dependencies
type Handlers struct {
	Auctions services.AuctionServicer
	Bids     services.BidServicer
	Claims   services.ClaimServicer
	Clock    clock.Clock
	Auth     *auth.Auth
	Hub      *websocket.Hub
	Log      HTTPLogger
	// Location resolves ?date= and schedule days
	Location *time.Location
}

// HTTPLogger is an interface for loggers that support HTTP logging control
// and record internal errors
type HTTPLogger interface {
	IsHTTPLoggingEnabled() bool
	Error(msg string, args ...any)
}

// New creates a new Handlers instance with all dependencies. hub may be nil
// when the websocket stream is not served.
func New(
	auctions services.AuctionServicer,
	bids services.BidServicer,
	claims services.ClaimServicer,
	clk clock.Clock,
	adminAuth *auth.Auth,
	hub *websocket.Hub,
	log HTTPLogger,
) *Handlers {
	return &Handlers{
		Auctions: auctions,
		Bids:     bids,
		Claims:   claims,
		Clock:    clk,
		Auth:     adminAuth,
		Hub:      hub,
		Log:      log,
		Location: time.UTC,
	}
}

// NoopHTTPLogger is a test logger that always returns false for HTTP logging
type NoopHTTPLogger struct{}

func (NoopHTTPLogger) IsHTTPLoggingEnabled() bool { return false }

func (NoopHTTPLogger) Error(string, ...any) {}

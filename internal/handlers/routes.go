package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// conditionalHTTPLogger only logs HTTP requests when HTTP logging is enabled
func (h *Handlers) conditionalHTTPLogger(next http.Handler) http.Handler {
	logger := middleware.Logger(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.Log != nil && h.Log.IsHTTPLoggingEnabled() {
			logger.ServeHTTP(w, r)
		} else {
			next.ServeHTTP(w, r)
		}
	})
}

// Router returns a configured chi router with all routes
func (h *Handlers) Router() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(h.conditionalHTTPLogger) // Custom conditional HTTP logger
	r.Use(middleware.Recoverer)
	r.Use(middleware.RedirectSlashes)

	// WebSocket (outside the timeout, connections are long lived)
	if h.Hub != nil {
		r.Get("/ws", h.Hub.ServeWs)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/time", h.handleTime)

		// Auctions (public)
		r.Get("/auctions", h.handleListAuctions)
		r.Get("/auctions/live", h.handleLiveAuction) // Must come before /auctions/{id}
		r.Get("/auctions/{id}", h.handleGetAuction)
		r.Post("/auctions/{id}/entry", h.handleJoin)
		r.Get("/auctions/{id}/participants/{participantId}", h.handleParticipantView)

		// Bidding (public)
		r.Post("/auctions/{id}/rounds/{round}/bids", h.handleSubmitBid)
		r.Get("/auctions/{id}/rounds/{round}/leaderboard", h.handleLeaderboard)

		// Prize claim (public)
		r.Post("/auctions/{id}/claim", h.handleClaim)
		r.Get("/auctions/{id}/claim/qr", h.handleClaimQR)

		// Auth routes (public)
		r.Post("/api/admin/login", h.handleLogin)
		r.Post("/api/admin/logout", h.handleLogout)

		// Admin API (protected)
		r.Group(func(r chi.Router) {
			r.Use(h.Auth.RequireAuthAPI)

			r.Post("/api/admin/auctions", h.handleCreateAuction)
			r.Post("/api/admin/schedule", h.handleSchedule)
			r.Post("/api/admin/auctions/{id}/cancel", h.handleCancelAuction)
			r.Get("/api/admin/auctions/{id}/report", h.handleAuctionReport)
		})
	})

	return r
}

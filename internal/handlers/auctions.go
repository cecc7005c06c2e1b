package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/SudarshanaRao/dream60/internal/models"
)

// handleTime returns the authoritative server time
func (h *Handlers) handleTime(w http.ResponseWriter, r *http.Request) {
	now, err := h.Clock.Now()
	if err != nil {
		h.respondError(w, Unavailable("Server clock unavailable"))
		return
	}
	respondOK(w, newTimeResponse(now))
}

// parseDay reads a YYYY-MM-DD day in the configured location; empty means today
func (h *Handlers) parseDay(value string) (time.Time, error) {
	if value == "" {
		now, err := h.Clock.Now()
		if err != nil {
			return time.Time{}, Unavailable("Server clock unavailable")
		}
		return now.In(h.Location), nil
	}
	day, err := time.ParseInLocation(time.DateOnly, value, h.Location)
	if err != nil {
		return time.Time{}, BadRequest("Invalid date, expected YYYY-MM-DD")
	}
	return day, nil
}

// handleListAuctions returns the auctions scheduled on a day
func (h *Handlers) handleListAuctions(w http.ResponseWriter, r *http.Request) {
	day, err := h.parseDay(r.URL.Query().Get("date"))
	if err != nil {
		h.respondError(w, err)
		return
	}

	auctions, err := h.Auctions.List(r.Context(), day)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if auctions == nil {
		auctions = []models.Auction{}
	}

	respondOK(w, AuctionListResponse{Date: day.Format(time.DateOnly), Auctions: auctions})
}

// handleLiveAuction returns the auction currently running
func (h *Handlers) handleLiveAuction(w http.ResponseWriter, r *http.Request) {
	state, err := h.Auctions.Live(r.Context())
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, state)
}

// handleGetAuction returns an auction with its rounds and claims
func (h *Handlers) handleGetAuction(w http.ResponseWriter, r *http.Request) {
	state, err := h.Auctions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, state)
}

// handleJoin records a paid entry
func (h *Handlers) handleJoin(w http.ResponseWriter, r *http.Request) {
	var req EntryRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	p, err := h.Auctions.Join(r.Context(), chi.URLParam(r, "id"), req.ParticipantID, req.PaymentRef)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondCreated(w, p)
}

// handleParticipantView returns what a participant sees and can do next
func (h *Handlers) handleParticipantView(w http.ResponseWriter, r *http.Request) {
	view, err := h.Auctions.ParticipantView(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "participantId"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, view)
}

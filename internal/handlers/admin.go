package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/SudarshanaRao/dream60/internal/models"
)

// handleCreateAuction creates an auction for a slot
func (h *Handlers) handleCreateAuction(w http.ResponseWriter, r *http.Request) {
	var req CreateAuctionRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	a, err := h.Auctions.Create(r.Context(), req.toService())
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondCreated(w, a)
}

// handleSchedule creates the configured daily auctions for a day
func (h *Handlers) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var req ScheduleRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			h.respondError(w, err)
			return
		}
	}
	day, err := h.parseDay(req.Date)
	if err != nil {
		h.respondError(w, err)
		return
	}

	auctions, err := h.Auctions.Schedule(r.Context(), day)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if auctions == nil {
		auctions = []models.Auction{}
	}
	respondOK(w, AuctionListResponse{Date: day.Format(time.DateOnly), Auctions: auctions})
}

// handleCancelAuction cancels an auction and refunds its entries
func (h *Handlers) handleCancelAuction(w http.ResponseWriter, r *http.Request) {
	a, err := h.Auctions.Cancel(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, a)
}

// handleAuctionReport returns participation, claims and refunds
func (h *Handlers) handleAuctionReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.Auctions.Report(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, report)
}

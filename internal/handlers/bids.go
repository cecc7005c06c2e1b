package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/SudarshanaRao/dream60/internal/models"
)

// handleSubmitBid admits or rejects a bid
func (h *Handlers) handleSubmitBid(w http.ResponseWriter, r *http.Request) {
	round, err := parseIntParam(r, "round")
	if err != nil {
		h.respondError(w, err)
		return
	}

	var req BidRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}
	if req.ParticipantID == "" {
		h.respondError(w, BadRequest("participantId is required"))
		return
	}

	bid, err := h.Bids.SubmitBid(r.Context(), chi.URLParam(r, "id"), round, req.ParticipantID, req.Amount)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondCreated(w, bid)
}

// handleLeaderboard returns the ranked bids of a completed round
func (h *Handlers) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	round, err := parseIntParam(r, "round")
	if err != nil {
		h.respondError(w, err)
		return
	}

	auctionID := chi.URLParam(r, "id")
	entries, err := h.Bids.Leaderboard(r.Context(), auctionID, round)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if entries == nil {
		entries = []models.LeaderboardEntry{}
	}

	respondOK(w, LeaderboardResponse{AuctionID: auctionID, Round: round, Entries: entries})
}

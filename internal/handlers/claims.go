package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleClaim pays the final bid for the offered rank
func (h *Handlers) handleClaim(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, err)
		return
	}

	claim, err := h.Claims.Claim(r.Context(), chi.URLParam(r, "id"), req.ParticipantID, req.PaymentRef)
	if err != nil {
		h.respondError(w, err)
		return
	}
	respondOK(w, claim)
}

// handleClaimQR returns a PNG QR code linking to the checkout for the
// participant's open offer
func (h *Handlers) handleClaimQR(w http.ResponseWriter, r *http.Request) {
	participantID := r.URL.Query().Get("participantId")
	if participantID == "" {
		h.respondError(w, BadRequest("participantId is required"))
		return
	}

	png, err := h.Claims.CheckoutQR(r.Context(), chi.URLParam(r, "id"), participantID)
	if err != nil {
		h.respondError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(png)
}

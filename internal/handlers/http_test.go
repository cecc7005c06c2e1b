package handlers_test

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/SudarshanaRao/dream60/internal/errors"
	"github.com/SudarshanaRao/dream60/internal/handlers"
)

func TestAPIError_Error(t *testing.T) {
	err := handlers.NewAPIError(http.StatusBadRequest, "BAD_REQUEST", "test message")

	if err.Error() != "test message" {
		t.Errorf("expected 'test message', got %q", err.Error())
	}
	if err.Code != "BAD_REQUEST" {
		t.Errorf("expected code 'BAD_REQUEST', got %q", err.Code)
	}
}

func TestBadRequest_Codes(t *testing.T) {
	if err := handlers.BadRequest("body is empty"); err.Code != handlers.ErrCodeBadRequest {
		t.Errorf("expected BAD_REQUEST, got %s", err.Code)
	}
	if err := handlers.BadRequest("Invalid date"); err.Code != handlers.ErrCodeValidation {
		t.Errorf("expected VALIDATION_ERROR, got %s", err.Code)
	}
}

func TestToAPIError_Rejections(t *testing.T) {
	tests := []struct {
		reason errors.Reason
		status int
	}{
		{errors.ReasonDuplicateBid, http.StatusConflict},
		{errors.ReasonDuplicateEntryPayment, http.StatusConflict},
		{errors.ReasonRoundNotActive, http.StatusConflict},
		{errors.ReasonEntryClosed, http.StatusConflict},
		{errors.ReasonBelowMinimum, http.StatusUnprocessableEntity},
		{errors.ReasonAboveMaximum, http.StatusUnprocessableEntity},
		{errors.ReasonBidNotIncreasing, http.StatusUnprocessableEntity},
		{errors.ReasonPaymentMismatch, http.StatusUnprocessableEntity},
		{errors.ReasonEntryNotPaid, http.StatusForbidden},
		{errors.ReasonNotQualified, http.StatusForbidden},
		{errors.ReasonClaimWrongRank, http.StatusForbidden},
		{errors.ReasonClaimWindowExpired, http.StatusGone},
	}
	for _, tt := range tests {
		t.Run(string(tt.reason), func(t *testing.T) {
			rej := errors.Reject(tt.reason, "refused").With("minBid", 600)
			apiErr := handlers.ToAPIError(fmt.Errorf("wrapped: %w", rej))

			if apiErr.Status != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, apiErr.Status)
			}
			if apiErr.Code != string(tt.reason) || apiErr.Message != "refused" {
				t.Errorf("unexpected error body: %+v", apiErr)
			}
			if apiErr.Details["minBid"] != 600 {
				t.Errorf("expected details to be carried, got %v", apiErr.Details)
			}
		})
	}
}

func TestToAPIError_Kinds(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", errors.NotFound("auction a-1 not found"), http.StatusNotFound, handlers.ErrCodeNotFound},
		{"validation", errors.Validation("slotStart is required"), http.StatusBadRequest, handlers.ErrCodeValidation},
		{"invalid input", errors.InvalidInput("amount must be positive"), http.StatusBadRequest, handlers.ErrCodeValidation},
		{"conflict", errors.Conflict("auction is already CANCELLED"), http.StatusConflict, handlers.ErrCodeConflict},
		{"unavailable", errors.Unavailable("clock unavailable", stderrors.New("ntp")), http.StatusServiceUnavailable, handlers.ErrCodeUnavailable},
		{"internal", errors.Internal(stderrors.New("boom")), http.StatusInternalServerError, handlers.ErrCodeInternalServer},
		{"plain error", stderrors.New("boom"), http.StatusInternalServerError, handlers.ErrCodeInternalServer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiErr := handlers.ToAPIError(tt.err)
			if apiErr.Status != tt.status || apiErr.Code != tt.code {
				t.Errorf("expected %d %s, got %d %s", tt.status, tt.code, apiErr.Status, apiErr.Code)
			}
		})
	}
}

func TestToAPIError_InternalHidesDetails(t *testing.T) {
	apiErr := handlers.ToAPIError(stderrors.New("database password is hunter2"))

	if apiErr.Message != "Internal server error" {
		t.Errorf("expected generic message, got %q", apiErr.Message)
	}
}

package handlers

import (
	"bytes"
	stderrors "errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/SudarshanaRao/dream60/internal/errors"
	"github.com/SudarshanaRao/dream60/internal/logger"
)

func TestRespondError_LogsInternalErrorsThroughHandlerLogger(t *testing.T) {
	var buf bytes.Buffer
	h := &Handlers{Log: logger.NewWithWriter(&buf, logger.FormatText, slog.LevelDebug)}

	w := httptest.NewRecorder()
	h.respondError(w, stderrors.New("disk on fire"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "disk on fire") {
		t.Errorf("internal error leaked to the client: %s", w.Body.String())
	}
	out := buf.String()
	if !strings.Contains(out, "Internal error") || !strings.Contains(out, "disk on fire") {
		t.Errorf("expected the internal error in the handler log, got %q", out)
	}
}

func TestRespondError_RejectionsAreNotLogged(t *testing.T) {
	var buf bytes.Buffer
	h := &Handlers{Log: logger.NewWithWriter(&buf, logger.FormatText, slog.LevelDebug)}

	w := httptest.NewRecorder()
	h.respondError(w, errors.Reject(errors.ReasonDuplicateBid, "already bid"))

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	if buf.Len() != 0 {
		t.Errorf("expected nothing logged for a rejection, got %q", buf.String())
	}
}

func TestRespondError_WithoutLogger(t *testing.T) {
	h := &Handlers{}

	w := httptest.NewRecorder()
	h.respondError(w, stderrors.New("boom"))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

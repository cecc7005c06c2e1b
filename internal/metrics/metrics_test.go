package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestCounters(t *testing.T) {
	m := New()

	m.Bids.WithLabelValues(ResultAccepted).Inc()
	m.Bids.WithLabelValues("BELOW_MINIMUM").Add(2)
	m.EngineFaults.WithLabelValues("clock").Inc()

	output := scrape(t, m)
	if !strings.Contains(output, `dream60_bids_total{result="BELOW_MINIMUM"} 2`) {
		t.Errorf("expected 2 below-minimum rejections")
	}
	if !strings.Contains(output, `dream60_engine_faults_total{reason="clock"} 1`) {
		t.Errorf("expected 1 clock fault")
	}
}

func TestHandler_ServesMetrics(t *testing.T) {
	m := New()
	m.Entries.WithLabelValues(ResultAccepted).Inc()

	if !strings.Contains(scrape(t, m), `dream60_entries_total{result="accepted"} 1`) {
		t.Errorf("expected entries counter in output")
	}
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler("", nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestHandler_Healthz(t *testing.T) {
	m := New()

	rec := httptest.NewRecorder()
	m.Handler("/metrics", pinger{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	m.Handler("/metrics", pinger{err: errors.New("down")}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
}

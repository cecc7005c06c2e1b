// Package metrics exposes engine counters to Prometheus on a dedicated port.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels
const (
	ResultAccepted = "accepted"
	ResultFault    = "fault"
)

// Metrics holds every collector the engine reports to
type Metrics struct {
	Registry *prometheus.Registry

	Bids             *prometheus.CounterVec
	Entries          *prometheus.CounterVec
	Claims           *prometheus.CounterVec
	RoundTransitions *prometheus.CounterVec
	EngineFaults     *prometheus.CounterVec
	Refunds          *prometheus.CounterVec
	ActiveAuctions   prometheus.Gauge
	WSClients        prometheus.Gauge
	BidLatency       prometheus.Histogram
}

// New creates collectors registered on a private registry
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Bids: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dream60_bids_total",
			Help: "Bid submissions by outcome (accepted or rejection reason).",
		}, []string{"result"}),
		Entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dream60_entries_total",
			Help: "Entry fee submissions by outcome.",
		}, []string{"result"}),
		Claims: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dream60_claims_total",
			Help: "Prize claim attempts and cascade transitions by outcome.",
		}, []string{"result"}),
		RoundTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dream60_round_transitions_total",
			Help: "Round status transitions.",
		}, []string{"to"}),
		EngineFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dream60_engine_faults_total",
			Help: "Fatal engine conditions that halted admission.",
		}, []string{"reason"}),
		Refunds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dream60_refunds_total",
			Help: "Refunds recorded by reason.",
		}, []string{"reason"}),
		ActiveAuctions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dream60_active_auctions",
			Help: "Auctions with a running orchestrator.",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dream60_ws_clients",
			Help: "Connected websocket subscribers.",
		}),
		BidLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "dream60_bid_admission_seconds",
			Help:    "Time spent admitting a bid.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
	}

	m.Registry.MustRegister(
		m.Bids, m.Entries, m.Claims, m.RoundTransitions, m.EngineFaults, m.Refunds,
		m.ActiveAuctions, m.WSClients, m.BidLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Pinger reports whether a dependency is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler serves the registry at path and a /healthz check backed by db
func (m *Metrics) Handler(path string, db Pinger) http.Handler {
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.Ping(ctx); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return mux
}

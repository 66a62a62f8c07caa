// Package metrics provides Prometheus instrumentation for the agent pipeline.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// DecisionsTotal counts decisions by provider and outcome kind.
	DecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyagents_decisions_total",
		Help: "Decisions produced, by provider and outcome",
	}, []string{"provider", "kind"})

	// ProviderLatency tracks provider round trips.
	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "polyagents_provider_latency_seconds",
		Help:    "AI provider call latency in seconds",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
	}, []string{"provider"})

	// TradesOpened counts simulated trades by agent and side.
	TradesOpened = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyagents_trades_opened_total",
		Help: "Simulated trades opened",
	}, []string{"agent", "side"})

	// ResearchNotes counts research decisions by agent.
	ResearchNotes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyagents_research_notes_total",
		Help: "Research decisions recorded",
	}, []string{"agent"})

	// CycleDuration tracks one agent generation cycle.
	CycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "polyagents_cycle_duration_seconds",
		Help:    "Agent generation cycle duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"agent"})

	// CyclesSkipped counts scheduled agent cycles that did not run.
	CyclesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyagents_cycles_skipped_total",
		Help: "Scheduled agent cycles skipped",
	}, []string{"agent", "reason"})

	// ArchivedRows counts rows copied to cold storage.
	ArchivedRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyagents_archived_rows_total",
		Help: "Rows written to the archive bucket",
	}, []string{"kind"})

	// MarketsScored tracks the size of the last market snapshot.
	MarketsScored = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyagents_markets_available",
		Help: "Markets in the latest snapshot",
	})

	// StaleServes counts fetches answered from a stale snapshot.
	StaleServes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyagents_stale_serves_total",
		Help: "Fetches served from a stale cache",
	}, []string{"feed"})

	// AgentEquity tracks each agent's current simulated capital.
	AgentEquity = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "polyagents_agent_equity_usd",
		Help: "Current simulated capital per agent",
	}, []string{"agent"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyagents_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyagents_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "polyagents_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 5.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveProvider records one provider call.
func ObserveProvider(provider string, start time.Time) {
	ProviderLatency.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}

// Middleware records request counts and latency. The route pattern is used
// as the path label when the mux provides one.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack keeps websocket upgrades working through the wrapper.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: underlying ResponseWriter does not support hijacking")
	}
	return h.Hijack()
}

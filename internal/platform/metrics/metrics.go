package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the sync service.
type Metrics struct {
	registry          *prometheus.Registry
	requestsTotal     prometheus.Counter
	errorsTotal       prometheus.Counter
	ticksTotal        *prometheus.CounterVec
	ticksSkippedTotal *prometheus.CounterVec
	correctionsTotal  *prometheus.CounterVec
	driftSeconds      prometheus.Histogram
	bridgeAttachments prometheus.Counter
	connectedPlayers  prometheus.Gauge
	droppedCommands   prometheus.Counter
}

// New creates and registers Prometheus metrics for the sync service.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_http_requests_total",
		Help: "Total number of HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_http_errors_total",
		Help: "Total number of HTTP responses with error status (4xx or 5xx)",
	})
	ticksTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_ticks_total",
		Help: "Reconciliation passes run, by whether thresholds were bypassed",
	}, []string{"forced"})
	ticksSkippedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_ticks_skipped_total",
		Help: "Reconciliation passes that made no measurement, by reason",
	}, []string{"reason"})
	correctionsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_corrections_total",
		Help: "Corrective commands issued to players, by command",
	}, []string{"kind"})
	driftSeconds := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sync_drift_seconds",
		Help:    "Measured drift between a window and the reference window",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	})
	bridgeAttachments := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_reference_attachments_total",
		Help: "Times the engine subscribed to a reference player's events",
	})
	connectedPlayers := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "sync_connected_players",
		Help: "Number of players currently attached to a window",
	})
	droppedCommands := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_player_commands_dropped_total",
		Help: "Player commands dropped because the player's outbound queue was full",
	})

	registry.MustRegister(
		requestsTotal,
		errorsTotal,
		ticksTotal,
		ticksSkippedTotal,
		correctionsTotal,
		driftSeconds,
		bridgeAttachments,
		connectedPlayers,
		droppedCommands,
	)

	return &Metrics{
		registry:          registry,
		requestsTotal:     requestsTotal,
		errorsTotal:       errorsTotal,
		ticksTotal:        ticksTotal,
		ticksSkippedTotal: ticksSkippedTotal,
		correctionsTotal:  correctionsTotal,
		driftSeconds:      driftSeconds,
		bridgeAttachments: bridgeAttachments,
		connectedPlayers:  connectedPlayers,
		droppedCommands:   droppedCommands,
	}
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// IncTicks counts a reconciliation pass.
func (m *Metrics) IncTicks(forced bool) {
	m.ticksTotal.WithLabelValues(strconv.FormatBool(forced)).Inc()
}

// IncTicksSkipped counts a pass that found no usable reference.
func (m *Metrics) IncTicksSkipped(reason string) {
	m.ticksSkippedTotal.WithLabelValues(reason).Inc()
}

// IncCorrections counts a corrective command of the given kind.
func (m *Metrics) IncCorrections(kind string) {
	m.correctionsTotal.WithLabelValues(kind).Inc()
}

// ObserveDrift records a drift measurement in seconds.
func (m *Metrics) ObserveDrift(seconds float64) {
	m.driftSeconds.Observe(seconds)
}

// IncBridgeAttachments counts a subscription to a reference player's events.
func (m *Metrics) IncBridgeAttachments() {
	m.bridgeAttachments.Inc()
}

// SetConnectedPlayers sets the connected players gauge.
func (m *Metrics) SetConnectedPlayers(n int) {
	m.connectedPlayers.Set(float64(n))
}

// IncDroppedCommands counts a command that could not be queued for a player.
func (m *Metrics) IncDroppedCommands() {
	m.droppedCommands.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values (e.g. connected players).
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}

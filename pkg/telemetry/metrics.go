package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Metrics provides Prometheus metrics for colony sessions. A disabled
// instance accepts every call and records nothing.
type Metrics struct {
	config MetricsConfig

	// Placement metrics
	placements *prometheus.CounterVec
	undos      *prometheus.CounterVec
	evictions  prometheus.Counter

	// Progression metrics
	advances     *prometheus.CounterVec
	resets       *prometheus.CounterVec
	currentGoal  prometheus.Gauge
	goalReady    prometheus.Gauge
	ledgerDepth  prometheus.Gauge
	healedCounts prometheus.Counter

	// Error metrics
	errorsByClass *prometheus.CounterVec
	errorsByCode  *prometheus.CounterVec

	// Operation latency
	operationDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		placements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "placements_total",
				Help:      "Total number of recorded placements",
			},
			[]string{"kind", "bucket"},
		),
		undos: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "undos_total",
				Help:      "Total number of undone placements",
			},
			[]string{"kind"},
		),
		evictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ledger_evictions_total",
				Help:      "Total number of placements evicted from the undo ledger",
			},
		),

		advances: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "goal_advances_total",
				Help:      "Total number of goal advances by tier of the new goal",
			},
			[]string{"tier"},
		),
		resets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "progression_resets_total",
				Help:      "Total number of progression resets",
			},
			[]string{"reason"},
		),
		currentGoal: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "current_goal_index",
				Help:      "Index of the active goal",
			},
		),
		goalReady: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "goal_ready",
				Help:      "Readiness of the active goal (1=ready, 0=in progress)",
			},
		),
		ledgerDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ledger_depth",
				Help:      "Number of undoable placements",
			},
		),
		healedCounts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "healed_counters_total",
				Help:      "Total number of counters recomputed by consistency checks",
			},
		),

		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of errors by error class",
			},
			[]string{"class"},
		),
		errorsByCode: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_code_total",
				Help:      "Total number of errors by error code",
			},
			[]string{"code"},
		),

		operationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of session operations in seconds",
				Buckets:   buckets,
			},
			[]string{"operation"},
		),
	}

	registry.MustRegister(
		m.placements,
		m.undos,
		m.evictions,
		m.advances,
		m.resets,
		m.currentGoal,
		m.goalReady,
		m.ledgerDepth,
		m.healedCounts,
		m.errorsByClass,
		m.errorsByCode,
		m.operationDuration,
	)

	return m, nil
}

// RecordPlacement counts a placement and whether it consumed a requirement or an extra.
func (m *Metrics) RecordPlacement(kind string, required bool) {
	if m.placements == nil {
		return
	}
	bucket := "extra"
	if required {
		bucket = "requirement"
	}
	m.placements.WithLabelValues(kind, bucket).Inc()
}

// RecordUndo counts an undone placement.
func (m *Metrics) RecordUndo(kind string) {
	if m.undos == nil {
		return
	}
	m.undos.WithLabelValues(kind).Inc()
}

// RecordEvictions adds n evicted ledger records.
func (m *Metrics) RecordEvictions(n int) {
	if m.evictions == nil || n <= 0 {
		return
	}
	m.evictions.Add(float64(n))
}

// RecordAdvance counts an advance onto a goal of the given tier.
func (m *Metrics) RecordAdvance(tier string) {
	if m.advances == nil {
		return
	}
	m.advances.WithLabelValues(tier).Inc()
}

// RecordReset counts a reset to the first goal.
func (m *Metrics) RecordReset(reason string) {
	if m.resets == nil {
		return
	}
	m.resets.WithLabelValues(reason).Inc()
}

// RecordHealed adds n counters recomputed by a consistency check.
func (m *Metrics) RecordHealed(n int) {
	if m.healedCounts == nil || n <= 0 {
		return
	}
	m.healedCounts.Add(float64(n))
}

// SetProgress sets the progression gauges.
func (m *Metrics) SetProgress(goalIndex int, ready bool, ledgerDepth int) {
	if m.currentGoal == nil {
		return
	}
	m.currentGoal.Set(float64(goalIndex))
	value := 0.0
	if ready {
		value = 1.0
	}
	m.goalReady.Set(value)
	m.ledgerDepth.Set(float64(ledgerDepth))
}

// RecordError records an error by class and optionally by code.
func (m *Metrics) RecordError(errorClass, errorCode string) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
	if errorCode != "" {
		m.errorsByCode.WithLabelValues(errorCode).Inc()
	}
}

// ObserveOperation records the duration of a session operation.
func (m *Metrics) ObserveOperation(operation string, duration time.Duration) {
	if m.operationDuration == nil {
		return
	}
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// Registry returns the metrics registry, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Timer provides a convenient way to time operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the elapsed time since the timer was created.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server to expose metrics. The returned
// server is nil when metrics are disabled.
func (m *Metrics) StartMetricsServer() *http.Server {
	if !m.config.Enabled {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Str("address", m.config.ListenAddress).Msg("Metrics server stopped")
		}
	}()

	return server
}

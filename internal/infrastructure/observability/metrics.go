package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all application metrics
type Metrics struct {
	// State machine metrics
	TransitionsTotal *prometheus.CounterVec

	// Capture processor metrics
	CapturesTotal   *prometheus.CounterVec
	CaptureDuration prometheus.Histogram

	// Event outbox metrics
	EventsTotal    *prometheus.CounterVec
	SweeperBacklog prometheus.Gauge

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
}

// NewMetrics creates and registers all metrics against the given registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "charge_transitions_total",
				Help:      "Total number of charge state transitions",
			},
			[]string{"from_status", "to_status"},
		),
		CapturesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "captures_total",
				Help:      "Total number of capture messages handled by outcome",
			},
			[]string{"result"},
		),
		CaptureDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "capture_duration_seconds",
				Help:      "Capture message handling duration in seconds",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Total number of event emission attempts by outcome",
			},
			[]string{"event_type", "result"},
		),
		SweeperBacklog: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "event_sweeper_backlog",
				Help:      "Unemitted events seen by the last sweep",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"gateway"},
		),
	}

	// Register all collectors
	reg.MustRegister(
		m.TransitionsTotal,
		m.CapturesTotal,
		m.CaptureDuration,
		m.EventsTotal,
		m.SweeperBacklog,
		m.CircuitBreakerState,
	)

	return m
}

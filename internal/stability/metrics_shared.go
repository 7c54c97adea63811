package stability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// registryMetrics exports the registry's circuit-breaker and backoff state
// as Prometheus gauges/counters, modeled on the teacher's
// server/circuitbreaker.metrics struct. Nil-safe: a Registry built with a
// nil *prometheus.Registry (the common case in unit tests) never
// constructs one, matching the teacher's Config.TestMode convention.
type registryMetrics struct {
	stateGauge   *prometheus.GaugeVec
	tripsTotal   *prometheus.CounterVec
	backoffGauge *prometheus.GaugeVec
}

func newRegistryMetrics(registry *prometheus.Registry) *registryMetrics {
	if registry == nil {
		return nil
	}

	m := &registryMetrics{
		stateGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gasket_circuit_breaker_state",
			Help: "Current state of the per-route circuit breaker (0=closed, 1=open)",
		}, []string{"route"}),
		tripsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gasket_circuit_breaker_trips_total",
			Help: "Total number of times a route's circuit breaker has tripped",
		}, []string{"route"}),
		backoffGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gasket_backoff_current_timeout_seconds",
			Help: "Current per-route backoff timeout in seconds",
		}, []string{"route"}),
	}

	registry.MustRegister(m.stateGauge)
	registry.MustRegister(m.tripsTotal)
	registry.MustRegister(m.backoffGauge)

	return m
}

func (m *registryMetrics) observeTrip(route string, stillClosed bool) {
	if m == nil {
		return
	}
	m.tripsTotal.WithLabelValues(route).Inc()
	m.observeState(route, stillClosed)
}

func (m *registryMetrics) observeState(route string, closed bool) {
	if m == nil {
		return
	}
	if closed {
		m.stateGauge.WithLabelValues(route).Set(0)
	} else {
		m.stateGauge.WithLabelValues(route).Set(1)
	}
}

func (m *registryMetrics) observeBackoff(route string, d time.Duration) {
	if m == nil {
		return
	}
	m.backoffGauge.WithLabelValues(route).Set(d.Seconds())
}

package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// EngineMetrics records engine operation activity exposed on /metrics.
type EngineMetrics struct {
	registry   *prometheus.Registry
	operations *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	liquidated prometheus.Counter
	unhealthy  prometheus.Counter
}

var (
	engineOnce sync.Once
	engineReg  *EngineMetrics
)

// Engine returns the lazily-initialised engine metrics registry.
func Engine() *EngineMetrics {
	engineOnce.Do(func() {
		m := &EngineMetrics{registry: prometheus.NewRegistry()}
		m.operations = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "synthd",
			Subsystem: "engine",
			Name:      "operations_total",
			Help:      "Total engine operations segmented by operation and outcome.",
		}, []string{"operation", "outcome"})
		m.latency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "synthd",
			Subsystem: "engine",
			Name:      "operation_duration_seconds",
			Help:      "Latency distribution for engine operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"})
		m.liquidated = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "synthd",
			Subsystem: "engine",
			Name:      "liquidations_total",
			Help:      "Total successful liquidations.",
		})
		m.unhealthy = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "synthd",
			Subsystem: "engine",
			Name:      "health_check_failures_total",
			Help:      "Total operations rejected by the health factor guard.",
		})
		m.registry.MustRegister(m.operations, m.latency, m.liquidated, m.unhealthy)
		engineReg = m
	})
	return engineReg
}

// ObserveOperation records one operation with its outcome and duration.
func (m *EngineMetrics) ObserveOperation(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.latency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// MarkLiquidation counts a successful liquidation.
func (m *EngineMetrics) MarkLiquidation() {
	if m == nil {
		return
	}
	m.liquidated.Inc()
}

// MarkHealthCheckFailure counts an operation rejected by the health guard.
func (m *EngineMetrics) MarkHealthCheckFailure() {
	if m == nil {
		return
	}
	m.unhealthy.Inc()
}

// Handler exposes the registry for the /metrics endpoint.
func (m *EngineMetrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

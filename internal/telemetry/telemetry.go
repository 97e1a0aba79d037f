// Package telemetry defines Prometheus counters/histograms for graph node
// execution, LLM response cache lookups and retrieval result counts, plus
// an OpenTelemetry tracer helper. Only node outcomes and durations are
// recorded today, by the graph runtime through RecordNode; RecordCache,
// RecordRetrieval and StartSpan have no caller. Grounded on internal/background/metrics.go's promauto style. The
// teacher's internal/observability package carries only test files tied
// to an unrelated, out-of-scope provider abstraction (see DESIGN.md), so
// this is a fresh package rather than an adaptation of it.
package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Metrics holds every Prometheus collector this service exposes.
type Metrics struct {
	NodeInvocations *prometheus.CounterVec
	NodeDuration    *prometheus.HistogramVec
	CacheHits       *prometheus.CounterVec
	RetrievalTopK   *prometheus.HistogramVec
}

// NewMetrics registers the service's collectors against the default
// Prometheus registry.
func NewMetrics() *Metrics {
	return &Metrics{
		NodeInvocations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "helixagent",
			Subsystem: "graph",
			Name:      "node_invocations_total",
			Help:      "Total node executions by route and outcome.",
		}, []string{"route", "outcome"}),

		NodeDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "helixagent",
			Subsystem: "graph",
			Name:      "node_duration_seconds",
			Help:      "Node execution duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"route"}),

		CacheHits: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "helixagent",
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "LLM response cache lookups by outcome.",
		}, []string{"outcome"}), // outcome: hit, miss, disabled

		RetrievalTopK: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "helixagent",
			Subsystem: "retrieval",
			Name:      "results_returned",
			Help:      "Number of ranked results returned per search call.",
			Buckets:   []float64{0, 1, 2, 3, 4, 6, 8, 12, 20},
		}, []string{"strategy"}),
	}
}

// RecordNode records one node's outcome and wall-clock duration.
func (m *Metrics) RecordNode(route, outcome string, seconds float64) {
	m.NodeInvocations.WithLabelValues(route, outcome).Inc()
	m.NodeDuration.WithLabelValues(route).Observe(seconds)
}

// RecordCache records an LLM response cache lookup outcome.
func (m *Metrics) RecordCache(outcome string) {
	m.CacheHits.WithLabelValues(outcome).Inc()
}

// RecordRetrieval records how many ranked results a search call returned.
func (m *Metrics) RecordRetrieval(strategy string, count int) {
	m.RetrievalTopK.WithLabelValues(strategy).Observe(float64(count))
}

// tracerName identifies this service's spans in the configured OTLP
// exporter, matching the module path convention OpenTelemetry expects.
const tracerName = "dev.helix.agent"

// Tracer returns the service's named tracer from otel's global
// TracerProvider. The server binary installs no provider, so this resolves
// to the otel default no-op provider and spans are free.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span named for the graph route currently executing.
func StartSpan(ctx context.Context, route string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "graph.node."+route, trace.WithAttributes(attribute.String("route", route)))
}

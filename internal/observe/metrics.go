// Package observe provides application-wide observability primitives for
// the memory engine: OpenTelemetry metrics, distributed tracing, structured
// logging enriched with trace context.
//
// Metrics are recorded through the OpenTelemetry Metrics API. A Prometheus
// exporter bridge is available via [InitProvider] so that metrics can still be
// scraped via the standard /metrics endpoint. A package-level default
// [Metrics] instance ([DefaultMetrics]) is provided for convenience; tests
// should use [NewMetrics] with a custom [metric.MeterProvider] to avoid
// cross-test pollution.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name used for all memory-engine metrics.
const meterName = "github.com/MrWong99/glyphoxa"

// Metrics holds all OpenTelemetry metric instruments for the application.
// All fields are safe for concurrent use — the underlying OTel types handle
// their own synchronisation.
type Metrics struct {
	// --- Latency histograms ---

	// SearchDuration tracks end-to-end Retriever.Search latency.
	SearchDuration metric.Float64Histogram

	// RetrievalPathDuration tracks a single retrieval path's latency. Use
	// with attribute.String("path", ...).
	RetrievalPathDuration metric.Float64Histogram

	// RerankDuration tracks reranker call latency.
	RerankDuration metric.Float64Histogram

	// IngestDuration tracks end-to-end Ingestor.Ingest latency.
	IngestDuration metric.Float64Histogram

	// EmbedDuration tracks embedder call latency.
	EmbedDuration metric.Float64Histogram

	// StorageQueryDuration tracks backend store call latency. Use with
	// attribute.String("operation", ...).
	StorageQueryDuration metric.Float64Histogram

	// --- Counters ---

	// SearchRequests counts Retriever.Search calls. Use with attributes:
	//   attribute.String("status", ...)
	SearchRequests metric.Int64Counter

	// FactsIngested counts narrative facts successfully ingested.
	FactsIngested metric.Int64Counter

	// FactsDeduped counts facts dropped by embedding-similarity dedupe.
	FactsDeduped metric.Int64Counter

	// LinksCreated counts link edges written by the link-construction
	// pipeline. Use with attribute.String("link_type", ...).
	LinksCreated metric.Int64Counter

	// --- Error/degradation counters ---

	// PathDegraded counts retrieval paths that failed and fell back to an
	// empty result. Use with attribute.String("path", ...).
	PathDegraded metric.Int64Counter

	// RerankerDegraded counts Search calls that fell back to fused order
	// because the reranker was unavailable.
	RerankerDegraded metric.Int64Counter

	// CollaboratorErrors counts errors from opaque collaborators (embedder,
	// reranker, extractor, temporal parser). Use with attributes:
	//   attribute.String("collaborator", ...), attribute.String("kind", ...)
	CollaboratorErrors metric.Int64Counter

	// --- Gauges ---

	// CircuitBreakerOpen tracks the number of circuit breakers currently
	// open across collaborators.
	CircuitBreakerOpen metric.Int64UpDownCounter
}

// latencyBuckets defines histogram bucket boundaries (in seconds) for
// retrieval and ingestion latencies.
var latencyBuckets = []float64{
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10,
}

// NewMetrics creates a fully initialised [Metrics] struct using the given
// [metric.MeterProvider]. Returns an error if any instrument creation fails.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	// Histograms.
	if met.SearchDuration, err = m.Float64Histogram("glyphoxa.memory.search.duration",
		metric.WithDescription("End-to-end latency of Retriever.Search."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RetrievalPathDuration, err = m.Float64Histogram("glyphoxa.memory.retrieval_path.duration",
		metric.WithDescription("Latency of a single retrieval path."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.RerankDuration, err = m.Float64Histogram("glyphoxa.memory.rerank.duration",
		metric.WithDescription("Latency of a reranker call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.IngestDuration, err = m.Float64Histogram("glyphoxa.memory.ingest.duration",
		metric.WithDescription("End-to-end latency of Ingestor.Ingest."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.EmbedDuration, err = m.Float64Histogram("glyphoxa.memory.embed.duration",
		metric.WithDescription("Latency of an embedder call."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}
	if met.StorageQueryDuration, err = m.Float64Histogram("glyphoxa.memory.storage.duration",
		metric.WithDescription("Latency of a storage backend call, by operation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	); err != nil {
		return nil, err
	}

	// Counters.
	if met.SearchRequests, err = m.Int64Counter("glyphoxa.memory.search.requests",
		metric.WithDescription("Total Retriever.Search calls by status."),
	); err != nil {
		return nil, err
	}
	if met.FactsIngested, err = m.Int64Counter("glyphoxa.memory.facts.ingested",
		metric.WithDescription("Total narrative facts successfully ingested."),
	); err != nil {
		return nil, err
	}
	if met.FactsDeduped, err = m.Int64Counter("glyphoxa.memory.facts.deduped",
		metric.WithDescription("Total facts dropped by embedding-similarity dedupe."),
	); err != nil {
		return nil, err
	}
	if met.LinksCreated, err = m.Int64Counter("glyphoxa.memory.links.created",
		metric.WithDescription("Total link edges written, by link type."),
	); err != nil {
		return nil, err
	}

	// Degradation/error counters.
	if met.PathDegraded, err = m.Int64Counter("glyphoxa.memory.path.degraded",
		metric.WithDescription("Total retrieval paths that failed and degraded to empty, by path."),
	); err != nil {
		return nil, err
	}
	if met.RerankerDegraded, err = m.Int64Counter("glyphoxa.memory.reranker.degraded",
		metric.WithDescription("Total Search calls that fell back to fused order due to reranker unavailability."),
	); err != nil {
		return nil, err
	}
	if met.CollaboratorErrors, err = m.Int64Counter("glyphoxa.memory.collaborator.errors",
		metric.WithDescription("Total collaborator errors by collaborator and kind."),
	); err != nil {
		return nil, err
	}

	// Gauges (UpDownCounters).
	if met.CircuitBreakerOpen, err = m.Int64UpDownCounter("glyphoxa.memory.circuit_breaker.open",
		metric.WithDescription("Number of collaborator circuit breakers currently open."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// defaultMetrics is the lazily-initialised package-level Metrics instance.
var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level [Metrics] instance, creating it on
// first call using [otel.GetMeterProvider]. Subsequent calls return the same
// pointer. Panics if instrument creation fails (should not happen with the
// global provider).
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// Attr is a convenience alias for [attribute.String] to reduce verbosity at
// call sites.
func Attr(key, value string) attribute.KeyValue {
	return attribute.String(key, value)
}

// RecordSearch is a convenience method that records a search request
// counter increment with the standard attribute set.
func (m *Metrics) RecordSearch(ctx context.Context, status string) {
	m.SearchRequests.Add(ctx, 1,
		metric.WithAttributes(attribute.String("status", status)),
	)
}

// RecordPathDegraded is a convenience method that records a retrieval path
// degradation counter increment.
func (m *Metrics) RecordPathDegraded(ctx context.Context, path string) {
	m.PathDegraded.Add(ctx, 1,
		metric.WithAttributes(attribute.String("path", path)),
	)
}

// RecordLinkCreated is a convenience method that records a link-created
// counter increment by link type.
func (m *Metrics) RecordLinkCreated(ctx context.Context, linkType string) {
	m.LinksCreated.Add(ctx, 1,
		metric.WithAttributes(attribute.String("link_type", linkType)),
	)
}

// RecordCollaboratorError is a convenience method that records a
// collaborator error counter increment.
func (m *Metrics) RecordCollaboratorError(ctx context.Context, collaborator, kind string) {
	m.CollaboratorErrors.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("collaborator", collaborator),
			attribute.String("kind", kind),
		),
	)
}

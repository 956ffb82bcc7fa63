package memory

import (
	"context"
	"time"
)

// Embedder produces a fixed-dimension, L2-normalized embedding for a
// narrative fact's text. It is the engine's only source of vectors: the
// engine never ships its own embedding model. Implementations typically
// wrap a remote embedding API behind an [internal/resilience.CircuitBreaker]
// so that unavailability surfaces as [KindEmbeddingUnavailable] rather than
// an unbounded hang.
type Embedder interface {
	// Embed returns the embedding vector for text. Implementations are
	// responsible for L2-normalization; the returned vector's length must
	// equal the dimension the engine was configured with.
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Reranker is the opaque cross-encoder scoring collaborator used by the
// reranking stage (§4.10). It scores a query against a batch of candidate
// strings and returns one raw score per candidate, in the same order.
type Reranker interface {
	// Score returns one raw cross-encoder score per entry in candidates,
	// in the same order. Batching internals are the implementation's
	// concern.
	Score(ctx context.Context, query string, candidates []string) ([]float64, error)
}

// FactExtractor turns raw ingested content into a list of self-contained
// narrative facts with their entity mentions and fact-type classification.
// Extraction is best-effort at the per-fact granularity: a failure
// extracting one fact must not prevent others in the same call from being
// returned.
type FactExtractor interface {
	// Extract decomposes content into narrative facts.
	Extract(ctx context.Context, content string) ([]ExtractedFact, error)
}

// TemporalParser resolves a natural-language query's implied date range,
// when one exists. It returns (nil, nil) when the query carries no
// resolvable temporal scope — this is not an error and disables the
// temporal-graph retrieval path for that query.
type TemporalParser interface {
	// ParseRange returns the date range implied by query relative to now,
	// or nil when no such range can be resolved.
	ParseRange(ctx context.Context, query string, now time.Time) (*TimeRange, error)
}

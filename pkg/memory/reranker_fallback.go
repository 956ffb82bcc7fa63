package memory

import (
	"context"

	"github.com/MrWong99/glyphoxa/internal/resilience"
)

// RerankerFallback adapts a [resilience.FallbackGroup] of Reranker
// collaborators into a single Reranker, trying providers in registration
// order when the primary's circuit is open or its call fails. Compose it
// with [RerankerClient] the same way a single Reranker would be: the
// group's own per-provider circuit breakers handle the multi-provider
// degradation, and RerankerClient's breaker then covers the composed whole.
type RerankerFallback struct {
	group *resilience.FallbackGroup[Reranker]
}

// NewRerankerFallback builds a [RerankerFallback] with primary as the
// first provider tried. Register additional providers with
// [RerankerFallback.AddFallback] before first use.
func NewRerankerFallback(primary Reranker, primaryName string, cfg resilience.FallbackConfig) *RerankerFallback {
	return &RerankerFallback{group: resilience.NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional reranking provider, tried after the
// primary and any previously-added fallbacks.
func (f *RerankerFallback) AddFallback(name string, reranker Reranker) {
	f.group.AddFallback(name, reranker)
}

// Score implements [Reranker] by trying each registered provider in order
// until one succeeds.
func (f *RerankerFallback) Score(ctx context.Context, query string, candidates []string) ([]float64, error) {
	return resilience.ExecuteWithResult(f.group, func(r Reranker) ([]float64, error) {
		return r.Score(ctx, query, candidates)
	})
}

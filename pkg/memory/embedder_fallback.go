package memory

import (
	"context"

	"github.com/MrWong99/glyphoxa/internal/resilience"
)

// EmbedderFallback adapts a [resilience.FallbackGroup] of Embedder
// collaborators into a single Embedder: when the primary embedding
// provider's circuit is open or its call fails, the next registered
// fallback is tried, in registration order.
type EmbedderFallback struct {
	group *resilience.FallbackGroup[Embedder]
}

// NewEmbedderFallback builds an [EmbedderFallback] with primary as the
// first provider tried. Register additional providers with
// [EmbedderFallback.AddFallback] before first use.
func NewEmbedderFallback(primary Embedder, primaryName string, cfg resilience.FallbackConfig) *EmbedderFallback {
	return &EmbedderFallback{group: resilience.NewFallbackGroup(primary, primaryName, cfg)}
}

// AddFallback registers an additional embedding provider, tried after the
// primary and any previously-added fallbacks.
func (f *EmbedderFallback) AddFallback(name string, embedder Embedder) {
	f.group.AddFallback(name, embedder)
}

// Embed implements [Embedder] by trying each registered provider in order
// until one succeeds.
func (f *EmbedderFallback) Embed(ctx context.Context, text string) ([]float32, error) {
	return resilience.ExecuteWithResult(f.group, func(e Embedder) ([]float32, error) {
		return e.Embed(ctx, text)
	})
}

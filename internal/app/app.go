// Package app wires the memory engine's subsystems into a running
// application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, and Shutdown tears everything down in order. Embedder,
// Reranker, FactExtractor, and TemporalParser are opaque collaborators —
// New never constructs a default implementation for them; callers inject
// whichever concrete clients they use via [Collaborators].
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/MrWong99/glyphoxa/internal/config"
	"github.com/MrWong99/glyphoxa/internal/observe"
	"github.com/MrWong99/glyphoxa/internal/resilience"
	"github.com/MrWong99/glyphoxa/pkg/memory"
	"github.com/MrWong99/glyphoxa/pkg/memory/postgres"
)

// NamedEmbedder pairs an [memory.Embedder] with a label used for circuit
// breaker naming and fallback logging.
type NamedEmbedder struct {
	Name     string
	Embedder memory.Embedder
}

// NamedReranker pairs a [memory.Reranker] with a label used for circuit
// breaker naming and fallback logging.
type NamedReranker struct {
	Name     string
	Reranker memory.Reranker
}

// Collaborators holds the opaque, externally-implemented dependencies the
// memory engine calls out to. A nil field disables the functionality that
// depends on it: a nil TemporalParser simply skips the temporal-graph
// retrieval path, a nil Reranker disables reranking (Search returns fused
// order), a nil FactExtractor makes Ingest fail per call.
//
// Embedder and Reranker are the primary providers. EmbedderFallbacks and
// RerankerFallbacks register additional providers tried, in order, when
// the primary's circuit breaker is open or its call fails — see
// [memory.EmbedderFallback] and [memory.RerankerFallback].
type Collaborators struct {
	Embedder          memory.Embedder
	EmbedderFallbacks []NamedEmbedder
	Reranker          memory.Reranker
	RerankerFallbacks []NamedReranker
	FactExtractor     memory.FactExtractor
	TemporalParser    memory.TemporalParser
}

// App owns the memory engine's subsystem lifetimes: the storage backend,
// the write-path ingestor, and the read-path retriever.
type App struct {
	cfg     *config.Config
	collab  Collaborators
	metrics *observe.Metrics
	log     *slog.Logger

	store     memory.Store
	embedder  memory.Embedder
	reranker  memory.Reranker
	resolver  *memory.EntityResolver
	linker    *memory.LinkBuilder
	ingestor  *memory.Ingestor
	retriever *memory.Retriever

	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles
// or override ambient defaults.
type Option func(*App)

// WithStore injects a storage backend instead of connecting one from
// cfg.Postgres.DSN. Intended for tests.
func WithStore(s memory.Store) Option {
	return func(a *App) { a.store = s }
}

// WithMetrics attaches an [observe.Metrics] recorder to every subsystem
// that records one. Defaults to [observe.DefaultMetrics] when not given.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithLogger overrides the logger used by App and the subsystems it
// constructs. Defaults to [slog.Default].
func WithLogger(log *slog.Logger) Option {
	return func(a *App) { a.log = log }
}

// New wires the memory engine together: it connects to PostgreSQL (unless
// a store was injected via [WithStore]), then constructs the entity
// resolver, link builder, ingestor, and retriever around it.
func New(ctx context.Context, cfg *config.Config, collab Collaborators, opts ...Option) (*App, error) {
	a := &App{
		cfg:    cfg,
		collab: collab,
		log:    slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	a.embedder = a.initEmbedder()
	a.reranker = a.initReranker()

	a.resolver = memory.NewEntityResolver(a.store)
	a.linker = memory.NewLinkBuilder(a.store, cfg.Memory).WithLinkBuilderMetrics(a.metrics)
	a.ingestor = memory.NewIngestor(a.store, collab.FactExtractor, a.embedder, a.resolver, a.linker, a.log).WithIngestorMetrics(a.metrics)

	retriever, err := a.initRetriever()
	if err != nil {
		return nil, fmt.Errorf("app: init retriever: %w", err)
	}
	a.retriever = retriever

	return a, nil
}

// initStore connects to PostgreSQL using cfg.Postgres.DSN and
// cfg.Memory.EmbeddingDimension, unless a store was already injected via
// [WithStore].
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}
	if a.cfg.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required when no store is injected")
	}
	store, err := postgres.NewStore(ctx, a.cfg.Postgres.DSN, a.cfg.Memory.EmbeddingDimension)
	if err != nil {
		return err
	}
	a.store = store
	a.closers = append(a.closers, func() error {
		store.Close()
		return nil
	})
	return nil
}

// initEmbedder resolves the embedding collaborator, wrapping it in a
// [memory.EmbedderFallback] when fallback providers were registered so a
// failing primary degrades to the next provider instead of failing the
// whole request.
func (a *App) initEmbedder() memory.Embedder {
	if a.collab.Embedder == nil || len(a.collab.EmbedderFallbacks) == 0 {
		return a.collab.Embedder
	}
	fb := memory.NewEmbedderFallback(a.collab.Embedder, "primary", resilience.FallbackConfig{})
	for _, nf := range a.collab.EmbedderFallbacks {
		fb.AddFallback(nf.Name, nf.Embedder)
	}
	return fb
}

// initReranker resolves the reranker collaborator, wrapping it in a
// [memory.RerankerFallback] when fallback providers were registered.
func (a *App) initReranker() memory.Reranker {
	if a.collab.Reranker == nil || len(a.collab.RerankerFallbacks) == 0 {
		return a.collab.Reranker
	}
	fb := memory.NewRerankerFallback(a.collab.Reranker, "primary", resilience.FallbackConfig{})
	for _, nf := range a.collab.RerankerFallbacks {
		fb.AddFallback(nf.Name, nf.Reranker)
	}
	return fb
}

// initRetriever builds a [memory.Retriever] wrapping the reranker
// collaborator in a circuit breaker, per §4.10's degradation policy.
func (a *App) initRetriever() (*memory.Retriever, error) {
	budget, err := memory.NewBudgetFilter()
	if err != nil {
		return nil, fmt.Errorf("budget filter: %w", err)
	}

	var reranker *memory.RerankerClient
	if a.reranker != nil {
		breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "reranker"})
		reranker = memory.NewRerankerClient(a.reranker, breaker, memory.DefaultRerankCalibration)
	}

	return memory.NewRetriever(
		a.store,
		a.embedder,
		a.collab.TemporalParser,
		reranker,
		budget,
		a.cfg.Memory,
		memory.WithMetrics(a.metrics),
		memory.WithLogger(a.log),
	), nil
}

// Ingestor returns the write-path orchestrator.
func (a *App) Ingestor() *memory.Ingestor { return a.ingestor }

// Retriever returns the read-path orchestrator.
func (a *App) Retriever() *memory.Retriever { return a.retriever }

// Store returns the storage backend.
func (a *App) Store() memory.Store { return a.store }

// Shutdown tears down all subsystems in reverse-init order. It respects
// the context deadline: if ctx expires before all closers finish,
// remaining closers are skipped and the context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down", "closers", len(a.closers))
		for i := len(a.closers) - 1; i >= 0; i-- {
			select {
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded", "remaining", i+1)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := a.closers[i](); err != nil {
				a.log.Warn("closer error", "index", i, "err", err)
			}
		}
		a.log.Info("shutdown complete")
	})
	return shutdownErr
}

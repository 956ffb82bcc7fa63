package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/glyphoxa/internal/observe"
)

// SearchOptions configures one [Retriever.Search] call. Zero values fall
// back to [Config] defaults.
type SearchOptions struct {
	FactType       FactType
	ThinkingBudget int
	MaxTokens      int
	EnableTrace    bool
}

// Retriever is the top-level orchestrator (§4.12): it fans out to the four
// parallel retrieval paths, fuses their rankings via RRF, reranks the
// fused candidates, and applies the token budget.
type Retriever struct {
	store    Store
	embedder Embedder
	parser   TemporalParser
	reranker *RerankerClient
	budget   *BudgetFilter
	fuser    *Fuser
	paths    []RetrievalPath
	cfg      Config
	metrics  *observe.Metrics
	log      *slog.Logger
}

// RetrieverOption customizes [NewRetriever].
type RetrieverOption func(*Retriever)

// WithMetrics attaches an [observe.Metrics] recorder to the retriever.
func WithMetrics(m *observe.Metrics) RetrieverOption {
	return func(r *Retriever) { r.metrics = m }
}

// WithLogger overrides the retriever's logger.
func WithLogger(log *slog.Logger) RetrieverOption {
	return func(r *Retriever) { r.log = log }
}

// NewRetriever constructs a [Retriever] wiring together the four retrieval
// paths over store.
func NewRetriever(store Store, embedder Embedder, parser TemporalParser, reranker *RerankerClient, budget *BudgetFilter, cfg Config, opts ...RetrieverOption) *Retriever {
	r := &Retriever{
		store:    store,
		embedder: embedder,
		parser:   parser,
		reranker: reranker,
		budget:   budget,
		fuser:    NewFuser(),
		cfg:      cfg,
		log:      slog.Default(),
		paths: []RetrievalPath{
			&SemanticPath{Store: store},
			&KeywordPath{Store: store},
			&GraphPath{Store: store, Weights: cfg.Weights},
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Search executes the full retrieval pipeline for query, scoped to
// agentID, per §4.12.
func (r *Retriever) Search(ctx context.Context, agentID, query string, opts SearchOptions) ([]MemoryUnit, *SearchTrace, error) {
	if query == "" {
		return nil, nil, NewError(KindInvalidInput, "retriever.search", fmt.Errorf("empty query"))
	}
	if opts.FactType != "" && !opts.FactType.Valid() {
		return nil, nil, NewError(KindInvalidInput, "retriever.search", fmt.Errorf("unsupported fact_type %q", opts.FactType))
	}
	budget := opts.ThinkingBudget
	if budget == 0 {
		budget = r.cfg.ThinkingBudget
	}
	if budget < 0 {
		return nil, nil, NewError(KindInvalidInput, "retriever.search", fmt.Errorf("negative thinking_budget"))
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = r.cfg.MaxTokens
	}

	var trace *SearchTrace
	if opts.EnableTrace || r.cfg.EnableTrace {
		trace = &SearchTrace{Query: query, Stages: map[string]time.Duration{}}
	}

	if budget == 0 {
		return nil, trace, nil
	}

	ctx, span := observe.StartSpan(ctx, "memory.retriever.search")
	defer span.End()

	start := time.Now()
	status := "ok"
	defer func() {
		if r.metrics != nil {
			r.metrics.SearchDuration.Record(ctx, time.Since(start).Seconds())
			r.metrics.RecordSearch(ctx, status)
		}
	}()

	var queryVec []float32
	var timeRange *TimeRange

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		vec, err := r.embedder.Embed(gctx, query)
		if err != nil {
			return NewError(KindEmbeddingUnavailable, "retriever.search.embed", err)
		}
		queryVec = vec
		return nil
	})
	g.Go(func() error {
		if r.parser == nil {
			return nil
		}
		tr, err := r.parser.ParseRange(gctx, query, time.Now())
		if err != nil {
			r.log.WarnContext(gctx, "temporal parser unavailable", "error", err)
			return nil
		}
		timeRange = tr
		return nil
	})
	if err := g.Wait(); err != nil {
		status = "error"
		return nil, trace, err
	}

	req := PathRequest{
		AgentID:        agentID,
		FactType:       opts.FactType,
		QueryText:      query,
		QueryTokens:    tokenizeQuery(query),
		QueryVec:       queryVec,
		TimeRange:      timeRange,
		ThinkingBudget: budget,
	}

	paths := r.paths
	if timeRange != nil {
		paths = append(append([]RetrievalPath{}, r.paths...), &TemporalGraphPath{Store: r.store, Weights: r.cfg.Weights})
	}

	results := make([]PathResult, len(paths))
	pg, pgctx := errgroup.WithContext(ctx)
	for i, p := range paths {
		i, p := i, p
		pg.Go(func() error {
			pathStart := time.Now()
			pr, err := p.Retrieve(pgctx, req)
			if r.metrics != nil {
				r.metrics.RetrievalPathDuration.Record(pgctx, time.Since(pathStart).Seconds(), metric.WithAttributes(attribute.String("path", p.Name())))
			}
			if err != nil {
				r.log.WarnContext(pgctx, "retrieval path failed, degrading to empty", "path", p.Name(), "error", err)
				pr = PathResult{Trace: PathTrace{Path: p.Name(), Degraded: true}}
				if r.metrics != nil {
					r.metrics.RecordPathDegraded(pgctx, p.Name())
				}
			}
			pr.Trace.Duration = time.Since(pathStart)
			results[i] = pr
			return nil
		})
	}
	_ = pg.Wait()

	lists := make([][]ScoredID, len(results))
	for i, res := range results {
		lists[i] = res.Ranked
		if trace != nil {
			trace.Paths = append(trace.Paths, res.Trace)
		}
	}

	fused := r.fuser.Fuse(lists)
	if trace != nil {
		for _, f := range fused {
			trace.FusedOrder = append(trace.FusedOrder, f.ID)
		}
	}

	rerankCount := budget
	if rerankCount > len(fused) {
		rerankCount = len(fused)
	}
	candidateIDs := fused[:rerankCount]

	units := r.hydrate(ctx, candidateIDs)

	var ordered []MemoryUnit
	if r.reranker != nil {
		rerankStart := time.Now()
		rankedIDs, degraded := r.reranker.Rerank(ctx, query, units)
		if r.metrics != nil {
			r.metrics.RerankDuration.Record(ctx, time.Since(rerankStart).Seconds())
		}
		if degraded {
			if trace != nil {
				trace.Degraded = append(trace.Degraded, KindRerankerDegraded)
			}
			if r.metrics != nil {
				r.metrics.RerankerDegraded.Add(ctx, 1)
			}
			ordered = units
		} else {
			ordered = reorder(units, rankedIDs)
		}
	} else {
		ordered = units
	}
	if trace != nil {
		for _, u := range ordered {
			trace.Reranked = append(trace.Reranked, u.ID)
		}
	}

	final := r.budget.Apply(ordered, maxTokens)
	if trace != nil {
		for _, u := range final {
			trace.Budgeted = append(trace.Budgeted, u.ID)
		}
	}

	go r.incrementAccessBestEffort(final)

	return final, trace, nil
}

func (r *Retriever) hydrate(ctx context.Context, ids []ScoredID) []MemoryUnit {
	out := make([]MemoryUnit, 0, len(ids))
	for _, id := range ids {
		u, err := r.store.GetUnit(ctx, id.ID)
		if err != nil || u == nil {
			continue
		}
		out = append(out, *u)
	}
	return out
}

func reorder(units []MemoryUnit, ranked []ScoredID) []MemoryUnit {
	byID := make(map[string]MemoryUnit, len(units))
	for _, u := range units {
		byID[u.ID] = u
	}
	out := make([]MemoryUnit, 0, len(ranked))
	for _, r := range ranked {
		if u, ok := byID[r.ID]; ok {
			out = append(out, u)
		}
	}
	return out
}

func (r *Retriever) incrementAccessBestEffort(units []MemoryUnit) {
	if len(units) == 0 {
		return
	}
	ids := make([]string, len(units))
	for i, u := range units {
		ids[i] = u.ID
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.store.IncrementAccess(ctx, ids); err != nil {
		r.log.Warn("increment access failed", "error", err)
	}
}

func tokenizeQuery(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	out := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()[]")
		if f != "" && !stopwords[f] {
			out = append(out, f)
		}
	}
	return out
}

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true,
	"were": true, "be": true, "to": true, "of": true, "and": true, "in": true,
	"on": true, "at": true, "for": true, "with": true, "what": true, "does": true,
	"do": true, "did": true,
}

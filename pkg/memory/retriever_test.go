package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/glyphoxa/internal/resilience"
	"github.com/MrWong99/glyphoxa/pkg/memory"
	"github.com/MrWong99/glyphoxa/pkg/memory/mock"
)

func TestRetriever_RerankerDegradedPassesThrough(t *testing.T) {
	store := &mock.Store{
		VectorKNNResult: []memory.ScoredID{{ID: "u1", Score: 0.9}},
		GetUnitResult:   &memory.MemoryUnit{ID: "u1", Text: "fact text"},
	}
	embedder := &mock.Embedder{EmbedResult: []float32{0.1, 0.2}}
	rerankerMock := &mock.Reranker{ScoreErr: errors.New("reranker unavailable")}
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{Name: "test-reranker"})
	rerankerClient := memory.NewRerankerClient(rerankerMock, breaker, memory.DefaultRerankCalibration)

	budget, err := memory.NewBudgetFilter()
	if err != nil {
		t.Fatalf("NewBudgetFilter() error: %v", err)
	}

	r := memory.NewRetriever(store, embedder, nil, rerankerClient, budget, memory.DefaultConfig())

	units, trace, err := r.Search(context.Background(), "agent1", "find fact", memory.SearchOptions{EnableTrace: true})
	if err != nil {
		t.Fatalf("Search() error: %v", err)
	}
	if len(units) != 1 || units[0].ID != "u1" {
		t.Fatalf("Search() units = %+v, want [u1]", units)
	}

	if trace == nil {
		t.Fatal("Search() trace = nil, want non-nil (EnableTrace set)")
	}
	found := false
	for _, k := range trace.Degraded {
		if k == memory.KindRerankerDegraded {
			found = true
		}
	}
	if !found {
		t.Errorf("trace.Degraded = %v, want it to contain %v", trace.Degraded, memory.KindRerankerDegraded)
	}
	if got := rerankerMock.CallCount(); got != 1 {
		t.Errorf("reranker Score called %d times, want 1", got)
	}
}

package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/glyphoxa/internal/resilience"
	"github.com/MrWong99/glyphoxa/pkg/memory"
	"github.com/MrWong99/glyphoxa/pkg/memory/mock"
)

func TestRerankerFallback_FallsBackOnPrimaryError(t *testing.T) {
	primary := &mock.Reranker{ScoreErr: errors.New("primary unavailable")}
	secondary := &mock.Reranker{ScoreResult: []float64{0.9, 0.1}}

	fb := memory.NewRerankerFallback(primary, "primary", resilience.FallbackConfig{})
	fb.AddFallback("secondary", secondary)

	scores, err := fb.Score(context.Background(), "query", []string{"a", "b"})
	if err != nil {
		t.Fatalf("Score() error = %v, want nil", err)
	}
	if len(scores) != 2 {
		t.Fatalf("Score() = %v, want len 2", scores)
	}
	if got := primary.CallCount(); got != 1 {
		t.Errorf("primary call count = %d, want 1", got)
	}
	if got := secondary.CallCount(); got != 1 {
		t.Errorf("secondary call count = %d, want 1", got)
	}
}

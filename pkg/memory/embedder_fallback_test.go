package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/MrWong99/glyphoxa/internal/resilience"
	"github.com/MrWong99/glyphoxa/pkg/memory"
	"github.com/MrWong99/glyphoxa/pkg/memory/mock"
)

func TestEmbedderFallback_FallsBackOnPrimaryError(t *testing.T) {
	primary := &mock.Embedder{EmbedErr: errors.New("primary unavailable")}
	secondary := &mock.Embedder{EmbedResult: []float32{0.1, 0.2, 0.3}}

	fb := memory.NewEmbedderFallback(primary, "primary", resilience.FallbackConfig{})
	fb.AddFallback("secondary", secondary)

	vec, err := fb.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed() error = %v, want nil", err)
	}
	if len(vec) != 3 {
		t.Fatalf("Embed() vec = %v, want len 3", vec)
	}
	if got := primary.CallCount(); got != 1 {
		t.Errorf("primary call count = %d, want 1", got)
	}
	if got := secondary.CallCount(); got != 1 {
		t.Errorf("secondary call count = %d, want 1", got)
	}
}

func TestEmbedderFallback_AllFail(t *testing.T) {
	primary := &mock.Embedder{EmbedErr: errors.New("primary down")}
	secondary := &mock.Embedder{EmbedErr: errors.New("secondary down")}

	fb := memory.NewEmbedderFallback(primary, "primary", resilience.FallbackConfig{})
	fb.AddFallback("secondary", secondary)

	if _, err := fb.Embed(context.Background(), "hello"); !errors.Is(err, resilience.ErrAllFailed) {
		t.Fatalf("Embed() error = %v, want wrapping ErrAllFailed", err)
	}
}

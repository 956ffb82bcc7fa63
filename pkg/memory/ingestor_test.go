package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/MrWong99/glyphoxa/pkg/memory"
	"github.com/MrWong99/glyphoxa/pkg/memory/mock"
)

func TestIngestor_DedupeIsIdempotent(t *testing.T) {
	store := &mock.Store{}
	embedder := &mock.Embedder{EmbedResult: []float32{0.1, 0.2, 0.3}}
	extractor := &mock.FactExtractor{
		ExtractResult: []memory.ExtractedFact{{Text: "the sky is blue", FactType: memory.FactWorld}},
	}
	resolver := memory.NewEntityResolver(store)
	linker := memory.NewLinkBuilder(store, memory.DefaultConfig())
	ing := memory.NewIngestor(store, extractor, embedder, resolver, linker, nil)

	eventDate := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	store.InsertUnitResult = "unit-1"
	first, err := ing.Ingest(context.Background(), "agent1", "content", eventDate, "")
	if err != nil {
		t.Fatalf("first Ingest() error: %v", err)
	}
	if len(first.Facts) != 1 || first.Facts[0].Deduped {
		t.Fatalf("first Ingest() facts = %+v, want one non-deduped fact", first.Facts)
	}
	if got := store.CallCount("InsertUnit"); got != 1 {
		t.Fatalf("InsertUnit called %d times after first ingest, want 1", got)
	}

	// Simulate the fact now being on record: the same text, at the unit
	// just inserted, surfaces as a near-identical kNN hit.
	store.VectorKNNResult = []memory.ScoredID{{ID: "unit-1", Score: 1.0}}
	store.GetUnitResult = &memory.MemoryUnit{ID: "unit-1", Text: "the sky is blue"}

	second, err := ing.Ingest(context.Background(), "agent1", "content", eventDate, "")
	if err != nil {
		t.Fatalf("second Ingest() error: %v", err)
	}
	if len(second.Facts) != 1 || !second.Facts[0].Deduped {
		t.Fatalf("second Ingest() facts = %+v, want one deduped fact", second.Facts)
	}
	if second.Facts[0].UnitID != "unit-1" {
		t.Errorf("deduped UnitID = %q, want %q", second.Facts[0].UnitID, "unit-1")
	}
	if got := store.CallCount("InsertUnit"); got != 1 {
		t.Errorf("InsertUnit called %d times after second (deduped) ingest, want still 1", got)
	}
}

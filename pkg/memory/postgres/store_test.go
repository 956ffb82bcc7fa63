package postgres_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/MrWong99/glyphoxa/pkg/memory"
	"github.com/MrWong99/glyphoxa/pkg/memory/postgres"
)

const testEmbeddingDim = 4

// testDSN returns the test database DSN from the environment, or skips the
// test if GLYPHOXA_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("GLYPHOXA_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("GLYPHOXA_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh [postgres.Store] with a clean schema.
func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	cleanPool := mustPool(t, ctx, dsn)
	t.Cleanup(cleanPool.Close)
	dropSchema(t, ctx, cleanPool)

	store, err := postgres.NewStore(ctx, dsn, testEmbeddingDim)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(store.Close)
	return store
}

func mustPool(t *testing.T, ctx context.Context, dsn string) *pgxpool.Pool {
	t.Helper()
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_ = pgxvec.RegisterTypes(ctx, conn)
		return nil
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	return pool
}

func dropSchema(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS links CASCADE",
		"DROP TABLE IF EXISTS entity_mentions CASCADE",
		"DROP TABLE IF EXISTS entities CASCADE",
		"DROP TABLE IF EXISTS memory_units CASCADE",
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("dropSchema %q: %v", stmt, err)
		}
	}
}

func testVec(seed float32) []float32 {
	return []float32{seed, seed + 0.1, seed + 0.2, seed + 0.3}
}

func mustInsertUnit(t *testing.T, ctx context.Context, store *postgres.Store, u memory.MemoryUnit) string {
	t.Helper()
	id, err := store.InsertUnit(ctx, u)
	if err != nil {
		t.Fatalf("InsertUnit(%q): %v", u.Text, err)
	}
	return id
}

func TestUnits_InsertGetDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	unit := memory.MemoryUnit{
		AgentID:   "agent-1",
		FactType:  memory.FactWorld,
		Text:      "Alice mentioned the contract renews in March.",
		Context:   "negotiation call",
		EventDate: now,
		Embedding: testVec(0.1),
	}

	id := mustInsertUnit(t, ctx, store, unit)
	if id == "" {
		t.Fatal("InsertUnit: want non-empty id")
	}

	got, err := store.GetUnit(ctx, id)
	if err != nil {
		t.Fatalf("GetUnit: %v", err)
	}
	if got == nil {
		t.Fatal("GetUnit: want unit, got nil")
	}
	if got.Text != unit.Text || got.AgentID != unit.AgentID || got.FactType != unit.FactType {
		t.Errorf("GetUnit: want %+v, got %+v", unit, *got)
	}
	if got.AccessCount != 0 {
		t.Errorf("GetUnit: want fresh AccessCount 0, got %d", got.AccessCount)
	}

	if err := store.DeleteUnit(ctx, id); err != nil {
		t.Fatalf("DeleteUnit: %v", err)
	}
	got, err = store.GetUnit(ctx, id)
	if err != nil {
		t.Fatalf("GetUnit after delete: %v", err)
	}
	if got != nil {
		t.Errorf("GetUnit after delete: want nil, got %+v", *got)
	}
}

func TestUnits_InsertConflict(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	unit := memory.MemoryUnit{
		ID:        "fixed-id",
		AgentID:   "agent-1",
		FactType:  memory.FactAgent,
		Text:      "Dragons hoard gold.",
		EventDate: time.Now(),
		Embedding: testVec(0.2),
	}
	mustInsertUnit(t, ctx, store, unit)

	_, err := store.InsertUnit(ctx, unit)
	if err == nil {
		t.Fatal("InsertUnit duplicate id: want error, got nil")
	}
	if kind, ok := memory.KindOf(err); !ok || kind != memory.KindConflict {
		t.Errorf("InsertUnit duplicate id: want KindConflict, got %v (ok=%v)", kind, ok)
	}
}

func TestUnits_IncrementAccess(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	id := mustInsertUnit(t, ctx, store, memory.MemoryUnit{
		AgentID: "agent-1", FactType: memory.FactWorld,
		Text: "Bob prefers tea over coffee.", EventDate: time.Now(), Embedding: testVec(0.3),
	})

	if err := store.IncrementAccess(ctx, []string{id, id}); err != nil {
		t.Fatalf("IncrementAccess: %v", err)
	}
	got, err := store.GetUnit(ctx, id)
	if err != nil {
		t.Fatalf("GetUnit: %v", err)
	}
	if got.AccessCount != 2 {
		t.Errorf("AccessCount: want 2, got %d", got.AccessCount)
	}
}

func TestSearch_VectorKNN(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	near := mustInsertUnit(t, ctx, store, memory.MemoryUnit{
		AgentID: "agent-1", FactType: memory.FactAgent,
		Text: "The castle walls are made of granite.", EventDate: time.Now(), Embedding: testVec(1.0),
	})
	mustInsertUnit(t, ctx, store, memory.MemoryUnit{
		AgentID: "agent-1", FactType: memory.FactAgent,
		Text: "Unrelated fact about baking bread.", EventDate: time.Now(), Embedding: testVec(-5.0),
	})

	results, err := store.VectorKNN(ctx, "agent-1", memory.FactAgent, testVec(1.0), 5, 0.0)
	if err != nil {
		t.Fatalf("VectorKNN: %v", err)
	}
	if len(results) == 0 || results[0].ID != near {
		t.Errorf("VectorKNN: want top result %q, got %+v", near, results)
	}
}

func TestSearch_BM25(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mustInsertUnit(t, ctx, store, memory.MemoryUnit{
		AgentID: "agent-1", FactType: memory.FactWorld,
		Text: "The dragon hoards treasure in the mountain.", EventDate: time.Now(), Embedding: testVec(0.4),
	})
	mustInsertUnit(t, ctx, store, memory.MemoryUnit{
		AgentID: "agent-1", FactType: memory.FactWorld,
		Text: "We should negotiate with the goblin tribe.", EventDate: time.Now(), Embedding: testVec(0.5),
	})

	results, err := store.BM25Search(ctx, "agent-1", memory.FactWorld, []string{"dragon", "treasure"}, 5)
	if err != nil {
		t.Fatalf("BM25Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("BM25Search: want 1 result, got %d", len(results))
	}
}

func TestLinks_UpsertAndNeighbors(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	a := mustInsertUnit(t, ctx, store, memory.MemoryUnit{AgentID: "agent-1", FactType: memory.FactWorld, Text: "A", EventDate: now, Embedding: testVec(0.1)})
	b := mustInsertUnit(t, ctx, store, memory.MemoryUnit{AgentID: "agent-1", FactType: memory.FactWorld, Text: "B", EventDate: now, Embedding: testVec(0.2)})

	if err := store.UpsertLink(ctx, memory.Link{FromUnitID: a, ToUnitID: b, Type: memory.LinkSemantic, Weight: 0.6}); err != nil {
		t.Fatalf("UpsertLink: %v", err)
	}
	// Re-upsert with a lower weight must not decrease the stored weight.
	if err := store.UpsertLink(ctx, memory.Link{FromUnitID: a, ToUnitID: b, Type: memory.LinkSemantic, Weight: 0.3}); err != nil {
		t.Fatalf("UpsertLink lower weight: %v", err)
	}

	neighborsOfA, err := store.Neighbors(ctx, a, 0.0)
	if err != nil {
		t.Fatalf("Neighbors(a): %v", err)
	}
	if len(neighborsOfA) != 1 || neighborsOfA[0].NeighborID != b || neighborsOfA[0].Weight != 0.6 {
		t.Errorf("Neighbors(a): want [b weight=0.6], got %+v", neighborsOfA)
	}

	// Links are traversable from either side.
	neighborsOfB, err := store.Neighbors(ctx, b, 0.0)
	if err != nil {
		t.Fatalf("Neighbors(b): %v", err)
	}
	if len(neighborsOfB) != 1 || neighborsOfB[0].NeighborID != a {
		t.Errorf("Neighbors(b): want [a], got %+v", neighborsOfB)
	}
}

func TestEntities_InsertAndCandidates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	id, err := store.InsertEntity(ctx, memory.Entity{
		AgentID:       "agent-1",
		Type:          memory.EntityPerson,
		CanonicalName: "Alice Carter",
		Aliases:       []string{"alice carter", "alice"},
		FirstSeen:     now,
		LastSeen:      now,
	})
	if err != nil {
		t.Fatalf("InsertEntity: %v", err)
	}

	got, err := store.GetEntity(ctx, id)
	if err != nil {
		t.Fatalf("GetEntity: %v", err)
	}
	if got == nil || got.CanonicalName != "Alice Carter" {
		t.Errorf("GetEntity: want Alice Carter, got %+v", got)
	}

	candidates, err := store.CandidateEntities(ctx, "agent-1", memory.EntityPerson, []string{"alice"})
	if err != nil {
		t.Fatalf("CandidateEntities: %v", err)
	}
	if len(candidates) != 1 || candidates[0].ID != id {
		t.Errorf("CandidateEntities: want [%s], got %+v", id, candidates)
	}
}

func TestEntities_MentionsAndCoOccurrence(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now()
	unitID := mustInsertUnit(t, ctx, store, memory.MemoryUnit{AgentID: "agent-1", FactType: memory.FactWorld, Text: "Alice met Bob.", EventDate: now, Embedding: testVec(0.6)})
	entityID, err := store.InsertEntity(ctx, memory.Entity{AgentID: "agent-1", Type: memory.EntityPerson, CanonicalName: "Alice", Aliases: []string{"alice"}, FirstSeen: now, LastSeen: now})
	if err != nil {
		t.Fatalf("InsertEntity: %v", err)
	}

	if err := store.RecordMention(ctx, unitID, entityID); err != nil {
		t.Fatalf("RecordMention: %v", err)
	}
	// Recording the same mention twice must not error (idempotent).
	if err := store.RecordMention(ctx, unitID, entityID); err != nil {
		t.Fatalf("RecordMention (idempotent): %v", err)
	}

	units, err := store.UnitsForEntity(ctx, entityID)
	if err != nil {
		t.Fatalf("UnitsForEntity: %v", err)
	}
	if len(units) != 1 || units[0] != unitID {
		t.Errorf("UnitsForEntity: want [%s], got %+v", unitID, units)
	}

	coOccurring, err := store.CoOccurringEntityIDs(ctx, []string{unitID})
	if err != nil {
		t.Fatalf("CoOccurringEntityIDs: %v", err)
	}
	if _, ok := coOccurring[entityID]; !ok {
		t.Errorf("CoOccurringEntityIDs: want %s present, got %+v", entityID, coOccurring)
	}
}

func TestUnits_InDateRangeAndByDocument(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	inRange := mustInsertUnit(t, ctx, store, memory.MemoryUnit{AgentID: "agent-1", FactType: memory.FactWorld, Text: "in range", EventDate: base, Embedding: testVec(0.7), DocumentID: "doc-1"})
	mustInsertUnit(t, ctx, store, memory.MemoryUnit{AgentID: "agent-1", FactType: memory.FactWorld, Text: "out of range", EventDate: base.AddDate(0, 6, 0), Embedding: testVec(0.8)})

	ids, err := store.UnitsInDateRange(ctx, "agent-1", base.AddDate(0, 0, -1), base.AddDate(0, 0, 1), "")
	if err != nil {
		t.Fatalf("UnitsInDateRange: %v", err)
	}
	if len(ids) != 1 || ids[0] != inRange {
		t.Errorf("UnitsInDateRange: want [%s], got %+v", inRange, ids)
	}

	byDoc, err := store.UnitsByDocument(ctx, "agent-1", "doc-1")
	if err != nil {
		t.Fatalf("UnitsByDocument: %v", err)
	}
	if len(byDoc) != 1 || byDoc[0] != inRange {
		t.Errorf("UnitsByDocument: want [%s], got %+v", inRange, byDoc)
	}
}

// Package mock provides in-memory test doubles for the memory layer
// interfaces.
//
// Each mock records every method call for assertion in tests and exposes
// exported fields that control what the mock returns. All mocks are safe
// for concurrent use via an internal [sync.Mutex].
//
// Typical usage:
//
//	store := &mock.Store{}
//	store.GetUnitResult = &memory.MemoryUnit{Text: "hello"}
//
//	// inject store into the system under test …
//
//	if got := store.CallCount("GetUnit"); got != 1 {
//	    t.Errorf("expected 1 GetUnit call, got %d", got)
//	}
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/glyphoxa/pkg/memory"
)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any
}

// ─────────────────────────────────────────────────────────────────────────────
// Store mock
// ─────────────────────────────────────────────────────────────────────────────

// Store is a configurable test double for [memory.Store]. All exported
// *Err fields default to nil (success); all exported *Result fields
// default to their type's zero value.
type Store struct {
	mu sync.Mutex

	calls []Call

	InsertUnitResult string
	InsertUnitErr    error

	GetUnitResult *memory.MemoryUnit
	GetUnitErr    error

	DeleteUnitErr error
	DeleteAgentErr error

	UnitsByDocumentResult []string
	UnitsByDocumentErr    error

	UnitsInDateRangeResult []string
	UnitsInDateRangeErr    error

	VectorKNNResult []memory.ScoredID
	VectorKNNErr    error

	VectorKNNInRangeResult []memory.ScoredID
	VectorKNNInRangeErr    error

	BM25SearchResult []memory.ScoredID
	BM25SearchErr    error

	// NeighborsFunc, when set, overrides NeighborsResult/NeighborsErr and is
	// called directly — useful for tests that need per-node neighbor sets
	// (e.g. multi-hop graph traversal).
	NeighborsFunc func(ctx context.Context, unitID string, minWeight float64, opts ...memory.StoreOpt) ([]memory.NeighborEdge, error)

	NeighborsResult []memory.NeighborEdge
	NeighborsErr    error

	NeighborsInDateRangeResult []memory.NeighborEdge
	NeighborsInDateRangeErr    error

	// GetUnitFunc, when set, overrides GetUnitResult/GetUnitErr and is
	// called directly — useful for tests that need per-ID unit lookups
	// (e.g. distinct event dates across a graph traversal).
	GetUnitFunc func(ctx context.Context, id string) (*memory.MemoryUnit, error)

	UnitsForEntityResult []string
	UnitsForEntityErr    error

	RecordMentionErr error
	UpsertLinkErr    error
	IncrementAccessErr error

	InsertEntityResult string
	InsertEntityErr    error

	GetEntityResult *memory.Entity
	GetEntityErr    error

	CandidateEntitiesResult []memory.Entity
	CandidateEntitiesErr    error

	UpdateEntityAliasesAndLastSeenErr error

	CoOccurringEntityIDsResult map[string]struct{}
	CoOccurringEntityIDsErr    error
}

var _ memory.Store = (*Store)(nil)

func (s *Store) record(method string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: method, Args: args})
}

// Calls returns every recorded call, in order.
func (s *Store) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns the number of times method was invoked.
func (s *Store) CallCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (s *Store) InsertUnit(ctx context.Context, unit memory.MemoryUnit) (string, error) {
	s.record("InsertUnit", unit)
	return s.InsertUnitResult, s.InsertUnitErr
}

func (s *Store) GetUnit(ctx context.Context, id string) (*memory.MemoryUnit, error) {
	s.record("GetUnit", id)
	if s.GetUnitFunc != nil {
		return s.GetUnitFunc(ctx, id)
	}
	return s.GetUnitResult, s.GetUnitErr
}

func (s *Store) DeleteUnit(ctx context.Context, id string) error {
	s.record("DeleteUnit", id)
	return s.DeleteUnitErr
}

func (s *Store) DeleteAgent(ctx context.Context, agentID string) error {
	s.record("DeleteAgent", agentID)
	return s.DeleteAgentErr
}

func (s *Store) UnitsByDocument(ctx context.Context, agentID, documentID string) ([]string, error) {
	s.record("UnitsByDocument", agentID, documentID)
	return s.UnitsByDocumentResult, s.UnitsByDocumentErr
}

func (s *Store) UnitsInDateRange(ctx context.Context, agentID string, start, end time.Time, excludeID string) ([]string, error) {
	s.record("UnitsInDateRange", agentID, start, end, excludeID)
	return s.UnitsInDateRangeResult, s.UnitsInDateRangeErr
}

func (s *Store) VectorKNN(ctx context.Context, agentID string, factType memory.FactType, queryVec []float32, k int, minSim float64) ([]memory.ScoredID, error) {
	s.record("VectorKNN", agentID, factType, queryVec, k, minSim)
	return s.VectorKNNResult, s.VectorKNNErr
}

func (s *Store) VectorKNNInRange(ctx context.Context, agentID string, factType memory.FactType, queryVec []float32, k int, minSim float64, start, end time.Time) ([]memory.ScoredID, error) {
	s.record("VectorKNNInRange", agentID, factType, queryVec, k, minSim, start, end)
	return s.VectorKNNInRangeResult, s.VectorKNNInRangeErr
}

func (s *Store) BM25Search(ctx context.Context, agentID string, factType memory.FactType, queryTokens []string, k int) ([]memory.ScoredID, error) {
	s.record("BM25Search", agentID, factType, queryTokens, k)
	return s.BM25SearchResult, s.BM25SearchErr
}

func (s *Store) Neighbors(ctx context.Context, unitID string, minWeight float64, opts ...memory.StoreOpt) ([]memory.NeighborEdge, error) {
	s.record("Neighbors", unitID, minWeight, memory.ApplyStoreOpts(opts))
	if s.NeighborsFunc != nil {
		return s.NeighborsFunc(ctx, unitID, minWeight, opts...)
	}
	return s.NeighborsResult, s.NeighborsErr
}

func (s *Store) NeighborsInDateRange(ctx context.Context, unitID string, minWeight float64, start, end time.Time, opts ...memory.StoreOpt) ([]memory.NeighborEdge, error) {
	s.record("NeighborsInDateRange", unitID, minWeight, start, end, memory.ApplyStoreOpts(opts))
	return s.NeighborsInDateRangeResult, s.NeighborsInDateRangeErr
}

func (s *Store) UnitsForEntity(ctx context.Context, entityID string) ([]string, error) {
	s.record("UnitsForEntity", entityID)
	return s.UnitsForEntityResult, s.UnitsForEntityErr
}

func (s *Store) RecordMention(ctx context.Context, unitID, entityID string) error {
	s.record("RecordMention", unitID, entityID)
	return s.RecordMentionErr
}

func (s *Store) UpsertLink(ctx context.Context, link memory.Link) error {
	s.record("UpsertLink", link)
	return s.UpsertLinkErr
}

func (s *Store) IncrementAccess(ctx context.Context, ids []string) error {
	s.record("IncrementAccess", ids)
	return s.IncrementAccessErr
}

func (s *Store) InsertEntity(ctx context.Context, entity memory.Entity) (string, error) {
	s.record("InsertEntity", entity)
	return s.InsertEntityResult, s.InsertEntityErr
}

func (s *Store) GetEntity(ctx context.Context, id string) (*memory.Entity, error) {
	s.record("GetEntity", id)
	return s.GetEntityResult, s.GetEntityErr
}

func (s *Store) CandidateEntities(ctx context.Context, agentID string, typ memory.EntityType, normalizedTokens []string) ([]memory.Entity, error) {
	s.record("CandidateEntities", agentID, typ, normalizedTokens)
	return s.CandidateEntitiesResult, s.CandidateEntitiesErr
}

func (s *Store) UpdateEntityAliasesAndLastSeen(ctx context.Context, id, alias string, seen time.Time) error {
	s.record("UpdateEntityAliasesAndLastSeen", id, alias, seen)
	return s.UpdateEntityAliasesAndLastSeenErr
}

func (s *Store) CoOccurringEntityIDs(ctx context.Context, unitIDs []string) (map[string]struct{}, error) {
	s.record("CoOccurringEntityIDs", unitIDs)
	if s.CoOccurringEntityIDsResult == nil {
		return map[string]struct{}{}, s.CoOccurringEntityIDsErr
	}
	return s.CoOccurringEntityIDsResult, s.CoOccurringEntityIDsErr
}

// ─────────────────────────────────────────────────────────────────────────────
// Embedder mock
// ─────────────────────────────────────────────────────────────────────────────

// Embedder is a configurable test double for [memory.Embedder].
type Embedder struct {
	mu sync.Mutex

	calls []Call

	// EmbedFunc, when set, overrides EmbedResult/EmbedErr and is called
	// directly — useful for tests that need per-call behaviour (e.g.
	// simulating transient failures before success).
	EmbedFunc func(ctx context.Context, text string) ([]float32, error)

	EmbedResult []float32
	EmbedErr    error
}

var _ memory.Embedder = (*Embedder)(nil)

func (e *Embedder) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	e.calls = append(e.calls, Call{Method: "Embed", Args: []any{text}})
	e.mu.Unlock()
	if e.EmbedFunc != nil {
		return e.EmbedFunc(ctx, text)
	}
	return e.EmbedResult, e.EmbedErr
}

// ─────────────────────────────────────────────────────────────────────────────
// Reranker mock
// ─────────────────────────────────────────────────────────────────────────────

// Reranker is a configurable test double for [memory.Reranker].
type Reranker struct {
	mu sync.Mutex

	calls []Call

	ScoreResult []float64
	ScoreErr    error
}

var _ memory.Reranker = (*Reranker)(nil)

func (r *Reranker) CallCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *Reranker) Score(ctx context.Context, query string, candidates []string) ([]float64, error) {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Method: "Score", Args: []any{query, candidates}})
	r.mu.Unlock()
	return r.ScoreResult, r.ScoreErr
}

// ─────────────────────────────────────────────────────────────────────────────
// FactExtractor mock
// ─────────────────────────────────────────────────────────────────────────────

// FactExtractor is a configurable test double for [memory.FactExtractor].
type FactExtractor struct {
	mu sync.Mutex

	calls []Call

	ExtractResult []memory.ExtractedFact
	ExtractErr    error
}

var _ memory.FactExtractor = (*FactExtractor)(nil)

func (f *FactExtractor) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *FactExtractor) Extract(ctx context.Context, content string) ([]memory.ExtractedFact, error) {
	f.mu.Lock()
	f.calls = append(f.calls, Call{Method: "Extract", Args: []any{content}})
	f.mu.Unlock()
	return f.ExtractResult, f.ExtractErr
}

// ─────────────────────────────────────────────────────────────────────────────
// TemporalParser mock
// ─────────────────────────────────────────────────────────────────────────────

// TemporalParser is a configurable test double for [memory.TemporalParser].
type TemporalParser struct {
	mu sync.Mutex

	calls []Call

	ParseRangeResult *memory.TimeRange
	ParseRangeErr    error
}

var _ memory.TemporalParser = (*TemporalParser)(nil)

func (p *TemporalParser) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func (p *TemporalParser) ParseRange(ctx context.Context, query string, now time.Time) (*memory.TimeRange, error) {
	p.mu.Lock()
	p.calls = append(p.calls, Call{Method: "ParseRange", Args: []any{query, now}})
	p.mu.Unlock()
	return p.ParseRangeResult, p.ParseRangeErr
}

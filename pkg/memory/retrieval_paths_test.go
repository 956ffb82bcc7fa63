package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/MrWong99/glyphoxa/pkg/memory"
	"github.com/MrWong99/glyphoxa/pkg/memory/mock"
)

func TestGraphPath_ActivationDecaysMonotonically(t *testing.T) {
	edges := map[string][]memory.NeighborEdge{
		"seed": {{NeighborID: "hop1", Type: memory.LinkSemantic, Weight: 0.9}},
		"hop1": {{NeighborID: "hop2", Type: memory.LinkSemantic, Weight: 0.9}},
		"hop2": {},
	}
	store := &mock.Store{
		VectorKNNResult: []memory.ScoredID{{ID: "seed", Score: 0.9}},
		NeighborsFunc: func(ctx context.Context, unitID string, minWeight float64, opts ...memory.StoreOpt) ([]memory.NeighborEdge, error) {
			return edges[unitID], nil
		},
	}
	p := &memory.GraphPath{Store: store, Weights: memory.DefaultConfig().Weights}

	res, err := p.Retrieve(context.Background(), memory.PathRequest{
		AgentID: "agent1", QueryVec: []float32{0.1}, ThinkingBudget: 3,
	})
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(res.Trace.Visits) != 3 {
		t.Fatalf("visited %d nodes, want 3", len(res.Trace.Visits))
	}
	for i := 1; i < len(res.Trace.Visits); i++ {
		prev, cur := res.Trace.Visits[i-1], res.Trace.Visits[i]
		if cur.Activation >= prev.Activation {
			t.Errorf("visit %d (%s) activation %v not less than visit %d (%s) activation %v",
				i, cur.NodeID, cur.Activation, i-1, prev.NodeID, prev.Activation)
		}
	}
}

func TestTemporalGraphPath_SeedsWithTemporalProximity(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)
	midpoint := start.Add(end.Sub(start) / 2)

	store := &mock.Store{
		VectorKNNInRangeResult: []memory.ScoredID{{ID: "u1", Score: 0.5}},
		GetUnitResult:          &memory.MemoryUnit{ID: "u1", EventDate: midpoint},
	}
	p := &memory.TemporalGraphPath{Store: store, Weights: memory.DefaultConfig().Weights}

	res, err := p.Retrieve(context.Background(), memory.PathRequest{
		AgentID:        "agent1",
		QueryVec:       []float32{0.1},
		ThinkingBudget: 5,
		TimeRange:      &memory.TimeRange{Start: start, End: end},
	})
	if err != nil {
		t.Fatalf("Retrieve() error: %v", err)
	}
	if len(res.Trace.Visits) != 1 {
		t.Fatalf("visited %d nodes, want 1", len(res.Trace.Visits))
	}
	// event_date == midpoint, so temporal_proximity == 1; seed activation
	// should be temporal_proximity + semantic_bonus == 1 + 0.5.
	want := 1.5
	if got := res.Trace.Visits[0].Activation; got != want {
		t.Errorf("seed activation = %v, want %v", got, want)
	}
}

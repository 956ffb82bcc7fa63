package memory

import (
	"container/heap"
	"context"
	"math"
	"sort"
	"time"
)

// PathRequest is the uniform input every [RetrievalPath] accepts. Not every
// field is relevant to every path: [KeywordPath] ignores QueryVec,
// [TemporalGraphPath] requires TimeRange, etc.
type PathRequest struct {
	AgentID        string
	FactType       FactType
	QueryText      string
	QueryTokens    []string
	QueryVec       []float32
	TimeRange      *TimeRange
	ThinkingBudget int
}

// PathResult is the uniform output every [RetrievalPath] produces: a
// ranked list of unit IDs plus the trace detail for that single path. The
// top-level [Retriever] composes these without knowing which concrete path
// produced them.
type PathResult struct {
	Ranked []ScoredID
	Trace  PathTrace
}

// RetrievalPath is one of the four parallel retrieval strategies (§2, §4.5–
// §4.8), each producing a uniform ranked-list value so [Retriever] can fuse
// them without switching on concrete type.
type RetrievalPath interface {
	Name() string
	Retrieve(ctx context.Context, req PathRequest) (PathResult, error)
}

// ─────────────────────────────────────────────────────────────────────────
// SemanticPath — §4.5
// ─────────────────────────────────────────────────────────────────────────

// SemanticPath retrieves units by vector kNN over the query embedding.
type SemanticPath struct{ Store Store }

func (p *SemanticPath) Name() string { return "semantic" }

func (p *SemanticPath) Retrieve(ctx context.Context, req PathRequest) (PathResult, error) {
	if req.ThinkingBudget <= 0 {
		return PathResult{Trace: PathTrace{Path: p.Name()}}, nil
	}
	ids, err := p.Store.VectorKNN(ctx, req.AgentID, req.FactType, req.QueryVec, req.ThinkingBudget, 0.3)
	if err != nil {
		return PathResult{}, err
	}
	return PathResult{Ranked: ids, Trace: PathTrace{Path: p.Name()}}, nil
}

// ─────────────────────────────────────────────────────────────────────────
// KeywordPath — §4.6
// ─────────────────────────────────────────────────────────────────────────

// KeywordPath retrieves units via stemmed BM25 full-text search.
type KeywordPath struct{ Store Store }

func (p *KeywordPath) Name() string { return "keyword" }

func (p *KeywordPath) Retrieve(ctx context.Context, req PathRequest) (PathResult, error) {
	if req.ThinkingBudget <= 0 || len(req.QueryTokens) == 0 {
		return PathResult{Trace: PathTrace{Path: p.Name()}}, nil
	}
	ids, err := p.Store.BM25Search(ctx, req.AgentID, req.FactType, req.QueryTokens, req.ThinkingBudget)
	if err != nil {
		return PathResult{}, err
	}
	return PathResult{Ranked: ids, Trace: PathTrace{Path: p.Name()}}, nil
}

// ─────────────────────────────────────────────────────────────────────────
// GraphPath — §4.7, spreading activation
// ─────────────────────────────────────────────────────────────────────────

const (
	entryK            = 5
	entryMinSim       = 0.5
	linkWeightFloor   = 0.1
	activationFloor   = 0.1
	activationDecay   = 0.8
)

// activationItem is one frontier entry in the spreading-activation
// priority queue.
type activationItem struct {
	nodeID     string
	activation float64
	parentID   string
	linkType   LinkType
	linkWeight float64
}

// activationQueue is a max-heap on activation, implementing [heap.Interface].
// No corpus library provides a generic priority queue, so this is built on
// the standard library's container/heap — a thin, domain-agnostic
// primitive rather than a competing ecosystem concern (see DESIGN.md).
type activationQueue []activationItem

func (q activationQueue) Len() int            { return len(q) }
func (q activationQueue) Less(i, j int) bool   { return q[i].activation > q[j].activation }
func (q activationQueue) Swap(i, j int)        { q[i], q[j] = q[j], q[i] }
func (q *activationQueue) Push(x any)          { *q = append(*q, x.(activationItem)) }
func (q *activationQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// GraphPath retrieves units by spreading activation from semantic entry
// points across the link graph.
type GraphPath struct {
	Store   Store
	Weights RankingWeights
}

func (p *GraphPath) Name() string { return "graph" }

func (p *GraphPath) Retrieve(ctx context.Context, req PathRequest) (PathResult, error) {
	trace := PathTrace{Path: p.Name()}
	if req.ThinkingBudget <= 0 {
		return PathResult{Trace: trace}, nil
	}

	entries, err := p.Store.VectorKNN(ctx, req.AgentID, req.FactType, req.QueryVec, entryK, entryMinSim)
	if err != nil {
		return PathResult{}, err
	}

	q := &activationQueue{}
	heap.Init(q)
	entrySim := make(map[string]float64, len(entries))
	for _, e := range entries {
		entrySim[e.ID] = e.Score
		trace.EntryPoints = append(trace.EntryPoints, EntryPoint{NodeID: e.ID, Similarity: e.Score})
		heap.Push(q, activationItem{nodeID: e.ID, activation: e.Score})
	}

	visited := make(map[string]struct{})
	result := make(map[string]float64)
	step := 0

	for q.Len() > 0 && len(visited) < req.ThinkingBudget {
		select {
		case <-ctx.Done():
			populateRanking(ctx, p.Store, p.Weights, entrySim, trace.Visits)
			return PathResult{Ranked: toScoredIDs(result), Trace: trace}, nil
		default:
		}

		item := heap.Pop(q).(activationItem)
		if _, ok := visited[item.nodeID]; ok {
			trace.Prunes = append(trace.Prunes, Prune{NodeID: item.nodeID, Reason: PruneAlreadyVisited})
			continue
		}
		visited[item.nodeID] = struct{}{}
		result[item.nodeID] = item.activation
		step++
		trace.Visits = append(trace.Visits, NodeVisit{
			NodeID: item.nodeID, Step: step, ParentID: item.parentID,
			LinkType: item.linkType, LinkWeight: item.linkWeight, Activation: item.activation,
		})

		if len(visited) >= req.ThinkingBudget {
			trace.Prunes = append(trace.Prunes, Prune{NodeID: item.nodeID, Reason: PruneBudgetExhausted})
			break
		}

		neighbors, err := p.Store.Neighbors(ctx, item.nodeID, linkWeightFloor)
		if err != nil {
			return PathResult{}, err
		}
		for _, n := range neighbors {
			if n.Weight < linkWeightFloor {
				trace.Prunes = append(trace.Prunes, Prune{NodeID: n.NeighborID, Reason: PruneLinkWeightTooLow})
				continue
			}
			nextActivation := item.activation * n.Weight * activationDecay
			if nextActivation <= activationFloor {
				trace.Prunes = append(trace.Prunes, Prune{NodeID: n.NeighborID, Reason: PruneBelowActivation})
				continue
			}
			if _, seen := visited[n.NeighborID]; seen {
				continue
			}
			if existing, ok := result[n.NeighborID]; ok && existing >= nextActivation {
				continue
			}
			heap.Push(q, activationItem{
				nodeID: n.NeighborID, activation: nextActivation,
				parentID: item.nodeID, linkType: n.Type, linkWeight: n.Weight,
			})
		}
	}

	populateRanking(ctx, p.Store, p.Weights, entrySim, trace.Visits)
	return PathResult{Ranked: toScoredIDs(result), Trace: trace}, nil
}

// populateRanking fills each visit's SemanticSimilarity, FinalWeight and
// Rank in place, per §4.13's weighted blend of activation, semantic
// similarity, recency and frequency. entrySim supplies the similarity
// known for entry points; nodes reached purely by link traversal report 0
// (no direct embedding comparison was made for them).
func populateRanking(ctx context.Context, store Store, weights RankingWeights, entrySim map[string]float64, visits []NodeVisit) {
	for i := range visits {
		v := &visits[i]
		v.SemanticSimilarity = entrySim[v.NodeID]
		var recency, frequency float64
		if unit, err := store.GetUnit(ctx, v.NodeID); err == nil && unit != nil {
			recency = recencyScore(unit.EventDate)
			frequency = frequencyScore(unit.AccessCount)
		}
		v.FinalWeight = weights.Activation*v.Activation + weights.Semantic*v.SemanticSimilarity +
			weights.Recency*recency + weights.Frequency*frequency
	}

	order := make([]int, len(visits))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		if visits[ia].FinalWeight != visits[ib].FinalWeight {
			return visits[ia].FinalWeight > visits[ib].FinalWeight
		}
		return visits[ia].NodeID < visits[ib].NodeID
	})
	for rank, idx := range order {
		visits[idx].Rank = rank + 1
	}
}

// recencyScore implements §4.13's `1/(1+log(1+days/365))`, where days is
// the age of eventDate relative to now.
func recencyScore(eventDate time.Time) float64 {
	if eventDate.IsZero() {
		return 0
	}
	days := time.Since(eventDate).Hours() / 24
	if days < 0 {
		days = 0
	}
	return 1 / (1 + math.Log(1+days/365))
}

// frequencyScore implements §4.13's `min(1, log(access_count+1)/log(10))`.
func frequencyScore(accessCount int64) float64 {
	f := math.Log(float64(accessCount)+1) / math.Log(10)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func toScoredIDs(result map[string]float64) []ScoredID {
	out := make([]ScoredID, 0, len(result))
	for id, score := range result {
		out = append(out, ScoredID{ID: id, Score: score})
	}
	sortScoredIDs(out)
	return out
}

func sortScoredIDs(s []ScoredID) {
	// stable order: score desc, id asc
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && less(s[j], s[j-1]); j-- {
			s[j], s[j-1] = s[j-1], s[j]
		}
	}
}

func less(a, b ScoredID) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ID < b.ID
}

// ─────────────────────────────────────────────────────────────────────────
// TemporalGraphPath — §4.8
// ─────────────────────────────────────────────────────────────────────────

const (
	temporalEntryMinSim  = 0.4
	temporalDecayPerHop  = 0.7
)

// entryTemporalProximity computes `1 - |event_date - midpoint| / radius`,
// clipped to [0,1], for the entry point identified by unitID. A lookup
// failure degrades to 0 proximity rather than failing the whole path.
func entryTemporalProximity(ctx context.Context, store Store, unitID string, midpoint time.Time, radius time.Duration) float64 {
	unit, err := store.GetUnit(ctx, unitID)
	if err != nil || unit == nil {
		return 0
	}
	delta := unit.EventDate.Sub(midpoint)
	if delta < 0 {
		delta = -delta
	}
	proximity := 1 - float64(delta)/float64(radius)
	if proximity < 0 {
		return 0
	}
	if proximity > 1 {
		return 1
	}
	return proximity
}

// TemporalGraphPath activates only when the query has a parsed date range;
// it seeds entry points within the range and spreads only along temporal
// links, never crossing outside the range.
type TemporalGraphPath struct {
	Store   Store
	Weights RankingWeights
}

func (p *TemporalGraphPath) Name() string { return "temporal_graph" }

func (p *TemporalGraphPath) Retrieve(ctx context.Context, req PathRequest) (PathResult, error) {
	trace := PathTrace{Path: p.Name()}
	if req.ThinkingBudget <= 0 || req.TimeRange == nil {
		return PathResult{Trace: trace}, nil
	}
	tr := req.TimeRange

	entries, err := p.Store.VectorKNNInRange(ctx, req.AgentID, req.FactType, req.QueryVec, req.ThinkingBudget, temporalEntryMinSim, tr.Start, tr.End)
	if err != nil {
		return PathResult{}, err
	}
	if len(entries) == 0 {
		return PathResult{Trace: trace}, nil
	}

	midpoint := tr.Start.Add(tr.End.Sub(tr.Start) / 2)
	radius := tr.End.Sub(tr.Start) / 2
	if radius <= 0 {
		radius = 1
	}

	q := &activationQueue{}
	heap.Init(q)
	entrySim := make(map[string]float64, len(entries))
	for _, e := range entries {
		entrySim[e.ID] = e.Score
		trace.EntryPoints = append(trace.EntryPoints, EntryPoint{NodeID: e.ID, Similarity: e.Score})
		proximity := entryTemporalProximity(ctx, p.Store, e.ID, midpoint, radius)
		heap.Push(q, activationItem{nodeID: e.ID, activation: proximity + e.Score})
	}

	visited := make(map[string]struct{})
	result := make(map[string]float64)
	step := 0

	for q.Len() > 0 && len(visited) < req.ThinkingBudget {
		select {
		case <-ctx.Done():
			populateRanking(ctx, p.Store, p.Weights, entrySim, trace.Visits)
			return PathResult{Ranked: toScoredIDs(result), Trace: trace}, nil
		default:
		}

		item := heap.Pop(q).(activationItem)
		if _, ok := visited[item.nodeID]; ok {
			continue
		}
		visited[item.nodeID] = struct{}{}
		result[item.nodeID] = item.activation
		step++
		trace.Visits = append(trace.Visits, NodeVisit{
			NodeID: item.nodeID, Step: step, ParentID: item.parentID,
			LinkType: LinkTemporal, LinkWeight: item.linkWeight, Activation: item.activation,
		})
		if len(visited) >= req.ThinkingBudget {
			break
		}

		neighbors, err := p.Store.NeighborsInDateRange(ctx, item.nodeID, linkWeightFloor, tr.Start, tr.End, WithLinkTypes(LinkTemporal))
		if err != nil {
			return PathResult{}, err
		}
		for _, n := range neighbors {
			if n.Type != LinkTemporal {
				continue
			}
			nextActivation := item.activation * temporalDecayPerHop
			if nextActivation <= activationFloor {
				trace.Prunes = append(trace.Prunes, Prune{NodeID: n.NeighborID, Reason: PruneBelowActivation})
				continue
			}
			if _, seen := visited[n.NeighborID]; seen {
				continue
			}
			if existing, ok := result[n.NeighborID]; ok && existing >= nextActivation {
				continue
			}
			heap.Push(q, activationItem{nodeID: n.NeighborID, activation: nextActivation, parentID: item.nodeID, linkType: LinkTemporal, linkWeight: n.Weight})
		}
	}

	populateRanking(ctx, p.Store, p.Weights, entrySim, trace.Visits)
	return PathResult{Ranked: toScoredIDs(result), Trace: trace}, nil
}

package memory

import (
	"context"
	"time"
)

// ScoredID pairs a unit ID with a similarity or relevance score produced
// directly by the store (before fusion or reranking).
type ScoredID struct {
	ID    string
	Score float64
}

// NeighborEdge is one outgoing-or-incoming link reported by
// [Store.Neighbors], normalized to read as if it originated at the queried
// unit regardless of storage direction.
type NeighborEdge struct {
	NeighborID string
	Type       LinkType
	Weight     float64
	Metadata   map[string]any
}

// storeOptions accumulates options for [Store.Neighbors].
// Unexported — callers configure it via [StoreOpt] functional options.
type storeOptions struct {
	linkTypes []LinkType
}

// StoreOpt is a functional option for [Store.Neighbors].
type StoreOpt func(*storeOptions)

// WithLinkTypes restricts [Store.Neighbors] to edges of the given types.
// An empty list (the default) follows all three link types.
func WithLinkTypes(types ...LinkType) StoreOpt {
	return func(o *storeOptions) {
		o.linkTypes = append(o.linkTypes, types...)
	}
}

// ApplyStoreOpts resolves a slice of [StoreOpt] into its link-type filter.
// Exposed so storage backends outside this package can honor the same
// options.
func ApplyStoreOpts(opts []StoreOpt) (linkTypes []LinkType) {
	var o storeOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o.linkTypes
}

// Store is the persistence layer for memory units, entities, entity
// mentions and links. It is the only shared mutable resource in the
// engine: implementations must serialize writes to a single unit's links
// while permitting unbounded concurrent reads and concurrent writes to
// distinct units.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// InsertUnit persists a new unit and returns its assigned ID (or
	// unit.ID when already set by the caller). It fails with a [Conflict]
	// error only when unit.ID collides with an existing unit; deduplication
	// by content is the [Ingestor]'s responsibility, not the store's.
	InsertUnit(ctx context.Context, unit MemoryUnit) (string, error)

	// GetUnit retrieves a unit by ID. Returns (nil, nil) when the unit
	// does not exist.
	GetUnit(ctx context.Context, id string) (*MemoryUnit, error)

	// DeleteUnit removes a unit and cascades the deletion to its entity
	// mentions and all links referencing it. Deleting a non-existent unit
	// is not an error.
	DeleteUnit(ctx context.Context, id string) error

	// DeleteAgent removes every unit, mention and link belonging to
	// agentID. Deleting an agent with no units is not an error.
	DeleteAgent(ctx context.Context, agentID string) error

	// UnitsByDocument returns the IDs of units previously inserted under
	// the given document ID, for the [Ingestor]'s upsert-by-document path.
	UnitsByDocument(ctx context.Context, agentID, documentID string) ([]string, error)

	// UnitsInDateRange returns the IDs of units belonging to agentID whose
	// EventDate falls within [start, end], excluding excludeID. Backed by
	// an indexed range scan over (agent_id, event_date); never a full
	// table scan. Used by [LinkBuilder] to bound its temporal-link
	// candidate set.
	UnitsInDateRange(ctx context.Context, agentID string, start, end time.Time, excludeID string) ([]string, error)

	// VectorKNN returns up to k units closest to queryVec by cosine
	// similarity, restricted to agentID and (when non-empty) factType,
	// and thresholded to similarity >= minSim before the k-limit is
	// applied. Ties are broken by ID ascending.
	VectorKNN(ctx context.Context, agentID string, factType FactType, queryVec []float32, k int, minSim float64) ([]ScoredID, error)

	// VectorKNNInRange behaves like VectorKNN but additionally restricts
	// candidates to units whose EventDate falls within [start, end].
	VectorKNNInRange(ctx context.Context, agentID string, factType FactType, queryVec []float32, k int, minSim float64, start, end time.Time) ([]ScoredID, error)

	// BM25Search executes a stemmed, English full-text search over unit
	// text, restricted to agentID and (when non-empty) factType, ranked by
	// relevance (score desc, ID asc), capped at k results. Returns an
	// empty slice, not an error, when no query terms survive tokenization.
	BM25Search(ctx context.Context, agentID string, factType FactType, queryTokens []string, k int) ([]ScoredID, error)

	// Neighbors returns every link incident on unitID whose weight is >=
	// minWeight, normalized so NeighborEdge.NeighborID is always the
	// "other side" of the edge regardless of storage direction.
	// [StoreOpt] options can restrict which link types are returned.
	Neighbors(ctx context.Context, unitID string, minWeight float64, opts ...StoreOpt) ([]NeighborEdge, error)

	// NeighborsInDateRange behaves like Neighbors but additionally
	// requires the neighbor unit's EventDate to fall within [start, end].
	// Used by the temporal-graph retrieval path to avoid spreading
	// outside a parsed time window.
	NeighborsInDateRange(ctx context.Context, unitID string, minWeight float64, start, end time.Time, opts ...StoreOpt) ([]NeighborEdge, error)

	// UnitsForEntity returns the IDs of every unit mentioning entityID.
	UnitsForEntity(ctx context.Context, entityID string) ([]string, error)

	// RecordMention upserts an (unitID, entityID) mention pair. Recording
	// an existing pair is a no-op.
	RecordMention(ctx context.Context, unitID, entityID string) error

	// UpsertLink inserts or updates a link. On conflict the stored weight
	// becomes max(existing, weight) and metadata is replaced with the
	// incoming value.
	UpsertLink(ctx context.Context, link Link) error

	// IncrementAccess bumps AccessCount for each listed unit ID.
	// Increments are best-effort and eventually consistent: callers must
	// not depend on them being visible immediately, nor on none being
	// dropped under process shutdown.
	IncrementAccess(ctx context.Context, ids []string) error

	// EntityStore exposes entity CRUD and candidate lookup, used by the
	// [EntityResolver].
	EntityStore
}

// EntityStore is the entity-management slice of [Store], split out so the
// [EntityResolver] can depend on a narrower surface.
type EntityStore interface {
	// InsertEntity persists a newly allocated entity and returns its ID.
	InsertEntity(ctx context.Context, entity Entity) (string, error)

	// GetEntity retrieves an entity by ID. Returns (nil, nil) when absent.
	GetEntity(ctx context.Context, id string) (*Entity, error)

	// CandidateEntities returns existing entities of agentID and typ whose
	// aliases (or canonical name) share at least one normalized token with
	// any of the given normalized tokens — the [EntityResolver]'s
	// candidate-generation step.
	CandidateEntities(ctx context.Context, agentID string, typ EntityType, normalizedTokens []string) ([]Entity, error)

	// UpdateEntityAliasesAndLastSeen appends alias (if new) to the
	// entity's alias list and advances LastSeen to max(existing, seen).
	UpdateEntityAliasesAndLastSeen(ctx context.Context, id, alias string, seen time.Time) error

	// CoOccurringEntityIDs returns the set of entity IDs that co-occur
	// with any of unitIDs via entity mentions — used to compute the
	// EntityResolver's co-occurrence signal.
	CoOccurringEntityIDs(ctx context.Context, unitIDs []string) (map[string]struct{}, error)
}

// Package memory implements a long-term conversational memory engine for AI
// agents: a graph-structured store of narrative facts, a link-construction
// pipeline that connects related facts temporally, semantically and by
// shared entities, and a multi-strategy retrieval pipeline that fuses and
// reranks candidates under a token budget.
//
// The package is organised around a small set of domain types
// ([MemoryUnit], [Entity], [EntityMention], [Link]) persisted behind the
// [Store] interface, four independent retrieval strategies ([SemanticPath],
// [KeywordPath], [GraphPath], [TemporalGraphPath]) composed by [Retriever],
// and a set of opaque external collaborators ([Embedder], [Reranker],
// [FactExtractor], [TemporalParser]) that the engine calls but does not
// implement.
//
// All interfaces are public so that external packages can supply
// alternative storage backends or collaborator implementations without
// depending on engine internals. Every implementation must be safe for
// concurrent use.
package memory

import "time"

// FactType coarsely partitions memory units for retrieval filtering.
type FactType string

const (
	// FactWorld is a fact about the world independent of any agent or user.
	FactWorld FactType = "world"
	// FactAgent is a fact about the agent itself.
	FactAgent FactType = "agent"
	// FactOpinion is a subjective judgement formed by the agent.
	FactOpinion FactType = "opinion"
)

// Valid reports whether f is one of the recognised fact types, or the zero
// value (meaning "no filter").
func (f FactType) Valid() bool {
	switch f {
	case "", FactWorld, FactAgent, FactOpinion:
		return true
	default:
		return false
	}
}

// EntityType classifies an [Entity] node.
type EntityType string

const (
	EntityPerson  EntityType = "PERSON"
	EntityOrg     EntityType = "ORG"
	EntityLoc     EntityType = "LOCATION"
	EntityProduct EntityType = "PRODUCT"
	EntityConcept EntityType = "CONCEPT"
	EntityOther   EntityType = "OTHER"
)

// LinkType classifies a [Link] edge between two memory units.
type LinkType string

const (
	// LinkTemporal connects units whose event_date values fall within the
	// link-builder's time window.
	LinkTemporal LinkType = "temporal"
	// LinkSemantic connects units whose embeddings are sufficiently similar.
	LinkSemantic LinkType = "semantic"
	// LinkEntity connects units that share a resolved entity mention.
	LinkEntity LinkType = "entity"
)

// EmbeddingDim is the fixed, immutable dimensionality of every stored
// embedding vector. Changing it requires re-embedding the entire corpus.
const EmbeddingDim = 384

// MemoryUnit is the atomic retrievable fact: a self-contained narrative
// sentence or short paragraph, together with its embedding, full-text
// index, and bookkeeping fields.
//
// Text is immutable once a unit is inserted; a factual update is
// represented as inserting a new unit, not mutating an existing one. A
// unit is visible to retrieval only under its own AgentID and, when a
// caller supplies a FactType filter, under a matching FactType.
type MemoryUnit struct {
	// ID uniquely identifies this unit (e.g. a UUID).
	ID string

	// AgentID scopes this unit to a single owning agent. Units are never
	// visible across agents.
	AgentID string

	// FactType coarsely categorises this unit for retrieval filtering.
	FactType FactType

	// Text is the narrative fact itself. Immutable after insertion.
	Text string

	// Context is optional surrounding context (e.g. the conversation turn
	// this fact was extracted from) that may be prefixed onto Text when
	// presenting the unit to a reranker.
	Context string

	// DocumentID optionally groups units extracted from the same source
	// document. Re-ingesting the same DocumentID replaces its prior units.
	DocumentID string

	// EventDate is when the fact occurred or was asserted, as distinct
	// from CreatedAt (when it was recorded in the store).
	EventDate time.Time

	// CreatedAt is when this unit was inserted into the store.
	CreatedAt time.Time

	// AccessCount is a monotonically increasing counter of retrieval hits.
	// Increments are eventually consistent (see [Store.IncrementAccess]).
	AccessCount int64

	// Embedding is the [EmbeddingDim]-dimensional, L2-normalized vector
	// produced by the [Embedder] over Text augmented with a readable
	// EventDate. Fixed dimension, immutable once set.
	Embedding []float32

	// SearchTokens is the stemmed token sequence backing full-text /
	// keyword search. Populated by the store from Text; exposed here for
	// callers that pre-tokenize (e.g. tests).
	SearchTokens []string
}

// Entity is a named identity shared across a single agent's memory units.
// Entities are created on first unresolved mention and are never deleted
// while any [EntityMention] still references them.
type Entity struct {
	// ID uniquely identifies this entity.
	ID string

	// AgentID scopes this entity to a single owning agent.
	AgentID string

	// Type classifies the entity.
	Type EntityType

	// CanonicalName is the preferred display name.
	CanonicalName string

	// Aliases accumulates every surface form that has resolved to this
	// entity, including CanonicalName.
	Aliases []string

	// FirstSeen is the EventDate of the mention that created this entity.
	FirstSeen time.Time

	// LastSeen is the most recent EventDate of any mention resolved to
	// this entity; monotonically advances on each acceptance.
	LastSeen time.Time
}

// EntityMention records that a [MemoryUnit] mentions an [Entity]. The pair
// is unique: a unit mentions a given entity at most once.
type EntityMention struct {
	UnitID   string
	EntityID string
}

// Link is a directed, typed, weighted edge between two memory units.
// Traversal is contractually bidirectional regardless of storage
// direction: a link (a, b, t) is reachable from both a and b.
//
// At most one link of a given LinkType exists per ordered (from, to) pair;
// re-insertion takes the maximum of the old and new weight.
type Link struct {
	FromUnitID string
	ToUnitID   string
	Type       LinkType
	// Weight is in [0,1]. Temporal links are bounded below by 0.3; entity
	// links are always exactly 1.0.
	Weight float64
	// Metadata carries link-type-specific detail: semantic links carry
	// "similarity", temporal links carry "time_delta_seconds", entity links
	// carry "entity_id".
	Metadata map[string]any
}

// ScoredUnit pairs a unit ID with a relevance score and an optional
// hydrated Unit. The retrieval paths and [Retriever] in this package do
// not produce it: paths return [ScoredID] lists and [Retriever] hydrates
// fused candidates into [MemoryUnit] values.
type ScoredUnit struct {
	UnitID string
	Score  float64
	Unit   *MemoryUnit
}

// EntityMentionInput is a single entity mention extracted from content, as
// reported by a [FactExtractor].
type EntityMentionInput struct {
	SurfaceForm string
	Type        EntityType
}

// ExtractedFact is one narrative fact produced by a [FactExtractor] over a
// piece of ingested content.
type ExtractedFact struct {
	Text     string
	FactType FactType
	Mentions []EntityMentionInput
}

// TimeRange is a half-open [Start, End] date range returned by a
// [TemporalParser] when a query has a resolvable temporal scope.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Package postgres provides a PostgreSQL-backed implementation of
// [memory.Store] and [memory.EntityStore]: memory units, entities, entity
// mentions and their links.
//
// Vector similarity is provided by the pgvector extension
// (embedding_vec column, HNSW index, <=> cosine-distance operator);
// keyword search is PostgreSQL's native full-text engine (tsvector /
// plainto_tsquery / ts_rank_cd), reached through the same [pgxpool.Pool]
// connection used for everything else. [Migrate] installs the pgvector
// extension and creates every table idempotently.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn, memory.EmbeddingDim)
//	if err != nil { … }
//	id, err := store.InsertUnit(ctx, unit)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlMemoryUnits = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS memory_units (
    id           TEXT         PRIMARY KEY,
    agent_id     TEXT         NOT NULL,
    fact_type    TEXT         NOT NULL,
    text         TEXT         NOT NULL,
    context      TEXT         NOT NULL DEFAULT '',
    document_id  TEXT         NOT NULL DEFAULT '',
    event_date   TIMESTAMPTZ  NOT NULL,
    created_at   TIMESTAMPTZ  NOT NULL DEFAULT now(),
    access_count BIGINT       NOT NULL DEFAULT 0,
    embedding_vec vector(%[1]d),
    search_vec   tsvector     GENERATED ALWAYS AS (to_tsvector('english', text)) STORED
);

CREATE INDEX IF NOT EXISTS idx_memory_units_agent_fact_type_event
    ON memory_units (agent_id, fact_type, event_date);

CREATE INDEX IF NOT EXISTS idx_memory_units_document
    ON memory_units (agent_id, document_id) WHERE document_id <> '';

CREATE INDEX IF NOT EXISTS idx_memory_units_embedding
    ON memory_units USING hnsw (embedding_vec vector_cosine_ops);

CREATE INDEX IF NOT EXISTS idx_memory_units_search_vec
    ON memory_units USING GIN (search_vec);
`

const ddlEntities = `
CREATE TABLE IF NOT EXISTS entities (
    id             TEXT         PRIMARY KEY,
    agent_id       TEXT         NOT NULL,
    type           TEXT         NOT NULL,
    canonical_name TEXT         NOT NULL,
    aliases        TEXT[]       NOT NULL DEFAULT '{}',
    first_seen     TIMESTAMPTZ  NOT NULL,
    last_seen      TIMESTAMPTZ  NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_entities_agent_type
    ON entities (agent_id, type);

CREATE INDEX IF NOT EXISTS idx_entities_aliases
    ON entities USING GIN (aliases);

CREATE TABLE IF NOT EXISTS entity_mentions (
    unit_id   TEXT NOT NULL REFERENCES memory_units (id) ON DELETE CASCADE,
    entity_id TEXT NOT NULL REFERENCES entities (id) ON DELETE CASCADE,
    PRIMARY KEY (unit_id, entity_id)
);

CREATE INDEX IF NOT EXISTS idx_entity_mentions_entity
    ON entity_mentions (entity_id);
`

const ddlLinks = `
CREATE TABLE IF NOT EXISTS links (
    from_id      TEXT        NOT NULL REFERENCES memory_units (id) ON DELETE CASCADE,
    to_id        TEXT        NOT NULL REFERENCES memory_units (id) ON DELETE CASCADE,
    link_type    TEXT        NOT NULL,
    weight       DOUBLE PRECISION NOT NULL,
    metadata     JSONB       NOT NULL DEFAULT '{}',
    PRIMARY KEY (from_id, to_id, link_type)
);

CREATE INDEX IF NOT EXISTS idx_links_from
    ON links (from_id, link_type);

CREATE INDEX IF NOT EXISTS idx_links_to
    ON links (to_id, link_type);
`

// Migrate creates or ensures all required tables, indexes and extensions
// exist. It is idempotent and safe to call on every process start.
//
// embeddingDimensions must match the [memory.Embedder]'s output
// dimensionality; changing it after the first migration requires a manual
// schema update, as the vector column type bakes in the dimension.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		fmt.Sprintf(ddlMemoryUnits, embeddingDimensions),
		ddlEntities,
		ddlLinks,
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}

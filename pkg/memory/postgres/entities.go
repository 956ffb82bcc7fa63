package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/glyphoxa/pkg/memory"
)

// InsertEntity implements [memory.EntityStore].
func (s *Store) InsertEntity(ctx context.Context, entity memory.Entity) (string, error) {
	id := entity.ID
	if id == "" {
		id = uuid.NewString()
	}
	const q = `
		INSERT INTO entities (id, agent_id, type, canonical_name, aliases, first_seen, last_seen)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.pool.Exec(ctx, q, id, entity.AgentID, string(entity.Type), entity.CanonicalName, entity.Aliases, entity.FirstSeen, entity.LastSeen)
	if err != nil {
		return "", fmt.Errorf("postgres: insert entity: %w", err)
	}
	return id, nil
}

// GetEntity implements [memory.EntityStore]. Returns (nil, nil) when absent.
func (s *Store) GetEntity(ctx context.Context, id string) (*memory.Entity, error) {
	const q = `
		SELECT id, agent_id, type, canonical_name, aliases, first_seen, last_seen
		FROM   entities WHERE id = $1`
	row := s.pool.QueryRow(ctx, q, id)
	e, err := scanEntity(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: get entity: %w", err)
	}
	return &e, nil
}

// CandidateEntities implements [memory.EntityStore]. It returns entities
// of agentID and typ whose aliases array overlaps normalizedTokens —
// the set-overlap candidate-generation step of §4.2. Normalization
// (lowercasing, punctuation stripping) happens in Go on both sides, so the
// comparison here is a simple array overlap (&&) against a
// lower-cased alias projection.
func (s *Store) CandidateEntities(ctx context.Context, agentID string, typ memory.EntityType, normalizedTokens []string) ([]memory.Entity, error) {
	if len(normalizedTokens) == 0 {
		return nil, nil
	}
	const q = `
		SELECT id, agent_id, type, canonical_name, aliases, first_seen, last_seen
		FROM   entities
		WHERE  agent_id = $1 AND type = $2
		  AND  EXISTS (
		      SELECT 1 FROM unnest(aliases) AS alias
		      WHERE lower(regexp_replace(alias, '[^a-zA-Z0-9]+', ' ', 'g')) && array[$3]::text[]
		         OR string_to_array(lower(regexp_replace(alias, '[^a-zA-Z0-9]+', ' ', 'g')), ' ') && $3::text[]
		  )`
	rows, err := s.pool.Query(ctx, q, agentID, string(typ), normalizedTokens)
	if err != nil {
		return nil, fmt.Errorf("postgres: candidate entities: %w", err)
	}
	return collectEntities(rows)
}

// UpdateEntityAliasesAndLastSeen implements [memory.EntityStore].
func (s *Store) UpdateEntityAliasesAndLastSeen(ctx context.Context, id, alias string, seen time.Time) error {
	const q = `
		UPDATE entities
		SET    aliases   = CASE WHEN alias = ANY(aliases) THEN aliases ELSE aliases || alias END,
		       last_seen = GREATEST(last_seen, $3)
		FROM   (SELECT $2::text AS alias) a
		WHERE  id = $1`
	if _, err := s.pool.Exec(ctx, q, id, alias, seen); err != nil {
		return fmt.Errorf("postgres: update entity aliases: %w", err)
	}
	return nil
}

// CoOccurringEntityIDs implements [memory.EntityStore].
func (s *Store) CoOccurringEntityIDs(ctx context.Context, unitIDs []string) (map[string]struct{}, error) {
	if len(unitIDs) == 0 {
		return map[string]struct{}{}, nil
	}
	const q = `SELECT DISTINCT entity_id FROM entity_mentions WHERE unit_id = ANY($1::text[])`
	rows, err := s.pool.Query(ctx, q, unitIDs)
	if err != nil {
		return nil, fmt.Errorf("postgres: co-occurring entities: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: co-occurring entities: scan: %w", err)
	}
	out := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out, nil
}

func scanEntity(row interface{ Scan(...any) error }) (memory.Entity, error) {
	var (
		e       memory.Entity
		typ     string
		aliases []string
	)
	if err := row.Scan(&e.ID, &e.AgentID, &typ, &e.CanonicalName, &aliases, &e.FirstSeen, &e.LastSeen); err != nil {
		return memory.Entity{}, err
	}
	e.Type = memory.EntityType(typ)
	e.Aliases = aliases
	return e, nil
}

func collectEntities(rows pgx.Rows) ([]memory.Entity, error) {
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.Entity, error) {
		return scanEntity(row)
	})
	if err != nil {
		return nil, fmt.Errorf("scan entities: %w", err)
	}
	return out, nil
}

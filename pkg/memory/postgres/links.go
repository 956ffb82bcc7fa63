package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/MrWong99/glyphoxa/pkg/memory"
)

// UpsertLink implements [memory.Store]. On conflict, the stored weight
// becomes max(existing, incoming) and metadata is replaced. Links are
// stored as a single row per ordered (from_id, to_id, link_type) tuple;
// [Neighbors] restores bidirectional traversal by matching either column.
func (s *Store) UpsertLink(ctx context.Context, link memory.Link) error {
	metaJSON, err := json.Marshal(link.Metadata)
	if err != nil {
		return fmt.Errorf("postgres: marshal link metadata: %w", err)
	}

	const q = `
		INSERT INTO links (from_id, to_id, link_type, weight, metadata)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (from_id, to_id, link_type) DO UPDATE SET
		    weight   = GREATEST(links.weight, EXCLUDED.weight),
		    metadata = EXCLUDED.metadata`

	if _, err := s.pool.Exec(ctx, q, link.FromUnitID, link.ToUnitID, string(link.Type), link.Weight, metaJSON); err != nil {
		return fmt.Errorf("postgres: upsert link: %w", err)
	}
	return nil
}

// Neighbors implements [memory.Store]. Matches links in both directions so
// traversal is symmetric regardless of which side originally created the
// edge.
func (s *Store) Neighbors(ctx context.Context, unitID string, minWeight float64, opts ...memory.StoreOpt) ([]memory.NeighborEdge, error) {
	return s.neighbors(ctx, unitID, minWeight, nil, nil, opts...)
}

// NeighborsInDateRange implements [memory.Store].
func (s *Store) NeighborsInDateRange(ctx context.Context, unitID string, minWeight float64, start, end time.Time, opts ...memory.StoreOpt) ([]memory.NeighborEdge, error) {
	return s.neighbors(ctx, unitID, minWeight, &start, &end, opts...)
}

func (s *Store) neighbors(ctx context.Context, unitID string, minWeight float64, start, end *time.Time, opts ...memory.StoreOpt) ([]memory.NeighborEdge, error) {
	linkTypes := memory.ApplyStoreOpts(opts)

	args := []any{unitID, minWeight}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	typeFilter := ""
	if len(linkTypes) > 0 {
		strs := make([]string, len(linkTypes))
		for i, t := range linkTypes {
			strs[i] = string(t)
		}
		typeFilter = "\n  AND l.link_type = ANY(" + next(strs) + "::text[])"
	}

	rangeFilter := ""
	if start != nil && end != nil {
		rangeFilter = "\n  AND m.event_date BETWEEN " + next(*start) + " AND " + next(*end)
	}

	q := fmt.Sprintf(`
		SELECT neighbor_id, link_type, weight, metadata
		FROM (
		    SELECT to_id AS neighbor_id, link_type, weight, metadata
		    FROM   links l
		    WHERE  l.from_id = $1 AND l.weight >= $2%[1]s

		    UNION ALL

		    SELECT from_id AS neighbor_id, link_type, weight, metadata
		    FROM   links l
		    WHERE  l.to_id = $1 AND l.weight >= $2%[1]s
		) l
		JOIN memory_units m ON m.id = l.neighbor_id
		WHERE 1=1%[2]s
		ORDER BY weight DESC, neighbor_id ASC`, typeFilter, rangeFilter)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: neighbors: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.NeighborEdge, error) {
		var (
			e        memory.NeighborEdge
			linkType string
			metaJSON []byte
		)
		if err := row.Scan(&e.NeighborID, &linkType, &e.Weight, &metaJSON); err != nil {
			return memory.NeighborEdge{}, err
		}
		e.Type = memory.LinkType(linkType)
		if len(metaJSON) > 0 {
			if err := json.Unmarshal(metaJSON, &e.Metadata); err != nil {
				return memory.NeighborEdge{}, fmt.Errorf("unmarshal link metadata: %w", err)
			}
		}
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: neighbors: scan: %w", err)
	}
	return out, nil
}

// UnitsForEntity implements [memory.Store].
func (s *Store) UnitsForEntity(ctx context.Context, entityID string) ([]string, error) {
	const q = `SELECT unit_id FROM entity_mentions WHERE entity_id = $1`
	rows, err := s.pool.Query(ctx, q, entityID)
	if err != nil {
		return nil, fmt.Errorf("postgres: units for entity: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: units for entity: scan: %w", err)
	}
	return ids, nil
}

// RecordMention implements [memory.Store].
func (s *Store) RecordMention(ctx context.Context, unitID, entityID string) error {
	const q = `
		INSERT INTO entity_mentions (unit_id, entity_id)
		VALUES ($1, $2)
		ON CONFLICT (unit_id, entity_id) DO NOTHING`
	if _, err := s.pool.Exec(ctx, q, unitID, entityID); err != nil {
		return fmt.Errorf("postgres: record mention: %w", err)
	}
	return nil
}

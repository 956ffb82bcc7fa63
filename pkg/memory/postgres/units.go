package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/MrWong99/glyphoxa/pkg/memory"
)

// InsertUnit implements [memory.Store]. It fails with a [memory.Conflict]
// kind only on an exact-ID collision; content-level deduplication is the
// Ingestor's responsibility.
func (s *Store) InsertUnit(ctx context.Context, unit memory.MemoryUnit) (string, error) {
	id := unit.ID
	if id == "" {
		id = uuid.NewString()
	}

	const q = `
		INSERT INTO memory_units
		    (id, agent_id, fact_type, text, context, document_id, event_date, created_at, access_count, embedding_vec)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), 0, $8)`

	_, err := s.pool.Exec(ctx, q,
		id, unit.AgentID, string(unit.FactType), unit.Text, unit.Context, unit.DocumentID,
		unit.EventDate, pgvector.NewVector(unit.Embedding),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", memory.NewError(memory.KindConflict, "postgres.insert_unit", err)
		}
		return "", fmt.Errorf("postgres: insert unit: %w", err)
	}
	return id, nil
}

// GetUnit implements [memory.Store]. Returns (nil, nil) when absent.
func (s *Store) GetUnit(ctx context.Context, id string) (*memory.MemoryUnit, error) {
	const q = `
		SELECT id, agent_id, fact_type, text, context, document_id, event_date, created_at, access_count, embedding_vec
		FROM   memory_units
		WHERE  id = $1`

	row := s.pool.QueryRow(ctx, q, id)
	u, err := scanUnit(row)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("postgres: get unit: %w", err)
	}
	return &u, nil
}

// DeleteUnit implements [memory.Store]. Cascades to entity_mentions and
// links via foreign-key ON DELETE CASCADE.
func (s *Store) DeleteUnit(ctx context.Context, id string) error {
	const q = `DELETE FROM memory_units WHERE id = $1`
	if _, err := s.pool.Exec(ctx, q, id); err != nil {
		return fmt.Errorf("postgres: delete unit: %w", err)
	}
	return nil
}

// DeleteAgent implements [memory.Store].
func (s *Store) DeleteAgent(ctx context.Context, agentID string) error {
	const qUnits = `DELETE FROM memory_units WHERE agent_id = $1`
	if _, err := s.pool.Exec(ctx, qUnits, agentID); err != nil {
		return fmt.Errorf("postgres: delete agent units: %w", err)
	}
	const qEntities = `DELETE FROM entities WHERE agent_id = $1`
	if _, err := s.pool.Exec(ctx, qEntities, agentID); err != nil {
		return fmt.Errorf("postgres: delete agent entities: %w", err)
	}
	return nil
}

// UnitsByDocument implements [memory.Store].
func (s *Store) UnitsByDocument(ctx context.Context, agentID, documentID string) ([]string, error) {
	const q = `SELECT id FROM memory_units WHERE agent_id = $1 AND document_id = $2`
	rows, err := s.pool.Query(ctx, q, agentID, documentID)
	if err != nil {
		return nil, fmt.Errorf("postgres: units by document: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: units by document: scan: %w", err)
	}
	return ids, nil
}

// UnitsInDateRange implements [memory.Store]. Backed by the
// (agent_id, fact_type, event_date) index's leading columns.
func (s *Store) UnitsInDateRange(ctx context.Context, agentID string, start, end time.Time, excludeID string) ([]string, error) {
	const q = `
		SELECT id FROM memory_units
		WHERE  agent_id = $1 AND event_date BETWEEN $2 AND $3 AND id != $4`
	rows, err := s.pool.Query(ctx, q, agentID, start, end, excludeID)
	if err != nil {
		return nil, fmt.Errorf("postgres: units in date range: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("postgres: units in date range: scan: %w", err)
	}
	return ids, nil
}

// IncrementAccess implements [memory.Store]. Best-effort, eventually
// consistent: a single batched UPDATE.
func (s *Store) IncrementAccess(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	const q = `UPDATE memory_units SET access_count = access_count + 1 WHERE id = ANY($1::text[])`
	if _, err := s.pool.Exec(ctx, q, ids); err != nil {
		return fmt.Errorf("postgres: increment access: %w", err)
	}
	return nil
}

// unitRow is the subset of pgx row-scanning methods shared by QueryRow and
// the rows iterator, letting scanUnit serve both GetUnit and batch scans.
type unitRow interface {
	Scan(dest ...any) error
}

func scanUnit(row unitRow) (memory.MemoryUnit, error) {
	var (
		u        memory.MemoryUnit
		factType string
		vec      pgvector.Vector
	)
	if err := row.Scan(
		&u.ID, &u.AgentID, &factType, &u.Text, &u.Context, &u.DocumentID,
		&u.EventDate, &u.CreatedAt, &u.AccessCount, &vec,
	); err != nil {
		return memory.MemoryUnit{}, err
	}
	u.FactType = memory.FactType(factType)
	u.Embedding = vec.Slice()
	return u, nil
}

// isUniqueViolation reports whether err is a PostgreSQL unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return pgErrorCode(err) == "23505"
}

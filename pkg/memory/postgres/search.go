package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/MrWong99/glyphoxa/pkg/memory"
)

// VectorKNN implements [memory.Store]. similarity = 1 - cosine_distance,
// thresholded by minSim before the k-limit is applied; ties broken by ID
// ascending via the secondary ORDER BY key.
func (s *Store) VectorKNN(ctx context.Context, agentID string, factType memory.FactType, queryVec []float32, k int, minSim float64) ([]memory.ScoredID, error) {
	return s.vectorKNN(ctx, agentID, factType, queryVec, k, minSim, nil, nil)
}

// VectorKNNInRange implements [memory.Store].
func (s *Store) VectorKNNInRange(ctx context.Context, agentID string, factType memory.FactType, queryVec []float32, k int, minSim float64, start, end time.Time) ([]memory.ScoredID, error) {
	return s.vectorKNN(ctx, agentID, factType, queryVec, k, minSim, &start, &end)
}

func (s *Store) vectorKNN(ctx context.Context, agentID string, factType memory.FactType, queryVec []float32, k int, minSim float64, start, end *time.Time) ([]memory.ScoredID, error) {
	if k <= 0 {
		return nil, nil
	}
	vec := pgvector.NewVector(queryVec)

	args := []any{agentID, vec}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	vecArg := "$2"

	conditions := []string{"agent_id = $1"}
	if factType != "" {
		conditions = append(conditions, "fact_type = "+next(string(factType)))
	}
	if start != nil && end != nil {
		conditions = append(conditions, "event_date BETWEEN "+next(*start)+" AND "+next(*end))
	}

	// similarity is a computed expression, so the minSim threshold is
	// applied in an outer query over a CTE rather than a WHERE clause
	// referencing the alias directly.
	q := fmt.Sprintf(`
		WITH scored AS (
		    SELECT id, 1 - (embedding_vec <=> %s) AS similarity
		    FROM   memory_units
		    WHERE  %s
		)
		SELECT id, similarity
		FROM   scored
		WHERE  similarity >= %s
		ORDER  BY similarity DESC, id ASC
		LIMIT  %d`, vecArg, strings.Join(conditions, " AND "), next(minSim), k)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: vector knn: %w", err)
	}
	return collectScoredIDs(rows)
}

// BM25Search implements [memory.Store] using PostgreSQL's native full-text
// engine (plainto_tsquery / ts_rank_cd) over the generated search_vec
// column — the corpus's established way of reaching an English-stemmed
// inverted index through the same already-wired pgx driver (see
// DESIGN.md for why this is preferred over a hand-rolled BM25 scorer).
func (s *Store) BM25Search(ctx context.Context, agentID string, factType memory.FactType, queryTokens []string, k int) ([]memory.ScoredID, error) {
	if k <= 0 || len(queryTokens) == 0 {
		return nil, nil
	}
	queryText := strings.Join(queryTokens, " ")

	args := []any{agentID, queryText}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := []string{"agent_id = $1", "search_vec @@ plainto_tsquery('english', $2)"}
	if factType != "" {
		conditions = append(conditions, "fact_type = "+next(string(factType)))
	}
	args = append(args, k)
	limitArg := fmt.Sprintf("$%d", len(args))

	q := fmt.Sprintf(`
		SELECT id, ts_rank_cd(search_vec, plainto_tsquery('english', $2)) AS score
		FROM   memory_units
		WHERE  %s
		ORDER  BY score DESC, id ASC
		LIMIT  %s`, strings.Join(conditions, " AND "), limitArg)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: bm25 search: %w", err)
	}
	return collectScoredIDs(rows)
}

func collectScoredIDs(rows pgx.Rows) ([]memory.ScoredID, error) {
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.ScoredID, error) {
		var s memory.ScoredID
		if err := row.Scan(&s.ID, &s.Score); err != nil {
			return memory.ScoredID{}, err
		}
		return s, nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan scored ids: %w", err)
	}
	return out, nil
}

package memory

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MrWong99/glyphoxa/internal/observe"
)

// embedRetries bounds the bounded-backoff retry policy for embedding calls
// during ingestion (§4.4 step 2b).
const embedRetries = 3

// coMentionWindow bounds how far around a fact's event date the ingestor
// looks for other units to seed the EntityResolver's co-occurrence signal
// (scenario: mentions sharing a co-mentioned entity "within a day").
const coMentionWindow = 24 * time.Hour

// FactOutcome reports what happened to a single extracted fact during
// ingestion, for callers that want per-fact visibility into a best-effort
// batch.
type FactOutcome struct {
	Text      string
	UnitID    string
	Deduped   bool
	Err       error
}

// IngestResult is the outcome of one [Ingestor.Ingest] call.
type IngestResult struct {
	Facts []FactOutcome
}

// Ingestor orchestrates the write path: extract narrative facts from raw
// content, embed and dedupe each one, resolve its entity mentions, insert
// it, and build its links — per §4.4. Extraction is best-effort at the
// per-fact granularity.
type Ingestor struct {
	store     Store
	extractor FactExtractor
	embedder  Embedder
	resolver  *EntityResolver
	linker    *LinkBuilder
	log       *slog.Logger
	metrics   *observe.Metrics
}

// NewIngestor constructs an [Ingestor]. log may be nil, in which case
// [slog.Default] is used.
func NewIngestor(store Store, extractor FactExtractor, embedder Embedder, resolver *EntityResolver, linker *LinkBuilder, log *slog.Logger) *Ingestor {
	if log == nil {
		log = slog.Default()
	}
	return &Ingestor{store: store, extractor: extractor, embedder: embedder, resolver: resolver, linker: linker, log: log}
}

// WithIngestorMetrics attaches an [observe.Metrics] recorder to in.
func (in *Ingestor) WithIngestorMetrics(m *observe.Metrics) *Ingestor {
	in.metrics = m
	return in
}

// Ingest decomposes content into narrative facts and writes each one
// through the full ingest pipeline. When documentID is non-empty and
// already has units on record, those units (and their links/mentions) are
// deleted first — upsert-by-document semantics (§4.4 step 3).
func (in *Ingestor) Ingest(ctx context.Context, agentID, content string, eventDate time.Time, documentID string) (*IngestResult, error) {
	start := time.Now()
	defer func() {
		if in.metrics != nil {
			in.metrics.IngestDuration.Record(ctx, time.Since(start).Seconds())
		}
	}()

	if in.extractor == nil {
		return nil, NewError(KindExtractorUnavailable, "ingestor.ingest", fmt.Errorf("no fact extractor configured"))
	}

	if documentID != "" {
		existing, err := in.store.UnitsByDocument(ctx, agentID, documentID)
		if err != nil {
			return nil, fmt.Errorf("ingestor: lookup document: %w", err)
		}
		for _, id := range existing {
			if err := in.store.DeleteUnit(ctx, id); err != nil {
				return nil, fmt.Errorf("ingestor: delete prior document unit: %w", err)
			}
		}
	}

	facts, err := in.extractor.Extract(ctx, content)
	if err != nil {
		return nil, NewError(KindExtractorUnavailable, "ingestor.ingest", err)
	}

	result := &IngestResult{}
	for _, f := range facts {
		outcome := in.ingestFact(ctx, agentID, f, eventDate, documentID)
		result.Facts = append(result.Facts, outcome)
		if outcome.Err != nil {
			in.log.WarnContext(ctx, "ingest fact failed", "agent_id", agentID, "error", outcome.Err)
			continue
		}
		if in.metrics != nil {
			if outcome.Deduped {
				in.metrics.FactsDeduped.Add(ctx, 1)
			} else {
				in.metrics.FactsIngested.Add(ctx, 1)
			}
		}
	}
	return result, nil
}

func (in *Ingestor) ingestFact(ctx context.Context, agentID string, f ExtractedFact, eventDate time.Time, documentID string) FactOutcome {
	outcome := FactOutcome{Text: f.Text}

	vec, err := in.embedWithRetry(ctx, withReadableDate(f.Text, eventDate))
	if err != nil {
		outcome.Err = NewError(KindEmbeddingUnavailable, "ingestor.ingest_fact", err)
		return outcome
	}

	if existingID, deduped, err := in.dedupeProbe(ctx, agentID, f, vec); err != nil {
		outcome.Err = fmt.Errorf("ingestor: dedupe probe: %w", err)
		return outcome
	} else if deduped {
		outcome.UnitID = existingID
		outcome.Deduped = true
		return outcome
	}

	// coMentioned seeds the EntityResolver's co-occurrence signal with units
	// already on record within a day of this fact's event date, growing as
	// mentions within this same fact resolve to entities with their own
	// unit history — so a later mention in the same fact benefits from an
	// earlier one's co-occurring units too.
	coMentioned, err := in.store.UnitsInDateRange(ctx, agentID, eventDate.Add(-coMentionWindow), eventDate.Add(coMentionWindow), "")
	if err != nil {
		outcome.Err = fmt.Errorf("ingestor: co-mention lookup: %w", err)
		return outcome
	}
	seenUnit := make(map[string]struct{}, len(coMentioned))
	for _, id := range coMentioned {
		seenUnit[id] = struct{}{}
	}

	entityIDs := make([]string, 0, len(f.Mentions))
	unitID := uuid.NewString()
	for _, m := range f.Mentions {
		eid, err := in.resolver.Resolve(ctx, MentionInput{
			AgentID:         agentID,
			SurfaceForm:     m.SurfaceForm,
			Type:            m.Type,
			ContextUnitID:   unitID,
			EventDate:       eventDate,
			CoMentionedUnit: coMentioned,
		})
		if err != nil {
			outcome.Err = fmt.Errorf("ingestor: resolve entity %q: %w", m.SurfaceForm, err)
			return outcome
		}
		entityIDs = append(entityIDs, eid)

		units, err := in.store.UnitsForEntity(ctx, eid)
		if err != nil {
			outcome.Err = fmt.Errorf("ingestor: lookup units for entity %q: %w", eid, err)
			return outcome
		}
		for _, id := range units {
			if _, ok := seenUnit[id]; !ok {
				seenUnit[id] = struct{}{}
				coMentioned = append(coMentioned, id)
			}
		}
	}

	unit := MemoryUnit{
		ID:         unitID,
		AgentID:    agentID,
		FactType:   f.FactType,
		Text:       f.Text,
		DocumentID: documentID,
		EventDate:  eventDate,
		CreatedAt:  eventDate,
		Embedding:  vec,
	}
	insertedID, err := in.store.InsertUnit(ctx, unit)
	if err != nil {
		outcome.Err = fmt.Errorf("ingestor: insert unit: %w", err)
		return outcome
	}
	unit.ID = insertedID
	outcome.UnitID = insertedID

	for _, eid := range entityIDs {
		if err := in.store.RecordMention(ctx, insertedID, eid); err != nil {
			outcome.Err = fmt.Errorf("ingestor: record mention: %w", err)
			return outcome
		}
	}

	if err := in.linker.Build(ctx, unit, entityIDs); err != nil {
		// Link-construction failures don't roll back the unit insertion
		// (§7): the unit stays retrievable with no links, to be repaired
		// by a later background pass.
		in.log.WarnContext(ctx, "link build failed, unit inserted without links", "unit_id", insertedID, "error", err)
	}

	return outcome
}

// dedupeProbe reports whether f is a duplicate of an existing unit: the
// nearest unit of the same agent and fact type whose embedding has cosine
// similarity >= 0.95 with vec counts as a duplicate. The text hash is only
// compared against that kNN hit; there is no separate lookup by text hash,
// so a unit with identical text whose embedding scores below 0.95 is not
// treated as a duplicate.
func (in *Ingestor) dedupeProbe(ctx context.Context, agentID string, f ExtractedFact, vec []float32) (existingID string, deduped bool, err error) {
	results, err := in.store.VectorKNN(ctx, agentID, f.FactType, vec, 1, 0.95)
	if err != nil {
		return "", false, err
	}
	if len(results) > 0 {
		existing, err := in.store.GetUnit(ctx, results[0].ID)
		if err == nil && existing != nil && textHash(existing.Text) == textHash(f.Text) {
			return existing.ID, true, nil
		}
		if len(results) > 0 && results[0].Score >= 0.95 {
			return results[0].ID, true, nil
		}
	}
	return "", false, nil
}

func (in *Ingestor) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	backoff := 100 * time.Millisecond
	for attempt := 0; attempt < embedRetries; attempt++ {
		vec, err := in.embedder.Embed(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return nil, lastErr
}

func textHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func withReadableDate(text string, eventDate time.Time) string {
	return fmt.Sprintf("[%s] %s", eventDate.Format("January 2, 2006"), text)
}

package memory

import (
	"context"
	"fmt"

	"github.com/MrWong99/glyphoxa/internal/observe"
)

// LinkBuilder derives the three link classes — temporal, semantic, entity
// — for a newly inserted unit, per §4.3. The three have no ordering
// dependency between them; they run one after another against the live
// store, with no shared snapshot or transaction spanning them.
type LinkBuilder struct {
	store   Store
	window  Config
	metrics *observe.Metrics
}

// NewLinkBuilder constructs a [LinkBuilder] backed by store, using cfg's
// LinkWindow, SemanticLinkK and SemanticLinkThreshold.
func NewLinkBuilder(store Store, cfg Config) *LinkBuilder {
	return &LinkBuilder{store: store, window: cfg}
}

// WithLinkBuilderMetrics attaches an [observe.Metrics] recorder to b.
func (b *LinkBuilder) WithLinkBuilderMetrics(m *observe.Metrics) *LinkBuilder {
	b.metrics = m
	return b
}

// Build links unit u against the rest of its agent's memory, resolving
// entity IDs already attached to u via entityIDs (produced by the
// [EntityResolver] during ingest).
func (b *LinkBuilder) Build(ctx context.Context, u MemoryUnit, entityIDs []string) error {
	if err := b.buildTemporal(ctx, u); err != nil {
		return fmt.Errorf("link_builder: temporal: %w", err)
	}
	if err := b.buildSemantic(ctx, u); err != nil {
		return fmt.Errorf("link_builder: semantic: %w", err)
	}
	if err := b.buildEntity(ctx, u, entityIDs); err != nil {
		return fmt.Errorf("link_builder: entity: %w", err)
	}
	return nil
}

func (b *LinkBuilder) buildTemporal(ctx context.Context, u MemoryUnit) error {
	w := b.window.LinkWindow
	start := u.EventDate.Add(-w)
	end := u.EventDate.Add(w)
	ids, err := b.store.UnitsInDateRange(ctx, u.AgentID, start, end, u.ID)
	if err != nil {
		return err
	}
	for _, otherID := range ids {
		v, err := b.store.GetUnit(ctx, otherID)
		if err != nil || v == nil {
			continue
		}
		delta := u.EventDate.Sub(v.EventDate)
		if delta < 0 {
			delta = -delta
		}
		weight := 1 - float64(delta)/float64(w)
		if weight < 0.3 {
			weight = 0.3
		}
		if err := b.store.UpsertLink(ctx, Link{
			FromUnitID: u.ID,
			ToUnitID:   v.ID,
			Type:       LinkTemporal,
			Weight:     weight,
			Metadata:   map[string]any{"time_delta_seconds": delta.Seconds()},
		}); err != nil {
			return err
		}
		if b.metrics != nil {
			b.metrics.RecordLinkCreated(ctx, string(LinkTemporal))
		}
	}
	return nil
}

func (b *LinkBuilder) buildSemantic(ctx context.Context, u MemoryUnit) error {
	results, err := b.store.VectorKNN(ctx, u.AgentID, "", u.Embedding, b.window.SemanticLinkK, b.window.SemanticLinkThreshold)
	if err != nil {
		return err
	}
	for _, r := range results {
		if r.ID == u.ID {
			continue
		}
		if err := b.store.UpsertLink(ctx, Link{
			FromUnitID: u.ID,
			ToUnitID:   r.ID,
			Type:       LinkSemantic,
			Weight:     r.Score,
			Metadata:   map[string]any{"similarity": r.Score},
		}); err != nil {
			return err
		}
		if b.metrics != nil {
			b.metrics.RecordLinkCreated(ctx, string(LinkSemantic))
		}
	}
	return nil
}

func (b *LinkBuilder) buildEntity(ctx context.Context, u MemoryUnit, entityIDs []string) error {
	for _, eid := range entityIDs {
		units, err := b.store.UnitsForEntity(ctx, eid)
		if err != nil {
			return err
		}
		for _, other := range units {
			if other == u.ID {
				continue
			}
			if err := b.store.UpsertLink(ctx, Link{
				FromUnitID: u.ID,
				ToUnitID:   other,
				Type:       LinkEntity,
				Weight:     1.0,
				Metadata:   map[string]any{"entity_id": eid},
			}); err != nil {
				return err
			}
			if b.metrics != nil {
				b.metrics.RecordLinkCreated(ctx, string(LinkEntity))
			}
		}
	}
	return nil
}

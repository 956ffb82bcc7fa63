package memory

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/antzucaro/matchr"
)

// coOccurrenceWindow bounds how far EntityResolver looks for temporal
// proximity between a candidate's LastSeen and a mention's event date.
const coOccurrenceWindow = 180 * 24 * time.Hour

// ambiguityMargin is the score gap within which two top candidates are
// considered tied, per §4.2 step (Ambiguity).
const ambiguityMargin = 0.02

var tokenSplit = regexp.MustCompile(`[^a-z0-9]+`)

// normalizeTokens lowercases s, strips punctuation, and splits on
// whitespace/punctuation boundaries, dropping empty tokens.
func normalizeTokens(s string) []string {
	lower := strings.ToLower(s)
	parts := tokenSplit.Split(lower, -1)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func tokenSet(tokens []string) map[string]struct{} {
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// EntityResolver maps an entity mention to an existing canonical entity or
// allocates a new one, following the deterministic scoring policy in §4.2.
//
// It is safe for concurrent use; all state lives in the injected [Store].
type EntityResolver struct {
	store EntityStore
}

// NewEntityResolver constructs an [EntityResolver] backed by store.
func NewEntityResolver(store EntityStore) *EntityResolver {
	return &EntityResolver{store: store}
}

// MentionInput is the information available about an entity mention at
// resolution time.
type MentionInput struct {
	AgentID         string
	SurfaceForm     string
	Type            EntityType
	ContextUnitID   string
	EventDate       time.Time
	CoMentionedUnit []string // other unit IDs already resolved alongside this mention, for co-occurrence scoring
}

// Resolve returns the entity ID this mention should attach to, creating a
// new entity when no existing candidate scores above threshold.
func (r *EntityResolver) Resolve(ctx context.Context, in MentionInput) (string, error) {
	normSurface := tokenSet(normalizeTokens(in.SurfaceForm))
	if len(normSurface) == 0 {
		return "", NewError(KindInvalidInput, "entity_resolver.resolve", fmt.Errorf("empty surface form"))
	}

	candidates, err := r.store.CandidateEntities(ctx, in.AgentID, in.Type, setKeys(normSurface))
	if err != nil {
		return "", fmt.Errorf("entity_resolver: candidate lookup: %w", err)
	}

	coOccurring, err := r.store.CoOccurringEntityIDs(ctx, in.CoMentionedUnit)
	if err != nil {
		return "", fmt.Errorf("entity_resolver: co-occurrence lookup: %w", err)
	}

	type scored struct {
		entity     Entity
		score      float64
		nameSim    float64
		firstSeen  time.Time
	}
	var best []scored
	for _, c := range candidates {
		nameSim := maxAliasSimilarity(in.SurfaceForm, c.Aliases)
		_, coOcc := coOccurring[c.ID]
		coOccScore := 0.0
		if coOcc {
			coOccScore = 1.0
		}
		temporalProx := temporalProximity(in.EventDate, c.LastSeen)
		s := 0.5*nameSim + 0.3*coOccScore + 0.2*temporalProx
		best = append(best, scored{entity: c, score: s, nameSim: nameSim, firstSeen: c.FirstSeen})
	}

	var top, second *scored
	for i := range best {
		if top == nil || best[i].score > top.score {
			second = top
			top = &best[i]
		} else if second == nil || best[i].score > second.score {
			second = &best[i]
		}
	}

	if top != nil {
		threshold := 0.6
		if in.Type == EntityPerson && top.nameSim == 1.0 {
			threshold = 0.4
		}
		if top.score >= threshold {
			winner := top
			if second != nil && math.Abs(top.score-second.score) <= ambiguityMargin {
				if second.firstSeen.Before(top.firstSeen) {
					winner = second
				}
			}
			if err := r.store.UpdateEntityAliasesAndLastSeen(ctx, winner.entity.ID, in.SurfaceForm, in.EventDate); err != nil {
				return "", fmt.Errorf("entity_resolver: update aliases: %w", err)
			}
			return winner.entity.ID, nil
		}
	}

	id, err := r.store.InsertEntity(ctx, Entity{
		AgentID:       in.AgentID,
		Type:          in.Type,
		CanonicalName: in.SurfaceForm,
		Aliases:       []string{in.SurfaceForm},
		FirstSeen:     in.EventDate,
		LastSeen:      in.EventDate,
	})
	if err != nil {
		return "", fmt.Errorf("entity_resolver: insert entity: %w", err)
	}
	return id, nil
}

// maxAliasSimilarity returns the maximum Jaro-Winkler similarity between
// surface and any of aliases, normalized edit similarity in [0,1].
func maxAliasSimilarity(surface string, aliases []string) float64 {
	best := 0.0
	ls := strings.ToLower(surface)
	for _, a := range aliases {
		sim := matchr.JaroWinkler(ls, strings.ToLower(a), true)
		if sim > best {
			best = sim
		}
	}
	return best
}

// temporalProximity scores how close event is to last, 1 at zero distance
// decaying linearly to 0 at coOccurrenceWindow and beyond.
func temporalProximity(event, last time.Time) float64 {
	if last.IsZero() {
		return 0
	}
	delta := event.Sub(last)
	if delta < 0 {
		delta = -delta
	}
	frac := float64(delta) / float64(coOccurrenceWindow)
	if frac > 1 {
		frac = 1
	}
	return 1 - frac
}

func setKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/MrWong99/glyphoxa/pkg/memory"
	"github.com/MrWong99/glyphoxa/pkg/memory/mock"
)

func TestEntityResolver_CoOccurrenceResolvesSameEntity(t *testing.T) {
	store := &mock.Store{
		CandidateEntitiesResult: []memory.Entity{
			{ID: "e1", Type: memory.EntityOrg, CanonicalName: "Google", Aliases: []string{"Google"}},
		},
		CoOccurringEntityIDsResult: map[string]struct{}{"e1": {}},
		InsertEntityResult:         "should-not-be-used",
	}
	r := memory.NewEntityResolver(store)

	id, err := r.Resolve(context.Background(), memory.MentionInput{
		AgentID:         "agent1",
		SurfaceForm:     "Google",
		Type:            memory.EntityOrg,
		EventDate:       time.Now(),
		CoMentionedUnit: []string{"unit-mentioning-google"},
	})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if id != "e1" {
		t.Errorf("Resolve() = %q, want %q (exact-name match + co-occurrence should clear threshold)", id, "e1")
	}
	if got := store.CallCount("InsertEntity"); got != 0 {
		t.Errorf("InsertEntity called %d times, want 0", got)
	}
	if got := store.CallCount("UpdateEntityAliasesAndLastSeen"); got != 1 {
		t.Errorf("UpdateEntityAliasesAndLastSeen called %d times, want 1", got)
	}
}

func TestEntityResolver_NoCoOccurrenceCreatesNewEntity(t *testing.T) {
	store := &mock.Store{
		CandidateEntitiesResult: []memory.Entity{
			{ID: "e1", Type: memory.EntityOrg, CanonicalName: "Google", Aliases: []string{"Google"}},
		},
		// No co-occurrence hit and a zero LastSeen (temporal proximity 0):
		// exact name match alone (0.5) falls short of the 0.6 non-person
		// threshold, per scenario 4's "no co-mentions" half.
		InsertEntityResult: "e2",
	}
	r := memory.NewEntityResolver(store)

	id, err := r.Resolve(context.Background(), memory.MentionInput{
		AgentID:     "agent1",
		SurfaceForm: "Google",
		Type:        memory.EntityOrg,
		EventDate:   time.Now(),
	})
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if id != "e2" {
		t.Errorf("Resolve() = %q, want new entity ID %q", id, "e2")
	}
	if got := store.CallCount("InsertEntity"); got != 1 {
		t.Errorf("InsertEntity called %d times, want 1", got)
	}
}

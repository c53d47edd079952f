package lottery

import (
	"context"
	"testing"

	"github.com/tripdraw/tripdraw/pkg/store"
)

func TestSeparationGraphCoversAllParticipants(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	seedParticipant(t, st, 1, "Alice", AffiliationMITGrad)
	seedParticipant(t, st, 2, "Bert", AffiliationMITUndergrad)
	seedParticipant(t, st, 3, "Carol", AffiliationNonAffiliate)
	separate(t, st, 1, 1, 2)
	separate(t, st, 2, 2, 3)

	g, err := SeparationGraph(ctx, st)
	if err != nil {
		t.Fatalf("SeparationGraph() error: %v", err)
	}

	adjacency := g.Current()
	if len(adjacency) != 2 {
		t.Fatalf("got %d initiators, want 2", len(adjacency))
	}
	if got := adjacency[1]; len(got) != 1 || got[0] != 2 {
		t.Errorf("initiator 1 blocks %v, want [2]", got)
	}
	if got := adjacency[2]; len(got) != 1 || got[0] != 3 {
		t.Errorf("initiator 2 blocks %v, want [3]", got)
	}

	affected := g.Affected()
	if len(affected) != 3 {
		t.Fatalf("got %d affected, want 3", len(affected))
	}
	if affected[0].Name != "Alice" || affected[1].Name != "Bert" || affected[2].Name != "Carol" {
		t.Errorf("Affected() order = %v", affected)
	}
}

func TestSeparationGraphSkipsUnknownParticipants(t *testing.T) {
	st := store.NewMemoryStore()
	ctx := context.Background()

	seedParticipant(t, st, 1, "Alice", AffiliationMITGrad)
	// Recipient 99 was never created; the request must not surface.
	separate(t, st, 1, 1, 99)

	g, err := SeparationGraph(ctx, st)
	if err != nil {
		t.Fatalf("SeparationGraph() error: %v", err)
	}
	if !g.Empty() {
		t.Errorf("graph should be empty, got %v", g.Current())
	}
}

func TestSeparationGraphEmptyStore(t *testing.T) {
	st := store.NewMemoryStore()

	g, err := SeparationGraph(context.Background(), st)
	if err != nil {
		t.Fatalf("SeparationGraph() error: %v", err)
	}
	if !g.Empty() {
		t.Errorf("graph should be empty, got %v", g.Current())
	}
}

package separation

import (
	"slices"
	"testing"
)

// six participants reused across graph tests, identified a..f
var (
	parA = Participant{ID: 1, Name: "Ada"}
	parB = Participant{ID: 2, Name: "Bob"}
	parC = Participant{ID: 3, Name: "Cal"}
	parD = Participant{ID: 4, Name: "Dee"}
	parE = Participant{ID: 5, Name: "Eli"}
	parF = Participant{ID: 6, Name: "Fay"}
)

func rel(initiator, recipient Participant) Relation {
	return Relation{Initiator: initiator, Recipient: recipient}
}

func mustCycle(t *testing.T, members ...Participant) *Cycle {
	t.Helper()
	c, err := NewCycle(members)
	if err != nil {
		t.Fatalf("NewCycle() error = %v", err)
	}
	return c
}

// assertCycles fails unless got matches want element-wise under cycle
// equality (rotations allowed).
func assertCycles(t *testing.T, got []*Cycle, want ...*Cycle) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d cycles, want %d: %v", len(got), len(want), got)
	}
	for i := range got {
		if !got[i].Equal(want[i]) {
			t.Errorf("cycle %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestNewGraph_NoBlocks(t *testing.T) {
	g := NewGraph([]Participant{parA, parB}, nil)

	if !g.Empty() {
		t.Errorf("Empty() = false, want true")
	}
	if got := g.IsolatedCycles(parA); len(got) != 0 {
		t.Errorf("IsolatedCycles(a) = %v, want none", got)
	}
	if got := g.Affected(); len(got) != 0 {
		t.Errorf("Affected() = %v, want none", got)
	}
}

func TestNewGraph_FiltersOutsideWorkingSet(t *testing.T) {
	// Only c→a survives: b is outside the working set, so both edges
	// touching b are invisible.
	relations := []Relation{rel(parA, parB), rel(parB, parC), rel(parC, parA)}
	g := NewGraph([]Participant{parA, parC}, relations)

	want := map[int64][]int64{parC.ID: {parA.ID}}
	got := g.Current()
	if len(got) != 1 || !slices.Equal(got[parC.ID], want[parC.ID]) {
		t.Errorf("Current() = %v, want %v", got, want)
	}
}

func TestNewGraph_IgnoresSelfRequests(t *testing.T) {
	g := NewGraph([]Participant{parA}, []Relation{rel(parA, parA)})

	if !g.Empty() {
		t.Errorf("Empty() = false, want true (self-requests carry no edge)")
	}
}

func TestIsolatedCycles_MutualBlock(t *testing.T) {
	g := NewGraph(
		[]Participant{parA, parB},
		[]Relation{rel(parA, parB), rel(parB, parA)},
	)
	want := mustCycle(t, parA, parB)

	assertCycles(t, g.IsolatedCycles(parA), want)
	assertCycles(t, g.IsolatedCycles(parB), want)

	g.Remove(parA)
	if !g.Empty() {
		t.Errorf("Empty() = false after Remove(a), want true")
	}
}

func TestIsolatedCycles_Triangle(t *testing.T) {
	g := NewGraph(
		[]Participant{parA, parB, parC},
		[]Relation{rel(parA, parB), rel(parB, parC), rel(parC, parA)},
	)
	want := mustCycle(t, parA, parB, parC)

	for _, p := range []Participant{parA, parB, parC} {
		assertCycles(t, g.IsolatedCycles(p), want)
	}

	g.Remove(parA)

	wantGraph := map[int64][]int64{parB.ID: {parC.ID}}
	got := g.Current()
	if len(got) != 1 || !slices.Equal(got[parB.ID], wantGraph[parB.ID]) {
		t.Errorf("Current() after Remove(a) = %v, want %v", got, wantGraph)
	}
	for _, p := range []Participant{parB, parC} {
		if cycles := g.IsolatedCycles(p); len(cycles) != 0 {
			t.Errorf("IsolatedCycles(%v) = %v after Remove(a), want none", p, cycles)
		}
	}
}

func TestIsolatedCycles_TwoFusedCycles(t *testing.T) {
	// a→b→c→d→e→a with a chord e→c: two loops share the segment c→d→e.
	g := NewGraph(
		[]Participant{parA, parB, parC, parD, parE},
		[]Relation{
			rel(parA, parB), rel(parB, parC), rel(parC, parD),
			rel(parD, parE), rel(parE, parA), rel(parE, parC),
		},
	)

	for _, p := range []Participant{parA, parB, parC, parD, parE} {
		if cycles := g.IsolatedCycles(p); len(cycles) == 0 {
			t.Errorf("IsolatedCycles(%v) = none, want at least one loop", p)
		}
	}

	// c, d and e sit on both loops.
	five := mustCycle(t, parA, parB, parC, parD, parE)
	three := mustCycle(t, parC, parD, parE)
	assertCycles(t, g.IsolatedCycles(parC), five, three)

	// Removing e breaks both loops at once.
	g.Remove(parE)
	for _, p := range []Participant{parA, parB, parC, parD} {
		if cycles := g.IsolatedCycles(p); len(cycles) != 0 {
			t.Errorf("IsolatedCycles(%v) = %v after Remove(e), want none", p, cycles)
		}
	}
}

func TestIsolatedCycles_Tree(t *testing.T) {
	// a→b, b→c, b→d: no loops at all, c and d are termini.
	g := NewGraph(
		[]Participant{parA, parB, parC, parD},
		[]Relation{rel(parA, parB), rel(parB, parC), rel(parB, parD)},
	)

	for _, p := range []Participant{parA, parB, parC, parD} {
		if cycles := g.IsolatedCycles(p); len(cycles) != 0 {
			t.Errorf("IsolatedCycles(%v) = %v, want none", p, cycles)
		}
	}
}

func TestIsolatedCycles_TerminusSuppressesCycle(t *testing.T) {
	// The loop a→b→c→a is real, but b also blocks the terminus d. As long
	// as d is unhandled, everybody can wait: no cycle is isolated.
	g := NewGraph(
		[]Participant{parA, parB, parC, parD},
		[]Relation{rel(parA, parB), rel(parB, parC), rel(parB, parD), rel(parC, parA)},
	)

	for _, p := range []Participant{parA, parB, parC, parD} {
		if cycles := g.IsolatedCycles(p); len(cycles) != 0 {
			t.Errorf("IsolatedCycles(%v) = %v with terminus d present, want none", p, cycles)
		}
	}

	g.Remove(parD)

	assertCycles(t, g.IsolatedCycles(parA), mustCycle(t, parA, parB, parC))
}

func TestIsolatedCycles_BystanderOutsideLoop(t *testing.T) {
	// d blocks into the loop a→b→c→a but sits on no loop itself. Every
	// participant d can reach blocks somebody, yet none of the loops found
	// contain d, so d is not trapped.
	g := NewGraph(
		[]Participant{parA, parB, parC, parD},
		[]Relation{rel(parA, parB), rel(parB, parC), rel(parC, parA), rel(parD, parB)},
	)

	if cycles := g.IsolatedCycles(parD); len(cycles) != 0 {
		t.Errorf("IsolatedCycles(d) = %v, want none (d is not on the loop)", cycles)
	}

	want := mustCycle(t, parA, parB, parC)
	for _, p := range []Participant{parA, parB, parC} {
		assertCycles(t, g.IsolatedCycles(p), want)
	}
}

func TestIsolatedCycles_UninvolvedParticipant(t *testing.T) {
	g := NewGraph(
		[]Participant{parA, parB, parF},
		[]Relation{rel(parA, parB), rel(parB, parA)},
	)

	if cycles := g.IsolatedCycles(parF); len(cycles) != 0 {
		t.Errorf("IsolatedCycles(f) = %v for an uninvolved participant, want none", cycles)
	}
}

func TestRemove_Cascades(t *testing.T) {
	g := NewGraph(
		[]Participant{parA, parB, parC},
		[]Relation{rel(parA, parB), rel(parB, parA), rel(parC, parA)},
	)

	g.Remove(parA)

	got := g.Current()
	if len(got) != 0 {
		t.Errorf("Current() after Remove(a) = %v, want empty", got)
	}
	if !g.Empty() {
		t.Errorf("Empty() = false, want true (b and c blocked only a)")
	}
}

func TestRemove_Idempotent(t *testing.T) {
	g := NewGraph(
		[]Participant{parA, parB, parC},
		[]Relation{rel(parA, parB), rel(parB, parC), rel(parC, parA)},
	)

	g.Remove(parA)
	once := g.Current()
	g.Remove(parA)
	twice := g.Current()

	if len(once) != len(twice) {
		t.Fatalf("second Remove(a) changed the graph: %v vs %v", once, twice)
	}
	for id, want := range once {
		if !slices.Equal(twice[id], want) {
			t.Errorf("second Remove(a) changed entry %d: %v vs %v", id, twice[id], want)
		}
	}
}

func TestRemove_UnknownParticipant(t *testing.T) {
	g := NewGraph([]Participant{parA, parB}, []Relation{rel(parA, parB)})

	g.Remove(parF) // never in the working set

	want := map[int64][]int64{parA.ID: {parB.ID}}
	got := g.Current()
	if len(got) != 1 || !slices.Equal(got[parA.ID], want[parA.ID]) {
		t.Errorf("Current() = %v after removing a stranger, want %v", got, want)
	}
}

func TestAffected_InitiatorsThenRecipients(t *testing.T) {
	// c and e initiate; b and a only receive. Initiators come first, each
	// group in ascending ID order, nobody twice.
	g := NewGraph(
		[]Participant{parA, parB, parC, parE},
		[]Relation{rel(parE, parC), rel(parC, parB), rel(parE, parA)},
	)

	want := []Participant{parC, parE, parA, parB}
	got := g.Affected()
	if !slices.Equal(got, want) {
		t.Errorf("Affected() = %v, want %v", got, want)
	}
}

func TestCurrent_ReturnsCopy(t *testing.T) {
	g := NewGraph([]Participant{parA, parB}, []Relation{rel(parA, parB)})

	snapshot := g.Current()
	snapshot[parA.ID] = nil
	delete(snapshot, parA.ID)

	if g.Empty() {
		t.Errorf("mutating the Current() snapshot reached the graph")
	}
	if got := g.Current(); !slices.Equal(got[parA.ID], []int64{parB.ID}) {
		t.Errorf("Current() = %v, want a→b intact", got)
	}
}

func TestMember_Lookup(t *testing.T) {
	g := NewGraph([]Participant{parA}, nil)

	if p, ok := g.Member(parA.ID); !ok || p.Name != "Ada" {
		t.Errorf("Member(%d) = %v, %t, want Ada, true", parA.ID, p, ok)
	}
	if _, ok := g.Member(999); ok {
		t.Errorf("Member(999) = _, true, want false")
	}
}

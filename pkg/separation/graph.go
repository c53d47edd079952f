package separation

import (
	"maps"
	"slices"
)

// Relation is one directed block request: the initiator asked never to share
// a trip with the recipient. Requests are one-way; a mutual block is two
// relations. Filtering relations down to the ones relevant for a lottery
// pass is the caller's job, except that [NewGraph] drops anything naming a
// participant outside its working set.
type Relation struct {
	Initiator Participant
	Recipient Participant
}

// Graph tracks which block requests still matter while a lottery pass hands
// out trip spots. Edges run initiator → recipient and exist only when both
// endpoints are members of the working set the graph was built over.
//
// The allocator drives the graph: query [Graph.IsolatedCycles] for the next
// candidate in priority order, place somebody, then [Graph.Remove] everyone
// placed. Once [Graph.Empty] reports true, no request can influence
// placement anymore.
//
// Graph is not safe for concurrent use.
type Graph struct {
	blocks  map[int64]map[int64]struct{} // initiator ID → blocked recipient IDs, sets never empty
	members map[int64]Participant        // working set, kept for rendering and cycle construction
}

// NewGraph folds relations into an adjacency over the working set.
// Relations naming anyone outside the set are invisible to the graph, as
// are self-referential requests. Participants with no surviving edges are
// simply absent from the adjacency.
func NewGraph(participants []Participant, relations []Relation) *Graph {
	g := &Graph{
		blocks:  make(map[int64]map[int64]struct{}),
		members: make(map[int64]Participant, len(participants)),
	}
	for _, p := range participants {
		g.members[p.ID] = p
	}
	for _, r := range relations {
		if r.Initiator.ID == r.Recipient.ID {
			continue
		}
		if _, ok := g.members[r.Initiator.ID]; !ok {
			continue
		}
		if _, ok := g.members[r.Recipient.ID]; !ok {
			continue
		}
		set := g.blocks[r.Initiator.ID]
		if set == nil {
			set = make(map[int64]struct{})
			g.blocks[r.Initiator.ID] = set
		}
		set[r.Recipient.ID] = struct{}{}
	}
	return g
}

// Empty reports whether no block edges remain.
func (g *Graph) Empty() bool { return len(g.blocks) == 0 }

// Member returns the working-set participant with the given ID.
func (g *Graph) Member(id int64) (Participant, bool) {
	p, ok := g.members[id]
	return p, ok
}

// Current returns a copy of the adjacency with recipient IDs sorted
// ascending. Mutating the result never affects the graph.
func (g *Graph) Current() map[int64][]int64 {
	out := make(map[int64][]int64, len(g.blocks))
	for id, set := range g.blocks {
		out[id] = slices.Sorted(maps.Keys(set))
	}
	return out
}

// Affected returns every participant the graph has an opinion about: all
// initiators, then every recipient that is not itself an initiator. Nobody
// is listed twice. Order is deterministic: ascending ID within each of the
// two groups.
func (g *Graph) Affected() []Participant {
	listed := make(map[int64]bool, len(g.blocks))
	var out []Participant
	for _, id := range slices.Sorted(maps.Keys(g.blocks)) {
		listed[id] = true
		out = append(out, g.members[id])
	}
	var recipients []int64
	for _, set := range g.blocks {
		for id := range set {
			if !listed[id] {
				listed[id] = true
				recipients = append(recipients, id)
			}
		}
	}
	slices.Sort(recipients)
	for _, id := range recipients {
		out = append(out, g.members[id])
	}
	return out
}

// Remove drops p from the graph: its own outgoing edges vanish, every other
// initiator stops blocking it, and initiators left blocking nobody are
// dropped entirely, in the same call. Removing a participant the graph does
// not know is a no-op, and removal is idempotent.
func (g *Graph) Remove(p Participant) { g.RemoveID(p.ID) }

// RemoveID is [Graph.Remove] by bare identity.
func (g *Graph) RemoveID(id int64) {
	delete(g.blocks, id)
	for initiator, set := range g.blocks {
		delete(set, id)
		if len(set) == 0 {
			delete(g.blocks, initiator)
		}
	}
}

// IsolatedCycles reports the block loops start is inescapably part of.
//
// A depth-first walk follows block edges out of start. Whenever the walk
// reaches a participant who blocks nobody (a terminus), the component is
// resolvable: handling that terminus first unwinds everyone else, so no
// forced break is needed and the result is empty no matter how many loops
// exist. Only when every reachable participant blocks somebody do the loops
// passing through start get returned.
//
// A start participant who blocks nobody trivially has no cycles. Recipients
// are walked in ascending ID order, so results are deterministic; their
// order carries no meaning.
func (g *Graph) IsolatedCycles(start Participant) []*Cycle {
	return g.IsolatedCyclesID(start.ID)
}

// IsolatedCyclesID is [Graph.IsolatedCycles] by bare identity.
func (g *Graph) IsolatedCyclesID(start int64) []*Cycle {
	if _, ok := g.blocks[start]; !ok {
		return nil
	}

	seen := map[int64]bool{start: true}
	terminus := false
	var path []int64
	var found []*Cycle

	var dfs func(id int64)
	dfs = func(id int64) {
		blocked := g.blocks[id]
		if len(blocked) == 0 {
			terminus = true
		}
		seen[id] = true
		path = append(path, id)
		for _, child := range slices.Sorted(maps.Keys(blocked)) {
			if !seen[child] {
				dfs(child)
			} else if i := slices.Index(path, child); i >= 0 {
				// Back-edge: the loop runs from the child's position on the
				// path up to the current participant.
				found = append(found, g.cycleFromPath(path[i:]))
			}
		}
		path = path[:len(path)-1]
	}
	dfs(start)

	if terminus {
		return nil
	}
	var isolated []*Cycle
	for _, c := range found {
		if c.ContainsID(start) {
			isolated = append(isolated, c)
		}
	}
	return isolated
}

// cycleFromPath builds a Cycle straight from a DFS path segment. Segments
// are simple paths of at least two working-set members (self-requests never
// enter the adjacency), so the [NewCycle] preconditions hold by construction.
func (g *Graph) cycleFromPath(segment []int64) *Cycle {
	members := make([]Participant, len(segment))
	for i, id := range segment {
		members[i] = g.members[id]
	}
	return &Cycle{members: members}
}

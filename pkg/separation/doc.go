// Package separation models the "do not place together" requests that
// constrain a lottery pass, and detects when those requests deadlock.
//
// # Overview
//
// Before trips are assigned, a participant may request never to share a trip
// with somebody else. Each request is a directed edge: the initiator wants
// the recipient's placement decided first, so their own placement can react
// to it. The allocator can honor every request only if the edges admit a
// topological order; mutual or circular requests make that impossible, and
// somebody in the loop has to be force-placed.
//
// [Graph] holds the live edges over one lottery pass's working set.
// [Graph.IsolatedCycles] answers the allocator's question for a candidate:
// is this person trapped in a request loop with no escape? A loop only
// counts when the whole reachable component offers no terminus (somebody
// who blocks nobody); a single reachable terminus means waiting still
// works, because handling that terminus first unwinds everyone else.
//
// [Cycle] is the report value: an immutable loop with rotation-invariant
// equality and a deterministic rendering for logs.
//
// # Usage
//
//	g := separation.NewGraph(participants, relations)
//	for _, candidate := range ranked {
//	    if loops := g.IsolatedCycles(candidate); len(loops) > 0 {
//	        // Force-place somebody from loops[0] first.
//	    }
//	    g.Remove(candidate)
//	}
//
// Graphs are single-pass values: build, drain, discard. They are not safe
// for concurrent use; each lottery pass owns its own instance.
package separation

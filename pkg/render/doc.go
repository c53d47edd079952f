// Package render draws separation graphs as directed diagrams.
//
// # Overview
//
// Separation requests form a directed graph: an edge from initiator to
// recipient means the initiator asked never to share a trip with the
// recipient. This package turns that graph into Graphviz output so
// organizers can see at a glance who constrains whom, and which members
// sit inside an unresolvable loop.
//
// # Usage
//
// Convert a graph to DOT, then render to SVG in-process:
//
//	dot := render.ToDOT(g, render.Options{})
//	svg, err := render.RenderSVG(ctx, dot)
//
// Loop members can be emphasized by collecting their IDs first:
//
//	hl := map[int64]bool{}
//	for _, p := range g.Affected() {
//	    for _, c := range g.IsolatedCycles(p) {
//	        for _, m := range c.Participants() {
//	            hl[m.ID] = true
//	        }
//	    }
//	}
//	dot := render.ToDOT(g, render.Options{Highlight: hl})
//
// # DOT Format
//
// [ToDOT] output is deterministic for a given graph, so it diffs cleanly
// and caches well. Nodes are labeled "Name (#ID)" and keyed by bare ID,
// which keeps the text stable under renames of the same roster.
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering; no external graphviz installation is needed.
package render

package render

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/tripdraw/tripdraw/pkg/separation"
)

// Options configures separation diagram generation.
type Options struct {
	// RankDir sets the Graphviz layout direction. Empty means LR,
	// which reads naturally for "A asked to avoid B" chains.
	RankDir string

	// Highlight marks participant IDs to draw filled, typically the
	// members of unresolvable loops.
	Highlight map[int64]bool
}

// ToDOT converts a separation graph to Graphviz DOT format. The output
// is deterministic: nodes appear in [separation.Graph.Affected] order
// and edges sort by initiator, then recipient.
//
// The resulting DOT string can be rendered with [RenderSVG] or saved
// for external Graphviz tooling.
func ToDOT(g *separation.Graph, opts Options) string {
	rankdir := opts.RankDir
	if rankdir == "" {
		rankdir = "LR"
	}

	var buf bytes.Buffer
	buf.WriteString("digraph separations {\n")
	fmt.Fprintf(&buf, "  rankdir=%s;\n", rankdir)
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=14, margin=\"0.2,0.1\"];\n")
	buf.WriteString("\n")

	for _, p := range g.Affected() {
		attrs := []string{fmt.Sprintf("label=%q", p.String())}
		if opts.Highlight[p.ID] {
			attrs = append(attrs, "fillcolor=lightgrey")
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", nodeID(p.ID), strings.Join(attrs, ", "))
	}

	buf.WriteString("\n")
	current := g.Current()
	for _, p := range g.Affected() {
		for _, recipient := range current[p.ID] {
			fmt.Fprintf(&buf, "  %q -> %q;\n", nodeID(p.ID), nodeID(recipient))
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeID(id int64) string { return strconv.FormatInt(id, 10) }

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox rewrites the opening svg tag so the drawing scales
// cleanly when embedded: origin at 0 0, explicit width and height.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}

package topology

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
)

// ToDOT returns a Graphviz DOT representation of the bond graph.
//
// Backbone particles are drawn as filled boxes in chain order, branch
// particles as ellipses. Node labels are the particle names; node IDs are
// the particle indices, so repeated names stay distinct.
//
// The colors map, if non-nil, sets the fill color per particle name.
func (t *Topology) ToDOT(colors map[string]string) string {
	var buf bytes.Buffer
	buf.WriteString("graph Topology {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [fontname=\"SF Mono, Menlo, monospace\", fontsize=14, style=filled, fillcolor=white];\n\n")

	backbone := make(map[int]bool, len(t.Backbone))
	for _, b := range t.Backbone {
		backbone[b] = true
	}

	for i, name := range t.Particles {
		shape := "ellipse"
		if backbone[i] {
			shape = "box"
		}
		fill := "white"
		if c, ok := colors[name]; ok {
			fill = c
		}
		fmt.Fprintf(&buf, "  p%d [label=%q, shape=%s, fillcolor=%q];\n", i, name, shape, fill)
	}
	buf.WriteString("\n")
	for _, b := range t.Bonds {
		fmt.Fprintf(&buf, "  p%d -- p%d;\n", b.From, b.To)
	}

	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG renders the bond graph as an SVG image.
//
// RenderSVG generates a DOT representation via ToDOT, then uses Graphviz to
// render it. Errors are returned if Graphviz cannot initialize, the DOT is
// malformed, or rendering fails.
func (t *Topology) RenderSVG(ctx context.Context, colors map[string]string) ([]byte, error) {
	dot := t.ToDOT(colors)

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
	return buf.Bytes(), nil
}

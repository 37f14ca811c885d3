package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/piazza/internal/store"
)

// Graphviz renders the dataflow graph in DOT. Output is deterministic:
// nodes in creation order, edges by (parent, child), endpoints by name.
//
// Nodes are records "{ id / kind | name }". Policy-filtered nodes are
// shaded. Each output endpoint is a box pointing at the node it reads.
func (c *Controller) Graphviz(ctx context.Context) (string, error) {
	if c.closed.Load() {
		return "", ErrClosed
	}
	nodes, err := c.store.Nodes(ctx)
	if err != nil {
		return "", err
	}
	edges, err := c.store.Edges(ctx)
	if err != nil {
		return "", err
	}
	outputs, err := c.store.Endpoints(ctx, store.Output)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("digraph {\n")
	b.WriteString("    node [shape=record, fontsize=10]\n")
	for _, n := range nodes {
		style := ""
		switch {
		case n.Filtered:
			style = `, style=filled, fillcolor="#f4cccc"`
		case n.Kind == store.KindContext:
			style = `, style=filled, fillcolor="#d9ead3"`
		case !n.Materialized && n.Kind != store.KindBase:
			style = ", style=dashed"
		}
		fmt.Fprintf(&b, "    n%d [label=\"{ %d / %s | %s }\"%s]\n",
			n.ID, n.ID, n.Kind, escapeRecord(n.Name), style)
	}
	for _, e := range edges {
		fmt.Fprintf(&b, "    n%d -> n%d\n", e.Parent, e.Child)
	}

	sort.Slice(outputs, func(i, j int) bool { return outputs[i].Name < outputs[j].Name })
	for i, ep := range outputs {
		fmt.Fprintf(&b, "    r%d [shape=box, label=\"%s\"]\n", i, escapeLabel(ep.Name))
		fmt.Fprintf(&b, "    n%d -> r%d [style=dotted]\n", ep.NodeID, i)
	}
	b.WriteString("}\n")
	return b.String(), nil
}

var recordEscaper = strings.NewReplacer(
	`\`, `\\`, `"`, `\"`, `{`, `\{`, `}`, `\}`, `|`, `\|`, `<`, `\<`, `>`, `\>`,
)

func escapeRecord(s string) string { return recordEscaper.Replace(s) }

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func escapeLabel(s string) string { return labelEscaper.Replace(s) }

package graph

import (
	"bytes"
	"fmt"
	"strings"
)

// ToTree renders the graph as an indented dependency tree, one root per
// workspace member. Already printed subtrees are elided with "(*)".
func (g *Graph) ToTree() string {
	var buf bytes.Buffer
	printed := make(map[PackageID]bool)

	for _, root := range g.Roots {
		g.writeTree(&buf, root, 0, printed)
	}
	return buf.String()
}

func (g *Graph) writeTree(buf *bytes.Buffer, id PackageID, depth int, printed map[PackageID]bool) {
	buf.WriteString(strings.Repeat("    ", depth))
	buf.WriteString(id.Spec())

	node := g.nodes[id]
	if node == nil {
		buf.WriteString(" (missing)\n")
		return
	}
	if printed[id] && len(node.Edges) > 0 {
		buf.WriteString(" (*)\n")
		return
	}
	buf.WriteByte('\n')
	printed[id] = true

	for _, dep := range g.DirectDeps(id) {
		g.writeTree(buf, dep, depth+1, printed)
	}
}

// ToDOT renders the graph in Graphviz DOT format. Node and edge order is
// deterministic so regenerated output diffs cleanly.
func (g *Graph) ToDOT() string {
	var buf bytes.Buffer

	buf.WriteString("digraph dependencies {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box];\n\n")

	for _, id := range g.SortedIDs() {
		node := g.nodes[id]
		label := fmt.Sprintf("%s\\n%s", id.Name, id.Version)
		attrs := fmt.Sprintf("label=%q", label)
		if node.Member {
			attrs += ", style=bold"
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", id.String(), attrs)
	}

	buf.WriteByte('\n')
	for _, id := range g.SortedIDs() {
		for _, dep := range g.DirectDeps(id) {
			fmt.Fprintf(&buf, "  %q -> %q;\n", id.String(), dep.String())
		}
	}

	buf.WriteString("}\n")
	return buf.String()
}

package graph

import (
	"strings"
	"testing"

	"github.com/cartonpkg/go-carton/manifest"
	"github.com/cartonpkg/go-carton/version"
)

// buildTestGraph creates:
//
//	root@1.0.0 -> a@1.0.0 -> b@0.3.0
//	root@1.0.0 -> b@0.3.0
func buildTestGraph(t *testing.T) (*Graph, PackageID, PackageID, PackageID) {
	t.Helper()

	root := PackageID{Name: "root", Version: "1.0.0", Source: DefaultSource}
	a := PackageID{Name: "a", Version: "1.0.0", Source: DefaultSource}
	b := PackageID{Name: "b", Version: "0.3.0", Source: DefaultSource}

	g := New()
	g.Roots = []PackageID{root}
	g.Add(&Node{ID: root, Member: true})
	g.Add(&Node{ID: a})
	g.Add(&Node{ID: b})

	g.AddEdge(root, dep("a", "1.0"), a)
	g.AddEdge(root, dep("b", "0.3"), b)
	g.AddEdge(a, dep("b", "0.3.0"), b)

	return g, root, a, b
}

func dep(name, req string) manifest.Dependency {
	return manifest.Dependency{Name: name, Req: version.MustParseRequirement(req)}
}

func devDep(name, req string) manifest.Dependency {
	d := dep(name, req)
	d.Kind = manifest.KindDev
	return d
}

func TestGraphQueries(t *testing.T) {
	g, root, a, b := buildTestGraph(t)

	if got := g.DirectDeps(root); len(got) != 2 {
		t.Errorf("DirectDeps(root) = %v, want 2 entries", got)
	}
	if got := g.DirectDependents(b); len(got) != 2 {
		t.Errorf("DirectDependents(b) = %v, want 2 entries", got)
	}
	if got := g.TransitiveDeps(root); len(got) != 2 {
		t.Errorf("TransitiveDeps(root) = %v, want 2 entries", got)
	}
	if got := g.ByName("b"); len(got) != 1 || got[0].ID != b {
		t.Errorf("ByName(b) = %v, want [b@0.3.0]", got)
	}
	if !g.Contains(a) {
		t.Error("Contains(a) = false")
	}

	stats := g.Stats()
	if stats.Total != 3 || stats.Members != 1 || stats.Duplicates != 0 {
		t.Errorf("Stats() = %+v", stats)
	}
}

func TestPathsTo(t *testing.T) {
	g, _, _, _ := buildTestGraph(t)

	chains := g.PathsTo("b")
	if len(chains) != 2 {
		t.Fatalf("PathsTo(b) = %d chains, want 2", len(chains))
	}

	var rendered []string
	for _, c := range chains {
		rendered = append(rendered, c.String())
	}
	joined := strings.Join(rendered, "\n")
	if !strings.Contains(joined, "root@1.0.0 -> b@0.3.0 (requires 0.3)") {
		t.Errorf("missing direct chain in:\n%s", joined)
	}
	if !strings.Contains(joined, "root@1.0.0 -> a@1.0.0 -> b@0.3.0 (requires 0.3.0)") {
		t.Errorf("missing transitive chain in:\n%s", joined)
	}
}

func TestFindCycle(t *testing.T) {
	g, _, a, b := buildTestGraph(t)

	if cycle := g.FindCycle(); cycle != nil {
		t.Fatalf("acyclic graph reported cycle %v", cycle)
	}

	// Close a dev cycle: allowed.
	g.AddEdge(b, devDep("a", "1.0"), a)
	if cycle := g.FindCycle(); cycle != nil {
		t.Fatalf("dev edge cycle reported as fatal: %v", cycle)
	}

	// Close a normal cycle: detected.
	g.AddEdge(b, dep("a", "1.0"), a)
	cycle := g.FindCycle()
	if cycle == nil {
		t.Fatal("normal cycle not detected")
	}
	if cycle[0] != cycle[len(cycle)-1] {
		t.Errorf("cycle %v is not closed", cycle)
	}
}

func TestRemoveAndRollback(t *testing.T) {
	g, _, a, b := buildTestGraph(t)

	g.DropLastEdge(a)
	if got := g.DirectDependents(b); len(got) != 1 {
		t.Errorf("after DropLastEdge, DirectDependents(b) = %v, want 1 entry", got)
	}

	g.Remove(a)
	if g.Contains(a) {
		t.Error("Remove(a) left node in graph")
	}
	if g.Len() != 2 {
		t.Errorf("Len() = %d, want 2", g.Len())
	}
}

func TestFormatting(t *testing.T) {
	g, _, _, _ := buildTestGraph(t)

	tree := g.ToTree()
	if !strings.Contains(tree, "root@1.0.0") {
		t.Errorf("unexpected tree output:\n%s", tree)
	}
	if strings.Count(tree, "b@0.3.0") != 2 {
		t.Errorf("shared dependency should appear under both parents:\n%s", tree)
	}

	dot := g.ToDOT()
	if !strings.Contains(dot, "digraph dependencies") {
		t.Errorf("unexpected DOT output:\n%s", dot)
	}
	if !strings.Contains(dot, `"a@1.0.0" -> "b@0.3.0";`) {
		t.Errorf("missing edge in DOT output:\n%s", dot)
	}
}

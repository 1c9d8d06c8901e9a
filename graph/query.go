package graph

import (
	"github.com/cartonpkg/go-carton/manifest"
)

// DirectDeps returns the resolved direct dependencies of an instance.
func (g *Graph) DirectDeps(id PackageID) []PackageID {
	node := g.nodes[id]
	if node == nil {
		return nil
	}
	out := make([]PackageID, 0, len(node.Edges))
	seen := make(map[PackageID]bool, len(node.Edges))
	for _, e := range node.Edges {
		if !seen[e.To] {
			seen[e.To] = true
			out = append(out, e.To)
		}
	}
	return out
}

// DirectDependents returns the instances that directly depend on id.
func (g *Graph) DirectDependents(id PackageID) []PackageID {
	node := g.nodes[id]
	if node == nil {
		return nil
	}
	out := make([]PackageID, 0, len(node.Dependents))
	seen := make(map[PackageID]bool, len(node.Dependents))
	for _, d := range node.Dependents {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	return out
}

// TransitiveDeps returns all transitive dependencies of an instance in
// breadth-first order.
func (g *Graph) TransitiveDeps(id PackageID) []PackageID {
	var result []PackageID
	visited := map[PackageID]bool{id: true}

	queue := []PackageID{id}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, dep := range g.DirectDeps(current) {
			if !visited[dep] {
				visited[dep] = true
				result = append(result, dep)
				queue = append(queue, dep)
			}
		}
	}
	return result
}

// Chain is a path of instances from a root to a target, used to explain
// why a package is in the graph and to report requirement conflicts.
type Chain struct {
	// Path is the sequence of instances, starting at a workspace root.
	Path []PackageID

	// Requirement is the requirement string the final edge carried.
	Requirement string
}

// String renders the chain as "root@1.0.0 -> a@2.0.0 -> b@0.3.1".
func (c Chain) String() string {
	if len(c.Path) == 0 {
		return ""
	}
	result := c.Path[0].String()
	for i := 1; i < len(c.Path); i++ {
		result += " -> " + c.Path[i].String()
	}
	if c.Requirement != "" {
		result += " (requires " + c.Requirement + ")"
	}
	return result
}

// PathsTo returns every acyclic path from a root to any instance of the
// named package, including the requirement attached to the final edge.
func (g *Graph) PathsTo(name string) []Chain {
	var chains []Chain
	for _, root := range g.Roots {
		g.collectPaths(root, name, []PackageID{root}, map[PackageID]bool{root: true}, &chains)
	}
	return chains
}

func (g *Graph) collectPaths(from PackageID, name string, path []PackageID, onPath map[PackageID]bool, chains *[]Chain) {
	node := g.nodes[from]
	if node == nil {
		return
	}
	for _, e := range node.Edges {
		if e.Decl.Name == name {
			chain := Chain{
				Path:        append(append([]PackageID(nil), path...), e.To),
				Requirement: e.Decl.Req.String(),
			}
			*chains = append(*chains, chain)
		}
		if onPath[e.To] {
			continue
		}
		onPath[e.To] = true
		g.collectPaths(e.To, name, append(path, e.To), onPath, chains)
		delete(onPath, e.To)
	}
}

// FindCycle looks for a dependency cycle through normal and build edges
// and returns one closed path when found, nil otherwise. Dev edges may
// legitimately close cycles and are ignored.
func (g *Graph) FindCycle() []PackageID {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[PackageID]int, len(g.nodes))

	var cycle []PackageID
	var visit func(id PackageID, stack []PackageID) bool
	visit = func(id PackageID, stack []PackageID) bool {
		state[id] = visiting
		stack = append(stack, id)

		node := g.nodes[id]
		for _, e := range node.Edges {
			if e.Decl.Kind == manifest.KindDev {
				continue
			}
			switch state[e.To] {
			case visiting:
				// Close the loop for the error message.
				start := 0
				for i, s := range stack {
					if s == e.To {
						start = i
						break
					}
				}
				cycle = append(append([]PackageID(nil), stack[start:]...), e.To)
				return true
			case unvisited:
				if visit(e.To, stack) {
					return true
				}
			}
		}
		state[id] = done
		return false
	}

	for _, id := range g.SortedIDs() {
		if state[id] == unvisited {
			if visit(id, nil) {
				return cycle
			}
		}
	}
	return nil
}

// Stats summarizes a resolved graph.
type Stats struct {
	// Total is the number of package instances.
	Total int

	// Members is the number of workspace members.
	Members int

	// Duplicates is the number of packages with more than one instance.
	Duplicates int
}

// Stats computes summary statistics.
func (g *Graph) Stats() Stats {
	s := Stats{Total: len(g.nodes)}
	counts := make(map[string]int)
	for id, n := range g.nodes {
		counts[id.Name]++
		if n.Member {
			s.Members++
		}
	}
	for _, c := range counts {
		if c > 1 {
			s.Duplicates++
		}
	}
	return s
}

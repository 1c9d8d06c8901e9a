package carton

import (
	"github.com/cartonpkg/go-carton/graph"
	"github.com/cartonpkg/go-carton/manifest"
)

// pendingEdge is one not-yet-resolved dependency edge on the frontier:
// who wants it, and the declaration carrying the requirement, kind and
// platform qualifier.
type pendingEdge struct {
	from       graph.PackageID
	fromMember bool
	dep        manifest.Dependency
}

// opKind tags entries of the backtracking trail.
type opKind int

const (
	// opPop re-inserts a popped frontier edge at its original index.
	opPop opKind = iota

	// opPush drops the last n frontier edges.
	opPush

	// opNode removes a tentatively added package instance, including its
	// instance-table and links-table registrations.
	opNode

	// opEdge drops the most recently recorded edge leaving a node.
	opEdge
)

// trailOp is one undoable mutation. The trail is the resolver's journal:
// choice points remember a trail mark, and rolling back to a mark undoes
// every later mutation in reverse order, making rollback proportional to
// the size of the abandoned subtree rather than the whole state.
type trailOp struct {
	kind  opKind
	edge  pendingEdge
	index int
	count int
	id    graph.PackageID
	from  graph.PackageID
	links string
}

// popEdge removes the frontier edge at index i, preserving order, and
// journals the removal.
func (r *resolver) popEdge(i int) pendingEdge {
	edge := r.frontier[i]
	r.trail = append(r.trail, trailOp{kind: opPop, edge: edge, index: i})
	r.frontier = append(r.frontier[:i], r.frontier[i+1:]...)
	return edge
}

// pushEdges appends edges to the frontier and journals the append.
func (r *resolver) pushEdges(edges []pendingEdge) {
	if len(edges) == 0 {
		return
	}
	r.trail = append(r.trail, trailOp{kind: opPush, count: len(edges)})
	r.frontier = append(r.frontier, edges...)
}

// selectNext picks the next frontier edge to resolve. Edges whose target
// already has a chosen instance go first so conflicts surface before the
// search descends further; ties break by target name, then requester, for
// deterministic traversal. Selection order never affects correctness, only
// how much backtracking happens.
func (r *resolver) selectNext() int {
	best := -1
	var bestClass int
	var bestName, bestFrom string

	for i, e := range r.frontier {
		class := 1
		if len(r.instances[e.dep.Name]) > 0 {
			class = 0
		}
		from := e.from.String()
		if best == -1 ||
			class < bestClass ||
			(class == bestClass && (e.dep.Name < bestName ||
				(e.dep.Name == bestName && from < bestFrom))) {
			best, bestClass, bestName, bestFrom = i, class, e.dep.Name, from
		}
	}
	return best
}

// rewind rolls the journal back to mark, restoring frontier, graph,
// instance table and links table.
func (r *resolver) rewind(mark int) {
	for len(r.trail) > mark {
		op := r.trail[len(r.trail)-1]
		r.trail = r.trail[:len(r.trail)-1]

		switch op.kind {
		case opPop:
			r.frontier = append(r.frontier, pendingEdge{})
			copy(r.frontier[op.index+1:], r.frontier[op.index:])
			r.frontier[op.index] = op.edge
		case opPush:
			r.frontier = r.frontier[:len(r.frontier)-op.count]
		case opNode:
			r.g.Remove(op.id)
			ids := r.instances[op.id.Name]
			if len(ids) > 0 && ids[len(ids)-1] == op.id {
				r.instances[op.id.Name] = ids[:len(ids)-1]
			}
			if op.links != "" {
				delete(r.links, op.links)
			}
		case opEdge:
			r.g.DropLastEdge(op.from)
		}
	}
}

package carton

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cartonpkg/go-carton/graph"
	"github.com/cartonpkg/go-carton/index"
	"github.com/cartonpkg/go-carton/manifest"
	"github.com/cartonpkg/go-carton/version"
)

// workspaceSource marks workspace member instances in PackageIDs and lock
// entries, distinguishing them from registry packages.
const workspaceSource = "workspace"

// maxReportedConflicts bounds how many requirement chains a
// NoSolutionError carries. The search can visit far more dead ends than a
// human wants to read.
const maxReportedConflicts = 8

// frame is one choice point in the search: an edge, its ordered candidate
// versions, the next candidate to try, and the trail mark to rewind to
// before each attempt.
type frame struct {
	edge       pendingEdge
	candidates []*index.Summary
	next       int
	mark       int
}

// resolver holds the mutable search state. It is built fresh per Resolve
// call and discarded afterwards; only the graph survives.
type resolver struct {
	cfg *config
	ws  *manifest.Workspace
	idx index.Index

	g        *graph.Graph
	frontier []pendingEdge

	// instances maps a package name to its chosen instances, in choice
	// order. Unification consults it before the index is ever queried.
	instances map[string][]graph.PackageID

	// links maps a claimed links tag to the instance holding it.
	links map[string]graph.PackageID

	trail  []trailOp
	frames []*frame

	// conflicts accumulates every dead end for error reporting.
	conflicts []Conflict
	lastName  string
	lastLinks *LinksConflictError
}

func newResolver(cfg *config, ws *manifest.Workspace, idx index.Index) *resolver {
	return &resolver{
		cfg:       cfg,
		ws:        ws,
		idx:       idx,
		g:         graph.New(),
		instances: make(map[string][]graph.PackageID),
		links:     make(map[string]graph.PackageID),
	}
}

// solve runs the backtracking search to completion. On success the
// resolver's graph holds a consistent assignment; on failure the returned
// error explains the specific requirement chains that could not be
// reconciled.
func (r *resolver) solve(ctx context.Context) error {
	if err := r.seed(); err != nil {
		return err
	}

	for len(r.frontier) > 0 {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrCanceled, err)
		}

		edge := r.popEdge(r.selectNext())

		if to, ok := r.unify(edge); ok {
			r.addEdge(edge.from, edge.dep, to)
			continue
		}

		cands, reasons, err := r.candidates(ctx, edge)
		if err != nil {
			return err
		}
		if len(cands) == 0 {
			if err := r.backtrack(edge, reasons); err != nil {
				return err
			}
			continue
		}

		f := &frame{edge: edge, candidates: cands, mark: len(r.trail)}
		r.frames = append(r.frames, f)
		r.tryNext(f)
	}

	if cycle := r.g.FindCycle(); cycle != nil {
		return &CycleError{Cycle: cycle}
	}
	return nil
}

// seed adds every workspace member as a fixed root node and enqueues their
// declared edges. Members are never backtracked over.
func (r *resolver) seed() error {
	if r.ws == nil || r.ws.Root == nil || len(r.ws.Members) == 0 {
		return ErrNoRoot
	}

	var edges []pendingEdge
	for _, m := range r.ws.Members {
		id := graph.PackageID{Name: m.Name, Version: m.Version.String(), Source: workspaceSource}
		if r.g.Contains(id) {
			return fmt.Errorf("duplicate workspace member %s", id)
		}
		if m.Links != "" {
			if holder, taken := r.links[m.Links]; taken {
				return &LinksConflictError{
					Links:    m.Links,
					Holder:   holder,
					Rejected: id,
					Chain:    id.String(),
				}
			}
			r.links[m.Links] = id
		}
		r.g.Add(&graph.Node{ID: id, Manifest: m, Member: true})
		r.g.Roots = append(r.g.Roots, id)
		r.instances[m.Name] = append(r.instances[m.Name], id)

		for _, d := range m.Dependencies {
			if d.Kind == manifest.KindDev && !r.cfg.includeDev {
				continue
			}
			edges = append(edges, pendingEdge{from: id, fromMember: true, dep: d})
		}
	}
	r.pushEdges(edges)
	return nil
}

// unify tries to satisfy an edge with an already chosen instance of the
// same package. This is what keeps SemVer-compatible requirements on one
// instance instead of spawning duplicates.
func (r *resolver) unify(edge pendingEdge) (graph.PackageID, bool) {
	want := sourceFor(edge.dep)
	for _, id := range r.instances[edge.dep.Name] {
		if id.Source != want && id.Source != workspaceSource {
			continue
		}
		if edge.dep.Req.Matches(r.versionOf(id)) {
			return id, true
		}
	}
	return graph.PackageID{}, false
}

// candidates queries the index and filters the published versions down to
// the ones this edge may legally choose, ordered best-first: locked
// versions, then versions whose minimum toolchain is satisfied, then the
// rest, each group newest-first. The returned reasons explain every
// rejection and become the conflict report if the edge dead-ends.
func (r *resolver) candidates(ctx context.Context, edge pendingEdge) ([]*index.Summary, []string, error) {
	name := edge.dep.Name
	summaries, err := r.idx.Versions(ctx, name)
	if errors.Is(err, index.ErrPackageNotFound) {
		return nil, []string{fmt.Sprintf("no package named %q in the index", name)}, nil
	}
	if err != nil {
		return nil, nil, err
	}

	locked := make(map[string]bool)
	if r.cfg.previous != nil {
		for _, v := range r.cfg.previous.Versions(name) {
			locked[v] = true
		}
	}
	exact, isExact := edge.dep.Req.ExactVersion()

	var out []*index.Summary
	var reasons []string
	matched := 0

	// Index order is ascending; walk newest-first.
	for i := len(summaries) - 1; i >= 0; i-- {
		s := summaries[i]
		if !edge.dep.Req.Matches(s.Version) {
			continue
		}
		matched++

		if s.Yanked && !locked[s.Version.String()] && !(isExact && exact.Equal(s.Version)) {
			reasons = append(reasons, fmt.Sprintf("%s is yanked", s.ID()))
			continue
		}

		if inst, clash := r.compatClash(s); clash {
			reasons = append(reasons, fmt.Sprintf(
				"%s conflicts with selected %s: semver-compatible versions must unify", s.ID(), inst))
			continue
		}

		if s.Links != "" {
			if holder, taken := r.links[s.Links]; taken {
				id := graph.PackageID{Name: s.Name, Version: s.Version.String(), Source: sourceFor(edge.dep)}
				reasons = append(reasons, fmt.Sprintf(
					"%s links %q, already claimed by %s", s.ID(), s.Links, holder))
				r.lastLinks = &LinksConflictError{
					Links:    s.Links,
					Holder:   holder,
					Rejected: id,
					Chain:    r.chainTo(edge.from),
				}
				continue
			}
		}

		out = append(out, s)
	}

	if matched == 0 {
		reasons = append(reasons, fmt.Sprintf(
			"no published version matches %q (available: %s)", edge.dep.Req, availableList(summaries)))
	}

	classOf := func(s *index.Summary) int {
		switch {
		case locked[s.Version.String()]:
			return 0
		case r.cfg.toolchainPolicy == ToolchainPrefer &&
			!r.cfg.toolchain.IsZero() && !s.MinToolchain.IsZero() &&
			r.cfg.toolchain.Less(s.MinToolchain):
			return 2
		default:
			return 1
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return classOf(out[i]) < classOf(out[j])
	})

	return out, reasons, nil
}

// compatClash reports whether choosing this version would put a second
// SemVer-compatible instance of the package into the graph.
func (r *resolver) compatClash(s *index.Summary) (graph.PackageID, bool) {
	for _, id := range r.instances[s.Name] {
		iv := r.versionOf(id)
		if !s.Version.Equal(iv) && version.Compatible(s.Version, iv) {
			return id, true
		}
	}
	return graph.PackageID{}, false
}

// tryNext commits the frame's next candidate: add the node, record the
// edge, and enqueue the candidate's own dependencies.
func (r *resolver) tryNext(f *frame) {
	s := f.candidates[f.next]
	f.next++

	id := graph.PackageID{Name: s.Name, Version: s.Version.String(), Source: sourceFor(f.edge.dep)}
	r.addNode(id, s)
	r.addEdge(f.edge.from, f.edge.dep, id)

	var edges []pendingEdge
	for _, d := range s.Dependencies {
		// Dev dependencies of non-members never participate.
		if d.Kind == manifest.KindDev {
			continue
		}
		edges = append(edges, pendingEdge{from: id, dep: d})
	}
	r.pushEdges(edges)

	r.cfg.log().Debug("selected candidate",
		"package", id.String(),
		"requirement", f.edge.dep.Req.String(),
		"requester", f.edge.from.String())
}

func (r *resolver) addNode(id graph.PackageID, s *index.Summary) {
	r.g.Add(&graph.Node{ID: id, Summary: s})
	r.instances[id.Name] = append(r.instances[id.Name], id)
	if s.Links != "" {
		r.links[s.Links] = id
	}
	r.trail = append(r.trail, trailOp{kind: opNode, id: id, links: s.Links})
}

func (r *resolver) addEdge(from graph.PackageID, decl manifest.Dependency, to graph.PackageID) {
	r.g.AddEdge(from, decl, to)
	r.trail = append(r.trail, trailOp{kind: opEdge, from: from})
}

// backtrack records the dead end, then rewinds to the deepest choice point
// with an untried candidate and commits it. When every frame is exhausted
// the search has failed and the accumulated conflicts become the error.
func (r *resolver) backtrack(edge pendingEdge, reasons []string) error {
	r.recordConflict(edge, reasons)
	r.cfg.log().Debug("dead end",
		"package", edge.dep.Name,
		"requirement", edge.dep.Req.String())

	for len(r.frames) > 0 {
		f := r.frames[len(r.frames)-1]
		r.rewind(f.mark)
		if f.next < len(f.candidates) {
			r.tryNext(f)
			return nil
		}
		r.frames = r.frames[:len(r.frames)-1]
	}
	return r.noSolution()
}

// recordConflict captures the requirement chain while the graph still
// holds the failing subtree; after rewind the chain is gone.
func (r *resolver) recordConflict(edge pendingEdge, reasons []string) {
	r.conflicts = append(r.conflicts, Conflict{
		Name:        edge.dep.Name,
		Requirement: edge.dep.Req.String(),
		Chain:       r.chainTo(edge.from),
		Reasons:     reasons,
	})
	r.lastName = edge.dep.Name
}

// noSolution builds the final error from the recorded dead ends. Conflicts
// on the package that failed last come first; duplicates from repeated
// exploration are dropped.
func (r *resolver) noSolution() error {
	if r.lastLinks != nil && r.lastLinks.Rejected.Name == r.lastName {
		return r.lastLinks
	}

	seen := make(map[string]bool)
	var primary, rest []Conflict
	for _, c := range r.conflicts {
		key := c.Name + "|" + c.Requirement + "|" + c.Chain
		if seen[key] {
			continue
		}
		seen[key] = true
		if c.Name == r.lastName {
			primary = append(primary, c)
		} else {
			rest = append(rest, c)
		}
	}
	all := append(primary, rest...)
	if len(all) > maxReportedConflicts {
		all = all[:maxReportedConflicts]
	}
	return &NoSolutionError{Name: r.lastName, Conflicts: all}
}

// chainTo renders the shortest dependent chain from a workspace root to
// the given instance, e.g. "app@1.0.0 -> log@0.4.11".
func (r *resolver) chainTo(id graph.PackageID) string {
	node := r.g.Get(id)
	if node == nil || node.Member {
		return id.String()
	}

	// BFS upward through reverse edges until a member is reached.
	parent := make(map[graph.PackageID]graph.PackageID)
	seen := map[graph.PackageID]bool{id: true}
	queue := []graph.PackageID{id}
	var root graph.PackageID
	found := false

	for len(queue) > 0 && !found {
		cur := queue[0]
		queue = queue[1:]
		for _, dep := range r.g.Get(cur).Dependents {
			if seen[dep] {
				continue
			}
			seen[dep] = true
			parent[dep] = cur
			if r.g.Get(dep).Member {
				root = dep
				found = true
				break
			}
			queue = append(queue, dep)
		}
	}
	if !found {
		return id.String()
	}

	var parts []string
	for cur := root; ; cur = parent[cur] {
		parts = append(parts, cur.String())
		if cur == id {
			break
		}
	}
	return strings.Join(parts, " -> ")
}

// versionOf returns the version of a chosen instance, from its index
// summary or, for members, its local manifest.
func (r *resolver) versionOf(id graph.PackageID) version.Version {
	n := r.g.Get(id)
	if n.Summary != nil {
		return n.Summary.Version
	}
	return n.Manifest.Version
}

// sourceFor returns the registry source an edge selects from.
func sourceFor(d manifest.Dependency) string {
	if d.Registry != "" {
		return d.Registry
	}
	return graph.DefaultSource
}

// availableList renders published versions for error messages, newest
// first, elided past five.
func availableList(summaries []*index.Summary) string {
	if len(summaries) == 0 {
		return "none"
	}
	var parts []string
	for i := len(summaries) - 1; i >= 0 && len(parts) < 5; i-- {
		parts = append(parts, summaries[i].Version.String())
	}
	if len(summaries) > 5 {
		parts = append(parts, "...")
	}
	return strings.Join(parts, ", ")
}

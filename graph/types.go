// Package graph defines the frozen resolved dependency graph: one node per
// chosen package instance, forward and reverse edges, and the query and
// formatting helpers the resolver and CLI build on.
package graph

import (
	"fmt"
	"sort"

	"github.com/cartonpkg/go-carton/index"
	"github.com/cartonpkg/go-carton/manifest"
	"github.com/cartonpkg/go-carton/version"
)

// DefaultSource identifies the default registry in PackageIDs and lock
// entries.
const DefaultSource = "registry"

// PackageID uniquely identifies one package instance in a resolved graph.
// Immutable once created, comparable, and usable as a map key.
type PackageID struct {
	// Name is the package name.
	Name string

	// Version is the chosen version string.
	Version string

	// Source identifies where the package comes from. Empty is treated as
	// DefaultSource.
	Source string
}

// String returns "name@version", the form used in logs and error chains.
func (id PackageID) String() string {
	if id.Version == "" {
		return id.Name
	}
	return id.Name + "@" + id.Version
}

// Spec returns the full identity including a non-default source.
func (id PackageID) Spec() string {
	if id.Source == "" || id.Source == DefaultSource {
		return id.String()
	}
	return id.String() + " (" + id.Source + ")"
}

// Edge is one resolved dependency edge: the declaration as written plus the
// chosen target instance.
type Edge struct {
	// Decl is the dependency declaration this edge came from.
	Decl manifest.Dependency

	// To is the package instance chosen to satisfy the declaration.
	To PackageID
}

// Node is one package instance in the resolved graph.
type Node struct {
	// ID identifies this instance.
	ID PackageID

	// Summary is the index record the instance was resolved from.
	// Nil for workspace members, whose manifests are local.
	Summary *index.Summary

	// Manifest is the local manifest for workspace members, nil otherwise.
	Manifest *manifest.Manifest

	// Edges are the resolved dependency edges leaving this node.
	Edges []Edge

	// Dependents are the instances with an edge pointing here.
	Dependents []PackageID

	// Member marks workspace members.
	Member bool
}

// Links returns the node's links tag, or "".
func (n *Node) Links() string {
	if n.Summary != nil {
		return n.Summary.Links
	}
	if n.Manifest != nil {
		return n.Manifest.Links
	}
	return ""
}

// FeatureTable returns the node's declared feature table.
func (n *Node) FeatureTable() map[string][]string {
	if n.Summary != nil {
		return n.Summary.Features
	}
	if n.Manifest != nil {
		return n.Manifest.Features
	}
	return nil
}

// Dependencies returns the node's declared dependency edges.
func (n *Node) Dependencies() []manifest.Dependency {
	if n.Summary != nil {
		return n.Summary.Dependencies
	}
	if n.Manifest != nil {
		return n.Manifest.Dependencies
	}
	return nil
}

// Graph is a resolved dependency graph. It is mutated incrementally during
// search and frozen afterwards; everything outside the resolver treats it
// as read-only.
type Graph struct {
	// Roots are the workspace member instances resolution was seeded from.
	Roots []PackageID

	nodes map[PackageID]*Node
	order []PackageID
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{nodes: make(map[PackageID]*Node)}
}

// Add inserts a node. Adding an existing ID is a programming error.
func (g *Graph) Add(n *Node) {
	if _, exists := g.nodes[n.ID]; exists {
		panic(fmt.Sprintf("graph: duplicate node %s", n.ID))
	}
	g.nodes[n.ID] = n
	g.order = append(g.order, n.ID)
}

// Remove deletes a node and any reverse edges pointing at it.
// Used only by the resolver's backtracking rollback.
func (g *Graph) Remove(id PackageID) {
	delete(g.nodes, id)
	for i := len(g.order) - 1; i >= 0; i-- {
		if g.order[i] == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	for _, n := range g.nodes {
		for i := len(n.Dependents) - 1; i >= 0; i-- {
			if n.Dependents[i] == id {
				n.Dependents = append(n.Dependents[:i], n.Dependents[i+1:]...)
			}
		}
	}
}

// AddEdge records a resolved edge and its reverse.
func (g *Graph) AddEdge(from PackageID, decl manifest.Dependency, to PackageID) {
	fromNode := g.nodes[from]
	toNode := g.nodes[to]
	if fromNode == nil || toNode == nil {
		panic(fmt.Sprintf("graph: edge %s -> %s references missing node", from, to))
	}
	fromNode.Edges = append(fromNode.Edges, Edge{Decl: decl, To: to})
	toNode.Dependents = append(toNode.Dependents, from)
}

// DropLastEdge removes the most recently added edge leaving from.
// Used only by the resolver's backtracking rollback.
func (g *Graph) DropLastEdge(from PackageID) {
	fromNode := g.nodes[from]
	if fromNode == nil || len(fromNode.Edges) == 0 {
		return
	}
	last := fromNode.Edges[len(fromNode.Edges)-1]
	fromNode.Edges = fromNode.Edges[:len(fromNode.Edges)-1]

	toNode := g.nodes[last.To]
	if toNode == nil {
		return
	}
	for i := len(toNode.Dependents) - 1; i >= 0; i-- {
		if toNode.Dependents[i] == from {
			toNode.Dependents = append(toNode.Dependents[:i], toNode.Dependents[i+1:]...)
			break
		}
	}
}

// Get returns the node for an ID, or nil.
func (g *Graph) Get(id PackageID) *Node {
	return g.nodes[id]
}

// Contains reports whether the graph holds the given instance.
func (g *Graph) Contains(id PackageID) bool {
	_, ok := g.nodes[id]
	return ok
}

// ByName returns every instance of the named package, in insertion order.
// Unification normally keeps this to one, but SemVer-incompatible
// requirements legitimately produce several.
func (g *Graph) ByName(name string) []*Node {
	var out []*Node
	for _, id := range g.order {
		if id.Name == name {
			out = append(out, g.nodes[id])
		}
	}
	return out
}

// Len returns the number of instances in the graph.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// SortedIDs returns every instance sorted by name, then version.
// This is the iteration order for all deterministic output.
func (g *Graph) SortedIDs() []PackageID {
	ids := make([]PackageID, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Name != ids[j].Name {
			return ids[i].Name < ids[j].Name
		}
		if ids[i].Version != ids[j].Version {
			return versionLess(ids[i].Version, ids[j].Version)
		}
		return ids[i].Source < ids[j].Source
	})
	return ids
}

// versionLess orders version strings by semver precedence, falling back to
// lexicographic order for anything unparseable.
func versionLess(a, b string) bool {
	va, errA := version.Parse(a)
	vb, errB := version.Parse(b)
	if errA != nil || errB != nil {
		return a < b
	}
	return va.Less(vb)
}

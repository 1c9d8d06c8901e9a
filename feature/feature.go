package feature

import (
	"fmt"
	"sort"

	"github.com/cartonpkg/go-carton/graph"
	"github.com/cartonpkg/go-carton/manifest"
)

// Options configures feature resolution.
type Options struct {
	// Policy selects unified (v1) or context-isolated (v2) activation.
	Policy manifest.ResolverPolicy

	// IncludeDev makes workspace members' dev edges contribute feature
	// requests. Dev edges of non-members never exist in a resolved graph.
	IncludeDev bool

	// Host and Target are the platforms used to evaluate platform
	// predicates under v2. Ignored under v1, which unifies across
	// platforms.
	Host   manifest.Environment
	Target manifest.Environment

	// Features is requested on every workspace member in addition to the
	// implicit default request.
	Features []string

	// NoDefault suppresses the implicit "default" request on members.
	NoDefault bool
}

// key is one activation context: a package instance plus, under v2,
// whether it is being built for the host (build-dependency subtrees).
// Under v1 host is always false, so every edge unifies on one context.
type key struct {
	id   graph.PackageID
	host bool
}

// Activation is the resolved state for one package in one context.
type Activation struct {
	// Features are the active feature names, sorted.
	Features []string

	// Deps are the activated optional dependency reference names, sorted.
	Deps []string
}

// Has reports whether the named feature is active.
func (a Activation) Has(name string) bool {
	i := sort.SearchStrings(a.Features, name)
	return i < len(a.Features) && a.Features[i] == name
}

// HasDep reports whether the named optional dependency is activated.
func (a Activation) HasDep(ref string) bool {
	i := sort.SearchStrings(a.Deps, ref)
	return i < len(a.Deps) && a.Deps[i] == ref
}

// Set is the complete result of feature resolution over a graph.
type Set struct {
	pkgs map[key]Activation
}

// For returns the activation for an instance in the target context.
// Missing instances yield an empty activation.
func (s *Set) For(id graph.PackageID) Activation {
	return s.pkgs[key{id: id}]
}

// ForHost returns the activation for an instance in the host (build
// dependency) context. Always empty under v1.
func (s *Set) ForHost(id graph.PackageID) Activation {
	return s.pkgs[key{id: id, host: true}]
}

// Len returns the number of (instance, context) activations.
func (s *Set) Len() int {
	return len(s.pkgs)
}

// UnknownFeatureError reports a request for a feature a package does not
// declare and that names no optional dependency either.
type UnknownFeatureError struct {
	Package graph.PackageID
	Feature string
}

func (e *UnknownFeatureError) Error() string {
	return fmt.Sprintf("package %s has no feature or optional dependency named %q", e.Package, e.Feature)
}

// Resolve computes feature activation over a frozen resolved graph,
// seeding from the workspace members. The graph is never mutated.
func Resolve(g *graph.Graph, opts Options) (*Set, error) {
	w := &walker{
		g:        g,
		opts:     opts,
		features: make(map[key]map[string]bool),
		deps:     make(map[key]map[string]bool),
		visited:  make(map[key]bool),
		deferred: make(map[key]map[string][]string),
	}

	for _, root := range g.Roots {
		ck := key{id: root}
		if !opts.NoDefault {
			if err := w.activateFeature(ck, "default"); err != nil {
				return nil, err
			}
		}
		for _, f := range opts.Features {
			if err := w.activateFeature(ck, f); err != nil {
				return nil, err
			}
		}
		if err := w.ensurePackage(ck); err != nil {
			return nil, err
		}
	}
	return w.result(), nil
}

// walker carries the worklist state of one Resolve call.
type walker struct {
	g    *graph.Graph
	opts Options

	features map[key]map[string]bool
	deps     map[key]map[string]bool
	visited  map[key]bool

	// deferred holds weak "pkg?/feat" requests per context and dependency
	// reference, flushed if the dependency is activated later. Requests
	// still pending at the end are dropped: weak tokens never force
	// activation.
	deferred map[key]map[string][]string
}

// ensurePackage walks a package's non-optional edges once per context,
// propagating each edge's default and named feature requests. Optional
// edges are reached only through activateDep.
func (w *walker) ensurePackage(ck key) error {
	if w.visited[ck] {
		return nil
	}
	w.visited[ck] = true

	n := w.g.Get(ck.id)
	if n == nil {
		return nil
	}
	for _, e := range n.Edges {
		if e.Decl.Optional || !w.edgeApplies(ck, n, e) {
			continue
		}
		if err := w.requestEdge(ck, e); err != nil {
			return err
		}
	}
	return nil
}

// requestEdge pushes an edge's declared feature requests onto its target
// and recurses into the target's own edges.
func (w *walker) requestEdge(ck key, e graph.Edge) error {
	child := w.childKey(ck, e)
	if e.Decl.DefaultFeatures {
		if err := w.activateFeature(child, "default"); err != nil {
			return err
		}
	}
	for _, f := range e.Decl.Features {
		if err := w.activateFeature(child, f); err != nil {
			return err
		}
	}
	return w.ensurePackage(child)
}

// activateFeature turns on one feature in one context and processes its
// declared tokens. The feature is marked active before its tokens are
// walked so feature cycles terminate.
func (w *walker) activateFeature(ck key, name string) error {
	if w.features[ck][name] {
		return nil
	}
	n := w.g.Get(ck.id)
	if n == nil {
		return nil
	}

	tokens, declared := n.FeatureTable()[name]
	if !declared {
		// An undeclared "default" is implicitly empty.
		if name == "default" {
			return nil
		}
		// A bare name may be the implicit feature of an optional
		// dependency.
		if w.hasDep(ck, n, name) {
			w.mark(ck, name)
			return w.activateDep(ck, name)
		}
		return &UnknownFeatureError{Package: ck.id, Feature: name}
	}
	w.mark(ck, name)

	for _, raw := range tokens {
		t, err := ParseToken(raw)
		if err != nil {
			return fmt.Errorf("package %s, feature %q: %w", ck.id, name, err)
		}
		switch {
		case t.Dep:
			err = w.activateDep(ck, t.Pkg)
		case t.Pkg != "" && t.Weak:
			if w.depActive(ck, n, t.Pkg) {
				err = w.activateDepFeature(ck, n, t.Pkg, t.Feature)
			} else {
				w.deferWeak(ck, t.Pkg, t.Feature)
			}
		case t.Pkg != "":
			if err = w.activateDep(ck, t.Pkg); err == nil {
				err = w.activateDepFeature(ck, n, t.Pkg, t.Feature)
			}
		default:
			err = w.activateFeature(ck, t.Feature)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// activateDep activates an optional dependency by reference name: request
// its declared features, walk its subtree, and flush any weak requests
// that were waiting on it. Activating a non-optional reference is a no-op;
// its subtree is already walked.
func (w *walker) activateDep(ck key, ref string) error {
	if w.deps[ck][ref] {
		return nil
	}
	n := w.g.Get(ck.id)

	matched := false
	for _, e := range n.Edges {
		if e.Decl.RefName() != ref || !w.edgeApplies(ck, n, e) {
			continue
		}
		matched = true
		if !e.Decl.Optional {
			continue
		}
		if w.deps[ck] == nil {
			w.deps[ck] = make(map[string]bool)
		}
		w.deps[ck][ref] = true

		if err := w.requestEdge(ck, e); err != nil {
			return err
		}
		for _, f := range w.deferred[ck][ref] {
			if err := w.activateFeature(w.childKey(ck, e), f); err != nil {
				return err
			}
		}
		delete(w.deferred[ck], ref)
	}
	if !matched {
		return fmt.Errorf("package %s: feature token references unknown dependency %q", ck.id, ref)
	}
	return nil
}

// activateDepFeature turns on a feature of a dependency's target package.
func (w *walker) activateDepFeature(ck key, n *graph.Node, ref, feat string) error {
	found := false
	for _, e := range n.Edges {
		if e.Decl.RefName() != ref || !w.edgeApplies(ck, n, e) {
			continue
		}
		found = true
		if err := w.activateFeature(w.childKey(ck, e), feat); err != nil {
			return err
		}
	}
	if !found {
		return fmt.Errorf("package %s: feature token references unknown dependency %q", ck.id, ref)
	}
	return nil
}

// depActive reports whether a dependency reference counts as activated in
// this context: either explicitly activated, or not optional at all.
func (w *walker) depActive(ck key, n *graph.Node, ref string) bool {
	if w.deps[ck][ref] {
		return true
	}
	for _, e := range n.Edges {
		if e.Decl.RefName() == ref && !e.Decl.Optional && w.edgeApplies(ck, n, e) {
			return true
		}
	}
	return false
}

// hasDep reports whether the node declares any applying dependency with
// the given reference name.
func (w *walker) hasDep(ck key, n *graph.Node, ref string) bool {
	for _, e := range n.Edges {
		if e.Decl.RefName() == ref && w.edgeApplies(ck, n, e) {
			return true
		}
	}
	return false
}

// edgeApplies decides whether an edge contributes feature requests in the
// given context. Dev edges count only for members when requested. Platform
// predicates are evaluated only under v2; v1 unifies across platforms.
func (w *walker) edgeApplies(ck key, n *graph.Node, e graph.Edge) bool {
	if e.Decl.Kind == manifest.KindDev && (!n.Member || !w.opts.IncludeDev) {
		return false
	}
	if w.opts.Policy == manifest.PolicyV2 && e.Decl.Platform != nil {
		env := w.opts.Target
		if ck.host || e.Decl.Kind == manifest.KindBuild {
			env = w.opts.Host
		}
		if !e.Decl.Platform.Matches(env) {
			return false
		}
	}
	return true
}

// childKey computes the context an edge's target is resolved in. Under v2
// a build edge crosses into the host context and the whole subtree stays
// there; under v1 everything shares one context.
func (w *walker) childKey(ck key, e graph.Edge) key {
	host := ck.host
	if w.opts.Policy == manifest.PolicyV2 && e.Decl.Kind == manifest.KindBuild {
		host = true
	}
	return key{id: e.To, host: host}
}

func (w *walker) mark(ck key, name string) {
	if w.features[ck] == nil {
		w.features[ck] = make(map[string]bool)
	}
	w.features[ck][name] = true
}

func (w *walker) deferWeak(ck key, ref, feat string) {
	if w.deferred[ck] == nil {
		w.deferred[ck] = make(map[string][]string)
	}
	w.deferred[ck][ref] = append(w.deferred[ck][ref], feat)
}

// result freezes the walker state into sorted activations. Every visited
// context appears, even with nothing active, so callers can distinguish
// "resolved with no features" from "never resolved".
func (w *walker) result() *Set {
	pkgs := make(map[key]Activation)
	for ck := range w.visited {
		pkgs[ck] = Activation{
			Features: sortedKeys(w.features[ck]),
			Deps:     sortedKeys(w.deps[ck]),
		}
	}
	for ck := range w.features {
		if _, ok := pkgs[ck]; !ok {
			pkgs[ck] = Activation{
				Features: sortedKeys(w.features[ck]),
				Deps:     sortedKeys(w.deps[ck]),
			}
		}
	}
	return &Set{pkgs: pkgs}
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

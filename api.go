// Package carton implements dependency resolution for carton workspaces.
//
// Resolution takes a workspace of package manifests and an index of
// published versions and produces a complete dependency graph, the feature
// activation computed over it, and a deterministic lock file pinning the
// result. The resolver unifies SemVer-compatible requirements onto single
// instances, backtracks when requirements collide, enforces links tag
// uniqueness, and prefers previously locked versions so repeated
// resolutions stay stable.
//
// The entry point is Resolve:
//
//	ws, err := manifest.LoadWorkspace(dir)
//	...
//	res, err := carton.Resolve(ctx, ws, index.NewClient(url),
//		carton.WithLockfile(prev))
//
// Everything is configured through functional options; the zero
// configuration resolves online, without dev dependencies, logging
// nothing.
package carton

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/cartonpkg/go-carton/feature"
	"github.com/cartonpkg/go-carton/graph"
	"github.com/cartonpkg/go-carton/index"
	"github.com/cartonpkg/go-carton/lockfile"
	"github.com/cartonpkg/go-carton/manifest"
)

// Resolve computes a full resolution for the workspace against the index.
//
// On success the returned Resolution holds the frozen graph, feature
// activations, the new lock and its diff against the previous one. On
// failure the error pinpoints the cause: *NoSolutionError with the
// conflicting requirement chains, *LinksConflictError for a contested
// links tag, *CycleError for a dependency cycle, or
// *lockfile.MismatchError when frozen mode would have to change the lock.
func Resolve(ctx context.Context, ws *manifest.Workspace, idx index.Index, opts ...Option) (*Resolution, error) {
	cfg, err := newConfig(opts...)
	if err != nil {
		return nil, err
	}
	if ws == nil || ws.Root == nil || len(ws.Members) == 0 {
		return nil, ErrNoRoot
	}

	var queryIdx index.Index
	if cfg.offline {
		queryIdx = index.ForOffline(idx)
	} else {
		cached := index.NewCached(idx, false)
		if err := index.Prefetch(ctx, cached, prefetchNames(ws, cfg.previous)); err != nil {
			// Not fatal: anything the search actually needs is fetched
			// on demand, with requirement context in the error.
			cfg.log().Warn("index prefetch failed", "error", err)
		}
		queryIdx = cached
	}

	r := newResolver(cfg, ws, queryIdx)
	if err := r.solve(ctx); err != nil {
		return nil, err
	}

	features, err := feature.Resolve(r.g, feature.Options{
		Policy:     ws.Policy(),
		IncludeDev: cfg.includeDev,
		Host:       cfg.host,
		Target:     cfg.target,
		Features:   cfg.features,
		NoDefault:  cfg.noDefault,
	})
	if err != nil {
		return nil, err
	}

	lock := lockFromGraph(r.g)
	diff, err := lockfile.Reconcile(cfg.previous, lock, cfg.frozen)
	if err != nil {
		return nil, err
	}
	fillChecksums(lock, r.g)

	cfg.log().Info("resolution complete",
		"packages", r.g.Len(),
		"members", len(r.g.Roots),
		"changed", !diff.IsEmpty())

	return &Resolution{Graph: r.g, Features: features, Lock: lock, Diff: diff}, nil
}

// prefetchNames collects the index names worth warming before the search:
// every direct dependency of every member, plus everything the previous
// lock pinned, since locked versions are the likely outcome.
func prefetchNames(ws *manifest.Workspace, prev *lockfile.Lockfile) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(name string) {
		if name == "" || seen[name] || ws.IsMember(name) {
			return
		}
		seen[name] = true
		names = append(names, name)
	}

	for _, m := range ws.Members {
		for _, d := range m.Dependencies {
			add(d.Name)
		}
	}
	if prev != nil {
		for _, p := range prev.Packages {
			if p.Source != workspaceSource {
				add(p.Name)
			}
		}
	}
	return names
}

// lockFromGraph converts a resolved graph into lock entries: one per
// instance, in canonical order, each listing its direct dependencies by
// identity.
func lockFromGraph(g *graph.Graph) *lockfile.Lockfile {
	lock := lockfile.New()
	for _, id := range g.SortedIDs() {
		n := g.Get(id)
		entry := lockfile.Package{
			Name:    id.Name,
			Version: id.Version,
			Source:  id.Source,
		}
		if n.Summary != nil {
			entry.Checksum = n.Summary.Checksum
		}

		refs := make(map[string]bool)
		for _, e := range n.Edges {
			refs[lockfile.DepRef(e.To.Name, e.To.Version, e.To.Source, graph.DefaultSource)] = true
		}
		for ref := range refs {
			entry.Dependencies = append(entry.Dependencies, ref)
		}
		sort.Strings(entry.Dependencies)

		lock.Packages = append(lock.Packages, entry)
	}
	return lock
}

// fillChecksums pins registry entries that neither the index nor the
// previous lock supplied a checksum for, fingerprinting the index summary
// so repeated resolutions agree byte for byte. Runs after Reconcile so a
// previously recorded checksum always wins.
func fillChecksums(lock *lockfile.Lockfile, g *graph.Graph) {
	for i := range lock.Packages {
		p := &lock.Packages[i]
		if p.Checksum != "" || p.Source == workspaceSource {
			continue
		}
		n := g.Get(graph.PackageID{Name: p.Name, Version: p.Version, Source: p.Source})
		if n == nil || n.Summary == nil {
			continue
		}
		p.Checksum = lockfile.Checksum(summaryFingerprint(n.Summary))
	}
}

// summaryFingerprint renders the material a synthesized checksum covers:
// the entry's identity and declared dependencies, independent of how those
// dependencies resolve.
func summaryFingerprint(s *index.Summary) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %s\n", s.Name, s.Version)
	for _, d := range s.Dependencies {
		fmt.Fprintf(&b, "%s %s %d\n", d.RefName(), d.Req, d.Kind)
	}
	return b.Bytes()
}

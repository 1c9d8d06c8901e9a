// Package manifest defines the package manifest model: declared
// dependencies with version requirements, feature tables, links tags and
// platform qualifiers, plus loading of workspace manifests from TOML.
package manifest

import (
	"fmt"

	"github.com/cartonpkg/go-carton/version"
)

// DepKind classifies a dependency edge.
type DepKind int

const (
	// KindNormal is a regular dependency, needed to build the package.
	KindNormal DepKind = iota

	// KindBuild is needed only by build scripts, compiled for the host.
	KindBuild

	// KindDev is needed only for tests, benches and examples.
	// Dev dependencies of non-workspace-members never influence resolution.
	KindDev
)

// String returns the manifest table name for the kind.
func (k DepKind) String() string {
	switch k {
	case KindNormal:
		return "normal"
	case KindBuild:
		return "build"
	case KindDev:
		return "dev"
	default:
		return fmt.Sprintf("DepKind(%d)", int(k))
	}
}

// ResolverPolicy selects the feature resolution behavior declared by the
// root manifest.
type ResolverPolicy int

const (
	// PolicyV1 unifies features across every edge pointing at a package,
	// regardless of dependency kind or platform.
	PolicyV1 ResolverPolicy = 1

	// PolicyV2 isolates feature activation per build context: host vs
	// target, dependency kind, and whether the platform predicate matches.
	PolicyV2 ResolverPolicy = 2
)

// Dependency is one declared dependency edge as written in a manifest.
// Immutable after parsing.
type Dependency struct {
	// Name is the package name being depended upon (the index name).
	Name string

	// Rename is the name this dependency is referred to by in feature
	// tokens and source code, when it differs from Name.
	Rename string

	// Req is the version requirement attached to this edge.
	Req version.Requirement

	// Kind is the dependency kind: normal, build or dev.
	Kind DepKind

	// Platform restricts the edge to targets matching the predicate.
	// Nil means the edge applies to every platform.
	Platform *Platform

	// Registry names an alternative registry source for this dependency.
	// Empty means the default registry.
	Registry string

	// Optional marks the dependency as activated only through features.
	Optional bool

	// Features lists features to enable on the dependency.
	Features []string

	// DefaultFeatures controls whether the dependency's "default" feature
	// is requested. True unless the manifest says default-features = false.
	DefaultFeatures bool
}

// RefName returns the name feature tokens use to refer to this dependency.
func (d Dependency) RefName() string {
	if d.Rename != "" {
		return d.Rename
	}
	return d.Name
}

// Manifest is the parsed declaration of one package.
type Manifest struct {
	// Name is the package name.
	Name string

	// Version is the package's own version.
	Version version.Version

	// Links is the native-library uniqueness tag, if any. At most one
	// package instance per links tag may exist in a resolved graph.
	Links string

	// MinToolchain is the minimum toolchain version the package declares,
	// zero when undeclared. Never a hard resolution filter.
	MinToolchain version.Version

	// Policy is the feature resolver policy the package opts into.
	// Only the workspace root's policy matters for resolution.
	Policy ResolverPolicy

	// Dependencies lists every declared edge: normal, build and dev,
	// including platform-qualified tables.
	Dependencies []Dependency

	// Features maps feature names to the tokens they enable.
	Features map[string][]string
}

// Workspace is a set of packages resolved together. Members' dev
// dependencies participate in resolution; everyone else's are dropped.
type Workspace struct {
	// Root is the manifest resolution is seeded from.
	Root *Manifest

	// Members are the workspace member manifests, including the root.
	Members []*Manifest
}

// IsMember reports whether the named package is a workspace member.
func (w *Workspace) IsMember(name string) bool {
	for _, m := range w.Members {
		if m.Name == name {
			return true
		}
	}
	return false
}

// Policy returns the feature policy for the workspace, defaulting to v1
// when the root doesn't declare one.
func (w *Workspace) Policy() ResolverPolicy {
	if w.Root != nil && w.Root.Policy == PolicyV2 {
		return PolicyV2
	}
	return PolicyV1
}

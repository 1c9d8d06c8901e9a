// Package index provides the resolver's view of a package registry index:
// for a package name, the ordered set of known versions with their
// dependency and feature declarations.
//
// Implementations include an HTTP sparse-index client, a local directory
// index for vendored/airgapped use, an in-memory index for tests, and a
// caching wrapper with an offline mode.
package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/cartonpkg/go-carton/manifest"
	"github.com/cartonpkg/go-carton/version"
)

// ErrPackageNotFound indicates the requested package does not exist in the
// index.
var ErrPackageNotFound = errors.New("package not found")

// Index answers version queries for package names.
//
// Versions must return summaries in ascending version order and must be
// safe for concurrent use; the resolver treats the call as pure and may
// prefetch concurrently.
type Index interface {
	Versions(ctx context.Context, name string) ([]*Summary, error)
}

// Summary is everything the resolver knows about one published package
// version: its identity, yanked status, declared dependencies and feature
// table. Immutable once created.
type Summary struct {
	// Name is the package name.
	Name string

	// Version is the published version.
	Version version.Version

	// Yanked marks the version unavailable for new resolutions. Yanked
	// versions are still honored when pinned by a lock file or requested
	// by an exact requirement.
	Yanked bool

	// MinToolchain is the declared minimum toolchain version, zero when
	// undeclared.
	MinToolchain version.Version

	// Links is the native-library uniqueness tag, if any.
	Links string

	// Checksum is the content checksum recorded in the index
	// ("sha256:<hex>").
	Checksum string

	// Dependencies are the dependency edge templates this version
	// declares.
	Dependencies []manifest.Dependency

	// Features maps feature names to the tokens they enable.
	Features map[string][]string
}

// ID returns the "name@version" form used in logs and error chains.
func (s *Summary) ID() string {
	return s.Name + "@" + s.Version.String()
}

// FetchError indicates the index could not be queried: the name, wrapped
// cause, and whether the failure came from the network (as opposed to a
// malformed record). In offline mode the resolver degrades a network
// FetchError to serving cached candidates only.
type FetchError struct {
	// Name is the package whose lookup failed.
	Name string

	// Network is true for transport failures, false for malformed records.
	Network bool

	// Err is the underlying cause.
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch index entry for %s: %v", e.Name, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// record mirrors one JSON line of a sparse index file.
type record struct {
	Name         string              `json:"name"`
	Vers         string              `json:"vers"`
	Yanked       bool                `json:"yanked"`
	MinToolchain string              `json:"min_toolchain,omitempty"`
	Links        string              `json:"links,omitempty"`
	Cksum        string              `json:"cksum,omitempty"`
	Deps         []recordDep         `json:"deps"`
	Features     map[string][]string `json:"features"`
}

type recordDep struct {
	Name            string   `json:"name"`
	Req             string   `json:"req"`
	Kind            string   `json:"kind,omitempty"`
	Optional        bool     `json:"optional,omitempty"`
	DefaultFeatures *bool    `json:"default_features,omitempty"`
	Features        []string `json:"features,omitempty"`
	Target          string   `json:"target,omitempty"`
	Package         string   `json:"package,omitempty"`
	Registry        string   `json:"registry,omitempty"`
}

// parseRecords parses newline-delimited JSON index records into summaries,
// sorted by ascending version.
func parseRecords(name string, data []byte) ([]*Summary, error) {
	var summaries []*Summary

	dec := json.NewDecoder(bytes.NewReader(data))
	for dec.More() {
		var r record
		if err := dec.Decode(&r); err != nil {
			return nil, &FetchError{Name: name, Err: fmt.Errorf("malformed index record: %w", err)}
		}
		s, err := r.toSummary()
		if err != nil {
			return nil, &FetchError{Name: name, Err: err}
		}
		summaries = append(summaries, s)
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Version.Less(summaries[j].Version)
	})
	return summaries, nil
}

func (r record) toSummary() (*Summary, error) {
	v, err := version.Parse(r.Vers)
	if err != nil {
		return nil, fmt.Errorf("record for %s: %w", r.Name, err)
	}

	s := &Summary{
		Name:     r.Name,
		Version:  v,
		Yanked:   r.Yanked,
		Links:    r.Links,
		Checksum: r.Cksum,
		Features: r.Features,
	}
	if s.Features == nil {
		s.Features = map[string][]string{}
	}

	if r.MinToolchain != "" {
		mt, err := version.Parse(r.MinToolchain)
		if err != nil {
			return nil, fmt.Errorf("record for %s@%s: min_toolchain: %w", r.Name, r.Vers, err)
		}
		s.MinToolchain = mt
	}

	for _, d := range r.Deps {
		dep, err := d.toDependency()
		if err != nil {
			return nil, fmt.Errorf("record for %s@%s: dependency %s: %w", r.Name, r.Vers, d.Name, err)
		}
		s.Dependencies = append(s.Dependencies, dep)
	}
	return s, nil
}

func (d recordDep) toDependency() (manifest.Dependency, error) {
	req, err := version.ParseRequirement(d.Req)
	if err != nil {
		return manifest.Dependency{}, err
	}

	dep := manifest.Dependency{
		Name:            d.Name,
		Req:             req,
		Optional:        d.Optional,
		Features:        d.Features,
		Registry:        d.Registry,
		DefaultFeatures: true,
	}
	if d.DefaultFeatures != nil {
		dep.DefaultFeatures = *d.DefaultFeatures
	}
	if d.Package != "" && d.Package != d.Name {
		// Index records carry the reference name in "name" and the real
		// package in "package", matching the manifest rename convention.
		dep.Name = d.Package
		dep.Rename = d.Name
	}

	switch d.Kind {
	case "", "normal":
		dep.Kind = manifest.KindNormal
	case "build":
		dep.Kind = manifest.KindBuild
	case "dev":
		dep.Kind = manifest.KindDev
	default:
		return manifest.Dependency{}, fmt.Errorf("unknown dependency kind %q", d.Kind)
	}

	if d.Target != "" {
		platform, err := manifest.ParsePlatform(d.Target)
		if err != nil {
			return manifest.Dependency{}, err
		}
		dep.Platform = platform
	}
	return dep, nil
}

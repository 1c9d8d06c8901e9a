// Package lockfile reads, writes and reconciles the persisted resolution
// result. The format is TOML with a stable entry ordering so regenerating
// an unchanged resolution produces byte-identical, diff-friendly output.
package lockfile

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// FormatVersion is the lock format written by this package. Older versions
// are still readable.
const FormatVersion = 3

// header precedes every generated lock file.
const header = `# This file is automatically generated by carton.
# It is not intended for manual editing.
`

// Package is one locked package entry: identity, content checksum and
// direct dependencies by identity.
type Package struct {
	Name     string `toml:"name"`
	Version  string `toml:"version"`
	Source   string `toml:"source,omitempty"`
	Checksum string `toml:"checksum,omitempty"`

	// Dependencies references direct dependencies as "name version" or
	// "name version (source)" for non-default sources.
	Dependencies []string `toml:"dependencies,omitempty"`
}

// ID returns the "name@version" identity of the entry.
func (p Package) ID() string {
	return p.Name + "@" + p.Version
}

// Lockfile is the persisted resolution: an ordered list of package
// entries.
type Lockfile struct {
	Version  int       `toml:"version"`
	Packages []Package `toml:"package"`
}

// New creates an empty lockfile at the current format version.
func New() *Lockfile {
	return &Lockfile{Version: FormatVersion}
}

// Parse parses lockfile TOML data.
func Parse(data []byte) (*Lockfile, error) {
	var lf Lockfile
	if err := toml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parse lockfile: %w", err)
	}
	if lf.Version == 0 {
		lf.Version = 1
	}
	lf.sortEntries()
	return &lf, nil
}

// sortEntries puts entries in the canonical on-disk order: by name, then
// version, then source.
func (l *Lockfile) sortEntries() {
	sort.Slice(l.Packages, func(i, j int) bool {
		a, b := l.Packages[i], l.Packages[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Version != b.Version {
			return a.Version < b.Version
		}
		return a.Source < b.Source
	})
}

// Get returns the entry for name@version, or nil.
func (l *Lockfile) Get(name, version string) *Package {
	for i := range l.Packages {
		if l.Packages[i].Name == name && l.Packages[i].Version == version {
			return &l.Packages[i]
		}
	}
	return nil
}

// Versions returns every locked version of the named package, in entry
// order. Usually one, but SemVer-incompatible requirements can lock
// several instances.
func (l *Lockfile) Versions(name string) []string {
	var out []string
	for _, p := range l.Packages {
		if p.Name == name {
			out = append(out, p.Version)
		}
	}
	return out
}

// Encode serializes the lockfile with deterministic formatting.
// The encoder is hand-rolled rather than a generic TOML marshaler so the
// output stays stable field-by-field across versions of this package.
func (l *Lockfile) Encode() []byte {
	l.sortEntries()

	var sb strings.Builder
	sb.WriteString(header)
	fmt.Fprintf(&sb, "version = %d\n", l.Version)

	for _, p := range l.Packages {
		sb.WriteString("\n[[package]]\n")
		fmt.Fprintf(&sb, "name = %q\n", p.Name)
		fmt.Fprintf(&sb, "version = %q\n", p.Version)
		if p.Source != "" {
			fmt.Fprintf(&sb, "source = %q\n", p.Source)
		}
		if p.Checksum != "" {
			fmt.Fprintf(&sb, "checksum = %q\n", p.Checksum)
		}
		if len(p.Dependencies) > 0 {
			deps := append([]string(nil), p.Dependencies...)
			sort.Strings(deps)
			sb.WriteString("dependencies = [\n")
			for _, d := range deps {
				fmt.Fprintf(&sb, " %q,\n", d)
			}
			sb.WriteString("]\n")
		}
	}
	return []byte(sb.String())
}

// DepRef formats a dependency reference for an entry's dependency list.
func DepRef(name, version, source, defaultSource string) string {
	ref := name + " " + version
	if source != "" && source != defaultSource {
		ref += " (" + source + ")"
	}
	return ref
}

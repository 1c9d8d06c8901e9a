// Package version implements the version and requirement model used by the
// resolver: semantic versions, requirement predicates (caret, tilde,
// wildcard, comparison, comma-separated conjunctions), and the SemVer
// compatibility relation that decides when two versions can be unified.
package version

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Version is a validated, immutable semantic version.
// The zero value is not a usable version; construct with Parse or MustParse.
type Version struct {
	raw string
	v   *semver.Version
}

// Parse creates a validated Version from a string.
// The string must be a full semantic version (MAJOR.MINOR.PATCH with
// optional prerelease and build metadata). Malformed input returns a
// *ParseError that includes the offending substring.
func Parse(s string) (Version, error) {
	v, err := semver.StrictNewVersion(s)
	if err != nil {
		return Version{}, &ParseError{Input: s, Offending: s, Reason: "not a valid semantic version"}
	}
	return Version{raw: s, v: v}, nil
}

// MustParse creates a Version or panics. Use only for constants and tests.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the version string as originally written.
func (v Version) String() string {
	return v.raw
}

// IsZero reports whether this is the zero-value Version.
func (v Version) IsZero() bool {
	return v.v == nil
}

// Major returns the major version number.
func (v Version) Major() uint64 { return v.v.Major() }

// Minor returns the minor version number.
func (v Version) Minor() uint64 { return v.v.Minor() }

// Patch returns the patch version number.
func (v Version) Patch() uint64 { return v.v.Patch() }

// Prerelease returns the prerelease identifier, or "" for a release version.
func (v Version) Prerelease() string { return v.v.Prerelease() }

// IsPrerelease reports whether this is a prerelease version.
func (v Version) IsPrerelease() bool { return v.v.Prerelease() != "" }

// Compare compares two versions per semantic versioning precedence.
// Returns -1 if v < other, 0 if equal, 1 if v > other.
// Build metadata does not affect precedence.
func (v Version) Compare(other Version) int {
	return v.v.Compare(other.v)
}

// Less reports whether v sorts before other.
func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

// Equal reports whether v and other have equal precedence.
func (v Version) Equal(other Version) bool {
	return v.Compare(other) == 0
}

// Compatible reports whether two versions are interchangeable for
// unification purposes. Versions >= 1.0.0 are compatible when their major
// versions match. Versions with a zero major are compatible when the minor
// also matches, and 0.0.x versions are compatible only with themselves.
// If either version is a prerelease, compatibility requires exact equality.
func Compatible(a, b Version) bool {
	if a.IsPrerelease() || b.IsPrerelease() {
		return a.Compare(b) == 0
	}
	if a.Major() != b.Major() {
		return false
	}
	if a.Major() > 0 {
		return true
	}
	if a.Minor() != b.Minor() {
		return false
	}
	if a.Minor() > 0 {
		return true
	}
	// 0.0.x: nothing but the exact same patch is compatible.
	return a.Patch() == b.Patch()
}

// Versions is a sortable slice of Version, ordered by precedence.
type Versions []Version

func (v Versions) Len() int           { return len(v) }
func (v Versions) Swap(i, j int)      { v[i], v[j] = v[j], v[i] }
func (v Versions) Less(i, j int) bool { return v[i].Less(v[j]) }

// ParseError reports a malformed version or requirement string.
// It always carries the offending substring so callers can surface it.
type ParseError struct {
	// Input is the full string being parsed.
	Input string

	// Offending is the substring that failed to parse. For a single-clause
	// input this equals Input; for a comma-separated requirement it is the
	// clause that failed.
	Offending string

	// Reason describes why parsing failed.
	Reason string

	// kind is "version" or "requirement".
	kind string
}

func (e *ParseError) Error() string {
	kind := e.kind
	if kind == "" {
		kind = "version"
	}
	if e.Offending != "" && e.Offending != e.Input {
		return fmt.Sprintf("invalid %s %q: clause %q: %s", kind, e.Input, e.Offending, e.Reason)
	}
	return fmt.Sprintf("invalid %s %q: %s", kind, e.Input, e.Reason)
}

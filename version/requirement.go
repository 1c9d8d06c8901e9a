package version

import (
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Requirement is a predicate over versions, built from one or more
// comparator clauses ANDed together. Requirements are immutable; they are
// attached to dependency edges, never to resolved packages.
//
// Accepted clause forms:
//
//	1.2.3        caret by default: >=1.2.3, <2.0.0
//	^1.2.3       explicit caret
//	~1.2.3       tilde: >=1.2.3, <1.3.0
//	1.2.*  *     wildcards
//	=1.2.3       exact (partial precision allowed: =1.2 matches any 1.2.z)
//	>=1.2, <2    comparison operators, comma-separated conjunction
type Requirement struct {
	raw string
	c   *semver.Constraints
}

// Any matches every version. It is the requirement written as "*".
var Any = MustParseRequirement("*")

// ParseRequirement parses a requirement string.
// Malformed input returns a *ParseError naming the offending clause.
func ParseRequirement(s string) (Requirement, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Requirement{}, &ParseError{Input: s, Offending: s, Reason: "empty requirement", kind: "requirement"}
	}

	clauses := strings.Split(trimmed, ",")
	normalized := make([]string, 0, len(clauses))
	for _, clause := range clauses {
		clause = strings.TrimSpace(clause)
		if clause == "" {
			return Requirement{}, &ParseError{Input: s, Offending: clause, Reason: "empty clause", kind: "requirement"}
		}
		normalized = append(normalized, normalizeClause(clause))
	}

	c, err := semver.NewConstraint(strings.Join(normalized, ", "))
	if err != nil {
		return Requirement{}, &ParseError{
			Input:     s,
			Offending: offendingClause(clauses, normalized),
			Reason:    "not a valid version comparator",
			kind:      "requirement",
		}
	}

	return Requirement{raw: trimmed, c: c}, nil
}

// MustParseRequirement parses a requirement or panics.
// Use only for constants and tests.
func MustParseRequirement(s string) Requirement {
	r, err := ParseRequirement(s)
	if err != nil {
		panic(err)
	}
	return r
}

// normalizeClause rewrites a bare version clause ("1.2") into its caret
// equivalent ("^1.2"). Clauses that already carry an operator or wildcard
// pass through unchanged: "1.2.*" means any 1.2.z, not ^1.2.
func normalizeClause(clause string) string {
	if strings.Contains(clause, "*") {
		return clause
	}
	first := clause[0]
	if first >= '0' && first <= '9' {
		return "^" + clause
	}
	return clause
}

// offendingClause finds the first original clause whose normalized form
// fails to parse in isolation. Falls back to the whole input.
func offendingClause(original, normalized []string) string {
	for i, n := range normalized {
		if _, err := semver.NewConstraint(n); err != nil {
			return strings.TrimSpace(original[i])
		}
	}
	return strings.TrimSpace(strings.Join(original, ","))
}

// String returns the requirement as originally written.
func (r Requirement) String() string {
	return r.raw
}

// IsZero reports whether this is the zero-value Requirement.
func (r Requirement) IsZero() bool {
	return r.c == nil
}

// Matches reports whether the candidate version satisfies the requirement.
// The test is pure: every comparator kind is reduced to a lower/upper bound
// interval by the constraint engine before testing.
func (r Requirement) Matches(v Version) bool {
	return r.c.Check(v.v)
}

// IsExact reports whether the requirement pins a fully specified version
// ("=1.2.3"). Exact requirements may select yanked versions.
func (r Requirement) IsExact() bool {
	rest, ok := strings.CutPrefix(r.raw, "=")
	if !ok {
		return false
	}
	rest = strings.TrimSpace(rest)
	_, err := semver.StrictNewVersion(rest)
	return err == nil
}

// ExactVersion returns the pinned version for an exact requirement.
// The second return is false when the requirement is not exact.
func (r Requirement) ExactVersion() (Version, bool) {
	if !r.IsExact() {
		return Version{}, false
	}
	v, err := Parse(strings.TrimSpace(strings.TrimPrefix(r.raw, "=")))
	if err != nil {
		return Version{}, false
	}
	return v, true
}

// Package feature implements feature resolution over a frozen dependency
// graph: parsing feature tokens, walking declared feature tables, and
// computing which features and optional dependencies are active for every
// package instance, under either the unifying v1 policy or the
// context-isolating v2 policy.
package feature

import (
	"fmt"
	"strings"
)

// Token is one parsed entry from a feature table's value list.
type Token struct {
	// Dep marks the "dep:name" form: activate the optional dependency
	// without implying a same-named feature.
	Dep bool

	// Weak marks the "pkg?/feat" form: enable feat on pkg only if pkg was
	// activated by something else.
	Weak bool

	// Pkg is the dependency reference name, for the dep:, pkg/feat and
	// pkg?/feat forms. Empty for a bare feature token.
	Pkg string

	// Feature is the feature name. Empty for the dep: form.
	Feature string
}

// ParseToken parses one feature table token. Recognized forms, in order:
// "dep:name", "pkg?/feat", "pkg/feat", and a bare feature name.
func ParseToken(s string) (Token, error) {
	if s == "" {
		return Token{}, fmt.Errorf("empty feature token")
	}

	if rest, ok := strings.CutPrefix(s, "dep:"); ok {
		if rest == "" || strings.ContainsAny(rest, "/?") {
			return Token{}, fmt.Errorf("invalid feature token %q: dep: must name a dependency", s)
		}
		return Token{Dep: true, Pkg: rest}, nil
	}

	if pkg, feat, ok := strings.Cut(s, "/"); ok {
		weak := false
		if p, found := strings.CutSuffix(pkg, "?"); found {
			weak = true
			pkg = p
		}
		if pkg == "" || feat == "" || strings.ContainsAny(feat, "/?") || strings.Contains(pkg, "?") {
			return Token{}, fmt.Errorf("invalid feature token %q", s)
		}
		return Token{Weak: weak, Pkg: pkg, Feature: feat}, nil
	}

	if strings.Contains(s, "?") {
		return Token{}, fmt.Errorf("invalid feature token %q: ? is only valid before /", s)
	}
	return Token{Feature: s}, nil
}

// String renders the token back in manifest form.
func (t Token) String() string {
	switch {
	case t.Dep:
		return "dep:" + t.Pkg
	case t.Weak:
		return t.Pkg + "?/" + t.Feature
	case t.Pkg != "":
		return t.Pkg + "/" + t.Feature
	default:
		return t.Feature
	}
}

package manifest

import (
	"fmt"
	"strings"
)

// Environment describes the platform a build context compiles for.
// Two environments exist per invocation: the host (build scripts) and the
// target.
type Environment struct {
	// Triple is the full target triple, e.g. "x86_64-unknown-linux-gnu".
	Triple string

	// OS is the operating system component, e.g. "linux", "windows".
	OS string

	// Family is the broad family: "unix" or "windows".
	Family string
}

// Platform is a predicate restricting a dependency edge to matching
// targets. It is either a literal triple or a cfg() expression over a small
// grammar: cfg(unix), cfg(windows), cfg(target_os = "..."),
// cfg(target_family = "..."), and not/any/all combinators.
type Platform struct {
	raw  string
	expr cfgExpr
}

// ParsePlatform parses a platform predicate string.
func ParsePlatform(s string) (*Platform, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, fmt.Errorf("empty platform predicate")
	}

	if inner, ok := cutWrapped(trimmed, "cfg(", ")"); ok {
		expr, rest, err := parseCfgExpr(inner)
		if err != nil {
			return nil, fmt.Errorf("platform %q: %w", s, err)
		}
		if strings.TrimSpace(rest) != "" {
			return nil, fmt.Errorf("platform %q: trailing input %q", s, rest)
		}
		return &Platform{raw: trimmed, expr: expr}, nil
	}

	// A literal target triple.
	return &Platform{raw: trimmed, expr: tripleExpr(trimmed)}, nil
}

// MustParsePlatform parses a platform predicate or panics.
// Use only for constants and tests.
func MustParsePlatform(s string) *Platform {
	p, err := ParsePlatform(s)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the predicate as originally written.
func (p *Platform) String() string {
	return p.raw
}

// Matches reports whether the predicate holds for the environment.
// A nil Platform matches everything.
func (p *Platform) Matches(env Environment) bool {
	if p == nil {
		return true
	}
	return p.expr.eval(env)
}

type cfgExpr interface {
	eval(Environment) bool
}

type tripleExpr string

func (t tripleExpr) eval(env Environment) bool { return string(t) == env.Triple }

type familyExpr string

func (f familyExpr) eval(env Environment) bool { return string(f) == env.Family }

type osExpr string

func (o osExpr) eval(env Environment) bool { return string(o) == env.OS }

type notExpr struct{ inner cfgExpr }

func (n notExpr) eval(env Environment) bool { return !n.inner.eval(env) }

type anyExpr []cfgExpr

func (a anyExpr) eval(env Environment) bool {
	for _, e := range a {
		if e.eval(env) {
			return true
		}
	}
	return false
}

type allExpr []cfgExpr

func (a allExpr) eval(env Environment) bool {
	for _, e := range a {
		if !e.eval(env) {
			return false
		}
	}
	return true
}

// parseCfgExpr parses one expression from the front of s and returns the
// unconsumed remainder.
func parseCfgExpr(s string) (cfgExpr, string, error) {
	s = strings.TrimSpace(s)

	switch {
	case strings.HasPrefix(s, "not(") || strings.HasPrefix(s, "not ("):
		inner, rest, err := parseParenList(s[len("not"):])
		if err != nil {
			return nil, "", err
		}
		if len(inner) != 1 {
			return nil, "", fmt.Errorf("not() takes exactly one predicate")
		}
		return notExpr{inner: inner[0]}, rest, nil

	case strings.HasPrefix(s, "any(") || strings.HasPrefix(s, "any ("):
		inner, rest, err := parseParenList(s[len("any"):])
		if err != nil {
			return nil, "", err
		}
		return anyExpr(inner), rest, nil

	case strings.HasPrefix(s, "all(") || strings.HasPrefix(s, "all ("):
		inner, rest, err := parseParenList(s[len("all"):])
		if err != nil {
			return nil, "", err
		}
		return allExpr(inner), rest, nil
	}

	// Atom: up to the next comma or closing paren.
	end := strings.IndexAny(s, ",)")
	atom := s
	rest := ""
	if end >= 0 {
		atom = s[:end]
		rest = s[end:]
	}
	expr, err := parseCfgAtom(strings.TrimSpace(atom))
	if err != nil {
		return nil, "", err
	}
	return expr, rest, nil
}

// parseParenList parses "(expr, expr, ...)" and returns the remainder after
// the closing paren.
func parseParenList(s string) ([]cfgExpr, string, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "(") {
		return nil, "", fmt.Errorf("expected '(' in cfg expression")
	}
	s = s[1:]

	var exprs []cfgExpr
	for {
		s = strings.TrimSpace(s)
		if strings.HasPrefix(s, ")") {
			return exprs, s[1:], nil
		}
		expr, rest, err := parseCfgExpr(s)
		if err != nil {
			return nil, "", err
		}
		exprs = append(exprs, expr)
		s = strings.TrimSpace(rest)
		if strings.HasPrefix(s, ",") {
			s = s[1:]
			continue
		}
		if !strings.HasPrefix(s, ")") {
			return nil, "", fmt.Errorf("expected ',' or ')' in cfg expression, got %q", s)
		}
	}
}

// parseCfgAtom parses a leaf predicate: unix, windows, or key = "value".
func parseCfgAtom(atom string) (cfgExpr, error) {
	switch atom {
	case "unix":
		return familyExpr("unix"), nil
	case "windows":
		return familyExpr("windows"), nil
	}

	key, value, ok := strings.Cut(atom, "=")
	if !ok {
		return nil, fmt.Errorf("unsupported cfg predicate %q", atom)
	}
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	unquoted, ok := cutWrapped(value, `"`, `"`)
	if !ok {
		return nil, fmt.Errorf("cfg value for %q must be a quoted string", key)
	}

	switch key {
	case "target_os":
		return osExpr(unquoted), nil
	case "target_family":
		return familyExpr(unquoted), nil
	default:
		return nil, fmt.Errorf("unsupported cfg key %q", key)
	}
}

// cutWrapped strips a prefix and suffix pair when both are present.
func cutWrapped(s, prefix, suffix string) (string, bool) {
	if strings.HasPrefix(s, prefix) && strings.HasSuffix(s, suffix) && len(s) >= len(prefix)+len(suffix) {
		return s[len(prefix) : len(s)-len(suffix)], true
	}
	return "", false
}

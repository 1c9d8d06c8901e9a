package carton

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cartonpkg/go-carton/lockfile"
	"github.com/cartonpkg/go-carton/manifest"
	"github.com/cartonpkg/go-carton/version"
)

// ToolchainPolicy controls how a candidate's declared minimum toolchain
// version influences candidate ordering. It is never a hard filter:
// filtering could make resolution fail outright when no new-enough version
// exists.
type ToolchainPolicy int

const (
	// ToolchainPrefer orders candidates whose minimum toolchain is
	// satisfied by the active toolchain ahead of those whose isn't.
	ToolchainPrefer ToolchainPolicy = iota

	// ToolchainIgnore orders candidates purely by version.
	ToolchainIgnore
)

// Option configures resolution behavior.
type Option func(*config) error

// config holds all resolution configuration.
type config struct {
	includeDev      bool
	offline         bool
	frozen          bool
	previous        *lockfile.Lockfile
	toolchain       version.Version
	toolchainPolicy ToolchainPolicy
	host            manifest.Environment
	target          manifest.Environment
	features        []string
	noDefault       bool

	// logger is the structured logger for debug/info output.
	// If nil, logging is disabled (silent mode). slog keeps the library
	// backend-agnostic: callers plug in zap, zerolog, etc. via handlers.
	logger *slog.Logger
}

// WithDevDeps includes workspace members' dev dependencies in resolution
// and dev feature requests in feature resolution. Dev dependencies of
// non-members never participate either way.
func WithDevDeps() Option {
	return func(c *config) error {
		c.includeDev = true
		return nil
	}
}

// WithOffline forbids network access during resolution. Network-free
// indexes keep answering normally; a warmed index.Cached serves only what
// it already holds; anything else fails fast on the first lookup.
func WithOffline() Option {
	return func(c *config) error {
		c.offline = true
		return nil
	}
}

// WithLockfile supplies the previous resolution. Locked versions are
// preferred while they still satisfy current requirements, and locked
// yanked versions remain selectable.
func WithLockfile(prev *lockfile.Lockfile) Option {
	return func(c *config) error {
		c.previous = prev
		return nil
	}
}

// WithFrozen requests strict reproducibility: resolution fails with a
// *lockfile.MismatchError when the result would change any existing lock
// entry. Requires WithLockfile.
func WithFrozen() Option {
	return func(c *config) error {
		c.frozen = true
		return nil
	}
}

// WithToolchain sets the active toolchain version and the policy applied
// to candidates declaring a minimum toolchain.
func WithToolchain(v version.Version, policy ToolchainPolicy) Option {
	return func(c *config) error {
		c.toolchain = v
		c.toolchainPolicy = policy
		return nil
	}
}

// WithFeatures requests additional features on every workspace member
// during feature resolution.
func WithFeatures(names ...string) Option {
	return func(c *config) error {
		c.features = append(c.features, names...)
		return nil
	}
}

// WithoutDefaultFeatures suppresses the implicit "default" feature request
// on workspace members.
func WithoutDefaultFeatures() Option {
	return func(c *config) error {
		c.noDefault = true
		return nil
	}
}

// WithEnvironments sets the host and target platforms used when feature
// resolution evaluates platform predicates.
func WithEnvironments(host, target manifest.Environment) Option {
	return func(c *config) error {
		c.host = host
		c.target = target
		return nil
	}
}

// WithLogger sets a structured logger for resolution diagnostics.
// If not set, logging is disabled (silent mode).
func WithLogger(l *slog.Logger) Option {
	return func(c *config) error {
		c.logger = l
		return nil
	}
}

// validate checks the configuration for logical consistency.
func (c *config) validate() error {
	if c.frozen && c.previous == nil {
		return errors.New("frozen mode requires a previous lockfile")
	}
	return nil
}

// log returns the configured logger, or a no-op logger if none was set,
// so internal code never nil-checks. Libraries stay silent unless the
// caller opts in.
func (c *config) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.New(discardHandler{})
}

// discardHandler is a slog.Handler that discards all log records.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// newConfig applies options and validates the result.
func newConfig(opts ...Option) (*config, error) {
	c := &config{
		host:   DefaultEnvironment(),
		target: DefaultEnvironment(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

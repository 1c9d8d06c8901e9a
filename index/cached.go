package index

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Cached wraps another index with a per-name cache and an offline mode.
//
// Online, every miss is forwarded to the underlying index and remembered,
// including not-found results. Offline, only already cached names can be
// served; anything else fails with a network FetchError so the caller can
// distinguish "unknown because offline" from "known absent".
type Cached struct {
	inner   Index
	offline bool

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	summaries []*Summary
	err       error
}

// NewCached creates a caching wrapper around inner.
func NewCached(inner Index, offline bool) *Cached {
	return &Cached{
		inner:   inner,
		offline: offline,
		entries: make(map[string]cacheEntry),
	}
}

// Offline reports whether the wrapper serves cached entries only.
func (c *Cached) Offline() bool {
	return c.offline
}

// Versions serves from the cache, falling through to the underlying index
// when online.
func (c *Cached) Versions(ctx context.Context, name string) ([]*Summary, error) {
	c.mu.RLock()
	entry, ok := c.entries[name]
	c.mu.RUnlock()
	if ok {
		return entry.summaries, entry.err
	}

	if c.offline {
		return nil, &FetchError{
			Name:    name,
			Network: true,
			Err:     errors.New("offline mode and not in cache"),
		}
	}

	summaries, err := c.inner.Versions(ctx, name)
	if err != nil {
		// Cache definitive absence; transient failures stay retryable.
		if errors.Is(err, ErrPackageNotFound) {
			c.store(name, cacheEntry{err: fmt.Errorf("%s: %w", name, ErrPackageNotFound)})
		}
		return nil, err
	}

	c.store(name, cacheEntry{summaries: summaries})
	return summaries, nil
}

// Warm injects summaries without consulting the underlying index, e.g.
// from a prior resolution in the same process.
func (c *Cached) Warm(name string, summaries []*Summary) {
	c.store(name, cacheEntry{summaries: summaries})
}

// NetworkFree reports whether the wrapper can answer every query without
// network access, which is the case exactly when the underlying index can.
func (c *Cached) NetworkFree() bool {
	if nf, ok := c.inner.(interface{ NetworkFree() bool }); ok {
		return nf.NetworkFree()
	}
	return false
}

// ForOffline adapts idx for resolution without network access.
//
// Network-free indexes (Local, Memory, caches over either) pass through
// untouched and keep answering normally. A Cached over a networked index
// keeps serving whatever it has already fetched or been warmed with and
// refuses the rest. Anything else is wrapped so cache misses fail fast
// with a network FetchError instead of dialing out.
func ForOffline(idx Index) Index {
	if nf, ok := idx.(interface{ NetworkFree() bool }); ok && nf.NetworkFree() {
		return idx
	}
	if c, ok := idx.(*Cached); ok {
		return readOnly{c}
	}
	return NewCached(idx, true)
}

// readOnly serves a Cached's existing entries without ever consulting the
// underlying index.
type readOnly struct {
	c *Cached
}

func (r readOnly) Versions(_ context.Context, name string) ([]*Summary, error) {
	r.c.mu.RLock()
	entry, ok := r.c.entries[name]
	r.c.mu.RUnlock()
	if ok {
		return entry.summaries, entry.err
	}
	return nil, &FetchError{
		Name:    name,
		Network: true,
		Err:     errors.New("offline mode and not in cache"),
	}
}

func (c *Cached) store(name string, entry cacheEntry) {
	c.mu.Lock()
	c.entries[name] = entry
	c.mu.Unlock()
}

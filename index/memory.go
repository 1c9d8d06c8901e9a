package index

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Compile-time interface compliance checks.
var (
	_ Index = (*Client)(nil)
	_ Index = (*Local)(nil)
	_ Index = (*Memory)(nil)
	_ Index = (*Cached)(nil)
	_ Index = readOnly{}
)

// Memory is a thread-safe in-memory index. It backs tests and lets callers
// embed a synthetic registry.
type Memory struct {
	mu       sync.RWMutex
	packages map[string][]*Summary
}

// NewMemory creates an empty in-memory index.
func NewMemory() *Memory {
	return &Memory{packages: make(map[string][]*Summary)}
}

// Add publishes a summary. Versions for the same name are kept in
// ascending version order regardless of insertion order.
func (m *Memory) Add(s *Summary) {
	m.mu.Lock()
	defer m.mu.Unlock()

	versions := append(m.packages[s.Name], s)
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Version.Less(versions[j].Version)
	})
	m.packages[s.Name] = versions
}

// NetworkFree reports that the index never touches the network.
func (m *Memory) NetworkFree() bool { return true }

// Versions returns all published versions of a package.
func (m *Memory) Versions(_ context.Context, name string) ([]*Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	versions, ok := m.packages[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrPackageNotFound)
	}
	out := make([]*Summary, len(versions))
	copy(out, versions)
	return out, nil
}

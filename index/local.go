package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Local is a directory-backed index with the same sharded layout as the
// sparse index. It needs no network access, which makes it the index of
// choice for vendored and airgapped workflows.
type Local struct {
	root string
}

// NewLocal creates a local index rooted at dir.
// Returns an error when dir does not exist or is not a directory.
func NewLocal(dir string) (*Local, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("local index: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("local index: %s is not a directory", dir)
	}
	return &Local{root: dir}, nil
}

// NetworkFree reports that the index never touches the network.
func (l *Local) NetworkFree() bool { return true }

// Versions reads the package's index file from disk.
func (l *Local) Versions(_ context.Context, name string) ([]*Summary, error) {
	path := filepath.Join(l.root, filepath.FromSlash(indexPath(name)))
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", name, ErrPackageNotFound)
		}
		return nil, &FetchError{Name: name, Err: err}
	}
	return parseRecords(name, data)
}

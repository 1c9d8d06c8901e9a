package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// Filename is the lock file name next to a workspace's root manifest.
const Filename = "carton.lock"

// lockfilePermissions is the file mode for written lock files.
const lockfilePermissions = 0o644

// ReadFile reads and parses the lockfile at path.
// A missing file returns (nil, nil): an absent lock is a valid input to
// resolution, not an error.
func ReadFile(path string) (*Lockfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read lockfile: %w", err)
	}
	lf, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return lf, nil
}

// WriteFile atomically replaces the lockfile at path.
//
// The content is staged to a temporary file in the same directory and
// renamed into place, under an advisory file lock so concurrent
// invocations against the same workspace serialize their rewrites.
func (l *Lockfile) WriteFile(path string) error {
	fl := flock.New(path + ".flock")
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", path, err)
	}
	defer func() { _ = fl.Unlock() }()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".carton.lock.*")
	if err != nil {
		return fmt.Errorf("stage lockfile: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(l.Encode()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("stage lockfile: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("stage lockfile: %w", err)
	}
	if err := os.Chmod(tmpPath, lockfilePermissions); err != nil {
		return fmt.Errorf("stage lockfile: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("replace lockfile: %w", err)
	}
	return nil
}

package lockfile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Diff describes how a fresh resolution differs from a previous lock.
type Diff struct {
	// Added lists entries present only in the new lock, as "name@version".
	Added []string

	// Removed lists entries present only in the old lock.
	Removed []string

	// Changed lists entries whose checksum or dependency set changed.
	Changed []string
}

// IsEmpty reports whether the two locks are equivalent.
func (d *Diff) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// MismatchError is returned in frozen (reproducibility) mode when
// resolution diverges from the existing lock.
type MismatchError struct {
	Diff *Diff
}

func (e *MismatchError) Error() string {
	var sb strings.Builder
	sb.WriteString("lockfile is out of date and frozen mode is requested")
	for _, a := range e.Diff.Added {
		sb.WriteString("\n  added:   " + a)
	}
	for _, r := range e.Diff.Removed {
		sb.WriteString("\n  removed: " + r)
	}
	for _, c := range e.Diff.Changed {
		sb.WriteString("\n  changed: " + c)
	}
	return sb.String()
}

// Reconcile merges a previous lock into a freshly computed one and reports
// the differences.
//
// Checksums recorded previously are carried over for unchanged entries, so
// a registry that stops serving checksum material cannot silently alter an
// existing lock. In frozen mode any divergence fails with *MismatchError
// instead of being rewritten.
func Reconcile(prev, next *Lockfile, frozen bool) (*Diff, error) {
	diff := &Diff{}
	if prev == nil {
		for _, p := range next.Packages {
			diff.Added = append(diff.Added, p.ID())
		}
		if frozen && !diff.IsEmpty() {
			return nil, &MismatchError{Diff: diff}
		}
		return diff, nil
	}

	prevByID := make(map[string]Package, len(prev.Packages))
	for _, p := range prev.Packages {
		prevByID[p.ID()] = p
	}

	nextIDs := make(map[string]bool, len(next.Packages))
	for i := range next.Packages {
		entry := &next.Packages[i]
		nextIDs[entry.ID()] = true

		old, ok := prevByID[entry.ID()]
		if !ok {
			diff.Added = append(diff.Added, entry.ID())
			continue
		}
		if entry.Checksum == "" {
			entry.Checksum = old.Checksum
		}
		if entry.Checksum != old.Checksum || !sameDeps(entry.Dependencies, old.Dependencies) {
			diff.Changed = append(diff.Changed, entry.ID())
		}
	}

	for _, p := range prev.Packages {
		if !nextIDs[p.ID()] {
			diff.Removed = append(diff.Removed, p.ID())
		}
	}

	if frozen && !diff.IsEmpty() {
		return nil, &MismatchError{Diff: diff}
	}
	return diff, nil
}

func sameDeps(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, d := range a {
		seen[d]++
	}
	for _, d := range b {
		seen[d]--
		if seen[d] < 0 {
			return false
		}
	}
	return true
}

// Checksum computes the content checksum recorded in lock entries when the
// index does not supply one: "sha256:" plus the hex digest.
func Checksum(data []byte) string {
	h := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(h[:])
}

// String renders the diff for CLI output.
func (d *Diff) String() string {
	if d.IsEmpty() {
		return "lockfile unchanged"
	}
	var parts []string
	for _, a := range d.Added {
		parts = append(parts, fmt.Sprintf("adding %s", a))
	}
	for _, r := range d.Removed {
		parts = append(parts, fmt.Sprintf("removing %s", r))
	}
	for _, c := range d.Changed {
		parts = append(parts, fmt.Sprintf("updating %s", c))
	}
	return strings.Join(parts, "\n")
}

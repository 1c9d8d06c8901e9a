package carton

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cartonpkg/go-carton/graph"
)

// Sentinel errors for common resolution failures.
var (
	// ErrNoRoot indicates resolution was attempted without a workspace.
	ErrNoRoot = errors.New("workspace has no root manifest")

	// ErrCanceled indicates resolution was aborted between candidate
	// attempts via context cancellation.
	ErrCanceled = errors.New("resolution canceled")
)

// Conflict records one exhausted requirement during search: which package
// instance required what, and why every candidate was rejected.
type Conflict struct {
	// Name is the package whose candidates were exhausted.
	Name string

	// Requirement is the requirement string that could not be satisfied.
	Requirement string

	// Chain is the dependency chain from a workspace root to the
	// requester, e.g. "root@1.0.0 -> a@2.0.0".
	Chain string

	// Reasons explains rejected candidates (existing incompatible
	// instance, links holder, missing package).
	Reasons []string
}

func (c Conflict) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s requires %s %q", c.Chain, c.Name, c.Requirement)
	for _, r := range c.Reasons {
		sb.WriteString("\n    ")
		sb.WriteString(r)
	}
	return sb.String()
}

// NoSolutionError is returned when the search space is exhausted without a
// consistent assignment. It reports the specific conflicting requirement
// chains, never a bare failure.
type NoSolutionError struct {
	// Name is the package the final exhausted edge targeted.
	Name string

	// Conflicts are the requirement chains that could not be reconciled.
	Conflicts []Conflict
}

func (e *NoSolutionError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "no version of %s satisfies all requirements:", e.Name)
	for _, c := range e.Conflicts {
		sb.WriteString("\n  - ")
		sb.WriteString(c.String())
	}
	return sb.String()
}

// LinksConflictError is returned when two irreconcilable package versions
// declare the same links tag. The links constraint is enforced, never
// advisory: resolution fails rather than silently picking one.
type LinksConflictError struct {
	// Links is the contested links tag.
	Links string

	// Holder is the instance already occupying the tag.
	Holder graph.PackageID

	// Rejected is the candidate that also declares the tag.
	Rejected graph.PackageID

	// Chain explains how the rejected candidate was required.
	Chain string
}

func (e *LinksConflictError) Error() string {
	return fmt.Sprintf("links tag %q is claimed by both %s and %s (required via %s): only one package may link the native library",
		e.Links, e.Holder, e.Rejected, e.Chain)
}

// CycleError is returned when normal or build dependency edges form a
// cycle. Cycles through dev edges are legal and not reported.
type CycleError struct {
	// Cycle is the closed path, first and last entries equal.
	Cycle []graph.PackageID
}

func (e *CycleError) Error() string {
	if len(e.Cycle) == 0 {
		return "dependency cycle detected"
	}
	parts := make([]string, len(e.Cycle))
	for i, id := range e.Cycle {
		parts[i] = id.String()
	}
	return "dependency cycle detected: " + strings.Join(parts, " -> ")
}

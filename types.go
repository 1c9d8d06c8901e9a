package carton

import (
	"runtime"

	"github.com/cartonpkg/go-carton/feature"
	"github.com/cartonpkg/go-carton/graph"
	"github.com/cartonpkg/go-carton/lockfile"
	"github.com/cartonpkg/go-carton/manifest"
)

// Resolution is the complete output of a resolve: the package graph, the
// feature activations computed over it, the lockfile that pins it, and the
// diff against the previous lockfile (empty when nothing moved).
type Resolution struct {
	Graph    *graph.Graph
	Features *feature.Set
	Lock     *lockfile.Lockfile
	Diff     *lockfile.Diff
}

// DefaultEnvironment describes the platform the resolver itself is running
// on. It is used for both host and target unless overridden with
// WithEnvironments.
func DefaultEnvironment() manifest.Environment {
	family := "unix"
	if runtime.GOOS == "windows" {
		family = "windows"
	}
	return manifest.Environment{
		Triple: runtime.GOARCH + "-" + runtime.GOOS,
		OS:     runtime.GOOS,
		Family: family,
	}
}

package index

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

// prefetchConcurrency bounds parallel index queries during warm-up.
const prefetchConcurrency = 5

// Prefetch warms the index for the given names concurrently.
//
// Index queries are pure and cacheable, so this is the one place
// parallelism is safe: resolution itself stays single-threaded and only
// reads what Prefetch already pulled in. Not-found names are ignored here;
// the resolver reports them with full requirement context later.
func Prefetch(ctx context.Context, idx Index, names []string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(prefetchConcurrency)

	for _, name := range names {
		name := name
		g.Go(func() error {
			_, err := idx.Versions(ctx, name)
			if err != nil && !errors.Is(err, ErrPackageNotFound) {
				return err
			}
			return nil
		})
	}

	return g.Wait()
}

package sim

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RunAll runs every worker's tick loop from start to end concurrently,
// one goroutine per partition (spec.md §5's "one OS thread per
// partition worker"), and returns the first error any worker returns,
// once every worker has stopped. Cancelling ctx, or one worker's
// failure, stops the rest at their next tick boundary.
func RunAll(ctx context.Context, workers []*Worker, start, end uint32) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, w := range workers {
		w := w
		g.Go(func() error {
			return w.Run(gctx, start, end)
		})
	}
	return g.Wait()
}

package sim

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// RunBatch runs independent simulations with at most limit in flight.
// Each simulation stays single threaded; results come back in input order.
// The first failure cancels the runs that have not started yet. A Listener
// passed in opts is shared and called from several goroutines.
func RunBatch(ctx context.Context, batch []Settings, limit int, opts ...Option) ([]*Result, error) {
	for i, s := range batch {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("batch entry %d: %w", i, err)
		}
	}

	results := make([]*Result, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, s := range batch {
		g.Go(func() error {
			res, err := Run(gctx, s, opts...)
			if err != nil {
				return fmt.Errorf("batch entry %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Seeds expands base into n settings with consecutive seeds.
func Seeds(base Settings, n int) []Settings {
	out := make([]Settings, n)
	for i := range out {
		out[i] = base
		out[i].Seed = base.Seed + uint64(i)
	}
	return out
}

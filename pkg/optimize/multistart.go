package optimize

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/keyforge/pkg/carpalx"
	"github.com/matzehuels/keyforge/pkg/errors"
	"github.com/matzehuels/keyforge/pkg/layout"
)

// MultiStartOptions configures [MultiStart].
type MultiStartOptions struct {
	Restarts  int
	Steps     int
	Randomize bool
	// Parallelism limits concurrent runs. Zero means GOMAXPROCS.
	Parallelism int
}

// MultiStart runs independent optimizations of l with seeds cfg.Seed,
// cfg.Seed+1, ... concurrently and returns the result with the lowest
// effort; ties go to the lower seed. All runs share one cost cache.
//
// Progress reports are only forwarded for the first run.
func MultiStart(ctx context.Context, l *layout.Layout, triads []WeightedTriad, cfg Config, opts MultiStartOptions) (*Result, error) {
	if opts.Restarts < 1 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "restarts must be at least 1, got %d", opts.Restarts)
	}
	if cfg.Cache == nil {
		cfg.Cache = carpalx.NewCache()
	}
	limit := opts.Parallelism
	if limit <= 0 {
		limit = runtime.GOMAXPROCS(0)
	}

	results := make([]*Result, opts.Restarts)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range opts.Restarts {
		runCfg := cfg
		runCfg.Seed = cfg.Seed + uint64(i)
		if i > 0 {
			runCfg.Progress = nil
		}
		if runCfg.Logger != nil {
			runCfg.Logger = runCfg.Logger.With("run", i)
		}
		g.Go(func() error {
			o, err := NewLayoutOptimizer(l, triads, runCfg)
			if err != nil {
				return err
			}
			res, err := o.Run(gctx, opts.Steps, opts.Randomize)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := results[0]
	interrupted := false
	for _, r := range results {
		if r.Effort < best.Effort {
			best = r
		}
		interrupted = interrupted || r.Interrupted
	}
	best.Interrupted = interrupted
	return best, nil
}

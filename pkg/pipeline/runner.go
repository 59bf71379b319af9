package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/keyforge/pkg/cache"
	"github.com/matzehuels/keyforge/pkg/carpalx"
	"github.com/matzehuels/keyforge/pkg/errors"
	"github.com/matzehuels/keyforge/pkg/keyboard"
	"github.com/matzehuels/keyforge/pkg/layout"
	"github.com/matzehuels/keyforge/pkg/optimize"
	"github.com/matzehuels/keyforge/pkg/stats"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and server use it to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger. Multiple
// goroutines can safely use the same Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
	// TTL overrides the default expiration of cached entries when positive.
	TTL time.Duration
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// StatsOptions configures corpus counting.
type StatsOptions struct {
	// Parallelism limits concurrently read files. Zero means GOMAXPROCS.
	Parallelism int
	// Refresh ignores cached counts.
	Refresh bool
}

// StatsWithCacheInfo counts the triads of the corpus files typed on l and
// reports whether the counts came from the cache.
func (r *Runner) StatsWithCacheInfo(ctx context.Context, l *layout.Layout, paths []string, opts StatsOptions) (*stats.Counter, bool, error) {
	if len(paths) == 0 {
		return nil, false, errors.New(errors.ErrCodeInvalidInput, "no corpus files given")
	}
	corpus, err := corpusHash(paths)
	if err != nil {
		return nil, false, err
	}
	lh, err := layoutHash(l)
	if err != nil {
		return nil, false, err
	}
	kh, err := keyboardHash(l.Keyboard)
	if err != nil {
		return nil, false, err
	}
	key := r.Keyer.StatsKey(corpus, cache.StatsKeyOpts{Keyboard: l.Keyboard.Name, KeyboardHash: kh, LayoutHash: lh})

	if !opts.Refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			c, _, err := stats.Decode(bytes.NewReader(data), l.Keyboard)
			if err == nil {
				r.Logger.Debug("triad counts from cache", "files", len(paths))
				return c, true, nil
			}
			// undecodable entries are recomputed
		} else if err != nil {
			r.Logger.Warn("cache read failed", "err", err)
		}
	}

	start := time.Now()
	c, err := stats.CountFiles(ctx, l, paths, opts.Parallelism)
	if err != nil {
		return nil, false, err
	}
	r.Logger.Info("counted triads", "files", len(paths), "presses", c.Presses,
		"triads", len(c.Triads), "duration", time.Since(start))

	var buf bytes.Buffer
	if err := stats.Encode(&buf, c, l.Keyboard, l.Name); err == nil {
		if err := r.Cache.Set(ctx, key, buf.Bytes(), r.ttl(cache.TTLStats)); err != nil {
			r.Logger.Warn("cache write failed", "err", err)
		}
	}
	return c, false, nil
}

// Stats is a convenience wrapper that calls StatsWithCacheInfo and discards the cache hit info.
func (r *Runner) Stats(ctx context.Context, l *layout.Layout, paths []string, parallelism int) (*stats.Counter, error) {
	c, _, err := r.StatsWithCacheInfo(ctx, l, paths, StatsOptions{Parallelism: parallelism})
	return c, err
}

// cachedResult is the cache representation of a [Result].
type cachedResult struct {
	Layout   layout.Definition `json:"layout"`
	Source   string            `json:"source"`
	Effort   float64           `json:"effort"`
	Initial  float64           `json:"initial"`
	Steps    int               `json:"steps"`
	Accepted int               `json:"accepted"`
	Triads   int               `json:"triads"`
}

// Optimize anneals l against counts. Results of complete runs are cached;
// interrupted runs are returned but never cached.
func (r *Runner) Optimize(ctx context.Context, l *layout.Layout, counts map[layout.Triad]float64, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	opts.Keyboard = l.Keyboard.Name
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	triads := optimize.SortTriads(counts, opts.TriadLimit)
	if len(triads) == 0 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no triads to optimize for")
	}
	m, err := carpalx.LoadModel(opts.Model)
	if err != nil {
		return nil, err
	}
	lh, err := layoutHash(l)
	if err != nil {
		return nil, err
	}
	kh, err := keyboardHash(l.Keyboard)
	if err != nil {
		return nil, err
	}
	mh, err := modelHash(m)
	if err != nil {
		return nil, err
	}
	key := r.Keyer.ResultKey(triadsHash(l.Keyboard, triads), opts.ResultKeyOpts(kh, lh, mh))

	if !opts.Refresh {
		if res, ok := r.cachedResult(ctx, key, l.Keyboard); ok {
			opts.Logger.Info("optimization result from cache", "effort", res.Effort)
			res.Options = opts
			return res, nil
		}
	}

	pins, err := optimize.ParsePins(l.Keyboard, opts.Pins)
	if err != nil {
		return nil, err
	}
	cfg := optimize.Config{
		Model:         m,
		Pins:          pins,
		Seed:          opts.Seed,
		Cooling:       opts.Cooling,
		ProgressEvery: opts.ProgressEvery,
		Progress:      opts.Progress,
		Logger:        opts.Logger,
	}
	opts.Logger.Info("optimizing", "keyboard", l.Keyboard.Name, "layout", l.Name, "model", m.Name,
		"triads", fmt.Sprintf("%d/%d", len(triads), len(counts)), "restarts", opts.Restarts)

	start := time.Now()
	var or *optimize.Result
	if opts.Restarts > 1 {
		or, err = optimize.MultiStart(ctx, l, triads, cfg, optimize.MultiStartOptions{
			Restarts:    opts.Restarts,
			Steps:       opts.Steps,
			Randomize:   opts.Randomize,
			Parallelism: opts.Parallelism,
		})
	} else {
		var o *optimize.LayoutOptimizer
		if o, err = optimize.NewLayoutOptimizer(l, triads, cfg); err == nil {
			or, err = o.Run(ctx, opts.Steps, opts.Randomize)
		}
	}
	if err != nil {
		return nil, err
	}

	optimized, err := optimize.ApplyButtonMap(l, or.Best.Mapping())
	if err != nil {
		return nil, err
	}
	res := &Result{
		Layout:      optimized,
		Source:      l.Name,
		Effort:      or.Effort,
		Initial:     or.Initial,
		Steps:       or.Steps,
		Accepted:    or.Accepted,
		Triads:      len(triads),
		Interrupted: or.Interrupted,
		Options:     opts,
		Stats:       Stats{OptimizeTime: time.Since(start)},
	}

	if !res.Interrupted {
		data, err := json.Marshal(cachedResult{
			Layout:   optimized.Definition(),
			Source:   res.Source,
			Effort:   res.Effort,
			Initial:  res.Initial,
			Steps:    res.Steps,
			Accepted: res.Accepted,
			Triads:   res.Triads,
		})
		if err == nil {
			if err := r.Cache.Set(ctx, key, data, r.ttl(cache.TTLResult)); err != nil {
				opts.Logger.Warn("cache write failed", "err", err)
			}
		}
	}
	return res, nil
}

func (r *Runner) cachedResult(ctx context.Context, key string, kb *keyboard.Keyboard) (*Result, bool) {
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil || !hit {
		return nil, false
	}
	var cr cachedResult
	if err := json.Unmarshal(data, &cr); err != nil {
		return nil, false
	}
	l, err := cr.Layout.Specialize(kb)
	if err != nil {
		return nil, false
	}
	return &Result{
		Layout:    l,
		Source:    cr.Source,
		Effort:    cr.Effort,
		Initial:   cr.Initial,
		Steps:     cr.Steps,
		Accepted:  cr.Accepted,
		Triads:    cr.Triads,
		CacheInfo: CacheInfo{ResultHit: true},
	}, true
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

func (r *Runner) ttl(def time.Duration) time.Duration {
	if r.TTL > 0 {
		return r.TTL
	}
	return def
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

// corpusHash hashes the contents of all files in order.
func corpusHash(paths []string) (string, error) {
	h := sha256.New()
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "open %s", p)
		}
		fh := sha256.New()
		_, err = io.Copy(fh, f)
		f.Close()
		if err != nil {
			return "", errors.Wrap(errors.ErrCodeInvalidPath, err, "read %s", p)
		}
		h.Write(fh.Sum(nil))
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// layoutHash hashes the layout definition. JSON sorts map keys, so equal
// layouts hash equally.
func layoutHash(l *layout.Layout) (string, error) {
	data, err := json.Marshal(l.Definition())
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "hash layout %s", l.Name)
	}
	return cache.Hash(data), nil
}

// keyboardHash hashes the physical description of every key, so keyboard
// files reusing a name still get their own cache entries.
func keyboardHash(kb *keyboard.Keyboard) (string, error) {
	data, err := json.Marshal(struct {
		Name string         `json:"name"`
		Keys []keyboard.Key `json:"keys"`
	}{kb.Name, kb.Keys()})
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "hash keyboard %s", kb.Name)
	}
	return cache.Hash(data), nil
}

// modelHash hashes the TOML encoding of m, covering every parameter.
func modelHash(m *carpalx.Model) (string, error) {
	var buf bytes.Buffer
	if err := m.Encode(&buf); err != nil {
		return "", errors.Wrap(errors.ErrCodeInternal, err, "hash model %s", m.Name)
	}
	return cache.Hash(buf.Bytes()), nil
}

func triadsHash(kb *keyboard.Keyboard, triads []optimize.WeightedTriad) string {
	var buf bytes.Buffer
	for _, wt := range triads {
		buf.WriteString(wt.Triad.Format(kb.Registry()))
		buf.WriteByte('=')
		buf.WriteString(strconv.FormatFloat(wt.Weight, 'g', -1, 64))
		buf.WriteByte('\n')
	}
	return cache.Hash(buf.Bytes())
}

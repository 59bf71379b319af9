// Package pipeline connects corpus statistics, effort evaluation and layout
// optimization, with caching, for the CLI and the HTTP server.
//
// # Architecture
//
// The pipeline has two stages:
//
//  1. Stats: type a text corpus on a layout and count triads
//  2. Optimize: anneal the layout against the counted triads
//
// Each stage can be run on its own; both cache their results through a
// [cache.Cache], keyed by content hashes of their inputs.
//
// # Usage
//
//	runner := pipeline.NewRunner(c, nil, logger)
//	l, err := pipeline.LoadLayout("ibmpc105", "qwerty")
//	counts, err := runner.Stats(ctx, l, []string{"corpus.txt"}, 0)
//	res, err := runner.Optimize(ctx, l, counts.Triads, pipeline.Options{Steps: 100000})
//	res.WriteLayout(os.Stdout)
package pipeline

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/keyforge/pkg/cache"
	"github.com/matzehuels/keyforge/pkg/carpalx"
	"github.com/matzehuels/keyforge/pkg/errors"
	"github.com/matzehuels/keyforge/pkg/keyboard"
	"github.com/matzehuels/keyforge/pkg/layout"
	"github.com/matzehuels/keyforge/pkg/optimize"
	"github.com/matzehuels/keyforge/pkg/runstore"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and Server
// =============================================================================

const (
	// DefaultKeyboard is the physical keyboard layouts are specialized to.
	DefaultKeyboard = "ibmpc105"

	// DefaultModel is the carpalx model used for effort.
	DefaultModel = "mod01"

	// DefaultSteps is the number of annealing steps.
	DefaultSteps = 10000

	// DefaultSeed is the default random seed for reproducibility.
	DefaultSeed = uint64(42)

	// DefaultRestarts is the number of independent annealing runs.
	DefaultRestarts = 1
)

// =============================================================================
// Options - Optimization Configuration
// =============================================================================

// Options configures an optimization. It supports JSON serialization for
// run records and server requests.
type Options struct {
	Keyboard string `json:"keyboard,omitempty"`
	Model    string `json:"model,omitempty"`

	Steps   int     `json:"steps,omitempty"`
	Cooling float64 `json:"cooling,omitempty"`
	// Seed is used as given, zero included.
	Seed uint64 `json:"seed"`
	// TriadLimit keeps only the most frequent triads. Zero keeps all.
	TriadLimit int    `json:"triad_limit,omitempty"`
	Randomize  bool   `json:"randomize,omitempty"`
	Pins       string `json:"pins,omitempty"`
	Restarts   int    `json:"restarts,omitempty"`
	// Parallelism limits concurrent restarts. Zero means GOMAXPROCS.
	Parallelism int  `json:"parallelism,omitempty"`
	Refresh     bool `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	ProgressEvery int                     `json:"-"`
	Progress      func(optimize.Progress) `json:"-"`
	Logger        *log.Logger             `json:"-"`

	validated bool
}

// ValidateAndSetDefaults checks option values and applies defaults.
// Calling it again has no effect.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Keyboard == "" {
		o.Keyboard = DefaultKeyboard
	}
	if o.Model == "" {
		o.Model = DefaultModel
	}
	if o.Steps == 0 {
		o.Steps = DefaultSteps
	}
	if o.Cooling == 0 {
		o.Cooling = optimize.DefaultCooling
	}
	if o.Restarts == 0 {
		o.Restarts = DefaultRestarts
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	switch {
	case o.Steps < 0:
		return errors.New(errors.ErrCodeInvalidInput, "steps must not be negative, got %d", o.Steps)
	case o.Cooling < 0:
		return errors.New(errors.ErrCodeInvalidInput, "cooling must not be negative, got %v", o.Cooling)
	case o.TriadLimit < 0:
		return errors.New(errors.ErrCodeInvalidInput, "triad limit must not be negative, got %d", o.TriadLimit)
	case o.Restarts < 0:
		return errors.New(errors.ErrCodeInvalidInput, "restarts must not be negative, got %d", o.Restarts)
	}
	o.validated = true
	return nil
}

// ResultKeyOpts returns cache key options for an optimization given the
// content hashes of the keyboard, layout and model it runs on.
func (o *Options) ResultKeyOpts(keyboardHash, layoutHash, modelHash string) cache.ResultKeyOpts {
	return cache.ResultKeyOpts{
		Keyboard:     o.Keyboard,
		KeyboardHash: keyboardHash,
		LayoutHash:   layoutHash,
		Model:        o.Model,
		ModelHash:    modelHash,
		Steps:        o.Steps,
		Seed:         o.Seed,
		Cooling:      o.Cooling,
		Restarts:     o.Restarts,
		TriadLimit:   o.TriadLimit,
		Randomize:    o.Randomize,
		Pins:         o.Pins,
	}
}

// =============================================================================
// Results
// =============================================================================

// Result is the outcome of an optimization.
type Result struct {
	// Layout is the optimized layout, named after the input with a "-new"
	// suffix.
	Layout *layout.Layout
	// Source is the name of the layout that was optimized.
	Source string

	Effort      float64
	Initial     float64
	Steps       int
	Accepted    int
	Triads      int
	Interrupted bool

	// Options are the validated options the result was produced with.
	Options Options

	Stats     Stats
	CacheInfo CacheInfo
}

// Stats contains timing information.
type Stats struct {
	OptimizeTime time.Duration
}

// CacheInfo tracks which stages hit the cache.
type CacheInfo struct {
	StatsHit  bool
	ResultHit bool
}

// Header returns the comment lines written above an optimized layout.
func (r *Result) Header() []string {
	return []string{
		fmt.Sprintf("steps: %d", r.Steps),
		fmt.Sprintf("keyboard: %s", r.Layout.Keyboard.Name),
		fmt.Sprintf("layout: %s", r.Source),
		fmt.Sprintf("triads: %d", r.Triads),
		fmt.Sprintf("energy: %v (initial %v)", r.Effort, r.Initial),
	}
}

// WriteLayout writes the optimized layout as a TOML definition.
func (r *Result) WriteLayout(w io.Writer) error {
	return r.Layout.Definition().Encode(w, r.Header()...)
}

// Record returns a run record of the result with a fresh ID.
func (r *Result) Record() (*runstore.Record, error) {
	var buf bytes.Buffer
	if err := r.WriteLayout(&buf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "encode layout")
	}
	rec := runstore.NewRecord()
	rec.Keyboard = r.Layout.Keyboard.Name
	rec.Layout = r.Source
	rec.Model = r.Options.Model
	rec.Steps = r.Steps
	rec.Seed = r.Options.Seed
	rec.Cooling = r.Options.Cooling
	rec.Restarts = r.Options.Restarts
	rec.TriadLimit = r.Options.TriadLimit
	rec.Randomize = r.Options.Randomize
	rec.Pins = r.Options.Pins
	rec.Triads = r.Triads
	rec.Effort = r.Effort
	rec.Initial = r.Initial
	rec.Accepted = r.Accepted
	rec.Interrupted = r.Interrupted
	rec.Duration = r.Stats.OptimizeTime
	rec.Result = buf.String()
	return rec, nil
}

// =============================================================================
// Loading
// =============================================================================

// LoadLayout loads a keyboard and specializes a layout to it. Both names may
// be built-ins or TOML files.
func LoadLayout(keyboardName, layoutName string) (*layout.Layout, error) {
	kb, err := keyboard.Load(keyboard.NewRegistry(), keyboardName)
	if err != nil {
		return nil, err
	}
	def, err := layout.Load(layoutName)
	if err != nil {
		return nil, err
	}
	return def.Specialize(kb)
}

// Effort returns the effort of counts under the named model.
func Effort(kb *keyboard.Keyboard, model string, counts map[layout.Triad]float64) (effort float64, err error) {
	defer errors.RecoverIntegrity(&err)
	m, err := carpalx.LoadModel(model)
	if err != nil {
		return 0, err
	}
	eval, err := carpalx.New(m, kb, carpalx.NewCache())
	if err != nil {
		return 0, err
	}
	for t := range counts {
		if err := eval.Covers(t); err != nil {
			return 0, err
		}
	}
	eval.AddTriads(counts)
	return eval.Effort(), nil
}

package optimize

import (
	"context"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/keyforge/pkg/carpalx"
	"github.com/matzehuels/keyforge/pkg/errors"
	"github.com/matzehuels/keyforge/pkg/keyboard"
	"github.com/matzehuels/keyforge/pkg/layout"
	"github.com/matzehuels/keyforge/pkg/observability"
)

// Tolerance is the largest accepted difference between the tracked effort
// and a recomputation from scratch.
const Tolerance = 1e-4

// Config configures a [LayoutOptimizer].
type Config struct {
	Model *carpalx.Model
	// Cache is shared with other optimizers using the same model and
	// keyboard. Nil creates a private cache.
	Cache *carpalx.Cache
	Pins  []Pin
	Seed  uint64
	// Cooling, ProgressEvery and Progress are passed to the annealer.
	Cooling       float64
	ProgressEvery int
	Progress      func(Progress)
	Logger        *log.Logger
}

// positions is the immutable index of all positions the optimizer knows.
// Movable positions come first.
type positions struct {
	list    []Position
	index   map[Position]int
	movable int
}

// State is a candidate layout: where every original position has moved to,
// and the effort of the triads under that assignment.
type State struct {
	Eval *carpalx.Evaluator
	pos  *positions
	to   []int
}

// Copy returns a snapshot sharing only the evaluator's cache.
func (s *State) Copy() *State {
	return &State{Eval: s.Eval.Copy(), pos: s.pos, to: slices.Clone(s.to)}
}

// Map returns where p has moved to. ok is false for unknown positions.
func (s *State) Map(p Position) (Position, bool) {
	i, ok := s.pos.index[p]
	if !ok {
		return Position{}, false
	}
	return s.pos.list[s.to[i]], true
}

// Mapping returns the full button map.
func (s *State) Mapping() map[Position]Position {
	m := make(map[Position]Position, len(s.to))
	for i, j := range s.to {
		m[s.pos.list[i]] = s.pos.list[j]
	}
	return m
}

// IsBijection reports whether every position is the target of exactly one
// position.
func (s *State) IsBijection() bool {
	seen := make([]bool, len(s.to))
	for _, j := range s.to {
		if j < 0 || j >= len(seen) || seen[j] {
			return false
		}
		seen[j] = true
	}
	return true
}

// Effort returns the tracked effort.
func (s *State) Effort() float64 {
	return s.Eval.Effort()
}

// LayoutOptimizer searches for the assignment of texts to buttons with the
// lowest effort for a set of triads. It swaps pairs of positions and only
// re-costs the triads a swap touches.
//
// A LayoutOptimizer is not safe for concurrent use. Run several optimizers
// sharing a [carpalx.Cache] instead, see [MultiStart].
type LayoutOptimizer struct {
	layout *layout.Layout
	triads []WeightedTriad
	cfg    Config
	logger *log.Logger
	rng    *rand.Rand
	eval   *carpalx.Evaluator

	pos         *positions
	triadPos    [][3]int32
	touching    [][]int32
	pinned      []bool
	pinnedLayer []bool

	// scratch for collecting the triads touched by a swap
	mark     []uint32
	epoch    uint32
	affected []int32
}

// NewLayoutOptimizer indexes triads by the positions they touch. Eligible for
// swapping are letter keys on every layer, except buttons selecting a layer.
//
// Every press of a triad must have exactly one output button and a modifier
// set selecting a layer of l; presses are rebuilt with the target layer's
// first modifier set after a swap.
func NewLayoutOptimizer(l *layout.Layout, triads []WeightedTriad, cfg Config) (*LayoutOptimizer, error) {
	if cfg.Model == nil {
		return nil, errors.New(errors.ErrCodeInvalidModel, "no model given")
	}
	if cfg.Cache == nil {
		cfg.Cache = carpalx.NewCache()
	}
	eval, err := carpalx.New(cfg.Model, l.Keyboard, cfg.Cache)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	o := &LayoutOptimizer{
		layout: l,
		triads: triads,
		cfg:    cfg,
		logger: logger,
		rng:    rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0xdeadbeef)),
		eval:   eval,
		pos:    &positions{index: make(map[Position]int)},
	}

	for _, p := range EligiblePositions(l) {
		o.addPosition(p)
	}
	o.pos.movable = len(o.pos.list)
	if o.pos.movable < 2 {
		return nil, errors.New(errors.ErrCodeInvalidLayout, "layout %s has fewer than two movable positions", l.Name)
	}

	o.triadPos = make([][3]int32, len(triads))
	for ti, wt := range triads {
		for k, c := range wt.Triad {
			p, err := o.position(c)
			if err != nil {
				return nil, err
			}
			idx, ok := o.pos.index[p]
			if !ok {
				// typed but not movable, e.g. punctuation outside letter keys
				idx = o.addPosition(p)
			}
			o.triadPos[ti][k] = int32(idx)
		}
	}

	o.touching = make([][]int32, len(o.pos.list))
	for ti, tp := range o.triadPos {
		for k, idx := range tp {
			if slices.Contains(tp[:k], idx) {
				continue
			}
			o.touching[idx] = append(o.touching[idx], int32(ti))
		}
	}
	o.mark = make([]uint32, len(triads))

	// every position must be costable wherever it ends up
	for _, p := range o.pos.list {
		sample := layout.Press(l.CanonicalModifier(p.Layer), p.Button)
		if err := eval.Covers(layout.Triad{sample, sample, sample}); err != nil {
			return nil, err
		}
	}

	if err := o.applyPins(cfg.Pins); err != nil {
		return nil, err
	}
	return o, nil
}

// EligiblePositions lists the positions a layout optimizer may swap: all
// letter keys on every layer that do not select a layer themselves.
func EligiblePositions(l *layout.Layout) []Position {
	var out []Position
	for i := range l.Layers {
		for _, key := range l.Keyboard.Keys() {
			if key.Kind != keyboard.KindLetter || l.IsModifier(keyboard.SetOf(key.Button)) {
				continue
			}
			out = append(out, Position{Layer: i, Button: key.Button})
		}
	}
	return out
}

func (o *LayoutOptimizer) addPosition(p Position) int {
	idx := len(o.pos.list)
	o.pos.list = append(o.pos.list, p)
	o.pos.index[p] = idx
	return idx
}

func (o *LayoutOptimizer) position(c layout.Combination) (Position, error) {
	reg := o.layout.Keyboard.Registry()
	layer, ok := o.layout.ModifierToLayer(c.Modifier)
	if !ok {
		return Position{}, errors.New(errors.ErrCodeInvalidLayout, "press %s: modifier does not select a layer of %s",
			c.Format(reg), o.layout.Name)
	}
	b, ok := c.Button()
	if !ok {
		return Position{}, errors.New(errors.ErrCodeInvalidLayout, "press %s: expected exactly one output button",
			c.Format(reg))
	}
	return Position{Layer: layer, Button: b}, nil
}

func (o *LayoutOptimizer) applyPins(pins []Pin) error {
	o.pinned = make([]bool, o.pos.movable)
	o.pinnedLayer = make([]bool, len(o.layout.Layers))
	for _, p := range pins {
		if p.Layer >= len(o.layout.Layers) {
			return errors.New(errors.ErrCodeInvalidPin, "pin refers to layer %d, layout %s has %d",
				p.Layer, o.layout.Name, len(o.layout.Layers))
		}
		if p.Whole {
			o.pinnedLayer[p.Layer] = true
			continue
		}
		if idx, ok := o.pos.index[Position{Layer: p.Layer, Button: p.Button}]; ok && idx < o.pos.movable {
			o.pinned[idx] = true
		} else {
			o.logger.Warn("pinned position is never moved", "layer", p.Layer,
				"button", o.layout.Keyboard.ButtonName(p.Button))
		}
	}

	// resampling must terminate: some pair has to be swappable
	free := make([]int, len(o.layout.Layers))
	freeUnpinnedLayers := 0
	for i := 0; i < o.pos.movable; i++ {
		if o.pinned[i] {
			continue
		}
		layer := o.pos.list[i].Layer
		free[layer]++
		if !o.pinnedLayer[layer] {
			freeUnpinnedLayers++
		}
	}
	if freeUnpinnedLayers >= 2 || slices.ContainsFunc(free, func(n int) bool { return n >= 2 }) {
		return nil
	}
	return errors.New(errors.ErrCodeInvalidPin, "pins leave no pair of positions to swap")
}

// Positions returns the number of known positions and how many of them are
// movable.
func (o *LayoutOptimizer) Positions() (total, movable int) {
	return len(o.pos.list), o.pos.movable
}

// Initial returns the identity assignment with an empty accumulator. Call
// [LayoutOptimizer.ResetEnergy] before tracking energies.
func (o *LayoutOptimizer) Initial() *State {
	to := make([]int, len(o.pos.list))
	for i := range to {
		to[i] = i
	}
	e := o.eval.Copy()
	e.Reset()
	return &State{Eval: e, pos: o.pos, to: to}
}

func (o *LayoutOptimizer) accept(to []int, a, b int) bool {
	if a == b || o.pinned[a] || o.pinned[b] {
		return false
	}
	list := o.pos.list
	if o.pinnedLayer[list[a].Layer] && list[to[b]].Layer != list[a].Layer {
		return false
	}
	if o.pinnedLayer[list[b].Layer] && list[to[a]].Layer != list[b].Layer {
		return false
	}
	return true
}

func (o *LayoutOptimizer) sample(to []int) (int, int) {
	for {
		a, b := o.rng.IntN(o.pos.movable), o.rng.IntN(o.pos.movable)
		if o.accept(to, a, b) {
			return a, b
		}
	}
}

// Swap exchanges a random admissible pair of positions without updating
// the energy. Follow it with [LayoutOptimizer.ResetEnergy].
func (o *LayoutOptimizer) Swap(s *State) {
	a, b := o.sample(s.to)
	s.to[b], s.to[a] = s.to[a], s.to[b]
}

// Randomize performs two swaps per position without energy bookkeeping and
// then recomputes the energy.
func (o *LayoutOptimizer) Randomize(s *State) {
	for range 2 * len(s.to) {
		o.Swap(s)
	}
	o.ResetEnergy(s)
}

// Mutate swaps a random admissible pair and returns the change in effort.
// Only triads touching one of the two positions are re-costed.
func (o *LayoutOptimizer) Mutate(s *State) float64 {
	a, b := o.sample(s.to)
	old := s.Eval.Effort()

	affected := o.collect(a, b)
	for _, ti := range affected {
		s.Eval.RemoveTriad(o.mapTriad(s.to, ti), o.triads[ti].Weight)
	}
	s.to[b], s.to[a] = s.to[a], s.to[b]
	for _, ti := range affected {
		s.Eval.AddTriad(o.mapTriad(s.to, ti), o.triads[ti].Weight)
	}

	return s.Eval.Effort() - old
}

// collect returns the triads touching a or b, each once.
func (o *LayoutOptimizer) collect(a, b int) []int32 {
	o.epoch++
	if o.epoch == 0 {
		clear(o.mark)
		o.epoch = 1
	}
	o.affected = o.affected[:0]
	for _, idx := range [2]int{a, b} {
		for _, ti := range o.touching[idx] {
			if o.mark[ti] != o.epoch {
				o.mark[ti] = o.epoch
				o.affected = append(o.affected, ti)
			}
		}
	}
	return o.affected
}

func (o *LayoutOptimizer) mapTriad(to []int, ti int32) layout.Triad {
	var t layout.Triad
	for k, idx := range o.triadPos[ti] {
		p := o.pos.list[to[idx]]
		t[k] = layout.Press(o.layout.CanonicalModifier(p.Layer), p.Button)
	}
	return t
}

// ResetEnergy recomputes the effort of s from scratch.
func (o *LayoutOptimizer) ResetEnergy(s *State) {
	s.Eval.Reset()
	for ti, wt := range o.triads {
		s.Eval.AddTriad(o.mapTriad(s.to, int32(ti)), wt.Weight)
	}
}

// Recompute returns the effort of s computed from scratch, leaving s
// untouched.
func (o *LayoutOptimizer) Recompute(s *State) float64 {
	c := s.Copy()
	o.ResetEnergy(c)
	return c.Effort()
}

// Verify checks the invariants of a final state: the button map is a
// bijection, pinned positions did not move and the tracked effort matches a
// recomputation.
func (o *LayoutOptimizer) Verify(s *State) error {
	if !s.IsBijection() {
		return errors.New(errors.ErrCodeInconsistentState, "button map is not a bijection")
	}
	for i := 0; i < o.pos.movable; i++ {
		from, to := o.pos.list[i], o.pos.list[s.to[i]]
		if o.pinned[i] && from != to {
			return errors.New(errors.ErrCodeInconsistentState, "pinned position %v moved to %v", from, to)
		}
		if o.pinnedLayer[from.Layer] && from.Layer != to.Layer {
			return errors.New(errors.ErrCodeInconsistentState, "position %v left pinned layer", from)
		}
	}
	for i := o.pos.movable; i < len(s.to); i++ {
		if s.to[i] != i {
			return errors.New(errors.ErrCodeInconsistentState, "fixed position %v moved", o.pos.list[i])
		}
	}
	if want, got := o.Recompute(s), s.Effort(); math.Abs(want-got) >= Tolerance {
		return errors.New(errors.ErrCodeInconsistentState, "tracked effort %v differs from recomputed %v", got, want)
	}
	return nil
}

// Result is the outcome of a layout optimization.
type Result struct {
	Best *State
	// Effort is the effort of Best, Initial that of the starting layout.
	Effort  float64
	Initial float64
	Steps   int
	// Accepted counts accepted mutations.
	Accepted    int
	Interrupted bool
	Duration    time.Duration
}

// Run optimizes for the given number of steps, starting from the layout
// itself or, with randomize, from a shuffled version of it.
//
// Cancelling ctx ends the run early; the best state found so far is still
// verified and returned, with Interrupted set. A failed verification is
// reported as an INCONSISTENT_STATE error.
func (o *LayoutOptimizer) Run(ctx context.Context, steps int, randomize bool) (res *Result, err error) {
	defer errors.RecoverIntegrity(&err)
	start := time.Now()
	hooks := observability.Optimizer()
	hooks.OnRunStart(ctx, o.layout.Name, steps, len(o.triads))
	defer func() {
		var effort float64
		if res != nil {
			effort = res.Effort
		}
		hooks.OnRunComplete(ctx, o.layout.Name, effort, time.Since(start), err)
	}()

	s := o.Initial()
	if randomize {
		o.logger.Info("randomizing initial layout")
		o.Randomize(s)
	} else {
		o.ResetEnergy(s)
	}
	initial := s.Effort()
	total, movable := o.Positions()
	o.logger.Info("starting optimization", "layout", o.layout.Name, "triads", len(o.triads),
		"positions", total, "movable", movable, "effort", initial)

	ar := Anneal(ctx, s, o.Mutate, steps, AnnealOptions{
		Cooling:       o.cfg.Cooling,
		ProgressEvery: o.cfg.ProgressEvery,
		Progress:      o.cfg.Progress,
		Logger:        o.logger,
	})
	if ar.Interrupted {
		o.logger.Info("interrupted", "steps", ar.Steps)
	}

	if err := o.Verify(ar.Best); err != nil {
		return nil, err
	}
	res = &Result{
		Best:        ar.Best,
		Effort:      ar.Best.Effort(),
		Initial:     initial,
		Steps:       ar.Steps,
		Accepted:    ar.Accepted,
		Interrupted: ar.Interrupted,
		Duration:    time.Since(start),
	}
	o.logger.Info("optimization finished", "effort", res.Effort, "initial", initial,
		"steps", res.Steps, "accepted", res.Accepted, "cached", o.eval.Cache().Len())
	return res, nil
}

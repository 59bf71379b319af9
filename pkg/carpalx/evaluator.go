package carpalx

import (
	"sync"

	"github.com/matzehuels/keyforge/pkg/errors"
	"github.com/matzehuels/keyforge/pkg/keyboard"
	"github.com/matzehuels/keyforge/pkg/layout"
)

// Cache memoizes triad costs. Costs are a pure function of model and triad,
// so a cache may be shared by any number of evaluators using the same model
// and keyboard, including from different goroutines.
type Cache struct {
	mu sync.RWMutex
	m  map[layout.Triad]float64
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{m: make(map[layout.Triad]float64)}
}

func (c *Cache) get(t layout.Triad) (float64, bool) {
	c.mu.RLock()
	v, ok := c.m[t]
	c.mu.RUnlock()
	return v, ok
}

func (c *Cache) put(t layout.Triad, v float64) {
	c.mu.Lock()
	c.m[t] = v
	c.mu.Unlock()
}

// Len returns the number of cached triads.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

// Accumulator sums weighted triad efforts.
type Accumulator struct {
	AbsEffort float64
	N         float64
}

// Effort returns the weighted mean effort, 0 for an empty accumulator.
func (a Accumulator) Effort() float64 {
	if a.N == 0 {
		return 0
	}
	return a.AbsEffort / a.N
}

// tables are the per-button model values resolved for one keyboard.
type tables struct {
	model    *Model
	kb       *keyboard.Keyboard
	known    keyboard.ButtonSet
	hasBase  keyboard.ButtonSet
	baseline [keyboard.MaxButtons]float64
	penalty  [keyboard.MaxButtons]float64
	row      [keyboard.MaxButtons]int
	hand     [keyboard.MaxButtons]keyboard.Hand
	finger   [keyboard.MaxButtons]keyboard.Finger
}

// Evaluator computes the effort of triads under a model and accumulates
// weighted sums. The zero value is not usable; create evaluators with [New]
// and derive further ones with [Evaluator.Copy].
//
// An Evaluator is not safe for concurrent use, but copies may be used from
// different goroutines since they only share the [Cache].
type Evaluator struct {
	Accumulator

	t     *tables
	cache *Cache
}

// New binds m to kb. The keyboard must follow the row numbering the model
// assumes. If cache is nil a fresh one is created.
func New(m *Model, kb *keyboard.Keyboard, cache *Cache) (*Evaluator, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if err := kb.VerifyRowConvention(); err != nil {
		return nil, err
	}
	if cache == nil {
		cache = NewCache()
	}

	t := &tables{model: m, kb: kb}
	for _, key := range kb.Keys() {
		b := key.Button
		if key.Row < 0 || key.Row >= len(m.PRow) {
			return nil, errors.New(errors.ErrCodeInvalidKeyboard, "button %s: row %d has no penalty in model %s", key.Name, key.Row, m.Name)
		}
		t.known = t.known.With(b)
		t.row[b] = key.Row
		t.hand[b] = key.Hand
		t.finger[b] = key.Finger
		h, f := key.Hand.Index(), int(key.Finger)-1
		t.penalty[b] = m.W0HRF[0]*1 +
			m.W0HRF[1]*m.PHand[h] +
			m.W0HRF[2]*m.PRow[key.Row] +
			m.W0HRF[3]*m.PFinger[h][f]
		if v, ok := m.Baseline[key.Name]; ok {
			t.baseline[b] = v
			t.hasBase = t.hasBase.With(b)
		}
	}
	return &Evaluator{t: t, cache: cache}, nil
}

// Model returns the model in use.
func (e *Evaluator) Model() *Model {
	return e.t.model
}

// Cache returns the shared cost cache.
func (e *Evaluator) Cache() *Cache {
	return e.cache
}

// Copy returns an evaluator with the same model and cache and an
// independent copy of the accumulator.
func (e *Evaluator) Copy() *Evaluator {
	c := *e
	return &c
}

// Reset zeroes the accumulator. Cached costs are kept.
func (e *Evaluator) Reset() {
	e.Accumulator = Accumulator{}
}

// AddTriad adds weight occurrences of t.
func (e *Evaluator) AddTriad(t layout.Triad, weight float64) {
	e.AbsEffort += weight * e.Cost(t)
	e.N += weight
}

// RemoveTriad removes weight occurrences of t.
func (e *Evaluator) RemoveTriad(t layout.Triad, weight float64) {
	e.AbsEffort -= weight * e.Cost(t)
	e.N -= weight
}

// AddTriads adds every triad of counts with its weight.
func (e *Evaluator) AddTriads(counts map[layout.Triad]float64) {
	for t, w := range counts {
		e.AddTriad(t, w)
	}
}

// Covers returns an error naming the first button of t the model cannot
// cost. Check triads with it before handing them to [Evaluator.Cost].
func (e *Evaluator) Covers(t layout.Triad) error {
	for _, c := range t {
		for _, b := range c.All().Buttons() {
			if !e.t.known.Has(b) {
				return errors.New(errors.ErrCodeInvalidKeyboard, "button %s is not part of keyboard %s",
					e.t.kb.ButtonName(b), e.t.kb.Name)
			}
			if !e.t.hasBase.Has(b) {
				return errors.New(errors.ErrCodeInvalidModel, "model %s has no baseline effort for button %s",
					e.t.model.Name, e.t.kb.ButtonName(b))
			}
		}
	}
	return nil
}

// Cost returns the effort of a single triad. It panics with an
// [*errors.IntegrityError] if t contains a button the model cannot cost.
func (e *Evaluator) Cost(t layout.Triad) float64 {
	if v, ok := e.cache.get(t); ok {
		return v
	}
	m := e.t.model

	for _, c := range t {
		if c.Buttons.Empty() {
			errors.Integrity("combination without output button in triad %s", t.Format(e.t.kb.Registry()))
		}
		for _, b := range c.All().Buttons() {
			if !e.t.hasBase.Has(b) {
				errors.Integrity("no baseline effort for %s in model %s", e.t.kb.ButtonName(b), m.Name)
			}
		}
	}

	b := e.baseEffort(t, &e.t.baseline)
	p := e.baseEffort(t, &e.t.penalty)
	s := e.strokePath(t)
	v := m.KBPS[0]*b + m.KBPS[1]*p + m.KBPS[2]*s

	e.cache.put(t, v)
	return v
}

// baseEffort blends a per-button metric over the three keystrokes, the
// first one weighing most.
func (e *Evaluator) baseEffort(t layout.Triad, metric *[keyboard.MaxButtons]float64) float64 {
	k := e.t.model.K123S
	var per [3]float64
	var buf [8]keyboard.Button
	for i, c := range t {
		buttons := c.All().AppendTo(buf[:0])
		sum := 0.0
		for _, b := range buttons {
			sum += metric[b]
		}
		per[i] = sum + float64(len(buttons)-1)*k[3]
	}
	return blend(k[0], k[1], k[2], per)
}

func blend(k1, k2, k3 float64, b [3]float64) float64 {
	return k1 * b[0] * (1 + k2*b[1]*(1+k3*b[2]))
}

// strokePath scores every reading of t that picks one button per keystroke
// and returns the lowest.
func (e *Evaluator) strokePath(t layout.Triad) float64 {
	f := e.t.model.FHRF
	var bufs [3][8]keyboard.Button
	var sets [3][]keyboard.Button
	for i, c := range t {
		sets[i] = c.All().AppendTo(bufs[i][:0])
	}

	best := 0.0
	first := true
	for _, b0 := range sets[0] {
		for _, b1 := range sets[1] {
			for _, b2 := range sets[2] {
				h, r, fi := e.StrokePath([3]keyboard.Button{b0, b1, b2})
				s := f[0]*float64(h) + f[1]*float64(r) + f[2]*float64(fi)
				if first || s < best {
					best, first = s, false
				}
			}
		}
	}
	return best
}

// StrokePath classifies the hand, row and finger transitions of three
// single button presses.
func (e *Evaluator) StrokePath(t [3]keyboard.Button) (hand, row, finger int) {
	var hands [3]keyboard.Hand
	var fingers [3]keyboard.Finger
	var rows [3]int
	for i, b := range t {
		hands[i] = e.t.hand[b]
		fingers[i] = e.t.finger[b]
		rows[i] = e.t.row[b]
	}
	return strokePathHand(hands), strokePathRow(rows), strokePathFinger(hands, fingers, t)
}

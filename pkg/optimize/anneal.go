package optimize

import (
	"context"
	"math"

	"github.com/charmbracelet/log"
)

// DefaultCooling is the default exponent of the acceptance threshold decay.
const DefaultCooling = 6

// Copier is a state the annealer can snapshot. Copy must return a value
// that is not affected by later mutations of the receiver.
type Copier[S any] interface {
	Copy() S
}

// MutateFunc changes s in place and returns the resulting energy change.
type MutateFunc[S any] func(s S) float64

// Progress is a snapshot of a running annealer.
type Progress struct {
	Step      int
	Steps     int
	Energy    float64 // relative to the initial state
	Delta     float64 // energy change of the last mutation
	RelDelta  float64 // |Delta| relative to the largest change seen
	Threshold float64 // relative changes below this are accepted
	Best      float64
	MaxEnergy float64
	MaxDelta  float64
	Accepted  int
}

// AnnealOptions configures [Anneal].
type AnnealOptions struct {
	// Cooling controls how fast the acceptance threshold 10^(-progress*Cooling)
	// decays. Zero means DefaultCooling.
	Cooling float64
	// ProgressEvery reports progress every n steps. Zero disables reporting.
	ProgressEvery int
	// Progress receives reports. It runs on the annealing goroutine.
	Progress func(Progress)
	// Logger receives progress reports at debug level. Nil means log.Default().
	Logger *log.Logger
}

// AnnealResult is the outcome of [Anneal].
type AnnealResult[S any] struct {
	Best       S
	BestEnergy float64
	// Current is the state the annealer ended in.
	Current S
	Energy  float64
	// Steps is the number of completed steps.
	Steps       int
	Accepted    int
	Interrupted bool
}

// Anneal minimizes the energy of state by simulated annealing. Energies are
// tracked relative to the initial state, which has energy 0.
//
// A mutation is accepted if it lowers the energy or if its change, relative
// to the largest change seen so far, is below a threshold decaying from 1
// towards 0 over the run. Rejected mutations are undone by returning to a
// snapshot taken before the step.
//
// Cancelling ctx stops the run after the current step. The best state found
// so far is returned with Interrupted set; cancellation is not an error.
func Anneal[S Copier[S]](ctx context.Context, state S, mutate MutateFunc[S], steps int, opts AnnealOptions) AnnealResult[S] {
	cooling := opts.Cooling
	if cooling == 0 {
		cooling = DefaultCooling
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	energy := 0.0
	energyMax := energy
	deltaMax := 0.0
	res := AnnealResult[S]{Best: state.Copy(), BestEnergy: energy}

	for i := 0; i < steps; i++ {
		if ctx.Err() != nil {
			res.Interrupted = true
			break
		}

		threshold := math.Pow(10, -(float64(i)/float64(steps))*cooling)

		prev, prevEnergy := state.Copy(), energy
		delta := mutate(state)
		newEnergy := energy + delta
		energyMax = max(newEnergy, energyMax)
		deltaMax = max(math.Abs(delta), deltaMax)
		rel := 1.0
		if deltaMax != 0 {
			rel = math.Abs(delta) / deltaMax
		}

		if delta < 0 || rel < threshold {
			if newEnergy < res.BestEnergy {
				res.Best, res.BestEnergy = state.Copy(), newEnergy
			}
			energy = newEnergy
			res.Accepted++
		} else {
			state, energy = prev, prevEnergy
		}
		res.Steps++

		if opts.ProgressEvery > 0 && (res.Steps%opts.ProgressEvery == 0 || res.Steps == steps) {
			p := Progress{
				Step:      res.Steps,
				Steps:     steps,
				Energy:    energy,
				Delta:     delta,
				RelDelta:  rel,
				Threshold: threshold,
				Best:      res.BestEnergy,
				MaxEnergy: energyMax,
				MaxDelta:  deltaMax,
				Accepted:  res.Accepted,
			}
			logger.Debug("annealing",
				"step", p.Step, "energy", p.Energy, "delta", p.Delta, "rel", p.RelDelta,
				"threshold", p.Threshold, "best", p.Best, "max", p.MaxEnergy, "maxDelta", p.MaxDelta)
			if opts.Progress != nil {
				opts.Progress(p)
			}
		}
	}

	res.Current, res.Energy = state, energy
	return res
}

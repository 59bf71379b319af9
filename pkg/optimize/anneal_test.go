package optimize

import (
	"context"
	"slices"
	"testing"
)

type vec []int

func (v vec) Copy() vec { return slices.Clone(v) }

func (v vec) sum() int {
	s := 0
	for _, x := range v {
		s += x
	}
	return s
}

func decrement(v vec) float64 {
	for i := range v {
		v[i]--
	}
	return -float64(len(v))
}

func increment(v vec) float64 {
	for i := range v {
		v[i]++
	}
	return float64(len(v))
}

func TestAnnealImproves(t *testing.T) {
	res := Anneal(context.Background(), vec{1, 2, 3}, decrement, 1, AnnealOptions{})

	if !slices.Equal(res.Best, vec{0, 1, 2}) {
		t.Errorf("Best = %v, want [0 1 2]", res.Best)
	}
	if res.BestEnergy != -3 {
		t.Errorf("BestEnergy = %v, want -3", res.BestEnergy)
	}
	if got := res.Current.sum(); got != 3 {
		t.Errorf("Current sum = %d, want 3", got)
	}
	if res.Steps != 1 || res.Accepted != 1 {
		t.Errorf("Steps, Accepted = %d, %d, want 1, 1", res.Steps, res.Accepted)
	}
}

func TestAnnealBestIsSnapshot(t *testing.T) {
	res := Anneal(context.Background(), vec{0}, decrement, 10, AnnealOptions{})
	if res.BestEnergy != -10 || res.Best[0] != -10 {
		t.Errorf("Best = %v (%v), want [-10] (-10)", res.Best, res.BestEnergy)
	}
	res.Current[0] = 100
	if res.Best[0] != -10 {
		t.Error("Best shares memory with Current")
	}
}

func TestAnnealRejectsWorse(t *testing.T) {
	// every change is the largest seen so far, rel = 1 is never below the
	// threshold
	res := Anneal(context.Background(), vec{1, 2, 3}, increment, 20, AnnealOptions{})

	if res.Accepted != 0 {
		t.Errorf("Accepted = %d, want 0", res.Accepted)
	}
	if !slices.Equal(res.Current, vec{1, 2, 3}) {
		t.Errorf("Current = %v, want initial state restored", res.Current)
	}
	if res.Energy != 0 || res.BestEnergy != 0 {
		t.Errorf("Energy, BestEnergy = %v, %v, want 0, 0", res.Energy, res.BestEnergy)
	}
	if res.Steps != 20 {
		t.Errorf("Steps = %d, want 20", res.Steps)
	}
}

func TestAnnealAcceptsSmallIncreases(t *testing.T) {
	// a large first change followed by small ones: early small increases
	// fall below the threshold
	n := 0
	mutate := func(v vec) float64 {
		n++
		v[0]++
		if n == 1 {
			v[0] -= 101
			return -100
		}
		return 1
	}
	res := Anneal(context.Background(), vec{0}, mutate, 10, AnnealOptions{})
	if res.Accepted < 2 {
		t.Errorf("Accepted = %d, want small increases accepted early", res.Accepted)
	}
	if res.BestEnergy != -100 {
		t.Errorf("BestEnergy = %v, want -100", res.BestEnergy)
	}
}

func TestAnnealInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := Anneal(ctx, vec{1, 2, 3}, decrement, 100, AnnealOptions{})
	if !res.Interrupted {
		t.Error("Interrupted = false, want true")
	}
	if res.Steps != 0 {
		t.Errorf("Steps = %d, want 0", res.Steps)
	}
	if !slices.Equal(res.Best, vec{1, 2, 3}) {
		t.Errorf("Best = %v, want initial state", res.Best)
	}
}

func TestAnnealInterruptedMidway(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n := 0
	mutate := func(v vec) float64 {
		n++
		if n == 5 {
			cancel()
		}
		return decrement(v)
	}
	res := Anneal(ctx, vec{0}, mutate, 100, AnnealOptions{})
	if !res.Interrupted || res.Steps != 5 {
		t.Errorf("Interrupted, Steps = %v, %d, want true, 5", res.Interrupted, res.Steps)
	}
	if res.BestEnergy != -5 {
		t.Errorf("BestEnergy = %v, want -5", res.BestEnergy)
	}
}

func TestAnnealProgress(t *testing.T) {
	var steps []int
	opts := AnnealOptions{
		ProgressEvery: 2,
		Progress:      func(p Progress) { steps = append(steps, p.Step) },
	}
	Anneal(context.Background(), vec{0}, decrement, 5, opts)

	if want := []int{2, 4, 5}; !slices.Equal(steps, want) {
		t.Errorf("progress at steps %v, want %v", steps, want)
	}
}

func TestAnnealZeroSteps(t *testing.T) {
	res := Anneal(context.Background(), vec{7}, decrement, 0, AnnealOptions{})
	if res.Steps != 0 || res.Interrupted || res.Best[0] != 7 {
		t.Errorf("got %+v", res)
	}
}

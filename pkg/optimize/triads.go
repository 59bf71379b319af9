package optimize

import (
	"cmp"
	"slices"

	"github.com/matzehuels/keyforge/pkg/keyboard"
	"github.com/matzehuels/keyforge/pkg/layout"
)

// WeightedTriad is a triad with its frequency.
type WeightedTriad struct {
	Triad  layout.Triad
	Weight float64
}

// SortTriads orders counts by descending weight and keeps the first limit
// entries. limit <= 0 keeps all. Equal weights are ordered by button ids, so
// the result does not depend on map iteration order.
func SortTriads(counts map[layout.Triad]float64, limit int) []WeightedTriad {
	out := make([]WeightedTriad, 0, len(counts))
	for t, w := range counts {
		out = append(out, WeightedTriad{Triad: t, Weight: w})
	}
	slices.SortFunc(out, func(a, b WeightedTriad) int {
		if c := cmp.Compare(b.Weight, a.Weight); c != 0 {
			return c
		}
		return compareTriads(a.Triad, b.Triad)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func compareTriads(a, b layout.Triad) int {
	for i := range a {
		if c := compareSets(a[i].Modifier, b[i].Modifier); c != 0 {
			return c
		}
		if c := compareSets(a[i].Buttons, b[i].Buttons); c != 0 {
			return c
		}
	}
	return 0
}

func compareSets(a, b keyboard.ButtonSet) int {
	return slices.Compare(a[:], b[:])
}

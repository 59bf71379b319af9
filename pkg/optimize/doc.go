// Package optimize searches for keyboard layouts with low typing effort.
//
// [Anneal] is a generic simulated annealer over any state that can be
// snapshotted. [LayoutOptimizer] specializes it to layouts: a state maps
// every (layer, button) position to the position its text has moved to, and
// a mutation swaps two positions. Only triads touching the swapped positions
// are re-costed, so a step costs a handful of cache lookups regardless of
// corpus size.
//
// Basic usage:
//
//	o, err := optimize.NewLayoutOptimizer(l, optimize.SortTriads(counts, 0), optimize.Config{
//	    Model: model,
//	    Seed:  1,
//	})
//	if err != nil {
//	    return err
//	}
//	res, err := o.Run(ctx, 100_000, false)
//	if err != nil {
//	    return err
//	}
//	improved, err := optimize.ApplyButtonMap(l, res.Best.Mapping())
//
// Pins keep positions or whole layers in place, see [ParsePins].
package optimize

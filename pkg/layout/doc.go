// Package layout maps physical buttons to the text they produce.
//
// A layout is a list of layers. Each layer is selected by one or more
// modifier sets (for instance left or right shift) and assigns a string to
// every button it covers. Layers are numbered in definition order; layer 0 is
// conventionally the unmodified layer and is selected by the empty set.
//
// Layouts are defined by name only ([Definition]) and bound to a concrete
// keyboard with [Definition.Specialize], which resolves every button name and
// yields a [Layout]. A [Layout] answers the questions the writer and the
// optimizer ask: which layer a modifier set selects ([Layout.ModifierToLayer]),
// which text a combination types ([Layout.Text]) and which combinations type
// the longest prefix of a string ([Layout.Lookup]).
//
// Key presses are modelled as a [Combination] of a modifier set and the
// buttons producing output; three consecutive presses form a [Triad].
package layout

// Package keyboard describes physical keyboards: which buttons exist, where
// they sit, and which finger of which hand presses them.
//
// # Buttons
//
// A [Button] is a small integer handed out by a [Registry]. Interning names
// once means button equality and hashing are plain integer operations, which
// matters when millions of triads are hashed during optimization. A registry
// is an explicit value passed to whatever builds keyboards; there is no
// package-level state.
//
// Sets of buttons are represented by [ButtonSet], a fixed-size bitset. It is
// comparable, so it can be part of map keys, and two sets are equal exactly
// when they contain the same buttons, regardless of insertion order.
//
// # Keyboards
//
// A [Keyboard] is a list of rows, each split into a left and a right half.
// Rows are numbered from the top: 0 is the number row, 4 the control row.
// Every key carries its typing assignment (hand and finger), so the
// keyboard alone answers the two questions the effort model asks:
// [Keyboard.Row] and [Keyboard.HandFinger].
//
// Keyboards are defined in TOML. The built-in definitions (currently
// "ibmpc105") are embedded and loaded with [Load]:
//
//	reg := keyboard.NewRegistry()
//	kb, err := keyboard.Load(reg, "ibmpc105")
//	if err != nil {
//	    return err
//	}
//	a := kb.MustFind("Dl1")
//	hand, finger := kb.HandFinger(a) // Left, Little
package keyboard

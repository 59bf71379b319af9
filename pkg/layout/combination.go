package layout

import (
	"strings"

	"github.com/matzehuels/keyforge/pkg/keyboard"
)

// Combination is a set of modifier buttons pressed together with the
// buttons producing output, usually exactly one. It is comparable and can be
// used as a map key.
type Combination struct {
	Modifier keyboard.ButtonSet
	Buttons  keyboard.ButtonSet
}

// Press returns the combination of the given modifiers and a single button.
func Press(mod keyboard.ButtonSet, b keyboard.Button) Combination {
	return Combination{Modifier: mod, Buttons: keyboard.SetOf(b)}
}

// Len returns the number of buttons involved.
func (c Combination) Len() int {
	return c.Modifier.Len() + c.Buttons.Len()
}

// All returns the modifier and output buttons as one set.
func (c Combination) All() keyboard.ButtonSet {
	return c.Modifier.Union(c.Buttons)
}

// Button returns the single output button. ok is false if the combination
// has zero or several output buttons.
func (c Combination) Button() (b keyboard.Button, ok bool) {
	if c.Buttons.Len() != 1 {
		return 0, false
	}
	return c.Buttons.First()
}

// Format renders c with button names from reg.
func (c Combination) Format(reg *keyboard.Registry) string {
	return c.Modifier.Format(reg) + "+" + c.Buttons.Format(reg)
}

// Triad is three consecutive key presses.
type Triad [3]Combination

// Format renders t with button names from reg.
func (t Triad) Format(reg *keyboard.Registry) string {
	parts := make([]string, len(t))
	for i, c := range t {
		parts[i] = c.Format(reg)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

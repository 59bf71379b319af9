package keyboard

import (
	"fmt"

	"github.com/matzehuels/keyforge/pkg/errors"
)

// Hand is the left or right hand of a typist.
type Hand uint8

const (
	Left Hand = iota + 1
	Right
)

func (h Hand) String() string {
	switch h {
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return fmt.Sprintf("Hand(%d)", uint8(h))
}

// Index returns 0 for Left and 1 for Right, for use in per-hand tables.
func (h Hand) Index() int {
	return int(h) - 1
}

// Finger is a finger of one hand, counted from the outside in.
type Finger uint8

const (
	Little Finger = iota + 1
	Ring
	Middle
	Index
	Thumb
)

// Fingers lists all fingers from Little to Thumb.
var Fingers = []Finger{Little, Ring, Middle, Index, Thumb}

func (f Finger) String() string {
	switch f {
	case Little:
		return "little"
	case Ring:
		return "ring"
	case Middle:
		return "middle"
	case Index:
		return "index"
	case Thumb:
		return "thumb"
	}
	return fmt.Sprintf("Finger(%d)", uint8(f))
}

// Kind classifies buttons by what they are used for.
type Kind uint8

const (
	// KindStandard is any special key: modifiers, tab, space, return, ...
	KindStandard Kind = iota
	// KindLetter is a letter, number or symbol key.
	KindLetter
	// KindMultiRow is a key spanning more than one row, like the ISO return key.
	KindMultiRow
)

// Key is a single physical key of a keyboard.
type Key struct {
	Button Button
	Name   string
	Kind   Kind
	Width  float64 // relative to a letter key
	Marked bool    // has a haptic orientation mark
	Span   int     // rows covered, 1 for all but multi-row keys
	Row    int
	Side   Hand // keyboard half the key sits on
	Hand   Hand
	Finger Finger
}

// Row is one physical row, split into halves. Keys are ordered left to right.
type Row struct {
	Left  []Key
	Right []Key
}

// Keyboard is a physical keyboard with a fixed typing assignment.
type Keyboard struct {
	Name string
	Rows []Row

	reg  *Registry
	keys [MaxButtons]*Key
	n    int
}

// Registry returns the registry the keyboard's buttons were interned in.
func (k *Keyboard) Registry() *Registry {
	return k.reg
}

// Len returns the number of keys.
func (k *Keyboard) Len() int {
	return k.n
}

// Find looks up a button by name.
func (k *Keyboard) Find(name string) (Button, error) {
	b, ok := k.reg.Lookup(name)
	if !ok || k.keys[b] == nil {
		return 0, errors.New(errors.ErrCodeNotFound, "%s is not a valid button name for keyboard %s", name, k.Name)
	}
	return b, nil
}

// MustFind is like Find but panics on unknown names. It is meant for tests
// and static tables.
func (k *Keyboard) MustFind(name string) Button {
	b, err := k.Find(name)
	if err != nil {
		panic(err)
	}
	return b
}

// Has reports whether b is a key of this keyboard.
func (k *Keyboard) Has(b Button) bool {
	return k.keys[b] != nil
}

// Key returns the key for b.
func (k *Keyboard) Key(b Button) (Key, bool) {
	if key := k.keys[b]; key != nil {
		return *key, true
	}
	return Key{}, false
}

// ButtonName returns the name of b.
func (k *Keyboard) ButtonName(b Button) string {
	return k.reg.Name(b)
}

// Row returns the row index of b. Unknown buttons report -1.
func (k *Keyboard) Row(b Button) int {
	if key := k.keys[b]; key != nil {
		return key.Row
	}
	return -1
}

// HandFinger returns the hand and finger pressing b.
func (k *Keyboard) HandFinger(b Button) (Hand, Finger) {
	if key := k.keys[b]; key != nil {
		return key.Hand, key.Finger
	}
	return 0, 0
}

// Keys returns all keys in row order, left half before right half.
func (k *Keyboard) Keys() []Key {
	out := make([]Key, 0, k.n)
	for _, row := range k.Rows {
		out = append(out, row.Left...)
		out = append(out, row.Right...)
	}
	return out
}

// VerifyRowConvention checks that rows are numbered the way effort models
// expect them: number row 0, top row 1, home row 2, bottom row 3. Keyboards
// lacking the reference buttons are not checked.
func (k *Keyboard) VerifyRowConvention() error {
	refs := []struct {
		name string
		row  int
	}{
		{"Bl1", 0}, {"Cl1", 1}, {"Dl1", 2}, {"El1", 3},
	}
	for _, p := range refs {
		b, err := k.Find(p.name)
		if err != nil {
			continue
		}
		if got := k.Row(b); got != p.row {
			return errors.New(errors.ErrCodeInvalidKeyboard, "keyboard %s: button %s is in row %d, expected %d", k.Name, p.name, got, p.row)
		}
	}
	return nil
}

func (k *Keyboard) String() string {
	return fmt.Sprintf("<Keyboard %s with %d keys>", k.Name, k.n)
}

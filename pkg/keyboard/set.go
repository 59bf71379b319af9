package keyboard

import (
	"math/bits"
	"strings"
)

const setWords = 4

// ButtonSet is an immutable set of buttons. The zero value is the empty set.
//
// ButtonSet is comparable: == reports set equality and the value can be
// used as (part of) a map key.
type ButtonSet [setWords]uint64

// SetOf returns the set containing the given buttons.
func SetOf(buttons ...Button) ButtonSet {
	var s ButtonSet
	for _, b := range buttons {
		s = s.With(b)
	}
	return s
}

// With returns s with b added.
func (s ButtonSet) With(b Button) ButtonSet {
	s[b>>6] |= 1 << (b & 63)
	return s
}

// Has reports whether b is in s.
func (s ButtonSet) Has(b Button) bool {
	return s[b>>6]&(1<<(b&63)) != 0
}

// Len returns the number of buttons in s.
func (s ButtonSet) Len() int {
	n := 0
	for _, w := range s {
		n += bits.OnesCount64(w)
	}
	return n
}

// Empty reports whether s has no members.
func (s ButtonSet) Empty() bool {
	return s == ButtonSet{}
}

// Union returns the buttons contained in s or o.
func (s ButtonSet) Union(o ButtonSet) ButtonSet {
	for i := range s {
		s[i] |= o[i]
	}
	return s
}

// Intersects reports whether s and o share a button.
func (s ButtonSet) Intersects(o ButtonSet) bool {
	for i := range s {
		if s[i]&o[i] != 0 {
			return true
		}
	}
	return false
}

// First returns the smallest button in s.
func (s ButtonSet) First() (Button, bool) {
	for i, w := range s {
		if w != 0 {
			return Button(i*64 + bits.TrailingZeros64(w)), true
		}
	}
	return 0, false
}

// AppendTo appends the members of s to dst in ascending order.
func (s ButtonSet) AppendTo(dst []Button) []Button {
	for i, w := range s {
		for w != 0 {
			tz := bits.TrailingZeros64(w)
			dst = append(dst, Button(i*64+tz))
			w &= w - 1
		}
	}
	return dst
}

// Buttons returns the members of s in ascending order.
func (s ButtonSet) Buttons() []Button {
	return s.AppendTo(make([]Button, 0, s.Len()))
}

// Format renders s using the names from reg, e.g. "{El_shift Dl1}".
func (s ButtonSet) Format(reg *Registry) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, btn := range s.Buttons() {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(reg.Name(btn))
	}
	b.WriteByte('}')
	return b.String()
}

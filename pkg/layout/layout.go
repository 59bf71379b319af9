package layout

import (
	"fmt"
	"unicode/utf8"

	"github.com/matzehuels/keyforge/pkg/errors"
	"github.com/matzehuels/keyforge/pkg/keyboard"
)

// Layer is one level of a layout.
type Layer struct {
	// Modifiers lists the modifier sets selecting this layer. The first one
	// is canonical and used whenever a press must be synthesized.
	Modifiers []keyboard.ButtonSet
	// Text maps buttons to the string they type on this layer.
	Text map[keyboard.Button]string
}

// Layout is a layout bound to a keyboard.
type Layout struct {
	Name     string
	Keyboard *keyboard.Keyboard
	Layers   []Layer

	modToLayer map[keyboard.ButtonSet]int
	byText     map[string][]Combination
	bufferLen  int
}

// New validates layers and builds the lookup tables. A modifier set may
// select only one layer and every layer needs at least one modifier set.
func New(name string, kb *keyboard.Keyboard, layers []Layer) (*Layout, error) {
	l := &Layout{
		Name:       name,
		Keyboard:   kb,
		Layers:     layers,
		modToLayer: make(map[keyboard.ButtonSet]int),
		byText:     make(map[string][]Combination),
	}

	for i, layer := range layers {
		if len(layer.Modifiers) == 0 {
			return nil, errors.New(errors.ErrCodeInvalidLayout, "layout %s: layer %d has no modifier", name, i)
		}
		for _, m := range layer.Modifiers {
			if prev, ok := l.modToLayer[m]; ok {
				return nil, errors.New(errors.ErrCodeInvalidLayout, "layout %s: modifier %s selects layers %d and %d",
					name, m.Format(kb.Registry()), prev, i)
			}
			l.modToLayer[m] = i
		}
	}

	// keyboard order keeps the candidate lists deterministic
	keys := kb.Keys()
	for _, layer := range layers {
		for _, key := range keys {
			text, ok := layer.Text[key.Button]
			if !ok || text == "" {
				continue
			}
			for _, m := range layer.Modifiers {
				l.byText[text] = append(l.byText[text], Press(m, key.Button))
			}
			l.bufferLen = max(l.bufferLen, utf8.RuneCountInString(text))
		}
	}
	return l, nil
}

// ModifierToLayer returns the layer selected by mod.
func (l *Layout) ModifierToLayer(mod keyboard.ButtonSet) (int, bool) {
	i, ok := l.modToLayer[mod]
	return i, ok
}

// IsModifier reports whether mod selects a layer.
func (l *Layout) IsModifier(mod keyboard.ButtonSet) bool {
	_, ok := l.modToLayer[mod]
	return ok
}

// IsModifierButton reports whether b is part of any layer's modifier set.
func (l *Layout) IsModifierButton(b keyboard.Button) bool {
	for m := range l.modToLayer {
		if m.Has(b) {
			return true
		}
	}
	return false
}

// CanonicalModifier returns the first modifier set of layer i.
func (l *Layout) CanonicalModifier(i int) keyboard.ButtonSet {
	return l.Layers[i].Modifiers[0]
}

// Text returns the text typed by c.
func (l *Layout) Text(c Combination) (string, bool) {
	i, ok := l.modToLayer[c.Modifier]
	if !ok {
		return "", false
	}
	b, ok := c.Button()
	if !ok {
		return "", false
	}
	text, ok := l.Layers[i].Text[b]
	return text, ok
}

// ButtonText returns the text of b on every layer, "" where unassigned.
func (l *Layout) ButtonText(b keyboard.Button) []string {
	out := make([]string, len(l.Layers))
	for i, layer := range l.Layers {
		out[i] = layer.Text[b]
	}
	return out
}

// BufferLen returns the length in runes of the longest text any button
// produces. Callers feeding [Layout.Lookup] need at least this much
// lookahead.
func (l *Layout) BufferLen() int {
	return l.bufferLen
}

// Lookup finds the longest prefix of buf typed by a single combination. It
// returns the prefix and all combinations typing it, in layer then keyboard
// order.
func (l *Layout) Lookup(buf string) (string, []Combination, bool) {
	// byte offsets of the first bufferLen rune boundaries
	ends := make([]int, 0, l.bufferLen)
	for off := 0; off < len(buf) && len(ends) < l.bufferLen; {
		_, size := utf8.DecodeRuneInString(buf[off:])
		off += size
		ends = append(ends, off)
	}
	for j := len(ends) - 1; j >= 0; j-- {
		prefix := buf[:ends[j]]
		if combs, ok := l.byText[prefix]; ok {
			return prefix, combs, true
		}
	}
	return "", nil, false
}

// Texts calls fn for every distinct text of the layout.
func (l *Layout) Texts(fn func(text string, combs []Combination)) {
	for text, combs := range l.byText {
		fn(text, combs)
	}
}

func (l *Layout) String() string {
	return fmt.Sprintf("<Layout %s: %d layers>", l.Name, len(l.Layers))
}

package stats

import (
	"cmp"
	"encoding/json"
	"io"
	"slices"
	"strings"

	"github.com/matzehuels/keyforge/pkg/errors"
	"github.com/matzehuels/keyforge/pkg/keyboard"
	"github.com/matzehuels/keyforge/pkg/layout"
)

// File is the serialized form of a [Counter]. Buttons are stored by name so
// files can be read with any registry.
type File struct {
	Keyboard string         `json:"keyboard"`
	Layout   string         `json:"layout"`
	Presses  int            `json:"presses"`
	Unknown  map[string]int `json:"unknown,omitempty"`
	Triads   []TriadCount   `json:"triads"`
}

// TriadCount is one triad with its count.
type TriadCount struct {
	Triad [3]CombinationNames `json:"triad"`
	Count float64             `json:"count"`
}

// CombinationNames is a combination by button names.
type CombinationNames struct {
	Modifier []string `json:"modifier,omitempty"`
	Buttons  []string `json:"buttons"`
}

// ToFile converts c. Triads are ordered by descending count, ties by name.
func (c *Counter) ToFile(kb *keyboard.Keyboard, layoutName string) File {
	reg := kb.Registry()
	f := File{
		Keyboard: kb.Name,
		Layout:   layoutName,
		Presses:  c.Presses,
		Triads:   make([]TriadCount, 0, len(c.Triads)),
	}
	if len(c.Unknown) > 0 {
		f.Unknown = make(map[string]int, len(c.Unknown))
		for r, n := range c.Unknown {
			f.Unknown[string(r)] += n
		}
	}

	for t, n := range c.Triads {
		var tc TriadCount
		for i, comb := range t {
			tc.Triad[i] = CombinationNames{
				Modifier: names(reg, comb.Modifier),
				Buttons:  names(reg, comb.Buttons),
			}
		}
		tc.Count = n
		f.Triads = append(f.Triads, tc)
	}
	slices.SortFunc(f.Triads, func(a, b TriadCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(formatNames(a.Triad), formatNames(b.Triad))
	})
	return f
}

func names(reg *keyboard.Registry, s keyboard.ButtonSet) []string {
	if s.Empty() {
		return nil
	}
	out := make([]string, 0, s.Len())
	for _, b := range s.Buttons() {
		out = append(out, reg.Name(b))
	}
	return out
}

func formatNames(t [3]CombinationNames) string {
	var sb strings.Builder
	for _, c := range t {
		for _, n := range c.Modifier {
			sb.WriteString(n + "+")
		}
		sb.WriteString(strings.Join(c.Buttons, "+"))
		sb.WriteByte(' ')
	}
	return sb.String()
}

// Counter resolves all names of f on kb.
func (f File) Counter(kb *keyboard.Keyboard) (*Counter, error) {
	c := NewCounter(kb)
	c.Presses = f.Presses
	for s, n := range f.Unknown {
		for _, r := range s {
			c.Unknown[r] += n
		}
	}
	for i, tc := range f.Triads {
		if tc.Count <= 0 {
			return nil, errors.New(errors.ErrCodeInvalidInput, "triad %d: count must be positive, got %v", i, tc.Count)
		}
		var t layout.Triad
		for k, cn := range tc.Triad {
			mod, err := resolve(kb, cn.Modifier)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "triad %d", i)
			}
			buttons, err := resolve(kb, cn.Buttons)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "triad %d", i)
			}
			if buttons.Empty() {
				return nil, errors.New(errors.ErrCodeInvalidInput, "triad %d: press without buttons", i)
			}
			t[k] = layout.Combination{Modifier: mod, Buttons: buttons}
		}
		c.Triads[t] += tc.Count
	}
	return c, nil
}

func resolve(kb *keyboard.Keyboard, names []string) (keyboard.ButtonSet, error) {
	var s keyboard.ButtonSet
	for _, n := range names {
		b, err := kb.Find(n)
		if err != nil {
			return s, err
		}
		s = s.With(b)
	}
	return s, nil
}

// Encode writes c as indented JSON.
func Encode(w io.Writer, c *Counter, kb *keyboard.Keyboard, layoutName string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(c.ToFile(kb, layoutName))
}

// Decode reads a triad file and resolves it on kb.
func Decode(r io.Reader, kb *keyboard.Keyboard) (*Counter, File, error) {
	var f File
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, File{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "decode triad file")
	}
	c, err := f.Counter(kb)
	if err != nil {
		return nil, File{}, err
	}
	return c, f, nil
}

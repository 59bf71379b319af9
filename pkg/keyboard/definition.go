package keyboard

import (
	"embed"
	"io"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/keyforge/pkg/errors"
)

//go:embed data/*.toml
var builtin embed.FS

// Definition is the serialized form of a keyboard.
type Definition struct {
	Name string          `toml:"name"`
	Rows []RowDefinition `toml:"rows"`
}

// RowDefinition lists the keys of one row, per half.
type RowDefinition struct {
	Left  []KeyDefinition `toml:"left"`
	Right []KeyDefinition `toml:"right"`
}

// KeyDefinition describes a single key. Kind defaults to "standard", Width
// to 1 and Span to 1.
type KeyDefinition struct {
	Name   string  `toml:"name"`
	Kind   string  `toml:"kind,omitempty"`
	Width  float64 `toml:"width,omitempty"`
	Marked bool    `toml:"marked,omitempty"`
	Span   int     `toml:"span,omitempty"`
	Hand   string  `toml:"hand"`
	Finger string  `toml:"finger"`
}

// Builtin returns the names of the embedded keyboard definitions.
func Builtin() []string {
	entries, err := fs.ReadDir(builtin, "data")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".toml"))
	}
	slices.Sort(names)
	return names
}

// Load resolves name to a keyboard. name is either a path to a TOML file or
// the name of a built-in definition.
func Load(reg *Registry, name string) (*Keyboard, error) {
	if data, err := os.ReadFile(name); err == nil {
		return Decode(reg, strings.NewReader(string(data)))
	}
	data, err := builtin.ReadFile(path.Join("data", name+".toml"))
	if err != nil {
		return nil, errors.New(errors.ErrCodeNotFound, "unknown keyboard %q", name)
	}
	return Decode(reg, strings.NewReader(string(data)))
}

// Decode reads a TOML keyboard definition and builds it.
func Decode(reg *Registry, r io.Reader) (*Keyboard, error) {
	var def Definition
	if _, err := toml.NewDecoder(r).Decode(&def); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidKeyboard, err, "decode keyboard definition")
	}
	return Build(reg, def)
}

// Build interns all button names of def in reg and returns the keyboard.
func Build(reg *Registry, def Definition) (*Keyboard, error) {
	if def.Name == "" {
		return nil, errors.New(errors.ErrCodeInvalidKeyboard, "keyboard name cannot be empty")
	}
	kb := &Keyboard{Name: def.Name, reg: reg, Rows: make([]Row, len(def.Rows))}

	for i, rd := range def.Rows {
		left, err := buildHalf(reg, rd.Left, i, Left)
		if err != nil {
			return nil, err
		}
		right, err := buildHalf(reg, rd.Right, i, Right)
		if err != nil {
			return nil, err
		}
		kb.Rows[i] = Row{Left: left, Right: right}
	}

	// index after all rows are built so the pointers stay valid
	for i := range kb.Rows {
		for _, half := range [][]Key{kb.Rows[i].Left, kb.Rows[i].Right} {
			for j := range half {
				key := &half[j]
				if kb.keys[key.Button] != nil {
					return nil, errors.New(errors.ErrCodeInvalidKeyboard, "keyboard %s: duplicate button %s", def.Name, key.Name)
				}
				kb.keys[key.Button] = key
				kb.n++
			}
		}
	}
	return kb, nil
}

func buildHalf(reg *Registry, defs []KeyDefinition, row int, side Hand) ([]Key, error) {
	keys := make([]Key, 0, len(defs))
	for _, d := range defs {
		b, err := reg.Intern(d.Name)
		if err != nil {
			return nil, err
		}
		kind, err := parseKind(d.Kind)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidKeyboard, err, "button %s", d.Name)
		}
		hand, err := ParseHand(d.Hand)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidKeyboard, err, "button %s", d.Name)
		}
		finger, err := ParseFinger(d.Finger)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidKeyboard, err, "button %s", d.Name)
		}
		width := d.Width
		if width == 0 {
			width = 1
		}
		span := d.Span
		if span == 0 {
			span = 1
		}
		keys = append(keys, Key{
			Button: b,
			Name:   d.Name,
			Kind:   kind,
			Width:  width,
			Marked: d.Marked,
			Span:   span,
			Row:    row,
			Side:   side,
			Hand:   hand,
			Finger: finger,
		})
	}
	return keys, nil
}

func parseKind(s string) (Kind, error) {
	switch s {
	case "", "standard":
		return KindStandard, nil
	case "letter":
		return KindLetter, nil
	case "multi":
		return KindMultiRow, nil
	}
	return 0, errors.New(errors.ErrCodeInvalidKeyboard, "unknown key kind %q", s)
}

// ParseHand parses "left" or "right".
func ParseHand(s string) (Hand, error) {
	switch s {
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	}
	return 0, errors.New(errors.ErrCodeInvalidInput, "unknown hand %q", s)
}

// ParseFinger parses a finger name as printed by [Finger.String].
func ParseFinger(s string) (Finger, error) {
	for _, f := range Fingers {
		if f.String() == s {
			return f, nil
		}
	}
	return 0, errors.New(errors.ErrCodeInvalidInput, "unknown finger %q", s)
}

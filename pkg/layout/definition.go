package layout

import (
	"bytes"
	"embed"
	"io"
	"io/fs"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/keyforge/pkg/errors"
	"github.com/matzehuels/keyforge/pkg/keyboard"
)

//go:embed data/*.toml
var builtin embed.FS

// Definition is a keyboard independent layout, referring to buttons by name.
type Definition struct {
	Name   string            `toml:"name"`
	Layers []LayerDefinition `toml:"layers"`
}

// LayerDefinition is the serialized form of a [Layer].
type LayerDefinition struct {
	Modifiers [][]string        `toml:"modifiers"`
	Keys      map[string]string `toml:"keys"`
}

// Len returns the number of assigned buttons over all layers.
func (d Definition) Len() int {
	n := 0
	for _, l := range d.Layers {
		n += len(l.Keys)
	}
	return n
}

// Equal reports whether d and o have the same layers.
func (d Definition) Equal(o Definition) bool {
	return slices.EqualFunc(d.Layers, o.Layers, func(a, b LayerDefinition) bool {
		if len(a.Keys) != len(b.Keys) || len(a.Modifiers) != len(b.Modifiers) {
			return false
		}
		for k, v := range a.Keys {
			if w, ok := b.Keys[k]; !ok || v != w {
				return false
			}
		}
		for i := range a.Modifiers {
			x, y := slices.Clone(a.Modifiers[i]), slices.Clone(b.Modifiers[i])
			slices.Sort(x)
			slices.Sort(y)
			if !slices.Equal(x, y) {
				return false
			}
		}
		return true
	})
}

// Specialize resolves all button names on kb.
func (d Definition) Specialize(kb *keyboard.Keyboard) (*Layout, error) {
	layers := make([]Layer, len(d.Layers))
	for i, ld := range d.Layers {
		layer := Layer{Text: make(map[keyboard.Button]string, len(ld.Keys))}
		for _, names := range ld.Modifiers {
			var mod keyboard.ButtonSet
			for _, n := range names {
				b, err := kb.Find(n)
				if err != nil {
					return nil, errors.Wrap(errors.ErrCodeInvalidLayout, err, "layout %s, layer %d", d.Name, i)
				}
				mod = mod.With(b)
			}
			layer.Modifiers = append(layer.Modifiers, mod)
		}
		for n, text := range ld.Keys {
			b, err := kb.Find(n)
			if err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidLayout, err, "layout %s, layer %d", d.Name, i)
			}
			layer.Text[b] = text
		}
		layers[i] = layer
	}
	return New(d.Name, kb, layers)
}

// Definition converts l back to its keyboard independent form.
func (l *Layout) Definition() Definition {
	reg := l.Keyboard.Registry()
	d := Definition{Name: l.Name, Layers: make([]LayerDefinition, len(l.Layers))}
	for i, layer := range l.Layers {
		ld := LayerDefinition{Keys: make(map[string]string, len(layer.Text))}
		for _, m := range layer.Modifiers {
			names := []string{}
			for _, b := range m.Buttons() {
				names = append(names, reg.Name(b))
			}
			ld.Modifiers = append(ld.Modifiers, names)
		}
		for b, text := range layer.Text {
			ld.Keys[reg.Name(b)] = text
		}
		d.Layers[i] = ld
	}
	return d
}

// Builtin returns the names of the embedded layouts.
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

// Load resolves name to a layout definition, either from a TOML file or
// from the built-in layouts.
func Load(name string) (Definition, error) {
	if data, err := os.ReadFile(name); err == nil {
		return Decode(bytes.NewReader(data))
	}
	data, err := builtin.ReadFile(path.Join("data", name+".toml"))
	if err != nil {
		return Definition{}, errors.New(errors.ErrCodeNotFound, "unknown layout %q", name)
	}
	return Decode(bytes.NewReader(data))
}

// Decode reads a TOML layout definition.
func Decode(r io.Reader) (Definition, error) {
	var d Definition
	if _, err := toml.NewDecoder(r).Decode(&d); err != nil {
		return Definition{}, errors.Wrap(errors.ErrCodeInvalidLayout, err, "decode layout definition")
	}
	if d.Name == "" {
		return Definition{}, errors.New(errors.ErrCodeInvalidLayout, "layout name cannot be empty")
	}
	return d, nil
}

// Encode writes d as TOML. header lines are emitted as comments first.
func (d Definition) Encode(w io.Writer, header ...string) error {
	for _, h := range header {
		if _, err := io.WriteString(w, "# "+h+"\n"); err != nil {
			return err
		}
	}
	if len(header) > 0 {
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}
	}
	return toml.NewEncoder(w).Encode(d)
}

package optimize

import (
	"github.com/matzehuels/keyforge/pkg/errors"
	"github.com/matzehuels/keyforge/pkg/keyboard"
	"github.com/matzehuels/keyforge/pkg/layout"
)

// ApplyButtonMap builds the layout that results from moving the text of
// every mapped position of l to its target. Positions not in the map keep
// their text. The new layout is named after l with a "-new" suffix.
func ApplyButtonMap(l *layout.Layout, m map[Position]Position) (*layout.Layout, error) {
	layers := make([]layout.Layer, len(l.Layers))
	moved := make([]map[keyboard.Button]bool, len(l.Layers))
	for i, layer := range l.Layers {
		layers[i] = layout.Layer{
			Modifiers: layer.Modifiers,
			Text:      make(map[keyboard.Button]string, len(layer.Text)),
		}
		moved[i] = make(map[keyboard.Button]bool)
	}

	for from, to := range m {
		if from.Layer >= len(l.Layers) || to.Layer >= len(l.Layers) {
			return nil, errors.New(errors.ErrCodeInconsistentState, "button map refers to missing layer: %v -> %v", from, to)
		}
		text, ok := l.Layers[from.Layer].Text[from.Button]
		moved[from.Layer][from.Button] = true
		if !ok {
			continue
		}
		if _, taken := layers[to.Layer].Text[to.Button]; taken {
			return nil, errors.New(errors.ErrCodeInconsistentState, "two positions map to layer %d, %s",
				to.Layer, l.Keyboard.ButtonName(to.Button))
		}
		layers[to.Layer].Text[to.Button] = text
	}

	for i, layer := range l.Layers {
		for b, text := range layer.Text {
			if moved[i][b] {
				continue
			}
			if _, taken := layers[i].Text[b]; taken {
				return nil, errors.New(errors.ErrCodeInconsistentState, "unmapped position layer %d, %s is a map target",
					i, l.Keyboard.ButtonName(b))
			}
			layers[i].Text[b] = text
		}
	}
	return layout.New(l.Name+"-new", l.Keyboard, layers)
}

package optimize

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/matzehuels/keyforge/pkg/errors"
	"github.com/matzehuels/keyforge/pkg/keyboard"
)

// Position is a button on a layer.
type Position struct {
	Layer  int
	Button keyboard.Button
}

// Pin keeps a position in place. A pin with Whole set keeps every position
// of the layer on that layer, allowing swaps within it.
type Pin struct {
	Layer  int
	Button keyboard.Button
	Whole  bool
}

// ParsePins parses pins of the form "layer[,button]" separated by ";", for
// example "0;1,Dl1" pins layer 0 and button Dl1 on layer 1. An empty string
// yields no pins.
func ParsePins(kb *keyboard.Keyboard, s string) ([]Pin, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var pins []Pin
	for _, part := range strings.Split(s, ";") {
		layerStr, button, hasButton := strings.Cut(strings.TrimSpace(part), ",")
		layer, err := strconv.Atoi(strings.TrimSpace(layerStr))
		if err != nil || layer < 0 {
			return nil, errors.New(errors.ErrCodeInvalidPin, "invalid layer in pin %q", part)
		}
		if !hasButton {
			pins = append(pins, Pin{Layer: layer, Whole: true})
			continue
		}
		b, err := kb.Find(strings.TrimSpace(button))
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidPin, err, "pin %q", part)
		}
		pins = append(pins, Pin{Layer: layer, Button: b})
	}
	return pins, nil
}

// FormatPins renders pins in the syntax accepted by ParsePins.
func FormatPins(kb *keyboard.Keyboard, pins []Pin) string {
	parts := make([]string, len(pins))
	for i, p := range pins {
		if p.Whole {
			parts[i] = strconv.Itoa(p.Layer)
		} else {
			parts[i] = fmt.Sprintf("%d,%s", p.Layer, kb.ButtonName(p.Button))
		}
	}
	return strings.Join(parts, ";")
}

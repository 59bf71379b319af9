package optimize

import (
	"testing"

	"github.com/matzehuels/keyforge/pkg/errors"
)

func TestApplyButtonMap(t *testing.T) {
	l := qwerty(t)
	kb := l.Keyboard
	dl1 := Position{Layer: 0, Button: kb.MustFind("Dl1")}
	dl2 := Position{Layer: 0, Button: kb.MustFind("Dl2")}
	shifted := Position{Layer: 1, Button: kb.MustFind("Dl1")}

	got, err := ApplyButtonMap(l, map[Position]Position{dl1: shifted, shifted: dl2, dl2: dl1})
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "qwerty-new" {
		t.Errorf("Name = %q", got.Name)
	}
	checks := []struct {
		pos  Position
		want string
	}{
		{shifted, "a"},
		{dl2, "A"},
		{dl1, "s"},
		{Position{Layer: 0, Button: kb.MustFind("Dl3")}, "d"},
	}
	for _, c := range checks {
		if text := got.Layers[c.pos.Layer].Text[c.pos.Button]; text != c.want {
			t.Errorf("layer %d %s = %q, want %q", c.pos.Layer, kb.ButtonName(c.pos.Button), text, c.want)
		}
	}
	if got.Definition().Len() != l.Definition().Len() {
		t.Errorf("key count changed: %d -> %d", l.Definition().Len(), got.Definition().Len())
	}
}

func TestApplyButtonMapCollision(t *testing.T) {
	l := qwerty(t)
	kb := l.Keyboard
	dl1 := Position{Layer: 0, Button: kb.MustFind("Dl1")}
	dl2 := Position{Layer: 0, Button: kb.MustFind("Dl2")}

	_, err := ApplyButtonMap(l, map[Position]Position{dl1: dl2})
	if !errors.Is(err, errors.ErrCodeInconsistentState) {
		t.Errorf("err = %v, want INCONSISTENT_STATE", err)
	}
}

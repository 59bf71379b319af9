package stats

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/keyforge/pkg/errors"
	"github.com/matzehuels/keyforge/pkg/keyboard"
	"github.com/matzehuels/keyforge/pkg/layout"
	"github.com/matzehuels/keyforge/pkg/writer"
)

func qwerty(t *testing.T) *layout.Layout {
	t.Helper()
	kb, err := keyboard.Load(keyboard.NewRegistry(), "ibmpc105")
	if err != nil {
		t.Fatal(err)
	}
	def, err := layout.Load("qwerty")
	if err != nil {
		t.Fatal(err)
	}
	l, err := def.Specialize(kb)
	if err != nil {
		t.Fatal(err)
	}
	return l
}

func count(t *testing.T, l *layout.Layout, text string) *Counter {
	t.Helper()
	c := NewCounter(l.Keyboard)
	if err := c.Count(context.Background(), writer.New(l), strings.NewReader(text)); err != nil {
		t.Fatal(err)
	}
	return c
}

// triad builds an unmodified triad from button names.
func triad(kb *keyboard.Keyboard, a, b, c string) layout.Triad {
	p := func(n string) layout.Combination { return layout.Press(keyboard.ButtonSet{}, kb.MustFind(n)) }
	return layout.Triad{p(a), p(b), p(c)}
}

func TestCounter(t *testing.T) {
	l := qwerty(t)
	kb := l.Keyboard

	tests := []struct {
		name    string
		text    string
		want    map[layout.Triad]float64
		presses int
	}{
		{"empty", "", map[layout.Triad]float64{}, 0},
		{"too short", "as", map[layout.Triad]float64{}, 2},
		{"overlap", "asdf", map[layout.Triad]float64{
			triad(kb, "Dl1", "Dl2", "Dl3"): 1,
			triad(kb, "Dl2", "Dl3", "Dl4"): 1,
		}, 4},
		{"repeat", "aaaa", map[layout.Triad]float64{
			triad(kb, "Dl1", "Dl1", "Dl1"): 2,
		}, 4},
		{"whitespace ignored", "as d\n\tf", map[layout.Triad]float64{
			triad(kb, "Dl1", "Dl2", "Dl3"): 1,
			triad(kb, "Dl2", "Dl3", "Dl4"): 1,
		}, 7},
		{"skip resets", "asäsd", map[layout.Triad]float64{}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := count(t, l, tt.text)
			if len(c.Triads) != len(tt.want) {
				t.Fatalf("Triads = %d entries, want %d", len(c.Triads), len(tt.want))
			}
			for tr, n := range tt.want {
				if c.Triads[tr] != n {
					t.Errorf("%s = %v, want %v", tr.Format(kb.Registry()), c.Triads[tr], n)
				}
			}
			if c.Presses != tt.presses {
				t.Errorf("Presses = %d, want %d", c.Presses, tt.presses)
			}
		})
	}
}

func TestCounterUnknown(t *testing.T) {
	c := count(t, qwerty(t), "äaä€")
	if c.Unknown['ä'] != 2 || c.Unknown['€'] != 1 {
		t.Errorf("Unknown = %v", c.Unknown)
	}
}

func TestCounterModifiedPress(t *testing.T) {
	l := qwerty(t)
	kb := l.Keyboard
	c := count(t, l, "aSd")

	shiftS := layout.Press(keyboard.SetOf(kb.MustFind("Er_shift")), kb.MustFind("Dl2"))
	want := layout.Triad{
		layout.Press(keyboard.ButtonSet{}, kb.MustFind("Dl1")),
		shiftS,
		layout.Press(keyboard.ButtonSet{}, kb.MustFind("Dl3")),
	}
	if c.Triads[want] != 1 || len(c.Triads) != 1 {
		t.Errorf("Triads = %v", c.Triads)
	}
}

func TestMerge(t *testing.T) {
	l := qwerty(t)
	a := count(t, l, "asdf")
	b := count(t, l, "asdä")
	a.Merge(b)

	if got := a.Triads[triad(l.Keyboard, "Dl1", "Dl2", "Dl3")]; got != 2 {
		t.Errorf("merged count = %v, want 2", got)
	}
	if a.Total() != 3 {
		t.Errorf("Total() = %v, want 3", a.Total())
	}
	if a.Presses != 7 || a.Unknown['ä'] != 1 {
		t.Errorf("Presses, Unknown = %d, %v", a.Presses, a.Unknown)
	}
}

func TestCountFiles(t *testing.T) {
	l := qwerty(t)
	dir := t.TempDir()
	texts := []string{"asdf", "asdf jkl", "qwerty"}
	var paths []string
	for i, text := range texts {
		p := filepath.Join(dir, string(rune('a'+i))+".txt")
		if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}

	got, err := CountFiles(context.Background(), l, paths, 2)
	if err != nil {
		t.Fatal(err)
	}

	// files are separate documents, triads never span two of them
	want := NewCounter(l.Keyboard)
	for _, text := range texts {
		want.Merge(count(t, l, text))
	}
	if len(got.Triads) != len(want.Triads) || got.Total() != want.Total() {
		t.Errorf("CountFiles = %d triads (%v), want %d (%v)", len(got.Triads), got.Total(), len(want.Triads), want.Total())
	}
	for tr, n := range want.Triads {
		if got.Triads[tr] != n {
			t.Errorf("%s = %v, want %v", tr.Format(l.Keyboard.Registry()), got.Triads[tr], n)
		}
	}

	_, err = CountFiles(context.Background(), l, []string{filepath.Join(dir, "missing.txt")}, 0)
	if !errors.Is(err, errors.ErrCodeInvalidPath) {
		t.Errorf("missing file: err = %v, want INVALID_PATH", err)
	}
}

func TestFileRoundTrip(t *testing.T) {
	l := qwerty(t)
	c := count(t, l, "The quick brown fox jumps over the lazy dog ä")

	var buf bytes.Buffer
	if err := Encode(&buf, c, l.Keyboard, l.Name); err != nil {
		t.Fatal(err)
	}

	// decode with a fresh registry, button ids may differ
	kb, err := keyboard.Load(keyboard.NewRegistry(), "ibmpc105")
	if err != nil {
		t.Fatal(err)
	}
	got, f, err := Decode(&buf, kb)
	if err != nil {
		t.Fatal(err)
	}
	if f.Layout != "qwerty" || f.Keyboard != "ibmpc105" {
		t.Errorf("header = %q, %q", f.Layout, f.Keyboard)
	}
	if len(got.Triads) != len(c.Triads) || got.Total() != c.Total() {
		t.Errorf("decoded %d triads (%v), want %d (%v)", len(got.Triads), got.Total(), len(c.Triads), c.Total())
	}
	if got.Presses != c.Presses || got.Unknown['ä'] != 1 {
		t.Errorf("Presses, Unknown = %d, %v", got.Presses, got.Unknown)
	}
	for i := 1; i < len(f.Triads); i++ {
		if f.Triads[i].Count > f.Triads[i-1].Count {
			t.Fatalf("triads not sorted by count at %d", i)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	kb := qwerty(t).Keyboard
	tests := []string{
		`not json`,
		`{"triads": [{"triad": [{"buttons": ["Zz9"]}, {"buttons": ["Dl1"]}, {"buttons": ["Dl1"]}], "count": 1}]}`,
		`{"triads": [{"triad": [{"modifier": ["El_shift"]}, {"buttons": ["Dl1"]}, {"buttons": ["Dl1"]}], "count": 1}]}`,
		`{"triads": [{"triad": [{"buttons": ["Dl1"]}, {"buttons": ["Dl2"]}, {"buttons": ["Dl3"]}], "count": 0}]}`,
		`{"triads": [{"triad": [{"buttons": ["Dl1"]}, {"buttons": ["Dl2"]}, {"buttons": ["Dl3"]}], "count": -2.5}]}`,
	}
	for _, in := range tests {
		if _, _, err := Decode(strings.NewReader(in), kb); !errors.Is(err, errors.ErrCodeInvalidInput) {
			t.Errorf("Decode(%s) err = %v, want INVALID_INPUT", in, err)
		}
	}
}

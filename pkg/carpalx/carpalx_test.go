package carpalx

import (
	"bytes"
	"math"
	"slices"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/matzehuels/keyforge/pkg/errors"
	"github.com/matzehuels/keyforge/pkg/keyboard"
	"github.com/matzehuels/keyforge/pkg/layout"
)

func setup(t testing.TB, model string) (*keyboard.Keyboard, *Evaluator) {
	t.Helper()
	kb, err := keyboard.Load(keyboard.NewRegistry(), "ibmpc105")
	if err != nil {
		t.Fatal(err)
	}
	m, err := LoadModel(model)
	if err != nil {
		t.Fatal(err)
	}
	e, err := New(m, kb, nil)
	if err != nil {
		t.Fatal(err)
	}
	return kb, e
}

// triad builds a triad from button names; "El_shift+Dr7" is a modified press.
func triad(kb *keyboard.Keyboard, presses ...string) layout.Triad {
	var t layout.Triad
	for i, p := range presses {
		names := strings.Split(p, "+")
		var mod keyboard.ButtonSet
		for _, n := range names[:len(names)-1] {
			mod = mod.With(kb.MustFind(n))
		}
		t[i] = layout.Press(mod, kb.MustFind(names[len(names)-1]))
	}
	return t
}

func TestStrokePath(t *testing.T) {
	kb, e := setup(t, "mod01")

	// index 0 is the hand, 1 the row and 2 the finger class
	tests := []struct {
		triad [3]string
		index int
		want  int
	}{
		{[3]string{"Dl1", "Dl3", "Dr7"}, 0, 0},
		{[3]string{"Dl1", "Dr7", "Cr7"}, 0, 0},
		{[3]string{"Dr1", "Dl5", "Cl1"}, 0, 0},
		{[3]string{"Dl1", "Dr7", "Cl1"}, 0, 1},
		{[3]string{"Dr1", "Bl1", "Cr1"}, 0, 1},
		{[3]string{"Dr1", "Br1", "Cr1"}, 0, 2},
		{[3]string{"Dl1", "Bl1", "Cl1"}, 0, 2},

		{[3]string{"Dl1", "Dl3", "Dr7"}, 1, 0},
		{[3]string{"Dl3", "Dl1", "Er4"}, 1, 1},
		{[3]string{"Cl3", "Dl1", "Dr4"}, 1, 1},
		{[3]string{"Cl1", "Cl2", "El1"}, 1, 1},
		{[3]string{"Dl1", "Dl1", "Cr5"}, 1, 2},
		{[3]string{"El1", "El1", "Cr5"}, 1, 2},
		{[3]string{"El6", "Dl1", "Er4"}, 1, 3},
		{[3]string{"Cl3", "Dl3", "Er4"}, 1, 4},
		{[3]string{"Bl3", "Dl3", "Er4"}, 1, 4},
		{[3]string{"Dl1", "Cl3", "El6"}, 1, 5},
		{[3]string{"Dr7", "Cl3", "Er5"}, 1, 5},
		{[3]string{"Bl1", "Dl3", "Bl1"}, 1, 5},
		{[3]string{"El6", "Dl3", "Cl1"}, 1, 6},
		{[3]string{"El6", "Cl3", "Bl1"}, 1, 6},
		{[3]string{"Dl1", "El6", "Cr6"}, 1, 7},
		{[3]string{"Dl1", "El3", "Cl3"}, 1, 7},

		{[3]string{"Dl1", "Dl2", "Dl3"}, 2, 0},
		{[3]string{"Cr3", "Cr6", "Dl1"}, 2, 0},
		{[3]string{"Dl1", "Dl1", "Dl3"}, 2, 1},
		{[3]string{"Dl1", "Dl2", "Dl2"}, 2, 1},
		{[3]string{"Cr3", "Cr4", "Cr4"}, 2, 1},
		{[3]string{"Er4", "Er4", "Cl1"}, 2, 1},
		{[3]string{"El6", "Cr5", "Dr7"}, 2, 2},
		{[3]string{"Dl4", "Dl1", "Dl3"}, 2, 2},
		{[3]string{"Cr7", "Dl1", "Dr5"}, 2, 3},
		{[3]string{"Er5", "Cl3", "Cr3"}, 2, 3},
		{[3]string{"Dr5", "Cl4", "Cr5"}, 2, 4},
		{[3]string{"Er4", "Dl1", "Dr6"}, 2, 4},
		{[3]string{"Dl1", "El6", "El2"}, 2, 4},
		{[3]string{"Dl1", "Dl2", "Dl1"}, 2, 4},
		{[3]string{"Dl1", "Dl3", "Dl1"}, 2, 4},
		{[3]string{"El4", "Cl3", "Cl3"}, 2, 5},
		{[3]string{"Dr4", "Dr4", "Cr4"}, 2, 5},
		{[3]string{"El6", "Cl4", "El6"}, 2, 5},
		{[3]string{"Dl1", "El6", "Cl4"}, 2, 6},
		{[3]string{"El6", "Dl3", "Cl3"}, 2, 6},
		{[3]string{"El6", "El5", "El2"}, 2, 6},
		{[3]string{"Cl5", "Dl4", "El6"}, 2, 7},
		{[3]string{"Dl3", "Cl3", "El4"}, 2, 7},
	}

	for _, tt := range tests {
		var buttons [3]keyboard.Button
		for i, n := range tt.triad {
			buttons[i] = kb.MustFind(n)
		}
		h, r, f := e.StrokePath(buttons)
		got := [3]int{h, r, f}[tt.index]
		if got != tt.want {
			t.Errorf("StrokePath(%v)[%d] = %d, want %d", tt.triad, tt.index, got, tt.want)
		}
	}
}

func TestStrokePathRowTotal(t *testing.T) {
	// every combination of the five rows has a class
	for r0 := 0; r0 < 5; r0++ {
		for r1 := 0; r1 < 5; r1++ {
			for r2 := 0; r2 < 5; r2++ {
				if c := strokePathRow([3]int{r0, r1, r2}); c < 0 || c > 7 {
					t.Errorf("strokePathRow(%d, %d, %d) = %d", r0, r1, r2, c)
				}
			}
		}
	}
}

func TestCost(t *testing.T) {
	kb, e := setup(t, "mod01")
	tests := []struct {
		presses [3]string
		want    float64
	}{
		{[3]string{"Dl1", "Dl2", "Dl3"}, 3.3138036951578322},
		{[3]string{"El_shift+Dr7", "Dl1", "Dr5"}, 9.448323028752847},
		{[3]string{"Cl1", "Dr7", "Er1"}, 4.07727594},
	}
	for _, tt := range tests {
		got := e.Cost(triad(kb, tt.presses[:]...))
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Cost(%v) = %v, want %v", tt.presses, got, tt.want)
		}
	}
}

func TestCostDeterministic(t *testing.T) {
	kb, e := setup(t, "mod01")
	tr := triad(kb, "Er_shift+Cl1", "Dr7", "Er1")
	first := e.Cost(tr)

	fresh, err := New(e.Model(), kb, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := fresh.Cost(tr); got != first {
		t.Errorf("uncached Cost = %v, cached %v", got, first)
	}
	if got := e.Cost(tr); got != first {
		t.Errorf("second Cost = %v, first %v", got, first)
	}
	if e.Cache().Len() != 1 {
		t.Errorf("Cache().Len() = %d, want 1", e.Cache().Len())
	}
}

func TestCostMissingBaseline(t *testing.T) {
	kb, e := setup(t, "mod01")
	tr := triad(kb, "Fl_ctrl+Dl1", "Dl2", "Dl3")

	if err := e.Covers(tr); !errors.Is(err, errors.ErrCodeInvalidModel) {
		t.Errorf("Covers err = %v, want INVALID_MODEL", err)
	}
	if err := e.Covers(triad(kb, "Dl1", "Dl2", "Dl3")); err != nil {
		t.Errorf("Covers err = %v", err)
	}

	defer func() {
		if _, ok := recover().(*errors.IntegrityError); !ok {
			t.Error("expected IntegrityError panic")
		}
	}()
	e.Cost(tr)
}

func TestEffortEmpty(t *testing.T) {
	_, e := setup(t, "mod01")
	if e.Effort() != 0 {
		t.Errorf("Effort() = %v, want 0", e.Effort())
	}
}

func TestCopySharesCache(t *testing.T) {
	kb, e := setup(t, "mod01")
	a := triad(kb, "Dl1", "Dl2", "Dl3")
	b := triad(kb, "Cl1", "Dr7", "Er1")

	e.AddTriad(a, 2)
	c := e.Copy()
	c.AddTriad(b, 1)

	if e.N != 2 || c.N != 3 {
		t.Errorf("N = %v, %v; want 2, 3", e.N, c.N)
	}
	if e.Cache() != c.Cache() || e.Cache().Len() != 2 {
		t.Error("copies must share the cache")
	}

	e.Reset()
	if e.AbsEffort != 0 || e.N != 0 {
		t.Error("Reset() must zero the accumulator")
	}
	if e.Cache().Len() != 2 {
		t.Error("Reset() must keep the cache")
	}
}

func nullModel(kb *keyboard.Keyboard) *Model {
	m := &Model{Name: "null", Baseline: make(map[string]float64)}
	for _, k := range kb.Keys() {
		m.Baseline[k.Name] = 0
	}
	return m
}

// drawable lists buttons property tests draw triads from.
var drawable = []string{"Dl1", "Dl2", "Dl3", "Dl4", "Dr7", "Dr5", "Cl1", "Cr3", "El6", "Er1", "Bl3", "Br1"}

func drawTriad(t *rapid.T, kb *keyboard.Keyboard, label string) layout.Triad {
	shift := []keyboard.ButtonSet{{}, keyboard.SetOf(kb.MustFind("El_shift")), keyboard.SetOf(kb.MustFind("Er_shift"))}
	var tr layout.Triad
	for i := range tr {
		name := rapid.SampledFrom(drawable).Draw(t, label+"_button")
		mod := rapid.SampledFrom(shift).Draw(t, label+"_mod")
		tr[i] = layout.Press(mod, kb.MustFind(name))
	}
	return tr
}

func TestNullModelZero(t *testing.T) {
	kb, _ := setup(t, "mod01")
	e, err := New(nullModel(kb), kb, nil)
	if err != nil {
		t.Fatal(err)
	}
	rapid.Check(t, func(rt *rapid.T) {
		e.Reset()
		n := rapid.IntRange(1, 20).Draw(rt, "n")
		for i := 0; i < n; i++ {
			e.AddTriad(drawTriad(rt, kb, "t"), float64(rapid.IntRange(1, 1000).Draw(rt, "w")))
		}
		if e.Effort() != 0 {
			rt.Fatalf("Effort() = %v, want 0", e.Effort())
		}
	})
}

func TestAccumulatorLaws(t *testing.T) {
	kb, e := setup(t, "mod01")
	rapid.Check(t, func(rt *rapid.T) {
		type entry struct {
			t layout.Triad
			w float64
		}
		n := rapid.IntRange(0, 30).Draw(rt, "n")
		entries := make([]entry, n)
		for i := range entries {
			entries[i] = entry{drawTriad(rt, kb, "t"), float64(rapid.IntRange(1, 500).Draw(rt, "w"))}
		}
		split := rapid.IntRange(0, n).Draw(rt, "split")

		all, a, b := e.Copy(), e.Copy(), e.Copy()
		all.Reset()
		a.Reset()
		b.Reset()
		for i, en := range entries {
			all.AddTriad(en.t, en.w)
			if i < split {
				a.AddTriad(en.t, en.w)
			} else {
				b.AddTriad(en.t, en.w)
			}
		}
		if math.Abs(all.AbsEffort-(a.AbsEffort+b.AbsEffort)) > 1e-6 || all.N != a.N+b.N {
			rt.Fatalf("additivity: %v/%v != %v+%v/%v+%v", all.AbsEffort, all.N, a.AbsEffort, b.AbsEffort, a.N, b.N)
		}

		// add then remove restores the accumulator
		before := all.Accumulator
		extra := drawTriad(rt, kb, "extra")
		w := float64(rapid.IntRange(1, 500).Draw(rt, "extra_w"))
		all.AddTriad(extra, w)
		all.RemoveTriad(extra, w)
		if math.Abs(all.AbsEffort-before.AbsEffort) > 1e-9 || all.N != before.N {
			rt.Fatalf("add/remove: %+v != %+v", all.Accumulator, before)
		}
	})
}

func TestAddTriads(t *testing.T) {
	kb, e := setup(t, "mod01")
	a := triad(kb, "Dl1", "Dl2", "Dl3")
	b := triad(kb, "Cl1", "Dr7", "Er1")
	e.AddTriads(map[layout.Triad]float64{a: 1, b: 3})

	want := (e.Cost(a) + 3*e.Cost(b)) / 4
	if math.Abs(e.Effort()-want) > 1e-12 {
		t.Errorf("Effort() = %v, want %v", e.Effort(), want)
	}
}

func TestNewRejectsBadRows(t *testing.T) {
	def := keyboard.Definition{Name: "swapped", Rows: []keyboard.RowDefinition{
		{Left: []keyboard.KeyDefinition{{Name: "Dl1", Hand: "left", Finger: "little"}}},
	}}
	kb, err := keyboard.Build(keyboard.NewRegistry(), def)
	if err != nil {
		t.Fatal(err)
	}
	m, _ := LoadModel("mod01")
	if _, err := New(m, kb, nil); !errors.Is(err, errors.ErrCodeInvalidKeyboard) {
		t.Errorf("err = %v, want INVALID_KEYBOARD", err)
	}
}

func TestModels(t *testing.T) {
	if got := Models(); !slices.Equal(got, []string{"mod01", "salvo"}) {
		t.Errorf("Models() = %v", got)
	}
	if _, err := LoadModel("nonexistent"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("LoadModel err = %v", err)
	}

	s, _ := LoadModel("salvo")
	if s.PFinger[1][3] != 0 {
		t.Errorf("salvo right index penalty = %v, want 0", s.PFinger[1][3])
	}
	if s.Baseline["Dl5"] != 1.8 {
		t.Errorf("salvo Dl5 = %v", s.Baseline["Dl5"])
	}
	m, _ := LoadModel("mod01")
	if m.Baseline["Dl5"] != 2.0 {
		t.Error("salvo must not alter mod01")
	}
}

func TestModelEncodeDecode(t *testing.T) {
	m, _ := LoadModel("salvo")
	var buf bytes.Buffer
	if err := m.Encode(&buf); err != nil {
		t.Fatal(err)
	}
	back, err := DecodeModel(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if back.Name != m.Name || back.PFinger != m.PFinger || len(back.Baseline) != len(m.Baseline) {
		t.Errorf("round trip changed model: %+v", back)
	}
}

func TestModelValidate(t *testing.T) {
	tests := []struct {
		name  string
		model Model
	}{
		{"no name", Model{Baseline: map[string]float64{"a": 1}}},
		{"no baseline", Model{Name: "x"}},
		{"nan", Model{Name: "x", KBPS: [3]float64{math.NaN()}, Baseline: map[string]float64{"a": 1}}},
		{"inf baseline", Model{Name: "x", Baseline: map[string]float64{"a": math.Inf(1)}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.model.Validate(); !errors.Is(err, errors.ErrCodeInvalidModel) {
				t.Errorf("Validate() = %v, want INVALID_MODEL", err)
			}
		})
	}
}

func BenchmarkCostUncached(b *testing.B) {
	kb, e := setup(b, "mod01")
	tr := triad(kb, "El_shift+Dr7", "Dl1", "Er_shift+Dr5")
	for i := 0; i < b.N; i++ {
		e.cache = NewCache()
		e.Cost(tr)
	}
}

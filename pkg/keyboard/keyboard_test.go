package keyboard

import (
	"strings"
	"sync"
	"testing"

	"github.com/matzehuels/keyforge/pkg/errors"
)

func loadIBM(t *testing.T) *Keyboard {
	t.Helper()
	kb, err := Load(NewRegistry(), "ibmpc105")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return kb
}

func TestLoadBuiltin(t *testing.T) {
	kb := loadIBM(t)
	if kb.Name != "ibmpc105" {
		t.Errorf("Name = %q, want ibmpc105", kb.Name)
	}
	if got := kb.Len(); got != 63 {
		t.Errorf("Len() = %d, want 63", got)
	}
	if len(kb.Rows) != 5 {
		t.Errorf("len(Rows) = %d, want 5", len(kb.Rows))
	}
	if err := kb.VerifyRowConvention(); err != nil {
		t.Errorf("VerifyRowConvention: %v", err)
	}
	if !strings.Contains(kb.String(), "ibmpc105") {
		t.Errorf("String() = %q", kb.String())
	}
}

func TestLoadUnknown(t *testing.T) {
	_, err := Load(NewRegistry(), "nonexistent")
	if !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("err = %v, want NOT_FOUND", err)
	}
}

func TestBuiltin(t *testing.T) {
	names := Builtin()
	if len(names) == 0 || names[0] != "ibmpc105" {
		t.Errorf("Builtin() = %v", names)
	}
}

func TestKeysUnique(t *testing.T) {
	kb := loadIBM(t)
	seenButton := make(map[Button]bool)
	seenName := make(map[string]bool)
	for _, k := range kb.Keys() {
		if seenButton[k.Button] {
			t.Errorf("duplicate button %d", k.Button)
		}
		if seenName[k.Name] {
			t.Errorf("duplicate name %s", k.Name)
		}
		seenButton[k.Button] = true
		seenName[k.Name] = true
	}
}

func TestRow(t *testing.T) {
	kb := loadIBM(t)
	tests := []struct {
		name string
		row  int
	}{
		{"Bl1", 0}, {"Cr1", 1}, {"Dr1", 2}, {"El1", 3}, {"Fr_ctrl", 4}, {"CD_ret", 1},
	}
	for _, tt := range tests {
		if got := kb.Row(kb.MustFind(tt.name)); got != tt.row {
			t.Errorf("Row(%s) = %d, want %d", tt.name, got, tt.row)
		}
	}
}

func TestHandFinger(t *testing.T) {
	kb := loadIBM(t)
	tests := []struct {
		name   string
		hand   Hand
		finger Finger
	}{
		{"Dl1", Left, Little},
		{"Dl2", Left, Ring},
		{"Dl3", Left, Middle},
		{"Dl4", Left, Index},
		{"Dl5", Left, Index},
		{"Dr7", Right, Index},
		{"Dr5", Right, Middle},
		{"Dr4", Right, Ring},
		{"Dr1", Right, Little},
		{"Bl4", Left, Ring},
		{"El2", Left, Little},
		{"El3", Left, Ring},
		{"Er2", Right, Ring},
		{"Fl_space", Left, Thumb},
		{"Fr_altgr", Right, Thumb},
		{"Fl_ctrl", Left, Little},
		{"Fr_ctrl", Right, Little},
		{"CD_ret", Right, Little},
	}
	for _, tt := range tests {
		h, f := kb.HandFinger(kb.MustFind(tt.name))
		if h != tt.hand || f != tt.finger {
			t.Errorf("HandFinger(%s) = %v %v, want %v %v", tt.name, h, f, tt.hand, tt.finger)
		}
	}
}

func TestKeyAttributes(t *testing.T) {
	kb := loadIBM(t)

	ret, ok := kb.Key(kb.MustFind("CD_ret"))
	if !ok || ret.Kind != KindMultiRow || ret.Span != 2 {
		t.Errorf("CD_ret = %+v", ret)
	}
	dl4, _ := kb.Key(kb.MustFind("Dl4"))
	if !dl4.Marked || dl4.Kind != KindLetter {
		t.Errorf("Dl4 = %+v, want marked letter", dl4)
	}
	shift, _ := kb.Key(kb.MustFind("El_shift"))
	if shift.Kind != KindStandard || shift.Width != 1.25 || shift.Side != Left {
		t.Errorf("El_shift = %+v", shift)
	}
}

func TestFind(t *testing.T) {
	kb := loadIBM(t)
	a, err := kb.Find("Dr1")
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if kb.ButtonName(a) != "Dr1" {
		t.Errorf("ButtonName = %q", kb.ButtonName(a))
	}
	if a == kb.MustFind("El1") {
		t.Error("Dr1 and El1 share a button")
	}
	if _, err := kb.Find("nonexistent_button"); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("Find(nonexistent) err = %v", err)
	}
	if kb.Row(Button(MaxButtons-1)) != -1 {
		t.Error("Row of unknown button should be -1")
	}
}

func TestFindInterningOnOtherKeyboard(t *testing.T) {
	reg := NewRegistry()
	kb, err := Load(reg, "ibmpc105")
	if err != nil {
		t.Fatal(err)
	}
	// interned but not part of kb
	if _, err := reg.Intern("Xextra"); err != nil {
		t.Fatal(err)
	}
	if _, err := kb.Find("Xextra"); err == nil {
		t.Error("Find should fail for buttons of other keyboards")
	}
}

func TestBuildErrors(t *testing.T) {
	key := func(name string) KeyDefinition {
		return KeyDefinition{Name: name, Hand: "left", Finger: "index"}
	}
	tests := []struct {
		name string
		def  Definition
	}{
		{"empty name", Definition{}},
		{"duplicate", Definition{Name: "x", Rows: []RowDefinition{{Left: []KeyDefinition{key("a"), key("a")}}}}},
		{"bad hand", Definition{Name: "x", Rows: []RowDefinition{{Left: []KeyDefinition{{Name: "a", Hand: "middle", Finger: "index"}}}}}},
		{"bad finger", Definition{Name: "x", Rows: []RowDefinition{{Left: []KeyDefinition{{Name: "a", Hand: "left", Finger: "pinky"}}}}}},
		{"bad kind", Definition{Name: "x", Rows: []RowDefinition{{Left: []KeyDefinition{{Name: "a", Kind: "round", Hand: "left", Finger: "index"}}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Build(NewRegistry(), tt.def); !errors.Is(err, errors.ErrCodeInvalidKeyboard) {
				t.Errorf("Build err = %v, want INVALID_KEYBOARD", err)
			}
		})
	}
}

func TestDecode(t *testing.T) {
	src := `
name = "tiny"

[[rows]]
left = [{ name = "a", kind = "letter", hand = "left", finger = "index" }]
right = [{ name = "b", kind = "letter", width = 2, hand = "right", finger = "index" }]
`
	kb, err := Decode(NewRegistry(), strings.NewReader(src))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	b, _ := kb.Key(kb.MustFind("b"))
	if b.Width != 2 || b.Span != 1 || b.Side != Right {
		t.Errorf("b = %+v", b)
	}
	if err := kb.VerifyRowConvention(); err != nil {
		t.Errorf("keyboards without reference buttons should pass: %v", err)
	}
}

func TestVerifyRowConvention(t *testing.T) {
	def := Definition{Name: "swapped", Rows: []RowDefinition{
		{Left: []KeyDefinition{{Name: "Cl1", Hand: "left", Finger: "little"}}},
		{Left: []KeyDefinition{{Name: "Bl1", Hand: "left", Finger: "little"}}},
	}}
	kb, err := Build(NewRegistry(), def)
	if err != nil {
		t.Fatal(err)
	}
	if err := kb.VerifyRowConvention(); !errors.Is(err, errors.ErrCodeInvalidKeyboard) {
		t.Errorf("err = %v, want INVALID_KEYBOARD", err)
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	a, err := reg.Intern("a")
	if err != nil {
		t.Fatal(err)
	}
	b, _ := reg.Intern("b")
	c, _ := reg.Intern("a")
	if a == b || a != c {
		t.Errorf("a=%d b=%d c=%d", a, b, c)
	}
	if reg.Name(a) != "a" || reg.Name(b) != "b" {
		t.Errorf("names = %q %q", reg.Name(a), reg.Name(b))
	}
	if reg.Name(Button(100)) != "" {
		t.Error("unknown button should have empty name")
	}
	if _, ok := reg.Lookup("zzz"); ok {
		t.Error("Lookup(zzz) should fail")
	}
	if _, err := reg.Intern(""); err == nil {
		t.Error("empty name should fail")
	}
	if reg.Len() != 2 {
		t.Errorf("Len() = %d, want 2", reg.Len())
	}
}

func TestRegistryOverflow(t *testing.T) {
	reg := NewRegistry()
	for i := 0; i < MaxButtons; i++ {
		if _, err := reg.Intern(strings.Repeat("x", i+1)); err != nil {
			t.Fatalf("Intern #%d: %v", i, err)
		}
	}
	if _, err := reg.Intern("one-too-many"); err == nil {
		t.Error("expected overflow error")
	}
}

func TestRegistryConcurrent(t *testing.T) {
	reg := NewRegistry()
	names := []string{"a", "b", "c", "d", "e"}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, n := range names {
				if _, err := reg.Intern(n); err != nil {
					t.Error(err)
				}
			}
		}()
	}
	wg.Wait()
	if reg.Len() != len(names) {
		t.Errorf("Len() = %d, want %d", reg.Len(), len(names))
	}
}

func TestParseHandFinger(t *testing.T) {
	for _, f := range Fingers {
		got, err := ParseFinger(f.String())
		if err != nil || got != f {
			t.Errorf("ParseFinger(%s) = %v, %v", f, got, err)
		}
	}
	for _, h := range []Hand{Left, Right} {
		got, err := ParseHand(h.String())
		if err != nil || got != h {
			t.Errorf("ParseHand(%s) = %v, %v", h, got, err)
		}
	}
	if Left.Index() != 0 || Right.Index() != 1 {
		t.Error("Hand.Index mismatch")
	}
}

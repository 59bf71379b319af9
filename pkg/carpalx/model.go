package carpalx

import (
	"bytes"
	"io"
	"maps"
	"math"
	"os"
	"slices"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/keyforge/pkg/errors"
)

// Model is the parameter set of the effort formula. Models are immutable
// once handed to an [Evaluator].
//
// Per-hand tables are indexed left, right; per-finger tables little, ring,
// middle, index, thumb.
type Model struct {
	Name string `toml:"name"`
	// KBPS weighs baseline effort, penalty and stroke path.
	KBPS [3]float64 `toml:"k_bps"`
	// K123S holds k1, k2, k3 for the keystroke blend and kS, the penalty
	// for every additional simultaneously pressed key.
	K123S [4]float64 `toml:"k123s"`
	// W0HRF holds w0, wHand, wRow and wFinger of the positional penalty.
	W0HRF   [4]float64    `toml:"w0hrf"`
	PHand   [2]float64    `toml:"p_hand"`
	PRow    [5]float64    `toml:"p_row"` // numbers, top, home, bottom, control
	PFinger [2][5]float64 `toml:"p_finger"`
	// FHRF weighs the hand, row and finger stroke path classes.
	FHRF [3]float64 `toml:"f_hrf"`
	// Baseline is the intrinsic effort of each button, by name.
	Baseline map[string]float64 `toml:"baseline"`
}

// Validate checks that m is usable. It does not check button coverage; see
// [Evaluator.Covers] for that.
func (m *Model) Validate() error {
	if m.Name == "" {
		return errors.New(errors.ErrCodeInvalidModel, "model name cannot be empty")
	}
	if len(m.Baseline) == 0 {
		return errors.New(errors.ErrCodeInvalidModel, "model %s has no baseline efforts", m.Name)
	}
	var values []float64
	values = append(values, m.KBPS[:]...)
	values = append(values, m.K123S[:]...)
	values = append(values, m.W0HRF[:]...)
	values = append(values, m.PHand[:]...)
	values = append(values, m.PRow[:]...)
	values = append(values, m.PFinger[0][:]...)
	values = append(values, m.PFinger[1][:]...)
	values = append(values, m.FHRF[:]...)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New(errors.ErrCodeInvalidModel, "model %s has non-finite parameter %v", m.Name, v)
		}
	}
	for name, v := range m.Baseline {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errors.New(errors.ErrCodeInvalidModel, "model %s: non-finite baseline for %s", m.Name, name)
		}
	}
	return nil
}

// Encode writes m as TOML.
func (m *Model) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(m)
}

// DecodeModel reads a TOML model.
func DecodeModel(r io.Reader) (*Model, error) {
	var m Model
	if _, err := toml.NewDecoder(r).Decode(&m); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidModel, err, "decode model")
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// LoadModel resolves name to a built-in model or, failing that, reads it as
// a TOML file.
func LoadModel(name string) (*Model, error) {
	if m, ok := builtinModels[name]; ok {
		return m, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.New(errors.ErrCodeNotFound, "unknown model %q", name)
	}
	return DecodeModel(bytes.NewReader(data))
}

// Models returns the names of the built-in models.
func Models() []string {
	return slices.Sorted(maps.Keys(builtinModels))
}

var builtinModels = map[string]*Model{
	"mod01": mod01(),
	"salvo": salvo(),
}

// mod01 is the carpalx model 01, extended with a control row and thumbs.
func mod01() *Model {
	return &Model{
		Name:  "mod01",
		KBPS:  [3]float64{0.3555, 0.6423, 0.4268},
		K123S: [4]float64{1.0, 0.367, 0.235, 1.0},
		W0HRF: [4]float64{0.0, 1.0, 1.3088, 2.5948},
		PHand: [2]float64{0.0, 0.0},
		PRow:  [5]float64{1.5, 0.5, 0.0, 1.0, 1.5},
		PFinger: [2][5]float64{
			{1.0, 0.5, 0.0, 0.0, 0.0},
			{1.0, 0.5, 0.0, 0.0, 0.0},
		},
		FHRF:     [3]float64{1.0, 0.3, 0.3},
		Baseline: mod01Baseline(),
	}
}

func mod01Baseline() map[string]float64 {
	return map[string]float64{
		// number row
		"Bl1": 5.0, "Bl2": 5.0, "Bl3": 4.0, "Bl4": 4.0, "Bl5": 4.0, "Bl6": 3.5, "Bl7": 4.5,
		"Br6": 4.0, "Br5": 4.0, "Br4": 4.0, "Br3": 4.0, "Br2": 4.0, "Br1": 4.5,
		// top row
		"Cl1": 2.0, "Cl2": 2.0, "Cl3": 2.0, "Cl4": 2.0, "Cl5": 2.5,
		"Cr7": 3.0, "Cr6": 2.0, "Cr5": 2.0, "Cr4": 2.0, "Cr3": 2.5, "Cr2": 4.0, "Cr1": 6.0,
		// home row
		"Dl_caps": 2.0, "Dl1": 0.0, "Dl2": 0.0, "Dl3": 0.0, "Dl4": 0.0, "Dl5": 2.0,
		"Dr7": 2.0, "Dr6": 0.0, "Dr5": 0.0, "Dr4": 0.0, "Dr3": 0.0, "Dr2": 2.0, "Dr1": 4.0,
		// bottom row
		"El_shift": 4.0, "El1": 4.0, "El2": 2.0, "El3": 2.0, "El4": 2.0, "El5": 2.0, "El6": 3.5,
		"Er5": 2.0, "Er4": 2.0, "Er3": 2.0, "Er2": 2.0, "Er1": 2.0, "Er_shift": 4.0,
		// control row
		"Fr_altgr": 4.0,
	}
}

// salvo uses finger strengths measured by Salvo et al., normalized to the
// strongest finger.
func salvo() *Model {
	m := mod01()
	m.Name = "salvo"
	m.PFinger = [2][5]float64{
		{1 - 3.77/6.57, 1 - 4.54/6.57, 1 - 5.65/6.57, 1 - 6.09/6.57, 0.0},
		{1 - 4.27/6.57, 1 - 5.08/6.57, 1 - 6.37/6.57, 1 - 6.57/6.57, 0.0},
	}
	m.Baseline["Cl5"] = 2.3
	m.Baseline["Cr6"] = 1.9
	m.Baseline["Cr3"] = 2.2
	m.Baseline["Dl5"] = 1.8
	m.Baseline["Dr7"] = 1.8
	return m
}

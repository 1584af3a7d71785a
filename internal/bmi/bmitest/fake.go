// Package bmitest provides an in-memory handle for tests.
package bmitest

import (
	"fmt"
	"slices"

	"github.com/san-kum/bmiview/internal/bmi"
)

// Var is one variable held by a Fake.
type Var struct {
	Units  string
	Grid   bmi.GridID
	Values []float64
	Input  bool
}

// Grid is one unstructured grid held by a Fake.
type Grid struct {
	Size      int
	FaceNodes []int
	// FaceCount overrides len(FaceNodes)/3 when non-zero.
	FaceCount int
	X, Y      []float64
}

// Fake implements bmi.BMI over plain maps and records every call it receives.
// Err, when set, is returned from every call.
type Fake struct {
	Name  string
	Vars  map[string]*Var
	Grids map[bmi.GridID]*Grid
	Order []string

	Time, Start, End, Step float64
	TimeUnits              string

	Err   error
	Calls []string

	Initialized bool
	Finalized   bool
	ConfigPath  string
}

// New returns a Fake holding a single variable on grid 0.
func New(name, variable, units string, values []float64, faceNodes []int) *Fake {
	return &Fake{
		Name:  name,
		Vars:  map[string]*Var{variable: {Units: units, Grid: 0, Values: slices.Clone(values), Input: true}},
		Grids: map[bmi.GridID]*Grid{0: {Size: len(values), FaceNodes: slices.Clone(faceNodes)}},
		Order: []string{variable},
		End:   100,
		Step:  1,

		TimeUnits: "y",
	}
}

func (f *Fake) record(call string) error {
	f.Calls = append(f.Calls, call)
	return f.Err
}

// Count returns how many times call was recorded.
func (f *Fake) Count(call string) int {
	n := 0
	for _, c := range f.Calls {
		if c == call {
			n++
		}
	}
	return n
}

func (f *Fake) lookup(name string) (*Var, error) {
	v, ok := f.Vars[name]
	if !ok {
		return nil, &bmi.UnknownVariableError{Name: name}
	}
	return v, nil
}

func (f *Fake) grid(id bmi.GridID) (*Grid, error) {
	g, ok := f.Grids[id]
	if !ok {
		return nil, fmt.Errorf("bmitest: no grid %d", id)
	}
	return g, nil
}

func (f *Fake) GetComponentName() (string, error) {
	if err := f.record("get_component_name"); err != nil {
		return "", err
	}
	return f.Name, nil
}

func (f *Fake) GetOutputVarNames() ([]string, error) {
	if err := f.record("get_output_var_names"); err != nil {
		return nil, err
	}
	return slices.Clone(f.Order), nil
}

func (f *Fake) GetInputVarNames() ([]string, error) {
	if err := f.record("get_input_var_names"); err != nil {
		return nil, err
	}
	var names []string
	for _, n := range f.Order {
		if f.Vars[n].Input {
			names = append(names, n)
		}
	}
	return names, nil
}

func (f *Fake) GetVarGrid(name string) (bmi.GridID, error) {
	if err := f.record("get_var_grid"); err != nil {
		return 0, err
	}
	v, err := f.lookup(name)
	if err != nil {
		return 0, err
	}
	return v.Grid, nil
}

func (f *Fake) GetGridSize(id bmi.GridID) (int, error) {
	if err := f.record("get_grid_size"); err != nil {
		return 0, err
	}
	g, err := f.grid(id)
	if err != nil {
		return 0, err
	}
	return g.Size, nil
}

func (f *Fake) GetGridFaceCount(id bmi.GridID) (int, error) {
	if err := f.record("get_grid_face_count"); err != nil {
		return 0, err
	}
	g, err := f.grid(id)
	if err != nil {
		return 0, err
	}
	if g.FaceCount != 0 {
		return g.FaceCount, nil
	}
	return len(g.FaceNodes) / 3, nil
}

func (f *Fake) GetGridFaceNodes(id bmi.GridID, dest []int) error {
	if err := f.record("get_grid_face_nodes"); err != nil {
		return err
	}
	g, err := f.grid(id)
	if err != nil {
		return err
	}
	copy(dest, g.FaceNodes)
	return nil
}

func (f *Fake) GetGridType(id bmi.GridID) (string, error) {
	if err := f.record("get_grid_type"); err != nil {
		return "", err
	}
	if _, err := f.grid(id); err != nil {
		return "", err
	}
	return bmi.GridUnstructured, nil
}

func (f *Fake) GetGridRank(id bmi.GridID) (int, error) {
	if err := f.record("get_grid_rank"); err != nil {
		return 0, err
	}
	if _, err := f.grid(id); err != nil {
		return 0, err
	}
	return 2, nil
}

func (f *Fake) GetGridX(id bmi.GridID, dest []float64) error {
	if err := f.record("get_grid_x"); err != nil {
		return err
	}
	g, err := f.grid(id)
	if err != nil {
		return err
	}
	copy(dest, g.X)
	return nil
}

func (f *Fake) GetGridY(id bmi.GridID, dest []float64) error {
	if err := f.record("get_grid_y"); err != nil {
		return err
	}
	g, err := f.grid(id)
	if err != nil {
		return err
	}
	copy(dest, g.Y)
	return nil
}

func (f *Fake) GetValue(name string, dest []float64) error {
	if err := f.record("get_value"); err != nil {
		return err
	}
	v, err := f.lookup(name)
	if err != nil {
		return err
	}
	copy(dest, v.Values)
	return nil
}

func (f *Fake) SetValue(name string, src []float64) error {
	if err := f.record("set_value"); err != nil {
		return err
	}
	v, err := f.lookup(name)
	if err != nil {
		return err
	}
	v.Values = slices.Clone(src)
	return nil
}

func (f *Fake) GetVarUnits(name string) (string, error) {
	if err := f.record("get_var_units"); err != nil {
		return "", err
	}
	v, err := f.lookup(name)
	if err != nil {
		return "", err
	}
	return v.Units, nil
}

func (f *Fake) GetStartTime() (float64, error)   { return f.Start, f.record("get_start_time") }
func (f *Fake) GetEndTime() (float64, error)     { return f.End, f.record("get_end_time") }
func (f *Fake) GetCurrentTime() (float64, error) { return f.Time, f.record("get_current_time") }
func (f *Fake) GetTimeStep() (float64, error)    { return f.Step, f.record("get_time_step") }
func (f *Fake) GetTimeUnits() (string, error)    { return f.TimeUnits, f.record("get_time_units") }

func (f *Fake) Initialize(configPath string) error {
	if err := f.record("initialize"); err != nil {
		return err
	}
	f.Initialized = true
	f.ConfigPath = configPath
	return nil
}

// UpdateUntil moves the clock and adds the elapsed time to every value, so
// tests can observe that state changed.
func (f *Fake) UpdateUntil(t float64) error {
	if err := f.record("update_until"); err != nil {
		return err
	}
	dt := t - f.Time
	for _, v := range f.Vars {
		for i := range v.Values {
			v.Values[i] += dt
		}
	}
	f.Time = t
	return nil
}

func (f *Fake) Finalize() error {
	if err := f.record("finalize"); err != nil {
		return err
	}
	f.Finalized = true
	return nil
}

// Minimal exposes only the base capability set.
type Minimal struct {
	Name string
	Vars []string
}

func (m Minimal) GetComponentName() (string, error)    { return m.Name, nil }
func (m Minimal) GetOutputVarNames() ([]string, error) { return m.Vars, nil }

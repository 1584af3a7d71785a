package bmi

import "slices"

// HasOutputVar reports whether name is one of the handle's output variables.
func HasOutputVar(m Model, name string) (bool, error) {
	names, err := m.GetOutputVarNames()
	if err != nil {
		return false, err
	}
	return slices.Contains(names, name), nil
}

// Capabilities lists the optional capability sets m implements.
func Capabilities(m Model) []string {
	var caps []string
	if _, ok := m.(GridReader); ok {
		caps = append(caps, "grid")
	}
	if _, ok := m.(ValueReader); ok {
		caps = append(caps, "values")
	}
	if _, ok := m.(ValueWriter); ok {
		caps = append(caps, "set_value")
	}
	if _, ok := m.(GridDescriber); ok {
		caps = append(caps, "grid_type")
	}
	if _, ok := m.(Clock); ok {
		caps = append(caps, "time")
	}
	if _, ok := m.(Lifecycle); ok {
		caps = append(caps, "lifecycle")
	}
	if _, ok := m.(NodeCoordinates); ok {
		caps = append(caps, "coordinates")
	}
	return caps
}

// TimeInfo is the model clock at the moment it was read.
type TimeInfo struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Current float64 `json:"current"`
	Step    float64 `json:"step"`
	Units   string  `json:"units"`
}

// VarInfo describes one exposed variable.
type VarInfo struct {
	Name      string `json:"name"`
	Units     string `json:"units,omitempty"`
	Grid      GridID `json:"grid"`
	GridType  string `json:"grid_type,omitempty"`
	Rank      int    `json:"rank,omitempty"`
	Size      int    `json:"size"`
	FaceCount int    `json:"face_count,omitempty"`
}

// Info is a read-only summary of a handle.
type Info struct {
	Component    string    `json:"component"`
	InputVars    []string  `json:"input_vars,omitempty"`
	OutputVars   []string  `json:"output_vars"`
	Time         *TimeInfo `json:"time,omitempty"`
	Vars         []VarInfo `json:"vars,omitempty"`
	Capabilities []string  `json:"capabilities"`
}

// Describe queries whatever the handle exposes. Errors from the handle are
// returned unchanged.
func Describe(m Model) (*Info, error) {
	name, err := m.GetComponentName()
	if err != nil {
		return nil, err
	}
	outputs, err := m.GetOutputVarNames()
	if err != nil {
		return nil, err
	}

	info := &Info{
		Component:    name,
		OutputVars:   outputs,
		Capabilities: Capabilities(m),
	}

	if in, ok := m.(InputLister); ok {
		if info.InputVars, err = in.GetInputVarNames(); err != nil {
			return nil, err
		}
	}

	if c, ok := m.(Clock); ok {
		if info.Time, err = readClock(c); err != nil {
			return nil, err
		}
	}

	if g, ok := m.(GridReader); ok {
		for _, v := range outputs {
			vi, err := describeVar(m, g, v)
			if err != nil {
				return nil, err
			}
			info.Vars = append(info.Vars, *vi)
		}
	}

	return info, nil
}

func readClock(c Clock) (*TimeInfo, error) {
	var t TimeInfo
	var err error
	if t.Start, err = c.GetStartTime(); err != nil {
		return nil, err
	}
	if t.End, err = c.GetEndTime(); err != nil {
		return nil, err
	}
	if t.Current, err = c.GetCurrentTime(); err != nil {
		return nil, err
	}
	if t.Step, err = c.GetTimeStep(); err != nil {
		return nil, err
	}
	if t.Units, err = c.GetTimeUnits(); err != nil {
		return nil, err
	}
	return &t, nil
}

func describeVar(m Model, g GridReader, name string) (*VarInfo, error) {
	vi := &VarInfo{Name: name}
	var err error
	if vi.Grid, err = g.GetVarGrid(name); err != nil {
		return nil, err
	}
	if vi.Size, err = g.GetGridSize(vi.Grid); err != nil {
		return nil, err
	}
	if d, ok := m.(GridDescriber); ok {
		if vi.GridType, err = d.GetGridType(vi.Grid); err != nil {
			return nil, err
		}
		if vi.Rank, err = d.GetGridRank(vi.Grid); err != nil {
			return nil, err
		}
	}
	if vi.GridType == "" || vi.GridType == GridUnstructured {
		if vi.FaceCount, err = g.GetGridFaceCount(vi.Grid); err != nil {
			return nil, err
		}
	}
	if v, ok := m.(ValueReader); ok {
		if vi.Units, err = v.GetVarUnits(name); err != nil {
			return nil, err
		}
	}
	return vi, nil
}

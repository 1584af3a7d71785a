package bmi

// GridID identifies a grid. It has no meaning outside the handle that issued it.
type GridID int

// Grid types reported by GetGridType.
const (
	GridUnstructured       = "unstructured"
	GridUniformRectilinear = "uniform_rectilinear"
	GridScalar             = "scalar"
)

// Model is the capability every handle exposes.
type Model interface {
	GetComponentName() (string, error)
	GetOutputVarNames() ([]string, error)
}

// GridReader exposes node count and triangle connectivity of a grid.
type GridReader interface {
	GetVarGrid(name string) (GridID, error)
	GetGridSize(grid GridID) (int, error)
	GetGridFaceCount(grid GridID) (int, error)
	// GetGridFaceNodes fills dest, which must hold 3*face_count entries.
	GetGridFaceNodes(grid GridID, dest []int) error
}

// ValueReader reads variable values and units.
type ValueReader interface {
	// GetValue fills dest, which must hold grid-size entries.
	GetValue(name string, dest []float64) error
	GetVarUnits(name string) (string, error)
}

type ValueWriter interface {
	SetValue(name string, src []float64) error
}

type GridDescriber interface {
	GetGridType(grid GridID) (string, error)
	GetGridRank(grid GridID) (int, error)
}

type InputLister interface {
	GetInputVarNames() ([]string, error)
}

// Clock reports model time.
type Clock interface {
	GetStartTime() (float64, error)
	GetEndTime() (float64, error)
	GetCurrentTime() (float64, error)
	GetTimeStep() (float64, error)
	GetTimeUnits() (string, error)
}

type Lifecycle interface {
	Initialize(configPath string) error
	UpdateUntil(t float64) error
	Finalize() error
}

// NodeCoordinates is implemented by backends that can report node positions
// directly. Remote handles may not offer it reliably, which is why coordinates
// normally travel through a side-channel cache.
type NodeCoordinates interface {
	GetGridX(grid GridID, dest []float64) error
	GetGridY(grid GridID, dest []float64) error
}

// BMI is the full capability set of a model handle.
type BMI interface {
	Model
	InputLister
	GridReader
	GridDescriber
	ValueReader
	ValueWriter
	Clock
	Lifecycle
}

// Package landscape is an in-process landscape evolution model exposed
// through the bmi capability set.
//
// Elevations live on the nodes of an unstructured triangle mesh and evolve
// by uplift and linear hillslope diffusion, dz/dt = U + D·∇²z, with the
// y = 0 row held at base level. The numerics are illustrative; the model
// exists so the renderer has a real handle to draw.
package landscape

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"go.uber.org/zap"

	"github.com/san-kum/bmiview/internal/bmi"
	"github.com/san-kum/bmiview/internal/dynamo"
	"github.com/san-kum/bmiview/internal/integrators"
	"github.com/san-kum/bmiview/internal/mesh"
)

const ComponentName = "CHILD-like landscape"

// Standard names of the exposed variables.
const (
	Elevation   = "land_surface__elevation"
	Slope       = "land_surface__slope"
	ErosionRate = "sediment__erosion_rate"
	UpliftRate  = "bedrock__uplift_rate"
)

var (
	ErrNotInitialized = errors.New("landscape: model not initialized")
	ErrInvalidConfig  = errors.New("landscape: invalid config")
	ErrUnknownGrid    = errors.New("landscape: unknown grid")
	ErrBufferSize     = errors.New("landscape: buffer too small")
	ErrReadOnly       = errors.New("landscape: variable is read-only")
)

const grid bmi.GridID = 0

// stepTolerance is the error tolerance handed to adaptive integrators.
const stepTolerance = 1e-6

var (
	outputVars = []string{Elevation, Slope, ErosionRate}
	inputVars  = []string{Elevation, UpliftRate}
)

var _ bmi.BMI = (*Model)(nil)
var _ bmi.NodeCoordinates = (*Model)(nil)
var _ dynamo.System = (*Model)(nil)

type Model struct {
	logger *zap.Logger

	cfg   Config
	grid  *mesh.TriMesh
	flat  []int
	fixed []bool

	nbrs    [][]int
	invLen2 [][]float64

	z      dynamo.State
	uplift []float64
	integ  dynamo.Integrator
	t      float64
	ready  bool
}

type Option func(*Model)

func WithLogger(l *zap.Logger) Option {
	return func(m *Model) {
		m.logger = l
	}
}

func New(opts ...Option) *Model {
	m := &Model{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Initialize builds the mesh and the initial surface from the YAML file at
// configPath. An empty path uses DefaultConfig.
func (m *Model) Initialize(configPath string) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	integ, err := integrators.Lookup(cfg.Integrator)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15))
	tm, fixed, err := buildGrid(cfg, rng)
	if err != nil {
		return err
	}

	n := tm.NodeCount()
	m.cfg = cfg
	m.grid = tm
	m.flat = mesh.Flatten(tm.Faces)
	m.fixed = fixed
	m.integ = integ
	m.t = 0

	m.nbrs = tm.Neighbors()
	m.invLen2 = make([][]float64, n)
	for i, nb := range m.nbrs {
		m.invLen2[i] = make([]float64, len(nb))
		for k, j := range nb {
			dx, dy := tm.X[j]-tm.X[i], tm.Y[j]-tm.Y[i]
			m.invLen2[i][k] = 1 / (dx*dx + dy*dy)
		}
	}

	m.z = make(dynamo.State, n)
	m.uplift = make([]float64, n)
	for i := range m.z {
		if fixed[i] {
			continue
		}
		m.z[i] = rng.NormFloat64() * cfg.Noise
		m.uplift[i] = cfg.Uplift
	}

	m.ready = true
	m.logger.Info("landscape initialized",
		zap.Int("nodes", n),
		zap.Int("faces", len(tm.Faces)),
		zap.String("integrator", cfg.Integrator),
	)
	return nil
}

// UpdateUntil advances the surface to time t in steps of Dt, shortening the
// last one to land exactly on t.
func (m *Model) UpdateUntil(t float64) error {
	if !m.ready {
		return ErrNotInitialized
	}
	if t < m.t {
		return fmt.Errorf("%w: %g < %g", dynamo.ErrTimeReversed, t, m.t)
	}

	start := m.z
	for step := 0; m.t < t; step++ {
		dt := math.Min(m.cfg.Dt, t-m.t)
		next, err := m.step(dt)
		if err != nil {
			return &dynamo.StepError{Step: step, Time: m.t, Wrapped: err}
		}
		m.z = next
		if t-m.t <= m.cfg.Dt {
			m.t = t
		} else {
			m.t += dt
		}
	}

	m.logger.Debug("landscape advanced",
		zap.Float64("time", m.t),
		zap.Float64("max_change", m.z.Sub(start).MaxAbs()),
	)
	return nil
}

// step takes one integrator step of dt from the current surface. Adaptive
// integrators report their own failures; the step size stays fixed.
func (m *Model) step(dt float64) (dynamo.State, error) {
	var next dynamo.State
	if ad, ok := m.integ.(dynamo.AdaptiveIntegrator); ok {
		var err error
		if next, _, err = ad.StepAdaptive(m, m.z, m.t, dt, stepTolerance); err != nil {
			return nil, err
		}
	} else {
		next = m.integ.Step(m, m.z, m.t, dt)
	}
	if !next.IsValid() {
		return nil, dynamo.ErrInvalidState
	}
	return next, nil
}

func (m *Model) Finalize() error {
	if !m.ready {
		return ErrNotInitialized
	}
	m.ready = false
	m.z, m.uplift = nil, nil
	m.logger.Info("landscape finalized")
	return nil
}

func (m *Model) StateDim() int { return len(m.z) }

// Derive is the right hand side U + D·∇²z. Base level nodes do not move.
func (m *Model) Derive(z dynamo.State, t float64) dynamo.State {
	dz := make(dynamo.State, len(z))
	dynamo.ParallelFor(len(z), 256, func(start, end int) {
		for i := start; i < end; i++ {
			if m.fixed[i] {
				continue
			}
			dz[i] = m.uplift[i] + m.cfg.Diffusivity*m.laplacian(z, i)
		}
	})
	return dz
}

// laplacian is the graph Laplacian at node i with edges weighted by 1/l²,
// scaled so a regular four-neighbour lattice recovers the five-point stencil.
func (m *Model) laplacian(z []float64, i int) float64 {
	nb := m.nbrs[i]
	if len(nb) == 0 {
		return 0
	}
	sum := 0.0
	for k, j := range nb {
		sum += (z[j] - z[i]) * m.invLen2[i][k]
	}
	return 4 * sum / float64(len(nb))
}

func (m *Model) slope(i int) float64 {
	s := 0.0
	for k, j := range m.nbrs[i] {
		s = math.Max(s, math.Abs(m.z[j]-m.z[i])*math.Sqrt(m.invLen2[i][k]))
	}
	return s
}

func (m *Model) GetComponentName() (string, error) { return ComponentName, nil }

func (m *Model) GetOutputVarNames() ([]string, error) {
	return append([]string(nil), outputVars...), nil
}

func (m *Model) GetInputVarNames() ([]string, error) {
	return append([]string(nil), inputVars...), nil
}

func known(name string) bool {
	switch name {
	case Elevation, Slope, ErosionRate, UpliftRate:
		return true
	}
	return false
}

func (m *Model) GetVarGrid(name string) (bmi.GridID, error) {
	if !known(name) {
		return 0, &bmi.UnknownVariableError{Name: name}
	}
	return grid, nil
}

func (m *Model) GetVarUnits(name string) (string, error) {
	switch name {
	case Elevation:
		return "m", nil
	case Slope:
		return "m / m", nil
	case ErosionRate, UpliftRate:
		return "m / " + m.timeUnits(), nil
	}
	return "", &bmi.UnknownVariableError{Name: name}
}

func (m *Model) timeUnits() string {
	if m.cfg.TimeUnits == "" {
		return DefaultConfig().TimeUnits
	}
	return m.cfg.TimeUnits
}

func (m *Model) checkGrid(id bmi.GridID) error {
	if !m.ready {
		return ErrNotInitialized
	}
	if id != grid {
		return fmt.Errorf("%w: %d", ErrUnknownGrid, id)
	}
	return nil
}

func (m *Model) GetGridType(id bmi.GridID) (string, error) {
	if err := m.checkGrid(id); err != nil {
		return "", err
	}
	return bmi.GridUnstructured, nil
}

func (m *Model) GetGridRank(id bmi.GridID) (int, error) {
	if err := m.checkGrid(id); err != nil {
		return 0, err
	}
	return 2, nil
}

func (m *Model) GetGridSize(id bmi.GridID) (int, error) {
	if err := m.checkGrid(id); err != nil {
		return 0, err
	}
	return m.grid.NodeCount(), nil
}

func (m *Model) GetGridFaceCount(id bmi.GridID) (int, error) {
	if err := m.checkGrid(id); err != nil {
		return 0, err
	}
	return len(m.grid.Faces), nil
}

func (m *Model) GetGridFaceNodes(id bmi.GridID, dest []int) error {
	if err := m.checkGrid(id); err != nil {
		return err
	}
	if len(dest) < len(m.flat) {
		return fmt.Errorf("%w: %d < %d", ErrBufferSize, len(dest), len(m.flat))
	}
	copy(dest, m.flat)
	return nil
}

func (m *Model) GetGridX(id bmi.GridID, dest []float64) error {
	return m.copyNodes(id, dest, m.gridX)
}

func (m *Model) GetGridY(id bmi.GridID, dest []float64) error {
	return m.copyNodes(id, dest, m.gridY)
}

func (m *Model) gridX() []float64 { return m.grid.X }
func (m *Model) gridY() []float64 { return m.grid.Y }

func (m *Model) copyNodes(id bmi.GridID, dest []float64, src func() []float64) error {
	if err := m.checkGrid(id); err != nil {
		return err
	}
	n := m.grid.NodeCount()
	if len(dest) < n {
		return fmt.Errorf("%w: %d < %d", ErrBufferSize, len(dest), n)
	}
	copy(dest, src())
	return nil
}

func (m *Model) GetValue(name string, dest []float64) error {
	if !known(name) {
		return &bmi.UnknownVariableError{Name: name}
	}
	if !m.ready {
		return ErrNotInitialized
	}
	n := len(m.z)
	if len(dest) < n {
		return fmt.Errorf("%w: %d < %d", ErrBufferSize, len(dest), n)
	}

	switch name {
	case Elevation:
		copy(dest, m.z)
	case UpliftRate:
		copy(dest, m.uplift)
	case Slope:
		for i := 0; i < n; i++ {
			dest[i] = m.slope(i)
		}
	case ErosionRate:
		for i := 0; i < n; i++ {
			if m.fixed[i] {
				dest[i] = 0
				continue
			}
			dest[i] = -m.cfg.Diffusivity * m.laplacian(m.z, i)
		}
	}
	return nil
}

func (m *Model) SetValue(name string, src []float64) error {
	if !known(name) {
		return &bmi.UnknownVariableError{Name: name}
	}
	if !m.ready {
		return ErrNotInitialized
	}
	n := len(m.z)
	if len(src) < n {
		return fmt.Errorf("%w: %d < %d", ErrBufferSize, len(src), n)
	}

	switch name {
	case Elevation:
		copy(m.z, src)
	case UpliftRate:
		copy(m.uplift, src)
	default:
		return fmt.Errorf("%w: %q", ErrReadOnly, name)
	}
	return nil
}

func (m *Model) GetStartTime() (float64, error) {
	if !m.ready {
		return 0, ErrNotInitialized
	}
	return 0, nil
}

func (m *Model) GetEndTime() (float64, error) {
	if !m.ready {
		return 0, ErrNotInitialized
	}
	return m.cfg.EndTime, nil
}

func (m *Model) GetCurrentTime() (float64, error) {
	if !m.ready {
		return 0, ErrNotInitialized
	}
	return m.t, nil
}

func (m *Model) GetTimeStep() (float64, error) {
	if !m.ready {
		return 0, ErrNotInitialized
	}
	return m.cfg.Dt, nil
}

func (m *Model) GetTimeUnits() (string, error) {
	return m.timeUnits(), nil
}

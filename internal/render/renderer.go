package render

import (
	"fmt"
	"image"
	"math"

	"go.uber.org/zap"

	"github.com/san-kum/bmiview/internal/bmi"
	"github.com/san-kum/bmiview/internal/mesh"
)

// Surface is a scalar field sampled on a triangle mesh.
type Surface struct {
	Variable string
	Units    string
	Mesh     *mesh.TriMesh
	Values   []float64
}

// Caption is the colour-scale label, "name (units)".
func (s *Surface) Caption() string {
	return fmt.Sprintf("%s (%s)", s.Variable, s.Units)
}

// FaceValues returns the node values at the corners of every face.
func (s *Surface) FaceValues() [][3]float64 {
	out := make([][3]float64, len(s.Mesh.Faces))
	for i, f := range s.Mesh.Faces {
		out[i] = [3]float64{s.Values[f[0]], s.Values[f[1]], s.Values[f[2]]}
	}
	return out
}

// Range returns the smallest and largest finite value.
func (s *Surface) Range() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range s.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo > hi {
		return 0, 0
	}
	return lo, hi
}

// RenderedImage is the result of a render call.
type RenderedImage struct {
	*Surface
	Label    string
	Min, Max float64
	ColorMap string
	Image    *image.RGBA
}

type Renderer struct {
	logger *zap.Logger
}

type Option func(*Renderer)

func WithLogger(l *zap.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.logger = l
		}
	}
}

func New(opts ...Option) *Renderer {
	r := &Renderer{logger: zap.NewNop()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Render samples variable name from m and draws it over the nodes (x, y).
func (r *Renderer) Render(m bmi.Model, name string, x, y []float64, style Style) (*RenderedImage, error) {
	st, err := style.resolve()
	if err != nil {
		return nil, err
	}

	surf, err := r.Sample(m, name, x, y)
	if err != nil {
		return nil, err
	}

	return r.draw(surf, st)
}

// Draw rasterizes an already sampled surface.
func (r *Renderer) Draw(surf *Surface, style Style) (*RenderedImage, error) {
	st, err := style.resolve()
	if err != nil {
		return nil, err
	}
	if err := surf.check(); err != nil {
		return nil, err
	}
	return r.draw(surf, st)
}

// check guards surfaces built outside Sample.
func (s *Surface) check() error {
	if s.Mesh == nil {
		return &bmi.GridMismatchError{Want: len(s.Values)}
	}
	n := s.Mesh.NodeCount()
	if len(s.Mesh.Y) != n || len(s.Values) != n {
		return &bmi.GridMismatchError{Want: len(s.Values), GotX: n, GotY: len(s.Mesh.Y)}
	}
	if err := mesh.CheckFinite(s.Mesh.X, s.Mesh.Y); err != nil {
		return err
	}
	return mesh.Validate(s.Mesh.Faces, n)
}

func (r *Renderer) draw(surf *Surface, st *resolved) (*RenderedImage, error) {
	lo, hi := surf.Range()
	if st.min != nil {
		lo = *st.min
	}
	if st.max != nil {
		hi = *st.max
	}
	// A single bound can still land on the wrong side of the data range.
	if lo > hi {
		return nil, fmt.Errorf("%w: vmin %g greater than vmax %g", ErrInvalidStyle, lo, hi)
	}

	out := &RenderedImage{
		Surface:  surf,
		Label:    surf.Caption(),
		Min:      lo,
		Max:      hi,
		ColorMap: st.cmap.Name,
	}
	out.Image = rasterize(surf, st, lo, hi, out.Label)

	r.logger.Debug("rendered variable",
		zap.String("variable", surf.Variable),
		zap.Int("nodes", surf.Mesh.NodeCount()),
		zap.Int("faces", len(surf.Mesh.Faces)),
		zap.Float64("vmin", lo),
		zap.Float64("vmax", hi))

	return out, nil
}

// Sample reads the current values and connectivity of name without drawing.
// Each of grid size, face count, values and face nodes is queried exactly once.
func (r *Renderer) Sample(m bmi.Model, name string, x, y []float64) (*Surface, error) {
	grids, values, err := capabilities(m)
	if err != nil {
		return nil, err
	}

	ok, err := bmi.HasOutputVar(m, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &bmi.UnknownVariableError{Name: name}
	}

	gid, err := grids.GetVarGrid(name)
	if err != nil {
		return nil, err
	}
	size, err := grids.GetGridSize(gid)
	if err != nil {
		return nil, err
	}
	if size < 0 || len(x) != size || len(y) != size {
		return nil, &bmi.GridMismatchError{Want: size, GotX: len(x), GotY: len(y)}
	}
	if err := mesh.CheckFinite(x, y); err != nil {
		return nil, err
	}
	faceCount, err := grids.GetGridFaceCount(gid)
	if err != nil {
		return nil, err
	}
	if faceCount < 0 {
		return nil, &bmi.MalformedConnectivityError{
			Length: 3 * faceCount,
			Reason: fmt.Sprintf("negative face count %d", faceCount),
		}
	}

	vals := make([]float64, size)
	if err := values.GetValue(name, vals); err != nil {
		return nil, err
	}

	flat := make([]int, 3*faceCount)
	if err := grids.GetGridFaceNodes(gid, flat); err != nil {
		return nil, err
	}
	faces, err := mesh.Reshape(flat)
	if err != nil {
		return nil, err
	}
	tri, err := mesh.New(x, y, faces)
	if err != nil {
		return nil, err
	}

	units, err := values.GetVarUnits(name)
	if err != nil {
		return nil, err
	}

	return &Surface{Variable: name, Units: units, Mesh: tri, Values: vals}, nil
}

func capabilities(m bmi.Model) (bmi.GridReader, bmi.ValueReader, error) {
	grids, okGrid := m.(bmi.GridReader)
	values, okValues := m.(bmi.ValueReader)

	var missing []string
	if !okGrid {
		missing = append(missing, "GridReader")
	}
	if !okValues {
		missing = append(missing, "ValueReader")
	}
	if len(missing) > 0 {
		return nil, nil, &bmi.UnsupportedModelError{Missing: missing}
	}
	return grids, values, nil
}

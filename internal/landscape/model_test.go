package landscape

import (
	"errors"
	"math"
	"path/filepath"
	"slices"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/san-kum/bmiview/internal/bmi"
	"github.com/san-kum/bmiview/internal/coords"
	"github.com/san-kum/bmiview/internal/dynamo"
	"github.com/san-kum/bmiview/internal/render"
)

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Width = 5000
	cfg.Height = 5000
	cfg.Spacing = 1000
	cfg.EndTime = 5000
	return cfg
}

func newModel(t *testing.T, cfg Config) *Model {
	t.Helper()
	path := filepath.Join(t.TempDir(), "landscape.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	m := New(WithLogger(zaptest.NewLogger(t)))
	if err := m.Initialize(path); err != nil {
		t.Fatalf("initialize failed: %v", err)
	}
	return m
}

func values(t *testing.T, m *Model, name string) []float64 {
	t.Helper()
	n, err := m.GetGridSize(0)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]float64, n)
	if err := m.GetValue(name, buf); err != nil {
		t.Fatal(err)
	}
	return buf
}

func TestInitialize_Grid(t *testing.T) {
	m := newModel(t, smallConfig())

	size, _ := m.GetGridSize(0)
	faces, _ := m.GetGridFaceCount(0)
	if size != 36 {
		t.Errorf("expected 36 nodes, got %d", size)
	}
	if faces != 50 {
		t.Errorf("expected 50 faces, got %d", faces)
	}

	flat := make([]int, 3*faces)
	if err := m.GetGridFaceNodes(0, flat); err != nil {
		t.Fatal(err)
	}
	for _, n := range flat {
		if n < 0 || n >= size {
			t.Fatalf("face node %d out of range", n)
		}
	}

	if typ, _ := m.GetGridType(0); typ != bmi.GridUnstructured {
		t.Errorf("expected unstructured grid, got %q", typ)
	}
	if _, err := m.GetGridSize(3); !errors.Is(err, ErrUnknownGrid) {
		t.Errorf("expected ErrUnknownGrid, got %v", err)
	}
}

func TestNotInitialized(t *testing.T) {
	m := New()
	buf := make([]float64, 1)

	if err := m.GetValue(Elevation, buf); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("GetValue: expected ErrNotInitialized, got %v", err)
	}
	if err := m.UpdateUntil(1); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("UpdateUntil: expected ErrNotInitialized, got %v", err)
	}
	if _, err := m.GetGridSize(0); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("GetGridSize: expected ErrNotInitialized, got %v", err)
	}

	m = newModel(t, smallConfig())
	if err := m.Finalize(); err != nil {
		t.Fatal(err)
	}
	if err := m.GetValue(Elevation, buf); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("after finalize: expected ErrNotInitialized, got %v", err)
	}
	if err := m.Finalize(); !errors.Is(err, ErrNotInitialized) {
		t.Errorf("second finalize: expected ErrNotInitialized, got %v", err)
	}
}

func TestUnknownVariable(t *testing.T) {
	m := newModel(t, smallConfig())
	buf := make([]float64, 36)

	for _, err := range []error{
		m.GetValue("sea_water__depth", buf),
		m.SetValue("sea_water__depth", buf),
	} {
		var uv *bmi.UnknownVariableError
		if !errors.As(err, &uv) || uv.Name != "sea_water__depth" {
			t.Errorf("expected UnknownVariableError, got %v", err)
		}
	}
	if _, err := m.GetVarUnits("nope"); !errors.Is(err, bmi.ErrUnknownVariable) {
		t.Errorf("expected ErrUnknownVariable, got %v", err)
	}
}

func TestSetValue(t *testing.T) {
	m := newModel(t, smallConfig())

	z := values(t, m, Elevation)
	for i := range z {
		z[i] += 100
	}
	if err := m.SetValue(Elevation, z); err != nil {
		t.Fatal(err)
	}
	if got := values(t, m, Elevation); !slices.Equal(got, z) {
		t.Error("elevation not written back")
	}

	if err := m.SetValue(Slope, z); !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got %v", err)
	}
	if err := m.SetValue(Elevation, z[:3]); !errors.Is(err, ErrBufferSize) {
		t.Errorf("expected ErrBufferSize, got %v", err)
	}
}

func TestUpdateUntil_Time(t *testing.T) {
	m := newModel(t, smallConfig())

	if err := m.UpdateUntil(25); err != nil {
		t.Fatal(err)
	}
	if now, _ := m.GetCurrentTime(); now != 25 {
		t.Errorf("expected time 25, got %v", now)
	}
	if err := m.UpdateUntil(10); !errors.Is(err, dynamo.ErrTimeReversed) {
		t.Errorf("expected ErrTimeReversed, got %v", err)
	}
	if err := m.UpdateUntil(25); err != nil {
		t.Errorf("updating to the current time should be a no-op, got %v", err)
	}
}

func TestUpdateUntil_UpliftOnly(t *testing.T) {
	for _, integ := range []string{"euler", "rk4", "rk45"} {
		t.Run(integ, func(t *testing.T) {
			cfg := smallConfig()
			cfg.Diffusivity = 0
			cfg.Integrator = integ
			m := newModel(t, cfg)

			before := values(t, m, Elevation)
			if err := m.UpdateUntil(1000); err != nil {
				t.Fatal(err)
			}
			after := values(t, m, Elevation)

			y := make([]float64, len(after))
			m.GetGridY(0, y)
			for i := range after {
				want := before[i] + cfg.Uplift*1000
				if y[i] == 0 {
					want = before[i]
				}
				if math.Abs(after[i]-want) > 1e-9 {
					t.Fatalf("node %d: got %v, want %v", i, after[i], want)
				}
			}
		})
	}
}

func TestUpdateUntil_DiffusionSmooths(t *testing.T) {
	cfg := smallConfig()
	cfg.Uplift = 0
	cfg.Noise = 10
	m := newModel(t, cfg)

	spread := func(z []float64) float64 {
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, v := range z {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
		}
		return hi - lo
	}

	before := spread(values(t, m, Elevation))
	if err := m.UpdateUntil(5000); err != nil {
		t.Fatal(err)
	}
	after := spread(values(t, m, Elevation))

	if after >= before {
		t.Errorf("relief should shrink: before %v, after %v", before, after)
	}
}

func TestDeterministicSeed(t *testing.T) {
	a := values(t, newModel(t, smallConfig()), Elevation)
	b := values(t, newModel(t, smallConfig()), Elevation)
	if !slices.Equal(a, b) {
		t.Error("same seed should give the same surface")
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	cfg := smallConfig()
	cfg.Jitter = 0.7
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatal(err)
	}
	if err := New().Initialize(path); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}

	cfg = smallConfig()
	cfg.Integrator = "leapfrog"
	cfg.Save(path)
	if err := New().Initialize(path); !errors.Is(err, dynamo.ErrUnknownIntegrator) {
		t.Errorf("expected ErrUnknownIntegrator, got %v", err)
	}
}

func TestRenderThroughModel(t *testing.T) {
	m := newModel(t, smallConfig())

	c, err := coords.FromModel(m, Elevation)
	if err != nil {
		t.Fatal(err)
	}
	out, err := render.New().Render(m, Elevation, c.X, c.Y, render.Style{})
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if out.Label != "land_surface__elevation (m)" {
		t.Errorf("unexpected label %q", out.Label)
	}
	if len(out.Mesh.Faces) != 50 || len(out.Values) != 36 {
		t.Errorf("unexpected surface: %d faces, %d values", len(out.Mesh.Faces), len(out.Values))
	}
}

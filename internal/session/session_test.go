package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/san-kum/bmiview/internal/bmi"
	"github.com/san-kum/bmiview/internal/bmi/bmitest"
	"github.com/san-kum/bmiview/internal/coords"
	"github.com/san-kum/bmiview/internal/landscape"
	"github.com/san-kum/bmiview/internal/render"
	"github.com/san-kum/bmiview/internal/storage"
)

const elevation = "land_surface__elevation"

func square() (*bmitest.Fake, *coords.Cache) {
	f := bmitest.New("CHILD", elevation, "m", []float64{10, 20, 30, 40}, []int{0, 1, 2, 1, 2, 3})
	c := &coords.Cache{X: []float64{0, 1, 0, 1}, Y: []float64{0, 0, 1, 1}}
	return f, c
}

func TestOpenClose(t *testing.T) {
	f, _ := square()
	s := New(f, WithLogger(zaptest.NewLogger(t)))

	if err := s.Open("child.in"); err != nil {
		t.Fatal(err)
	}
	if !f.Initialized {
		t.Error("expected initialize to reach the model")
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if !f.Finalized {
		t.Error("expected finalize to reach the model")
	}

	f.Err = errors.New("container gone")
	if err := s.Open("child.in"); !errors.Is(err, f.Err) {
		t.Errorf("expected wrapped model error, got %v", err)
	}
}

func TestInfo(t *testing.T) {
	f, _ := square()
	info, err := New(f).Info()
	if err != nil {
		t.Fatal(err)
	}
	if info.Component != "CHILD" || len(info.Vars) != 1 || info.Vars[0].Size != 4 {
		t.Errorf("unexpected info %+v", info)
	}
}

func TestApplyShoreline(t *testing.T) {
	f, c := square()
	s := New(f)

	if err := s.ApplyShoreline(elevation, c, 0.5, 100); err != nil {
		t.Fatal(err)
	}

	want := []float64{-90, -80, 130, 140}
	if got := f.Vars[elevation].Values; !slices.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if f.Count("set_value") != 1 {
		t.Errorf("expected one set_value, got %d", f.Count("set_value"))
	}
}

func TestApplyShoreline_Mismatch(t *testing.T) {
	f, _ := square()
	err := New(f).ApplyShoreline(elevation, &coords.Cache{X: []float64{0}, Y: []float64{0}}, 0.5, 100)
	if !errors.Is(err, bmi.ErrGridMismatch) {
		t.Errorf("expected ErrGridMismatch, got %v", err)
	}
	if f.Count("set_value") != 0 {
		t.Error("no values should be written on mismatch")
	}
}

func TestApplyShoreline_NegativeGridSize(t *testing.T) {
	f, c := square()
	f.Grids[0].Size = -1

	err := New(f).ApplyShoreline(elevation, c, 0.5, 100)
	if !errors.Is(err, bmi.ErrGridMismatch) {
		t.Errorf("expected ErrGridMismatch, got %v", err)
	}
	if f.Count("get_value") != 0 || f.Count("set_value") != 0 {
		t.Errorf("no values should be read or written, calls: %v", f.Calls)
	}
}

func TestAdvance(t *testing.T) {
	f, _ := square()
	s := New(f)

	var times []float64
	err := s.Advance(context.Background(), 25, 10, func(now float64, values []float64) error {
		times = append(times, now)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	if !slices.Equal(times, []float64{10, 20, 25}) {
		t.Errorf("unexpected observation times %v", times)
	}
	if f.Count("update_until") != 3 {
		t.Errorf("expected 3 updates, got %d", f.Count("update_until"))
	}

	m := s.Metrics()
	if m["mean"] != 50 {
		t.Errorf("expected mean 50 after advancing 25, got %v", m["mean"])
	}
	if m["max_change"] != 10 {
		t.Errorf("expected max change 10, got %v", m["max_change"])
	}
}

func TestAdvance_ModelStep(t *testing.T) {
	f, _ := square()
	f.Step = 4

	if err := New(f).Advance(context.Background(), 10, 0, nil); err != nil {
		t.Fatal(err)
	}
	if f.Count("update_until") != 3 || f.Time != 10 {
		t.Errorf("expected 3 updates ending at 10, got %d ending at %v", f.Count("update_until"), f.Time)
	}

	f.Step = 0
	f.Time = 0
	if err := New(f).Advance(context.Background(), 10, 0, nil); !errors.Is(err, ErrInvalidStep) {
		t.Errorf("expected ErrInvalidStep, got %v", err)
	}
}

func TestAdvance_Canceled(t *testing.T) {
	f, _ := square()
	ctx, cancel := context.WithCancel(context.Background())

	err := New(f).Advance(ctx, 100, 1, func(now float64, values []float64) error {
		if now >= 3 {
			cancel()
		}
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if f.Time != 3 {
		t.Errorf("expected to stop at 3, got %v", f.Time)
	}
}

func TestSnapshot_Store(t *testing.T) {
	f, c := square()
	st := storage.New(t.TempDir())
	s := New(f, WithStore(st))

	snap, err := s.Snapshot(elevation, c, render.Style{Width: 320, Height: 240})
	if err != nil {
		t.Fatal(err)
	}
	if snap.ID == "" {
		t.Fatal("expected snapshot id with a store attached")
	}

	meta, err := st.Load(snap.ID)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Component != "CHILD" || meta.Units != "m" || meta.Faces != 2 || meta.Nodes != 4 {
		t.Errorf("unexpected metadata %+v", meta)
	}
	if _, err := os.Stat(filepath.Join(st.Dir(snap.ID), meta.Image)); err != nil {
		t.Errorf("snapshot image missing: %v", err)
	}

	values, err := st.LoadValues(snap.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(values, []float64{10, 20, 30, 40}) {
		t.Errorf("unexpected stored values %v", values)
	}
}

func TestRunScenario(t *testing.T) {
	cfg := landscape.DefaultConfig()
	cfg.Width, cfg.Height, cfg.Spacing = 4000, 6000, 1000
	cfgPath := filepath.Join(t.TempDir(), "landscape.yaml")
	if err := cfg.Save(cfgPath); err != nil {
		t.Fatal(err)
	}

	m := landscape.New()
	s := New(m, WithLogger(zaptest.NewLogger(t)))
	if err := s.Open(cfgPath); err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	c, err := coords.FromModel(m, elevation)
	if err != nil {
		t.Fatal(err)
	}

	out := t.TempDir()
	style := render.Style{EdgeColor: "k", ValueMin: render.Bound(-200), ValueMax: render.Bound(200), ColorMap: "BrBG_r"}
	paths, err := s.RunScenario(context.Background(), elevation, c, style,
		Scenario{YShore: 3000, Offset: 100, Until: 500, Step: 100}, out)
	if err != nil {
		t.Fatal(err)
	}

	if len(paths) != 3 {
		t.Fatalf("expected 3 images, got %v", paths)
	}
	for i, name := range []string{GridImage, InitialImage, FinalImage} {
		if filepath.Base(paths[i]) != name {
			t.Errorf("image %d: expected %s, got %s", i, name, paths[i])
		}
		if _, err := os.Stat(paths[i]); err != nil {
			t.Errorf("%s not written: %v", name, err)
		}
	}

	if now, _ := m.GetCurrentTime(); now != 500 {
		t.Errorf("expected model time 500, got %v", now)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	if !slices.Equal(r.ListBackends(), []string{"http", "landscape"}) {
		t.Errorf("unexpected backends %v", r.ListBackends())
	}
	if _, err := r.GetBackend("docker", BackendOptions{}); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := r.GetBackend("http", BackendOptions{}); err == nil {
		t.Error("expected error for http backend without address")
	}

	m, err := r.GetBackend("landscape", BackendOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := m.(*landscape.Model); !ok {
		t.Errorf("expected landscape model, got %T", m)
	}
}

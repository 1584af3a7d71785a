// Package session drives a model handle through a viewing workflow: start
// it, render snapshots, edit its state, advance time and shut it down.
//
// The session owns the handle it is given. Nothing here is global, so
// several sessions may run side by side on different handles.
package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/san-kum/bmiview/internal/bmi"
	"github.com/san-kum/bmiview/internal/coords"
	"github.com/san-kum/bmiview/internal/export"
	"github.com/san-kum/bmiview/internal/metrics"
	"github.com/san-kum/bmiview/internal/render"
	"github.com/san-kum/bmiview/internal/storage"
)

// DefaultVariable is the variable metrics follow unless WithVariable says
// otherwise.
const DefaultVariable = "land_surface__elevation"

var ErrInvalidStep = errors.New("session: time step must be positive")

type Session struct {
	model    bmi.BMI
	renderer *render.Renderer
	store    *storage.Store
	logger   *zap.Logger
	metrics  []metrics.Metric
	variable string
}

type Option func(*Session)

func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithStore makes Snapshot persist every rendered image.
func WithStore(st *storage.Store) Option {
	return func(s *Session) {
		s.store = st
	}
}

func WithMetrics(ms ...metrics.Metric) Option {
	return func(s *Session) {
		s.metrics = ms
	}
}

func WithVariable(name string) Option {
	return func(s *Session) {
		s.variable = name
	}
}

func New(model bmi.BMI, opts ...Option) *Session {
	s := &Session{
		model:    model,
		logger:   zap.NewNop(),
		metrics:  metrics.Defaults(),
		variable: DefaultVariable,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.renderer = render.New(render.WithLogger(s.logger))
	return s
}

func (s *Session) Model() bmi.BMI { return s.model }

// Open initializes the model with its configuration file.
func (s *Session) Open(configPath string) error {
	if err := s.model.Initialize(configPath); err != nil {
		return fmt.Errorf("initialize %q: %w", configPath, err)
	}
	name, _ := s.model.GetComponentName()
	s.logger.Info("model initialized", zap.String("component", name), zap.String("config", configPath))
	return nil
}

func (s *Session) Info() (*bmi.Info, error) {
	return bmi.Describe(s.model)
}

func (s *Session) Close() error {
	if err := s.model.Finalize(); err != nil {
		return fmt.Errorf("finalize: %w", err)
	}
	s.logger.Info("model finalized")
	return nil
}

func (s *Session) Render(name string, c *coords.Cache, style render.Style) (*render.RenderedImage, error) {
	return s.renderer.Render(s.model, name, c.X, c.Y, style)
}

// Snapshot is one rendered view of the model at a point in model time.
type Snapshot struct {
	ID        string
	ModelTime float64
	Image     *render.RenderedImage
}

// Snapshot renders name and, with a store attached, saves its values, the
// current metrics and a PNG of the image.
func (s *Session) Snapshot(name string, c *coords.Cache, style render.Style) (*Snapshot, error) {
	img, err := s.Render(name, c, style)
	if err != nil {
		return nil, err
	}
	now, err := s.model.GetCurrentTime()
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{ModelTime: now, Image: img}
	if s.store == nil {
		return snap, nil
	}

	component, _ := s.model.GetComponentName()
	timeUnits, _ := s.model.GetTimeUnits()
	meta := storage.SnapshotMeta{
		Component: component,
		Variable:  img.Variable,
		Units:     img.Units,
		ModelTime: now,
		TimeUnits: timeUnits,
		Faces:     len(img.Mesh.Faces),
		Min:       img.Min,
		Max:       img.Max,
		Metrics:   s.Metrics(),
	}
	id, err := s.store.Save(meta, img.Values)
	if err != nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}
	stored, err := s.store.Load(id)
	if err != nil {
		return nil, err
	}

	stored.Image = "image.png"
	if err := export.WritePNG(filepath.Join(s.store.Dir(id), stored.Image), img.Image); err != nil {
		return nil, fmt.Errorf("save snapshot image: %w", err)
	}
	if err := s.store.Update(*stored); err != nil {
		return nil, err
	}

	snap.ID = id
	s.logger.Debug("snapshot saved", zap.String("id", id), zap.Float64("time", now))
	return snap, nil
}

// ApplyShoreline lowers name by offset on nodes south of yShore and raises it
// by offset everywhere else, then writes the field back.
func (s *Session) ApplyShoreline(name string, c *coords.Cache, yShore, offset float64) error {
	values, err := s.read(name)
	if err != nil {
		return err
	}
	if c.Len() != len(values) || len(c.Y) != len(values) {
		return &bmi.GridMismatchError{Want: len(values), GotX: len(c.X), GotY: len(c.Y)}
	}

	for i, y := range c.Y {
		if y < yShore {
			values[i] -= offset
		} else {
			values[i] += offset
		}
	}

	if err := s.model.SetValue(name, values); err != nil {
		return fmt.Errorf("set %s: %w", name, err)
	}
	s.logger.Info("shoreline applied", zap.Float64("y_shore", yShore), zap.Float64("offset", offset))
	return nil
}

// Advance moves the model to until in increments of step, observing the
// tracked variable after every increment. A non-positive step uses the
// model's own time step. observe may be nil; an error from it stops the run.
func (s *Session) Advance(ctx context.Context, until, step float64, observe func(t float64, values []float64) error) error {
	now, err := s.model.GetCurrentTime()
	if err != nil {
		return err
	}
	if step <= 0 {
		if step, err = s.model.GetTimeStep(); err != nil {
			return err
		}
		if step <= 0 {
			return ErrInvalidStep
		}
	}

	for now < until {
		if err := ctx.Err(); err != nil {
			return err
		}

		next := math.Min(now+step, until)
		if err := s.model.UpdateUntil(next); err != nil {
			return fmt.Errorf("update until %g: %w", next, err)
		}
		if now, err = s.model.GetCurrentTime(); err != nil {
			return err
		}
		if now < next {
			return fmt.Errorf("model stopped at %g before %g", now, next)
		}

		values, err := s.read(s.variable)
		if err != nil {
			return err
		}
		for _, m := range s.metrics {
			m.Observe(values, now)
		}
		if observe != nil {
			if err := observe(now, values); err != nil {
				return err
			}
		}
	}
	return nil
}

// Metrics returns the current value of every tracked metric.
func (s *Session) Metrics() map[string]float64 {
	return metrics.Snapshot(s.metrics)
}

func (s *Session) read(name string) ([]float64, error) {
	gid, err := s.model.GetVarGrid(name)
	if err != nil {
		return nil, err
	}
	size, err := s.model.GetGridSize(gid)
	if err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, &bmi.GridMismatchError{Want: size}
	}
	values := make([]float64, size)
	if err := s.model.GetValue(name, values); err != nil {
		return nil, err
	}
	return values, nil
}

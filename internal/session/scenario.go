package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/san-kum/bmiview/internal/coords"
	"github.com/san-kum/bmiview/internal/export"
	"github.com/san-kum/bmiview/internal/render"
)

// Scenario is the shoreline experiment: view the initial grid, split the
// domain into sea and land at YShore, run to Until and view the result.
type Scenario struct {
	YShore float64
	Offset float64
	Until  float64
	Step   float64
}

// Image names written by RunScenario, in order.
const (
	GridImage    = "view_grid.png"
	InitialImage = "initial_elevation.png"
	FinalImage   = "final_elevation.png"
)

// RunScenario renders name three times into outDir and returns the paths
// written. Each view is also a Snapshot, so a store attached to the session
// keeps them as well.
func (s *Session) RunScenario(ctx context.Context, name string, c *coords.Cache, style render.Style, sc Scenario, outDir string) ([]string, error) {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, err
	}

	var written []string
	view := func(file string) error {
		snap, err := s.Snapshot(name, c, style)
		if err != nil {
			return fmt.Errorf("%s: %w", file, err)
		}
		path := filepath.Join(outDir, file)
		if err := export.Write(path, snap.Image, export.Options{EdgeColor: style.EdgeColor}); err != nil {
			return err
		}
		written = append(written, path)
		s.logger.Info("image written", zap.String("path", path), zap.Float64("time", snap.ModelTime))
		return nil
	}

	if err := view(GridImage); err != nil {
		return written, err
	}
	if err := s.ApplyShoreline(name, c, sc.YShore, sc.Offset); err != nil {
		return written, err
	}
	if err := view(InitialImage); err != nil {
		return written, err
	}
	if err := s.Advance(ctx, sc.Until, sc.Step, nil); err != nil {
		return written, err
	}
	if err := view(FinalImage); err != nil {
		return written, err
	}
	return written, nil
}

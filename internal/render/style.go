package render

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/san-kum/bmiview/internal/colormap"
)

const (
	ShadingFlat    = "flat"
	ShadingGouraud = "gouraud"

	DefaultWidth  = 640
	DefaultHeight = 480
)

var ErrInvalidStyle = errors.New("render: invalid style")

// Style controls how a surface is drawn. Zero values select the defaults:
// no triangle outlines, a colour range taken from the data, the default
// colour map, flat shading and a 640x480 image.
type Style struct {
	EdgeColor string   `yaml:"edge_color" koanf:"edge_color"`
	ValueMin  *float64 `yaml:"vmin,omitempty" koanf:"vmin"`
	ValueMax  *float64 `yaml:"vmax,omitempty" koanf:"vmax"`
	ColorMap  string   `yaml:"cmap" koanf:"cmap"`
	Shading   string   `yaml:"shading" koanf:"shading"`
	Width     int      `yaml:"width" koanf:"width"`
	Height    int      `yaml:"height" koanf:"height"`
	XLabel    string   `yaml:"xlabel" koanf:"xlabel"`
	YLabel    string   `yaml:"ylabel" koanf:"ylabel"`
}

// Bound returns a pointer to v, for ValueMin and ValueMax.
func Bound(v float64) *float64 { return &v }

// resolved is a Style with defaults applied and colours parsed.
type resolved struct {
	edge     color.RGBA
	hasEdge  bool
	cmap     *colormap.Map
	shading  string
	width    int
	height   int
	xlabel   string
	ylabel   string
	min, max *float64
}

func (s Style) resolve() (*resolved, error) {
	r := &resolved{
		shading: s.Shading,
		width:   s.Width,
		height:  s.Height,
		xlabel:  s.XLabel,
		ylabel:  s.YLabel,
		min:     s.ValueMin,
		max:     s.ValueMax,
	}

	var err error
	if r.edge, r.hasEdge, err = colormap.ParseColor(s.EdgeColor); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStyle, err)
	}
	if r.cmap, err = colormap.Lookup(s.ColorMap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStyle, err)
	}

	switch r.shading {
	case "":
		r.shading = ShadingFlat
	case ShadingFlat, ShadingGouraud:
	default:
		return nil, fmt.Errorf("%w: unknown shading %q", ErrInvalidStyle, s.Shading)
	}

	if r.width == 0 {
		r.width = DefaultWidth
	}
	if r.height == 0 {
		r.height = DefaultHeight
	}
	if r.width < minWidth || r.height < minHeight {
		return nil, fmt.Errorf("%w: image %dx%d smaller than %dx%d", ErrInvalidStyle, r.width, r.height, minWidth, minHeight)
	}
	if r.xlabel == "" {
		r.xlabel = "x (m)"
	}
	if r.ylabel == "" {
		r.ylabel = "y (m)"
	}
	if r.min != nil && r.max != nil && *r.min > *r.max {
		return nil, fmt.Errorf("%w: vmin %g greater than vmax %g", ErrInvalidStyle, *r.min, *r.max)
	}
	return r, nil
}

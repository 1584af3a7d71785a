// Package colormap provides named colour gradients for scalar fields.
package colormap

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"sort"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Default is used when no colour map is named.
const Default = "viridis"

var ErrUnknownMap = errors.New("colormap: unknown color map")

// Map is a gradient through anchor colours, blended in CIE-Lab.
type Map struct {
	Name  string
	stops []colorful.Color
}

var anchors = map[string][]string{
	"viridis":  {"#440154", "#482878", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"},
	"gray":     {"#000000", "#ffffff"},
	"BrBG":     {"#543005", "#8c510a", "#bf812d", "#dfc27d", "#f6e8c3", "#f5f5f5", "#c7eae5", "#80cdc1", "#35978f", "#01665e", "#003c30"},
	"terrain":  {"#333399", "#0294fa", "#01cc66", "#80e680", "#fefe98", "#b39e73", "#80605b", "#ffffff"},
	"coolwarm": {"#3b4cc0", "#7396f5", "#b0cbfc", "#dddddd", "#f6bfa6", "#e6755a", "#b40426"},
	"RdBu":     {"#67001f", "#b2182b", "#d6604d", "#f4a582", "#fddbc7", "#f7f7f7", "#d1e5f0", "#92c5de", "#4393c3", "#2166ac", "#053061"},
}

// Lookup returns the map called name. A "_r" suffix reverses a map.
// An empty name selects Default.
func Lookup(name string) (*Map, error) {
	if name == "" {
		name = Default
	}
	base, reversed := strings.CutSuffix(name, "_r")
	hexes, ok := anchors[base]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMap, name)
	}

	stops := make([]colorful.Color, len(hexes))
	for i, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			return nil, err
		}
		stops[i] = c
	}
	if reversed {
		for i, j := 0, len(stops)-1; i < j; i, j = i+1, j-1 {
			stops[i], stops[j] = stops[j], stops[i]
		}
	}
	return &Map{Name: name, stops: stops}, nil
}

// Names lists every base map, sorted. Each also exists with a "_r" suffix.
func Names() []string {
	names := make([]string, 0, len(anchors))
	for n := range anchors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// At returns the colour at position t, clamped to [0, 1]. NaN maps to the
// lowest colour.
func (m *Map) At(t float64) color.RGBA {
	if math.IsNaN(t) || t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	seg := t * float64(len(m.stops)-1)
	i := int(seg)
	if i >= len(m.stops)-1 {
		return toRGBA(m.stops[len(m.stops)-1])
	}
	frac := seg - float64(i)
	if frac == 0 {
		return toRGBA(m.stops[i])
	}
	return toRGBA(m.stops[i].BlendLab(m.stops[i+1], frac).Clamped())
}

// Value maps v in [lo, hi] onto the gradient.
func (m *Map) Value(v, lo, hi float64) color.RGBA {
	return m.At(Normalize(v, lo, hi))
}

// Normalize maps v from [lo, hi] to [0, 1]. A degenerate range maps to 0.5.
func Normalize(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0.5
	}
	return (v - lo) / (hi - lo)
}

func toRGBA(c colorful.Color) color.RGBA {
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

var shortColors = map[string]string{
	"k": "#000000",
	"w": "#ffffff",
	"r": "#ff0000",
	"g": "#008000",
	"b": "#0000ff",
	"c": "#00bfbf",
	"m": "#bf00bf",
	"y": "#bfbf00",
}

// ParseColor reads a single-letter code (k, w, r, g, b, c, m, y), a "#rrggbb"
// hex string, or "none". ok is false when no colour was requested.
func ParseColor(s string) (c color.RGBA, ok bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") {
		return color.RGBA{}, false, nil
	}
	if hex, found := shortColors[s]; found {
		s = hex
	}
	cc, err := colorful.Hex(s)
	if err != nil {
		return color.RGBA{}, false, fmt.Errorf("colormap: invalid color %q: %w", s, err)
	}
	return toRGBA(cc), true, nil
}

package config

import (
	"sort"

	"github.com/san-kum/bmiview/internal/render"
)

// Presets are named styles for common views.
var Presets = map[string]render.Style{
	// elevation matches the usual sea/land view: brown land, blue-green sea,
	// a symmetric range around sea level and black triangle outlines.
	"elevation": {
		EdgeColor: "k",
		ValueMin:  render.Bound(-200),
		ValueMax:  render.Bound(200),
		ColorMap:  "BrBG_r",
		Shading:   render.ShadingFlat,
	},
	"diverging": {
		ColorMap: "RdBu_r",
		Shading:  render.ShadingGouraud,
	},
	"plain": {
		ColorMap: "gray",
		Shading:  render.ShadingFlat,
	},
	"terrain": {
		EdgeColor: "w",
		ColorMap:  "terrain",
		Shading:   render.ShadingGouraud,
	},
}

func GetPreset(name string) (render.Style, bool) {
	s, ok := Presets[name]
	return s, ok
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

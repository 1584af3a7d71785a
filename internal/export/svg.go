package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/bmiview/internal/colormap"
	"github.com/san-kum/bmiview/internal/mesh"
	"github.com/san-kum/bmiview/internal/render"
)

// SurfaceToSVG draws the faces of a rendered surface as filled polygons,
// coloured by the mean node value with the image's colour map and range.
// edge is a colour accepted by colormap.ParseColor.
func SurfaceToSVG(r *render.RenderedImage, width, height int, edge string) (string, error) {
	if r == nil || r.Surface == nil || len(r.Mesh.Faces) == 0 {
		return "", ErrEmpty
	}
	cmap, err := colormap.Lookup(r.ColorMap)
	if err != nil {
		return "", err
	}
	edgeColor, hasEdge, err := colormap.ParseColor(edge)
	if err != nil {
		return "", err
	}

	minX, minY, maxX, maxY := r.Mesh.Bounds()

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	scale := math.Min(float64(width)/rangeX, float64(height)/rangeY)
	offX := (float64(width) - rangeX*scale) / 2
	offY := (float64(height) - rangeY*scale) / 2

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<title>%s</title>
<rect width="100%%" height="100%%" fill="#ffffff"/>
`, width, height, width, height, escape(r.Label)))

	stroke := `stroke="none"`
	if hasEdge {
		stroke = fmt.Sprintf(`stroke="#%02x%02x%02x" stroke-width="0.5"`, edgeColor.R, edgeColor.G, edgeColor.B)
	}
	sb.WriteString(fmt.Sprintf("<g %s>\n", stroke))

	for _, f := range r.Mesh.Faces {
		c := cmap.Value(mesh.FaceMean(r.Values, f), r.Min, r.Max)
		sb.WriteString(`<polygon points="`)
		for i, n := range f {
			x := offX + (r.Mesh.X[n]-minX)*scale
			y := float64(height) - offY - (r.Mesh.Y[n]-minY)*scale
			if i > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
		}
		sb.WriteString(fmt.Sprintf(`" fill="#%02x%02x%02x"/>`+"\n", c.R, c.G, c.B))
	}

	sb.WriteString("</g>\n</svg>")
	return sb.String(), nil
}

func escape(s string) string {
	return strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(s)
}

package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/san-kum/bmiview/internal/colormap"
	"github.com/san-kum/bmiview/internal/mesh"
)

const (
	marginLeft   = 64
	marginRight  = 120
	marginTop    = 16
	marginBottom = 44

	barGap   = 16
	barWidth = 16

	minWidth  = marginLeft + marginRight + 32
	minHeight = marginTop + marginBottom + 32
)

var (
	background = color.RGBA{255, 255, 255, 255}
	ink        = color.RGBA{0, 0, 0, 255}
	frame      = color.RGBA{96, 96, 96, 255}
)

// plotArea maps mesh coordinates into pixels with equal aspect, centred.
type plotArea struct {
	rect       image.Rectangle
	minX, minY float64
	maxX, maxY float64
	scale      float64
	offX, offY float64
}

func newPlotArea(m *mesh.TriMesh, rect image.Rectangle) plotArea {
	minX, minY, maxX, maxY := m.Bounds()
	dx, dy := maxX-minX, maxY-minY
	if dx == 0 {
		dx = 1
	}
	if dy == 0 {
		dy = 1
	}
	w, h := float64(rect.Dx()), float64(rect.Dy())
	scale := math.Min(w/dx, h/dy)
	return plotArea{
		rect:  rect,
		minX:  minX,
		minY:  minY,
		maxX:  minX + dx,
		maxY:  minY + dy,
		scale: scale,
		offX:  (w - dx*scale) / 2,
		offY:  (h - dy*scale) / 2,
	}
}

// project returns pixel coordinates; y grows downwards in the image.
func (p plotArea) project(x, y float64) (float64, float64) {
	px := float64(p.rect.Min.X) + p.offX + (x-p.minX)*p.scale
	py := float64(p.rect.Max.Y) - p.offY - (y-p.minY)*p.scale
	return px, py
}

func rasterize(s *Surface, st *resolved, lo, hi float64, label string) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, st.width, st.height))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	plot := image.Rect(marginLeft, marginTop, st.width-marginRight, st.height-marginBottom)
	area := newPlotArea(s.Mesh, plot)

	for _, f := range s.Mesh.Faces {
		fillFace(img, area, s, f, st, lo, hi)
	}
	if st.hasEdge {
		for _, e := range s.Mesh.Edges() {
			x0, y0 := area.project(s.Mesh.X[e.A], s.Mesh.Y[e.A])
			x1, y1 := area.project(s.Mesh.X[e.B], s.Mesh.Y[e.B])
			// A bounding box wider than MaxFloat64 projects to NaN.
			if !finite(x0, y0, x1, y1) {
				continue
			}
			drawLine(img, plot, round(x0), round(y0), round(x1), round(y1), st.edge)
		}
	}

	drawAxes(img, area, st)
	drawColorBar(img, plot, st.cmap, lo, hi, label)
	return img
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func fillFace(img *image.RGBA, area plotArea, s *Surface, f mesh.Face, st *resolved, lo, hi float64) {
	var px, py, v [3]float64
	for i, n := range f {
		px[i], py[i] = area.project(s.Mesh.X[n], s.Mesh.Y[n])
		v[i] = s.Values[n]
	}

	det := (py[1]-py[2])*(px[0]-px[2]) + (px[2]-px[1])*(py[0]-py[2])
	if det == 0 || !finite(det) {
		return
	}

	flat := st.cmap.Value(mesh.FaceMean(s.Values, f), lo, hi)

	bounds := area.rect.Intersect(image.Rect(
		int(math.Floor(min3(px))), int(math.Floor(min3(py))),
		int(math.Ceil(max3(px)))+1, int(math.Ceil(max3(py)))+1,
	))

	const eps = -1e-9
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		cy := float64(y) + 0.5
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			cx := float64(x) + 0.5
			w0 := ((py[1]-py[2])*(cx-px[2]) + (px[2]-px[1])*(cy-py[2])) / det
			w1 := ((py[2]-py[0])*(cx-px[2]) + (px[0]-px[2])*(cy-py[2])) / det
			w2 := 1 - w0 - w1
			if w0 < eps || w1 < eps || w2 < eps {
				continue
			}
			if st.shading == ShadingGouraud {
				img.SetRGBA(x, y, st.cmap.Value(w0*v[0]+w1*v[1]+w2*v[2], lo, hi))
			} else {
				img.SetRGBA(x, y, flat)
			}
		}
	}
}

// drawLine draws with Bresenham's algorithm, clipped to clip.
func drawLine(img *image.RGBA, clip image.Rectangle, x0, y0, x1, y1 int, c color.RGBA) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy

	for {
		if (image.Point{x0, y0}).In(clip) {
			img.SetRGBA(x0, y0, c)
		}
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func drawRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	full := img.Bounds()
	drawLine(img, full, r.Min.X, r.Min.Y, r.Max.X, r.Min.Y, c)
	drawLine(img, full, r.Max.X, r.Min.Y, r.Max.X, r.Max.Y, c)
	drawLine(img, full, r.Max.X, r.Max.Y, r.Min.X, r.Max.Y, c)
	drawLine(img, full, r.Min.X, r.Max.Y, r.Min.X, r.Min.Y, c)
}

func drawAxes(img *image.RGBA, area plotArea, st *resolved) {
	x0, y0 := area.project(area.minX, area.minY)
	x1, y1 := area.project(area.maxX, area.maxY)
	box := image.Rect(round(x0)-1, round(y1)-1, round(x1)+1, round(y0)+1)
	drawRect(img, box, frame)

	face := basicfont.Face7x13
	lineH := face.Metrics().Height.Ceil()

	// x ticks at both ends of the extent, below the frame
	drawText(img, tickLabel(area.minX), box.Min.X, box.Max.Y+lineH)
	right := tickLabel(area.maxX)
	drawText(img, right, box.Max.X-textWidth(right), box.Max.Y+lineH)
	drawText(img, st.xlabel, (box.Min.X+box.Max.X-textWidth(st.xlabel))/2, box.Max.Y+2*lineH+4)

	// y ticks left of the frame
	bottom := tickLabel(area.minY)
	drawText(img, bottom, box.Min.X-textWidth(bottom)-4, box.Max.Y)
	top := tickLabel(area.maxY)
	drawText(img, top, box.Min.X-textWidth(top)-4, box.Min.Y+lineH)
	drawVerticalText(img, st.ylabel, 2, (box.Min.Y+box.Max.Y+textWidth(st.ylabel))/2)
}

func drawColorBar(img *image.RGBA, plot image.Rectangle, cmap *colormap.Map, lo, hi float64, label string) {
	bar := image.Rect(plot.Max.X+barGap, plot.Min.Y, plot.Max.X+barGap+barWidth, plot.Max.Y)
	n := bar.Dy()
	for row := 0; row < n; row++ {
		t := 1.0
		if n > 1 {
			t = 1 - float64(row)/float64(n-1)
		}
		c := cmap.At(t)
		for x := bar.Min.X; x < bar.Max.X; x++ {
			img.SetRGBA(x, bar.Min.Y+row, c)
		}
	}
	drawRect(img, bar, frame)

	lineH := basicfont.Face7x13.Metrics().Height.Ceil()
	tx := bar.Max.X + 4
	drawText(img, tickLabel(hi), tx, bar.Min.Y+lineH/2)
	drawText(img, tickLabel((lo+hi)/2), tx, (bar.Min.Y+bar.Max.Y)/2+lineH/2)
	drawText(img, tickLabel(lo), tx, bar.Max.Y)

	// caption runs bottom-to-top along the right edge
	drawVerticalText(img, label, img.Bounds().Max.X-lineH-2, (bar.Min.Y+bar.Max.Y+textWidth(label))/2)
}

func tickLabel(v float64) string {
	return fmt.Sprintf("%.4g", v)
}

func textWidth(s string) int {
	return font.MeasureString(basicfont.Face7x13, s).Ceil()
}

// drawText draws s with its baseline at y.
func drawText(img *image.RGBA, s string, x, y int) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(ink),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// drawVerticalText draws s rotated 90 degrees counter-clockwise, starting at
// (x, y) and running upwards.
func drawVerticalText(img *image.RGBA, s string, x, y int) {
	face := basicfont.Face7x13
	w := textWidth(s)
	h := face.Metrics().Height.Ceil()
	if w == 0 {
		return
	}
	tmp := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(tmp, tmp.Bounds(), image.Transparent, image.Point{}, draw.Src)
	d := &font.Drawer{
		Dst:  tmp,
		Src:  image.NewUniform(ink),
		Face: face,
		Dot:  fixed.P(0, face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(s)

	bounds := img.Bounds()
	for ty := 0; ty < h; ty++ {
		for tx := 0; tx < w; tx++ {
			c := tmp.RGBAAt(tx, ty)
			if c.A == 0 {
				continue
			}
			p := image.Point{X: x + ty, Y: y - tx}
			if p.In(bounds) {
				img.SetRGBA(p.X, p.Y, c)
			}
		}
	}
}

func min3(v [3]float64) float64 { return math.Min(v[0], math.Min(v[1], v[2])) }
func max3(v [3]float64) float64 { return math.Max(v[0], math.Max(v[1], v[2])) }

func round(v float64) int { return int(math.Round(v)) }

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

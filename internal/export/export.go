// Package export persists rendered images. Rendering itself never touches the
// filesystem; these helpers are the thin I/O layer callers use.
package export

import (
	"errors"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/san-kum/bmiview/internal/render"
)

var (
	ErrEmpty             = errors.New("export: nothing to export")
	ErrUnsupportedFormat = errors.New("export: unsupported image format")
)

// Options tunes Write for formats that need more than the raster.
type Options struct {
	// EdgeColor outlines triangles in SVG output.
	EdgeColor string
}

// Write stores r at path, choosing the format from the extension:
// .png for the raster, .svg for a vector rendition of the faces.
func Write(path string, r *render.RenderedImage, opts Options) error {
	if r == nil || r.Image == nil {
		return ErrEmpty
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return WritePNG(path, r.Image)
	case ".svg":
		b := r.Image.Bounds()
		svg, err := SurfaceToSVG(r, b.Dx(), b.Dy(), opts.EdgeColor)
		if err != nil {
			return err
		}
		return os.WriteFile(path, []byte(svg), 0644)
	case ".gif":
		return WriteGIF(path, []*render.RenderedImage{r}, 0)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

func EncodePNG(w io.Writer, img image.Image) error {
	return png.Encode(w, img)
}

func WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := EncodePNG(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteGIF stores frames as an animation, delay in 100ths of a second.
func WriteGIF(path string, frames []*render.RenderedImage, delay int) error {
	if len(frames) == 0 {
		return ErrEmpty
	}
	anim := gif.GIF{LoopCount: 0}
	for _, fr := range frames {
		b := fr.Image.Bounds()
		p := image.NewPaletted(b, palette.Plan9)
		draw.FloydSteinberg.Draw(p, b, fr.Image, b.Min)
		anim.Image = append(anim.Image, p)
		anim.Delay = append(anim.Delay, delay)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gif.EncodeAll(f, &anim); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

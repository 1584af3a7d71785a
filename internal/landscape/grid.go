package landscape

import (
	"math"
	"math/rand/v2"

	"github.com/san-kum/bmiview/internal/mesh"
)

// buildGrid lays nodes on a jittered lattice and splits every cell into two
// triangles, alternating the diagonal. Boundary nodes stay on the lattice so
// the base level row keeps y = 0.
func buildGrid(cfg Config, rng *rand.Rand) (*mesh.TriMesh, []bool, error) {
	nx := int(math.Round(cfg.Width/cfg.Spacing)) + 1
	ny := int(math.Round(cfg.Height/cfg.Spacing)) + 1
	dx := cfg.Width / float64(nx-1)
	dy := cfg.Height / float64(ny-1)

	n := nx * ny
	x := make([]float64, n)
	y := make([]float64, n)
	fixed := make([]bool, n)

	idx := func(i, j int) int { return j*nx + i }

	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			k := idx(i, j)
			x[k] = float64(i) * dx
			y[k] = float64(j) * dy
			if i > 0 && i < nx-1 && j > 0 && j < ny-1 && cfg.Jitter > 0 {
				x[k] += (2*rng.Float64() - 1) * cfg.Jitter * dx
				y[k] += (2*rng.Float64() - 1) * cfg.Jitter * dy
			}
			fixed[k] = j == 0
		}
	}

	faces := make([]mesh.Face, 0, 2*(nx-1)*(ny-1))
	for j := 0; j < ny-1; j++ {
		for i := 0; i < nx-1; i++ {
			a, b := idx(i, j), idx(i+1, j)
			c, d := idx(i, j+1), idx(i+1, j+1)
			if (i+j)%2 == 0 {
				faces = append(faces, mesh.Face{a, b, d}, mesh.Face{a, d, c})
			} else {
				faces = append(faces, mesh.Face{a, b, c}, mesh.Face{b, d, c})
			}
		}
	}

	m, err := mesh.New(x, y, faces)
	if err != nil {
		return nil, nil, err
	}
	return m, fixed, nil
}

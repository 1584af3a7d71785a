// Package mesh holds triangle connectivity over a set of 2D nodes.
package mesh

import (
	"fmt"
	"math"
	"sort"

	"github.com/san-kum/bmiview/internal/bmi"
)

// Face is a triangle given as three node indices.
type Face [3]int

// TriMesh is a set of nodes with triangle faces defined over them.
type TriMesh struct {
	X, Y  []float64
	Faces []Face
}

// Edge is an undirected edge with A < B.
type Edge struct {
	A, B int
}

// Reshape turns a flat connectivity buffer into triangles. Consecutive runs
// of three indices form one face.
func Reshape(flat []int) ([]Face, error) {
	if len(flat)%3 != 0 {
		return nil, &bmi.MalformedConnectivityError{
			Length: len(flat),
			Reason: "length is not a multiple of 3",
		}
	}
	faces := make([]Face, len(flat)/3)
	for i := range faces {
		faces[i] = Face{flat[3*i], flat[3*i+1], flat[3*i+2]}
	}
	return faces, nil
}

// Flatten is the inverse of Reshape.
func Flatten(faces []Face) []int {
	flat := make([]int, 0, 3*len(faces))
	for _, f := range faces {
		flat = append(flat, f[0], f[1], f[2])
	}
	return flat
}

// Validate checks that every index refers to one of nodeCount nodes.
func Validate(faces []Face, nodeCount int) error {
	for i, f := range faces {
		for _, n := range f {
			if n < 0 || n >= nodeCount {
				return &bmi.MalformedConnectivityError{
					Length: 3 * len(faces),
					Reason: fmt.Sprintf("face %d references node %d outside [0, %d)", i, n, nodeCount),
				}
			}
		}
	}
	return nil
}

// CheckFinite returns a *bmi.NonFiniteCoordinateError for the first NaN or
// infinite entry of x or y.
func CheckFinite(x, y []float64) error {
	axes := [...]struct {
		name string
		vs   []float64
	}{{"x", x}, {"y", y}}
	for _, a := range axes {
		for i, v := range a.vs {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return &bmi.NonFiniteCoordinateError{Axis: a.name, Node: i, Value: v}
			}
		}
	}
	return nil
}

// New builds a mesh after checking coordinate lengths, finiteness and face
// indices.
func New(x, y []float64, faces []Face) (*TriMesh, error) {
	if len(x) != len(y) {
		return nil, &bmi.GridMismatchError{Want: len(x), GotX: len(x), GotY: len(y)}
	}
	if err := CheckFinite(x, y); err != nil {
		return nil, err
	}
	if err := Validate(faces, len(x)); err != nil {
		return nil, err
	}
	return &TriMesh{X: x, Y: y, Faces: faces}, nil
}

func (m *TriMesh) NodeCount() int { return len(m.X) }

// Bounds returns the bounding box of all nodes.
func (m *TriMesh) Bounds() (minX, minY, maxX, maxY float64) {
	if len(m.X) == 0 {
		return 0, 0, 0, 0
	}
	minX, maxX = m.X[0], m.X[0]
	minY, maxY = m.Y[0], m.Y[0]
	for i := range m.X {
		minX = math.Min(minX, m.X[i])
		maxX = math.Max(maxX, m.X[i])
		minY = math.Min(minY, m.Y[i])
		maxY = math.Max(maxY, m.Y[i])
	}
	return
}

// Edges returns every unique undirected edge, sorted.
func (m *TriMesh) Edges() []Edge {
	seen := make(map[Edge]struct{}, 3*len(m.Faces))
	for _, f := range m.Faces {
		for i := 0; i < 3; i++ {
			a, b := f[i], f[(i+1)%3]
			if a > b {
				a, b = b, a
			}
			seen[Edge{a, b}] = struct{}{}
		}
	}
	edges := make([]Edge, 0, len(seen))
	for e := range seen {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].A != edges[j].A {
			return edges[i].A < edges[j].A
		}
		return edges[i].B < edges[j].B
	})
	return edges
}

// Neighbors returns the adjacency list of every node.
func (m *TriMesh) Neighbors() [][]int {
	adj := make([][]int, m.NodeCount())
	for _, e := range m.Edges() {
		adj[e.A] = append(adj[e.A], e.B)
		adj[e.B] = append(adj[e.B], e.A)
	}
	return adj
}

// FaceMean is the mean of the node values of face f.
func FaceMean(values []float64, f Face) float64 {
	return (values[f[0]] + values[f[1]] + values[f[2]]) / 3
}

// Area returns the unsigned area of face f.
func (m *TriMesh) Area(f Face) float64 {
	x0, y0 := m.X[f[0]], m.Y[f[0]]
	x1, y1 := m.X[f[1]], m.Y[f[1]]
	x2, y2 := m.X[f[2]], m.Y[f[2]]
	return math.Abs((x1-x0)*(y2-y0)-(x2-x0)*(y1-y0)) / 2
}

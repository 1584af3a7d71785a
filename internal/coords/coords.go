// Package coords loads and stores node coordinates kept beside a model.
//
// Remote handles do not always report node positions reliably, so the x and
// y arrays of a mesh are cached in a file once and handed to the renderer.
package coords

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sbinet/npyio/npz"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/bmiview/internal/bmi"
)

var (
	ErrInvalid       = errors.New("coords: invalid coordinate cache")
	ErrUnknownFormat = errors.New("coords: unknown cache format")
)

// Cache holds one x and one y value per node.
type Cache struct {
	X []float64 `json:"x" yaml:"x"`
	Y []float64 `json:"y" yaml:"y"`
}

func (c *Cache) Len() int { return len(c.X) }

// Validate checks both arrays have the same length and finite values.
func (c *Cache) Validate() error {
	if len(c.X) != len(c.Y) {
		return fmt.Errorf("%w: %d x values, %d y values", ErrInvalid, len(c.X), len(c.Y))
	}
	for i := range c.X {
		if !finite(c.X[i]) || !finite(c.Y[i]) {
			return fmt.Errorf("%w: node %d is not finite", ErrInvalid, i)
		}
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Load reads a cache. The format follows the extension: .json, .yaml/.yml,
// .csv with an "x,y" header, or a NumPy .npz archive holding arrays x and y.
func Load(path string) (*Cache, error) {
	if strings.EqualFold(filepath.Ext(path), ".npz") {
		c, err := loadNPZ(path)
		if err != nil {
			return nil, err
		}
		return c, c.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	c := &Cache{}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, c)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".csv":
		c, err = parseCSV(string(data))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Save writes c in the format implied by the extension of path.
func Save(path string, c *Cache) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(path), ".npz") {
		return saveNPZ(path, c)
	}

	var data []byte
	var err error
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	case ".csv":
		data = []byte(formatCSV(c))
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func loadNPZ(path string) (*Cache, error) {
	r, err := npz.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	defer r.Close()

	c := &Cache{}
	keys := r.Keys()
	if err := r.Read(npzKey(keys, "x"), &c.X); err != nil {
		return nil, fmt.Errorf("%w: array x: %v", ErrInvalid, err)
	}
	if err := r.Read(npzKey(keys, "y"), &c.Y); err != nil {
		return nil, fmt.Errorf("%w: array y: %v", ErrInvalid, err)
	}
	return c, nil
}

// npzKey finds name among the archive members, which numpy stores as
// "name.npy".
func npzKey(keys []string, name string) string {
	for _, k := range keys {
		if k == name || k == name+".npy" {
			return k
		}
	}
	return name + ".npy"
}

func saveNPZ(path string, c *Cache) error {
	w, err := npz.Create(path)
	if err != nil {
		return err
	}
	if err := w.Write("x.npy", c.X); err != nil {
		w.Close()
		return err
	}
	if err := w.Write("y.npy", c.Y); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func parseCSV(s string) (*Cache, error) {
	r := csv.NewReader(strings.NewReader(s))
	r.FieldsPerRecord = 2
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 || records[0][0] != "x" || records[0][1] != "y" {
		return nil, errors.New(`missing "x,y" header`)
	}

	c := &Cache{
		X: make([]float64, 0, len(records)-1),
		Y: make([]float64, 0, len(records)-1),
	}
	for i, rec := range records[1:] {
		x, err := strconv.ParseFloat(rec[0], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		y, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		c.X = append(c.X, x)
		c.Y = append(c.Y, y)
	}
	return c, nil
}

func formatCSV(c *Cache) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	w.Write([]string{"x", "y"})
	for i := range c.X {
		w.Write([]string{
			strconv.FormatFloat(c.X[i], 'g', -1, 64),
			strconv.FormatFloat(c.Y[i], 'g', -1, 64),
		})
	}
	w.Flush()
	return sb.String()
}

// FromModel reads coordinates of the grid carrying variable name straight
// from a handle that implements bmi.NodeCoordinates.
func FromModel(m bmi.Model, name string) (*Cache, error) {
	nc, okCoords := m.(bmi.NodeCoordinates)
	g, okGrid := m.(bmi.GridReader)
	if !okCoords || !okGrid {
		return nil, &bmi.UnsupportedModelError{Missing: []string{"NodeCoordinates"}}
	}

	gid, err := g.GetVarGrid(name)
	if err != nil {
		return nil, err
	}
	size, err := g.GetGridSize(gid)
	if err != nil {
		return nil, err
	}
	if size < 0 {
		return nil, &bmi.GridMismatchError{Want: size}
	}

	c := &Cache{X: make([]float64, size), Y: make([]float64, size)}
	if err := nc.GetGridX(gid, c.X); err != nil {
		return nil, err
	}
	if err := nc.GetGridY(gid, c.Y); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

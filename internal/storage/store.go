// Package storage keeps rendered snapshots on disk, one directory each.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"
)

var ErrNotFound = errors.New("storage: snapshot not found")

const (
	metadataFile = "metadata.json"
	valuesFile   = "values.csv"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// Dir is the directory holding snapshot id. Callers put images there.
func (s *Store) Dir(id string) string {
	return filepath.Join(s.baseDir, id)
}

type SnapshotMeta struct {
	ID        string             `json:"id"`
	Component string             `json:"component"`
	Variable  string             `json:"variable"`
	Units     string             `json:"units"`
	ModelTime float64            `json:"model_time"`
	TimeUnits string             `json:"time_units,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
	Nodes     int                `json:"nodes"`
	Faces     int                `json:"faces"`
	Min       float64            `json:"min"`
	Max       float64            `json:"max"`
	Image     string             `json:"image,omitempty"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
}

var unsafeID = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// Save creates a new snapshot directory holding meta and the node values.
// meta.ID and meta.Timestamp are filled in when empty.
func (s *Store) Save(meta SnapshotMeta, values []float64) (string, error) {
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	if meta.ID == "" {
		base := unsafeID.ReplaceAllString(fmt.Sprintf("%s_t%g_%d", meta.Variable, meta.ModelTime, meta.Timestamp.Unix()), "_")
		id, err := s.claim(base)
		if err != nil {
			return "", err
		}
		meta.ID = id
	} else if err := os.MkdirAll(s.Dir(meta.ID), 0755); err != nil {
		return "", err
	}
	meta.Nodes = len(values)

	if err := s.writeMeta(meta); err != nil {
		return "", err
	}
	if err := s.writeValues(meta.ID, values); err != nil {
		return "", err
	}
	return meta.ID, nil
}

// claim creates a fresh directory named base, or base-N when taken.
func (s *Store) claim(base string) (string, error) {
	if err := s.Init(); err != nil {
		return "", err
	}
	id := base
	for n := 1; ; n++ {
		err := os.Mkdir(s.Dir(id), 0755)
		if err == nil {
			return id, nil
		}
		if !os.IsExist(err) {
			return "", err
		}
		id = fmt.Sprintf("%s-%d", base, n)
	}
}

// Update rewrites the metadata of an existing snapshot.
func (s *Store) Update(meta SnapshotMeta) error {
	if _, err := s.Load(meta.ID); err != nil {
		return err
	}
	return s.writeMeta(meta)
}

func (s *Store) writeMeta(meta SnapshotMeta) error {
	metaFile, err := os.Create(filepath.Join(s.Dir(meta.ID), metadataFile))
	if err != nil {
		return err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func (s *Store) writeValues(id string, values []float64) error {
	csvFile, err := os.Create(filepath.Join(s.Dir(id), valuesFile))
	if err != nil {
		return err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write([]string{"node", "value"}); err != nil {
		return err
	}
	for i, v := range values {
		if err := w.Write([]string{strconv.Itoa(i), strconv.FormatFloat(v, 'g', -1, 64)}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// List returns every readable snapshot, oldest first.
func (s *Store) List() ([]SnapshotMeta, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []SnapshotMeta{}, nil
		}
		return nil, err
	}

	snaps := make([]SnapshotMeta, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		snaps = append(snaps, *meta)
	}

	sort.SliceStable(snaps, func(i, j int) bool {
		if !snaps[i].Timestamp.Equal(snaps[j].Timestamp) {
			return snaps[i].Timestamp.Before(snaps[j].Timestamp)
		}
		return snaps[i].ID < snaps[j].ID
	})
	return snaps, nil
}

func (s *Store) Load(id string) (*SnapshotMeta, error) {
	data, err := os.ReadFile(filepath.Join(s.Dir(id), metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}

	var meta SnapshotMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}

	return &meta, nil
}

func (s *Store) LoadValues(id string) ([]float64, error) {
	file, err := os.Open(filepath.Join(s.Dir(id), valuesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = 2

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []float64{}, nil
	}

	values := make([]float64, 0, len(records)-1)
	for i, record := range records[1:] {
		v, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, fmt.Errorf("storage: %s row %d: %w", id, i+1, err)
		}
		values = append(values, v)
	}
	return values, nil
}

type exportData struct {
	SnapshotMeta
	Values []float64 `json:"values"`
}

// ExportJSON writes a snapshot with its values as one JSON document.
func (s *Store) ExportJSON(w io.Writer, id string) error {
	meta, err := s.Load(id)
	if err != nil {
		return err
	}
	values, err := s.LoadValues(id)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(exportData{SnapshotMeta: *meta, Values: values})
}

package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func TestStoreSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	if err := st.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	meta := SnapshotMeta{
		Component: "CHILD",
		Variable:  "land_surface__elevation",
		Units:     "m",
		ModelTime: 5000,
		Faces:     2,
		Min:       10,
		Max:       40,
		Metrics:   map[string]float64{"relief": 30},
	}
	values := []float64{10, 20, 30, 40.125}

	id, err := st.Save(meta, values)
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if id == "" {
		t.Error("expected non-empty snapshot id")
	}

	got, err := st.Load(id)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if got.Component != "CHILD" || got.Variable != meta.Variable {
		t.Errorf("unexpected metadata %+v", got)
	}
	if got.Nodes != 4 {
		t.Errorf("expected 4 nodes, got %d", got.Nodes)
	}
	if got.Metrics["relief"] != 30 {
		t.Errorf("expected relief 30, got %f", got.Metrics["relief"])
	}

	loaded, err := st.LoadValues(id)
	if err != nil {
		t.Fatalf("load values failed: %v", err)
	}
	if !slices.Equal(loaded, values) {
		t.Errorf("expected %v, got %v", values, loaded)
	}
}

func TestStoreList(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(filepath.Join(tmpDir, "snapshots"))

	snaps, err := st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(snaps) != 0 {
		t.Errorf("expected 0 snapshots, got %d", len(snaps))
	}

	now := time.Now()
	for i := 0; i < 3; i++ {
		meta := SnapshotMeta{Variable: "z", Timestamp: now}
		if _, err := st.Save(meta, []float64{1}); err != nil {
			t.Fatalf("save failed: %v", err)
		}
	}

	snaps, err = st.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(snaps) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(snaps))
	}
	if snaps[0].ID == snaps[1].ID || snaps[1].ID == snaps[2].ID {
		t.Error("snapshots saved in the same second must get distinct ids")
	}
}

func TestStoreFileStructure(t *testing.T) {
	tmpDir := t.TempDir()
	st := New(tmpDir)

	id, err := st.Save(SnapshotMeta{Variable: "land_surface__elevation"}, []float64{1})
	if err != nil {
		t.Fatalf("save failed: %v", err)
	}

	for _, name := range []string{"metadata.json", "values.csv"} {
		if _, err := os.Stat(filepath.Join(tmpDir, id, name)); os.IsNotExist(err) {
			t.Errorf("%s not created", name)
		}
	}
}

func TestStoreNotFound(t *testing.T) {
	st := New(t.TempDir())

	if _, err := st.Load("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := st.LoadValues("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := st.Update(SnapshotMeta{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestExportJSON(t *testing.T) {
	st := New(t.TempDir())
	id, err := st.Save(SnapshotMeta{Variable: "z", Units: "m"}, []float64{1, 2})
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := st.ExportJSON(&buf, id); err != nil {
		t.Fatal(err)
	}

	var doc struct {
		ID     string    `json:"id"`
		Units  string    `json:"units"`
		Values []float64 `json:"values"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if doc.ID != id || doc.Units != "m" || len(doc.Values) != 2 {
		t.Errorf("unexpected export %+v", doc)
	}
}

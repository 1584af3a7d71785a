package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bmiview.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultBackend, cfg.Backend)
	assert.Equal(t, DefaultTimeout, cfg.Timeout)
	assert.Equal(t, "viridis", cfg.Style.ColorMap)
	assert.Equal(t, 640, cfg.Style.Width)
	assert.Nil(t, cfg.Style.ValueMin)
	assert.Equal(t, DefaultYShore, cfg.Scenario.YShore)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoad_File(t *testing.T) {
	path := writeFile(t, `
backend: http
address: child:55555
timeout: 5s
coords: xy_coords.csv
style:
  cmap: gray
  vmin: -1.5
scenario:
  until: 100
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "http", cfg.Backend)
	assert.Equal(t, "child:55555", cfg.Address)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, "xy_coords.csv", cfg.Coords)
	assert.Equal(t, "gray", cfg.Style.ColorMap)
	require.NotNil(t, cfg.Style.ValueMin)
	assert.Equal(t, -1.5, *cfg.Style.ValueMin)
	assert.Equal(t, 100.0, cfg.Scenario.Until)
	assert.Equal(t, DefaultOffset, cfg.Scenario.Offset, "unset keys keep their defaults")
	assert.Equal(t, 480, cfg.Style.Height)
}

func TestLoad_Precedence(t *testing.T) {
	path := writeFile(t, "backend: http\nstyle:\n  cmap: gray\n  shading: flat\n")
	t.Setenv("BMIVIEW_STYLE__CMAP", "terrain")
	t.Setenv("BMIVIEW_STYLE__SHADING", "gouraud")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("cmap", "viridis", "")
	flags.String("backend", "landscape", "")
	flags.Float64("y-shore", DefaultYShore, "")
	flags.Bool("verbose", false, "")
	require.NoError(t, flags.Set("cmap", "coolwarm"))
	require.NoError(t, flags.Set("y-shore", "2500"))
	require.NoError(t, flags.Set("verbose", "true"))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "coolwarm", cfg.Style.ColorMap, "flag beats env")
	assert.Equal(t, "gouraud", cfg.Style.Shading, "env beats file")
	assert.Equal(t, "http", cfg.Backend, "unchanged flag does not override file")
	assert.Equal(t, 2500.0, cfg.Scenario.YShore)
	assert.True(t, cfg.Log.Verbose)
}

func TestLoad_Preset(t *testing.T) {
	path := writeFile(t, "preset: elevation\nstyle:\n  cmap: terrain\n")

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "k", cfg.Style.EdgeColor)
	require.NotNil(t, cfg.Style.ValueMin)
	require.NotNil(t, cfg.Style.ValueMax)
	assert.Equal(t, -200.0, *cfg.Style.ValueMin)
	assert.Equal(t, 200.0, *cfg.Style.ValueMax)
	assert.Equal(t, "terrain", cfg.Style.ColorMap, "file beats preset")
}

func TestLoad_UnknownPreset(t *testing.T) {
	t.Setenv("BMIVIEW_PRESET", "sunset")
	_, err := Load("", nil)
	assert.ErrorContains(t, err, "sunset")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)
}

func TestSaveLoad(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "http"
	cfg.Timeout = 2 * time.Minute
	cfg.Style.ColorMap = "BrBG_r"

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestPresets(t *testing.T) {
	names := ListPresets()
	assert.Equal(t, []string{"diverging", "elevation", "plain", "terrain"}, names)

	s, ok := GetPreset("elevation")
	require.True(t, ok)
	assert.Equal(t, "BrBG_r", s.ColorMap)

	_, ok = GetPreset("nonexistent")
	assert.False(t, ok)
}

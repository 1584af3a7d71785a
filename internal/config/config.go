// Package config loads bmiview settings. Values are layered, lowest first:
// built-in defaults, a style preset, the YAML file, BMIVIEW_ environment
// variables and finally flags set on the command line.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/san-kum/bmiview/internal/render"
)

const (
	DefaultBackend   = "landscape"
	DefaultAddress   = "localhost:55555"
	DefaultTimeout   = 30 * time.Second
	DefaultVariable  = "land_surface__elevation"
	DefaultOutputDir = "."
	DefaultDataDir   = "snapshots"
	DefaultYShore    = 15000.0
	DefaultOffset    = 100.0
	DefaultUntil     = 5000.0
	DefaultStep      = 500.0

	EnvPrefix = "BMIVIEW_"
)

type Config struct {
	Backend     string        `yaml:"backend" koanf:"backend"`
	Address     string        `yaml:"address" koanf:"address"`
	Timeout     time.Duration `yaml:"timeout" koanf:"timeout"`
	ModelConfig string        `yaml:"model_config" koanf:"model_config"`
	Coords      string        `yaml:"coords" koanf:"coords"`
	Variable    string        `yaml:"variable" koanf:"variable"`
	OutputDir   string        `yaml:"output_dir" koanf:"output_dir"`
	DataDir     string        `yaml:"data_dir" koanf:"data_dir"`
	Preset      string        `yaml:"preset,omitempty" koanf:"preset"`

	Style    render.Style   `yaml:"style" koanf:"style"`
	Scenario ScenarioConfig `yaml:"scenario" koanf:"scenario"`
	Log      LogConfig      `yaml:"log" koanf:"log"`
}

type ScenarioConfig struct {
	YShore float64 `yaml:"y_shore" koanf:"y_shore"`
	Offset float64 `yaml:"offset" koanf:"offset"`
	Until  float64 `yaml:"until" koanf:"until"`
	Step   float64 `yaml:"step" koanf:"step"`
}

type LogConfig struct {
	Verbose bool   `yaml:"verbose" koanf:"verbose"`
	Format  string `yaml:"format" koanf:"format"`
}

func DefaultConfig() *Config {
	return &Config{
		Backend:   DefaultBackend,
		Address:   DefaultAddress,
		Timeout:   DefaultTimeout,
		Variable:  DefaultVariable,
		OutputDir: DefaultOutputDir,
		DataDir:   DefaultDataDir,
		Style: render.Style{
			ColorMap: "viridis",
			Shading:  render.ShadingFlat,
			Width:    render.DefaultWidth,
			Height:   render.DefaultHeight,
			XLabel:   "x (m)",
			YLabel:   "y (m)",
		},
		Scenario: ScenarioConfig{
			YShore: DefaultYShore,
			Offset: DefaultOffset,
			Until:  DefaultUntil,
			Step:   DefaultStep,
		},
		Log: LogConfig{Format: "console"},
	}
}

func defaults() map[string]interface{} {
	d := DefaultConfig()
	return map[string]interface{}{
		"backend":          d.Backend,
		"address":          d.Address,
		"timeout":          d.Timeout.String(),
		"variable":         d.Variable,
		"output_dir":       d.OutputDir,
		"data_dir":         d.DataDir,
		"style.cmap":       d.Style.ColorMap,
		"style.shading":    d.Style.Shading,
		"style.width":      d.Style.Width,
		"style.height":     d.Style.Height,
		"style.xlabel":     d.Style.XLabel,
		"style.ylabel":     d.Style.YLabel,
		"scenario.y_shore": d.Scenario.YShore,
		"scenario.offset":  d.Scenario.Offset,
		"scenario.until":   d.Scenario.Until,
		"scenario.step":    d.Scenario.Step,
		"log.verbose":      d.Log.Verbose,
		"log.format":       d.Log.Format,
	}
}

// flagKeys maps flag names onto nested config keys. Other flags map by
// turning kebab-case into snake_case.
var flagKeys = map[string]string{
	"cmap":       "style.cmap",
	"vmin":       "style.vmin",
	"vmax":       "style.vmax",
	"edge-color": "style.edge_color",
	"shading":    "style.shading",
	"width":      "style.width",
	"height":     "style.height",
	"y-shore":    "scenario.y_shore",
	"offset":     "scenario.offset",
	"until":      "scenario.until",
	"step":       "scenario.step",
	"verbose":    "log.verbose",
	"log-format": "log.format",
	"config":     "",
}

// Load builds a Config from path (may be empty), the environment and the
// changed flags in flags (may be nil).
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k, err := load(path, flags, nil)
	if err != nil {
		return nil, err
	}

	if name := k.String("preset"); name != "" {
		preset, ok := GetPreset(name)
		if !ok {
			return nil, fmt.Errorf("unknown preset %q (known: %s)", name, strings.Join(ListPresets(), ", "))
		}
		if k, err = load(path, flags, styleKeys(preset)); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return &cfg, nil
}

func load(path string, flags *pflag.FlagSet, preset map[string]interface{}) (*koanf.Koanf, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if preset != nil {
		if err := k.Load(confmap.Provider(preset, "."), nil); err != nil {
			return nil, fmt.Errorf("failed to load preset: %w", err)
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	}

	// BMIVIEW_STYLE__CMAP -> style.cmap
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
			}
			if key == "" {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	return k, nil
}

func styleKeys(s render.Style) map[string]interface{} {
	m := map[string]interface{}{
		"style.edge_color": s.EdgeColor,
	}
	if s.ColorMap != "" {
		m["style.cmap"] = s.ColorMap
	}
	if s.Shading != "" {
		m["style.shading"] = s.Shading
	}
	if s.ValueMin != nil {
		m["style.vmin"] = *s.ValueMin
	}
	if s.ValueMax != nil {
		m["style.vmax"] = *s.ValueMax
	}
	return m
}

func Save(path string, cfg *Config) error {
	data, err := yamlv3.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

package landscape

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config describes the domain, the initial surface and the process rates.
// Lengths are metres, times are in TimeUnits.
type Config struct {
	Width   float64 `yaml:"width"`
	Height  float64 `yaml:"height"`
	Spacing float64 `yaml:"spacing"`
	// Jitter moves interior nodes by up to this fraction of Spacing.
	Jitter float64 `yaml:"jitter"`
	Seed   uint64  `yaml:"seed"`
	// Noise is the standard deviation of the initial elevations.
	Noise float64 `yaml:"noise"`

	Diffusivity float64 `yaml:"diffusivity"`
	Uplift      float64 `yaml:"uplift"`

	Dt         float64 `yaml:"dt"`
	EndTime    float64 `yaml:"end_time"`
	Integrator string  `yaml:"integrator"`
	TimeUnits  string  `yaml:"time_units"`
}

func DefaultConfig() Config {
	return Config{
		Width:       20000,
		Height:      30000,
		Spacing:     1000,
		Jitter:      0.25,
		Seed:        1,
		Noise:       1,
		Diffusivity: 200,
		Uplift:      0.001,
		Dt:          10,
		EndTime:     10000,
		Integrator:  "rk4",
		TimeUnits:   "y",
	}
}

// LoadConfig reads a YAML file over the defaults. An empty path yields the
// defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("%w: domain %gx%g", ErrInvalidConfig, c.Width, c.Height)
	case c.Spacing <= 0 || c.Spacing > c.Width || c.Spacing > c.Height:
		return fmt.Errorf("%w: spacing %g", ErrInvalidConfig, c.Spacing)
	case c.Jitter < 0 || c.Jitter >= 0.5:
		return fmt.Errorf("%w: jitter %g not in [0, 0.5)", ErrInvalidConfig, c.Jitter)
	case c.Noise < 0 || c.Diffusivity < 0:
		return fmt.Errorf("%w: negative noise or diffusivity", ErrInvalidConfig)
	case c.Dt <= 0:
		return fmt.Errorf("%w: dt %g", ErrInvalidConfig, c.Dt)
	case c.EndTime < 0:
		return fmt.Errorf("%w: end time %g", ErrInvalidConfig, c.EndTime)
	}
	return nil
}

func (c Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

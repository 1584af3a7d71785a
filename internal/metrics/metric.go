// Package metrics summarises a field of node values as it evolves.
package metrics

import "math"

// Metric accumulates observations of a node field over model time.
type Metric interface {
	Name() string
	Observe(values []float64, t float64)
	Value() float64
	Reset()
}

// Defaults returns a fresh set of the metrics reported for elevation runs.
func Defaults() []Metric {
	return []Metric{
		NewMean(),
		NewRelief(),
		NewLandFraction(0),
		NewMaxChange(),
		NewStability(1e4),
	}
}

// Snapshot returns the current value of every metric by name.
func Snapshot(ms []Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

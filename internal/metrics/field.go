package metrics

import "math"

// Mean is the mean node value of the last observation.
type Mean struct {
	name  string
	value float64
}

func NewMean() *Mean {
	return &Mean{name: "mean"}
}

func (m *Mean) Name() string { return m.name }

func (m *Mean) Observe(values []float64, t float64) {
	sum, n := 0.0, 0
	for _, v := range values {
		if finite(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		m.value = 0
		return
	}
	m.value = sum / float64(n)
}

func (m *Mean) Value() float64 { return m.value }
func (m *Mean) Reset()         { m.value = 0 }

// Relief is max - min of the last observation.
type Relief struct {
	name  string
	value float64
}

func NewRelief() *Relief {
	return &Relief{name: "relief"}
}

func (r *Relief) Name() string { return r.name }

func (r *Relief) Observe(values []float64, t float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if !finite(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo > hi {
		r.value = 0
		return
	}
	r.value = hi - lo
}

func (r *Relief) Value() float64 { return r.value }
func (r *Relief) Reset()         { r.value = 0 }

// LandFraction is the share of nodes above datum in the last observation.
type LandFraction struct {
	name  string
	datum float64
	value float64
}

func NewLandFraction(datum float64) *LandFraction {
	return &LandFraction{name: "land_fraction", datum: datum}
}

func (l *LandFraction) Name() string { return l.name }

func (l *LandFraction) Observe(values []float64, t float64) {
	if len(values) == 0 {
		l.value = 0
		return
	}
	above := 0
	for _, v := range values {
		if v > l.datum {
			above++
		}
	}
	l.value = float64(above) / float64(len(values))
}

func (l *LandFraction) Value() float64 { return l.value }
func (l *LandFraction) Reset()         { l.value = 0 }

// MaxChange is the largest absolute change of any node between two
// consecutive observations.
type MaxChange struct {
	name  string
	prev  []float64
	value float64
}

func NewMaxChange() *MaxChange {
	return &MaxChange{name: "max_change"}
}

func (c *MaxChange) Name() string { return c.name }

func (c *MaxChange) Observe(values []float64, t float64) {
	if len(c.prev) == len(values) {
		for i, v := range values {
			c.value = math.Max(c.value, math.Abs(v-c.prev[i]))
		}
	}
	c.prev = append(c.prev[:0], values...)
}

func (c *MaxChange) Value() float64 { return c.value }

func (c *MaxChange) Reset() {
	c.prev = nil
	c.value = 0
}

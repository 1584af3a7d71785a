package integrators

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/bmiview/internal/dynamo"
)

// decay is dz/dt = -k z with the exact solution z0 exp(-k t).
type decay struct{ k float64 }

func (d *decay) StateDim() int { return 1 }
func (d *decay) Derive(x dynamo.State, t float64) dynamo.State {
	return dynamo.State{-d.k * x[0]}
}

// ramp is dz/dt = u, constant uplift.
type ramp struct{ u float64 }

func (r *ramp) StateDim() int { return 2 }
func (r *ramp) Derive(x dynamo.State, t float64) dynamo.State {
	return dynamo.State{r.u, r.u}
}

func integrate(integ dynamo.Integrator, sys dynamo.System, x dynamo.State, dt float64, steps int) dynamo.State {
	for i := 0; i < steps; i++ {
		x = integ.Step(sys, x, float64(i)*dt, dt)
	}
	return x
}

func TestAccuracy(t *testing.T) {
	tests := []struct {
		name string
		tol  float64
	}{
		{"euler", 1e-2},
		{"rk4", 1e-8},
		{"rk45", 1e-8},
	}

	sys := &decay{k: 0.5}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			integ, err := Lookup(tt.name)
			if err != nil {
				t.Fatal(err)
			}
			x := integrate(integ, sys, dynamo.State{1}, 0.01, 200)
			want := math.Exp(-0.5 * 2)
			if math.Abs(x[0]-want) > tt.tol {
				t.Errorf("got %.10f, expected %.10f", x[0], want)
			}
		})
	}
}

func TestConstantRateIsExact(t *testing.T) {
	for _, name := range Names() {
		integ, _ := Lookup(name)
		x := integrate(integ, &ramp{u: 0.001}, dynamo.State{5, -1}, 1, 100)
		if math.Abs(x[0]-5.1) > 1e-9 || math.Abs(x[1]+0.9) > 1e-9 {
			t.Errorf("%s: got %v", name, x)
		}
	}
}

func TestLookup(t *testing.T) {
	if _, err := Lookup("verlet"); !errors.Is(err, dynamo.ErrUnknownIntegrator) {
		t.Errorf("expected ErrUnknownIntegrator, got %v", err)
	}
	integ, err := Lookup("")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := integ.(*RK4); !ok {
		t.Errorf("default integrator should be rk4, got %T", integ)
	}
	a, _ := Lookup("RK4")
	b, _ := Lookup("rk4")
	if a == b {
		t.Error("Lookup must return a fresh instance per call")
	}
}

func TestRK45_SuggestsStep(t *testing.T) {
	r := NewRK45()
	_, next, err := r.StepAdaptive(&decay{k: 50}, dynamo.State{1}, 0, 0.5, 1e-6)
	if err != nil {
		t.Fatal(err)
	}
	if next >= 0.5 {
		t.Errorf("stiff decay should shrink the step, got %v", next)
	}
}

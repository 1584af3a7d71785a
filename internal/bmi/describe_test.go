package bmi_test

import (
	"errors"
	"testing"

	"github.com/san-kum/bmiview/internal/bmi"
	"github.com/san-kum/bmiview/internal/bmi/bmitest"
)

func TestHasOutputVar(t *testing.T) {
	f := bmitest.New("child", "land_surface__elevation", "m", []float64{1, 2, 3}, []int{0, 1, 2})

	tests := []struct {
		name string
		want bool
	}{
		{"land_surface__elevation", true},
		{"sea_water__depth", false},
		{"", false},
	}

	for _, tt := range tests {
		got, err := bmi.HasOutputVar(f, tt.name)
		if err != nil {
			t.Fatalf("HasOutputVar(%q): %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("HasOutputVar(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestDescribe(t *testing.T) {
	f := bmitest.New("child", "land_surface__elevation", "m", []float64{1, 2, 3, 4}, []int{0, 1, 2, 1, 2, 3})
	f.Time = 5

	info, err := bmi.Describe(f)
	if err != nil {
		t.Fatalf("describe failed: %v", err)
	}

	if info.Component != "child" {
		t.Errorf("expected component child, got %s", info.Component)
	}
	if info.Time == nil || info.Time.Current != 5 || info.Time.Units != "y" {
		t.Errorf("unexpected time info: %+v", info.Time)
	}
	if len(info.Vars) != 1 {
		t.Fatalf("expected 1 var, got %d", len(info.Vars))
	}

	v := info.Vars[0]
	if v.Size != 4 || v.FaceCount != 2 || v.Units != "m" || v.GridType != bmi.GridUnstructured || v.Rank != 2 {
		t.Errorf("unexpected var info: %+v", v)
	}
	if len(info.InputVars) != 1 {
		t.Errorf("expected 1 input var, got %v", info.InputVars)
	}
}

func TestDescribe_MinimalHandle(t *testing.T) {
	info, err := bmi.Describe(bmitest.Minimal{Name: "stub", Vars: []string{"a"}})
	if err != nil {
		t.Fatalf("describe failed: %v", err)
	}
	if info.Time != nil || info.Vars != nil || len(info.Capabilities) != 0 {
		t.Errorf("expected bare info, got %+v", info)
	}
}

func TestDescribe_PropagatesHandleError(t *testing.T) {
	boom := errors.New("connection reset")
	f := bmitest.New("child", "z", "m", []float64{1}, nil)
	f.Err = boom

	if _, err := bmi.Describe(f); err != boom {
		t.Errorf("expected handle error unchanged, got %v", err)
	}
}

func TestErrorsUnwrap(t *testing.T) {
	tests := []struct {
		err      error
		sentinel error
	}{
		{&bmi.UnknownVariableError{Name: "x"}, bmi.ErrUnknownVariable},
		{&bmi.GridMismatchError{Want: 4, GotX: 3, GotY: 4}, bmi.ErrGridMismatch},
		{&bmi.MalformedConnectivityError{Length: 4, Reason: "not a multiple of 3"}, bmi.ErrMalformedConnectivity},
		{&bmi.UnsupportedModelError{Missing: []string{"GridReader"}}, bmi.ErrUnsupportedModel},
	}

	for _, tt := range tests {
		if !errors.Is(tt.err, tt.sentinel) {
			t.Errorf("%v does not unwrap to %v", tt.err, tt.sentinel)
		}
	}
}

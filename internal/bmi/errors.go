package bmi

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownVariable indicates a variable name the handle does not expose.
	ErrUnknownVariable = errors.New("bmi: unknown variable")

	// ErrGridMismatch indicates coordinate arrays that do not match the grid size.
	ErrGridMismatch = errors.New("bmi: coordinates do not match grid size")

	// ErrMalformedConnectivity indicates a face-node buffer that cannot form triangles.
	ErrMalformedConnectivity = errors.New("bmi: malformed face connectivity")

	// ErrUnsupportedModel indicates a handle lacking a required capability.
	ErrUnsupportedModel = errors.New("bmi: model lacks required capability")

	// ErrNonFiniteCoordinate indicates a node position that is NaN or infinite.
	ErrNonFiniteCoordinate = errors.New("bmi: non-finite node coordinate")
)

type UnknownVariableError struct {
	Name string
}

func (e *UnknownVariableError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownVariable, e.Name)
}

func (e *UnknownVariableError) Unwrap() error { return ErrUnknownVariable }

// GridMismatchError reports the grid size next to the coordinate lengths supplied.
type GridMismatchError struct {
	Want int
	GotX int
	GotY int
}

func (e *GridMismatchError) Error() string {
	return fmt.Sprintf("%s: grid has %d nodes, got %d x and %d y", ErrGridMismatch, e.Want, e.GotX, e.GotY)
}

func (e *GridMismatchError) Unwrap() error { return ErrGridMismatch }

// NonFiniteCoordinateError names the first node whose x or y is not finite.
type NonFiniteCoordinateError struct {
	Axis  string
	Node  int
	Value float64
}

func (e *NonFiniteCoordinateError) Error() string {
	return fmt.Sprintf("%s: %s[%d] = %g", ErrNonFiniteCoordinate, e.Axis, e.Node, e.Value)
}

func (e *NonFiniteCoordinateError) Unwrap() error { return ErrNonFiniteCoordinate }

type MalformedConnectivityError struct {
	Length int
	Reason string
}

func (e *MalformedConnectivityError) Error() string {
	return fmt.Sprintf("%s (length %d): %s", ErrMalformedConnectivity, e.Length, e.Reason)
}

func (e *MalformedConnectivityError) Unwrap() error { return ErrMalformedConnectivity }

// UnsupportedModelError names the capabilities a handle is missing.
type UnsupportedModelError struct {
	Missing []string
}

func (e *UnsupportedModelError) Error() string {
	return fmt.Sprintf("%s: missing %s", ErrUnsupportedModel, strings.Join(e.Missing, ", "))
}

func (e *UnsupportedModelError) Unwrap() error { return ErrUnsupportedModel }

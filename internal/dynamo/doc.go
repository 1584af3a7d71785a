// Package dynamo provides the time-stepping primitives behind the in-process
// landscape model.
//
// The package defines the interfaces for integrating a field of node values
// forward in time (dZ/dt = f(Z, t)):
//
//   - [State]: vector of node values
//   - [System]: the right hand side of the equation
//   - [Integrator]: numerical stepper
//
// # Example
//
//	integ, _ := integrators.Lookup("rk4")
//	z = integ.Step(sys, z, t, dt)
//
// # Thread Safety
//
// Integrators keep scratch buffers and are NOT safe for concurrent use. Give
// each model its own instance.
package dynamo

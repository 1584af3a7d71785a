// Package bmi defines the Basic Model Interface capability set used to drive
// and inspect an earth-surface model.
//
// A handle is anything implementing [Model]. Everything else is an optional
// capability discovered with a type assertion, the same way callers check for
// extra behaviour on a value:
//
//   - [GridReader]: grid id, node count and triangle connectivity
//   - [ValueReader]: current values and units of a variable
//   - [ValueWriter]: overwrite a variable
//   - [GridDescriber]: grid type and rank
//   - [Clock]: start, end and current model time
//   - [Lifecycle]: initialize, advance and finalize the model
//
// Concrete backends (in-process, networked) implement the full [BMI] set and
// are interchangeable. Handles are owned by the caller and passed explicitly to
// every operation; nothing in this module keeps a global model instance.
//
// # Thread Safety
//
// Nothing here assumes a handle is safe for concurrent use. Callers that share
// a handle between goroutines must serialise access themselves.
package bmi

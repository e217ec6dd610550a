// Package opt provides the numerical search strategies an optimizer delegates to.
package opt

import "errors"

// Objective is a scalar function of an ordered parameter vector.
// An error aborts the search and is returned by Minimize unchanged.
type Objective func(x []float64) (float64, error)

// Backend defines a minimization strategy
type Backend interface {
	// Minimize searches for a minimum of f starting from x0.
	// The returned vector has the same length as x0. The result is only as
	// good as the strategy and its configuration; it is not a global optimum.
	Minimize(f Objective, x0 []float64) ([]float64, error)

	// Name identifies the backend in logs and run records
	Name() string
}

var (
	// ErrDimension is returned by backends that only support a fixed dimensionality.
	ErrDimension = errors.New("unsupported problem dimension")

	// ErrDiverged is returned when an iterate becomes NaN or infinite.
	ErrDiverged = errors.New("iteration diverged")

	// ErrUnknownBackend is returned by FromConfig for an unrecognized backend kind.
	ErrUnknownBackend = errors.New("unknown backend")

	// ErrUnknownMethod is returned for an unrecognized gonum method identifier.
	ErrUnknownMethod = errors.New("unknown method")
)

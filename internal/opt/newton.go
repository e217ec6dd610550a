package opt

import (
	"fmt"
	"log/slog"
	"math"
)

// Newton1DConfig configures the scalar Newton backend.
type Newton1DConfig struct {
	// Dx is the step of the central finite difference.
	Dx float64

	// Iterations caps the number of Newton steps.
	Iterations int

	// Tolerance stops early once |f(x)| <= Tolerance. Zero stops only on an exact root.
	Tolerance float64
}

// DefaultNewton1DConfig returns the default step size and iteration cap.
func DefaultNewton1DConfig() Newton1DConfig {
	return Newton1DConfig{
		Dx:         1e-6,
		Iterations: 10,
	}
}

// Newton1DBackend drives a single free value towards a root of the objective
// with Newton steps x <- x - f(x)/f'(x), f' estimated by central differences.
// For a non-negative merit function a root is a global minimum.
//
// Only one-dimensional problems are accepted; anything else fails with ErrDimension.
type Newton1DBackend struct {
	config Newton1DConfig
}

// NewNewton1D creates a scalar Newton backend.
func NewNewton1D(config Newton1DConfig) *Newton1DBackend {
	defaults := DefaultNewton1DConfig()
	if config.Dx <= 0 {
		config.Dx = defaults.Dx
	}
	if config.Iterations <= 0 {
		config.Iterations = defaults.Iterations
	}
	return &Newton1DBackend{config: config}
}

// Config returns the effective configuration.
func (b *Newton1DBackend) Config() Newton1DConfig {
	return b.config
}

// Name returns "newton1d".
func (b *Newton1DBackend) Name() string {
	return "newton1d"
}

// Minimize iterates Newton steps from x0[0].
func (b *Newton1DBackend) Minimize(f Objective, x0 []float64) ([]float64, error) {
	if len(x0) != 1 {
		return nil, fmt.Errorf("newton1d needs exactly one free value, got %d: %w", len(x0), ErrDimension)
	}

	dx := b.config.Dx
	eval := func(x float64) (float64, error) {
		return f([]float64{x})
	}

	x := x0[0]
	for i := 0; i < b.config.Iterations; i++ {
		fx, err := eval(x)
		if err != nil {
			return nil, err
		}
		if fx == 0 || math.Abs(fx) <= b.config.Tolerance {
			slog.Debug("Newton root reached", "iteration", i, "x", x, "f", fx)
			break
		}

		fp, err := eval(x + dx)
		if err != nil {
			return nil, err
		}
		fm, err := eval(x - dx)
		if err != nil {
			return nil, err
		}

		deriv := (fp - fm) / (2 * dx)
		if deriv == 0 {
			// No step is defined; x is as far as Newton can get.
			slog.Debug("Newton derivative vanished", "iteration", i, "x", x, "f", fx)
			break
		}

		x -= fx / deriv
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("newton1d at iteration %d: %w", i, ErrDiverged)
		}
	}

	return []float64{x}, nil
}

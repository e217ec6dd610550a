package opt

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/mayfly"
)

// MayflyConfig configures the population-based Mayfly search.
type MayflyConfig struct {
	MaxIterations int
	PopSize       int // mayfly v0.1.0 requires at least 20
	Seed          int64

	// Lower and Upper bound every dimension. When they are equal the bounds
	// are derived from x0 as [min(x0)-Span, max(x0)+Span].
	Lower, Upper float64
	Span         float64
}

// DefaultMayflyConfig returns defaults suitable for small problems.
func DefaultMayflyConfig() MayflyConfig {
	return MayflyConfig{
		MaxIterations: 100,
		PopSize:       20,
		Seed:          42,
		Span:          10,
	}
}

// MayflyAdapter wraps the external Mayfly library to conform to the Backend interface.
// The search is global within its bounds; x0 only places the bounds.
type MayflyAdapter struct {
	config MayflyConfig
}

// NewMayfly creates a new Mayfly backend adapter
func NewMayfly(config MayflyConfig) *MayflyAdapter {
	defaults := DefaultMayflyConfig()
	if config.MaxIterations <= 0 {
		config.MaxIterations = defaults.MaxIterations
	}
	if config.PopSize < defaults.PopSize {
		config.PopSize = defaults.PopSize
	}
	if config.Span <= 0 {
		config.Span = defaults.Span
	}
	return &MayflyAdapter{config: config}
}

// Name returns "mayfly".
func (m *MayflyAdapter) Name() string {
	return "mayfly"
}

// Config returns the effective configuration.
func (m *MayflyAdapter) Config() MayflyConfig {
	return m.config
}

// Minimize executes the Mayfly optimization using the external library
func (m *MayflyAdapter) Minimize(f Objective, x0 []float64) ([]float64, error) {
	dim := len(x0)
	if dim == 0 {
		return []float64{}, nil
	}

	lower, upper := m.bounds(x0)

	var evalErr error
	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = func(x []float64) float64 {
		if evalErr != nil {
			return math.Inf(1)
		}
		v, err := f(x)
		if err != nil {
			evalErr = err
			return math.Inf(1)
		}
		return v
	}
	config.ProblemSize = dim
	config.MaxIterations = m.config.MaxIterations
	config.NPop = m.config.PopSize

	// external library uses scalar bounds
	config.LowerBound = lower
	config.UpperBound = upper

	config.Rand = rand.New(rand.NewSource(m.config.Seed))

	result, err := mayfly.Optimize(config)
	if evalErr != nil {
		return nil, evalErr
	}
	if err != nil {
		return nil, fmt.Errorf("mayfly: %w", err)
	}

	return append([]float64(nil), result.GlobalBest.Position...), nil
}

func (m *MayflyAdapter) bounds(x0 []float64) (float64, float64) {
	if m.config.Lower < m.config.Upper {
		return m.config.Lower, m.config.Upper
	}
	lo, hi := x0[0], x0[0]
	for _, v := range x0[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo - m.config.Span, hi + m.config.Span
}

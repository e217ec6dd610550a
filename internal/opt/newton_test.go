package opt

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewton1D_FindsRoot(t *testing.T) {
	// (x^2 + 16 - 25)^2 has a double root at x = 3
	f := func(x []float64) (float64, error) {
		r := x[0]*x[0] + 16 - 25
		return r * r, nil
	}

	b := NewNewton1D(Newton1DConfig{Dx: 1e-6, Iterations: 500})
	x, err := b.Minimize(f, []float64{1})
	require.NoError(t, err)
	require.Len(t, x, 1)
	assert.InDelta(t, 3.0, x[0], 1e-4)
}

func TestNewton1D_Defaults(t *testing.T) {
	b := NewNewton1D(Newton1DConfig{})
	assert.Equal(t, DefaultNewton1DConfig(), b.Config())
	assert.Equal(t, "newton1d", b.Name())
}

func TestNewton1D_RejectsDimension(t *testing.T) {
	b := NewNewton1D(DefaultNewton1DConfig())
	calls := 0
	f := func(x []float64) (float64, error) {
		calls++
		return sphere(x)
	}

	_, err := b.Minimize(f, []float64{1, 2})
	assert.True(t, errors.Is(err, ErrDimension))
	assert.Zero(t, calls)

	_, err = b.Minimize(f, nil)
	assert.True(t, errors.Is(err, ErrDimension))
}

func TestNewton1D_FlatDerivativeStops(t *testing.T) {
	calls := 0
	constant := func(x []float64) (float64, error) {
		calls++
		return 1, nil
	}
	x, err := NewNewton1D(DefaultNewton1DConfig()).Minimize(constant, []float64{0.5})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5}, x)
	assert.Equal(t, 3, calls)
}

func TestNewton1D_Diverges(t *testing.T) {
	f := func(x []float64) (float64, error) { return math.NaN(), nil }
	_, err := NewNewton1D(DefaultNewton1DConfig()).Minimize(f, []float64{1})
	assert.True(t, errors.Is(err, ErrDiverged))
}

func TestNewton1D_StopsAtTolerance(t *testing.T) {
	calls := 0
	f := func(x []float64) (float64, error) {
		calls++
		return math.Abs(x[0] - 2), nil
	}

	b := NewNewton1D(Newton1DConfig{Dx: 1e-3, Iterations: 50, Tolerance: 1e-9})
	x, err := b.Minimize(f, []float64{0})
	require.NoError(t, err)
	assert.InDelta(t, 2.0, x[0], 1e-9)
	assert.Less(t, calls, 10)
}

func TestNewton1D_ObjectiveError(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewNewton1D(DefaultNewton1DConfig()).Minimize(func([]float64) (float64, error) {
		return 0, boom
	}, []float64{1})
	assert.Same(t, boom, err)
}

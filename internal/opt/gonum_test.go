package opt

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rosenbrock(x []float64) (float64, error) {
	a := 1 - x[0]
	b := x[1] - x[0]*x[0]
	return a*a + 100*b*b, nil
}

func TestGonumBackend_Methods(t *testing.T) {
	tests := []struct {
		method string
		f      Objective
		x0     []float64
		want   []float64
		delta  float64
	}{
		{method: "Nelder-Mead", f: sphere, x0: []float64{3, -2, 1}, want: []float64{0, 0, 0}, delta: 1e-3},
		{method: "nelder_mead", f: rosenbrock, x0: []float64{-1.2, 1}, want: []float64{1, 1}, delta: 1e-2},
		{method: "BFGS", f: sphere, x0: []float64{3, -2}, want: []float64{0, 0}, delta: 1e-4},
		{method: "L-BFGS", f: sphere, x0: []float64{3, -2}, want: []float64{0, 0}, delta: 1e-4},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			b := NewGonum(tt.method, Options{OptMaxIter: 5000, OptGradTol: 1e-8})
			x, err := b.Minimize(tt.f, tt.x0)
			require.NoError(t, err)
			require.Len(t, x, len(tt.x0))
			for i := range x {
				assert.InDelta(t, tt.want[i], x[i], tt.delta, "component %d", i)
			}
		})
	}
}

func TestGonumBackend_DoesNotMutateStart(t *testing.T) {
	x0 := []float64{3, 4}
	_, err := NewGonum("", nil).Minimize(sphere, x0)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 4}, x0)
}

func TestGonumBackend_ObjectiveErrorVerbatim(t *testing.T) {
	boom := errors.New("merit exploded")
	calls := 0
	f := func(x []float64) (float64, error) {
		calls++
		if calls == 4 {
			return 0, boom
		}
		return sphere(x)
	}

	_, err := NewGonum(DefaultMethod, nil).Minimize(f, []float64{1, 2})
	assert.Same(t, boom, err)
}

func TestGonumBackend_UnknownMethod(t *testing.T) {
	_, err := NewGonum("simulated-annealing", nil).Minimize(sphere, []float64{1})
	assert.True(t, errors.Is(err, ErrUnknownMethod))
}

func TestGonumBackend_BadOption(t *testing.T) {
	_, err := NewGonum(DefaultMethod, Options{OptMaxIter: "many"}).Minimize(sphere, []float64{1})
	require.Error(t, err)
}

func TestGonumBackend_EmptyProblem(t *testing.T) {
	x, err := NewGonum("", nil).Minimize(sphere, nil)
	require.NoError(t, err)
	assert.Empty(t, x)
}

func TestGonumSettings(t *testing.T) {
	s, err := gonumSettings(Options{OptMaxIter: 10, OptMaxFev: 99, OptFAbsTol: 1e-6, OptDisp: false})
	require.NoError(t, err)
	assert.Equal(t, 10, s.MajorIterations)
	assert.Equal(t, 99, s.FuncEvaluations)
	assert.Equal(t, 0, s.Concurrent)
	assert.Nil(t, s.Recorder)
	require.NotNil(t, s.Converger)

	s, err = gonumSettings(Options{})
	require.NoError(t, err)
	assert.Nil(t, s.Converger)
}

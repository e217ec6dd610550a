package funcobj_test

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/varopt/internal/funcobj"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const linearSource = `
function "f" {
  params = [x, y]
  result = x*3 + y*4
}
`

func TestNew_CompilesAndCalls(t *testing.T) {
	fo, err := funcobj.New(linearSource, "f")
	require.NoError(t, err)
	require.Equal(t, []string{"f"}, fo.Names())

	f, err := fo.Get("f")
	require.NoError(t, err)

	out, err := f(1.0, 6.0)
	require.NoError(t, err)
	assert.Equal(t, 27.0, out)
}

func TestNew_StringTemplate(t *testing.T) {
	fo, err := funcobj.New(`
function "cat" {
  params = [p, q]
  result = "${p}${q}"
}
`, "cat")
	require.NoError(t, err)

	out, err := fo.Call("cat", "glass1", "glass2")
	require.NoError(t, err)
	assert.Equal(t, "glass1glass2", out)
}

func TestNew_Stdlib(t *testing.T) {
	fo, err := funcobj.New(`
function "radius" {
  params = [x, y]
  result = pow(x*x + y*y, 0.5)
}
function "clip" {
  params = [x]
  result = max(min(x, 1), -1)
}
`)
	require.NoError(t, err)
	assert.Equal(t, []string{"clip", "radius"}, fo.Names())

	out, err := fo.Call("radius", 3.0, 4.0)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, out, 1e-12)

	out, err = fo.Call("clip", 7)
	require.NoError(t, err)
	assert.Equal(t, 1.0, out)
}

func TestNew_DefinitionErrors(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		exported []string
	}{
		{name: "missing export", source: linearSource, exported: []string{"f", "g"}},
		{name: "syntax error", source: `function "f" {`, exported: []string{"f"}},
		{name: "stray attribute", source: linearSource + "\nx = 1\n", exported: []string{"f"}},
		{name: "empty source", source: "", exported: []string{"f"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := funcobj.New(tt.source, tt.exported...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, funcobj.ErrDefinition), "got %v", err)
		})
	}
}

func TestNew_MissingNamesReported(t *testing.T) {
	_, err := funcobj.New(linearSource, "f", "g", "h")
	var defErr *funcobj.DefinitionError
	require.True(t, errors.As(err, &defErr))
	assert.Equal(t, []string{"g", "h"}, defErr.Missing)
}

func TestGet_UnexportedName(t *testing.T) {
	fo, err := funcobj.New(linearSource+`
function "hidden" {
  params = []
  result = 1
}
`, "f")
	require.NoError(t, err)

	_, err = fo.Get("hidden")
	assert.True(t, errors.Is(err, funcobj.ErrLookup))

	_, err = fo.Get("nope")
	assert.True(t, errors.Is(err, funcobj.ErrLookup))
}

func TestCall_Arity(t *testing.T) {
	fo, err := funcobj.New(linearSource, "f")
	require.NoError(t, err)

	_, err = fo.Call("f", 1.0)
	assert.True(t, errors.Is(err, funcobj.ErrArity))

	_, err = fo.Call("f", 1.0, 2.0, 3.0)
	var arityErr *funcobj.ArityError
	require.True(t, errors.As(err, &arityErr))
	assert.Equal(t, 2, arityErr.Want)
	assert.Equal(t, 3, arityErr.Got)
}

func TestCall_TypeMismatch(t *testing.T) {
	fo, err := funcobj.New(linearSource, "f")
	require.NoError(t, err)

	_, err = fo.Call("f", "glass", 1.0)
	require.Error(t, err)
	assert.False(t, errors.Is(err, funcobj.ErrArity))
}

func TestTable(t *testing.T) {
	table := funcobj.NewTable()
	require.NoError(t, table.Register("sum", funcobj.Variadic, func(args ...any) (any, error) {
		var total float64
		for _, a := range args {
			total += a.(float64)
		}
		return total, nil
	}))
	require.NoError(t, table.Register("neg", 1, func(args ...any) (any, error) {
		return -args[0].(float64), nil
	}))

	err := table.Register("neg", 1, func(args ...any) (any, error) { return nil, nil })
	assert.True(t, errors.Is(err, funcobj.ErrDefinition))

	assert.Equal(t, []string{"neg", "sum"}, table.Names())

	sum, err := table.Get("sum")
	require.NoError(t, err)
	out, err := sum(1.0, 2.0, 3.5)
	require.NoError(t, err)
	assert.Equal(t, 6.5, out)

	neg, err := table.Get("neg")
	require.NoError(t, err)
	_, err = neg(1.0, 2.0)
	assert.True(t, errors.Is(err, funcobj.ErrArity))

	_, err = table.Get("missing")
	assert.True(t, errors.Is(err, funcobj.ErrLookup))
}

func TestConvertList(t *testing.T) {
	v, err := funcobj.ToCty([]string{"x", "y"})
	require.NoError(t, err)
	native, err := funcobj.FromCty(v)
	require.NoError(t, err)
	assert.Equal(t, []any{"x", "y"}, native)
}

func TestCall_NaNArgumentRejected(t *testing.T) {
	fo, err := funcobj.New(linearSource)
	require.NoError(t, err)

	_, err = funcobj.ToCty(math.NaN())
	assert.ErrorContains(t, err, "NaN")

	_, err = fo.Call("f", math.NaN(), 1.0)
	assert.ErrorContains(t, err, "NaN")
}

package problem

import (
	"fmt"

	"github.com/cwbudde/varopt/internal/funcobj"
	"github.com/cwbudde/varopt/internal/variable"
	"github.com/hashicorp/hcl/v2"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

func evalFunctions(fo *funcobj.FunctionObject) map[string]function.Function {
	funcs := funcobj.Stdlib()
	if fo != nil {
		for name, fn := range fo.Functions() {
			funcs[name] = fn
		}
	}
	return funcs
}

// Merit evaluates the merit expression against the live values of c.
// Only the values the expression refers to are evaluated.
func (p *Problem) Merit(c *variable.Container) (float64, error) {
	vars := make(map[string]cty.Value)
	for _, traversal := range p.merit.Variables() {
		root := traversal.RootName()
		if _, done := vars[root]; done {
			continue
		}
		node := c.Get(root)
		if node == nil {
			// Left out so that evaluation reports it with a position.
			continue
		}
		val, err := nodeValue(node)
		if err != nil {
			return 0, err
		}
		vars[root] = val
	}

	ctx := &hcl.EvalContext{Variables: vars, Functions: p.funcs}
	val, diags := p.merit.Value(ctx)
	if diags.HasErrors() {
		return 0, fmt.Errorf("merit: %w", diags)
	}

	if val.IsNull() || !val.IsKnown() || val.Type() != cty.Number {
		native, _ := funcobj.FromCty(val)
		return 0, &variable.NotNumericError{Name: "merit", Value: native}
	}
	f, _ := val.AsBigFloat().Float64()
	return f, nil
}

func nodeValue(node variable.Node) (cty.Value, error) {
	switch n := node.(type) {
	case *variable.Variable:
		val, err := n.Evaluate()
		if err != nil {
			return cty.NilVal, err
		}
		return funcobj.ToCty(val)
	case *variable.Container:
		attrs := make(map[string]cty.Value)
		for _, name := range n.Names() {
			val, err := nodeValue(n.Get(name))
			if err != nil {
				return cty.NilVal, err
			}
			attrs[name] = val
		}
		return cty.ObjectVal(attrs), nil
	default:
		return cty.NilVal, fmt.Errorf("unsupported node %T", node)
	}
}

package funcobj

import (
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// Stdlib returns the functions available inside every compiled expression.
// Only pure functions are exposed; nothing here reaches outside its arguments.
func Stdlib() map[string]function.Function {
	return map[string]function.Function{
		"abs":    stdlib.AbsoluteFunc,
		"ceil":   stdlib.CeilFunc,
		"floor":  stdlib.FloorFunc,
		"log":    stdlib.LogFunc,
		"pow":    stdlib.PowFunc,
		"signum": stdlib.SignumFunc,
		"min":    stdlib.MinFunc,
		"max":    stdlib.MaxFunc,
		"upper":  stdlib.UpperFunc,
		"lower":  stdlib.LowerFunc,
		"strlen": stdlib.StrlenFunc,
		"format": stdlib.FormatFunc,
	}
}

// Package funcobj builds named callables from expression source text at runtime.
//
// Source text is a sequence of HCL function blocks:
//
//	function "f" {
//	  params = [x, y]
//	  result = x*3 + y*4
//	}
//
// Expressions see only their parameters and a small pure standard library
// (see Stdlib), so a compiled function cannot observe any state it was not given.
package funcobj

import (
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/ext/userfunc"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
)

// BlockType is the HCL block type that introduces a function definition.
const BlockType = "function"

// Func is a compiled callable applied to positional arguments.
type Func func(args ...any) (any, error)

// Source resolves exported function names to callables.
// Implementations return a *LookupError for names they do not export.
type Source interface {
	Get(name string) (Func, error)
}

// FunctionObject holds functions compiled from source text. It is immutable
// once constructed; replace it wholesale to change behaviour.
type FunctionObject struct {
	source   string
	exported []string
	funcs    map[string]function.Function
}

// New compiles source and checks that it defines every name in exported.
// With no exported names, every defined function is exported.
func New(source string, exported ...string) (*FunctionObject, error) {
	file, diags := hclsyntax.ParseConfig([]byte(source), "functions.hcl", hcl.InitialPos)
	if diags.HasErrors() {
		return nil, &DefinitionError{Detail: diags.Error()}
	}

	funcs, remain, diags := userfunc.DecodeUserFunctions(file.Body, BlockType, evalContext)
	if diags.HasErrors() {
		return nil, &DefinitionError{Detail: diags.Error()}
	}
	if _, diags := remain.Content(&hcl.BodySchema{}); diags.HasErrors() {
		return nil, &DefinitionError{Detail: diags.Error()}
	}

	return newFunctionObject(source, funcs, exported)
}

// Decode extracts the function blocks of an already parsed body and returns
// the rest of the body for the caller to decode. Every defined function is exported.
func Decode(source string, body hcl.Body) (*FunctionObject, hcl.Body, hcl.Diagnostics) {
	funcs, remain, diags := userfunc.DecodeUserFunctions(body, BlockType, evalContext)
	if diags.HasErrors() {
		return nil, remain, diags
	}
	fo, err := newFunctionObject(source, funcs, nil)
	if err != nil {
		return nil, remain, diags.Append(&hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid function definitions",
			Detail:   err.Error(),
		})
	}
	return fo, remain, diags
}

func newFunctionObject(source string, funcs map[string]function.Function, exported []string) (*FunctionObject, error) {
	if len(exported) == 0 {
		for name := range funcs {
			exported = append(exported, name)
		}
		sort.Strings(exported)
	}

	var missing []string
	for _, name := range exported {
		if _, ok := funcs[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &DefinitionError{Missing: missing}
	}

	return &FunctionObject{
		source:   source,
		exported: append([]string(nil), exported...),
		funcs:    funcs,
	}, nil
}

func evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{Functions: Stdlib()}
}

// Source returns the text the functions were compiled from.
func (fo *FunctionObject) Source() string {
	return fo.source
}

// Names returns the exported function names.
func (fo *FunctionObject) Names() []string {
	return append([]string(nil), fo.exported...)
}

// Get returns the exported function called name.
func (fo *FunctionObject) Get(name string) (Func, error) {
	if !fo.exports(name) {
		return nil, &LookupError{Name: name}
	}
	return bind(name, fo.funcs[name]), nil
}

// Call is a shorthand for Get followed by invocation.
func (fo *FunctionObject) Call(name string, args ...any) (any, error) {
	fn, err := fo.Get(name)
	if err != nil {
		return nil, err
	}
	return fn(args...)
}

// Functions exposes the exported functions in the cty calling convention,
// for embedding into other HCL evaluation contexts.
func (fo *FunctionObject) Functions() map[string]function.Function {
	out := make(map[string]function.Function, len(fo.exported))
	for _, name := range fo.exported {
		out[name] = fo.funcs[name]
	}
	return out
}

func (fo *FunctionObject) exports(name string) bool {
	for _, n := range fo.exported {
		if n == name {
			return true
		}
	}
	return false
}

func bind(name string, fn function.Function) Func {
	params := len(fn.Params())
	variadic := fn.VarParam() != nil

	return func(args ...any) (any, error) {
		if len(args) < params || (!variadic && len(args) > params) {
			return nil, &ArityError{Name: name, Want: params, Got: len(args), Variadic: variadic}
		}

		vals := make([]cty.Value, len(args))
		for i, arg := range args {
			v, err := ToCty(arg)
			if err != nil {
				return nil, fmt.Errorf("%s: argument %d: %w", name, i, err)
			}
			vals[i] = v
		}

		out, err := fn.Call(vals)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		return FromCty(out)
	}
}

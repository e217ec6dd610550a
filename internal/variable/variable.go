// Package variable implements optimizable values and the containers that own them.
//
// A Variable is fixed, free, pickup or external. Fixed and free variables
// hold a literal. Pickups apply a function to other variables and externals
// apply a function to plain constants; both are recomputed on every
// Evaluate, so they always reflect the live state of their dependencies.
package variable

import (
	"fmt"

	"github.com/cwbudde/varopt/internal/funcobj"
)

// MaxDepth bounds the length of a pickup evaluation chain. Exceeding it
// yields a *RecursionError.
const MaxDepth = 10000

// Kind selects how a Variable produces its value.
type Kind int

const (
	Fixed Kind = iota
	Free
	Pickup
	External
)

func (k Kind) String() string {
	switch k {
	case Fixed:
		return "fixed"
	case Free:
		return "free"
	case Pickup:
		return "pickup"
	case External:
		return "external"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Variable is a single optimizable value.
type Variable struct {
	name string
	kind Kind

	// fixed, free
	value any

	// pickup, external
	source   funcobj.Source
	function string
	args     []*Variable // pickup; non-owning
	consts   []any       // external

	parent *Container
}

// NewFixed creates a variable holding a literal the optimizer never touches.
func NewFixed(name string, value any) *Variable {
	return &Variable{name: name, kind: Fixed, value: value}
}

// NewFree creates a variable the optimizer may tune.
func NewFree(name string, value any) *Variable {
	return &Variable{name: name, kind: Free, value: value}
}

// NewPickup creates a variable computed by source's function over args.
// The args are referenced, not owned, and may live anywhere in the tree.
func NewPickup(name string, source funcobj.Source, function string, args ...*Variable) *Variable {
	return &Variable{
		name:     name,
		kind:     Pickup,
		source:   source,
		function: function,
		args:     args,
	}
}

// NewExternal creates a variable computed by source's function over plain constants.
func NewExternal(name string, source funcobj.Source, function string, args ...any) *Variable {
	return &Variable{
		name:     name,
		kind:     External,
		source:   source,
		function: function,
		consts:   args,
	}
}

// Name returns the diagnostic name.
func (v *Variable) Name() string { return v.name }

// Kind returns the variable kind.
func (v *Variable) Kind() Kind { return v.kind }

// Value returns the stored literal of a fixed or free variable, nil otherwise.
func (v *Variable) Value() any { return v.value }

// Function returns the function reference of a pickup or external variable.
func (v *Variable) Function() (funcobj.Source, string) { return v.source, v.function }

// Args returns the pickup dependencies.
func (v *Variable) Args() []*Variable { return append([]*Variable(nil), v.args...) }

// ExternalArgs returns the constants of an external variable.
func (v *Variable) ExternalArgs() []any { return append([]any(nil), v.consts...) }

func (v *Variable) derived() bool { return v.kind == Pickup || v.kind == External }

// SetValue replaces the literal of a fixed or free variable.
func (v *Variable) SetValue(value any) error {
	if v.derived() {
		return fmt.Errorf("set %q: %w", v.name, ErrNotSettable)
	}
	v.value = value
	return nil
}

// SetFree switches a fixed variable to free and back. Derived variables are rejected.
func (v *Variable) SetFree(free bool) error {
	if v.derived() {
		return fmt.Errorf("set %q free: %w", v.name, ErrWrongKind)
	}
	if free {
		v.kind = Free
	} else {
		v.kind = Fixed
	}
	return nil
}

// SetFunction swaps the function reference. The next Evaluate uses it.
func (v *Variable) SetFunction(source funcobj.Source, function string) error {
	if !v.derived() {
		return fmt.Errorf("set function of %q: %w", v.name, ErrWrongKind)
	}
	v.source = source
	v.function = function
	return nil
}

// SetArgs replaces the dependencies of a pickup.
func (v *Variable) SetArgs(args ...*Variable) error {
	if v.kind != Pickup {
		return fmt.Errorf("set args of %q: %w", v.name, ErrWrongKind)
	}
	v.args = args
	return nil
}

// SetExternalArgs replaces the constants of an external variable.
func (v *Variable) SetExternalArgs(args ...any) error {
	if v.kind != External {
		return fmt.Errorf("set args of %q: %w", v.name, ErrWrongKind)
	}
	v.consts = args
	return nil
}

// Evaluate returns the current value. Nothing is cached: pickups walk their
// whole dependency chain on every call.
func (v *Variable) Evaluate() (any, error) {
	return v.evaluate(0)
}

func (v *Variable) evaluate(depth int) (any, error) {
	if depth > MaxDepth {
		return nil, &RecursionError{Name: v.name, Depth: depth}
	}

	switch v.kind {
	case Fixed, Free:
		return v.value, nil

	case Pickup:
		fn, err := v.resolve()
		if err != nil {
			return nil, err
		}
		args := make([]any, len(v.args))
		for i, arg := range v.args {
			if arg == nil {
				return nil, fmt.Errorf("evaluate %q: argument %d is nil", v.name, i)
			}
			// Returned unwrapped so a deep chain does not build a deep error chain.
			val, err := arg.evaluate(depth + 1)
			if err != nil {
				return nil, err
			}
			args[i] = val
		}
		return v.call(fn, args)

	case External:
		fn, err := v.resolve()
		if err != nil {
			return nil, err
		}
		return v.call(fn, v.consts)

	default:
		return nil, fmt.Errorf("evaluate %q: unknown kind %v", v.name, v.kind)
	}
}

func (v *Variable) resolve() (funcobj.Func, error) {
	if v.source == nil {
		return nil, fmt.Errorf("evaluate %q: %w", v.name, &funcobj.LookupError{Name: v.function})
	}
	fn, err := v.source.Get(v.function)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", v.name, err)
	}
	return fn, nil
}

func (v *Variable) call(fn funcobj.Func, args []any) (any, error) {
	out, err := fn(args...)
	if err != nil {
		return nil, fmt.Errorf("evaluate %q: %w", v.name, err)
	}
	return out, nil
}

// Float evaluates the variable and converts the result to float64.
func (v *Variable) Float() (float64, error) {
	val, err := v.Evaluate()
	if err != nil {
		return 0, err
	}
	f, ok := toFloat(val)
	if !ok {
		return 0, &NotNumericError{Name: v.name, Value: val}
	}
	return f, nil
}

func toFloat(val any) (float64, bool) {
	switch x := val.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case int32:
		return float64(x), true
	default:
		return 0, false
	}
}

func (v *Variable) owner() *Container     { return v.parent }
func (v *Variable) setOwner(c *Container) { v.parent = c }

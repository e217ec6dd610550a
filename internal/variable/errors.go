package variable

import (
	"errors"
	"fmt"
)

var (
	// ErrNotSettable is returned by SetValue on pickup and external variables,
	// whose value is always recomputed.
	ErrNotSettable = errors.New("variable is derived and has no settable value")

	// ErrWrongKind is returned when a function reference or argument list is
	// assigned to a fixed or free variable.
	ErrWrongKind = errors.New("operation not supported for this variable kind")

	// ErrContainment is returned when an Add would make a container contain itself.
	ErrContainment = errors.New("container cannot contain itself")
)

// ErrShape is returned when a vector does not match the number of free variables.
// Use errors.Is(err, ErrShape) to check for this error.
var ErrShape = &ShapeError{}

// ErrRecursion is returned when evaluation exceeds MaxDepth, which happens
// when a pickup depends on itself.
var ErrRecursion = &RecursionError{}

// ErrNotNumeric is returned when a numeric value is required but the
// variable holds something else.
var ErrNotNumeric = &NotNumericError{}

// ErrNotFound is returned when a path does not resolve to a child.
var ErrNotFound = &NotFoundError{}

// ShapeError reports a length mismatch between free variables and a value vector.
type ShapeError struct {
	Want int
	Got  int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("shape mismatch: %d free variables, %d values", e.Want, e.Got)
}

func (e *ShapeError) Is(target error) bool {
	_, ok := target.(*ShapeError)
	return ok
}

// RecursionError reports an evaluation chain deeper than MaxDepth.
type RecursionError struct {
	Name  string
	Depth int
}

func (e *RecursionError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("maximum evaluation depth exceeded at %q (depth %d); pickup dependencies are probably cyclic", e.Name, e.Depth)
	}
	return "maximum evaluation depth exceeded"
}

func (e *RecursionError) Is(target error) bool {
	_, ok := target.(*RecursionError)
	return ok
}

// NotNumericError reports a variable whose value cannot be used as a number.
type NotNumericError struct {
	Name  string
	Value any
}

func (e *NotNumericError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("variable %q is not numeric: %v (%T)", e.Name, e.Value, e.Value)
	}
	return "value is not numeric"
}

func (e *NotNumericError) Is(target error) bool {
	_, ok := target.(*NotNumericError)
	return ok
}

// NotFoundError reports a path with no child behind it.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	if e.Path != "" {
		return "no child at path: " + e.Path
	}
	return "no child at path"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}

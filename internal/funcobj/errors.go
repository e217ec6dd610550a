package funcobj

import (
	"fmt"
	"strings"
)

// ErrDefinition is returned when source text does not define every exported name.
// Use errors.Is(err, ErrDefinition) to check for this error.
var ErrDefinition = &DefinitionError{}

// ErrLookup is returned when a name is not exported by a function source.
var ErrLookup = &LookupError{}

// ErrArity is returned when a compiled function is invoked with the wrong number of arguments.
var ErrArity = &ArityError{}

// DefinitionError reports exported names that the source text does not define,
// or a source text that cannot be parsed at all.
type DefinitionError struct {
	Missing []string
	Detail  string
}

func (e *DefinitionError) Error() string {
	switch {
	case len(e.Missing) > 0:
		return "function source does not define: " + strings.Join(e.Missing, ", ")
	case e.Detail != "":
		return "invalid function source: " + e.Detail
	default:
		return "invalid function source"
	}
}

func (e *DefinitionError) Is(target error) bool {
	_, ok := target.(*DefinitionError)
	return ok
}

// LookupError reports a function name that is not exported.
type LookupError struct {
	Name string
}

func (e *LookupError) Error() string {
	if e.Name != "" {
		return "function not exported: " + e.Name
	}
	return "function not exported"
}

func (e *LookupError) Is(target error) bool {
	_, ok := target.(*LookupError)
	return ok
}

// ArityError reports a call with the wrong number of positional arguments.
type ArityError struct {
	Name     string
	Want     int
	Got      int
	Variadic bool
}

func (e *ArityError) Error() string {
	if e.Name == "" {
		return "wrong number of arguments"
	}
	if e.Variadic {
		return fmt.Sprintf("%s: want at least %d arguments, got %d", e.Name, e.Want, e.Got)
	}
	return fmt.Sprintf("%s: want %d arguments, got %d", e.Name, e.Want, e.Got)
}

func (e *ArityError) Is(target error) bool {
	_, ok := target.(*ArityError)
	return ok
}

package funcobj

import (
	"fmt"
	"sort"
	"sync"
)

// Variadic registers a table function that accepts any number of arguments.
const Variadic = -1

// Table is a Source of pre-compiled Go callables registered by name.
// It trades the flexibility of compiled source text for compile-time safety.
type Table struct {
	mu    sync.RWMutex
	funcs map[string]tableEntry
}

type tableEntry struct {
	arity int
	fn    Func
}

// NewTable creates an empty function table.
func NewTable() *Table {
	return &Table{funcs: make(map[string]tableEntry)}
}

// Register adds fn under name. arity is the exact argument count, or Variadic.
func (t *Table) Register(name string, arity int, fn Func) error {
	if name == "" {
		return &DefinitionError{Detail: "function name cannot be empty"}
	}
	if fn == nil {
		return &DefinitionError{Detail: fmt.Sprintf("function %q is nil", name)}
	}
	if arity < Variadic {
		return &DefinitionError{Detail: fmt.Sprintf("function %q has invalid arity %d", name, arity)}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.funcs[name]; exists {
		return &DefinitionError{Detail: fmt.Sprintf("function %q already registered", name)}
	}
	t.funcs[name] = tableEntry{arity: arity, fn: fn}
	return nil
}

// Get returns the function registered under name, with its arity enforced.
func (t *Table) Get(name string) (Func, error) {
	t.mu.RLock()
	entry, ok := t.funcs[name]
	t.mu.RUnlock()

	if !ok {
		return nil, &LookupError{Name: name}
	}

	return func(args ...any) (any, error) {
		if entry.arity != Variadic && len(args) != entry.arity {
			return nil, &ArityError{Name: name, Want: entry.arity, Got: len(args)}
		}
		return entry.fn(args...)
	}, nil
}

// Names returns the registered names in sorted order.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	names := make([]string, 0, len(t.funcs))
	for name := range t.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

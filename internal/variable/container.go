package variable

import (
	"fmt"
	"math"
	"strings"
)

// PathSeparator joins child names into paths, e.g. "lens.surface1.curvature".
const PathSeparator = "."

// Node is a child of a Container: a *Variable or a nested *Container.
type Node interface {
	Name() string
	owner() *Container
	setOwner(*Container)
}

// Container owns named variables and nested containers, forming a tree.
// Children are kept in insertion order; that order defines the layout of the
// free-value vector.
//
// A Container is not safe for concurrent use.
type Container struct {
	name     string
	names    []string
	children map[string]Node
	parent   *Container
}

// NewContainer creates an empty container.
func NewContainer(name string) *Container {
	return &Container{
		name:     name,
		children: make(map[string]Node),
	}
}

// Name returns the diagnostic name.
func (c *Container) Name() string { return c.name }

func (c *Container) owner() *Container     { return c.parent }
func (c *Container) setOwner(p *Container) { c.parent = p }

// Add inserts child under name. An existing occupant is detached and the
// new child takes its position. A child owned by another container is moved.
func (c *Container) Add(name string, child Node) error {
	if name == "" || strings.Contains(name, PathSeparator) {
		return fmt.Errorf("invalid child name %q", name)
	}
	if isNil(child) {
		return fmt.Errorf("add %q: child is nil", name)
	}
	if c.children[name] == child {
		return nil
	}
	if sub, ok := child.(*Container); ok {
		for anc := c; anc != nil; anc = anc.parent {
			if anc == sub {
				return fmt.Errorf("add %q to %q: %w", name, c.name, ErrContainment)
			}
		}
	}

	if prev := child.owner(); prev != nil {
		prev.detach(child)
	}

	if old, exists := c.children[name]; exists {
		old.setOwner(nil)
	} else {
		c.names = append(c.names, name)
	}
	c.children[name] = child
	child.setOwner(c)
	return nil
}

// AddVariable is a shorthand for Add with a variable child.
func (c *Container) AddVariable(name string, v *Variable) (*Variable, error) {
	if err := c.Add(name, v); err != nil {
		return nil, err
	}
	return v, nil
}

// AddContainer creates a nested container under name and returns it.
func (c *Container) AddContainer(name string) (*Container, error) {
	sub := NewContainer(name)
	if err := c.Add(name, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// Remove detaches the child under name. It reports whether there was one.
func (c *Container) Remove(name string) bool {
	child, ok := c.children[name]
	if !ok {
		return false
	}
	c.detach(child)
	return true
}

// isNil also catches typed nil pointers wrapped in a Node.
func isNil(n Node) bool {
	switch x := n.(type) {
	case nil:
		return true
	case *Variable:
		return x == nil
	case *Container:
		return x == nil
	}
	return false
}

func (c *Container) detach(child Node) {
	for i, name := range c.names {
		if c.children[name] == child {
			delete(c.children, name)
			c.names = append(c.names[:i], c.names[i+1:]...)
			child.setOwner(nil)
			return
		}
	}
}

// Names returns child names in insertion order.
func (c *Container) Names() []string {
	return append([]string(nil), c.names...)
}

// Get returns the direct child under name, or nil.
func (c *Container) Get(name string) Node {
	return c.children[name]
}

// Lookup resolves a dotted path relative to c.
func (c *Container) Lookup(path string) (Node, error) {
	parts := strings.Split(path, PathSeparator)
	cur := c
	for i, part := range parts {
		child, ok := cur.children[part]
		if !ok {
			return nil, &NotFoundError{Path: path}
		}
		if i == len(parts)-1 {
			return child, nil
		}
		sub, ok := child.(*Container)
		if !ok {
			return nil, &NotFoundError{Path: path}
		}
		cur = sub
	}
	return nil, &NotFoundError{Path: path}
}

// LookupVariable resolves a dotted path that must end at a variable.
func (c *Container) LookupVariable(path string) (*Variable, error) {
	node, err := c.Lookup(path)
	if err != nil {
		return nil, err
	}
	v, ok := node.(*Variable)
	if !ok {
		return nil, fmt.Errorf("%q is a container, not a variable", path)
	}
	return v, nil
}

// Walk visits every variable depth first, children in insertion order,
// passing the dotted path relative to c. A non-nil error from fn stops the walk.
func (c *Container) Walk(fn func(path string, v *Variable) error) error {
	return c.walk("", fn)
}

func (c *Container) walk(prefix string, fn func(string, *Variable) error) error {
	for _, name := range c.names {
		path := prefix + name
		switch child := c.children[name].(type) {
		case *Variable:
			if err := fn(path, child); err != nil {
				return err
			}
		case *Container:
			if err := child.walk(path+PathSeparator, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// CollectFree returns all free variables in Walk order. The order is stable
// for an unmodified tree and is the layout used by FreeValues and SetFreeValues.
func (c *Container) CollectFree() []*Variable {
	var free []*Variable
	c.Walk(func(_ string, v *Variable) error {
		if v.kind == Free {
			free = append(free, v)
		}
		return nil
	})
	return free
}

// FreePaths returns the paths of the variables CollectFree returns, in the same order.
func (c *Container) FreePaths() []string {
	var paths []string
	c.Walk(func(path string, v *Variable) error {
		if v.kind == Free {
			paths = append(paths, path)
		}
		return nil
	})
	return paths
}

// FreeValues returns the literals of the free variables as a flat vector.
func (c *Container) FreeValues() ([]float64, error) {
	free := c.CollectFree()
	x := make([]float64, len(free))
	for i, v := range free {
		f, ok := toFloat(v.value)
		if !ok {
			return nil, &NotNumericError{Name: v.name, Value: v.value}
		}
		x[i] = f
	}
	return x, nil
}

// SetFreeValues writes x back into the free variables, in CollectFree order.
// Nothing is written if the length does not match.
func (c *Container) SetFreeValues(x []float64) error {
	free := c.CollectFree()
	if len(x) != len(free) {
		return &ShapeError{Want: len(free), Got: len(x)}
	}
	for i, v := range free {
		v.value = like(v.value, x[i])
	}
	return nil
}

// like returns x in the numeric type of old when it fits without loss, so
// writing back FreeValues leaves every literal as it was.
func like(old any, x float64) any {
	switch old.(type) {
	case float32:
		if float64(float32(x)) == x {
			return float32(x)
		}
	case int:
		if x == math.Trunc(x) && x >= math.MinInt64 && x < math.MaxInt64 {
			return int(x)
		}
	case int64:
		if x == math.Trunc(x) && x >= math.MinInt64 && x < math.MaxInt64 {
			return int64(x)
		}
	case int32:
		if x == math.Trunc(x) && x >= math.MinInt32 && x <= math.MaxInt32 {
			return int32(x)
		}
	}
	return x
}

// Entry is one evaluated variable of a Snapshot.
type Entry struct {
	Path  string
	Kind  Kind
	Value any
}

// Snapshot evaluates every variable of the tree in Walk order.
func (c *Container) Snapshot() ([]Entry, error) {
	var entries []Entry
	err := c.Walk(func(path string, v *Variable) error {
		val, err := v.Evaluate()
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		entries = append(entries, Entry{Path: path, Kind: v.kind, Value: val})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

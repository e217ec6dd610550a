// Package problem loads optimization problems described in HCL.
//
// A problem file declares the variable tree, the functions its pickups call,
// a merit expression and the backend to run:
//
//	function "radius2" {
//	  params = [x, y]
//	  result = x*x + y*y
//	}
//
//	variable "X" {
//	  value = 3
//	  free  = true
//	}
//
//	pickup "Z" {
//	  function = "radius2"
//	  args     = ["X", "Y"]
//	}
//
//	merit = pow(Z - 25, 2)
//
//	backend "gonum" {
//	  method = "Nelder-Mead"
//	}
package problem

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cwbudde/varopt/internal/funcobj"
	"github.com/cwbudde/varopt/internal/opt"
	"github.com/cwbudde/varopt/internal/optimize"
	"github.com/cwbudde/varopt/internal/variable"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty/function"
)

// Problem is a decoded problem file.
type Problem struct {
	Name string
	Path string

	// Root holds every declared value in declaration order.
	Root *variable.Container

	// Functions are the user functions defined in the file.
	Functions *funcobj.FunctionObject

	BackendKind    string
	BackendOptions opt.Options

	merit hcl.Expression
	funcs map[string]function.Function
}

// Load reads and decodes the problem file at path.
func Load(path string) (*Problem, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read problem file: %w", err)
	}
	p, err := Parse(src, path)
	if err != nil {
		return nil, err
	}
	p.Path = path
	return p, nil
}

// Parse decodes problem source. filename is used for diagnostics and to name
// the root container.
func Parse(src []byte, filename string) (*Problem, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse problem %s: %w", filename, diags)
	}

	fo, remain, diags := funcobj.Decode(string(src), file.Body)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode functions in %s: %w", filename, diags)
	}

	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	p := &Problem{
		Name:        name,
		Root:        variable.NewContainer(name),
		Functions:   fo,
		BackendKind: opt.KindGonum,
		funcs:       evalFunctions(fo),
	}

	d := &decoder{problem: p}
	if diags := d.decodeRoot(remain); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode problem %s: %w", filename, diags)
	}
	return p, nil
}

// Backend builds the backend declared by the problem.
func (p *Problem) Backend() (opt.Backend, error) {
	return opt.FromConfig(p.BackendKind, p.BackendOptions)
}

// Optimizer returns an optimizer over Root using the problem's merit and
// declared backend.
func (p *Problem) Optimizer() (*optimize.Optimizer, error) {
	backend, err := p.Backend()
	if err != nil {
		return nil, err
	}
	return optimize.New(p.Name, p.Root, p.Merit, backend), nil
}

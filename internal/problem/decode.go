package problem

import (
	"fmt"

	"github.com/cwbudde/varopt/internal/funcobj"
	"github.com/cwbudde/varopt/internal/opt"
	"github.com/cwbudde/varopt/internal/variable"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/zclconf/go-cty/cty"
)

var valueBlocks = []hcl.BlockHeaderSchema{
	{Type: "variable", LabelNames: []string{"name"}},
	{Type: "pickup", LabelNames: []string{"name"}},
	{Type: "external", LabelNames: []string{"name"}},
	{Type: "group", LabelNames: []string{"name"}},
}

var rootSchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: "merit", Required: true},
	},
	Blocks: append([]hcl.BlockHeaderSchema{
		{Type: "backend", LabelNames: []string{"kind"}},
	}, valueBlocks...),
}

var groupSchema = &hcl.BodySchema{Blocks: valueBlocks}

type variableBlock struct {
	Value cty.Value `hcl:"value"`
	Free  bool      `hcl:"free,optional"`
}

type pickupBlock struct {
	Function string   `hcl:"function"`
	Args     []string `hcl:"args,optional"`
}

type externalBlock struct {
	Function string    `hcl:"function"`
	Args     cty.Value `hcl:"args,optional"`
}

// pendingPickup is a pickup whose argument paths are resolved once the whole
// tree exists.
type pendingPickup struct {
	v     *variable.Variable
	paths []string
	rng   hcl.Range
}

type decoder struct {
	problem *Problem
	pending []pendingPickup
}

func (d *decoder) evalContext() *hcl.EvalContext {
	return &hcl.EvalContext{Functions: d.problem.funcs}
}

func (d *decoder) decodeRoot(body hcl.Body) hcl.Diagnostics {
	content, diags := body.Content(rootSchema)
	if diags.HasErrors() {
		return diags
	}

	d.problem.merit = content.Attributes["merit"].Expr

	var backends hcl.Blocks
	var values hcl.Blocks
	for _, block := range content.Blocks {
		if block.Type == "backend" {
			backends = append(backends, block)
		} else {
			values = append(values, block)
		}
	}

	diags = append(diags, d.decodeBackend(backends)...)
	diags = append(diags, d.decodeValues(d.problem.Root, values)...)
	if diags.HasErrors() {
		return diags
	}
	return append(diags, d.resolvePickups()...)
}

func (d *decoder) decodeBackend(blocks hcl.Blocks) hcl.Diagnostics {
	if len(blocks) == 0 {
		return nil
	}
	if len(blocks) > 1 {
		return hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Duplicate backend block",
			Detail:   fmt.Sprintf("Only one backend may be declared; another was declared at %s.", blocks[0].DefRange),
			Subject:  &blocks[1].DefRange,
		}}
	}

	block := blocks[0]
	attrs, diags := block.Body.JustAttributes()
	if diags.HasErrors() {
		return diags
	}

	options := opt.Options{}
	for name, attr := range attrs {
		val, valDiags := attr.Expr.Value(d.evalContext())
		diags = append(diags, valDiags...)
		if valDiags.HasErrors() {
			continue
		}
		native, err := funcobj.FromCty(val)
		if err != nil {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid backend option",
				Detail:   fmt.Sprintf("Option %q: %s.", name, err),
				Subject:  &attr.Range,
			})
			continue
		}
		options[name] = native
	}

	d.problem.BackendKind = block.Labels[0]
	d.problem.BackendOptions = options
	return diags
}

func (d *decoder) decodeValues(c *variable.Container, blocks hcl.Blocks) hcl.Diagnostics {
	var diags hcl.Diagnostics
	for _, block := range blocks {
		name := block.Labels[0]
		if c.Get(name) != nil {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate name",
				Detail:   fmt.Sprintf("%q is already declared in %q.", name, c.Name()),
				Subject:  &block.LabelRanges[0],
			})
			continue
		}

		var node variable.Node
		var blockDiags hcl.Diagnostics
		switch block.Type {
		case "variable":
			node, blockDiags = d.decodeVariable(name, block)
		case "pickup":
			node, blockDiags = d.decodePickup(name, block)
		case "external":
			node, blockDiags = d.decodeExternal(name, block)
		case "group":
			node, blockDiags = d.decodeGroup(name, block)
		}
		diags = append(diags, blockDiags...)
		if blockDiags.HasErrors() {
			continue
		}

		if err := c.Add(name, node); err != nil {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid name",
				Detail:   err.Error(),
				Subject:  &block.LabelRanges[0],
			})
		}
	}
	return diags
}

func (d *decoder) decodeVariable(name string, block *hcl.Block) (variable.Node, hcl.Diagnostics) {
	var vb variableBlock
	diags := gohcl.DecodeBody(block.Body, d.evalContext(), &vb)
	if diags.HasErrors() {
		return nil, diags
	}

	value, err := funcobj.FromCty(vb.Value)
	if err != nil {
		return nil, append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Invalid value",
			Detail:   err.Error(),
			Subject:  &block.DefRange,
		})
	}

	if !vb.Free {
		return variable.NewFixed(name, value), diags
	}
	if _, ok := value.(float64); !ok {
		return nil, append(diags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "Free value is not numeric",
			Detail:   fmt.Sprintf("Free variable %q must start from a number, got %T.", name, value),
			Subject:  &block.DefRange,
		})
	}
	return variable.NewFree(name, value), diags
}

func (d *decoder) decodePickup(name string, block *hcl.Block) (variable.Node, hcl.Diagnostics) {
	var pb pickupBlock
	diags := gohcl.DecodeBody(block.Body, d.evalContext(), &pb)
	if diags.HasErrors() {
		return nil, diags
	}
	if diags := d.checkFunction(pb.Function, block); diags.HasErrors() {
		return nil, diags
	}

	v := variable.NewPickup(name, d.problem.Functions, pb.Function)
	d.pending = append(d.pending, pendingPickup{v: v, paths: pb.Args, rng: block.DefRange})
	return v, diags
}

func (d *decoder) decodeExternal(name string, block *hcl.Block) (variable.Node, hcl.Diagnostics) {
	var eb externalBlock
	diags := gohcl.DecodeBody(block.Body, d.evalContext(), &eb)
	if diags.HasErrors() {
		return nil, diags
	}
	if diags := d.checkFunction(eb.Function, block); diags.HasErrors() {
		return nil, diags
	}

	var args []any
	if !eb.Args.IsNull() {
		native, err := funcobj.FromCty(eb.Args)
		list, ok := native.([]any)
		if err != nil || !ok {
			return nil, append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid external arguments",
				Detail:   "The args attribute must be a list of constants.",
				Subject:  &block.DefRange,
			})
		}
		args = list
	}
	return variable.NewExternal(name, d.problem.Functions, eb.Function, args...), diags
}

func (d *decoder) decodeGroup(name string, block *hcl.Block) (variable.Node, hcl.Diagnostics) {
	content, diags := block.Body.Content(groupSchema)
	if diags.HasErrors() {
		return nil, diags
	}
	group := variable.NewContainer(name)
	return group, append(diags, d.decodeValues(group, content.Blocks)...)
}

func (d *decoder) checkFunction(name string, block *hcl.Block) hcl.Diagnostics {
	if _, err := d.problem.Functions.Get(name); err != nil {
		return hcl.Diagnostics{{
			Severity: hcl.DiagError,
			Summary:  "Unknown function",
			Detail:   err.Error(),
			Subject:  &block.DefRange,
		}}
	}
	return nil
}

func (d *decoder) resolvePickups() hcl.Diagnostics {
	var diags hcl.Diagnostics
	for _, p := range d.pending {
		args := make([]*variable.Variable, 0, len(p.paths))
		for _, path := range p.paths {
			arg, err := d.problem.Root.LookupVariable(path)
			if err != nil {
				rng := p.rng
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Unresolved pickup argument",
					Detail:   fmt.Sprintf("Pickup %q: %s.", p.v.Name(), err),
					Subject:  &rng,
				})
				continue
			}
			args = append(args, arg)
		}
		if err := p.v.SetArgs(args...); err != nil {
			rng := p.rng
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Invalid pickup",
				Detail:   err.Error(),
				Subject:  &rng,
			})
		}
	}
	return diags
}

package model

import (
	"github.com/gomlx/onnx-inline/ir"
	"github.com/pkg/errors"
)

// BlockBuilder builds a subgraph: a branch of If or the body of Loop.
//
// It has every operator emitter of FunctionBuilder and shares its parent's name
// scope: names it generates never collide with the parent's, and its nodes may
// read the parent's values directly.
type BlockBuilder struct {
	*FunctionBuilder
}

// NewBlockBuilder creates a block builder nested in b.
func (b *FunctionBuilder) NewBlockBuilder(name string) *BlockBuilder {
	return &BlockBuilder{
		FunctionBuilder: &FunctionBuilder{
			fn:     &ir.Function{Name: name},
			names:  b.names,
			logger: b.logger,
		},
	}
}

// BlockInput declares a new input of the block and returns its generated name.
func (bb *BlockBuilder) BlockInput(prefix string) string {
	name := bb.genName(prefix)
	bb.fn.Inputs = append(bb.fn.Inputs, name)
	return name
}

// graph returns the block as a graph with the given outputs. Outputs not computed
// inside the block are copied through Identity nodes.
func (bb *BlockBuilder) graph(outputs []string) *ir.Graph {
	g := ir.NewGraph(bb.fn.Name)
	g.Inputs = append(g.Inputs, bb.fn.Inputs...)
	local := make(map[string]bool)
	for _, in := range bb.fn.Inputs {
		local[in] = true
	}
	for _, n := range bb.fn.Nodes {
		for _, out := range n.Outputs {
			local[out] = true
		}
	}
	for _, out := range outputs {
		if !local[out] {
			out = bb.Identity(out)
		}
		g.Outputs = append(g.Outputs, out)
	}
	for _, n := range bb.fn.Nodes {
		g.AddNode(n)
	}
	return g
}

// BranchFunc builds one branch of If and returns the branch outputs.
type BranchFunc func(bb *BlockBuilder) []string

// LoopBodyFunc builds the body of Loop. It receives the iteration number, the
// incoming condition and the loop-carried values, and returns the condition for
// the next iteration and the updated loop-carried values.
type LoopBodyFunc func(bb *BlockBuilder, iter, cond string, vars []string) (condOut string, next []string)

// If executes one of two branches depending on the boolean scalar cond.
//
// Both branches must return the same number of outputs, at least one.
// Returns the outputs of the executed branch.
//
// Example:
//
//	result := b.If(pred,
//	    func(bb *model.BlockBuilder) []string { return []string{bb.Add(x, y)} },
//	    func(bb *model.BlockBuilder) []string { return []string{bb.Mul(x, y)} },
//	)
func (b *FunctionBuilder) If(cond string, thenFn, elseFn BranchFunc) []string {
	if b.err != nil {
		return nil
	}
	thenBlock := b.NewBlockBuilder(b.genName("then_branch"))
	thenOutputs := thenFn(thenBlock)
	if err := thenBlock.Err(); err != nil {
		b.setErr(errors.WithMessage(err, "If then branch"))
		return nil
	}
	elseBlock := b.NewBlockBuilder(b.genName("else_branch"))
	elseOutputs := elseFn(elseBlock)
	if err := elseBlock.Err(); err != nil {
		b.setErr(errors.WithMessage(err, "If else branch"))
		return nil
	}
	if len(thenOutputs) != len(elseOutputs) {
		b.setErr(errors.Errorf("function %s: If then branch has %d outputs but else branch has %d",
			b.fn.Name, len(thenOutputs), len(elseOutputs)))
		return nil
	}
	if len(thenOutputs) == 0 {
		b.setErr(errors.Errorf("function %s: If branches have no outputs", b.fn.Name))
		return nil
	}

	thenGraph := thenBlock.graph(thenOutputs)
	elseGraph := elseBlock.graph(elseOutputs)
	outputs := make([]string, len(thenOutputs))
	for i := range outputs {
		outputs[i] = b.genName("if_out")
	}
	b.AddNode(ir.NewNode("If", []string{cond}, outputs,
		ir.GraphAttr("then_branch", thenGraph),
		ir.GraphAttr("else_branch", elseGraph)))
	return outputs
}

// Loop runs bodyFn up to maxTrip times while cond holds, threading vars through
// the iterations. maxTrip and cond may each be empty, but not both.
//
// Returns the final values of vars.
//
// Example:
//
//	// Sum the numbers from 0 to 9.
//	n := b.ConstInt64s(10)
//	zero := b.ConstValue(ir.MustTensor("", nil, []int64{0}))
//	sum := b.Loop(n, "", []string{zero},
//	    func(bb *model.BlockBuilder, iter, cond string, vars []string) (string, []string) {
//	        return bb.Identity(cond), []string{bb.Add(vars[0], iter)}
//	    },
//	)[0]
func (b *FunctionBuilder) Loop(maxTrip, cond string, vars []string, bodyFn LoopBodyFunc) []string {
	if b.err != nil {
		return nil
	}
	if len(vars) == 0 {
		b.setErr(errors.Errorf("function %s: Loop requires at least one loop-carried value", b.fn.Name))
		return nil
	}
	if maxTrip == "" && cond == "" {
		b.setErr(errors.Errorf("function %s: Loop without trip count nor condition never ends", b.fn.Name))
		return nil
	}

	body := b.NewBlockBuilder(b.genName("loop_body"))
	iter := body.BlockInput("iter")
	condIn := body.BlockInput("cond_in")
	bodyVars := make([]string, len(vars))
	for i := range vars {
		bodyVars[i] = body.BlockInput("loop_var")
	}
	condOut, next := bodyFn(body, iter, condIn, bodyVars)
	if err := body.Err(); err != nil {
		b.setErr(errors.WithMessage(err, "Loop body"))
		return nil
	}
	if condOut == "" {
		b.setErr(errors.Errorf("function %s: Loop body must return a condition", b.fn.Name))
		return nil
	}
	if len(next) != len(vars) {
		b.setErr(errors.Errorf("function %s: Loop body must return %d loop-carried values, got %d",
			b.fn.Name, len(vars), len(next)))
		return nil
	}

	bodyGraph := body.graph(append([]string{condOut}, next...))
	outputs := make([]string, len(vars))
	for i := range outputs {
		outputs[i] = b.genName("loop_out")
	}
	inputs := append([]string{maxTrip, cond}, vars...)
	b.AddNode(ir.NewNode("Loop", inputs, outputs, ir.GraphAttr("body", bodyGraph)))
	return outputs
}

// Package model provides a fluent API for constructing ONNX functions.
//
// A FunctionBuilder accumulates nodes, either defined one by one or spliced in
// from an existing graph with AddInlinedCall, and the opset imports they rely on.
//
// Example usage:
//
//	b := model.NewFunctionBuilder("Softplus1", "custom").
//		Inputs("X").Outputs("Y").
//		AddOpset("", 18)
//	b.Const("one", ir.MustTensor("one", nil, []float32{1}))
//	b.Node("Exp", []string{"X"}, []string{"e"})
//	b.Node("Add", []string{"e", "one"}, []string{"s"})
//	b.Node("Log", []string{"s"}, []string{"Y"})
//	fn, err := b.Build()
//
// The operator helpers generate the names of intermediate values:
//
//	b := model.NewFunctionBuilder("Softplus1", "custom").Inputs("X").AddOpset("", 18)
//	one := b.ConstValue(ir.MustTensor("", nil, []float32{1}))
//	b.Output(b.Log(b.Add(b.Exp("X"), one)), "Y")
package model

import (
	"fmt"

	"github.com/gomlx/onnx-inline/ir"
	"github.com/gomlx/onnx-inline/schema"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ConstantOpType is the operator emitted for constants and spliced initializers.
const ConstantOpType = "Constant"

// ErrNotInlinable is returned by AddInlinedCall when there is no graph to splice.
var ErrNotInlinable = errors.New("graph not inlinable")

// FunctionBuilder constructs an ir.Function.
//
// Errors are sticky: the first one is recorded, later calls become no-ops, and
// Build returns it.
type FunctionBuilder struct {
	fn     *ir.Function
	names  map[string]struct{}
	nextID int
	err    error // first error encountered during building
	logger *zap.Logger
}

// NewFunctionBuilder creates a builder for function name in domain.
func NewFunctionBuilder(name, domain string) *FunctionBuilder {
	return &FunctionBuilder{
		fn:     &ir.Function{Name: name, Domain: domain},
		names:  make(map[string]struct{}),
		logger: zap.NewNop(),
	}
}

// WithLogger sets the logger used to report splices. nil disables logging.
func (b *FunctionBuilder) WithLogger(logger *zap.Logger) *FunctionBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	b.logger = logger
	return b
}

// Err returns the first error encountered during building, if any.
func (b *FunctionBuilder) Err() error {
	return b.err
}

// setErr records the first error encountered.
func (b *FunctionBuilder) setErr(err error) {
	if b.err == nil {
		b.err = err
	}
}

// use marks names as taken in the function.
func (b *FunctionBuilder) use(names ...string) {
	for _, name := range names {
		if name != "" {
			b.names[name] = struct{}{}
		}
	}
}

// genName generates a name for an intermediate value not yet used in the function.
func (b *FunctionBuilder) genName(prefix string) string {
	for {
		name := fmt.Sprintf("%s_%d", prefix, b.nextID)
		b.nextID++
		if _, used := b.names[name]; !used {
			b.use(name)
			return name
		}
	}
}

// Inputs appends formal inputs.
func (b *FunctionBuilder) Inputs(names ...string) *FunctionBuilder {
	b.fn.Inputs = append(b.fn.Inputs, names...)
	b.use(names...)
	return b
}

// Outputs appends formal outputs.
func (b *FunctionBuilder) Outputs(names ...string) *FunctionBuilder {
	b.fn.Outputs = append(b.fn.Outputs, names...)
	b.use(names...)
	return b
}

// Attributes declares formal attributes without default values.
func (b *FunctionBuilder) Attributes(names ...string) *FunctionBuilder {
	b.fn.Attributes = append(b.fn.Attributes, names...)
	return b
}

// AddOpset declares that the function relies on version of domain.
func (b *FunctionBuilder) AddOpset(domain string, version int64) *FunctionBuilder {
	b.fn.OpsetImports = append(b.fn.OpsetImports, ir.OpsetID{Domain: domain, Version: version})
	return b
}

// AddNode appends n to the body. The builder takes ownership of n.
func (b *FunctionBuilder) AddNode(n *ir.Node) *FunctionBuilder {
	if b.err != nil {
		return b
	}
	if n.OpType == "" {
		b.setErr(errors.Errorf("function %s: node %d has no op type", b.fn.Name, len(b.fn.Nodes)))
		return b
	}
	b.use(n.Inputs...)
	b.use(n.Outputs...)
	b.fn.Nodes = append(b.fn.Nodes, n)
	return b
}

// Node appends a node of the default domain.
func (b *FunctionBuilder) Node(opType string, inputs, outputs []string, attrs ...*ir.Attribute) *FunctionBuilder {
	return b.AddNode(ir.NewNode(opType, inputs, outputs, attrs...))
}

// Const appends a Constant node producing value under name. An empty name gets
// a generated one. The tensor is copied.
func (b *FunctionBuilder) Const(name string, value *ir.Tensor) *FunctionBuilder {
	if value == nil {
		b.setErr(errors.Errorf("function %s: Const(%q) without a value", b.fn.Name, name))
		return b
	}
	if name == "" {
		name = b.genName("const")
	}
	t := value.Clone()
	t.Name = name
	return b.AddNode(&ir.Node{
		OpType:     ConstantOpType,
		Outputs:    []string{name},
		Attributes: []*ir.Attribute{ir.TensorAttr("value", t)},
	})
}

// AddInlinedCall splices graph into the function under construction.
//
// The graph's declared inputs and outputs are bound in order to inputs and outputs;
// declarations beyond the given names stay unbound. Each initializer becomes a
// Constant node under a fresh name derived from prefix. Every other name of the
// graph is renamed to prefix+name, made unique against the names the function
// already uses. The graph itself is not modified.
//
// Constants are appended first, in initializer order, then the graph's nodes in
// document order.
func (b *FunctionBuilder) AddInlinedCall(outputs []string, graph *ir.Graph, inputs []string, prefix string) *FunctionBuilder {
	if b.err != nil {
		return b
	}
	if graph == nil {
		b.setErr(errors.Wrapf(ErrNotInlinable, "function %s: AddInlinedCall(prefix=%q) without a graph", b.fn.Name, prefix))
		return b
	}
	renamer := NewRenamer(prefix, b.names)

	for i, formal := range graph.Inputs {
		if i >= len(inputs) {
			break
		}
		renamer.BindName(formal, inputs[i])
	}
	for i, formal := range graph.Outputs {
		if i >= len(outputs) {
			break
		}
		renamer.BindName(formal, outputs[i])
	}

	for _, initializer := range graph.Initializers {
		b.Const(renamer.BindToUniqueName(initializer.Name), initializer)
	}

	for _, n := range graph.Nodes() {
		c := n.Clone()
		renamer.RenameNode(c)
		b.AddNode(c)
	}

	b.logger.Debug("spliced graph into function",
		zap.String("function", b.fn.Name),
		zap.String("graph", graph.Name),
		zap.String("prefix", prefix),
		zap.Int("constants", len(graph.Initializers)),
		zap.Int("nodes", graph.NumNodes()))
	return b
}

// Build returns the function, or the first error encountered.
// The builder must not be used afterwards.
func (b *FunctionBuilder) Build() (*ir.Function, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.fn, nil
}

// BuildFor is like Build, but first populates the function's metadata from s.
// The builder's name, domain and formal interface are replaced by the schema's.
func (b *FunctionBuilder) BuildFor(s *schema.OpSchema) (*ir.Function, error) {
	if b.err != nil {
		return nil, b.err
	}
	s.BuildFunction(b.fn)
	return b.fn, nil
}

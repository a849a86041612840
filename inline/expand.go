// Package inline expands calls to ONNX functions into the nodes of the function
// body.
//
// An Expander binds the call site's inputs, outputs and attributes to the
// function's formal interface, resolves attribute defaults through an operator
// schema Source, and instantiates a renamed copy of the body. Values internal to
// the body get names unique to the call site, so expanding the same function
// several times into one graph never aliases values.
//
// Example:
//
//	e := inline.NewExpander(registry)
//	err := e.Expand(callNode, fn, dstGraph)
package inline

import (
	"github.com/gomlx/onnx-inline/ir"
	"github.com/gomlx/onnx-inline/schema"
	"go.uber.org/zap"
)

// DefaultRecursionLimit bounds the nesting of function calls in InlineGraph.
const DefaultRecursionLimit = 32

// Expander expands function call sites. It holds no per-expansion state besides
// its TokenSource, so one Expander may serve concurrent expansions into disjoint
// destinations.
type Expander struct {
	schemas        schema.Source
	tokens         TokenSource
	names          NameGenerator
	logger         *zap.Logger
	recursionLimit int
}

// Option configures an Expander.
type Option func(*Expander)

// WithTokenSource sets the source of call-site tokens. Default: a fresh Counter.
func WithTokenSource(tokens TokenSource) Option {
	return func(e *Expander) {
		e.tokens = tokens
	}
}

// WithNameTag sets the reserved prefix of generated internal names.
func WithNameTag(tag string) Option {
	return func(e *Expander) {
		e.names.Tag = tag
	}
}

// WithLogger sets the logger. Default: no logging.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Expander) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithRecursionLimit bounds nested function expansion in InlineGraph.
func WithRecursionLimit(limit int) Option {
	return func(e *Expander) {
		e.recursionLimit = limit
	}
}

// NewExpander creates an Expander consulting schemas for attribute defaults.
func NewExpander(schemas schema.Source, opts ...Option) *Expander {
	e := &Expander{
		schemas:        schemas,
		tokens:         &Counter{},
		names:          NameGenerator{Tag: DefaultNameTag},
		logger:         zap.NewNop(),
		recursionLimit: DefaultRecursionLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Expand appends to dst the body of fn instantiated for call.
//
// Errors (test with errors.Is): ErrBindingOutOfRange, ErrUnresolvedOpsetImport,
// ErrSchemaNotFound. On error nothing is appended to dst.
func (e *Expander) Expand(call *ir.Node, fn *ir.Function, dst *ir.Graph) error {
	return e.ExpandWithPrefix(call, fn, dst, "")
}

// ExpandWithPrefix is like Expand, but an unnamed call site is identified by
// fn.Name+prefix instead of a fresh token. The caller is responsible for using
// distinct prefixes for distinct call sites.
func (e *Expander) ExpandWithPrefix(call *ir.Node, fn *ir.Function, dst *ir.Graph, prefix string) error {
	b, err := e.bind(call, fn, prefix)
	if err != nil {
		return err
	}
	for _, n := range e.Instantiate(b, fn) {
		dst.AddNode(n)
	}
	return nil
}

// Instantiate returns fresh copies of fn's body nodes with names and attributes
// rewritten according to b.
//
// Names bound in b become the actual names, empty names (omitted optional inputs)
// stay empty, and every other name is replaced by the generated internal name.
// Node names are scoped the same way, so a named call in the body gets a distinct
// identity per call site. Attribute references resolve to b.Attrs under the
// referencing attribute's own name, or are dropped when b.Attrs has no entry.
// Graph-valued attributes are rewritten through the same scope.
func (e *Expander) Instantiate(b *Binding, fn *ir.Function) []*ir.Node {
	nodes := make([]*ir.Node, 0, len(fn.Nodes))
	for _, bodyNode := range fn.Nodes {
		nodes = append(nodes, e.instantiateNode(b, bodyNode))
	}

	e.logger.Debug("instantiated function body",
		zap.String("function", fn.Name),
		zap.String("domain", fn.Domain),
		zap.String("call", b.CallName),
		zap.Int64("opset_version", b.Version),
		zap.Int("nodes", len(nodes)))
	return nodes
}

// rename maps a body name to its name at the call site.
func (e *Expander) rename(b *Binding, name string) string {
	if name == "" {
		return ""
	}
	if actual, ok := b.Names[name]; ok {
		return actual
	}
	return e.names.Name(b.CallName, name)
}

func (e *Expander) instantiateNode(b *Binding, bodyNode *ir.Node) *ir.Node {
	n := bodyNode.CloneHeader()
	if bodyNode.Name != "" {
		n.Name = e.names.Name(b.CallName, bodyNode.Name)
	}
	n.Inputs = make([]string, len(bodyNode.Inputs))
	for i, in := range bodyNode.Inputs {
		n.Inputs[i] = e.rename(b, in)
	}
	n.Outputs = make([]string, len(bodyNode.Outputs))
	for i, out := range bodyNode.Outputs {
		n.Outputs[i] = e.rename(b, out)
	}
	for _, attr := range bodyNode.Attributes {
		if !attr.IsRef() {
			c := &ir.Attribute{Name: attr.Name, Doc: attr.Doc, Value: attr.Value.Clone()}
			if attr.Value.G != nil {
				c.Value.G = e.instantiateGraph(b, attr.Value.G)
			}
			for i, g := range attr.Value.Graphs {
				c.Value.Graphs[i] = e.instantiateGraph(b, g)
			}
			n.Attributes = append(n.Attributes, c)
			continue
		}
		value, ok := b.Attrs[attr.Ref]
		if !ok {
			// Unset: the invoked operator's own default applies.
			continue
		}
		resolved := ir.Literal(attr.Name, value)
		resolved.Doc = attr.Doc
		n.Attributes = append(n.Attributes, resolved)
	}
	return n
}

// instantiateGraph returns a copy of a subgraph of the body renamed through b.
// Names shared with the body keep referring to the same values.
func (e *Expander) instantiateGraph(b *Binding, g *ir.Graph) *ir.Graph {
	out := ir.NewGraph(g.Name)
	out.Doc = g.Doc
	for _, in := range g.Inputs {
		out.Inputs = append(out.Inputs, e.rename(b, in))
	}
	for _, o := range g.Outputs {
		out.Outputs = append(out.Outputs, e.rename(b, o))
	}
	for _, t := range g.Initializers {
		c := t.Clone()
		c.Name = e.rename(b, t.Name)
		out.Initializers = append(out.Initializers, c)
	}
	for _, n := range g.Nodes() {
		out.AddNode(e.instantiateNode(b, n))
	}
	return out
}

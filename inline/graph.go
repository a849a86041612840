package inline

import (
	"context"

	"github.com/gomlx/onnx-inline/ir"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// InlineGraph returns a copy of g in which every node calling a function of lib
// is replaced by the function's expansion. Calls appearing inside expanded bodies
// and inside graph-valued attributes (If branches, Loop bodies) are expanded as
// well, up to the recursion limit. g itself is not modified.
func (e *Expander) InlineGraph(g *ir.Graph, lib *ir.Library) (*ir.Graph, error) {
	out, expanded, err := e.inlineGraph(g, lib, 0)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("inlined graph",
		zap.String("graph", g.Name),
		zap.Int("calls_expanded", expanded),
		zap.Int("nodes", out.NumNodes()))
	return out, nil
}

func (e *Expander) inlineGraph(g *ir.Graph, lib *ir.Library, depth int) (*ir.Graph, int, error) {
	out := g.CloneHeader()
	expanded := 0
	for _, n := range g.Nodes() {
		count, err := e.inlineNode(n, lib, out, depth)
		if err != nil {
			return nil, 0, errors.WithMessagef(err, "inlining graph %q", g.Name)
		}
		expanded += count
	}
	return out, expanded, nil
}

// inlineNode appends n, or its recursive expansion, to dst. It returns the number of
// call sites expanded.
func (e *Expander) inlineNode(n *ir.Node, lib *ir.Library, dst *ir.Graph, depth int) (int, error) {
	fn, ok := lib.Lookup(n.Domain, n.OpType)
	if !ok {
		return e.inlineSubgraphs(n, lib, dst, depth)
	}
	if depth >= e.recursionLimit {
		return 0, errors.Wrapf(ErrRecursionLimit, "expanding %s.%s at depth %d", n.Domain, n.OpType, depth)
	}
	b, err := e.Bind(n, fn)
	if err != nil {
		return 0, err
	}
	count := 1
	for _, bodyNode := range e.Instantiate(b, fn) {
		c, err := e.inlineNode(bodyNode, lib, dst, depth+1)
		if err != nil {
			return 0, err
		}
		count += c
	}
	return count, nil
}

// inlineSubgraphs appends a copy of n whose graph-valued attributes have their
// calls expanded.
func (e *Expander) inlineSubgraphs(n *ir.Node, lib *ir.Library, dst *ir.Graph, depth int) (int, error) {
	c := n.Clone()
	count := 0
	for _, attr := range c.Attributes {
		if attr.Value.G != nil {
			g, expanded, err := e.inlineGraph(attr.Value.G, lib, depth)
			if err != nil {
				return 0, errors.WithMessagef(err, "attribute %s of %s", attr.Name, n)
			}
			attr.Value.G = g
			count += expanded
		}
		for i, sub := range attr.Value.Graphs {
			g, expanded, err := e.inlineGraph(sub, lib, depth)
			if err != nil {
				return 0, errors.WithMessagef(err, "attribute %s[%d] of %s", attr.Name, i, n)
			}
			attr.Value.Graphs[i] = g
			count += expanded
		}
	}
	dst.AddNode(c)
	return count, nil
}

// InlineGraphs inlines each graph concurrently, using at most parallelism
// goroutines (unbounded if parallelism <= 0). The graphs are only read; results
// are returned in the same order. The first error cancels the remaining work.
func (e *Expander) InlineGraphs(ctx context.Context, graphs []*ir.Graph, lib *ir.Library, parallelism int) ([]*ir.Graph, error) {
	results := make([]*ir.Graph, len(graphs))
	eg, ctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		eg.SetLimit(parallelism)
	}
	for i, g := range graphs {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out, err := e.InlineGraph(g, lib)
			if err != nil {
				return err
			}
			results[i] = out
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// InlineModel returns a copy of m whose main graph has every call to one of m's
// functions expanded. The functions' opset imports that the main graph lacks are
// added to the model, and the function list is dropped.
func (e *Expander) InlineModel(m *ir.Model) (*ir.Model, error) {
	if m.Graph == nil {
		return nil, errors.New("model has no graph")
	}
	g, err := e.InlineGraph(m.Graph, m.Library())
	if err != nil {
		return nil, err
	}
	out := &ir.Model{
		IRVersion:       m.IRVersion,
		ProducerName:    m.ProducerName,
		ProducerVersion: m.ProducerVersion,
		Domain:          m.Domain,
		ModelVersion:    m.ModelVersion,
		Doc:             m.Doc,
		OpsetImports:    append([]ir.OpsetID(nil), m.OpsetImports...),
		Graph:           g,
	}
	imported := make(map[string]bool, len(out.OpsetImports))
	for _, imp := range out.OpsetImports {
		imported[imp.Domain] = true
	}
	for _, fn := range m.Functions {
		for _, imp := range fn.OpsetImports {
			if !imported[imp.Domain] {
				imported[imp.Domain] = true
				out.OpsetImports = append(out.OpsetImports, imp)
			}
		}
	}
	return out, nil
}

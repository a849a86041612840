package convert

import (
	"github.com/gomlx/onnx-inline/ir"
	"github.com/pkg/errors"
)

// AxesInputToAttribute moves the statically known "axes" input (input 1) of an
// operator into an "axes" attribute, as needed when converting operators such as
// ReduceSum or Squeeze to an opset where axes was still an attribute.
//
// The axes value must come from a Constant node or an initializer. A producer left
// without uses is removed; for an initializer its graph input is removed as well.
type AxesInputToAttribute struct {
	OpName string
}

var _ Adapter = AxesInputToAttribute{}

// Name implements Adapter.
func (a AxesInputToAttribute) Name() string {
	return a.OpName
}

// Adapt implements Adapter.
func (a AxesInputToAttribute) Adapt(g *ir.Graph, id ir.NodeID) error {
	n := g.Node(id)
	if n == nil {
		return errors.Errorf("%s: node %d not in graph %q", a.OpName, id, g.Name)
	}
	if len(n.Inputs) < 2 || n.Inputs[1] == "" {
		// axes omitted: nothing to move.
		return nil
	}
	axesName := n.Inputs[1]

	if producerID, ok := g.Producer(axesName); ok && g.Node(producerID).OpType == "Constant" {
		producer := g.Node(producerID)
		value, ok := producer.Attribute("value")
		if !ok || value.Value.T == nil {
			return errors.Wrapf(ErrMissingRequiredBinding, "%s: Constant %q has no tensor value", a.OpName, axesName)
		}
		axes, err := value.Value.T.Int64s()
		if err != nil {
			return errors.WithMessagef(err, "%s: axes from Constant %q", a.OpName, axesName)
		}
		n.SetAttribute(ir.Ints("axes", axes...))
		n.RemoveInput(1)
		if g.Uses(axesName) == 0 {
			g.RemoveNode(producerID)
		}
		return nil
	}

	if initializer, ok := g.Initializer(axesName); ok {
		axes, err := initializer.Int64s()
		if err != nil {
			return errors.WithMessagef(err, "%s: axes from initializer %q", a.OpName, axesName)
		}
		n.SetAttribute(ir.Ints("axes", axes...))
		n.RemoveInput(1)
		if g.Uses(axesName) == 0 {
			g.RemoveInitializer(axesName)
			g.RemoveInput(axesName)
		}
		return nil
	}

	return errors.Wrapf(ErrMissingRequiredBinding,
		"%s: axes %q is produced by neither a Constant node nor an initializer", a.OpName, axesName)
}

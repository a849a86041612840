// Package convert migrates graphs between opset versions by applying per-operator
// adapters step by step.
//
// Only a small catalog of adapters is provided; callers register the ones they need.
package convert

import (
	"github.com/gomlx/onnx-inline/ir"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrMissingRequiredBinding is returned when a value that must be statically known
// is produced neither by a Constant node nor by an initializer.
var ErrMissingRequiredBinding = errors.New("missing required binding")

// ErrMalformedConstantData aliases ir.ErrMalformedConstantData for callers of this package.
var ErrMalformedConstantData = ir.ErrMalformedConstantData

// Adapter rewrites one node of a graph for a single version step.
type Adapter interface {
	// Name is the operator the adapter applies to.
	Name() string

	// Adapt rewrites the node id of g in place. It may remove other nodes,
	// initializers or inputs that become unused.
	Adapt(g *ir.Graph, id ir.NodeID) error
}

type step struct {
	domain, op string
	from, to   int64
}

// Converter holds adapters keyed by operator and version step.
type Converter struct {
	adapters map[step]Adapter
	logger   *zap.Logger
}

// NewConverter creates a converter with no adapters.
func NewConverter(logger *zap.Logger) *Converter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Converter{adapters: make(map[step]Adapter), logger: logger}
}

// Register makes a applicable to nodes of its operator in domain when converting
// from version from to version to. from and to must be adjacent.
func (c *Converter) Register(domain string, from, to int64, a Adapter) error {
	if to != from+1 && to != from-1 {
		return errors.Errorf("adapter %s: versions %d and %d are not adjacent", a.Name(), from, to)
	}
	c.adapters[step{domain, a.Name(), from, to}] = a
	return nil
}

// Convert returns a copy of g with every registered adapter applied for each
// version step of domain between from and to. g is not modified.
func (c *Converter) Convert(g *ir.Graph, domain string, from, to int64) (*ir.Graph, error) {
	out := g.Clone()
	dir := int64(1)
	if to < from {
		dir = -1
	}
	for v := from; v != to; v += dir {
		applied := 0
		for _, id := range out.NodeIDs() {
			n := out.Node(id)
			if n == nil {
				// Freed by an earlier adapter of this step.
				continue
			}
			if n.Domain != domain {
				continue
			}
			a, ok := c.adapters[step{domain, n.OpType, v, v + dir}]
			if !ok {
				continue
			}
			if err := a.Adapt(out, id); err != nil {
				return nil, errors.WithMessagef(err, "converting %s from opset %d to %d", n.OpType, v, v+dir)
			}
			applied++
		}
		c.logger.Debug("opset conversion step",
			zap.String("graph", g.Name),
			zap.String("domain", domain),
			zap.Int64("from", v),
			zap.Int64("to", v+dir),
			zap.Int("adapted", applied))
	}
	out.Compact()
	return out, nil
}

package model

import (
	"slices"

	"github.com/gomlx/onnx-inline/ir"
	"github.com/gomlx/onnx-inline/schema"
)

// NodeDef is a compact node definition: Outputs = OpType(Inputs) {Attributes}.
type NodeDef struct {
	Outputs    []string
	OpType     string
	Inputs     []string
	Attributes []*ir.Attribute
	Domain     string
}

// BuildNodes converts definitions to nodes. Nodes own copies of the definitions' data.
func BuildNodes(defs []NodeDef) []*ir.Node {
	nodes := make([]*ir.Node, len(defs))
	for i, def := range defs {
		n := &ir.Node{
			OpType:  def.OpType,
			Domain:  def.Domain,
			Inputs:  slices.Clone(def.Inputs),
			Outputs: slices.Clone(def.Outputs),
		}
		for _, attr := range def.Attributes {
			n.Attributes = append(n.Attributes, attr.Clone())
		}
		nodes[i] = n
	}
	return nodes
}

// BuildFunction creates the function body of the operator described by s from
// defs, importing the relied-upon opsets, and populates its metadata from s.
func BuildFunction(s *schema.OpSchema, defs []NodeDef, relied []ir.OpsetID) (*ir.Function, error) {
	b := NewFunctionBuilder(s.Name, s.Domain)
	for _, n := range BuildNodes(defs) {
		b.AddNode(n)
	}
	for _, opset := range relied {
		b.AddOpset(opset.Domain, opset.Version)
	}
	return b.BuildFor(s)
}

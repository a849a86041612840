package ir

import (
	"fmt"
	"slices"
	"strings"
)

// Node is an operation record: an invocation of OpType in Domain.
//
// Inputs and Outputs are value names. An empty name marks an omitted optional
// input or an unused output.
type Node struct {
	Name       string
	OpType     string
	Domain     string
	Overload   string
	Inputs     []string
	Outputs    []string
	Attributes []*Attribute
	Doc        string
}

// NewNode creates a node with the given op type, inputs, outputs and attributes.
func NewNode(opType string, inputs, outputs []string, attrs ...*Attribute) *Node {
	return &Node{
		OpType:     opType,
		Inputs:     inputs,
		Outputs:    outputs,
		Attributes: attrs,
	}
}

// Clone returns a deep copy of the node. The copy shares nothing with n.
func (n *Node) Clone() *Node {
	c := n.CloneHeader()
	c.Inputs = slices.Clone(n.Inputs)
	c.Outputs = slices.Clone(n.Outputs)
	if n.Attributes != nil {
		c.Attributes = make([]*Attribute, len(n.Attributes))
		for i, a := range n.Attributes {
			c.Attributes[i] = a.Clone()
		}
	}
	return c
}

// CloneHeader copies every field except inputs, outputs and attributes.
func (n *Node) CloneHeader() *Node {
	return &Node{
		Name:     n.Name,
		OpType:   n.OpType,
		Domain:   n.Domain,
		Overload: n.Overload,
		Doc:      n.Doc,
	}
}

// Attribute returns the attribute with the given name.
func (n *Node) Attribute(name string) (*Attribute, bool) {
	for _, a := range n.Attributes {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// SetAttribute replaces the attribute with the same name, or appends it.
func (n *Node) SetAttribute(attr *Attribute) {
	for i, a := range n.Attributes {
		if a.Name == attr.Name {
			n.Attributes[i] = attr
			return
		}
	}
	n.Attributes = append(n.Attributes, attr)
}

// RemoveInput drops the input at index i.
func (n *Node) RemoveInput(i int) {
	n.Inputs = slices.Delete(n.Inputs, i, i+1)
}

// String renders the node as "Name: OpType(in0, in1) -> out0 {attr=...}".
func (n *Node) String() string {
	var sb strings.Builder
	if n.Name != "" {
		sb.WriteString(n.Name)
		sb.WriteString(": ")
	}
	if n.Domain != "" {
		sb.WriteString(n.Domain)
		sb.WriteByte('.')
	}
	fmt.Fprintf(&sb, "%s(%s) -> %s", n.OpType, strings.Join(n.Inputs, ", "), strings.Join(n.Outputs, ", "))
	if len(n.Attributes) > 0 {
		parts := make([]string, len(n.Attributes))
		for i, a := range n.Attributes {
			parts[i] = a.String()
		}
		fmt.Fprintf(&sb, " {%s}", strings.Join(parts, ", "))
	}
	return sb.String()
}

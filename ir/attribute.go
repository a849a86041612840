package ir

import (
	"fmt"
	"slices"
	"strings"
)

// AttrType is the kind of value held by an attribute.
// The numbering follows ONNX's AttributeProto.AttributeType.
type AttrType int32

const (
	AttrUndefined AttrType = iota
	AttrFloat
	AttrInt
	AttrString
	AttrTensor
	AttrGraph
	AttrFloats
	AttrInts
	AttrStrings
	AttrTensors
	AttrGraphs
)

var attrTypeNames = map[AttrType]string{
	AttrUndefined: "undefined",
	AttrFloat:     "float",
	AttrInt:       "int",
	AttrString:    "string",
	AttrTensor:    "tensor",
	AttrGraph:     "graph",
	AttrFloats:    "floats",
	AttrInts:      "ints",
	AttrStrings:   "strings",
	AttrTensors:   "tensors",
	AttrGraphs:    "graphs",
}

// String returns the lower-case name of the attribute type.
func (t AttrType) String() string {
	if s, ok := attrTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("AttrType(%d)", int32(t))
}

// ParseAttrType converts a name such as "float" or "ints" back to an AttrType.
func ParseAttrType(s string) (AttrType, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t, name := range attrTypeNames {
		if name == s {
			return t, true
		}
	}
	return AttrUndefined, false
}

// AttrValue is a literal attribute value. Only the field matching Type is meaningful.
type AttrValue struct {
	Type    AttrType
	F       float32
	I       int64
	S       string
	T       *Tensor
	G       *Graph
	Floats  []float32
	Ints    []int64
	Strings []string
	Tensors []*Tensor
	Graphs  []*Graph
}

// IsZero reports whether the value holds nothing.
func (v AttrValue) IsZero() bool {
	return v.Type == AttrUndefined
}

// Clone returns a deep copy of the value: slices, tensors and graphs are not shared.
func (v AttrValue) Clone() AttrValue {
	c := AttrValue{Type: v.Type, F: v.F, I: v.I, S: v.S}
	if v.T != nil {
		c.T = v.T.Clone()
	}
	if v.G != nil {
		c.G = v.G.Clone()
	}
	c.Floats = slices.Clone(v.Floats)
	c.Ints = slices.Clone(v.Ints)
	c.Strings = slices.Clone(v.Strings)
	if v.Tensors != nil {
		c.Tensors = make([]*Tensor, len(v.Tensors))
		for i, t := range v.Tensors {
			c.Tensors[i] = t.Clone()
		}
	}
	if v.Graphs != nil {
		c.Graphs = make([]*Graph, len(v.Graphs))
		for i, g := range v.Graphs {
			c.Graphs[i] = g.Clone()
		}
	}
	return c
}

// Equal compares two scalar or list values. Tensor and graph values compare by identity.
func (v AttrValue) Equal(o AttrValue) bool {
	if v.Type != o.Type {
		return false
	}
	switch v.Type {
	case AttrFloat:
		return v.F == o.F
	case AttrInt:
		return v.I == o.I
	case AttrString:
		return v.S == o.S
	case AttrFloats:
		return slices.Equal(v.Floats, o.Floats)
	case AttrInts:
		return slices.Equal(v.Ints, o.Ints)
	case AttrStrings:
		return slices.Equal(v.Strings, o.Strings)
	case AttrTensor:
		return v.T == o.T
	case AttrGraph:
		return v.G == o.G
	case AttrTensors:
		return slices.Equal(v.Tensors, o.Tensors)
	case AttrGraphs:
		return slices.Equal(v.Graphs, o.Graphs)
	}
	return true
}

func (v AttrValue) String() string {
	switch v.Type {
	case AttrFloat:
		return fmt.Sprintf("%g", v.F)
	case AttrInt:
		return fmt.Sprintf("%d", v.I)
	case AttrString:
		return fmt.Sprintf("%q", v.S)
	case AttrFloats:
		return fmt.Sprintf("%v", v.Floats)
	case AttrInts:
		return fmt.Sprintf("%v", v.Ints)
	case AttrStrings:
		return fmt.Sprintf("%q", v.Strings)
	case AttrTensor:
		return v.T.String()
	case AttrGraph:
		return fmt.Sprintf("graph(%s)", v.G.Name)
	case AttrTensors:
		return fmt.Sprintf("tensors[%d]", len(v.Tensors))
	case AttrGraphs:
		return fmt.Sprintf("graphs[%d]", len(v.Graphs))
	}
	return "<undefined>"
}

// Attribute is a named attribute of a Node.
//
// It is either a literal (Value set, Ref empty) or a reference to an attribute
// of the enclosing function call (Ref set), resolved only when the function is
// expanded.
type Attribute struct {
	Name  string
	Ref   string
	Value AttrValue
	Doc   string
}

// IsRef reports whether the attribute refers to a caller attribute.
func (a *Attribute) IsRef() bool {
	return a.Ref != ""
}

// Clone returns a deep copy of the attribute.
func (a *Attribute) Clone() *Attribute {
	return &Attribute{
		Name:  a.Name,
		Ref:   a.Ref,
		Value: a.Value.Clone(),
		Doc:   a.Doc,
	}
}

func (a *Attribute) String() string {
	if a.IsRef() {
		return fmt.Sprintf("%s=@%s", a.Name, a.Ref)
	}
	return fmt.Sprintf("%s=%s", a.Name, a.Value)
}

// Literal creates a literal attribute holding a copy of v.
func Literal(name string, v AttrValue) *Attribute {
	return &Attribute{Name: name, Value: v.Clone()}
}

// Ref creates an attribute named name whose value is taken from the caller's
// attribute target at expansion time.
func Ref(name, target string) *Attribute {
	return &Attribute{Name: name, Ref: target}
}

// Float creates a float attribute.
func Float(name string, f float32) *Attribute {
	return &Attribute{Name: name, Value: AttrValue{Type: AttrFloat, F: f}}
}

// Int creates an int attribute.
func Int(name string, i int64) *Attribute {
	return &Attribute{Name: name, Value: AttrValue{Type: AttrInt, I: i}}
}

// String creates a string attribute.
func String(name, s string) *Attribute {
	return &Attribute{Name: name, Value: AttrValue{Type: AttrString, S: s}}
}

// Floats creates a list-of-floats attribute.
func Floats(name string, fs ...float32) *Attribute {
	return &Attribute{Name: name, Value: AttrValue{Type: AttrFloats, Floats: fs}}
}

// Ints creates a list-of-ints attribute.
func Ints(name string, is ...int64) *Attribute {
	return &Attribute{Name: name, Value: AttrValue{Type: AttrInts, Ints: is}}
}

// Strings creates a list-of-strings attribute.
func Strings(name string, ss ...string) *Attribute {
	return &Attribute{Name: name, Value: AttrValue{Type: AttrStrings, Strings: ss}}
}

// TensorAttr creates a tensor attribute.
func TensorAttr(name string, t *Tensor) *Attribute {
	return &Attribute{Name: name, Value: AttrValue{Type: AttrTensor, T: t}}
}

// GraphAttr creates a graph (subgraph) attribute.
func GraphAttr(name string, g *Graph) *Attribute {
	return &Attribute{Name: name, Value: AttrValue{Type: AttrGraph, G: g}}
}

package onnxwire

import (
	"math"
	"strconv"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/onnx-inline/blob"
	"github.com/gomlx/onnx-inline/ir"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// ErrExternalData is returned for tensors whose external data cannot be resolved.
var ErrExternalData = errors.New("external data")

// Unmarshal decodes an ONNX ModelProto. Tensors stored as external data are
// rejected: use LoadModel to read them.
func Unmarshal(b []byte) (*ir.Model, error) {
	var d decoder
	return d.model(b)
}

// decoder resolves external data locations to blob readers.
type decoder struct {
	resolve func(location string) (*blob.Reader, error)
}

// field is one decoded wire field. Scalars land in v, length-delimited values in b.
type field struct {
	num protowire.Number
	typ protowire.Type
	v   uint64
	b   []byte
}

func (f field) str() string { return string(f.b) }

func decodeFields(b []byte, fn func(f field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return errors.Wrap(protowire.ParseError(n), "malformed tag")
		}
		b = b[n:]
		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.v, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			var v uint32
			v, n = protowire.ConsumeFixed32(b)
			f.v = uint64(v)
		case protowire.Fixed64Type:
			f.v, n = protowire.ConsumeFixed64(b)
		case protowire.BytesType:
			f.b, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return errors.Wrapf(protowire.ParseError(n), "field %d", num)
		}
		b = b[n:]
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// varints appends the values of a repeated varint field, packed or not.
func varints(dst []int64, f field) ([]int64, error) {
	if f.typ == protowire.VarintType {
		return append(dst, int64(f.v)), nil
	}
	if f.typ != protowire.BytesType {
		return nil, errors.Errorf("field %d: unexpected wire type %d", f.num, f.typ)
	}
	for b := f.b; len(b) > 0; {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, errors.Wrapf(protowire.ParseError(n), "field %d", f.num)
		}
		dst = append(dst, int64(v))
		b = b[n:]
	}
	return dst, nil
}

func floats32(dst []float32, f field) ([]float32, error) {
	if f.typ == protowire.Fixed32Type {
		return append(dst, math.Float32frombits(uint32(f.v))), nil
	}
	if f.typ != protowire.BytesType {
		return nil, errors.Errorf("field %d: unexpected wire type %d", f.num, f.typ)
	}
	for b := f.b; len(b) > 0; {
		v, n := protowire.ConsumeFixed32(b)
		if n < 0 {
			return nil, errors.Wrapf(protowire.ParseError(n), "field %d", f.num)
		}
		dst = append(dst, math.Float32frombits(v))
		b = b[n:]
	}
	return dst, nil
}

func floats64(dst []float64, f field) ([]float64, error) {
	if f.typ == protowire.Fixed64Type {
		return append(dst, math.Float64frombits(f.v)), nil
	}
	if f.typ != protowire.BytesType {
		return nil, errors.Errorf("field %d: unexpected wire type %d", f.num, f.typ)
	}
	for b := f.b; len(b) > 0; {
		v, n := protowire.ConsumeFixed64(b)
		if n < 0 {
			return nil, errors.Wrapf(protowire.ParseError(n), "field %d", f.num)
		}
		dst = append(dst, math.Float64frombits(v))
		b = b[n:]
	}
	return dst, nil
}

func (d *decoder) model(b []byte) (*ir.Model, error) {
	m := &ir.Model{}
	err := decodeFields(b, func(f field) error {
		switch f.num {
		case modelIRVersion:
			m.IRVersion = int64(f.v)
		case modelProducerName:
			m.ProducerName = f.str()
		case modelProducerVersion:
			m.ProducerVersion = f.str()
		case modelDomain:
			m.Domain = f.str()
		case modelModelVersion:
			m.ModelVersion = int64(f.v)
		case modelDocString:
			m.Doc = f.str()
		case modelGraph:
			g, err := d.graph(f.b)
			if err != nil {
				return err
			}
			m.Graph = g
		case modelOpsetImport:
			imp, err := decodeOpset(f.b)
			if err != nil {
				return err
			}
			m.OpsetImports = append(m.OpsetImports, imp)
		case modelFunctions:
			fn, err := d.function(f.b)
			if err != nil {
				return err
			}
			m.Functions = append(m.Functions, fn)
		}
		return nil
	})
	if err != nil {
		return nil, errors.WithMessage(err, "decoding ModelProto")
	}
	return m, nil
}

func decodeOpset(b []byte) (ir.OpsetID, error) {
	var imp ir.OpsetID
	err := decodeFields(b, func(f field) error {
		switch f.num {
		case opsetDomain:
			imp.Domain = f.str()
		case opsetVersion:
			imp.Version = int64(f.v)
		}
		return nil
	})
	return imp, errors.WithMessage(err, "decoding OperatorSetIdProto")
}

func (d *decoder) graph(b []byte) (*ir.Graph, error) {
	g := ir.NewGraph("")
	err := decodeFields(b, func(f field) error {
		switch f.num {
		case graphNode:
			n, err := d.node(f.b)
			if err != nil {
				return err
			}
			g.AddNode(n)
		case graphName:
			g.Name = f.str()
		case graphInitializer:
			t, err := d.tensor(f.b)
			if err != nil {
				return err
			}
			g.Initializers = append(g.Initializers, t)
		case graphDocString:
			g.Doc = f.str()
		case graphInput, graphOutput:
			name, err := decodeValueInfo(f.b)
			if err != nil {
				return err
			}
			if f.num == graphInput {
				g.Inputs = append(g.Inputs, name)
			} else {
				g.Outputs = append(g.Outputs, name)
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "decoding graph %q", g.Name)
	}
	return g, nil
}

func decodeValueInfo(b []byte) (string, error) {
	var name string
	err := decodeFields(b, func(f field) error {
		if f.num == valueInfoName {
			name = f.str()
		}
		return nil
	})
	return name, err
}

func (d *decoder) node(b []byte) (*ir.Node, error) {
	n := &ir.Node{}
	err := decodeFields(b, func(f field) error {
		switch f.num {
		case nodeInput:
			n.Inputs = append(n.Inputs, f.str())
		case nodeOutput:
			n.Outputs = append(n.Outputs, f.str())
		case nodeName:
			n.Name = f.str()
		case nodeOpType:
			n.OpType = f.str()
		case nodeAttribute:
			a, err := d.attribute(f.b)
			if err != nil {
				return err
			}
			n.Attributes = append(n.Attributes, a)
		case nodeDocString:
			n.Doc = f.str()
		case nodeDomain:
			n.Domain = f.str()
		case nodeOverload:
			n.Overload = f.str()
		}
		return nil
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "decoding node %s", n.OpType)
	}
	return n, nil
}

func (d *decoder) attribute(b []byte) (*ir.Attribute, error) {
	a := &ir.Attribute{}
	v := &a.Value
	var sawF, sawI, sawS bool
	err := decodeFields(b, func(f field) error {
		var err error
		switch f.num {
		case attrName:
			a.Name = f.str()
		case attrDocString:
			a.Doc = f.str()
		case attrType:
			v.Type = ir.AttrType(f.v)
		case attrRefAttrName:
			a.Ref = f.str()
		case attrF:
			v.F, sawF = math.Float32frombits(uint32(f.v)), true
		case attrI:
			v.I, sawI = int64(f.v), true
		case attrS:
			v.S, sawS = f.str(), true
		case attrT:
			v.T, err = d.tensor(f.b)
		case attrG:
			v.G, err = d.graph(f.b)
		case attrFloats:
			v.Floats, err = floats32(v.Floats, f)
		case attrInts:
			v.Ints, err = varints(v.Ints, f)
		case attrStrings:
			v.Strings = append(v.Strings, f.str())
		case attrTensors:
			var t *ir.Tensor
			if t, err = d.tensor(f.b); err == nil {
				v.Tensors = append(v.Tensors, t)
			}
		case attrGraphs:
			var g *ir.Graph
			if g, err = d.graph(f.b); err == nil {
				v.Graphs = append(v.Graphs, g)
			}
		}
		return err
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "decoding attribute %s", a.Name)
	}
	if v.Type == ir.AttrUndefined && a.Ref == "" {
		// Files older than IR version 2 leave the type out.
		switch {
		case sawF:
			v.Type = ir.AttrFloat
		case sawI:
			v.Type = ir.AttrInt
		case sawS:
			v.Type = ir.AttrString
		case v.T != nil:
			v.Type = ir.AttrTensor
		case v.G != nil:
			v.Type = ir.AttrGraph
		case v.Floats != nil:
			v.Type = ir.AttrFloats
		case v.Ints != nil:
			v.Type = ir.AttrInts
		case v.Strings != nil:
			v.Type = ir.AttrStrings
		case v.Tensors != nil:
			v.Type = ir.AttrTensors
		case v.Graphs != nil:
			v.Type = ir.AttrGraphs
		}
	}
	return a, nil
}

func (d *decoder) tensor(b []byte) (*ir.Tensor, error) {
	t := &ir.Tensor{}
	var (
		dataType     int64
		location     int64
		externalData = map[string]string{}
	)
	err := decodeFields(b, func(f field) error {
		var err error
		switch f.num {
		case tensorDims:
			t.Dims, err = varints(t.Dims, f)
		case tensorDataType:
			dataType = int64(f.v)
		case tensorName:
			t.Name = f.str()
		case tensorDocString:
			t.Doc = f.str()
		case tensorRawData:
			t.Raw = append([]byte(nil), f.b...)
		case tensorStringData:
			t.StringData = append(t.StringData, append([]byte(nil), f.b...))
		case tensorFloatData:
			t.FloatData, err = floats32(t.FloatData, f)
		case tensorDoubleData:
			t.DoubleData, err = floats64(t.DoubleData, f)
		case tensorInt64Data:
			t.Int64Data, err = varints(t.Int64Data, f)
		case tensorInt32Data:
			var values []int64
			values, err = varints(nil, f)
			for _, v := range values {
				t.Int32Data = append(t.Int32Data, int32(v))
			}
		case tensorExternalData:
			var key, value string
			err = decodeFields(f.b, func(f field) error {
				switch f.num {
				case entryKey:
					key = f.str()
				case entryValue:
					value = f.str()
				}
				return nil
			})
			externalData[key] = value
		case tensorDataLocation:
			location = int64(f.v)
		}
		return err
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "decoding tensor %q", t.Name)
	}

	if dataType == onnxString {
		t.DType = dtypes.InvalidDType
		if t.StringData == nil {
			t.StringData = [][]byte{}
		}
	} else {
		dtype, ok := fromONNX[dataType]
		if !ok {
			return nil, errors.Errorf("tensor %q: unsupported ONNX data type %d", t.Name, dataType)
		}
		t.DType = dtype
	}

	if location == dataLocationExternal {
		raw, err := d.external(t.Name, externalData)
		if err != nil {
			return nil, err
		}
		t.Raw = raw
	}
	return t, nil
}

func (d *decoder) external(name string, entries map[string]string) ([]byte, error) {
	if d.resolve == nil {
		return nil, errors.Wrapf(ErrExternalData, "tensor %q: no directory to resolve %q against", name, entries["location"])
	}
	location := entries["location"]
	if location == "" {
		return nil, errors.Wrapf(ErrExternalData, "tensor %q: no location", name)
	}
	var offset, length int64 = 0, -1
	var err error
	if s, ok := entries["offset"]; ok {
		if offset, err = strconv.ParseInt(s, 10, 64); err != nil {
			return nil, errors.Wrapf(ErrExternalData, "tensor %q: offset %q", name, s)
		}
	}
	if s, ok := entries["length"]; ok {
		if length, err = strconv.ParseInt(s, 10, 64); err != nil {
			return nil, errors.Wrapf(ErrExternalData, "tensor %q: length %q", name, s)
		}
	}
	r, err := d.resolve(location)
	if err != nil {
		return nil, errors.WithMessagef(err, "tensor %q", name)
	}
	data, err := r.ReadBlob(offset, length)
	if err != nil {
		return nil, errors.WithMessagef(err, "tensor %q", name)
	}
	return data, nil
}

func (d *decoder) function(b []byte) (*ir.Function, error) {
	fn := &ir.Function{}
	err := decodeFields(b, func(f field) error {
		switch f.num {
		case functionName:
			fn.Name = f.str()
		case functionInput:
			fn.Inputs = append(fn.Inputs, f.str())
		case functionOutput:
			fn.Outputs = append(fn.Outputs, f.str())
		case functionAttribute:
			fn.Attributes = append(fn.Attributes, f.str())
		case functionNode:
			n, err := d.node(f.b)
			if err != nil {
				return err
			}
			fn.Nodes = append(fn.Nodes, n)
		case functionDocString:
			fn.Doc = f.str()
		case functionOpsetImport:
			imp, err := decodeOpset(f.b)
			if err != nil {
				return err
			}
			fn.OpsetImports = append(fn.OpsetImports, imp)
		case functionDomain:
			fn.Domain = f.str()
		case functionAttributeProto:
			a, err := d.attribute(f.b)
			if err != nil {
				return err
			}
			fn.AttributeDefaults = append(fn.AttributeDefaults, a)
		case functionOverload:
			fn.Overload = f.str()
		}
		return nil
	})
	if err != nil {
		return nil, errors.WithMessagef(err, "decoding function %s", fn.Name)
	}
	return fn, nil
}

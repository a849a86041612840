// Package onnxwire encodes and decodes ir.Model values in the ONNX protobuf wire
// format (ModelProto), including tensors stored as external data.
//
// Only the parts of the format that the ir package represents are handled; unknown
// fields are skipped when decoding. Value types of graph inputs and outputs are not
// carried.
package onnxwire

import (
	"math"
	"strconv"

	"github.com/gomlx/onnx-inline/blob"
	"github.com/gomlx/onnx-inline/ir"
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of onnx.proto.
const (
	modelIRVersion       protowire.Number = 1
	modelProducerName    protowire.Number = 2
	modelProducerVersion protowire.Number = 3
	modelDomain          protowire.Number = 4
	modelModelVersion    protowire.Number = 5
	modelDocString       protowire.Number = 6
	modelGraph           protowire.Number = 7
	modelOpsetImport     protowire.Number = 8
	modelFunctions       protowire.Number = 25

	opsetDomain  protowire.Number = 1
	opsetVersion protowire.Number = 2

	graphNode        protowire.Number = 1
	graphName        protowire.Number = 2
	graphInitializer protowire.Number = 5
	graphDocString   protowire.Number = 10
	graphInput       protowire.Number = 11
	graphOutput      protowire.Number = 12

	valueInfoName protowire.Number = 1

	nodeInput     protowire.Number = 1
	nodeOutput    protowire.Number = 2
	nodeName      protowire.Number = 3
	nodeOpType    protowire.Number = 4
	nodeAttribute protowire.Number = 5
	nodeDocString protowire.Number = 6
	nodeDomain    protowire.Number = 7
	nodeOverload  protowire.Number = 8

	attrName        protowire.Number = 1
	attrF           protowire.Number = 2
	attrI           protowire.Number = 3
	attrS           protowire.Number = 4
	attrT           protowire.Number = 5
	attrG           protowire.Number = 6
	attrFloats      protowire.Number = 7
	attrInts        protowire.Number = 8
	attrStrings     protowire.Number = 9
	attrTensors     protowire.Number = 10
	attrGraphs      protowire.Number = 11
	attrDocString   protowire.Number = 13
	attrType        protowire.Number = 20
	attrRefAttrName protowire.Number = 21

	tensorDims         protowire.Number = 1
	tensorDataType     protowire.Number = 2
	tensorFloatData    protowire.Number = 4
	tensorInt32Data    protowire.Number = 5
	tensorStringData   protowire.Number = 6
	tensorInt64Data    protowire.Number = 7
	tensorName         protowire.Number = 8
	tensorRawData      protowire.Number = 9
	tensorDoubleData   protowire.Number = 10
	tensorDocString    protowire.Number = 12
	tensorExternalData protowire.Number = 13
	tensorDataLocation protowire.Number = 14

	entryKey   protowire.Number = 1
	entryValue protowire.Number = 2

	functionName           protowire.Number = 1
	functionInput          protowire.Number = 4
	functionOutput         protowire.Number = 5
	functionAttribute      protowire.Number = 6
	functionNode           protowire.Number = 7
	functionDocString      protowire.Number = 8
	functionOpsetImport    protowire.Number = 9
	functionDomain         protowire.Number = 10
	functionAttributeProto protowire.Number = 11
	functionOverload       protowire.Number = 13
)

// dataLocationExternal is TensorProto.DataLocation.EXTERNAL.
const dataLocationExternal = 1

// Marshal encodes m as an ONNX ModelProto with every tensor stored inline.
func Marshal(m *ir.Model) ([]byte, error) {
	var e encoder
	return e.model(nil, m)
}

// encoder optionally moves tensor payloads of at least threshold bytes to blobs.
type encoder struct {
	blobs     *blob.Writer
	location  string
	threshold int64
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	return appendRepeatedString(b, num, s)
}

// appendRepeatedString writes s even when empty: positions matter in repeated fields.
func appendRepeatedString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendVarint(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func (e *encoder) model(b []byte, m *ir.Model) ([]byte, error) {
	b = appendVarint(b, modelIRVersion, m.IRVersion)
	b = appendString(b, modelProducerName, m.ProducerName)
	b = appendString(b, modelProducerVersion, m.ProducerVersion)
	b = appendString(b, modelDomain, m.Domain)
	b = appendVarint(b, modelModelVersion, m.ModelVersion)
	b = appendString(b, modelDocString, m.Doc)
	if m.Graph != nil {
		g, err := e.graph(nil, m.Graph)
		if err != nil {
			return nil, err
		}
		b = appendMessage(b, modelGraph, g)
	}
	for _, imp := range m.OpsetImports {
		b = appendMessage(b, modelOpsetImport, opset(nil, imp))
	}
	for _, fn := range m.Functions {
		f, err := e.function(nil, fn)
		if err != nil {
			return nil, errors.WithMessagef(err, "function %s", fn.Name)
		}
		b = appendMessage(b, modelFunctions, f)
	}
	return b, nil
}

func opset(b []byte, imp ir.OpsetID) []byte {
	b = appendString(b, opsetDomain, imp.Domain)
	// The version is always written: 0 is a meaningful value here.
	b = protowire.AppendTag(b, opsetVersion, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(imp.Version))
}

func (e *encoder) graph(b []byte, g *ir.Graph) ([]byte, error) {
	for _, n := range g.Nodes() {
		nb, err := e.node(nil, n)
		if err != nil {
			return nil, errors.WithMessagef(err, "graph %q", g.Name)
		}
		b = appendMessage(b, graphNode, nb)
	}
	b = appendString(b, graphName, g.Name)
	for _, t := range g.Initializers {
		tb, err := e.tensor(nil, t)
		if err != nil {
			return nil, errors.WithMessagef(err, "graph %q", g.Name)
		}
		b = appendMessage(b, graphInitializer, tb)
	}
	b = appendString(b, graphDocString, g.Doc)
	for _, in := range g.Inputs {
		b = appendMessage(b, graphInput, appendRepeatedString(nil, valueInfoName, in))
	}
	for _, out := range g.Outputs {
		b = appendMessage(b, graphOutput, appendRepeatedString(nil, valueInfoName, out))
	}
	return b, nil
}

func (e *encoder) node(b []byte, n *ir.Node) ([]byte, error) {
	for _, in := range n.Inputs {
		b = appendRepeatedString(b, nodeInput, in)
	}
	for _, out := range n.Outputs {
		b = appendRepeatedString(b, nodeOutput, out)
	}
	b = appendString(b, nodeName, n.Name)
	b = appendString(b, nodeOpType, n.OpType)
	for _, attr := range n.Attributes {
		ab, err := e.attribute(nil, attr)
		if err != nil {
			return nil, errors.WithMessagef(err, "node %s", n.OpType)
		}
		b = appendMessage(b, nodeAttribute, ab)
	}
	b = appendString(b, nodeDocString, n.Doc)
	b = appendString(b, nodeDomain, n.Domain)
	b = appendString(b, nodeOverload, n.Overload)
	return b, nil
}

func (e *encoder) attribute(b []byte, a *ir.Attribute) ([]byte, error) {
	b = appendString(b, attrName, a.Name)
	b = appendString(b, attrDocString, a.Doc)
	if a.IsRef() {
		b = appendVarint(b, attrType, int64(a.Value.Type))
		return appendString(b, attrRefAttrName, a.Ref), nil
	}
	v := a.Value
	b = appendVarint(b, attrType, int64(v.Type))
	switch v.Type {
	case ir.AttrFloat:
		b = protowire.AppendTag(b, attrF, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(v.F))
	case ir.AttrInt:
		b = protowire.AppendTag(b, attrI, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(v.I))
	case ir.AttrString:
		b = appendRepeatedString(b, attrS, v.S)
	case ir.AttrTensor:
		tb, err := e.tensor(nil, v.T)
		if err != nil {
			return nil, errors.WithMessagef(err, "attribute %s", a.Name)
		}
		b = appendMessage(b, attrT, tb)
	case ir.AttrGraph:
		gb, err := e.graph(nil, v.G)
		if err != nil {
			return nil, errors.WithMessagef(err, "attribute %s", a.Name)
		}
		b = appendMessage(b, attrG, gb)
	case ir.AttrFloats:
		for _, f := range v.Floats {
			b = protowire.AppendTag(b, attrFloats, protowire.Fixed32Type)
			b = protowire.AppendFixed32(b, math.Float32bits(f))
		}
	case ir.AttrInts:
		for _, i := range v.Ints {
			b = protowire.AppendTag(b, attrInts, protowire.VarintType)
			b = protowire.AppendVarint(b, uint64(i))
		}
	case ir.AttrStrings:
		for _, s := range v.Strings {
			b = appendRepeatedString(b, attrStrings, s)
		}
	case ir.AttrTensors:
		for _, t := range v.Tensors {
			tb, err := e.tensor(nil, t)
			if err != nil {
				return nil, errors.WithMessagef(err, "attribute %s", a.Name)
			}
			b = appendMessage(b, attrTensors, tb)
		}
	case ir.AttrGraphs:
		for _, g := range v.Graphs {
			gb, err := e.graph(nil, g)
			if err != nil {
				return nil, errors.WithMessagef(err, "attribute %s", a.Name)
			}
			b = appendMessage(b, attrGraphs, gb)
		}
	default:
		return nil, errors.Errorf("attribute %s: unsupported type %s", a.Name, v.Type)
	}
	return b, nil
}

func (e *encoder) tensor(b []byte, t *ir.Tensor) ([]byte, error) {
	if t == nil {
		return nil, errors.New("nil tensor")
	}
	dataType, err := onnxDataType(t)
	if err != nil {
		return nil, err
	}
	for _, d := range t.Dims {
		b = protowire.AppendTag(b, tensorDims, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(d))
	}
	b = appendVarint(b, tensorDataType, dataType)
	b = appendString(b, tensorName, t.Name)
	b = appendString(b, tensorDocString, t.Doc)

	if size := t.ByteSize(); e.blobs != nil && dataType != onnxString && size > 0 && size >= e.threshold {
		raw := rawBytes(t)
		offset, err := e.blobs.AddBlob(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "tensor %q", t.Name)
		}
		b = appendEntry(b, "location", e.location)
		b = appendEntry(b, "offset", strconv.FormatUint(offset, 10))
		b = appendEntry(b, "length", strconv.Itoa(len(raw)))
		return appendVarint(b, tensorDataLocation, dataLocationExternal), nil
	}

	for _, s := range t.StringData {
		b = protowire.AppendTag(b, tensorStringData, protowire.BytesType)
		b = protowire.AppendBytes(b, s)
	}
	if len(t.Raw) > 0 {
		b = protowire.AppendTag(b, tensorRawData, protowire.BytesType)
		b = protowire.AppendBytes(b, t.Raw)
	}
	if len(t.FloatData) > 0 {
		var packed []byte
		for _, f := range t.FloatData {
			packed = protowire.AppendFixed32(packed, math.Float32bits(f))
		}
		b = appendMessage(b, tensorFloatData, packed)
	}
	if len(t.DoubleData) > 0 {
		var packed []byte
		for _, f := range t.DoubleData {
			packed = protowire.AppendFixed64(packed, math.Float64bits(f))
		}
		b = appendMessage(b, tensorDoubleData, packed)
	}
	if len(t.Int32Data) > 0 {
		var packed []byte
		for _, i := range t.Int32Data {
			packed = protowire.AppendVarint(packed, uint64(int64(i)))
		}
		b = appendMessage(b, tensorInt32Data, packed)
	}
	if len(t.Int64Data) > 0 {
		var packed []byte
		for _, i := range t.Int64Data {
			packed = protowire.AppendVarint(packed, uint64(i))
		}
		b = appendMessage(b, tensorInt64Data, packed)
	}
	return b, nil
}

func appendEntry(b []byte, key, value string) []byte {
	var entry []byte
	entry = appendRepeatedString(entry, entryKey, key)
	entry = appendRepeatedString(entry, entryValue, value)
	return appendMessage(b, tensorExternalData, entry)
}

func (e *encoder) function(b []byte, fn *ir.Function) ([]byte, error) {
	b = appendString(b, functionName, fn.Name)
	for _, in := range fn.Inputs {
		b = appendRepeatedString(b, functionInput, in)
	}
	for _, out := range fn.Outputs {
		b = appendRepeatedString(b, functionOutput, out)
	}
	for _, attr := range fn.Attributes {
		b = appendRepeatedString(b, functionAttribute, attr)
	}
	for _, n := range fn.Nodes {
		nb, err := e.node(nil, n)
		if err != nil {
			return nil, err
		}
		b = appendMessage(b, functionNode, nb)
	}
	b = appendString(b, functionDocString, fn.Doc)
	for _, imp := range fn.OpsetImports {
		b = appendMessage(b, functionOpsetImport, opset(nil, imp))
	}
	b = appendString(b, functionDomain, fn.Domain)
	for _, attr := range fn.AttributeDefaults {
		ab, err := e.attribute(nil, attr)
		if err != nil {
			return nil, err
		}
		b = appendMessage(b, functionAttributeProto, ab)
	}
	b = appendString(b, functionOverload, fn.Overload)
	return b, nil
}

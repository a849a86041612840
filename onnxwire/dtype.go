package onnxwire

import (
	"encoding/binary"
	"math"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/onnx-inline/ir"
	"github.com/pkg/errors"
)

// ONNX TensorProto.DataType values.
const (
	onnxUndefined = 0
	onnxFloat     = 1
	onnxUint8     = 2
	onnxInt8      = 3
	onnxUint16    = 4
	onnxInt16     = 5
	onnxInt32     = 6
	onnxInt64     = 7
	onnxString    = 8
	onnxBool      = 9
	onnxFloat16   = 10
	onnxDouble    = 11
	onnxUint32    = 12
	onnxUint64    = 13
	onnxBFloat16  = 16
)

var toONNX = map[dtypes.DType]int64{
	dtypes.Float32:  onnxFloat,
	dtypes.Uint8:    onnxUint8,
	dtypes.Int8:     onnxInt8,
	dtypes.Uint16:   onnxUint16,
	dtypes.Int16:    onnxInt16,
	dtypes.Int32:    onnxInt32,
	dtypes.Int64:    onnxInt64,
	dtypes.Bool:     onnxBool,
	dtypes.Float16:  onnxFloat16,
	dtypes.Float64:  onnxDouble,
	dtypes.Uint32:   onnxUint32,
	dtypes.Uint64:   onnxUint64,
	dtypes.BFloat16: onnxBFloat16,
}

var fromONNX = func() map[int64]dtypes.DType {
	m := make(map[int64]dtypes.DType, len(toONNX))
	for dtype, id := range toONNX {
		m[id] = dtype
	}
	return m
}()

// DataType returns the ONNX TensorProto data type of dtype, as used by the "to"
// attribute of Cast.
func DataType(dtype dtypes.DType) (int64, bool) {
	id, ok := toONNX[dtype]
	return id, ok
}

// onnxDataType returns the ONNX data type of t.
func onnxDataType(t *ir.Tensor) (int64, error) {
	if t.StringData != nil {
		return onnxString, nil
	}
	id, ok := toONNX[t.DType]
	if !ok {
		return 0, errors.Errorf("tensor %q: dtype %s has no ONNX equivalent", t.Name, t.DType)
	}
	return id, nil
}

// rawBytes returns t's numeric payload in little-endian raw form, converting the
// typed fields if needed.
func rawBytes(t *ir.Tensor) []byte {
	switch {
	case len(t.Raw) > 0:
		return t.Raw
	case len(t.FloatData) > 0:
		data := make([]byte, 4*len(t.FloatData))
		for i, v := range t.FloatData {
			binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(v))
		}
		return data
	case len(t.DoubleData) > 0:
		data := make([]byte, 8*len(t.DoubleData))
		for i, v := range t.DoubleData {
			binary.LittleEndian.PutUint64(data[i*8:], math.Float64bits(v))
		}
		return data
	case len(t.Int64Data) > 0:
		data := make([]byte, 8*len(t.Int64Data))
		for i, v := range t.Int64Data {
			binary.LittleEndian.PutUint64(data[i*8:], uint64(v))
		}
		return data
	case len(t.Int32Data) > 0:
		// int32_data also carries narrower types; keep only the element width.
		width := t.DType.Size()
		if width <= 0 || width > 4 {
			width = 4
		}
		data := make([]byte, width*len(t.Int32Data))
		for i, v := range t.Int32Data {
			var buf [4]byte
			binary.LittleEndian.PutUint32(buf[:], uint32(v))
			copy(data[i*width:], buf[:width])
		}
		return data
	}
	return nil
}

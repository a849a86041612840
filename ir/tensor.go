package ir

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/pkg/errors"
	"github.com/x448/float16"
)

// ErrMalformedConstantData is returned when a tensor's raw encoding is empty or is
// not a whole number of elements of its data type.
var ErrMalformedConstantData = errors.New("malformed constant data")

// Tensor is a named constant tensor: an initializer or the value of a Constant node.
//
// Numeric data is held either in Raw (little-endian, as in ONNX raw_data) or in
// one of the typed fields, never in both.
type Tensor struct {
	Name       string
	DType      dtypes.DType
	Dims       []int64
	Raw        []byte
	FloatData  []float32
	DoubleData []float64
	Int32Data  []int32
	Int64Data  []int64
	StringData [][]byte
	Doc        string
}

// Size returns the number of elements, 1 for scalars.
func (t *Tensor) Size() int64 {
	return numElements(t.Dims)
}

func numElements(dims []int64) int64 {
	n := int64(1)
	for _, d := range dims {
		n *= d
	}
	return n
}

// NewTensor creates a tensor from a Go slice, encoding numbers to Raw.
// Accepted data: []float32, []float64, []float16.Float16, []int8, []uint8, []int32,
// []int64, []bool and []string.
func NewTensor(name string, dims []int64, data any) (*Tensor, error) {
	t := &Tensor{Name: name, Dims: slices.Clone(dims)}
	var n int
	switch d := data.(type) {
	case []float32:
		t.DType, n = dtypes.Float32, len(d)
		t.Raw = make([]byte, 4*n)
		for i, v := range d {
			binary.LittleEndian.PutUint32(t.Raw[i*4:], math.Float32bits(v))
		}
	case []float64:
		t.DType, n = dtypes.Float64, len(d)
		t.Raw = make([]byte, 8*n)
		for i, v := range d {
			binary.LittleEndian.PutUint64(t.Raw[i*8:], math.Float64bits(v))
		}
	case []float16.Float16:
		t.DType, n = dtypes.Float16, len(d)
		t.Raw = make([]byte, 2*n)
		for i, v := range d {
			binary.LittleEndian.PutUint16(t.Raw[i*2:], v.Bits())
		}
	case []int8:
		t.DType, n = dtypes.Int8, len(d)
		t.Raw = make([]byte, n)
		for i, v := range d {
			t.Raw[i] = byte(v)
		}
	case []uint8:
		t.DType, n = dtypes.Uint8, len(d)
		t.Raw = slices.Clone(d)
	case []int32:
		t.DType, n = dtypes.Int32, len(d)
		t.Raw = make([]byte, 4*n)
		for i, v := range d {
			binary.LittleEndian.PutUint32(t.Raw[i*4:], uint32(v))
		}
	case []int64:
		t.DType, n = dtypes.Int64, len(d)
		t.Raw = make([]byte, 8*n)
		for i, v := range d {
			binary.LittleEndian.PutUint64(t.Raw[i*8:], uint64(v))
		}
	case []bool:
		t.DType, n = dtypes.Bool, len(d)
		t.Raw = make([]byte, n)
		for i, v := range d {
			if v {
				t.Raw[i] = 1
			}
		}
	case []string:
		t.DType, n = dtypes.InvalidDType, len(d)
		t.StringData = make([][]byte, n)
		for i, v := range d {
			t.StringData[i] = []byte(v)
		}
	default:
		return nil, errors.Errorf("NewTensor(%q): unsupported data type %T", name, data)
	}
	if int64(n) != t.Size() {
		return nil, errors.Errorf("NewTensor(%q): %d values given for dimensions %v", name, n, dims)
	}
	return t, nil
}

// MustTensor is like NewTensor but panics on error. Meant for tests and static tables.
func MustTensor(name string, dims []int64, data any) *Tensor {
	t, err := NewTensor(name, dims, data)
	if err != nil {
		panic(err)
	}
	return t
}

// Clone returns a deep copy of the tensor.
func (t *Tensor) Clone() *Tensor {
	if t == nil {
		return nil
	}
	c := &Tensor{
		Name:       t.Name,
		DType:      t.DType,
		Dims:       slices.Clone(t.Dims),
		Raw:        slices.Clone(t.Raw),
		FloatData:  slices.Clone(t.FloatData),
		DoubleData: slices.Clone(t.DoubleData),
		Int32Data:  slices.Clone(t.Int32Data),
		Int64Data:  slices.Clone(t.Int64Data),
		Doc:        t.Doc,
	}
	if t.StringData != nil {
		c.StringData = make([][]byte, len(t.StringData))
		for i, s := range t.StringData {
			c.StringData[i] = slices.Clone(s)
		}
	}
	return c
}

// ByteSize returns the size of the tensor's numeric payload in bytes.
func (t *Tensor) ByteSize() int64 {
	switch {
	case len(t.Raw) > 0:
		return int64(len(t.Raw))
	case len(t.FloatData) > 0:
		return int64(4 * len(t.FloatData))
	case len(t.DoubleData) > 0:
		return int64(8 * len(t.DoubleData))
	case len(t.Int32Data) > 0:
		return int64(4 * len(t.Int32Data))
	case len(t.Int64Data) > 0:
		return int64(8 * len(t.Int64Data))
	}
	return 0
}

// Int64s returns the tensor's values as int64.
//
// Typed Int64Data is returned as is. Otherwise the raw encoding must be non-empty
// and a whole multiple of 8 bytes, or ErrMalformedConstantData is returned.
func (t *Tensor) Int64s() ([]int64, error) {
	if len(t.Int64Data) > 0 {
		return slices.Clone(t.Int64Data), nil
	}
	if t.DType == dtypes.Int32 && len(t.Int32Data) > 0 {
		values := make([]int64, len(t.Int32Data))
		for i, v := range t.Int32Data {
			values[i] = int64(v)
		}
		return values, nil
	}
	if len(t.Raw) == 0 || len(t.Raw)%8 != 0 {
		return nil, errors.Wrapf(ErrMalformedConstantData,
			"tensor %q: raw data must be non-empty and a multiple of 8 bytes, got %d bytes", t.Name, len(t.Raw))
	}
	n := len(t.Raw) / 8
	if len(t.Dims) > 0 && int64(n) != t.Size() {
		return nil, errors.Wrapf(ErrMalformedConstantData,
			"tensor %q: raw data holds %d int64 values but dimensions %v require %d", t.Name, n, t.Dims, t.Size())
	}
	values := make([]int64, n)
	for i := range values {
		values[i] = int64(binary.LittleEndian.Uint64(t.Raw[i*8:]))
	}
	return values, nil
}

// Float32s returns the tensor's floating point values converted to float32.
func (t *Tensor) Float32s() ([]float32, error) {
	if len(t.FloatData) > 0 {
		return slices.Clone(t.FloatData), nil
	}
	if len(t.DoubleData) > 0 {
		values := make([]float32, len(t.DoubleData))
		for i, v := range t.DoubleData {
			values[i] = float32(v)
		}
		return values, nil
	}
	width := t.DType.Size()
	switch t.DType {
	case dtypes.Float32, dtypes.Float64, dtypes.Float16:
	default:
		return nil, errors.Errorf("tensor %q: dtype %s is not a floating point type", t.Name, t.DType)
	}
	if len(t.Raw) == 0 || len(t.Raw)%width != 0 {
		return nil, errors.Wrapf(ErrMalformedConstantData,
			"tensor %q: raw data must be non-empty and a multiple of %d bytes, got %d bytes", t.Name, width, len(t.Raw))
	}
	values := make([]float32, len(t.Raw)/width)
	for i := range values {
		switch t.DType {
		case dtypes.Float32:
			values[i] = math.Float32frombits(binary.LittleEndian.Uint32(t.Raw[i*4:]))
		case dtypes.Float64:
			values[i] = float32(math.Float64frombits(binary.LittleEndian.Uint64(t.Raw[i*8:])))
		case dtypes.Float16:
			values[i] = float16.Frombits(binary.LittleEndian.Uint16(t.Raw[i*2:])).Float32()
		}
	}
	return values, nil
}

func (t *Tensor) String() string {
	if t == nil {
		return "tensor(nil)"
	}
	return fmt.Sprintf("tensor(%s %s%v)", t.Name, t.DType, t.Dims)
}

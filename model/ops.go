package model

import (
	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/onnx-inline/ir"
	"github.com/gomlx/onnx-inline/onnxwire"
	"github.com/pkg/errors"
)

// This file contains ONNX operator emitters. Each appends one node of the default
// domain and returns the generated names of its outputs.
// Operators are documented at: https://onnx.ai/onnx/operators/

// op appends opType(inputs) with a single output named after prefix.
func (b *FunctionBuilder) op(opType, prefix string, inputs []string, attrs ...*ir.Attribute) string {
	if b.err != nil {
		return ""
	}
	out := b.genName(prefix)
	b.AddNode(ir.NewNode(opType, inputs, []string{out}, attrs...))
	return out
}

// ConstValue appends a Constant node for value under a generated name and returns it.
func (b *FunctionBuilder) ConstValue(value *ir.Tensor) string {
	if b.err != nil {
		return ""
	}
	name := b.genName("const")
	b.Const(name, value)
	return name
}

// ConstInt64s appends a 1-D int64 Constant, as used for shapes and axes inputs.
func (b *FunctionBuilder) ConstInt64s(values ...int64) string {
	t, err := ir.NewTensor("", []int64{int64(len(values))}, values)
	if err != nil {
		b.setErr(err)
		return ""
	}
	return b.ConstValue(t)
}

// Output declares name as a formal output holding value.
func (b *FunctionBuilder) Output(value, name string) *FunctionBuilder {
	if b.err != nil {
		return b
	}
	b.Outputs(name)
	return b.Node("Identity", []string{value}, []string{name})
}

// Add performs element-wise addition: z = x + y.
func (b *FunctionBuilder) Add(x, y string) string {
	return b.op("Add", "add", []string{x, y})
}

// Sub performs element-wise subtraction: z = x - y.
func (b *FunctionBuilder) Sub(x, y string) string {
	return b.op("Sub", "sub", []string{x, y})
}

// Mul performs element-wise multiplication: z = x * y.
func (b *FunctionBuilder) Mul(x, y string) string {
	return b.op("Mul", "mul", []string{x, y})
}

// Div performs element-wise division: z = x / y.
func (b *FunctionBuilder) Div(x, y string) string {
	return b.op("Div", "div", []string{x, y})
}

// Pow raises x to the power y element-wise.
func (b *FunctionBuilder) Pow(x, y string) string {
	return b.op("Pow", "pow", []string{x, y})
}

// MatMul performs matrix multiplication: z = x @ y.
func (b *FunctionBuilder) MatMul(x, y string) string {
	return b.op("MatMul", "matmul", []string{x, y})
}

// Gemm computes alpha * A' @ B' + beta * C, where A' and B' are optionally transposed.
// c may be empty.
func (b *FunctionBuilder) Gemm(a, bv, c string, alpha, beta float32, transA, transB bool) string {
	inputs := []string{a, bv}
	if c != "" {
		inputs = append(inputs, c)
	}
	return b.op("Gemm", "gemm", inputs,
		ir.Float("alpha", alpha), ir.Float("beta", beta),
		ir.Int("transA", boolInt(transA)), ir.Int("transB", boolInt(transB)))
}

func boolInt(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

// Relu applies rectified linear unit: z = max(x, 0).
func (b *FunctionBuilder) Relu(x string) string {
	return b.op("Relu", "relu", []string{x})
}

// Sigmoid applies sigmoid activation: z = 1 / (1 + exp(-x)).
func (b *FunctionBuilder) Sigmoid(x string) string {
	return b.op("Sigmoid", "sigmoid", []string{x})
}

// Tanh applies hyperbolic tangent.
func (b *FunctionBuilder) Tanh(x string) string {
	return b.op("Tanh", "tanh", []string{x})
}

// Exp computes e^x element-wise.
func (b *FunctionBuilder) Exp(x string) string {
	return b.op("Exp", "exp", []string{x})
}

// Log computes the natural logarithm element-wise.
func (b *FunctionBuilder) Log(x string) string {
	return b.op("Log", "log", []string{x})
}

// Sqrt computes the square root element-wise.
func (b *FunctionBuilder) Sqrt(x string) string {
	return b.op("Sqrt", "sqrt", []string{x})
}

// Neg negates x element-wise.
func (b *FunctionBuilder) Neg(x string) string {
	return b.op("Neg", "neg", []string{x})
}

// Abs computes |x| element-wise.
func (b *FunctionBuilder) Abs(x string) string {
	return b.op("Abs", "abs", []string{x})
}

// Identity copies x to a new value.
func (b *FunctionBuilder) Identity(x string) string {
	return b.op("Identity", "identity", []string{x})
}

// Equal compares element-wise: z = x == y.
func (b *FunctionBuilder) Equal(x, y string) string {
	return b.op("Equal", "equal", []string{x, y})
}

// Less compares element-wise: z = x < y.
func (b *FunctionBuilder) Less(x, y string) string {
	return b.op("Less", "less", []string{x, y})
}

// Greater compares element-wise: z = x > y.
func (b *FunctionBuilder) Greater(x, y string) string {
	return b.op("Greater", "greater", []string{x, y})
}

// And computes the logical AND of boolean tensors.
func (b *FunctionBuilder) And(x, y string) string {
	return b.op("And", "and", []string{x, y})
}

// Not computes the logical negation of a boolean tensor.
func (b *FunctionBuilder) Not(x string) string {
	return b.op("Not", "not", []string{x})
}

// Where selects x where cond is true, y elsewhere.
func (b *FunctionBuilder) Where(cond, x, y string) string {
	return b.op("Where", "where", []string{cond, x, y})
}

// Cast converts x to dtype.
func (b *FunctionBuilder) Cast(x string, dtype dtypes.DType) string {
	to, ok := onnxwire.DataType(dtype)
	if !ok {
		b.setErr(errors.Errorf("function %s: Cast to %s: no ONNX data type", b.fn.Name, dtype))
		return ""
	}
	return b.op("Cast", "cast", []string{x}, ir.Int("to", to))
}

// Clip clamps x to [lo, hi]. Either bound may be empty for no bound.
func (b *FunctionBuilder) Clip(x, lo, hi string) string {
	inputs := []string{x, lo, hi}
	// Trailing optional inputs are dropped; a missing lo stays as an empty name.
	for len(inputs) > 1 && inputs[len(inputs)-1] == "" {
		inputs = inputs[:len(inputs)-1]
	}
	return b.op("Clip", "clip", inputs)
}

// Transpose permutes the axes of x. An empty perm reverses them.
func (b *FunctionBuilder) Transpose(x string, perm ...int64) string {
	var attrs []*ir.Attribute
	if len(perm) > 0 {
		attrs = append(attrs, ir.Ints("perm", perm...))
	}
	return b.op("Transpose", "transpose", []string{x}, attrs...)
}

// Reshape reshapes x to the shape held by the 1-D int64 value shape.
func (b *FunctionBuilder) Reshape(x, shape string) string {
	return b.op("Reshape", "reshape", []string{x, shape})
}

// Concat concatenates xs along axis.
func (b *FunctionBuilder) Concat(axis int64, xs ...string) string {
	if len(xs) == 0 {
		b.setErr(errors.Errorf("function %s: Concat without inputs", b.fn.Name))
		return ""
	}
	return b.op("Concat", "concat", xs, ir.Int("axis", axis))
}

// Unsqueeze inserts size-1 dimensions at the given axes.
func (b *FunctionBuilder) Unsqueeze(x string, axes ...int64) string {
	return b.op("Unsqueeze", "unsqueeze", []string{x, b.ConstInt64s(axes...)})
}

// Squeeze removes the size-1 dimensions at the given axes, or all of them if none
// are given.
func (b *FunctionBuilder) Squeeze(x string, axes ...int64) string {
	inputs := []string{x}
	if len(axes) > 0 {
		inputs = append(inputs, b.ConstInt64s(axes...))
	}
	return b.op("Squeeze", "squeeze", inputs)
}

// Gather takes the entries of data at indices along axis.
func (b *FunctionBuilder) Gather(data, indices string, axis int64) string {
	return b.op("Gather", "gather", []string{data, indices}, ir.Int("axis", axis))
}

// ReduceSum sums x over axes, all of them if none are given.
func (b *FunctionBuilder) ReduceSum(x string, keepDims bool, axes ...int64) string {
	return b.reduce("ReduceSum", "reduce_sum", x, keepDims, axes)
}

// ReduceMean averages x over axes, all of them if none are given.
func (b *FunctionBuilder) ReduceMean(x string, keepDims bool, axes ...int64) string {
	return b.reduce("ReduceMean", "reduce_mean", x, keepDims, axes)
}

// ReduceMax takes the maximum of x over axes, all of them if none are given.
func (b *FunctionBuilder) ReduceMax(x string, keepDims bool, axes ...int64) string {
	return b.reduce("ReduceMax", "reduce_max", x, keepDims, axes)
}

// reduce emits a reduction taking its axes as an input, as in opset 18.
func (b *FunctionBuilder) reduce(opType, prefix, x string, keepDims bool, axes []int64) string {
	inputs := []string{x}
	if len(axes) > 0 {
		inputs = append(inputs, b.ConstInt64s(axes...))
	}
	return b.op(opType, prefix, inputs, ir.Int("keepdims", boolInt(keepDims)))
}

// Softmax normalizes x along axis.
func (b *FunctionBuilder) Softmax(x string, axis int64) string {
	return b.op("Softmax", "softmax", []string{x}, ir.Int("axis", axis))
}

// ArgMax returns the indices of the maximum values along axis.
func (b *FunctionBuilder) ArgMax(x string, axis int64, keepDims bool) string {
	return b.op("ArgMax", "argmax", []string{x}, ir.Int("axis", axis), ir.Int("keepdims", boolInt(keepDims)))
}

// TopK returns the k largest (or smallest) values of x along axis and their indices.
func (b *FunctionBuilder) TopK(x string, k, axis int64, largest, sorted bool) (values, indices string) {
	if b.err != nil {
		return "", ""
	}
	if k <= 0 {
		b.setErr(errors.Errorf("function %s: TopK with k=%d", b.fn.Name, k))
		return "", ""
	}
	kValue := b.ConstInt64s(k)
	values, indices = b.genName("topk_values"), b.genName("topk_indices")
	b.AddNode(ir.NewNode("TopK", []string{x, kValue}, []string{values, indices},
		ir.Int("axis", axis), ir.Int("largest", boolInt(largest)), ir.Int("sorted", boolInt(sorted))))
	return values, indices
}

// Argsort returns the indices that sort x along axis, which must have static size n.
func (b *FunctionBuilder) Argsort(x string, n, axis int64, descending bool) string {
	_, indices := b.TopK(x, n, axis, descending, true)
	return indices
}

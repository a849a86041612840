package model

import (
	"slices"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/onnx-inline/ir"
)

// lastNode returns the last node appended to fn.
func lastNode(t *testing.T, fn *ir.Function) *ir.Node {
	t.Helper()
	if len(fn.Nodes) == 0 {
		t.Fatal("function has no nodes")
	}
	return fn.Nodes[len(fn.Nodes)-1]
}

func TestClip(t *testing.T) {
	tests := []struct {
		name       string
		lo, hi     bool
		wantInputs int
	}{
		{"Both", true, true, 3},
		{"MinOnly", true, false, 2},
		{"MaxOnly", false, true, 3},
		{"Neither", false, false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewFunctionBuilder("clip", "").Inputs("x")
			var lo, hi string
			if tt.lo {
				lo = b.ConstValue(ir.MustTensor("", nil, []float32{-1}))
			}
			if tt.hi {
				hi = b.ConstValue(ir.MustTensor("", nil, []float32{1}))
			}
			clamped := b.Clip("x", lo, hi)
			b.Output(clamped, "clamped")

			fn, err := b.Build()
			if err != nil {
				t.Fatalf("Build() error = %v", err)
			}
			var clip *ir.Node
			for _, n := range fn.Nodes {
				if n.OpType == "Clip" {
					clip = n
				}
			}
			if clip == nil {
				t.Fatal("Clip node not found")
			}
			if len(clip.Inputs) != tt.wantInputs {
				t.Fatalf("Clip inputs = %v, want %d inputs", clip.Inputs, tt.wantInputs)
			}
			if tt.hi && !tt.lo && clip.Inputs[1] != "" {
				t.Errorf("missing min should stay as an empty input, got %q", clip.Inputs[1])
			}
			if got := fn.Outputs; !slices.Equal(got, []string{"clamped"}) {
				t.Errorf("Outputs = %v, want [clamped]", got)
			}
			if out := lastNode(t, fn); out.OpType != "Identity" || out.Inputs[0] != clamped {
				t.Errorf("output node = %s, want Identity(%s)", out, clamped)
			}
		})
	}
}

func TestCast(t *testing.T) {
	b := NewFunctionBuilder("cast", "").Inputs("x")
	half := b.Cast("x", dtypes.Float16)
	fn, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	cast := lastNode(t, fn)
	if cast.OpType != "Cast" || cast.Outputs[0] != half {
		t.Fatalf("node = %s, want Cast -> %s", cast, half)
	}
	to, ok := cast.Attribute("to")
	if !ok {
		t.Fatal("Cast has no 'to' attribute")
	}
	if to.Value.I != 10 {
		t.Errorf("to = %d, want 10 (FLOAT16)", to.Value.I)
	}

	b = NewFunctionBuilder("cast", "").Inputs("x")
	if got := b.Cast("x", dtypes.InvalidDType); got != "" {
		t.Errorf("Cast to invalid dtype returned %q", got)
	}
	if b.Err() == nil {
		t.Error("expected an error casting to an invalid dtype")
	}
}

func TestGeneratedNamesAvoidTakenNames(t *testing.T) {
	b := NewFunctionBuilder("names", "").Inputs("add_0", "y")
	sum := b.Add("add_0", "y")
	if sum == "add_0" {
		t.Fatal("generated name collides with an input")
	}
	prod := b.Mul(sum, "y")
	if prod == sum {
		t.Fatalf("Mul output %q reuses Add output", prod)
	}
	if b.Err() != nil {
		t.Fatalf("unexpected error: %v", b.Err())
	}
}

func TestGemmAttributes(t *testing.T) {
	b := NewFunctionBuilder("gemm", "").Inputs("a", "b")
	b.Gemm("a", "b", "", 0.5, 1, false, true)
	fn, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	gemm := lastNode(t, fn)
	if len(gemm.Inputs) != 2 {
		t.Errorf("Gemm inputs = %v, want 2 without C", gemm.Inputs)
	}
	if a, _ := gemm.Attribute("alpha"); a.Value.F != 0.5 {
		t.Errorf("alpha = %v, want 0.5", a.Value.F)
	}
	if tb, _ := gemm.Attribute("transB"); tb.Value.I != 1 {
		t.Errorf("transB = %d, want 1", tb.Value.I)
	}
}

func TestReduceAxesInput(t *testing.T) {
	b := NewFunctionBuilder("reduce", "").Inputs("x")
	b.ReduceSum("x", false, 0, 2)
	b.ReduceMean("x", true)
	fn, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	// Constant(axes), ReduceSum, ReduceMean
	if len(fn.Nodes) != 3 {
		t.Fatalf("got %d nodes, want 3", len(fn.Nodes))
	}
	axes, _ := fn.Nodes[0].Attribute("value")
	values, err := axes.Value.T.Int64s()
	if err != nil || !slices.Equal(values, []int64{0, 2}) {
		t.Errorf("axes = %v (err %v), want [0 2]", values, err)
	}
	if sum := fn.Nodes[1]; !slices.Equal(sum.Inputs, []string{"x", fn.Nodes[0].Outputs[0]}) {
		t.Errorf("ReduceSum inputs = %v", sum.Inputs)
	}
	if mean := fn.Nodes[2]; len(mean.Inputs) != 1 {
		t.Errorf("ReduceMean without axes has inputs %v", mean.Inputs)
	}
}

package model

import (
	"errors"
	"slices"
	"strings"
	"testing"

	"github.com/gomlx/onnx-inline/ir"
	"github.com/gomlx/onnx-inline/schema"
)

// matMulGraph is Y = MatMul(X, W) with W an initializer.
func matMulGraph() *ir.Graph {
	g := ir.NewGraph("linear")
	g.Inputs = []string{"X"}
	g.Outputs = []string{"Y"}
	g.Initializers = []*ir.Tensor{ir.MustTensor("W", []int64{2, 2}, []float32{1, 0, 0, 1})}
	g.AddNode(ir.NewNode("MatMul", []string{"X", "W"}, []string{"Y"}))
	return g
}

func TestAddInlinedCall(t *testing.T) {
	g := matMulGraph()
	fn, err := NewFunctionBuilder("Lin", "custom").
		Inputs("input0").Outputs("output0").
		AddInlinedCall([]string{"output0"}, g, []string{"input0"}, "p1_").
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(fn.Nodes) != 2 {
		t.Fatalf("got %d nodes, want Constant and MatMul", len(fn.Nodes))
	}

	constant := fn.Nodes[0]
	if constant.OpType != ConstantOpType || len(constant.Outputs) != 1 {
		t.Fatalf("first node = %s, want a single-output Constant", constant)
	}
	constName := constant.Outputs[0]
	if slices.Contains([]string{"W", "input0", "output0"}, constName) {
		t.Errorf("constant name %q collides with a graph or function name", constName)
	}
	if !strings.HasPrefix(constName, "p1_") {
		t.Errorf("constant name %q lacks the prefix p1_", constName)
	}
	value, ok := constant.Attribute("value")
	if !ok || value.Value.T == nil {
		t.Fatal("Constant has no tensor value")
	}
	if value.Value.T.Name != constName {
		t.Errorf("tensor name = %q, want %q", value.Value.T.Name, constName)
	}
	if value.Value.T == g.Initializers[0] {
		t.Error("Constant shares the initializer tensor")
	}

	matMul := fn.Nodes[1]
	if matMul.OpType != "MatMul" {
		t.Errorf("second node = %s, want MatMul", matMul)
	}
	if want := []string{"input0", constName}; !slices.Equal(matMul.Inputs, want) {
		t.Errorf("MatMul inputs = %v, want %v", matMul.Inputs, want)
	}
	if !slices.Equal(matMul.Outputs, []string{"output0"}) {
		t.Errorf("MatMul outputs = %v, want [output0]", matMul.Outputs)
	}

	// The source graph is untouched.
	if !slices.Equal(g.Nodes()[0].Inputs, []string{"X", "W"}) || g.Initializers[0].Name != "W" {
		t.Error("AddInlinedCall modified the source graph")
	}
}

func TestAddInlinedCallTwice(t *testing.T) {
	g := ir.NewGraph("block")
	g.Inputs = []string{"X"}
	g.Outputs = []string{"Y"}
	g.Initializers = []*ir.Tensor{
		ir.MustTensor("B", []int64{1}, []float32{0.5}),
		ir.MustTensor("S", []int64{1}, []float32{2}),
	}
	g.AddNode(ir.NewNode("Add", []string{"X", "B"}, []string{"t"}))
	g.AddNode(ir.NewNode("Mul", []string{"t", "S"}, []string{"u"}))
	g.AddNode(ir.NewNode("Tanh", []string{"u"}, []string{"Y"}))

	fn, err := NewFunctionBuilder("Twice", "custom").
		Inputs("in").Outputs("out").
		AddInlinedCall([]string{"mid"}, g, []string{"in"}, "a_").
		AddInlinedCall([]string{"out"}, g, []string{"mid"}, "b_").
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if len(fn.Nodes) != 10 {
		t.Fatalf("got %d nodes, want 10", len(fn.Nodes))
	}

	first, second := fn.Nodes[:5], fn.Nodes[5:]
	firstNames, secondNames := map[string]bool{}, map[string]bool{}
	for i := range first {
		if first[i].OpType != second[i].OpType || len(first[i].Inputs) != len(second[i].Inputs) {
			t.Errorf("node %d: %s and %s are not isomorphic", i, first[i], second[i])
		}
		for _, name := range append(first[i].Inputs, first[i].Outputs...) {
			firstNames[name] = true
		}
		for _, name := range append(second[i].Inputs, second[i].Outputs...) {
			secondNames[name] = true
		}
	}
	// Only the value linking the two splices is shared.
	for name := range firstNames {
		if secondNames[name] && name != "mid" {
			t.Errorf("name %q used by both splices", name)
		}
	}

	for i, prefix := range []string{"a_", "b_"} {
		nodes := fn.Nodes[i*5 : i*5+5]
		constants := 0
		for _, n := range nodes {
			if n.OpType == ConstantOpType {
				constants++
				if !strings.HasPrefix(n.Outputs[0], prefix) {
					t.Errorf("constant %q lacks prefix %q", n.Outputs[0], prefix)
				}
			}
		}
		if constants != 2 || nodes[0].OpType != ConstantOpType || nodes[1].OpType != ConstantOpType {
			t.Errorf("splice %s: constants must come first, once per initializer", prefix)
		}
		if got := nodes[2].Outputs[0]; got != prefix+"t" {
			t.Errorf("splice %s: Add output = %q, want %q", prefix, got, prefix+"t")
		}
	}
}

func TestAddInlinedCallBindingExhaustion(t *testing.T) {
	g := ir.NewGraph("two_inputs")
	g.Inputs = []string{"A", "B"}
	g.Outputs = []string{"C", "D"}
	g.AddNode(ir.NewNode("Split", []string{"A", "B", ""}, []string{"C", "D"}))

	fn, err := NewFunctionBuilder("F", "").
		AddInlinedCall([]string{"c"}, g, []string{"a"}, "s_").
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	n := fn.Nodes[0]
	if want := []string{"a", "s_B", ""}; !slices.Equal(n.Inputs, want) {
		t.Errorf("inputs = %v, want %v", n.Inputs, want)
	}
	if want := []string{"c", "s_D"}; !slices.Equal(n.Outputs, want) {
		t.Errorf("outputs = %v, want %v", n.Outputs, want)
	}
}

func TestAddInlinedCallAvoidsTakenNames(t *testing.T) {
	g := ir.NewGraph("g")
	g.Inputs = []string{"X"}
	g.Outputs = []string{"Y"}
	g.Initializers = []*ir.Tensor{ir.MustTensor("W", nil, []float32{3})}
	g.AddNode(ir.NewNode("Mul", []string{"X", "W"}, []string{"t"}))
	g.AddNode(ir.NewNode("Neg", []string{"t"}, []string{"Y"}))

	fn, err := NewFunctionBuilder("F", "").
		Inputs("p_W").Outputs("p_t").
		AddInlinedCall([]string{"out"}, g, []string{"p_W"}, "p_").
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	checks := []struct {
		got, want []string
	}{
		{fn.Nodes[0].Outputs, []string{"p_W_1"}},
		{fn.Nodes[1].Inputs, []string{"p_W", "p_W_1"}},
		{fn.Nodes[1].Outputs, []string{"p_t_1"}},
		{fn.Nodes[2].Inputs, []string{"p_t_1"}},
	}
	for i, c := range checks {
		if !slices.Equal(c.got, c.want) {
			t.Errorf("check %d: got %v, want %v", i, c.got, c.want)
		}
	}
}

func TestAddInlinedCallRenamesSubgraphs(t *testing.T) {
	body := ir.NewGraph("then")
	body.Outputs = []string{"r"}
	body.AddNode(ir.NewNode("Identity", []string{"v"}, []string{"r"}))

	g := ir.NewGraph("g")
	g.Inputs = []string{"cond"}
	g.Outputs = []string{"Y"}
	g.AddNode(ir.NewNode("Relu", []string{"cond"}, []string{"v"}))
	g.AddNode(ir.NewNode("If", []string{"cond"}, []string{"Y"}, ir.GraphAttr("then_branch", body)))

	fn, err := NewFunctionBuilder("F", "").
		AddInlinedCall([]string{"y"}, g, []string{"c"}, "q_").
		Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	then := graphAttr(t, fn.Nodes[1], "then_branch")
	inner := then.Nodes()[0]
	if !slices.Equal(inner.Inputs, fn.Nodes[0].Outputs) {
		t.Errorf("branch reads %v, want the renamed Relu output %v", inner.Inputs, fn.Nodes[0].Outputs)
	}
	if !slices.Equal(then.Outputs, []string{"q_r"}) {
		t.Errorf("branch outputs = %v, want [q_r]", then.Outputs)
	}
	if !slices.Equal(body.Nodes()[0].Inputs, []string{"v"}) {
		t.Error("AddInlinedCall modified the source subgraph")
	}
}

func TestBuilderErrors(t *testing.T) {
	b := NewFunctionBuilder("F", "")
	b.Node("", nil, []string{"x"})
	b.Node("Relu", []string{"x"}, []string{"y"})
	if b.Err() == nil {
		t.Fatal("expected an error for a node without op type")
	}
	if _, err := b.Build(); err == nil || !strings.Contains(err.Error(), "no op type") {
		t.Errorf("Build() error = %v, want it to mention the missing op type", err)
	}

	b = NewFunctionBuilder("F", "").AddInlinedCall(nil, nil, nil, "p_")
	if !errors.Is(b.Err(), ErrNotInlinable) {
		t.Errorf("Err() = %v, want ErrNotInlinable", b.Err())
	}

	b = NewFunctionBuilder("F", "").Const("c", nil)
	if b.Err() == nil {
		t.Error("expected an error for a Constant without value")
	}
}

func TestConstGeneratedName(t *testing.T) {
	b := NewFunctionBuilder("F", "").Inputs("const_0")
	b.Const("", ir.MustTensor("ignored", nil, []int64{1}))
	fn, err := b.Build()
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if !slices.Equal(fn.Nodes[0].Outputs, []string{"const_1"}) {
		t.Errorf("Const output = %v, want [const_1]", fn.Nodes[0].Outputs)
	}
}

func TestBuildFunction(t *testing.T) {
	s := &schema.OpSchema{
		Name: "Softsign2", Domain: "custom", SinceVersion: 1,
		Inputs: []string{"X"}, Outputs: []string{"Y"},
		Attributes: map[string]schema.AttrSpec{
			"scale": {Name: "scale", Type: ir.AttrFloat, Default: &ir.AttrValue{Type: ir.AttrFloat, F: 1}},
		},
	}
	defs := []NodeDef{
		{Outputs: []string{"a"}, OpType: "Abs", Inputs: []string{"X"}},
		{Outputs: []string{"Y"}, OpType: "Div", Inputs: []string{"X", "a"}, Attributes: []*ir.Attribute{ir.Ref("s", "scale")}},
	}
	fn, err := BuildFunction(s, defs, []ir.OpsetID{{Domain: "", Version: 18}})
	if err != nil {
		t.Fatalf("BuildFunction() error = %v", err)
	}
	if fn.Name != "Softsign2" || fn.Domain != "custom" {
		t.Errorf("function = %s.%s, want custom.Softsign2", fn.Domain, fn.Name)
	}
	if !slices.Equal(fn.Inputs, []string{"X"}) {
		t.Errorf("Inputs = %v, want [X]", fn.Inputs)
	}
	if want := []ir.OpsetID{{Domain: "", Version: 18}}; !slices.Equal(fn.OpsetImports, want) {
		t.Errorf("OpsetImports = %v, want %v", fn.OpsetImports, want)
	}
	if len(fn.Nodes) != 2 || fn.Nodes[1].OpType != "Div" {
		t.Fatalf("nodes = %v, want [Abs Div]", fn.Nodes)
	}
	if !fn.Nodes[1].Attributes[0].IsRef() {
		t.Error("Div attribute should stay a reference")
	}
	if fn.Nodes[1].Attributes[0] == defs[1].Attributes[0] {
		t.Error("node shares its attribute with the definition")
	}
	if len(fn.AttributeDefaults) != 1 || fn.AttributeDefaults[0].Name != "scale" {
		t.Errorf("AttributeDefaults = %v, want [scale]", fn.AttributeDefaults)
	}
}

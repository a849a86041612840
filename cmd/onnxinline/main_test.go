package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/gomlx/onnx-inline/inline"
	"github.com/gomlx/onnx-inline/ir"
	"github.com/gomlx/onnx-inline/onnxwire"
	"github.com/gomlx/onnx-inline/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blockModel() *ir.Model {
	g := ir.NewGraph("block")
	g.Inputs = []string{"x", "W"}
	g.Outputs = []string{"y"}
	g.Initializers = []*ir.Tensor{ir.MustTensor("W", []int64{2, 2}, []float32{1, 0, 0, 1})}
	g.AddNode(ir.NewNode("MatMul", []string{"x", "W"}, []string{"h"}))
	g.AddNode(ir.NewNode("Relu", []string{"h"}, []string{"y"}))
	return &ir.Model{
		IRVersion:    9,
		OpsetImports: []ir.OpsetID{{Domain: "", Version: 18}},
		Graph:        g,
	}
}

func TestSpliceThenInline(t *testing.T) {
	spliced, err := spliceModel(blockModel(), "Block", "custom", 1, "")
	require.NoError(t, err)

	require.Len(t, spliced.Functions, 1)
	fn := spliced.Functions[0]
	assert.Equal(t, []string{"x"}, fn.Inputs)
	assert.Equal(t, []string{"y"}, fn.Outputs)
	require.Len(t, fn.Nodes, 3)
	assert.Equal(t, "Constant", fn.Nodes[0].OpType)
	assert.Equal(t, []string{"Block_W"}, fn.Nodes[0].Outputs)
	assert.Equal(t, []string{"x", "Block_W"}, fn.Nodes[1].Inputs)

	require.Equal(t, 1, spliced.Graph.NumNodes())
	call := spliced.Graph.Nodes()[0]
	assert.Equal(t, "Block", call.OpType)
	assert.Equal(t, "custom", call.Domain)

	local, err := schema.ForLibrary(spliced.Library())
	require.NoError(t, err)
	inlined, err := inline.NewExpander(local).InlineModel(spliced)
	require.NoError(t, err)
	assert.Empty(t, inlined.Functions)

	nodes := inlined.Graph.Nodes()
	require.Len(t, nodes, 3)
	assert.Equal(t, []string{"Constant", "MatMul", "Relu"},
		[]string{nodes[0].OpType, nodes[1].OpType, nodes[2].OpType})
	assert.Equal(t, "x", nodes[1].Inputs[0])
	assert.Equal(t, []string{"y"}, nodes[2].Outputs)
}

func TestSpliceWithoutGraph(t *testing.T) {
	_, err := spliceModel(&ir.Model{}, "Block", "custom", 1, "")
	require.Error(t, err)
}

func TestInlineOutputPath(t *testing.T) {
	got, err := inlineOutputPath("dir/model.onnx", false)
	require.NoError(t, err)
	assert.Equal(t, "dir/model.inlined.onnx", got)
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ops.yaml"), []byte(`schemas:
  - name: Block
    domain: custom
    since_version: 1
    inputs: [x]
    outputs: [y]
`), 0o644))
	require.NoError(t, onnxwire.SaveModel("block.onnx", blockModel(), onnxwire.DefaultSaveOptions()))

	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetErr(&out)
		rootCmd.SetArgs(args)
		require.NoError(t, rootCmd.Execute(), out.String())
		return out.String()
	}

	run("--log-level", "error", "splice", "block.onnx", "--name", "Block", "-o", "wrapped.onnx")
	run("--log-level", "error", "inline", "wrapped.onnx", "-o", "flat.onnx")

	flat, err := onnxwire.LoadModel("flat.onnx")
	require.NoError(t, err)
	assert.Empty(t, flat.Functions)
	assert.Equal(t, 3, flat.Graph.NumNodes())

	out := run("--log-level", "error", "--schemas", "ops.yaml", "schemas")
	assert.Contains(t, out, "custom::Block-1")
}

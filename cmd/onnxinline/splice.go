package main

import (
	"slices"

	"github.com/gomlx/onnx-inline/ir"
	"github.com/gomlx/onnx-inline/model"
	"github.com/gomlx/onnx-inline/onnxwire"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	spliceName    string
	spliceDomain  string
	splicePrefix  string
	spliceOutput  string
	spliceVersion int64
)

var spliceCmd = &cobra.Command{
	Use:   "splice MODEL",
	Short: "Package a model's graph as a model-local function",
	Long: `Splice the graph of MODEL into a new function and write a model whose graph is a
single call to it.

The graph's initializers become Constant nodes of the function, and its
remaining inputs and outputs become the function's formal parameters. Running
"inline" on the result gives back an equivalent flat graph.`,
	Args: cobra.ExactArgs(1),
	RunE: runSplice,
}

func init() {
	spliceCmd.Flags().StringVar(&spliceName, "name", "", "function name (required)")
	spliceCmd.Flags().StringVar(&spliceDomain, "domain", "custom", "function domain")
	spliceCmd.Flags().Int64Var(&spliceVersion, "domain-version", 1, "opset version imported for the function's domain")
	spliceCmd.Flags().StringVar(&splicePrefix, "prefix", "", "prefix of renamed internal values (default NAME_)")
	spliceCmd.Flags().StringVarP(&spliceOutput, "output", "o", "", "output file (required)")
	_ = spliceCmd.MarkFlagRequired("name")
	_ = spliceCmd.MarkFlagRequired("output")
}

// spliceModel wraps m's graph into function name of domain and returns a model
// calling it once.
func spliceModel(m *ir.Model, name, domain string, version int64, prefix string) (*ir.Model, error) {
	if m.Graph == nil {
		return nil, errors.New("model has no graph")
	}
	if prefix == "" {
		prefix = name + "_"
	}
	g := m.Graph

	// Inputs fed by initializers are internal to the function.
	var inputs []string
	for _, in := range g.Inputs {
		if _, ok := g.Initializer(in); !ok {
			inputs = append(inputs, in)
		}
	}
	b := model.NewFunctionBuilder(name, domain).
		WithLogger(logger).
		Inputs(inputs...).
		Outputs(g.Outputs...)
	for _, imp := range m.OpsetImports {
		b.AddOpset(imp.Domain, imp.Version)
	}
	// Calls to the function resolve their domain through its own imports.
	b.AddOpset(domain, version)

	// Bind the graph's inputs positionally, skipping those replaced by initializers.
	graph := g.CloneHeader()
	graph.Inputs = inputs
	graph.Initializers = g.Initializers
	for _, n := range g.Nodes() {
		graph.AddNode(n)
	}
	fn, err := b.AddInlinedCall(g.Outputs, graph, inputs, prefix).Build()
	if err != nil {
		return nil, err
	}

	caller := ir.NewGraph(g.Name)
	caller.Inputs = slices.Clone(inputs)
	caller.Outputs = slices.Clone(g.Outputs)
	call := &ir.Node{
		Name:    name + "_" + uuid.NewString(),
		OpType:  name,
		Domain:  domain,
		Inputs:  slices.Clone(inputs),
		Outputs: slices.Clone(g.Outputs),
	}
	caller.AddNode(call)

	return &ir.Model{
		IRVersion:       m.IRVersion,
		ProducerName:    "onnxinline",
		ProducerVersion: Version,
		Domain:          m.Domain,
		ModelVersion:    m.ModelVersion,
		Doc:             m.Doc,
		OpsetImports:    append(slices.Clone(m.OpsetImports), ir.OpsetID{Domain: domain, Version: version}),
		Graph:           caller,
		Functions:       append(slices.Clone(m.Functions), fn),
	}, nil
}

func runSplice(cmd *cobra.Command, args []string) error {
	m, err := onnxwire.LoadModel(args[0])
	if err != nil {
		return err
	}
	out, err := spliceModel(m, spliceName, spliceDomain, spliceVersion, splicePrefix)
	if err != nil {
		return errors.WithMessagef(err, "splicing %s", args[0])
	}
	saveOpts := onnxwire.DefaultSaveOptions()
	saveOpts.Threshold = cfg.ExternalDataThreshold
	if err := onnxwire.SaveModel(spliceOutput, out, saveOpts); err != nil {
		return err
	}
	logger.Info("spliced graph into function",
		zap.String("input", args[0]),
		zap.String("output", spliceOutput),
		zap.String("function", spliceName),
		zap.Int("nodes", len(out.Functions[len(out.Functions)-1].Nodes)))
	return nil
}

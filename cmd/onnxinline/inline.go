package main

import (
	"path/filepath"

	"github.com/gomlx/onnx-inline/inline"
	"github.com/gomlx/onnx-inline/onnxwire"
	"github.com/gomlx/onnx-inline/schema"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	inlineOutput     string
	inlineOutDir     string
	inlineNameTag    string
	inlineUUIDTokens bool
	inlineNoExternal bool
)

var inlineCmd = &cobra.Command{
	Use:   "inline MODEL...",
	Short: "Expand every function call of one or more models",
	Long: `Expand every call to a model-local function into the function's body.

Nested calls are expanded up to the recursion limit. Calls to operators that are
not model-local functions are kept. Attribute defaults come from the schema file,
or from the function's own declaration when no schema is registered for it.

The inlined model drops its function list and imports the opsets its functions
relied on.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInline,
}

func init() {
	inlineCmd.Flags().StringVarP(&inlineOutput, "output", "o", "", "output file (single model only)")
	inlineCmd.Flags().StringVar(&inlineOutDir, "out-dir", "", "output directory, keeping each model's file name")
	inlineCmd.Flags().StringVar(&inlineNameTag, "name-tag", inline.DefaultNameTag, "prefix of generated value names")
	inlineCmd.Flags().BoolVar(&inlineUUIDTokens, "uuid-tokens", false, "name anonymous call sites with random UUIDs instead of a counter")
	inlineCmd.Flags().BoolVar(&inlineNoExternal, "no-external-data", false, "store every tensor inline")
}

func inlineOutputPath(input string, multiple bool) (string, error) {
	switch {
	case inlineOutDir != "":
		return filepath.Join(inlineOutDir, filepath.Base(input)), nil
	case inlineOutput != "" && multiple:
		return "", errors.New("--output takes a single model; use --out-dir")
	case inlineOutput != "":
		return inlineOutput, nil
	}
	ext := filepath.Ext(input)
	return input[:len(input)-len(ext)] + ".inlined" + ext, nil
}

func runInline(cmd *cobra.Command, args []string) error {
	opts := []inline.Option{
		inline.WithLogger(logger),
		inline.WithNameTag(inlineNameTag),
		inline.WithRecursionLimit(cfg.RecursionLimit),
	}
	if inlineUUIDTokens {
		opts = append(opts, inline.WithTokenSource(inline.UUIDTokens{}))
	}

	saveOpts := onnxwire.DefaultSaveOptions()
	saveOpts.ExternalData = !inlineNoExternal
	saveOpts.Threshold = cfg.ExternalDataThreshold

	eg, ctx := errgroup.WithContext(cmd.Context())
	eg.SetLimit(cfg.Parallelism)
	for _, input := range args {
		output, err := inlineOutputPath(input, len(args) > 1)
		if err != nil {
			return err
		}
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			m, err := onnxwire.LoadModel(input)
			if err != nil {
				return err
			}
			// Functions without a registered schema fall back to their own declaration.
			local, err := schema.ForLibrary(m.Library())
			if err != nil {
				return errors.WithMessagef(err, "deriving schemas of %s", input)
			}
			expander := inline.NewExpander(schema.Chain{registry, local}, opts...)
			inlined, err := expander.InlineModel(m)
			if err != nil {
				return errors.WithMessagef(err, "inlining %s", input)
			}
			if err := onnxwire.SaveModel(output, inlined, saveOpts); err != nil {
				return errors.WithMessagef(err, "saving %s", output)
			}
			logger.Info("inlined model",
				zap.String("input", input),
				zap.String("output", output),
				zap.Int("functions", len(m.Functions)),
				zap.Int("nodes_before", m.Graph.NumNodes()),
				zap.Int("nodes_after", inlined.Graph.NumNodes()))
			return nil
		})
	}
	return eg.Wait()
}

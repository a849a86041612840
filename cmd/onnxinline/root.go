package main

import (
	"github.com/gomlx/onnx-inline/internal/config"
	"github.com/gomlx/onnx-inline/schema"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	configFile string
	v          = config.New()

	// Set up by the root command before any subcommand runs.
	cfg      *config.Config
	logger   *zap.Logger
	registry *schema.Registry
)

var rootCmd = &cobra.Command{
	Use:   "onnxinline",
	Short: "Inline ONNX model-local functions",
	Long: `onnxinline rewrites ONNX models around their model-local functions.

Commands:
  inline   - Expand every function call of a model into plain nodes
  splice   - Package a model's graph as a function and call it
  schemas  - List the operator schemas loaded from the schema file

Example:
  onnxinline inline model.onnx -o model.inlined.onnx
  onnxinline --schemas ops.yaml inline a.onnx b.onnx --out-dir inlined/
  onnxinline splice block.onnx --name Block --domain custom -o wrapped.onnx`,
	Version:      Version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(v, configFile); err != nil {
			return err
		}
		if logger, err = cfg.Logger(); err != nil {
			return err
		}
		registry = schema.NewRegistry()
		if cfg.Schemas != "" {
			if err := registry.LoadFile(cfg.Schemas); err != nil {
				return errors.WithMessagef(err, "loading schemas")
			}
			logger.Info("loaded operator schemas",
				zap.String("file", cfg.Schemas),
				zap.Int("count", registry.Len()))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default ./onnxinline.yaml)")
	flags.String("schemas", "", "YAML operator schema file (or set ONNXINLINE_SCHEMAS)")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.Int("recursion-limit", 32, "maximum depth of nested function expansion")
	flags.Int("parallelism", 4, "number of models processed concurrently")
	flags.Int64("external-data-threshold", 1024, "minimum tensor size (bytes) written as external data")

	for key, flag := range map[string]string{
		config.KeySchemas:               "schemas",
		config.KeyLogLevel:              "log-level",
		config.KeyRecursionLimit:        "recursion-limit",
		config.KeyParallelism:           "parallelism",
		config.KeyExternalDataThreshold: "external-data-threshold",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(inlineCmd)
	rootCmd.AddCommand(spliceCmd)
	rootCmd.AddCommand(schemasCmd)
}

// onnxinline expands ONNX model-local functions into plain graphs and packages
// graphs as functions.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// Package onnxinline expands ONNX model-local functions into plain graphs.
//
// A call to a function is replaced by a copy of the function's body in which
// formal inputs, outputs and attributes are substituted by the call's actual
// arguments, and every internal value gets a name unique to the call site.
//
// # Architecture
//
// The module is organized into several packages:
//
//   - ir: in-memory models, graphs, functions, nodes, attributes and tensors
//   - schema: operator schemas and their attribute defaults, loaded from YAML
//   - inline: the function expander, from single calls to whole models
//   - model: a builder for functions, including splicing existing graphs into them
//   - convert: opset version adapters
//   - onnxwire: ONNX protobuf encoding, with external tensor data
//   - blob: the external tensor data file
//   - cmd/onnxinline: the command line tool
//
// # Usage
//
//	m, err := onnxwire.LoadModel("model.onnx")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	schemas := schema.NewRegistry()
//	if err := schemas.LoadFile("ops.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//
//	inlined, err := inline.NewExpander(schemas).InlineModel(m)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = onnxwire.SaveModel("model.inlined.onnx", inlined, onnxwire.DefaultSaveOptions())
package onnxinline

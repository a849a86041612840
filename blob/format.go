// Package blob implements the external data file of ONNX models: tensor payloads
// stored next to the model instead of inline in the protobuf.
//
// The file is a plain concatenation of tensor payloads. Each payload starts at an
// offset aligned to DefaultAlignment so it can be memory-mapped; the gaps are zero.
// Tensors refer to their payload by (location, offset, length).
//
// File format:
//
//	[data_0 (64B aligned)] [padding]
//	[data_1 (64B aligned)] [padding]
//	...
//
// Reference: https://github.com/onnx/onnx/blob/main/docs/ExternalData.md
package blob

const (
	// DefaultAlignment is the byte alignment of every payload in the file.
	DefaultAlignment = 64

	// DefaultFilename is the conventional name of the external data file, relative
	// to the model file.
	DefaultFilename = "model.onnx.data"
)

// alignTo returns the smallest multiple of alignment >= offset.
func alignTo(offset uint64, alignment uint64) uint64 {
	if alignment == 0 {
		return offset
	}
	remainder := offset % alignment
	if remainder == 0 {
		return offset
	}
	return offset + (alignment - remainder)
}

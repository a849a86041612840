package blob

import (
	"os"

	"github.com/pkg/errors"
)

// Writer writes tensor payloads to an external data file.
//
// Usage:
//
//	w, err := blob.NewWriter("model.onnx.data")
//	if err != nil { ... }
//	defer w.Close()
//
//	offset, err := w.AddBlob(rawData)
//	// Record offset and len(rawData) in the tensor's external_data.
type Writer struct {
	file    *os.File
	offset  uint64 // Current write position
	entries []blobEntry
}

type blobEntry struct {
	offset uint64
	data   []byte
}

// NewWriter creates a new blob writer that writes to the specified path.
func NewWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "create external data file")
	}
	return &Writer{file: f}, nil
}

// NewNullWriter creates a writer that computes offsets without writing to disk.
// Used when the model shares an external data file written earlier for the same
// tensors in the same order.
func NewNullWriter() *Writer {
	// file is nil: AddBlob tracks offsets but nothing is written.
	return &Writer{}
}

// AddBlob schedules data to be written and returns the offset it will be stored at.
func (w *Writer) AddBlob(data []byte) (uint64, error) {
	if len(data) == 0 {
		return 0, errors.New("empty blob")
	}
	offset := alignTo(w.offset, DefaultAlignment)
	w.entries = append(w.entries, blobEntry{offset: offset, data: data})
	w.offset = offset + uint64(len(data))
	return offset, nil
}

// Close writes every scheduled payload and closes the file.
func (w *Writer) Close() error {
	if w.file == nil {
		return nil
	}
	for _, entry := range w.entries {
		if _, err := w.file.WriteAt(entry.data, int64(entry.offset)); err != nil {
			w.file.Close()
			return errors.Wrapf(err, "write data at offset %d", entry.offset)
		}
	}
	return w.file.Close()
}

// EntryCount returns the number of blob entries added.
func (w *Writer) EntryCount() int {
	return len(w.entries)
}

// Size returns the size of the file once closed.
func (w *Writer) Size() uint64 {
	return w.offset
}

package blob

import (
	"io"
	"os"

	"github.com/pkg/errors"
)

// Reader reads tensor payloads from an external data file.
type Reader struct {
	file *os.File
	size int64
}

// Open opens the external data file at path.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open external data file")
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errors.Wrap(err, "stat external data file")
	}
	return &Reader{file: f, size: info.Size()}, nil
}

// ReadBlob returns length bytes stored at offset. A negative length reads to the
// end of the file, as ONNX does when the length is not recorded.
func (r *Reader) ReadBlob(offset, length int64) ([]byte, error) {
	if length < 0 {
		length = r.size - offset
	}
	if offset < 0 || length < 0 || offset+length > r.size {
		return nil, errors.Errorf("blob [%d, %d) out of file bounds (%d bytes)", offset, offset+length, r.size)
	}
	data := make([]byte, length)
	if _, err := r.file.ReadAt(data, offset); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrapf(err, "read blob at offset %d", offset)
	}
	return data, nil
}

// Close closes the file.
func (r *Reader) Close() error {
	return r.file.Close()
}

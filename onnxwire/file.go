package onnxwire

import (
	"os"
	"path/filepath"

	"github.com/gomlx/onnx-inline/blob"
	"github.com/gomlx/onnx-inline/ir"
	"github.com/pkg/errors"
)

// SaveOptions configures SaveModel.
type SaveOptions struct {
	// ExternalData moves large tensor payloads to a file next to the model.
	ExternalData bool

	// Threshold is the minimum payload size (bytes) stored externally.
	// Smaller tensors are kept inline. Default: 1024 bytes.
	Threshold int64

	// Location is the external data file name, relative to the model's directory.
	Location string

	// SharedExternalData, when set, symlinks Location to this path instead of
	// writing a new file. A null blob writer computes the offsets, so the file
	// must have been written by a prior SaveModel of the same tensors in the same order.
	SharedExternalData string
}

// DefaultSaveOptions returns the default options: external data for payloads of
// 1KB or more, stored in blob.DefaultFilename.
func DefaultSaveOptions() SaveOptions {
	return SaveOptions{
		ExternalData: true,
		Threshold:    1024,
		Location:     blob.DefaultFilename,
	}
}

// SaveModel writes m to path as an ONNX model file.
func SaveModel(path string, m *ir.Model, opts SaveOptions) error {
	if !opts.ExternalData {
		data, err := Marshal(m)
		if err != nil {
			return err
		}
		return errors.Wrap(os.WriteFile(path, data, 0o644), "write model")
	}

	if opts.Location == "" {
		opts.Location = blob.DefaultFilename
	}
	if !filepath.IsLocal(opts.Location) {
		return errors.Errorf("external data location %q must be local to the model directory", opts.Location)
	}
	blobPath := filepath.Join(filepath.Dir(path), opts.Location)

	var blobWriter *blob.Writer
	if opts.SharedExternalData != "" {
		blobWriter = blob.NewNullWriter()
	} else {
		var err error
		blobWriter, err = blob.NewWriter(blobPath)
		if err != nil {
			return err
		}
	}

	e := encoder{blobs: blobWriter, location: opts.Location, threshold: opts.Threshold}
	data, err := e.model(nil, m)
	if err != nil {
		blobWriter.Close()
		return err
	}
	if err := blobWriter.Close(); err != nil {
		return errors.WithMessage(err, "close external data")
	}

	switch {
	case blobWriter.EntryCount() == 0 && opts.SharedExternalData == "":
		// Nothing was large enough.
		if err := os.Remove(blobPath); err != nil {
			return errors.Wrap(err, "remove empty external data file")
		}
	case blobWriter.EntryCount() > 0 && opts.SharedExternalData != "":
		if err := os.Symlink(opts.SharedExternalData, blobPath); err != nil {
			return errors.Wrap(err, "symlink shared external data")
		}
	}
	return errors.Wrap(os.WriteFile(path, data, 0o644), "write model")
}

// LoadModel reads the ONNX model file at path, resolving external data relative
// to the model's directory.
func LoadModel(path string) (*ir.Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read model")
	}
	dir := filepath.Dir(path)
	readers := map[string]*blob.Reader{}
	defer func() {
		for _, r := range readers {
			r.Close()
		}
	}()
	d := decoder{resolve: func(location string) (*blob.Reader, error) {
		if r, ok := readers[location]; ok {
			return r, nil
		}
		if !filepath.IsLocal(location) {
			return nil, errors.Wrapf(ErrExternalData, "location %q escapes the model directory", location)
		}
		r, err := blob.Open(filepath.Join(dir, location))
		if err != nil {
			return nil, err
		}
		readers[location] = r
		return r, nil
	}}
	m, err := d.model(data)
	if err != nil {
		return nil, errors.WithMessagef(err, "loading %s", path)
	}
	return m, nil
}

package serialization

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/born-ml/seqnet/internal/tensor"
)

// File is a decoded SafeTensors file. The caller owns Tensors.
type File struct {
	Tensors  map[string]*tensor.RawTensor
	Metadata map[string]string
}

// Names returns the tensor names in sorted order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Tensors))
	for name := range f.Tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Release releases every tensor.
func (f *File) Release() {
	for _, raw := range f.Tensors {
		raw.Release()
	}
}

// Read decodes a SafeTensors stream, validating the header and, when
// present, the data checksum.
func Read(r io.Reader) (*File, error) {
	var headerSize uint64
	if err := binary.Read(r, binary.LittleEndian, &headerSize); err != nil {
		return nil, fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > MaxHeaderSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrHeaderTooLarge, headerSize)
	}
	headerJSON := make([]byte, headerSize)
	if _, err := io.ReadFull(r, headerJSON); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(headerJSON, &fields); err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrInvalidFile, err)
	}
	var metadata map[string]string
	entries := make(map[string]Entry, len(fields))
	for name, field := range fields {
		if name == metadataKey {
			if err := json.Unmarshal(field, &metadata); err != nil {
				return nil, fmt.Errorf("%w: metadata: %w", ErrInvalidFile, err)
			}
			continue
		}
		var e Entry
		if err := json.Unmarshal(field, &e); err != nil {
			return nil, fmt.Errorf("%w: tensor %q: %w", ErrInvalidFile, name, err)
		}
		entries[name] = e
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read tensor data: %w", err)
	}
	if err := ValidateEntries(entries, int64(len(data))); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if sum, ok := metadata[MetaChecksum]; ok {
		if err := ValidateChecksum(data, sum); err != nil {
			return nil, err
		}
	}

	f := &File{Tensors: make(map[string]*tensor.RawTensor, len(entries)), Metadata: metadata}
	for name, e := range entries {
		dt, _ := parseDType(e.DType)
		shape := make(tensor.Shape, len(e.Shape))
		for i, d := range e.Shape {
			shape[i] = int(d)
		}
		raw, err := tensor.NewRaw(shape, dt, tensor.CPU)
		if err != nil {
			f.Release()
			return nil, fmt.Errorf("tensor %s: %w", name, err)
		}
		copy(raw.Data(), data[e.DataOffsets[0]:e.DataOffsets[1]])
		f.Tensors[name] = raw
	}
	return f, nil
}

// ReadFile decodes the SafeTensors file at path.
func ReadFile(path string) (*File, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()
	return Read(file)
}

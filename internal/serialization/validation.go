package serialization

import (
	"fmt"
	"sort"
	"strings"
)

// ValidateTensorName rejects names that are empty, too long or contain
// path separators, ".." or null bytes.
func ValidateTensorName(name string) error {
	if name == "" {
		return &ValidationError{Type: "invalid_name", Details: "empty tensor name"}
	}
	if len(name) > MaxTensorNameLen {
		return &ValidationError{
			Type:    "name_too_long",
			Tensor:  name,
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
		}
	}
	if strings.Contains(name, "..") {
		return &ValidationError{Type: "invalid_name", Tensor: name, Details: "contains '..'"}
	}
	if strings.ContainsAny(name, "/\\\x00") {
		return &ValidationError{Type: "invalid_name", Tensor: name, Details: "contains path separator or null byte"}
	}
	return nil
}

// ValidateEntries checks dtypes, shapes and data offsets of the header
// entries against a data section of dataSize bytes.
func ValidateEntries(entries map[string]Entry, dataSize int64) error {
	if len(entries) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(entries), MaxTensorCount),
		}
	}

	names := make([]string, 0, len(entries))
	for name, e := range entries {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		dt, ok := parseDType(e.DType)
		if !ok {
			return &ValidationError{Type: "invalid_dtype", Tensor: name, Details: fmt.Sprintf("unsupported dtype %q", e.DType)}
		}
		elems := int64(1)
		for _, d := range e.Shape {
			if d < 0 {
				return &ValidationError{Type: "invalid_shape", Tensor: name, Details: fmt.Sprintf("negative dimension in %v", e.Shape)}
			}
			elems *= d
		}
		if e.DataOffsets[0] < 0 || e.Size() < 0 {
			return &ValidationError{
				Type:    "negative_offset",
				Tensor:  name,
				Details: fmt.Sprintf("offsets %v", e.DataOffsets),
			}
		}
		if want := elems * int64(dt.Size()); e.Size() != want {
			return &ValidationError{
				Type:    "size_mismatch",
				Tensor:  name,
				Details: fmt.Sprintf("shape %v needs %d bytes, offsets span %d", e.Shape, want, e.Size()),
			}
		}
		if e.DataOffsets[1] > dataSize {
			return &ValidationError{
				Type:    "out_of_bounds",
				Tensor:  name,
				Details: fmt.Sprintf("end %d > data_size %d", e.DataOffsets[1], dataSize),
			}
		}
		names = append(names, name)
	}

	sort.Slice(names, func(i, j int) bool {
		return entries[names[i]].DataOffsets[0] < entries[names[j]].DataOffsets[0]
	})
	for i := 0; i+1 < len(names); i++ {
		cur, next := entries[names[i]], entries[names[i+1]]
		if cur.DataOffsets[1] > next.DataOffsets[0] {
			return &ValidationError{
				Type:    "offset_overlap",
				Tensor:  names[i],
				Tensor2: names[i+1],
				Details: fmt.Sprintf("regions %v and %v overlap", cur.DataOffsets, next.DataOffsets),
			}
		}
	}
	return nil
}

package serialization

import (
	"fmt"

	"github.com/born-ml/seqnet/internal/tensor"
)

// Reserved metadata keys.
const (
	MetaFormat   = "format"
	MetaChecksum = "sha256"

	formatName  = "seqnet"
	metadataKey = "__metadata__"
)

// Validation limits.
const (
	MaxHeaderSize    = 100 * 1024 * 1024
	MaxTensorCount   = 100_000
	MaxTensorNameLen = 4096
)

// Entry describes one tensor in the header.
type Entry struct {
	DType       string   `json:"dtype"`
	Shape       []int64  `json:"shape"`
	DataOffsets [2]int64 `json:"data_offsets"`
}

// Size returns the byte length of the tensor data.
func (e Entry) Size() int64 {
	return e.DataOffsets[1] - e.DataOffsets[0]
}

// dtypeName maps a data type to its SafeTensors name.
func dtypeName(dt tensor.DataType) (string, error) {
	switch dt {
	case tensor.Float32:
		return "F32", nil
	case tensor.Float64:
		return "F64", nil
	default:
		return "", fmt.Errorf("unsupported dtype %v", dt)
	}
}

func parseDType(name string) (tensor.DataType, bool) {
	switch name {
	case "F32":
		return tensor.Float32, true
	case "F64":
		return tensor.Float64, true
	default:
		return 0, false
	}
}

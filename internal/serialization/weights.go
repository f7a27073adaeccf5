package serialization

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/born-ml/seqnet/internal/nn"
	"github.com/born-ml/seqnet/internal/tensor"
)

// WeightKey returns the stored name of the i-th weight.
func WeightKey(i int, name string) string {
	return fmt.Sprintf("%04d.%s", i, name)
}

// WriteWeights stores params in order.
func WriteWeights[B tensor.Backend](w io.Writer, params []*nn.Parameter[B], metadata map[string]string) error {
	tensors := make(map[string]*tensor.RawTensor, len(params))
	for i, p := range params {
		tensors[WeightKey(i, p.Name())] = p.Tensor().Raw()
	}
	return Write(w, tensors, metadata)
}

// SaveWeights writes params to path.
func SaveWeights[B tensor.Backend](path string, params []*nn.Parameter[B], metadata map[string]string) error {
	tensors := make(map[string]*tensor.RawTensor, len(params))
	for i, p := range params {
		tensors[WeightKey(i, p.Name())] = p.Tensor().Raw()
	}
	return WriteFile(path, tensors, metadata)
}

// WeightsFromFile returns the float32 weights of f in stored order. The
// returned tensors take ownership of the file's buffers.
func WeightsFromFile[B tensor.Backend](f *File, backend B) ([]*tensor.Tensor[float32, B], error) {
	names := f.Names()
	for i, name := range names {
		idx, _, ok := strings.Cut(name, ".")
		n, err := strconv.Atoi(idx)
		if !ok || err != nil || n != i {
			return nil, &ValidationError{Type: "weight_order", Tensor: name, Details: fmt.Sprintf("expected index %d", i)}
		}
		if dt := f.Tensors[name].DType(); dt != tensor.Float32 {
			return nil, &ValidationError{Type: "invalid_dtype", Tensor: name, Details: fmt.Sprintf("weights must be float32, got %v", dt)}
		}
	}
	ws := make([]*tensor.Tensor[float32, B], len(names))
	for i, name := range names {
		ws[i] = tensor.New[float32](f.Tensors[name], backend)
	}
	return ws, nil
}

// ReadWeights decodes weights written by WriteWeights.
func ReadWeights[B tensor.Backend](r io.Reader, backend B) ([]*tensor.Tensor[float32, B], map[string]string, error) {
	f, err := Read(r)
	if err != nil {
		return nil, nil, err
	}
	ws, err := WeightsFromFile(f, backend)
	if err != nil {
		f.Release()
		return nil, nil, err
	}
	return ws, f.Metadata, nil
}

// LoadWeights reads weights saved by SaveWeights, in Weights order.
func LoadWeights[B tensor.Backend](path string, backend B) ([]*tensor.Tensor[float32, B], map[string]string, error) {
	f, err := ReadFile(path)
	if err != nil {
		return nil, nil, err
	}
	ws, err := WeightsFromFile(f, backend)
	if err != nil {
		f.Release()
		return nil, nil, err
	}
	return ws, f.Metadata, nil
}

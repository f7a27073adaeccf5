package cpu

import (
	"fmt"

	"github.com/born-ml/seqnet/internal/tensor"
)

// Reshape returns a view of t with a new shape sharing t's buffer.
// A single -1 dimension is inferred from the element count.
func (cpu *CPUBackend) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	shape := newShape.Clone()
	infer := -1
	known := 1
	for i, d := range shape {
		if d == -1 {
			if infer >= 0 {
				panic(fmt.Sprintf("reshape: more than one inferred dimension in %v", newShape))
			}
			infer = i
			continue
		}
		known *= d
	}
	if infer >= 0 {
		if known == 0 || t.NumElements()%known != 0 {
			panic(fmt.Sprintf("reshape: cannot infer dimension of %v for %d elements", newShape, t.NumElements()))
		}
		shape[infer] = t.NumElements() / known
	}

	view, err := t.View(shape)
	if err != nil {
		panic(fmt.Sprintf("reshape: %v", err))
	}
	return view
}

// Unsqueeze adds a dimension of size 1 at dim (negative dims count from the
// end of the result shape).
func (cpu *CPUBackend) Unsqueeze(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	d, err := tensor.NormalizeDim(dim, len(shape)+1)
	if err != nil {
		panic(fmt.Sprintf("unsqueeze: %v", err))
	}

	newShape := make(tensor.Shape, 0, len(shape)+1)
	newShape = append(newShape, shape[:d]...)
	newShape = append(newShape, 1)
	newShape = append(newShape, shape[d:]...)

	view, err := x.View(newShape)
	if err != nil {
		panic(fmt.Sprintf("unsqueeze: %v", err))
	}
	return view
}

// Transpose permutes the dimensions of t.
// With no axes, all dimensions are reversed.
//
// Example:
//
//	// [batch, time, features] -> [time, batch, features]
//	tm := backend.Transpose(x, 1, 0, 2)
func (cpu *CPUBackend) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	shape := t.Shape()
	ndim := len(shape)

	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}
	if len(axes) != ndim {
		panic(fmt.Sprintf("transpose: got %d axes for %dD tensor", len(axes), ndim))
	}

	perm := make([]int, ndim)
	seen := make([]bool, ndim)
	outShape := make(tensor.Shape, ndim)
	for i, ax := range axes {
		a, err := tensor.NormalizeDim(ax, ndim)
		if err != nil {
			panic(fmt.Sprintf("transpose: %v", err))
		}
		if seen[a] {
			panic(fmt.Sprintf("transpose: axis %d repeated in %v", a, axes))
		}
		seen[a] = true
		perm[i] = a
		outShape[i] = shape[a]
	}

	result, err := tensor.NewRaw(outShape, t.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("transpose: %v", err))
	}

	// srcStrides[i] is the source stride of output dimension i.
	inStrides := t.Strides()
	srcStrides := make([]int, ndim)
	for i, a := range perm {
		srcStrides[i] = inStrides[a]
	}

	elem := t.DType().Size()
	src, dst := t.Data(), result.Data()
	n := t.NumElements()
	for flat := 0; flat < n; flat++ {
		rem := flat
		srcIdx := 0
		for d := ndim - 1; d >= 0; d-- {
			srcIdx += (rem % outShape[d]) * srcStrides[d]
			rem /= outShape[d]
		}
		copy(dst[flat*elem:(flat+1)*elem], src[srcIdx*elem:(srcIdx+1)*elem])
	}

	return result
}

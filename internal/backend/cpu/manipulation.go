package cpu

import (
	"fmt"

	"github.com/born-ml/seqnet/internal/tensor"
)

// blockLayout describes a row-major tensor as [outer, dimSize, inner] around
// one axis. Manipulation kernels copy contiguous inner blocks as raw bytes,
// so they are dtype-agnostic.
type blockLayout struct {
	outer   int
	dimSize int
	inner   int // bytes per index along the axis
}

func layoutAround(shape tensor.Shape, dim int, elemSize int) blockLayout {
	l := blockLayout{outer: 1, dimSize: shape[dim], inner: elemSize}
	for i := 0; i < dim; i++ {
		l.outer *= shape[i]
	}
	for i := dim + 1; i < len(shape); i++ {
		l.inner *= shape[i]
	}
	return l
}

// Cat concatenates tensors along the specified dimension.
//
// All tensors must have the same shape except along the concatenation dimension.
// Supports negative dim indexing (-1 = last dimension).
//
// Example:
//
//	fwd := ...                                  // [batch, time, 4]
//	bwd := ...                                  // [batch, time, 4]
//	both := backend.Cat([]*RawTensor{fwd, bwd}, -1) // [batch, time, 8]
func (cpu *CPUBackend) Cat(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("cat: at least one tensor required")
	}

	shape := tensors[0].Shape()
	ndim := len(shape)
	dtype := tensors[0].DType()

	d, err := tensor.NormalizeDim(dim, ndim)
	if err != nil {
		panic(fmt.Sprintf("cat: %v", err))
	}

	totalDim := 0
	for i, t := range tensors {
		tShape := t.Shape()
		if len(tShape) != ndim {
			panic(fmt.Sprintf("cat: tensor %d has %d dimensions, expected %d", i, len(tShape), ndim))
		}
		if t.DType() != dtype {
			panic(fmt.Sprintf("cat: tensor %d has dtype %s, expected %s", i, t.DType(), dtype))
		}
		for j := 0; j < ndim; j++ {
			if j == d {
				totalDim += tShape[j]
			} else if tShape[j] != shape[j] {
				panic(fmt.Sprintf("cat: tensor %d dimension %d is %d, expected %d", i, j, tShape[j], shape[j]))
			}
		}
	}

	outShape := shape.Clone()
	outShape[d] = totalDim

	result, err := tensor.NewRaw(outShape, dtype, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("cat: %v", err))
	}

	dst := result.Data()
	out := layoutAround(outShape, d, dtype.Size())
	pos := 0
	for o := 0; o < out.outer; o++ {
		for _, t := range tensors {
			l := layoutAround(t.Shape(), d, dtype.Size())
			block := l.dimSize * l.inner
			src := t.Data()
			pos += copy(dst[pos:pos+block], src[o*block:(o+1)*block])
		}
	}

	return result
}

// Chunk splits tensor into n equal parts along the specified dimension.
//
// The dimension size must be divisible by n.
// Supports negative dim indexing (-1 = last dimension).
//
// Example:
//
//	z := ...                       // [batch, 4*units]
//	gates := backend.Chunk(z, 4, -1) // 4 tensors of shape [batch, units]
func (cpu *CPUBackend) Chunk(x *tensor.RawTensor, n, dim int) []*tensor.RawTensor {
	if n <= 0 {
		panic(fmt.Sprintf("chunk: n must be positive, got %d", n))
	}

	d, err := tensor.NormalizeDim(dim, len(x.Shape()))
	if err != nil {
		panic(fmt.Sprintf("chunk: %v", err))
	}

	dimSize := x.Shape()[d]
	if dimSize%n != 0 {
		panic(fmt.Sprintf("chunk: dimension %d size %d not divisible by %d", d, dimSize, n))
	}

	sizes := make([]int, n)
	for i := range sizes {
		sizes[i] = dimSize / n
	}
	return cpu.Split(x, sizes, d)
}

// Split splits x into consecutive parts of the given sizes along dim.
func (cpu *CPUBackend) Split(x *tensor.RawTensor, sizes []int, dim int) []*tensor.RawTensor {
	shape := x.Shape()
	d, err := tensor.NormalizeDim(dim, len(shape))
	if err != nil {
		panic(fmt.Sprintf("split: %v", err))
	}

	total := 0
	for _, s := range sizes {
		if s <= 0 {
			panic(fmt.Sprintf("split: sizes must be positive, got %v", sizes))
		}
		total += s
	}
	if total != shape[d] {
		panic(fmt.Sprintf("split: sizes %v sum to %d, dimension %d has size %d", sizes, total, d, shape[d]))
	}

	elem := x.DType().Size()
	src := x.Data()
	in := layoutAround(shape, d, elem)

	results := make([]*tensor.RawTensor, len(sizes))
	start := 0
	for i, s := range sizes {
		partShape := shape.Clone()
		partShape[d] = s
		part, err := tensor.NewRaw(partShape, x.DType(), cpu.device)
		if err != nil {
			panic(fmt.Sprintf("split: %v", err))
		}
		dst := part.Data()
		block := s * in.inner
		for o := 0; o < in.outer; o++ {
			srcOff := o*in.dimSize*in.inner + start*in.inner
			copy(dst[o*block:(o+1)*block], src[srcOff:srcOff+block])
		}
		results[i] = part
		start += s
	}

	return results
}

// Stack joins tensors of identical shape along a new dimension dim.
func (cpu *CPUBackend) Stack(tensors []*tensor.RawTensor, dim int) *tensor.RawTensor {
	if len(tensors) == 0 {
		panic("stack: at least one tensor required")
	}
	shape := tensors[0].Shape()
	for i, t := range tensors {
		if !t.Shape().Equal(shape) {
			panic(fmt.Sprintf("stack: tensor %d has shape %v, expected %v", i, t.Shape(), shape))
		}
	}

	d, err := tensor.NormalizeDim(dim, len(shape)+1)
	if err != nil {
		panic(fmt.Sprintf("stack: %v", err))
	}

	views := make([]*tensor.RawTensor, len(tensors))
	for i, t := range tensors {
		views[i] = cpu.Unsqueeze(t, d)
	}
	result := cpu.Cat(views, d)
	for _, v := range views {
		v.Release()
	}
	return result
}

// Unstack removes dimension dim, returning one tensor per index along it.
func (cpu *CPUBackend) Unstack(x *tensor.RawTensor, dim int) []*tensor.RawTensor {
	shape := x.Shape()
	d, err := tensor.NormalizeDim(dim, len(shape))
	if err != nil {
		panic(fmt.Sprintf("unstack: %v", err))
	}
	if len(shape) < 2 {
		panic(fmt.Sprintf("unstack: need at least 2D tensor, got shape %v", shape))
	}

	sizes := make([]int, shape[d])
	for i := range sizes {
		sizes[i] = 1
	}
	parts := cpu.Split(x, sizes, d)

	squeezed := make(tensor.Shape, 0, len(shape)-1)
	squeezed = append(squeezed, shape[:d]...)
	squeezed = append(squeezed, shape[d+1:]...)

	out := make([]*tensor.RawTensor, len(parts))
	for i, p := range parts {
		view, err := p.View(squeezed)
		if err != nil {
			panic(fmt.Sprintf("unstack: %v", err))
		}
		p.Release()
		out[i] = view
	}
	return out
}

// Reverse flips x along dim.
func (cpu *CPUBackend) Reverse(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := x.Shape()
	d, err := tensor.NormalizeDim(dim, len(shape))
	if err != nil {
		panic(fmt.Sprintf("reverse: %v", err))
	}

	result, err := tensor.NewRaw(shape, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("reverse: %v", err))
	}

	l := layoutAround(shape, d, x.DType().Size())
	src, dst := x.Data(), result.Data()
	for o := 0; o < l.outer; o++ {
		base := o * l.dimSize * l.inner
		for i := 0; i < l.dimSize; i++ {
			from := base + i*l.inner
			to := base + (l.dimSize-1-i)*l.inner
			copy(dst[to:to+l.inner], src[from:from+l.inner])
		}
	}

	return result
}

package cpu

import (
	"fmt"
	"math"

	"github.com/born-ml/seqnet/internal/tensor"
)

// Sum reduces all elements to a scalar tensor of shape [].
func (cpu *CPUBackend) Sum(x *tensor.RawTensor) *tensor.RawTensor {
	result, err := tensor.NewRaw(tensor.Shape{}, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("sum: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		result.AsFloat32()[0] = sumAll(x.AsFloat32())
	case tensor.Float64:
		result.AsFloat64()[0] = sumAll(x.AsFloat64())
	default:
		panic(fmt.Sprintf("sum: unsupported dtype %s", x.DType()))
	}

	return result
}

func sumAll[T float](data []T) T {
	var acc float64
	for _, v := range data {
		acc += float64(v)
	}
	return T(acc)
}

// SumDim sums along dim. With keepDim the reduced dimension stays as size 1.
func (cpu *CPUBackend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return cpu.reduceDim("sum_dim", x, dim, keepDim, 0, func(acc, v float64) float64 { return acc + v }, nil)
}

// MeanDim averages along dim.
func (cpu *CPUBackend) MeanDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return cpu.reduceDim("mean_dim", x, dim, keepDim, 0,
		func(acc, v float64) float64 { return acc + v },
		func(acc float64, n int) float64 { return acc / float64(n) },
	)
}

// MaxDim takes the maximum along dim.
func (cpu *CPUBackend) MaxDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	return cpu.reduceDim("max_dim", x, dim, keepDim, math.Inf(-1), math.Max, nil)
}

func (cpu *CPUBackend) reduceDim(
	name string,
	x *tensor.RawTensor,
	dim int,
	keepDim bool,
	init float64,
	step func(acc, v float64) float64,
	finish func(acc float64, n int) float64,
) *tensor.RawTensor {
	shape := x.Shape()
	d, err := tensor.NormalizeDim(dim, len(shape))
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	outShape := make(tensor.Shape, 0, len(shape))
	for i, s := range shape {
		switch {
		case i != d:
			outShape = append(outShape, s)
		case keepDim:
			outShape = append(outShape, 1)
		}
	}

	result, err := tensor.NewRaw(outShape, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	outer, size, inner := 1, shape[d], 1
	for i := 0; i < d; i++ {
		outer *= shape[i]
	}
	for i := d + 1; i < len(shape); i++ {
		inner *= shape[i]
	}

	switch x.DType() {
	case tensor.Float32:
		reduceKernel(result.AsFloat32(), x.AsFloat32(), outer, size, inner, init, step, finish)
	case tensor.Float64:
		reduceKernel(result.AsFloat64(), x.AsFloat64(), outer, size, inner, init, step, finish)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, x.DType()))
	}

	return result
}

func reduceKernel[T float](
	dst, src []T,
	outer, size, inner int,
	init float64,
	step func(acc, v float64) float64,
	finish func(acc float64, n int) float64,
) {
	for o := 0; o < outer; o++ {
		for in := 0; in < inner; in++ {
			acc := init
			for k := 0; k < size; k++ {
				acc = step(acc, float64(src[(o*size+k)*inner+in]))
			}
			if finish != nil {
				acc = finish(acc, size)
			}
			dst[o*inner+in] = T(acc)
		}
	}
}

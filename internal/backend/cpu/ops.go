package cpu

import (
	"github.com/born-ml/seqnet/internal/parallel"
	"github.com/born-ml/seqnet/internal/tensor"
)

// float is the set of element types the CPU kernels operate on.
type float interface {
	~float32 | ~float64
}

func addOp[T float](x, y T) T { return x + y }
func subOp[T float](x, y T) T { return x - y }
func mulOp[T float](x, y T) T { return x * y }
func divOp[T float](x, y T) T { return x / y }

func greaterEqualOp[T float](x, y T) T {
	if x >= y {
		return 1
	}
	return 0
}

func notEqualOp[T float](x, y T) T {
	if x != y {
		return 1
	}
	return 0
}

// binaryKernel computes dst[i] = f(a[i], b[i]) with broadcasting.
// Same-shape operands take the contiguous fast path.
func binaryKernel[T float](
	cfg parallel.Config,
	dst []T,
	a, b *tensor.RawTensor,
	aData, bData []T,
	outShape tensor.Shape,
	needsBroadcast bool,
	f func(x, y T) T,
) {
	if !needsBroadcast {
		parallel.Range(len(dst), cfg, func(start, end int) {
			for i := start; i < end; i++ {
				dst[i] = f(aData[i], bData[i])
			}
		})
		return
	}

	aShape, bShape := a.Shape(), b.Shape()
	aStrides, bStrides := a.Strides(), b.Strides()
	parallel.Range(len(dst), cfg, func(start, end int) {
		for i := start; i < end; i++ {
			ai := tensor.BroadcastIndex(i, outShape, aShape, aStrides)
			bi := tensor.BroadcastIndex(i, outShape, bShape, bStrides)
			dst[i] = f(aData[ai], bData[bi])
		}
	})
}

// unaryKernel computes dst[i] = f(src[i]) in float64 precision.
func unaryKernel[T float](cfg parallel.Config, dst, src []T, f func(float64) float64) {
	parallel.Range(len(dst), cfg, func(start, end int) {
		for i := start; i < end; i++ {
			dst[i] = T(f(float64(src[i])))
		}
	})
}

package cpu

import (
	"fmt"

	"github.com/born-ml/seqnet/internal/tensor"
)

// Where selects x where condition is nonzero and y elsewhere.
//
// The three operands broadcast against each other, so a [batch, 1]
// condition selects whole rows of a [batch, units] pair. The selection
// copies values verbatim; no arithmetic touches the chosen elements.
func (cpu *CPUBackend) Where(condition, x, y *tensor.RawTensor) *tensor.RawTensor {
	if x.DType() != y.DType() || condition.DType() != x.DType() {
		panic(fmt.Sprintf("where: dtype mismatch condition=%s x=%s y=%s", condition.DType(), x.DType(), y.DType()))
	}

	xy, _, err := tensor.BroadcastShapes(x.Shape(), y.Shape())
	if err != nil {
		panic(fmt.Sprintf("where: %v", err))
	}
	outShape, _, err := tensor.BroadcastShapes(condition.Shape(), xy)
	if err != nil {
		panic(fmt.Sprintf("where: %v", err))
	}

	result, err := tensor.NewRaw(outShape, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("where: %v", err))
	}

	switch x.DType() {
	case tensor.Float32:
		whereKernel(result.AsFloat32(), condition, x, y, condition.AsFloat32(), x.AsFloat32(), y.AsFloat32(), outShape)
	case tensor.Float64:
		whereKernel(result.AsFloat64(), condition, x, y, condition.AsFloat64(), x.AsFloat64(), y.AsFloat64(), outShape)
	default:
		panic(fmt.Sprintf("where: unsupported dtype %s", x.DType()))
	}

	return result
}

func whereKernel[T float](dst []T, c, x, y *tensor.RawTensor, cData, xData, yData []T, outShape tensor.Shape) {
	for i := range dst {
		ci := tensor.BroadcastIndex(i, outShape, c.Shape(), c.Strides())
		if cData[ci] != 0 {
			dst[i] = xData[tensor.BroadcastIndex(i, outShape, x.Shape(), x.Strides())]
		} else {
			dst[i] = yData[tensor.BroadcastIndex(i, outShape, y.Shape(), y.Strides())]
		}
	}
}

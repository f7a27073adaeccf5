package cpu

import (
	"github.com/born-ml/seqnet/internal/tensor"
)

// GreaterEqual returns 1 where a >= b and 0 elsewhere, in the operands' dtype.
func (cpu *CPUBackend) GreaterEqual(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("greater_equal", a, b, greaterEqualOp[float32], greaterEqualOp[float64])
}

// NotEqual returns 1 where a != b and 0 elsewhere, in the operands' dtype.
func (cpu *CPUBackend) NotEqual(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("not_equal", a, b, notEqualOp[float32], notEqualOp[float64])
}

package cpu

import (
	"math"

	"github.com/born-ml/seqnet/internal/tensor"
)

// Sigmoid computes the logistic function 1 / (1 + exp(-x)) element-wise.
func (cpu *CPUBackend) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("sigmoid", x, func(v float64) float64 {
		if v >= 0 {
			return 1 / (1 + math.Exp(-v))
		}
		e := math.Exp(v)
		return e / (1 + e)
	})
}

// HardSigmoid computes clip(0.2*x + 0.5, 0, 1) element-wise.
func (cpu *CPUBackend) HardSigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("hard_sigmoid", x, func(v float64) float64 {
		return math.Max(0, math.Min(1, 0.2*v+0.5))
	})
}

// Tanh computes the hyperbolic tangent element-wise.
func (cpu *CPUBackend) Tanh(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("tanh", x, math.Tanh)
}

// ReLU computes max(0, x) element-wise.
func (cpu *CPUBackend) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	return cpu.unary("relu", x, func(v float64) float64 {
		if v > 0 {
			return v
		}
		return 0
	})
}

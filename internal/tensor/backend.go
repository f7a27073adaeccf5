package tensor

// Backend defines the interface that all compute backends must implement.
// Backends handle the actual computation for tensor operations.
//
// Operations panic on programmer errors (shape mismatch, bad axis) with a
// message prefixed by the operation name. Callers that need recoverable
// errors validate shapes before dispatching.
//
// Implementations:
//   - CPU: Pure Go, gonum BLAS for matrix products
type Backend interface {
	// Element-wise binary operations (NumPy-style broadcasting)
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Scalar operations
	AddScalar(x *RawTensor, scalar float64) *RawTensor
	MulScalar(x *RawTensor, scalar float64) *RawTensor

	// Comparison operations, result holds 1 where true and 0 elsewhere
	GreaterEqual(a, b *RawTensor) *RawTensor
	NotEqual(a, b *RawTensor) *RawTensor

	// Where selects x where condition is nonzero, y elsewhere (broadcasting).
	Where(condition, x, y *RawTensor) *RawTensor

	// Matrix operations: (M, K) @ (K, N) -> (M, N)
	MatMul(a, b *RawTensor) *RawTensor

	// Shape operations
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor
	Unsqueeze(x *RawTensor, dim int) *RawTensor

	// Manipulation operations
	Cat(tensors []*RawTensor, dim int) *RawTensor         // concatenate along dimension
	Chunk(x *RawTensor, n, dim int) []*RawTensor          // split into n equal parts
	Split(x *RawTensor, sizes []int, dim int) []*RawTensor // split into parts of the given sizes
	Stack(tensors []*RawTensor, dim int) *RawTensor       // join along a new dimension
	Unstack(x *RawTensor, dim int) []*RawTensor           // remove a dimension, one tensor per index
	Reverse(x *RawTensor, dim int) *RawTensor             // flip along dimension

	// Reduction operations
	Sum(x *RawTensor) *RawTensor
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor
	MaxDim(x *RawTensor, dim int, keepDim bool) *RawTensor

	// Metadata
	Name() string
	Device() Device
}

// SigmoidBackend is implemented by backends that provide a fused logistic sigmoid.
type SigmoidBackend interface {
	Sigmoid(x *RawTensor) *RawTensor
}

// HardSigmoidBackend is implemented by backends that provide the piecewise-linear
// sigmoid approximation clip(0.2*x + 0.5, 0, 1).
type HardSigmoidBackend interface {
	HardSigmoid(x *RawTensor) *RawTensor
}

// TanhBackend is implemented by backends that provide hyperbolic tangent.
type TanhBackend interface {
	Tanh(x *RawTensor) *RawTensor
}

// ReLUBackend is implemented by backends that provide max(0, x).
type ReLUBackend interface {
	ReLU(x *RawTensor) *RawTensor
}

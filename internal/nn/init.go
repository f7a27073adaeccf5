package nn

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/born-ml/seqnet/internal/tensor"
)

// Initializer names understood by Initialize.
const (
	InitGlorotUniform = "glorot_uniform"
	InitOrthogonal    = "orthogonal"
	InitZeros         = "zeros"
	InitOnes          = "ones"
)

// Initialize creates a weight tensor using the named initializer.
// A nil rng uses the global math/rand source.
func Initialize[B tensor.Backend](name string, shape tensor.Shape, rng *rand.Rand, backend B) (*tensor.Tensor[float32, B], error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("initializer %s: %w", name, err)
	}
	switch name {
	case InitGlorotUniform:
		fanIn, fanOut := fans(shape)
		return Xavier(fanIn, fanOut, shape, rng, backend), nil
	case InitOrthogonal:
		return Orthogonal(shape, 1, rng, backend), nil
	case InitZeros:
		return Zeros(shape, backend), nil
	case InitOnes:
		return Ones(shape, backend), nil
	default:
		return nil, fmt.Errorf("unknown initializer %q", name)
	}
}

// fans returns (fan_in, fan_out) for a weight shape. Vectors use their
// length for both.
func fans(shape tensor.Shape) (int, int) {
	switch len(shape) {
	case 0:
		return 1, 1
	case 1:
		return shape[0], shape[0]
	default:
		receptive := 1
		for _, d := range shape[:len(shape)-2] {
			receptive *= d
		}
		return shape[len(shape)-2] * receptive, shape[len(shape)-1] * receptive
	}
}

// Xavier (Glorot) initialization for weights.
//
// Initializes weights with values drawn from a uniform distribution:
// U(-sqrt(6/(fan_in + fan_out)), sqrt(6/(fan_in + fan_out)))
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))

	t := tensor.Rand[float32](shape, rng, backend)
	data := t.Data()
	for i := range data {
		data[i] = float32((float64(data[i])*2.0 - 1.0) * bound)
	}
	return t
}

// Orthogonal returns a matrix with orthonormal rows or columns, scaled by gain.
//
// The shape is flattened to [prod(shape[:-1]), shape[-1]]. A normal matrix is
// QR-factorized with gonum and Q is sign-corrected by diag(R), which makes the
// result uniformly distributed over orthogonal matrices. Recurrent kernels use
// this so repeated multiplication across timesteps neither explodes nor vanishes.
func Orthogonal[B tensor.Backend](shape tensor.Shape, gain float64, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	cols := shape[len(shape)-1]
	rows := shape.NumElements() / cols
	m, n := max(rows, cols), min(rows, cols)

	normals := make([]float64, m*n)
	for i := range normals {
		if rng != nil {
			normals[i] = rng.NormFloat64()
		} else {
			//nolint:gosec // math/rand is appropriate for weight initialization
			normals[i] = rand.NormFloat64()
		}
	}

	var qr mat.QR
	qr.Factorize(mat.NewDense(m, n, normals))
	var q, r mat.Dense
	qr.QTo(&q)
	qr.RTo(&r)

	out := tensor.Zeros[float32](shape, backend)
	data := out.Data()
	for j := 0; j < n; j++ {
		sign := 1.0
		if r.At(j, j) < 0 {
			sign = -1.0
		}
		for i := 0; i < m; i++ {
			v := float32(q.At(i, j) * sign * gain)
			if rows >= cols {
				data[i*cols+j] = v
			} else {
				data[j*cols+i] = v
			}
		}
	}
	return out
}

// Zeros creates a tensor filled with zeros.
//
// This is commonly used for bias initialization.
func Zeros[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32](shape, backend)
}

// Ones creates a tensor filled with ones.
func Ones[B tensor.Backend](shape tensor.Shape, backend B) *tensor.Tensor[float32, B] {
	return tensor.Ones[float32](shape, backend)
}

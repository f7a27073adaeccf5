// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn

import (
	"math/rand"

	"github.com/born-ml/seqnet/internal/nn"
	"github.com/born-ml/seqnet/tensor"
)

// Layers

// Linear is a fully connected layer computing x·W + b.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a linear layer with Xavier-initialized weights and zero
// bias. A nil rng uses the global math/rand source.
//
// Example:
//
//	backend := cpu.New()
//	layer := nn.NewLinear(64, 10, nil, backend)
//	output := layer.Forward(input) // [batch, 64] -> [batch, 10]
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, rng *rand.Rand, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, rng, backend)
}

// Embedding maps token ids to vectors. With MaskZero, id 0 is padding and
// ComputeMask marks it invalid.
type Embedding[B tensor.Backend] = nn.Embedding[B]

// NewEmbedding creates a [numEmbeddings, embeddingDim] table drawn from
// U(-0.05, 0.05).
func NewEmbedding[B tensor.Backend](numEmbeddings, embeddingDim int, rng *rand.Rand, backend B) *Embedding[B] {
	return nn.NewEmbedding(numEmbeddings, embeddingDim, rng, backend)
}

// NewEmbeddingWithWeight creates an embedding over an existing table.
func NewEmbeddingWithWeight[B tensor.Backend](weight *tensor.Tensor[float32, B]) *Embedding[B] {
	return nn.NewEmbeddingWithWeight(weight)
}

// Activations

// Activation is an elementwise function on float32 tensors.
type Activation[B tensor.Backend] = nn.Activation[B]

// GetActivation resolves an activation by name: "linear" (or ""), "tanh",
// "sigmoid", "hard_sigmoid" or "relu".
func GetActivation[B tensor.Backend](name string, backend B) (Activation[B], error) {
	return nn.GetActivation(name, backend)
}

// ActivationNames lists the names GetActivation accepts.
func ActivationNames() []string {
	return nn.ActivationNames()
}

// Initializers

// Initializer names accepted by Initialize and the cell configurations.
const (
	InitGlorotUniform = nn.InitGlorotUniform
	InitOrthogonal    = nn.InitOrthogonal
	InitZeros         = nn.InitZeros
	InitOnes          = nn.InitOnes
)

// Initialize creates a float32 tensor of shape filled by the named initializer.
func Initialize[B tensor.Backend](name string, shape tensor.Shape, rng *rand.Rand, backend B) (*tensor.Tensor[float32, B], error) {
	return nn.Initialize(name, shape, rng, backend)
}

// Xavier draws from the Glorot uniform distribution for the given fans.
func Xavier[B tensor.Backend](fanIn, fanOut int, shape tensor.Shape, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	return nn.Xavier(fanIn, fanOut, shape, rng, backend)
}

// Orthogonal returns a matrix with orthonormal rows or columns scaled by gain.
func Orthogonal[B tensor.Backend](shape tensor.Shape, gain float64, rng *rand.Rand, backend B) *tensor.Tensor[float32, B] {
	return nn.Orthogonal(shape, gain, rng, backend)
}

// Regularization

// Dropout applies inverted dropout with the given rate and returns a new tensor.
func Dropout[B tensor.Backend](x *tensor.Tensor[float32, B], rate float64, rng *rand.Rand) *tensor.Tensor[float32, B] {
	return nn.Dropout(x, rate, rng)
}

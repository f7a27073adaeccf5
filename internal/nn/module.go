// Package nn implements the layer building blocks used by the recurrent engine.
//
// This package provides:
//   - Module interface: base interface for feed-forward components
//   - Parameter: named weight tensors owned by a layer
//   - Initializers: glorot_uniform, orthogonal, zeros, ones (resolved by name)
//   - Activations: linear, tanh, sigmoid, hard_sigmoid, relu (resolved by name)
//   - Dropout: inverted dropout used to build per-call dropout masks
//   - Linear, Embedding: dense projection and token lookup around recurrent layers
package nn

import (
	"github.com/born-ml/seqnet/internal/tensor"
)

// Module is the base interface for feed-forward components.
//
// Recurrent cells do not implement Module: they take and return state
// explicitly, see package rnn.
type Module[B tensor.Backend] interface {
	// Forward computes the output of the module given an input tensor.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all weights of this module.
	// Returns an empty slice for modules without weights.
	Parameters() []*Parameter[B]
}

// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package rnn

import (
	"math/rand"

	"github.com/born-ml/seqnet/internal/rnn"
	"github.com/born-ml/seqnet/tensor"
)

// State is the ordered list of state tensors of a cell, each [batch, size].
type State[B tensor.Backend] = rnn.State[B]

// Cell computes one recurrent timestep.
type Cell[B tensor.Backend] = rnn.Cell[B]

// DropoutResetter is implemented by cells that cache per-call dropout masks.
type DropoutResetter = rnn.DropoutResetter

// Cell configurations.
type (
	SimpleRNNConfig = rnn.SimpleRNNConfig
	GRUConfig       = rnn.GRUConfig
	LSTMConfig      = rnn.LSTMConfig
)

// Cells.
type (
	SimpleRNNCell[B tensor.Backend] = rnn.SimpleRNNCell[B]
	GRUCell[B tensor.Backend]       = rnn.GRUCell[B]
	LSTMCell[B tensor.Backend]      = rnn.LSTMCell[B]
	StackedCells[B tensor.Backend]  = rnn.StackedCells[B]
)

// DefaultSimpleRNNConfig returns a tanh cell with glorot/orthogonal weights.
func DefaultSimpleRNNConfig(units int) SimpleRNNConfig {
	return rnn.DefaultSimpleRNNConfig(units)
}

// DefaultGRUConfig returns a reset-after GRU configuration.
func DefaultGRUConfig(units int) GRUConfig {
	return rnn.DefaultGRUConfig(units)
}

// DefaultLSTMConfig returns an LSTM configuration with unit forget bias.
func DefaultLSTMConfig(units int) LSTMConfig {
	return rnn.DefaultLSTMConfig(units)
}

// NewSimpleRNNCell creates an unbuilt fully connected recurrent cell.
func NewSimpleRNNCell[B tensor.Backend](cfg SimpleRNNConfig, backend B) (*SimpleRNNCell[B], error) {
	return rnn.NewSimpleRNNCell(cfg, backend)
}

// NewGRUCell creates an unbuilt GRU cell.
func NewGRUCell[B tensor.Backend](cfg GRUConfig, backend B) (*GRUCell[B], error) {
	return rnn.NewGRUCell(cfg, backend)
}

// NewLSTMCell creates an unbuilt LSTM cell.
func NewLSTMCell[B tensor.Backend](cfg LSTMConfig, backend B) (*LSTMCell[B], error) {
	return rnn.NewLSTMCell(cfg, backend)
}

// NewStackedCells composes cells applied in order within one timestep.
// The flattened state lists the last cell's components first.
func NewStackedCells[B tensor.Backend](cells ...Cell[B]) (*StackedCells[B], error) {
	return rnn.NewStackedCells(cells...)
}

// GenerateDropoutMask returns count dropout masks derived from ones().
// Outside training every mask is all ones.
func GenerateDropoutMask[B tensor.Backend](
	ones func() *tensor.Tensor[float32, B], rate float64, training bool, count int, rng *rand.Rand,
) []*tensor.Tensor[float32, B] {
	return rnn.GenerateDropoutMask(ones, rate, training, count, rng)
}

// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package rnn

import (
	"github.com/born-ml/seqnet/internal/rnn"
	"github.com/born-ml/seqnet/tensor"
)

// Driver

// StepFunc computes one timestep from the input slice and previous states.
type StepFunc[B tensor.Backend] = rnn.StepFunc[B]

// RunOptions controls one driver invocation.
type RunOptions[B tensor.Backend] = rnn.RunOptions[B]

// RunResult is the outcome of a driver invocation.
type RunResult[B tensor.Backend] = rnn.RunResult[B]

// Run iterates cell over the time axis of inputs starting from initial.
func Run[B tensor.Backend](
	cell Cell[B], inputs *tensor.Tensor[float32, B], initial State[B], opts RunOptions[B],
) (*RunResult[B], error) {
	return rnn.Run(cell, inputs, initial, opts)
}

// RunFunc is Run for an arbitrary step function.
func RunFunc[B tensor.Backend](
	step StepFunc[B], inputs *tensor.Tensor[float32, B], initial State[B], opts RunOptions[B],
) (*RunResult[B], error) {
	return rnn.RunFunc(step, inputs, initial, opts)
}

// Layers

// RNNConfig configures an RNN layer.
type RNNConfig = rnn.RNNConfig

// CallOptions are the per-invocation inputs of a layer call.
type CallOptions[B tensor.Backend] = rnn.CallOptions[B]

// Result is the output of an RNN layer call.
type Result[B tensor.Backend] = rnn.Result[B]

// RNN applies a cell over the time axis of its inputs.
type RNN[B tensor.Backend] = rnn.RNN[B]

// NewRNN wraps cell into a sequence layer.
func NewRNN[B tensor.Backend](cell Cell[B], cfg RNNConfig) *RNN[B] {
	return rnn.NewRNN(cell, cfg)
}

// ComputeMask returns the [batch, time] mask of inputs: 0 where every
// feature of a step equals maskValue.
func ComputeMask[B tensor.Backend](inputs *tensor.Tensor[float32, B], maskValue float32) (*tensor.Tensor[float32, B], error) {
	return rnn.ComputeMask(inputs, maskValue)
}

// StateStore holds the carried-over states of a stateful layer.
type StateStore[B tensor.Backend] = rnn.StateStore[B]

// NewStateStore returns an empty store.
func NewStateStore[B tensor.Backend]() *StateStore[B] {
	return rnn.NewStateStore[B]()
}

// Bidirectional

// MergeMode selects how forward and backward outputs are combined.
type MergeMode = rnn.MergeMode

// Merge modes.
const (
	MergeConcat = rnn.MergeConcat
	MergeSum    = rnn.MergeSum
	MergeAve    = rnn.MergeAve
	MergeMul    = rnn.MergeMul
	MergeNone   = rnn.MergeNone
)

// ParseMergeMode validates a merge mode name. The empty string is MergeConcat.
func ParseMergeMode(s string) (MergeMode, error) {
	return rnn.ParseMergeMode(s)
}

// MergeOutputs combines a forward and a backward output.
func MergeOutputs[B tensor.Backend](mode MergeMode, f, bwd *tensor.Tensor[float32, B]) ([]*tensor.Tensor[float32, B], error) {
	return rnn.MergeOutputs(mode, f, bwd)
}

// BidirectionalConfig configures a Bidirectional layer.
type BidirectionalConfig = rnn.BidirectionalConfig

// BidirectionalResult is the output of a Bidirectional call.
type BidirectionalResult[B tensor.Backend] = rnn.BidirectionalResult[B]

// Bidirectional runs a layer forward and backward over the sequence.
type Bidirectional[B tensor.Backend] = rnn.Bidirectional[B]

// NewBidirectional creates forward and backward copies of layer.
func NewBidirectional[B tensor.Backend](layer *RNN[B], cfg BidirectionalConfig) (*Bidirectional[B], error) {
	return rnn.NewBidirectional(layer, cfg)
}

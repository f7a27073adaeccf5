// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package rnn runs recurrent cells over sequences.
//
// A cell computes one timestep. Run drives a cell over the time axis of a
// [batch, time, features] input, honoring an optional [batch, time] mask
// and reverse iteration. RNN wraps a cell into a layer with optional
// per-step outputs, returned states and stateful carry-over between calls.
// Bidirectional runs a forward and a backward copy of a layer and merges
// their outputs.
//
// # Cells
//
//   - SimpleRNNCell: h' = act(x·W + h·U + b)
//   - GRUCell: update/reset gates, with or without reset-after
//   - LSTMCell: input/forget/candidate/output gates over (h, c)
//   - StackedCells: several cells applied in sequence within one timestep
//
// # Basic Usage
//
//	backend := cpu.New()
//	cell, err := rnn.NewLSTMCell(rnn.DefaultLSTMConfig(32), backend)
//	layer := rnn.NewRNN[*cpu.Backend](cell, rnn.RNNConfig{ReturnSequences: true})
//
//	bi, err := rnn.NewBidirectional(layer, rnn.BidirectionalConfig{MergeMode: rnn.MergeConcat})
//	res, err := bi.Call(x, rnn.CallOptions[*cpu.Backend]{Mask: mask})
//	defer res.Release()
//	// res.Outputs[0]: [batch, time, 64]
//
// # Tensor Ownership
//
// Inputs, masks and initial states passed in are never modified or
// released. Every tensor in a returned result belongs to the caller, who
// releases it with the result's Release method. Intermediates are released
// before a call returns, on success and on error.
//
// # Errors
//
// Failures are typed (InputRankError, StateError, ShapeError, ConfigError)
// and match the category sentinels through errors.Is.
package rnn

// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package rnn

import "github.com/born-ml/seqnet/internal/rnn"

// Error categories, matched with errors.Is.
var (
	ErrInputRank      = rnn.ErrInputRank
	ErrStateMismatch  = rnn.ErrStateMismatch
	ErrShape          = rnn.ErrShape
	ErrNotImplemented = rnn.ErrNotImplemented
	ErrNotStateful    = rnn.ErrNotStateful
	ErrInvalidConfig  = rnn.ErrInvalidConfig
)

// Typed errors.
type (
	InputRankError = rnn.InputRankError
	StateError     = rnn.StateError
	ShapeError     = rnn.ShapeError
	ConfigError    = rnn.ConfigError
)

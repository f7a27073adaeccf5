package rnn

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/born-ml/seqnet/internal/tensor"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		msg      string
	}{
		{
			name:     "input rank",
			err:      &InputRankError{Op: "rnn.Run", Shape: tensor.Shape{4, 5}, MinRank: 3},
			sentinel: ErrInputRank,
			msg:      "rnn.Run: input should have rank >= 3 ([batch, time, features...]), got rank 2 with shape [4 5]",
		},
		{
			name:     "state count",
			err:      stateCountError("rnn.RNN.Call", 2, 1),
			sentinel: ErrStateMismatch,
			msg:      "rnn.RNN.Call: expected 2 state(s) but was passed 1 state(s)",
		},
		{
			name:     "state shape",
			err:      stateShapeError("lstm_cell.Step", 1, tensor.Shape{8, 16}, tensor.Shape{8, 12}),
			sentinel: ErrStateMismatch,
			msg:      "lstm_cell.Step: state 1 has shape [8 12], expected [8 16]",
		},
		{
			name:     "shape",
			err:      shapeErrorf("rnn.MergeOutputs", "got %v", tensor.Shape{1}),
			sentinel: ErrShape,
			msg:      "rnn.MergeOutputs: got [1]",
		},
		{
			name:     "config",
			err:      &ConfigError{Op: "rnn.NewGRUCell", Field: "Units", Msg: "must be positive, got 0"},
			sentinel: ErrInvalidConfig,
			msg:      "rnn.NewGRUCell: invalid Units: must be positive, got 0",
		},
		{
			name:     "not implemented",
			err:      notImplemented("rnn.Run", "constants"),
			sentinel: ErrNotImplemented,
			msg:      "rnn.Run: constants: rnn: not implemented",
		},
		{
			name:     "not stateful",
			err:      notStateful("rnn.RNN.States"),
			sentinel: ErrNotStateful,
			msg:      "rnn.RNN.States: rnn: layer is not stateful; construct it with Stateful: true",
		},
	}

	all := []error{ErrInputRank, ErrStateMismatch, ErrShape, ErrNotImplemented, ErrNotStateful, ErrInvalidConfig}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.EqualError(t, tt.err, tt.msg)
			for _, s := range all {
				assert.Equal(t, s == tt.sentinel, errors.Is(tt.err, s), "errors.Is(%v)", s)
			}
		})
	}
}

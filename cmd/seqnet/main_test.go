package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seqnet/backend/cpu"
	"github.com/born-ml/seqnet/rnn"
	"github.com/born-ml/seqnet/tensor"
)

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"version"}, &out))
	assert.Contains(t, out.String(), version)
}

func TestUnknownCommand(t *testing.T) {
	var out bytes.Buffer
	assert.ErrorContains(t, run([]string{"train"}, &out), `unknown command "train"`)
	assert.Contains(t, out.String(), "Commands:")
}

func TestRunCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "lstm sequences",
			args: []string{"-cell", "lstm", "-units", "4", "-batch", "2", "-steps", "3"},
			want: []string{"output[0] [2 3 4]", "state[0]  [2 4]", "state[1]  [2 4]"},
		},
		{
			name: "stacked gru last step",
			args: []string{"-cell", "gru", "-units", "3", "-layers", "2", "-sequences=false"},
			want: []string{"output[0] [2 3]", "state[1]  [2 3]"},
		},
		{
			name: "bidirectional sum with mask",
			args: []string{"-cell", "simple", "-units", "5", "-bidirectional", "-merge", "sum", "-lengths", "5,2"},
			want: []string{"output[0] [2 5 5]", "state[1]  [2 5]"},
		},
		{
			name: "bidirectional none",
			args: []string{"-units", "2", "-bidirectional", "-merge", "none"},
			want: []string{"output[0] [2 5 2]", "output[1] [2 5 2]"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			require.NoError(t, run(append([]string{"run", "-log-level", "warn"}, tt.args...), &out))
			for _, w := range tt.want {
				assert.Contains(t, out.String(), w)
			}
		})
	}
}

func TestRunCommand_Errors(t *testing.T) {
	var out bytes.Buffer
	assert.ErrorContains(t, run([]string{"run", "-cell", "rnn"}, &out), `unknown cell "rnn"`)
	assert.ErrorIs(t, run([]string{"run", "-bidirectional", "-merge", "max"}, &out), rnn.ErrInvalidConfig)
	assert.ErrorContains(t, run([]string{"run", "-lengths", "1"}, &out), "got 1 lengths for batch size 2")
	assert.Error(t, run([]string{"run", "-log-level", "loud"}, &out))
	assert.ErrorContains(t, run([]string{"run", "-layers", "0"}, &out), "layers must be positive")
}

func TestLengthMask(t *testing.T) {
	mask, err := lengthMask("3, 1", 2, 3, cpu.New())
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1, 1, 1, 0, 0}, mask.Data())
}

func TestEncodeCommand_NoInput(t *testing.T) {
	var out bytes.Buffer
	assert.ErrorContains(t, run([]string{"encode"}, &out), "no input texts")
}

func TestRunCommand_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gru.safetensors")
	args := []string{"run", "-log-level", "warn", "-cell", "gru", "-units", "3", "-bidirectional", "-seed", "4"}

	var first bytes.Buffer
	require.NoError(t, run(append(args, "-save", path), &first))

	// Loaded weights replace the ones drawn from the new seed.
	var second bytes.Buffer
	require.NoError(t, run(append(args[:len(args)-1], "9", "-load", path), &second))
	assert.Contains(t, second.String(), "output[0] [2 5 6]")

	var bad bytes.Buffer
	err := run([]string{"run", "-log-level", "warn", "-cell", "lstm", "-units", "3", "-load", path}, &bad)
	assert.ErrorContains(t, err, "load weights")
}

func TestProject(t *testing.T) {
	backend := cpu.New()
	f := tensor.Ones[float32](tensor.Shape{2, 3}, backend)
	b := tensor.Ones[float32](tensor.Shape{2, 3}, backend)

	logits := project([]*tensor.Tensor[float32, *Backend]{f}, 4, nil, backend)
	assert.Equal(t, tensor.Shape{2, 4}, logits.Shape())

	logits = project([]*tensor.Tensor[float32, *Backend]{f, b}, 5, nil, backend)
	assert.Equal(t, tensor.Shape{2, 5}, logits.Shape())
	assert.False(t, f.Released())
	assert.False(t, b.Released())
}

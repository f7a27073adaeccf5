package rnn

import (
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seqnet/internal/backend/cpu"
	"github.com/born-ml/seqnet/internal/tensor"
)

// mergePair returns F = 1..24 and B = 24..1, both 2×3×4.
func mergePair(backend *Backend) (*T32, *T32) {
	f := make([]float32, 24)
	b := make([]float32, 24)
	for i := range f {
		f[i] = float32(i + 1)
		b[i] = float32(24 - i)
	}
	return from(backend, f, 2, 3, 4), from(backend, b, 2, 3, 4)
}

func TestMergeOutputs(t *testing.T) {
	backend := cpu.New()
	f, b := mergePair(backend)

	out, err := MergeOutputs(MergeConcat, f, b)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, tensor.Shape{2, 3, 8}, out[0].Shape())
	assert.Equal(t, []float32{1, 2, 3, 4, 24, 23, 22, 21}, out[0].Data()[0:8])
	assert.Equal(t, []float32{21, 22, 23, 24, 4, 3, 2, 1}, out[0].Data()[40:48])

	out, err = MergeOutputs(MergeSum, f, b)
	require.NoError(t, err)
	for _, v := range out[0].Data() {
		assert.Equal(t, float32(25), v)
	}

	out, err = MergeOutputs(MergeAve, f, b)
	require.NoError(t, err)
	for _, v := range out[0].Data() {
		assert.Equal(t, float32(12.5), v)
	}

	out, err = MergeOutputs(MergeMul, f, b)
	require.NoError(t, err)
	assert.Equal(t, []float32{24, 46, 66, 84, 100, 114}, out[0].Data()[0:6])
	assert.Equal(t, float32(156), out[0].Data()[11])
	assert.Equal(t, float32(24), out[0].Data()[23])

	out, err = MergeOutputs(MergeNone, f, b)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Same(t, f, out[0])
	assert.Same(t, b, out[1])

	assert.False(t, f.Released())
	assert.False(t, b.Released())
}

func TestMergeOutputs_ShapeErrors(t *testing.T) {
	backend := cpu.New()
	f := zeros(backend, 2, 3, 4)

	out, err := MergeOutputs(MergeConcat, f, zeros(backend, 2, 3, 5))
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3, 9}, out[0].Shape())

	_, err = MergeOutputs(MergeConcat, f, zeros(backend, 2, 4, 4))
	assert.ErrorIs(t, err, ErrShape)

	for _, mode := range []MergeMode{MergeSum, MergeAve, MergeMul} {
		_, err = MergeOutputs(mode, f, zeros(backend, 2, 3, 5))
		assert.ErrorIs(t, err, ErrShape, "mode %s", mode)
	}

	_, err = MergeOutputs("max", f, f)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestParseMergeMode(t *testing.T) {
	tests := []struct {
		in   string
		want MergeMode
	}{
		{"", MergeConcat},
		{"concat", MergeConcat},
		{"sum", MergeSum},
		{"ave", MergeAve},
		{"mul", MergeMul},
		{"none", MergeNone},
	}
	for _, tt := range tests {
		got, err := ParseMergeMode(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseMergeMode("avg")
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorContains(t, err, `"avg"`)
}

func newBidirectional(t *testing.T, backend *Backend, cell Cell[*Backend], cfg RNNConfig, mode MergeMode) *Bidirectional[*Backend] {
	t.Helper()
	logger, _ := test.NewNullLogger()
	cfg.Logger = logger
	bi, err := NewBidirectional(NewRNN(cell, cfg), BidirectionalConfig{MergeMode: mode})
	require.NoError(t, err)
	return bi
}

func TestNewBidirectional(t *testing.T) {
	backend := cpu.New()
	bi := newBidirectional(t, backend, newGRU(t, backend, 3, 5), RNNConfig{Name: "enc"}, "")

	assert.Equal(t, MergeConcat, bi.MergeMode())
	assert.False(t, bi.Forward().Config().GoBackwards)
	assert.True(t, bi.Backward().Config().GoBackwards)
	assert.Equal(t, "forward_enc", bi.Forward().Config().Name)
	assert.Equal(t, "backward_enc", bi.Backward().Config().Name)
	assert.NotSame(t, bi.Forward().Cell(), bi.Backward().Cell())

	require.NoError(t, bi.Build(tensor.Shape{2, 4, 2}))
	fw, bw := bi.Forward().Weights(), bi.Backward().Weights()
	require.Len(t, fw, 3)
	require.Len(t, bi.Weights(), 6)
	assert.NotEqual(t, fw[0].Tensor().Data(), bw[0].Tensor().Data(), "directions have independent weights")

	_, err := NewBidirectional(NewRNN(newGRU(t, backend, 3, 1), RNNConfig{}), BidirectionalConfig{MergeMode: "max"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewBidirectional(NewRNN(newGRU(t, backend, 3, 1), RNNConfig{Unroll: true}), BidirectionalConfig{})
	assert.ErrorIs(t, err, ErrNotImplemented)
}

func TestBidirectional_CallSequences(t *testing.T) {
	backend := cpu.New()
	bi := newBidirectional(t, backend, newSimple(t, backend, 3, 2), RNNConfig{ReturnSequences: true}, MergeConcat)
	x := seq(backend, 2, 4, 2)

	res, err := bi.Call(x, CallOptions[*Backend]{})
	require.NoError(t, err)
	defer res.Release()
	require.Len(t, res.Outputs, 1)
	assert.Equal(t, tensor.Shape{2, 4, 6}, res.Outputs[0].Shape())
	assert.Nil(t, res.States)

	fwd, err := bi.Forward().Call(x, CallOptions[*Backend]{})
	require.NoError(t, err)
	bwd, err := bi.Backward().Call(x, CallOptions[*Backend]{})
	require.NoError(t, err)
	bwdChrono := bwd.Outputs.Reverse(1)

	merged := res.Outputs[0]
	for b := 0; b < 2; b++ {
		for s := 0; s < 4; s++ {
			for u := 0; u < 3; u++ {
				assert.Equal(t, fwd.Outputs.At(b, s, u), merged.At(b, s, u))
				assert.Equal(t, bwdChrono.At(b, s, u), merged.At(b, s, 3+u))
			}
		}
	}

	// The backward direction at the first timestep has seen the whole sequence.
	bwdLast, err := NewRNN(bi.Backward().Cell(), RNNConfig{GoBackwards: true}).Call(x, CallOptions[*Backend]{})
	require.NoError(t, err)
	for u := 0; u < 3; u++ {
		assert.Equal(t, bwdLast.Outputs.At(0, u), merged.At(0, 0, 3+u))
	}
}

func TestBidirectional_CallStatesAndModes(t *testing.T) {
	backend := cpu.New()
	x := seq(backend, 2, 3, 2)

	for _, mode := range []MergeMode{MergeSum, MergeAve, MergeMul, MergeConcat} {
		bi := newBidirectional(t, backend, newLSTM(t, backend, 2, 3), RNNConfig{ReturnState: true}, mode)
		res, err := bi.Call(x, CallOptions[*Backend]{})
		require.NoError(t, err, "mode %s", mode)
		require.Len(t, res.Outputs, 1)
		require.Len(t, res.States, 4, "forward [h, c] then backward [h, c]")
		for _, s := range res.States {
			assert.False(t, s.Released(), "mode %s: returned state released", mode)
			assert.Equal(t, tensor.Shape{2, 2}, s.Shape())
		}

		f, b := res.States[0], res.States[2]
		want, err := MergeOutputs(mode, f, b)
		require.NoError(t, err)
		assert.Equal(t, want[0].Data(), res.Outputs[0].Data(), "mode %s", mode)
		res.Release()
	}
}

func TestBidirectional_MergeNone(t *testing.T) {
	backend := cpu.New()
	bi := newBidirectional(t, backend, newGRU(t, backend, 2, 3), RNNConfig{ReturnSequences: true}, MergeNone)

	res, err := bi.Call(seq(backend, 1, 5, 2), CallOptions[*Backend]{})
	require.NoError(t, err)
	require.Len(t, res.Outputs, 2)
	assert.Equal(t, tensor.Shape{1, 5, 2}, res.Outputs[0].Shape())
	assert.Equal(t, tensor.Shape{1, 5, 2}, res.Outputs[1].Shape())
	res.Release()
}

func TestBidirectional_InitialStateAndMask(t *testing.T) {
	backend := cpu.New()
	bi := newBidirectional(t, backend, newSimple(t, backend, 2, 1), RNNConfig{ReturnSequences: true, ReturnState: true}, MergeSum)
	x := seq(backend, 2, 3, 1)
	mask := from(backend, []float32{1, 1, 0, 1, 1, 1}, 2, 3)

	hf := from(backend, []float32{0.5, -0.5, 0.25, 0}, 2, 2)
	hb := from(backend, []float32{-1, 1, 0, 0.75}, 2, 2)
	res, err := bi.Call(x, CallOptions[*Backend]{InitialState: State[*Backend]{hf, hb}, Mask: mask})
	require.NoError(t, err)
	defer res.Release()
	assert.Same(t, mask, res.Mask)

	fwd, err := bi.Forward().Call(x, CallOptions[*Backend]{InitialState: State[*Backend]{hf}, Mask: mask})
	require.NoError(t, err)
	bwd, err := bi.Backward().Call(x, CallOptions[*Backend]{InitialState: State[*Backend]{hb}, Mask: mask})
	require.NoError(t, err)
	assert.Equal(t, fwd.States[0].Data(), res.States[0].Data())
	assert.Equal(t, bwd.States[0].Data(), res.States[1].Data())

	// Row 0 is padded at the last timestep, so the forward output holds.
	assert.Equal(t, fwd.Outputs.At(0, 1, 0), fwd.Outputs.At(0, 2, 0))
	assert.False(t, hf.Released())
	assert.False(t, hb.Released())
}

func TestBidirectional_Errors(t *testing.T) {
	backend := cpu.New()
	bi := newBidirectional(t, backend, newSimple(t, backend, 2, 1), RNNConfig{}, MergeConcat)
	x := seq(backend, 2, 3, 1)

	_, err := bi.Call(x, CallOptions[*Backend]{Constants: []*T32{zeros(backend, 2, 1)}})
	assert.ErrorIs(t, err, ErrNotImplemented)

	_, err = bi.Call(x, CallOptions[*Backend]{InitialState: State[*Backend]{zeros(backend, 2, 2)}})
	assert.ErrorIs(t, err, ErrStateMismatch)

	_, err = bi.Call(zeros(backend, 2, 3), CallOptions[*Backend]{})
	assert.ErrorIs(t, err, ErrInputRank)

	assert.ErrorIs(t, bi.SetWeights([]*T32{zeros(backend, 1, 2)}), ErrInvalidConfig)
	assert.ErrorIs(t, bi.ResetStates(nil, false), ErrNotStateful)
	_, err = bi.States()
	assert.ErrorIs(t, err, ErrNotStateful)
}

func TestBidirectional_SetWeights(t *testing.T) {
	backend := cpu.New()
	bi := newBidirectional(t, backend, newSimple(t, backend, 2, 1), RNNConfig{}, MergeConcat)
	require.NoError(t, bi.Build(tensor.Shape{1, 2, 1}))

	ws := make([]*T32, 0, 6)
	for i, w := range bi.Weights() {
		ws = append(ws, tensor.Full[float32](w.Shape(), float32(i), backend))
	}
	require.NoError(t, bi.SetWeights(ws))
	assert.Equal(t, float32(0), bi.Forward().Weights()[0].Tensor().Data()[0])
	assert.Equal(t, float32(3), bi.Backward().Weights()[0].Tensor().Data()[0])
}

func TestBidirectional_Stateful(t *testing.T) {
	backend := cpu.New()
	bi := newBidirectional(t, backend, newSimple(t, backend, 2, 1), RNNConfig{Stateful: true}, MergeConcat)
	x := seq(backend, 2, 3, 1)

	_, err := bi.Call(x, CallOptions[*Backend]{})
	require.NoError(t, err)
	states, err := bi.States()
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.NotEqual(t, make([]float32, 4), states[0].Data())

	require.NoError(t, bi.ResetStates(nil, false))
	states, err = bi.States()
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 4), states[0].Data())
	assert.Equal(t, make([]float32, 4), states[1].Data())

	err = bi.ResetStates(State[*Backend]{zeros(backend, 2, 2)}, false)
	assert.ErrorIs(t, err, ErrStateMismatch)
}

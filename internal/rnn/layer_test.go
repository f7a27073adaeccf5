package rnn

import (
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seqnet/internal/backend/cpu"
	"github.com/born-ml/seqnet/internal/tensor"
)

func quietLayer(cell Cell[*Backend], cfg RNNConfig) (*RNN[*Backend], *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	cfg.Logger = logger
	return NewRNN(cell, cfg), hook
}

func copyWeights(t *testing.T, dst, src *RNN[*Backend]) {
	t.Helper()
	ws := make([]*T32, 0)
	for _, w := range src.Weights() {
		ws = append(ws, w.Tensor())
	}
	require.NoError(t, dst.SetWeights(ws))
}

func TestRNN_OutputShapes(t *testing.T) {
	backend := cpu.New()
	x := seq(backend, 2, 5, 3)
	mask := tensor.Ones[float32](tensor.Shape{2, 5}, backend)

	last, _ := quietLayer(newLSTM(t, backend, 4, 1), RNNConfig{})
	res, err := last.Call(x, CallOptions[*Backend]{})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 4}, res.Outputs.Shape())
	assert.Nil(t, res.States)
	assert.Nil(t, res.Mask)

	full, _ := quietLayer(newLSTM(t, backend, 4, 1), RNNConfig{ReturnSequences: true, ReturnState: true})
	res, err = full.Call(x, CallOptions[*Backend]{Mask: mask})
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 5, 4}, res.Outputs.Shape())
	require.Len(t, res.States, 2)
	assert.Equal(t, tensor.Shape{2, 4}, res.States[1].Shape())
	assert.Same(t, mask, res.Mask)
	assert.Equal(t, res.Outputs.Data()[16:20], res.States[0].Data()[0:4], "last step of row 0 is the final h")

	res.Release()
	assert.True(t, res.Outputs.Released())
	assert.False(t, mask.Released())
	assert.False(t, x.Released())
}

func TestRNN_ReturnStateWithoutSequences(t *testing.T) {
	backend := cpu.New()
	layer, _ := quietLayer(newGRU(t, backend, 3, 1), RNNConfig{ReturnState: true})

	res, err := layer.Call(seq(backend, 2, 4, 2), CallOptions[*Backend]{})
	require.NoError(t, err)
	require.Len(t, res.States, 1)
	assert.Equal(t, res.Outputs.Data(), res.States[0].Data())
	assert.Same(t, res.Outputs.Raw(), res.States[0].Raw(), "the last output is the final state")
	assert.NotPanics(t, res.Release)
	assert.True(t, res.States[0].Released())
}

func TestRNN_GoBackwards(t *testing.T) {
	backend := cpu.New()
	x := seq(backend, 1, 4, 1)

	fwd, _ := quietLayer(linearCell(t, backend), RNNConfig{})
	bwd, _ := quietLayer(linearCell(t, backend), RNNConfig{GoBackwards: true})

	a, err := fwd.Call(x.Reverse(1), CallOptions[*Backend]{})
	require.NoError(t, err)
	b, err := bwd.Call(x, CallOptions[*Backend]{})
	require.NoError(t, err)
	assert.Equal(t, a.Outputs.Data(), b.Outputs.Data())
}

func TestRNN_Errors(t *testing.T) {
	backend := cpu.New()
	layer, _ := quietLayer(newSimple(t, backend, 2, 1), RNNConfig{})

	_, err := layer.Call(zeros(backend, 2, 3), CallOptions[*Backend]{})
	assert.ErrorIs(t, err, ErrInputRank)

	_, err = layer.Call(zeros(backend, 2, 3, 1, 1), CallOptions[*Backend]{})
	assert.ErrorIs(t, err, ErrShape)

	_, err = layer.Call(seq(backend, 2, 3, 1), CallOptions[*Backend]{Constants: []*T32{zeros(backend, 2, 1)}})
	assert.ErrorIs(t, err, ErrNotImplemented)

	_, err = layer.Call(seq(backend, 2, 3, 1), CallOptions[*Backend]{InitialState: State[*Backend]{}})
	require.ErrorIs(t, err, ErrStateMismatch)
	assert.ErrorContains(t, err, "expected 1 state(s) but was passed 0 state(s)")

	_, err = layer.Call(seq(backend, 2, 3, 1), CallOptions[*Backend]{InitialState: State[*Backend]{zeros(backend, 2, 3)}})
	require.ErrorIs(t, err, ErrStateMismatch)
	assert.ErrorContains(t, err, "state 0 has shape [2 3], expected [2 2]")

	// Built for one feature; other feature sizes are rejected.
	_, err = layer.Call(seq(backend, 2, 3, 4), CallOptions[*Backend]{})
	assert.ErrorIs(t, err, ErrShape)

	unrolled, _ := quietLayer(newSimple(t, backend, 2, 1), RNNConfig{Unroll: true})
	_, err = unrolled.Call(seq(backend, 2, 3, 1), CallOptions[*Backend]{})
	assert.ErrorIs(t, err, ErrNotImplemented)

	assert.ErrorIs(t, layer.ResetStates(nil, false), ErrNotStateful)
	_, err = layer.States()
	assert.ErrorIs(t, err, ErrNotStateful)
}

func TestRNN_InitialState(t *testing.T) {
	backend := cpu.New()
	layer, _ := quietLayer(linearCell(t, backend), RNNConfig{ReturnState: true})
	h0 := from(backend, []float32{2, 4}, 1, 2)

	// h1 = [1, 0.5] + [2, 4]·U = [1, 0.5] + [1, 2.5]
	res, err := layer.Call(from(backend, []float32{1}, 1, 1, 1), CallOptions[*Backend]{InitialState: State[*Backend]{h0}})
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 3}, res.States[0].Data())
	assert.Equal(t, []float32{2, 4}, h0.Data())
}

func TestRNN_StatefulCarriesStateAcrossCalls(t *testing.T) {
	backend := cpu.New()
	stateful, _ := quietLayer(newLSTM(t, backend, 3, 8), RNNConfig{Stateful: true, ReturnState: true})
	whole, _ := quietLayer(newLSTM(t, backend, 3, 9), RNNConfig{ReturnState: true})

	x := seq(backend, 2, 6, 2)
	parts := x.Split([]int{3, 3}, 1)

	require.NoError(t, stateful.Build(parts[0].Shape()))
	require.NoError(t, whole.Build(x.Shape()))
	copyWeights(t, whole, stateful)

	_, err := stateful.Call(parts[0], CallOptions[*Backend]{})
	require.NoError(t, err)
	second, err := stateful.Call(parts[1], CallOptions[*Backend]{})
	require.NoError(t, err)
	once, err := whole.Call(x, CallOptions[*Backend]{})
	require.NoError(t, err)

	assert.InDeltaSlice(t, once.Outputs.Data(), second.Outputs.Data(), 1e-6)
	assert.InDeltaSlice(t, once.States[1].Data(), second.States[1].Data(), 1e-6)

	stored, err := stateful.States()
	require.NoError(t, err)
	assert.Equal(t, second.States[0].Data(), stored[0].Data())

	// Snapshots are copies.
	stored[0].Data()[0] = 99
	again, err := stateful.States()
	require.NoError(t, err)
	assert.NotEqual(t, float32(99), again[0].Data()[0])
}

func TestRNN_ResetStates(t *testing.T) {
	backend := cpu.New()
	layer, hook := quietLayer(newSimple(t, backend, 2, 1), RNNConfig{Stateful: true, BatchSize: 2})

	assert.ErrorIs(t, layer.ResetStates(nil, false), ErrInvalidConfig, "unbuilt")
	_, err := layer.Call(seq(backend, 2, 3, 1), CallOptions[*Backend]{})
	require.NoError(t, err)

	require.NoError(t, layer.ResetStates(nil, false))
	states, err := layer.States()
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 4), states[0].Data())
	assert.Equal(t, "reset recurrent states", hook.LastEntry().Message)

	explicit := from(backend, []float32{1, 2, 3, 4}, 2, 2)
	require.NoError(t, layer.ResetStates(State[*Backend]{explicit}, true))
	states, err = layer.States()
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, states[0].Data())
	assert.False(t, explicit.Released())

	err = layer.ResetStates(State[*Backend]{zeros(backend, 3, 2)}, false)
	assert.ErrorIs(t, err, ErrStateMismatch)
	err = layer.ResetStates(State[*Backend]{explicit, explicit}, false)
	assert.ErrorIs(t, err, ErrStateMismatch)
}

func TestRNN_StatefulBatchSize(t *testing.T) {
	backend := cpu.New()
	fixed, _ := quietLayer(newSimple(t, backend, 2, 1), RNNConfig{Stateful: true, BatchSize: 4})
	_, err := fixed.Call(seq(backend, 2, 3, 1), CallOptions[*Backend]{})
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.False(t, fixed.Built())

	pinned, _ := quietLayer(newSimple(t, backend, 2, 1), RNNConfig{Stateful: true, BatchSize: 2})
	_, err = pinned.Call(seq(backend, 2, 3, 1), CallOptions[*Backend]{})
	require.NoError(t, err)
	before, err := pinned.States()
	require.NoError(t, err)
	_, err = pinned.Call(seq(backend, 3, 3, 1), CallOptions[*Backend]{})
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorContains(t, err, "fixed to batch size 2, got input batch 3")
	after, err := pinned.States()
	require.NoError(t, err)
	assert.Equal(t, before[0].Data(), after[0].Data(), "stored states survive a rejected call")

	layer, hook := quietLayer(newSimple(t, backend, 2, 1), RNNConfig{Stateful: true, ReturnState: true})
	_, err = layer.Call(seq(backend, 2, 3, 1), CallOptions[*Backend]{})
	require.NoError(t, err)
	for _, e := range hook.AllEntries() {
		assert.NotEqual(t, logrus.WarnLevel, e.Level, e.Message)
	}

	fresh, _ := quietLayer(layer.Cell(), RNNConfig{ReturnState: true})
	x := seq(backend, 3, 3, 1)
	want, err := fresh.Call(x, CallOptions[*Backend]{})
	require.NoError(t, err)

	got, err := layer.Call(x, CallOptions[*Backend]{})
	require.NoError(t, err)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, 2, entry.Data["previous_batch"])
	assert.Equal(t, 3, entry.Data["batch"])
	assert.Equal(t, want.States[0].Data(), got.States[0].Data(), "states restart from zeros")
}

func TestRNN_StatefulConcurrentCalls(t *testing.T) {
	backend := cpu.New()
	const calls = 8
	concurrent, _ := quietLayer(newGRU(t, backend, 3, 2), RNNConfig{Stateful: true})
	sequential, _ := quietLayer(newGRU(t, backend, 3, 2), RNNConfig{Stateful: true})

	x := seq(backend, 2, 4, 2)
	require.NoError(t, concurrent.Build(x.Shape()))
	require.NoError(t, sequential.Build(x.Shape()))
	copyWeights(t, sequential, concurrent)

	var wg sync.WaitGroup
	errs := make([]error, calls)
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := concurrent.Call(x, CallOptions[*Backend]{})
			errs[i] = err
			if err == nil {
				res.Release()
			}
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	for i := 0; i < calls; i++ {
		res, err := sequential.Call(x, CallOptions[*Backend]{})
		require.NoError(t, err)
		res.Release()
	}

	got, err := concurrent.States()
	require.NoError(t, err)
	want, err := sequential.States()
	require.NoError(t, err)
	assert.Equal(t, want[0].Data(), got[0].Data())
}

func TestRNN_DropoutTraining(t *testing.T) {
	backend := cpu.New()
	cfg := DefaultSimpleRNNConfig(4)
	cfg.Dropout = 0.5
	cfg.Seed = 12
	cell, err := NewSimpleRNNCell(cfg, backend)
	require.NoError(t, err)
	layer, _ := quietLayer(cell, RNNConfig{})
	x := seq(backend, 2, 3, 2)

	infer1, err := layer.Call(x, CallOptions[*Backend]{})
	require.NoError(t, err)
	train, err := layer.Call(x, CallOptions[*Backend]{Training: true})
	require.NoError(t, err)
	infer2, err := layer.Call(x, CallOptions[*Backend]{})
	require.NoError(t, err)

	assert.Equal(t, infer1.Outputs.Data(), infer2.Outputs.Data(), "masks do not leak into the next call")
	assert.NotEqual(t, infer1.Outputs.Data(), train.Outputs.Data())
}

func TestRNN_Clone(t *testing.T) {
	backend := cpu.New()
	layer, _ := quietLayer(newSimple(t, backend, 2, 1), RNNConfig{Name: "enc", Stateful: true})
	require.NoError(t, layer.Build(tensor.Shape{1, 2, 3}))

	clone := layer.Clone()
	assert.False(t, clone.Built())
	assert.Equal(t, "enc", clone.Config().Name)
	assert.NotSame(t, layer.Cell(), clone.Cell())
}

func TestComputeMask(t *testing.T) {
	backend := cpu.New()
	x := from(backend, []float32{
		1, 2, 0, 0, 3, 0,
		0, 0, 0, 0, 0, 5,
	}, 2, 3, 2)

	mask, err := ComputeMask(x, 0)
	require.NoError(t, err)
	assert.Equal(t, tensor.Shape{2, 3}, mask.Shape())
	assert.Equal(t, []float32{1, 0, 1, 0, 0, 1}, mask.Data())

	deep := tensor.Full[float32](tensor.Shape{1, 2, 2, 2}, -1, backend)
	deep.Set(4, 0, 1, 1, 0)
	mask, err = ComputeMask(deep, -1)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, mask.Data())

	_, err = ComputeMask(zeros(backend, 2, 3), 0)
	assert.ErrorIs(t, err, ErrInputRank)
}

package rnn

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/seqnet/internal/backend/cpu"
	"github.com/born-ml/seqnet/internal/tensor"
)

type Backend = cpu.CPUBackend

type T32 = tensor.Tensor[float32, *Backend]

func from(backend *Backend, data []float32, shape ...int) *T32 {
	return tensor.MustFromSlice(data, tensor.Shape(shape), backend)
}

func zeros(backend *Backend, shape ...int) *T32 {
	return tensor.Zeros[float32](tensor.Shape(shape), backend)
}

// seq returns a [batch, steps, features] tensor filled with a fixed
// pseudo-random pattern in [-1, 1].
func seq(backend *Backend, batch, steps, features int) *T32 {
	data := make([]float32, batch*steps*features)
	for i := range data {
		data[i] = float32(math.Sin(float64(i)*1.7 + 0.3))
	}
	return from(backend, data, batch, steps, features)
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

// linearCell returns a built plain cell with identity activation, input
// size 1 and two units, using the literal weights of the end-to-end
// scenario.
func linearCell(t *testing.T, backend *Backend) *SimpleRNNCell[*Backend] {
	t.Helper()
	cfg := DefaultSimpleRNNConfig(2)
	cfg.Activation = "linear"
	cfg.Seed = 7
	cell, err := NewSimpleRNNCell(cfg, backend)
	require.NoError(t, err)
	require.NoError(t, cell.Build(1))
	require.NoError(t, cell.SetWeights([]*T32{
		from(backend, []float32{1, 0.5}, 1, 2),
		from(backend, []float32{0.5, 0.25, 0, 0.5}, 2, 2),
		from(backend, []float32{0, 0}, 2),
	}))
	return cell
}

func tanhCell(t *testing.T, backend *Backend, units, inputDim int, seed int64) *SimpleRNNCell[*Backend] {
	t.Helper()
	cfg := DefaultSimpleRNNConfig(units)
	cfg.Seed = seed
	cell, err := NewSimpleRNNCell(cfg, backend)
	require.NoError(t, err)
	require.NoError(t, cell.Build(inputDim))
	return cell
}

func TestNewCell_InvalidConfig(t *testing.T) {
	backend := cpu.New()

	_, err := NewSimpleRNNCell(DefaultSimpleRNNConfig(0), backend)
	require.ErrorIs(t, err, ErrInvalidConfig)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "Units", cfgErr.Field)

	cfg := DefaultSimpleRNNConfig(2)
	cfg.Activation = "softsign"
	_, err = NewSimpleRNNCell(cfg, backend)
	require.ErrorIs(t, err, ErrInvalidConfig)
	assert.ErrorContains(t, err, "softsign")

	gru := DefaultGRUConfig(2)
	gru.KernelInitializer = "he_normal"
	gru.BiasInitializer = "lecun"
	_, err = NewGRUCell(gru, backend)
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "KernelInitializer", cfgErr.Field)

	lstm := DefaultLSTMConfig(2)
	lstm.RecurrentActivation = "swish"
	_, err = NewLSTMCell(lstm, backend)
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "RecurrentActivation", cfgErr.Field)
}

func TestCell_BuildShapes(t *testing.T) {
	backend := cpu.New()

	simple, err := NewSimpleRNNCell(DefaultSimpleRNNConfig(4), backend)
	require.NoError(t, err)
	assert.False(t, simple.Built())
	assert.Nil(t, simple.Weights())
	require.NoError(t, simple.Build(3))
	shapes := func(c Cell[*Backend]) []tensor.Shape {
		var out []tensor.Shape
		for _, w := range c.Weights() {
			out = append(out, w.Shape())
		}
		return out
	}
	assert.Equal(t, []tensor.Shape{{3, 4}, {4, 4}, {4}}, shapes(simple))
	assert.Equal(t, "simple_rnn_cell.kernel", simple.Weights()[0].Name())

	gru, err := NewGRUCell(DefaultGRUConfig(4), backend)
	require.NoError(t, err)
	require.NoError(t, gru.Build(3))
	assert.Equal(t, []tensor.Shape{{3, 12}, {4, 12}, {2, 12}}, shapes(gru))

	classic := DefaultGRUConfig(4)
	classic.ResetAfter = false
	gru2, err := NewGRUCell(classic, backend)
	require.NoError(t, err)
	require.NoError(t, gru2.Build(3))
	assert.Equal(t, []tensor.Shape{{3, 12}, {4, 12}, {12}}, shapes(gru2))

	lstm, err := NewLSTMCell(DefaultLSTMConfig(4), backend)
	require.NoError(t, err)
	require.NoError(t, lstm.Build(3))
	assert.Equal(t, []tensor.Shape{{3, 16}, {4, 16}, {16}}, shapes(lstm))
	assert.Equal(t, []int{4, 4}, lstm.StateSize())

	bias := lstm.Weights()[2].Tensor().Data()
	assert.Equal(t, []float32{0, 0, 0, 0}, bias[0:4])
	assert.Equal(t, []float32{1, 1, 1, 1}, bias[4:8], "forget gate bias")
	assert.Equal(t, []float32{0, 0, 0, 0}, bias[8:12])
}

func TestCell_Rebuild(t *testing.T) {
	backend := cpu.New()
	cell := tanhCell(t, backend, 2, 3, 1)
	before := cell.Weights()[0].Tensor().Data()

	require.NoError(t, cell.Build(3))
	assert.Equal(t, before, cell.Weights()[0].Tensor().Data())

	err := cell.Build(5)
	assert.ErrorIs(t, err, ErrShape)
}

func TestCell_StepValidation(t *testing.T) {
	backend := cpu.New()

	unbuilt, err := NewSimpleRNNCell(DefaultSimpleRNNConfig(2), backend)
	require.NoError(t, err)
	_, _, err = unbuilt.Step(zeros(backend, 1, 3), State[*Backend]{zeros(backend, 1, 2)}, false)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	cell := tanhCell(t, backend, 2, 3, 1)
	_, _, err = cell.Step(zeros(backend, 1, 4), State[*Backend]{zeros(backend, 1, 2)}, false)
	assert.ErrorIs(t, err, ErrShape)

	_, _, err = cell.Step(zeros(backend, 1, 3), State[*Backend]{zeros(backend, 1, 2), zeros(backend, 1, 2)}, false)
	require.ErrorIs(t, err, ErrStateMismatch)
	assert.ErrorContains(t, err, "expected 1 state(s) but was passed 2 state(s)")

	_, _, err = cell.Step(zeros(backend, 1, 3), State[*Backend]{zeros(backend, 1, 5)}, false)
	require.ErrorIs(t, err, ErrStateMismatch)
	assert.ErrorContains(t, err, "state 0 has shape [1 5], expected [1 2]")
}

func TestCell_SetWeightsValidation(t *testing.T) {
	backend := cpu.New()

	unbuilt, err := NewSimpleRNNCell(DefaultSimpleRNNConfig(2), backend)
	require.NoError(t, err)
	assert.ErrorIs(t, unbuilt.SetWeights(nil), ErrInvalidConfig)

	cell := tanhCell(t, backend, 2, 1, 1)
	err = cell.SetWeights([]*T32{zeros(backend, 1, 2)})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	err = cell.SetWeights([]*T32{zeros(backend, 1, 2), zeros(backend, 2, 3), zeros(backend, 2)})
	require.ErrorIs(t, err, ErrShape)
	assert.ErrorContains(t, err, "simple_rnn_cell.recurrent_kernel")
}

func TestSimpleRNNCell_Step(t *testing.T) {
	backend := cpu.New()
	cell := linearCell(t, backend)

	x := from(backend, []float32{2}, 1, 1)
	h := from(backend, []float32{1, 0.5}, 1, 2)
	out, states, err := cell.Step(x, State[*Backend]{h}, false)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Same(t, out, states[0])
	assert.Equal(t, []float32{2.5, 1.5}, out.Data())
	assert.False(t, x.Released())
	assert.False(t, h.Released())
}

func TestSimpleRNNCell_NoBias(t *testing.T) {
	backend := cpu.New()
	cfg := DefaultSimpleRNNConfig(3)
	cfg.UseBias = false
	cell, err := NewSimpleRNNCell(cfg, backend)
	require.NoError(t, err)
	require.NoError(t, cell.Build(2))
	assert.Len(t, cell.Weights(), 2)

	out, _, err := cell.Step(zeros(backend, 4, 2), State[*Backend]{zeros(backend, 4, 3)}, false)
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 12), out.Data())
}

// gruReference computes one GRU step for a single unit in float64.
func gruReference(x, h float64, k, u, b, rb [3]float64, resetAfter bool) float64 {
	z := sigmoid(x*k[0] + b[0] + h*u[0] + rb[0])
	r := sigmoid(x*k[1] + b[1] + h*u[1] + rb[1])
	var hh float64
	if resetAfter {
		hh = math.Tanh(x*k[2] + b[2] + r*(h*u[2]+rb[2]))
	} else {
		hh = math.Tanh(x*k[2] + b[2] + (r*h)*u[2])
	}
	return z*h + (1-z)*hh
}

func TestGRUCell_Step(t *testing.T) {
	backend := cpu.New()
	k := [3]float64{0.5, -0.3, 0.8}
	u := [3]float64{0.2, 0.4, -0.6}
	b := [3]float64{0.1, -0.2, 0.05}
	rb := [3]float64{-0.1, 0.3, 0.2}
	f32 := func(v [3]float64) []float32 { return []float32{float32(v[0]), float32(v[1]), float32(v[2])} }

	xs := []float64{0.7, -1.2}
	hs := []float64{0.3, -0.4}

	for _, resetAfter := range []bool{true, false} {
		cfg := DefaultGRUConfig(1)
		cfg.ResetAfter = resetAfter
		cell, err := NewGRUCell(cfg, backend)
		require.NoError(t, err)
		require.NoError(t, cell.Build(1))

		bias := from(backend, f32(b), 3)
		wantRB := [3]float64{}
		if resetAfter {
			bias = from(backend, append(f32(b), f32(rb)...), 2, 3)
			wantRB = rb
		}
		require.NoError(t, cell.SetWeights([]*T32{from(backend, f32(k), 1, 3), from(backend, f32(u), 1, 3), bias}))

		x := from(backend, []float32{float32(xs[0]), float32(xs[1])}, 2, 1)
		h := from(backend, []float32{float32(hs[0]), float32(hs[1])}, 2, 1)
		out, states, err := cell.Step(x, State[*Backend]{h}, false)
		require.NoError(t, err)
		assert.Same(t, out, states[0])

		for i := range xs {
			want := gruReference(xs[i], hs[i], k, u, b, wantRB, resetAfter)
			assert.InDelta(t, want, out.Data()[i], 1e-5, "resetAfter=%v row %d", resetAfter, i)
		}
	}
}

func TestLSTMCell_Step(t *testing.T) {
	backend := cpu.New()
	k := []float64{0.5, -0.3, 0.8, 0.1}
	u := []float64{0.2, 0.4, -0.6, 0.9}
	b := []float64{0.1, 1, 0.05, -0.2}
	f32 := func(v []float64) []float32 {
		out := make([]float32, len(v))
		for i, x := range v {
			out[i] = float32(x)
		}
		return out
	}

	cfg := DefaultLSTMConfig(1)
	cell, err := NewLSTMCell(cfg, backend)
	require.NoError(t, err)
	require.NoError(t, cell.Build(1))
	require.NoError(t, cell.SetWeights([]*T32{from(backend, f32(k), 1, 4), from(backend, f32(u), 1, 4), from(backend, f32(b), 4)}))

	x, h, c := 0.6, -0.25, 0.4
	out, states, err := cell.Step(
		from(backend, []float32{float32(x)}, 1, 1),
		State[*Backend]{from(backend, []float32{float32(h)}, 1, 1), from(backend, []float32{float32(c)}, 1, 1)},
		false,
	)
	require.NoError(t, err)
	require.Len(t, states, 2)
	assert.Same(t, out, states[0])

	pre := func(g int) float64 { return x*k[g] + h*u[g] + b[g] }
	i, f, g, o := sigmoid(pre(0)), sigmoid(pre(1)), math.Tanh(pre(2)), sigmoid(pre(3))
	wantC := f*c + i*g
	wantH := o * math.Tanh(wantC)

	assert.InDelta(t, wantH, out.Data()[0], 1e-5)
	assert.InDelta(t, wantC, states[1].Data()[0], 1e-5)
}

func TestCell_DropoutMasksReusedWithinCall(t *testing.T) {
	backend := cpu.New()
	cfg := DefaultGRUConfig(3)
	cfg.Dropout = 0.5
	cfg.RecurrentDropout = 0.25
	cfg.Seed = 11
	cell, err := NewGRUCell(cfg, backend)
	require.NoError(t, err)
	require.NoError(t, cell.Build(2))

	x := seq(backend, 4, 1, 2).Reshape(4, 2)
	h := zeros(backend, 4, 3)

	_, _, err = cell.Step(x, State[*Backend]{h}, true)
	require.NoError(t, err)
	require.Len(t, cell.masks.input, gruGates)
	require.Len(t, cell.masks.recurrent, gruGates)
	first := cell.masks.input[0]

	_, _, err = cell.Step(x, State[*Backend]{h}, true)
	require.NoError(t, err)
	assert.Same(t, first, cell.masks.input[0], "masks are reused across timesteps")

	cell.ResetDropoutMasks()
	assert.Nil(t, cell.masks.input)
	assert.Nil(t, cell.masks.recurrent)
	assert.True(t, first.Released())

	_, _, err = cell.Step(x, State[*Backend]{h}, true)
	require.NoError(t, err)
	assert.NotSame(t, first, cell.masks.input[0])
	cell.ResetDropoutMasks()
}

func TestCell_DropoutInactiveAtInference(t *testing.T) {
	backend := cpu.New()

	plain := DefaultLSTMConfig(3)
	plain.Seed = 5
	withDropout := plain
	withDropout.Dropout = 0.4
	withDropout.RecurrentDropout = 0.4

	a, err := NewLSTMCell(plain, backend)
	require.NoError(t, err)
	b, err := NewLSTMCell(withDropout, backend)
	require.NoError(t, err)
	require.NoError(t, a.Build(2))
	require.NoError(t, b.Build(2))

	ws := make([]*T32, 0, 3)
	for _, w := range a.Weights() {
		ws = append(ws, w.Tensor())
	}
	require.NoError(t, b.SetWeights(ws))

	x := seq(backend, 2, 1, 2).Reshape(2, 2)
	states := State[*Backend]{from(backend, []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}, 2, 3), zeros(backend, 2, 3)}

	outA, _, err := a.Step(x, states, false)
	require.NoError(t, err)
	outB, _, err := b.Step(x, states, false)
	require.NoError(t, err)
	assert.Equal(t, outA.Data(), outB.Data())
	b.ResetDropoutMasks()
}

func TestCell_Clone(t *testing.T) {
	backend := cpu.New()
	cfg := DefaultSimpleRNNConfig(3)
	cfg.Seed = 3
	cell, err := NewSimpleRNNCell(cfg, backend)
	require.NoError(t, err)
	require.NoError(t, cell.Build(2))

	clone := cell.Clone()
	assert.False(t, clone.Built())
	assert.Equal(t, cell.StateSize(), clone.StateSize())
	require.NoError(t, clone.Build(2))
	assert.NotEqual(t, cell.Weights()[0].Tensor().Data(), clone.Weights()[0].Tensor().Data())

	// Changing the clone leaves the original alone.
	require.NoError(t, clone.SetWeights([]*T32{zeros(backend, 2, 3), zeros(backend, 3, 3), zeros(backend, 3)}))
	assert.NotEqual(t, make([]float32, 6), cell.Weights()[0].Tensor().Data())
}

func TestStateHelpers(t *testing.T) {
	backend := cpu.New()
	s := State[*Backend]{from(backend, []float32{1, 2}, 1, 2), from(backend, []float32{3}, 1, 1)}

	c := s.Clone()
	require.Len(t, c, 2)
	assert.NotSame(t, s[0], c[0])
	assert.Equal(t, s[1].Data(), c[1].Data())
	assert.Equal(t, []*tensor.RawTensor{s[0].Raw(), s[1].Raw()}, s.Raws())

	c.Release()
	assert.True(t, c[0].Released())
	assert.False(t, s[0].Released())
	assert.Nil(t, State[*Backend](nil).Clone())
}

func TestResolveActivation(t *testing.T) {
	_, err := resolveActivation("op", "Activation", "nope", cpu.New())
	var cfgErr *ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "Activation", cfgErr.Field)
}

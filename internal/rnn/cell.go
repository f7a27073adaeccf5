// Package rnn implements the recurrent sequence engine: cells, the
// time-stepping driver, stacked and bidirectional composition and the
// stateful layer wrapper.
//
// All recurrent computation is float32. Tensors returned to the caller are
// owned by the caller; per-call intermediates are released when the call
// returns.
package rnn

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/seqnet/internal/nn"
	"github.com/born-ml/seqnet/internal/tensor"
)

// State is the ordered list of tensors a cell carries between timesteps.
// Each component has shape [batch, StateSize()[i]].
type State[B tensor.Backend] []*tensor.Tensor[float32, B]

// Raws returns the raw tensors of the state.
func (s State[B]) Raws() []*tensor.RawTensor {
	out := make([]*tensor.RawTensor, len(s))
	for i, t := range s {
		out[i] = t.Raw()
	}
	return out
}

// Clone deep-copies every component.
func (s State[B]) Clone() State[B] {
	if s == nil {
		return nil
	}
	out := make(State[B], len(s))
	for i, t := range s {
		out[i] = t.Clone()
	}
	return out
}

// Release releases every component.
func (s State[B]) Release() {
	for _, t := range s {
		t.Release()
	}
}

// Cell is one recurrent unit: given one timestep's input [batch, inputDim]
// and the previous state it returns the output and the new state.
//
// Step never mutates its arguments. The returned output and state are new
// tensors owned by the caller. For every built-in cell the output is also
// the first state component, so states[0] is always the primary hidden
// output.
type Cell[B tensor.Backend] interface {
	// StateSize returns the feature size of every state component.
	StateSize() []int

	// OutputSize returns the feature size of the step output.
	OutputSize() int

	// Build allocates the weights for the given input feature size.
	// Building again with the same size is a no-op.
	Build(inputDim int) error

	// Built reports whether Build has run.
	Built() bool

	// Step runs one timestep.
	Step(input *tensor.Tensor[float32, B], states State[B], training bool) (*tensor.Tensor[float32, B], State[B], error)

	// Weights returns the weight parameters in a stable order.
	Weights() []*nn.Parameter[B]

	// SetWeights copies ws into the weights, in Weights order.
	SetWeights(ws []*tensor.Tensor[float32, B]) error

	// Clone returns an unbuilt cell with the same configuration and
	// independent weights.
	Clone() Cell[B]

	// Backend returns the backend weights and states are allocated on.
	Backend() B
}

// DropoutResetter is implemented by cells that cache per-call dropout masks.
// Run calls ResetDropoutMasks at the start of every invocation.
type DropoutResetter interface {
	ResetDropoutMasks()
}

// track registers t with the scope and returns it.
func track[B tensor.Backend](s *tensor.Scope, t *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	s.Track(t.Raw())
	return t
}

// trackAll registers ts with the scope and returns them.
func trackAll[B tensor.Backend](s *tensor.Scope, ts []*tensor.Tensor[float32, B]) []*tensor.Tensor[float32, B] {
	for _, t := range ts {
		s.Track(t.Raw())
	}
	return ts
}

func newRNG(seed int64) *rand.Rand {
	if seed == 0 {
		return nil
	}
	//nolint:gosec // math/rand is appropriate for weight init and dropout
	return rand.New(rand.NewSource(seed))
}

// nextSeed advances a nonzero seed for clones so the copy draws different
// initial weights.
func nextSeed(seed int64) int64 {
	if seed == 0 {
		return 0
	}
	return seed + 1
}

// cellBase holds what plain, gated and long-short-term cells share: fused
// weights for `gates` gate groups, their per-gate slices, dropout masks and
// step validation.
type cellBase[B tensor.Backend] struct {
	name    string
	units   int
	gates   int
	backend B

	useBias          bool
	kernelInit       string
	recurrentInit    string
	biasInit         string
	dropout          float64
	recurrentDropout float64
	seed             int64
	rng              *rand.Rand

	built     bool
	inputDim  int
	kernel    *nn.Parameter[B] // [inputDim, gates*units]
	recurrent *nn.Parameter[B] // [units, gates*units]
	bias      *nn.Parameter[B] // [gates*units], or [2, gates*units] with split input/recurrent bias

	// Per-gate slices of the fused weights, refreshed after Build and SetWeights.
	gateKernel        []*tensor.Tensor[float32, B]
	gateRecurrent     []*tensor.Tensor[float32, B]
	gateBias          []*tensor.Tensor[float32, B]
	gateRecurrentBias []*tensor.Tensor[float32, B]

	masks dropoutMasks[B]
}

func newCellBase[B tensor.Backend](
	name string,
	gates, units int,
	useBias bool,
	kernelInit, recurrentInit, biasInit string,
	dropout, recurrentDropout float64,
	seed int64,
	backend B,
) (cellBase[B], error) {
	op := "rnn.New" + name
	if units <= 0 {
		return cellBase[B]{}, &ConfigError{Op: op, Field: "Units", Msg: fmt.Sprintf("must be positive, got %d", units)}
	}
	inits := []struct{ field, name string }{
		{"KernelInitializer", kernelInit},
		{"RecurrentInitializer", recurrentInit},
		{"BiasInitializer", biasInit},
	}
	for _, init := range inits {
		switch init.name {
		case nn.InitGlorotUniform, nn.InitOrthogonal, nn.InitZeros, nn.InitOnes:
		default:
			return cellBase[B]{}, &ConfigError{Op: op, Field: init.field, Msg: fmt.Sprintf("unknown initializer %q", init.name)}
		}
	}

	return cellBase[B]{
		name:             name,
		units:            units,
		gates:            gates,
		backend:          backend,
		useBias:          useBias,
		kernelInit:       kernelInit,
		recurrentInit:    recurrentInit,
		biasInit:         biasInit,
		dropout:          clampRate(dropout),
		recurrentDropout: clampRate(recurrentDropout),
		seed:             seed,
		rng:              newRNG(seed),
	}, nil
}

func clampRate(r float64) float64 {
	return min(1, max(0, r))
}

func resolveActivation[B tensor.Backend](op, field, name string, backend B) (nn.Activation[B], error) {
	act, err := nn.GetActivation(name, backend)
	if err != nil {
		return nil, &ConfigError{Op: op, Field: field, Msg: err.Error()}
	}
	return act, nil
}

// Backend returns the backend the cell allocates on.
func (c *cellBase[B]) Backend() B {
	return c.backend
}

// Built reports whether the weights exist.
func (c *cellBase[B]) Built() bool {
	return c.built
}

// Units returns the number of hidden units.
func (c *cellBase[B]) Units() int {
	return c.units
}

// build allocates kernel, recurrent kernel and bias. biasShape lets the
// gated cell request the split [2, gates*units] layout.
func (c *cellBase[B]) build(inputDim int, biasShape tensor.Shape, customizeBias func(*tensor.Tensor[float32, B])) error {
	op := c.name + ".Build"
	if c.built {
		if inputDim != c.inputDim {
			return shapeErrorf(op, "cell was built for input dim %d, got %d", c.inputDim, inputDim)
		}
		return nil
	}
	if inputDim <= 0 {
		return shapeErrorf(op, "input dim must be positive, got %d", inputDim)
	}

	width := c.gates * c.units
	kernel, err := nn.Initialize(c.kernelInit, tensor.Shape{inputDim, width}, c.rng, c.backend)
	if err != nil {
		return fmt.Errorf("%s: kernel: %w", op, err)
	}
	recurrent, err := nn.Initialize(c.recurrentInit, tensor.Shape{c.units, width}, c.rng, c.backend)
	if err != nil {
		kernel.Release()
		return fmt.Errorf("%s: recurrent kernel: %w", op, err)
	}

	c.kernel = nn.NewParameter(c.name+".kernel", kernel)
	c.recurrent = nn.NewParameter(c.name+".recurrent_kernel", recurrent)

	if c.useBias {
		bias, err := nn.Initialize(c.biasInit, biasShape, c.rng, c.backend)
		if err != nil {
			kernel.Release()
			recurrent.Release()
			return fmt.Errorf("%s: bias: %w", op, err)
		}
		if customizeBias != nil {
			customizeBias(bias)
		}
		c.bias = nn.NewParameter(c.name+".bias", bias)
	}

	c.inputDim = inputDim
	c.built = true
	c.refreshGates()
	return nil
}

// Weights returns [kernel, recurrent_kernel, bias] (bias only with UseBias).
func (c *cellBase[B]) Weights() []*nn.Parameter[B] {
	if !c.built {
		return nil
	}
	ws := []*nn.Parameter[B]{c.kernel, c.recurrent}
	if c.useBias {
		ws = append(ws, c.bias)
	}
	return ws
}

// SetWeights copies ws into the cell's weights in Weights order.
func (c *cellBase[B]) SetWeights(ws []*tensor.Tensor[float32, B]) error {
	op := c.name + ".SetWeights"
	if !c.built {
		return &ConfigError{Op: op, Field: "weights", Msg: "cell must be built before setting weights"}
	}
	params := c.Weights()
	if len(ws) != len(params) {
		return &ConfigError{Op: op, Field: "weights", Msg: fmt.Sprintf("expected %d weight tensor(s), got %d", len(params), len(ws))}
	}
	for i, p := range params {
		if !ws[i].Shape().Equal(p.Shape()) {
			return shapeErrorf(op, "weight %s: expected shape %v, got %v", p.Name(), p.Shape(), ws[i].Shape())
		}
	}
	for i, p := range params {
		if err := p.Set(ws[i]); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	c.refreshGates()
	return nil
}

func (c *cellBase[B]) refreshGates() {
	release := func(ts []*tensor.Tensor[float32, B]) {
		for _, t := range ts {
			t.Release()
		}
	}
	release(c.gateKernel)
	release(c.gateRecurrent)
	release(c.gateBias)
	release(c.gateRecurrentBias)
	c.gateBias, c.gateRecurrentBias = nil, nil

	c.gateKernel = c.kernel.Tensor().Chunk(c.gates, 1)
	c.gateRecurrent = c.recurrent.Tensor().Chunk(c.gates, 1)
	if !c.useBias {
		return
	}

	bias := c.bias.Tensor()
	if bias.Rank() == 1 {
		c.gateBias = bias.Chunk(c.gates, 0)
		return
	}
	rows := bias.Split([]int{1, 1}, 0)
	c.gateBias = rows[0].Chunk(c.gates, 1)
	c.gateRecurrentBias = rows[1].Chunk(c.gates, 1)
	rows[0].Release()
	rows[1].Release()
}

// checkStep validates a step's input and states against the cell.
func (c *cellBase[B]) checkStep(input *tensor.Tensor[float32, B], states State[B], stateSize []int) error {
	op := c.name + ".Step"
	if !c.built {
		return &ConfigError{Op: op, Field: "state", Msg: "cell must be built before stepping"}
	}
	shape := input.Shape()
	if len(shape) != 2 || shape[1] != c.inputDim {
		return shapeErrorf(op, "expected input of shape [batch, %d], got %v", c.inputDim, shape)
	}
	return checkStates(op, states, shape[0], stateSize)
}

// checkStates validates count and [batch, size] shapes of states.
func checkStates[B tensor.Backend](op string, states State[B], batch int, stateSize []int) error {
	if len(states) != len(stateSize) {
		return stateCountError(op, len(stateSize), len(states))
	}
	for i, s := range states {
		want := tensor.Shape{batch, stateSize[i]}
		if !s.Shape().Equal(want) {
			return stateShapeError(op, i, want, s.Shape())
		}
	}
	return nil
}

// project computes x_k·W_k for every gate k. masks, when present, holds
// one dropout mask per gate applied to x first.
func project[B tensor.Backend](
	s *tensor.Scope,
	x *tensor.Tensor[float32, B],
	masks []*tensor.Tensor[float32, B],
	weights []*tensor.Tensor[float32, B],
) []*tensor.Tensor[float32, B] {
	out := make([]*tensor.Tensor[float32, B], len(weights))
	for k, w := range weights {
		xk := x
		if masks != nil {
			xk = track(s, x.Mul(masks[k]))
		}
		out[k] = track(s, xk.MatMul(w))
	}
	return out
}

// addBias adds the per-gate biases in place of the projections slice.
func addBias[B tensor.Backend](s *tensor.Scope, proj, bias []*tensor.Tensor[float32, B]) {
	if bias == nil {
		return
	}
	for k := range proj {
		proj[k] = track(s, proj[k].Add(bias[k]))
	}
}

// ResetDropoutMasks releases the masks of the previous call.
func (c *cellBase[B]) ResetDropoutMasks() {
	c.masks.reset()
}

// inputMasks returns the per-gate input dropout masks, or nil when input
// dropout is off.
func (c *cellBase[B]) inputMasks(x *tensor.Tensor[float32, B], training bool) []*tensor.Tensor[float32, B] {
	if c.dropout <= 0 || c.dropout >= 1 {
		return nil
	}
	return c.masks.inputMasks(x, c.dropout, training, c.gates, c.rng)
}

// recurrentMasks returns the per-gate recurrent dropout masks, or nil when
// recurrent dropout is off.
func (c *cellBase[B]) recurrentMasks(h *tensor.Tensor[float32, B], training bool) []*tensor.Tensor[float32, B] {
	if c.recurrentDropout <= 0 || c.recurrentDropout >= 1 {
		return nil
	}
	return c.masks.recurrentMasks(h, c.recurrentDropout, training, c.gates, c.rng)
}

package rnn

import (
	"github.com/born-ml/seqnet/internal/nn"
	"github.com/born-ml/seqnet/internal/tensor"
)

// SimpleRNNConfig configures a SimpleRNNCell.
type SimpleRNNConfig struct {
	Units                int
	Activation           string
	UseBias              bool
	KernelInitializer    string
	RecurrentInitializer string
	BiasInitializer      string
	Dropout              float64 // input dropout rate
	RecurrentDropout     float64 // recurrent state dropout rate
	Seed                 int64   // 0 draws from the global source
}

// DefaultSimpleRNNConfig returns the usual configuration for a plain cell.
func DefaultSimpleRNNConfig(units int) SimpleRNNConfig {
	return SimpleRNNConfig{
		Units:                units,
		Activation:           "tanh",
		UseBias:              true,
		KernelInitializer:    nn.InitGlorotUniform,
		RecurrentInitializer: nn.InitOrthogonal,
		BiasInitializer:      nn.InitZeros,
	}
}

// SimpleRNNCell is the plain recurrent cell:
//
//	h = activation(x·W + h_prev·U + b)
//
// Its state is [h] and its output is h.
type SimpleRNNCell[B tensor.Backend] struct {
	cellBase[B]
	cfg        SimpleRNNConfig
	activation nn.Activation[B]
}

// NewSimpleRNNCell creates an unbuilt plain cell.
func NewSimpleRNNCell[B tensor.Backend](cfg SimpleRNNConfig, backend B) (*SimpleRNNCell[B], error) {
	base, err := newCellBase("simple_rnn_cell", 1, cfg.Units, cfg.UseBias,
		cfg.KernelInitializer, cfg.RecurrentInitializer, cfg.BiasInitializer,
		cfg.Dropout, cfg.RecurrentDropout, cfg.Seed, backend)
	if err != nil {
		return nil, err
	}
	act, err := resolveActivation("rnn.NewSimpleRNNCell", "Activation", cfg.Activation, backend)
	if err != nil {
		return nil, err
	}
	return &SimpleRNNCell[B]{cellBase: base, cfg: cfg, activation: act}, nil
}

// Config returns the cell configuration.
func (c *SimpleRNNCell[B]) Config() SimpleRNNConfig {
	return c.cfg
}

// StateSize returns [units].
func (c *SimpleRNNCell[B]) StateSize() []int {
	return []int{c.units}
}

// OutputSize returns units.
func (c *SimpleRNNCell[B]) OutputSize() int {
	return c.units
}

// Build allocates kernel [inputDim, units], recurrent kernel [units, units]
// and bias [units].
func (c *SimpleRNNCell[B]) Build(inputDim int) error {
	return c.build(inputDim, tensor.Shape{c.units}, nil)
}

// Step runs one timestep.
func (c *SimpleRNNCell[B]) Step(
	input *tensor.Tensor[float32, B], states State[B], training bool,
) (*tensor.Tensor[float32, B], State[B], error) {
	if err := c.checkStep(input, states, c.StateSize()); err != nil {
		return nil, nil, err
	}

	scope := tensor.NewScope()
	defer scope.Close()

	x := project(scope, input, c.inputMasks(input, training), c.gateKernel)[0]
	if c.useBias {
		x = track(scope, x.Add(c.gateBias[0]))
	}
	hU := project(scope, states[0], c.recurrentMasks(states[0], training), c.gateRecurrent)[0]
	z := track(scope, x.Add(hU))

	h := c.activation(z)
	scope.Keep(h.Raw())
	return h, State[B]{h}, nil
}

// Clone returns an unbuilt cell with the same configuration.
func (c *SimpleRNNCell[B]) Clone() Cell[B] {
	cfg := c.cfg
	cfg.Seed = nextSeed(cfg.Seed)
	clone, err := NewSimpleRNNCell(cfg, c.backend)
	if err != nil {
		// cfg was already validated when c was created.
		panic(err)
	}
	return clone
}

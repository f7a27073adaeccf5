package rnn

import (
	"github.com/born-ml/seqnet/internal/nn"
	"github.com/born-ml/seqnet/internal/tensor"
)

// LSTM gate groups, in weight layout order.
const (
	lstmInput = iota
	lstmForget
	lstmCandidate
	lstmOutput
	lstmGates
)

// LSTMConfig configures an LSTMCell.
type LSTMConfig struct {
	Units                int
	Activation           string // candidate and carry activation
	RecurrentActivation  string // input/forget/output gate activation
	UseBias              bool
	KernelInitializer    string
	RecurrentInitializer string
	BiasInitializer      string
	UnitForgetBias       bool // initialize the forget gate bias to 1
	Dropout              float64
	RecurrentDropout     float64
	Seed                 int64
}

// DefaultLSTMConfig returns the usual long-short-term cell configuration.
func DefaultLSTMConfig(units int) LSTMConfig {
	return LSTMConfig{
		Units:                units,
		Activation:           "tanh",
		RecurrentActivation:  "sigmoid",
		UseBias:              true,
		KernelInitializer:    nn.InitGlorotUniform,
		RecurrentInitializer: nn.InitOrthogonal,
		BiasInitializer:      nn.InitZeros,
		UnitForgetBias:       true,
	}
}

// LSTMCell is the long-short-term cell with state [h, c]:
//
//	i = recurrent_activation(x·W_i + h·U_i + b_i)
//	f = recurrent_activation(x·W_f + h·U_f + b_f)
//	g = x·W_g + h·U_g + b_g
//	o = recurrent_activation(x·W_o + h·U_o + b_o)
//	c' = f ⊙ c + i ⊙ activation(g)
//	h' = o ⊙ activation(c')
//
// Fused weights hold the groups in the order i, f, g, o.
type LSTMCell[B tensor.Backend] struct {
	cellBase[B]
	cfg                 LSTMConfig
	activation          nn.Activation[B]
	recurrentActivation nn.Activation[B]
}

// NewLSTMCell creates an unbuilt long-short-term cell.
func NewLSTMCell[B tensor.Backend](cfg LSTMConfig, backend B) (*LSTMCell[B], error) {
	base, err := newCellBase("lstm_cell", lstmGates, cfg.Units, cfg.UseBias,
		cfg.KernelInitializer, cfg.RecurrentInitializer, cfg.BiasInitializer,
		cfg.Dropout, cfg.RecurrentDropout, cfg.Seed, backend)
	if err != nil {
		return nil, err
	}
	act, err := resolveActivation("rnn.NewLSTMCell", "Activation", cfg.Activation, backend)
	if err != nil {
		return nil, err
	}
	recAct, err := resolveActivation("rnn.NewLSTMCell", "RecurrentActivation", cfg.RecurrentActivation, backend)
	if err != nil {
		return nil, err
	}
	return &LSTMCell[B]{cellBase: base, cfg: cfg, activation: act, recurrentActivation: recAct}, nil
}

// Config returns the cell configuration.
func (c *LSTMCell[B]) Config() LSTMConfig {
	return c.cfg
}

// StateSize returns [units, units] for (h, c).
func (c *LSTMCell[B]) StateSize() []int {
	return []int{c.units, c.units}
}

// OutputSize returns units.
func (c *LSTMCell[B]) OutputSize() int {
	return c.units
}

// Build allocates kernel [inputDim, 4u], recurrent kernel [u, 4u] and bias [4u].
func (c *LSTMCell[B]) Build(inputDim int) error {
	var forgetBias func(*tensor.Tensor[float32, B])
	if c.cfg.UnitForgetBias {
		forgetBias = func(b *tensor.Tensor[float32, B]) {
			data := b.Data()
			for i := lstmForget * c.units; i < (lstmForget+1)*c.units; i++ {
				data[i] = 1
			}
		}
	}
	return c.build(inputDim, tensor.Shape{lstmGates * c.units}, forgetBias)
}

// Step runs one timestep. states is [h, c].
func (c *LSTMCell[B]) Step(
	input *tensor.Tensor[float32, B], states State[B], training bool,
) (*tensor.Tensor[float32, B], State[B], error) {
	if err := c.checkStep(input, states, c.StateSize()); err != nil {
		return nil, nil, err
	}

	scope := tensor.NewScope()
	defer scope.Close()

	hPrev, cPrev := states[0], states[1]
	x := project(scope, input, c.inputMasks(input, training), c.gateKernel)
	addBias(scope, x, c.gateBias)
	hU := project(scope, hPrev, c.recurrentMasks(hPrev, training), c.gateRecurrent)

	pre := make([]*tensor.Tensor[float32, B], lstmGates)
	for k := range pre {
		pre[k] = track(scope, x[k].Add(hU[k]))
	}

	i := track(scope, c.recurrentActivation(pre[lstmInput]))
	f := track(scope, c.recurrentActivation(pre[lstmForget]))
	g := track(scope, c.activation(pre[lstmCandidate]))
	o := track(scope, c.recurrentActivation(pre[lstmOutput]))

	carry := track(scope, f.Mul(cPrev))
	cNew := carry.Add(track(scope, i.Mul(g)))
	scope.Track(cNew.Raw())

	h := o.Mul(track(scope, c.activation(cNew)))

	scope.Keep(h.Raw(), cNew.Raw())
	return h, State[B]{h, cNew}, nil
}

// Clone returns an unbuilt cell with the same configuration.
func (c *LSTMCell[B]) Clone() Cell[B] {
	cfg := c.cfg
	cfg.Seed = nextSeed(cfg.Seed)
	clone, err := NewLSTMCell(cfg, c.backend)
	if err != nil {
		panic(err)
	}
	return clone
}

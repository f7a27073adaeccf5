package rnn

import (
	"github.com/born-ml/seqnet/internal/nn"
	"github.com/born-ml/seqnet/internal/tensor"
)

// GRU gate groups, in weight layout order.
const (
	gruUpdate = iota
	gruReset
	gruCandidate
	gruGates
)

// GRUConfig configures a GRUCell.
type GRUConfig struct {
	Units                int
	Activation           string // candidate activation
	RecurrentActivation  string // update/reset gate activation
	UseBias              bool
	KernelInitializer    string
	RecurrentInitializer string
	BiasInitializer      string
	Dropout              float64
	RecurrentDropout     float64

	// ResetAfter applies the reset gate after the recurrent projection,
	// r ⊙ (h·U_h + b_rh), and keeps separate input and recurrent biases.
	// When false the reset gate scales the state first: (r ⊙ h)·U_h.
	ResetAfter bool

	Seed int64
}

// DefaultGRUConfig returns the usual gated-cell configuration.
func DefaultGRUConfig(units int) GRUConfig {
	return GRUConfig{
		Units:                units,
		Activation:           "tanh",
		RecurrentActivation:  "sigmoid",
		UseBias:              true,
		KernelInitializer:    nn.InitGlorotUniform,
		RecurrentInitializer: nn.InitOrthogonal,
		BiasInitializer:      nn.InitZeros,
		ResetAfter:           true,
	}
}

// GRUCell is the gated recurrent cell:
//
//	z  = recurrent_activation(x·W_z + h·U_z + b_z)
//	r  = recurrent_activation(x·W_r + h·U_r + b_r)
//	h̃  = activation(x·W_h + r ⊙ (h·U_h + b_rh))   (ResetAfter)
//	h̃  = activation(x·W_h + (r ⊙ h)·U_h + b_h)    (otherwise)
//	h' = z ⊙ h + (1 − z) ⊙ h̃
//
// Weights are fused: kernel [in, 3u] and recurrent kernel [u, 3u] hold the
// update, reset and candidate groups in that order.
type GRUCell[B tensor.Backend] struct {
	cellBase[B]
	cfg                 GRUConfig
	activation          nn.Activation[B]
	recurrentActivation nn.Activation[B]
}

// NewGRUCell creates an unbuilt gated cell.
func NewGRUCell[B tensor.Backend](cfg GRUConfig, backend B) (*GRUCell[B], error) {
	base, err := newCellBase("gru_cell", gruGates, cfg.Units, cfg.UseBias,
		cfg.KernelInitializer, cfg.RecurrentInitializer, cfg.BiasInitializer,
		cfg.Dropout, cfg.RecurrentDropout, cfg.Seed, backend)
	if err != nil {
		return nil, err
	}
	act, err := resolveActivation("rnn.NewGRUCell", "Activation", cfg.Activation, backend)
	if err != nil {
		return nil, err
	}
	recAct, err := resolveActivation("rnn.NewGRUCell", "RecurrentActivation", cfg.RecurrentActivation, backend)
	if err != nil {
		return nil, err
	}
	return &GRUCell[B]{cellBase: base, cfg: cfg, activation: act, recurrentActivation: recAct}, nil
}

// Config returns the cell configuration.
func (c *GRUCell[B]) Config() GRUConfig {
	return c.cfg
}

// StateSize returns [units].
func (c *GRUCell[B]) StateSize() []int {
	return []int{c.units}
}

// OutputSize returns units.
func (c *GRUCell[B]) OutputSize() int {
	return c.units
}

// Build allocates the fused weights. With ResetAfter the bias is
// [2, 3*units]: row 0 is the input bias, row 1 the recurrent bias.
func (c *GRUCell[B]) Build(inputDim int) error {
	biasShape := tensor.Shape{gruGates * c.units}
	if c.cfg.ResetAfter {
		biasShape = tensor.Shape{2, gruGates * c.units}
	}
	return c.build(inputDim, biasShape, nil)
}

// Step runs one timestep.
func (c *GRUCell[B]) Step(
	input *tensor.Tensor[float32, B], states State[B], training bool,
) (*tensor.Tensor[float32, B], State[B], error) {
	if err := c.checkStep(input, states, c.StateSize()); err != nil {
		return nil, nil, err
	}

	scope := tensor.NewScope()
	defer scope.Close()

	hPrev := states[0]
	x := project(scope, input, c.inputMasks(input, training), c.gateKernel)
	addBias(scope, x, c.gateBias)

	recMasks := c.recurrentMasks(hPrev, training)
	hMasked := func(k int) *tensor.Tensor[float32, B] {
		if recMasks == nil {
			return hPrev
		}
		return track(scope, hPrev.Mul(recMasks[k]))
	}

	gate := func(k int) *tensor.Tensor[float32, B] {
		inner := track(scope, hMasked(k).MatMul(c.gateRecurrent[k]))
		if c.gateRecurrentBias != nil {
			inner = track(scope, inner.Add(c.gateRecurrentBias[k]))
		}
		return track(scope, c.recurrentActivation(track(scope, x[k].Add(inner))))
	}
	z := gate(gruUpdate)
	r := gate(gruReset)

	var recurrentCandidate *tensor.Tensor[float32, B]
	if c.cfg.ResetAfter {
		inner := track(scope, hMasked(gruCandidate).MatMul(c.gateRecurrent[gruCandidate]))
		if c.gateRecurrentBias != nil {
			inner = track(scope, inner.Add(c.gateRecurrentBias[gruCandidate]))
		}
		recurrentCandidate = track(scope, r.Mul(inner))
	} else {
		rh := track(scope, r.Mul(hMasked(gruCandidate)))
		recurrentCandidate = track(scope, rh.MatMul(c.gateRecurrent[gruCandidate]))
	}
	hh := track(scope, c.activation(track(scope, x[gruCandidate].Add(recurrentCandidate))))

	// h = z ⊙ h_prev + (1 − z) ⊙ h̃
	keep := track(scope, z.Mul(hPrev))
	update := track(scope, track(scope, z.RSubScalar(1)).Mul(hh))
	h := keep.Add(update)

	scope.Keep(h.Raw())
	return h, State[B]{h}, nil
}

// Clone returns an unbuilt cell with the same configuration.
func (c *GRUCell[B]) Clone() Cell[B] {
	cfg := c.cfg
	cfg.Seed = nextSeed(cfg.Seed)
	clone, err := NewGRUCell(cfg, c.backend)
	if err != nil {
		panic(err)
	}
	return clone
}

package rnn

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/born-ml/seqnet/internal/nn"
	"github.com/born-ml/seqnet/internal/tensor"
)

// MergeMode selects how forward and backward outputs are combined.
type MergeMode string

// Merge modes. The zero value means MergeConcat.
const (
	MergeConcat MergeMode = "concat" // [F, B] along the feature axis
	MergeSum    MergeMode = "sum"    // F + B
	MergeAve    MergeMode = "ave"    // 0.5 * (F + B)
	MergeMul    MergeMode = "mul"    // F * B
	MergeNone   MergeMode = "none"   // F and B returned separately
)

// ParseMergeMode validates a merge mode name. The empty string is MergeConcat.
func ParseMergeMode(s string) (MergeMode, error) {
	switch m := MergeMode(s); m {
	case "":
		return MergeConcat, nil
	case MergeConcat, MergeSum, MergeAve, MergeMul, MergeNone:
		return m, nil
	default:
		return "", &ConfigError{Op: "rnn.ParseMergeMode", Field: "MergeMode",
			Msg: fmt.Sprintf("%q is not one of concat, sum, ave, mul, none", s)}
	}
}

// BidirectionalConfig configures a Bidirectional layer.
type BidirectionalConfig struct {
	MergeMode MergeMode
	Logger    *logrus.Logger // nil uses the logrus standard logger
}

// BidirectionalResult is the output of a Bidirectional call.
//
// With MergeNone, ReturnState and without ReturnSequences, Outputs[0] and
// Outputs[1] are the same tensors as the forward and backward States[0].
// Release handles this; callers releasing by hand must release each once.
type BidirectionalResult[B tensor.Backend] struct {
	// Outputs holds the merged output, or forward then backward outputs
	// with MergeNone.
	Outputs []*tensor.Tensor[float32, B]

	// States holds forward states then backward states when ReturnState.
	States State[B]

	// Mask is the input mask when returning sequences.
	Mask *tensor.Tensor[float32, B]
}

// Release releases Outputs and States.
func (r *BidirectionalResult[B]) Release() {
	for _, o := range r.Outputs {
		o.Release()
	}
	r.States.Release()
}

// Bidirectional runs a forward and a backward copy of an RNN layer over the
// same input and merges their outputs. The two copies have independent
// weights.
//
// Example:
//
//	cell, _ := rnn.NewGRUCell(rnn.DefaultGRUConfig(16), backend)
//	layer := rnn.NewRNN[*cpu.CPUBackend](cell, rnn.RNNConfig{ReturnSequences: true})
//	bi, _ := rnn.NewBidirectional(layer, rnn.BidirectionalConfig{})
//	res, _ := bi.Call(x, rnn.CallOptions[*cpu.CPUBackend]{})
//	// res.Outputs[0]: [batch, time, 32]
type Bidirectional[B tensor.Backend] struct {
	forward  *RNN[B]
	backward *RNN[B]
	mode     MergeMode
	cfg      RNNConfig
	log      *logrus.Entry
}

// NewBidirectional builds the forward and backward copies of layer. layer
// itself is used only as a template.
func NewBidirectional[B tensor.Backend](layer *RNN[B], cfg BidirectionalConfig) (*Bidirectional[B], error) {
	mode, err := ParseMergeMode(string(cfg.MergeMode))
	if err != nil {
		return nil, err
	}
	lcfg := layer.Config()
	if lcfg.Unroll {
		return nil, notImplemented("rnn.NewBidirectional", "unrolling")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = lcfg.Logger
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	// The backward copy is cloned from the forward one so a seeded layer
	// gives each direction its own seed.
	forward := layer.withGoBackwards(lcfg.GoBackwards, "forward_"+lcfg.Name)
	b := &Bidirectional[B]{
		forward:  forward,
		backward: forward.withGoBackwards(!lcfg.GoBackwards, "backward_"+lcfg.Name),
		mode:     mode,
		cfg:      lcfg,
		log:      logger.WithFields(logrus.Fields{"layer": "bidirectional_" + lcfg.Name, "merge_mode": string(mode)}),
	}
	return b, nil
}

// Forward returns the forward layer.
func (b *Bidirectional[B]) Forward() *RNN[B] {
	return b.forward
}

// Backward returns the backward layer.
func (b *Bidirectional[B]) Backward() *RNN[B] {
	return b.backward
}

// MergeMode returns the merge mode.
func (b *Bidirectional[B]) MergeMode() MergeMode {
	return b.mode
}

// Build builds both directions.
func (b *Bidirectional[B]) Build(inputShape tensor.Shape) error {
	if err := b.forward.Build(inputShape); err != nil {
		return fmt.Errorf("rnn.Bidirectional.Build: forward: %w", err)
	}
	if err := b.backward.Build(inputShape); err != nil {
		return fmt.Errorf("rnn.Bidirectional.Build: backward: %w", err)
	}
	b.log.WithField("input_shape", inputShape).Debug("built bidirectional layer")
	return nil
}

// splitStates splits an even-length state list into forward and backward halves.
func splitStates[B tensor.Backend](op string, states State[B]) (State[B], State[B], error) {
	if states == nil {
		return nil, nil, nil
	}
	if len(states)%2 != 0 {
		return nil, nil, &StateError{Op: op + ": initial state must split evenly between directions",
			Index: -1, ExpectedCount: len(states) + 1, ReceivedCount: len(states)}
	}
	half := len(states) / 2
	return states[:half:half], states[half:], nil
}

// Call runs both directions over inputs and merges their outputs.
func (b *Bidirectional[B]) Call(inputs *tensor.Tensor[float32, B], opts CallOptions[B]) (*BidirectionalResult[B], error) {
	const op = "rnn.Bidirectional.Call"
	if len(opts.Constants) > 0 {
		return nil, notImplemented(op, "constants")
	}
	fwdInit, bwdInit, err := splitStates(op, opts.InitialState)
	if err != nil {
		return nil, err
	}

	fwd, err := b.forward.run(inputs, CallOptions[B]{InitialState: fwdInit, Mask: opts.Mask, Training: opts.Training})
	if err != nil {
		return nil, fmt.Errorf("%s: forward: %w", op, err)
	}
	fwdRes := b.forward.finish(fwd, opts.Mask)

	bwd, err := b.backward.run(inputs, CallOptions[B]{InitialState: bwdInit, Mask: opts.Mask, Training: opts.Training})
	if err != nil {
		fwdRes.Release()
		return nil, fmt.Errorf("%s: backward: %w", op, err)
	}
	bwdRes := b.backward.finish(bwd, opts.Mask)

	fOut, bOut := fwdRes.Outputs, bwdRes.Outputs
	if b.cfg.ReturnSequences {
		// The backward layer iterated in reverse; put its steps back in
		// input time order before merging.
		reversed := bOut.Reverse(1)
		bOut.Release()
		bOut = reversed
	}

	outputs, err := MergeOutputs(b.mode, fOut, bOut)
	if err != nil {
		fOut.Release()
		bOut.Release()
		fwdRes.States.Release()
		bwdRes.States.Release()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if b.mode != MergeNone {
		// Without sequences the last output doubles as state 0.
		detach(fOut, fwdRes.States)
		detach(bOut, bwdRes.States)
		fOut.Release()
		bOut.Release()
	}

	res := &BidirectionalResult[B]{Outputs: outputs}
	if b.cfg.ReturnSequences {
		res.Mask = opts.Mask
	}
	if b.cfg.ReturnState {
		res.States = append(append(State[B]{}, fwdRes.States...), bwdRes.States...)
	}
	return res, nil
}

// detach replaces states sharing t's buffer with copies, so t can be released.
func detach[B tensor.Backend](t *tensor.Tensor[float32, B], states State[B]) {
	for i, s := range states {
		if s.Raw() == t.Raw() {
			states[i] = s.Clone()
		}
	}
}

// MergeOutputs combines forward output f and time-aligned backward output
// bwd under mode. Both must have the same shape, except that MergeConcat
// only needs all but the last axis to match. With MergeNone it returns
// [f, bwd] unchanged; otherwise the result is a new tensor.
func MergeOutputs[B tensor.Backend](mode MergeMode, f, bwd *tensor.Tensor[float32, B]) ([]*tensor.Tensor[float32, B], error) {
	const op = "rnn.MergeOutputs"
	fs, bs := f.Shape(), bwd.Shape()

	switch mode {
	case MergeConcat, "":
		if len(fs) != len(bs) || !fs[:len(fs)-1].Equal(bs[:len(bs)-1]) {
			return nil, shapeErrorf(op, "cannot concat forward %v and backward %v on the feature axis", fs, bs)
		}
		return []*tensor.Tensor[float32, B]{tensor.Cat([]*tensor.Tensor[float32, B]{f, bwd}, -1)}, nil
	case MergeNone:
		return []*tensor.Tensor[float32, B]{f, bwd}, nil
	case MergeSum, MergeAve, MergeMul:
	default:
		return nil, &ConfigError{Op: op, Field: "MergeMode", Msg: fmt.Sprintf("unknown merge mode %q", mode)}
	}

	if !fs.Equal(bs) {
		return nil, shapeErrorf(op, "merge mode %s needs equal shapes, got forward %v and backward %v", mode, fs, bs)
	}

	var out *tensor.Tensor[float32, B]
	switch mode {
	case MergeSum:
		out = f.Add(bwd)
	case MergeAve:
		sum := f.Add(bwd)
		out = sum.MulScalar(0.5)
		sum.Release()
	case MergeMul:
		out = f.Mul(bwd)
	}
	return []*tensor.Tensor[float32, B]{out}, nil
}

// Weights returns forward weights then backward weights.
func (b *Bidirectional[B]) Weights() []*nn.Parameter[B] {
	return append(b.forward.Weights(), b.backward.Weights()...)
}

// SetWeights takes forward weights then backward weights; the count must be even.
func (b *Bidirectional[B]) SetWeights(ws []*tensor.Tensor[float32, B]) error {
	const op = "rnn.Bidirectional.SetWeights"
	if len(ws)%2 != 0 {
		return &ConfigError{Op: op, Field: "weights",
			Msg: fmt.Sprintf("%d weight tensor(s) cannot be split evenly between forward and backward", len(ws))}
	}
	half := len(ws) / 2
	if err := b.forward.SetWeights(ws[:half]); err != nil {
		return fmt.Errorf("%s: forward: %w", op, err)
	}
	if err := b.backward.SetWeights(ws[half:]); err != nil {
		return fmt.Errorf("%s: backward: %w", op, err)
	}
	return nil
}

// ResetStates resets both directions. newStates, when given, holds forward
// states then backward states.
func (b *Bidirectional[B]) ResetStates(newStates State[B], training bool) error {
	const op = "rnn.Bidirectional.ResetStates"
	if !b.cfg.Stateful {
		return notStateful(op)
	}
	fwd, bwd, err := splitStates(op, newStates)
	if err != nil {
		return err
	}
	if err := b.forward.ResetStates(fwd, training); err != nil {
		return err
	}
	return b.backward.ResetStates(bwd, training)
}

// States returns copies of forward then backward stored states.
func (b *Bidirectional[B]) States() (State[B], error) {
	fwd, err := b.forward.States()
	if err != nil {
		return nil, err
	}
	bwd, err := b.backward.States()
	if err != nil {
		fwd.Release()
		return nil, err
	}
	return append(fwd, bwd...), nil
}

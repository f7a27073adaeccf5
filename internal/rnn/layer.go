package rnn

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/born-ml/seqnet/internal/nn"
	"github.com/born-ml/seqnet/internal/tensor"
)

// RNNConfig configures an RNN layer.
type RNNConfig struct {
	Name            string // used in log fields; defaults to "rnn"
	ReturnSequences bool   // return [batch, time, units] instead of the last output
	ReturnState     bool   // also return the final states
	GoBackwards     bool   // iterate the sequence in reverse
	Stateful        bool   // carry final states into the next call

	// BatchSize fixes the batch size of a stateful layer. Zero takes it
	// from the first input.
	BatchSize int

	// Unroll is recognized but not supported; calls fail with ErrNotImplemented.
	Unroll bool

	Logger *logrus.Logger // nil uses the logrus standard logger
}

// CallOptions are the per-invocation inputs of a layer call.
type CallOptions[B tensor.Backend] struct {
	InitialState State[B]                     // overrides zeros or the stored state
	Mask         *tensor.Tensor[float32, B]   // [batch, time]
	Training     bool                         // enables dropout
	Constants    []*tensor.Tensor[float32, B] // not supported
}

// Result is the output of an RNN layer call. All tensors are owned by the
// caller, except Mask which is the caller's own mask passed through.
//
// With ReturnState and without ReturnSequences, Outputs and States[0] are
// the same tensor: release it once, through Release or by hand.
type Result[B tensor.Backend] struct {
	Outputs *tensor.Tensor[float32, B] // [batch, units] or [batch, time, units]
	States  State[B]                   // nil unless ReturnState
	Mask    *tensor.Tensor[float32, B] // the input mask when ReturnSequences, else nil
}

// Release releases Outputs and States.
func (r *Result[B]) Release() {
	if r.Outputs != nil {
		r.Outputs.Release()
	}
	r.States.Release()
}

// RNN applies a cell over the time axis of [batch, time, features] inputs.
//
// Example:
//
//	cell, _ := rnn.NewLSTMCell(rnn.DefaultLSTMConfig(32), backend)
//	layer := rnn.NewRNN[*cpu.CPUBackend](cell, rnn.RNNConfig{ReturnSequences: true})
//	res, err := layer.Call(x, rnn.CallOptions[*cpu.CPUBackend]{})
//	// res.Outputs: [batch, time, 32]
type RNN[B tensor.Backend] struct {
	mu     sync.Mutex // serializes Build and calls; the cell caches per-call masks
	cell   Cell[B]
	cfg    RNNConfig
	log    *logrus.Entry
	store  *StateStore[B] // nil unless stateful
	built  bool
	inDims tensor.Shape // feature dims of the input, without batch and time
}

// NewRNN wraps cell into a layer.
func NewRNN[B tensor.Backend](cell Cell[B], cfg RNNConfig) *RNN[B] {
	if cfg.Name == "" {
		cfg.Name = "rnn"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	l := &RNN[B]{
		cell: cell,
		cfg:  cfg,
		log:  logger.WithFields(logrus.Fields{"layer": cfg.Name}),
	}
	if cfg.Stateful {
		l.store = NewStateStore[B]()
	}
	return l
}

// Cell returns the wrapped cell.
func (l *RNN[B]) Cell() Cell[B] {
	return l.cell
}

// Config returns the layer configuration.
func (l *RNN[B]) Config() RNNConfig {
	return l.cfg
}

// Built reports whether Build has run.
func (l *RNN[B]) Built() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.built
}

// Build builds the cell for inputs of inputShape ([batch, time, features]).
// Stateful layers also allocate zero states for the batch.
func (l *RNN[B]) Build(inputShape tensor.Shape) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.build(inputShape)
}

func (l *RNN[B]) build(inputShape tensor.Shape) error {
	op := "rnn.RNN.Build"
	if len(inputShape) < 3 {
		return &InputRankError{Op: op, Shape: inputShape.Clone(), MinRank: 3}
	}
	if len(inputShape) != 3 {
		return shapeErrorf(op, "cells consume [batch, time, features] inputs, got shape %v", inputShape)
	}
	if l.built {
		if !inputShape[2:].Equal(l.inDims) {
			return shapeErrorf(op, "layer was built for features %v, got %v", l.inDims, inputShape[2:])
		}
		return nil
	}

	batch := inputShape[0]
	if l.cfg.Stateful && l.cfg.BatchSize > 0 && l.cfg.BatchSize != batch {
		return &ConfigError{Op: op, Field: "BatchSize",
			Msg: fmt.Sprintf("stateful layer fixed to batch size %d, got input batch %d", l.cfg.BatchSize, batch)}
	}

	if err := l.cell.Build(inputShape[2]); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	l.inDims = inputShape[2:].Clone()
	l.built = true

	if l.cfg.Stateful {
		l.store.Reset(l.zeroStates(batch), true)
	}

	l.log.WithFields(logrus.Fields{
		"input_shape": inputShape,
		"state_size":  l.cell.StateSize(),
		"stateful":    l.cfg.Stateful,
	}).Debug("built recurrent layer")
	return nil
}

func (l *RNN[B]) zeroStates(batch int) State[B] {
	sizes := l.cell.StateSize()
	states := make(State[B], len(sizes))
	for i, n := range sizes {
		states[i] = tensor.Zeros[float32](tensor.Shape{batch, n}, l.cell.Backend())
	}
	return states
}

// checkInitial validates an explicit initial state for batch.
func (l *RNN[B]) checkInitial(op string, states State[B], batch int) error {
	sizes := l.cell.StateSize()
	if len(states) != len(sizes) {
		return stateCountError(op, len(sizes), len(states))
	}
	return checkStates(op, states, batch, sizes)
}

// Call runs the layer.
func (l *RNN[B]) Call(inputs *tensor.Tensor[float32, B], opts CallOptions[B]) (*Result[B], error) {
	res, err := l.run(inputs, opts)
	if err != nil {
		return nil, err
	}
	return l.finish(res, opts.Mask), nil
}

// finish shapes a driver result into a layer Result, releasing the parts
// the configuration does not return.
func (l *RNN[B]) finish(res *RunResult[B], mask *tensor.Tensor[float32, B]) *Result[B] {
	out := &Result[B]{Outputs: res.LastOutput}
	if l.cfg.ReturnSequences {
		out.Outputs = res.Outputs
		out.Mask = mask
	}
	if l.cfg.ReturnState {
		out.States = res.States
	}

	returned := map[*tensor.RawTensor]bool{out.Outputs.Raw(): true}
	for _, s := range out.States {
		returned[s.Raw()] = true
	}
	for _, t := range append(State[B]{res.LastOutput, res.Outputs}, res.States...) {
		if t != nil && !returned[t.Raw()] {
			t.Release()
		}
	}
	return out
}

// run resolves the initial state, runs the driver and persists the final
// state of stateful layers.
func (l *RNN[B]) run(inputs *tensor.Tensor[float32, B], opts CallOptions[B]) (*RunResult[B], error) {
	op := "rnn.RNN.Call"
	if len(opts.Constants) > 0 {
		return nil, notImplemented(op, "constants")
	}
	if l.cfg.Unroll {
		return nil, notImplemented(op, "unrolling")
	}
	shape := inputs.Shape()
	if len(shape) < 3 {
		return nil, &InputRankError{Op: op, Shape: shape.Clone(), MinRank: 3}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.build(shape); err != nil {
		return nil, err
	}
	batch := shape[0]
	if l.cfg.Stateful && l.cfg.BatchSize > 0 && batch != l.cfg.BatchSize {
		return nil, &ConfigError{Op: op, Field: "BatchSize",
			Msg: fmt.Sprintf("stateful layer fixed to batch size %d, got input batch %d", l.cfg.BatchSize, batch)}
	}
	if opts.InitialState != nil {
		if err := l.checkInitial(op, opts.InitialState, batch); err != nil {
			return nil, err
		}
	}

	runOpts := RunOptions[B]{
		GoBackwards:        l.cfg.GoBackwards,
		Mask:               opts.Mask,
		NeedPerStepOutputs: l.cfg.ReturnSequences,
		Training:           opts.Training,
	}

	if !l.cfg.Stateful {
		initial := opts.InitialState
		if initial == nil {
			initial = l.zeroStates(batch)
			defer initial.Release()
		}
		return Run(l.cell, inputs, initial, runOpts)
	}

	var res *RunResult[B]
	err := l.store.Update(func(prev State[B]) (State[B], error) {
		initial := opts.InitialState
		if initial == nil {
			initial = prev
			// Only reachable without a fixed BatchSize.
			if len(prev) == 0 || prev[0].Shape()[0] != batch {
				l.log.WithFields(logrus.Fields{
					"previous_batch": batchOf(prev),
					"batch":          batch,
				}).Warn("stateful layer input batch changed, resetting states to zeros")
				initial = l.zeroStates(batch)
				defer initial.Release()
			}
		}

		r, err := Run(l.cell, inputs, initial, runOpts)
		if err != nil {
			return nil, err
		}
		res = r
		return r.States.Clone(), nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func batchOf[B tensor.Backend](s State[B]) int {
	if len(s) == 0 {
		return 0
	}
	return s[0].Shape()[0]
}

// ResetStates replaces the stored states of a stateful layer. nil resets to
// zeros; otherwise the count and [batch, size] shapes must match the cell.
// In training the previous states are not released, since values produced
// from them may still be in use by the caller.
func (l *RNN[B]) ResetStates(newStates State[B], training bool) error {
	op := "rnn.RNN.ResetStates"
	if !l.cfg.Stateful {
		return notStateful(op)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.built {
		return &ConfigError{Op: op, Field: "state", Msg: "layer must be built before its states can be reset"}
	}

	batch := l.store.BatchSize()
	if batch == 0 {
		batch = l.cfg.BatchSize
	}

	var states State[B]
	if newStates == nil {
		states = l.zeroStates(batch)
	} else {
		if err := l.checkInitial(op, newStates, batch); err != nil {
			return err
		}
		states = newStates.Clone()
	}
	l.store.Reset(states, !training)

	l.log.WithFields(logrus.Fields{
		"batch":    batch,
		"explicit": newStates != nil,
		"training": training,
	}).Debug("reset recurrent states")
	return nil
}

// States returns copies of the stored states of a stateful layer.
func (l *RNN[B]) States() (State[B], error) {
	if !l.cfg.Stateful {
		return nil, notStateful("rnn.RNN.States")
	}
	return l.store.Snapshot(), nil
}

// Weights returns the cell weights.
func (l *RNN[B]) Weights() []*nn.Parameter[B] {
	return l.cell.Weights()
}

// SetWeights copies ws into the cell weights.
func (l *RNN[B]) SetWeights(ws []*tensor.Tensor[float32, B]) error {
	return l.cell.SetWeights(ws)
}

// Clone returns an unbuilt layer with the same configuration and a cloned cell.
func (l *RNN[B]) Clone() *RNN[B] {
	return NewRNN(l.cell.Clone(), l.cfg)
}

// withGoBackwards returns an unbuilt clone iterating in the given direction.
func (l *RNN[B]) withGoBackwards(goBackwards bool, name string) *RNN[B] {
	cfg := l.cfg
	cfg.GoBackwards = goBackwards
	cfg.Name = name
	return NewRNN(l.cell.Clone(), cfg)
}

// ComputeMask derives a [batch, time] mask from inputs: a timestep is valid
// (1) when any of its features differs from maskValue and padded (0) when
// all of them equal it.
func ComputeMask[B tensor.Backend](inputs *tensor.Tensor[float32, B], maskValue float32) (*tensor.Tensor[float32, B], error) {
	if inputs.Rank() < 3 {
		return nil, &InputRankError{Op: "rnn.ComputeMask", Shape: inputs.Shape().Clone(), MinRank: 3}
	}

	scope := tensor.NewScope()
	defer scope.Close()

	value := track(scope, tensor.Full[float32](tensor.Shape{1}, maskValue, inputs.Backend()))
	m := track(scope, inputs.NotEqual(value))
	for m.Rank() > 2 {
		m = track(scope, m.MaxDim(-1, false))
	}
	scope.Keep(m.Raw())
	return m, nil
}

package rnn

import (
	"fmt"

	"github.com/born-ml/seqnet/internal/tensor"
)

// StepFunc runs one timestep: input is [batch, features...] and states the
// previous state. It returns the step output and the new state.
type StepFunc[B tensor.Backend] func(input *tensor.Tensor[float32, B], states State[B]) (*tensor.Tensor[float32, B], State[B], error)

// RunOptions controls one driver invocation.
type RunOptions[B tensor.Backend] struct {
	// GoBackwards iterates the sequence from the last timestep to the first.
	// Per-step outputs stay in iterated order.
	GoBackwards bool

	// Mask is an optional [batch, time] tensor; nonzero marks a valid step.
	// On a masked step a batch row keeps its previous output and state.
	Mask *tensor.Tensor[float32, B]

	// NeedPerStepOutputs collects every step output into RunResult.Outputs.
	NeedPerStepOutputs bool

	// Training is forwarded to the cell (dropout).
	Training bool

	// Unroll and Constants are recognized but not supported.
	Unroll    bool
	Constants []*tensor.Tensor[float32, B]
}

// RunResult is the outcome of a driver invocation. Every tensor in it is
// owned by the caller. LastOutput may be the same tensor as States[0];
// Release releases shared tensors once.
type RunResult[B tensor.Backend] struct {
	LastOutput *tensor.Tensor[float32, B] // [batch, units]
	Outputs    *tensor.Tensor[float32, B] // [batch, time, units]; nil unless NeedPerStepOutputs
	States     State[B]                   // final state, same shapes as the initial state
}

// Release releases every tensor of the result.
func (r *RunResult[B]) Release() {
	seen := map[*tensor.RawTensor]bool{}
	release := func(t *tensor.Tensor[float32, B]) {
		if t == nil || seen[t.Raw()] {
			return
		}
		seen[t.Raw()] = true
		t.Release()
	}
	release(r.LastOutput)
	release(r.Outputs)
	for _, s := range r.States {
		release(s)
	}
}

// Run iterates cell over the time axis of inputs ([batch, time, features...])
// starting from initial.
//
// A cell implementing DropoutResetter has its masks reset first, so every
// invocation draws fresh dropout masks that are shared by all of its steps.
func Run[B tensor.Backend](
	cell Cell[B], inputs *tensor.Tensor[float32, B], initial State[B], opts RunOptions[B],
) (*RunResult[B], error) {
	if r, ok := cell.(DropoutResetter); ok {
		r.ResetDropoutMasks()
	}
	step := func(x *tensor.Tensor[float32, B], states State[B]) (*tensor.Tensor[float32, B], State[B], error) {
		return cell.Step(x, states, opts.Training)
	}
	return RunFunc(step, inputs, initial, opts)
}

// RunFunc is Run for an arbitrary step function.
//
// The loop is sequential: step t+1 starts only after step t returned. All
// intermediates of the invocation, including discarded step outputs, are
// released before RunFunc returns, on success and on error. inputs, mask
// and initial are never modified or released.
func RunFunc[B tensor.Backend](
	step StepFunc[B], inputs *tensor.Tensor[float32, B], initial State[B], opts RunOptions[B],
) (*RunResult[B], error) {
	const op = "rnn.Run"

	shape := inputs.Shape()
	if len(shape) < 3 {
		return nil, &InputRankError{Op: op, Shape: shape.Clone(), MinRank: 3}
	}
	if opts.Unroll {
		return nil, notImplemented(op, "unrolling")
	}
	if len(opts.Constants) > 0 {
		return nil, notImplemented(op, "constants")
	}
	if len(initial) == 0 {
		return nil, stateCountError(op, 1, 0)
	}

	batch, steps := shape[0], shape[1]
	for i, s := range initial {
		if s.Rank() != 2 {
			return nil, shapeErrorf(op, "state %d must be [batch, dim], got shape %v", i, s.Shape())
		}
		if s.Shape()[0] != batch {
			return nil, stateShapeError(op, i, tensor.Shape{batch, s.Shape()[1]}, s.Shape())
		}
	}
	if opts.Mask != nil && !opts.Mask.Shape().Equal(tensor.Shape{batch, steps}) {
		return nil, shapeErrorf(op, "mask shape %v does not match [batch, time] = [%d, %d]", opts.Mask.Shape(), batch, steps)
	}

	scope := tensor.NewScope()
	defer scope.Close()

	callerOwned := map[*tensor.RawTensor]bool{inputs.Raw(): true}
	for _, s := range initial {
		callerOwned[s.Raw()] = true
	}
	if opts.Mask != nil {
		callerOwned[opts.Mask.Raw()] = true
	}
	for raw := range callerOwned {
		scope.Protect(raw)
	}

	// [batch, time, ...] -> [time, batch, ...]
	axes := make([]int, len(shape))
	for i := range axes {
		axes[i] = i
	}
	axes[0], axes[1] = 1, 0
	x := track(scope, inputs.Transpose(axes...))

	// The mask becomes [time, batch, 1] so each step's slice broadcasts over
	// the state features.
	var mask *tensor.Tensor[float32, B]
	if opts.Mask != nil {
		mask = track(scope, opts.Mask.Transpose(1, 0))
		mask = track(scope, mask.Unsqueeze(-1))
	}

	if opts.GoBackwards {
		x = track(scope, x.Reverse(0))
		if mask != nil {
			mask = track(scope, mask.Reverse(0))
		}
	}

	xs := trackAll(scope, x.Unstack(0))
	var masks []*tensor.Tensor[float32, B]
	if mask != nil {
		masks = trackAll(scope, mask.Unstack(0))
	}

	states := initial
	var last *tensor.Tensor[float32, B]
	var outputs []*tensor.Tensor[float32, B]

	for t := 0; t < steps; t++ {
		out, next, err := step(xs[t], states)
		if err != nil {
			return nil, fmt.Errorf("%s: timestep %d: %w", op, t, err)
		}
		scope.Track(out.Raw())
		scope.Track(next.Raws()...)

		if len(next) != len(states) {
			return nil, stateCountError(fmt.Sprintf("%s: timestep %d", op, t), len(states), len(next))
		}
		for i := range next {
			if !next[i].Shape().Equal(states[i].Shape()) {
				return nil, stateShapeError(fmt.Sprintf("%s: timestep %d", op, t), i, states[i].Shape(), next[i].Shape())
			}
		}

		if masks != nil {
			m := masks[t]
			prev := states[0]
			if !out.Shape().Equal(prev.Shape()) {
				return nil, shapeErrorf(op, "masking needs step output shape %v to match state 0 shape %v",
					out.Shape(), prev.Shape())
			}
			out = track(scope, tensor.Where(m, out, prev))
			held := make(State[B], len(next))
			for i := range next {
				held[i] = track(scope, tensor.Where(m, next[i], states[i]))
			}
			next = held
		}

		states = next
		last = out
		if opts.NeedPerStepOutputs {
			outputs = append(outputs, out)
		}
	}

	// A step may hand back a caller-owned tensor unchanged; copy those so
	// the result never aliases the caller's inputs.
	own := func(t *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
		if callerOwned[t.Raw()] {
			return t.Clone()
		}
		return t
	}

	result := &RunResult[B]{LastOutput: own(last)}
	result.States = make(State[B], len(states))
	for i, s := range states {
		if s.Raw() == last.Raw() {
			result.States[i] = result.LastOutput
			continue
		}
		result.States[i] = own(s)
	}
	if opts.NeedPerStepOutputs {
		result.Outputs = tensor.Stack(outputs, 1)
	}

	scope.Keep(result.LastOutput.Raw())
	scope.Keep(result.States.Raws()...)
	if result.Outputs != nil {
		scope.Keep(result.Outputs.Raw())
	}
	return result, nil
}

package rnn

import (
	"fmt"

	"github.com/born-ml/seqnet/internal/nn"
	"github.com/born-ml/seqnet/internal/tensor"
)

// StackedCells runs several cells as one: cell k>0 consumes the output of
// cell k-1, and every cell keeps its own state.
//
// The flat state lists the sub-cell states in reverse cell order, so
// states[0] is the last cell's primary state, the layer output. For cells
// [A, B] with A.StateSize() = [a] and B.StateSize() = [b1, b2] the flat
// state is [b1, b2, a].
type StackedCells[B tensor.Backend] struct {
	cells []Cell[B]
}

// NewStackedCells composes cells in forward order.
func NewStackedCells[B tensor.Backend](cells ...Cell[B]) (*StackedCells[B], error) {
	if len(cells) == 0 {
		return nil, &ConfigError{Op: "rnn.NewStackedCells", Field: "cells", Msg: "at least one cell required"}
	}
	return &StackedCells[B]{cells: append([]Cell[B](nil), cells...)}, nil
}

// Cells returns the sub-cells in forward order.
func (s *StackedCells[B]) Cells() []Cell[B] {
	return s.cells
}

// StateSize concatenates the sub-cell state sizes, last cell first.
func (s *StackedCells[B]) StateSize() []int {
	var sizes []int
	for i := len(s.cells) - 1; i >= 0; i-- {
		sizes = append(sizes, s.cells[i].StateSize()...)
	}
	return sizes
}

// OutputSize returns the last cell's output size.
func (s *StackedCells[B]) OutputSize() int {
	return s.cells[len(s.cells)-1].OutputSize()
}

// Build builds cell 0 on inputDim and cell k>0 on the primary state size
// of cell k-1.
func (s *StackedCells[B]) Build(inputDim int) error {
	dim := inputDim
	for k, cell := range s.cells {
		if err := cell.Build(dim); err != nil {
			return fmt.Errorf("rnn.StackedCells.Build: cell %d: %w", k, err)
		}
		dim = cell.StateSize()[0]
	}
	return nil
}

// Built reports whether every sub-cell is built.
func (s *StackedCells[B]) Built() bool {
	for _, cell := range s.cells {
		if !cell.Built() {
			return false
		}
	}
	return true
}

// Backend returns the first cell's backend.
func (s *StackedCells[B]) Backend() B {
	return s.cells[0].Backend()
}

// unflatten splits a flat state into per-cell groups in forward cell order.
func (s *StackedCells[B]) unflatten(flat State[B]) ([]State[B], error) {
	if want := len(s.StateSize()); len(flat) != want {
		return nil, stateCountError("rnn.StackedCells.Step", want, len(flat))
	}
	groups := make([]State[B], 0, len(s.cells))
	rest := flat
	for i := len(s.cells) - 1; i >= 0; i-- {
		n := len(s.cells[i].StateSize())
		groups = append(groups, rest[:n:n])
		rest = rest[n:]
	}
	for i, j := 0, len(groups)-1; i < j; i, j = i+1, j-1 {
		groups[i], groups[j] = groups[j], groups[i]
	}
	return groups, nil
}

// flatten is the inverse of unflatten.
func (s *StackedCells[B]) flatten(groups []State[B]) State[B] {
	var flat State[B]
	for i := len(groups) - 1; i >= 0; i-- {
		flat = append(flat, groups[i]...)
	}
	return flat
}

// Step runs every sub-cell for one timestep.
func (s *StackedCells[B]) Step(
	input *tensor.Tensor[float32, B], states State[B], training bool,
) (*tensor.Tensor[float32, B], State[B], error) {
	groups, err := s.unflatten(states)
	if err != nil {
		return nil, nil, err
	}

	// Intermediate outputs that are not part of any returned state are
	// released here; everything returned escapes.
	scope := tensor.NewScope()
	defer scope.Close()

	x := input
	newGroups := make([]State[B], len(s.cells))
	for k, cell := range s.cells {
		out, next, err := cell.Step(x, groups[k], training)
		if err != nil {
			return nil, nil, fmt.Errorf("rnn.StackedCells.Step: cell %d: %w", k, err)
		}
		scope.Track(out.Raw())
		scope.Track(next.Raws()...)
		newGroups[k] = next
		x = out
	}

	flat := s.flatten(newGroups)
	scope.Keep(x.Raw())
	scope.Keep(flat.Raws()...)
	return x, flat, nil
}

// Weights returns the sub-cell weights in forward cell order.
func (s *StackedCells[B]) Weights() []*nn.Parameter[B] {
	var ws []*nn.Parameter[B]
	for _, cell := range s.cells {
		ws = append(ws, cell.Weights()...)
	}
	return ws
}

// SetWeights distributes ws over the sub-cells in forward cell order.
func (s *StackedCells[B]) SetWeights(ws []*tensor.Tensor[float32, B]) error {
	const op = "rnn.StackedCells.SetWeights"
	if !s.Built() {
		return &ConfigError{Op: op, Field: "weights", Msg: "cells must be built before setting weights"}
	}
	if want := len(s.Weights()); len(ws) != want {
		return &ConfigError{Op: op, Field: "weights", Msg: fmt.Sprintf("expected %d weight tensor(s), got %d", want, len(ws))}
	}
	offset := 0
	for k, cell := range s.cells {
		n := len(cell.Weights())
		if err := cell.SetWeights(ws[offset : offset+n]); err != nil {
			return fmt.Errorf("%s: cell %d: %w", op, k, err)
		}
		offset += n
	}
	return nil
}

// ResetDropoutMasks resets every sub-cell that caches masks.
func (s *StackedCells[B]) ResetDropoutMasks() {
	for _, cell := range s.cells {
		if r, ok := cell.(DropoutResetter); ok {
			r.ResetDropoutMasks()
		}
	}
}

// Clone clones every sub-cell.
func (s *StackedCells[B]) Clone() Cell[B] {
	cells := make([]Cell[B], len(s.cells))
	for k, cell := range s.cells {
		cells[k] = cell.Clone()
	}
	return &StackedCells[B]{cells: cells}
}

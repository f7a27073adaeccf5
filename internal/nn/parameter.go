package nn

import (
	"fmt"

	"github.com/born-ml/seqnet/internal/tensor"
)

// Parameter is a named weight tensor owned by a layer.
//
// Example:
//
//	kernel := nn.NewParameter("lstm_cell.kernel", weightTensor)
//	w := kernel.Tensor()
type Parameter[B tensor.Backend] struct {
	name   string
	tensor *tensor.Tensor[float32, B]
}

// NewParameter creates a new parameter wrapping an initialized tensor.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return &Parameter[B]{
		name:   name,
		tensor: t,
	}
}

// Name returns the parameter name.
func (p *Parameter[B]) Name() string {
	return p.name
}

// Tensor returns the parameter tensor.
func (p *Parameter[B]) Tensor() *tensor.Tensor[float32, B] {
	return p.tensor
}

// Shape returns the shape of the parameter tensor.
func (p *Parameter[B]) Shape() tensor.Shape {
	return p.tensor.Shape()
}

// Set replaces the parameter value with a copy of t.
// The shape of t must match the current shape.
func (p *Parameter[B]) Set(t *tensor.Tensor[float32, B]) error {
	if !t.Shape().Equal(p.tensor.Shape()) {
		return fmt.Errorf("parameter %s: expected shape %v, got %v", p.name, p.tensor.Shape(), t.Shape())
	}
	old := p.tensor
	p.tensor = t.Clone()
	old.Release()
	return nil
}

// Release frees the parameter tensor.
func (p *Parameter[B]) Release() {
	p.tensor.Release()
}

package tensor

// Cat concatenates tensors along the specified dimension.
//
// All tensors must have the same shape except along the concatenation dimension.
// Supports negative dim indexing (-1 = last dimension).
//
// Example:
//
//	a := tensor.Randn[float32](Shape{2, 3}, backend)
//	b := tensor.Randn[float32](Shape{2, 5}, backend)
//	c := tensor.Cat([]*Tensor[float32, B]{a, b}, 1) // Shape: [2, 8]
func Cat[T DType, B Backend](tensors []*Tensor[T, B], dim int) *Tensor[T, B] {
	if len(tensors) == 0 {
		panic("cat: at least one tensor required")
	}
	backend := tensors[0].backend
	return New[T, B](backend.Cat(raws(tensors), dim), backend)
}

// Stack joins tensors of identical shape along a new dimension.
//
// Example:
//
//	steps := []*Tensor[float32, B]{h0, h1, h2} // each [batch, units]
//	seq := tensor.Stack(steps, 1)             // [batch, 3, units]
func Stack[T DType, B Backend](tensors []*Tensor[T, B], dim int) *Tensor[T, B] {
	if len(tensors) == 0 {
		panic("stack: at least one tensor required")
	}
	backend := tensors[0].backend
	return New[T, B](backend.Stack(raws(tensors), dim), backend)
}

// Where selects x where condition is nonzero and y elsewhere.
// All three operands broadcast against each other.
func Where[T DType, B Backend](condition, x, y *Tensor[T, B]) *Tensor[T, B] {
	return New[T, B](x.backend.Where(condition.raw, x.raw, y.raw), x.backend)
}

// Chunk splits the tensor into n equal parts along dim.
//
// Example:
//
//	x := tensor.Randn[float32](Shape{2, 12}, backend)
//	gates := x.Chunk(4, -1) // 4 tensors of shape [2, 3]
func (t *Tensor[T, B]) Chunk(n, dim int) []*Tensor[T, B] {
	return wrap[T](t.backend.Chunk(t.raw, n, dim), t.backend)
}

// Split splits the tensor into parts of the given sizes along dim.
// The sizes must add up to the dimension's length.
func (t *Tensor[T, B]) Split(sizes []int, dim int) []*Tensor[T, B] {
	return wrap[T](t.backend.Split(t.raw, sizes, dim), t.backend)
}

// Unstack removes dim, returning one tensor per index along it.
func (t *Tensor[T, B]) Unstack(dim int) []*Tensor[T, B] {
	return wrap[T](t.backend.Unstack(t.raw, dim), t.backend)
}

// Reverse flips the tensor along dim.
func (t *Tensor[T, B]) Reverse(dim int) *Tensor[T, B] {
	return New[T, B](t.backend.Reverse(t.raw, dim), t.backend)
}

// Unsqueeze adds a dimension of size 1 at the specified position.
//
// Example:
//
//	x := tensor.Randn[float32](Shape{2, 5}, backend)
//	y := x.Unsqueeze(-1) // Shape: [2, 5, 1]
func (t *Tensor[T, B]) Unsqueeze(dim int) *Tensor[T, B] {
	return New[T, B](t.backend.Unsqueeze(t.raw, dim), t.backend)
}

func raws[T DType, B Backend](tensors []*Tensor[T, B]) []*RawTensor {
	out := make([]*RawTensor, len(tensors))
	for i, t := range tensors {
		out[i] = t.raw
	}
	return out
}

func wrap[T DType, B Backend](rs []*RawTensor, b B) []*Tensor[T, B] {
	out := make([]*Tensor[T, B], len(rs))
	for i, r := range rs {
		out[i] = New[T, B](r, b)
	}
	return out
}

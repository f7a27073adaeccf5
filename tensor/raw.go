// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/seqnet/internal/tensor"
)

// RawTensor is the untyped, reference-counted storage behind a Tensor.
//
// Backends operate on RawTensors. Most users should use Tensor[T, B].
//
// Example:
//
//	raw, _ := tensor.NewRaw(tensor.Shape{2, 3}, tensor.Float32, tensor.CPU)
//	data := raw.AsFloat32()
//	view, _ := raw.View(tensor.Shape{3, 2}) // shares the buffer
type RawTensor = tensor.RawTensor

// NewRaw allocates a zeroed raw tensor from the buffer pool.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// New wraps a raw tensor. The tensor takes over the raw reference.
func New[T DType, B Backend](raw *RawTensor, b B) *Tensor[T, B] {
	return tensor.New[T, B](raw, b)
}

// PoolStats reports buffer pool reuse.
type PoolStats = tensor.PoolStats

// BufferPoolStats returns the process-wide buffer pool counters.
func BufferPoolStats() PoolStats {
	return tensor.BufferPoolStats()
}

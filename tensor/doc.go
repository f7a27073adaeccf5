// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the tensors the recurrent engine computes on.
//
// # Overview
//
//   - Generic type-safe tensors (Tensor[T, B]) over float32 and float64
//   - NumPy-style broadcasting for elementwise operations
//   - Reference-counted pooled buffers with views that share storage
//   - Scope for releasing the intermediates of one computation together
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/seqnet/backend/cpu"
//	    "github.com/born-ml/seqnet/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//
//	    x := tensor.Zeros[float32](tensor.Shape{2, 3}, backend)
//	    y := tensor.Ones[float32](tensor.Shape{3, 4}, backend)
//	    z := x.MatMul(y) // [2, 4]
//	    defer z.Release()
//	}
//
// # Memory
//
// Every operation returns a new tensor. Release returns its buffer to the
// pool once no view references it; using a released tensor panics.
//
//	scope := tensor.NewScope()
//	defer scope.Close()
//	h := x.Add(y)
//	scope.Track(h.Raw()) // released by Close
package tensor
